package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFileEffectivePrefer(t *testing.T) {
	f := &File{}
	assert.Equal(t, "system", f.effectivePrefer())

	f.Prefer = "public"
	assert.Equal(t, "public", f.effectivePrefer())

	f.Prefer = "bogus"
	assert.Equal(t, "system", f.effectivePrefer())
}
