package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParserFactoryAppliesFeaturesAndHandlers(t *testing.T) {
	f := NewParserFactory()
	assert.NoError(t, f.SetFeature(FeatureValidation, true))
	h := newRecordingHandler()
	f.SetContentHandler(h)

	p := f.NewParser()
	v, err := p.Features.GetFeature(FeatureValidation)
	assert.NoError(t, err)
	assert.True(t, v)

	assert.NoError(t, p.Parse(&EntityInput{SystemID: "doc.xml", Text: `<root/>`}))
	assert.Contains(t, h.events, "start:root")
}

func TestParserFactoryLaterMutationDoesNotAffectIssuedParser(t *testing.T) {
	f := NewParserFactory()
	p := f.NewParser()

	assert.NoError(t, f.SetFeature(FeatureValidation, true))

	v, err := p.Features.GetFeature(FeatureValidation)
	assert.NoError(t, err)
	assert.False(t, v, "parser already issued should keep the feature set it was built with")
}
