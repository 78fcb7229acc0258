package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseContentModelEmptyAndAny(t *testing.T) {
	cm, err := ParseContentModel("EMPTY")
	assert.NoError(t, err)
	assert.Equal(t, ContentEmpty, cm.Kind)

	cm, err = ParseContentModel("ANY")
	assert.NoError(t, err)
	assert.Equal(t, ContentAny, cm.Kind)
}

func TestParseContentModelMixed(t *testing.T) {
	cm, err := ParseContentModel("(#PCDATA|a|b)*")
	assert.NoError(t, err)
	assert.Equal(t, ContentMixed, cm.Kind)
	_, hasA := cm.AllowedChildren["a"]
	_, hasB := cm.AllowedChildren["b"]
	assert.True(t, hasA)
	assert.True(t, hasB)
}

func TestParseContentModelPCDATAOnly(t *testing.T) {
	cm, err := ParseContentModel("(#PCDATA)")
	assert.NoError(t, err)
	assert.Equal(t, ContentMixed, cm.Kind)
	assert.Empty(t, cm.AllowedChildren)
}

func TestParseContentModelSequenceWalk(t *testing.T) {
	cm, err := ParseContentModel("(a,b,c)")
	assert.NoError(t, err)
	assert.Equal(t, ContentChildren, cm.Kind)

	dfa := cm.DFA
	s := dfa.Start()
	s = dfa.Step(s, "a")
	assert.NotEqual(t, -1, s)
	assert.False(t, dfa.Accepting(s))
	s = dfa.Step(s, "b")
	assert.NotEqual(t, -1, s)
	s = dfa.Step(s, "c")
	assert.NotEqual(t, -1, s)
	assert.True(t, dfa.Accepting(s))

	assert.Equal(t, -1, dfa.Step(dfa.Start(), "c")) // c cannot start the sequence
}

func TestParseContentModelChoiceAndStar(t *testing.T) {
	cm, err := ParseContentModel("(a|b)*")
	assert.NoError(t, err)
	dfa := cm.DFA

	assert.True(t, dfa.Accepting(dfa.Start())) // zero occurrences is legal

	s := dfa.Start()
	s = dfa.Step(s, "a")
	assert.True(t, dfa.Accepting(s))
	s2 := dfa.Step(s, "b")
	assert.NotEqual(t, -1, s2)
	assert.True(t, dfa.Accepting(s2))
}

func TestParseContentModelOptionalAndPlus(t *testing.T) {
	cm, err := ParseContentModel("(a?,b+)")
	assert.NoError(t, err)
	dfa := cm.DFA

	// a is optional: b may open the sequence directly.
	s := dfa.Step(dfa.Start(), "b")
	assert.NotEqual(t, -1, s)
	assert.True(t, dfa.Accepting(s))

	// b+ repeats.
	s2 := dfa.Step(s, "b")
	assert.NotEqual(t, -1, s2)
	assert.True(t, dfa.Accepting(s2))
}

func TestParseContentModelAmbiguousRejected(t *testing.T) {
	// "a" opens both branches of the top-level choice, so the start state
	// has two different "a" positions with different follow sets, which
	// section 4.6 calls out as a DTD compatibility (ambiguity) error.
	_, err := ParseContentModel("((a,b)|(a,c))")
	assert.Error(t, err)
}

func TestParseContentModelSyntaxErrors(t *testing.T) {
	cases := []string{
		"(a,b",
		"(a|b,c)",
		"()",
	}
	for _, spec := range cases {
		t.Run(spec, func(t *testing.T) {
			_, err := ParseContentModel(spec)
			assert.Error(t, err)
		})
	}
}
