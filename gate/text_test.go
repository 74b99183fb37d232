package gate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountSyllables(t *testing.T) {
	t.Parallel()

	cases := map[string]int{
		"cat":       1,
		"beautiful": 3,
		"rhythm":    1,
		"queue":     1, // one unbroken vowel cluster
		"tsk":       1, // no vowels still counts one
	}
	for word, want := range cases {
		assert.Equal(t, want, countSyllables(word), word)
	}
}

func TestFleschScore_SimpleText(t *testing.T) {
	t.Parallel()

	// 8 monosyllabic words over 2 sentences:
	// 206.835 - 1.015*4 - 84.6*1 = 118.175
	score, words, sentences, syllables := fleschScore("The cat sat down. The dog ran off.")
	assert.Equal(t, 8, words)
	assert.Equal(t, 2, sentences)
	assert.Equal(t, 8, syllables)
	assert.InDelta(t, 118.175, score, 1e-6)
}

func readabilityReq(c ReadabilityCriteria) Requirement {
	return Requirement{Kind: KindReadability, Criteria: Criteria{Readability: &c}}
}

func TestReadabilityEvaluator_InRange(t *testing.T) {
	t.Parallel()

	e := readabilityEvaluator{}
	res := e.Evaluate("The cat sat down. The dog ran off.",
		readabilityReq(ReadabilityCriteria{Min: 100, Max: 120}))
	assert.True(t, res.Passed)
	assert.Equal(t, 1.0, res.Score)
}

func TestFleschRange_Resolution(t *testing.T) {
	t.Parallel()

	min, max := ReadabilityCriteria{Min: 40, Max: 55}.fleschRange()
	assert.Equal(t, 40.0, min)
	assert.Equal(t, 55.0, max)

	// Explicit bounds win over the level; a zero max defaults to 100.
	min, max = ReadabilityCriteria{Level: LevelExpert, Min: 20}.fleschRange()
	assert.Equal(t, 20.0, min)
	assert.Equal(t, 100.0, max)

	min, max = ReadabilityCriteria{Level: LevelIntermediate}.fleschRange()
	assert.Equal(t, 70.0, min)
	assert.Equal(t, 89.0, max)

	min, max = ReadabilityCriteria{}.fleschRange()
	assert.Equal(t, 60.0, min)
	assert.Equal(t, 80.0, max)
}

func TestReadabilityEvaluator_OutOfRange(t *testing.T) {
	t.Parallel()

	e := readabilityEvaluator{}

	// Simple prose scores around 118, far above the expert 30-49 window.
	res := e.Evaluate("The cat sat down. The dog ran off.",
		readabilityReq(ReadabilityCriteria{Level: LevelExpert}))
	assert.False(t, res.Passed)
	assert.Less(t, res.Score, 1.0)

	// Below the minimum the score decays linearly toward zero.
	below := e.Evaluate("The cat sat down. The dog ran off.",
		readabilityReq(ReadabilityCriteria{Min: 120, Max: 130}))
	assert.False(t, below.Passed)
	assert.InDelta(t, 118.175/120, below.Score, 1e-6)
}

func TestReadabilityEvaluator_EmptyContent(t *testing.T) {
	t.Parallel()

	e := readabilityEvaluator{}
	res := e.Evaluate("   ", readabilityReq(ReadabilityCriteria{Level: LevelIntermediate}))
	assert.False(t, res.Passed)
	assert.Equal(t, 0.0, res.Score)
}

func grammarReq(s GrammarStrength) Requirement {
	return Requirement{Kind: KindGrammar, Criteria: Criteria{Grammar: &GrammarCriteria{Strength: s}}}
}

func TestGrammarIssues(t *testing.T) {
	t.Parallel()

	issues := grammarIssues("this sentence starts lowercase. i think  so")
	joined := strings.Join(issues, "\n")
	assert.Contains(t, joined, "lowercase letter")
	assert.Contains(t, joined, `pronoun "I"`)
	assert.Contains(t, joined, "double space")
	assert.Contains(t, joined, "terminal punctuation")
}

func TestGrammarIssues_PronounBeforePunctuation(t *testing.T) {
	t.Parallel()

	issues := grammarIssues("Yes, i. And i, again.")
	require.Len(t, issues, 2)
	for _, issue := range issues {
		assert.Contains(t, issue, `pronoun "I"`)
	}
}

func TestGrammarEvaluator_StrengthBudgets(t *testing.T) {
	t.Parallel()

	e := grammarEvaluator{}
	// Exactly 3 issues: two lowercase sentence starts and one missing
	// terminal punctuation.
	content := "this is one. this is two"

	issues := grammarIssues(content)
	require.Len(t, issues, 3)

	assert.True(t, e.Evaluate(content, grammarReq(GrammarBasic)).Passed, "budget 10")
	assert.True(t, e.Evaluate(content, grammarReq(GrammarStandard)).Passed, "budget 5")
	assert.False(t, e.Evaluate(content, grammarReq(GrammarStrict)).Passed, "budget 2")
}

func TestGrammarEvaluator_ScoreDecay(t *testing.T) {
	t.Parallel()

	e := grammarEvaluator{}
	// 3 issues on a strict budget of 2: score = 1 - 3/(2*2) = 0.25
	res := e.Evaluate("this is one. this is two", grammarReq(GrammarStrict))
	assert.InDelta(t, 0.25, res.Score, 1e-9)

	clean := e.Evaluate("All good here.", grammarReq(GrammarStrict))
	assert.True(t, clean.Passed)
	assert.Equal(t, 1.0, clean.Score)
}

func toneReq(expected Tone, minConfidence float64) Requirement {
	return Requirement{Kind: KindTone, Criteria: Criteria{
		Tone: &ToneCriteria{Expected: expected, MinConfidence: minConfidence},
	}}
}

func TestDetectTone(t *testing.T) {
	t.Parallel()

	tone, confidence := detectTone("The algorithm uses a configuration parameter per module.")
	assert.Equal(t, ToneTechnical, tone)
	assert.Equal(t, 1.0, confidence)

	neutral, confidence := detectTone("Nothing marker-like here.")
	assert.Equal(t, ToneNeutral, neutral)
	assert.Equal(t, 1.0, confidence)
}

func TestToneEvaluator(t *testing.T) {
	t.Parallel()

	e := toneEvaluator{}

	match := e.Evaluate("The algorithm and its configuration parameter.", toneReq(ToneTechnical, 0))
	assert.True(t, match.Passed)
	assert.Equal(t, 1.0, match.Score)

	mismatch := e.Evaluate("hey that is kinda cool stuff", toneReq(ToneProfessional, 0))
	assert.False(t, mismatch.Passed)
	assert.Equal(t, 0.0, mismatch.Score, "score is zero when the bucket does not match")
	assert.Equal(t, string(ToneCasual), mismatch.Details["detected"])
}

func TestToneEvaluator_ConfidenceThreshold(t *testing.T) {
	t.Parallel()

	e := toneEvaluator{}
	// One technical marker against one casual marker: confidence 0.5 for
	// the winning bucket, below the 0.7 default.
	content := "the algorithm is cool"
	res := e.Evaluate(content, toneReq(ToneTechnical, 0))
	assert.False(t, res.Passed)
	assert.Equal(t, 0.5, res.Score)

	relaxed := e.Evaluate(content, toneReq(ToneTechnical, 0.4))
	assert.True(t, relaxed.Passed)
}
