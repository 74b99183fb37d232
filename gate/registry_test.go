package gate

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/flowgate/flowgate/types"
)

func testRegistry() *Registry {
	return NewRegistry(zap.NewNop())
}

func TestRegistry_InstallsEveryBuiltin(t *testing.T) {
	t.Parallel()

	r := testRegistry()
	for _, kind := range BuiltinKinds() {
		assert.True(t, r.KnownKind(kind), string(kind))
	}
	assert.True(t, r.KnownKind(KindCustom))
	assert.False(t, r.KnownKind("palm_reading"))
}

func TestRegisterGate_ValidationIsAllOrNothing(t *testing.T) {
	t.Parallel()

	r := testRegistry()
	_, err := r.RegisterGate(Definition{
		ID:   "bad",
		Type: "vibes",
		Requirements: []Requirement{
			{Kind: "palm_reading"},
			{Kind: KindContentLength}, // missing criteria payload
		},
		FailureAction: "detonate",
	})
	require.Error(t, err)

	verr, ok := err.(*types.ValidationError)
	require.True(t, ok)
	joined := strings.Join(verr.Violations, "\n")
	assert.Contains(t, joined, `unknown gate type "vibes"`)
	assert.Contains(t, joined, `unknown failure action "detonate"`)
	assert.Contains(t, joined, `unknown kind "palm_reading"`)
	assert.Contains(t, joined, "no matching criteria payload")

	_, found := r.Gate("bad")
	assert.False(t, found)
}

func weightedGate(id string) Definition {
	return Definition{
		ID:   id,
		Type: GateQuality,
		Requirements: []Requirement{
			{
				Kind:     KindContentLength,
				Criteria: Criteria{Length: &LengthCriteria{Min: 10}},
				Weight:   0.3,
				Optional: true,
			},
			{
				Kind:     KindKeywords,
				Criteria: Criteria{Keywords: &KeywordCriteria{Keywords: []string{"quality"}}},
				Weight:   0.7,
				Optional: true,
			},
		},
	}
}

func TestEvaluate_WeightedScore(t *testing.T) {
	t.Parallel()

	r := testRegistry()
	def := weightedGate("weighted")

	// Length passes (score 1.0, weight 0.3), keywords fail (score 0.0,
	// weight 0.7): weighted score 0.3.
	res := r.Evaluate(&def, "long enough content without the magic word", Context{})
	assert.InDelta(t, 0.3, res.Score, 1e-9)
	assert.False(t, res.Passed, "0.3 is below the secondary threshold")

	full := r.Evaluate(&def, "content of real quality here", Context{})
	assert.Equal(t, 1.0, full.Score)
	assert.True(t, full.Passed)
}

func TestEvaluate_RequiredFailureOverridesScore(t *testing.T) {
	t.Parallel()

	r := testRegistry()
	def := Definition{
		ID:   "strict",
		Type: GateQuality,
		Requirements: []Requirement{
			{
				Kind:     KindKeywords,
				Criteria: Criteria{Keywords: &KeywordCriteria{Keywords: []string{"absent"}}},
				Weight:   0.1,
			},
			{
				Kind:     KindContentLength,
				Criteria: Criteria{Length: &LengthCriteria{Min: 1}},
				Weight:   10,
				Optional: true,
			},
		},
	}

	res := r.Evaluate(&def, "plenty of content but the keyword is missing", Context{})
	assert.Greater(t, res.ContextScore, secondaryPassThreshold,
		"weighted score alone would clear the threshold")
	assert.False(t, res.Passed, "a failed required requirement always fails the gate")
}

func TestEvaluate_OptionalFailureAcceptedAtThreshold(t *testing.T) {
	t.Parallel()

	r := testRegistry()
	def := Definition{
		ID:   "lenient",
		Type: GateQuality,
		Requirements: []Requirement{
			{
				Kind:     KindContentLength,
				Criteria: Criteria{Length: &LengthCriteria{Min: 1}},
				Weight:   4,
			},
			{
				Kind:     KindKeywords,
				Criteria: Criteria{Keywords: &KeywordCriteria{Keywords: []string{"absent"}}},
				Weight:   1,
				Optional: true,
			},
		},
	}

	// Weighted score 4/5 = 0.8, above 0.7: the optional miss is tolerated.
	res := r.Evaluate(&def, "some content", Context{})
	assert.InDelta(t, 0.8, res.Score, 1e-9)
	assert.True(t, res.Passed)
}

func TestEvaluate_ContextLenience(t *testing.T) {
	t.Parallel()

	r := testRegistry()
	def := weightedGate("ctx")
	content := "long enough content without the magic word"

	early := r.Evaluate(&def, content, Context{StepIndex: 0, TotalSteps: 10})
	late := r.Evaluate(&def, content, Context{StepIndex: 9, TotalSteps: 10})

	assert.Equal(t, early.Score, late.Score, "raw score ignores context")
	assert.Greater(t, late.ContextScore, early.ContextScore)
	assert.InDelta(t, early.Score+0.05*0.1, early.ContextScore, 1e-9)
	assert.InDelta(t, late.Score+0.05*1.0, late.ContextScore, 1e-9)
}

func TestEvaluate_ContextScoreCappedAtOne(t *testing.T) {
	t.Parallel()

	r := testRegistry()
	def := weightedGate("cap")
	res := r.Evaluate(&def, "content of real quality here", Context{StepIndex: 9, TotalSteps: 10})
	assert.Equal(t, 1.0, res.ContextScore)
}

func TestEvaluate_Idempotent(t *testing.T) {
	t.Parallel()

	r := testRegistry()
	def := weightedGate("idem")
	content := "some quality content for the gate"
	evalCtx := Context{StepIndex: 2, TotalSteps: 5}

	first := r.Evaluate(&def, content, evalCtx)
	for i := 0; i < 10; i++ {
		again := r.Evaluate(&def, content, evalCtx)
		assert.Equal(t, first.Passed, again.Passed)
		assert.Equal(t, first.Score, again.Score)
		assert.Equal(t, first.ContextScore, again.ContextScore)
	}
}

func TestEvaluate_AttachesHintsOnPartialScore(t *testing.T) {
	t.Parallel()

	r := testRegistry()
	def := weightedGate("hints")
	res := r.Evaluate(&def, "long enough content without the magic word", Context{})

	require.NotEmpty(t, res.Hints)
	assert.Contains(t, strings.Join(res.Hints, "\n"), "quality")
	require.NotEmpty(t, res.Suggestions)
	assert.Equal(t, KindKeywords, res.Suggestions[0].Type)
}

func TestEvaluate_RuntimeOverrides(t *testing.T) {
	t.Parallel()

	r := testRegistry()
	def := Definition{
		ID:   "per-runtime",
		Type: GateQuality,
		Requirements: []Requirement{
			{Kind: KindContentLength, Criteria: Criteria{Length: &LengthCriteria{Min: 1000}}},
		},
		RuntimeOverrides: map[string][]Requirement{
			"draft": {
				{Kind: KindContentLength, Criteria: Criteria{Length: &LengthCriteria{Min: 5}}},
			},
		},
	}

	strict := r.Evaluate(&def, "short content", Context{})
	assert.False(t, strict.Passed)

	draft := r.Evaluate(&def, "short content", Context{Runtime: "draft"})
	assert.True(t, draft.Passed)

	unknown := r.Evaluate(&def, "short content", Context{Runtime: "prod"})
	assert.False(t, unknown.Passed, "unknown runtimes fall back to the base requirements")
}

// panicEvaluator always panics, standing in for a buggy plugin.
type panicEvaluator struct{}

func (panicEvaluator) Kind() Kind { return KindCustom }
func (panicEvaluator) Evaluate(content string, req Requirement) RequirementResult {
	panic("plugin bug")
}

func TestEvaluate_ContainsEvaluatorPanic(t *testing.T) {
	t.Parallel()

	r := testRegistry()
	r.RegisterEvaluator(panicEvaluator{})

	def := Definition{
		ID:           "plugin",
		Type:         GateQuality,
		Requirements: []Requirement{{Kind: KindCustom}},
	}

	var res *EvaluationResult
	require.NotPanics(t, func() {
		res = r.Evaluate(&def, "anything", Context{})
	})
	assert.False(t, res.Passed)
	require.Len(t, res.Requirements, 1)
	assert.Contains(t, res.Requirements[0].Message, "evaluator failed")
	assert.Contains(t, res.Requirements[0].Message, string(types.ErrInternal))
}

func TestEvaluateGate_UnknownID(t *testing.T) {
	t.Parallel()

	r := testRegistry()
	_, err := r.EvaluateGate("nope", "content", Context{})
	require.Error(t, err)
	assert.Equal(t, types.ErrNotFound, types.GetErrorCode(err))
}

func TestRegistry_Stats(t *testing.T) {
	t.Parallel()

	r := testRegistry()
	id, err := r.RegisterGate(weightedGate("tracked"))
	require.NoError(t, err)

	_, ok := r.Stats(id)
	assert.False(t, ok, "no stats before the first evaluation")

	_, err = r.EvaluateGate(id, "content of real quality here", Context{})
	require.NoError(t, err)
	_, err = r.EvaluateGate(id, "nope", Context{})
	require.NoError(t, err)

	stats, ok := r.Stats(id)
	require.True(t, ok)
	assert.EqualValues(t, 2, stats.Evaluations)
	assert.EqualValues(t, 1, stats.Passed)
	assert.InDelta(t, 0.5, stats.SuccessRate, 1e-9)
	assert.GreaterOrEqual(t, stats.AvgDuration, time.Duration(0))
}
