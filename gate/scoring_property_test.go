package gate

import (
	"fmt"
	"testing"

	"go.uber.org/zap"
	"pgregory.net/rapid"
)

// staticEvaluator returns a fixed score so scoring properties can be
// checked independently of any content heuristic.
type staticEvaluator struct {
	kind  Kind
	score float64
}

func (e staticEvaluator) Kind() Kind { return e.kind }
func (e staticEvaluator) Evaluate(content string, req Requirement) RequirementResult {
	return RequirementResult{Kind: e.kind, Passed: e.score >= 1, Score: e.score}
}

func TestEvaluate_ScoreProperties(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 8).Draw(t, "requirements")

		r := NewRegistry(zap.NewNop())
		def := Definition{ID: "prop", Type: GateQuality}

		var weightedSum, weightTotal float64
		for i := 0; i < n; i++ {
			kind := Kind(fmt.Sprintf("req_%d", i))
			score := rapid.Float64Range(0, 1).Draw(t, "score")
			weight := rapid.Float64Range(0.01, 10).Draw(t, "weight")

			r.RegisterEvaluator(staticEvaluator{kind: kind, score: score})
			def.Requirements = append(def.Requirements, Requirement{
				Kind: kind, Weight: weight, Optional: true,
			})
			weightedSum += score * weight
			weightTotal += weight
		}

		evalCtx := Context{
			StepIndex:  rapid.IntRange(0, 9).Draw(t, "step"),
			TotalSteps: 10,
		}
		res := r.Evaluate(&def, "content", evalCtx)

		want := weightedSum / weightTotal
		if diff := res.Score - want; diff > 1e-9 || diff < -1e-9 {
			t.Fatalf("score %v, want weighted average %v", res.Score, want)
		}
		if res.Score < 0 || res.Score > 1 {
			t.Fatalf("score %v outside [0,1]", res.Score)
		}
		if res.ContextScore < res.Score {
			t.Fatalf("context score %v below raw score %v", res.ContextScore, res.Score)
		}
		if res.ContextScore > 1 {
			t.Fatalf("context score %v above 1", res.ContextScore)
		}
	})
}
