package gate

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/flowgate/flowgate/internal/metrics"
	"github.com/flowgate/flowgate/types"
)

// Evaluator scores one requirement kind against a piece of content.
// Evaluators are stateless and deterministic: identical content and
// criteria always produce identical results.
type Evaluator interface {
	Kind() Kind
	Evaluate(content string, req Requirement) RequirementResult
}

// secondaryPassThreshold is the fixed weighted-score acceptance level for
// gates whose only failures are optional requirements. It is a design
// constant, not configurable.
const secondaryPassThreshold = 0.7

// contextLenienceBonus scales the score bonus granted to steps late in a
// workflow. The adjusted score never exceeds 1.0.
const contextLenienceBonus = 0.05

// Stats is the per-gate usage snapshot. Statistics live for the process
// lifetime and are never reset.
type Stats struct {
	Evaluations int64         `json:"evaluations"`
	Passed      int64         `json:"passed"`
	SuccessRate float64       `json:"success_rate"`
	AvgDuration time.Duration `json:"avg_duration"`
}

type gateStats struct {
	evaluations   int64
	passed        int64
	totalDuration time.Duration
}

// Registry aggregates requirements into named gates, dispatches
// evaluation to the kind-matched evaluators, computes weighted verdicts,
// and tracks per-gate usage statistics.
type Registry struct {
	mu         sync.RWMutex
	gates      map[string]*Definition
	evaluators map[Kind]Evaluator
	hints      map[Kind]HintGenerator

	statsMu sync.Mutex
	stats   map[string]*gateStats

	collector *metrics.Collector
	logger    *zap.Logger
}

// NewRegistry creates a gate registry with every built-in evaluator and
// hint generator installed.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Registry{
		gates:      make(map[string]*Definition),
		evaluators: make(map[Kind]Evaluator),
		hints:      make(map[Kind]HintGenerator),
		stats:      make(map[string]*gateStats),
		logger:     logger.With(zap.String("component", "gate_registry")),
	}

	for _, e := range []Evaluator{
		lengthEvaluator{}, keywordEvaluator{}, formatEvaluator{},
		sectionEvaluator{}, readabilityEvaluator{}, grammarEvaluator{},
		toneEvaluator{}, hierarchyEvaluator{}, codeQualityEvaluator{},
	} {
		r.evaluators[e.Kind()] = e
	}
	for _, h := range builtinHintGenerators() {
		r.hints[h.Kind()] = h
	}

	return r
}

// WithCollector attaches a metrics collector. Nil disables metrics.
func (r *Registry) WithCollector(c *metrics.Collector) *Registry {
	r.collector = c
	return r
}

// RegisterEvaluator installs a plugin evaluator, replacing any previous
// one for the same kind.
func (r *Registry) RegisterEvaluator(e Evaluator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evaluators[e.Kind()] = e
}

// RegisterHintGenerator installs a plugin hint generator.
func (r *Registry) RegisterHintGenerator(h HintGenerator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hints[h.Kind()] = h
}

// KnownKind reports whether an evaluator is registered for the kind.
func (r *Registry) KnownKind(kind Kind) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.evaluators[kind]
	return ok || kind == KindCustom
}

// RegisterGate validates and stores a standalone gate definition,
// returning its id. Validation reports every violation and nothing is
// stored on failure.
func (r *Registry) RegisterGate(def Definition) (string, error) {
	if verr := def.Validate(r.KnownKind); verr != nil {
		return "", verr
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	stored := def
	r.gates[def.ID] = &stored

	r.logger.Info("gate registered",
		zap.String("gate_id", def.ID),
		zap.Int("requirements", len(def.Requirements)),
	)
	return def.ID, nil
}

// Gate returns a registered gate definition.
func (r *Registry) Gate(id string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.gates[id]
	return def, ok
}

// ListGates returns the ids of all registered gates.
func (r *Registry) ListGates() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.gates))
	for id := range r.gates {
		out = append(out, id)
	}
	return out
}

// EvaluateGate evaluates a registered gate by id against content.
func (r *Registry) EvaluateGate(id, content string, evalCtx Context) (*EvaluationResult, error) {
	def, ok := r.Gate(id)
	if !ok {
		return nil, types.NewNotFoundError("gate", id)
	}
	return r.Evaluate(def, content, evalCtx), nil
}

// Evaluate runs every requirement of the definition against the content
// and aggregates the weighted verdict.
//
// The gate fails outright when any required requirement fails. When only
// optional requirements fail, the contextually adjusted weighted score is
// accepted at the fixed secondary threshold.
func (r *Registry) Evaluate(def *Definition, content string, evalCtx Context) *EvaluationResult {
	start := time.Now()
	reqs := def.RequirementsFor(evalCtx.Runtime)

	result := &EvaluationResult{
		GateID:        def.ID,
		FailureAction: def.FailureAction,
		EvaluatedAt:   start,
		Requirements:  make([]RequirementResult, 0, len(reqs)),
	}

	var weightedSum, weightTotal float64
	requiredFailed := false
	anyFailed := false

	for i := range reqs {
		req := reqs[i]
		rr := r.evaluateRequirement(content, req)
		result.Requirements = append(result.Requirements, rr)

		weight := req.EffectiveWeight()
		weightedSum += rr.Score * weight
		weightTotal += weight

		if !rr.Passed {
			anyFailed = true
			if req.Required() {
				requiredFailed = true
			}
		}
	}

	if weightTotal > 0 {
		result.Score = weightedSum / weightTotal
	}
	result.ContextScore = adjustForContext(result.Score, evalCtx)
	result.Passed = !requiredFailed && (!anyFailed || result.ContextScore >= secondaryPassThreshold)

	if result.Score < 1 {
		r.attachHints(content, reqs, result)
	}

	result.Duration = time.Since(start)
	r.recordStats(def.ID, result)

	r.logger.Debug("gate evaluated",
		zap.String("gate_id", def.ID),
		zap.String("step_id", evalCtx.StepID),
		zap.Bool("passed", result.Passed),
		zap.Float64("score", result.Score),
		zap.Duration("duration", result.Duration),
	)
	return result
}

// evaluateRequirement dispatches one requirement to its evaluator. An
// evaluator panic is contained here and reported as a failed requirement
// instead of crashing the engine.
func (r *Registry) evaluateRequirement(content string, req Requirement) (rr RequirementResult) {
	r.mu.RLock()
	evaluator, ok := r.evaluators[req.Kind]
	r.mu.RUnlock()

	if !ok {
		return RequirementResult{
			Kind:    req.Kind,
			Passed:  false,
			Score:   0,
			Message: fmt.Sprintf("no evaluator registered for kind %q", req.Kind),
		}
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("evaluator panicked",
				zap.String("kind", string(req.Kind)),
				zap.Any("panic", rec),
			)
			rr = RequirementResult{
				Kind:    req.Kind,
				Passed:  false,
				Score:   0,
				Message: fmt.Sprintf("[%s] evaluator failed: %v", types.ErrInternal, rec),
			}
		}
	}()

	return evaluator.Evaluate(content, req)
}

// adjustForContext grants a small leniency bonus proportional to how far
// into the workflow the gated step sits, capped so the score never
// exceeds 1.0.
func adjustForContext(score float64, evalCtx Context) float64 {
	if evalCtx.TotalSteps <= 0 {
		return score
	}
	progress := float64(evalCtx.StepIndex+1) / float64(evalCtx.TotalSteps)
	adjusted := score + contextLenienceBonus*progress
	if adjusted > 1 {
		adjusted = 1
	}
	return adjusted
}

// attachHints collects hints and suggestions for every failed requirement.
func (r *Registry) attachHints(content string, reqs []Requirement, result *EvaluationResult) {
	for i, rr := range result.Requirements {
		if rr.Passed {
			continue
		}

		r.mu.RLock()
		gen, ok := r.hints[rr.Kind]
		r.mu.RUnlock()
		if !ok {
			continue
		}

		hints, suggestions := gen.Hints(reqs[i], rr)
		result.Hints = append(result.Hints, hints...)
		result.Suggestions = append(result.Suggestions, suggestions...)
	}
}

// recordStats updates the process-lifetime statistics for a gate id.
func (r *Registry) recordStats(gateID string, result *EvaluationResult) {
	r.statsMu.Lock()
	s, ok := r.stats[gateID]
	if !ok {
		s = &gateStats{}
		r.stats[gateID] = s
	}
	s.evaluations++
	if result.Passed {
		s.passed++
	}
	s.totalDuration += result.Duration
	r.statsMu.Unlock()

	if r.collector != nil {
		r.collector.ObserveGateEvaluation(gateID, result.Passed, result.Duration)
	}
}

// Stats returns the usage snapshot for a gate id.
func (r *Registry) Stats(gateID string) (Stats, bool) {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()

	s, ok := r.stats[gateID]
	if !ok {
		return Stats{}, false
	}
	out := Stats{
		Evaluations: s.evaluations,
		Passed:      s.passed,
		SuccessRate: float64(s.passed) / float64(s.evaluations),
		AvgDuration: s.totalDuration / time.Duration(s.evaluations),
	}
	return out, true
}
