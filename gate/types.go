package gate

import (
	"time"

	"github.com/flowgate/flowgate/types"
)

// Kind identifies a requirement type. Each kind has exactly one criteria
// payload shape and one registered evaluator.
type Kind string

const (
	KindContentLength Kind = "content_length"
	KindKeywords      Kind = "keyword_presence"
	KindFormat        Kind = "format_validation"
	KindSections      Kind = "section_validation"
	KindReadability   Kind = "readability_score"
	KindGrammar       Kind = "grammar_quality"
	KindTone          Kind = "tone_analysis"
	KindHierarchy     Kind = "hierarchy_validation"
	KindCodeQuality   Kind = "code_quality"
	KindCustom        Kind = "custom"
)

// BuiltinKinds lists the kinds with built-in evaluators, in a fixed order.
func BuiltinKinds() []Kind {
	return []Kind{
		KindContentLength, KindKeywords, KindFormat, KindSections,
		KindReadability, KindGrammar, KindTone, KindHierarchy,
		KindCodeQuality,
	}
}

// GateType classifies what a gate is for.
type GateType string

const (
	GateValidation GateType = "validation"
	GateApproval   GateType = "approval"
	GateCondition  GateType = "condition"
	GateQuality    GateType = "quality"
)

// FailureAction tells the engine what to do when a gate fails.
type FailureAction string

const (
	// FailureStop fails the workflow.
	FailureStop FailureAction = "stop"
	// FailureRetry consumes a step retry and re-runs the step.
	FailureRetry FailureAction = "retry"
	// FailureSkip marks the step skipped; dependents continue with the
	// step's empty output.
	FailureSkip FailureAction = "skip"
	// FailureRollback asks the executor to undo the step. Without a
	// step-specific undo hook the engine fails with ROLLBACK_UNSUPPORTED.
	FailureRollback FailureAction = "rollback"
)

// LengthCriteria bounds the content length in characters. A zero bound
// is not enforced.
type LengthCriteria struct {
	Min int `json:"min,omitempty" yaml:"min,omitempty"`
	Max int `json:"max,omitempty" yaml:"max,omitempty"`
}

// KeywordCriteria requires the listed keywords to appear in the content.
type KeywordCriteria struct {
	Keywords      []string `json:"keywords" yaml:"keywords"`
	CaseSensitive bool     `json:"case_sensitive,omitempty" yaml:"case_sensitive,omitempty"`
}

// ContentFormat names a structural format the content must satisfy.
type ContentFormat string

const (
	FormatMarkdown ContentFormat = "markdown"
	FormatJSON     ContentFormat = "json"
	FormatYAML     ContentFormat = "yaml"
)

// FormatCriteria requires the content to parse as the named format.
type FormatCriteria struct {
	Format ContentFormat `json:"format" yaml:"format"`
}

// SectionCriteria requires each named section string to appear literally.
type SectionCriteria struct {
	Sections []string `json:"sections" yaml:"sections"`
}

// ReadabilityLevel names a Flesch Reading-Ease target range.
type ReadabilityLevel string

const (
	LevelBeginner     ReadabilityLevel = "beginner"     // 90-100
	LevelIntermediate ReadabilityLevel = "intermediate" // 70-89
	LevelAdvanced     ReadabilityLevel = "advanced"     // 50-69
	LevelExpert       ReadabilityLevel = "expert"       // 30-49
)

// ReadabilityCriteria targets a Flesch Reading-Ease range, either via a
// named level or explicit bounds. Explicit bounds win over the level.
type ReadabilityCriteria struct {
	Level ReadabilityLevel `json:"level,omitempty" yaml:"level,omitempty"`
	Min   float64          `json:"min,omitempty" yaml:"min,omitempty"`
	Max   float64          `json:"max,omitempty" yaml:"max,omitempty"`
}

// GrammarStrength selects how many heuristic issues are tolerated.
type GrammarStrength string

const (
	GrammarBasic    GrammarStrength = "basic"    // 10 issues
	GrammarStandard GrammarStrength = "standard" // 5 issues
	GrammarStrict   GrammarStrength = "strict"   // 2 issues
)

// GrammarCriteria bounds heuristic grammar issues by strength.
type GrammarCriteria struct {
	Strength GrammarStrength `json:"strength,omitempty" yaml:"strength,omitempty"`
}

// Tone names a detected or expected tone bucket.
type Tone string

const (
	ToneProfessional Tone = "professional"
	ToneTechnical    Tone = "technical"
	ToneCasual       Tone = "casual"
	ToneFriendly     Tone = "friendly"
	ToneNeutral      Tone = "neutral"
)

// ToneCriteria requires the detected tone to match with enough confidence.
type ToneCriteria struct {
	Expected Tone `json:"expected" yaml:"expected"`
	// MinConfidence defaults to 0.7 when zero.
	MinConfidence float64 `json:"min_confidence,omitempty" yaml:"min_confidence,omitempty"`
}

// HierarchyCriteria constrains the Markdown heading structure.
type HierarchyCriteria struct {
	// MaxDepth limits heading depth (1-6). Zero means no limit.
	MaxDepth int `json:"max_depth,omitempty" yaml:"max_depth,omitempty"`
	// RequireH1 demands a top-level heading.
	RequireH1 bool `json:"require_h1,omitempty" yaml:"require_h1,omitempty"`
}

// CodeQualityCriteria constrains code spans embedded in the content.
type CodeQualityCriteria struct {
	// CheckBrackets verifies ()[]{} balance in code spans.
	CheckBrackets bool `json:"check_brackets,omitempty" yaml:"check_brackets,omitempty"`
	// DisallowedTokens are style-guide substrings rejected inside code
	// spans, e.g. "var " or ": any".
	DisallowedTokens []string `json:"disallowed_tokens,omitempty" yaml:"disallowed_tokens,omitempty"`
	// MaxComplexity caps the approximate cyclomatic complexity per code
	// span. Zero means no limit.
	MaxComplexity int `json:"max_complexity,omitempty" yaml:"max_complexity,omitempty"`
}

// Criteria is the tagged payload of a requirement: exactly the field
// matching the requirement kind is set. Custom carries free-form criteria
// for plugin evaluators.
type Criteria struct {
	Length      *LengthCriteria      `json:"length,omitempty" yaml:"length,omitempty"`
	Keywords    *KeywordCriteria     `json:"keywords,omitempty" yaml:"keywords,omitempty"`
	Format      *FormatCriteria      `json:"format,omitempty" yaml:"format,omitempty"`
	Sections    *SectionCriteria     `json:"sections,omitempty" yaml:"sections,omitempty"`
	Readability *ReadabilityCriteria `json:"readability,omitempty" yaml:"readability,omitempty"`
	Grammar     *GrammarCriteria     `json:"grammar,omitempty" yaml:"grammar,omitempty"`
	Tone        *ToneCriteria        `json:"tone,omitempty" yaml:"tone,omitempty"`
	Hierarchy   *HierarchyCriteria   `json:"hierarchy,omitempty" yaml:"hierarchy,omitempty"`
	Code        *CodeQualityCriteria `json:"code,omitempty" yaml:"code,omitempty"`
	Custom      map[string]any       `json:"custom,omitempty" yaml:"custom,omitempty"`
}

// Requirement is one typed criterion of a gate.
type Requirement struct {
	Kind     Kind     `json:"kind" yaml:"kind"`
	Criteria Criteria `json:"criteria" yaml:"criteria"`
	// Weight defaults to 1 when zero or negative.
	Weight float64 `json:"weight,omitempty" yaml:"weight,omitempty"`
	// Optional inverts the default: a required requirement that fails
	// fails the whole gate regardless of the weighted score.
	Optional bool `json:"optional,omitempty" yaml:"optional,omitempty"`
}

// Required reports whether a failure of this requirement fails the gate.
func (r Requirement) Required() bool {
	return !r.Optional
}

// EffectiveWeight normalizes the weight, defaulting to 1.
func (r Requirement) EffectiveWeight() float64 {
	if r.Weight <= 0 {
		return 1
	}
	return r.Weight
}

// Definition is a named bundle of requirements applied to workflow steps.
type Definition struct {
	ID            string        `json:"id" yaml:"id"`
	Name          string        `json:"name,omitempty" yaml:"name,omitempty"`
	Type          GateType      `json:"type" yaml:"type"`
	StepIDs       []string      `json:"step_ids" yaml:"step_ids"`
	Requirements  []Requirement `json:"requirements" yaml:"requirements"`
	FailureAction FailureAction `json:"failure_action,omitempty" yaml:"failure_action,omitempty"`
	// RuntimeOverrides substitutes the requirement list when evaluating
	// for a specific target runtime, letting one gate carry different
	// thresholds per runtime.
	RuntimeOverrides map[string][]Requirement `json:"runtime_overrides,omitempty" yaml:"runtime_overrides,omitempty"`
}

// RequirementsFor resolves the requirement list effective for a runtime.
func (d *Definition) RequirementsFor(runtime string) []Requirement {
	if runtime != "" {
		if reqs, ok := d.RuntimeOverrides[runtime]; ok {
			return reqs
		}
	}
	return d.Requirements
}

// Validate checks the definition, reporting every violation.
func (d *Definition) Validate(known func(Kind) bool) *types.ValidationError {
	verr := types.NewValidationError("gate " + d.ID)

	if d.ID == "" {
		verr.Add("gate id is empty")
	}
	if len(d.Requirements) == 0 {
		verr.Add("gate has no requirements")
	}
	switch d.Type {
	case GateValidation, GateApproval, GateCondition, GateQuality, "":
	default:
		verr.Add("unknown gate type %q", d.Type)
	}
	switch d.FailureAction {
	case FailureStop, FailureRetry, FailureSkip, FailureRollback, "":
	default:
		verr.Add("unknown failure action %q", d.FailureAction)
	}

	validateReqs := func(runtime string, reqs []Requirement) {
		where := ""
		if runtime != "" {
			where = " (runtime " + runtime + ")"
		}
		for i, req := range reqs {
			if !known(req.Kind) {
				verr.Add("requirement %d%s has unknown kind %q", i, where, req.Kind)
				continue
			}
			if !req.Criteria.matches(req.Kind) {
				verr.Add("requirement %d%s (%s) has no matching criteria payload", i, where, req.Kind)
			}
		}
	}

	validateReqs("", d.Requirements)
	for runtime, reqs := range d.RuntimeOverrides {
		validateReqs(runtime, reqs)
	}

	if verr.HasViolations() {
		return verr
	}
	return nil
}

// matches reports whether the payload matching the kind is populated.
func (c Criteria) matches(kind Kind) bool {
	switch kind {
	case KindContentLength:
		return c.Length != nil
	case KindKeywords:
		return c.Keywords != nil
	case KindFormat:
		return c.Format != nil
	case KindSections:
		return c.Sections != nil
	case KindReadability:
		return c.Readability != nil
	case KindGrammar:
		return c.Grammar != nil
	case KindTone:
		return c.Tone != nil
	case KindHierarchy:
		return c.Hierarchy != nil
	case KindCodeQuality:
		return c.Code != nil
	case KindCustom:
		return true
	default:
		return false
	}
}

// RequirementResult is one evaluator's verdict over the content.
type RequirementResult struct {
	Kind    Kind           `json:"kind"`
	Passed  bool           `json:"passed"`
	Score   float64        `json:"score"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// SuggestionPriority orders improvement suggestions.
type SuggestionPriority string

const (
	PriorityHigh   SuggestionPriority = "high"
	PriorityMedium SuggestionPriority = "medium"
	PriorityLow    SuggestionPriority = "low"
)

// ImprovementSuggestion is a structured, actionable fix for a failed
// requirement. Formatting-style issues are marked auto-fixable.
type ImprovementSuggestion struct {
	Type        Kind               `json:"type"`
	Priority    SuggestionPriority `json:"priority"`
	Message     string             `json:"message"`
	Example     string             `json:"example,omitempty"`
	AutoFixable bool               `json:"auto_fixable"`
}

// Context describes where in a workflow execution the gated content sits.
type Context struct {
	WorkflowID  string `json:"workflow_id,omitempty"`
	ExecutionID string `json:"execution_id,omitempty"`
	StepID      string `json:"step_id,omitempty"`
	// StepIndex is the step's position in the topological order (0-based).
	StepIndex  int `json:"step_index"`
	TotalSteps int `json:"total_steps"`
	// Runtime selects runtime-specific criteria overrides.
	Runtime string `json:"runtime,omitempty"`
}

// EvaluationResult is the gate-level verdict plus diagnostics.
type EvaluationResult struct {
	GateID string `json:"gate_id"`
	Passed bool   `json:"passed"`
	// Score is the weighted average of the requirement scores.
	Score float64 `json:"score"`
	// ContextScore is Score after contextual adjustment, capped at 1.0.
	ContextScore  float64                 `json:"context_score"`
	Requirements  []RequirementResult     `json:"requirements"`
	Hints         []string                `json:"hints,omitempty"`
	Suggestions   []ImprovementSuggestion `json:"suggestions,omitempty"`
	FailureAction FailureAction           `json:"failure_action,omitempty"`
	EvaluatedAt   time.Time               `json:"evaluated_at"`
	Duration      time.Duration           `json:"duration"`
}
