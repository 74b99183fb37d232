package workflow

import (
	"time"

	"github.com/flowgate/flowgate/gate"
	"github.com/flowgate/flowgate/types"
)

// StepType defines the kind of work a step delegates to its executor.
type StepType string

const (
	// StepTypePrompt renders and runs a prompt template.
	StepTypePrompt StepType = "prompt"
	// StepTypeTool invokes an external tool.
	StepTypeTool StepType = "tool"
	// StepTypeGate runs a standalone gate evaluation step.
	StepTypeGate StepType = "gate"
	// StepTypeCondition produces a boolean used for dynamic branching.
	StepTypeCondition StepType = "condition"
	// StepTypeParallel fans out to a group of sub-invocations.
	StepTypeParallel StepType = "parallel"
)

// OnErrorPolicy controls what happens to a step's dependents when it fails.
type OnErrorPolicy string

const (
	// OnErrorFail marks direct and transitive dependents as skipped.
	OnErrorFail OnErrorPolicy = "fail"
	// OnErrorContinue lets dependents run with the step's empty output.
	OnErrorContinue OnErrorPolicy = "continue"
)

// BackoffStrategy selects the delay progression between retry attempts.
type BackoffStrategy string

const (
	// BackoffLinear grows the delay as baseDelay × attempt.
	BackoffLinear BackoffStrategy = "linear"
	// BackoffExponential grows the delay as baseDelay × 2^(attempt-1).
	BackoffExponential BackoffStrategy = "exponential"
)

// RetryPolicy bounds how a failed step is re-attempted.
// A step-level policy overrides the workflow-level one.
type RetryPolicy struct {
	// MaxRetries is the number of re-attempts after the first failure.
	MaxRetries int `json:"max_retries" yaml:"max_retries"`
	// Backoff selects the delay progression.
	Backoff BackoffStrategy `json:"backoff" yaml:"backoff"`
	// BaseDelay is the first retry delay.
	BaseDelay time.Duration `json:"base_delay" yaml:"base_delay"`
	// MaxDelay caps every computed delay.
	MaxDelay time.Duration `json:"max_delay" yaml:"max_delay"`
	// RetryableErrors lists the error categories worth retrying.
	RetryableErrors []types.ErrorCode `json:"retryable_errors" yaml:"retryable_errors"`
}

// DefaultRetryPolicy returns the workflow-level fallback policy.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:      2,
		Backoff:         BackoffExponential,
		BaseDelay:       500 * time.Millisecond,
		MaxDelay:        30 * time.Second,
		RetryableErrors: []types.ErrorCode{types.ErrExecution, types.ErrTimeout},
	}
}

// WorkflowStep is one node of a workflow's dependency graph.
type WorkflowStep struct {
	// ID is unique within the workflow.
	ID string `json:"id" yaml:"id"`
	// Name is the human-readable step name.
	Name string `json:"name" yaml:"name"`
	// Type selects the external executor.
	Type StepType `json:"type" yaml:"type"`
	// Config is opaque to the engine and interpreted by the executor.
	Config map[string]any `json:"config,omitempty" yaml:"config,omitempty"`
	// Dependencies names the steps that must complete first.
	Dependencies []string `json:"dependencies,omitempty" yaml:"dependencies,omitempty"`
	// InputMapping maps executor parameter names to sources, either
	// "inputs.<name>" (a workflow input) or "steps.<id>" (a prior output).
	InputMapping map[string]string `json:"input_mapping,omitempty" yaml:"input_mapping,omitempty"`
	// Timeout bounds external execution and gate evaluation combined.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	// Retry overrides the workflow-level retry policy when set.
	Retry *RetryPolicy `json:"retry,omitempty" yaml:"retry,omitempty"`
	// OnError controls dependent handling when this step fails.
	OnError OnErrorPolicy `json:"on_error,omitempty" yaml:"on_error,omitempty"`
}

// WorkflowMetadata is descriptive only and carries no execution semantics.
type WorkflowMetadata struct {
	Author     string    `json:"author,omitempty" yaml:"author,omitempty"`
	CreatedAt  time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	ModifiedAt time.Time `json:"modified_at,omitempty" yaml:"modified_at,omitempty"`
	Tags       []string  `json:"tags,omitempty" yaml:"tags,omitempty"`
	Runtimes   []string  `json:"runtimes,omitempty" yaml:"runtimes,omitempty"`
	Version    string    `json:"version,omitempty" yaml:"version,omitempty"`
}

// Workflow is an immutable registered definition. Re-registering the same
// id replaces the definition without disturbing in-flight executions.
type Workflow struct {
	ID       string            `json:"id" yaml:"id"`
	Name     string            `json:"name" yaml:"name"`
	Version  string            `json:"version,omitempty" yaml:"version,omitempty"`
	Steps    []WorkflowStep    `json:"steps" yaml:"steps"`
	Retry    RetryPolicy       `json:"retry" yaml:"retry"`
	Metadata WorkflowMetadata  `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Gates    []gate.Definition `json:"gates,omitempty" yaml:"gates,omitempty"`

	// graph is built once at registration and cached with the definition.
	graph *DependencyGraph
}

// Graph returns the validated dependency graph, or nil before registration.
func (w *Workflow) Graph() *DependencyGraph {
	return w.graph
}

// Step returns the step with the given id.
func (w *Workflow) Step(id string) (*WorkflowStep, bool) {
	for i := range w.Steps {
		if w.Steps[i].ID == id {
			return &w.Steps[i], true
		}
	}
	return nil, false
}

// StepPolicy resolves the retry policy effective for a step.
func (w *Workflow) StepPolicy(step *WorkflowStep) RetryPolicy {
	if step.Retry != nil {
		return *step.Retry
	}
	return w.Retry
}

// GatesFor returns the gates covering the given step id, in definition order.
func (w *Workflow) GatesFor(stepID string) []*gate.Definition {
	var out []*gate.Definition
	for i := range w.Gates {
		for _, id := range w.Gates[i].StepIDs {
			if id == stepID {
				out = append(out, &w.Gates[i])
				break
			}
		}
	}
	return out
}

// StepStatus is the per-step state machine position.
type StepStatus string

const (
	StepPending     StepStatus = "pending"
	StepRunning     StepStatus = "running"
	StepWaitingGate StepStatus = "waiting_gate"
	StepCompleted   StepStatus = "completed"
	StepFailed      StepStatus = "failed"
	StepSkipped     StepStatus = "skipped"
	StepRetrying    StepStatus = "retrying"
)

// ExecutionStatus is the workflow-level state machine position.
type ExecutionStatus string

const (
	ExecutionPending     ExecutionStatus = "pending"
	ExecutionRunning     ExecutionStatus = "running"
	ExecutionWaitingGate ExecutionStatus = "waiting_gate"
	ExecutionCompleted   ExecutionStatus = "completed"
	ExecutionFailed      ExecutionStatus = "failed"
	ExecutionRetrying    ExecutionStatus = "retrying"
)

// StepResult captures one step's outcome.
type StepResult struct {
	StepID     string                 `json:"step_id"`
	Status     StepStatus             `json:"status"`
	Content    string                 `json:"content,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Retries    int                    `json:"retries"`
	StartedAt  time.Time              `json:"started_at,omitempty"`
	FinishedAt time.Time              `json:"finished_at,omitempty"`
	Gate       *gate.EvaluationResult `json:"gate,omitempty"`
}

// Options control one ExecuteWorkflow call.
type Options struct {
	// GateValidation toggles gate evaluation after gated steps.
	GateValidation bool `json:"gate_validation"`
	// StepConfirmation pauses before each step for an external confirmer.
	StepConfirmation bool `json:"step_confirmation"`
	// Timeout bounds the whole execution. Zero means no overall bound.
	Timeout time.Duration `json:"timeout,omitempty"`
	// MaxParallel enables concurrent execution of independent ready steps
	// when greater than 1. The default (0 or 1) is strictly sequential
	// over the deterministic topological order.
	MaxParallel int `json:"max_parallel,omitempty"`
}

// DefaultOptions enables gates and keeps execution sequential.
func DefaultOptions() Options {
	return Options{GateValidation: true}
}

// ExecutionResult is the aggregate outcome of one ExecuteWorkflow call.
type ExecutionResult struct {
	ExecutionID string                 `json:"execution_id"`
	WorkflowID  string                 `json:"workflow_id"`
	Status      ExecutionStatus        `json:"status"`
	StepResults map[string]*StepResult `json:"step_results"`
	// FinalResult is the output of the last step in topological order
	// that completed.
	FinalResult string    `json:"final_result,omitempty"`
	Error       string    `json:"error,omitempty"`
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
}

// WorkflowSummary is the ListWorkflows projection.
type WorkflowSummary struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Version  string   `json:"version,omitempty"`
	Steps    int      `json:"steps"`
	Gates    int      `json:"gates"`
	Tags     []string `json:"tags,omitempty"`
	Runtimes []string `json:"runtimes,omitempty"`
}

// ExecutionSummary is the ActiveExecutions projection.
type ExecutionSummary struct {
	ExecutionID string          `json:"execution_id"`
	WorkflowID  string          `json:"workflow_id"`
	Status      ExecutionStatus `json:"status"`
	CurrentStep int             `json:"current_step"`
	TotalSteps  int             `json:"total_steps"`
	StartTime   time.Time       `json:"start_time"`
}
