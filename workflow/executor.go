package workflow

import (
	"context"
	"fmt"
	"strings"

	"github.com/flowgate/flowgate/types"
)

// StepExecutor performs the actual work for one step type: a prompt call,
// a tool invocation, a condition evaluation. The engine only sees the
// produced content and a classifiable error.
type StepExecutor interface {
	Execute(ctx context.Context, step *WorkflowStep, inputs map[string]string) (string, error)
}

// StepExecutorFunc adapts a function to the StepExecutor interface.
type StepExecutorFunc func(ctx context.Context, step *WorkflowStep, inputs map[string]string) (string, error)

func (f StepExecutorFunc) Execute(ctx context.Context, step *WorkflowStep, inputs map[string]string) (string, error) {
	return f(ctx, step, inputs)
}

// Compensator is an optional executor capability. Only executors that
// implement it can honor a gate's rollback failure action; without it the
// engine fails the workflow with ROLLBACK_UNSUPPORTED instead of
// inventing undo semantics.
type Compensator interface {
	Compensate(ctx context.Context, step *WorkflowStep, result *StepResult) error
}

// ExecutorRegistry maps step types to executors. The table is built at
// startup so an unknown type is a registration-time validation error,
// not a runtime lookup failure.
type ExecutorRegistry struct {
	executors map[StepType]StepExecutor
}

// NewExecutorRegistry creates an empty executor registry.
func NewExecutorRegistry() *ExecutorRegistry {
	return &ExecutorRegistry{executors: make(map[StepType]StepExecutor)}
}

// Register binds an executor to a step type, replacing any previous one.
func (r *ExecutorRegistry) Register(t StepType, e StepExecutor) {
	r.executors[t] = e
}

// Resolve returns the executor for a step type.
func (r *ExecutorRegistry) Resolve(t StepType) (StepExecutor, bool) {
	e, ok := r.executors[t]
	return e, ok
}

// Types returns the registered step types.
func (r *ExecutorRegistry) Types() []StepType {
	out := make([]StepType, 0, len(r.executors))
	for t := range r.executors {
		out = append(out, t)
	}
	return out
}

// input mapping source prefixes
const (
	sourceInputPrefix = "inputs."
	sourceStepPrefix  = "steps."
)

// resolveInputs materializes a step's executor arguments from its input
// mapping. A source is either "inputs.<name>" (a workflow input) or
// "steps.<id>" (the output of a prior step).
func resolveInputs(step *WorkflowStep, workflowInputs map[string]string, results map[string]*StepResult) (map[string]string, error) {
	resolved := make(map[string]string, len(step.InputMapping))

	for param, source := range step.InputMapping {
		switch {
		case strings.HasPrefix(source, sourceInputPrefix):
			name := strings.TrimPrefix(source, sourceInputPrefix)
			value, ok := workflowInputs[name]
			if !ok {
				return nil, types.NewError(types.ErrExecution,
					fmt.Sprintf("step %q parameter %q references missing workflow input %q", step.ID, param, name)).
					WithStep(step.ID)
			}
			resolved[param] = value

		case strings.HasPrefix(source, sourceStepPrefix):
			id := strings.TrimPrefix(source, sourceStepPrefix)
			result, ok := results[id]
			if !ok {
				return nil, types.NewError(types.ErrExecution,
					fmt.Sprintf("step %q parameter %q references step %q which has not produced output", step.ID, param, id)).
					WithStep(step.ID)
			}
			resolved[param] = result.Content

		default:
			return nil, types.NewError(types.ErrExecution,
				fmt.Sprintf("step %q parameter %q has malformed source %q (want inputs.<name> or steps.<id>)", step.ID, param, source)).
				WithStep(step.ID)
		}
	}

	return resolved, nil
}
