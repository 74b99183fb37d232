package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/flowgate/flowgate/gate"
	"github.com/flowgate/flowgate/internal/metrics"
	"github.com/flowgate/flowgate/types"
)

// Confirmer approves individual steps when step confirmation is enabled.
type Confirmer interface {
	Confirm(ctx context.Context, step *WorkflowStep) (bool, error)
}

// Engine owns the registered workflow definitions and drives executions
// through the step state machine in dependency order.
//
// The registry is safe for concurrent reads from many simultaneous
// executions; registration writes are serialized. Definitions are
// immutable once registered: re-registering an id swaps the stored
// pointer and leaves in-flight executions on their snapshot.
type Engine struct {
	mu         sync.RWMutex
	workflows  map[string]*Workflow
	executions map[string]*executionState

	executors *ExecutorRegistry
	gates     *gate.Registry
	collector *metrics.Collector
	limiter   *rate.Limiter
	confirmer Confirmer
	logger    *zap.Logger
}

// executionState tracks one running ExecuteWorkflow call.
type executionState struct {
	mu          sync.Mutex
	executionID string
	workflowID  string
	status      ExecutionStatus
	current     int
	total       int
	inputs      map[string]string
	results     map[string]*StepResult
	skip        map[string]string // step id -> upstream step that caused the skip
	startTime   time.Time
}

func (s *executionState) setStatus(status ExecutionStatus) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()
}

func (s *executionState) setResult(stepID string, res *StepResult) {
	s.mu.Lock()
	s.results[stepID] = res
	s.mu.Unlock()
}

func (s *executionState) result(stepID string) (*StepResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, ok := s.results[stepID]
	return res, ok
}

func (s *executionState) summary() ExecutionSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ExecutionSummary{
		ExecutionID: s.executionID,
		WorkflowID:  s.workflowID,
		Status:      s.status,
		CurrentStep: s.current,
		TotalSteps:  s.total,
		StartTime:   s.startTime,
	}
}

// NewEngine creates an execution engine. The executor registry decides
// which step types are accepted at registration time; the gate registry
// may be nil when gates are unused.
func NewEngine(executors *ExecutorRegistry, gates *gate.Registry, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		workflows:  make(map[string]*Workflow),
		executions: make(map[string]*executionState),
		executors:  executors,
		gates:      gates,
		logger:     logger.With(zap.String("component", "workflow_engine")),
	}
}

// WithCollector attaches a metrics collector. Nil disables metrics.
func (e *Engine) WithCollector(c *metrics.Collector) *Engine {
	e.collector = c
	return e
}

// WithRateLimit bounds how often step executors are dispatched.
func (e *Engine) WithRateLimit(limit rate.Limit, burst int) *Engine {
	e.limiter = rate.NewLimiter(limit, burst)
	return e
}

// WithConfirmer installs the step confirmation hook.
func (e *Engine) WithConfirmer(c Confirmer) *Engine {
	e.confirmer = c
	return e
}

// RegisterWorkflow validates and stores a workflow definition, returning
// its id. Validation reports every violation found; nothing is stored on
// failure. Registering an existing id replaces the definition without
// disturbing executions already in flight.
func (e *Engine) RegisterWorkflow(wf Workflow) (string, error) {
	verr := types.NewValidationError("workflow " + wf.ID)

	if wf.ID == "" {
		verr.Add("workflow id is empty")
	}
	if wf.Name == "" {
		verr.Add("workflow name is empty")
	}

	stepIDs := make(map[string]bool, len(wf.Steps))
	for i := range wf.Steps {
		step := &wf.Steps[i]
		stepIDs[step.ID] = true
		if step.Type == "" {
			verr.Add("step %q has no type", step.ID)
			continue
		}
		if _, ok := e.executors.Resolve(step.Type); !ok {
			verr.Add("step %q has unknown type %q", step.ID, step.Type)
		}
	}

	for i := range wf.Gates {
		g := &wf.Gates[i]
		known := func(k gate.Kind) bool { return e.gates != nil && e.gates.KnownKind(k) }
		if gverr := g.Validate(known); gverr != nil {
			verr.Violations = append(verr.Violations, gverr.Violations...)
		}
		for _, stepID := range g.StepIDs {
			if !stepIDs[stepID] {
				verr.Add("gate %q applies to unknown step %q", g.ID, stepID)
			}
		}
	}

	graph, gerr := BuildGraph(wf.Steps)
	if gerr != nil {
		verr.Violations = append(verr.Violations, gerr.Violations...)
	}

	if verr.HasViolations() {
		return "", verr
	}

	if wf.Retry.Backoff == "" {
		wf.Retry = DefaultRetryPolicy()
	}
	wf.graph = graph

	stored := wf
	e.mu.Lock()
	e.workflows[wf.ID] = &stored
	e.mu.Unlock()

	e.logger.Info("workflow registered",
		zap.String("workflow_id", wf.ID),
		zap.Int("steps", len(wf.Steps)),
		zap.Int("gates", len(wf.Gates)),
	)
	return wf.ID, nil
}

// Workflow returns a registered definition snapshot.
func (e *Engine) Workflow(id string) (*Workflow, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	wf, ok := e.workflows[id]
	return wf, ok
}

// ListWorkflows returns summaries of every registered workflow.
func (e *Engine) ListWorkflows() []WorkflowSummary {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]WorkflowSummary, 0, len(e.workflows))
	for _, wf := range e.workflows {
		out = append(out, WorkflowSummary{
			ID:       wf.ID,
			Name:     wf.Name,
			Version:  wf.Version,
			Steps:    len(wf.Steps),
			Gates:    len(wf.Gates),
			Tags:     wf.Metadata.Tags,
			Runtimes: wf.Metadata.Runtimes,
		})
	}
	return out
}

// ActiveExecutions returns summaries of executions currently in flight.
func (e *Engine) ActiveExecutions() []ExecutionSummary {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]ExecutionSummary, 0, len(e.executions))
	for _, state := range e.executions {
		out = append(out, state.summary())
	}
	return out
}

// ExecuteWorkflow runs a registered workflow to completion and returns
// the aggregate result. Only an unknown workflow id is returned as an
// error; step failures are captured in the result.
func (e *Engine) ExecuteWorkflow(ctx context.Context, workflowID string, inputs map[string]string, opts Options, runtime string) (*ExecutionResult, error) {
	wf, ok := e.Workflow(workflowID)
	if !ok {
		return nil, types.NewNotFoundError("workflow", workflowID)
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	state := &executionState{
		executionID: uuid.New().String(),
		workflowID:  wf.ID,
		status:      ExecutionRunning,
		total:       wf.graph.Len(),
		inputs:      inputs,
		results:     make(map[string]*StepResult, wf.graph.Len()),
		skip:        make(map[string]string),
		startTime:   time.Now(),
	}

	e.mu.Lock()
	e.executions[state.executionID] = state
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		delete(e.executions, state.executionID)
		e.mu.Unlock()
	}()

	e.logger.Info("starting workflow execution",
		zap.String("workflow_id", wf.ID),
		zap.String("execution_id", state.executionID),
		zap.Int("steps", state.total),
		zap.Bool("gate_validation", opts.GateValidation),
	)

	var firstErr *types.Error
	if opts.MaxParallel > 1 {
		firstErr = e.runParallel(ctx, wf, state, opts, runtime)
	} else {
		firstErr = e.runSequential(ctx, wf, state, opts, runtime)
	}

	result := e.finishExecution(wf, state, firstErr)
	return result, nil
}

// runSequential drives the steps strictly in the deterministic
// topological order. This is the conformance baseline.
func (e *Engine) runSequential(ctx context.Context, wf *Workflow, state *executionState, opts Options, runtime string) *types.Error {
	var firstErr *types.Error

	for idx, stepID := range wf.graph.Order() {
		state.mu.Lock()
		state.current = idx
		state.mu.Unlock()

		if cause, skipped := state.skipCause(stepID); skipped {
			state.setResult(stepID, &StepResult{
				StepID: stepID,
				Status: StepSkipped,
				Error:  fmt.Sprintf("skipped: upstream step %q failed", cause),
			})
			continue
		}

		step, _ := wf.Step(stepID)
		res := e.runStep(ctx, wf, step, idx, state, opts, runtime)
		state.setResult(stepID, res)

		if res.Status == StepFailed {
			if firstErr == nil {
				firstErr = types.NewError(types.ErrExecution, res.Error).WithStep(stepID)
			}
			if step.OnError != OnErrorContinue {
				state.markDependentsSkipped(wf.graph, stepID)
			}
		}
	}

	return firstErr
}

// runParallel executes independent ready steps concurrently in waves,
// bounded by MaxParallel. Wave membership follows the deterministic
// topological order, so replays with deterministic executors schedule
// identically.
func (e *Engine) runParallel(ctx context.Context, wf *Workflow, state *executionState, opts Options, runtime string) *types.Error {
	order := wf.graph.Order()
	indexOf := make(map[string]int, len(order))
	for i, id := range order {
		indexOf[id] = i
	}

	var firstErr *types.Error
	done := make(map[string]bool, len(order))

	for len(done) < len(order) {
		var wave []string
		for _, stepID := range order {
			if done[stepID] {
				continue
			}
			ready := true
			for _, dep := range wf.graph.Dependencies(stepID) {
				if !done[dep] {
					ready = false
					break
				}
			}
			if ready {
				wave = append(wave, stepID)
			}
		}
		if len(wave) == 0 {
			break
		}

		// Progress points at the first in-flight step of the wave, which
		// is the lowest topological index since waves are built in order.
		state.mu.Lock()
		state.current = indexOf[wave[0]]
		state.mu.Unlock()

		group, groupCtx := errgroup.WithContext(ctx)
		group.SetLimit(opts.MaxParallel)

		for _, stepID := range wave {
			stepID := stepID
			group.Go(func() error {
				if cause, skipped := state.skipCause(stepID); skipped {
					state.setResult(stepID, &StepResult{
						StepID: stepID,
						Status: StepSkipped,
						Error:  fmt.Sprintf("skipped: upstream step %q failed", cause),
					})
					return nil
				}
				step, _ := wf.Step(stepID)
				res := e.runStep(groupCtx, wf, step, indexOf[stepID], state, opts, runtime)
				state.setResult(stepID, res)
				return nil
			})
		}
		// Workers never return errors; failures land in step results.
		_ = group.Wait()

		for _, stepID := range wave {
			done[stepID] = true
			res, _ := state.result(stepID)
			if res != nil && res.Status == StepFailed {
				if firstErr == nil {
					firstErr = types.NewError(types.ErrExecution, res.Error).WithStep(stepID)
				}
				step, _ := wf.Step(stepID)
				if step.OnError != OnErrorContinue {
					state.markDependentsSkipped(wf.graph, stepID)
				}
			}
		}
	}

	return firstErr
}

func (s *executionState) skipCause(stepID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cause, ok := s.skip[stepID]
	return cause, ok
}

func (s *executionState) markDependentsSkipped(g *DependencyGraph, failedID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, dep := range g.TransitiveDependents(failedID) {
		if _, exists := s.skip[dep]; !exists {
			s.skip[dep] = failedID
		}
	}
}

// runStep drives one step through the state machine, including retries,
// timeout, gate validation, and gate failure actions.
func (e *Engine) runStep(ctx context.Context, wf *Workflow, step *WorkflowStep, stepIndex int, state *executionState, opts Options, runtime string) *StepResult {
	result := &StepResult{
		StepID:    step.ID,
		Status:    StepRunning,
		StartedAt: time.Now(),
	}
	defer func() { result.FinishedAt = time.Now() }()

	if opts.StepConfirmation && e.confirmer != nil {
		approved, err := e.confirmer.Confirm(ctx, step)
		if err != nil || !approved {
			result.Status = StepSkipped
			result.Error = "step not confirmed"
			return result
		}
	}

	resolvedInputs, err := e.resolveStepInputs(step, state)
	if err != nil {
		result.Status = StepFailed
		result.Error = err.Error()
		return result
	}

	executor, _ := e.executors.Resolve(step.Type)
	policy := wf.StepPolicy(step)
	attempt := 0

	for {
		content, execErr := e.executeAttempt(ctx, executor, step, resolvedInputs)
		if execErr != nil {
			attempt++
			if policy.ShouldRetry(attempt, execErr) && ctx.Err() == nil {
				result.Status = StepRetrying
				result.Retries = attempt
				e.observeRetry(step)
				e.logger.Warn("step failed, retrying",
					zap.String("step_id", step.ID),
					zap.Int("attempt", attempt),
					zap.Error(execErr),
				)
				if waitErr := waitBackoff(ctx, policy, attempt); waitErr != nil {
					result.Status = StepFailed
					result.Error = types.NewTimeoutError(step.ID, waitErr).Error()
					return result
				}
				continue
			}
			result.Status = StepFailed
			result.Error = execErr.Error()
			e.observeStep(step, string(StepFailed), result.StartedAt)
			return result
		}

		result.Content = content

		if !opts.GateValidation || e.gates == nil {
			result.Status = StepCompleted
			e.observeStep(step, string(StepCompleted), result.StartedAt)
			return result
		}

		gateOutcome := e.validateGates(ctx, wf, step, stepIndex, state, runtime, content, result)
		switch gateOutcome {
		case gatePassed:
			result.Status = StepCompleted
			e.observeStep(step, string(StepCompleted), result.StartedAt)
			return result

		case gateRetryStep:
			attempt++
			if attempt > policy.MaxRetries {
				result.Status = StepFailed
				result.Error = types.NewError(types.ErrGateFailure,
					fmt.Sprintf("gate failed and retry budget exhausted after %d attempts", attempt)).
					WithStep(step.ID).Error()
				e.observeStep(step, string(StepFailed), result.StartedAt)
				return result
			}
			result.Status = StepRetrying
			result.Retries = attempt
			e.observeRetry(step)
			if waitErr := waitBackoff(ctx, policy, attempt); waitErr != nil {
				result.Status = StepFailed
				result.Error = types.NewTimeoutError(step.ID, waitErr).Error()
				return result
			}
			continue

		case gateSkipStep:
			// The step's output is discarded; dependents continue with
			// the empty default. Callers see this via the skipped status
			// and the attached gate result.
			result.Status = StepSkipped
			result.Content = ""
			e.observeStep(step, string(StepSkipped), result.StartedAt)
			return result

		case gateRollback:
			if comp, ok := executor.(Compensator); ok {
				if compErr := comp.Compensate(ctx, step, result); compErr != nil {
					e.logger.Error("compensation failed",
						zap.String("step_id", step.ID),
						zap.Error(compErr),
					)
				}
				result.Status = StepFailed
				result.Error = types.NewError(types.ErrGateFailure, "gate failed, step rolled back").
					WithStep(step.ID).Error()
			} else {
				result.Status = StepFailed
				result.Error = types.NewError(types.ErrRollbackUnsupported,
					"gate requested rollback but the step executor implements no undo hook").
					WithStep(step.ID).Error()
			}
			e.observeStep(step, string(StepFailed), result.StartedAt)
			return result

		default: // gateStop
			result.Status = StepFailed
			result.Error = types.NewError(types.ErrGateFailure, "gate failed").
				WithStep(step.ID).Error()
			e.observeStep(step, string(StepFailed), result.StartedAt)
			return result
		}
	}
}

// executeAttempt runs the external executor once under the step timeout
// and classifies timeouts as retryable errors.
func (e *Engine) executeAttempt(ctx context.Context, executor StepExecutor, step *WorkflowStep, inputs map[string]string) (string, error) {
	stepCtx := ctx
	if step.Timeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, step.Timeout)
		defer cancel()
	}

	if e.limiter != nil {
		if err := e.limiter.Wait(stepCtx); err != nil {
			return "", types.NewTimeoutError(step.ID, err)
		}
	}

	content, err := executor.Execute(stepCtx, step, inputs)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(stepCtx.Err(), context.DeadlineExceeded) {
			return "", types.NewTimeoutError(step.ID, err)
		}
		if typed, ok := err.(*types.Error); ok {
			return "", typed
		}
		return "", types.NewError(types.ErrExecution, "step executor failed").
			WithStep(step.ID).
			WithCause(err).
			WithRetryable(true)
	}
	return content, nil
}

type gateVerdict int

const (
	gatePassed gateVerdict = iota
	gateStop
	gateRetryStep
	gateSkipStep
	gateRollback
)

// validateGates evaluates every gate covering the step. The first failing
// gate decides the verdict via its failure action; its evaluation result
// is attached to the step result either way.
func (e *Engine) validateGates(ctx context.Context, wf *Workflow, step *WorkflowStep, stepIndex int, state *executionState, runtime, content string, result *StepResult) gateVerdict {
	gates := wf.GatesFor(step.ID)
	if len(gates) == 0 {
		return gatePassed
	}

	result.Status = StepWaitingGate
	state.setStatus(ExecutionWaitingGate)
	defer state.setStatus(ExecutionRunning)

	for _, def := range gates {
		if ctx.Err() != nil {
			return gateStop
		}

		eval := e.gates.Evaluate(def, content, gate.Context{
			WorkflowID:  wf.ID,
			ExecutionID: state.executionID,
			StepID:      step.ID,
			StepIndex:   stepIndex,
			TotalSteps:  state.total,
			Runtime:     runtime,
		})
		result.Gate = eval

		if eval.Passed {
			continue
		}

		e.logger.Warn("gate failed",
			zap.String("gate_id", def.ID),
			zap.String("step_id", step.ID),
			zap.Float64("score", eval.Score),
			zap.String("failure_action", string(def.FailureAction)),
		)

		switch def.FailureAction {
		case gate.FailureRetry:
			return gateRetryStep
		case gate.FailureSkip:
			return gateSkipStep
		case gate.FailureRollback:
			return gateRollback
		default:
			return gateStop
		}
	}

	return gatePassed
}

// resolveStepInputs materializes executor arguments from prior results.
func (e *Engine) resolveStepInputs(step *WorkflowStep, state *executionState) (map[string]string, error) {
	state.mu.Lock()
	defer state.mu.Unlock()
	return resolveInputs(step, state.inputs, state.results)
}

// finishExecution aggregates step results into the final verdict.
func (e *Engine) finishExecution(wf *Workflow, state *executionState, firstErr *types.Error) *ExecutionResult {
	state.mu.Lock()
	defer state.mu.Unlock()

	result := &ExecutionResult{
		ExecutionID: state.executionID,
		WorkflowID:  wf.ID,
		Status:      ExecutionCompleted,
		StepResults: state.results,
		StartTime:   state.startTime,
		EndTime:     time.Now(),
	}

	if firstErr != nil {
		result.Status = ExecutionFailed
		result.Error = firstErr.Error()
	}
	state.status = result.Status

	for _, stepID := range wf.graph.Order() {
		if res, ok := state.results[stepID]; ok && res.Status == StepCompleted {
			result.FinalResult = res.Content
		}
	}

	if e.collector != nil {
		e.collector.ObserveWorkflowExecution(wf.ID, string(result.Status), result.EndTime.Sub(result.StartTime))
	}

	e.logger.Info("workflow execution finished",
		zap.String("workflow_id", wf.ID),
		zap.String("execution_id", state.executionID),
		zap.String("status", string(result.Status)),
		zap.Duration("duration", result.EndTime.Sub(result.StartTime)),
	)
	return result
}

func (e *Engine) observeStep(step *WorkflowStep, status string, startedAt time.Time) {
	if e.collector != nil {
		e.collector.ObserveStepExecution(string(step.Type), status, time.Since(startedAt))
	}
}

func (e *Engine) observeRetry(step *WorkflowStep) {
	if e.collector != nil {
		e.collector.ObserveStepRetry(string(step.Type))
	}
}
