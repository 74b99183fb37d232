package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/flowgate/flowgate/workflow"
)

// defaultExecutors registers the built-in step executors. Hosts embedding
// the engine as a library register their own instead.
func defaultExecutors(logger *zap.Logger) *workflow.ExecutorRegistry {
	registry := workflow.NewExecutorRegistry()
	registry.Register(workflow.StepTypePrompt, workflow.StepExecutorFunc(runPromptStep))
	registry.Register(workflow.StepTypeTool, &commandExecutor{logger: logger.With(zap.String("component", "command_executor"))})
	registry.Register(workflow.StepTypeCondition, workflow.StepExecutorFunc(runConditionStep))
	registry.Register(workflow.StepTypeGate, workflow.StepExecutorFunc(runGateStep))
	registry.Register(workflow.StepTypeParallel, workflow.StepExecutorFunc(runParallelStep))
	return registry
}

// runPromptStep renders the step's template, substituting {{name}}
// placeholders with resolved inputs.
func runPromptStep(_ context.Context, step *workflow.WorkflowStep, inputs map[string]string) (string, error) {
	template, _ := step.Config["template"].(string)
	if template == "" {
		return "", fmt.Errorf("step %q has no template configured", step.ID)
	}

	rendered := template
	for name, value := range inputs {
		rendered = strings.ReplaceAll(rendered, "{{"+name+"}}", value)
	}
	if idx := strings.Index(rendered, "{{"); idx >= 0 {
		end := strings.Index(rendered[idx:], "}}")
		if end < 0 {
			end = len(rendered) - idx
		}
		return "", fmt.Errorf("step %q template references unbound placeholder %s", step.ID, rendered[idx:idx+end+2])
	}
	return rendered, nil
}

// commandExecutor runs tool steps as local commands. Inputs are exposed
// to the child process as FLOWGATE_INPUT_* environment variables.
type commandExecutor struct {
	logger *zap.Logger
}

func (e *commandExecutor) Execute(ctx context.Context, step *workflow.WorkflowStep, inputs map[string]string) (string, error) {
	command, _ := step.Config["command"].(string)
	if command == "" {
		return "", fmt.Errorf("step %q has no command configured", step.ID)
	}

	parts := strings.Fields(command)
	cmd := exec.CommandContext(ctx, parts[0], parts[1:]...)
	cmd.Env = os.Environ()
	for name, value := range inputs {
		key := "FLOWGATE_INPUT_" + strings.ToUpper(name)
		cmd.Env = append(cmd.Env, key+"="+value)
	}

	e.logger.Debug("Running tool command",
		zap.String("step_id", step.ID),
		zap.String("command", parts[0]),
	)

	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("step %q command exited %d: %s",
				step.ID, exitErr.ExitCode(), strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", fmt.Errorf("step %q command failed: %w", step.ID, err)
	}
	return strings.TrimSpace(string(out)), nil
}

// runConditionStep compares the "value" input against the configured
// expectation and reports "true" or "false".
func runConditionStep(_ context.Context, step *workflow.WorkflowStep, inputs map[string]string) (string, error) {
	expected, ok := step.Config["equals"].(string)
	if !ok {
		return "", fmt.Errorf("step %q has no equals condition configured", step.ID)
	}
	value, ok := inputs["value"]
	if !ok {
		return "", fmt.Errorf("step %q condition needs a value input", step.ID)
	}
	if value == expected {
		return "true", nil
	}
	return "false", nil
}

// runGateStep passes its content input through unchanged. The evaluation
// itself happens in the engine's gate phase against this output.
func runGateStep(_ context.Context, step *workflow.WorkflowStep, inputs map[string]string) (string, error) {
	if content, ok := inputs["content"]; ok {
		return content, nil
	}
	return joinInputs(inputs), nil
}

// runParallelStep merges the outputs of its fan-in dependencies.
func runParallelStep(_ context.Context, _ *workflow.WorkflowStep, inputs map[string]string) (string, error) {
	return joinInputs(inputs), nil
}

func joinInputs(inputs map[string]string) string {
	names := make([]string, 0, len(inputs))
	for name := range inputs {
		names = append(names, name)
	}
	sort.Strings(names)

	values := make([]string, 0, len(names))
	for _, name := range names {
		values = append(values, inputs[name])
	}
	return strings.Join(values, "\n")
}
