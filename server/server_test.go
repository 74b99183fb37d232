package server

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/flowgate/flowgate/gate"
	"github.com/flowgate/flowgate/history"
	"github.com/flowgate/flowgate/workflow"
)

func callRequest(args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func testServer(t *testing.T) *Server {
	t.Helper()

	executors := workflow.NewExecutorRegistry()
	executors.Register(workflow.StepTypeTool, workflow.StepExecutorFunc(
		func(ctx context.Context, step *workflow.WorkflowStep, inputs map[string]string) (string, error) {
			if out, ok := step.Config["output"].(string); ok {
				return out, nil
			}
			return "done", nil
		}))

	gates := gate.NewRegistry(zap.NewNop())
	engine := workflow.NewEngine(executors, gates, zap.NewNop())
	return NewServer(engine, gates, history.NewMemoryStore(10), "0.0.0-test", zap.NewNop())
}

const workflowDoc = `
id: demo
name: demo flow
steps:
  - id: produce
    type: tool
    config:
      output: hello from the pipeline
`

func TestHandleRegisterWorkflow(t *testing.T) {
	t.Parallel()
	s := testServer(t)

	res, err := s.handleRegisterWorkflow(context.Background(),
		callRequest(map[string]any{"document": workflowDoc}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Contains(t, resultText(t, res), `workflow "demo" registered`)
}

func TestHandleRegisterWorkflow_ReportsViolations(t *testing.T) {
	t.Parallel()
	s := testServer(t)

	doc := `
id: broken
name: broken
steps:
  - id: a
    type: tool
    dependencies: [b]
  - id: b
    type: tool
    dependencies: [a]
`
	res, err := s.handleRegisterWorkflow(context.Background(),
		callRequest(map[string]any{"document": doc}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "cycle detected")
}

func TestHandleRegisterWorkflow_MissingDocument(t *testing.T) {
	t.Parallel()
	s := testServer(t)

	res, err := s.handleRegisterWorkflow(context.Background(), callRequest(nil))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestHandleExecuteWorkflow(t *testing.T) {
	t.Parallel()
	s := testServer(t)

	_, err := s.handleRegisterWorkflow(context.Background(),
		callRequest(map[string]any{"document": workflowDoc}))
	require.NoError(t, err)

	res, err := s.handleExecuteWorkflow(context.Background(),
		callRequest(map[string]any{"workflow_id": "demo"}))
	require.NoError(t, err)
	require.False(t, res.IsError)

	var result workflow.ExecutionResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &result))
	assert.Equal(t, workflow.ExecutionCompleted, result.Status)
	assert.Equal(t, "hello from the pipeline", result.FinalResult)

	// The execution lands in history.
	hist, err := s.handleExecutionHistory(context.Background(),
		callRequest(map[string]any{"workflow_id": "demo"}))
	require.NoError(t, err)
	assert.Contains(t, resultText(t, hist), result.ExecutionID)
}

func TestHandleExecuteWorkflow_InvalidTimeout(t *testing.T) {
	t.Parallel()
	s := testServer(t)

	_, err := s.handleRegisterWorkflow(context.Background(),
		callRequest(map[string]any{"document": workflowDoc}))
	require.NoError(t, err)

	res, err := s.handleExecuteWorkflow(context.Background(), callRequest(map[string]any{
		"workflow_id": "demo",
		"timeout":     "five minutes",
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "not a valid duration")

	res, err = s.handleExecuteWorkflow(context.Background(), callRequest(map[string]any{
		"workflow_id": "demo",
		"timeout":     "5s",
	}))
	require.NoError(t, err)
	assert.False(t, res.IsError)
}

// rejectAll vetoes every step confirmation.
type rejectAll struct{}

func (rejectAll) Confirm(ctx context.Context, step *workflow.WorkflowStep) (bool, error) {
	return false, nil
}

func TestHandleExecuteWorkflow_StepConfirmation(t *testing.T) {
	t.Parallel()

	executors := workflow.NewExecutorRegistry()
	executors.Register(workflow.StepTypeTool, workflow.StepExecutorFunc(
		func(ctx context.Context, step *workflow.WorkflowStep, inputs map[string]string) (string, error) {
			return "done", nil
		}))
	gates := gate.NewRegistry(zap.NewNop())
	engine := workflow.NewEngine(executors, gates, zap.NewNop()).WithConfirmer(rejectAll{})
	s := NewServer(engine, gates, history.NewMemoryStore(10), "0.0.0-test", zap.NewNop())

	_, err := s.handleRegisterWorkflow(context.Background(),
		callRequest(map[string]any{"document": workflowDoc}))
	require.NoError(t, err)

	res, err := s.handleExecuteWorkflow(context.Background(), callRequest(map[string]any{
		"workflow_id":       "demo",
		"step_confirmation": true,
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)

	var result workflow.ExecutionResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &result))
	assert.Equal(t, workflow.StepSkipped, result.StepResults["produce"].Status)
}

func TestHandleExecuteWorkflow_UnknownID(t *testing.T) {
	t.Parallel()
	s := testServer(t)

	res, err := s.handleExecuteWorkflow(context.Background(),
		callRequest(map[string]any{"workflow_id": "ghost"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "not found")
}

func TestHandleListWorkflows(t *testing.T) {
	t.Parallel()
	s := testServer(t)

	_, err := s.handleRegisterWorkflow(context.Background(),
		callRequest(map[string]any{"document": workflowDoc}))
	require.NoError(t, err)

	res, err := s.handleListWorkflows(context.Background(), callRequest(nil))
	require.NoError(t, err)

	var summaries []workflow.WorkflowSummary
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &summaries))
	require.Len(t, summaries, 1)
	assert.Equal(t, "demo", summaries[0].ID)
	assert.Equal(t, 1, summaries[0].Steps)
}

func TestHandleActiveExecutions_EmptyByDefault(t *testing.T) {
	t.Parallel()
	s := testServer(t)

	res, err := s.handleActiveExecutions(context.Background(), callRequest(nil))
	require.NoError(t, err)
	assert.False(t, res.IsError)

	var active []workflow.ExecutionSummary
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &active))
	assert.Empty(t, active)
}

const gateDoc = `
id: quality-check
type: quality
requirements:
  - kind: content_length
    criteria:
      length:
        min: 10
  - kind: keyword_presence
    optional: true
    criteria:
      keywords:
        keywords: [pipeline]
`

func TestHandleRegisterAndEvaluateGate(t *testing.T) {
	t.Parallel()
	s := testServer(t)

	res, err := s.handleRegisterGate(context.Background(),
		callRequest(map[string]any{"document": gateDoc}))
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res))

	eval, err := s.handleEvaluateGate(context.Background(), callRequest(map[string]any{
		"gate_id": "quality-check",
		"content": "hello from the pipeline",
	}))
	require.NoError(t, err)
	require.False(t, eval.IsError)

	var verdict gate.EvaluationResult
	require.NoError(t, json.Unmarshal([]byte(resultText(t, eval)), &verdict))
	assert.True(t, verdict.Passed)
	assert.Equal(t, 1.0, verdict.Score)
}

func TestHandleGateStats(t *testing.T) {
	t.Parallel()
	s := testServer(t)

	_, err := s.handleRegisterGate(context.Background(),
		callRequest(map[string]any{"document": gateDoc}))
	require.NoError(t, err)

	// No evaluations yet.
	res, err := s.handleGateStats(context.Background(),
		callRequest(map[string]any{"gate_id": "quality-check"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)

	_, err = s.handleEvaluateGate(context.Background(), callRequest(map[string]any{
		"gate_id": "quality-check",
		"content": "hello from the pipeline",
	}))
	require.NoError(t, err)

	res, err = s.handleGateStats(context.Background(),
		callRequest(map[string]any{"gate_id": "quality-check"}))
	require.NoError(t, err)
	require.False(t, res.IsError)

	var stats gate.Stats
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &stats))
	assert.Equal(t, int64(1), stats.Evaluations)
	assert.Equal(t, 1.0, stats.SuccessRate)
}

func TestHandleEvaluateGate_UnknownGate(t *testing.T) {
	t.Parallel()
	s := testServer(t)

	res, err := s.handleEvaluateGate(context.Background(), callRequest(map[string]any{
		"gate_id": "ghost",
		"content": "anything",
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.True(t, strings.Contains(resultText(t, res), "not found"))
}
