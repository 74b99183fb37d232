package server

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/flowgate/flowgate/gate"
	"github.com/flowgate/flowgate/history"
	"github.com/flowgate/flowgate/workflow"
)

// Server exposes the workflow engine and gate registry as MCP tools
// over stdio.
type Server struct {
	engine    *workflow.Engine
	gates     *gate.Registry
	store     history.Store
	defaults  workflow.Options
	logger    *zap.Logger
	mcpServer *server.MCPServer
}

// NewServer wires the engine, gate registry, and history store into an
// MCP tool surface.
func NewServer(engine *workflow.Engine, gates *gate.Registry, store history.Store, version string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		engine:   engine,
		gates:    gates,
		store:    store,
		defaults: workflow.DefaultOptions(),
		logger:   logger.With(zap.String("component", "mcp_server")),
	}

	mcpServer := server.NewMCPServer(
		"flowgate",
		version,
		server.WithToolCapabilities(true),
	)
	s.registerTools(mcpServer)
	s.mcpServer = mcpServer
	return s
}

// WithExecutionDefaults sets the execution options used when a tool call
// does not override them.
func (s *Server) WithExecutionDefaults(opts workflow.Options) *Server {
	s.defaults = opts
	return s
}

// ServeStdio blocks serving MCP over stdin/stdout.
func (s *Server) ServeStdio() error {
	s.logger.Info("serving MCP over stdio")
	return server.ServeStdio(s.mcpServer)
}

// getArgs extracts arguments from a request as map[string]any.
func getArgs(request mcp.CallToolRequest) map[string]any {
	if args, ok := request.Params.Arguments.(map[string]any); ok {
		return args
	}
	return make(map[string]any)
}

func (s *Server) registerTools(mcpServer *server.MCPServer) {
	registerWorkflowTool := mcp.NewTool("register_workflow",
		mcp.WithDescription("Validate and register a workflow definition from a YAML or JSON document. Returns the workflow id, or every validation violation at once."),
		mcp.WithString("document",
			mcp.Required(),
			mcp.Description("The workflow definition document (YAML or JSON)"),
		),
	)
	mcpServer.AddTool(registerWorkflowTool, s.handleRegisterWorkflow)

	executeWorkflowTool := mcp.NewTool("execute_workflow",
		mcp.WithDescription("Execute a registered workflow and return the aggregate result, including per-step outcomes and gate evaluations."),
		mcp.WithString("workflow_id",
			mcp.Required(),
			mcp.Description("Id of a registered workflow"),
		),
		mcp.WithObject("inputs",
			mcp.Description("Workflow input values, name to string value"),
		),
		mcp.WithString("runtime",
			mcp.Description("Target runtime selecting gate criteria overrides"),
		),
		mcp.WithBoolean("gate_validation",
			mcp.Description("Whether gates are evaluated (default true)"),
		),
		mcp.WithBoolean("step_confirmation",
			mcp.Description("Whether each step pauses for the engine's confirmation hook"),
		),
		mcp.WithString("timeout",
			mcp.Description("Overall execution timeout as a duration string, e.g. \"5m\""),
		),
		mcp.WithNumber("max_parallel",
			mcp.Description("Run up to this many independent steps concurrently (default sequential)"),
		),
	)
	mcpServer.AddTool(executeWorkflowTool, s.handleExecuteWorkflow)

	listWorkflowsTool := mcp.NewTool("list_workflows",
		mcp.WithDescription("List every registered workflow with step and gate counts."),
	)
	mcpServer.AddTool(listWorkflowsTool, s.handleListWorkflows)

	activeExecutionsTool := mcp.NewTool("active_executions",
		mcp.WithDescription("List executions currently in flight with their progress."),
	)
	mcpServer.AddTool(activeExecutionsTool, s.handleActiveExecutions)

	executionHistoryTool := mcp.NewTool("execution_history",
		mcp.WithDescription("Return the most recent execution results for a workflow, newest first."),
		mcp.WithString("workflow_id",
			mcp.Required(),
			mcp.Description("Id of the workflow"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results (default 10)"),
		),
	)
	mcpServer.AddTool(executionHistoryTool, s.handleExecutionHistory)

	registerGateTool := mcp.NewTool("register_gate",
		mcp.WithDescription("Validate and register a standalone quality gate definition from a YAML or JSON document."),
		mcp.WithString("document",
			mcp.Required(),
			mcp.Description("The gate definition document (YAML or JSON)"),
		),
	)
	mcpServer.AddTool(registerGateTool, s.handleRegisterGate)

	evaluateGateTool := mcp.NewTool("evaluate_gate",
		mcp.WithDescription("Evaluate a registered standalone gate against a piece of content and return the weighted verdict with hints."),
		mcp.WithString("gate_id",
			mcp.Required(),
			mcp.Description("Id of a registered gate"),
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("The content to evaluate"),
		),
		mcp.WithString("runtime",
			mcp.Description("Target runtime selecting criteria overrides"),
		),
	)
	mcpServer.AddTool(evaluateGateTool, s.handleEvaluateGate)

	gateStatsTool := mcp.NewTool("gate_stats",
		mcp.WithDescription("Return evaluation statistics for a gate: evaluation count, success rate, average evaluation time."),
		mcp.WithString("gate_id",
			mcp.Required(),
			mcp.Description("Id of a registered gate"),
		),
	)
	mcpServer.AddTool(gateStatsTool, s.handleGateStats)
}

func (s *Server) handleRegisterWorkflow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)
	document, _ := args["document"].(string)
	if document == "" {
		return mcp.NewToolResultError("document parameter is required"), nil
	}

	wf, err := workflow.LoadWorkflow([]byte(document))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	id, err := s.engine.RegisterWorkflow(wf)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("workflow %q registered", id)), nil
}

func (s *Server) handleExecuteWorkflow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)
	workflowID, _ := args["workflow_id"].(string)
	if workflowID == "" {
		return mcp.NewToolResultError("workflow_id parameter is required"), nil
	}

	inputs := make(map[string]string)
	if raw, ok := args["inputs"].(map[string]any); ok {
		for name, value := range raw {
			inputs[name] = fmt.Sprint(value)
		}
	}

	opts := s.defaults
	if gv, ok := args["gate_validation"].(bool); ok {
		opts.GateValidation = gv
	}
	if sc, ok := args["step_confirmation"].(bool); ok {
		opts.StepConfirmation = sc
	}
	if raw, ok := args["timeout"].(string); ok && raw != "" {
		timeout, err := time.ParseDuration(raw)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("timeout %q is not a valid duration", raw)), nil
		}
		opts.Timeout = timeout
	}
	if mp, ok := args["max_parallel"].(float64); ok {
		opts.MaxParallel = int(mp)
	}
	runtime, _ := args["runtime"].(string)

	result, err := s.engine.ExecuteWorkflow(ctx, workflowID, inputs, opts, runtime)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if s.store != nil {
		if err := s.store.Save(ctx, result); err != nil {
			s.logger.Warn("failed to save execution history",
				zap.String("execution_id", result.ExecutionID),
				zap.Error(err),
			)
		}
	}

	return jsonResult(result)
}

func (s *Server) handleListWorkflows(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.engine.ListWorkflows())
}

func (s *Server) handleActiveExecutions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.engine.ActiveExecutions())
}

func (s *Server) handleExecutionHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)
	workflowID, _ := args["workflow_id"].(string)
	if workflowID == "" {
		return mcp.NewToolResultError("workflow_id parameter is required"), nil
	}
	if s.store == nil {
		return mcp.NewToolResultError("execution history is not configured"), nil
	}

	limit := 10
	if raw, ok := args["limit"].(float64); ok && raw > 0 {
		limit = int(raw)
	}

	results, err := s.store.ListByWorkflow(ctx, workflowID, limit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(results)
}

func (s *Server) handleRegisterGate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)
	document, _ := args["document"].(string)
	if document == "" {
		return mcp.NewToolResultError("document parameter is required"), nil
	}

	var def gate.Definition
	if err := yaml.Unmarshal([]byte(document), &def); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("gate document is not valid YAML or JSON: %v", err)), nil
	}

	id, err := s.gates.RegisterGate(def)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("gate %q registered", id)), nil
}

func (s *Server) handleEvaluateGate(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)
	gateID, _ := args["gate_id"].(string)
	if gateID == "" {
		return mcp.NewToolResultError("gate_id parameter is required"), nil
	}
	content, _ := args["content"].(string)
	if content == "" {
		return mcp.NewToolResultError("content parameter is required"), nil
	}
	runtime, _ := args["runtime"].(string)

	result, err := s.gates.EvaluateGate(gateID, content, gate.Context{Runtime: runtime})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(result)
}

func (s *Server) handleGateStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)
	gateID, _ := args["gate_id"].(string)
	if gateID == "" {
		return mcp.NewToolResultError("gate_id parameter is required"), nil
	}

	stats, ok := s.gates.Stats(gateID)
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("gate %q has no recorded evaluations", gateID)), nil
	}
	return jsonResult(stats)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to render result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
