package history

import (
	"context"

	"github.com/flowgate/flowgate/types"
	"github.com/flowgate/flowgate/workflow"
)

// Store persists finished execution results for later inspection.
// Implementations keep at most a configured number of records per
// workflow and evict the oldest beyond that.
type Store interface {
	// Save persists one finished execution result.
	Save(ctx context.Context, result *workflow.ExecutionResult) error
	// Get retrieves a result by execution id.
	Get(ctx context.Context, executionID string) (*workflow.ExecutionResult, error)
	// ListByWorkflow returns the most recent results for a workflow,
	// newest first, at most limit entries.
	ListByWorkflow(ctx context.Context, workflowID string, limit int) ([]*workflow.ExecutionResult, error)
	// Ping checks whether the store is usable.
	Ping(ctx context.Context) error
	// Close releases the store's resources.
	Close() error
}

// DefaultKeepPerWorkflow bounds retained records per workflow when no
// explicit limit is configured.
const DefaultKeepPerWorkflow = 100

// ErrStoreClosed is returned by a store used after Close.
var ErrStoreClosed = types.NewError(types.ErrInternal, "history store is closed")

func errRecordNotFound(executionID string) error {
	return types.NewNotFoundError("execution", executionID)
}
