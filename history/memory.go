package history

import (
	"context"
	"sync"

	"github.com/flowgate/flowgate/types"
	"github.com/flowgate/flowgate/workflow"
)

// MemoryStore is the in-process Store implementation. Suitable for
// development and tests; data is lost on restart.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*workflow.ExecutionResult // execution id -> result
	byFlow  map[string][]string                  // workflow id -> execution ids, oldest first
	keep    int
	closed  bool
}

// NewMemoryStore creates an in-process store keeping at most keep
// records per workflow. A non-positive keep uses the default.
func NewMemoryStore(keep int) *MemoryStore {
	if keep <= 0 {
		keep = DefaultKeepPerWorkflow
	}
	return &MemoryStore{
		records: make(map[string]*workflow.ExecutionResult),
		byFlow:  make(map[string][]string),
		keep:    keep,
	}
}

func (s *MemoryStore) Save(ctx context.Context, result *workflow.ExecutionResult) error {
	if result == nil || result.ExecutionID == "" {
		return types.NewError(types.ErrValidation, "execution result has no execution id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if _, exists := s.records[result.ExecutionID]; !exists {
		s.byFlow[result.WorkflowID] = append(s.byFlow[result.WorkflowID], result.ExecutionID)
	}
	s.records[result.ExecutionID] = result

	// Evict the oldest records beyond the per-workflow cap.
	ids := s.byFlow[result.WorkflowID]
	for len(ids) > s.keep {
		delete(s.records, ids[0])
		ids = ids[1:]
	}
	s.byFlow[result.WorkflowID] = ids

	return nil
}

func (s *MemoryStore) Get(ctx context.Context, executionID string) (*workflow.ExecutionResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	result, ok := s.records[executionID]
	if !ok {
		return nil, errRecordNotFound(executionID)
	}
	return result, nil
}

func (s *MemoryStore) ListByWorkflow(ctx context.Context, workflowID string, limit int) ([]*workflow.ExecutionResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}
	if limit <= 0 {
		limit = s.keep
	}

	ids := s.byFlow[workflowID]
	out := make([]*workflow.ExecutionResult, 0, limit)
	for i := len(ids) - 1; i >= 0 && len(out) < limit; i-- {
		if result, ok := s.records[ids[i]]; ok {
			out = append(out, result)
		}
	}
	return out, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

var _ Store = (*MemoryStore)(nil)
