package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/flowgate/flowgate/types"
	"github.com/flowgate/flowgate/workflow"
)

// RedisConfig configures the Redis-backed store.
type RedisConfig struct {
	Addr      string `yaml:"addr" json:"addr"`
	Password  string `yaml:"password,omitempty" json:"password,omitempty"`
	DB        int    `yaml:"db,omitempty" json:"db,omitempty"`
	KeyPrefix string `yaml:"key_prefix,omitempty" json:"key_prefix,omitempty"`
	// Keep bounds retained records per workflow.
	Keep int `yaml:"keep,omitempty" json:"keep,omitempty"`
}

// RedisStore is the Redis-backed Store implementation, suitable for
// deployments where several engine processes share one history.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
	keep      int
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(cfg RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	keyPrefix := cfg.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "flowgate:"
	}
	keep := cfg.Keep
	if keep <= 0 {
		keep = DefaultKeepPerWorkflow
	}

	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix + "history:",
		keep:      keep,
	}, nil
}

// NewRedisStoreWithClient wraps an existing client, used by tests.
func NewRedisStoreWithClient(client *redis.Client, keep int) *RedisStore {
	if keep <= 0 {
		keep = DefaultKeepPerWorkflow
	}
	return &RedisStore{client: client, keyPrefix: "flowgate:history:", keep: keep}
}

func (s *RedisStore) recordKey(executionID string) string {
	return s.keyPrefix + "data:" + executionID
}

func (s *RedisStore) workflowKey(workflowID string) string {
	return s.keyPrefix + "workflow:" + workflowID
}

func (s *RedisStore) Save(ctx context.Context, result *workflow.ExecutionResult) error {
	if result == nil || result.ExecutionID == "" {
		return types.NewError(types.ErrValidation, "execution result has no execution id")
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal execution result: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.recordKey(result.ExecutionID), data, 0)
	pipe.RPush(ctx, s.workflowKey(result.WorkflowID), result.ExecutionID)

	// Evict the oldest ids beyond the cap, then trim the index.
	evicted := pipe.LRange(ctx, s.workflowKey(result.WorkflowID), 0, -int64(s.keep)-1)
	pipe.LTrim(ctx, s.workflowKey(result.WorkflowID), -int64(s.keep), -1)

	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}

	if old, err := evicted.Result(); err == nil && len(old) > 0 {
		keys := make([]string, 0, len(old))
		for _, id := range old {
			keys = append(keys, s.recordKey(id))
		}
		if err := s.client.Del(ctx, keys...).Err(); err != nil {
			return err
		}
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, executionID string) (*workflow.ExecutionResult, error) {
	data, err := s.client.Get(ctx, s.recordKey(executionID)).Bytes()
	if err == redis.Nil {
		return nil, errRecordNotFound(executionID)
	}
	if err != nil {
		return nil, err
	}

	var result workflow.ExecutionResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *RedisStore) ListByWorkflow(ctx context.Context, workflowID string, limit int) ([]*workflow.ExecutionResult, error) {
	if limit <= 0 {
		limit = s.keep
	}

	ids, err := s.client.LRange(ctx, s.workflowKey(workflowID), -int64(limit), -1).Result()
	if err != nil {
		return nil, err
	}

	out := make([]*workflow.ExecutionResult, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		result, err := s.Get(ctx, ids[i])
		if err != nil {
			continue
		}
		out = append(out, result)
	}
	return out, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ Store = (*RedisStore)(nil)
