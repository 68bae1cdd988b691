package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const redisLedgerKey = "lead_relay:failure_ledger"

// RedisStore keeps the ledger in a single capped Redis list, so the report
// survives process restarts and is shared across replicas.
type RedisStore struct {
	redis  *redis.Client
	key    string
	cap    int64
	tracer trace.Tracer
}

// NewRedisStore creates a Redis-backed ledger.
func NewRedisStore(client *redis.Client, capacity int) *RedisStore {
	if client == nil {
		return nil
	}
	if capacity <= 0 {
		capacity = DefaultCap
	}
	return &RedisStore{
		redis:  client,
		key:    redisLedgerKey,
		cap:    int64(capacity),
		tracer: otel.Tracer("leadrelay.internal.ledger.redis"),
	}
}

var _ Store = (*RedisStore)(nil)

// Append pushes the entry and trims the list to the cap in one transaction.
func (s *RedisStore) Append(ctx context.Context, entry Entry) error {
	if ctx == nil {
		ctx = context.Background()
	}
	entry = stamp(entry)

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("ledger: marshal entry: %w", err)
	}

	ctx, span := s.tracer.Start(ctx, "ledger.redis.append")
	defer span.End()

	pipe := s.redis.TxPipeline()
	pipe.RPush(ctx, s.key, data)
	pipe.LTrim(ctx, s.key, -s.cap, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("ledger: append entry: %w", err)
	}
	return nil
}

// List returns all entries in insertion order.
func (s *RedisStore) List(ctx context.Context) ([]Entry, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := s.tracer.Start(ctx, "ledger.redis.list")
	defer span.End()

	raw, err := s.redis.LRange(ctx, s.key, 0, -1).Result()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("ledger: list entries: %w", err)
	}

	entries := make([]Entry, 0, len(raw))
	for _, item := range raw {
		var entry Entry
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			return nil, fmt.Errorf("ledger: decode entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Clear deletes the list. Idempotent.
func (s *RedisStore) Clear(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, span := s.tracer.Start(ctx, "ledger.redis.clear")
	defer span.End()

	if err := s.redis.Del(ctx, s.key).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("ledger: clear: %w", err)
	}
	return nil
}
