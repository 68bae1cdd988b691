package ledger

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// db is the subset of pgxpool.Pool the store needs; pgxmock satisfies it.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresStore keeps the ledger in the failure_entries table, capped by
// deleting the oldest rows after each insert.
type PostgresStore struct {
	db  db
	cap int
}

// NewPostgresStore creates a Postgres-backed ledger.
func NewPostgresStore(pool db, capacity int) *PostgresStore {
	if pool == nil {
		panic("ledger: pgx pool required")
	}
	if capacity <= 0 {
		capacity = DefaultCap
	}
	return &PostgresStore{db: pool, cap: capacity}
}

var _ Store = (*PostgresStore)(nil)

// Append inserts a row and evicts anything beyond the cap, oldest first.
func (s *PostgresStore) Append(ctx context.Context, entry Entry) error {
	entry = stamp(entry)

	raw, err := json.Marshal(entry.Raw)
	if err != nil {
		return fmt.Errorf("ledger: marshal raw record: %w", err)
	}

	insert := `
		INSERT INTO failure_entries (id, ts, zone, reason, raw)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := s.db.Exec(ctx, insert, entry.ID, entry.Timestamp, entry.Zone, entry.Reason, raw); err != nil {
		return fmt.Errorf("ledger: insert entry: %w", err)
	}

	evict := `
		DELETE FROM failure_entries
		WHERE seq NOT IN (
			SELECT seq FROM failure_entries ORDER BY seq DESC LIMIT $1
		)
	`
	if _, err := s.db.Exec(ctx, evict, s.cap); err != nil {
		return fmt.Errorf("ledger: evict oldest entries: %w", err)
	}
	return nil
}

// List returns all entries in insertion order.
func (s *PostgresStore) List(ctx context.Context) ([]Entry, error) {
	query := `
		SELECT id, ts, zone, reason, raw
		FROM failure_entries
		ORDER BY seq
	`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ledger: select entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var raw []byte
		if err := rows.Scan(&entry.ID, &entry.Timestamp, &entry.Zone, &entry.Reason, &raw); err != nil {
			return nil, fmt.Errorf("ledger: scan entry: %w", err)
		}
		if err := json.Unmarshal(raw, &entry.Raw); err != nil {
			return nil, fmt.Errorf("ledger: decode raw record: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: iterate entries: %w", err)
	}
	return entries, nil
}

// Clear deletes all rows. Idempotent.
func (s *PostgresStore) Clear(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, `DELETE FROM failure_entries`); err != nil {
		return fmt.Errorf("ledger: clear: %w", err)
	}
	return nil
}
