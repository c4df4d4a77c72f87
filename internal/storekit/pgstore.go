package storekit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/soulisrael/ai-comm-platform-sub001/internal/types"
)

// PGStore is the remote Store[T] backend. Records are kept in a single
// JSONB-column table (one table per logical record kind, selected by
// TableName) so the generic Store[T] contract does not need a SQL schema
// per T. The wire field-naming rule from the core spec — camelCase on the
// domain object, snake_case in the row — is satisfied by storing the
// struct's JSON (camelCase-free, since every T here already tags with
// snake_case) verbatim in the data column and keying rows by id.
//
// The public contract matches MemoryStore exactly; callers only see
// ExternalFailure on transient connection errors, which they retry.
type PGStore[T any] struct {
	pool      *pgxpool.Pool
	tableName string
	locker    *keyedLocker
}

func NewPGStore[T any](pool *pgxpool.Pool, tableName string) *PGStore[T] {
	return &PGStore[T]{pool: pool, tableName: tableName, locker: newKeyedLocker()}
}

// EnsureSchema creates the backing table if it does not already exist.
// Callers run this once at startup.
func (s *PGStore[T]) EnsureSchema(ctx context.Context) error {
	q := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id TEXT PRIMARY KEY,
		seq BIGSERIAL,
		data JSONB NOT NULL
	)`, s.tableName)
	if _, err := s.pool.Exec(ctx, q); err != nil {
		return types.ExternalFailure("storekit.pg", "ensure schema", err)
	}
	return nil
}

func (s *PGStore[T]) Get(ctx context.Context, id string) (T, bool, error) {
	var zero T
	var raw []byte
	q := fmt.Sprintf(`SELECT data FROM %s WHERE id = $1`, s.tableName)
	err := s.pool.QueryRow(ctx, q, id).Scan(&raw)
	if err != nil {
		if err.Error() == "no rows in result set" {
			return zero, false, nil
		}
		return zero, false, types.ExternalFailure("storekit.pg", "get", err)
	}
	var rec T
	if err := json.Unmarshal(raw, &rec); err != nil {
		return zero, false, types.ParseFailure("storekit.pg", "decode record", err)
	}
	return rec, true, nil
}

func (s *PGStore[T]) GetAll(ctx context.Context) ([]T, error) {
	q := fmt.Sprintf(`SELECT data FROM %s ORDER BY seq ASC`, s.tableName)
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, types.ExternalFailure("storekit.pg", "get all", err)
	}
	defer rows.Close()
	var out []T
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, types.ExternalFailure("storekit.pg", "scan row", err)
		}
		var rec T
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, types.ParseFailure("storekit.pg", "decode record", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *PGStore[T]) Find(ctx context.Context, pred func(T) bool) ([]T, error) {
	all, err := s.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	var out []T
	for _, rec := range all {
		if pred(rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *PGStore[T]) Create(ctx context.Context, id string, rec T) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return types.ParseFailure("storekit.pg", "encode record", err)
	}
	q := fmt.Sprintf(`INSERT INTO %s (id, data) VALUES ($1, $2)`, s.tableName)
	if _, err := s.pool.Exec(ctx, q, id, data); err != nil {
		return types.ExternalFailure("storekit.pg", "create", err)
	}
	return nil
}

func (s *PGStore[T]) Update(ctx context.Context, id string, merge func(T) T) (T, error) {
	var zero T
	cur, ok, err := s.Get(ctx, id)
	if err != nil {
		return zero, err
	}
	if !ok {
		return zero, types.NotFound("storekit.pg", fmt.Sprintf("record %q not found", id))
	}
	updated := merge(cur)
	data, err := json.Marshal(updated)
	if err != nil {
		return zero, types.ParseFailure("storekit.pg", "encode record", err)
	}
	q := fmt.Sprintf(`UPDATE %s SET data = $2 WHERE id = $1`, s.tableName)
	if _, err := s.pool.Exec(ctx, q, id, data); err != nil {
		return zero, types.ExternalFailure("storekit.pg", "update", err)
	}
	return updated, nil
}

func (s *PGStore[T]) Delete(ctx context.Context, id string) error {
	q := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.tableName)
	tag, err := s.pool.Exec(ctx, q, id)
	if err != nil {
		return types.ExternalFailure("storekit.pg", "delete", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NotFound("storekit.pg", fmt.Sprintf("record %q not found", id))
	}
	return nil
}

func (s *PGStore[T]) Size(ctx context.Context) (int, error) {
	var count int
	q := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, s.tableName)
	if err := s.pool.QueryRow(ctx, q).Scan(&count); err != nil {
		return 0, types.ExternalFailure("storekit.pg", "size", err)
	}
	return count, nil
}

func (s *PGStore[T]) Clear(ctx context.Context) error {
	q := fmt.Sprintf(`TRUNCATE %s`, s.tableName)
	if _, err := s.pool.Exec(ctx, q); err != nil {
		return types.ExternalFailure("storekit.pg", "clear", err)
	}
	return nil
}

func (s *PGStore[T]) WithLock(ctx context.Context, key string, fn func() error) error {
	return s.locker.WithLock(ctx, key, fn)
}
