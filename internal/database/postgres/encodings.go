package postgres

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/kozaktomas/visagium/internal/database"
	"github.com/kozaktomas/visagium/internal/facematch"
	"github.com/pgvector/pgvector-go"
)

// EncodingRepository stores face encodings in PostgreSQL using pgvector.
// The whole table is cached in memory; every mutation commits before the
// cache changes.
type EncodingRepository struct {
	pool    *Pool
	mu      sync.RWMutex
	records []facematch.Record
}

// NewEncodingRepository creates a repository and loads every stored encoding.
func NewEncodingRepository(ctx context.Context, pool *Pool) (*EncodingRepository, error) {
	r := &EncodingRepository{pool: pool}
	if err := r.Load(ctx); err != nil {
		return nil, err
	}
	return r, nil
}

// Load refreshes the cache from the database.
func (r *EncodingRepository) Load(ctx context.Context) error {
	rows, err := r.pool.Query(ctx, `
		SELECT identity_id, identity_name, encoding
		FROM face_encodings
		ORDER BY id
	`)
	if err != nil {
		return fmt.Errorf("loading encodings: %w", err)
	}
	defer rows.Close()

	var records []facematch.Record
	for rows.Next() {
		var rec facematch.Record
		var vec pgvector.Vector
		if err := rows.Scan(&rec.ID, &rec.Name, &vec); err != nil {
			return fmt.Errorf("scanning encoding: %w", err)
		}
		rec.Encoding = vec.Slice()
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating encodings: %w", err)
	}
	if err := database.ValidateRecords(records); err != nil {
		return err
	}

	r.mu.Lock()
	r.records = records
	r.mu.Unlock()
	return nil
}

func (r *EncodingRepository) Records() []facematch.Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return database.CloneRecords(r.records)
}

func (r *EncodingRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

func (r *EncodingRepository) Append(ctx context.Context, records []facematch.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	next := slices.Concat(r.records, database.CloneRecords(records))
	if err := database.ValidateRecords(next); err != nil {
		return err
	}

	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO face_encodings (identity_id, identity_name, encoding)
		VALUES ($1, $2, $3)
	`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err := stmt.ExecContext(ctx, rec.ID, rec.Name, pgvector.NewVector(rec.Encoding)); err != nil {
			return fmt.Errorf("inserting encoding for %s: %w", rec.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing encodings: %w", err)
	}

	r.records = next
	return nil
}

func (r *EncodingRepository) RemoveIdentity(ctx context.Context, identityID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.pool.Exec(ctx, `DELETE FROM face_encodings WHERE identity_id = $1`, identityID)
	if err != nil {
		return 0, fmt.Errorf("deleting encodings: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reading affected rows: %w", err)
	}

	r.records = slices.DeleteFunc(r.records, func(rec facematch.Record) bool {
		return rec.ID == identityID
	})
	return int(n), nil
}

// Replace swaps the table content in one transaction.
func (r *EncodingRepository) Replace(ctx context.Context, records []facematch.Record) error {
	next := database.CloneRecords(records)
	if err := database.ValidateRecords(next); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, `DELETE FROM face_encodings`); err != nil {
		return fmt.Errorf("clearing encodings: %w", err)
	}
	for _, rec := range next {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO face_encodings (identity_id, identity_name, encoding)
			VALUES ($1, $2, $3)
		`, rec.ID, rec.Name, pgvector.NewVector(rec.Encoding)); err != nil {
			return fmt.Errorf("inserting encoding for %s: %w", rec.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing encodings: %w", err)
	}

	r.records = next
	return nil
}

// Nearest returns up to limit encodings closest to query by L2 distance,
// computed in the database.
func (r *EncodingRepository) Nearest(ctx context.Context, query facematch.Encoding, limit int) ([]facematch.Record, []float64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT identity_id, identity_name, encoding, encoding <-> $1 AS distance
		FROM face_encodings
		ORDER BY encoding <-> $1, id
		LIMIT $2
	`, pgvector.NewVector(query), limit)
	if err != nil {
		return nil, nil, fmt.Errorf("searching encodings: %w", err)
	}
	defer rows.Close()

	var records []facematch.Record
	var distances []float64
	for rows.Next() {
		var rec facematch.Record
		var vec pgvector.Vector
		var dist float64
		if err := rows.Scan(&rec.ID, &rec.Name, &vec, &dist); err != nil {
			return nil, nil, fmt.Errorf("scanning encoding: %w", err)
		}
		rec.Encoding = vec.Slice()
		records = append(records, rec)
		distances = append(distances, dist)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterating encodings: %w", err)
	}
	return records, distances, nil
}
