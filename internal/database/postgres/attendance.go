package postgres

import (
	"context"
	"fmt"

	"github.com/kozaktomas/visagium/internal/database"
)

// LedgerRepository is the attendance ledger backed by PostgreSQL.
type LedgerRepository struct {
	pool *Pool
}

// NewLedgerRepository creates a new ledger repository.
func NewLedgerRepository(pool *Pool) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

func (r *LedgerRepository) Append(ctx context.Context, rec database.AttendanceRecord) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO attendance (identity_id, identity_name, recorded_at)
		VALUES ($1, $2, $3)
	`, rec.IdentityID, rec.IdentityName, rec.Timestamp)
	if err != nil {
		return fmt.Errorf("inserting attendance: %w", err)
	}
	return nil
}

func (r *LedgerRepository) Replay(ctx context.Context, fn func(database.AttendanceRecord) error) error {
	rows, err := r.pool.Query(ctx, `
		SELECT identity_id, identity_name, recorded_at
		FROM attendance
		ORDER BY id
	`)
	if err != nil {
		return fmt.Errorf("reading attendance: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var rec database.AttendanceRecord
		if err := rows.Scan(&rec.IdentityID, &rec.IdentityName, &rec.Timestamp); err != nil {
			return fmt.Errorf("scanning attendance: %w", err)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating attendance: %w", err)
	}
	return nil
}

func (r *LedgerRepository) Recent(ctx context.Context, limit int) ([]database.AttendanceRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT identity_id, identity_name, recorded_at
		FROM attendance
		ORDER BY id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("reading attendance: %w", err)
	}
	defer rows.Close()

	var out []database.AttendanceRecord
	for rows.Next() {
		var rec database.AttendanceRecord
		if err := rows.Scan(&rec.IdentityID, &rec.IdentityName, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning attendance: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating attendance: %w", err)
	}
	return out, nil
}
