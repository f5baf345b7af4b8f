package mariadb

import (
	"context"
	"fmt"
	"time"

	"github.com/kozaktomas/visagium/internal/database"
)

const createAttendanceTable = `
	CREATE TABLE IF NOT EXISTS attendance (
		id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT PRIMARY KEY,
		identity_id VARCHAR(191) NOT NULL,
		identity_name VARCHAR(255) NOT NULL,
		recorded_at DATETIME(6) NOT NULL,
		KEY idx_attendance_identity_time (identity_id, recorded_at)
	) DEFAULT CHARSET=utf8mb4`

// EnsureSchema creates the attendance table when missing.
func (p *Pool) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, createAttendanceTable); err != nil {
		return fmt.Errorf("create attendance table: %w", err)
	}
	return nil
}

// Append stores the record with a UTC DATETIME timestamp.
func (p *Pool) Append(ctx context.Context, rec database.AttendanceRecord) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO attendance (identity_id, identity_name, recorded_at) VALUES (?, ?, ?)`,
		rec.IdentityID, rec.IdentityName, rec.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("insert attendance: %w", err)
	}
	return nil
}

func (p *Pool) Replay(ctx context.Context, fn func(database.AttendanceRecord) error) error {
	rows, err := p.db.QueryContext(ctx,
		`SELECT identity_id, identity_name, recorded_at FROM attendance ORDER BY id`)
	if err != nil {
		return fmt.Errorf("query attendance: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate attendance: %w", err)
	}
	return nil
}

func (p *Pool) Recent(ctx context.Context, limit int) ([]database.AttendanceRecord, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT identity_id, identity_name, recorded_at FROM attendance ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query attendance: %w", err)
	}
	defer rows.Close()

	var out []database.AttendanceRecord
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance: %w", err)
	}
	return out, nil
}

// scanRecord reads one row. Open forces parseTime so DATETIME scans into time.Time.
func scanRecord(scan func(dest ...any) error) (database.AttendanceRecord, error) {
	var rec database.AttendanceRecord
	var ts time.Time
	if err := scan(&rec.IdentityID, &rec.IdentityName, &ts); err != nil {
		return rec, fmt.Errorf("scan attendance: %w", err)
	}
	rec.Timestamp = ts.UTC()
	return rec, nil
}
