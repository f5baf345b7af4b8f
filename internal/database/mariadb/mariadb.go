// Package mariadb stores the attendance ledger in a MariaDB table.
package mariadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Pool is an attendance ledger backed by a MariaDB connection pool.
type Pool struct {
	db *sql.DB
}

// normalizeDSN forces the driver options the ledger relies on: DATETIME
// columns scan into time.Time and are interpreted as UTC.
func normalizeDSN(dsn string) (string, error) {
	if dsn == "" {
		return "", errors.New("MariaDB DSN is required")
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid MariaDB DSN: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}

// Open connects, verifies the connection and creates the ledger table
// when it is missing.
func Open(ctx context.Context, dsn string) (*Pool, error) {
	dsn, err := normalizeDSN(dsn)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MariaDB: %w", err)
	}
	// ledger writes are serialized by the engine
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MariaDB: %w", err)
	}

	p := &Pool{db: db}
	if err := p.EnsureSchema(ctx); err != nil {
		_ = p.Close()
		return nil, err
	}
	return p, nil
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db == nil {
		return nil
	}
	if err := p.db.Close(); err != nil {
		return fmt.Errorf("closing MariaDB connection: %w", err)
	}
	return nil
}
