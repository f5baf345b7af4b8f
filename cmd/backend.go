package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kozaktomas/visagium/internal/artifacts"
	"github.com/kozaktomas/visagium/internal/config"
	"github.com/kozaktomas/visagium/internal/database"
	"github.com/kozaktomas/visagium/internal/database/mariadb"
	"github.com/kozaktomas/visagium/internal/database/postgres"
	"github.com/kozaktomas/visagium/internal/engine"
	"github.com/kozaktomas/visagium/internal/extractor"
	"github.com/kozaktomas/visagium/internal/facematch"
	"github.com/kozaktomas/visagium/internal/metrics"
	"github.com/kozaktomas/visagium/internal/remote"
	"github.com/kozaktomas/visagium/internal/schedule"
)

// backend holds everything a command needs to talk to the engine.
type backend struct {
	cfg       *config.Config
	engine    *engine.Engine
	ledger    database.LedgerWriter
	extractor *extractor.Client
	artifacts *artifacts.Store
	registry  *prometheus.Registry
	closers   []func() error
}

// Close releases database pools.
func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			slog.Warn("closing backend", "error", err)
		}
	}
}

// loadConfig reads the environment, an optional schedule file, and validates.
func loadConfig() (*config.Config, error) {
	cfg := config.Load()
	if path := os.Getenv("SCHEDULE_FILE"); path != "" {
		if err := cfg.LoadScheduleFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// openBackend opens the configured store and ledger, builds the engine and
// replays the ledger into LastSeen.
func openBackend(ctx context.Context) (*backend, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	b := &backend{cfg: cfg, registry: prometheus.NewRegistry()}
	collector := metrics.NewCollector(b.registry)

	var pool *postgres.Pool
	if cfg.Storage.StoreBackend == config.BackendPostgres || cfg.Storage.LedgerBackend == config.BackendPostgres {
		slog.Info("connecting to PostgreSQL")
		if pool, err = postgres.Open(ctx, &cfg.Database); err != nil {
			return nil, err
		}
		b.closers = append(b.closers, pool.Close)
	}

	store, err := openStore(ctx, cfg, pool)
	if err != nil {
		b.Close()
		return nil, err
	}
	if b.ledger, err = openLedger(ctx, b, pool); err != nil {
		b.Close()
		return nil, err
	}

	policy, err := schedule.FromConfig(cfg.Schedule)
	if err != nil {
		b.Close()
		return nil, err
	}

	b.artifacts = artifacts.NewStore(cfg.Storage.DatasetDir)
	opts := engine.Options{
		Store:        store,
		Ledger:       b.ledger,
		Policy:       policy,
		Artifacts:    b.artifacts,
		Matcher:      facematch.NewMatcher(facematch.Mode(cfg.Matching.Mode), cfg.Matching.Tolerance),
		Guard:        facematch.NewGuard(facematch.Mode(cfg.Matching.DuplicateStrategy), cfg.Matching.DuplicateThreshold),
		CaptureCount: cfg.Matching.CaptureCount,
		IdleTimeout:  cfg.Matching.IdleTimeout,
		Metrics:      collector,
		Logger:       slog.Default(),
	}
	// postgres ranks neighbors with pgvector
	if cfg.Storage.StoreBackend == config.BackendFile {
		opts.Index = database.NewEncodingIndex()
	}
	if cfg.Sync.Enabled() {
		gw := remote.NewHTTPGateway(cfg.Sync.URL, cfg.Sync.Timeout)
		if captureDir != "" {
			if err := gw.SetCaptureDir(captureDir); err != nil {
				b.Close()
				return nil, err
			}
		}
		opts.Gateway = gw
	}

	if b.engine, err = engine.New(opts); err != nil {
		b.Close()
		return nil, err
	}
	n, err := b.engine.ReplayLedger(ctx)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("replaying attendance ledger: %w", err)
	}

	b.extractor = extractor.NewClient(cfg.Extractor.URL, cfg.Extractor.Timeout)
	b.extractor.SetRecorder(collector)

	slog.Info("engine ready",
		"store", cfg.Storage.StoreBackend,
		"ledger", cfg.Storage.LedgerBackend,
		"encodings", b.engine.Len(),
		"ledger_records", n,
		"policy", policy.Describe(),
		"sync", cfg.Sync.Enabled(),
	)
	return b, nil
}

func openStore(ctx context.Context, cfg *config.Config, pool *postgres.Pool) (database.EncodingWriter, error) {
	switch cfg.Storage.StoreBackend {
	case config.BackendPostgres:
		return postgres.NewEncodingRepository(ctx, pool)
	case config.BackendFile:
		return database.OpenFileStore(cfg.Storage.EncodingsFile)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Storage.StoreBackend)
	}
}

func openLedger(ctx context.Context, b *backend, pool *postgres.Pool) (database.LedgerWriter, error) {
	cfg := b.cfg
	switch cfg.Storage.LedgerBackend {
	case config.BackendPostgres:
		return postgres.NewLedgerRepository(pool), nil
	case config.BackendMariaDB:
		slog.Info("connecting to MariaDB")
		m, err := mariadb.Open(ctx, cfg.MariaDB.DSN)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, m.Close)
		return m, nil
	case config.BackendFile:
		return database.OpenCSVLedger(cfg.Storage.AttendanceFile, cfg.Schedule.Location)
	default:
		return nil, errors.New("unknown ledger backend " + cfg.Storage.LedgerBackend)
	}
}
