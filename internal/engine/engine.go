// Package engine is the single decision path of the attendance system. It
// owns the encoding store, the attendance ledger and the LastSeen map, and
// runs the registration, deletion and mark-attendance flows against them.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kozaktomas/visagium/internal/constants"
	"github.com/kozaktomas/visagium/internal/database"
	"github.com/kozaktomas/visagium/internal/facematch"
	"github.com/kozaktomas/visagium/internal/metrics"
	"github.com/kozaktomas/visagium/internal/remote"
	"github.com/kozaktomas/visagium/internal/schedule"
)

// ArtifactStore keeps the enrollment photos of an identity.
type ArtifactStore interface {
	Stage(id, name string, n int, data []byte) (string, error)
	Discard(id string, paths []string) error
	RemoveIdentity(id string) error
}

// Options configures an Engine. Store, Ledger and Policy are required.
type Options struct {
	Store        database.EncodingWriter
	Ledger       database.LedgerWriter
	Policy       schedule.Policy
	Gateway      remote.Gateway
	Artifacts    ArtifactStore
	Index        *database.EncodingIndex
	Matcher      facematch.Matcher
	Guard        facematch.Guard
	CaptureCount int
	IdleTimeout  time.Duration
	Metrics      metrics.Recorder
	Logger       *slog.Logger
	Clock        func() time.Time
}

// Engine serializes every decision behind one mutex. Values returned to
// callers are copies.
type Engine struct {
	mu sync.Mutex

	store        database.EncodingWriter
	ledger       database.LedgerWriter
	policy       schedule.Policy
	gateway      remote.Gateway
	artifacts    ArtifactStore
	index        *database.EncodingIndex
	matcher      facematch.Matcher
	guard        facematch.Guard
	captureCount int
	idleTimeout  time.Duration
	metrics      metrics.Recorder
	log          *slog.Logger
	now          func() time.Time

	lastSeen map[string]time.Time
	active   *Registration
}

// Settings is the effective matching configuration.
type Settings struct {
	MatchMode          facematch.Mode `json:"match_mode"`
	MatchTolerance     float64        `json:"match_tolerance"`
	DuplicateStrategy  facematch.Mode `json:"duplicate_strategy"`
	DuplicateThreshold float64        `json:"duplicate_threshold"`
	CaptureCount       int            `json:"capture_count"`
	Policy             string         `json:"policy"`
	PolicyGated        bool           `json:"policy_gated"`
	IdleTimeout        string         `json:"registration_idle_timeout"`
	SyncEnabled        bool           `json:"sync_enabled"`
}

// New creates an engine. LastSeen starts empty; call ReplayLedger to rebuild it.
func New(opts Options) (*Engine, error) {
	if opts.Store == nil || opts.Ledger == nil || opts.Policy == nil {
		return nil, errors.New("engine requires a store, a ledger and a policy")
	}
	if opts.CaptureCount <= 0 {
		opts.CaptureCount = constants.DefaultCaptureCount
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = constants.RegistrationIdleTimeout
	}
	if opts.Matcher.Mode == "" {
		opts.Matcher = facematch.NewMatcher(facematch.ModeNearest, constants.DefaultMatchTolerance)
	}
	if opts.Guard.Strategy == "" {
		opts.Guard = facematch.NewGuard(facematch.ModeNearest, constants.DefaultDuplicateThreshold)
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	e := &Engine{
		store:        opts.Store,
		ledger:       opts.Ledger,
		policy:       opts.Policy,
		gateway:      opts.Gateway,
		artifacts:    opts.Artifacts,
		index:        opts.Index,
		matcher:      opts.Matcher,
		guard:        opts.Guard,
		captureCount: opts.CaptureCount,
		idleTimeout:  opts.IdleTimeout,
		metrics:      opts.Metrics,
		log:          opts.Logger,
		now:          opts.Clock,
		lastSeen:     make(map[string]time.Time),
	}
	e.rebuildIndex()
	return e, nil
}

// Settings returns the effective configuration for display.
func (e *Engine) Settings() Settings {
	return Settings{
		MatchMode:          e.matcher.Mode,
		MatchTolerance:     e.matcher.Threshold(),
		DuplicateStrategy:  e.guard.Strategy,
		DuplicateThreshold: e.guard.Threshold,
		CaptureCount:       e.captureCount,
		Policy:             e.policy.Describe(),
		PolicyGated:        e.policy.Gated(),
		IdleTimeout:        e.idleTimeout.String(),
		SyncEnabled:        e.gateway != nil,
	}
}

// ReplayLedger rebuilds LastSeen from the ledger, keeping the latest
// timestamp per identity. It returns the number of records read.
func (e *Engine) ReplayLedger(ctx context.Context) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	seen := make(map[string]time.Time)
	n := 0
	err := e.ledger.Replay(ctx, func(rec database.AttendanceRecord) error {
		n++
		if last, ok := seen[rec.IdentityID]; !ok || rec.Timestamp.After(last) {
			seen[rec.IdentityID] = rec.Timestamp
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("replay attendance ledger: %w", err)
	}
	e.lastSeen = seen
	e.log.Info("attendance history loaded", "records", n, "identities", len(seen))
	return n, nil
}

// LastSeen returns a copy of the latest accepted mark per identity.
func (e *Engine) LastSeen() map[string]time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return maps.Clone(e.lastSeen)
}

// Identities returns the committed identities in enrollment order.
func (e *Engine) Identities() []database.IdentitySummary {
	return database.Summarize(e.store.Records())
}

// Len returns the number of stored encodings.
func (e *Engine) Len() int {
	return e.store.Len()
}

// Match resolves a single encoding without marking attendance.
func (e *Engine) Match(query facematch.Encoding) (facematch.Match, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	m, ok := e.matcher.Match(query, e.store.Records())
	e.metrics.RecordMatch(ok)
	return m, ok
}

// Neighbors lists up to k candidate identities nearest to query. The
// in-memory index is used when configured, then a store that searches on
// its own side, and an exact scan otherwise.
func (e *Engine) Neighbors(ctx context.Context, query facematch.Encoding, k int) []database.Neighbor {
	if k <= 0 {
		k = constants.DefaultNeighborCount
	}
	if e.index != nil && e.index.Len() > 0 {
		return e.index.Search(query, k)
	}
	if searcher, ok := e.store.(database.NearestSearcher); ok {
		records, dists, err := searcher.Nearest(ctx, query, k*database.HNSWSearchMultiplier)
		if err == nil {
			return groupNeighbors(records, dists, k)
		}
		e.log.Warn("store neighbor search failed, using exact scan", "error", err)
	}
	return exactNeighbors(query, e.store.Records(), k)
}

// Import appends records that were enrolled elsewhere, bypassing the gateway.
func (e *Engine) Import(ctx context.Context, records []facematch.Record) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.expireIdle()
	if e.active != nil {
		return 0, ErrRegistrationActive
	}
	merged := append(e.store.Records(), records...)
	if err := database.ValidateRecords(merged); err != nil {
		return 0, err
	}
	if err := e.store.Append(ctx, records); err != nil {
		return 0, fmt.Errorf("persist imported encodings: %w", err)
	}
	e.rebuildIndex()
	e.log.Info("encodings imported", "records", len(records), "identities", len(database.Summarize(records)))
	return len(records), nil
}

// ReplaceAll swaps the whole store for records, bypassing the gateway.
// LastSeen and enrollment photos are left as they are.
func (e *Engine) ReplaceAll(ctx context.Context, records []facematch.Record) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	replacer, ok := e.store.(database.EncodingReplacer)
	if !ok {
		return 0, fmt.Errorf("%w: the store backend cannot replace its content", ErrValidation)
	}
	e.expireIdle()
	if e.active != nil {
		return 0, ErrRegistrationActive
	}
	before := e.store.Len()
	if err := replacer.Replace(ctx, records); err != nil {
		return 0, fmt.Errorf("replace encodings: %w", err)
	}
	e.rebuildIndex()
	e.log.Warn("encoding store replaced", "previous", before, "records", len(records))
	return len(records), nil
}

func (e *Engine) rebuildIndex() {
	if e.index != nil {
		e.index.Build(e.store.Records())
	}
}

// storeDim returns the encoding length of the store, or 0 when empty.
func storeDim(records []facematch.Record) int {
	if len(records) == 0 {
		return 0
	}
	return len(records[0].Encoding)
}

func exactNeighbors(query facematch.Encoding, records []facematch.Record, k int) []database.Neighbor {
	dists := make([]float64, len(records))
	for i, r := range records {
		dists[i] = facematch.EuclideanDistance(query, r.Encoding)
	}
	return groupNeighbors(records, dists, k)
}

// groupNeighbors keeps the best distance per identity and returns the k
// closest identities.
func groupNeighbors(records []facematch.Record, dists []float64, k int) []database.Neighbor {
	best := make(map[string]database.Neighbor)
	for i, r := range records {
		d := dists[i]
		if math.IsInf(d, 1) {
			continue
		}
		if n, ok := best[r.ID]; !ok || d < n.Distance {
			best[r.ID] = database.Neighbor{Identity: r.Identity, Distance: d}
		}
	}
	out := make([]database.Neighbor, 0, len(best))
	for _, n := range best {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Distance == out[j].Distance {
			return out[i].ID < out[j].ID
		}
		return out[i].Distance < out[j].Distance
	})
	if len(out) > k {
		out = out[:k]
	}
	return out
}

// cleanInput trims both values and requires them to be non-empty.
func cleanInput(id, name string) (string, string, error) {
	id, name = strings.TrimSpace(id), strings.TrimSpace(name)
	if id == "" || name == "" {
		return "", "", fmt.Errorf("%w: id and name are required", ErrValidation)
	}
	if id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return "", "", fmt.Errorf("%w: id %q contains path characters", ErrValidation, id)
	}
	return id, name, nil
}
