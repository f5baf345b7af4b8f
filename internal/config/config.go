package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/kozaktomas/visagium/internal/constants"
	"gopkg.in/yaml.v3"
)

//go:embed schedule.yaml
var scheduleYAML []byte

// Backend names
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendMariaDB  = "mariadb"
)

// Matching modes and duplicate strategies
const (
	ModeNearest = "nearest"
	ModeAny     = "any"
)

// Policy names
const (
	PolicyWindow   = "window"
	PolicyCooldown = "cooldown"
)

type Config struct {
	Storage   StorageConfig
	Database  DatabaseConfig
	MariaDB   MariaDBConfig
	Sync      SyncConfig
	Extractor ExtractorConfig
	Matching  MatchingConfig
	Schedule  ScheduleConfig
	Web       WebConfig
	LogLevel  string
}

type StorageConfig struct {
	EncodingsFile  string // gob blob holding every enrolled encoding
	AttendanceFile string // append-only CSV ledger
	DatasetDir     string // enrollment photos, one folder per identity
	StoreBackend   string // file or postgres
	LedgerBackend  string // file, postgres or mariadb
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type MariaDBConfig struct {
	DSN string // e.g. visagium:visagium@tcp(mariadb:3306)/visagium?parseTime=true
}

type SyncConfig struct {
	URL     string // remote store base URL, empty disables sync
	Timeout time.Duration
}

// Enabled reports whether a remote store is configured.
func (c SyncConfig) Enabled() bool {
	return c.URL != ""
}

type ExtractorConfig struct {
	URL     string // face embedding server, defaults to http://localhost:8000
	Timeout time.Duration
}

type MatchingConfig struct {
	Mode               string  // nearest or any
	Tolerance          float64 // max distance for a recognition match
	DuplicateStrategy  string  // nearest or any
	DuplicateThreshold float64 // max distance for a duplicate enrollment
	CaptureCount       int
	IdleTimeout        time.Duration // capturing registration without captures is expired after this
}

type ScheduleConfig struct {
	Policy   string         `yaml:"policy"`
	Cooldown time.Duration  `yaml:"cooldown"`
	Windows  []WindowConfig `yaml:"windows"`
	Timezone string         `yaml:"timezone"`
	Location *time.Location `yaml:"-"`
}

type WindowConfig struct {
	Start int `yaml:"start"`
	End   int `yaml:"end"`
}

type WebConfig struct {
	Host           string
	Port           int
	APIToken       string   // bearer token, empty disables auth
	AllowedOrigins []string // CORS origins
	FrameRate      float64  // frames per second accepted by frame endpoints
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads a positive float, falling back to defaultVal.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envList(key string) []string {
	var out []string
	for part := range strings.SplitSeq(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// ParseSchedule decodes a schedule document and fills defaults.
func ParseSchedule(data []byte) (ScheduleConfig, error) {
	sc := ScheduleConfig{Policy: PolicyWindow, Cooldown: constants.DefaultCooldown}
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return ScheduleConfig{}, fmt.Errorf("decoding schedule: %w", err)
	}
	if sc.Policy == "" {
		sc.Policy = PolicyWindow
	}
	if sc.Cooldown <= 0 {
		sc.Cooldown = constants.DefaultCooldown
	}
	return sc, nil
}

func Load() *Config {
	schedule, err := ParseSchedule(scheduleYAML)
	if err != nil {
		// embedded file, this can only fail on a broken build
		panic("failed to unmarshal embedded schedule.yaml: " + err.Error())
	}
	if p := os.Getenv("SCHEDULE_POLICY"); p != "" {
		schedule.Policy = p
	}
	schedule.Cooldown = envDuration("SCHEDULE_COOLDOWN", schedule.Cooldown)
	schedule.Timezone = envString("SCHEDULE_TIMEZONE", schedule.Timezone)

	return &Config{
		Storage: StorageConfig{
			EncodingsFile:  envString("ENCODINGS_FILE", "encodings.gob"),
			AttendanceFile: envString("ATTENDANCE_FILE", "attendance.csv"),
			DatasetDir:     envString("DATASET_DIR", "dataset"),
			StoreBackend:   envString("STORE_BACKEND", BackendFile),
			LedgerBackend:  envString("LEDGER_BACKEND", BackendFile),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		MariaDB: MariaDBConfig{
			DSN: os.Getenv("MARIADB_DSN"),
		},
		Sync: SyncConfig{
			URL:     strings.TrimRight(os.Getenv("SYNC_URL"), "/"),
			Timeout: envDuration("SYNC_TIMEOUT", constants.DefaultSyncTimeout),
		},
		Extractor: ExtractorConfig{
			URL:     envString("EXTRACTOR_URL", "http://localhost:8000"),
			Timeout: envDuration("EXTRACTOR_TIMEOUT", constants.DefaultExtractTimeout),
		},
		Matching: MatchingConfig{
			Mode:               envString("MATCH_MODE", ModeNearest),
			Tolerance:          envFloat("MATCH_TOLERANCE", constants.DefaultMatchTolerance),
			DuplicateStrategy:  envString("DUPLICATE_STRATEGY", ModeNearest),
			DuplicateThreshold: envFloat("DUPLICATE_THRESHOLD", constants.DefaultDuplicateThreshold),
			CaptureCount:       envInt("CAPTURE_COUNT", constants.DefaultCaptureCount),
			IdleTimeout:        envDuration("REGISTRATION_IDLE_TIMEOUT", constants.RegistrationIdleTimeout),
		},
		Schedule: schedule,
		Web: WebConfig{
			Host:           envString("WEB_HOST", "0.0.0.0"),
			Port:           envInt("WEB_PORT", 8080),
			APIToken:       os.Getenv("WEB_API_TOKEN"),
			AllowedOrigins: envList("WEB_ALLOWED_ORIGINS"),
			FrameRate:      envFloat("FRAME_RATE", constants.DefaultFrameRate),
		},
		LogLevel: envString("LOG_LEVEL", "info"),
	}
}

// LoadScheduleFile replaces the embedded schedule with the one at path.
// Environment overrides already applied by Load are kept.
func (c *Config) LoadScheduleFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading schedule file: %w", err)
	}
	sc, err := ParseSchedule(data)
	if err != nil {
		return err
	}
	if p := os.Getenv("SCHEDULE_POLICY"); p != "" {
		sc.Policy = p
	}
	sc.Cooldown = envDuration("SCHEDULE_COOLDOWN", sc.Cooldown)
	sc.Timezone = envString("SCHEDULE_TIMEZONE", sc.Timezone)
	c.Schedule = sc
	return nil
}

// Validate checks values that have no safe fallback and resolves the
// schedule timezone.
func (c *Config) Validate() error {
	var errs []error
	switch c.Matching.Mode {
	case ModeNearest, ModeAny:
	default:
		errs = append(errs, fmt.Errorf("MATCH_MODE must be %q or %q, got %q", ModeNearest, ModeAny, c.Matching.Mode))
	}
	switch c.Matching.DuplicateStrategy {
	case ModeNearest, ModeAny:
	default:
		errs = append(errs, fmt.Errorf("DUPLICATE_STRATEGY must be %q or %q, got %q",
			ModeNearest, ModeAny, c.Matching.DuplicateStrategy))
	}
	if c.Matching.CaptureCount > constants.MaxCaptureCount {
		errs = append(errs, fmt.Errorf("CAPTURE_COUNT must be at most %d", constants.MaxCaptureCount))
	}
	switch c.Storage.StoreBackend {
	case BackendFile:
	case BackendPostgres:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres store backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_BACKEND %q", c.Storage.StoreBackend))
	}
	switch c.Storage.LedgerBackend {
	case BackendFile:
	case BackendPostgres:
		if c.Database.URL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres ledger backend"))
		}
	case BackendMariaDB:
		if c.MariaDB.DSN == "" {
			errs = append(errs, errors.New("MARIADB_DSN is required for the mariadb ledger backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown LEDGER_BACKEND %q", c.Storage.LedgerBackend))
	}
	errs = append(errs, c.Schedule.validate()...)

	if len(errs) == 0 && c.Schedule.Location == nil {
		loc := time.Local
		if c.Schedule.Timezone != "" {
			var err error
			if loc, err = time.LoadLocation(c.Schedule.Timezone); err != nil {
				return fmt.Errorf("loading schedule timezone: %w", err)
			}
		}
		c.Schedule.Location = loc
	}
	return errors.Join(errs...)
}

func (s ScheduleConfig) validate() []error {
	var errs []error
	switch s.Policy {
	case PolicyWindow:
		if len(s.Windows) == 0 {
			errs = append(errs, errors.New("window policy requires at least one window"))
		}
		for i, w := range s.Windows {
			if w.Start < 0 || w.End > 24 || w.Start >= w.End {
				errs = append(errs, fmt.Errorf("window %d: need 0 <= start < end <= 24, got [%d, %d)", i, w.Start, w.End))
			}
		}
	case PolicyCooldown:
		if s.Cooldown <= 0 {
			errs = append(errs, errors.New("cooldown policy requires a positive cooldown"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown schedule policy %q", s.Policy))
	}
	return errs
}
