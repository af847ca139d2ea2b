package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron/v3"
)

// Lead source kinds.
const (
	SourceMock   = "mock"
	SourceRemote = "remote"
)

// EnvPrefix is the prefix for environment overrides, e.g. TIPE_SOURCE_URL.
const EnvPrefix = "TIPE"

// Config holds application configuration.
type Config struct {
	// Source selects where leads come from: "mock" (generated) or "remote" (HTTP backend).
	Source string `json:"source,omitempty"`

	// SourceURL is the base URL of the remote lead backend.
	SourceURL string `json:"source_url,omitempty"`

	// Industry filters leads requested from the source.
	Industry string `json:"industry,omitempty"`

	// UserEmail identifies the user to the remote backend.
	UserEmail string `json:"user_email,omitempty"`

	// SourceTimeoutSeconds bounds every remote call.
	SourceTimeoutSeconds int `json:"source_timeout_seconds,omitempty"`

	// MockLeadCount is how many leads the mock source generates.
	MockLeadCount int `json:"mock_lead_count,omitempty"`

	// MockLatencyMS adds an artificial delay to mock fetches.
	MockLatencyMS int `json:"mock_latency_ms,omitempty"`

	// MockSeed makes mock output reproducible. 0 picks a random seed.
	MockSeed int64 `json:"mock_seed,omitempty"`

	// PollSchedule is a cron spec for periodic lead sync ("@every 5m", "*/10 * * * *").
	// Empty disables polling.
	PollSchedule string `json:"poll_schedule,omitempty"`

	// HTTPBind and HTTPPort are where `tipe serve` listens.
	HTTPBind string `json:"http_bind,omitempty"`
	HTTPPort int    `json:"http_port,omitempty"`

	// LogLevel is a zerolog level name. Empty means info for `tipe serve` and
	// warn for every other command.
	LogLevel string `json:"log_level,omitempty"`

	// AllowedPaths is an allowlist of directories for import/export operations.
	// Paths outside ~/.tipe/exports require either being in this list or AllowUnsafePaths=true.
	// Paths should be absolute (relative paths are ignored).
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// AllowUnsafePaths disables directory restrictions for import/export.
	// Symlink and extension checks still apply.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default (unlimited).
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`

	// DisabledTypes disables every tool of a type ("lead", "conversation", "message",
	// "meeting", "content", "stats", "store").
	DisabledTypes []string `json:"disabled_types,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Source:               SourceMock,
		SourceURL:            "http://localhost:8005",
		SourceTimeoutSeconds: 10,
		MockLeadCount:        50,
		HTTPBind:             "127.0.0.1",
		HTTPPort:             8080,
	}
}

// SourceTimeout returns the per-call timeout for the lead source.
func (c *Config) SourceTimeout() time.Duration {
	return time.Duration(c.SourceTimeoutSeconds) * time.Second
}

// MockLatency returns the artificial delay for mock fetches.
func (c *Config) MockLatency() time.Duration {
	return time.Duration(c.MockLatencyMS) * time.Millisecond
}

// HTTPAddr returns the listen address for the web server.
func (c *Config) HTTPAddr() string {
	return net.JoinHostPort(c.HTTPBind, strconv.Itoa(c.HTTPPort))
}

// Validate rejects settings that cannot work.
func (c *Config) Validate() error {
	switch c.Source {
	case SourceMock:
	case SourceRemote:
		if strings.TrimSpace(c.SourceURL) == "" {
			return errors.New("source_url is required when source is remote")
		}
	default:
		return fmt.Errorf("unknown source %q (want %s or %s)", c.Source, SourceMock, SourceRemote)
	}
	if c.SourceTimeoutSeconds < 0 || c.MockLeadCount < 0 || c.MockLatencyMS < 0 {
		return errors.New("timeouts and counts must not be negative")
	}
	if c.HTTPPort < 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("http_port %d out of range", c.HTTPPort)
	}
	if c.PollSchedule != "" {
		if _, err := cron.ParseStandard(c.PollSchedule); err != nil {
			return fmt.Errorf("invalid poll_schedule %q: %w", c.PollSchedule, err)
		}
	}
	return nil
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.tipe.
func Load(baseDir string) (*Config, error) {
	return loadFile(filepath.Join(baseDir, "config.json"))
}

// LoadWithRepo loads configuration from both global (~/.tipe) and repo (.tipe) directories,
// then applies TIPE_* environment overrides.
// Repo config is found by walking upward from startDir to find the nearest .tipe/config.json.
// Repo config takes precedence for scalar values; arrays are merged (deduplicated).
// Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	env, err := FromEnv()
	if err != nil {
		return nil, err
	}

	// Defaults, then global, then repo, then environment
	return Merge(Merge(Merge(DefaultConfig(), global), repo), env), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .tipe/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, ".tipe", "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// envConfig mirrors Config for environment variables.
type envConfig struct {
	Source               string   `envconfig:"SOURCE"`
	SourceURL            string   `envconfig:"SOURCE_URL"`
	Industry             string   `envconfig:"INDUSTRY"`
	UserEmail            string   `envconfig:"USER_EMAIL"`
	SourceTimeoutSeconds int      `envconfig:"SOURCE_TIMEOUT_SECONDS"`
	MockLeadCount        int      `envconfig:"MOCK_LEAD_COUNT"`
	MockLatencyMS        int      `envconfig:"MOCK_LATENCY_MS"`
	MockSeed             int64    `envconfig:"MOCK_SEED"`
	PollSchedule         string   `envconfig:"POLL_SCHEDULE"`
	HTTPBind             string   `envconfig:"HTTP_BIND"`
	HTTPPort             int      `envconfig:"HTTP_PORT"`
	LogLevel             string   `envconfig:"LOG_LEVEL"`
	AllowedPaths         []string `envconfig:"ALLOWED_PATHS"`
	AllowUnsafePaths     bool     `envconfig:"ALLOW_UNSAFE_PATHS"`
	DBMaxOpenConns       int      `envconfig:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns       int      `envconfig:"DB_MAX_IDLE_CONNS"`
	DisabledTools        []string `envconfig:"DISABLED_TOOLS"`
	DisabledTypes        []string `envconfig:"DISABLED_TYPES"`
}

// FromEnv reads TIPE_* variables into a zero-based Config suitable as a Merge overlay.
// List values are comma separated.
func FromEnv() (*Config, error) {
	var e envConfig
	if err := envconfig.Process(EnvPrefix, &e); err != nil {
		return nil, fmt.Errorf("env config: %w", err)
	}
	return &Config{
		Source:               e.Source,
		SourceURL:            e.SourceURL,
		Industry:             e.Industry,
		UserEmail:            e.UserEmail,
		SourceTimeoutSeconds: e.SourceTimeoutSeconds,
		MockLeadCount:        e.MockLeadCount,
		MockLatencyMS:        e.MockLatencyMS,
		MockSeed:             e.MockSeed,
		PollSchedule:         e.PollSchedule,
		HTTPBind:             e.HTTPBind,
		HTTPPort:             e.HTTPPort,
		LogLevel:             e.LogLevel,
		AllowedPaths:         e.AllowedPaths,
		AllowUnsafePaths:     e.AllowUnsafePaths,
		DBMaxOpenConns:       e.DBMaxOpenConns,
		DBMaxIdleConns:       e.DBMaxIdleConns,
		DisabledTools:        e.DisabledTools,
		DisabledTypes:        e.DisabledTypes,
	}, nil
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", configPath, err)
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{
		Source:               pick(overlay.Source, base.Source),
		SourceURL:            pick(overlay.SourceURL, base.SourceURL),
		Industry:             pick(overlay.Industry, base.Industry),
		UserEmail:            pick(overlay.UserEmail, base.UserEmail),
		SourceTimeoutSeconds: pick(overlay.SourceTimeoutSeconds, base.SourceTimeoutSeconds),
		MockLeadCount:        pick(overlay.MockLeadCount, base.MockLeadCount),
		MockLatencyMS:        pick(overlay.MockLatencyMS, base.MockLatencyMS),
		MockSeed:             pick(overlay.MockSeed, base.MockSeed),
		PollSchedule:         pick(overlay.PollSchedule, base.PollSchedule),
		HTTPBind:             pick(overlay.HTTPBind, base.HTTPBind),
		HTTPPort:             pick(overlay.HTTPPort, base.HTTPPort),
		LogLevel:             pick(overlay.LogLevel, base.LogLevel),
		DBMaxOpenConns:       pick(overlay.DBMaxOpenConns, base.DBMaxOpenConns),
		DBMaxIdleConns:       pick(overlay.DBMaxIdleConns, base.DBMaxIdleConns),
	}

	// Booleans: overlay wins if true, else base
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths

	// Arrays: merge and deduplicate
	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)
	result.DisabledTypes = mergeStringSlice(base.DisabledTypes, overlay.DisabledTypes)

	return result
}

// pick returns overlay unless it is the zero value.
func pick[T comparable](overlay, base T) T {
	var zero T
	if overlay != zero {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, list := range [][]string{a, b} {
		for _, s := range list {
			s = strings.TrimSpace(s)
			if s != "" && !seen[s] {
				seen[s] = true
				result = append(result, s)
			}
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
