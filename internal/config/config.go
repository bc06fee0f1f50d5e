package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override values from the config file.
const (
	EnvGatewayURL   = "OPENCLAW_GATEWAY_URL"
	EnvGatewayToken = "OPENCLAW_GATEWAY_TOKEN"
	EnvAPIKey       = "DASHBOARD_API_KEY"
	EnvListen       = "PINCHY_LISTEN"
	EnvCalendarPath = "PINCHY_CALENDAR_PATH"
)

const (
	defaultListen          = "127.0.0.1:5000"
	defaultDataDir         = "./data"
	defaultCalendarPath    = "/calendars"
	defaultDaysAhead       = 7
	defaultCollectCron     = "*/15 * * * *"
	defaultDashboardEvents = 15
	defaultGatewayModel    = "openclaw:main"
	defaultGatewayTimeout  = 30
	defaultGatewayTokens   = 2000

	// MaxDaysAhead bounds every events lookup window.
	MaxDaysAhead = 90
)

// DefaultFallbackPaths are probed after CalendarPath when locating a vdir
// root: a dedicated mount, then the usual vdirsyncer locations.
func DefaultFallbackPaths() []string {
	paths := []string{"/calendars"}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		paths = append(paths, filepath.Join(home, ".local", "share", "vdirsyncer", "calendars"))
	}
	paths = append(paths, "/root/.local/share/vdirsyncer/calendars")
	return dedupe(paths)
}

// GatewayConfig points at the OpenClaw gateway used for the khal fallback.
type GatewayConfig struct {
	URL   string `yaml:"url" json:"url"`
	Token string `yaml:"token" json:"-"`
	// Model is sent as the chat completions model name.
	Model          string `yaml:"model" json:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds" json:"timeout_seconds"`
	MaxTokens      int    `yaml:"max_tokens" json:"max_tokens"`
}

// Configured reports whether both URL and token are present.
func (g GatewayConfig) Configured() bool {
	return g.URL != "" && g.Token != ""
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the Web UI/API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the dashboard and API.
	Listen string `yaml:"listen" json:"listen"`

	// DataDir holds the collector snapshot (data.json).
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// Timezone is the IANA zone events are rendered in. Empty means local.
	Timezone string `yaml:"timezone" json:"timezone"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// CalendarPath is the user-configured vdir root, tried before FallbackPaths.
	CalendarPath string `yaml:"calendar_path" json:"calendar_path"`

	// EnabledCalendars selects collection IDs. Empty means all collections.
	EnabledCalendars []string `yaml:"enabled_calendars" json:"enabled_calendars"`

	FallbackPaths []string `yaml:"fallback_paths" json:"fallback_paths"`

	// DaysAhead is the collector window; HTTP callers pass their own.
	DaysAhead int `yaml:"days_ahead" json:"days_ahead"`

	// CollectCron is a cron-style schedule string for the background collector.
	CollectCron string `yaml:"collect_cron" json:"collect_cron"`

	// DashboardEvents caps the events stored in the collector snapshot.
	DashboardEvents int `yaml:"dashboard_events" json:"dashboard_events"`

	Gateway GatewayConfig `yaml:"gateway" json:"gateway"`

	// APIKey, if set, is required as a Bearer token on write endpoints.
	APIKey string `yaml:"api_key" json:"-"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /api/health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:           defaultListen,
		DataDir:          defaultDataDir,
		LogLevel:         "info",
		CalendarPath:     defaultCalendarPath,
		EnabledCalendars: []string{},
		FallbackPaths:    DefaultFallbackPaths(),
		DaysAhead:        defaultDaysAhead,
		CollectCron:      defaultCollectCron,
		DashboardEvents:  defaultDashboardEvents,
		Gateway: GatewayConfig{
			Model:          defaultGatewayModel,
			TimeoutSeconds: defaultGatewayTimeout,
			MaxTokens:      defaultGatewayTokens,
		},
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.DataDir == "" {
		c.DataDir = defaultDataDir
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.EnabledCalendars == nil {
		c.EnabledCalendars = []string{}
	}
	if c.FallbackPaths == nil {
		c.FallbackPaths = DefaultFallbackPaths()
	}
	c.FallbackPaths = dedupe(c.FallbackPaths)
	if c.DaysAhead <= 0 {
		c.DaysAhead = defaultDaysAhead
	}
	if c.DaysAhead > MaxDaysAhead {
		c.DaysAhead = MaxDaysAhead
	}
	if c.CollectCron == "" {
		c.CollectCron = defaultCollectCron
	}
	if c.DashboardEvents <= 0 {
		c.DashboardEvents = defaultDashboardEvents
	}
	if c.Gateway.Model == "" {
		c.Gateway.Model = defaultGatewayModel
	}
	if c.Gateway.TimeoutSeconds <= 0 {
		c.Gateway.TimeoutSeconds = defaultGatewayTimeout
	}
	if c.Gateway.MaxTokens <= 0 {
		c.Gateway.MaxTokens = defaultGatewayTokens
	}
}

// ApplyEnv overrides fields from the process environment. Env values win
// over the file so secrets can stay out of the YAML.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvGatewayURL); v != "" {
		c.Gateway.URL = v
	}
	if v := os.Getenv(EnvGatewayToken); v != "" {
		c.Gateway.Token = v
	}
	if v := os.Getenv(EnvAPIKey); v != "" {
		c.APIKey = v
	}
	if v := os.Getenv(EnvListen); v != "" {
		c.Listen = v
	}
	if v := os.Getenv(EnvCalendarPath); v != "" {
		c.CalendarPath = v
	}
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (default ".env")
// into the environment. Missing files are not an error; existing
// variables are never overwritten.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return err
		}
	}
	return nil
}

// Load reads the YAML config at path. A missing file is created with the
// defaults (0600, parent dirs included) and the defaults are returned; an
// existing file is unmarshalled and normalized. Environment overrides are
// applied last in both cases and are never written back by Save.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Usable defaults come back with the write error.
				cfg.ApplyEnv()
				return cfg, err
			}
			cfg.ApplyEnv()
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	cfg.ApplyEnv()

	return &cfg, nil
}

// UpdateFile reads the stored config at path (without env overrides),
// applies fn and saves it back. Used when runtime state such as an
// auto-detected calendar path must be persisted without leaking env secrets
// into the file.
func UpdateFile(path string, fn func(*Config)) error {
	stored := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		stored = &Config{}
		if err := yaml.Unmarshal(data, stored); err != nil {
			return err
		}
	case !errors.Is(err, fs.ErrNotExist):
		return err
	}
	fn(stored)
	return stored.Save(path)
}

// Save normalizes cfg and writes it to path as YAML through
// WriteFileAtomic.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return WriteFileAtomic(path, data, ".pinchy-config-*.tmp")
}

// WriteFileAtomic writes data next to path via a temp file, then renames it
// into place with 0600 permissions.
func WriteFileAtomic(path string, data []byte, pattern string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

// Save writes c to path.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

func dedupe(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
