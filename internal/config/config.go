package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const (
	defaultListen         = "127.0.0.1:8080"
	defaultTimezone       = "Local"
	defaultAgenda         = "./agenda.ics"
	defaultReloadCron     = "*/15 * * * *"
	defaultLogLevel       = "info"
	defaultMaxOccurrences = 5000
	defaultRateLimit      = 20
)

// BasicAuthConfig holds HTTP Basic Auth credentials for the query API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the query API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone used to resolve "today" and to read
	// date-times given without an offset. "Local" means the host zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// Agenda is the iCalendar source: a file path or an http(s) URL.
	Agenda string `yaml:"agenda" json:"agenda"`

	// ReloadCron is a standard five-field cron schedule for re-reading the
	// agenda source while serving.
	ReloadCron string `yaml:"reload" json:"reload"`

	// Watch also reloads the agenda as soon as a local agenda file changes,
	// on top of the ReloadCron schedule. Ignored for URL sources.
	Watch bool `yaml:"watch" json:"watch"`

	// Strict rejects events with negative durations or terminations that
	// end before they start instead of loading them as-is.
	Strict bool `yaml:"strict" json:"strict"`

	// LogLevel is one of debug, info, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// MaxOccurrences caps how many occurrences a single event contributes
	// to a range expansion.
	MaxOccurrences int `yaml:"max_occurrences" json:"max_occurrences"`

	// RateLimit is the sustained number of /api requests per second served
	// before answering 429. Zero disables limiting.
	RateLimit int `yaml:"rate_limit" json:"rate_limit"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:         defaultListen,
		Timezone:       defaultTimezone,
		Agenda:         defaultAgenda,
		ReloadCron:     defaultReloadCron,
		Watch:          true,
		Strict:         false,
		LogLevel:       defaultLogLevel,
		MaxOccurrences: defaultMaxOccurrences,
		RateLimit:      defaultRateLimit,
		BasicAuth:      nil,
	}
}

// Normalize fills in missing or unusable values with defaults so that
// partially-filled configs still behave.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	if c.Agenda == "" {
		c.Agenda = defaultAgenda
	}
	if _, err := cron.ParseStandard(c.ReloadCron); err != nil {
		c.ReloadCron = defaultReloadCron
	}
	switch c.LogLevel {
	case "debug", "info", "error":
	default:
		c.LogLevel = defaultLogLevel
	}
	if c.MaxOccurrences <= 0 {
		c.MaxOccurrences = defaultMaxOccurrences
	}
	if c.RateLimit < 0 {
		c.RateLimit = 0
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist:
//   - create parent directory if needed
//   - write a default config with 0600 perms
//   - return the default config
//   - If the file exists:
//   - read YAML and unmarshal into Config
//   - normalize defaults
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Caller decides whether an unwritable default is fatal.
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600
// permissions, creating the parent directory (0700) if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".agendacal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

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

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}
