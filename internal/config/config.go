package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	BackendSQLite    = "sqlite"
	BackendPostgREST = "postgrest"
)

// Config holds all application configuration
type Config struct {
	// Backend selects the persistence collaborator: "sqlite" or "postgrest"
	Backend string `mapstructure:"backend"`

	Tracker   TrackerConfig   `mapstructure:"tracker"`
	Database  DatabaseConfig  `mapstructure:"database"`
	PostgREST PostgRESTConfig `mapstructure:"postgrest"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Daemon    DaemonConfig    `mapstructure:"daemon"`
	Report    ReportConfig    `mapstructure:"report"`
	Web       WebConfig       `mapstructure:"web"`
	Log       LogConfig       `mapstructure:"log"`
}

// TrackerConfig holds tracking behavior configuration
type TrackerConfig struct {
	UserID           string        `mapstructure:"user_id"`            // Owner of tracked apps and sessions
	PollInterval     time.Duration `mapstructure:"poll_interval"`      // How often to sample the focused app
	MinPollInterval  time.Duration `mapstructure:"min_poll_interval"`  // Minimum allowed poll interval
	MaxPollInterval  time.Duration `mapstructure:"max_poll_interval"`  // Maximum allowed poll interval
	IdleThreshold    time.Duration `mapstructure:"idle_threshold"`     // No focus change for this long marks the user idle
	CacheTTL         time.Duration `mapstructure:"cache_ttl"`          // Lifetime of the current activity snapshot
	StaleSnapshotMax time.Duration `mapstructure:"stale_snapshot_max"` // Oldest snapshot served while the backend is down
	RegistryTTL      time.Duration `mapstructure:"registry_ttl"`       // Zero re-reads tracked apps every tick
}

// DatabaseConfig holds the local store configuration
type DatabaseConfig struct {
	Path string `mapstructure:"path"` // Empty means ~/.config/focustrack/focustrack.db
}

// PostgRESTConfig points at a Supabase-style REST backend
type PostgRESTConfig struct {
	URL         string        `mapstructure:"url"`
	AnonKey     string        `mapstructure:"anon_key"`
	AccessToken string        `mapstructure:"access_token"` // User JWT, falls back to the anon key
	Timeout     time.Duration `mapstructure:"timeout"`
}

// RedisConfig controls the optional activity snapshot mirror
type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// DaemonConfig holds daemon process configuration
type DaemonConfig struct {
	PIDFile string `mapstructure:"pid_file"`
	LogFile string `mapstructure:"log_file"`
}

// ReportConfig holds report generation configuration
type ReportConfig struct {
	TimeZone string `mapstructure:"time_zone"`
}

// WebConfig holds web server configuration
type WebConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// LogConfig selects level and output format ("json" or "text")
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	uid := os.Getuid()
	if uid < 0 {
		uid = 0
	}
	return &Config{
		Backend: BackendSQLite,
		Tracker: TrackerConfig{
			UserID:           "local",
			PollInterval:     5 * time.Second,
			MinPollInterval:  1 * time.Second,
			MaxPollInterval:  300 * time.Second,
			IdleThreshold:    300 * time.Second,
			CacheTTL:         2 * time.Second,
			StaleSnapshotMax: 10 * time.Minute,
			RegistryTTL:      0,
		},
		PostgREST: PostgRESTConfig{
			Timeout: 10 * time.Second,
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
			TTL:  30 * time.Second,
		},
		Daemon: DaemonConfig{
			PIDFile: fmt.Sprintf("/tmp/focustrack-%d.pid", uid),
			LogFile: fmt.Sprintf("/tmp/focustrack-%d.log", uid),
		},
		Report: ReportConfig{
			TimeZone: "Local",
		},
		Web: WebConfig{
			Enabled: true,
			Host:    "localhost",
			Port:    10000 + uid,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads an optional YAML file and FOCUSTRACK_* environment variables over the defaults.
// An empty path looks for focustrack.yaml in the user config directory.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix("FOCUSTRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("focustrack")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "focustrack"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyLegacyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("backend", d.Backend)

	v.SetDefault("tracker.user_id", d.Tracker.UserID)
	v.SetDefault("tracker.poll_interval", d.Tracker.PollInterval)
	v.SetDefault("tracker.min_poll_interval", d.Tracker.MinPollInterval)
	v.SetDefault("tracker.max_poll_interval", d.Tracker.MaxPollInterval)
	v.SetDefault("tracker.idle_threshold", d.Tracker.IdleThreshold)
	v.SetDefault("tracker.cache_ttl", d.Tracker.CacheTTL)
	v.SetDefault("tracker.stale_snapshot_max", d.Tracker.StaleSnapshotMax)
	v.SetDefault("tracker.registry_ttl", d.Tracker.RegistryTTL)

	v.SetDefault("database.path", d.Database.Path)

	v.SetDefault("postgrest.url", d.PostgREST.URL)
	v.SetDefault("postgrest.anon_key", d.PostgREST.AnonKey)
	v.SetDefault("postgrest.access_token", d.PostgREST.AccessToken)
	v.SetDefault("postgrest.timeout", d.PostgREST.Timeout)

	v.SetDefault("redis.enabled", d.Redis.Enabled)
	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.password", d.Redis.Password)
	v.SetDefault("redis.db", d.Redis.DB)
	v.SetDefault("redis.ttl", d.Redis.TTL)

	v.SetDefault("daemon.pid_file", d.Daemon.PIDFile)
	v.SetDefault("daemon.log_file", d.Daemon.LogFile)

	v.SetDefault("report.time_zone", d.Report.TimeZone)

	v.SetDefault("web.enabled", d.Web.Enabled)
	v.SetDefault("web.host", d.Web.Host)
	v.SetDefault("web.port", d.Web.Port)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Tracker.PollInterval < c.Tracker.MinPollInterval {
		return fmt.Errorf("poll interval (%v) cannot be less than minimum (%v)",
			c.Tracker.PollInterval, c.Tracker.MinPollInterval)
	}

	if c.Tracker.PollInterval > c.Tracker.MaxPollInterval {
		return fmt.Errorf("poll interval (%v) cannot be greater than maximum (%v)",
			c.Tracker.PollInterval, c.Tracker.MaxPollInterval)
	}

	if c.Tracker.IdleThreshold < 0 {
		return fmt.Errorf("idle threshold cannot be negative")
	}

	if c.Tracker.CacheTTL < 0 || c.Tracker.StaleSnapshotMax < 0 || c.Tracker.RegistryTTL < 0 {
		return fmt.Errorf("cache durations cannot be negative")
	}

	if c.Tracker.UserID == "" {
		return fmt.Errorf("tracker user id cannot be empty")
	}

	switch c.Backend {
	case BackendSQLite:
	case BackendPostgREST:
		if c.PostgREST.URL == "" {
			return fmt.Errorf("postgrest backend requires postgrest.url")
		}
		if c.PostgREST.AnonKey == "" {
			return fmt.Errorf("postgrest backend requires postgrest.anon_key")
		}
	default:
		return fmt.Errorf("unknown backend %q (want %s or %s)", c.Backend, BackendSQLite, BackendPostgREST)
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("redis mirror enabled without an address")
	}

	if c.Web.Port < 1 || c.Web.Port > 65535 {
		return fmt.Errorf("web port must be between 1 and 65535, got %d", c.Web.Port)
	}

	if c.Web.Host == "" {
		return fmt.Errorf("web host cannot be empty")
	}

	if c.Daemon.PIDFile == "" {
		return fmt.Errorf("PID file path cannot be empty")
	}

	return nil
}

// SetPollInterval sets the poll interval with validation
func (c *Config) SetPollInterval(interval time.Duration) error {
	if interval < c.Tracker.MinPollInterval {
		return fmt.Errorf("poll interval cannot be less than %v", c.Tracker.MinPollInterval)
	}
	if interval > c.Tracker.MaxPollInterval {
		return fmt.Errorf("poll interval cannot be greater than %v", c.Tracker.MaxPollInterval)
	}
	c.Tracker.PollInterval = interval
	return nil
}

// SetWebPort sets the web server port with validation
func (c *Config) SetWebPort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	c.Web.Port = port
	return nil
}

// WebAddr is the host:port the local API listens on.
func (c *Config) WebAddr() string {
	return fmt.Sprintf("%s:%d", c.Web.Host, c.Web.Port)
}

// String returns a string representation of the config. Secrets are masked.
func (c *Config) String() string {
	return fmt.Sprintf(`Configuration:
  Backend: %s
  Tracker:
    User: %s
    Poll Interval: %v (min %v, max %v)
    Idle Threshold: %v
    Cache TTL: %v
    Stale Snapshot Max: %v
    Registry TTL: %v
  Database:
    Path: %s
  PostgREST:
    URL: %s
    Anon Key: %s
  Redis:
    Enabled: %v
    Addr: %s
  Daemon:
    PID File: %s
    Log File: %s
  Web:
    Host: %s
    Port: %d
  Log:
    Level: %s
    Format: %s`,
		c.Backend,
		c.Tracker.UserID,
		c.Tracker.PollInterval, c.Tracker.MinPollInterval, c.Tracker.MaxPollInterval,
		c.Tracker.IdleThreshold,
		c.Tracker.CacheTTL,
		c.Tracker.StaleSnapshotMax,
		c.Tracker.RegistryTTL,
		c.Database.Path,
		c.PostgREST.URL,
		mask(c.PostgREST.AnonKey),
		c.Redis.Enabled,
		c.Redis.Addr,
		c.Daemon.PIDFile,
		c.Daemon.LogFile,
		c.Web.Host,
		c.Web.Port,
		c.Log.Level,
		c.Log.Format,
	)
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "****"
}
