// Package config loads etp settings from a config file, the environment and
// command-line flags through viper.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/pablasso/etp/internal/errors"
	"github.com/pablasso/etp/internal/logging"
)

// EnvPrefix prefixes environment overrides, e.g. ETP_SERVER_URL.
const EnvPrefix = "ETP"

// Config is the full etp configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Monitor MonitorConfig `mapstructure:"monitor" yaml:"monitor"`
	State   StateConfig   `mapstructure:"state" yaml:"state"`
	History HistoryConfig `mapstructure:"history" yaml:"history"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
	TUI     TUIConfig     `mapstructure:"tui" yaml:"tui"`
}

// ServerConfig describes how to reach the ETP server.
type ServerConfig struct {
	URL      string        `mapstructure:"url" yaml:"url"`
	Username string        `mapstructure:"username" yaml:"username"`
	Password string        `mapstructure:"password" yaml:"password,omitempty"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
	PageSize int           `mapstructure:"page_size" yaml:"page_size"`
}

// MonitorConfig controls the status polling loop.
type MonitorConfig struct {
	Interval           time.Duration `mapstructure:"interval" yaml:"interval"`
	GoneRefreshDelay   time.Duration `mapstructure:"gone_refresh_delay" yaml:"gone_refresh_delay"`
	ActionRefreshDelay time.Duration `mapstructure:"action_refresh_delay" yaml:"action_refresh_delay"`
	// Strategy is "keyed" (match by id) or "positional".
	Strategy         string `mapstructure:"strategy" yaml:"strategy"`
	ChildConcurrency int    `mapstructure:"child_concurrency" yaml:"child_concurrency"`
}

type StateConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// HistoryConfig selects the transition journal backend: jsonl, sqlite or none.
type HistoryConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// TUIConfig is reserved for presentation settings.
type TUIConfig struct {
	Theme string `mapstructure:"theme" yaml:"theme"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Timeout:  30 * time.Second,
			PageSize: 10,
		},
		Monitor: MonitorConfig{
			Interval:           5 * time.Second,
			GoneRefreshDelay:   time.Second,
			ActionRefreshDelay: time.Second,
			Strategy:           "keyed",
			ChildConcurrency:   4,
		},
		State:   StateConfig{Dir: DefaultStateDir()},
		History: HistoryConfig{Backend: "jsonl"},
		Logging: LoggingConfig{Level: "info"},
		TUI:     TUIConfig{Theme: "default"},
	}
}

// SetDefaults registers default values with v.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("server.url", d.Server.URL)
	v.SetDefault("server.username", d.Server.Username)
	v.SetDefault("server.password", d.Server.Password)
	v.SetDefault("server.timeout", d.Server.Timeout)
	v.SetDefault("server.page_size", d.Server.PageSize)

	v.SetDefault("monitor.interval", d.Monitor.Interval)
	v.SetDefault("monitor.gone_refresh_delay", d.Monitor.GoneRefreshDelay)
	v.SetDefault("monitor.action_refresh_delay", d.Monitor.ActionRefreshDelay)
	v.SetDefault("monitor.strategy", d.Monitor.Strategy)
	v.SetDefault("monitor.child_concurrency", d.Monitor.ChildConcurrency)

	v.SetDefault("state.dir", d.State.Dir)
	v.SetDefault("history.backend", d.History.Backend)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("tui.theme", d.TUI.Theme)
}

// Init prepares v to read configFile, or config.yaml from the standard
// directories when configFile is empty, plus ETP_* environment variables.
// A missing config file is not an error.
func Init(v *viper.Viper, configFile string) error {
	SetDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(Dir())
		v.AddConfigPath("$HOME/.config/etp")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix(EnvPrefix)
	// ETP_MONITOR_INTERVAL for monitor.interval
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		if configFile == "" && os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config: %w", err)
	}
	return nil
}

// Load reads v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every field and joins all problems into one error.
// An empty server URL is allowed here; commands that talk to a server
// check it with RequireServer.
func (c *Config) Validate() error {
	var errs []error
	invalid := func(field string, value any, msg string) {
		errs = append(errs, &errors.ValidationError{Field: field, Value: value, Message: msg})
	}

	if c.Server.URL != "" {
		if u, err := url.Parse(c.Server.URL); err != nil || u.Scheme == "" || u.Host == "" {
			invalid("server.url", c.Server.URL, "must be an absolute http(s) URL")
		}
	}
	if c.Server.Timeout <= 0 {
		invalid("server.timeout", c.Server.Timeout, "must be positive")
	}
	if c.Server.PageSize < 1 || c.Server.PageSize > 1000 {
		invalid("server.page_size", c.Server.PageSize, "must be between 1 and 1000")
	}
	if c.Monitor.Interval <= 0 {
		invalid("monitor.interval", c.Monitor.Interval, "must be positive")
	}
	if c.Monitor.GoneRefreshDelay < 0 {
		invalid("monitor.gone_refresh_delay", c.Monitor.GoneRefreshDelay, "must not be negative")
	}
	if c.Monitor.ActionRefreshDelay < 0 {
		invalid("monitor.action_refresh_delay", c.Monitor.ActionRefreshDelay, "must not be negative")
	}
	if !oneOf(c.Monitor.Strategy, ValidStrategies()) {
		invalid("monitor.strategy", c.Monitor.Strategy, "must be one of "+strings.Join(ValidStrategies(), ", "))
	}
	if c.Monitor.ChildConcurrency < 1 {
		invalid("monitor.child_concurrency", c.Monitor.ChildConcurrency, "must be at least 1")
	}
	if !oneOf(c.History.Backend, ValidBackends()) {
		invalid("history.backend", c.History.Backend, "must be one of "+strings.Join(ValidBackends(), ", "))
	}
	if !oneOf(strings.ToUpper(c.Logging.Level), logging.ValidLevels()) {
		invalid("logging.level", c.Logging.Level, "must be one of "+strings.Join(logging.ValidLevels(), ", "))
	}
	return errors.Join(errs...)
}

// RequireServer reports an error when no server URL is configured.
func (c *Config) RequireServer() error {
	if c.Server.URL == "" {
		return &errors.ValidationError{Field: "server.url", Value: `""`, Message: "is required (set it in config.yaml or ETP_SERVER_URL)"}
	}
	return nil
}

// ValidStrategies lists the accepted monitor.strategy values.
func ValidStrategies() []string {
	return []string{"keyed", "positional"}
}

// ValidBackends lists the accepted history.backend values.
func ValidBackends() []string {
	return []string{"jsonl", "sqlite", "none"}
}

func oneOf(s string, options []string) bool {
	for _, o := range options {
		if s == o {
			return true
		}
	}
	return false
}

// Dir returns the user's etp config directory.
func Dir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "etp")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".etp"
	}
	return filepath.Join(home, ".config", "etp")
}

// DefaultStateDir returns where snapshots, history and logs live by default.
func DefaultStateDir() string {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" {
		return filepath.Join(xdg, "etp")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".etp"
	}
	return filepath.Join(home, ".local", "state", "etp")
}

// SnapshotDir is where remembered trees are stored.
func (c *Config) SnapshotDir() string {
	return filepath.Join(c.State.Dir, "snapshots")
}

// HistoryDir is where JSON Lines history files are stored.
func (c *Config) HistoryDir() string {
	return filepath.Join(c.State.Dir, "history")
}

// LogDir is where etp.log is written.
func (c *Config) LogDir() string {
	return filepath.Join(c.State.Dir, "logs")
}
