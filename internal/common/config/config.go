// Package config provides configuration management for error-resolver.
// It supports loading configuration from environment variables, config files, and defaults.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration sections for error-resolver.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Shell         ShellConfig         `mapstructure:"shell"`
	Analysis      AnalysisConfig      `mapstructure:"analysis"`
	Resolver      ResolverConfig      `mapstructure:"resolver"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Interactive   InteractiveConfig   `mapstructure:"interactive"`
	NATS          NATSConfig          `mapstructure:"nats"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"readTimeout"`  // in seconds
	WriteTimeout int    `mapstructure:"writeTimeout"` // in seconds
}

// ShellConfig holds child shell configuration.
type ShellConfig struct {
	// Command is the shell executable. Empty means auto-detect ($SHELL, then
	// a fixed fallback list).
	Command string   `mapstructure:"command"`
	Args    []string `mapstructure:"args"`
	WorkDir string   `mapstructure:"workDir"`

	// UsePty starts the shell on a PTY instead of plain pipes. Pipes are the
	// default; PTY mode is for shells that refuse to run interactively without one.
	UsePty bool `mapstructure:"usePty"`
	Cols   int  `mapstructure:"cols"`
	Rows   int  `mapstructure:"rows"`
}

// AnalysisConfig holds output analysis configuration.
type AnalysisConfig struct {
	DebounceDelay       time.Duration `mapstructure:"debounceDelay"`       // quiet period before an analysis pass
	FallbackPromptDelay time.Duration `mapstructure:"fallbackPromptDelay"` // silent-command liveness timer
	GroupDistance       int           `mapstructure:"groupDistance"`       // max line distance for consecutive-error grouping
	ContextAbove        int           `mapstructure:"contextAbove"`
	ContextBelow        int           `mapstructure:"contextBelow"`
	StackTraceMaxDepth  int           `mapstructure:"stackTraceMaxDepth"`
	PatternFiles        []string      `mapstructure:"patternFiles"` // extra YAML pattern sources
}

// ResolverConfig holds resolution provider configuration.
type ResolverConfig struct {
	MaxResolutions   int           `mapstructure:"maxResolutions"`
	ProviderTimeout  time.Duration `mapstructure:"providerTimeout"`
	WorkspaceRoot    string        `mapstructure:"workspaceRoot"`
	RCADatabasePath  string        `mapstructure:"rcaDatabasePath"`
	CodebaseEnabled  bool          `mapstructure:"codebaseEnabled"`
	RCAEnabled       bool          `mapstructure:"rcaEnabled"`
	WebSearchEnabled bool          `mapstructure:"webSearchEnabled"`
	AIEnabled        bool          `mapstructure:"aiEnabled"`
	AIEndpoint       string        `mapstructure:"aiEndpoint"`
}

// NotificationsConfig holds notification deduplication configuration.
type NotificationsConfig struct {
	DedupExpiry time.Duration `mapstructure:"dedupExpiry"`
}

// InteractiveConfig lists commands that take over the terminal when run.
// Entries are either a bare program name ("vim") or a name plus arguments
// ("npm run dev") matched against the submitted command.
type InteractiveConfig struct {
	Programs []string `mapstructure:"programs"`
}

// NATSConfig holds NATS messaging configuration.
// An empty URL selects the in-memory event bus.
type NATSConfig struct {
	URL           string `mapstructure:"url"`
	ClientID      string `mapstructure:"clientId"`
	MaxReconnects int    `mapstructure:"maxReconnects"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"outputPath"`
}

// ReadTimeoutDuration returns the read timeout as a time.Duration.
func (s *ServerConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

// WriteTimeoutDuration returns the write timeout as a time.Duration.
func (s *ServerConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(s.WriteTimeout) * time.Second
}

// detectDefaultLogFormat returns the appropriate log format based on environment.
func detectDefaultLogFormat() string {
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return "json"
	}
	if env := os.Getenv("ERRRES_ENV"); env == "production" || env == "prod" {
		return "json"
	}
	return "text"
}

// setDefaults configures default values for all configuration options.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)

	// Shell defaults - empty command means auto-detect
	v.SetDefault("shell.command", "")
	v.SetDefault("shell.args", []string{})
	v.SetDefault("shell.workDir", ".")
	v.SetDefault("shell.usePty", false)
	v.SetDefault("shell.cols", 80)
	v.SetDefault("shell.rows", 24)

	// Analysis defaults
	v.SetDefault("analysis.debounceDelay", 500*time.Millisecond)
	v.SetDefault("analysis.fallbackPromptDelay", 300*time.Millisecond)
	v.SetDefault("analysis.groupDistance", 3)
	v.SetDefault("analysis.contextAbove", 2)
	v.SetDefault("analysis.contextBelow", 2)
	v.SetDefault("analysis.stackTraceMaxDepth", 20)
	v.SetDefault("analysis.patternFiles", []string{})

	// Resolver defaults
	v.SetDefault("resolver.maxResolutions", 5)
	v.SetDefault("resolver.providerTimeout", 10*time.Second)
	v.SetDefault("resolver.workspaceRoot", ".")
	v.SetDefault("resolver.rcaDatabasePath", "rca.db")
	v.SetDefault("resolver.codebaseEnabled", true)
	v.SetDefault("resolver.rcaEnabled", true)
	v.SetDefault("resolver.webSearchEnabled", true)
	v.SetDefault("resolver.aiEnabled", false)
	v.SetDefault("resolver.aiEndpoint", "")

	// Notification defaults
	v.SetDefault("notifications.dedupExpiry", 5*time.Minute)

	// Interactive program defaults
	v.SetDefault("interactive.programs", []string{
		"vim", "vi", "nano", "emacs", "less", "more", "top", "htop",
		"python", "python3", "node", "irb", "psql", "mysql", "sqlite3",
		"ssh", "watch", "man", "tmux", "screen",
	})

	// NATS defaults - empty URL means use in-memory event bus
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.clientId", "error-resolver")
	v.SetDefault("nats.maxReconnects", 10)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", detectDefaultLogFormat())
	v.SetDefault("logging.outputPath", "stdout")
}

// Load reads configuration from environment variables, config file, and defaults.
// Environment variables use the prefix ERRRES_ with snake_case naming.
// Config file should be named config.yaml and placed in the current directory
// or /etc/error-resolver/.
func Load() (*Config, error) {
	return LoadWithPath("")
}

// LoadWithPath reads configuration from the specified path or default locations.
func LoadWithPath(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults first
	setDefaults(v)

	// Configure environment variables
	v.SetEnvPrefix("ERRRES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicit bindings for snake_case env vars (camelCase config keys).
	// AutomaticEnv does not handle camelCase to SNAKE_CASE conversion.
	_ = v.BindEnv("shell.workDir", "ERRRES_SHELL_WORK_DIR")
	_ = v.BindEnv("resolver.workspaceRoot", "ERRRES_RESOLVER_WORKSPACE_ROOT")
	_ = v.BindEnv("resolver.rcaDatabasePath", "ERRRES_RESOLVER_RCA_DATABASE_PATH")
	_ = v.BindEnv("resolver.aiEndpoint", "ERRRES_RESOLVER_AI_ENDPOINT")

	// Configure config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/error-resolver/")

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// validate checks that all required configuration fields are set.
func validate(cfg *Config) error {
	var errs []string

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}

	if cfg.Shell.Cols <= 0 || cfg.Shell.Rows <= 0 {
		errs = append(errs, "shell.cols and shell.rows must be positive")
	}

	if cfg.Analysis.DebounceDelay <= 0 {
		errs = append(errs, "analysis.debounceDelay must be positive")
	}
	if cfg.Analysis.FallbackPromptDelay <= 0 {
		errs = append(errs, "analysis.fallbackPromptDelay must be positive")
	}
	if cfg.Analysis.GroupDistance < 0 {
		errs = append(errs, "analysis.groupDistance must not be negative")
	}
	if cfg.Analysis.StackTraceMaxDepth <= 0 {
		errs = append(errs, "analysis.stackTraceMaxDepth must be positive")
	}

	if cfg.Resolver.MaxResolutions <= 0 {
		errs = append(errs, "resolver.maxResolutions must be positive")
	}
	if cfg.Resolver.ProviderTimeout <= 0 {
		errs = append(errs, "resolver.providerTimeout must be positive")
	}
	if cfg.Resolver.AIEnabled && cfg.Resolver.AIEndpoint == "" {
		errs = append(errs, "resolver.aiEndpoint is required when resolver.aiEnabled is set")
	}

	if cfg.Notifications.DedupExpiry <= 0 {
		errs = append(errs, "notifications.dedupExpiry must be positive")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, "logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(cfg.Logging.Format)] {
		errs = append(errs, "logging.format must be one of: json, text")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}

	return nil
}
