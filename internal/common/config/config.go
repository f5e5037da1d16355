// Package config provides configuration management for AgentBoard.
// It supports loading configuration from environment variables, config files, and defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration sections for AgentBoard.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Docker    DockerConfig    `mapstructure:"docker"`
	Agent     AgentConfig     `mapstructure:"agent"`
	Workspace WorkspaceConfig `mapstructure:"workspace"`
	Execution ExecutionConfig `mapstructure:"execution"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Tracing   TracingConfig   `mapstructure:"tracing"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"readTimeout"`  // in seconds
	WriteTimeout int    `mapstructure:"writeTimeout"` // in seconds, 0 disables (runs stream for minutes)
}

// DatabaseConfig holds database connection configuration.
// Driver is "sqlite3" (Path is used) or "pgx" (the connection fields are used).
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Path     string `mapstructure:"path"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbName"`
	SSLMode  string `mapstructure:"sslMode"`
	MaxConns int    `mapstructure:"maxConns"`
	MinConns int    `mapstructure:"minConns"`
}

// NATSConfig holds NATS messaging configuration. An empty URL selects the in-memory bus.
type NATSConfig struct {
	URL           string `mapstructure:"url"`
	ClusterID     string `mapstructure:"clusterId"`
	ClientID      string `mapstructure:"clientId"`
	MaxReconnects int    `mapstructure:"maxReconnects"`
}

// DockerConfig holds Docker client configuration for the docker agent runtime.
type DockerConfig struct {
	Host       string `mapstructure:"host"`
	APIVersion string `mapstructure:"apiVersion"`
}

// AgentConfig controls how the external agent is launched.
type AgentConfig struct {
	Runtime          string   `mapstructure:"runtime"` // cli or docker
	Binary           string   `mapstructure:"binary"`
	Model            string   `mapstructure:"model"`
	PermissionMode   string   `mapstructure:"permissionMode"`
	BuildMaxTurns    int      `mapstructure:"buildMaxTurns"`
	ResearchMaxTurns int      `mapstructure:"researchMaxTurns"`
	DockerImage      string   `mapstructure:"dockerImage"`
	ExtraEnv         []string `mapstructure:"extraEnv"`
}

// WorkspaceConfig locates per-project build directories.
type WorkspaceConfig struct {
	Root string `mapstructure:"root"`
}

// ExecutionConfig bounds run concurrency and the persistence recorder.
type ExecutionConfig struct {
	MaxConcurrent     int `mapstructure:"maxConcurrent"`
	RecorderQueueSize int `mapstructure:"recorderQueueSize"`
	WriteTimeoutMs    int `mapstructure:"writeTimeoutMs"`
	FlushTimeoutMs    int `mapstructure:"flushTimeoutMs"`
	SheetTimeoutMs    int `mapstructure:"sheetTimeoutMs"`
	StartsPerSecond   int `mapstructure:"startsPerSecond"` // rate limit on POST /execute, 0 disables
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"outputPath"`
}

// TracingConfig toggles OpenTelemetry spans. Export still requires OTEL_EXPORTER_OTLP_ENDPOINT.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ServiceName string `mapstructure:"serviceName"`
}

// ReadTimeoutDuration returns the read timeout as a time.Duration.
func (s *ServerConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

// WriteTimeoutDuration returns the write timeout as a time.Duration.
func (s *ServerConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(s.WriteTimeout) * time.Second
}

// Addr returns host:port for the HTTP listener.
func (s *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// WriteTimeout returns the per-write persistence timeout.
func (e *ExecutionConfig) WriteTimeout() time.Duration {
	return time.Duration(e.WriteTimeoutMs) * time.Millisecond
}

// FlushTimeout returns how long a run waits for pending writes before reading final state.
func (e *ExecutionConfig) FlushTimeout() time.Duration {
	return time.Duration(e.FlushTimeoutMs) * time.Millisecond
}

// SheetTimeout returns the bound on the awaited research sheet insert.
func (e *ExecutionConfig) SheetTimeout() time.Duration {
	return time.Duration(e.SheetTimeoutMs) * time.Millisecond
}

func detectDefaultLogFormat() string {
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return "json"
	}
	if env := os.Getenv("AGENTBOARD_ENV"); env == "production" || env == "prod" {
		return "json"
	}
	return "text"
}

// defaultAgentBinary honours $CLAUDE_CLI so a wrapper script can stand in for the real CLI.
func defaultAgentBinary() string {
	if bin := os.Getenv("CLAUDE_CLI"); bin != "" {
		return bin
	}
	return "claude"
}

// setDefaults configures default values for all configuration options.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 0)

	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.path", "./agentboard.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "agentboard")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbName", "agentboard")
	v.SetDefault("database.sslMode", "disable")
	v.SetDefault("database.maxConns", 25)
	v.SetDefault("database.minConns", 5)

	// Empty URL means use in-memory event bus
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.clusterId", "agentboard-cluster")
	v.SetDefault("nats.clientId", "agentboard-client")
	v.SetDefault("nats.maxReconnects", 10)

	v.SetDefault("docker.host", "unix:///var/run/docker.sock")
	v.SetDefault("docker.apiVersion", "1.41")

	v.SetDefault("agent.runtime", "cli")
	v.SetDefault("agent.binary", defaultAgentBinary())
	v.SetDefault("agent.model", "claude-sonnet-4-6")
	v.SetDefault("agent.permissionMode", "bypassPermissions")
	v.SetDefault("agent.buildMaxTurns", 50)
	v.SetDefault("agent.researchMaxTurns", 30)
	v.SetDefault("agent.dockerImage", "agentboard/claude-agent:latest")
	v.SetDefault("agent.extraEnv", []string{})

	v.SetDefault("workspace.root", filepath.Join("..", "agentboard-workspace"))

	v.SetDefault("execution.maxConcurrent", 4)
	v.SetDefault("execution.recorderQueueSize", 1024)
	v.SetDefault("execution.writeTimeoutMs", 5000)
	v.SetDefault("execution.flushTimeoutMs", 5000)
	v.SetDefault("execution.sheetTimeoutMs", 5000)
	v.SetDefault("execution.startsPerSecond", 5)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", detectDefaultLogFormat())
	v.SetDefault("logging.outputPath", "stdout")

	v.SetDefault("tracing.enabled", true)
	v.SetDefault("tracing.serviceName", "agentboard")
}

// Load reads configuration from environment variables, config file, and defaults.
// Environment variables use the prefix AGENTBOARD_ with dots replaced by underscores.
func Load() (*Config, error) {
	return LoadWithPath("")
}

// LoadWithPath reads configuration from the specified directory or the default locations.
func LoadWithPath(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("AGENTBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv does not map camelCase keys to SNAKE_CASE, bind the common ones explicitly.
	_ = v.BindEnv("database.dbName", "AGENTBOARD_DATABASE_DB_NAME")
	_ = v.BindEnv("agent.buildMaxTurns", "AGENTBOARD_AGENT_BUILD_MAX_TURNS")
	_ = v.BindEnv("agent.researchMaxTurns", "AGENTBOARD_AGENT_RESEARCH_MAX_TURNS")
	_ = v.BindEnv("agent.dockerImage", "AGENTBOARD_AGENT_DOCKER_IMAGE")
	_ = v.BindEnv("execution.maxConcurrent", "AGENTBOARD_EXECUTION_MAX_CONCURRENT")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/agentboard/")

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

	switch cfg.Database.Driver {
	case "sqlite3":
		if cfg.Database.Path == "" {
			errs = append(errs, "database.path is required for sqlite3")
		}
	case "pgx":
		if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
			errs = append(errs, "database.port must be between 1 and 65535")
		}
		if cfg.Database.User == "" {
			errs = append(errs, "database.user is required for pgx")
		}
		if cfg.Database.DBName == "" {
			errs = append(errs, "database.dbName is required for pgx")
		}
	default:
		errs = append(errs, "database.driver must be one of: sqlite3, pgx")
	}

	switch cfg.Agent.Runtime {
	case "cli":
		if cfg.Agent.Binary == "" {
			errs = append(errs, "agent.binary is required for the cli runtime")
		}
	case "docker":
		if cfg.Agent.DockerImage == "" {
			errs = append(errs, "agent.dockerImage is required for the docker runtime")
		}
	default:
		errs = append(errs, "agent.runtime must be one of: cli, docker")
	}
	if cfg.Agent.BuildMaxTurns <= 0 || cfg.Agent.ResearchMaxTurns <= 0 {
		errs = append(errs, "agent max turns must be positive")
	}

	if cfg.Workspace.Root == "" {
		errs = append(errs, "workspace.root is required")
	}

	if cfg.Execution.MaxConcurrent <= 0 {
		errs = append(errs, "execution.maxConcurrent must be positive")
	}
	if cfg.Execution.RecorderQueueSize <= 0 {
		errs = append(errs, "execution.recorderQueueSize must be positive")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, "logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true, "console": true}
	if !validFormats[strings.ToLower(cfg.Logging.Format)] {
		errs = append(errs, "logging.format must be one of: json, text, console")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}
