// Package config provides configuration loading for coachmesh.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config is the complete service configuration.
type Config struct {
	Server       ServerConfig       `koanf:"server"`
	Orchestrator OrchestratorConfig `koanf:"orchestrator"`
	Memory       MemoryConfig       `koanf:"memory"`
	Session      SessionConfig      `koanf:"session"`
	Guardrail    GuardrailConfig    `koanf:"guardrail"`
	Pose         PoseConfig         `koanf:"pose"`
	Mindfulness  MindfulnessConfig  `koanf:"mindfulness"`
	Logging      LoggingConfig      `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string   `koanf:"host"`
	Port            int      `koanf:"port"`
	RateLimit       float64  `koanf:"rate_limit"` // requests per second, 0 disables
	Burst           int      `koanf:"burst"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
	Metrics         bool     `koanf:"metrics"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// OrchestratorConfig maps onto engine.Config.
type OrchestratorConfig struct {
	AgentTimeout   Duration `koanf:"agent_timeout"`
	MemoryLimit    int      `koanf:"memory_limit"`
	MaxConcurrency int      `koanf:"max_concurrency"`
}

// MemoryConfig configures the memory manager and its optional journal.
type MemoryConfig struct {
	MaxSessionEntries int `koanf:"max_session_entries"`
	// JournalPath enables the BadgerDB journal when set.
	JournalPath string   `koanf:"journal_path"`
	Retention   Duration `koanf:"retention"`
}

// SessionConfig configures session eviction.
type SessionConfig struct {
	IdleTimeout   Duration `koanf:"idle_timeout"`
	SweepInterval Duration `koanf:"sweep_interval"`
}

// GuardrailConfig configures the validator.
type GuardrailConfig struct {
	HistoryCeiling int `koanf:"history_ceiling"`
}

// PoseConfig configures the pose agent.
type PoseConfig struct {
	WorkoutCompleteReps int `koanf:"workout_complete_reps"`
}

// MindfulnessConfig selects the lesson writer.
type MindfulnessConfig struct {
	// Provider is one of template, openai or anthropic.
	Provider string `koanf:"provider"`
	Model    string `koanf:"model"`
	APIKey   Secret `koanf:"api_key"`
	BaseURL  string `koanf:"base_url"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Lesson writer providers.
const (
	ProviderTemplate  = "template"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			RateLimit:       20,
			Burst:           40,
			ShutdownTimeout: Duration(10 * time.Second),
			Metrics:         true,
		},
		Orchestrator: OrchestratorConfig{
			AgentTimeout:   Duration(30 * time.Second),
			MemoryLimit:    10,
			MaxConcurrency: 10,
		},
		Memory: MemoryConfig{
			MaxSessionEntries: 1000,
		},
		Session: SessionConfig{
			IdleTimeout:   Duration(30 * time.Minute),
			SweepInterval: Duration(time.Minute),
		},
		Guardrail: GuardrailConfig{
			HistoryCeiling: 100,
		},
		Pose: PoseConfig{
			WorkoutCompleteReps: 30,
		},
		Mindfulness: MindfulnessConfig{
			Provider: ProviderTemplate,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be in 1..65535, got %d", c.Server.Port))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, errors.New("server.rate_limit cannot be negative"))
	}
	if c.Server.RateLimit > 0 && c.Server.Burst < 1 {
		errs = append(errs, errors.New("server.burst must be positive when rate limiting is enabled"))
	}
	if c.Orchestrator.MemoryLimit < 1 {
		errs = append(errs, errors.New("orchestrator.memory_limit must be positive"))
	}
	if c.Orchestrator.MaxConcurrency < 0 {
		errs = append(errs, errors.New("orchestrator.max_concurrency cannot be negative"))
	}
	if c.Memory.MaxSessionEntries < 1 {
		errs = append(errs, errors.New("memory.max_session_entries must be positive"))
	}
	if c.Session.IdleTimeout > 0 && c.Session.SweepInterval <= 0 {
		errs = append(errs, errors.New("session.sweep_interval must be positive when idle_timeout is set"))
	}
	if c.Guardrail.HistoryCeiling < 0 {
		errs = append(errs, errors.New("guardrail.history_ceiling cannot be negative"))
	}
	if c.Pose.WorkoutCompleteReps < 1 {
		errs = append(errs, errors.New("pose.workout_complete_reps must be positive"))
	}

	switch c.Mindfulness.Provider {
	case ProviderTemplate:
	case ProviderOpenAI, ProviderAnthropic:
		if !c.Mindfulness.APIKey.IsSet() {
			errs = append(errs, fmt.Errorf("mindfulness.api_key is required for provider %s", c.Mindfulness.Provider))
		}
	default:
		errs = append(errs, fmt.Errorf("mindfulness.provider must be one of template, openai, anthropic, got %q", c.Mindfulness.Provider))
	}

	switch strings.ToLower(c.Logging.Format) {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}
