// Package config provides configuration loading and management.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the codeagent configuration.
type Config struct {
	LLM       LLMConfig       `toml:"llm"`       // Model provider settings
	Sandbox   SandboxConfig   `toml:"sandbox"`   // Shell execution safety settings
	Dispatch  DispatchConfig  `toml:"dispatch"`  // Sub-agent orchestration settings
	Telemetry TelemetryConfig `toml:"telemetry"` // Tracing export settings
}

// LLMConfig contains LLM provider settings.
type LLMConfig struct {
	Provider  string `toml:"provider"`
	Model     string `toml:"model"`
	APIKeyEnv string `toml:"api_key_env"`
	MaxTokens int    `toml:"max_tokens"`
	BaseURL   string `toml:"base_url"` // Custom API endpoint (OpenRouter, LiteLLM, Ollama)
}

// SandboxConfig contains shell execution safety settings.
type SandboxConfig struct {
	Root           string   `toml:"root"`            // Directory commands are confined to (default: cwd)
	DenyCommands   []string `toml:"deny_commands"`   // Extra command names to deny, merged with built-ins
	DefaultTimeout int      `toml:"default_timeout"` // Seconds, applied when a request carries none (default 120)
	MaxTimeout     int      `toml:"max_timeout"`     // Seconds, upper clamp for requested timeouts (default 600)
	OutputLimit    int      `toml:"output_limit"`    // Per-stream capture cap in bytes (default 4000)
}

// DispatchConfig contains sub-agent orchestration settings.
type DispatchConfig struct {
	AgentsDir     string `toml:"agents_dir"`     // Directory scanned for agent definition files
	MaxAgents     int    `toml:"max_agents"`     // Upper clamp for requested agent count (default 10)
	MaxParallel   int    `toml:"max_parallel"`   // Concurrent runner limit (default 4)
	DefaultAgents int    `toml:"default_agents"` // Agent count when the caller requests none (default 3)
	MaxDepth      int    `toml:"max_depth"`      // Nested delegation levels allowed (default 2)
	MaxTurns      int    `toml:"max_turns"`      // Model turns per agent run (default 10)
	Timeout       int    `toml:"timeout"`        // Whole-dispatch timeout in seconds, 0 = none
}

// TelemetryConfig contains telemetry settings.
type TelemetryConfig struct {
	Enabled  bool   `toml:"enabled"`
	Endpoint string `toml:"endpoint"` // OTLP endpoint (e.g., localhost:4317)
	Protocol string `toml:"protocol"` // grpc (default) or http
}

// New creates a new config with defaults.
func New() *Config {
	return &Config{
		LLM: LLMConfig{
			MaxTokens: 4096,
		},
		Sandbox: SandboxConfig{
			DefaultTimeout: 120,
			MaxTimeout:     600,
			OutputLimit:    4000,
		},
		Dispatch: DispatchConfig{
			AgentsDir:     filepath.Join(".codeagent", "agents"),
			MaxAgents:     10,
			MaxParallel:   4,
			DefaultAgents: 3,
			MaxDepth:      2,
			MaxTurns:      10,
		},
		Telemetry: TelemetryConfig{
			Protocol: "noop",
		},
	}
}

// Default returns a default configuration.
func Default() *Config {
	return New()
}

// LoadFile loads configuration from a TOML file.
func LoadFile(path string) (*Config, error) {
	cfg := New()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// LoadDefault loads configuration from codeagent.toml in the current
// directory, falling back to defaults when the file does not exist.
func LoadDefault() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}

	path := filepath.Join(cwd, "codeagent.toml")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return New(), nil
	}
	return LoadFile(path)
}

// GetAPIKey returns the API key from the configured environment variable.
// If api_key_env is not set, uses the default env var for the provider.
func (c *Config) GetAPIKey() string {
	envVar := c.LLM.APIKeyEnv
	if envVar == "" {
		envVar = DefaultAPIKeyEnv(c.LLM.Provider)
	}
	if envVar == "" {
		return ""
	}
	return os.Getenv(envVar)
}

// DefaultAPIKeyEnv returns the default environment variable name for a provider.
func DefaultAPIKeyEnv(provider string) string {
	switch provider {
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	case "openai":
		return "OPENAI_API_KEY"
	case "google":
		return "GOOGLE_API_KEY"
	case "mistral":
		return "MISTRAL_API_KEY"
	case "groq":
		return "GROQ_API_KEY"
	default:
		return ""
	}
}
