// Package config loads codexterm configuration from YAML/JSON files and the
// environment via viper.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Reasoning effort levels understood by the model field of the status-line
// payload and forwarded to the engine.
const (
	EffortNone   = "none"
	EffortLow    = "low"
	EffortMedium = "medium"
	EffortHigh   = "high"
)

// ---------------------------------------------------------------------------
// Config
// ---------------------------------------------------------------------------

// Config holds all configuration for codexterm.
type Config struct {
	// --- Model ---
	Model            string  `mapstructure:"model" json:"model"`
	ModelDisplayName string  `mapstructure:"model_display_name" json:"model_display_name,omitempty"`
	ReasoningEffort  string  `mapstructure:"reasoning_effort" json:"reasoning_effort,omitempty"`
	MaxTokens        int     `mapstructure:"max_tokens" json:"max_tokens"`
	Temperature      float64 `mapstructure:"temperature" json:"temperature"`

	// --- Credentials ---
	OpenAIAPIKey string `mapstructure:"openai_api_key" json:"openai_api_key,omitempty"`
	// OpenAIBaseURL overrides the API endpoint, for proxies and
	// OpenAI-compatible backends.
	OpenAIBaseURL string `mapstructure:"openai_base_url" json:"openai_base_url,omitempty"`

	// --- Sessions ---
	SessionDir string `mapstructure:"session_dir" json:"session_dir,omitempty"`

	// --- Status line ---
	StatusLine *StatusLineConfig `mapstructure:"status_line" json:"status_line,omitempty"`

	// --- Policies (forwarded to the chat widget) ---
	ApprovalPolicy string `mapstructure:"approval_policy" json:"approval_policy,omitempty"`
	SandboxPolicy  string `mapstructure:"sandbox_policy" json:"sandbox_policy,omitempty"`

	// --- Logging ---
	LogLevel string `mapstructure:"log_level" json:"log_level,omitempty"`
	LogFile  string `mapstructure:"log_file" json:"log_file,omitempty"`

	// --- Runtime state (not serialized) ---

	// Cwd is the working directory at startup.
	Cwd string `mapstructure:"-" json:"-"`
	// InitialPrompt is submitted as the first user message on startup.
	InitialPrompt string `mapstructure:"-" json:"-"`
	// InitialImages are attached to the initial prompt.
	InitialImages []string `mapstructure:"-" json:"-"`
	// ExperimentalResume is the rollout path to replay; set from the
	// --resume flag and cleared after the first successful replay.
	ExperimentalResume string `mapstructure:"-" json:"-"`
}

// StatusLineConfig configures the external status-line command. A nil or
// empty Command disables the status line.
type StatusLineConfig struct {
	Command []string `mapstructure:"command" json:"command,omitempty"`
	Padding *int     `mapstructure:"padding" json:"padding,omitempty"`
}

// DisplayName returns the configured display name, falling back to the
// model id.
func (c *Config) DisplayName() string {
	if c.ModelDisplayName != "" {
		return c.ModelDisplayName
	}
	return c.Model
}

// Clone returns a shallow copy. The controller keeps a Config so it can
// recreate chat widgets; the copy avoids aliasing the widget's view of it.
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

// ---------------------------------------------------------------------------
// Load
// ---------------------------------------------------------------------------

// Load reads configuration with precedence: project .codexterm/ > global
// ~/.config/codexterm > defaults, then environment overrides.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("model", "gpt-5")
	v.SetDefault("max_tokens", 12288)
	v.SetDefault("temperature", 0.0)
	v.SetDefault("log_level", "info")

	home, err := os.UserHomeDir()
	if err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "codexterm"))
	}
	v.AddConfigPath(".codexterm")
	v.SetConfigName("codexterm")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("CODEXTERM")
	v.AutomaticEnv()
	_ = v.BindEnv("openai_api_key", "OPENAI_API_KEY")

	_ = v.ReadInConfig()

	// Project-level JSON override, merged key by key.
	if data, err := os.ReadFile(filepath.Join(".codexterm", "config.json")); err == nil {
		var jsonCfg map[string]interface{}
		if json.Unmarshal(data, &jsonCfg) == nil {
			for k, val := range jsonCfg {
				v.Set(k, val)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.SessionDir == "" {
		if home != "" {
			cfg.SessionDir = filepath.Join(home, ".codexterm", "sessions")
		} else {
			cfg.SessionDir = filepath.Join(".codexterm", "sessions")
		}
	}
	if cfg.LogFile == "" && home != "" {
		cfg.LogFile = filepath.Join(home, ".codexterm", "codexterm.log")
	}
	if cwd, err := os.Getwd(); err == nil {
		cfg.Cwd = cwd
	}
	cfg.ReasoningEffort = normalizeEffort(cfg.ReasoningEffort)

	return &cfg, nil
}

func normalizeEffort(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case EffortLow:
		return EffortLow
	case EffortMedium:
		return EffortMedium
	case EffortHigh:
		return EffortHigh
	case EffortNone:
		return EffortNone
	default:
		return ""
	}
}

// RelativizeToHome rewrites a path under the user's home directory as
// ~/rest. Paths outside home are returned unchanged.
func RelativizeToHome(path string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}
	rel, err := filepath.Rel(home, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, "../") {
		return path
	}
	return filepath.Join("~", rel)
}
