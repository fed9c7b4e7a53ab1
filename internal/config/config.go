// Package config loads and validates the daemon's YAML configuration and
// watches it for changes.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/marchhare/go-crew/internal/agent"
	"github.com/marchhare/go-crew/internal/telemetry"
)

// LLMConfig selects the active provider and its default model. API keys come
// from the environment first, then from api_keys.
type LLMConfig struct {
	Provider string `yaml:"provider"` // "anthropic" or "openai"
	Model    string `yaml:"model"`
}

// TelegramConfig configures the outbound notification channel.
type TelegramConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Token         string `yaml:"token"`
	DefaultChatID int64  `yaml:"default_chat_id"`
}

// ChannelsConfig groups outbound channels.
type ChannelsConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// SearchConfig tunes the web_search tool.
type SearchConfig struct {
	// Preferred names the search backend to try first ("brave_search" or
	// "duckduckgo"). Empty uses the default order.
	Preferred string `yaml:"preferred"`
}

// AgentEntry declares one agent to register on startup. The manifest's
// specialty id is the agent id.
type AgentEntry struct {
	Manifest agent.Manifest `yaml:",inline"`

	Model              string `yaml:"model"`
	Disabled           bool   `yaml:"disabled"`
	MaxIterations      int    `yaml:"max_iterations"`
	TaskTimeoutSeconds int    `yaml:"task_timeout_seconds"`
}

// Overrides converts the entry's scalar knobs into registration overrides.
func (e AgentEntry) Overrides() *agent.Overrides {
	ov := &agent.Overrides{}
	if e.Model != "" {
		ov.Model = &e.Model
	}
	if e.Disabled {
		enabled := false
		ov.Enabled = &enabled
	}
	if e.MaxIterations > 0 {
		ov.MaxIterations = &e.MaxIterations
	}
	if e.TaskTimeoutSeconds > 0 {
		d := time.Duration(e.TaskTimeoutSeconds) * time.Second
		ov.TaskTimeout = &d
	}
	return ov
}

// ScheduleEntry spawns a task on a cron or interval schedule.
type ScheduleEntry struct {
	Name    string `yaml:"name"`
	AgentID string `yaml:"agent_id"`
	Prompt  string `yaml:"prompt"`
	// Cron is a standard 5-field cron expression. Mutually exclusive with
	// EveryMinutes.
	Cron         string `yaml:"cron"`
	EveryMinutes int    `yaml:"every_minutes"`
	Notify       bool   `yaml:"notify"`
}

// HistoryConfig controls the SQLite task archive.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"` // defaults to <home>/history.db
}

// Config is the full daemon configuration, loaded from <home>/config.yaml.
type Config struct {
	HomeDir string `yaml:"-"`

	LogLevel string `yaml:"log_level"`
	Quiet    bool   `yaml:"quiet"`

	LLM LLMConfig `yaml:"llm"`

	// APIKeys holds keys for tools and integrations ("brave_search", ...).
	// Environment variables take precedence.
	APIKeys map[string]string `yaml:"api_keys"`

	Search    SearchConfig           `yaml:"search"`
	Channels  ChannelsConfig         `yaml:"channels"`
	Agents    []AgentEntry           `yaml:"agents"`
	Schedules []ScheduleEntry        `yaml:"schedules"`
	History   HistoryConfig          `yaml:"history"`
	OTel      telemetry.OTelConfig   `yaml:"otel"`
}

// Path returns the config.yaml path within a home directory.
func Path(homeDir string) string {
	return filepath.Join(homeDir, "config.yaml")
}

// Load reads, defaults, and validates the configuration. A missing file is
// not an error; defaults apply.
func Load(homeDir string) (*Config, error) {
	cfg := &Config{HomeDir: homeDir}

	data, err := os.ReadFile(Path(homeDir))
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config.yaml: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config.yaml: %w", err)
		}
	}
	cfg.HomeDir = homeDir
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "anthropic"
	}
	if c.History.Path == "" {
		c.History.Path = filepath.Join(c.HomeDir, "history.db")
	}
}

func (c *Config) validate() error {
	switch c.LLM.Provider {
	case "anthropic", "openai":
	default:
		return fmt.Errorf("llm.provider %q is not supported", c.LLM.Provider)
	}
	seen := make(map[string]bool, len(c.Agents))
	for i, entry := range c.Agents {
		id := entry.Manifest.Specialty.ID
		if id == "" {
			return fmt.Errorf("agents[%d]: specialty id is required", i)
		}
		if seen[id] {
			return fmt.Errorf("agents[%d]: duplicate agent id %q", i, id)
		}
		seen[id] = true
	}
	for i, s := range c.Schedules {
		if s.AgentID == "" || s.Prompt == "" {
			return fmt.Errorf("schedules[%d]: agent_id and prompt are required", i)
		}
		if (s.Cron == "") == (s.EveryMinutes <= 0) {
			return fmt.Errorf("schedules[%d]: exactly one of cron or every_minutes is required", i)
		}
	}
	if c.Channels.Telegram.Enabled && c.TelegramToken() == "" {
		return fmt.Errorf("channels.telegram: enabled but no token configured")
	}
	return nil
}

// APIKey returns the named key, with environment variables taking precedence
// ("brave_search" → BRAVE_API_KEY).
func (c *Config) APIKey(name string) string {
	envMap := map[string]string{
		"brave_search": "BRAVE_API_KEY",
		"anthropic":    "ANTHROPIC_API_KEY",
		"openai":       "OPENAI_API_KEY",
	}
	if envVar, ok := envMap[name]; ok {
		if v := os.Getenv(envVar); v != "" {
			return v
		}
	}
	if c.APIKeys != nil {
		return c.APIKeys[name]
	}
	return ""
}

// LLMAPIKey returns the key for the active provider.
func (c *Config) LLMAPIKey() string {
	return c.APIKey(c.LLM.Provider)
}

// TelegramToken returns the bot token, TELEGRAM_BOT_TOKEN overriding config.
func (c *Config) TelegramToken() string {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		return v
	}
	return c.Channels.Telegram.Token
}
