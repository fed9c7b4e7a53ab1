// Package agent implements the sub-agent orchestration core: the agent
// catalog, the serialized task queue, and the bounded agentic loop that
// executes each task against an LLM provider and a shared tool catalog.
package agent

import "time"

// Voice values accepted in an Identity. An unset or unknown voice falls back
// to VoiceFriendly.
const (
	VoiceProfessional = "professional"
	VoiceCasual       = "casual"
	VoiceFriendly     = "friendly"
	VoicePlayful      = "playful"
)

const (
	// DefaultMaxIterations bounds the ask-model/run-tools cycle per task.
	DefaultMaxIterations = 10
	// DefaultTaskTimeout bounds a task's wall-clock execution time.
	DefaultTaskTimeout = 120 * time.Second
	// completedHistoryCap bounds each agent's completed-task ring buffer.
	completedHistoryCap = 50
)

// Identity is the persona half of an agent configuration.
type Identity struct {
	Name    string `yaml:"name"`
	Emoji   string `yaml:"emoji"`
	Persona string `yaml:"persona,omitempty"`
	Voice   string `yaml:"voice,omitempty"`
}

// Specialty defines what an agent is for: the domain prompt, display
// metadata, and the optional tool allowlist.
type Specialty struct {
	ID           string   `yaml:"id"`
	DisplayName  string   `yaml:"display_name"`
	Description  string   `yaml:"description"`
	SystemPrompt string   `yaml:"system_prompt"`
	// Tools restricts the visible tool set to these names. Empty means the
	// full catalog.
	Tools []string `yaml:"tools,omitempty"`
	// RequiredTools names tools this specialty depends on; missing ones are
	// logged at execution time.
	RequiredTools []string `yaml:"required_tools,omitempty"`
}

// Config is a registered agent's full configuration.
type Config struct {
	Identity  Identity
	Specialty Specialty
	// Model overrides the provider's default model. Applies only to tasks
	// spawned after the change.
	Model         string
	Enabled       bool
	MaxIterations int           // 0 = DefaultMaxIterations
	TaskTimeout   time.Duration // 0 = DefaultTaskTimeout
	// MaxConcurrent is reserved; execution is currently globally serial.
	MaxConcurrent int
}

func (c Config) maxIterations() int {
	if c.MaxIterations > 0 {
		return c.MaxIterations
	}
	return DefaultMaxIterations
}

func (c Config) taskTimeout() time.Duration {
	if c.TaskTimeout > 0 {
		return c.TaskTimeout
	}
	return DefaultTaskTimeout
}

// Manifest is the registration payload for RegisterFromManifest. The
// specialty id doubles as the agent id.
type Manifest struct {
	Identity     Identity  `yaml:"identity"`
	Specialty    Specialty `yaml:"specialty"`
	DefaultModel string    `yaml:"default_model,omitempty"`
}

// Overrides tweaks a manifest-derived Config at registration time. Nil
// fields keep the manifest-derived value.
type Overrides struct {
	Model         *string
	Enabled       *bool
	MaxIterations *int
	TaskTimeout   *time.Duration
}

// ConfigPatch is a partial Config for UpdateConfig. Nil fields are left
// untouched; the merge is shallow.
type ConfigPatch struct {
	Identity      *Identity
	Specialty     *Specialty
	Model         *string
	Enabled       *bool
	MaxIterations *int
	TaskTimeout   *time.Duration
	MaxConcurrent *int
}
