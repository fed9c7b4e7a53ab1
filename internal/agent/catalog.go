package agent

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Snapshot is a read-only copy of an agent's runtime state. Task slices hold
// value copies taken under the catalog lock.
type Snapshot struct {
	Config         Config
	ActiveTasks    []Task
	CompletedTasks []Task
	IsRunning      bool
}

// state is the live record for a registered agent. All access goes through
// the catalog mutex: Spawn runs on caller goroutines while the drain loop
// mutates tasks on its own.
type state struct {
	config    Config
	active    []*Task // pending and running tasks only
	completed []*Task // ring buffer, oldest first, cap completedHistoryCap
	isRunning bool
}

// Catalog maps agent ids to their configuration and runtime state.
type Catalog struct {
	mu     sync.RWMutex
	logger *slog.Logger
	agents map[string]*state
}

// NewCatalog creates an empty Catalog.
func NewCatalog(logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{
		logger: logger,
		agents: make(map[string]*state),
	}
}

// Register inserts or replaces an agent. Replacing logs a warning and starts
// over with fresh, empty task lists.
func (c *Catalog) Register(id string, cfg Config) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.agents[id]; exists {
		c.logger.Warn("agent re-registered, dropping previous state", "agent_id", id)
	}
	c.agents[id] = &state{
		config:    cfg,
		isRunning: cfg.Enabled,
	}
	c.logger.Info("agent registered", "agent_id", id, "enabled", cfg.Enabled)
}

// RegisterFromManifest derives a Config from a manifest (enabled, default
// model, specialty id as agent id), applies overrides, and registers it.
func (c *Catalog) RegisterFromManifest(m Manifest, ov *Overrides) {
	cfg := Config{
		Identity:  m.Identity,
		Specialty: m.Specialty,
		Model:     m.DefaultModel,
		Enabled:   true,
	}
	if ov != nil {
		if ov.Model != nil {
			cfg.Model = *ov.Model
		}
		if ov.Enabled != nil {
			cfg.Enabled = *ov.Enabled
		}
		if ov.MaxIterations != nil {
			cfg.MaxIterations = *ov.MaxIterations
		}
		if ov.TaskTimeout != nil {
			cfg.TaskTimeout = *ov.TaskTimeout
		}
	}
	c.Register(m.Specialty.ID, cfg)
}

// Get returns a snapshot of one agent.
func (c *Catalog) Get(id string) (Snapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st, ok := c.agents[id]
	if !ok {
		return Snapshot{}, false
	}
	return st.snapshot(), true
}

// List returns snapshots of all agents, ordered by id.
func (c *Catalog) List() []Snapshot {
	return c.listWhere(func(*state) bool { return true })
}

// ListEnabled returns snapshots of agents whose config is enabled.
func (c *Catalog) ListEnabled() []Snapshot {
	return c.listWhere(func(st *state) bool { return st.config.Enabled })
}

func (c *Catalog) listWhere(keep func(*state) bool) []Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.agents))
	for id, st := range c.agents {
		if keep(st) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	out := make([]Snapshot, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.agents[id].snapshot())
	}
	return out
}

// SetEnabled toggles an agent's enabled flag and isRunning together.
// Unknown ids are a silent no-op. Tasks already running are unaffected.
func (c *Catalog) SetEnabled(id string, enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.agents[id]
	if !ok {
		return
	}
	st.config.Enabled = enabled
	st.isRunning = enabled
	c.logger.Info("agent toggled", "agent_id", id, "enabled", enabled)
}

// SetModel sets or clears ("" clears) an agent's model override. Returns
// false if the agent is unknown. The override applies only to tasks spawned
// afterwards.
func (c *Catalog) SetModel(id, model string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.agents[id]
	if !ok {
		return false
	}
	st.config.Model = model
	return true
}

// UpdateConfig shallow-merges a patch into an agent's config. Returns false
// if the agent is unknown.
func (c *Catalog) UpdateConfig(id string, patch ConfigPatch) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.agents[id]
	if !ok {
		return false
	}
	if patch.Identity != nil {
		st.config.Identity = *patch.Identity
	}
	if patch.Specialty != nil {
		st.config.Specialty = *patch.Specialty
	}
	if patch.Model != nil {
		st.config.Model = *patch.Model
	}
	if patch.Enabled != nil {
		st.config.Enabled = *patch.Enabled
		st.isRunning = *patch.Enabled
	}
	if patch.MaxIterations != nil {
		st.config.MaxIterations = *patch.MaxIterations
	}
	if patch.TaskTimeout != nil {
		st.config.TaskTimeout = *patch.TaskTimeout
	}
	if patch.MaxConcurrent != nil {
		st.config.MaxConcurrent = *patch.MaxConcurrent
	}
	return true
}

// beginTask validates the target agent and appends a fresh pending task to
// its active list. No task is recorded when an error is returned.
func (c *Catalog) beginTask(t *Task) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.agents[t.AgentID]
	if !ok {
		return fmt.Errorf("spawn: agent %q: %w", t.AgentID, ErrAgentNotFound)
	}
	if !st.config.Enabled {
		return fmt.Errorf("spawn: agent %q: %w", t.AgentID, ErrAgentDisabled)
	}
	st.active = append(st.active, t)
	return nil
}

// configOf returns a value copy of an agent's config for one execution.
func (c *Catalog) configOf(id string) (Config, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	st, ok := c.agents[id]
	if !ok {
		return Config{}, false
	}
	return st.config, true
}

// startTask marks the task running and returns the stamped start time.
func (c *Catalog) startTask(t *Task) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t.Status = StatusRunning
	t.StartedAt = time.Now()
	return t.StartedAt
}

// finishTask records a terminal state and migrates the task from its agent's
// active list into the completed ring, evicting the oldest entry past the
// cap. Failed tasks migrate the same way as successes, so activeTasks holds
// only pending/running work.
func (c *Catalog) finishTask(t *Task, status Status, result, errMsg string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	t.Status = status
	t.Result = result
	t.Error = errMsg
	t.CompletedAt = time.Now()

	st, ok := c.agents[t.AgentID]
	if !ok {
		// Agent vanished via re-register; the task keeps its terminal state
		// but has no history list to join.
		return
	}
	for i, active := range st.active {
		if active.ID == t.ID {
			st.active = append(st.active[:i], st.active[i+1:]...)
			break
		}
	}
	st.completed = append(st.completed, t)
	if len(st.completed) > completedHistoryCap {
		st.completed = st.completed[len(st.completed)-completedHistoryCap:]
	}
}

// findTask scans every agent's active then completed tasks and returns a
// value copy. Linear scan; fine at this scale.
func (c *Catalog) findTask(id string) (Task, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, st := range c.agents {
		for _, t := range st.active {
			if t.ID == id {
				return *t, true
			}
		}
		for _, t := range st.completed {
			if t.ID == id {
				return *t, true
			}
		}
	}
	return Task{}, false
}

// taskCopy returns a value snapshot of a live task under the lock.
func (c *Catalog) taskCopy(t *Task) Task {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return *t
}

func (st *state) snapshot() Snapshot {
	snap := Snapshot{
		Config:         st.config,
		IsRunning:      st.isRunning,
		ActiveTasks:    make([]Task, 0, len(st.active)),
		CompletedTasks: make([]Task, 0, len(st.completed)),
	}
	for _, t := range st.active {
		snap.ActiveTasks = append(snap.ActiveTasks, *t)
	}
	for _, t := range st.completed {
		snap.CompletedTasks = append(snap.CompletedTasks, *t)
	}
	return snap
}
