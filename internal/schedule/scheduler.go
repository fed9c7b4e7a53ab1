// Package schedule fires recurring tasks into the agent registry from cron
// or fixed-interval definitions.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"

	"github.com/marchhare/go-crew/internal/agent"
)

// cronParser accepts standard 5-field expressions (minute, hour, dom, month, dow).
var cronParser = cronlib.NewParser(
	cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow,
)

// Spawner is the slice of the registry the scheduler needs.
type Spawner interface {
	Spawn(agentID, prompt string, opts *agent.SpawnOptions) (agent.Task, error)
}

// Entry is one recurring task definition. Exactly one of Cron or Every must
// be set.
type Entry struct {
	Name    string
	AgentID string
	Prompt  string
	Cron    string
	Every   time.Duration
	Notify  bool
}

// entry is an Entry with its resolved timing state.
type entry struct {
	Entry
	sched   cronlib.Schedule // nil for interval entries
	nextRun time.Time
}

// Config holds the scheduler's dependencies.
type Config struct {
	Spawner  Spawner
	Logger   *slog.Logger
	Interval time.Duration // tick interval; defaults to 1 minute
}

// Scheduler ticks at a fixed interval and spawns a task for every entry that
// has come due since the last tick.
type Scheduler struct {
	spawner  Spawner
	logger   *slog.Logger
	interval time.Duration

	mu      sync.Mutex
	entries []*entry

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a Scheduler with no entries.
func NewScheduler(cfg Config) *Scheduler {
	interval := cfg.Interval
	if interval <= 0 {
		interval = time.Minute
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		spawner:  cfg.Spawner,
		logger:   logger,
		interval: interval,
	}
}

// Add validates and registers an entry. The first run is the entry's next
// natural occurrence; nothing fires at registration time.
func (s *Scheduler) Add(e Entry) error {
	if e.AgentID == "" || e.Prompt == "" {
		return fmt.Errorf("schedule %q: agent id and prompt are required", e.Name)
	}
	if (e.Cron == "") == (e.Every <= 0) {
		return fmt.Errorf("schedule %q: exactly one of cron or interval is required", e.Name)
	}

	resolved := &entry{Entry: e}
	now := time.Now()
	if e.Cron != "" {
		sched, err := cronParser.Parse(e.Cron)
		if err != nil {
			return fmt.Errorf("schedule %q: parse cron %q: %w", e.Name, e.Cron, err)
		}
		resolved.sched = sched
		resolved.nextRun = sched.Next(now)
	} else {
		resolved.nextRun = now.Add(e.Every)
	}

	s.mu.Lock()
	s.entries = append(s.entries, resolved)
	s.mu.Unlock()
	s.logger.Info("schedule added", "name", e.Name, "agent_id", e.AgentID, "next_run", resolved.nextRun)
	return nil
}

// Len reports the number of registered entries.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Start begins the tick loop in a background goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.wg.Add(1)
	go s.loop(ctx)
	s.logger.Info("scheduler started", "interval", s.interval, "entries", s.Len())
}

// Stop cancels the loop and waits for it to exit.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.tick(now)
		}
	}
}

// tick fires every due entry and advances its next-run time.
func (s *Scheduler) tick(now time.Time) {
	s.mu.Lock()
	var due []*entry
	for _, e := range s.entries {
		if !e.nextRun.After(now) {
			due = append(due, e)
			if e.sched != nil {
				e.nextRun = e.sched.Next(now)
			} else {
				e.nextRun = now.Add(e.Every)
			}
		}
	}
	s.mu.Unlock()

	for _, e := range due {
		s.fire(e)
	}
}

func (s *Scheduler) fire(e *entry) {
	task, err := s.spawner.Spawn(e.AgentID, e.Prompt, &agent.SpawnOptions{
		NotifyOnComplete: e.Notify,
	})
	if err != nil {
		// Disabled agents are expected during reloads; keep the entry and
		// try again next time it comes due.
		s.logger.Warn("schedule fire failed", "name", e.Name, "agent_id", e.AgentID, "error", err)
		return
	}
	s.logger.Info("schedule fired", "name", e.Name, "task_id", task.ID, "next_run", e.nextRun)
}
