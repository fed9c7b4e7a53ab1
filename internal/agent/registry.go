package agent

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/marchhare/go-crew/internal/ai"
	"github.com/marchhare/go-crew/internal/bus"
	"github.com/marchhare/go-crew/internal/telemetry"
)

// DefaultWaitTimeout bounds WaitForTask when the caller's context has no
// earlier deadline.
const DefaultWaitTimeout = 5 * time.Minute

// ToolSource supplies tool definitions and executes calls by name. The
// registry never inspects tool internals; it forwards arguments verbatim.
type ToolSource interface {
	Definitions() []ai.ToolDef
	Execute(ctx context.Context, name string, args map[string]any) (string, error)
}

// Options wires a Registry's collaborators. Logger defaults to slog.Default;
// Bus, Tools, and Instruments may be nil (events, tools, and metrics are then
// simply absent). Provider is required for tasks to succeed but its absence
// is only detected at execution time.
type Options struct {
	Logger      *slog.Logger
	Bus         *bus.Bus
	Provider    ai.Resolver
	Tools       ToolSource
	Instruments *telemetry.Instruments
}

// SpawnOptions carries the optional parts of a spawn request.
type SpawnOptions struct {
	// Context is arbitrary structured data appended to the task prompt.
	Context map[string]any
	// NotifyOnComplete asks outbound channels to announce the terminal state.
	NotifyOnComplete bool
	// NotifyTarget overrides the channel's default destination.
	NotifyTarget string
}

// Registry is the orchestration engine: it owns the agent catalog, the FIFO
// task queue, and the single drain goroutine that executes tasks one at a
// time across all agents.
type Registry struct {
	logger      *slog.Logger
	bus         *bus.Bus
	provider    ai.Resolver
	tools       ToolSource
	instruments *telemetry.Instruments
	catalog     *Catalog

	queueMu  sync.Mutex
	queue    []*Task
	draining bool

	lifeMu  sync.Mutex
	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewRegistry creates a Registry. Call Start before spawning tasks.
func NewRegistry(opts Options) *Registry {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger:      logger,
		bus:         opts.Bus,
		provider:    opts.Provider,
		tools:       opts.Tools,
		instruments: opts.Instruments,
		catalog:     NewCatalog(logger),
	}
}

// Catalog exposes the agent catalog for registration and inspection.
func (r *Registry) Catalog() *Catalog {
	return r.catalog
}

// Start makes the registry ready to drain tasks. The context bounds all task
// execution; cancelling it (or calling Stop) aborts in-flight work.
func (r *Registry) Start(ctx context.Context) {
	r.lifeMu.Lock()
	defer r.lifeMu.Unlock()
	if r.baseCtx != nil {
		return
	}
	r.baseCtx, r.cancel = context.WithCancel(ctx)
	r.logger.Info("agent registry started")
}

// Stop cancels in-flight execution and waits for the drain goroutine to
// exit. Queued tasks that never started stay pending.
func (r *Registry) Stop() {
	r.lifeMu.Lock()
	cancel := r.cancel
	r.baseCtx = nil
	r.cancel = nil
	r.lifeMu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
	r.logger.Info("agent registry stopped")
}

func (r *Registry) execCtx() context.Context {
	r.lifeMu.Lock()
	defer r.lifeMu.Unlock()
	if r.baseCtx != nil {
		return r.baseCtx
	}
	return context.Background()
}

// Spawn validates the target agent, creates a pending task, enqueues it, and
// triggers the drain loop. Validation failures are synchronous and leave no
// task behind. The returned Task is a snapshot at creation time.
func (r *Registry) Spawn(agentID, prompt string, opts *SpawnOptions) (Task, error) {
	t := &Task{
		ID:        NewTaskID(),
		AgentID:   agentID,
		Prompt:    prompt,
		Status:    StatusPending,
		CreatedAt: time.Now(),
	}
	if opts != nil {
		t.Context = opts.Context
		t.NotifyOnComplete = opts.NotifyOnComplete
		t.NotifyTarget = opts.NotifyTarget
	}

	if err := r.catalog.beginTask(t); err != nil {
		return Task{}, err
	}

	r.logger.Info("task spawned", "task_id", t.ID, "agent_id", agentID)

	r.queueMu.Lock()
	r.queue = append(r.queue, t)
	shouldDrain := !r.draining
	if shouldDrain {
		r.draining = true
	}
	r.queueMu.Unlock()

	if shouldDrain {
		r.wg.Add(1)
		go r.processQueue(r.execCtx())
	}
	return r.catalog.taskCopy(t), nil
}

// processQueue pops and executes tasks one at a time until the queue is
// empty or the registry is stopped. Exactly one instance runs at any moment;
// Spawn starts a new one only after the previous drain observed an empty
// queue and cleared the draining flag. On shutdown the loop stops popping,
// so tasks that never started stay pending.
func (r *Registry) processQueue(ctx context.Context) {
	defer r.wg.Done()
	for {
		r.queueMu.Lock()
		if len(r.queue) == 0 || ctx.Err() != nil {
			r.draining = false
			r.queueMu.Unlock()
			return
		}
		t := r.queue[0]
		r.queue = r.queue[1:]
		r.queueMu.Unlock()

		r.runOne(ctx, t)
	}
}

// runOne executes a single task, containing panics so one bad task cannot
// kill the drain loop.
func (r *Registry) runOne(ctx context.Context, t *Task) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("task panicked", "task_id", t.ID, "panic", rec)
			r.failTask(t, &taskFailure{message: "internal error: task execution panicked"})
		}
	}()
	r.executeTask(ctx, t)
}

// GetTask looks a task up by id across every agent's active and completed
// lists. Returns a value snapshot.
func (r *Registry) GetTask(id string) (Task, bool) {
	return r.catalog.findTask(id)
}

// QueueDepth reports the number of tasks waiting to start.
func (r *Registry) QueueDepth() int {
	r.queueMu.Lock()
	defer r.queueMu.Unlock()
	return len(r.queue)
}

// WaitForTask blocks until the task reaches a terminal state, the context is
// cancelled, or DefaultWaitTimeout elapses. It subscribes to bus events
// before checking current state so a completion between check and wait is
// never missed, and falls back to polling in case the event was dropped.
func (r *Registry) WaitForTask(ctx context.Context, taskID string) (Task, error) {
	var sub *bus.Subscription
	if r.bus != nil {
		sub = r.bus.Subscribe("task.")
		defer r.bus.Unsubscribe(sub)
	}

	if t, ok := r.catalog.findTask(taskID); ok && t.Status.Terminal() {
		return t, nil
	}

	var events <-chan bus.Event
	if sub != nil {
		events = sub.Ch()
	}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.NewTimer(DefaultWaitTimeout)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return Task{}, ctx.Err()
		case <-deadline.C:
			return Task{}, ErrWaitTimeout
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if te, isTask := ev.Payload.(bus.TaskEvent); isTask && te.TaskID == taskID {
				if t, found := r.catalog.findTask(taskID); found && t.Status.Terminal() {
					return t, nil
				}
			}
		case <-ticker.C:
			if t, ok := r.catalog.findTask(taskID); ok && t.Status.Terminal() {
				return t, nil
			}
		}
	}
}

func (r *Registry) publish(topic string, ev bus.TaskEvent) {
	if r.bus != nil {
		r.bus.Publish(topic, ev)
	}
}
