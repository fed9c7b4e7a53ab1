package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/marchhare/go-crew/internal/ai"
	"github.com/marchhare/go-crew/internal/bus"
)

// taskFailure is the terminal error recorded on a failed task.
type taskFailure struct {
	message string
}

func (f *taskFailure) Error() string { return f.message }

// executeTask runs one task end to end: stamp running, emit task.start, run
// the agentic loop, record the terminal state, emit task.complete or
// task.error. It is only ever called from the drain goroutine.
func (r *Registry) executeTask(ctx context.Context, t *Task) {
	cfg, ok := r.catalog.configOf(t.AgentID)
	if !ok {
		// Re-registration dropped the agent between spawn and drain.
		r.failTask(t, &taskFailure{message: "agent not found"})
		return
	}

	startedAt := r.catalog.startTask(t)
	startEv := r.catalog.taskCopy(t)
	r.publish(bus.TopicTaskStart, startEv.event())

	ctx, span := r.instruments.StartTaskSpan(ctx, t.AgentID, t.ID)
	defer span.End()

	r.logger.Info("task started", "task_id", t.ID, "agent_id", t.AgentID)

	result, err := r.runLoop(ctx, t, cfg, startedAt)
	duration := time.Since(startedAt)

	if err != nil {
		r.instruments.RecordTaskFailed(ctx, t.AgentID, duration)
		r.failTask(t, err)
		return
	}

	r.catalog.finishTask(t, StatusCompleted, result, "")
	done := r.catalog.taskCopy(t)
	r.publish(bus.TopicTaskComplete, done.event())
	r.instruments.RecordTaskCompleted(ctx, t.AgentID, duration)
	r.logger.Info("task completed", "task_id", t.ID, "agent_id", t.AgentID,
		"duration", duration.Round(time.Millisecond))
}

// failTask records a failed terminal state and emits task.error. Failed
// tasks join the completed history the same way successes do.
func (r *Registry) failTask(t *Task, err error) {
	r.catalog.finishTask(t, StatusFailed, "", err.Error())
	done := r.catalog.taskCopy(t)
	r.publish(bus.TopicTaskError, done.event())
	r.logger.Warn("task failed", "task_id", t.ID, "agent_id", t.AgentID, "error", err.Error())
}

// runLoop is the bounded agentic loop: ask the model, execute any requested
// tool calls, feed results back, repeat. It ends when the model answers
// without tool calls, the iteration budget runs out, or the task's
// wall-clock timeout elapses. The timeout is checked both before and right
// after each provider call so a slow call cannot smuggle a late answer
// through.
func (r *Registry) runLoop(ctx context.Context, t *Task, cfg Config, startedAt time.Time) (string, error) {
	if r.provider == nil {
		return "", ErrNoProvider
	}
	provider := r.provider.Active()
	if provider == nil {
		return "", ErrNoProvider
	}

	timeout := cfg.taskTimeout()
	maxIterations := cfg.maxIterations()

	callCtx, cancel := context.WithDeadline(ctx, startedAt.Add(timeout))
	defer cancel()

	systemPrompt := BuildPrompt(cfg.Identity, cfg.Specialty)
	tools := r.visibleTools(cfg.Specialty)

	prompt := t.Prompt
	if len(t.Context) > 0 {
		if blob, err := json.MarshalIndent(t.Context, "", "  "); err == nil {
			prompt = fmt.Sprintf("%s\n\nTask Context:\n%s", prompt, blob)
		}
	}

	history := []ai.Message{{Role: ai.RoleUser, Content: prompt}}

	for i := 0; i < maxIterations; i++ {
		if time.Since(startedAt) >= timeout {
			return "", fmt.Errorf("task exceeded its %s timeout", timeout)
		}

		resp, err := provider.Complete(callCtx, ai.CompletionRequest{
			Messages:     history,
			SystemPrompt: systemPrompt,
			Tools:        tools,
			Model:        cfg.Model,
		})
		if err != nil {
			// A provider that honors the context deadline surfaces the
			// timeout as its own error; report it as the timeout it is.
			// Parent cancellation (shutdown) is not a timeout.
			if time.Since(startedAt) >= timeout || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
				return "", fmt.Errorf("task exceeded its %s timeout", timeout)
			}
			return "", fmt.Errorf("provider %s: %w", provider.Name(), err)
		}
		if time.Since(startedAt) >= timeout {
			return "", fmt.Errorf("task exceeded its %s timeout", timeout)
		}

		if len(resp.ToolCalls) == 0 {
			return resp.Content, nil
		}

		history = append(history, ai.Message{
			Role:      ai.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		for _, call := range resp.ToolCalls {
			if r.tools == nil {
				return "", fmt.Errorf("tool %q requested but no tool source is configured", call.Name)
			}
			r.logger.Debug("tool call", "task_id", t.ID, "tool", call.Name)
			out, err := r.tools.Execute(callCtx, call.Name, call.Args)
			if err != nil {
				return "", fmt.Errorf("tool %q: %w", call.Name, err)
			}
			history = append(history, ai.Message{
				Role:       ai.RoleTool,
				Content:    out,
				ToolCallID: call.ID,
			})
		}
	}

	return "", fmt.Errorf("task did not finish within %d iterations", maxIterations)
}

// visibleTools filters the shared catalog down to the specialty's allowlist
// (empty allowlist means everything) and warns about missing required tools.
func (r *Registry) visibleTools(sp Specialty) []ai.ToolDef {
	if r.tools == nil {
		return nil
	}
	all := r.tools.Definitions()

	byName := make(map[string]bool, len(all))
	for _, def := range all {
		byName[def.Name] = true
	}
	for _, name := range sp.RequiredTools {
		if !byName[name] {
			r.logger.Warn("required tool missing from catalog", "agent_id", sp.ID, "tool", name)
		}
	}

	if len(sp.Tools) == 0 {
		return all
	}
	allowed := make(map[string]bool, len(sp.Tools))
	for _, name := range sp.Tools {
		allowed[name] = true
	}
	visible := make([]ai.ToolDef, 0, len(sp.Tools))
	for _, def := range all {
		if allowed[def.Name] {
			visible = append(visible, def)
		}
	}
	return visible
}
