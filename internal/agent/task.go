package agent

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/marchhare/go-crew/internal/bus"
)

// Status is a task's lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Task is one request for an agent to act on a prompt. Fields are mutated
// only by the drain loop, under the catalog lock; callers receive value
// snapshots.
type Task struct {
	ID      string
	AgentID string
	Prompt  string
	Context map[string]any
	Status  Status
	Result  string
	Error   string

	CreatedAt   time.Time
	StartedAt   time.Time // zero until running
	CompletedAt time.Time // zero until terminal

	NotifyOnComplete bool
	NotifyTarget     string
}

// NewTaskID returns a globally unique id composed of a millisecond timestamp
// and a random suffix.
func NewTaskID() string {
	return fmt.Sprintf("task-%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8])
}

// event builds the bus payload snapshot for the task's current state.
// Callers must hold the catalog lock.
func (t *Task) event() bus.TaskEvent {
	return bus.TaskEvent{
		TaskID:           t.ID,
		AgentID:          t.AgentID,
		Prompt:           t.Prompt,
		Status:           string(t.Status),
		Result:           t.Result,
		Error:            t.Error,
		CreatedAt:        t.CreatedAt,
		StartedAt:        t.StartedAt,
		CompletedAt:      t.CompletedAt,
		NotifyOnComplete: t.NotifyOnComplete,
		NotifyTarget:     t.NotifyTarget,
	}
}
