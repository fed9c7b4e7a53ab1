package bus

import "time"

// Task lifecycle topics. All share the "task." prefix so a single
// subscription can observe the full lifecycle.
const (
	TopicTaskStart    = "task.start"
	TopicTaskComplete = "task.complete"
	TopicTaskError    = "task.error"
)

// TaskEvent is the payload carried by every task lifecycle topic. It is a
// value snapshot of the task at emission time; later mutations of the live
// task are not reflected.
type TaskEvent struct {
	TaskID           string
	AgentID          string
	Prompt           string
	Status           string
	Result           string
	Error            string
	CreatedAt        time.Time
	StartedAt        time.Time
	CompletedAt      time.Time
	NotifyOnComplete bool
	NotifyTarget     string
}
