package agent

import "errors"

// Sentinel errors for the spawn/wait failure taxonomy. Execution errors
// (provider, tool, timeout) are recorded on the task itself.
var (
	// ErrAgentNotFound: the agent id is not registered.
	ErrAgentNotFound = errors.New("agent not found")
	// ErrAgentDisabled: the agent exists but is disabled for new spawns.
	ErrAgentDisabled = errors.New("agent is disabled")
	// ErrNoProvider: no LLM provider was configured at execution time.
	ErrNoProvider = errors.New("no AI provider configured")
	// ErrWaitTimeout: WaitForTask exhausted its own polling budget. The task
	// itself may still be running.
	ErrWaitTimeout = errors.New("timed out waiting for task")
)
