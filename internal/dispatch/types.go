// Package dispatch fans a task out to concurrently-running sub-agents and
// synthesizes their results into a single answer. Each sub-agent drives its
// own model turn loop, executing shell commands through the sandbox and
// optionally delegating to further sub-agents up to a configured depth.
package dispatch

import (
	"errors"
	"time"

	"github.com/vinayprograms/codeagent/internal/agentdef"
)

// Sentinel errors for terminal run failures.
var (
	// ErrRecursionLimit marks a nested delegation request beyond the
	// configured depth cap.
	ErrRecursionLimit = errors.New("recursion limit exceeded")
	// ErrTurnLimit marks an agent run that used up its model turns without
	// producing a final answer.
	ErrTurnLimit = errors.New("turn limit exceeded")
	// ErrToolNotAllowed marks a tool request outside the agent definition's
	// allowed set. It is fed back to the model as a tool result, never
	// surfaced as a run failure.
	ErrToolNotAllowed = errors.New("tool not allowed")
	// ErrDispatchTimeout marks a whole dispatch cut off by its overall
	// timeout. Unlike per-agent failures, this one surfaces to the caller.
	ErrDispatchTimeout = errors.New("dispatch timed out")
)

// Request describes one dispatch call.
type Request struct {
	Task       string
	AgentTypes []string // Assigned round-robin across tasks; empty means general-purpose.
	Count      int      // Number of sub-agents; 0 uses the configured default.
	Depth      int      // Nesting level; 0 for a user-initiated dispatch.
}

// Task is the unit of work handed to one agent runner. Depth travels by
// value with the task so concurrent branches cannot interfere.
type Task struct {
	ID     string
	Index  int
	Prompt string
	Def    *agentdef.Definition
	Depth  int
}

// AgentOutcome is the terminal result of one agent task. Every started task
// produces exactly one, failure included; the dispatcher collects them in
// task-index order.
type AgentOutcome struct {
	Index     int
	AgentType string
	Success   bool
	Output    string
	Err       string
	Duration  time.Duration
}
