package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/vinayprograms/agentkit/llm"
	"github.com/vinayprograms/agentkit/logging"

	"github.com/vinayprograms/codeagent/internal/agentdef"
	"github.com/vinayprograms/codeagent/internal/sandbox"
)

// runState is the agent run state machine. Turn limits and tool filtering
// are enforced as transition guards, not buried in control flow.
type runState int

const (
	stateThinking runState = iota // waiting on a model turn
	stateTooling                  // executing requested tool calls
	stateFinished                 // final answer produced
	stateFailed                   // terminal failure
)

// Runner drives one sub-agent from task to terminal outcome. The only state
// it shares with sibling runners is the read-only definition store and the
// sandbox, so instances may run concurrently without coordination.
type Runner struct {
	provider   llm.Provider
	shell      *sandbox.Executor
	dispatcher *Dispatcher
	maxTurns   int
	maxDepth   int
	logger     *logging.Logger
}

// Run executes the task to completion and always returns an outcome; run
// failures are reported in the outcome, never as panics or escaping errors.
func (r *Runner) Run(ctx context.Context, task Task) AgentOutcome {
	start := time.Now()
	ctx, span := startAgentSpan(ctx, task)

	messages := []llm.Message{
		{Role: "system", Content: task.Def.SystemPrompt},
		{Role: "user", Content: task.Prompt},
	}
	toolDefs := r.toolDefs(task.Def)

	var (
		state   = stateThinking
		turns   int
		pending []llm.ToolCallResponse
		final   string
		failure error
	)

	for state == stateThinking || state == stateTooling {
		switch state {
		case stateThinking:
			if turns >= r.maxTurns {
				failure = fmt.Errorf("%w after %d turns", ErrTurnLimit, turns)
				state = stateFailed
				continue
			}
			turns++

			resp, err := r.provider.Chat(ctx, llm.ChatRequest{
				Messages: messages,
				Tools:    toolDefs,
			})
			if err != nil {
				failure = fmt.Errorf("model error: %w", err)
				state = stateFailed
				continue
			}
			if len(resp.ToolCalls) == 0 {
				final = resp.Content
				state = stateFinished
				continue
			}

			messages = append(messages, llm.Message{
				Role:      "assistant",
				Content:   resp.Content,
				ToolCalls: resp.ToolCalls,
			})
			pending = resp.ToolCalls
			state = stateTooling

		case stateTooling:
			for _, tc := range pending {
				content, err := r.executeTool(ctx, task, tc)
				if err != nil {
					// Invariant violations (depth cap) end the run; everything
					// else was already folded into content for the model.
					failure = err
					state = stateFailed
					break
				}
				messages = append(messages, llm.Message{
					Role:       "tool",
					ToolCallID: tc.ID,
					Content:    content,
				})
			}
			if state != stateFailed {
				pending = nil
				state = stateThinking
			}
		}
	}

	duration := time.Since(start)
	outcome := AgentOutcome{
		Index:     task.Index,
		AgentType: task.Def.AgentType,
		Duration:  duration,
	}
	if state == stateFinished {
		outcome.Success = true
		outcome.Output = final
		r.logger.Debug("agent run finished", map[string]interface{}{
			"task":     task.ID,
			"turns":    turns,
			"duration": duration.String(),
		})
	} else {
		outcome.Err = failure.Error()
		r.logger.Warn("agent run failed", map[string]interface{}{
			"task":  task.ID,
			"turns": turns,
			"error": failure.Error(),
		})
	}
	endAgentSpan(span, outcome, failure)
	return outcome
}

// toolDefs builds the tool set offered to the model, restricted to the
// definition's allowed tools.
func (r *Runner) toolDefs(def *agentdef.Definition) []llm.ToolDef {
	var defs []llm.ToolDef
	if def.Allows(bashToolName) {
		defs = append(defs, bashToolDef())
	}
	if def.Allows(agentToolName) {
		defs = append(defs, agentToolDef(r.dispatcher.store))
	}
	return defs
}

// executeTool runs one requested tool call. Recoverable failures are
// returned as tool-result content so the model can adapt; a non-nil error is
// terminal for the run.
func (r *Runner) executeTool(ctx context.Context, task Task, tc llm.ToolCallResponse) (string, error) {
	// The allowed set is enforced here, not trusted to the model: the
	// schema filtering above is advisory, a model may still request
	// anything by name.
	if !task.Def.Allows(tc.Name) {
		r.logger.Warn("tool not allowed", map[string]interface{}{
			"task": task.ID,
			"tool": tc.Name,
		})
		denial := fmt.Errorf("%w: %q is not permitted for agent type %q", ErrToolNotAllowed, tc.Name, task.Def.AgentType)
		return "Error: " + denial.Error(), nil
	}

	switch tc.Name {
	case bashToolName:
		command := argString(tc.Args, "command")
		if strings.TrimSpace(command) == "" {
			return "Error: bash tool requires a command argument", nil
		}
		timeout := time.Duration(argInt(tc.Args, "timeout")) * time.Second
		res := r.shell.Run(ctx, sandbox.Request{Command: command, Timeout: timeout})
		return formatExecResult(res), nil

	case agentToolName:
		if task.Depth+1 > r.maxDepth {
			return "", fmt.Errorf("%w: delegation at depth %d, maximum is %d", ErrRecursionLimit, task.Depth+1, r.maxDepth)
		}
		prompt := argString(tc.Args, "prompt")
		if strings.TrimSpace(prompt) == "" {
			return "Error: agent tool requires a prompt argument", nil
		}
		subType := argString(tc.Args, "subagent_type")
		if subType == "" {
			subType = agentdef.GeneralPurposeType
		}
		text, err := r.dispatcher.Dispatch(ctx, Request{
			Task:       prompt,
			AgentTypes: []string{subType},
			Count:      argInt(tc.Args, "parallel_count"),
			Depth:      task.Depth + 1,
		})
		if err != nil {
			return fmt.Sprintf("Error: %v", err), nil
		}
		return text, nil

	default:
		return fmt.Sprintf("Error: unknown tool %q", tc.Name), nil
	}
}

// formatExecResult renders a sandbox result as tool-result content.
func formatExecResult(res sandbox.Result) string {
	var parts []string
	if res.Stdout != "" {
		parts = append(parts, res.Stdout)
	}
	if res.Stderr != "" {
		parts = append(parts, res.Stderr)
	}
	switch res.Outcome {
	case sandbox.OutcomeTimeout:
		parts = append(parts, "<error>Command was aborted before completion</error>")
	case sandbox.OutcomeCompleted:
		if res.ExitCode != 0 {
			parts = append(parts, fmt.Sprintf("(exit code %d)", res.ExitCode))
		}
	}
	if len(parts) == 0 {
		return "(no output)"
	}
	return strings.Join(parts, "\n")
}
