// Synthesis prompt construction.
package dispatch

import (
	"fmt"
	"strings"
)

const synthesisSystemPrompt = `You are synthesizing the findings of multiple autonomous agents into one answer for the user. Be comprehensive but stay focused on the original task.`

// buildSynthesisPrompt renders all outcomes, in task-index order and with
// failures annotated, into the prompt for the synthesis turn.
func buildSynthesisPrompt(task string, outcomes []AgentOutcome) string {
	var blocks []string
	for _, o := range outcomes {
		if o.Success {
			blocks = append(blocks, fmt.Sprintf("== AGENT %d RESPONSE ==\n%s\n", o.Index+1, o.Output))
		} else {
			blocks = append(blocks, fmt.Sprintf("== AGENT %d FAILED ==\n%s\n", o.Index+1, o.Err))
		}
	}

	return fmt.Sprintf(`Original task: %s

I've assigned multiple agents to tackle this task. Each agent has analyzed the problem and provided their findings.

%s
Based on all the information provided by these agents, synthesize a comprehensive and cohesive response that:
1. Combines the key insights from all agents
2. Resolves any contradictions between agent findings
3. Presents a unified solution that addresses the original task
4. Includes all important details from the individual responses
5. Notes which agents failed and whether their absence leaves gaps

Your synthesis should be thorough but focused on the original task.`, task, strings.Join(blocks, "\n"))
}

// failureReport summarizes a dispatch where no agent succeeded.
func failureReport(outcomes []AgentOutcome) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "All %d agents failed.\n", len(outcomes))
	for _, o := range outcomes {
		fmt.Fprintf(&sb, "- agent %d (%s): %s\n", o.Index+1, o.AgentType, o.Err)
	}
	return sb.String()
}
