// Tool schema construction for the sub-agent turn loop.
package dispatch

import (
	"fmt"
	"strings"

	"github.com/vinayprograms/agentkit/llm"

	"github.com/vinayprograms/codeagent/internal/agentdef"
)

const (
	bashToolName  = "bash"
	agentToolName = "agent"
)

// bashToolDef returns the shell execution tool schema.
func bashToolDef() llm.ToolDef {
	return llm.ToolDef{
		Name:        bashToolName,
		Description: "Execute a bash command in the shell. Returns stdout, stderr, and exit code.",
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"command": map[string]interface{}{
					"type":        "string",
					"description": "The bash command to execute",
				},
				"timeout": map[string]interface{}{
					"type":        "integer",
					"description": "Optional timeout in seconds (default 120, max 600)",
				},
				"description": map[string]interface{}{
					"type":        "string",
					"description": "Optional brief description of what this command does",
				},
			},
			"required": []string{"command"},
		},
	}
}

// agentToolDef returns the delegation tool schema. Its description embeds
// the catalog of loaded agent types so the model can pick one.
func agentToolDef(store *agentdef.Store) llm.ToolDef {
	var catalog []string
	for _, def := range store.List() {
		catalog = append(catalog, fmt.Sprintf("- %s: %s (Tools: %s)",
			def.AgentType, def.WhenToUse, strings.Join(def.AllowedTools, ", ")))
	}

	description := fmt.Sprintf(`Launch parallel agents to handle complex tasks autonomously.

Available agent types:
%s

When to use:
- Complex multi-step tasks requiring research
- Tasks that benefit from multiple perspectives
- Code analysis across multiple files

When NOT to use:
- Simple single-file operations
- Quick lookups you can do directly`, strings.Join(catalog, "\n"))

	return llm.ToolDef{
		Name:        agentToolName,
		Description: description,
		Parameters: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"prompt": map[string]interface{}{
					"type":        "string",
					"description": "Detailed task description for the agent to perform autonomously",
				},
				"subagent_type": map[string]interface{}{
					"type":        "string",
					"description": "Type of agent to use (default: general-purpose)",
				},
				"parallel_count": map[string]interface{}{
					"type":        "integer",
					"description": "Number of parallel agents to launch",
				},
			},
			"required": []string{"prompt"},
		},
	}
}

// argString extracts a string argument from a tool call.
func argString(args map[string]interface{}, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	return ""
}

// argInt extracts an integer argument from a tool call. JSON numbers arrive
// as float64.
func argInt(args map[string]interface{}, key string) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}
