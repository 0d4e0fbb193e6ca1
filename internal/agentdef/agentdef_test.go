package agentdef

import (
	"strings"
	"testing"
)

const sampleDef = `---
agent-type: code-reviewer
when-to-use: Use when code needs review for correctness and style
allowed-tools: bash
---
You are a meticulous code reviewer.

Focus on correctness first, style second.`

func TestParse_Basic(t *testing.T) {
	def, err := Parse(sampleDef)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if def.AgentType != "code-reviewer" {
		t.Errorf("expected agent-type 'code-reviewer', got %q", def.AgentType)
	}
	if !strings.Contains(def.WhenToUse, "needs review") {
		t.Errorf("unexpected when-to-use: %q", def.WhenToUse)
	}
	if len(def.AllowedTools) != 1 || def.AllowedTools[0] != "bash" {
		t.Errorf("expected tools [bash], got %v", def.AllowedTools)
	}
	if !strings.HasPrefix(def.SystemPrompt, "You are a meticulous") {
		t.Errorf("unexpected system prompt: %q", def.SystemPrompt)
	}
	if strings.Contains(def.SystemPrompt, "---") {
		t.Error("frontmatter leaked into system prompt")
	}
}

func TestParse_CommaSeparatedTools(t *testing.T) {
	content := `---
agent-type: helper
when-to-use: Testing
allowed-tools: bash, agent , read
---
Prompt.`

	def, err := Parse(content)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	want := []string{"bash", "agent", "read"}
	if len(def.AllowedTools) != len(want) {
		t.Fatalf("expected %d tools, got %v", len(want), def.AllowedTools)
	}
	for i, tool := range want {
		if def.AllowedTools[i] != tool {
			t.Errorf("tool %d: expected %q, got %q", i, tool, def.AllowedTools[i])
		}
	}
}

func TestParse_SequenceTools(t *testing.T) {
	content := `---
agent-type: helper
when-to-use: Testing
allowed-tools:
  - bash
  - agent
---
Prompt.`

	def, err := Parse(content)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(def.AllowedTools) != 2 || def.AllowedTools[0] != "bash" || def.AllowedTools[1] != "agent" {
		t.Errorf("expected [bash agent], got %v", def.AllowedTools)
	}
}

func TestParse_MissingToolsDefaultsToWildcard(t *testing.T) {
	content := `---
agent-type: helper
when-to-use: Testing
---
Prompt.`

	def, err := Parse(content)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(def.AllowedTools) != 1 || def.AllowedTools[0] != Wildcard {
		t.Errorf("expected wildcard default, got %v", def.AllowedTools)
	}
}

func TestParse_MissingRequiredFields(t *testing.T) {
	cases := []struct {
		name    string
		content string
	}{
		{"no agent-type", "---\nwhen-to-use: x\n---\nPrompt."},
		{"no when-to-use", "---\nagent-type: x\n---\nPrompt."},
		{"no frontmatter", "Just a prompt with no frontmatter."},
		{"unclosed frontmatter", "---\nagent-type: x\nwhen-to-use: y\nPrompt."},
		{"bad yaml", "---\nagent-type: [unclosed\n---\nPrompt."},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse(tc.content); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestAllows(t *testing.T) {
	restricted := &Definition{AllowedTools: ToolList{"bash"}}
	if !restricted.Allows("bash") {
		t.Error("expected bash to be allowed")
	}
	if restricted.Allows("agent") {
		t.Error("expected agent to be denied")
	}

	open := &Definition{AllowedTools: ToolList{Wildcard}}
	if !open.Allows("bash") || !open.Allows("agent") || !open.Allows("anything") {
		t.Error("wildcard should allow every tool")
	}
}
