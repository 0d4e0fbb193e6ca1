// Package agentdef loads named agent definitions from markdown files with
// YAML frontmatter. A definition binds an agent type to a system prompt and
// the set of tools that type is allowed to use.
package agentdef

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Wildcard in an allowed-tools list grants every tool.
const Wildcard = "*"

// Definition is one named agent configuration. Immutable once loaded.
type Definition struct {
	// From frontmatter
	AgentType    string   `yaml:"agent-type"`
	WhenToUse    string   `yaml:"when-to-use"`
	AllowedTools ToolList `yaml:"allowed-tools"`

	// From content
	SystemPrompt string `yaml:"-"`

	// Location: "built-in" or the source file path.
	Source string `yaml:"-"`
}

// Allows reports whether the definition permits the named tool.
func (d *Definition) Allows(tool string) bool {
	for _, t := range d.AllowedTools {
		if t == Wildcard || t == tool {
			return true
		}
	}
	return false
}

// ToolList is an allowed-tools set. In frontmatter it may be written as a
// comma-separated string, a YAML sequence, or "*" for everything.
type ToolList []string

// UnmarshalYAML accepts both scalar and sequence forms.
func (t *ToolList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*t = splitTools(value.Value)
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := value.Decode(&items); err != nil {
			return err
		}
		var tools ToolList
		for _, item := range items {
			if s := strings.TrimSpace(item); s != "" {
				tools = append(tools, s)
			}
		}
		*t = tools
		return nil
	default:
		return fmt.Errorf("allowed-tools must be a string or a list")
	}
}

func splitTools(s string) ToolList {
	var tools ToolList
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			tools = append(tools, p)
		}
	}
	return tools
}

// Parse parses a definition file: YAML frontmatter between "---" markers,
// the remainder of the file is the system prompt.
func Parse(content string) (*Definition, error) {
	frontmatter, body, err := splitFrontmatter(content)
	if err != nil {
		return nil, err
	}

	def := &Definition{}
	if err := yaml.Unmarshal([]byte(frontmatter), def); err != nil {
		return nil, fmt.Errorf("invalid frontmatter: %w", err)
	}

	if def.AgentType == "" {
		return nil, fmt.Errorf("missing required field: agent-type")
	}
	if def.WhenToUse == "" {
		return nil, fmt.Errorf("missing required field: when-to-use")
	}
	if len(def.AllowedTools) == 0 {
		def.AllowedTools = ToolList{Wildcard}
	}

	def.SystemPrompt = strings.TrimSpace(body)
	return def, nil
}

// splitFrontmatter extracts YAML frontmatter from markdown.
func splitFrontmatter(content string) (frontmatter, body string, err error) {
	lines := strings.Split(content, "\n")

	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return "", "", fmt.Errorf("missing frontmatter delimiter")
	}

	var fmLines []string
	var bodyStart int
	inFrontmatter := true

	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "---" {
			inFrontmatter = false
			bodyStart = i + 1
			break
		}
		if inFrontmatter {
			fmLines = append(fmLines, lines[i])
		}
	}

	if inFrontmatter {
		return "", "", fmt.Errorf("unclosed frontmatter")
	}

	frontmatter = strings.Join(fmLines, "\n")
	if bodyStart < len(lines) {
		body = strings.Join(lines[bodyStart:], "\n")
	}

	return frontmatter, body, nil
}
