// Package sandbox gates and runs shell commands on behalf of agents.
// All real-world effects of the system flow through this package, so it is
// the single enforcement point for execution safety.
package sandbox

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// ErrDenied wraps every validation denial. Callers distinguish denials from
// other failures with errors.Is(err, ErrDenied).
var ErrDenied = errors.New("command denied")

// denyCommands are command names that are never executed, matched against the
// basename of the command word so "/bin/rm" is caught and a file argument
// named "rm-notes.txt" is not.
var denyCommands = map[string]bool{
	"rm":       true,
	"mkfs":     true,
	"dd":       true,
	"format":   true,
	"fdisk":    true,
	"shutdown": true,
	"reboot":   true,
	"init":     true,
	"halt":     true,
	"poweroff": true,
	"sudo":     true,
	"su":       true,
}

// rawDevicePrefixes identify block-device paths that must never be a
// redirect target.
var rawDevicePrefixes = []string{"/dev/sd", "/dev/hd", "/dev/nvme", "/dev/loop", "/dev/vd"}

// Validator checks shell commands against the execution-safety policy.
// It is stateless apart from its configuration and safe for concurrent use.
type Validator struct {
	root string
	deny map[string]bool
}

// NewValidator creates a validator confining directory changes to root.
// Extra command names in denyExtra are merged with the built-in deny list.
func NewValidator(root string, denyExtra []string) *Validator {
	deny := make(map[string]bool, len(denyCommands)+len(denyExtra))
	for name := range denyCommands {
		deny[name] = true
	}
	for _, name := range denyExtra {
		name = strings.TrimSpace(name)
		if name != "" {
			deny[name] = true
		}
	}
	return &Validator{root: filepath.Clean(root), deny: deny}
}

// Root returns the directory commands are confined to.
func (v *Validator) Root() string {
	return v.root
}

// Validate checks a command for execution from cwd. It returns nil when the
// command is allowed, or an error wrapping ErrDenied with the denial reason.
// The policy is deny-list based: only known-destructive operations and
// directory changes escaping the root are rejected, everything else passes.
func (v *Validator) Validate(command, cwd string) error {
	if strings.TrimSpace(command) == "" {
		return fmt.Errorf("%w: empty command", ErrDenied)
	}

	file, err := syntax.NewParser().Parse(strings.NewReader(command), "")
	if err != nil {
		return fmt.Errorf("%w: command could not be parsed: %v", ErrDenied, err)
	}

	var denied error
	syntax.Walk(file, func(node syntax.Node) bool {
		if denied != nil {
			return false
		}
		switch x := node.(type) {
		case *syntax.CallExpr:
			denied = v.checkCall(x, cwd)
		case *syntax.FuncDecl:
			// The classic fork bomb defines a function named ":".
			if x.Name != nil && x.Name.Value == ":" {
				denied = fmt.Errorf("%w: fork bomb pattern detected", ErrDenied)
			}
		case *syntax.Redirect:
			denied = checkRedirect(x)
		}
		return true
	})
	return denied
}

// checkCall validates a single simple command within the parsed tree.
func (v *Validator) checkCall(call *syntax.CallExpr, cwd string) error {
	if len(call.Args) == 0 {
		return nil // pure variable assignment
	}

	name := wordText(call.Args[0])
	if name == "" {
		return nil // dynamic command word, nothing to resolve statically
	}
	base := filepath.Base(name)

	if v.deny[base] {
		return fmt.Errorf("%w: %q is a destructive operation", ErrDenied, base)
	}

	if base == "chmod" {
		var recursive, world bool
		for _, arg := range call.Args[1:] {
			text := wordText(arg)
			if text == "--recursive" || (strings.HasPrefix(text, "-") && !strings.HasPrefix(text, "--") && strings.Contains(text, "R")) {
				recursive = true
			}
			if text == "777" {
				world = true
			}
		}
		if recursive && world {
			return fmt.Errorf("%w: recursive world-writable chmod is not allowed", ErrDenied)
		}
	}

	if base == "cd" {
		return v.checkChdir(call.Args[1:], cwd)
	}
	return nil
}

// checkChdir resolves the cd target, skipping option words (-P, -L) and the
// "--" end-of-options marker, and denies targets escaping the root.
func (v *Validator) checkChdir(args []*syntax.Word, cwd string) error {
	for i := 0; i < len(args); i++ {
		target := wordText(args[i])
		switch {
		case target == "--":
			if i+1 >= len(args) {
				return nil
			}
			target = wordText(args[i+1])
		case target == "" || target == "-":
			// Dynamic word or previous-directory shorthand, nothing to
			// resolve statically.
			return nil
		case strings.HasPrefix(target, "-"):
			continue
		}
		if target == "" {
			return nil
		}
		if !v.withinRoot(target, cwd) {
			return fmt.Errorf("%w: cd to %q escapes the workspace root %q", ErrDenied, target, v.root)
		}
		return nil
	}
	return nil
}

// checkRedirect denies output redirections targeting raw block devices.
func checkRedirect(r *syntax.Redirect) error {
	switch r.Op {
	case syntax.RdrOut, syntax.AppOut, syntax.RdrAll, syntax.AppAll:
	default:
		return nil
	}
	target := wordText(r.Word)
	for _, prefix := range rawDevicePrefixes {
		if strings.HasPrefix(target, prefix) {
			return fmt.Errorf("%w: write to raw device %q is not allowed", ErrDenied, target)
		}
	}
	return nil
}

// withinRoot reports whether target, resolved from cwd with ".." and
// symlinks normalized, stays under the validator's root.
func (v *Validator) withinRoot(target, cwd string) bool {
	full := target
	if !filepath.IsAbs(full) {
		full = filepath.Join(cwd, full)
	}
	full = filepath.Clean(full)
	if resolved, err := filepath.EvalSymlinks(full); err == nil {
		full = resolved
	}

	root := v.root
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}

	rel, err := filepath.Rel(root, full)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// wordText returns the statically-known text of a shell word, or "" when the
// word contains expansions that cannot be resolved without executing.
func wordText(w *syntax.Word) string {
	if w == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range w.Parts {
		switch p := part.(type) {
		case *syntax.Lit:
			sb.WriteString(p.Value)
		case *syntax.SglQuoted:
			sb.WriteString(p.Value)
		case *syntax.DblQuoted:
			for _, inner := range p.Parts {
				lit, ok := inner.(*syntax.Lit)
				if !ok {
					return ""
				}
				sb.WriteString(lit.Value)
			}
		default:
			return ""
		}
	}
	return sb.String()
}
