// Package main defines the CLI structure using kong.
package main

import "github.com/alecthomas/kong"

// CLI defines the command-line interface.
type CLI struct {
	Run      RunCmd      `cmd:"" help:"Dispatch a task to sub-agents"`
	Agents   AgentsCmd   `cmd:"" help:"List available agent types"`
	Validate ValidateCmd `cmd:"" help:"Validate agent definition files"`
	Version  VersionCmd  `cmd:"" help:"Show version information"`
}

// RunCmd dispatches a task across sub-agents and prints the synthesized answer.
type RunCmd struct {
	Task   string   `arg:"" help:"Task description for the agents"`
	Agents []string `short:"a" help:"Agent type(s) to dispatch (repeatable, round-robin across count)"`
	Count  int      `short:"n" help:"Number of agents to run in parallel"`
	Config string   `help:"Config file path"`
	Root   string   `help:"Sandbox root directory (default: current directory)"`
	Watch  bool     `help:"Reload agent definitions when files change"`
}

// AgentsCmd lists the loaded agent definitions.
type AgentsCmd struct {
	Config string `help:"Config file path"`
}

// ValidateCmd checks a command against the safety policy without running it.
type ValidateCmd struct {
	Command string `arg:"" help:"Shell command to check"`
	Config  string `help:"Config file path"`
	Root    string `help:"Sandbox root directory (default: current directory)"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

// kongVars returns variables for kong (version info).
func kongVars() kong.Vars {
	return kong.Vars{
		"version": version,
	}
}
