// Package main provides runtime wiring for the codeagent CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/muesli/reflow/wordwrap"
	"github.com/vinayprograms/agentkit/llm"
	"github.com/vinayprograms/agentkit/telemetry"
	"github.com/vinayprograms/codeagent/internal/agentdef"
	"github.com/vinayprograms/codeagent/internal/config"
	"github.com/vinayprograms/codeagent/internal/dispatch"
	"github.com/vinayprograms/codeagent/internal/sandbox"
)

// outputWidth is the wrap width for synthesized answers.
const outputWidth = 100

// runtime holds the wired components for a dispatch run.
type runtime struct {
	cfg        *config.Config
	provider   llm.Provider
	store      *agentdef.Store
	shell      *sandbox.Executor
	dispatcher *dispatch.Dispatcher
	telem      telemetry.Exporter

	closers []func()
}

// loadConfig loads configuration from an explicit path or the default location.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	return config.LoadDefault()
}

// newRuntime wires all components from configuration.
func newRuntime(cfg *config.Config, root string) (*runtime, error) {
	rt := &runtime{cfg: cfg}
	if err := rt.setup(root); err != nil {
		rt.cleanup()
		return nil, err
	}
	return rt, nil
}

// setup initializes all runtime components.
func (rt *runtime) setup(root string) error {
	if err := rt.createProvider(); err != nil {
		return err
	}
	if err := rt.setupStore(); err != nil {
		return err
	}
	if err := rt.setupSandbox(root); err != nil {
		return err
	}
	if err := rt.setupTelemetry(); err != nil {
		return err
	}
	rt.dispatcher = dispatch.New(rt.store, rt.provider, rt.shell, rt.cfg.Dispatch)
	return nil
}

// createProvider creates the LLM provider.
func (rt *runtime) createProvider() error {
	name := rt.cfg.LLM.Provider
	if name == "" {
		name = llm.InferProviderFromModel(rt.cfg.LLM.Model)
	}
	if name == "" && rt.cfg.LLM.Model == "" {
		return fmt.Errorf("LLM model not configured")
	}

	var err error
	rt.provider, err = llm.NewProvider(llm.ProviderConfig{
		Provider:  name,
		Model:     rt.cfg.LLM.Model,
		APIKey:    rt.cfg.GetAPIKey(),
		MaxTokens: rt.cfg.LLM.MaxTokens,
		BaseURL:   rt.cfg.LLM.BaseURL,
	})
	if err != nil {
		return fmt.Errorf("creating LLM provider: %w", err)
	}
	return nil
}

// setupStore loads agent definitions from the configured directory.
func (rt *runtime) setupStore() error {
	rt.store = agentdef.NewStore()
	if err := rt.store.Load(rt.cfg.Dispatch.AgentsDir); err != nil {
		return fmt.Errorf("loading agent definitions: %w", err)
	}
	return nil
}

// setupSandbox configures command validation and execution.
func (rt *runtime) setupSandbox(root string) error {
	if root == "" {
		root = rt.cfg.Sandbox.Root
	}
	if root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("resolving sandbox root: %w", err)
		}
		root = cwd
	}
	if !filepath.IsAbs(root) {
		abs, err := filepath.Abs(root)
		if err != nil {
			return fmt.Errorf("resolving sandbox root: %w", err)
		}
		root = abs
	}

	validator := sandbox.NewValidator(root, rt.cfg.Sandbox.DenyCommands)
	rt.shell = sandbox.NewExecutor(validator, rt.cfg.Sandbox)
	return nil
}

// setupTelemetry creates the telemetry exporter.
func (rt *runtime) setupTelemetry() error {
	var err error
	if rt.cfg.Telemetry.Enabled {
		rt.telem, err = telemetry.NewExporter(rt.cfg.Telemetry.Protocol, rt.cfg.Telemetry.Endpoint)
		if err != nil {
			return fmt.Errorf("creating telemetry exporter: %w", err)
		}
	} else {
		rt.telem = telemetry.NewNoopExporter()
	}
	rt.addCloser(func() { rt.telem.Close() })
	return nil
}

// cleanup runs all registered cleanup functions.
func (rt *runtime) cleanup() {
	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i]()
	}
}

// addCloser registers a cleanup function.
func (rt *runtime) addCloser(fn func()) {
	rt.closers = append(rt.closers, fn)
}

// Run dispatches the task and prints the synthesized answer.
func (c *RunCmd) Run() error {
	cfg, err := loadConfig(c.Config)
	if err != nil {
		return err
	}

	rt, err := newRuntime(cfg, c.Root)
	if err != nil {
		return err
	}
	defer rt.cleanup()

	ctx := context.Background()
	if c.Watch {
		watchCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := rt.store.Watch(watchCtx); err != nil {
			fmt.Fprintf(os.Stderr, "warning: agent definition watch disabled: %v\n", err)
		}
		ctx = watchCtx
	}

	result, err := rt.dispatcher.Dispatch(ctx, dispatch.Request{
		Task:       c.Task,
		AgentTypes: c.Agents,
		Count:      c.Count,
	})
	if err != nil {
		return err
	}

	fmt.Println(wordwrap.String(result, outputWidth))
	return nil
}

// Run lists the loaded agent definitions.
func (c *AgentsCmd) Run() error {
	cfg, err := loadConfig(c.Config)
	if err != nil {
		return err
	}

	store := agentdef.NewStore()
	if err := store.Load(cfg.Dispatch.AgentsDir); err != nil {
		return fmt.Errorf("loading agent definitions: %w", err)
	}

	for _, def := range store.List() {
		source := def.Source
		if source == "" {
			source = "built-in"
		}
		fmt.Printf("%s\t%s\n", def.AgentType, source)
		fmt.Printf("  %s\n", wordwrap.String(def.WhenToUse, outputWidth-2))
		fmt.Printf("  tools: %s\n", strings.Join(def.AllowedTools, ", "))
	}
	return nil
}

// Run checks the command against the safety policy and reports the verdict.
func (c *ValidateCmd) Run() error {
	cfg, err := loadConfig(c.Config)
	if err != nil {
		return err
	}

	root := c.Root
	if root == "" {
		root = cfg.Sandbox.Root
	}
	if root == "" {
		root, err = os.Getwd()
		if err != nil {
			return fmt.Errorf("resolving sandbox root: %w", err)
		}
	}
	if !filepath.IsAbs(root) {
		if root, err = filepath.Abs(root); err != nil {
			return fmt.Errorf("resolving sandbox root: %w", err)
		}
	}

	validator := sandbox.NewValidator(root, cfg.Sandbox.DenyCommands)
	if err := validator.Validate(c.Command, root); err != nil {
		fmt.Printf("✗ %v\n", err)
		return fmt.Errorf("command would be rejected")
	}
	fmt.Println("✓ Allowed")
	return nil
}
