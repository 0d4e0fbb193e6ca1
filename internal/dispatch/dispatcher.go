package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vinayprograms/agentkit/llm"
	"github.com/vinayprograms/agentkit/logging"

	"github.com/vinayprograms/codeagent/internal/agentdef"
	"github.com/vinayprograms/codeagent/internal/config"
	"github.com/vinayprograms/codeagent/internal/sandbox"
)

// Dispatcher fans one task out to N concurrent agent runners and combines
// their outcomes. It is safe for concurrent use; all mutable state lives in
// the scope of a single Dispatch call.
type Dispatcher struct {
	store    *agentdef.Store
	provider llm.Provider
	shell    *sandbox.Executor
	cfg      config.DispatchConfig
	logger   *logging.Logger
}

// New creates a dispatcher.
func New(store *agentdef.Store, provider llm.Provider, shell *sandbox.Executor, cfg config.DispatchConfig) *Dispatcher {
	return &Dispatcher{
		store:    store,
		provider: provider,
		shell:    shell,
		cfg:      cfg,
		logger:   logging.New().WithComponent("dispatch"),
	}
}

// Dispatch runs the request's task across sub-agents and returns the
// synthesized answer. Individual agent failures stay inside the outcome
// collection; only a depth violation, an overall dispatch timeout, or a
// synthesis model error surface as errors.
func (d *Dispatcher) Dispatch(ctx context.Context, req Request) (string, error) {
	if req.Depth > d.cfg.MaxDepth {
		return "", fmt.Errorf("%w: depth %d, maximum is %d", ErrRecursionLimit, req.Depth, d.cfg.MaxDepth)
	}

	count := req.Count
	if count <= 0 {
		count = d.cfg.DefaultAgents
	}
	if count > d.cfg.MaxAgents {
		count = d.cfg.MaxAgents
	}

	dispatchID := uuid.NewString()
	ctx, span := startDispatchSpan(ctx, dispatchID, count, req.Depth)
	defer span.End()

	var cancel context.CancelFunc
	if d.cfg.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, time.Duration(d.cfg.Timeout)*time.Second)
		defer cancel()
	}

	d.logger.Info("dispatching task", map[string]interface{}{
		"dispatch": dispatchID,
		"agents":   count,
		"depth":    req.Depth,
	})

	outcomes := d.runAll(ctx, req, count)

	if ctx.Err() == context.DeadlineExceeded {
		if d.cfg.Timeout > 0 {
			return "", fmt.Errorf("%w after %ds", ErrDispatchTimeout, d.cfg.Timeout)
		}
		return "", fmt.Errorf("%w: deadline inherited from caller", ErrDispatchTimeout)
	}

	succeeded := 0
	for _, o := range outcomes {
		if o.Success {
			succeeded++
		}
	}
	d.logger.Info("dispatch collected outcomes", map[string]interface{}{
		"dispatch":  dispatchID,
		"succeeded": succeeded,
		"failed":    len(outcomes) - succeeded,
	})

	if succeeded == 0 {
		// Nothing to synthesize; report the failures without another model call.
		return failureReport(outcomes), nil
	}
	if len(outcomes) == 1 {
		return outcomes[0].Output, nil
	}
	return d.synthesize(ctx, req.Task, outcomes)
}

// runAll starts up to count tasks on a bounded worker pool and waits for
// every one to reach a terminal outcome. Outcomes land at their task index,
// so the returned slice is index-ordered regardless of completion order.
func (d *Dispatcher) runAll(ctx context.Context, req Request, count int) []AgentOutcome {
	outcomes := make([]AgentOutcome, count)

	parallelism := d.cfg.MaxParallel
	if count < parallelism {
		parallelism = count
	}
	if parallelism < 1 {
		parallelism = 1
	}
	sem := make(chan struct{}, parallelism)

	var wg sync.WaitGroup
	for i := 0; i < count; i++ {
		agentType := d.typeFor(req.AgentTypes, i)

		def, err := d.store.Get(agentType)
		if err != nil {
			// A task that cannot start still yields a failure outcome.
			outcomes[i] = AgentOutcome{Index: i, AgentType: agentType, Err: err.Error()}
			continue
		}

		task := Task{
			ID:     uuid.NewString(),
			Index:  i,
			Prompt: req.Task + "\n\nProvide a thorough and complete analysis.",
			Def:    def,
			Depth:  req.Depth,
		}

		wg.Add(1)
		go func(i int, task Task) {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					outcomes[i] = AgentOutcome{
						Index:     i,
						AgentType: task.Def.AgentType,
						Err:       fmt.Sprintf("agent panic: %v", rec),
					}
					d.logger.Error("agent run panicked", map[string]interface{}{
						"task":  task.ID,
						"panic": fmt.Sprintf("%v", rec),
					})
				}
			}()

			sem <- struct{}{}
			defer func() { <-sem }()

			outcomes[i] = d.newRunner().Run(ctx, task)
		}(i, task)
	}
	wg.Wait()

	return outcomes
}

// typeFor assigns agent types round-robin across task indices.
func (d *Dispatcher) typeFor(types []string, index int) string {
	if len(types) == 0 {
		return agentdef.GeneralPurposeType
	}
	return types[index%len(types)]
}

// newRunner builds a runner sharing only the dispatcher's read-only
// collaborators.
func (d *Dispatcher) newRunner() *Runner {
	return &Runner{
		provider:   d.provider,
		shell:      d.shell,
		dispatcher: d,
		maxTurns:   d.cfg.MaxTurns,
		maxDepth:   d.cfg.MaxDepth,
		logger:     logging.New().WithComponent("runner"),
	}
}

// synthesize combines all outcomes into one answer with a single tool-free
// model turn.
func (d *Dispatcher) synthesize(ctx context.Context, task string, outcomes []AgentOutcome) (string, error) {
	resp, err := d.provider.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "system", Content: synthesisSystemPrompt},
			{Role: "user", Content: buildSynthesisPrompt(task, outcomes)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("synthesis failed: %w", err)
	}
	return resp.Content, nil
}
