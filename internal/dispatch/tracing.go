// Tracing instrumentation for dispatch and agent runs.
package dispatch

import (
	"context"

	"github.com/vinayprograms/agentkit/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// startDispatchSpan starts a span covering one whole dispatch call.
func startDispatchSpan(ctx context.Context, dispatchID string, count, depth int) (context.Context, trace.Span) {
	tracer := telemetry.GetTracer()
	ctx, span := tracer.StartSpan(ctx, "dispatch.run")
	span.SetAttributes(
		attribute.String("dispatch.id", dispatchID),
		attribute.Int("dispatch.agents", count),
		attribute.Int("dispatch.depth", depth),
	)
	return ctx, span
}

// startAgentSpan starts a span for one agent run.
func startAgentSpan(ctx context.Context, task Task) (context.Context, trace.Span) {
	tracer := telemetry.GetTracer()
	ctx, span := tracer.StartSpan(ctx, "agent."+task.Def.AgentType)
	span.SetAttributes(
		attribute.String("agent.task", task.ID),
		attribute.Int("agent.index", task.Index),
		attribute.Int("agent.depth", task.Depth),
	)
	return ctx, span
}

// endAgentSpan ends the agent span with outcome info.
func endAgentSpan(span trace.Span, outcome AgentOutcome, err error) {
	span.SetAttributes(attribute.Bool("agent.success", outcome.Success))
	if err != nil {
		span.RecordError(err)
	}
	span.End()
}
