// OpenTelemetry tracing support for task execution observability.
package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vinayprograms/taskrunner/task"
)

// Tracer wraps OpenTelemetry tracing with task-engine helpers.
type Tracer struct {
	tracer trace.Tracer
}

var (
	globalTracer *Tracer
	tracerMu     sync.RWMutex
)

// SetGlobalTracer sets the global tracer instance.
func SetGlobalTracer(t *Tracer) {
	tracerMu.Lock()
	defer tracerMu.Unlock()
	globalTracer = t
}

// GetTracer returns the global tracer, or a no-op tracer if not set.
func GetTracer() *Tracer {
	tracerMu.RLock()
	defer tracerMu.RUnlock()
	if globalTracer == nil {
		return &Tracer{tracer: trace.NewNoopTracerProvider().Tracer("")}
	}
	return globalTracer
}

// NewTracer creates a new tracer with the given name.
func NewTracer(name string) *Tracer {
	return &Tracer{
		tracer: otel.Tracer(name),
	}
}

// StartSpan starts a new span with the given name.
func (t *Tracer) StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, opts...)
}

// TaskSpanOptions carries attribute values for a task execution span.
type TaskSpanOptions struct {
	// Runner is the owning component key.
	Runner string

	// Name is the task name; empty for anonymous tasks.
	Name string

	// ID is the Runner-local task id.
	ID int64
}

// StartTaskSpan starts a span covering one task execution.
func (t *Tracer) StartTaskSpan(ctx context.Context, opts TaskSpanOptions) (context.Context, trace.Span) {
	spanName := "task.execute"
	if opts.Name != "" {
		spanName = "task.execute " + opts.Name
	}
	return t.tracer.Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("task.runner", opts.Runner),
			attribute.String("task.name", opts.Name),
			attribute.Int64("task.id", opts.ID),
		),
	)
}

// EndTaskSpan ends a task span with its outcome.
func (t *Tracer) EndTaskSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// traced decorates a task with an execution span.
type traced struct {
	inner  task.Task
	tracer *Tracer
	opts   TaskSpanOptions
}

// WrapTask returns a task whose Execute runs inside a span carrying the
// runner key, task name and id. The wrapped task's context descends
// from the span context, so nested spans parent correctly.
func WrapTask(t task.Task, tracer *Tracer, opts TaskSpanOptions) task.Task {
	if tracer == nil {
		tracer = GetTracer()
	}
	return &traced{inner: t, tracer: tracer, opts: opts}
}

func (w *traced) Execute(ctx context.Context) (any, error) {
	ctx, span := w.tracer.StartTaskSpan(ctx, w.opts)
	result, err := w.inner.Execute(ctx)
	w.tracer.EndTaskSpan(span, err)
	return result, err
}

func (w *traced) LastResult() (any, error) {
	return w.inner.LastResult()
}
