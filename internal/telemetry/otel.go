package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const (
	// ScopeName is the instrumentation scope for traces and metrics.
	ScopeName = "gocrew"
)

// Standard attribute keys for spans and metrics.
var (
	AttrAgentID = attribute.Key("gocrew.agent.id")
	AttrTaskID  = attribute.Key("gocrew.task.id")
)

// OTelConfig controls tracing and metrics. When disabled, Init returns nil
// Instruments, and all Instruments methods are nil-safe no-ops.
type OTelConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Exporter    string `yaml:"exporter"` // "stdout" or "none"
	ServiceName string `yaml:"service_name"`
}

// Instruments bundles the tracer and the task metric instruments. A nil
// *Instruments is valid and does nothing.
type Instruments struct {
	tracer         trace.Tracer
	tasksCompleted metric.Int64Counter
	tasksFailed    metric.Int64Counter
	taskDuration   metric.Float64Histogram

	shutdown func(context.Context) error
}

// Init sets up tracing and metrics. Disabled config returns (nil, nil).
func Init(ctx context.Context, cfg OTelConfig) (*Instruments, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "gocrew"
	}
	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", serviceName),
	))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	exporter, err := createExporter(cfg)
	if err != nil {
		return nil, err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	mp := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res))
	meter := mp.Meter(ScopeName)

	inst := &Instruments{
		tracer: tp.Tracer(ScopeName),
		shutdown: func(ctx context.Context) error {
			tErr := tp.Shutdown(ctx)
			mErr := mp.Shutdown(ctx)
			if tErr != nil {
				return tErr
			}
			return mErr
		},
	}

	inst.tasksCompleted, err = meter.Int64Counter("gocrew.tasks.completed",
		metric.WithDescription("Tasks that reached the completed state"),
	)
	if err != nil {
		return nil, err
	}
	inst.tasksFailed, err = meter.Int64Counter("gocrew.tasks.failed",
		metric.WithDescription("Tasks that reached the failed state"),
	)
	if err != nil {
		return nil, err
	}
	inst.taskDuration, err = meter.Float64Histogram("gocrew.task.duration",
		metric.WithDescription("Task execution duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	return inst, nil
}

func createExporter(cfg OTelConfig) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "stdout", "":
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	case "none":
		return noopExporter{}, nil
	default:
		return nil, fmt.Errorf("unknown exporter: %s (supported: stdout, none)", cfg.Exporter)
	}
}

// StartTaskSpan starts the span covering one task execution. On a nil
// receiver it returns the context unchanged and a no-op span.
func (i *Instruments) StartTaskSpan(ctx context.Context, agentID, taskID string) (context.Context, trace.Span) {
	if i == nil || i.tracer == nil {
		return ctx, trace.SpanFromContext(context.Background())
	}
	return i.tracer.Start(ctx, "task.execute",
		trace.WithAttributes(AttrAgentID.String(agentID), AttrTaskID.String(taskID)),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// RecordTaskCompleted counts a successful task and records its duration.
func (i *Instruments) RecordTaskCompleted(ctx context.Context, agentID string, d time.Duration) {
	if i == nil {
		return
	}
	attrs := metric.WithAttributes(AttrAgentID.String(agentID))
	i.tasksCompleted.Add(ctx, 1, attrs)
	i.taskDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordTaskFailed counts a failed task and records its duration.
func (i *Instruments) RecordTaskFailed(ctx context.Context, agentID string, d time.Duration) {
	if i == nil {
		return
	}
	attrs := metric.WithAttributes(AttrAgentID.String(agentID))
	i.tasksFailed.Add(ctx, 1, attrs)
	i.taskDuration.Record(ctx, d.Seconds(), attrs)
}

// Shutdown flushes exporters. Safe on nil.
func (i *Instruments) Shutdown(ctx context.Context) error {
	if i == nil || i.shutdown == nil {
		return nil
	}
	return i.shutdown(ctx)
}

// noopExporter discards spans; used for exporter=none.
type noopExporter struct{}

func (noopExporter) ExportSpans(context.Context, []sdktrace.ReadOnlySpan) error { return nil }
func (noopExporter) Shutdown(context.Context) error                             { return nil }
