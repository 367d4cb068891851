package trigger

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/jimmo120313/CJOPlugin/trigger"

// Tracer is the diagnostic sink of the host. Tracing is fire-and-forget:
// a failing tracer never affects the invocation.
type Tracer interface {
	Trace(format string, args ...interface{})
}

// TracerFunc adapts a function to Tracer.
type TracerFunc func(format string, args ...interface{})

func (f TracerFunc) Trace(format string, args ...interface{}) { f(format, args...) }

// LogTracer writes traces through the standard logger.
type LogTracer struct{}

func (LogTracer) Trace(format string, args ...interface{}) {
	log.Printf(format, args...)
}

func safeTrace(t Tracer, format string, args ...interface{}) {
	if t == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Warning: tracer panicked: %v", r)
		}
	}()
	t.Trace(format, args...)
}

func startSpan(ctx context.Context, name string, kind trace.SpanKind, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(instrumentationName).Start(ctx, name, trace.WithSpanKind(kind), trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// InitTracing installs a global OpenTelemetry provider exporting spans as
// JSON to settings.Output (stdout when empty). It is a no-op unless enabled.
// The returned function flushes and shuts the provider down.
func InitTracing(ctx context.Context, settings TracingSettings) (func(context.Context) error, error) {
	noop := func(context.Context) error { return nil }
	if !settings.Enabled {
		return noop, nil
	}

	var w io.Writer = os.Stdout
	var file *os.File
	if settings.Output != "" {
		f, err := os.Create(settings.Output)
		if err != nil {
			return noop, fmt.Errorf("failed to create trace output %w", err)
		}
		w, file = f, f
	}

	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return noop, fmt.Errorf("failed to create trace exporter %w", err)
	}
	res, err := resource.New(ctx, resource.WithAttributes(attribute.String("service.name", settings.ServiceName)))
	if err != nil {
		return noop, fmt.Errorf("failed to create trace resource %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sdktrace.NewSimpleSpanProcessor(exporter)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return func(ctx context.Context) error {
		err := tp.Shutdown(ctx)
		if file != nil {
			if cerr := file.Close(); err == nil {
				err = cerr
			}
		}
		return err
	}, nil
}
