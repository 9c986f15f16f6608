package telemetry

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Provider provides [Recorder] instances scoped to particular subsystems.
type Provider struct {
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	Logger         *slog.Logger
}

// Recorder records traces, metrics and logs for a particular subsystem.
type Recorder struct {
	tracer trace.Tracer
	meter  metric.Meter
	logger *slog.Logger
}

// Recorder returns a new [Recorder] instance.
//
// pkg is the path to the Go package that is performing the instrumentation.
// If it is an internal package, use the package path of the public parent
// package instead.
func (p *Provider) Recorder(pkg, subsystem string, attrs ...attribute.KeyValue) *Recorder {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Recorder{
		tracer: p.TracerProvider.Tracer(
			pkg,
			trace.WithInstrumentationAttributes(attrs...),
		),
		meter: p.MeterProvider.Meter(
			pkg,
			metric.WithInstrumentationAttributes(attrs...),
		),
		logger: logger.With(
			slog.String("subsystem", subsystem),
		),
	}
}

// StartSpan starts a new span and returns it along with a context that
// carries it.
func (r *Recorder) StartSpan(
	ctx context.Context,
	name string,
	attrs ...attribute.KeyValue,
) (context.Context, *Span) {
	ctx, s := r.tracer.Start(
		ctx,
		name,
		trace.WithAttributes(attrs...),
	)

	return ctx, &Span{
		span:   s,
		logger: r.logger,
	}
}

// Int64Counter returns a new 64-bit integer counter, or panics if it cannot
// be constructed.
func (r *Recorder) Int64Counter(name string, options ...metric.Int64CounterOption) metric.Int64Counter {
	m, err := r.meter.Int64Counter(name, options...)
	if err != nil {
		panic(err)
	}
	return m
}

// Int64UpDownCounter returns a new 64-bit integer up/down counter, or panics
// if it cannot be constructed.
func (r *Recorder) Int64UpDownCounter(name string, options ...metric.Int64UpDownCounterOption) metric.Int64UpDownCounter {
	m, err := r.meter.Int64UpDownCounter(name, options...)
	if err != nil {
		panic(err)
	}
	return m
}

// Float64Histogram returns a new 64-bit floating-point histogram, or panics
// if it cannot be constructed.
func (r *Recorder) Float64Histogram(name string, options ...metric.Float64HistogramOption) metric.Float64Histogram {
	m, err := r.meter.Float64Histogram(name, options...)
	if err != nil {
		panic(err)
	}
	return m
}

// A Span is a single traced operation.
type Span struct {
	span   trace.Span
	logger *slog.Logger
}

// End completes the span.
func (s *Span) End() {
	s.span.End()
}

// SetAttributes adds attributes to the span.
func (s *Span) SetAttributes(attrs ...attribute.KeyValue) {
	s.span.SetAttributes(attrs...)
}

// Debug logs a debug message to the log and as a span event.
func (s *Span) Debug(message string, attrs ...attribute.KeyValue) {
	s.span.AddEvent(
		message,
		trace.WithAttributes(attrs...),
	)
	s.logger.Debug(message, asLogArgs(attrs)...)
}

// Error logs an error message to the log and as a span event, and marks the
// span as an error.
func (s *Span) Error(message string, err error, attrs ...attribute.KeyValue) {
	s.span.AddEvent(
		message,
		trace.WithAttributes(attrs...),
	)
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())

	s.logger.Error(
		message,
		append(
			asLogArgs(attrs),
			slog.Any("error", err),
		)...,
	)
}

func asLogArgs(attrs []attribute.KeyValue) []any {
	args := make([]any, 0, len(attrs))
	for _, attr := range attrs {
		args = append(
			args,
			slog.Any(
				string(attr.Key),
				attr.Value.AsInterface(),
			),
		)
	}
	return args
}
