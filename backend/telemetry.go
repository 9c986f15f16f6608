package backend

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/dogmatiq/pgarena/internal/telemetry"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// WithTelemetry returns a [Provisioner] that adds telemetry to p.
func WithTelemetry(
	p Provisioner,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
	l *slog.Logger,
) Provisioner {
	r := (&telemetry.Provider{
		TracerProvider: tp,
		MeterProvider:  mp,
		Logger:         l,
	}).Recorder(
		"github.com/dogmatiq/pgarena",
		"backend",
		telemetry.String("kind", p.Kind()),
	)

	return &instrumentedProvisioner{
		Next:      p,
		Telemetry: r,
		ProvisionCount: r.Int64Counter(
			"provisioned_backends",
			metric.WithDescription("The number of backends that have been provisioned."),
			metric.WithUnit("{backend}"),
		),
		LiveCount: r.Int64UpDownCounter(
			"live_backends",
			metric.WithDescription("The number of backends that are currently running."),
			metric.WithUnit("{backend}"),
		),
		ProvisionDuration: r.Float64Histogram(
			"provision_duration",
			metric.WithDescription("The time taken to provision a backend."),
			metric.WithUnit("s"),
		),
	}
}

// instrumentedProvisioner is a decorator that adds instrumentation to a
// [Provisioner].
type instrumentedProvisioner struct {
	Next      Provisioner
	Telemetry *telemetry.Recorder

	ProvisionCount    metric.Int64Counter
	LiveCount         metric.Int64UpDownCounter
	ProvisionDuration metric.Float64Histogram

	instances atomic.Int64
}

func (p *instrumentedProvisioner) Kind() Kind {
	return p.Next.Kind()
}

func (p *instrumentedProvisioner) Provision(ctx context.Context) (Handle, error) {
	ctx, span := p.Telemetry.StartSpan(
		ctx,
		"backend.provision",
		telemetry.Int("instance", p.instances.Add(1)),
	)
	defer span.End()

	start := time.Now()

	h, err := p.Next.Provision(ctx)
	if err != nil {
		span.Error("could not provision backend", err)
		return nil, err
	}

	p.ProvisionCount.Add(ctx, 1)
	p.LiveCount.Add(ctx, 1)
	p.ProvisionDuration.Record(ctx, time.Since(start).Seconds())

	span.Debug("provisioned backend")

	return &instrumentedHandle{
		Next:      h,
		Telemetry: p.Telemetry,
		LiveCount: p.LiveCount,
	}, nil
}

func (p *instrumentedProvisioner) Close() error {
	return p.Next.Close()
}

// instrumentedHandle is a decorator that adds instrumentation to a [Handle].
type instrumentedHandle struct {
	Next      Handle
	Telemetry *telemetry.Recorder
	LiveCount metric.Int64UpDownCounter

	closed atomic.Bool
}

func (h *instrumentedHandle) Kind() Kind {
	return h.Next.Kind()
}

func (h *instrumentedHandle) DSN() string {
	return h.Next.DSN()
}

func (h *instrumentedHandle) Close(ctx context.Context) error {
	ctx, span := h.Telemetry.StartSpan(ctx, "backend.teardown")
	defer span.End()

	if err := h.Next.Close(ctx); err != nil {
		span.Error("could not tear down backend", err)
		return err
	}

	// Only decrement the gauge on the first successful teardown; Close is
	// idempotent.
	if h.closed.CompareAndSwap(false, true) {
		h.LiveCount.Add(ctx, -1)
	}

	span.Debug("tore down backend")

	return nil
}
