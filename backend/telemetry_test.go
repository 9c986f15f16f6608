package backend_test

import (
	"context"
	"errors"
	"testing"

	. "github.com/dogmatiq/pgarena/backend"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// provisionerStub is a test double for a [Provisioner].
type provisionerStub struct {
	ProvisionFunc func(context.Context) (Handle, error)
	CloseFunc     func() error
}

func (s *provisionerStub) Kind() Kind {
	return Server
}

func (s *provisionerStub) Provision(ctx context.Context) (Handle, error) {
	return s.ProvisionFunc(ctx)
}

func (s *provisionerStub) Close() error {
	if s.CloseFunc != nil {
		return s.CloseFunc()
	}
	return nil
}

// handleStub is a test double for a [Handle].
type handleStub struct {
	DSNValue   string
	CloseCount int
	CloseErr   error
}

func (s *handleStub) Kind() Kind { return Server }

func (s *handleStub) DSN() string {
	if s.DSNValue != "" {
		return s.DSNValue
	}
	return "postgres://stub"
}

func (s *handleStub) Close(context.Context) error {
	s.CloseCount++
	return s.CloseErr
}

func TestWithTelemetry(t *testing.T) {
	t.Parallel()

	instrument := func(p Provisioner) Provisioner {
		return WithTelemetry(
			p,
			tracenoop.NewTracerProvider(),
			metricnoop.NewMeterProvider(),
			nil, // use the default logger
		)
	}

	t.Run("it forwards provisioning to the underlying provisioner", func(t *testing.T) {
		t.Parallel()

		want := &handleStub{}

		p := instrument(
			&provisionerStub{
				ProvisionFunc: func(context.Context) (Handle, error) {
					return want, nil
				},
			},
		)

		h, err := p.Provision(t.Context())
		if err != nil {
			t.Fatal(err)
		}

		if h.Kind() != want.Kind() {
			t.Fatalf("unexpected kind: got %q, want %q", h.Kind(), want.Kind())
		}

		if h.DSN() != want.DSN() {
			t.Fatalf("unexpected DSN: got %q, want %q", h.DSN(), want.DSN())
		}

		if err := h.Close(t.Context()); err != nil {
			t.Fatal(err)
		}

		if want.CloseCount != 1 {
			t.Fatalf("unexpected close count: got %d, want 1", want.CloseCount)
		}
	})

	t.Run("it propagates provisioning errors", func(t *testing.T) {
		t.Parallel()

		want := errors.New("<error>")

		p := instrument(
			&provisionerStub{
				ProvisionFunc: func(context.Context) (Handle, error) {
					return nil, want
				},
			},
		)

		if _, err := p.Provision(t.Context()); !errors.Is(err, want) {
			t.Fatalf("unexpected error: got %v, want %v", err, want)
		}
	})

	t.Run("it propagates teardown errors", func(t *testing.T) {
		t.Parallel()

		want := errors.New("<error>")

		p := instrument(
			&provisionerStub{
				ProvisionFunc: func(context.Context) (Handle, error) {
					return &handleStub{CloseErr: want}, nil
				},
			},
		)

		h, err := p.Provision(t.Context())
		if err != nil {
			t.Fatal(err)
		}

		if err := h.Close(t.Context()); !errors.Is(err, want) {
			t.Fatalf("unexpected error: got %v, want %v", err, want)
		}
	})

	t.Run("it closes the underlying provisioner", func(t *testing.T) {
		t.Parallel()

		closed := false

		p := instrument(
			&provisionerStub{
				CloseFunc: func() error {
					closed = true
					return nil
				},
			},
		)

		if err := p.Close(); err != nil {
			t.Fatal(err)
		}

		if !closed {
			t.Fatal("expected the underlying provisioner to be closed")
		}
	})
}
