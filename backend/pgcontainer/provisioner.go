// Package pgcontainer is a disposable-backend driver that provisions a
// PostgreSQL container per backend via a container runtime.
package pgcontainer

import (
	"context"
	"time"

	"github.com/dogmatiq/pgarena/backend"
	"github.com/dogmatiq/pgarena/internal/syncx"
	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

const (
	// DefaultImage is the container image used when [Provisioner.Image] is
	// empty.
	DefaultImage = "postgres:16-alpine"

	// DefaultStartupTimeout is the provisioning deadline applied when
	// [Provisioner.StartupTimeout] is zero and the provisioning context has
	// no deadline of its own. Image pulls on a cold cache routinely take
	// longer than a container boot.
	DefaultStartupTimeout = 2 * time.Minute
)

// Provisioner starts container-backed PostgreSQL backends.
//
// The zero value is ready for use.
type Provisioner struct {
	// Image is the container image to run. If it is empty, [DefaultImage] is
	// used.
	Image string

	// StartupTimeout is the maximum time to wait for a container to become
	// ready to accept connections. If it is zero, [DefaultStartupTimeout] is
	// used.
	StartupTimeout time.Duration
}

// Kind returns [backend.Container].
func (p *Provisioner) Kind() backend.Kind {
	return backend.Container
}

// Provision starts a new container and returns a handle to it.
//
// It returns a [backend.ProvisioningError] if the container cannot be pulled,
// started and made ready before the startup timeout elapses.
func (p *Provisioner) Provision(ctx context.Context) (backend.Handle, error) {
	image := p.Image
	if image == "" {
		image = DefaultImage
	}

	timeout := p.StartupTimeout
	if timeout == 0 {
		timeout = DefaultStartupTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	container, err := postgres.Run(
		ctx,
		image,
		postgres.BasicWaitStrategies(),
		postgres.WithDatabase("pgarena"),
		postgres.WithUsername("pgarena"),
		postgres.WithPassword(uuid.NewString()),
	)
	if err != nil {
		return nil, backend.ProvisioningError{
			Kind:  backend.Container,
			Cause: err,
		}
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		_ = container.Terminate(context.WithoutCancel(ctx))

		return nil, backend.ProvisioningError{
			Kind:  backend.Container,
			Cause: err,
		}
	}

	return &handle{
		dsn:       dsn,
		container: container,
	}, nil
}

// Close is a no-op; containers share no provisioner-level resources.
func (p *Provisioner) Close() error {
	return nil
}

// handle is a [backend.Handle] that refers to a single PostgreSQL container.
type handle struct {
	dsn       string
	container *postgres.PostgresContainer
	closed    syncx.SucceedOnce
}

func (h *handle) Kind() backend.Kind {
	return backend.Container
}

func (h *handle) DSN() string {
	return h.dsn
}

func (h *handle) Close(ctx context.Context) error {
	return h.closed.Do(func() error {
		if err := h.container.Terminate(ctx); err != nil {
			return backend.ProvisioningError{
				Kind:  backend.Container,
				Cause: err,
			}
		}
		return nil
	})
}
