// Package pgserver is a disposable-backend driver that runs a PostgreSQL
// server within the test process, with no external runtime dependencies.
//
// A single server process is shared by all backends started by one
// [Provisioner]; each backend is a separate database on that server, so
// backends remain fully isolated from one another.
package pgserver

import (
	"context"
	"sync"

	"github.com/dogmatiq/pgarena/backend"
	"zombiezen.com/go/postgrestest"
)

// Provisioner starts in-process PostgreSQL backends.
//
// The zero value is ready for use. The underlying server process is started
// lazily by the first call to [Provisioner.Provision] and stopped by
// [Provisioner.Close].
type Provisioner struct {
	m   sync.Mutex
	srv *postgrestest.Server
}

// Kind returns [backend.Server].
func (p *Provisioner) Kind() backend.Kind {
	return backend.Server
}

// Provision starts a new backend and returns a handle to it.
//
// The backend is a freshly created database on the provisioner's server
// process; databases created by other calls are never visible through it.
func (p *Provisioner) Provision(ctx context.Context) (backend.Handle, error) {
	srv, err := p.server(ctx)
	if err != nil {
		return nil, backend.ProvisioningError{
			Kind:  backend.Server,
			Cause: err,
		}
	}

	// The server does not surface a database name of its own choosing; the
	// DSN it returns refers to the database created for this handle.
	dsn, err := srv.CreateDatabase(ctx)
	if err != nil {
		return nil, backend.ProvisioningError{
			Kind:  backend.Server,
			Cause: err,
		}
	}

	return &handle{dsn: dsn}, nil
}

// Close stops the shared server process, discarding all databases created by
// this provisioner.
func (p *Provisioner) Close() error {
	p.m.Lock()
	defer p.m.Unlock()

	if p.srv != nil {
		p.srv.Cleanup()
		p.srv = nil
	}

	return nil
}

// server returns the shared server process, starting it if necessary.
func (p *Provisioner) server(ctx context.Context) (*postgrestest.Server, error) {
	p.m.Lock()
	defer p.m.Unlock()

	if p.srv == nil {
		srv, err := postgrestest.Start(ctx)
		if err != nil {
			return nil, err
		}
		p.srv = srv
	}

	return p.srv, nil
}

// handle is a [backend.Handle] that refers to a single database on an
// in-process server.
type handle struct {
	dsn string
}

func (h *handle) Kind() backend.Kind {
	return backend.Server
}

func (h *handle) DSN() string {
	return h.dsn
}

// Close tears down the backend.
//
// The database itself is retained until the provisioner's server process is
// stopped; it is unreachable through any other handle regardless, so Close
// is trivially idempotent.
func (h *handle) Close(context.Context) error {
	return nil
}
