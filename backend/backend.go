// Package backend defines the contracts shared by all disposable PostgreSQL
// backend families.
package backend

import (
	"context"
)

// Kind enumerates the supported backend families.
type Kind string

const (
	// Server identifies backends that run a PostgreSQL server in-process,
	// with no external runtime dependencies.
	Server Kind = "server"

	// Container identifies backends that run PostgreSQL inside a container
	// provisioned via a container runtime.
	Container Kind = "container"
)

// A Handle is an opaque reference to a running PostgreSQL backend.
//
// A handle is exclusively owned by the test case (or suite) that provisioned
// it; it must never be shared between concurrently executing cases.
type Handle interface {
	// Kind returns the family of the backend.
	Kind() Kind

	// DSN returns a connection string that clients use to connect to the
	// backend.
	DSN() string

	// Close tears down the backend.
	//
	// It is idempotent; calling it on a backend that has already been torn
	// down is a no-op. Any client connections must be closed before the
	// backend itself.
	Close(ctx context.Context) error
}

// A Provisioner starts disposable PostgreSQL backends of a single family.
//
// Implementations do not retry failed provisioning; a backend that cannot be
// started within the calling context's deadline is fatal to the caller.
type Provisioner interface {
	// Kind returns the family of the backends started by this provisioner.
	Kind() Kind

	// Provision starts a new backend and returns a handle to it.
	//
	// Each returned handle refers to a backend that is fully isolated from
	// backends returned by prior or concurrent calls.
	//
	// It returns a [ProvisioningError] if the backend cannot be started
	// before ctx is cancelled.
	Provision(ctx context.Context) (Handle, error)

	// Close releases any resources shared by the backends started by this
	// provisioner. It does not tear down individual backends; use
	// [Handle.Close] for that.
	Close() error
}
