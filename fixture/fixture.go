// Package fixture provides scoped acquisition of disposable PostgreSQL
// backends for use in tests.
//
// The package default is case-scoped: each [New] or [With] call provisions a
// fresh backend and tears it down again, which is the only mode that is safe
// when the test runner executes cases in parallel. The suite-scoped [Suite]
// is an explicit opt-in with weaker guarantees.
package fixture

import (
	"context"
	"errors"
	"time"

	"github.com/dogmatiq/pgarena/backend"
	"github.com/dogmatiq/pgarena/internal/syncx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// teardownTimeout bounds backend teardown once the context it was acquired
// under is no longer usable.
const teardownTimeout = 30 * time.Second

// A Fixture is a disposable PostgreSQL backend paired with a client
// connection pool bound to it.
type Fixture struct {
	handle backend.Handle
	pool   *pgxpool.Pool
	closed syncx.SucceedOnce
}

// New provisions a backend using p and connects a client to it.
//
// The caller is responsible for calling [Fixture.Close]; prefer [With], which
// guarantees teardown on every exit path.
func New(ctx context.Context, p backend.Provisioner) (*Fixture, error) {
	h, err := p.Provision(ctx)
	if err != nil {
		return nil, err
	}

	pool, err := connect(ctx, h)
	if err != nil {
		err = backend.ConnectionError{
			Kind:  h.Kind(),
			Cause: err,
		}

		// The backend was already acquired; tear it down before reporting
		// the connection failure. Connecting may have failed because ctx
		// itself expired, so teardown runs under a context of its own.
		closeCtx, cancel := teardownContext(ctx)
		defer cancel()

		if cerr := h.Close(closeCtx); cerr != nil {
			err = errors.Join(err, cerr)
		}

		return nil, err
	}

	return &Fixture{
		handle: h,
		pool:   pool,
	}, nil
}

// With provisions a backend, connects a client, and invokes body with the
// resulting fixture.
//
// The client is closed and the backend torn down on every exit path,
// including a panic within body. It returns the body's error, or the
// teardown error if the body succeeded but teardown did not.
func With(
	ctx context.Context,
	p backend.Provisioner,
	body func(ctx context.Context, f *Fixture) error,
) (err error) {
	f, err := New(ctx, p)
	if err != nil {
		return err
	}

	defer func() {
		cerr := f.Close(ctx)
		if err == nil {
			err = cerr
		}
	}()

	return body(ctx, f)
}

// Handle returns the handle of the backend this fixture is bound to.
func (f *Fixture) Handle() backend.Handle {
	return f.handle
}

// DSN returns the connection string of the backend this fixture is bound to.
func (f *Fixture) DSN() string {
	return f.handle.DSN()
}

// Pool returns the client connection pool.
//
// It is intended for workloads that manage their own statements; the pool is
// owned by the fixture and must not be closed by the caller.
func (f *Fixture) Pool() *pgxpool.Pool {
	return f.pool
}

// Exec executes a SQL statement that returns no rows.
//
// Failures are reported as a [backend.QueryError].
func (f *Fixture) Exec(ctx context.Context, sql string, args ...any) error {
	if _, err := f.pool.Exec(ctx, sql, args...); err != nil {
		return backend.QueryError{Cause: err}
	}
	return nil
}

// Query executes a SQL statement and returns the resulting rows.
//
// Failures are reported as a [backend.QueryError].
func (f *Fixture) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	rows, err := f.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, backend.QueryError{Cause: err}
	}
	return rows, nil
}

// QueryRow executes a SQL statement that is expected to return at most one
// row. Errors are deferred until the row is scanned.
func (f *Fixture) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return f.pool.QueryRow(ctx, sql, args...)
}

// Close closes the client connection pool, then tears down the backend.
//
// It is idempotent. Teardown is unaffected by the cancellation of ctx, so a
// fixture acquired under a context that has since expired is still torn
// down.
func (f *Fixture) Close(ctx context.Context) error {
	return f.closed.Do(func() error {
		// The connection pool must be closed before the backend it is bound
		// to, otherwise teardown can hang waiting on live connections.
		f.pool.Close()

		ctx, cancel := teardownContext(ctx)
		defer cancel()

		return f.handle.Close(ctx)
	})
}

// teardownContext derives a context for tearing down a backend from ctx.
//
// The result carries ctx's values but not its cancellation: the failure
// being cleaned up after may be ctx's own expiry, and teardown must still
// proceed.
func teardownContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), teardownTimeout)
}

// connect opens a connection pool against h and verifies it is reachable.
func connect(ctx context.Context, h backend.Handle) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, h.DSN())
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return pool, nil
}
