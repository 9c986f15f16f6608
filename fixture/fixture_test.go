package fixture_test

import (
	"context"
	"errors"
	"testing"

	"github.com/dogmatiq/pgarena/backend"
	"github.com/dogmatiq/pgarena/backend/pgserver"
	. "github.com/dogmatiq/pgarena/fixture"
)

// newProvisioner returns a provisioner that is torn down when the test ends.
func newProvisioner(t *testing.T) backend.Provisioner {
	t.Helper()

	p := &pgserver.Provisioner{}

	t.Cleanup(func() {
		if err := p.Close(); err != nil {
			t.Error(err)
		}
	})

	return p
}

// recordingProvisioner wraps a provisioner to observe handle teardown.
type recordingProvisioner struct {
	backend.Provisioner
	TeardownCount  int
	TeardownCtxErr error
}

func (p *recordingProvisioner) Provision(ctx context.Context) (backend.Handle, error) {
	h, err := p.Provisioner.Provision(ctx)
	if err != nil {
		return nil, err
	}

	return &recordingHandle{
		Handle: h,
		onClose: func(ctx context.Context) {
			p.TeardownCount++
			p.TeardownCtxErr = ctx.Err()
		},
	}, nil
}

type recordingHandle struct {
	backend.Handle
	onClose func(context.Context)
}

func (h *recordingHandle) Close(ctx context.Context) error {
	h.onClose(ctx)
	return h.Handle.Close(ctx)
}

// stubProvisioner is a provisioner double that returns a fixed handle
// without consulting its context.
type stubProvisioner struct {
	handle backend.Handle
}

func (p *stubProvisioner) Kind() backend.Kind {
	return backend.Server
}

func (p *stubProvisioner) Provision(context.Context) (backend.Handle, error) {
	return p.handle, nil
}

func (p *stubProvisioner) Close() error {
	return nil
}

// stubHandle records the context its teardown is given.
type stubHandle struct {
	dsn         string
	CloseCount  int
	CloseCtxErr error
}

func (h *stubHandle) Kind() backend.Kind { return backend.Server }
func (h *stubHandle) DSN() string        { return h.dsn }

func (h *stubHandle) Close(ctx context.Context) error {
	h.CloseCount++
	h.CloseCtxErr = ctx.Err()
	return nil
}

func TestWith(t *testing.T) {
	t.Parallel()

	t.Run("it provides a usable client connection", func(t *testing.T) {
		t.Parallel()

		p := newProvisioner(t)

		if err := With(
			t.Context(),
			p,
			func(ctx context.Context, f *Fixture) error {
				if err := f.Exec(
					ctx,
					`CREATE TABLE users (
						id   INT PRIMARY KEY,
						name TEXT NOT NULL
					)`,
				); err != nil {
					return err
				}

				if err := f.Exec(
					ctx,
					`INSERT INTO users (id, name) VALUES ($1, $2)`,
					1, "Alice",
				); err != nil {
					return err
				}

				var name string
				if err := f.QueryRow(
					ctx,
					`SELECT name FROM users WHERE id = $1`,
					1,
				).Scan(&name); err != nil {
					return err
				}

				if name != "Alice" {
					t.Fatalf("unexpected name: got %q, want %q", name, "Alice")
				}

				return nil
			},
		); err != nil {
			t.Fatal(err)
		}
	})

	t.Run("it closes the client and tears down the backend when the body returns", func(t *testing.T) {
		t.Parallel()

		p := &recordingProvisioner{Provisioner: newProvisioner(t)}

		var f *Fixture
		if err := With(
			t.Context(),
			p,
			func(_ context.Context, inner *Fixture) error {
				f = inner
				return nil
			},
		); err != nil {
			t.Fatal(err)
		}

		if p.TeardownCount != 1 {
			t.Fatalf("unexpected teardown count: got %d, want 1", p.TeardownCount)
		}

		if err := f.Pool().Ping(t.Context()); err == nil {
			t.Fatal("expected the connection pool to be closed")
		}
	})

	t.Run("it tears down the backend when the body returns an error", func(t *testing.T) {
		t.Parallel()

		p := &recordingProvisioner{Provisioner: newProvisioner(t)}
		want := errors.New("<error>")

		err := With(
			t.Context(),
			p,
			func(context.Context, *Fixture) error {
				return want
			},
		)

		if !errors.Is(err, want) {
			t.Fatalf("unexpected error: got %v, want %v", err, want)
		}

		if p.TeardownCount != 1 {
			t.Fatalf("unexpected teardown count: got %d, want 1", p.TeardownCount)
		}
	})

	t.Run("it tears down the backend when the body panics", func(t *testing.T) {
		t.Parallel()

		p := &recordingProvisioner{Provisioner: newProvisioner(t)}

		func() {
			defer func() {
				if recover() == nil {
					t.Error("expected the panic to propagate")
				}
			}()

			_ = With(
				t.Context(),
				p,
				func(context.Context, *Fixture) error {
					panic("<panic>")
				},
			)
		}()

		if p.TeardownCount != 1 {
			t.Fatalf("unexpected teardown count: got %d, want 1", p.TeardownCount)
		}
	})

	t.Run("it tears down the backend when the context expires inside the body", func(t *testing.T) {
		t.Parallel()

		p := &recordingProvisioner{Provisioner: newProvisioner(t)}

		ctx, cancel := context.WithCancel(t.Context())

		err := With(
			ctx,
			p,
			func(ctx context.Context, _ *Fixture) error {
				cancel()
				return ctx.Err()
			},
		)

		if !errors.Is(err, context.Canceled) {
			t.Fatalf("unexpected error: got %v, want %v", err, context.Canceled)
		}

		if p.TeardownCount != 1 {
			t.Fatalf("unexpected teardown count: got %d, want 1", p.TeardownCount)
		}

		if p.TeardownCtxErr != nil {
			t.Fatalf("expected teardown to receive a live context, got %v", p.TeardownCtxErr)
		}
	})

	t.Run("it provisions a fresh backend per invocation", func(t *testing.T) {
		t.Parallel()

		p := newProvisioner(t)

		if err := With(
			t.Context(),
			p,
			func(ctx context.Context, f *Fixture) error {
				return f.Exec(ctx, `CREATE TABLE users (id INT PRIMARY KEY)`)
			},
		); err != nil {
			t.Fatal(err)
		}

		if err := With(
			t.Context(),
			p,
			func(ctx context.Context, f *Fixture) error {
				err := f.Exec(ctx, `SELECT * FROM users`)
				if !backend.IsSchemaAbsence(err) {
					t.Fatalf("unexpected error: got %v, want schema absence", err)
				}
				return nil
			},
		); err != nil {
			t.Fatal(err)
		}
	})
}

func TestFixture(t *testing.T) {
	t.Parallel()

	t.Run("it classifies query failures", func(t *testing.T) {
		t.Parallel()

		p := newProvisioner(t)

		f, err := New(t.Context(), p)
		if err != nil {
			t.Fatal(err)
		}

		t.Cleanup(func() {
			if err := f.Close(context.Background()); err != nil {
				t.Error(err)
			}
		})

		err = f.Exec(t.Context(), `SELECT * FROM users`)

		if !errors.As(err, &backend.QueryError{}) {
			t.Fatalf("unexpected error type: got %T, want %T", err, backend.QueryError{})
		}

		if !backend.IsSchemaAbsence(err) {
			t.Fatalf("unexpected error: got %v, want schema absence", err)
		}
	})

	t.Run("it tears down the backend when connecting fails", func(t *testing.T) {
		t.Parallel()

		h := &stubHandle{dsn: "postgres://127.0.0.1:1/unreachable"}
		p := &stubProvisioner{handle: h}

		// Cancelling up-front makes connecting fail for the same reason the
		// teardown context must not inherit.
		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		_, err := New(ctx, p)

		if !errors.As(err, &backend.ConnectionError{}) {
			t.Fatalf("unexpected error type: got %T, want %T", err, backend.ConnectionError{})
		}

		if h.CloseCount != 1 {
			t.Fatalf("unexpected teardown count: got %d, want 1", h.CloseCount)
		}

		if h.CloseCtxErr != nil {
			t.Fatalf("expected teardown to receive a live context, got %v", h.CloseCtxErr)
		}
	})

	t.Run("it allows Close to be called more than once", func(t *testing.T) {
		t.Parallel()

		p := newProvisioner(t)

		f, err := New(t.Context(), p)
		if err != nil {
			t.Fatal(err)
		}

		if err := f.Close(t.Context()); err != nil {
			t.Fatal(err)
		}

		if err := f.Close(t.Context()); err != nil {
			t.Fatal(err)
		}
	})
}
