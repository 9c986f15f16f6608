package fixture

import (
	"context"
	"sync"
	"testing"

	"github.com/dogmatiq/pgarena/backend"
)

// A Suite is a suite-scoped fixture: a single backend and client connection
// shared by multiple sequential test cases.
//
// Sharing is deliberate and observable; state created by one case (tables,
// rows, queued jobs) remains visible to later cases, and a failure mid-suite
// can leave that state inconsistent for the cases that follow. The suite
// serializes its cases internally, so the test runner's parallelism never
// applies to them. Prefer the case-scoped [With] unless provisioning cost
// dominates the suite's runtime.
type Suite struct {
	f *Fixture
	m sync.Mutex
}

// NewSuite provisions a backend using p and connects a client to it, both of
// which are reused by every case run through [Suite.Run].
//
// The caller is responsible for calling [Suite.Close] once all cases have
// run.
func NewSuite(ctx context.Context, p backend.Provisioner) (*Suite, error) {
	f, err := New(ctx, p)
	if err != nil {
		return nil, err
	}

	return &Suite{f: f}, nil
}

// Run runs fn as a subtest of t against the shared fixture.
//
// Cases are executed one at a time, in the order the runner schedules them;
// fn must not retain the fixture after it returns.
func (s *Suite) Run(
	t *testing.T,
	name string,
	fn func(t *testing.T, f *Fixture),
) bool {
	t.Helper()

	return t.Run(name, func(t *testing.T) {
		s.m.Lock()
		defer s.m.Unlock()

		fn(t, s.f)
	})
}

// Fixture returns the shared fixture.
//
// It is exposed for setup that must happen outside any case; using it while
// cases are running forfeits the suite's serialization guarantee.
func (s *Suite) Fixture() *Fixture {
	return s.f
}

// Close closes the shared client connection, then tears down the shared
// backend. It is idempotent.
func (s *Suite) Close(ctx context.Context) error {
	s.m.Lock()
	defer s.m.Unlock()

	return s.f.Close(ctx)
}
