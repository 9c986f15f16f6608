package backend_test

import (
	"context"
	"testing"

	. "github.com/dogmatiq/pgarena/backend"
)

func TestRunBenchmarks(t *testing.T) {
	t.Run("it tolerates a backend with an unusable connection string", func(t *testing.T) {
		p := &provisionerStub{
			ProvisionFunc: func(context.Context) (Handle, error) {
				return &handleStub{DSNValue: "<not-a-dsn>"}, nil
			},
		}

		// Each step that touches the backend must fail via the benchmark's
		// own error reporting, never by dereferencing state that the failed
		// step did not produce.
		testing.Benchmark(func(b *testing.B) {
			RunBenchmarks(b, p)
		})
	})
}
