package queue

import (
	"context"
	"testing"

	"github.com/dogmatiq/pgarena/backend"
	"github.com/dogmatiq/pgarena/internal/xtesting"
)

// RunBenchmarks runs queue-workload benchmarks against a [backend.Provisioner]
// implementation.
//
// The workload exercises the full send/fetch/complete cycle; running it
// against each backend family is how the families are compared under a
// realistic client.
func RunBenchmarks(b *testing.B, p backend.Provisioner) {
	payload := []byte(`{"hello":"world"}`)

	setup := func(ctx context.Context) (*Client, error) {
		h, err := p.Provision(ctx)
		if err != nil {
			return nil, err
		}

		b.Cleanup(func() {
			h.Close(context.Background())
		})

		c, err := Open(ctx, h.DSN())
		if err != nil {
			return nil, err
		}

		b.Cleanup(c.Close)

		return c, nil
	}

	b.Run("Send", func(b *testing.B) {
		var c *Client

		xtesting.Benchmark(
			b,
			// SETUP
			func(ctx context.Context) error {
				var err error
				c, err = setup(ctx)
				return err
			},
			// BEFORE EACH
			nil,
			// BENCHMARKED CODE
			func(ctx context.Context) error {
				_, err := c.Send(ctx, "bench", payload)
				return err
			},
			// AFTER EACH
			nil,
		)
	})

	b.Run("Fetch", func(b *testing.B) {
		var c *Client

		xtesting.Benchmark(
			b,
			// SETUP
			func(ctx context.Context) error {
				var err error
				c, err = setup(ctx)
				if err != nil {
					return err
				}

				// Fetching does not consume the job, so a single seeded job
				// serves every iteration.
				_, err = c.Send(ctx, "bench", payload)
				return err
			},
			// BEFORE EACH
			nil,
			// BENCHMARKED CODE
			func(ctx context.Context) error {
				_, err := c.Fetch(ctx, "bench")
				return err
			},
			// AFTER EACH
			nil,
		)
	})

	b.Run("SendFetchComplete", func(b *testing.B) {
		var (
			c  *Client
			id string
		)

		xtesting.Benchmark(
			b,
			// SETUP
			func(ctx context.Context) error {
				var err error
				c, err = setup(ctx)
				return err
			},
			// BEFORE EACH
			nil,
			// BENCHMARKED CODE
			func(ctx context.Context) error {
				var err error
				id, err = c.Send(ctx, "bench", payload)
				if err != nil {
					return err
				}

				if _, err := c.Fetch(ctx, "bench"); err != nil {
					return err
				}

				return c.Complete(ctx, "bench", id)
			},
			// AFTER EACH
			nil,
		)
	})
}
