package backend

import (
	"context"
	"testing"

	"github.com/dogmatiq/pgarena/internal/xtesting"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RunBenchmarks runs benchmarks against a [Provisioner] implementation.
//
// Running the same suite against each backend family is how the families are
// compared; the benchmark names are identical across drivers so results line
// up in benchstat output.
func RunBenchmarks(b *testing.B, p Provisioner) {
	b.Run("Provision", func(b *testing.B) {
		var h Handle

		xtesting.Benchmark(
			b,
			// SETUP
			nil,
			// BEFORE EACH
			nil,
			// BENCHMARKED CODE
			func(ctx context.Context) error {
				var err error
				h, err = p.Provision(ctx)
				return err
			},
			// AFTER EACH
			func(ctx context.Context) error {
				return h.Close(ctx)
			},
		)
	})

	b.Run("Connect", func(b *testing.B) {
		var (
			h    Handle
			pool *pgxpool.Pool
		)

		xtesting.Benchmark(
			b,
			// SETUP
			func(ctx context.Context) error {
				var err error
				h, err = p.Provision(ctx)
				if err != nil {
					return err
				}

				b.Cleanup(func() {
					h.Close(context.Background())
				})

				return nil
			},
			// BEFORE EACH
			nil,
			// BENCHMARKED CODE
			func(ctx context.Context) error {
				var err error
				pool, err = pgxpool.New(ctx, h.DSN())
				if err != nil {
					return err
				}
				return pool.Ping(ctx)
			},
			// AFTER EACH
			func(ctx context.Context) error {
				// The benchmarked code may fail before a pool is opened.
				if pool != nil {
					pool.Close()
					pool = nil
				}
				return nil
			},
		)
	})

	b.Run("Query", func(b *testing.B) {
		setup := func(ctx context.Context) (*pgxpool.Pool, error) {
			h, err := p.Provision(ctx)
			if err != nil {
				return nil, err
			}

			b.Cleanup(func() {
				h.Close(context.Background())
			})

			pool, err := pgxpool.New(ctx, h.DSN())
			if err != nil {
				return nil, err
			}

			b.Cleanup(pool.Close)

			if _, err := pool.Exec(
				ctx,
				`CREATE TABLE users (
					id   INT PRIMARY KEY,
					name TEXT NOT NULL,
					age  INT
				)`,
			); err != nil {
				return nil, err
			}

			for i := range 1000 {
				if _, err := pool.Exec(
					ctx,
					`INSERT INTO users (id, name, age) VALUES ($1, $2, $3)`,
					i, xtesting.SequentialName("user"), 20+i%50,
				); err != nil {
					return nil, err
				}
			}

			return pool, nil
		}

		b.Run("round-trip", func(b *testing.B) {
			var pool *pgxpool.Pool

			xtesting.Benchmark(
				b,
				// SETUP
				func(ctx context.Context) error {
					var err error
					pool, err = setup(ctx)
					return err
				},
				// BEFORE EACH
				nil,
				// BENCHMARKED CODE
				func(ctx context.Context) error {
					var n int
					return pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
				},
				// AFTER EACH
				nil,
			)
		})

		b.Run("insert", func(b *testing.B) {
			var (
				pool *pgxpool.Pool
				id   = 1000
			)

			xtesting.Benchmark(
				b,
				// SETUP
				func(ctx context.Context) error {
					var err error
					pool, err = setup(ctx)
					return err
				},
				// BEFORE EACH
				nil,
				// BENCHMARKED CODE
				func(ctx context.Context) error {
					id++
					_, err := pool.Exec(
						ctx,
						`INSERT INTO users (id, name, age) VALUES ($1, $2, $3)`,
						id, xtesting.SequentialName("user"), 20+id%50,
					)
					return err
				},
				// AFTER EACH
				nil,
			)
		})
	})
}
