package backend

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/dogmatiq/pgarena/internal/xtesting"
	"github.com/google/go-cmp/cmp"
	"github.com/jackc/pgx/v5/pgxpool"
	"pgregory.net/rapid"
)

// RunTests runs tests that confirm a [Provisioner] implementation behaves
// correctly.
//
// Each test case provisions its own backend; the suite is safe to run with
// the test runner's default parallelism.
func RunTests(t *testing.T, p Provisioner) {
	setup := func(t *testing.T) (context.Context, *pgxpool.Pool) {
		ctx := t.Context()

		h, err := p.Provision(ctx)
		if err != nil {
			t.Fatal(err)
		}

		t.Cleanup(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			if err := h.Close(ctx); err != nil {
				t.Error(err)
			}
		})

		pool, err := pgxpool.New(ctx, h.DSN())
		if err != nil {
			t.Fatal(err)
		}

		t.Cleanup(pool.Close)

		if err := pool.Ping(ctx); err != nil {
			t.Fatal(err)
		}

		return ctx, pool
	}

	t.Run("Provisioner", func(t *testing.T) {
		t.Parallel()

		t.Run("Provision", func(t *testing.T) {
			t.Parallel()

			t.Run("it provisions a reachable backend", func(t *testing.T) {
				t.Parallel()

				ctx, pool := setup(t)

				var got int
				if err := pool.QueryRow(ctx, `SELECT 1`).Scan(&got); err != nil {
					t.Fatal(err)
				}

				if got != 1 {
					t.Fatalf("unexpected result: got %d, want 1", got)
				}
			})

			t.Run("it reports the provisioner's kind on the handle", func(t *testing.T) {
				t.Parallel()

				ctx := t.Context()

				h, err := p.Provision(ctx)
				if err != nil {
					t.Fatal(err)
				}
				defer h.Close(ctx)

				if h.Kind() != p.Kind() {
					t.Fatalf("unexpected kind: got %q, want %q", h.Kind(), p.Kind())
				}
			})

			t.Run("it provisions backends that are isolated from each other", func(t *testing.T) {
				t.Parallel()

				ctx, first := setup(t)
				_, second := setup(t)

				if _, err := first.Exec(
					ctx,
					`CREATE TABLE users (
						id   INT PRIMARY KEY,
						name TEXT NOT NULL,
						age  INT
					)`,
				); err != nil {
					t.Fatal(err)
				}

				_, err := second.Exec(ctx, `SELECT * FROM users`)
				if !IsSchemaAbsence(err) {
					t.Fatalf("unexpected error: got %v, want schema absence", err)
				}
			})
		})
	})

	t.Run("Handle", func(t *testing.T) {
		t.Parallel()

		t.Run("Close", func(t *testing.T) {
			t.Parallel()

			t.Run("it allows teardown to be called more than once", func(t *testing.T) {
				t.Parallel()

				ctx := t.Context()

				h, err := p.Provision(ctx)
				if err != nil {
					t.Fatal(err)
				}

				if err := h.Close(ctx); err != nil {
					t.Fatal(err)
				}

				if err := h.Close(ctx); err != nil {
					t.Fatal(err)
				}
			})
		})
	})

	t.Run("Query", func(t *testing.T) {
		t.Parallel()

		t.Run("it reports schema absence for relations that were never created", func(t *testing.T) {
			t.Parallel()

			ctx, pool := setup(t)

			_, err := pool.Exec(
				ctx,
				fmt.Sprintf(
					`SELECT * FROM %s`,
					xtesting.UniqueIdentifier("missing"),
				),
			)

			if !IsSchemaAbsence(err) {
				t.Fatalf("unexpected error: got %v, want schema absence", err)
			}
		})

		t.Run("with a populated users table", func(t *testing.T) {
			t.Parallel()

			type user struct {
				ID   int
				Name string
				Age  int
			}

			seed := func(t *testing.T) (context.Context, *pgxpool.Pool) {
				ctx, pool := setup(t)

				if _, err := pool.Exec(
					ctx,
					`CREATE TABLE users (
						id   INT PRIMARY KEY,
						name TEXT NOT NULL,
						age  INT
					)`,
				); err != nil {
					t.Fatal(err)
				}

				for _, u := range []user{
					{1, "Alice", 30},
					{2, "Bob", 25},
					{3, "Charlie", 35},
				} {
					if _, err := pool.Exec(
						ctx,
						`INSERT INTO users (id, name, age) VALUES ($1, $2, $3)`,
						u.ID, u.Name, u.Age,
					); err != nil {
						t.Fatal(err)
					}
				}

				return ctx, pool
			}

			t.Run("it returns rows in the requested order", func(t *testing.T) {
				t.Parallel()

				ctx, pool := seed(t)

				rows, err := pool.Query(ctx, `SELECT id, name, age FROM users ORDER BY id`)
				if err != nil {
					t.Fatal(err)
				}
				defer rows.Close()

				var got []user
				for rows.Next() {
					var u user
					if err := rows.Scan(&u.ID, &u.Name, &u.Age); err != nil {
						t.Fatal(err)
					}
					got = append(got, u)
				}

				if err := rows.Err(); err != nil {
					t.Fatal(err)
				}

				want := []user{
					{1, "Alice", 30},
					{2, "Bob", 25},
					{3, "Charlie", 35},
				}

				if diff := cmp.Diff(want, got); diff != "" {
					t.Fatal(diff)
				}
			})

			t.Run("it computes aggregates over the inserted rows", func(t *testing.T) {
				t.Parallel()

				ctx, pool := seed(t)

				var avg float64
				if err := pool.QueryRow(ctx, `SELECT AVG(age) FROM users`).Scan(&avg); err != nil {
					t.Fatal(err)
				}

				if math.Abs(avg-30) > 1e-9 {
					t.Fatalf("unexpected average age: got %f, want 30", avg)
				}
			})

			t.Run("it filters rows by predicate", func(t *testing.T) {
				t.Parallel()

				ctx, pool := seed(t)

				rows, err := pool.Query(ctx, `SELECT name FROM users WHERE age > 30`)
				if err != nil {
					t.Fatal(err)
				}
				defer rows.Close()

				var got []string
				for rows.Next() {
					var name string
					if err := rows.Scan(&name); err != nil {
						t.Fatal(err)
					}
					got = append(got, name)
				}

				if err := rows.Err(); err != nil {
					t.Fatal(err)
				}

				want := []string{"Charlie"}
				if diff := cmp.Diff(want, got); diff != "" {
					t.Fatal(diff)
				}
			})
		})

		t.Run("it round-trips arbitrary key/value rows", func(t *testing.T) {
			t.Parallel()

			ctx, pool := setup(t)

			if _, err := pool.Exec(
				ctx,
				`CREATE TABLE pairs (
					k TEXT PRIMARY KEY,
					v TEXT NOT NULL
				)`,
			); err != nil {
				t.Fatal(err)
			}

			rapid.Check(t, func(t *rapid.T) {
				// Each property invocation starts from an empty relation.
				if _, err := pool.Exec(ctx, `TRUNCATE pairs`); err != nil {
					t.Fatal(err)
				}

				key := rapid.StringMatching(`[a-z][a-z0-9]{0,31}`)
				value := rapid.String()

				pairs := map[string]string{}

				t.Repeat(
					map[string]func(*rapid.T){
						"Set": func(t *rapid.T) {
							k := key.Draw(t, "key")
							v := value.Draw(t, "value")

							if _, err := pool.Exec(
								ctx,
								`INSERT INTO pairs (k, v) VALUES ($1, $2)
								ON CONFLICT (k) DO UPDATE SET v = EXCLUDED.v`,
								k, v,
							); err != nil {
								t.Fatal(err)
							}

							pairs[k] = v
						},
						"Delete": func(t *rapid.T) {
							k := key.Draw(t, "key")

							if _, err := pool.Exec(
								ctx,
								`DELETE FROM pairs WHERE k = $1`,
								k,
							); err != nil {
								t.Fatal(err)
							}

							delete(pairs, k)
						},
						"": func(t *rapid.T) {
							rows, err := pool.Query(ctx, `SELECT k, v FROM pairs`)
							if err != nil {
								t.Fatal(err)
							}
							defer rows.Close()

							got := map[string]string{}
							for rows.Next() {
								var k, v string
								if err := rows.Scan(&k, &v); err != nil {
									t.Fatal(err)
								}
								got[k] = v
							}

							if err := rows.Err(); err != nil {
								t.Fatal(err)
							}

							if diff := cmp.Diff(pairs, got); diff != "" {
								t.Fatal(diff)
							}
						},
					},
				)
			})
		})
	})
}
