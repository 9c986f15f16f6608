package queue

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is the DDL required by the queue's delivery library.
//
//go:embed schema.sql
var schema string

// CreateSchema creates the schema elements required by [Client] if they do
// not already exist.
func CreateSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("cannot create queue schema: %w", err)
	}
	return nil
}
