package db

import (
	"context"
	_ "embed"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// EnsureSchema applies the idempotent schema. It runs as a single simple-protocol
// statement batch, so it must be called without arguments.
func EnsureSchema(ctx context.Context, database DB) error {
	if _, err := database.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
