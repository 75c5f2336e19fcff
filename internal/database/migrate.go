package database

import (
	"context"
	_ "embed"
	"fmt"
)

//go:embed schema.sql
var schemaSQL string

// Schema returns the DDL for the file_uploads and csv_records tables.
func Schema() string {
	return schemaSQL
}

// Migrate applies the embedded schema. Every statement is idempotent
// (IF NOT EXISTS), so it is safe to run on every startup.
func Migrate(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
