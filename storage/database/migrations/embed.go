package migrations

import "embed"

// FS holds the goose migrations applied by database.Migrate.
//
//go:embed *.sql
var FS embed.FS
