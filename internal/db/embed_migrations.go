package db

import "embed"

// MigrationFS embeds the Postgres schema migrations from internal/db/migrations.
// Used by the migrate runner (cmd/migrate and AUTO_MIGRATE in cmd/server).
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
