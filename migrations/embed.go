// Package migrations embeds the schema migrations for each SQL backend.
package migrations

import "embed"

// Postgres holds the Postgres + pgvector schema.
//
//go:embed postgres/*.sql
var Postgres embed.FS

// SQLite holds the single-file schema.
//
//go:embed sqlite/*.sql
var SQLite embed.FS
