package migrations

import "embed"

// FS contains embedded SQLite migrations for the fact history store.
//
//go:embed *.sql
var FS embed.FS
