package migrations

import "embed"

// FS contains embedded SQLite migrations for the transcript archive.
//
//go:embed *.sql
var FS embed.FS
