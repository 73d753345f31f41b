package migrations

import "embed"

// FS contains embedded SQLite migrations for OKR storage.
//
//go:embed *.sql
var FS embed.FS
