package migrations

import "embed"

// FS contains embedded PostgreSQL migrations for OKR storage.
//
//go:embed *.sql
var FS embed.FS
