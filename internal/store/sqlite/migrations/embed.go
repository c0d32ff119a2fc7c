// internal/store/sqlite/migrations/embed.go
package migrations

import "embed"

// FS contains embedded SQLite migrations for the marketplace store.
//
//go:embed *.sql
var FS embed.FS
