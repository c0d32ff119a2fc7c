// internal/store/postgres/migrations/embed.go
package migrations

import "embed"

// FS contains embedded Postgres migrations for the marketplace store.
//
//go:embed *.sql
var FS embed.FS
