// Package migrations embeds the Postgres schema migrations applied at
// startup when database.auto_migrate is enabled.
package migrations

import "embed"

//go:embed *.sql
var PostgresMigrations embed.FS
