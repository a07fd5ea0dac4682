// Package migrations embeds the SQL migration files so the binary carries
// its own schema and can bring a fresh database up to date on boot.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
