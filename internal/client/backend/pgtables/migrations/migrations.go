// Package migrations embeds the schema used when the client talks to a
// self-hosted Postgres directly.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
