// Package pg embeds the Postgres schema migrations
package pg

import "embed"

//go:embed *.sql
var Migrations embed.FS
