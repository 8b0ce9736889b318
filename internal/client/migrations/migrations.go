// Package migrations embeds the goose SQL migrations of the qmsctl journal.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
