// Package migrations embeds the replica server's SQL migrations.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
