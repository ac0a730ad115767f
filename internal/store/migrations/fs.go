// Package migrations embeds the SQL migration files applied by store.DB.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
