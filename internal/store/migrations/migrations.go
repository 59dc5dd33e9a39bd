// Package migrations embeds the SQL migration files applied to crm.db.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
