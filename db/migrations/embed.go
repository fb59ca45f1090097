// Package migrations embeds the SQL schema migrations, applied in ascending
// filename order.
package migrations

import "embed"

//go:embed *.sql
var Files embed.FS
