// Package migrations embeds the like journal schema migrations.
package migrations

import "embed"

// FS holds the like journal migrations.
//
//go:embed likes/*.sql
var FS embed.FS
