// Package migrations embeds the chirp store schema migrations.
package migrations

import "embed"

// FS holds the chirp table migrations.
//
//go:embed chirps/*.sql
var FS embed.FS
