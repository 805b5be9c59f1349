// Package migrations embeds the friend service SQL migrations.
package migrations

import "embed"

// EventsFS holds the event journal migrations.
//
//go:embed events/*.sql
var EventsFS embed.FS

// ProjectionsFS holds the projection table migrations.
//
//go:embed projections/*.sql
var ProjectionsFS embed.FS
