// Package migrations embeds the SQL schema of each supported database.
package migrations

import "embed"

// Migration files are bundled at compile time; the db package applies them
// in file-name order.
//
//go:embed sqlite/*.sql
var SqliteMigrations embed.FS

//go:embed postgres/*.sql
var PostgresMigrations embed.FS
