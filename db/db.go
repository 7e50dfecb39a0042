// Package db embeds the SQL schema so binaries and tests apply the same files.
package db

import "embed"

// Migrations holds the *.up.sql and *.down.sql schema files.
//
//go:embed migrations/*.sql
var Migrations embed.FS
