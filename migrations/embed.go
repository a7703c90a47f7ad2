// Package migrations embeds the default SQL migration set into the binary.
//
// sqlsessiond applies these on startup unless store.migrations_dir points
// at a directory of its own.
package migrations

import "embed"

// FS holds every NNNN_name.up.sql file in this directory.
//
//go:embed *.sql
var FS embed.FS

// Dir is the directory within FS holding the migrations.
const Dir = "."
