package migrations

import "embed"

// FS contains embedded migrations, one directory per SQL dialect.
//
//go:embed sqlite/*.sql mysql/*.sql
var FS embed.FS
