package migrations

import "embed"

// FS embeds the SQL migrations applied by golang-migrate through the iofs source.
//
//go:embed *.sql
var FS embed.FS

const Version = 1
