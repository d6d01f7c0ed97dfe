// Package migrations embeds the SQL files that build this package's
// schema, for golang-migrate/migrate's iofs source driver.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
