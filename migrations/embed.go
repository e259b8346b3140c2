// Package migrations holds the goose SQL migrations, embedded so cmd/migrate
// and the integration tests run the same files.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
