// Package migrations embeds the numbered SQL files applied to every facility
// schema by the migrate command and by tenant provisioning.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
