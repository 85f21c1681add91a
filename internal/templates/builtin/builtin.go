// Package builtin embeds the packs compiled into the binary (layer 1 of
// the three-layer template resolution described in spec §4.2).
package builtin

import "embed"

//go:embed packs/*.json
var Packs embed.FS
