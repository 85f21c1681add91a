package templates

import (
	"io/fs"
	"path/filepath"

	"github.com/agentflow/beads/internal/templates/builtin"
	"github.com/agentflow/beads/internal/types"
)

// LoadBuiltinPacks parses every pack compiled into the binary,
// independent of a Registry instance or its enabled-packs filter. Used
// by the store package to seed the type_templates/packs tables during
// schema migration 5.
func LoadBuiltinPacks() []*types.WorkflowPack {
	entries, err := fs.ReadDir(builtin.Packs, "packs")
	if err != nil {
		return nil
	}
	var out []*types.WorkflowPack
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := fs.ReadFile(builtin.Packs, filepath.Join("packs", e.Name()))
		if err != nil {
			continue
		}
		pack, err := parsePack(data)
		if err != nil {
			continue
		}
		out = append(out, pack)
	}
	return out
}
