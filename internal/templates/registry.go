// Package templates implements the TemplateRegistry: loading, caching,
// and querying per-type workflow templates and the packs that bundle
// them, per spec §4.2-4.3.
package templates

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/agentflow/beads/internal/templates/builtin"
	"github.com/agentflow/beads/internal/types"
)

// legacyCategoryHeuristic maps a legacy status name to a category when no
// template is loaded for the issue's type. Hardcoded per spec §8/§9 Open
// Questions: not currently exposed as configurable policy.
func legacyCategoryHeuristic(status string) types.Category {
	switch status {
	case "open":
		return types.CategoryOpen
	case "in_progress":
		return types.CategoryWIP
	case "closed", "done", "resolved", "wont_fix", "cancelled", "archived":
		return types.CategoryDone
	default:
		return types.CategoryOpen
	}
}

// TransitionResult is the outcome of validating one `(type, from, to,
// fields)` transition, per spec §4.3.
type TransitionResult struct {
	Allowed     bool
	Enforcement types.Enforcement
	Missing     []string
	Warnings    []string
}

// TransitionOption describes one transition reachable from a state,
// returned by GetValidTransitions.
type TransitionOption struct {
	To          string
	Enforcement types.Enforcement
	Missing     []string
}

// snapshot is the immutable, fully-resolved view of all loaded templates
// and packs. Reload() builds a new snapshot and atomically swaps it so
// concurrent readers never observe a half-built registry.
type snapshot struct {
	types    map[string]*types.TypeTemplate
	packs    map[string]*types.WorkflowPack
	category map[categoryKey]types.Category // (type,state) -> category, O(1) lookup
	open     map[string]bool                // union of open-category state names across all types
	done     map[string]bool                // union of done-category state names across all types
}

type categoryKey struct {
	typ   string
	state string
}

func emptySnapshot() *snapshot {
	return &snapshot{
		types:    map[string]*types.TypeTemplate{},
		packs:    map[string]*types.WorkflowPack{},
		category: map[categoryKey]types.Category{},
		open:     map[string]bool{},
		done:     map[string]bool{},
	}
}

// Registry is a lazily-constructed, thread-safe handle over the current
// template snapshot. It has no process-wide singleton; callers construct
// one per Store/IssueEngine instance.
type Registry struct {
	projectDir string
	current    atomic.Pointer[snapshot]
	loaded     atomic.Bool

	// rebuildGroup coalesces concurrent Reload() callers (e.g. two
	// explicit cache-bust calls from overlapping pack-enable requests)
	// into a single rebuild, per spec §5 copy-on-write snapshot swap.
	rebuildGroup singleflight.Group
}

// New constructs a Registry bound to a project directory. It does not
// load anything until the first query or an explicit Load call.
func New(projectDir string) *Registry {
	r := &Registry{projectDir: projectDir}
	r.current.Store(emptySnapshot())
	return r
}

// Load is idempotent: once a snapshot has been built, subsequent calls
// are no-ops until Reload() is invoked. Invalid files are logged and
// skipped; loading never fails the process.
func (r *Registry) Load() {
	if r.loaded.Load() {
		return
	}
	r.rebuildOnce()
	r.loaded.Store(true)
}

// Reload discards the cached snapshot and rebuilds it immediately off to
// the side, then atomically swaps. Two successive reloads produce
// identical in-memory template maps (idempotent). Concurrent callers
// share one underlying rebuild via singleflight rather than duplicating
// the work.
func (r *Registry) Reload() {
	r.rebuildOnce()
	r.loaded.Store(true)
}

// rebuildOnce coalesces concurrent rebuild requests into a single call
// to rebuild.
func (r *Registry) rebuildOnce() {
	_, _, _ = r.rebuildGroup.Do("rebuild", func() (interface{}, error) {
		r.rebuild()
		return nil, nil
	})
}

func (r *Registry) ensureLoaded() { r.Load() }

func (r *Registry) snap() *snapshot { return r.current.Load() }

func (r *Registry) rebuild() {
	next := emptySnapshot()

	enabled := r.enabledPacks()
	enabledSet := make(map[string]bool, len(enabled))
	for _, p := range enabled {
		enabledSet[p] = true
	}

	// Layer 1: built-in packs compiled into the binary.
	r.loadBuiltinPacks(next, enabledSet)

	// Layer 2: installed packs from <projectDir>/packs/*.json.
	if r.projectDir != "" {
		r.loadPackDir(next, filepath.Join(r.projectDir, "packs"), enabledSet, false)
	}

	// Layer 3: project-local overrides from <projectDir>/templates/*.json,
	// one type template per file, unconditionally applied.
	if r.projectDir != "" {
		r.loadTemplateOverrideDir(next, filepath.Join(r.projectDir, "templates"))
	}

	r.buildCategoryIndex(next)
	r.current.Store(next)
}

func (r *Registry) enabledPacks() []string {
	if r.projectDir == "" {
		return types.DefaultEnabledPacks()
	}
	data, err := os.ReadFile(filepath.Join(r.projectDir, "config.json"))
	if err != nil {
		return types.DefaultEnabledPacks()
	}
	var cfg types.ProjectConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		log.Printf("templates: skipping malformed config.json: %v", err)
		return types.DefaultEnabledPacks()
	}
	if len(cfg.EnabledPacks) == 0 {
		return types.DefaultEnabledPacks()
	}
	return cfg.EnabledPacks
}

func (r *Registry) loadBuiltinPacks(next *snapshot, enabled map[string]bool) {
	entries, err := fs.ReadDir(builtin.Packs, "packs")
	if err != nil {
		log.Printf("templates: reading built-in packs: %v", err)
		return
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		data, err := fs.ReadFile(builtin.Packs, filepath.Join("packs", e.Name()))
		if err != nil {
			log.Printf("templates: reading built-in pack %s: %v", e.Name(), err)
			continue
		}
		pack, err := parsePack(data)
		if err != nil {
			log.Printf("templates: skipping malformed built-in pack %s: %v", e.Name(), err)
			continue
		}
		next.packs[pack.Name] = pack
		if !enabled[pack.Name] {
			continue
		}
		applyPack(next, pack)
	}
}

func (r *Registry) loadPackDir(next *snapshot, dir string, enabled map[string]bool, isBuiltin bool) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return // absent installed-packs dir is normal, not an error
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path) // #nosec G304 - project-local config path
		if err != nil {
			log.Printf("templates: reading pack %s: %v", path, err)
			continue
		}
		pack, err := parsePack(data)
		if err != nil {
			log.Printf("templates: skipping malformed pack %s: %v", path, err)
			continue
		}
		next.packs[pack.Name] = pack
		if !enabled[pack.Name] {
			continue
		}
		applyPack(next, pack)
	}
}

func (r *Registry) loadTemplateOverrideDir(next *snapshot, dir string) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path) // #nosec G304 - project-local config path
		if err != nil {
			log.Printf("templates: reading template override %s: %v", path, err)
			continue
		}
		var t types.TypeTemplate
		if err := json.Unmarshal(data, &t); err != nil {
			log.Printf("templates: skipping malformed template override %s: %v", path, err)
			continue
		}
		if err := ValidateTemplate(&t); err != nil {
			log.Printf("templates: skipping invalid template override %s: %v", path, err)
			continue
		}
		tc := t
		next.types[t.Type] = &tc
	}
}

func parsePack(data []byte) (*types.WorkflowPack, error) {
	var p types.WorkflowPack
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing pack json: %w", err)
	}
	if err := ValidatePack(&p, len(data)); err != nil {
		return nil, err
	}
	return &p, nil
}

// applyPack layers a pack's types into next, later layers overriding
// earlier ones by type name (last writer wins).
func applyPack(next *snapshot, pack *types.WorkflowPack) {
	names := make([]string, 0, len(pack.Types))
	for name := range pack.Types {
		names = append(names, name)
	}
	sort.Strings(names) // deterministic application order within a pack
	for _, name := range names {
		t := pack.Types[name]
		tc := *t
		next.types[name] = &tc
	}
}

func (r *Registry) buildCategoryIndex(next *snapshot) {
	for typeName, t := range next.types {
		for _, s := range t.States {
			next.category[categoryKey{typeName, s.Name}] = s.Category
			switch s.Category {
			case types.CategoryOpen:
				next.open[s.Name] = true
			case types.CategoryDone:
				next.done[s.Name] = true
			}
		}
	}
}

// GetType returns the loaded template for a type, or nil if none is
// registered (legacy tolerance applies in that case).
func (r *Registry) GetType(name string) *types.TypeTemplate {
	r.ensureLoaded()
	return r.snap().types[name]
}

// ListTypes returns all currently loaded type names, sorted.
func (r *Registry) ListTypes() []string {
	r.ensureLoaded()
	s := r.snap()
	out := make([]string, 0, len(s.types))
	for name := range s.types {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ListPacks returns all currently loaded pack names, sorted.
func (r *Registry) ListPacks() []string {
	r.ensureLoaded()
	s := r.snap()
	out := make([]string, 0, len(s.packs))
	for name := range s.packs {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// GetPack returns the loaded pack by name, or nil.
func (r *Registry) GetPack(name string) *types.WorkflowPack {
	r.ensureLoaded()
	return r.snap().packs[name]
}

// GetInitialState returns the template's initial state, falling back to
// "open" with a logged warning for unknown types.
func (r *Registry) GetInitialState(typeName string) string {
	r.ensureLoaded()
	t := r.snap().types[typeName]
	if t == nil {
		log.Printf("templates: unknown type %q, falling back to initial state \"open\"", typeName)
		return "open"
	}
	return t.InitialState
}

// GetCategory resolves the category for (type, state), O(1) via the
// precomputed index. Returns (category, true) when a template exists for
// the pair; otherwise (legacy heuristic, false).
func (r *Registry) GetCategory(typeName, state string) (types.Category, bool) {
	r.ensureLoaded()
	s := r.snap()
	if t := s.types[typeName]; t != nil {
		if c, ok := s.category[categoryKey{typeName, state}]; ok {
			return c, true
		}
		// Type is templated but state isn't declared: fall through to
		// the legacy heuristic rather than guessing.
	}
	return legacyCategoryHeuristic(state), false
}

// GetFirstStateOfCategory returns the first state (declaration order)
// matching category, or "" if the type has no template or no such state.
func (r *Registry) GetFirstStateOfCategory(typeName string, category types.Category) string {
	r.ensureLoaded()
	t := r.snap().types[typeName]
	if t == nil {
		return ""
	}
	for _, s := range t.States {
		if s.Category == category {
			return s.Name
		}
	}
	return ""
}

// GetValidStates returns the type's declared states in order, or nil if
// unknown.
func (r *Registry) GetValidStates(typeName string) []types.State {
	r.ensureLoaded()
	t := r.snap().types[typeName]
	if t == nil {
		return nil
	}
	return append([]types.State(nil), t.States...)
}

// OpenStates returns the memoized union of open-category state names
// across all currently registered types.
func (r *Registry) OpenStates() map[string]bool {
	r.ensureLoaded()
	return r.snap().open
}

// DoneStates returns the memoized union of done-category state names
// across all currently registered types.
func (r *Registry) DoneStates() map[string]bool {
	r.ensureLoaded()
	return r.snap().done
}

// missingFields computes which of the candidate field names are
// unpopulated in fields, per spec §4.3 step 4, deduplicating while
// preserving first-seen order.
func missingFields(fields map[string]types.FieldValue, candidates []string, seen map[string]bool, out []string) []string {
	for _, name := range candidates {
		if seen[name] {
			continue
		}
		v, present := fields[name]
		if !present || v.Unpopulated() {
			out = append(out, name)
			seen[name] = true
		} else {
			seen[name] = true
		}
	}
	return out
}

// ValidateTransition implements the algorithm in spec §4.3.
func (r *Registry) ValidateTransition(typeName, from, to string, fields map[string]types.FieldValue) TransitionResult {
	r.ensureLoaded()
	t := r.snap().types[typeName]
	if t == nil {
		return TransitionResult{Allowed: true, Enforcement: "", Missing: nil, Warnings: nil}
	}

	var tr *types.Transition
	for i := range t.Transitions {
		if t.Transitions[i].From == from && t.Transitions[i].To == to {
			tr = &t.Transitions[i]
			break
		}
	}
	if tr == nil {
		return TransitionResult{
			Allowed:  true,
			Warnings: []string{"transition not in standard workflow; use GetValidTransitions"},
		}
	}

	seen := make(map[string]bool)
	var missing []string
	missing = missingFields(fields, tr.RequiresFields, seen, missing)

	var requiredAtFields []string
	for _, f := range t.FieldsSchema {
		for _, at := range f.RequiredAt {
			if at == to {
				requiredAtFields = append(requiredAtFields, f.Name)
				break
			}
		}
	}
	missing = missingFields(fields, requiredAtFields, seen, missing)

	switch tr.Enforcement {
	case types.EnforcementHard:
		if len(missing) > 0 {
			return TransitionResult{Allowed: false, Enforcement: types.EnforcementHard, Missing: missing}
		}
	case types.EnforcementSoft:
		if len(missing) > 0 {
			return TransitionResult{
				Allowed:     true,
				Enforcement: types.EnforcementSoft,
				Missing:     missing,
				Warnings:    []string{fmt.Sprintf("missing recommended fields: %v", missing)},
			}
		}
	}

	return TransitionResult{Allowed: true, Enforcement: tr.Enforcement}
}

// GetValidTransitions enumerates the transitions reachable from (type,
// from) given fields, annotating each with its current missing-fields
// set.
func (r *Registry) GetValidTransitions(typeName, from string, fields map[string]types.FieldValue) []TransitionOption {
	r.ensureLoaded()
	t := r.snap().types[typeName]
	if t == nil {
		return nil
	}
	var out []TransitionOption
	for _, tr := range t.Transitions {
		if tr.From != from {
			continue
		}
		result := r.ValidateTransition(typeName, tr.From, tr.To, fields)
		out = append(out, TransitionOption{To: tr.To, Enforcement: tr.Enforcement, Missing: result.Missing})
	}
	return out
}

// ValidateFieldKeys enforces spec §3's "fields contains only keys
// declared in the type's schema" invariant: unknown keys are rejected,
// and a present key's value kind must match the schema's declared kind.
// A type with no template (legacy tolerance) accepts any fields.
func (r *Registry) ValidateFieldKeys(typeName string, fields map[string]types.FieldValue) error {
	if len(fields) == 0 {
		return nil
	}
	r.ensureLoaded()
	t := r.snap().types[typeName]
	if t == nil {
		return nil
	}
	schema := make(map[string]types.FieldKind, len(t.FieldsSchema))
	for _, f := range t.FieldsSchema {
		schema[f.Name] = f.Type
	}
	for name, v := range fields {
		kind, ok := schema[name]
		if !ok {
			return fmt.Errorf("field %q is not declared in type %q's schema", name, typeName)
		}
		if v.Kind != kind {
			return fmt.Errorf("field %q: expected %s value, got %s", name, kind, v.Kind)
		}
	}
	return nil
}

// ValidateFieldsForState returns the names of fields required at state
// (via FieldSchema.RequiredAt) that are unpopulated in fields.
func (r *Registry) ValidateFieldsForState(typeName, state string, fields map[string]types.FieldValue) []string {
	r.ensureLoaded()
	t := r.snap().types[typeName]
	if t == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []string
	var candidates []string
	for _, f := range t.FieldsSchema {
		for _, at := range f.RequiredAt {
			if at == state {
				candidates = append(candidates, f.Name)
				break
			}
		}
	}
	return missingFields(fields, candidates, seen, out)
}
