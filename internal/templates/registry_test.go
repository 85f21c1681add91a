package templates_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/agentflow/beads/internal/templates"
	"github.com/agentflow/beads/internal/types"
)

func TestBuiltinPacksLoadAtLeastNineTypes(t *testing.T) {
	r := templates.New("")
	r.Load()
	require.GreaterOrEqual(t, len(r.ListTypes()), 9)
	require.Contains(t, r.ListTypes(), "bug")
	require.Contains(t, r.ListTypes(), "task")
}

func TestGetInitialStateFallsBackForUnknownType(t *testing.T) {
	r := templates.New("")
	r.Load()
	require.Equal(t, "open", r.GetInitialState("not-a-real-type"))
	require.Equal(t, "triage", r.GetInitialState("bug"))
}

func TestGetCategoryLegacyHeuristic(t *testing.T) {
	r := templates.New("")
	r.Load()

	cat, known := r.GetCategory("not-a-real-type", "in_progress")
	require.False(t, known)
	require.Equal(t, types.CategoryWIP, cat)

	cat, known = r.GetCategory("not-a-real-type", "wont_fix")
	require.False(t, known)
	require.Equal(t, types.CategoryDone, cat)

	cat, known = r.GetCategory("bug", "triage")
	require.True(t, known)
	require.Equal(t, types.CategoryOpen, cat)
}

func TestValidateTransitionUndefinedIsSoftWarning(t *testing.T) {
	r := templates.New("")
	r.Load()

	result := r.ValidateTransition("bug", "triage", "closed", nil)
	require.True(t, result.Allowed)
	require.Len(t, result.Warnings, 1)
}

func TestValidateTransitionHardBlocksOnMissingField(t *testing.T) {
	r := templates.New("")
	r.Load()

	result := r.ValidateTransition("bug", "verifying", "closed", nil)
	require.False(t, result.Allowed)
	require.Equal(t, types.EnforcementHard, result.Enforcement)
	require.Equal(t, []string{"fix_verification"}, result.Missing)
}

func TestValidateTransitionHardAllowsWithField(t *testing.T) {
	r := templates.New("")
	r.Load()

	fields := map[string]types.FieldValue{"fix_verification": types.NewText("checked in staging")}
	result := r.ValidateTransition("bug", "verifying", "closed", fields)
	require.True(t, result.Allowed)
	require.Empty(t, result.Missing)
}

func TestValidateTransitionTreatsEmptyStringAsUnpopulated(t *testing.T) {
	r := templates.New("")
	r.Load()

	fields := map[string]types.FieldValue{"fix_verification": types.NewText("   ")}
	result := r.ValidateTransition("bug", "verifying", "closed", fields)
	require.False(t, result.Allowed)
	require.Equal(t, []string{"fix_verification"}, result.Missing)
}

func TestUnknownTypeHasNoTemplateIsLegacyTolerant(t *testing.T) {
	r := templates.New("")
	r.Load()

	result := r.ValidateTransition("not-a-real-type", "anything", "else", nil)
	require.True(t, result.Allowed)
	require.Empty(t, result.Warnings)
}

func TestGetValidTransitionsEnumeratesFromState(t *testing.T) {
	r := templates.New("")
	r.Load()

	options := r.GetValidTransitions("bug", "verifying", nil)
	require.Len(t, options, 2)
	var targets []string
	for _, o := range options {
		targets = append(targets, o.To)
	}
	require.ElementsMatch(t, []string{"closed", "fixing"}, targets)
}

func TestReloadIsIdempotent(t *testing.T) {
	r := templates.New("")
	r.Load()
	first := r.ListTypes()
	r.Reload()
	r.Reload()
	second := r.ListTypes()
	require.Equal(t, first, second)
}

func TestProjectLocalOverrideWinsOverBuiltin(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "templates"), 0o755))

	override := types.TypeTemplate{
		Type:         "task",
		DisplayName:  "Task (custom)",
		Pack:         "custom",
		States:       []types.State{{Name: "backlog", Category: types.CategoryOpen}, {Name: "done", Category: types.CategoryDone}},
		InitialState: "backlog",
		Transitions: []types.Transition{
			{From: "backlog", To: "done", Enforcement: types.EnforcementSoft},
		},
	}
	data, err := json.Marshal(override)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "templates", "task.json"), data, 0o644))

	r := templates.New(dir)
	r.Load()
	require.Equal(t, "backlog", r.GetInitialState("task"))
}

func TestEmptyCategoryExpansionIsEmptyNotError(t *testing.T) {
	r := templates.New("")
	r.Load()
	// "wip" has no memoized union helper on the registry itself, but the
	// open/done sets must never be nil for a loaded registry.
	require.NotNil(t, r.OpenStates())
	require.NotNil(t, r.DoneStates())
}

func TestValidateTemplateRejectsUnknownInitialState(t *testing.T) {
	tpl := &types.TypeTemplate{
		Type:         "widget",
		States:       []types.State{{Name: "open", Category: types.CategoryOpen}},
		InitialState: "nonexistent",
	}
	err := templates.ValidateTemplate(tpl)
	require.Error(t, err)
}

func TestValidateTemplateRejectsBadTypeName(t *testing.T) {
	tpl := &types.TypeTemplate{
		Type:         "Bad-Name!",
		States:       []types.State{{Name: "open", Category: types.CategoryOpen}},
		InitialState: "open",
	}
	err := templates.ValidateTemplate(tpl)
	require.Error(t, err)
}
