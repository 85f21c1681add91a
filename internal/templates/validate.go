package templates

import (
	"fmt"
	"regexp"

	"github.com/agentflow/beads/internal/types"
)

const (
	maxStates      = 50
	maxTransitions = 200
	maxFields      = 50
	maxTypesPerPack = 20
	maxPackFileSize = 512 * 1024
)

var typeNameRE = regexp.MustCompile(`^[a-z][a-z0-9_]{0,63}$`)

// ValidateTemplate enforces the consistency rules from spec §3
// (TypeTemplate): initial_state membership, transition endpoint
// membership, requires_fields/required_at membership, and size caps.
func ValidateTemplate(t *types.TypeTemplate) error {
	if !typeNameRE.MatchString(t.Type) {
		return fmt.Errorf("template %q: type name must match %s", t.Type, typeNameRE.String())
	}
	if len(t.States) == 0 {
		return fmt.Errorf("template %q: must declare at least one state", t.Type)
	}
	if len(t.States) > maxStates {
		return fmt.Errorf("template %q: %d states exceeds cap of %d", t.Type, len(t.States), maxStates)
	}
	if len(t.Transitions) > maxTransitions {
		return fmt.Errorf("template %q: %d transitions exceeds cap of %d", t.Type, len(t.Transitions), maxTransitions)
	}
	if len(t.FieldsSchema) > maxFields {
		return fmt.Errorf("template %q: %d fields exceeds cap of %d", t.Type, len(t.FieldsSchema), maxFields)
	}

	stateSet := make(map[string]bool, len(t.States))
	for _, s := range t.States {
		if s.Name == "" {
			return fmt.Errorf("template %q: state with empty name", t.Type)
		}
		if !s.Category.Valid() {
			return fmt.Errorf("template %q: state %q has invalid category %q", t.Type, s.Name, s.Category)
		}
		if stateSet[s.Name] {
			return fmt.Errorf("template %q: duplicate state %q", t.Type, s.Name)
		}
		stateSet[s.Name] = true
	}

	if t.InitialState == "" || !stateSet[t.InitialState] {
		return fmt.Errorf("template %q: initial_state %q is not a declared state", t.Type, t.InitialState)
	}

	fieldSet := make(map[string]bool, len(t.FieldsSchema))
	for _, f := range t.FieldsSchema {
		if f.Name == "" {
			return fmt.Errorf("template %q: field with empty name", t.Type)
		}
		if fieldSet[f.Name] {
			return fmt.Errorf("template %q: duplicate field %q", t.Type, f.Name)
		}
		fieldSet[f.Name] = true
		for _, at := range f.RequiredAt {
			if !stateSet[at] {
				return fmt.Errorf("template %q: field %q required_at unknown state %q", t.Type, f.Name, at)
			}
		}
	}

	for _, tr := range t.Transitions {
		if !stateSet[tr.From] {
			return fmt.Errorf("template %q: transition from unknown state %q", t.Type, tr.From)
		}
		if !stateSet[tr.To] {
			return fmt.Errorf("template %q: transition to unknown state %q", t.Type, tr.To)
		}
		if tr.Enforcement != types.EnforcementHard && tr.Enforcement != types.EnforcementSoft {
			return fmt.Errorf("template %q: transition %s->%s has invalid enforcement %q", t.Type, tr.From, tr.To, tr.Enforcement)
		}
		for _, rf := range tr.RequiresFields {
			if !fieldSet[rf] {
				return fmt.Errorf("template %q: transition %s->%s requires unknown field %q", t.Type, tr.From, tr.To, rf)
			}
		}
	}

	return nil
}

// ValidatePack enforces the WorkflowPack size caps from spec §3.
func ValidatePack(p *types.WorkflowPack, rawSize int) error {
	if p.Name == "" {
		return fmt.Errorf("pack: missing name")
	}
	if rawSize > maxPackFileSize {
		return fmt.Errorf("pack %q: file size %d exceeds cap of %d bytes", p.Name, rawSize, maxPackFileSize)
	}
	if len(p.Types) > maxTypesPerPack {
		return fmt.Errorf("pack %q: %d types exceeds cap of %d", p.Name, len(p.Types), maxTypesPerPack)
	}
	for name, t := range p.Types {
		if t.Type != name {
			return fmt.Errorf("pack %q: type key %q does not match template.type %q", p.Name, name, t.Type)
		}
		if err := ValidateTemplate(t); err != nil {
			return err
		}
	}
	return nil
}
