package types

// State is one named phase of a type's workflow.
type State struct {
	Name     string   `json:"name"`
	Category Category `json:"category"`
}

// Enforcement governs whether a transition's missing required fields
// block the transition (hard) or merely warn (soft).
type Enforcement string

const (
	EnforcementHard Enforcement = "hard"
	EnforcementSoft Enforcement = "soft"
)

// Transition is one allowed `from -> to` move within a type's workflow.
type Transition struct {
	From           string      `json:"from"`
	To             string      `json:"to"`
	Enforcement    Enforcement `json:"enforcement"`
	RequiresFields []string    `json:"requires_fields,omitempty"`
}

// FieldSchema declares one custom field a type's issues may carry.
type FieldSchema struct {
	Name        string    `json:"name"`
	Type        FieldKind `json:"type"`
	Description string    `json:"description,omitempty"`
	Options     []string  `json:"options,omitempty"`
	Default     string    `json:"default,omitempty"`
	RequiredAt  []string  `json:"required_at,omitempty"`
}

// TypeTemplate is an immutable, parsed configuration for one issue type.
type TypeTemplate struct {
	Type             string        `json:"type"`
	DisplayName      string        `json:"display_name"`
	Description      string        `json:"description,omitempty"`
	Pack             string        `json:"pack"`
	States           []State       `json:"states"`
	InitialState     string        `json:"initial_state"`
	Transitions      []Transition  `json:"transitions"`
	FieldsSchema     []FieldSchema `json:"fields_schema,omitempty"`
	SuggestedChildren []string     `json:"suggested_children,omitempty"`
	SuggestedLabels   []string     `json:"suggested_labels,omitempty"`
}

// WorkflowPack bundles related type templates plus documentation.
type WorkflowPack struct {
	Name                   string                  `json:"name"`
	Version                string                  `json:"version"`
	DisplayName            string                  `json:"display_name"`
	Description            string                  `json:"description,omitempty"`
	Types                  map[string]*TypeTemplate `json:"types"`
	RequiresPacks          []string                `json:"requires_packs,omitempty"`
	Relationships          []string                `json:"relationships,omitempty"`
	CrossPackRelationships []string                `json:"cross_pack_relationships,omitempty"`
	Guide                  string                  `json:"guide,omitempty"`
}

// Mode is the dashboard-process lifecycle mode.
type Mode string

const (
	ModeEthereal Mode = "ethereal"
	ModeServer   Mode = "server"
)

// ProjectConfig is the persisted `config.json` contents.
type ProjectConfig struct {
	Prefix         string   `json:"prefix"`
	Version        int      `json:"version"`
	EnabledPacks   []string `json:"enabled_packs,omitempty"`
	Mode           Mode     `json:"mode,omitempty"`
	WorkflowStates []string `json:"workflow_states,omitempty"`
}

// DefaultEnabledPacks is the fallback pack list when config.json omits
// enabled_packs.
func DefaultEnabledPacks() []string { return []string{"core", "planning"} }
