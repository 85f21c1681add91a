// Package types defines the core domain entities of the issue tracker:
// issues, dependencies, events, comments, labels, and the tagged field
// value variant used for per-type custom fields.
package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// Category is the coarse lifecycle bucket every per-type state maps into.
type Category string

const (
	CategoryOpen Category = "open"
	CategoryWIP  Category = "wip"
	CategoryDone Category = "done"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryOpen, CategoryWIP, CategoryDone:
		return true
	}
	return false
}

// Issue is the central domain entity.
type Issue struct {
	ID             string
	Title          string
	Status         string
	StatusCategory Category
	Priority       int
	Type           string
	ParentID       *string
	Assignee       string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ClosedAt       *time.Time
	Description    string
	Notes          string
	Fields         map[string]FieldValue

	// Derived, computed on read.
	Labels    []string
	Blocks    []string
	BlockedBy []string
	IsReady   bool
	Children  []string
}

// Clone returns a deep copy sufficient for before/after comparisons in
// tests and for atomic-update rollback checks.
func (i *Issue) Clone() *Issue {
	if i == nil {
		return nil
	}
	out := *i
	if i.ParentID != nil {
		p := *i.ParentID
		out.ParentID = &p
	}
	if i.ClosedAt != nil {
		c := *i.ClosedAt
		out.ClosedAt = &c
	}
	out.Fields = make(map[string]FieldValue, len(i.Fields))
	for k, v := range i.Fields {
		out.Fields[k] = v
	}
	out.Labels = append([]string(nil), i.Labels...)
	out.Blocks = append([]string(nil), i.Blocks...)
	out.BlockedBy = append([]string(nil), i.BlockedBy...)
	out.Children = append([]string(nil), i.Children...)
	return &out
}

// FieldKind is the tag of a FieldValue variant.
type FieldKind string

const (
	FieldText FieldKind = "text"
	FieldInt  FieldKind = "int"
	FieldDate FieldKind = "date"
	FieldBool FieldKind = "bool"
	FieldList FieldKind = "list"
	FieldEnum FieldKind = "enum"
)

// FieldValue is a tagged variant over the small set of primitive kinds a
// custom field schema may declare. Exactly one of the typed accessors is
// meaningful for a given Kind; Storage serializes the whole value as one
// JSON object so round-tripping preserves the tag.
type FieldValue struct {
	Kind FieldKind
	Str  string   // text, date (ISO-8601), enum symbol
	Int  int64    // int
	Bool bool     // bool
	List []string // list
}

func NewText(s string) FieldValue { return FieldValue{Kind: FieldText, Str: s} }
func NewInt(v int64) FieldValue   { return FieldValue{Kind: FieldInt, Int: v} }
func NewDate(s string) FieldValue { return FieldValue{Kind: FieldDate, Str: s} }
func NewBool(b bool) FieldValue   { return FieldValue{Kind: FieldBool, Bool: b} }
func NewList(l []string) FieldValue {
	return FieldValue{Kind: FieldList, List: append([]string(nil), l...)}
}
func NewEnum(s string) FieldValue { return FieldValue{Kind: FieldEnum, Str: s} }

// Unpopulated reports whether this value counts as "missing" for required
// field checks per the transition validation algorithm: absent is handled
// by the caller (key missing from the map); here we judge a present value.
// A trimmed-empty string is unpopulated; 0, false, and an empty list are
// populated.
func (v FieldValue) Unpopulated() bool {
	switch v.Kind {
	case FieldText, FieldDate, FieldEnum:
		return trimmedEmpty(v.Str)
	default:
		return false
	}
}

func trimmedEmpty(s string) bool {
	for _, r := range s {
		if r != ' ' && r != '\t' && r != '\n' && r != '\r' {
			return false
		}
	}
	return true
}

type jsonFieldValue struct {
	Kind FieldKind `json:"kind"`
	Str  string    `json:"str,omitempty"`
	Int  int64     `json:"int,omitempty"`
	Bool bool      `json:"bool,omitempty"`
	List []string  `json:"list,omitempty"`
}

func (v FieldValue) MarshalJSON() ([]byte, error) {
	return json.Marshal(jsonFieldValue{Kind: v.Kind, Str: v.Str, Int: v.Int, Bool: v.Bool, List: v.List})
}

func (v *FieldValue) UnmarshalJSON(data []byte) error {
	var j jsonFieldValue
	if err := json.Unmarshal(data, &j); err != nil {
		return fmt.Errorf("unmarshal field value: %w", err)
	}
	*v = FieldValue{Kind: j.Kind, Str: j.Str, Int: j.Int, Bool: j.Bool, List: j.List}
	return nil
}

// Dependency is a directed "A depends on B" edge (A is blocked by B).
type Dependency struct {
	FromID    string
	ToID      string
	Kind      string
	CreatedAt time.Time
}

// EventType enumerates the append-only event log entry kinds.
type EventType string

const (
	EventCreated            EventType = "created"
	EventStatusChanged      EventType = "status_changed"
	EventClaimed            EventType = "claimed"
	EventReleased           EventType = "released"
	EventTransitionWarning  EventType = "transition_warning"
	EventCommentAdded       EventType = "comment_added"
	EventLabelAdded         EventType = "label_added"
	EventDependencyAdded    EventType = "dependency_added"
	EventDependencyRemoved  EventType = "dependency_removed"
	EventFieldsUpdated      EventType = "fields_updated"
)

// Event is an append-only audit log entry.
type Event struct {
	ID        int64
	IssueID   string
	EventType EventType
	Actor     string
	OldValue  string
	NewValue  string
	Comment   string
	CreatedAt time.Time
}

// Comment is a free-text remark attached to an issue.
type Comment struct {
	ID        int64
	IssueID   string
	Author    string
	Text      string
	CreatedAt time.Time
}

// Label is a `(issue_id, label)` tag; unique per pair.
type Label struct {
	IssueID string
	Label   string
}
