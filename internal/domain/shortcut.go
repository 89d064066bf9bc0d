package domain

import "time"

// ContentKind tells clients which value of a shortcut to render.
type ContentKind string

const (
	ContentPlain ContentKind = "plain"
	ContentRich  ContentKind = "rich"
)

// Shortcut is a single expansion entry.
//
// Key is not globally unique: the same trigger may exist in several sets.
type Shortcut struct {
	// ─────────────────────────────
	// Identity
	// ─────────────────────────────

	ID  int64
	Key string

	// ─────────────────────────────
	// Content
	// ─────────────────────────────

	// Kind is advisory. Storage is permissive and clients render
	// whichever value is populated.
	Kind      ContentKind
	Value     string
	HTMLValue string

	// ─────────────────────────────
	// Membership & provenance
	// ─────────────────────────────

	Sets      []SetRef
	UpdatedAt time.Time
	UpdatedBy int64 // zero when unknown
}

// SetNames returns the names of the sets in membership order.
func (s Shortcut) SetNames() []string {
	names := make([]string, 0, len(s.Sets))
	for _, ref := range s.Sets {
		names = append(names, ref.Name)
	}
	return names
}

// SetKinds returns the kinds of the sets in membership order.
func (s Shortcut) SetKinds() []SetKind {
	kinds := make([]SetKind, 0, len(s.Sets))
	for _, ref := range s.Sets {
		kinds = append(kinds, ref.Kind)
	}
	return kinds
}

// InferContentKind picks rich when markup is present.
func InferContentKind(value, htmlValue string) ContentKind {
	if htmlValue != "" {
		return ContentRich
	}
	return ContentPlain
}
