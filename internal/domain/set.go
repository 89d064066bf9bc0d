package domain

import (
	"fmt"
	"slices"
	"time"
)

// SetKind is the wire name of a set's visibility mode.
type SetKind string

const (
	SetGeneral  SetKind = "general"
	SetPersonal SetKind = "personal"
)

// ParseSetKind validates a stored or configured set kind.
func ParseSetKind(s string) (SetKind, error) {
	switch SetKind(s) {
	case SetGeneral, SetPersonal:
		return SetKind(s), nil
	default:
		return "", fmt.Errorf("unknown set type %q", s)
	}
}

// Visibility is a closed union: General or Personal.
// Only this package can implement it.
type Visibility interface {
	Kind() SetKind
	allows(p Principal) bool
}

// General sets are readable by every active principal.
type General struct{}

func (General) Kind() SetKind         { return SetGeneral }
func (General) allows(Principal) bool { return true }

// Personal sets are readable by their owner and the principals they are
// shared with. OwnerID is zero when the set has no owner.
type Personal struct {
	OwnerID    int64
	SharedWith []int64
}

func (Personal) Kind() SetKind { return SetPersonal }

func (v Personal) allows(p Principal) bool {
	if v.OwnerID != 0 && v.OwnerID == p.ID {
		return true
	}
	return slices.Contains(v.SharedWith, p.ID)
}

// ShortcutSet is a named collection of shortcuts.
type ShortcutSet struct {
	ID          int64
	Name        string
	Description string
	Visibility  Visibility
	CreatedAt   time.Time
}

// Kind returns the set's visibility kind, defaulting to personal when the
// visibility is missing so that a malformed record never becomes public.
func (s ShortcutSet) Kind() SetKind {
	if s.Visibility == nil {
		return SetPersonal
	}
	return s.Visibility.Kind()
}

// Ref returns the lightweight membership reference for this set.
func (s ShortcutSet) Ref() SetRef {
	return SetRef{ID: s.ID, Name: s.Name, Kind: s.Kind()}
}

// SetRef identifies a set a shortcut belongs to.
type SetRef struct {
	ID   int64
	Name string
	Kind SetKind
}
