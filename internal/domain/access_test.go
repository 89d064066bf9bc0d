package domain_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/MrSnakeDoc/textsync/internal/domain"
)

func TestAccessibleSets(t *testing.T) {
	f := newFixture(t)
	r := domain.NewAccessResolver(f.store)

	tests := []struct {
		name      string
		principal domain.Principal
		expected  []string
	}{
		{name: "owner sees general and own", principal: f.alice, expected: []string{"anunturi", "birou", "cosmin"}},
		{name: "stranger sees only general", principal: f.bob, expected: []string{"anunturi", "birou"}},
		{name: "shared-with sees shared set", principal: f.carol, expected: []string{"anunturi", "birou", "cosmin"}},
		{name: "superuser sees all", principal: f.root, expected: []string{"anunturi", "birou", "aura", "cosmin"}},
		{name: "inactive sees nothing", principal: f.dave, expected: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sets, err := r.AccessibleSets(context.Background(), tt.principal)
			if err != nil {
				t.Fatalf("AccessibleSets() error = %v", err)
			}
			if got := setNames(sets); fmt.Sprint(got) != fmt.Sprint(tt.expected) {
				t.Errorf("AccessibleSets() = %v, want %v", got, tt.expected)
			}
		})
	}
}

// Every set is visible iff it is general, owned, shared, or the caller is a superuser.
func TestAccessibleSetsMatchesCanRead(t *testing.T) {
	f := newFixture(t)
	r := domain.NewAccessResolver(f.store)
	ctx := context.Background()

	all, _ := f.store.ListSets(ctx, domain.SetFilter{All: true})
	for _, p := range []domain.Principal{f.alice, f.bob, f.carol, f.root} {
		visible, err := r.AccessibleSets(ctx, p)
		if err != nil {
			t.Fatalf("AccessibleSets(%s): %v", p.Username, err)
		}
		got := make(map[int64]bool, len(visible))
		for _, s := range visible {
			got[s.ID] = true
		}
		for _, s := range all {
			want := expectedVisible(p, s)
			if got[s.ID] != want {
				t.Errorf("%s sees %s = %v, want %v", p.Username, s.Name, got[s.ID], want)
			}
			if r.CanRead(p, s) != want {
				t.Errorf("CanRead(%s, %s) = %v, want %v", p.Username, s.Name, !want, want)
			}
		}
	}
}

func expectedVisible(p domain.Principal, s domain.ShortcutSet) bool {
	if p.Superuser {
		return true
	}
	switch v := s.Visibility.(type) {
	case domain.General:
		return true
	case domain.Personal:
		if v.OwnerID == p.ID {
			return true
		}
		for _, id := range v.SharedWith {
			if id == p.ID {
				return true
			}
		}
	}
	return false
}

func TestCanReadMissingVisibilityFailsClosed(t *testing.T) {
	r := domain.NewAccessResolver(nil)
	p := domain.Principal{ID: 1, Active: true}
	if r.CanRead(p, domain.ShortcutSet{Name: "broken"}) {
		t.Error("set without visibility should not be readable")
	}
	if (domain.ShortcutSet{}).Kind() != domain.SetPersonal {
		t.Error("set without visibility should report personal kind")
	}
}
