package domain_test

import (
	"testing"
	"time"

	"github.com/MrSnakeDoc/textsync/internal/domain"
	"github.com/MrSnakeDoc/textsync/internal/store/memory"
)

type fixture struct {
	store *memory.Store

	alice domain.Principal // owns "cosmin"
	bob   domain.Principal // no ownership, nothing shared
	carol domain.Principal // "cosmin" is shared with her
	root  domain.Principal // superuser
	dave  domain.Principal // inactive

	birou  domain.ShortcutSet // general
	cosmin domain.ShortcutSet // personal, alice
	empty  domain.ShortcutSet // general, ownerless, nothing shared
	aura   domain.ShortcutSet // personal, root

	t0 time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	s := memory.NewStore()
	f := &fixture{store: s, t0: time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)}

	f.alice = s.AddPrincipal(domain.Principal{Username: "alice", Email: "alice@example.com", Active: true}, "alice-pw")
	f.bob = s.AddPrincipal(domain.Principal{Username: "bob", Active: true}, "bob-pw")
	f.carol = s.AddPrincipal(domain.Principal{Username: "carol", Active: true}, "carol-pw")
	f.root = s.AddPrincipal(domain.Principal{Username: "root", Active: true, Superuser: true}, "root-pw")
	f.dave = s.AddPrincipal(domain.Principal{Username: "dave", Active: false}, "dave-pw")

	f.birou = s.AddSet(domain.ShortcutSet{Name: "birou", Visibility: domain.General{}})
	f.cosmin = s.AddSet(domain.ShortcutSet{Name: "cosmin", Visibility: domain.Personal{OwnerID: f.alice.ID, SharedWith: []int64{f.carol.ID}}})
	f.empty = s.AddSet(domain.ShortcutSet{Name: "anunturi", Visibility: domain.General{}})
	f.aura = s.AddSet(domain.ShortcutSet{Name: "aura", Visibility: domain.Personal{OwnerID: f.root.ID}})

	at := func(d time.Duration) time.Time { return f.t0.Add(d) }
	s.AddShortcut(domain.Shortcut{Key: "sal", Value: "Salut!", UpdatedAt: at(1 * time.Minute)}, f.birou.ID)
	s.AddShortcut(domain.Shortcut{Key: "adr", Value: "Str. Lunga 1", HTMLValue: "<b>Str. Lunga 1</b>", UpdatedAt: at(2 * time.Minute)}, f.birou.ID, f.cosmin.ID)
	s.AddShortcut(domain.Shortcut{Key: "sig", Value: "Cosmin", UpdatedAt: at(3 * time.Minute)}, f.cosmin.ID)
	s.AddShortcut(domain.Shortcut{Key: "sal", Value: "Salutare, Aura", UpdatedAt: at(4 * time.Minute)}, f.aura.ID)
	s.AddShortcut(domain.Shortcut{Key: "mtg", Value: "Sedinta la 10", UpdatedAt: at(5 * time.Minute)}, f.empty.ID)

	return f
}

func setNames(sets []domain.ShortcutSet) []string {
	out := make([]string, 0, len(sets))
	for _, s := range sets {
		out = append(out, s.Name)
	}
	return out
}

func keys(shortcuts []domain.Shortcut) []string {
	out := make([]string, 0, len(shortcuts))
	for _, s := range shortcuts {
		out = append(out, s.Key)
	}
	return out
}
