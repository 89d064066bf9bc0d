package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/textsync/internal/domain"
)

// Target receives the seed in a single transaction. The SQLite record store
// implements it.
type Target = domain.CatalogAdmin

// Result counts what an Apply call touched.
type Result struct {
	Users            int
	Sets             int
	Shortcuts        int
	ShortcutsChanged int
	ShortcutsRemoved int
}

// Applier writes a normalized seed into a Target. Applying the same file
// twice changes nothing the second time.
type Applier struct {
	target Target
	now    func() time.Time
}

// NewApplier creates an applier. A nil now defaults to time.Now.
func NewApplier(target Target, now func() time.Time) *Applier {
	if now == nil {
		now = time.Now
	}
	return &Applier{target: target, now: now}
}

// Apply normalizes f and upserts users, then sets, then shortcuts, and finally
// drops shortcuts of the file's sets that the file no longer lists. All of it
// commits together or not at all.
func (a *Applier) Apply(ctx context.Context, f File) (Result, error) {
	f, err := Normalize(f)
	if err != nil {
		return Result{}, err
	}
	now := a.now().UTC().Truncate(time.Millisecond)

	var res Result
	err = a.target.WithinTx(ctx, func(w domain.CatalogWriter) error {
		res = Result{}
		return apply(ctx, w, f, now, &res)
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

func apply(ctx context.Context, w domain.CatalogWriter, f File, now time.Time, res *Result) error {
	userIDs := make(map[string]int64, len(f.Users))
	for _, u := range f.Users {
		active := true
		if u.Active != nil {
			active = *u.Active
		}
		id, err := w.UpsertPrincipal(ctx, domain.Principal{
			Username:  u.Username,
			Email:     u.Email,
			Active:    active,
			Superuser: u.Superuser,
		}, u.Password, u.PasswordHash, now)
		if err != nil {
			return fmt.Errorf("apply user %q: %w", u.Username, err)
		}
		userIDs[u.Username] = id
		res.Users++
	}

	setIDs := make(map[string]int64, len(f.Sets))
	allSets := make([]int64, 0, len(f.Sets))
	for _, s := range f.Sets {
		set := domain.ShortcutSet{Name: s.Name, Description: s.Description}
		if domain.SetKind(s.Type) == domain.SetPersonal {
			shared := make([]int64, 0, len(s.SharedWith))
			for _, u := range s.SharedWith {
				shared = append(shared, userIDs[u])
			}
			set.Visibility = domain.Personal{OwnerID: userIDs[s.Owner], SharedWith: shared}
		} else {
			set.Visibility = domain.General{}
		}

		id, err := w.UpsertSet(ctx, set, now)
		if err != nil {
			return fmt.Errorf("apply set %q: %w", s.Name, err)
		}
		setIDs[s.Name] = id
		allSets = append(allSets, id)
		res.Sets++
	}

	kept := make([]int64, 0, len(f.Shortcuts))
	for _, sc := range f.Shortcuts {
		ids := make([]int64, 0, len(sc.Sets))
		for _, name := range sc.Sets {
			ids = append(ids, setIDs[name])
		}
		id, changed, err := w.UpsertShortcut(ctx, domain.Shortcut{
			Key:       sc.Key,
			Kind:      domain.InferContentKind(sc.Value, sc.HTMLValue),
			Value:     sc.Value,
			HTMLValue: sc.HTMLValue,
			UpdatedBy: userIDs[sc.UpdatedBy],
		}, ids, now)
		if err != nil {
			return fmt.Errorf("apply shortcut %q: %w", sc.Key, err)
		}
		kept = append(kept, id)
		res.Shortcuts++
		if changed {
			res.ShortcutsChanged++
		}
	}

	removed, err := w.PruneShortcuts(ctx, allSets, kept, now)
	if err != nil {
		return fmt.Errorf("prune shortcuts: %w", err)
	}
	res.ShortcutsRemoved = int(removed)
	return nil
}
