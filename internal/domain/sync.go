package domain

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// SyncRequest carries the optional filters of an incremental pull.
// A nil or empty SetNames means "every accessible set".
type SyncRequest struct {
	SetNames     []string
	UpdatedAfter *time.Time
}

// SyncQueryEngine computes the minimal shortcut list for a pull.
type SyncQueryEngine struct {
	access  *AccessResolver
	catalog CatalogStore
}

// NewSyncQueryEngine creates an engine. Visibility always goes through access.
func NewSyncQueryEngine(access *AccessResolver, catalog CatalogStore) *SyncQueryEngine {
	return &SyncQueryEngine{access: access, catalog: catalog}
}

// FetchShortcuts returns the shortcuts p may read that match req, ordered by
// key. Naming any set p cannot read yields an empty result rather than an
// error, so callers cannot discover which sets exist.
func (e *SyncQueryEngine) FetchShortcuts(ctx context.Context, p Principal, req SyncRequest) ([]Shortcut, error) {
	accessible, err := e.access.AccessibleSets(ctx, p)
	if err != nil {
		return nil, err
	}

	scope, ok := resolveScope(accessible, req.SetNames)
	if !ok || len(scope) == 0 {
		return []Shortcut{}, nil
	}

	ids := make([]int64, 0, len(scope))
	for _, s := range scope {
		ids = append(ids, s.ID)
	}

	found, err := e.catalog.ListShortcuts(ctx, ShortcutFilter{
		SetIDs:       ids,
		UpdatedAfter: req.UpdatedAfter,
	})
	if err != nil {
		return nil, fmt.Errorf("list shortcuts: %w", err)
	}

	visible := make(map[int64]bool, len(accessible))
	for _, s := range accessible {
		visible[s.ID] = true
	}
	inScope := make(map[int64]bool, len(scope))
	for _, s := range scope {
		inScope[s.ID] = true
	}

	seen := make(map[int64]bool, len(found))
	out := make([]Shortcut, 0, len(found))
	for _, sc := range found {
		if seen[sc.ID] {
			continue
		}
		if req.UpdatedAfter != nil && !sc.UpdatedAt.After(*req.UpdatedAfter) {
			continue
		}

		// Only report memberships the caller can see.
		refs := make([]SetRef, 0, len(sc.Sets))
		matched := false
		for _, ref := range sc.Sets {
			if !visible[ref.ID] {
				continue
			}
			refs = append(refs, ref)
			if inScope[ref.ID] {
				matched = true
			}
		}
		if !matched {
			continue
		}

		seen[sc.ID] = true
		sc.Sets = refs
		out = append(out, sc)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Key != out[j].Key {
			return out[i].Key < out[j].Key
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// resolveScope maps requested names onto accessible sets. ok is false when
// any requested name is not accessible.
func resolveScope(accessible []ShortcutSet, names []string) ([]ShortcutSet, bool) {
	if len(names) == 0 {
		return accessible, true
	}

	byName := make(map[string]ShortcutSet, len(accessible))
	for _, s := range accessible {
		byName[s.Name] = s
	}

	scope := make([]ShortcutSet, 0, len(names))
	picked := make(map[int64]bool, len(names))
	for _, name := range names {
		s, ok := byName[name]
		if !ok {
			return nil, false
		}
		if !picked[s.ID] {
			picked[s.ID] = true
			scope = append(scope, s)
		}
	}
	return scope, true
}
