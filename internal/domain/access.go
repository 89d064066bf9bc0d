package domain

import (
	"context"
	"fmt"
	"sort"
)

// AccessResolver is the single authority on which sets a principal may read.
type AccessResolver struct {
	catalog CatalogStore
}

// NewAccessResolver creates a resolver over the given catalog.
func NewAccessResolver(catalog CatalogStore) *AccessResolver {
	return &AccessResolver{catalog: catalog}
}

// CanRead reports whether p may read s.
//
// Superusers read everything. Everyone else reads general sets, personal
// sets they own and personal sets shared with them. Inactive principals
// read nothing.
func (r *AccessResolver) CanRead(p Principal, s ShortcutSet) bool {
	if !p.Active {
		return false
	}
	if p.Superuser {
		return true
	}
	if s.Visibility == nil {
		return false
	}
	return s.Visibility.allows(p)
}

// AccessibleSets returns every set p may read, deduplicated and ordered by
// (kind, name).
func (r *AccessResolver) AccessibleSets(ctx context.Context, p Principal) ([]ShortcutSet, error) {
	if !p.Active {
		return []ShortcutSet{}, nil
	}

	filter := SetFilter{IncludeGeneral: true, MemberID: p.ID}
	if p.Superuser {
		filter = SetFilter{All: true}
	}

	candidates, err := r.catalog.ListSets(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list sets: %w", err)
	}

	// The store narrows the candidates; CanRead decides.
	seen := make(map[int64]bool, len(candidates))
	sets := make([]ShortcutSet, 0, len(candidates))
	for _, s := range candidates {
		if seen[s.ID] || !r.CanRead(p, s) {
			continue
		}
		seen[s.ID] = true
		sets = append(sets, s)
	}

	sort.SliceStable(sets, func(i, j int) bool {
		if sets[i].Kind() != sets[j].Kind() {
			return sets[i].Kind() < sets[j].Kind()
		}
		return sets[i].Name < sets[j].Name
	})
	return sets, nil
}
