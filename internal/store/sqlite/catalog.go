package sqlite

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/MrSnakeDoc/textsync/internal/domain"
)

// ListSets returns the sets selected by filter, ordered by (set_type, name).
func (d *DB) ListSets(ctx context.Context, filter domain.SetFilter) ([]domain.ShortcutSet, error) {
	rows, err := d.sql.QueryContext(ctx, `
SELECT s.id, s.name, s.set_type, COALESCE(s.owner_id, 0), s.description, s.created_at
FROM shortcut_sets s
WHERE ?1 = 1
   OR (?2 = 1 AND s.set_type = 'general')
   OR (?3 != 0 AND s.set_type = 'personal' AND (
        s.owner_id = ?3
        OR EXISTS (SELECT 1 FROM shortcut_set_shares sh WHERE sh.set_id = s.id AND sh.principal_id = ?3)))
ORDER BY s.set_type ASC, s.name ASC
`, boolToInt(filter.All), boolToInt(filter.IncludeGeneral), filter.MemberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type row struct {
		set     domain.ShortcutSet
		kind    domain.SetKind
		ownerID int64
	}
	var raw []row
	var personalIDs []int64
	for rows.Next() {
		var r row
		var kind string
		var created int64
		if err := rows.Scan(&r.set.ID, &r.set.Name, &kind, &r.ownerID, &r.set.Description, &created); err != nil {
			return nil, err
		}
		k, err := domain.ParseSetKind(kind)
		if err != nil {
			return nil, fmt.Errorf("set %q: %w", r.set.Name, err)
		}
		r.kind = k
		r.set.CreatedAt = fromMillis(created)
		if k == domain.SetPersonal {
			personalIDs = append(personalIDs, r.set.ID)
		}
		raw = append(raw, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	shares, err := d.sharesFor(ctx, personalIDs)
	if err != nil {
		return nil, err
	}

	out := make([]domain.ShortcutSet, 0, len(raw))
	for _, r := range raw {
		s := r.set
		if r.kind == domain.SetGeneral {
			s.Visibility = domain.General{}
		} else {
			s.Visibility = domain.Personal{OwnerID: r.ownerID, SharedWith: shares[s.ID]}
		}
		out = append(out, s)
	}
	return out, nil
}

func (d *DB) sharesFor(ctx context.Context, setIDs []int64) (map[int64][]int64, error) {
	out := make(map[int64][]int64, len(setIDs))
	if len(setIDs) == 0 {
		return out, nil
	}
	rows, err := d.sql.QueryContext(ctx, `
SELECT set_id, principal_id FROM shortcut_set_shares
WHERE set_id IN (`+placeholders(len(setIDs))+`)
ORDER BY set_id, principal_id
`, int64Args(setIDs)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var setID, principalID int64
		if err := rows.Scan(&setID, &principalID); err != nil {
			return nil, err
		}
		out[setID] = append(out[setID], principalID)
	}
	return out, rows.Err()
}

// ListShortcuts returns shortcuts that belong to at least one of filter.SetIDs,
// optionally modified strictly after filter.UpdatedAfter, ordered by key.
// Each shortcut appears once and carries all of its memberships.
func (d *DB) ListShortcuts(ctx context.Context, filter domain.ShortcutFilter) ([]domain.Shortcut, error) {
	if len(filter.SetIDs) == 0 {
		return []domain.Shortcut{}, nil
	}

	where, args := shortcutWhere(filter)

	rows, err := d.sql.QueryContext(ctx, `
SELECT sc.id, sc.trigger_key, sc.content_kind, sc.value, sc.html_value, sc.updated_at, COALESCE(sc.updated_by, 0)
FROM shortcuts sc
WHERE `+where+`
ORDER BY sc.trigger_key ASC, sc.id ASC
`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Shortcut
	index := make(map[int64]int)
	for rows.Next() {
		var sc domain.Shortcut
		var kind string
		var updated int64
		if err := rows.Scan(&sc.ID, &sc.Key, &kind, &sc.Value, &sc.HTMLValue, &updated, &sc.UpdatedBy); err != nil {
			return nil, err
		}
		sc.Kind = domain.ContentKind(kind)
		sc.UpdatedAt = fromMillis(updated)
		index[sc.ID] = len(out)
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return []domain.Shortcut{}, nil
	}

	memberships, err := d.sql.QueryContext(ctx, `
SELECT m.shortcut_id, s.id, s.name, s.set_type
FROM shortcut_memberships m
JOIN shortcut_sets s ON s.id = m.set_id
WHERE m.shortcut_id IN (SELECT sc.id FROM shortcuts sc WHERE `+where+`)
ORDER BY s.name ASC
`, args...)
	if err != nil {
		return nil, err
	}
	defer memberships.Close()

	for memberships.Next() {
		var shortcutID int64
		var ref domain.SetRef
		var kind string
		if err := memberships.Scan(&shortcutID, &ref.ID, &ref.Name, &kind); err != nil {
			return nil, err
		}
		ref.Kind = domain.SetKind(kind)
		if i, ok := index[shortcutID]; ok {
			out[i].Sets = append(out[i].Sets, ref)
		}
	}
	return out, memberships.Err()
}

func shortcutWhere(filter domain.ShortcutFilter) (string, []any) {
	var b strings.Builder
	args := int64Args(filter.SetIDs)

	b.WriteString(`EXISTS (SELECT 1 FROM shortcut_memberships m WHERE m.shortcut_id = sc.id AND m.set_id IN (`)
	b.WriteString(placeholders(len(filter.SetIDs)))
	b.WriteString(`))`)

	if filter.UpdatedAfter != nil {
		b.WriteString(` AND sc.updated_at > ?`)
		args = append(args, toMillis(*filter.UpdatedAfter))
	}
	return b.String(), args
}

// CountShortcuts returns the number of shortcuts in each of setIDs.
func (d *DB) CountShortcuts(ctx context.Context, setIDs []int64) (map[int64]int, error) {
	counts := make(map[int64]int, len(setIDs))
	if len(setIDs) == 0 {
		return counts, nil
	}
	rows, err := d.sql.QueryContext(ctx, `
SELECT set_id, COUNT(*) FROM shortcut_memberships
WHERE set_id IN (`+placeholders(len(setIDs))+`)
GROUP BY set_id
`, int64Args(setIDs)...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}
	return counts, rows.Err()
}

// sortedUnique returns ids sorted with duplicates removed.
func sortedUnique(ids []int64) []int64 {
	out := make([]int64, 0, len(ids))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
