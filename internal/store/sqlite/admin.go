package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/MrSnakeDoc/textsync/internal/auth"
	"github.com/MrSnakeDoc/textsync/internal/domain"
)

// WithinTx runs fn with a writer bound to a single transaction and commits
// when fn returns nil. With one open connection, concurrent readers wait for
// the commit and never see a partial batch.
func (d *DB) WithinTx(ctx context.Context, fn func(domain.CatalogWriter) error) error {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&catalogTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// catalogTx implements domain.CatalogWriter on an open transaction.
type catalogTx struct {
	tx *sql.Tx
}

// UpsertPrincipal creates or updates the principal identified by p.Username.
//
// Exactly one of password and passwordHash should be set. A plaintext password
// that already matches the stored hash leaves the hash untouched.
func (w *catalogTx) UpsertPrincipal(ctx context.Context, p domain.Principal, password, passwordHash string, now time.Time) (int64, error) {
	username := strings.TrimSpace(p.Username)
	if username == "" {
		return 0, errors.New("username is required")
	}
	if password == "" && passwordHash == "" {
		return 0, fmt.Errorf("user %q: password or password_hash is required", username)
	}

	var id int64
	var storedHash string
	err := w.tx.QueryRowContext(ctx, `SELECT id, password_hash FROM principals WHERE username = ?`, username).
		Scan(&id, &storedHash)
	found := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	hash := passwordHash
	if hash == "" {
		if found {
			if ok, _ := auth.VerifyPassword(password, storedHash); ok {
				hash = storedHash
			}
		}
		if hash == "" {
			if hash, err = auth.HashPassword(password, auth.DefaultArgon2Params()); err != nil {
				return 0, fmt.Errorf("hash password for %q: %w", username, err)
			}
		}
	}

	if found {
		if _, err := w.tx.ExecContext(ctx, `
UPDATE principals SET email = ?, password_hash = ?, is_active = ?, is_superuser = ?, updated_at = ?
WHERE id = ?
`, p.Email, hash, boolToInt(p.Active), boolToInt(p.Superuser), toMillis(now), id); err != nil {
			return 0, fmt.Errorf("update principal %q: %w", username, err)
		}
		return id, nil
	}

	res, err := w.tx.ExecContext(ctx, `
INSERT INTO principals(username, email, password_hash, is_active, is_superuser, created_at, updated_at)
VALUES(?, ?, ?, ?, ?, ?, ?)
`, username, p.Email, hash, boolToInt(p.Active), boolToInt(p.Superuser), toMillis(now), toMillis(now))
	if err != nil {
		return 0, fmt.Errorf("insert principal %q: %w", username, err)
	}
	return res.LastInsertId()
}

// UpsertSet creates or updates the set identified by set.Name. For personal
// sets the owner and the share list are replaced by the ones in set.Visibility.
func (w *catalogTx) UpsertSet(ctx context.Context, set domain.ShortcutSet, now time.Time) (int64, error) {
	name := strings.TrimSpace(set.Name)
	if name == "" {
		return 0, errors.New("set name is required")
	}

	var owner sql.NullInt64
	var shared []int64
	if v, ok := set.Visibility.(domain.Personal); ok {
		if v.OwnerID != 0 {
			owner = sql.NullInt64{Int64: v.OwnerID, Valid: true}
		}
		shared = v.SharedWith
	}

	var id int64
	if err := w.tx.QueryRowContext(ctx, `
INSERT INTO shortcut_sets(name, set_type, owner_id, description, created_at) VALUES(?, ?, ?, ?, ?)
ON CONFLICT(name) DO UPDATE SET
  set_type = excluded.set_type,
  owner_id = excluded.owner_id,
  description = excluded.description
RETURNING id
`, name, string(set.Kind()), owner, set.Description, toMillis(now)).Scan(&id); err != nil {
		return 0, fmt.Errorf("upsert set %q: %w", name, err)
	}

	if _, err := w.tx.ExecContext(ctx, `DELETE FROM shortcut_set_shares WHERE set_id = ?`, id); err != nil {
		return 0, fmt.Errorf("share set %q: %w", name, err)
	}
	for _, pid := range sortedUnique(shared) {
		if _, err := w.tx.ExecContext(ctx,
			`INSERT INTO shortcut_set_shares(set_id, principal_id) VALUES(?, ?)`, id, pid); err != nil {
			return 0, fmt.Errorf("share set %q: %w", name, err)
		}
	}
	return id, nil
}

// UpsertShortcut stores sc as a member of exactly setIDs.
//
// The row reused is the one with the same key and the same memberships,
// falling back to one with the same key in any of setIDs (a shortcut moved
// between sets). Its updated_at only moves to now when the content or the
// membership actually changed, so unchanged entries are not re-sent to
// delta syncs.
func (w *catalogTx) UpsertShortcut(ctx context.Context, sc domain.Shortcut, setIDs []int64, now time.Time) (int64, bool, error) {
	if sc.Key == "" {
		return 0, false, errors.New("shortcut key is required")
	}
	setIDs = sortedUnique(setIDs)
	if len(setIDs) == 0 {
		return 0, false, fmt.Errorf("shortcut %q: at least one set is required", sc.Key)
	}
	kind := sc.Kind
	if kind == "" {
		kind = domain.InferContentKind(sc.Value, sc.HTMLValue)
	}
	var updatedBy sql.NullInt64
	if sc.UpdatedBy != 0 {
		updatedBy = sql.NullInt64{Int64: sc.UpdatedBy, Valid: true}
	}

	id, current, err := w.matchShortcut(ctx, sc.Key, setIDs)
	if err != nil {
		return 0, false, err
	}

	if id == 0 {
		res, err := w.tx.ExecContext(ctx, `
INSERT INTO shortcuts(trigger_key, content_kind, value, html_value, updated_at, updated_by)
VALUES(?, ?, ?, ?, ?, ?)
`, sc.Key, string(kind), sc.Value, sc.HTMLValue, toMillis(now), updatedBy)
		if err != nil {
			return 0, false, fmt.Errorf("insert shortcut %q: %w", sc.Key, err)
		}
		if id, err = res.LastInsertId(); err != nil {
			return 0, false, err
		}
		if err := w.insertMemberships(ctx, id, setIDs); err != nil {
			return 0, false, err
		}
		return id, true, nil
	}

	var curKind, curValue, curHTML string
	if err := w.tx.QueryRowContext(ctx,
		`SELECT content_kind, value, html_value FROM shortcuts WHERE id = ?`, id).
		Scan(&curKind, &curValue, &curHTML); err != nil {
		return 0, false, err
	}
	contentChanged := curKind != string(kind) || curValue != sc.Value || curHTML != sc.HTMLValue
	membershipChanged := !slices.Equal(current, setIDs)
	if !contentChanged && !membershipChanged {
		return id, false, nil
	}

	if _, err := w.tx.ExecContext(ctx, `
UPDATE shortcuts SET content_kind = ?, value = ?, html_value = ?, updated_at = ?, updated_by = ?
WHERE id = ?
`, string(kind), sc.Value, sc.HTMLValue, toMillis(now), updatedBy, id); err != nil {
		return 0, false, fmt.Errorf("update shortcut %q: %w", sc.Key, err)
	}
	if membershipChanged {
		if _, err := w.tx.ExecContext(ctx, `DELETE FROM shortcut_memberships WHERE shortcut_id = ?`, id); err != nil {
			return 0, false, err
		}
		if err := w.insertMemberships(ctx, id, setIDs); err != nil {
			return 0, false, err
		}
	}
	return id, true, nil
}

// matchShortcut finds the row UpsertShortcut should reuse and its current
// memberships. id is 0 when there is none.
func (w *catalogTx) matchShortcut(ctx context.Context, key string, setIDs []int64) (id int64, memberships []int64, err error) {
	rows, err := w.tx.QueryContext(ctx, `
SELECT sc.id FROM shortcuts sc
WHERE sc.trigger_key = ?
  AND EXISTS (SELECT 1 FROM shortcut_memberships m WHERE m.shortcut_id = sc.id AND m.set_id IN (`+placeholders(len(setIDs))+`))
ORDER BY sc.id ASC
`, append([]any{key}, int64Args(setIDs)...)...)
	if err != nil {
		return 0, nil, err
	}
	candidates, err := scanIDs(rows)
	if err != nil {
		return 0, nil, err
	}

	for _, c := range candidates {
		m, err := w.membershipsOf(ctx, c)
		if err != nil {
			return 0, nil, err
		}
		if slices.Equal(m, setIDs) {
			return c, m, nil
		}
		if id == 0 {
			id, memberships = c, m
		}
	}
	return id, memberships, nil
}

// PruneShortcuts detaches the shortcuts of setIDs that are not in keep.
func (w *catalogTx) PruneShortcuts(ctx context.Context, setIDs, keep []int64, now time.Time) (int64, error) {
	setIDs = sortedUnique(setIDs)
	if len(setIDs) == 0 {
		return 0, nil
	}
	inSets := `set_id IN (` + placeholders(len(setIDs)) + `)`

	query := `SELECT DISTINCT shortcut_id FROM shortcut_memberships WHERE ` + inSets
	args := int64Args(setIDs)
	if keep = sortedUnique(keep); len(keep) > 0 {
		query += ` AND shortcut_id NOT IN (` + placeholders(len(keep)) + `)`
		args = append(args, int64Args(keep)...)
	}
	rows, err := w.tx.QueryContext(ctx, query+` ORDER BY shortcut_id`, args...)
	if err != nil {
		return 0, err
	}
	stale, err := scanIDs(rows)
	if err != nil {
		return 0, err
	}

	for _, id := range stale {
		if _, err := w.tx.ExecContext(ctx,
			`DELETE FROM shortcut_memberships WHERE shortcut_id = ? AND `+inSets,
			append([]any{id}, int64Args(setIDs)...)...); err != nil {
			return 0, fmt.Errorf("detach shortcut %d: %w", id, err)
		}

		var left int
		if err := w.tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM shortcut_memberships WHERE shortcut_id = ?`, id).Scan(&left); err != nil {
			return 0, err
		}
		if left == 0 {
			_, err = w.tx.ExecContext(ctx, `DELETE FROM shortcuts WHERE id = ?`, id)
		} else {
			_, err = w.tx.ExecContext(ctx, `UPDATE shortcuts SET updated_at = ? WHERE id = ?`, toMillis(now), id)
		}
		if err != nil {
			return 0, fmt.Errorf("prune shortcut %d: %w", id, err)
		}
	}
	return int64(len(stale)), nil
}

func (w *catalogTx) insertMemberships(ctx context.Context, shortcutID int64, setIDs []int64) error {
	for _, sid := range setIDs {
		if _, err := w.tx.ExecContext(ctx,
			`INSERT INTO shortcut_memberships(shortcut_id, set_id) VALUES(?, ?)`, shortcutID, sid); err != nil {
			return fmt.Errorf("add shortcut %d to set %d: %w", shortcutID, sid, err)
		}
	}
	return nil
}

func (w *catalogTx) membershipsOf(ctx context.Context, shortcutID int64) ([]int64, error) {
	rows, err := w.tx.QueryContext(ctx,
		`SELECT set_id FROM shortcut_memberships WHERE shortcut_id = ? ORDER BY set_id`, shortcutID)
	if err != nil {
		return nil, err
	}
	return scanIDs(rows)
}

// scanIDs drains and closes rows of a single integer column.
func scanIDs(rows *sql.Rows) ([]int64, error) {
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
