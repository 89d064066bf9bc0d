package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/MrSnakeDoc/textsync/internal/domain"
)

// FindToken looks up a token by key.
func (d *DB) FindToken(ctx context.Context, key string) (*domain.Token, bool, error) {
	var t domain.Token
	var created, expires int64
	err := d.sql.QueryRowContext(ctx, `
SELECT token_key, principal_id, created_at, expires_at FROM tokens WHERE token_key = ?
`, key).Scan(&t.Key, &t.PrincipalID, &created, &expires)
	if err == nil {
		t.CreatedAt = fromMillis(created)
		t.ExpiresAt = fromMillis(expires)
		return &t, true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	return nil, false, err
}

// UpsertToken keeps the principal's token while it is live at now and
// replaces it with candidate otherwise. The UNIQUE(principal_id) constraint
// and the conditional upsert make concurrent logins converge on one token.
func (d *DB) UpsertToken(ctx context.Context, candidate domain.Token, now time.Time) (domain.Token, error) {
	if candidate.Key == "" || candidate.PrincipalID <= 0 {
		return domain.Token{}, errors.New("invalid token")
	}

	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return domain.Token{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO tokens(token_key, principal_id, created_at, expires_at) VALUES(?, ?, ?, ?)
ON CONFLICT(principal_id) DO UPDATE SET
  token_key = excluded.token_key,
  created_at = excluded.created_at,
  expires_at = excluded.expires_at
WHERE tokens.expires_at < ?
`, candidate.Key, candidate.PrincipalID, toMillis(candidate.CreatedAt), toMillis(candidate.ExpiresAt), toMillis(now)); err != nil {
		return domain.Token{}, fmt.Errorf("upsert token: %w", err)
	}

	var t domain.Token
	var created, expires int64
	if err := tx.QueryRowContext(ctx, `
SELECT token_key, principal_id, created_at, expires_at FROM tokens WHERE principal_id = ?
`, candidate.PrincipalID).Scan(&t.Key, &t.PrincipalID, &created, &expires); err != nil {
		return domain.Token{}, fmt.Errorf("read token: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Token{}, err
	}

	t.CreatedAt = fromMillis(created)
	t.ExpiresAt = fromMillis(expires)
	return t, nil
}

// DeleteToken removes the principal's token, if any.
func (d *DB) DeleteToken(ctx context.Context, principalID int64) error {
	_, err := d.sql.ExecContext(ctx, `DELETE FROM tokens WHERE principal_id = ?`, principalID)
	return err
}

// DeleteExpiredTokens deletes tokens that expired before now.
func (d *DB) DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error) {
	res, err := d.sql.ExecContext(ctx, `DELETE FROM tokens WHERE expires_at < ?`, toMillis(now))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
