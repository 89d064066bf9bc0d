package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/MrSnakeDoc/textsync/internal/auth"
	"github.com/MrSnakeDoc/textsync/internal/domain"
)

const principalColumns = `id, username, email, is_active, is_superuser`

func scanPrincipal(row interface{ Scan(...any) error }) (*domain.Principal, error) {
	var p domain.Principal
	var active, superuser int
	if err := row.Scan(&p.ID, &p.Username, &p.Email, &active, &superuser); err != nil {
		return nil, err
	}
	p.Active = active != 0
	p.Superuser = superuser != 0
	return &p, nil
}

// FindPrincipal looks up a principal by ID.
func (d *DB) FindPrincipal(ctx context.Context, id int64) (*domain.Principal, bool, error) {
	p, err := scanPrincipal(d.sql.QueryRowContext(ctx,
		`SELECT `+principalColumns+` FROM principals WHERE id = ?`, id))
	if err == nil {
		return p, true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	return nil, false, err
}

// VerifyCredentials checks a username/password pair. Unknown users still pay
// for a hash comparison so that response time does not reveal which part was wrong.
func (d *DB) VerifyCredentials(ctx context.Context, username, password string) (*domain.Principal, bool, error) {
	var hash string
	row := d.sql.QueryRowContext(ctx,
		`SELECT `+principalColumns+`, password_hash FROM principals WHERE username = ?`, username)

	var p domain.Principal
	var active, superuser int
	err := row.Scan(&p.ID, &p.Username, &p.Email, &active, &superuser, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		auth.BurnPasswordCheck(password)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	ok, err := auth.VerifyPassword(password, hash)
	if err != nil {
		// A corrupt hash is a storage problem, not a credential answer.
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	p.Active = active != 0
	p.Superuser = superuser != 0
	return &p, true, nil
}
