package domain

import (
	"context"
	"time"
)

// PrincipalStore is the identity collaborator.
type PrincipalStore interface {
	FindPrincipal(ctx context.Context, id int64) (*Principal, bool, error)

	// VerifyCredentials returns the principal when the password matches,
	// regardless of its active flag. Unknown usernames and wrong passwords
	// are both reported as not found.
	VerifyCredentials(ctx context.Context, username, password string) (*Principal, bool, error)
}

// TokenRepository persists tokens.
type TokenRepository interface {
	FindToken(ctx context.Context, key string) (*Token, bool, error)

	// UpsertToken atomically keeps the principal's token if it is still live
	// at now, or stores candidate in its place. It returns the token that
	// is current afterwards.
	UpsertToken(ctx context.Context, candidate Token, now time.Time) (Token, error)

	DeleteToken(ctx context.Context, principalID int64) error
	DeleteExpiredTokens(ctx context.Context, now time.Time) (int64, error)
}

// SetFilter selects sets from the catalog.
//
// With All set, every set is returned. Otherwise the result is the union of
// general sets (when IncludeGeneral) and personal sets owned by or shared
// with MemberID (when non-zero).
type SetFilter struct {
	All            bool
	IncludeGeneral bool
	MemberID       int64
}

// ShortcutFilter selects shortcuts belonging to at least one of SetIDs and,
// when UpdatedAfter is set, modified strictly after it.
type ShortcutFilter struct {
	SetIDs       []int64
	UpdatedAfter *time.Time
}

// CatalogStore reads sets and shortcuts. Results from ListSets are ordered by
// (kind, name); results from ListShortcuts by (key, id) with each shortcut
// appearing once and carrying all of its memberships.
type CatalogStore interface {
	ListSets(ctx context.Context, filter SetFilter) ([]ShortcutSet, error)
	ListShortcuts(ctx context.Context, filter ShortcutFilter) ([]Shortcut, error)
	CountShortcuts(ctx context.Context, setIDs []int64) (map[int64]int, error)
}

// CatalogWriter applies administrative changes to principals and the
// catalog. Its methods only run inside CatalogAdmin.WithinTx.
type CatalogWriter interface {
	UpsertPrincipal(ctx context.Context, p Principal, password, passwordHash string, now time.Time) (int64, error)
	UpsertSet(ctx context.Context, set ShortcutSet, now time.Time) (int64, error)

	// UpsertShortcut stores sc as a member of exactly setIDs and reports
	// whether anything was written.
	UpsertShortcut(ctx context.Context, sc Shortcut, setIDs []int64, now time.Time) (int64, bool, error)

	// PruneShortcuts detaches every shortcut not in keep from setIDs.
	// Shortcuts left in no set are deleted; the others are stamped with now.
	// It returns how many shortcuts were detached or deleted.
	PruneShortcuts(ctx context.Context, setIDs, keep []int64, now time.Time) (int64, error)
}

// CatalogAdmin runs a batch of writes as one transaction, so that readers
// observe either all of them or none.
type CatalogAdmin interface {
	WithinTx(ctx context.Context, fn func(CatalogWriter) error) error
}
