package domain

// Principal is an authenticated actor. It is owned by the identity store;
// the sync core only ever reads it.
type Principal struct {
	ID       int64
	Username string
	Email    string

	// Active principals may authenticate. Deactivating a principal
	// invalidates its token without deleting it.
	Active bool

	// Superuser bypasses every visibility restriction.
	Superuser bool
}
