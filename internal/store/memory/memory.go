package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/MrSnakeDoc/textsync/internal/auth"
	"github.com/MrSnakeDoc/textsync/internal/domain"
)

// Store is an in-memory record store implementing the principal, token and
// catalog interfaces. It backs tests and local experiments.
type Store struct {
	mu         sync.RWMutex
	principals map[int64]*domain.Principal // ID -> Principal
	passwords  map[string]string           // username -> argon2id hash
	usernames  map[string]int64            // username -> ID
	tokens     map[int64]domain.Token      // principal ID -> Token
	sets       map[int64]domain.ShortcutSet
	shortcuts  map[int64]*domain.Shortcut
	membership map[int64][]int64 // shortcut ID -> set IDs
	nextID     int64
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		principals: make(map[int64]*domain.Principal),
		passwords:  make(map[string]string),
		usernames:  make(map[string]int64),
		tokens:     make(map[int64]domain.Token),
		sets:       make(map[int64]domain.ShortcutSet),
		shortcuts:  make(map[int64]*domain.Shortcut),
		membership: make(map[int64][]int64),
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// ─────────────────────────────────────────────────────────────────
// Fixture helpers
// ─────────────────────────────────────────────────────────────────

// cheapParams keeps password hashing fast; this store is never used in production.
var cheapParams = auth.Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLen: 16, KeyLen: 32}

// AddPrincipal stores p with the given password and returns it with its ID set.
func (s *Store) AddPrincipal(p domain.Principal, password string) domain.Principal {
	hash, err := auth.HashPassword(password, cheapParams)
	if err != nil {
		panic(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p.ID = s.id()
	cp := p
	s.principals[p.ID] = &cp
	s.usernames[p.Username] = p.ID
	s.passwords[p.Username] = hash
	return p
}

// SetActive flips a principal's active flag.
func (s *Store) SetActive(id int64, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, ok := s.principals[id]; ok {
		p.Active = active
	}
}

// AddSet stores set and returns it with its ID set.
func (s *Store) AddSet(set domain.ShortcutSet) domain.ShortcutSet {
	s.mu.Lock()
	defer s.mu.Unlock()

	set.ID = s.id()
	if set.CreatedAt.IsZero() {
		set.CreatedAt = time.Now().UTC()
	}
	s.sets[set.ID] = set
	return set
}

// AddShortcut stores sc as a member of setIDs and returns it with its ID set.
func (s *Store) AddShortcut(sc domain.Shortcut, setIDs ...int64) domain.Shortcut {
	s.mu.Lock()
	defer s.mu.Unlock()

	sc.ID = s.id()
	sc.Sets = nil
	if sc.Kind == "" {
		sc.Kind = domain.InferContentKind(sc.Value, sc.HTMLValue)
	}
	cp := sc
	s.shortcuts[sc.ID] = &cp
	s.membership[sc.ID] = slices.Clone(setIDs)
	return s.withSetsLocked(cp)
}

// Touch sets a shortcut's modification time.
func (s *Store) Touch(id int64, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sc, ok := s.shortcuts[id]; ok {
		sc.UpdatedAt = at
	}
}

// ─────────────────────────────────────────────────────────────────
// domain.PrincipalStore
// ─────────────────────────────────────────────────────────────────

func (s *Store) FindPrincipal(_ context.Context, id int64) (*domain.Principal, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.principals[id]
	if !ok {
		return nil, false, nil
	}
	cp := *p
	return &cp, true, nil
}

func (s *Store) VerifyCredentials(_ context.Context, username, password string) (*domain.Principal, bool, error) {
	s.mu.RLock()
	hash, known := s.passwords[username]
	id := s.usernames[username]
	s.mu.RUnlock()

	if !known {
		return nil, false, nil
	}
	ok, err := auth.VerifyPassword(password, hash)
	if err != nil || !ok {
		return nil, false, err
	}
	return s.FindPrincipal(context.Background(), id)
}

// ─────────────────────────────────────────────────────────────────
// domain.TokenRepository
// ─────────────────────────────────────────────────────────────────

func (s *Store) FindToken(_ context.Context, key string) (*domain.Token, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, t := range s.tokens {
		if t.Key == key {
			cp := t
			return &cp, true, nil
		}
	}
	return nil, false, nil
}

func (s *Store) UpsertToken(_ context.Context, candidate domain.Token, now time.Time) (domain.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.tokens[candidate.PrincipalID]; ok && !existing.Expired(now) {
		return existing, nil
	}
	s.tokens[candidate.PrincipalID] = candidate
	return candidate, nil
}

func (s *Store) DeleteToken(_ context.Context, principalID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tokens, principalID)
	return nil
}

func (s *Store) DeleteExpiredTokens(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for id, t := range s.tokens {
		if t.Expired(now) {
			delete(s.tokens, id)
			n++
		}
	}
	return n, nil
}

// ─────────────────────────────────────────────────────────────────
// domain.CatalogStore
// ─────────────────────────────────────────────────────────────────

func (s *Store) ListSets(_ context.Context, filter domain.SetFilter) ([]domain.ShortcutSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.ShortcutSet, 0, len(s.sets))
	for _, set := range s.sets {
		if filter.All || matchesSetFilter(set, filter) {
			out = append(out, set)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind() != out[j].Kind() {
			return out[i].Kind() < out[j].Kind()
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func matchesSetFilter(set domain.ShortcutSet, filter domain.SetFilter) bool {
	switch v := set.Visibility.(type) {
	case domain.General:
		return filter.IncludeGeneral
	case domain.Personal:
		if filter.MemberID == 0 {
			return false
		}
		return v.OwnerID == filter.MemberID || slices.Contains(v.SharedWith, filter.MemberID)
	default:
		return false
	}
}

func (s *Store) ListShortcuts(_ context.Context, filter domain.ShortcutFilter) ([]domain.Shortcut, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Shortcut, 0)
	for id, sc := range s.shortcuts {
		if !containsAny(s.membership[id], filter.SetIDs) {
			continue
		}
		if filter.UpdatedAfter != nil && !sc.UpdatedAt.After(*filter.UpdatedAfter) {
			continue
		}
		out = append(out, s.withSetsLocked(*sc))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key != out[j].Key {
			return out[i].Key < out[j].Key
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) CountShortcuts(_ context.Context, setIDs []int64) (map[int64]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[int64]int, len(setIDs))
	for _, members := range s.membership {
		for _, id := range members {
			if slices.Contains(setIDs, id) {
				counts[id]++
			}
		}
	}
	return counts, nil
}

func (s *Store) withSetsLocked(sc domain.Shortcut) domain.Shortcut {
	refs := make([]domain.SetRef, 0, len(s.membership[sc.ID]))
	for _, id := range s.membership[sc.ID] {
		if set, ok := s.sets[id]; ok {
			refs = append(refs, set.Ref())
		}
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Name < refs[j].Name })
	sc.Sets = refs
	return sc
}

func containsAny(have, want []int64) bool {
	for _, id := range have {
		if slices.Contains(want, id) {
			return true
		}
	}
	return false
}
