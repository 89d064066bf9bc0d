package seed

import (
	"fmt"
	"strings"

	"github.com/MrSnakeDoc/textsync/internal/domain"
)

// Normalize validates f and returns a cleaned copy: names are trimmed, a
// leading backtick is stripped from shortcut keys and missing set types
// default to general. Every set referenced by a shortcut and every username
// referenced by a set must be declared in the file. A key may appear in a
// given set only once.
func Normalize(f File) (File, error) {
	out := File{
		Users:     make([]User, 0, len(f.Users)),
		Sets:      make([]Set, 0, len(f.Sets)),
		Shortcuts: make([]Shortcut, 0, len(f.Shortcuts)),
	}

	users := make(map[string]bool, len(f.Users))
	for i, u := range f.Users {
		u.Username = strings.TrimSpace(u.Username)
		if u.Username == "" {
			return File{}, fmt.Errorf("users[%d]: username is required", i)
		}
		if users[u.Username] {
			return File{}, fmt.Errorf("users[%d]: duplicate username %q", i, u.Username)
		}
		if (u.Password == "") == (u.PasswordHash == "") {
			return File{}, fmt.Errorf("user %q: exactly one of password and password_hash is required", u.Username)
		}
		users[u.Username] = true
		out.Users = append(out.Users, u)
	}

	sets := make(map[string]bool, len(f.Sets))
	for i, s := range f.Sets {
		s.Name = strings.TrimSpace(s.Name)
		if s.Name == "" {
			return File{}, fmt.Errorf("sets[%d]: name is required", i)
		}
		if sets[s.Name] {
			return File{}, fmt.Errorf("sets[%d]: duplicate set %q", i, s.Name)
		}
		if s.Type == "" {
			s.Type = string(domain.SetGeneral)
		}
		kind, err := domain.ParseSetKind(s.Type)
		if err != nil {
			return File{}, fmt.Errorf("set %q: %w", s.Name, err)
		}
		if kind == domain.SetGeneral && len(s.SharedWith) > 0 {
			return File{}, fmt.Errorf("set %q: shared_with only applies to personal sets", s.Name)
		}
		if s.Owner != "" && !users[s.Owner] {
			return File{}, fmt.Errorf("set %q: unknown owner %q", s.Name, s.Owner)
		}
		for _, u := range s.SharedWith {
			if !users[u] {
				return File{}, fmt.Errorf("set %q: unknown user %q in shared_with", s.Name, u)
			}
		}
		sets[s.Name] = true
		out.Sets = append(out.Sets, s)
	}

	type keyInSet struct{ key, set string }
	placed := make(map[keyInSet]bool)
	for i, sc := range f.Shortcuts {
		sc.Key = normalizeKey(sc.Key)
		if sc.Key == "" {
			return File{}, fmt.Errorf("shortcuts[%d]: key is required", i)
		}
		if len(sc.Sets) == 0 {
			return File{}, fmt.Errorf("shortcut %q: at least one set is required", sc.Key)
		}
		for _, name := range sc.Sets {
			if !sets[name] {
				return File{}, fmt.Errorf("shortcut %q: unknown set %q", sc.Key, name)
			}
			if placed[keyInSet{sc.Key, name}] {
				return File{}, fmt.Errorf("shortcuts[%d]: key %q appears twice in set %q", i, sc.Key, name)
			}
			placed[keyInSet{sc.Key, name}] = true
		}
		if sc.UpdatedBy != "" && !users[sc.UpdatedBy] {
			return File{}, fmt.Errorf("shortcut %q: unknown user %q in updated_by", sc.Key, sc.UpdatedBy)
		}
		out.Shortcuts = append(out.Shortcuts, sc)
	}

	return out, nil
}

// normalizeKey trims the key and drops the backtick trigger prefix that
// exported shortcut files carry.
func normalizeKey(key string) string {
	key = strings.TrimSpace(key)
	return strings.TrimPrefix(key, "`")
}
