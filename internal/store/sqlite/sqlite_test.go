package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/MrSnakeDoc/textsync/internal/auth"
	"github.com/MrSnakeDoc/textsync/internal/domain"
)

var testParams = auth.Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLen: 16, KeyLen: 32}

var t0 = time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), filepath.Join(t.TempDir(), "textsync.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// writeTx runs fn in one catalog transaction and fails the test on error.
func writeTx(t *testing.T, db *DB, fn func(w domain.CatalogWriter) error) {
	t.Helper()
	if err := db.WithinTx(context.Background(), fn); err != nil {
		t.Fatal(err)
	}
}

func addUser(t *testing.T, db *DB, p domain.Principal, password string) int64 {
	t.Helper()
	hash, err := auth.HashPassword(password, testParams)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	var id int64
	writeTx(t, db, func(w domain.CatalogWriter) (err error) {
		id, err = w.UpsertPrincipal(context.Background(), p, "", hash, t0)
		return err
	})
	return id
}

func upsertShortcut(t *testing.T, db *DB, sc domain.Shortcut, setIDs []int64, now time.Time) (id int64, changed bool) {
	t.Helper()
	writeTx(t, db, func(w domain.CatalogWriter) (err error) {
		id, changed, err = w.UpsertShortcut(context.Background(), sc, setIDs, now)
		return err
	})
	return id, changed
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "textsync.db")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		db, err := Open(ctx, path)
		if err != nil {
			t.Fatalf("Open #%d: %v", i+1, err)
		}
		var n int
		if err := db.sql.QueryRowContext(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&n); err != nil {
			t.Fatalf("count migrations: %v", err)
		}
		if n != 1 {
			t.Errorf("schema_migrations has %d rows, want 1", n)
		}
		_ = db.Close()
	}
}

func TestVerifyCredentials(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	id := addUser(t, db, domain.Principal{Username: "alice", Email: "alice@example.com", Active: true}, "s3cret")

	p, ok, err := db.VerifyCredentials(ctx, "alice", "s3cret")
	if err != nil || !ok {
		t.Fatalf("VerifyCredentials(valid) = %v, %v", ok, err)
	}
	if p.ID != id || p.Email != "alice@example.com" || !p.Active {
		t.Errorf("principal = %+v", p)
	}

	if _, ok, err := db.VerifyCredentials(ctx, "alice", "wrong"); ok || err != nil {
		t.Errorf("VerifyCredentials(wrong password) = %v, %v", ok, err)
	}
	if _, ok, err := db.VerifyCredentials(ctx, "mallory", "s3cret"); ok || err != nil {
		t.Errorf("VerifyCredentials(unknown user) = %v, %v", ok, err)
	}

	found, ok, err := db.FindPrincipal(ctx, id)
	if err != nil || !ok || found.Username != "alice" {
		t.Errorf("FindPrincipal = %+v, %v, %v", found, ok, err)
	}
	if _, ok, _ := db.FindPrincipal(ctx, id+100); ok {
		t.Error("FindPrincipal(missing) reported found")
	}
}

func TestUpsertPrincipalKeepsMatchingHash(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	addUser(t, db, domain.Principal{Username: "bob", Active: true}, "pw")

	var before string
	_ = db.sql.QueryRowContext(ctx, `SELECT password_hash FROM principals WHERE username = 'bob'`).Scan(&before)

	writeTx(t, db, func(w domain.CatalogWriter) error {
		_, err := w.UpsertPrincipal(ctx, domain.Principal{Username: "bob", Active: false}, "pw", "", t0.Add(time.Hour))
		return err
	})

	var after string
	var active int
	_ = db.sql.QueryRowContext(ctx, `SELECT password_hash, is_active FROM principals WHERE username = 'bob'`).Scan(&after, &active)
	if after != before {
		t.Error("password hash was rewritten for an unchanged password")
	}
	if active != 0 {
		t.Error("is_active not updated")
	}
}

func TestUpsertTokenKeepsLiveAndReplacesExpired(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	uid := addUser(t, db, domain.Principal{Username: "alice", Active: true}, "pw")

	first := domain.Token{Key: "aaaa", PrincipalID: uid, CreatedAt: t0, ExpiresAt: t0.Add(time.Hour)}
	got, err := db.UpsertToken(ctx, first, t0)
	if err != nil || got.Key != "aaaa" {
		t.Fatalf("first UpsertToken = %+v, %v", got, err)
	}

	second := domain.Token{Key: "bbbb", PrincipalID: uid, CreatedAt: t0.Add(time.Minute), ExpiresAt: t0.Add(time.Hour + time.Minute)}
	got, err = db.UpsertToken(ctx, second, t0.Add(time.Minute))
	if err != nil {
		t.Fatal(err)
	}
	if got.Key != "aaaa" || !got.ExpiresAt.Equal(first.ExpiresAt) {
		t.Errorf("live token replaced: %+v", got)
	}

	later := t0.Add(2 * time.Hour)
	third := domain.Token{Key: "cccc", PrincipalID: uid, CreatedAt: later, ExpiresAt: later.Add(time.Hour)}
	got, err = db.UpsertToken(ctx, third, later)
	if err != nil {
		t.Fatal(err)
	}
	if got.Key != "cccc" {
		t.Errorf("expired token kept: %+v", got)
	}
	if _, ok, _ := db.FindToken(ctx, "aaaa"); ok {
		t.Error("old key still resolves")
	}
	tok, ok, err := db.FindToken(ctx, "cccc")
	if err != nil || !ok || tok.PrincipalID != uid || !tok.CreatedAt.Equal(later) {
		t.Errorf("FindToken = %+v, %v, %v", tok, ok, err)
	}
}

func TestUpsertTokenConcurrent(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	uid := addUser(t, db, domain.Principal{Username: "alice", Active: true}, "pw")

	keys := make([]string, 8)
	var wg sync.WaitGroup
	for i := range keys {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok, err := db.UpsertToken(ctx, domain.Token{
				Key:         string(rune('a'+i)) + "-key",
				PrincipalID: uid,
				CreatedAt:   t0,
				ExpiresAt:   t0.Add(time.Hour),
			}, t0)
			if err != nil {
				t.Errorf("UpsertToken: %v", err)
				return
			}
			keys[i] = tok.Key
		}(i)
	}
	wg.Wait()

	for _, k := range keys {
		if k != keys[0] {
			t.Fatalf("concurrent upserts disagree: %v", keys)
		}
	}
}

func TestDeleteExpiredTokens(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	a := addUser(t, db, domain.Principal{Username: "a", Active: true}, "pw")
	b := addUser(t, db, domain.Principal{Username: "b", Active: true}, "pw")

	_, _ = db.UpsertToken(ctx, domain.Token{Key: "old", PrincipalID: a, CreatedAt: t0, ExpiresAt: t0.Add(time.Minute)}, t0)
	_, _ = db.UpsertToken(ctx, domain.Token{Key: "new", PrincipalID: b, CreatedAt: t0, ExpiresAt: t0.Add(time.Hour)}, t0)

	n, err := db.DeleteExpiredTokens(ctx, t0.Add(10*time.Minute))
	if err != nil || n != 1 {
		t.Fatalf("DeleteExpiredTokens = %d, %v; want 1", n, err)
	}
	if _, ok, _ := db.FindToken(ctx, "new"); !ok {
		t.Error("live token swept")
	}

	if err := db.DeleteToken(ctx, b); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := db.FindToken(ctx, "new"); ok {
		t.Error("DeleteToken left the token behind")
	}
}

type catalogFixture struct {
	alice, bob, carol    int64
	birou, cosmin, dunga int64
}

func seedCatalog(t *testing.T, db *DB) catalogFixture {
	t.Helper()
	ctx := context.Background()
	var f catalogFixture
	f.alice = addUser(t, db, domain.Principal{Username: "alice", Active: true}, "pw")
	f.bob = addUser(t, db, domain.Principal{Username: "bob", Active: true}, "pw")
	f.carol = addUser(t, db, domain.Principal{Username: "carol", Active: true}, "pw")

	writeTx(t, db, func(w domain.CatalogWriter) (err error) {
		if f.birou, err = w.UpsertSet(ctx, domain.ShortcutSet{Name: "birou", Visibility: domain.General{}}, t0); err != nil {
			return err
		}
		if f.cosmin, err = w.UpsertSet(ctx, domain.ShortcutSet{
			Name:       "cosmin",
			Visibility: domain.Personal{OwnerID: f.alice, SharedWith: []int64{f.carol}},
		}, t0); err != nil {
			return err
		}
		f.dunga, err = w.UpsertSet(ctx, domain.ShortcutSet{Name: "dunga", Visibility: domain.Personal{OwnerID: f.bob}}, t0)
		return err
	})

	shortcuts := []struct {
		key  string
		sets []int64
		at   time.Time
	}{
		{"sal", []int64{f.birou}, t0.Add(1 * time.Minute)},
		{"adr", []int64{f.birou, f.cosmin}, t0.Add(2 * time.Minute)},
		{"sig", []int64{f.cosmin}, t0.Add(3 * time.Minute)},
		{"zzz", []int64{f.dunga}, t0.Add(4 * time.Minute)},
	}
	for _, s := range shortcuts {
		upsertShortcut(t, db, domain.Shortcut{Key: s.key, Value: s.key + "!"}, s.sets, s.at)
	}
	return f
}

func TestListSetsFilter(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	f := seedCatalog(t, db)

	names := func(sets []domain.ShortcutSet) []string {
		out := make([]string, 0, len(sets))
		for _, s := range sets {
			out = append(out, s.Name)
		}
		return out
	}

	tests := []struct {
		name   string
		filter domain.SetFilter
		want   []string
	}{
		{"all", domain.SetFilter{All: true}, []string{"birou", "cosmin", "dunga"}},
		{"general only", domain.SetFilter{IncludeGeneral: true}, []string{"birou"}},
		{"owner", domain.SetFilter{IncludeGeneral: true, MemberID: f.alice}, []string{"birou", "cosmin"}},
		{"shared", domain.SetFilter{IncludeGeneral: true, MemberID: f.carol}, []string{"birou", "cosmin"}},
		{"other owner", domain.SetFilter{MemberID: f.bob}, []string{"dunga"}},
		{"nothing", domain.SetFilter{}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sets, err := db.ListSets(ctx, tt.filter)
			if err != nil {
				t.Fatal(err)
			}
			got := names(sets)
			if len(got) != len(tt.want) {
				t.Fatalf("ListSets = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("ListSets = %v, want %v", got, tt.want)
				}
			}
		})
	}

	sets, _ := db.ListSets(ctx, domain.SetFilter{MemberID: f.carol})
	v, ok := sets[0].Visibility.(domain.Personal)
	if !ok || v.OwnerID != f.alice || len(v.SharedWith) != 1 || v.SharedWith[0] != f.carol {
		t.Errorf("cosmin visibility = %#v", sets[0].Visibility)
	}
}

func TestListShortcuts(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	f := seedCatalog(t, db)

	got, err := db.ListShortcuts(ctx, domain.ShortcutFilter{SetIDs: []int64{f.birou, f.cosmin}})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0].Key != "adr" || got[1].Key != "sal" || got[2].Key != "sig" {
		t.Fatalf("ListShortcuts keys = %v", got)
	}
	if names := got[0].SetNames(); len(names) != 2 || names[0] != "birou" || names[1] != "cosmin" {
		t.Errorf("adr sets = %v", names)
	}

	// Strictly after: the entry stamped exactly at the cutoff is excluded.
	cutoff := t0.Add(2 * time.Minute)
	got, err = db.ListShortcuts(ctx, domain.ShortcutFilter{SetIDs: []int64{f.birou, f.cosmin}, UpdatedAfter: &cutoff})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Key != "sig" {
		t.Errorf("ListShortcuts(updated_after) = %v", got)
	}

	got, err = db.ListShortcuts(ctx, domain.ShortcutFilter{})
	if err != nil || got == nil || len(got) != 0 {
		t.Errorf("ListShortcuts(no sets) = %v, %v", got, err)
	}

	counts, err := db.CountShortcuts(ctx, []int64{f.birou, f.cosmin, f.dunga})
	if err != nil {
		t.Fatal(err)
	}
	if counts[f.birou] != 2 || counts[f.cosmin] != 2 || counts[f.dunga] != 1 {
		t.Errorf("CountShortcuts = %v", counts)
	}
}

func TestUpsertShortcutTouchesOnlyOnChange(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	f := seedCatalog(t, db)

	id, changed := upsertShortcut(t, db, domain.Shortcut{Key: "sal", Value: "sal!"}, []int64{f.birou}, t0.Add(time.Hour))
	if changed {
		t.Fatal("unchanged upsert reported a write")
	}

	got, _ := db.ListShortcuts(ctx, domain.ShortcutFilter{SetIDs: []int64{f.birou}})
	for _, sc := range got {
		if sc.ID == id && !sc.UpdatedAt.Equal(t0.Add(time.Minute)) {
			t.Errorf("updated_at moved to %v on a no-op upsert", sc.UpdatedAt)
		}
	}

	later := t0.Add(2 * time.Hour)
	id2, changed := upsertShortcut(t, db, domain.Shortcut{Key: "sal", Value: "salut!", HTMLValue: "<b>salut</b>"}, []int64{f.birou}, later)
	if !changed || id2 != id {
		t.Fatalf("changed upsert = %d, %v", id2, changed)
	}
	got, _ = db.ListShortcuts(ctx, domain.ShortcutFilter{SetIDs: []int64{f.birou}, UpdatedAfter: &t0})
	var found bool
	for _, sc := range got {
		if sc.ID == id {
			found = true
			if !sc.UpdatedAt.Equal(later) || sc.Kind != domain.ContentRich || sc.Value != "salut!" {
				t.Errorf("after update = %+v", sc)
			}
		}
	}
	if !found {
		t.Error("updated shortcut missing")
	}
}

func TestUpsertShortcutPrefersExactMembership(t *testing.T) {
	db := openTestDB(t)
	f := seedCatalog(t, db)
	t1 := t0.Add(time.Hour)

	var sal int64
	for _, sc := range listKeys(t, db, f.birou) {
		if sc.Key == "sal" {
			sal = sc.ID
		}
	}
	solo, changed := upsertShortcut(t, db, domain.Shortcut{Key: "sal", Value: "solo"}, []int64{f.cosmin}, t1)
	if !changed || solo == sal {
		t.Fatalf("sal in cosmin = %d, %v; want a new row", solo, changed)
	}
	// Overlaps both rows and matches neither exactly: the oldest one grows.
	both, _ := upsertShortcut(t, db, domain.Shortcut{Key: "sal", Value: "both"}, []int64{f.birou, f.cosmin}, t1)
	if both != sal {
		t.Fatalf("sal in birou+cosmin = %d, want %d", both, sal)
	}

	later := t0.Add(2 * time.Hour)
	if id, changed := upsertShortcut(t, db, domain.Shortcut{Key: "sal", Value: "solo"}, []int64{f.cosmin}, later); id != solo || changed {
		t.Errorf("reupsert in cosmin = %d, %v; want %d unchanged", id, changed, solo)
	}
	if id, changed := upsertShortcut(t, db, domain.Shortcut{Key: "sal", Value: "both"}, []int64{f.cosmin, f.birou}, later); id != both || changed {
		t.Errorf("reupsert in birou+cosmin = %d, %v; want %d unchanged", id, changed, both)
	}
}

func TestPruneShortcuts(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	f := seedCatalog(t, db)

	byKey := func(setIDs ...int64) map[string]domain.Shortcut {
		out := map[string]domain.Shortcut{}
		for _, sc := range listKeys(t, db, setIDs...) {
			out[sc.Key] = sc
		}
		return out
	}
	before := byKey(f.birou, f.cosmin, f.dunga)

	later := t0.Add(time.Hour)
	var removed int64
	writeTx(t, db, func(w domain.CatalogWriter) (err error) {
		// Only sig survives in birou and cosmin. dunga is out of scope.
		removed, err = w.PruneShortcuts(ctx, []int64{f.birou, f.cosmin}, []int64{before["sig"].ID}, later)
		return err
	})
	if removed != 2 {
		t.Errorf("PruneShortcuts removed %d, want 2", removed)
	}

	after := byKey(f.birou, f.cosmin, f.dunga)
	if _, ok := after["sal"]; ok {
		t.Error("sal survived the prune")
	}
	if _, ok := after["adr"]; ok {
		t.Error("adr survived the prune")
	}
	if sc, ok := after["sig"]; !ok || !sc.UpdatedAt.Equal(before["sig"].UpdatedAt) {
		t.Errorf("sig = %+v, want untouched", sc)
	}
	if _, ok := after["zzz"]; !ok {
		t.Error("zzz in an unpruned set was removed")
	}

	var rows int
	_ = db.sql.QueryRowContext(ctx, `SELECT COUNT(*) FROM shortcuts`).Scan(&rows)
	if rows != 2 {
		t.Errorf("shortcuts table has %d rows, want 2", rows)
	}
}

func TestPruneShortcutsDetachesSharedRows(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	f := seedCatalog(t, db)

	later := t0.Add(time.Hour)
	writeTx(t, db, func(w domain.CatalogWriter) error {
		_, err := w.PruneShortcuts(ctx, []int64{f.birou}, nil, later)
		return err
	})

	got := listKeys(t, db, f.cosmin)
	for _, sc := range got {
		if sc.Key != "adr" {
			continue
		}
		if names := sc.SetNames(); len(names) != 1 || names[0] != "cosmin" {
			t.Errorf("adr sets = %v, want [cosmin]", names)
		}
		if !sc.UpdatedAt.Equal(later) {
			t.Errorf("adr updated_at = %v, want %v", sc.UpdatedAt, later)
		}
		return
	}
	t.Errorf("adr missing from cosmin: %v", got)
}

func TestWithinTxRollsBack(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	boom := errors.New("boom")
	err := db.WithinTx(ctx, func(w domain.CatalogWriter) error {
		if _, err := w.UpsertSet(ctx, domain.ShortcutSet{Name: "birou", Visibility: domain.General{}}, t0); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithinTx error = %v, want %v", err, boom)
	}
	sets, err := db.ListSets(ctx, domain.SetFilter{All: true})
	if err != nil || len(sets) != 0 {
		t.Errorf("ListSets after rollback = %v, %v", sets, err)
	}
}

func listKeys(t *testing.T, db *DB, setIDs ...int64) []domain.Shortcut {
	t.Helper()
	got, err := db.ListShortcuts(context.Background(), domain.ShortcutFilter{SetIDs: setIDs})
	if err != nil {
		t.Fatal(err)
	}
	return got
}

func TestSyncOverSQLite(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	f := seedCatalog(t, db)

	access := domain.NewAccessResolver(db)
	engine := domain.NewSyncQueryEngine(access, db)

	bob, _, _ := db.FindPrincipal(ctx, f.bob)
	got, err := engine.FetchShortcuts(ctx, *bob, domain.SyncRequest{SetNames: []string{"cosmin"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("bob read another user's personal set: %v", got)
	}

	carol, _, _ := db.FindPrincipal(ctx, f.carol)
	got, err = engine.FetchShortcuts(ctx, *carol, domain.SyncRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Errorf("carol sees %d shortcuts, want 3", len(got))
	}

	tokens := domain.NewTokenStore(db, db, 0, func() time.Time { return t0 })
	tok, err := tokens.Issue(ctx, *carol)
	if err != nil {
		t.Fatal(err)
	}
	p, _, err := tokens.Validate(ctx, tok.Key)
	if err != nil || p.ID != f.carol {
		t.Errorf("Validate = %+v, %v", p, err)
	}
}
