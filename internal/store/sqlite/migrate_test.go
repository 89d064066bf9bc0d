package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
)

func openRaw(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "migrate.db"))
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func appliedMigrations(t *testing.T, db *sql.DB) []string {
	t.Helper()
	rows, err := db.Query(`SELECT name FROM schema_migrations ORDER BY name`)
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			t.Fatal(err)
		}
		names = append(names, n)
	}
	return names
}

func TestMigrateAppliesPendingOnce(t *testing.T) {
	ctx := context.Background()
	db := openRaw(t)

	fsys := fstest.MapFS{
		"m/0002_notes.sql":  {Data: []byte(`ALTER TABLE things ADD COLUMN note TEXT NOT NULL DEFAULT '';`)},
		"m/0001_things.sql": {Data: []byte(`CREATE TABLE things (id INTEGER PRIMARY KEY);`)},
		"m/README.md":       {Data: []byte("not a migration")},
	}
	if err := migrate(ctx, db, fsys, "m"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := migrate(ctx, db, fsys, "m"); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	if got := strings.Join(appliedMigrations(t, db), ","); got != "0001_things.sql,0002_notes.sql" {
		t.Errorf("applied = %s", got)
	}
	if _, err := db.Exec(`INSERT INTO things(id, note) VALUES(1, 'x')`); err != nil {
		t.Errorf("schema not in place: %v", err)
	}

	fsys["m/0003_tags.sql"] = &fstest.MapFile{Data: []byte(`CREATE TABLE tags (name TEXT PRIMARY KEY);`)}
	if err := migrate(ctx, db, fsys, "m"); err != nil {
		t.Fatalf("migrate with a new file: %v", err)
	}
	if got := len(appliedMigrations(t, db)); got != 3 {
		t.Errorf("applied %d migrations, want 3", got)
	}
}

func TestMigrateRejectsEditedMigration(t *testing.T) {
	ctx := context.Background()
	db := openRaw(t)

	fsys := fstest.MapFS{"m/0001_things.sql": {Data: []byte(`CREATE TABLE things (id INTEGER PRIMARY KEY);`)}}
	if err := migrate(ctx, db, fsys, "m"); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	fsys["m/0001_things.sql"] = &fstest.MapFile{Data: []byte(`CREATE TABLE things (id INTEGER PRIMARY KEY, name TEXT);`)}
	err := migrate(ctx, db, fsys, "m")
	if err == nil || !strings.Contains(err.Error(), "changed after it was applied") {
		t.Fatalf("migrate after edit = %v, want a changed-migration error", err)
	}
}

func TestMigrateRollsBackFailedMigration(t *testing.T) {
	ctx := context.Background()
	db := openRaw(t)

	fsys := fstest.MapFS{"m/0001_broken.sql": {Data: []byte(`CREATE TABLE half (id INTEGER); INSERT INTO nowhere VALUES(1);`)}}
	if err := migrate(ctx, db, fsys, "m"); err == nil {
		t.Fatal("migrate should fail on a broken migration")
	}
	if got := appliedMigrations(t, db); len(got) != 0 {
		t.Errorf("applied = %v, want none", got)
	}
	var n int
	_ = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE name = 'half'`).Scan(&n)
	if n != 0 {
		t.Error("table from the failed migration survived the rollback")
	}
}
