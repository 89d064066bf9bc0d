package seed

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to create test YAML file: %v", err)
	}
	return path
}

func TestLoaderLoad(t *testing.T) {
	path := writeSeed(t, `
users:
  - username: alice
    email: alice@example.com
    password_hash: argon2id$v=19$m=1024,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaA
sets:
  - name: birou
    type: general
  - name: cosmin
    type: personal
    owner: alice
shortcuts:
  - key: "`+"`"+`sal"
    value: Salut!
    sets: [birou]
`)

	f, err := NewLoader(path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(f.Users) != 1 || len(f.Sets) != 2 || len(f.Shortcuts) != 1 {
		t.Fatalf("Load() = %+v", f)
	}
	if !strings.HasPrefix(f.Users[0].PasswordHash, "argon2id$v=19$m=1024") {
		t.Errorf("password hash mangled: %q", f.Users[0].PasswordHash)
	}
	if f.Shortcuts[0].Key != "`sal" {
		t.Errorf("raw key = %q, loader must not normalize", f.Shortcuts[0].Key)
	}
}

func TestLoaderExpandsEnvironment(t *testing.T) {
	t.Setenv("TEXTSYNC_TEST_SEED_PASSWORD", "hunter2")
	path := writeSeed(t, `
users:
  - username: alice
    password: "${TEXTSYNC_TEST_SEED_PASSWORD}"
`)

	f, err := NewLoader(path).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if f.Users[0].Password != "hunter2" {
		t.Errorf("password = %q, want expanded value", f.Users[0].Password)
	}
}

func TestLoaderRejectsUnsetVariable(t *testing.T) {
	path := writeSeed(t, `
users:
  - username: alice
    password: "${TEXTSYNC_TEST_SEED_UNSET_VARIABLE}"
`)

	if _, err := NewLoader(path).Load(); err == nil {
		t.Error("Load() should fail on an unset variable")
	}
}

func TestLoaderRejectsUnknownFields(t *testing.T) {
	path := writeSeed(t, `
users:
  - username: alice
    pasword: typo
`)

	if _, err := NewLoader(path).Load(); err == nil {
		t.Error("Load() should reject unknown fields")
	}
}

func TestLoaderLoadEmptyFile(t *testing.T) {
	f, err := NewLoader(writeSeed(t, "")).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(f.Users)+len(f.Sets)+len(f.Shortcuts) != 0 {
		t.Errorf("Load() = %+v, want empty", f)
	}
}

func TestLoaderLoadFileNotFound(t *testing.T) {
	if _, err := NewLoader("/nonexistent/seed.yaml").Load(); err == nil {
		t.Error("Load() should return error for nonexistent file")
	}
}
