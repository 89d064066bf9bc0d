package auth

import "testing"

func testParams() Argon2Params {
	p := DefaultArgon2Params()
	p.Memory = 8 * 1024
	p.Iterations = 1
	p.Parallelism = 1
	return p
}

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("s3cret", testParams())
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}

	ok, err := VerifyPassword("s3cret", hash)
	if err != nil || !ok {
		t.Fatalf("VerifyPassword(correct) = %v, %v", ok, err)
	}
	ok, err = VerifyPassword("wrong", hash)
	if err != nil || ok {
		t.Fatalf("VerifyPassword(wrong) = %v, %v", ok, err)
	}
}

func TestVerifyPasswordRejectsGarbage(t *testing.T) {
	tests := []string{
		"plain",
		"bcrypt$v=19$m=1,t=1,p=1$c2FsdA$aGFzaA",
		"argon2id$v=18$m=1,t=1,p=1$c2FsdA$aGFzaA",
		"argon2id$v=19$m=x,t=1,p=1$c2FsdA$aGFzaA",
	}
	for _, encoded := range tests {
		if ok, err := VerifyPassword("pw", encoded); ok || err == nil {
			t.Errorf("VerifyPassword(%q) = %v, %v; want false with error", encoded, ok, err)
		}
	}
	if ok, err := VerifyPassword("", "anything"); ok || err != nil {
		t.Errorf("empty password should be rejected without error")
	}
}

func TestNewTokenKey(t *testing.T) {
	a, err := NewTokenKey()
	if err != nil {
		t.Fatalf("NewTokenKey: %v", err)
	}
	b, _ := NewTokenKey()

	if len(a) != 40 {
		t.Errorf("len(key) = %d, want 40", len(a))
	}
	if !IsWellFormedKey(a) {
		t.Errorf("IsWellFormedKey(%q) = false", a)
	}
	if a == b {
		t.Error("two generated keys are identical")
	}
	if IsWellFormedKey("zz" + a[2:]) {
		t.Error("non-hex key reported well formed")
	}
}
