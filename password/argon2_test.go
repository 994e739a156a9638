package password

import (
	"errors"
	"strings"
	"testing"
)

func testParams() Params {
	return Params{
		MemoryKB:    8 * 1024,
		Iterations:  1,
		Parallelism: 1,
		SaltBytes:   16,
		KeyBytes:    16,
	}
}

func newTestHasher(t *testing.T, params Params) *Hasher {
	t.Helper()

	h, err := NewHasher(params)
	if err != nil {
		t.Fatalf("NewHasher failed: %v", err)
	}
	return h
}

func TestHashAndVerify(t *testing.T) {
	h := newTestHasher(t, testParams())

	encoded, err := h.Hash("correct horse battery staple")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$") {
		t.Fatalf("unexpected hash format: %s", encoded)
	}

	ok, err := h.Verify("correct horse battery staple", encoded)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatal("correct password did not verify")
	}

	ok, err = h.Verify("wrong password", encoded)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Fatal("wrong password verified")
	}
}

func TestHashUsesFreshSalt(t *testing.T) {
	h := newTestHasher(t, testParams())

	first, err := h.Hash("secret")
	if err != nil {
		t.Fatal(err)
	}
	second, err := h.Hash("secret")
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Fatal("two hashes of the same password are identical")
	}
}

func TestVerifyMalformedHash(t *testing.T) {
	h := newTestHasher(t, testParams())

	cases := []string{
		"",
		"not a hash",
		"$argon2id$v=19$m=8192,t=1,p=1$short",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$a2V5a2V5a2V5a2V5a2V5",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$a2V5a2V5a2V5a2V5a2V5",
		"$argon2id$v=19$m=8192,t=1$c2FsdHNhbHRzYWx0c2FsdA$a2V5a2V5a2V5a2V5a2V5",
		"$argon2id$v=19$m=8192,t=1,p=1$!!!$a2V5a2V5a2V5a2V5a2V5",
	}
	for _, encoded := range cases {
		if _, err := h.Verify("secret", encoded); !errors.Is(err, ErrMalformedHash) {
			t.Errorf("Verify(%q): got %v, want ErrMalformedHash", encoded, err)
		}
	}
}

func TestNeedsRehash(t *testing.T) {
	weak := newTestHasher(t, testParams())
	encoded, err := weak.Hash("secret")
	if err != nil {
		t.Fatal(err)
	}

	same, err := weak.NeedsRehash(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if same {
		t.Fatal("hash at current parameters flagged for rehash")
	}

	strongParams := testParams()
	strongParams.Iterations = 3
	strong := newTestHasher(t, strongParams)

	upgrade, err := strong.NeedsRehash(encoded)
	if err != nil {
		t.Fatal(err)
	}
	if !upgrade {
		t.Fatal("weaker hash not flagged for rehash")
	}
}

func TestNewHasherRejectsWeakParams(t *testing.T) {
	params := testParams()
	params.MemoryKB = 1024
	if _, err := NewHasher(params); err == nil {
		t.Fatal("expected error for low memory parameter")
	}

	params = testParams()
	params.SaltBytes = 8
	if _, err := NewHasher(params); err == nil {
		t.Fatal("expected error for short salt")
	}
}
