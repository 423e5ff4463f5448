package crypto

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func TestNewToken(t *testing.T) {
	tests := []struct {
		name      string
		bytes     int
		wantBytes int
	}{
		{name: "zero uses session length", bytes: 0, wantBytes: SessionTokenBytes},
		{name: "negative uses session length", bytes: -4, wantBytes: SessionTokenBytes},
		{name: "reset token length", bytes: ResetTokenBytes, wantBytes: ResetTokenBytes},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			// Act
			pair, err := NewToken(test.bytes)

			// Assert
			if err != nil {
				t.Fatalf("NewToken() error = %v", err)
			}
			raw, err := base64.RawURLEncoding.DecodeString(pair.Token)
			if err != nil {
				t.Fatalf("token is not raw url base64: %v", err)
			}
			if len(raw) != test.wantBytes {
				t.Errorf("token bytes = %d, want %d", len(raw), test.wantBytes)
			}
			if len(pair.Hash) != 64 {
				t.Errorf("hash length = %d, want 64", len(pair.Hash))
			}
			if pair.Hash != HashToken(pair.Token) {
				t.Error("hash does not match HashToken(token)")
			}
		})
	}
}

func TestNewToken_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		pair, err := NewToken(0)
		if err != nil {
			t.Fatal(err)
		}
		if seen[pair.Token] {
			t.Fatalf("duplicate token after %d iterations", i)
		}
		seen[pair.Token] = true
	}
}

func TestVerifyToken(t *testing.T) {
	pair, _ := NewToken(0)

	if ok, err := VerifyToken(pair.Token, pair.Hash); err != nil || !ok {
		t.Errorf("VerifyToken(valid) = %v, %v", ok, err)
	}
	if ok, _ := VerifyToken(pair.Token+"x", pair.Hash); ok {
		t.Error("VerifyToken(tampered) = true")
	}
	if _, err := VerifyToken("", pair.Hash); !errors.Is(err, ErrEmptyToken) {
		t.Errorf("VerifyToken(empty) err = %v", err)
	}
}

func TestNewID(t *testing.T) {
	id, err := NewID()
	if err != nil {
		t.Fatal(err)
	}
	if len(id) != idSize {
		t.Errorf("len = %d, want %d", len(id), idSize)
	}
	for _, r := range id {
		if !strings.ContainsRune(idAlphabet, r) {
			t.Errorf("unexpected character %q", r)
		}
	}
	if _, err := NewIDSize(0); !errors.Is(err, ErrIDSize) {
		t.Errorf("NewIDSize(0) err = %v", err)
	}
}

// Requirement: argon2id hashes verify the right password only and survive across instances.
func TestArgon2_HashVerify(t *testing.T) {
	hasher := &Argon2{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

	hash, err := hasher.Hash("correct horse")
	if err != nil {
		t.Fatalf("Hash() error = %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Errorf("unexpected encoding %q", hash)
	}

	other, _ := hasher.Hash("correct horse")
	if other == hash {
		t.Error("two hashes of the same password share a salt")
	}

	tests := []struct {
		name    string
		attempt string
		want    bool
	}{
		{name: "right password", attempt: "correct horse", want: true},
		{name: "wrong password", attempt: "battery staple", want: false},
		{name: "empty password", attempt: "", want: false},
	}
	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			ok, err := NewArgon2().Verify(test.attempt, hash)
			if err != nil {
				t.Fatalf("Verify() error = %v", err)
			}
			if ok != test.want {
				t.Errorf("Verify() = %v, want %v", ok, test.want)
			}
		})
	}
}

func TestArgon2_VerifyRejectsMalformedHashes(t *testing.T) {
	for _, bad := range []string{
		"",
		"plaintext",
		"$argon2i$v=19$m=65536,t=3,p=2$c2FsdA$a2V5",
		"$argon2id$v=18$m=65536,t=3,p=2$c2FsdA$a2V5",
		"$argon2id$v=19$m=x,t=3,p=2$c2FsdA$a2V5",
		"$argon2id$v=19$m=65536,t=3,p=2$!!$a2V5",
	} {
		if _, err := NewArgon2().Verify("pw", bad); !errors.Is(err, ErrInvalidHash) {
			t.Errorf("Verify(%q) err = %v, want ErrInvalidHash", bad, err)
		}
	}
}
