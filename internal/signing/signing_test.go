package signing

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
)

func testKey(t *testing.T, fill byte) ed25519.PrivateKey {
	t.Helper()
	return ed25519.NewKeyFromSeed(bytes.Repeat([]byte{fill}, ed25519.SeedSize))
}

func TestParsePrivateKey_Seed(t *testing.T) {
	seed := bytes.Repeat([]byte{7}, ed25519.SeedSize)
	key, err := ParsePrivateKey(hex.EncodeToString(seed))
	if err != nil {
		t.Fatalf("ParsePrivateKey() error: %v", err)
	}
	if !key.Equal(ed25519.NewKeyFromSeed(seed)) {
		t.Error("seed should expand to the matching private key")
	}
}

func TestParsePrivateKey_FullKey(t *testing.T) {
	want := testKey(t, 3)
	key, err := ParsePrivateKey(hex.EncodeToString(want))
	if err != nil {
		t.Fatalf("ParsePrivateKey() error: %v", err)
	}
	if !key.Equal(want) {
		t.Error("full key should round-trip")
	}
}

func TestParsePrivateKey_Errors(t *testing.T) {
	tampered := append(ed25519.PrivateKey(nil), testKey(t, 3)...)
	tampered[40] ^= 0xff

	tests := []struct {
		name string
		in   string
		want error
	}{
		{"empty", "", ErrNoPrivateKey},
		{"whitespace", "   ", ErrNoPrivateKey},
		{"not hex", "zz", ErrInvalidKey},
		{"wrong length", "abcd", ErrInvalidKey},
		{"mismatched public half", hex.EncodeToString(tampered), ErrInvalidKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParsePrivateKey(tt.in); !errors.Is(err, tt.want) {
				t.Errorf("ParsePrivateKey(%q) error = %v, want %v", tt.in, err, tt.want)
			}
		})
	}
}

func TestParsePublicKey(t *testing.T) {
	key := testKey(t, 1)
	pub, err := ParsePublicKey(PublicKeyHex(key))
	if err != nil {
		t.Fatalf("ParsePublicKey() error: %v", err)
	}
	if !pub.Equal(key.Public()) {
		t.Error("public key should round-trip")
	}
	if _, err := ParsePublicKey("abcd"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("short key error = %v, want ErrInvalidKey", err)
	}
}

func TestSignVerify_RoundTrip(t *testing.T) {
	key := testKey(t, 1)
	other := testKey(t, 2)
	msg := strings.Repeat("ab", 32)

	sig, err := Sign(key, msg)
	if err != nil {
		t.Fatalf("Sign() error: %v", err)
	}
	if len(sig) != ed25519.SignatureSize*2 {
		t.Errorf("signature hex length = %d, want %d", len(sig), ed25519.SignatureSize*2)
	}

	pub := key.Public().(ed25519.PublicKey)
	if !Verify(pub, msg, sig) {
		t.Fatal("valid signature should verify")
	}
	if Verify(other.Public().(ed25519.PublicKey), msg, sig) {
		t.Error("signature should not verify under another key")
	}
	if Verify(pub, msg[:len(msg)-1]+"c", sig) {
		t.Error("signature should not verify for a mutated message")
	}
	if Verify(pub, msg, "zz") {
		t.Error("malformed signature should not verify")
	}
	if Verify(nil, msg, sig) {
		t.Error("nil key should not verify")
	}
}

func TestSign_Deterministic(t *testing.T) {
	key := testKey(t, 9)
	a, _ := Sign(key, "hash")
	b, _ := Sign(key, "hash")
	if a != b {
		t.Error("Ed25519 signatures should be deterministic")
	}
}

func TestSign_NoKey(t *testing.T) {
	if _, err := Sign(nil, "hash"); !errors.Is(err, ErrNoPrivateKey) {
		t.Errorf("Sign(nil) error = %v, want ErrNoPrivateKey", err)
	}
}

func TestWriteKeyPair(t *testing.T) {
	if err := WriteKeyPair(nil, nil); err == nil {
		t.Fatal("expected error when output is nil")
	}

	buf := &bytes.Buffer{}
	if err := WriteKeyPair(buf, bytes.NewReader(bytes.Repeat([]byte{1}, 64))); err != nil {
		t.Fatalf("WriteKeyPair() error: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	seed := strings.TrimPrefix(lines[0], "export ENTROPY_SIGNING_KEY=")
	pub := strings.TrimPrefix(lines[1], "export ENTROPY_PUBLIC_KEY=")

	key, err := ParsePrivateKey(seed)
	if err != nil {
		t.Fatalf("generated seed does not parse: %v", err)
	}
	if PublicKeyHex(key) != pub {
		t.Error("exported public key should match the seed")
	}
}
