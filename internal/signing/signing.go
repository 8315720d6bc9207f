// Package signing holds the Ed25519 plumbing for beacon records: key
// parsing, signing the commitment hash, and fetching the public key used
// for verification.
package signing

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoPrivateKey = errors.New("signing: no private key supplied")
	ErrInvalidKey   = errors.New("signing: invalid key")
)

// ParsePrivateKey accepts either a hex-encoded 32-byte seed or a hex-encoded
// 64-byte private key.
func ParsePrivateKey(s string) (ed25519.PrivateKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrNoPrivateKey
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: private key is not hex: %v", ErrInvalidKey, err)
	}
	switch len(raw) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(raw), nil
	case ed25519.PrivateKeySize:
		key := ed25519.PrivateKey(raw)
		// The trailing half must be the public key derived from the seed.
		derived := ed25519.NewKeyFromSeed(key.Seed())
		if !key.Equal(derived) {
			return nil, fmt.Errorf("%w: private key public half does not match seed", ErrInvalidKey)
		}
		return key, nil
	default:
		return nil, fmt.Errorf("%w: private key must be %d or %d bytes, got %d",
			ErrInvalidKey, ed25519.SeedSize, ed25519.PrivateKeySize, len(raw))
	}
}

// ParsePublicKey decodes a hex-encoded 32-byte public key.
func ParsePublicKey(s string) (ed25519.PublicKey, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: public key is not hex: %v", ErrInvalidKey, err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: public key must be %d bytes, got %d", ErrInvalidKey, ed25519.PublicKeySize, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}

// Sign signs the UTF-8 bytes of message and returns the hex signature.
func Sign(key ed25519.PrivateKey, message string) (string, error) {
	if len(key) == 0 {
		return "", ErrNoPrivateKey
	}
	if len(key) != ed25519.PrivateKeySize {
		return "", fmt.Errorf("%w: private key must be %d bytes, got %d", ErrInvalidKey, ed25519.PrivateKeySize, len(key))
	}
	return hex.EncodeToString(ed25519.Sign(key, []byte(message))), nil
}

// Verify reports whether sigHex is a valid signature of message under pub.
// Malformed keys or signatures verify as false.
func Verify(pub ed25519.PublicKey, message, sigHex string) bool {
	if len(pub) != ed25519.PublicKeySize {
		return false
	}
	sig, err := hex.DecodeString(sigHex)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(pub, []byte(message), sig)
}

// PublicKeyHex returns the hex encoding of the public half of key.
func PublicKeyHex(key ed25519.PrivateKey) string {
	return hex.EncodeToString(key.Public().(ed25519.PublicKey))
}
