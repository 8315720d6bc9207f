package signing

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// WriteKeyPair generates a signing keypair and writes shell exports for
// the private seed and the public key. A nil reader uses crypto/rand.
func WriteKeyPair(out io.Writer, reader io.Reader) error {
	if out == nil {
		return errors.New("output is required")
	}
	if reader == nil {
		reader = rand.Reader
	}
	pub, priv, err := ed25519.GenerateKey(reader)
	if err != nil {
		return fmt.Errorf("generate signing key: %w", err)
	}
	if _, err := fmt.Fprintf(out, "export ENTROPY_SIGNING_KEY=%s\n", hex.EncodeToString(priv.Seed())); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(out, "export ENTROPY_PUBLIC_KEY=%s\n", hex.EncodeToString(pub)); err != nil {
		return err
	}
	return nil
}
