package solana

import (
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

const PublicKeyLength = 32

// ValidatePublicKey checks that s is a base58 encoded 32 byte key.
func ValidatePublicKey(s string) error {
	if s == "" {
		return fmt.Errorf("public key is empty")
	}
	raw, err := base58.Decode(s)
	if err != nil {
		return fmt.Errorf("public key %q is not valid base58: %w", s, err)
	}
	if len(raw) != PublicKeyLength {
		return fmt.Errorf("public key %q decodes to %d bytes, want %d", s, len(raw), PublicKeyLength)
	}
	return nil
}

// IsOnCurve reports whether the key is an ed25519 point. Program derived addresses are not.
func IsOnCurve(s string) bool {
	raw, err := base58.Decode(s)
	if err != nil || len(raw) != PublicKeyLength {
		return false
	}
	_, err = new(edwards25519.Point).SetBytes(raw)
	return err == nil
}
