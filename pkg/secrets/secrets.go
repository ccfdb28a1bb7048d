package secrets

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// TemporaryPasswordBytes is the entropy of a generated temporary password.
const TemporaryPasswordBytes = 16

// TemporaryPassword returns a random hex encoded password. The value must
// never be logged; it only travels to the identity provider.
func TemporaryPassword() (string, error) {
	buf := make([]byte, TemporaryPasswordBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("could not generate temporary password: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
