package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// stateBytes gives 256 bits of entropy; collisions are not checked against
// the handshake store.
const stateBytes = 32

// GenerateStateToken returns a random hex string suitable for an OAuth state
// parameter.
func GenerateStateToken() (string, error) {
	b := make([]byte, stateBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRandomness, err)
	}
	return hex.EncodeToString(b), nil
}
