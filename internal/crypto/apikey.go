package crypto

import (
	"crypto/rand"
	"encoding/hex"
)

const APIKeyPrefix = "AQ-"

// NewAPIKey returns "AQ-" followed by 32 lowercase hex characters drawn
// from crypto/rand.
func NewAPIKey() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return APIKeyPrefix + hex.EncodeToString(buf), nil
}
