package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// NewOpaqueToken returns a random dash-less token and the hash under which it is stored.
// Only the hash is persisted; the plain value goes out by mail or in a response body.
func NewOpaqueToken() (plain, hash string) {
	plain = strings.ReplaceAll(uuid.NewString(), "-", "")
	return plain, HashToken(plain)
}

func HashToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}
