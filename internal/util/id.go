package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a short hex id for request correlation.
func NewID() string {
	return randomHex(12)
}

// NewSessionToken returns an unguessable hex token for session cookies.
func NewSessionToken() string {
	return randomHex(32)
}

func randomHex(n int) string {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
