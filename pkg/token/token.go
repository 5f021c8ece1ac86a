package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// Size is the number of random bytes behind every access and slot token.
const Size = 32

// New returns Size random bytes hex encoded.
func New() (string, error) {
	buf := make([]byte, Size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Valid reports whether raw has the shape of a token produced by New.
func Valid(raw string) bool {
	if len(raw) != Size*2 {
		return false
	}
	_, err := hex.DecodeString(raw)
	return err == nil
}
