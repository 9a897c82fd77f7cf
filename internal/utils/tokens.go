package utils

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"math/big"
)

// Share and request identifiers are short capability tokens: knowing one is
// what authorizes acting on it, so they must be unguessable.
const (
	secretAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	secretLength   = 12
)

// GenerateSecret returns a 12-character alphanumeric token drawn from
// crypto/rand. 62^12 is roughly 71 bits of entropy.
func GenerateSecret() (string, error) {
	buf := make([]byte, secretLength)
	max := big.NewInt(int64(len(secretAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to generate random token: %w", err)
		}
		buf[i] = secretAlphabet[n.Int64()]
	}
	return string(buf), nil
}

// GenerateSessionKey returns a URL-safe bearer secret for upload sessions,
// 48 random bytes encoded without padding.
func GenerateSessionKey() (string, error) {
	bytes := make([]byte, 48)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate session key: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(bytes), nil
}
