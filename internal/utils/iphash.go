package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashIP reduces a requester address to a salted SHA-256 digest. Raw
// addresses are never persisted; the hash is only ever compared for equality
// (pending-request dedup and download logging).
func HashIP(ip, salt string) string {
	sum := sha256.Sum256([]byte(salt + ip))
	return hex.EncodeToString(sum[:])
}
