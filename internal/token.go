package internal

import (
	"crypto/sha256"
)

// HashRefreshToken reduces a refresh token string to the 32-byte digest that
// gets persisted in the session record. The raw token never touches Redis.
func HashRefreshToken(token string) [32]byte {
	return sha256.Sum256([]byte(token))
}
