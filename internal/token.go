package internal

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashToken returns the hex SHA-256 digest used as the revocation ledger
// key for a bearer token. Raw tokens never reach the ledger backend.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
