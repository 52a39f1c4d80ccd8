package util

import (
	"crypto/sha256"
	"encoding/hex"
)

// Pseudonymize returns the lowercase hex SHA-256 of s. Emails and customer
// names are only ever persisted in this form.
func Pseudonymize(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
