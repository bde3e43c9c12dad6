package otp

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// GenerateBackupCodes produces count independent one-time recovery codes,
// each drawn from length/2 bytes of crypto/rand and formatted as fixed-length
// uppercase hex. length must be even.
func GenerateBackupCodes(count, length int) ([]string, error) {
	codes := make([]string, 0, count)
	buf := make([]byte, length/2)
	for i := 0; i < count; i++ {
		if _, err := rand.Read(buf); err != nil {
			return nil, err
		}
		codes = append(codes, strings.ToUpper(hex.EncodeToString(buf)))
	}
	return codes, nil
}

// HashBackupCode returns the hex SHA-256 of a canonicalized code. Only hashes
// are ever persisted.
func HashBackupCode(code string) string {
	sum := sha256.Sum256([]byte(CanonicalizeBackupCode(code)))
	return hex.EncodeToString(sum[:])
}

// CanonicalizeBackupCode strips whitespace and separators and upcases, so user
// input survives copy/paste formatting.
func CanonicalizeBackupCode(code string) string {
	s := strings.ToUpper(strings.TrimSpace(code))
	s = strings.ReplaceAll(s, "-", "")
	s = strings.ReplaceAll(s, " ", "")
	return s
}
