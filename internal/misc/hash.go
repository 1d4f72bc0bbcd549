package misc

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// SumSHA256 signs value with key; the result travels in the HashSHA256 header.
func SumSHA256(value []byte, key string) string {
	buf := make([]byte, 0, len(value)+len(key))
	buf = append(buf, value...)
	buf = append(buf, key...)
	sum := sha256.Sum256(buf)
	return hex.EncodeToString(sum[:])
}

// VerifySHA256 reports whether got is the signature of value under key.
func VerifySHA256(value []byte, key, got string) bool {
	want := SumSHA256(value, key)
	return subtle.ConstantTimeCompare([]byte(strings.ToLower(strings.TrimSpace(got))), []byte(want)) == 1
}
