package verification

import (
	"crypto/rand"
	"fmt"
)

// codeAlphabet excludes visually ambiguous characters (I, O, 0, 1) so the
// code survives being retyped from a profile bio.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// CodeLength is the fixed verification code length.
const CodeLength = 4

// GenerateCode produces a random verification code over the restricted
// alphabet using crypto/rand.
func GenerateCode() (string, error) {
	buf := make([]byte, CodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}
