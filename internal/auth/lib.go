package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"math/big"
)

const codeSpace = 1_000_000

// NewCode draws a uniform one-time code from [0, 1000000) and zero-pads it
// to six digits.
func NewCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(codeSpace))
	if err != nil {
		return "", fmt.Errorf("auth.NewCode: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// CodesEqual is exact string equality in constant time. "012345" and
// "12345" are different codes.
func CodesEqual(expected, submitted string) bool {
	return subtle.ConstantTimeCompare([]byte(expected), []byte(submitted)) == 1
}
