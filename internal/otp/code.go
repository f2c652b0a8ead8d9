package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// CodeLength is the number of digits in a verification code.
const CodeLength = 6

var codeSpace = big.NewInt(1000000)

// GenerateCode returns a uniformly random 6-digit code, zero-padded.
func GenerateCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpace)
	if err != nil {
		return "", fmt.Errorf("failed to generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
