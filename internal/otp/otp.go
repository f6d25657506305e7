package otp

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// Generate returns a numeric one-time passcode of the given length, drawn
// from a cryptographically secure source. Leading zeros are preserved.
func Generate(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("otp length must be positive, got %d", length)
	}

	digits := make([]byte, length)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("failed to read random digit: %w", err)
		}
		digits[i] = byte('0' + n.Int64())
	}

	return string(digits), nil
}
