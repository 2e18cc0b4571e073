package token

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// MaxCodeLength bounds NewNumericCode so 10^length stays well inside big.Int
// territory users can actually type.
const MaxCodeLength = 12

// NewNumericCode returns a uniformly random string of length decimal digits,
// zero-padded (e.g. "004213").
func NewNumericCode(length int) (string, error) {
	if length <= 0 || length > MaxCodeLength {
		return "", fmt.Errorf("code length %d out of range 1..%d", length, MaxCodeLength)
	}
	upper := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)
	n, err := rand.Int(rand.Reader, upper)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	s := n.String()
	return strings.Repeat("0", length-len(s)) + s, nil
}
