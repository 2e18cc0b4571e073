package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNumericCode_LengthAndAlphabet(t *testing.T) {
	for _, length := range []int{1, 4, 6, 8, MaxCodeLength} {
		code, err := NewNumericCode(length)
		require.NoError(t, err)
		assert.Len(t, code, length)
		for _, r := range code {
			assert.True(t, r >= '0' && r <= '9', "unexpected rune %q in %q", r, code)
		}
	}
}

func TestNewNumericCode_RejectsBadLength(t *testing.T) {
	_, err := NewNumericCode(0)
	assert.Error(t, err)
	_, err = NewNumericCode(MaxCodeLength + 1)
	assert.Error(t, err)
}

func TestNewNumericCode_NotConstant(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		code, err := NewNumericCode(6)
		require.NoError(t, err)
		seen[code] = struct{}{}
	}
	assert.Greater(t, len(seen), 1)
}
