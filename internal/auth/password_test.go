package auth

import (
	"strings"
	"testing"

	"github.com/desertthunder/tunegate/internal/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordHasher(t *testing.T) {
	h := NewPasswordHasher(bcrypt.MinCost)

	t.Run("round trip", func(t *testing.T) {
		hash, err := h.Hash("hunter2")
		require.NoError(t, err)

		assert.True(t, h.Verify("hunter2", hash))
		assert.False(t, h.Verify("hunter3", hash))
	})

	t.Run("salts every hash", func(t *testing.T) {
		a, err := h.Hash("same-password")
		require.NoError(t, err)
		b, err := h.Hash("same-password")
		require.NoError(t, err)

		assert.NotEqual(t, a, b)
		assert.True(t, strings.HasPrefix(a, "$2a$"))
	})

	t.Run("encodes cost", func(t *testing.T) {
		hash, err := h.Hash("pw")
		require.NoError(t, err)

		cost, err := bcrypt.Cost([]byte(hash))
		require.NoError(t, err)
		assert.Equal(t, bcrypt.MinCost, cost)
	})

	t.Run("malformed hash never matches", func(t *testing.T) {
		assert.False(t, h.Verify("pw", "not-a-bcrypt-hash"))
		assert.False(t, h.Verify("pw", ""))
	})

	t.Run("rejects empty password", func(t *testing.T) {
		_, err := h.Hash("")
		assert.ErrorIs(t, err, shared.ErrInvalidPassword)
	})

	t.Run("rejects passwords over 72 bytes", func(t *testing.T) {
		_, err := h.Hash(strings.Repeat("a", MaxPasswordBytes+1))
		assert.ErrorIs(t, err, shared.ErrInvalidPassword)

		_, err = h.Hash(strings.Repeat("a", MaxPasswordBytes))
		assert.NoError(t, err)
	})

	t.Run("VerifyNone", func(t *testing.T) {
		assert.NotPanics(t, func() { h.VerifyNone("anything") })
	})
}

func TestNewPasswordHasherCost(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewPasswordHasher(0).cost)
	assert.Equal(t, bcrypt.DefaultCost, NewPasswordHasher(99).cost)
	assert.Equal(t, 12, NewPasswordHasher(12).cost)
}
