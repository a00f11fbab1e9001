package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("Secret123", bcrypt.MinCost)
	require.NoError(t, err)

	assert.NotEqual(t, "Secret123", hash)
	assert.True(t, VerifyPassword(hash, "Secret123"))
	assert.False(t, VerifyPassword(hash, "secret123"))
	assert.False(t, VerifyPassword("not-a-hash", "Secret123"))
}

func TestHashPassword_Salted(t *testing.T) {
	a, err := HashPassword("Secret123", bcrypt.MinCost)
	require.NoError(t, err)
	b, err := HashPassword("Secret123", bcrypt.MinCost)
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestHashPassword_Limits(t *testing.T) {
	_, err := HashPassword(strings.Repeat("a", MaxPasswordBytes+1), bcrypt.MinCost)
	assert.ErrorIs(t, err, ErrPasswordTooLong)

	_, err = HashPassword("Secret123", bcrypt.MinCost-1)
	assert.Error(t, err)

	_, err = HashPassword(strings.Repeat("a", MaxPasswordBytes), bcrypt.MinCost)
	assert.NoError(t, err)
}
