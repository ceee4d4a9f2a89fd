package security

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword_VerifyRoundTrip(t *testing.T) {
	hash, err := HashPassword("Aa1!aaaa")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(hash), "$argon2id$"))

	ok, err := VerifyPassword("Aa1!aaaa", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = VerifyPassword("wrong-password", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashPassword_SaltedPerCall(t *testing.T) {
	first, err := HashPassword("Aa1!aaaa")
	require.NoError(t, err)
	second, err := HashPassword("Aa1!aaaa")
	require.NoError(t, err)

	// Same input, different salt, different encoding.
	assert.NotEqual(t, string(first), string(second))
}

func TestVerifyPassword_MalformedHash(t *testing.T) {
	_, err := VerifyPassword("whatever", []byte("not-an-encoded-hash"))
	assert.Error(t, err)
}
