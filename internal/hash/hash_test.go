package hash

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashAndCheckPassword(t *testing.T) {
	h, err := HashPassword("secret_password")
	require.NoError(t, err)
	require.NotEmpty(t, h)
	require.NotEqual(t, "secret_password", h)

	require.True(t, CheckPassword(h, "secret_password"))
	require.False(t, CheckPassword(h, "wrong_password"))
}

func TestHashIsSalted(t *testing.T) {
	h1, err := HashPassword("same_password")
	require.NoError(t, err)
	h2, err := HashPassword("same_password")
	require.NoError(t, err)
	require.NotEqual(t, h1, h2)

	require.True(t, CheckPassword(h1, "same_password"))
	require.True(t, CheckPassword(h2, "same_password"))
}

func TestCheckPasswordMalformedHash(t *testing.T) {
	require.False(t, CheckPassword("not-a-bcrypt-hash", "password"))
	require.False(t, CheckPassword("", "password"))
}
