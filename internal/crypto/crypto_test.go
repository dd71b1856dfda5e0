package crypto_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctomkow/gluetube/internal/crypto"
)

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	blob, err := crypto.Encrypt("master-secret", "hello world")
	require.NoError(t, err)

	plain, err := crypto.Decrypt("master-secret", blob)
	require.NoError(t, err)
	assert.Equal(t, "hello world", plain)
}

func TestEncrypt_FreshSaltEachCall(t *testing.T) {
	a, err := crypto.Encrypt("secret", "same plaintext")
	require.NoError(t, err)
	b, err := crypto.Encrypt("secret", "same plaintext")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestDecrypt_WrongSecretFails(t *testing.T) {
	blob, err := crypto.Encrypt("right-secret", "payload")
	require.NoError(t, err)

	_, err = crypto.Decrypt("wrong-secret", blob)
	assert.Error(t, err)
}

func TestDecrypt_TruncatedBlobFails(t *testing.T) {
	_, err := crypto.Decrypt("secret", []byte("short"))
	assert.Error(t, err)
}

func TestDeriveKey_DeterministicPerSalt(t *testing.T) {
	salt, err := crypto.NewSalt()
	require.NoError(t, err)

	a := crypto.DeriveKey("secret", salt)
	b := crypto.DeriveKey("secret", salt)
	assert.Equal(t, a, b)

	other := crypto.DeriveKey("different", salt)
	assert.NotEqual(t, a, other)
}
