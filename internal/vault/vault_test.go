package vault

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"fiscal-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "0123456789abcdef0123456789abcdef" // 32 raw bytes

func TestNewValidatesKeyLength(t *testing.T) {
	_, err := New("short")
	require.Error(t, err)

	_, err = New(testKey)
	require.NoError(t, err)

	// Base64 encoded 32-byte key works the same.
	_, err = New(base64.StdEncoding.EncodeToString([]byte(testKey)))
	require.NoError(t, err)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	v, err := New(testKey)
	require.NoError(t, err)

	secrets := []string{
		"bank-api-token-1234",
		"license-key-ab-cd-ef",
		"0000",
		strings.Repeat("x", 4096),
	}

	for _, secret := range secrets {
		ct, err := v.Encrypt(secret)
		require.NoError(t, err)
		assert.NotEqual(t, secret, ct)

		pt, err := v.Decrypt(ct)
		require.NoError(t, err)
		assert.Equal(t, secret, pt)
	}
}

func TestEncryptIsNondeterministic(t *testing.T) {
	v, err := New(testKey)
	require.NoError(t, err)

	a, err := v.Encrypt("secret")
	require.NoError(t, err)
	b, err := v.Encrypt("secret")
	require.NoError(t, err)

	// Fresh nonce each call.
	assert.NotEqual(t, a, b)
}

func TestDecryptWrongKey(t *testing.T) {
	v1, err := New(testKey)
	require.NoError(t, err)
	v2, err := New("fedcba9876543210fedcba9876543210")
	require.NoError(t, err)

	ct, err := v1.Encrypt("rotated-away")
	require.NoError(t, err)

	_, err = v2.Decrypt(ct)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDecryption))
}

func TestDecryptMalformed(t *testing.T) {
	v, err := New(testKey)
	require.NoError(t, err)

	for _, ct := range []string{
		"",
		"not base64 !!!",
		base64.StdEncoding.EncodeToString([]byte("tiny")), // shorter than nonce
	} {
		_, err := v.Decrypt(ct)
		require.Error(t, err, "ciphertext %q", ct)
		assert.True(t, errors.Is(err, domain.ErrDecryption), "ciphertext %q", ct)
	}
}
