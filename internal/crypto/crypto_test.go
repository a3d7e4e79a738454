package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Well-known throwaway key (all-ones) for deterministic address derivation.
const testKeyHex = "0101010101010101010101010101010101010101010101010101010101010101"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	blob, err := EncryptKey(testKeyHex, "hunter2")
	require.NoError(t, err)

	got, err := DecryptKey(blob, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, testKeyHex, got)

	_, err = DecryptKey(blob, "wrong-password")
	assert.Error(t, err)
}

func TestEncryptKeyRejectsBadInput(t *testing.T) {
	_, err := EncryptKey(testKeyHex, "")
	assert.Error(t, err)

	_, err = EncryptKey("not-hex", "hunter2")
	assert.Error(t, err)

	_, err = EncryptKey("abcd", "hunter2")
	assert.Error(t, err)
}

func TestLoadKeyPrefersRawKey(t *testing.T) {
	got, err := LoadKey(KeyConfig{RawPrivateKey: "0x" + testKeyHex})
	require.NoError(t, err)
	assert.Equal(t, testKeyHex, got)

	_, err = LoadKey(KeyConfig{})
	assert.Error(t, err)
}

func TestAuthorityID(t *testing.T) {
	auth, err := NewAuthority(testKeyHex)
	require.NoError(t, err)

	id := auth.ID()

	// The first 12 bytes are zero padding, the rest is the address.
	assert.Equal(t, make([]byte, 12), id[:12])
	assert.Equal(t, auth.Address().Bytes(), id[12:])
}

func TestRequestAuthHeaders(t *testing.T) {
	t.Run("KeyOnly", func(t *testing.T) {
		h := RequestAuth{Key: "k1"}.HeadersAt("POST", "/v1/swaps", `{"a":1}`, 1700000000)
		assert.Equal(t, map[string]string{"X-Api-Key": "k1"}, h)
	})

	t.Run("SignedIsDeterministic", func(t *testing.T) {
		auth := RequestAuth{Key: "k1", Secret: "s1"}
		h1 := auth.HeadersAt("POST", "/v1/swaps", `{"a":1}`, 1700000000)
		h2 := auth.HeadersAt("POST", "/v1/swaps", `{"a":1}`, 1700000000)
		assert.Equal(t, h1, h2)
		assert.Equal(t, "1700000000", h1["X-Api-Timestamp"])
		assert.NotEmpty(t, h1["X-Api-Signature"])

		// Changing any signed component changes the signature.
		h3 := auth.HeadersAt("POST", "/v1/swaps", `{"a":2}`, 1700000000)
		assert.NotEqual(t, h1["X-Api-Signature"], h3["X-Api-Signature"])
	})

	t.Run("RedactedString", func(t *testing.T) {
		s := RequestAuth{Key: "key-123456", Secret: "sec"}.String()
		assert.NotContains(t, s, "123456")
		assert.Contains(t, s, "****")
	})
}
