package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(t *testing.T) []byte {
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := testKey(t)

	for _, plaintext := range []string{
		"sk-test-key-12345",
		"",
		"带中文的密钥内容",
		"very-long-" + string(make([]byte, 4096)),
	} {
		ciphertext, err := EncryptString(plaintext, key)
		require.NoError(t, err)
		assert.NotEqual(t, plaintext, ciphertext)

		decrypted, err := DecryptString(ciphertext, key)
		require.NoError(t, err)
		assert.Equal(t, plaintext, decrypted)
	}
}

func TestEncryptString_NonceRandomness(t *testing.T) {
	key := testKey(t)

	first, err := EncryptString("same-plaintext", key)
	require.NoError(t, err)
	second, err := EncryptString("same-plaintext", key)
	require.NoError(t, err)

	// 随机 nonce 保证相同明文不会产出相同密文
	assert.NotEqual(t, first, second)
}

func TestDecryptString_WrongKey(t *testing.T) {
	ciphertext, err := EncryptString("secret", testKey(t))
	require.NoError(t, err)

	_, err = DecryptString(ciphertext, testKey(t))
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestDecryptString_Tampered(t *testing.T) {
	key := testKey(t)
	ciphertext, err := EncryptString("secret", key)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff
	tampered := base64.StdEncoding.EncodeToString(raw)

	_, err = DecryptString(tampered, key)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestDecryptString_Malformed(t *testing.T) {
	key := testKey(t)

	_, err := DecryptString("not-base64!!!", key)
	assert.ErrorIs(t, err, ErrMalformedCiphertext)

	_, err = DecryptString(base64.StdEncoding.EncodeToString([]byte("short")), key)
	assert.ErrorIs(t, err, ErrMalformedCiphertext)
}

func TestKeySizeValidation(t *testing.T) {
	_, err := EncryptString("x", []byte("too-short"))
	assert.ErrorIs(t, err, ErrInvalidKeySize)

	_, err = DecryptString("x", make([]byte, 16))
	assert.ErrorIs(t, err, ErrInvalidKeySize)
}

func TestLoadEncryptionKey(t *testing.T) {
	encoded, err := GenerateEncryptionKey()
	require.NoError(t, err)

	t.Setenv("ENCRYPTION_KEY", encoded)
	key, err := LoadEncryptionKey()
	require.NoError(t, err)
	assert.Len(t, key, 32)
}

func TestLoadEncryptionKey_Missing(t *testing.T) {
	t.Setenv("ENCRYPTION_KEY", "")
	os.Unsetenv("ENCRYPTION_KEY")

	_, err := LoadEncryptionKey()
	assert.ErrorIs(t, err, ErrMissingEncryptionKey)
}

func TestValidateEncryptionKey(t *testing.T) {
	encoded, err := GenerateEncryptionKey()
	require.NoError(t, err)
	assert.NoError(t, ValidateEncryptionKey(encoded))

	assert.Error(t, ValidateEncryptionKey("not-base64!!!"))
	assert.ErrorIs(t, ValidateEncryptionKey(base64.StdEncoding.EncodeToString([]byte("short"))), ErrInvalidKeySize)
	assert.ErrorIs(t, ValidateEncryptionKey(""), ErrMissingEncryptionKey)
}

func TestGenerateEncryptionKey_Randomness(t *testing.T) {
	first, err := GenerateEncryptionKey()
	require.NoError(t, err)
	second, err := GenerateEncryptionKey()
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}
