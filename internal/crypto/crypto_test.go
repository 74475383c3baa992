package crypto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	enc := NewAESGCM()
	masterKey := []byte("unit-test-master-key")
	plaintext := []byte(`{"client_secret":"hunter2"}`)

	env, err := enc.Encrypt(plaintext, masterKey)
	require.NoError(t, err)
	assert.Equal(t, EnvelopeVersion, env.Version)
	assert.Len(t, env.Nonce, NonceSize)
	assert.Len(t, env.Tag, TagSize)
	assert.NotEqual(t, plaintext, env.Ciphertext)

	decrypted, err := enc.Decrypt(env, masterKey)
	require.NoError(t, err)
	assert.Equal(t, plaintext, decrypted)
}

func TestEncryptProducesUniqueEnvelopes(t *testing.T) {
	enc := NewAESGCM()
	masterKey := []byte("unit-test-master-key")
	plaintext := []byte("same plaintext")

	a, err := enc.Encrypt(plaintext, masterKey)
	require.NoError(t, err)
	b, err := enc.Encrypt(plaintext, masterKey)
	require.NoError(t, err)

	assert.NotEqual(t, a.Nonce, b.Nonce)
	assert.NotEqual(t, a.Salt, b.Salt)
	assert.NotEqual(t, a.Ciphertext, b.Ciphertext)
}

func TestDecryptWrongKey(t *testing.T) {
	enc := NewAESGCM()
	env, err := enc.Encrypt([]byte("secret"), []byte("key-one"))
	require.NoError(t, err)

	_, err = enc.Decrypt(env, []byte("key-two"))
	assert.Error(t, err)
}

func TestDecryptTamperedCiphertext(t *testing.T) {
	enc := NewAESGCM()
	masterKey := []byte("unit-test-master-key")
	env, err := enc.Encrypt([]byte("secret material"), masterKey)
	require.NoError(t, err)

	env.Ciphertext[0] ^= 0xff
	_, err = enc.Decrypt(env, masterKey)
	assert.Error(t, err)
}

func TestDecryptTamperedTag(t *testing.T) {
	enc := NewAESGCM()
	masterKey := []byte("unit-test-master-key")
	env, err := enc.Encrypt([]byte("secret material"), masterKey)
	require.NoError(t, err)

	env.Tag[0] ^= 0xff
	_, err = enc.Decrypt(env, masterKey)
	assert.Error(t, err)
}

func TestEncryptRejectsEmptyInputs(t *testing.T) {
	enc := NewAESGCM()

	_, err := enc.Encrypt(nil, []byte("key"))
	assert.Error(t, err)

	_, err = enc.Encrypt([]byte("data"), nil)
	assert.Error(t, err)
}

func TestDeriveKeyDeterministic(t *testing.T) {
	salt := make([]byte, SaltSize)
	for i := range salt {
		salt[i] = byte(i)
	}

	a, err := DeriveKey([]byte("master"), salt)
	require.NoError(t, err)
	b, err := DeriveKey([]byte("master"), salt)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := DeriveKey([]byte("other"), salt)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

func TestGenerateMasterKey(t *testing.T) {
	a, err := GenerateMasterKey()
	require.NoError(t, err)
	b, err := GenerateMasterKey()
	require.NoError(t, err)

	assert.Len(t, a, KeySize)
	assert.NotEqual(t, a, b)
}
