// Package crypto provides the authenticated envelope encryption used by the
// credential store: AES-256-GCM with scrypt key derivation. Every envelope
// carries its own salt and nonce, so the same plaintext encrypted twice
// under the same master key produces unrelated ciphertexts.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"io"

	"golang.org/x/crypto/scrypt"

	"github.com/vanyastaff/nebula-sub011/internal/types"
)

const (
	// EnvelopeVersion is the current on-disk envelope format version.
	EnvelopeVersion uint16 = 1

	// KeySize is the derived key size in bytes (AES-256).
	KeySize = 32

	// NonceSize is the AES-GCM nonce size in bytes.
	NonceSize = 12

	// TagSize is the GCM authentication tag size in bytes.
	TagSize = 16

	// SaltSize is the scrypt salt size in bytes.
	SaltSize = 32

	// Scrypt cost parameters. N=32768 keeps derivation expensive enough to
	// resist offline brute force while staying practical server-side.
	scryptN = 32768
	scryptR = 8
	scryptP = 1
)

// Envelope is the encrypted container persisted for each credential.
// Ciphertext and Tag are stored separately; decryption reassembles them
// for GCM verification.
type Envelope struct {
	Version    uint16 `json:"version"`
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
	Tag        []byte `json:"tag"`
}

// Encryptor seals and opens envelopes under a caller-provided master key.
// Implementations must provide authenticated encryption: opening fails when
// either the ciphertext or the tag has been altered.
type Encryptor interface {
	Encrypt(plaintext, masterKey []byte) (*Envelope, error)
	Decrypt(env *Envelope, masterKey []byte) ([]byte, error)
}

// AESGCM implements Encryptor with AES-256-GCM and scrypt derivation.
type AESGCM struct{}

// NewAESGCM returns the default envelope encryptor.
func NewAESGCM() *AESGCM { return &AESGCM{} }

// DeriveKey derives a KeySize-byte key from the master key and salt.
// Deterministic: the same inputs always yield the same key.
func DeriveKey(masterKey, salt []byte) ([]byte, error) {
	if len(masterKey) == 0 {
		return nil, types.NewError(types.CRYPTO_KEY_NOT_FOUND, "master key is empty")
	}
	if len(salt) != SaltSize {
		return nil, types.NewErrorf(types.CRYPTO_ENCRYPT_FAILED, "salt must be %d bytes, got %d", SaltSize, len(salt))
	}
	key, err := scrypt.Key(masterKey, salt, scryptN, scryptR, scryptP, KeySize)
	if err != nil {
		return nil, types.WrapError(types.CRYPTO_ENCRYPT_FAILED, "scrypt derivation failed", err)
	}
	return key, nil
}

// Encrypt seals plaintext into a fresh envelope. A new random salt and
// nonce are generated per call; reuse of either would break GCM security.
func (e *AESGCM) Encrypt(plaintext, masterKey []byte) (*Envelope, error) {
	if len(plaintext) == 0 {
		return nil, types.NewError(types.CRYPTO_ENCRYPT_FAILED, "plaintext is empty")
	}

	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, types.WrapError(types.CRYPTO_ENCRYPT_FAILED, "salt generation failed", err)
	}

	key, err := DeriveKey(masterKey, salt)
	if err != nil {
		return nil, err
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, types.WrapError(types.CRYPTO_ENCRYPT_FAILED, "nonce generation failed", err)
	}

	sealed := gcm.Seal(nil, nonce, plaintext, nil)
	// Seal appends the tag; split it out so the envelope stores it as its
	// own field.
	split := len(sealed) - TagSize

	return &Envelope{
		Version:    EnvelopeVersion,
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: sealed[:split],
		Tag:        sealed[split:],
	}, nil
}

// Decrypt opens an envelope. The error message deliberately does not
// distinguish a wrong key from tampered data.
func (e *AESGCM) Decrypt(env *Envelope, masterKey []byte) ([]byte, error) {
	if env == nil {
		return nil, types.NewError(types.CRYPTO_DECRYPT_FAILED, "envelope is nil")
	}
	if env.Version != EnvelopeVersion {
		return nil, types.NewErrorf(types.CRYPTO_DECRYPT_FAILED, "unsupported envelope version %d", env.Version)
	}
	if len(env.Nonce) != NonceSize {
		return nil, types.NewErrorf(types.CRYPTO_DECRYPT_FAILED, "nonce must be %d bytes, got %d", NonceSize, len(env.Nonce))
	}
	if len(env.Tag) != TagSize {
		return nil, types.NewErrorf(types.CRYPTO_DECRYPT_FAILED, "tag must be %d bytes, got %d", TagSize, len(env.Tag))
	}

	key, err := DeriveKey(masterKey, env.Salt)
	if err != nil {
		return nil, types.WrapError(types.CRYPTO_DECRYPT_FAILED, "key derivation failed", err)
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	sealed := make([]byte, 0, len(env.Ciphertext)+len(env.Tag))
	sealed = append(sealed, env.Ciphertext...)
	sealed = append(sealed, env.Tag...)

	plaintext, err := gcm.Open(nil, env.Nonce, sealed, nil)
	if err != nil {
		return nil, types.NewError(types.CRYPTO_DECRYPT_FAILED, "authentication failed or wrong key")
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, types.WrapError(types.CRYPTO_ENCRYPT_FAILED, "cipher construction failed", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, types.WrapError(types.CRYPTO_ENCRYPT_FAILED, "GCM construction failed", err)
	}
	return gcm, nil
}

// GenerateMasterKey produces a random KeySize-byte master key.
func GenerateMasterKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, types.WrapError(types.CRYPTO_ENCRYPT_FAILED, "master key generation failed", err)
	}
	return key, nil
}
