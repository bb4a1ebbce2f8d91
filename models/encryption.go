package models

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"

	"github.com/rohanthewiz/serr"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// SaltSize is the length of the per-encryption PBKDF2 salt.
	SaltSize = 16
	// NonceSize is the AES-GCM standard nonce length.
	NonceSize = 12
	// KeySize selects AES-256.
	KeySize = 32
	// MinIterations is the floor for PBKDF2 work; lower values are raised to it.
	MinIterations = 100_000
	// DefaultIterations is used when Options.KDFIterations is zero, and for
	// envelopes stored without an iteration count.
	DefaultIterations = MinIterations

	gcmTagSize = 16
)

// Envelope is what an encrypted note stores in place of its content.
// Payload is base64(nonce || ciphertext+tag); Salt is base64 of the
// 16-byte PBKDF2 salt the key was derived with. Iterations is the PBKDF2
// count used at seal time; zero means DefaultIterations.
type Envelope struct {
	Payload    string
	Salt       string
	Iterations int
}

// kdfIterations is the count the envelope must be opened with.
func (e Envelope) kdfIterations() int {
	if e.Iterations <= 0 {
		return DefaultIterations
	}
	return e.Iterations
}

// DeriveKey stretches password into a 32-byte AES key with PBKDF2-HMAC-SHA256.
// The result is deterministic for a (password, salt, iterations) triple.
// The cost is fixed by the iteration count; nothing here depends on whether
// the password is the right one.
func DeriveKey(password, salt []byte, iterations int) ([]byte, error) {
	if len(salt) != SaltSize {
		return nil, ErrInvalidSalt
	}
	if iterations < MinIterations {
		iterations = MinIterations
	}
	return pbkdf2.Key(password, salt, iterations, KeySize, sha256.New), nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, serr.Wrap(err, "failed to create AES cipher")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, serr.Wrap(err, "failed to create GCM mode")
	}
	return gcm, nil
}

// Encrypt seals plaintext under key with AES-256-GCM using a fresh random
// nonce. The returned ciphertext carries the GCM authentication tag.
func Encrypt(plaintext, key []byte) (ciphertext, nonce []byte, err error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}

	nonce = make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, serr.Wrap(err, "failed to generate random nonce")
	}

	return gcm.Seal(nil, nonce, plaintext, nil), nonce, nil
}

// Decrypt opens ciphertext produced by Encrypt. Any mismatch of key, nonce
// or ciphertext bytes yields ErrInvalidPassword and no plaintext.
func Decrypt(ciphertext, key, nonce []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, ErrInvalidPassword
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrInvalidPassword
	}
	return plaintext, nil
}

// SealEnvelope encrypts content under password with a fresh salt and nonce
// and returns the storable envelope, which records the iteration count.
// ctx is only consulted before key derivation starts; once started the
// derive+encrypt run completes.
func SealEnvelope(ctx context.Context, content, password string, iterations int) (Envelope, error) {
	if password == "" {
		return Envelope{}, ErrPasswordRequired
	}
	if err := ctx.Err(); err != nil {
		return Envelope{}, newError(KindCanceled, "", err)
	}

	if iterations < MinIterations {
		iterations = MinIterations
	}
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return Envelope{}, serr.Wrap(err, "failed to generate random salt")
	}

	key, err := DeriveKey([]byte(password), salt, iterations)
	if err != nil {
		return Envelope{}, serr.Wrap(err, "failed to derive key")
	}
	defer clear(key)

	ciphertext, nonce, err := Encrypt([]byte(content), key)
	if err != nil {
		return Envelope{}, err
	}

	payload := make([]byte, 0, len(nonce)+len(ciphertext))
	payload = append(payload, nonce...)
	payload = append(payload, ciphertext...)

	return Envelope{
		Payload:    base64.StdEncoding.EncodeToString(payload),
		Salt:       base64.StdEncoding.EncodeToString(salt),
		Iterations: iterations,
	}, nil
}

// OpenEnvelope reverses SealEnvelope, deriving the key with the envelope's
// own iteration count. A wrong password and a corrupted or tampered
// envelope are indistinguishable: both return ErrInvalidPassword.
func OpenEnvelope(ctx context.Context, env Envelope, password string) (string, error) {
	if password == "" {
		return "", ErrPasswordRequired
	}
	if err := ctx.Err(); err != nil {
		return "", newError(KindCanceled, "", err)
	}

	salt, err := base64.StdEncoding.DecodeString(env.Salt)
	if err != nil || len(salt) != SaltSize {
		return "", ErrInvalidPassword
	}
	payload, err := base64.StdEncoding.DecodeString(env.Payload)
	if err != nil || len(payload) < NonceSize+gcmTagSize {
		return "", ErrInvalidPassword
	}

	key, err := DeriveKey([]byte(password), salt, env.kdfIterations())
	if err != nil {
		return "", ErrInvalidPassword
	}
	defer clear(key)

	plaintext, err := Decrypt(payload[NonceSize:], key, payload[:NonceSize])
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
