// Package contentcrypt is the field-level symmetric encryption engine for
// campaign content. Stateless: everything needed to decrypt, except the
// password, travels inside the blob. Decryption is fail-closed — tag
// verification failure means no plaintext, never partial output.
package contentcrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha512"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

var (
	ErrIntegrity     = errors.New("content decryption failed integrity check")
	ErrInvalidBlob   = errors.New("invalid encrypted blob")
	ErrEmptyPassword = errors.New("password is required")
)

const (
	blobPrefix = "vpc1."

	saltSize = 16
	ivSize   = 12
	keySize  = 32

	// kdfIterations is the PBKDF2 work factor. Fixed: blobs do not record
	// it, so changing it is a format break.
	kdfIterations = 100_000
)

// Blob is the self-describing ciphertext text form:
// prefix + base64(salt ‖ iv ‖ ciphertext‖tag). Immutable once produced.
type Blob string

// Encrypt seals plaintext under password with a fresh salt and IV. Salts
// and IVs are never reused across calls, even for the same password.
func Encrypt(plaintext []byte, password string) (Blob, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return "", err
	}

	aead, err := newAEAD(password, salt)
	if err != nil {
		return "", err
	}
	sealed := aead.Seal(nil, iv, plaintext, nil)

	raw := make([]byte, 0, saltSize+ivSize+len(sealed))
	raw = append(raw, salt...)
	raw = append(raw, iv...)
	raw = append(raw, sealed...)
	return Blob(blobPrefix + base64.StdEncoding.EncodeToString(raw)), nil
}

// Decrypt opens a blob. Any bit flip in the blob or any wrong password
// fails with ErrIntegrity.
func Decrypt(blob Blob, password string) ([]byte, error) {
	if password == "" {
		return nil, ErrEmptyPassword
	}
	encoded, ok := strings.CutPrefix(string(blob), blobPrefix)
	if !ok {
		return nil, ErrInvalidBlob
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrInvalidBlob
	}
	if len(raw) < saltSize+ivSize+16 {
		return nil, ErrInvalidBlob
	}
	salt := raw[:saltSize]
	iv := raw[saltSize : saltSize+ivSize]
	sealed := raw[saltSize+ivSize:]

	aead, err := newAEAD(password, salt)
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, iv, sealed, nil)
	if err != nil {
		return nil, ErrIntegrity
	}
	return plaintext, nil
}

// EncryptFields seals every field of a composite independently, each with
// its own salt and IV.
func EncryptFields(fields map[string]string, password string) (map[string]Blob, error) {
	out := make(map[string]Blob, len(fields))
	for name, value := range fields {
		blob, err := Encrypt([]byte(value), password)
		if err != nil {
			return nil, fmt.Errorf("encrypt field %s: %w", name, err)
		}
		out[name] = blob
	}
	return out, nil
}

// DecryptFields opens a composite. All-or-nothing: a single failing field
// fails the whole call and no partial plaintext is returned.
func DecryptFields(fields map[string]Blob, password string) (map[string]string, error) {
	out := make(map[string]string, len(fields))
	for name, blob := range fields {
		plaintext, err := Decrypt(blob, password)
		if err != nil {
			return nil, fmt.Errorf("decrypt field %s: %w", name, err)
		}
		out[name] = string(plaintext)
	}
	return out, nil
}

func newAEAD(password string, salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key([]byte(password), salt, kdfIterations, keySize, sha512.New)
	defer zeroBytes(key)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
