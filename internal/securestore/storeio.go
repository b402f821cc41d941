package securestore

import (
	"os"
	"path/filepath"
)

// ReadDecryptedFile reads and decrypts file content with the provided
// passphrase.
func ReadDecryptedFile(path, passphrase string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decrypt(passphrase, raw)
}

// WriteEncryptedFile encrypts and writes the payload with 0600 permissions.
func WriteEncryptedFile(path, passphrase string, plaintext []byte) error {
	encrypted, err := Encrypt(passphrase, plaintext)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, encrypted, 0o600)
}
