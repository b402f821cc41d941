package wallet

import (
	"os"
	"path/filepath"

	"veilpoll/go-client/internal/securestore"
)

// Storage persists the mnemonic sealed under the wallet passphrase.
type Storage struct {
	path string
}

func NewStorage(dir string) *Storage {
	return &Storage{path: filepath.Join(dir, "wallet.enc")}
}

func (s *Storage) Save(mnemonic, passphrase string) error {
	return securestore.WriteEncryptedFile(s.path, passphrase, []byte(mnemonic))
}

func (s *Storage) Load(passphrase string) (string, error) {
	plain, err := securestore.ReadDecryptedFile(s.path, passphrase)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// Exists reports whether a wallet file is present.
func (s *Storage) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}
