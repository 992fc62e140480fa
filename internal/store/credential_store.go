package store

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/deekay/bitcaptcha/internal/domain"
	"github.com/deekay/bitcaptcha/internal/protocol/nwc"
)

const credentialFilename = "wallet.json.enc"

// CredentialFileStore persists the wallet connection string to disk,
// sealed under a passphrase. The string embeds the local secret key, so it
// never touches disk in the clear.
type CredentialFileStore struct {
	dir string
	mu  sync.Mutex
}

// NewCredentialFileStore returns a CredentialFileStore rooted at dir.
func NewCredentialFileStore(dir string) *CredentialFileStore {
	return &CredentialFileStore{dir: dir}
}

// SaveConnection validates uri, then writes it encrypted to disk.
func (s *CredentialFileStore) SaveConnection(passphrase, uri string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := nwc.ParseConnectionString(uri); err != nil {
		return err
	}
	N, r, p := scryptParamsDefault()
	ct, err := seal(passphrase, []byte(uri), N, r, p)
	if err != nil {
		return err
	}
	return writeFile(filepath.Join(s.dir, credentialFilename), ct, 0o600)
}

// LoadConnection reads and decrypts the stored connection string.
func (s *CredentialFileStore) LoadConnection(passphrase string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := os.ReadFile(filepath.Join(s.dir, credentialFilename))
	if err != nil {
		return "", err
	}
	pt, err := open(passphrase, b)
	if err != nil {
		return "", err
	}
	return string(pt), nil
}

// Compile-time assertion that CredentialFileStore implements domain.CredentialStore.
var _ domain.CredentialStore = (*CredentialFileStore)(nil)
