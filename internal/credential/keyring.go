package credential

import (
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

const serviceName = "mailterm"

// ErrNotFound is returned when no password is stored for an account.
var ErrNotFound = errors.New("credential not found")

// Store keeps account passwords in a keyring.
type Store struct {
	ring keyring.Keyring
}

// Open returns a Store backed by the system keyring, falling back to an
// encrypted file under ~/.config/mailterm/credentials.
func Open() (*Store, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/mailterm/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("mailterm-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return NewStore(ring), nil
}

// NewStore wraps an existing keyring.
func NewStore(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

func passwordKey(accountID string) string {
	return "account:" + accountID + ":password"
}

// Password returns the stored password for accountID.
func (s *Store) Password(accountID string) (string, error) {
	item, err := s.ring.Get(passwordKey(accountID))
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return "", fmt.Errorf("password for %q: %w", accountID, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("getting password for %q: %w", accountID, err)
	}
	return string(item.Data), nil
}

// SetPassword stores the password for accountID.
func (s *Store) SetPassword(accountID, password string) error {
	err := s.ring.Set(keyring.Item{
		Key:   passwordKey(accountID),
		Data:  []byte(password),
		Label: "mailterm " + accountID,
	})
	if err != nil {
		return fmt.Errorf("setting password for %q: %w", accountID, err)
	}
	return nil
}

// DeletePassword removes the password for accountID. A missing entry is
// not an error.
func (s *Store) DeletePassword(accountID string) error {
	err := s.ring.Remove(passwordKey(accountID))
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting password for %q: %w", accountID, err)
	}
	return nil
}
