package settings

import (
	"errors"

	"github.com/zalando/go-keyring"
)

// SecretStore keeps the API client secret outside the settings record.
// A missing secret reads as the empty string.
type SecretStore interface {
	Get(clientID string) (string, error)
	Set(clientID, secret string) error
	Delete(clientID string) error
}

// KeyringService is the keyring service name secrets are filed under.
const KeyringService = "casetrack-uscis"

// Keyring is a SecretStore on the operating system keyring.
type Keyring struct {
	Service string
}

// NewKeyring returns a Keyring under KeyringService.
func NewKeyring() Keyring {
	return Keyring{Service: KeyringService}
}

func (k Keyring) Get(clientID string) (string, error) {
	secret, err := keyring.Get(k.Service, clientID)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	return secret, err
}

func (k Keyring) Set(clientID, secret string) error {
	return keyring.Set(k.Service, clientID, secret)
}

func (k Keyring) Delete(clientID string) error {
	err := keyring.Delete(k.Service, clientID)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}
