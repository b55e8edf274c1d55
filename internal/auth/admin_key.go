// Package auth manages the single administrative credential. The key is
// stored as a bcrypt hash in the settings table; the plaintext never touches
// disk.
package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const settingKey = "admin_api_key"

// MinKeyLength is the minimum accepted length for a new admin key.
const MinKeyLength = 4

var ErrKeyTooShort = fmt.Errorf("admin key must be at least %d characters", MinKeyLength)

// SettingsStore is the slice of the relational store the credential needs.
type SettingsStore interface {
	GetSetting(key string) (string, bool, error)
	SetSetting(key, value string) error
}

type AdminKeyStore struct {
	settings SettingsStore
}

func NewAdminKeyStore(settings SettingsStore) *AdminKeyStore {
	return &AdminKeyStore{settings: settings}
}

// Verify checks a presented key against the stored hash. When no key has ever
// been configured it returns false rather than an error, so the admin surface
// fails closed.
func (a *AdminKeyStore) Verify(candidate string) (bool, error) {
	hash, ok, err := a.settings.GetSetting(settingKey)
	if err != nil {
		return false, fmt.Errorf("failed to load admin key: %w", err)
	}
	if !ok {
		return false, nil
	}

	err = bcrypt.CompareHashAndPassword([]byte(hash), []byte(candidate))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return false, nil
		}
		return false, fmt.Errorf("failed to compare admin key: %w", err)
	}
	return true, nil
}

// Rotate replaces the stored admin key with a hash of newKey.
func (a *AdminKeyStore) Rotate(newKey string) error {
	if len(newKey) < MinKeyLength {
		return ErrKeyTooShort
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newKey), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash admin key: %w", err)
	}
	if err := a.settings.SetSetting(settingKey, string(hash)); err != nil {
		return fmt.Errorf("failed to store admin key: %w", err)
	}
	return nil
}
