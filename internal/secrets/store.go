// Package secrets stores server-profile passwords in the OS credential
// store, as a single consolidated JSON map rather than one keychain entry
// per profile.
package secrets

import (
	"encoding/json"
	"sync"

	"github.com/99designs/keyring"

	"dev.helix.sqlmaint/internal/logging"
)

var log = logging.Named("secrets")

const (
	keyringServiceName = "sqlmaint"
	consolidatedKey    = "passwords"
)

// Store guards the keychain round-trip with a mutex: load-modify-save is
// not atomic at the OS keychain layer, so concurrent profile saves must
// serialize through here.
type Store struct {
	mu   sync.Mutex
	ring keyring.Keyring
}

// Open opens (or creates, on first use) the OS-backed keyring for this
// application. allowedBackends narrows which backends keyring will try;
// pass nil to let it pick the platform default.
func Open(allowedBackends []keyring.BackendType) (*Store, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName:     keyringServiceName,
		AllowedBackends: allowedBackends,
	})
	if err != nil {
		return nil, err
	}
	return &Store{ring: ring}, nil
}

// OpenWithKeyring builds a Store around an already-opened keyring, bypassing
// platform backend selection. Tests use this with an in-memory
// keyring.NewArrayKeyring instead of a real OS credential store.
func OpenWithKeyring(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

func (s *Store) loadMap() map[string]string {
	item, err := s.ring.Get(consolidatedKey)
	if err != nil {
		return map[string]string{}
	}
	var m map[string]string
	if err := json.Unmarshal(item.Data, &m); err != nil {
		return map[string]string{}
	}
	return m
}

func (s *Store) saveMap(m map[string]string) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return s.ring.Set(keyring.Item{
		Key:  consolidatedKey,
		Data: data,
	})
}

// Get returns the stored password for profileID, or "" if none is stored.
func (s *Store) Get(profileID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadMap()[profileID]
}

// Set stores password for profileID. An empty password is a no-op, the
// same behavior a blank field in a saved profile implies: never clear
// (or overwrite with emptiness) a previously stored credential by
// accident.
func (s *Store) Set(profileID, password string) error {
	if password == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.loadMap()
	m[profileID] = password
	if err := s.saveMap(m); err != nil {
		log.Error("failed to store password for profile %s: %s", profileID, err)
		return err
	}
	return nil
}

// Delete removes profileID's password, if present.
func (s *Store) Delete(profileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.loadMap()
	if _, ok := m[profileID]; !ok {
		return nil
	}
	delete(m, profileID)
	return s.saveMap(m)
}
