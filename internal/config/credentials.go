package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"chatforge/internal/models"
)

// CredentialStore holds the per-provider API keys, keyed by lower-cased
// provider name, persisted as a JSON object. Reads happen on every adapter
// resolution; writes happen only through explicit settings updates, which
// are serialized here.
type CredentialStore struct {
	mu   sync.RWMutex
	path string
	keys map[string]models.CredentialValue
}

// LoadCredentials reads the store at path. A missing file yields an empty
// store; it is created on the first Set.
func LoadCredentials(path string) (*CredentialStore, error) {
	s := &CredentialStore{
		path: path,
		keys: make(map[string]models.CredentialValue),
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credential store: %w", err)
	}
	if err := json.Unmarshal(data, &s.keys); err != nil {
		return nil, fmt.Errorf("failed to parse credential store: %w", err)
	}
	return s, nil
}

// Seed merges provider entries from the YAML config that are not already in
// the store. Stored keys win so settings updates survive restarts.
func (s *CredentialStore) Seed(providers map[string]ProviderConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, cfg := range providers {
		id := strings.ToLower(name)
		if _, ok := s.keys[id]; ok {
			continue
		}
		cred := cfg.Credential()
		if !cred.Empty() {
			s.keys[id] = cred
		}
	}
}

// Get returns the credential for a provider, case-insensitive.
func (s *CredentialStore) Get(provider string) (models.CredentialValue, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.keys[strings.ToLower(provider)]
	return v, ok
}

// Set stores a credential and persists the whole store. The write is the
// only mutation entry point.
func (s *CredentialStore) Set(provider string, cred models.CredentialValue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[strings.ToLower(provider)] = cred
	return s.persist()
}

// Delete removes a credential and persists the store.
func (s *CredentialStore) Delete(provider string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, strings.ToLower(provider))
	return s.persist()
}

// Snapshot returns a copy of all stored credentials.
func (s *CredentialStore) Snapshot() map[string]models.CredentialValue {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]models.CredentialValue, len(s.keys))
	for k, v := range s.keys {
		out[k] = v
	}
	return out
}

func (s *CredentialStore) persist() error {
	if s.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create credential directory: %w", err)
	}
	data, err := json.MarshalIndent(s.keys, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write credential store: %w", err)
	}
	return nil
}
