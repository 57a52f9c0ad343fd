package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Store persists a single Credential as a JSON file. It only serializes and
// deserializes; all policy lives in the Manager.
type Store struct {
	file string
}

// NewStore creates a credential store backed by filePath.
func NewStore(filePath string) *Store {
	return &Store{file: filePath}
}

// Load reads the cached credential. A missing cache file surfaces as an
// error wrapping os.ErrNotExist.
func (s *Store) Load() (Credential, error) {
	data, err := os.ReadFile(s.file)
	if err != nil {
		return Credential{}, fmt.Errorf("read credential cache: %w", err)
	}
	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return Credential{}, fmt.Errorf("parse credential cache: %w", err)
	}
	return cred, nil
}

// Save writes the credential, replacing any previous one. The file is
// written to a temporary path and renamed so a crash cannot truncate a
// previously valid cache.
func (s *Store) Save(cred Credential) error {
	if err := os.MkdirAll(filepath.Dir(s.file), 0o755); err != nil {
		return fmt.Errorf("create credential dir: %w", err)
	}
	data, err := json.MarshalIndent(cred, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credential: %w", err)
	}
	tmp := s.file + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write credential cache: %w", err)
	}
	if err := os.Rename(tmp, s.file); err != nil {
		return fmt.Errorf("replace credential cache: %w", err)
	}
	return nil
}

// Delete removes the cached credential. A missing file is not an error.
func (s *Store) Delete() error {
	err := os.Remove(s.file)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete credential cache: %w", err)
	}
	return nil
}
