// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package secrets persists credentials as plain-text files in a directory.
// Each file in the directory represents one secret: the filename is the key name and the
// file contents (trimmed) are the value.
//
// The inference API key lives in the file rule-harvester-api-key.
package secrets

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// APIKeyName is the file that holds the inference API key.
const APIKeyName = "rule-harvester-api-key"

// Load reads all files in dir and returns a map of filename to trimmed contents.
// A missing directory or missing files are not errors; Load returns an empty map.
// Unreadable files are logged and skipped.
func Load(dir string, logger *zap.Logger) (map[string]string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			logger.Warn("could not read secret", zap.String("name", name), zap.Error(err))
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}

// Store saves, reads and clears one named secret. Failures are logged and
// reported as false or an empty value; they never propagate.
type Store struct {
	dir    string
	name   string
	logger *zap.Logger
}

// NewStore returns a store for the API key in dir.
func NewStore(dir string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{dir: dir, name: APIKeyName, logger: logger}
}

// Path returns the file backing the store.
func (s *Store) Path() string {
	return filepath.Join(s.dir, s.name)
}

// Save writes value with owner-only permissions. Surrounding whitespace is
// dropped; saving an empty value clears the secret.
func (s *Store) Save(value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return s.Clear()
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		s.logger.Error("creating secrets directory", zap.String("dir", s.dir), zap.Error(err))
		return false
	}
	if err := os.WriteFile(s.Path(), []byte(value+"\n"), 0o600); err != nil {
		s.logger.Error("saving secret", zap.String("name", s.name), zap.Error(err))
		return false
	}
	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(s.Path(), 0o600); err != nil {
		s.logger.Warn("restricting secret permissions", zap.String("name", s.name), zap.Error(err))
	}
	s.logger.Info("secret saved", zap.String("name", s.name))
	return true
}

// Get returns the stored value, or "" when it is absent or unreadable.
func (s *Store) Get() string {
	all, err := Load(s.dir, s.logger)
	if err != nil {
		s.logger.Error("loading secrets", zap.String("dir", s.dir), zap.Error(err))
		return ""
	}
	return all[s.name]
}

// Clear removes the stored value. Clearing an absent secret succeeds.
func (s *Store) Clear() bool {
	err := os.Remove(s.Path())
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Error("clearing secret", zap.String("name", s.name), zap.Error(err))
		return false
	}
	s.logger.Info("secret cleared", zap.String("name", s.name))
	return true
}

// Resolver picks the credential for each inference call. An override (from
// the environment) wins over the stored value.
type Resolver struct {
	Store    *Store
	Override string
}

// Get returns the override when set, otherwise the stored value.
func (r Resolver) Get() string {
	if v := strings.TrimSpace(r.Override); v != "" {
		return v
	}
	if r.Store == nil {
		return ""
	}
	return r.Store.Get()
}

// Source reports where Get's value comes from: "environment", "store" or "".
func (r Resolver) Source() string {
	if strings.TrimSpace(r.Override) != "" {
		return "environment"
	}
	if r.Store != nil && r.Store.Get() != "" {
		return "store"
	}
	return ""
}

// maskPrefix replaces the hidden part of a secret. Its width is fixed so the
// masked form does not reveal the secret's length.
const maskPrefix = "****"

// Mask hides all but the last four characters of a secret.
func Mask(value string) string {
	if value == "" {
		return ""
	}
	runes := []rune(value)
	if len(runes) <= 4 {
		return maskPrefix
	}
	return maskPrefix + string(runes[len(runes)-4:])
}
