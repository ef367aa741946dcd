// internal/credentials/store.go
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/zalando/go-keyring"
)

const (
	// KeyringService is the service name secrets are stored under
	KeyringService = "shopscrape"
	// FallbackDir holds secrets as files when no keyring is available (CI, containers)
	FallbackDir = ".shopscrape/credentials"

	manifestKey = "_manifest"
)

// Well-known secret names read by the config loader
const (
	DatabaseDSN = "database-dsn"
	APIKey      = "api-key"
	RedisURL    = "redis-url"
)

// ErrNotFound is returned when a secret does not exist
var ErrNotFound = errors.New("credential not found")

// Store keeps named secrets in the OS keyring, or in 0600 files when the
// keyring cannot be used.
type Store struct {
	service string
	dir     string

	once     sync.Once
	fileMode bool
}

// NewStore returns a store using the OS keyring with a file fallback under
// the user's home directory.
func NewStore() *Store {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Store{service: KeyringService, dir: filepath.Join(home, FallbackDir)}
}

// NewFileStore returns a store that only uses files in dir
func NewFileStore(dir string) *Store {
	s := &Store{service: KeyringService, dir: dir, fileMode: true}
	s.once.Do(func() {})
	return s
}

func (s *Store) useFiles() bool {
	s.once.Do(func() {
		if os.Getenv("CODESPACES") != "" || os.Getenv("CI") != "" {
			s.fileMode = true
			return
		}
		check := "_keyring_access_check_"
		if err := keyring.Set(s.service, check, "ok"); err != nil {
			log.Debug().Err(err).Msg("Keyring unavailable, using file-based credential storage")
			s.fileMode = true
			return
		}
		_ = keyring.Delete(s.service, check)
	})
	return s.fileMode
}

func validName(name string) error {
	if name == "" || name == manifestKey {
		return fmt.Errorf("invalid credential name %q", name)
	}
	if strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("invalid credential name %q", name)
	}
	return nil
}

func (s *Store) path(name string) (string, error) {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create credential dir: %w", err)
	}
	return filepath.Join(s.dir, name), nil
}

// Set stores secret under name
func (s *Store) Set(name, secret string) error {
	if err := validName(name); err != nil {
		return err
	}

	if s.useFiles() {
		path, err := s.path(name)
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(secret), 0600); err != nil {
			return fmt.Errorf("failed to save credential file: %w", err)
		}
		return nil
	}

	if err := keyring.Set(s.service, name, secret); err != nil {
		return fmt.Errorf("failed to save to keyring: %w", err)
	}
	return s.updateManifest(name, true)
}

// Get returns the secret stored under name, or ErrNotFound
func (s *Store) Get(name string) (string, error) {
	if err := validName(name); err != nil {
		return "", err
	}

	if s.useFiles() {
		path, err := s.path(name)
		if err != nil {
			return "", err
		}
		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNotFound
		}
		if err != nil {
			return "", fmt.Errorf("failed to read credential file: %w", err)
		}
		return string(data), nil
	}

	secret, err := keyring.Get(s.service, name)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to load from keyring: %w", err)
	}
	return secret, nil
}

// Delete removes name. Deleting a missing secret is not an error.
func (s *Store) Delete(name string) error {
	if err := validName(name); err != nil {
		return err
	}

	if s.useFiles() {
		path, err := s.path(name)
		if err != nil {
			return err
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to delete credential file: %w", err)
		}
		return nil
	}

	if err := keyring.Delete(s.service, name); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}
	return s.updateManifest(name, false)
}

// List returns the stored secret names, sorted
func (s *Store) List() ([]string, error) {
	var names []string

	if s.useFiles() {
		entries, err := os.ReadDir(s.dir)
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if !e.IsDir() {
				names = append(names, e.Name())
			}
		}
	} else {
		data, err := keyring.Get(s.service, manifestKey)
		if err != nil {
			return []string{}, nil
		}
		if err := json.Unmarshal([]byte(data), &names); err != nil {
			return nil, fmt.Errorf("failed to decode manifest: %w", err)
		}
	}

	sort.Strings(names)
	return names, nil
}

// Lookup returns the secret or "" when it is missing or unreadable
func (s *Store) Lookup(name string) string {
	secret, err := s.Get(name)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Debug().Err(err).Str("name", name).Msg("Credential lookup failed")
		}
		return ""
	}
	return secret
}

func (s *Store) updateManifest(name string, add bool) error {
	names, _ := s.List()

	out := make([]string, 0, len(names)+1)
	for _, n := range names {
		if n != name {
			out = append(out, n)
		}
	}
	if add {
		out = append(out, name)
	}

	data, err := json.Marshal(out)
	if err != nil {
		return err
	}
	return keyring.Set(s.service, manifestKey, string(data))
}
