package credentials

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/zalando/go-keyring"
)

func TestFileStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := NewFileStore(dir)

	if err := s.Set(DatabaseDSN, "postgres://u:p@localhost/db"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err := s.Get(DatabaseDSN)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != "postgres://u:p@localhost/db" {
		t.Errorf("Expected stored DSN, got %q", got)
	}

	info, err := os.Stat(filepath.Join(dir, DatabaseDSN))
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected mode 0600, got %v", info.Mode().Perm())
	}

	if err := s.Set(APIKey, "k"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	names, err := s.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(names) != 2 || names[0] != APIKey || names[1] != DatabaseDSN {
		t.Errorf("Unexpected names: %v", names)
	}

	if err := s.Delete(DatabaseDSN); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get(DatabaseDSN); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound after delete, got %v", err)
	}
	if err := s.Delete(DatabaseDSN); err != nil {
		t.Errorf("Deleting a missing credential should succeed, got %v", err)
	}
	if s.Lookup(DatabaseDSN) != "" {
		t.Error("Lookup of missing credential should be empty")
	}
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()
	t.Setenv("CI", "")
	t.Setenv("CODESPACES", "")

	s := &Store{service: KeyringService, dir: t.TempDir()}

	if err := s.Set(APIKey, "secret"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if s.fileMode {
		t.Fatal("Expected keyring mode with mock provider")
	}
	if got := s.Lookup(APIKey); got != "secret" {
		t.Errorf("Expected secret, got %q", got)
	}

	names, err := s.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(names) != 1 || names[0] != APIKey {
		t.Errorf("Unexpected manifest: %v", names)
	}

	if err := s.Delete(APIKey); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get(APIKey); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
	names, _ = s.List()
	if len(names) != 0 {
		t.Errorf("Expected empty manifest, got %v", names)
	}
}

func TestInvalidNames(t *testing.T) {
	s := NewFileStore(t.TempDir())
	for _, name := range []string{"", "_manifest", "../etc", "a/b", ".hidden"} {
		if err := s.Set(name, "x"); err == nil {
			t.Errorf("Expected error for name %q", name)
		}
	}
}
