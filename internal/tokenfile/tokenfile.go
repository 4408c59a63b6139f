// Package tokenfile persists OAuth2 tokens on disk. Azure access
// tokens are scoped per resource (Graph, ARM, storage), so tokens are
// stored one file per resource under a common directory, with the
// shared refresh token living in the login resource's file. Leaf
// package imported by both azauth/ and the CLI.
package tokenfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/oauth2"
)

// FilePerms restricts token files to owner-only read/write.
const FilePerms = 0o600

// DirPerms is used when creating the tokens directory.
const DirPerms = 0o700

// Store reads and writes per-resource token files in one directory.
type Store struct {
	dir string
}

// NewStore returns a Store rooted at dir. The directory is created
// lazily on first save.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the directory the store writes into.
func (s *Store) Dir() string {
	return s.dir
}

// file is the on-disk format. Tenant records which Azure AD tenant
// issued the token so a tenant change invalidates stale files.
type file struct {
	Token  *oauth2.Token `json:"token"`
	Tenant string        `json:"tenant,omitempty"`
}

// Path returns the file path for a resource name. Resource names are
// short identifiers ("graph", "storage", "arm"), sanitized so a
// malformed name cannot escape the directory.
func (s *Store) Path(resource string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			return r
		default:
			return '_'
		}
	}, strings.ToLower(resource))

	return filepath.Join(s.dir, safe+".json")
}

// Load reads the saved token for a resource. Returns a nil token (and
// nil error) if no token file exists.
func (s *Store) Load(resource string) (*oauth2.Token, string, error) {
	path := s.Path(resource)

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, "", nil
	}

	if err != nil {
		return nil, "", fmt.Errorf("tokenfile: reading %s: %w", path, err)
	}

	var tf file
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, "", fmt.Errorf("tokenfile: decoding %s: %w", path, err)
	}

	if tf.Token == nil {
		return nil, "", fmt.Errorf("tokenfile: %s missing token field (re-login required)", path)
	}

	return tf.Token, tf.Tenant, nil
}

// Save writes a token file atomically (write-to-temp + rename) with
// 0600 permissions. Never logs token values.
func (s *Store) Save(resource string, tok *oauth2.Token, tenant string) error {
	data, err := json.MarshalIndent(file{Token: tok, Tenant: tenant}, "", "  ")
	if err != nil {
		return fmt.Errorf("tokenfile: encoding: %w", err)
	}

	if mkErr := os.MkdirAll(s.dir, DirPerms); mkErr != nil {
		return fmt.Errorf("tokenfile: creating directory %s: %w", s.dir, mkErr)
	}

	// Atomic write: temp file in the same directory, then rename.
	// Same directory guarantees same filesystem for rename(2).
	tmp, err := os.CreateTemp(s.dir, ".token-*.tmp")
	if err != nil {
		return fmt.Errorf("tokenfile: creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := os.Chmod(tmpPath, FilePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenfile: setting permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenfile: writing: %w", err)
	}

	// Flush before rename so a crash cannot leave a truncated token
	// file at the final path.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenfile: syncing: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("tokenfile: closing: %w", err)
	}

	if err := os.Rename(tmpPath, s.Path(resource)); err != nil {
		return fmt.Errorf("tokenfile: renaming: %w", err)
	}

	success = true

	return nil
}

// Remove deletes the token file for a resource. Missing files are not
// an error (already logged out).
func (s *Store) Remove(resource string) error {
	err := os.Remove(s.Path(resource))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	return err
}

// RemoveAll deletes every token file for the given resources, keeping
// the first error but attempting all removals.
func (s *Store) RemoveAll(resources ...string) error {
	var firstErr error

	for _, r := range resources {
		if err := s.Remove(r); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}
