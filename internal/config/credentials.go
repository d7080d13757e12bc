// Package config loads and persists the session credentials file.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Credentials identify the backend and the API client. Immutable for a
// session once loaded; changed only through Save.
type Credentials struct {
	BackendURL      string
	ClientID        string
	ClientSecret    string
	DefaultSearchID string
}

// ErrNotFound is returned by Load when no credentials file exists yet.
var ErrNotFound = errors.New("credentials file not found")

// File keys. The file is plain key=value lines, one per key.
const (
	keyURL             = "url"
	keyClientID        = "client_id"
	keyClientSecret    = "client_secret"
	keyDefaultSearchID = "default_search_id"
)

// DefaultPath returns the standard credentials file location.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home dir: %w", err)
	}
	return filepath.Join(home, ".patchpilot", "credentials"), nil
}

// Load reads credentials from path. The file must be readable by the
// owner only; looser permissions are an error because the secret would
// be exposed to other local users.
func Load(path string) (*Credentials, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("checking credentials file: %w", err)
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		return nil, fmt.Errorf("credentials file %s has permissions %04o, want 0600", path, perm)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening credentials file: %w", err)
	}
	defer f.Close()

	creds := &Credentials{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("credentials file %s: malformed line %q", path, line)
		}
		value = strings.TrimSpace(value)
		switch strings.TrimSpace(key) {
		case keyURL:
			creds.BackendURL = value
		case keyClientID:
			creds.ClientID = value
		case keyClientSecret:
			creds.ClientSecret = value
		case keyDefaultSearchID:
			creds.DefaultSearchID = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading credentials file: %w", err)
	}

	if creds.BackendURL == "" || creds.ClientID == "" || creds.ClientSecret == "" {
		return nil, fmt.Errorf("credentials file %s: url, client_id and client_secret are required", path)
	}
	return creds, nil
}

// Save writes credentials to path with owner-only permissions. An
// existing file is first copied to path.bak, then the new content is
// written to a temp file in the same directory and renamed into place,
// so an interruption can never leave a corrupt or half-written file.
func Save(path string, creds *Credentials) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	if old, err := os.ReadFile(path); err == nil {
		if err := os.WriteFile(path+".bak", old, 0o600); err != nil {
			return fmt.Errorf("backing up credentials file: %w", err)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s=%s\n", keyURL, creds.BackendURL)
	fmt.Fprintf(&b, "%s=%s\n", keyClientID, creds.ClientID)
	fmt.Fprintf(&b, "%s=%s\n", keyClientSecret, creds.ClientSecret)
	fmt.Fprintf(&b, "%s=%s\n", keyDefaultSearchID, creds.DefaultSearchID)

	tmp, err := os.CreateTemp(dir, ".credentials-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("restricting temp file: %w", err)
	}
	if _, err := tmp.WriteString(b.String()); err != nil {
		tmp.Close()
		return fmt.Errorf("writing credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replacing credentials file: %w", err)
	}
	return nil
}
