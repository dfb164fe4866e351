package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
)

// sessionData is the on-disk session.
type sessionData struct {
	Server string `toml:"server,omitempty"`
	Token  string `toml:"token,omitempty"`
	Email  string `toml:"email,omitempty"` // remembered login email
}

// fileSession keeps the session in a TOML file readable only by the owner.
// It implements client.TokenStore; every change is written through.
type fileSession struct {
	path string

	mu   sync.Mutex
	data sessionData
}

func defaultSessionPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config directory: %w", err)
	}
	return filepath.Join(dir, "taskd", "session.toml"), nil
}

// loadSession reads path. A missing file is an empty session.
func loadSession(path string) (*fileSession, error) {
	s := &fileSession{path: path}
	if _, err := toml.DecodeFile(path, &s.data); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read session %s: %w", path, err)
	}
	return s, nil
}

func (s *fileSession) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.Token
}

func (s *fileSession) SetToken(token string) error {
	return s.update(func(d *sessionData) { d.Token = token })
}

// Clear drops the token but keeps the remembered email and server.
func (s *fileSession) Clear() error {
	return s.update(func(d *sessionData) { d.Token = "" })
}

func (s *fileSession) snapshot() sessionData {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data
}

func (s *fileSession) update(fn func(*sessionData)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.data)
	return s.save()
}

// save writes the file through a temp file and rename. Caller holds mu.
func (s *fileSession) save() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*.toml")
	if err != nil {
		return fmt.Errorf("failed to create session file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to restrict session file: %w", err)
	}
	if err := toml.NewEncoder(tmp).Encode(s.data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write session: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}
