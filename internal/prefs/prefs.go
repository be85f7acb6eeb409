// Package prefs is a small device-local key/value store persisted as a
// JSON object on disk. It holds per-installation settings that are never
// shared with other devices: the member list and the dark-mode flag.
package prefs

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	KeyMembers  = "miembrosFamilia"
	KeyDarkMode = "modoOscuro"
)

type Store struct {
	mu       sync.RWMutex
	filePath string
	values   map[string]json.RawMessage
}

// Open loads the file at path, creating it when missing. An empty path
// keeps values in memory only.
func Open(path string) (*Store, error) {
	s := &Store{filePath: path, values: map[string]json.RawMessage{}}
	if path == "" {
		return s, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create prefs dir: %w", err)
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read prefs file: %w", err)
	}
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s.values); err != nil {
		return nil, fmt.Errorf("parse prefs file: %w", err)
	}
	return s, nil
}

// Get decodes the value under key into dst. It reports false when the key
// is absent.
func (s *Store) Get(key string, dst any) (bool, error) {
	s.mu.RLock()
	raw, ok := s.values[key]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return true, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// Set stores v under key and writes the file.
func (s *Store) Set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make(map[string]json.RawMessage, len(s.values)+1)
	for k, v := range s.values {
		next[k] = v
	}
	next[key] = raw
	if err := s.persist(next); err != nil {
		return err
	}
	s.values = next
	return nil
}

func (s *Store) DarkMode() bool {
	var on bool
	if ok, err := s.Get(KeyDarkMode, &on); !ok || err != nil {
		return false
	}
	return on
}

func (s *Store) SetDarkMode(on bool) error {
	return s.Set(KeyDarkMode, on)
}

func (s *Store) persist(values map[string]json.RawMessage) error {
	if s.filePath == "" {
		return nil
	}
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal prefs: %w", err)
	}
	tmpPath := s.filePath + ".tmp"
	if err := os.WriteFile(tmpPath, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write temp prefs file: %w", err)
	}
	if err := os.Rename(tmpPath, s.filePath); err != nil {
		return fmt.Errorf("replace prefs file: %w", err)
	}
	return nil
}
