// Package vault persists the mapping from deep-link tokens to the
// Telegram messages they reference.
//
// The store is a single JSON object on disk: token -> reference. It is
// loaded fully at open and rewritten in full on every insert. That is
// deliberate: write volume is one insert per archived message, so a
// whole-file rewrite stays cheap and keeps the file trivially inspectable.
package vault

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/tinyland-inc/linkvault/pkg/logger"
)

// ErrNotFound is returned by Get for tokens absent from the vault.
var ErrNotFound = errors.New("token not found in vault")

// ErrTokenExists is returned by Put when the token is already mapped.
// Generated tokens are assumed unique, so hitting this is a defect
// signal; the existing entry is never overwritten.
var ErrTokenExists = errors.New("token already present in vault")

// Reference identifies a previously archived message.
type Reference struct {
	ChatID    int64  `json:"chat_id"`
	MessageID int    `json:"message_id"`
	CreatedAt string `json:"created_at,omitempty"`
}

// Store is the on-disk token mapping. All read-modify-persist sequences
// are serialized by one mutex so concurrent inserts cannot lose updates
// through the whole-file rewrite.
type Store struct {
	mu      sync.RWMutex
	path    string
	entries map[string]Reference
}

// Open loads the store at path. A missing or empty file yields an empty
// store. A file that fails to parse is copied aside to <path>.backup and
// replaced with an empty mapping; corruption never aborts startup.
func Open(path string) (*Store, error) {
	s := &Store{
		path:    path,
		entries: make(map[string]Reference),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("reading vault file: %w", err)
	}
	if len(data) == 0 {
		return s, nil
	}

	var entries map[string]Reference
	if err := json.Unmarshal(data, &entries); err != nil {
		backup := path + ".backup"
		if werr := os.WriteFile(backup, data, 0o600); werr != nil {
			logger.ErrorCF("vault", "Failed to back up corrupt store file", map[string]any{
				"path":  backup,
				"error": werr.Error(),
			})
		} else {
			logger.WarnCF("vault", "Corrupt store file, starting empty", map[string]any{
				"path":   path,
				"backup": backup,
				"error":  err.Error(),
			})
		}
		return s, nil
	}

	s.entries = entries
	if s.entries == nil {
		// A file containing JSON "null" parses without error.
		s.entries = make(map[string]Reference)
	}
	return s, nil
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Put inserts a new token mapping and synchronously rewrites the file.
// If persisting fails the in-memory entry is rolled back so memory and
// disk never diverge.
func (s *Store) Put(token string, ref Reference) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[token]; exists {
		return fmt.Errorf("%w: %s", ErrTokenExists, token)
	}

	s.entries[token] = ref
	if err := s.persistLocked(); err != nil {
		delete(s.entries, token)
		return fmt.Errorf("persisting vault: %w", err)
	}
	return nil
}

// Get looks up a token. It has no side effects.
func (s *Store) Get(token string) (Reference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ref, ok := s.entries[token]
	if !ok {
		return Reference{}, fmt.Errorf("%w: %s", ErrNotFound, token)
	}
	return ref, nil
}

// Len returns the number of stored mappings.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Tokens returns all stored tokens. Order is unspecified.
func (s *Store) Tokens() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tokens := make([]string, 0, len(s.entries))
	for tok := range s.entries {
		tokens = append(tokens, tok)
	}
	return tokens
}

func (s *Store) persistLocked() error {
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	return os.WriteFile(s.path, data, 0o600)
}
