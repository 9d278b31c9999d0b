// Package file persists configuration and synchronisation state as
// TOML files under the drivesearch config directory.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/drivesearch-cli/internal/core/domain"
	"github.com/custodia-labs/drivesearch-cli/internal/core/ports/driven"
)

// Ensure StateStore implements the interface.
var _ driven.SyncStateStore = (*StateStore)(nil)

// stateFileName is the sync-state file within the config directory.
const stateFileName = "state.toml"

// StateStore is a TOML-file sync-state store. The indexing pipeline is
// its single writer; the change detector reads it at run start.
type StateStore struct {
	mu       sync.Mutex
	filePath string
}

// NewStateStore creates a state store rooted at configDir. If configDir
// is empty it defaults to ~/.drivesearch.
func NewStateStore(configDir string) (*StateStore, error) {
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		configDir = filepath.Join(home, ".drivesearch")
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, err
	}

	return &StateStore{filePath: filepath.Join(configDir, stateFileName)}, nil
}

// Get reads the persisted state. Returns domain.ErrNotFound when no
// state has been recorded yet.
func (s *StateStore) Get(_ context.Context) (domain.SyncState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if os.IsNotExist(err) {
		return domain.SyncState{}, fmt.Errorf("%w: no sync state at %s", domain.ErrNotFound, s.filePath)
	}
	if err != nil {
		return domain.SyncState{}, fmt.Errorf("read sync state: %w", err)
	}

	var state domain.SyncState
	if err := toml.Unmarshal(data, &state); err != nil {
		return domain.SyncState{}, fmt.Errorf("parse sync state: %w", err)
	}
	return state, nil
}

// Save persists the state with restricted permissions.
func (s *StateStore) Save(_ context.Context, state domain.SyncState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := toml.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal sync state: %w", err)
	}
	if err := os.WriteFile(s.filePath, data, 0600); err != nil {
		return fmt.Errorf("write sync state: %w", err)
	}
	return nil
}
