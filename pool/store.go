package pool

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/natefinch/atomic"

	"github.com/plotfarm/go-farmer/common/types"
)

// StateFile is the name of the pool state file in the data directory.
const StateFile = "pool_state.json"

// persisted is the part of a pool state that survives restarts.
type persisted struct {
	Difficulty uint64 `json:"difficulty"`
}

// StateStore persists learned pool difficulties so a restarted farmer does not start from
// the minimum difficulty again.
type StateStore struct {
	path string

	mu     sync.Mutex
	states map[types.Bytes32]persisted
}

// OpenStateStore loads the state file in dir. A missing file is an empty store.
func OpenStateStore(dir string) (*StateStore, error) {
	s := &StateStore{
		path:   filepath.Join(dir, StateFile),
		states: make(map[types.Bytes32]persisted),
	}
	data, err := os.ReadFile(s.path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("%w: read %s: %w", types.ErrDiskIO, s.path, err)
	}
	var raw map[string]persisted
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", types.ErrConfiguration, s.path, err)
	}
	for key, state := range raw {
		id, err := types.HexToBytes32(key)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: launcher id %q: %w", types.ErrConfiguration, s.path, key, err)
		}
		s.states[id] = state
	}
	return s, nil
}

// Difficulty returns the persisted difficulty of a pool, or zero.
func (s *StateStore) Difficulty(launcherID types.Bytes32) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[launcherID].Difficulty
}

// SaveDifficulty persists the difficulty of a pool.
func (s *StateStore) SaveDifficulty(launcherID types.Bytes32, difficulty uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.states[launcherID].Difficulty == difficulty {
		return nil
	}
	s.states[launcherID] = persisted{Difficulty: difficulty}

	raw := make(map[string]persisted, len(s.states))
	for id, state := range s.states {
		raw[id.String()] = state
	}
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("encode pool state: %w", err)
	}
	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("%w: write %s: %w", types.ErrDiskIO, s.path, err)
	}
	return nil
}
