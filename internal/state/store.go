package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"gopkg.in/yaml.v3"
)

// StateError wraps any failure to read or decode a persisted state file.
//
// A missing file is not a StateError - loading an absent file yields an
// empty store. Malformed YAML and unrecognized state strings are.
type StateError struct {
	Path string
	Err  error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("state file %s: %v", e.Path, e.Err)
}

func (e *StateError) Unwrap() error { return e.Err }

// IsStateError reports whether err is (or wraps) a [StateError].
func IsStateError(err error) bool {
	var se *StateError
	return errors.As(err, &se)
}

// Store is the in-memory mapping from step ID to lifecycle state.
//
// All operations are pure; only [FileStore.Save] and [Load] touch the
// filesystem. Entries are never removed by the lifecycle engine.
type Store struct {
	steps map[string]StepState
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{steps: make(map[string]StepState)}
}

// Get returns the recorded state for a step ID. Absence means the step has
// never advanced past its declared or initial state.
func (s *Store) Get(id string) (StepState, bool) {
	st, ok := s.steps[id]
	return st, ok
}

// Set records a state for a step ID. In-memory only.
func (s *Store) Set(id string, st StepState) {
	s.steps[id] = st
}

// Len returns the number of recorded entries.
func (s *Store) Len() int {
	return len(s.steps)
}

// Snapshot returns a copy of the mapping, for comparisons in tests and
// no-op verification.
func (s *Store) Snapshot() map[string]StepState {
	out := make(map[string]StepState, len(s.steps))
	for id, st := range s.steps {
		out[id] = st
	}
	return out
}

// stateDoc is the YAML document shape for persisted state.
type stateDoc struct {
	Steps map[string]string `yaml:"steps"`
}

// FileStore binds a [Store] to a YAML file path.
type FileStore struct {
	*Store
	path string
}

// Load reads the state file at path, returning an empty store when the file
// does not exist. Malformed documents and unknown state values return a
// [StateError].
func Load(path string) (*FileStore, error) {
	fs := &FileStore{Store: NewStore(), path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fs, nil
		}
		return nil, &StateError{Path: path, Err: err}
	}

	var doc stateDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &StateError{Path: path, Err: err}
	}
	for id, raw := range doc.Steps {
		st, err := ParseState(raw)
		if err != nil {
			return nil, &StateError{Path: path, Err: err}
		}
		fs.steps[id] = st
	}
	return fs, nil
}

// Path returns the file path this store persists to.
func (f *FileStore) Path() string {
	return f.path
}

// Save writes the full store atomically: the document is written to a
// temporary file in the same directory and then renamed over the target, so
// a crash mid-write never corrupts the previous snapshot.
func (f *FileStore) Save() error {
	doc := stateDoc{Steps: make(map[string]string, len(f.steps))}
	for id, st := range f.steps {
		doc.Steps[id] = st.String()
	}

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create state dir: %w", err)
		}
	}

	tmpPath := f.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

// OrderedIDs returns the recorded step IDs sorted numerically where possible
// (1, 2, 10 rather than 1, 10, 2), falling back to lexical order.
func (s *Store) OrderedIDs() []string {
	ids := make([]string, 0, len(s.steps))
	for id := range s.steps {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, aerr := strconv.Atoi(ids[i])
		b, berr := strconv.Atoi(ids[j])
		if aerr == nil && berr == nil {
			return a < b
		}
		return ids[i] < ids[j]
	})
	return ids
}
