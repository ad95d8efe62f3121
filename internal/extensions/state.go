package extensions

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// State is an extension's lifecycle state, derived exclusively from its
// directory name. Renaming is the only way to change it.
type State string

const (
	StateActive   State = "active"
	StateInactive State = "inactive"
	StateHidden   State = "hidden"
)

// StateOf maps a directory base name to its extension id and state.
func StateOf(dirName string) (id string, state State) {
	switch {
	case strings.HasPrefix(dirName, "."):
		return strings.TrimPrefix(dirName, "."), StateHidden
	case strings.HasPrefix(dirName, "_"):
		return strings.TrimPrefix(dirName, "_"), StateInactive
	default:
		return dirName, StateActive
	}
}

// DirName is the inverse of StateOf.
func DirName(id string, state State) string {
	switch state {
	case StateInactive:
		return "_" + id
	case StateHidden:
		return "." + id
	default:
		return id
	}
}

// Transition is the result of a successful lifecycle operation. All
// transitions take effect in the running process only after a restart.
type Transition struct {
	ExtensionID     string
	From, To        State
	RestartRequired bool
}

// Entry is one extension directory found under the extensions root.
type Entry struct {
	ID    string
	State State
	Path  string
}

// StateManager performs lifecycle transitions via atomic rename under a
// single extensions root.
type StateManager struct {
	root string
}

// NewStateManager returns a manager rooted at dir, creating it if needed.
func NewStateManager(root string) (*StateManager, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("extensions: create root: %w", err)
	}
	return &StateManager{root: root}, nil
}

// Root returns the extensions root directory.
func (s *StateManager) Root() string { return s.root }

// Path returns the directory an extension with the given state occupies.
func (s *StateManager) Path(id string, state State) string {
	return filepath.Join(s.root, DirName(id, state))
}

// State reports the current state of an extension, or ErrNotFound when no
// directory form exists.
func (s *StateManager) State(id string) (State, error) {
	for _, st := range []State{StateActive, StateInactive, StateHidden} {
		if _, err := os.Stat(s.Path(id, st)); err == nil {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Scan lists every extension directory under the root, hidden ones
// included, sorted by id.
func (s *StateManager) Scan() ([]Entry, error) {
	dirents, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("extensions: scan root: %w", err)
	}
	var entries []Entry
	for _, d := range dirents {
		if !d.IsDir() {
			continue
		}
		id, state := StateOf(d.Name())
		if id == "" {
			continue
		}
		entries = append(entries, Entry{ID: id, State: state, Path: filepath.Join(s.root, d.Name())})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries, nil
}

// Activate renames "_<id>" to "<id>". The change takes effect on the next
// restart.
func (s *StateManager) Activate(id string) (Transition, error) {
	return s.rename(id, StateInactive, StateActive)
}

// Deactivate renames "<id>" to "_<id>". The loaded code stays in the
// process until the next restart.
func (s *StateManager) Deactivate(id string) (Transition, error) {
	return s.rename(id, StateActive, StateInactive)
}

func (s *StateManager) rename(id string, from, to State) (Transition, error) {
	src := s.Path(id, from)
	dst := s.Path(id, to)
	if _, err := os.Stat(src); err != nil {
		if current, stateErr := s.State(id); stateErr == nil && current == to {
			// Already at the target; a conflict, not an I/O failure.
			return Transition{}, &StateConflictError{ExtensionID: id, Target: filepath.Base(dst)}
		}
		return Transition{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if _, err := os.Stat(dst); err == nil {
		return Transition{}, &StateConflictError{ExtensionID: id, Target: filepath.Base(dst)}
	}
	if err := os.Rename(src, dst); err != nil {
		return Transition{}, fmt.Errorf("extensions: rename %s: %w", id, err)
	}
	return Transition{ExtensionID: id, From: from, To: to, RestartRequired: true}, nil
}

// Delete removes whichever directory form exists for the extension.
func (s *StateManager) Delete(id string) error {
	state, err := s.State(id)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(s.Path(id, state)); err != nil {
		return fmt.Errorf("extensions: delete %s: %w", id, err)
	}
	return nil
}
