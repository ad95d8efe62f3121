// Package extensions implements the Helios extension runtime: archive
// installation, manifest validation, schema conflict detection, lifecycle
// state management, and the startup loader/registrar.
package extensions

import (
	"errors"
	"fmt"
	"time"
)

// ErrNotFound indicates that the requested extension record does not exist.
var ErrNotFound = errors.New("extensions: not found")

// ErrStillActive is returned when uninstall is attempted on an active extension.
var ErrStillActive = errors.New("extensions: extension is active, deactivate first")

// Extension is the persisted record of an installed extension. The
// filesystem name remains the authoritative lifecycle flag; IsActive here
// is a cache of it, reconciled on every startup scan.
type Extension struct {
	ID          int64
	ExtensionID string
	Name        string
	Version     string
	Author      string
	Kind        Kind
	InstallPath string
	IsInstalled bool
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Kind classifies how access to an extension is gated.
type Kind string

const (
	KindFree         Kind = "free"
	KindPaid         Kind = "paid"
	KindSubscription Kind = "subscription"
)

// ValidationError reports manifest or dependency validation failures.
// Installation is aborted and no filesystem changes persist.
type ValidationError struct {
	ExtensionID string
	Issues      []string
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 1 {
		return fmt.Sprintf("extensions: validation failed for %q: %s", e.ExtensionID, e.Issues[0])
	}
	return fmt.Sprintf("extensions: validation failed for %q: %d issues, first: %s", e.ExtensionID, len(e.Issues), e.Issues[0])
}

// ConflictError reports a schema or namespace collision. The message names
// the exact colliding identifier.
type ConflictError struct {
	ExtensionID string
	Kind        string // "table", "namespace" or "model"
	Identifier  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("extensions: %s %q declared by %q collides with an existing %s", e.Kind, e.Identifier, e.ExtensionID, e.Kind)
}

// MigrationError reports a schema apply failure. The extension is left in
// the staged (inactive, not installed) state for operator inspection.
type MigrationError struct {
	ExtensionID string
	Script      string
	Err         error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("extensions: migration %s failed for %q: %v", e.Script, e.ExtensionID, e.Err)
}

func (e *MigrationError) Unwrap() error { return e.Err }

// LoadError reports a single extension failing to register at startup.
// The extension is skipped; host startup continues.
type LoadError struct {
	ExtensionID string
	Err         error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("extensions: load %q: %v", e.ExtensionID, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// StateConflictError is returned when a rename transition targets a name
// that already exists under the extensions root.
type StateConflictError struct {
	ExtensionID string
	Target      string
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("extensions: cannot transition %q: target %q already exists", e.ExtensionID, e.Target)
}
