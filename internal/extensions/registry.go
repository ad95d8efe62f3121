package extensions

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// LoadedExtension is an extension registered into the running process.
// Once present it cannot be removed until the process restarts.
type LoadedExtension struct {
	Manifest *Manifest
	Path     string
	Locales  *LocaleBundle
	LoadedAt time.Time
}

// Divergence reports an extension whose on-disk state no longer matches
// what the running process loaded; a restart reconciles it.
type Divergence struct {
	ExtensionID string
	Loaded      bool
	DiskState   State
}

// Registry holds every loaded extension keyed by id, plus the namespace
// labels they claim. It is the authority other subsystems consult for
// routes, menus and namespace collisions.
type Registry struct {
	mu   sync.RWMutex
	byID map[string]*LoadedExtension
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]*LoadedExtension)}
}

// Register adds a loaded extension. Duplicate ids are rejected.
func (r *Registry) Register(ext *LoadedExtension) error {
	if ext == nil || ext.Manifest == nil {
		return fmt.Errorf("extensions: register nil extension")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	id := ext.Manifest.ID
	if _, exists := r.byID[id]; exists {
		return fmt.Errorf("extensions: %q is already registered", id)
	}
	if ext.LoadedAt.IsZero() {
		ext.LoadedAt = time.Now()
	}
	r.byID[id] = ext
	return nil
}

// Get returns a loaded extension by id.
func (r *Registry) Get(id string) (*LoadedExtension, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ext, ok := r.byID[id]
	return ext, ok
}

// IDs returns the loaded extension ids in lexical order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Namespaces lists the schema namespaces claimed by loaded extensions.
func (r *Registry) Namespaces() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byID))
	for _, ext := range r.byID {
		out = append(out, ext.Manifest.Schema.Namespace)
	}
	sort.Strings(out)
	return out
}

// MenuEntries returns every loaded extension's menu contribution ordered
// by declared priority, ties broken by extension id.
func (r *Registry) MenuEntries() []MenuEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entries := make([]MenuEntry, 0, len(r.byID))
	for id, ext := range r.byID {
		if ext.Manifest.Menu.Label == "" {
			continue
		}
		entry := ext.Manifest.Menu
		entry.ExtensionID = id
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Priority != entries[j].Priority {
			return entries[i].Priority < entries[j].Priority
		}
		return entries[i].ExtensionID < entries[j].ExtensionID
	})
	return entries
}

// RoutePrefixes maps each loaded extension id to its URL prefix
// contribution, skipping extensions that declare none.
func (r *Registry) RoutePrefixes() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string)
	for id, ext := range r.byID {
		if prefix := ext.Manifest.Menu.URLPrefix; prefix != "" {
			out[id] = prefix
		}
	}
	return out
}

// RestartPending compares the registry against the current filesystem
// entries and reports every divergence an operator should know about:
// loaded extensions that are now inactive or gone, and active directories
// that are not loaded.
func (r *Registry) RestartPending(entries []Entry) []Divergence {
	r.mu.RLock()
	defer r.mu.RUnlock()

	onDisk := make(map[string]State, len(entries))
	for _, e := range entries {
		onDisk[e.ID] = e.State
	}

	var pending []Divergence
	for id := range r.byID {
		if state, ok := onDisk[id]; !ok || state != StateActive {
			pending = append(pending, Divergence{ExtensionID: id, Loaded: true, DiskState: state})
		}
	}
	for _, e := range entries {
		if e.State != StateActive {
			continue
		}
		if _, loaded := r.byID[e.ID]; !loaded {
			pending = append(pending, Divergence{ExtensionID: e.ID, Loaded: false, DiskState: StateActive})
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].ExtensionID < pending[j].ExtensionID })
	return pending
}
