package netfs

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Factory creates a fresh, unmounted Backend for a locator's scheme.
type Factory func(loc *Locator) (Backend, error)

// Registry maps locator schemes to backend factories and builds the
// Protocol a device channel uses for a locator.
//
// Thread safety:
// All methods are safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	opts      FSOptions
}

// NewRegistry creates an empty registry. opts is applied to every FS it
// builds.
func NewRegistry(opts FSOptions) *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		opts:      opts,
	}
}

// Register binds scheme (case-insensitive) to f, replacing any previous
// binding.
func (r *Registry) Register(scheme string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[strings.ToLower(scheme)] = f
}

// Schemes returns the registered schemes, sorted.
func (r *Registry) Schemes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for s := range r.factories {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Backend creates the backend serving loc.
func (r *Registry) Backend(loc *Locator) (Backend, error) {
	r.mu.RLock()
	f, ok := r.factories[strings.ToLower(loc.Scheme)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no backend for scheme %q", ErrInvalidDevicespec, loc.Scheme)
	}
	return f(loc)
}

// Protocol returns a Protocol for loc, ready to be opened.
func (r *Registry) Protocol(loc *Locator) (*FS, error) {
	b, err := r.Backend(loc)
	if err != nil {
		return nil, err
	}
	return NewFS(b, r.opts), nil
}
