package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/jarvis/pkg/provider/imaging"
	"github.com/MrWong99/jarvis/pkg/provider/live"
	"github.com/MrWong99/jarvis/pkg/provider/search"
)

// ErrProviderNotRegistered is returned by Create* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// Registry maps provider names to their constructor functions for each
// provider type. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	live    map[string]func(ProviderEntry) (live.Provider, error)
	imaging map[string]func(ProviderEntry) (imaging.Provider, error)
	search  map[string]func(ProviderEntry) (search.Provider, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		live:    make(map[string]func(ProviderEntry) (live.Provider, error)),
		imaging: make(map[string]func(ProviderEntry) (imaging.Provider, error)),
		search:  make(map[string]func(ProviderEntry) (search.Provider, error)),
	}
}

// RegisterLive registers a live session provider factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterLive(name string, factory func(ProviderEntry) (live.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.live[name] = factory
}

// RegisterImaging registers an image provider factory under name.
func (r *Registry) RegisterImaging(name string, factory func(ProviderEntry) (imaging.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.imaging[name] = factory
}

// RegisterSearch registers a search provider factory under name.
func (r *Registry) RegisterSearch(name string, factory func(ProviderEntry) (search.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.search[name] = factory
}

// CreateLive instantiates a live provider using the factory registered under entry.Name.
// Returns [ErrProviderNotRegistered] if no factory has been registered for that name.
func (r *Registry) CreateLive(entry ProviderEntry) (live.Provider, error) {
	r.mu.RLock()
	factory, ok := r.live[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: live/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateImaging instantiates an image provider using the factory registered under entry.Name.
func (r *Registry) CreateImaging(entry ProviderEntry) (imaging.Provider, error) {
	r.mu.RLock()
	factory, ok := r.imaging[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: imaging/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// CreateSearch instantiates a search provider using the factory registered under entry.Name.
func (r *Registry) CreateSearch(entry ProviderEntry) (search.Provider, error) {
	r.mu.RLock()
	factory, ok := r.search[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: search/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// OptionString returns the string option key from e.Options, or "" if it is
// missing or not a string.
func (e ProviderEntry) OptionString(key string) string {
	s, _ := e.Options[key].(string)
	return s
}
