package model

import (
	"fmt"
	"sort"
	"sync"
)

// Config carries construction parameters for model factories. Which fields
// matter depends on the factory: local models want weights on disk, hosted
// ones want credentials.
type Config struct {
	// ModelPath points at local model weights.
	ModelPath string
	// APIKey authenticates hosted capabilities.
	APIKey string
	// Variant selects a provider-side model variant, e.g. "whisper-1".
	Variant string
}

// Factory builds an unloaded model instance from a config.
type Factory func(cfg Config) (Model, error)

// Registry maps capability names to factories. It is populated explicitly at
// process start; there is no runtime plugin discovery.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register binds a factory to a name, replacing any previous binding.
func (r *Registry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// New constructs an unloaded model by name.
func (r *Registry) New(name string, cfg Config) (Model, error) {
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}
	return f(cfg)
}

// Available returns the registered capability names, sorted.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
