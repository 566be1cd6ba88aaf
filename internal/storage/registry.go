package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"gmb-connector/internal/config"
)

// Factory opens a backend from the process configuration.
type Factory func(ctx context.Context, cfg *config.Config) (Store, error)

// Registry maps storage type names to factories.
type Registry struct {
	factories map[string]Factory
	mu        sync.RWMutex
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

func (r *Registry) Register(storageType string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[storageType] = factory
}

func (r *Registry) Create(ctx context.Context, storageType string, cfg *config.Config) (Store, error) {
	r.mu.RLock()
	factory, exists := r.factories[storageType]
	r.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("storage type %s not registered", storageType)
	}

	return factory(ctx, cfg)
}

func (r *Registry) GetAvailableTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.factories))
	for storageType := range r.factories {
		types = append(types, storageType)
	}
	sort.Strings(types)
	return types
}

func (r *Registry) IsRegistered(storageType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.factories[storageType]
	return exists
}

var DefaultRegistry = NewRegistry()

// Register adds a backend to the default registry. Backends call it from init.
func Register(storageType string, factory Factory) {
	DefaultRegistry.Register(storageType, factory)
}

func GetAvailableTypes() []string {
	return DefaultRegistry.GetAvailableTypes()
}
