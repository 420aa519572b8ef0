package domain

import (
	"context"
	"sync"
)

// Entity is the minimal view of a trackable business object the history
// feed needs: its polymorphic tag, numeric id and display name.
type Entity struct {
	Type string
	ID   int64
	Name string
}

// EntityLoader resolves one instance of a registered type. A nil entity
// with a nil error means the instance does not exist.
type EntityLoader func(ctx context.Context, id int64) (*Entity, error)

// TypeRegistry maps entity type tags onto loader functions. It replaces
// dynamic class instantiation with an explicit tag -> loader table.
type TypeRegistry struct {
	mu      sync.RWMutex
	loaders map[string]EntityLoader
}

func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{loaders: make(map[string]EntityLoader)}
}

// Register makes a type tag trackable. Registering the same tag twice
// replaces the previous loader.
func (r *TypeRegistry) Register(name string, loader EntityLoader) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaders[name] = loader
}

// IsKnownType reports whether the tag names a registered trackable type.
func (r *TypeRegistry) IsKnownType(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.loaders[name]
	return ok
}

// Load resolves an instance through the registered loader.
func (r *TypeRegistry) Load(ctx context.Context, name string, id int64) (*Entity, error) {
	r.mu.RLock()
	loader, ok := r.loaders[name]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrUnknownEntityType
	}
	return loader(ctx, id)
}
