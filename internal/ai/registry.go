package ai

import (
	"context"
	"fmt"
	"sync"
)

// Factory builds a Model for the given model name.
type Factory func(ctx context.Context, modelName string) (Model, error)

// Registry maps model names to backends through a route table and caches the
// built models.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	routes    map[string]string
	models    map[string]Model
}

func NewRegistry(routes map[string]string) *Registry {
	copied := make(map[string]string, len(routes))
	for name, backend := range routes {
		copied[name] = backend
	}
	return &Registry{
		factories: make(map[string]Factory),
		routes:    copied,
		models:    make(map[string]Model),
	}
}

func (r *Registry) Register(backend string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[backend] = factory
}

func (r *Registry) Resolve(ctx context.Context, modelName string) (Model, error) {
	r.mu.RLock()
	cached, ok := r.models[modelName]
	backend := r.routes[modelName]
	factory := r.factories[backend]
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}
	if backend == "" || factory == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModel, modelName)
	}

	built, err := factory(ctx, modelName)
	if err != nil {
		return nil, fmt.Errorf("build %s model %q failed: %w", backend, modelName, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.models[modelName]; ok {
		return existing, nil
	}
	r.models[modelName] = built
	return built, nil
}
