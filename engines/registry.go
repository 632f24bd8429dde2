package engines

import (
	"fmt"
	"slices"
	"sync"

	"golang.org/x/exp/maps"
)

// Factory builds a backend from its configuration.
type Factory func(cfg BackendConfig) (LLM, error)

// Registry maps backend identifiers to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

// NewDefaultRegistry knows every backend shipped with this module.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	must := func(name string, f Factory) {
		if err := r.Register(name, f); err != nil {
			panic(err)
		}
	}
	must("ollama", func(cfg BackendConfig) (LLM, error) { return NewOllama(cfg) })
	must("huggingface", func(cfg BackendConfig) (LLM, error) { return NewHuggingFace(cfg) })
	must("openai", func(cfg BackendConfig) (LLM, error) { return NewGPT(cfg) })
	must("deepseek", func(cfg BackendConfig) (LLM, error) { return NewDeepSeek(cfg) })
	must("anthropic", func(cfg BackendConfig) (LLM, error) { return NewClaude(cfg) })
	return r
}

func (r *Registry) Register(name string, factory Factory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[name]; ok {
		return fmt.Errorf("%w: %s", ErrBackendRegistered, name)
	}
	r.factories[name] = factory
	return nil
}

// New builds the backend named by cfg.Type.
func (r *Registry) New(cfg BackendConfig) (LLM, error) {
	r.mu.RLock()
	factory, ok := r.factories[cfg.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Type)
	}
	llm, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s backend: %w", cfg.Type, err)
	}
	return llm, nil
}

func (r *Registry) Backends() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := maps.Keys(r.factories)
	slices.Sort(names)
	return names
}
