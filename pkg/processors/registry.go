package processors

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/openfroyo/instrumenta/pkg/engine"
)

// Registry holds the processors available to a runner, keyed by kind and
// version.
type Registry struct {
	// mu protects the registry state.
	mu sync.RWMutex

	// processors maps "kind@version" to a processor.
	processors map[string]Processor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		processors: make(map[string]Processor),
	}
}

// Register adds p under every version it supports.
func (r *Registry) Register(p Processor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	versions := p.Versions()
	for _, v := range versions {
		key := buildProcessorKey(p.Kind(), v)
		if _, exists := r.processors[key]; exists {
			return engine.NewConfigurationError(
				fmt.Sprintf("processor %s already registered", key), nil,
			).WithCode(engine.ErrCodeDuplicateKind)
		}
	}
	for _, v := range versions {
		r.processors[buildProcessorKey(p.Kind(), v)] = p
	}
	return nil
}

// Get returns the processor for a kind and version.
func (r *Registry) Get(kind, version string) (Processor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.processors[buildProcessorKey(kind, version)]
	if !ok {
		return nil, engine.NewConfigurationError(
			fmt.Sprintf("no processor registered for %s version %s", kind, version), nil,
		).WithCode(engine.ErrCodeUnknownKind)
	}
	return p, nil
}

// For returns the processor for a task.
func (r *Registry) For(task *engine.Task) (Processor, error) {
	return r.Get(task.Kind, task.Version)
}

// Kinds returns the registered "kind@version" keys, sorted.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := make([]string, 0, len(r.processors))
	for k := range r.processors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Unregister removes a kind and version.
func (r *Registry) Unregister(kind, version string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.processors, buildProcessorKey(kind, version))
}

// Close closes every registered processor that holds resources. A processor
// registered under several versions is closed once.
func (r *Registry) Close() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[Processor]bool)
	var errs []error
	for _, p := range r.processors {
		c, ok := p.(io.Closer)
		if !ok || seen[p] {
			continue
		}
		seen[p] = true
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func buildProcessorKey(kind, version string) string {
	return fmt.Sprintf("%s@%s", kind, version)
}
