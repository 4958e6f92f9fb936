package adapter

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/mfirdausazizi/scurrydb-sub002/pkg/core"
)

// Factory creates an unconnected adapter.
type Factory func(*slog.Logger) Adapter

var (
	registryMu sync.RWMutex
	registry   = make(map[core.EngineKind]Factory)
)

// Register adds an adapter factory to the registry.
// Called by adapter implementations in their init() functions.
func Register(kind core.EngineKind, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[kind] = factory
}

// Get retrieves an adapter factory by engine kind.
func Get(kind core.EngineKind) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[kind]
	return f, ok
}

// NewAdapter creates a new, unconnected adapter for the engine of cfg.
// The logger parameter is passed to the adapter constructor (nil uses discard logger).
func NewAdapter(cfg core.ConnectionConfig, logger *slog.Logger) (Adapter, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("engine kind not specified")
	}

	kind, ok := core.ParseEngineKind(string(cfg.Kind))
	if !ok {
		kind = cfg.Kind
	}
	factory, ok := Get(kind)
	if !ok {
		return nil, &core.UnknownEngineError{
			Kind:      string(cfg.Kind),
			Available: ListAdapters(),
		}
	}
	return factory(logger), nil
}

// ListAdapters returns all registered engine kinds (sorted).
func ListAdapters() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for kind := range registry {
		names = append(names, string(kind))
	}
	sort.Strings(names)
	return names
}

// IsRegistered checks if an engine kind has an adapter.
func IsRegistered(kind core.EngineKind) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := registry[kind]
	return ok
}
