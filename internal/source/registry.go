package source

import (
	"fmt"
	"sort"
	"sync"
)

// Opener builds a provider from settings of its own kind. It returns
// ErrIncompatibleSettings when handed another kind's settings.
type Opener func(settings Settings, deps Deps) (Provider, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Opener)
)

// Register adds an opener for a provider kind.
// This should be called during init() by each provider implementation.
func Register(kind string, opener Opener) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[kind] = opener
}

// Kinds returns the registered provider kinds in sorted order.
func Kinds() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	kinds := make([]string, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Open validates settings and builds the matching provider. The provider
// is not started.
func Open(settings Settings, deps Deps) (Provider, error) {
	if settings == nil {
		return nil, ErrNoSettings
	}

	switch settings.(type) {
	case FileSettings, NetworkSettings:
	default:
		return nil, fmt.Errorf("%w: %T", ErrIncompatibleSettings, settings)
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}

	registryMu.RLock()
	opener, ok := registry[settings.Kind()]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no provider registered for %q (available: %v)", settings.Kind(), Kinds())
	}
	return opener(settings, deps)
}
