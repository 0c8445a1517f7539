package device

import (
	"fmt"
	"sort"
	"sync"
)

// Factory opens a Device for one backend.
type Factory func(opts Options) (Device, error)

// registry holds registered backend factories.
var (
	registryMu sync.RWMutex
	factories  = make(map[API]Factory)
)

// Register registers a backend factory for api.
// This is typically called from init() functions in backend packages.
// If a factory for api is already registered, it will be replaced.
func Register(api API, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	factories[api] = factory
}

// Unregister removes a backend from the registry.
// This is useful for testing.
func Unregister(api API) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(factories, api)
}

// Available returns the registered backends in API order.
func Available() []API {
	registryMu.RLock()
	defer registryMu.RUnlock()

	apis := make([]API, 0, len(factories))
	for api := range factories {
		apis = append(apis, api)
	}
	sort.Slice(apis, func(i, j int) bool { return apis[i] < apis[j] })
	return apis
}

// IsRegistered checks if a factory is registered for api.
func IsRegistered(api API) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := factories[api]
	return ok
}

// Open creates a Device for api.
//
// Returns ErrAPINotSet for APINone, ErrUnknownAPI for values outside the
// known set and ErrBackendNotAvailable when no factory is registered.
func Open(api API, opts Options) (Device, error) {
	if err := api.Check(); err != nil {
		return nil, err
	}

	registryMu.RLock()
	factory, ok := factories[api]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrBackendNotAvailable, api)
	}

	dev, err := factory(opts)
	if err != nil {
		return nil, fmt.Errorf("device: open %s: %w", api, err)
	}
	return dev, nil
}
