package backend

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/gogpu/raytrace/gpucore"
)

// registry holds registered backends.
var (
	registryMu sync.RWMutex
	backends   = make(map[string]DeviceFactory)
	// Priority order for backend selection (first that opens wins).
	backendPriority = []string{BackendWGPU, BackendSoftware}
)

// Register registers a device factory with the given name.
// This is typically called from init() functions in backend packages.
// If a backend with the same name is already registered, it is replaced.
func Register(name string, factory DeviceFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	backends[name] = factory
}

// Unregister removes a backend from the registry.
// This is useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(backends, name)
}

// Available returns the registered backend names in sorted order.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered checks if a backend with the given name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := backends[name]
	return ok
}

// Get opens a device from the named backend.
func Get(name string) (gpucore.Device, error) {
	registryMu.RLock()
	factory, ok := backends[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrBackendNotAvailable, name)
	}
	dev, err := factory()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrBackendNotAvailable, name, err)
	}
	return dev, nil
}

// Default opens a device from the best available backend.
// Priority order: wgpu > software. A backend that fails to open is
// skipped and the failure is logged at warn level.
func Default(logger *slog.Logger) (gpucore.Device, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	tried := make(map[string]bool, len(backendPriority))
	order := append([]string(nil), backendPriority...)
	for _, name := range Available() {
		if !contains(order, name) {
			order = append(order, name)
		}
	}

	for _, name := range order {
		if tried[name] || !IsRegistered(name) {
			continue
		}
		tried[name] = true
		dev, err := Get(name)
		if err != nil {
			logger.Warn("backend unavailable, trying next", "backend", name, "err", err)
			continue
		}
		logger.Info("backend selected", "backend", name)
		return dev, nil
	}
	return nil, ErrBackendNotAvailable
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
