package sources

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registry = make(map[SourceType]ReaderFactory)
	mu       sync.RWMutex
)

// Register adds a reader factory to the registry
func Register(sourceType SourceType, factory ReaderFactory) {
	mu.Lock()
	defer mu.Unlock()
	registry[sourceType] = factory
}

// Create creates a new reader instance by type
func Create(sourceType SourceType, config map[string]interface{}) (Reader, error) {
	mu.RLock()
	factory, ok := registry[sourceType]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSource, sourceType)
	}

	return factory(config)
}

// List returns all registered source types
func List() []SourceType {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]SourceType, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}
