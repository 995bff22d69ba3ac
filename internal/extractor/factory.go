package extractor

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rhuertas/streamproxy/internal/logging"
)

// BackendConstructor constructs an Extractor given the config and logger.
type BackendConstructor func(cfg Config, logger logging.Logger) (Extractor, error)

var (
	mu       sync.RWMutex
	registry = map[string]BackendConstructor{}
)

// RegisterBackend registers a named backend constructor. Name is lower-cased
// internally. Calling RegisterBackend with the same name overwrites the
// previous constructor.
func RegisterBackend(name string, ctor BackendConstructor) {
	if name == "" || ctor == nil {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	registry[strings.ToLower(name)] = ctor
}

// NewExtractor constructs the configured extraction backend. It returns an
// error if the named backend has not been registered.
func NewExtractor(cfg Config, logger logging.Logger) (Extractor, error) {
	backend := strings.ToLower(strings.TrimSpace(string(cfg.Backend)))
	if backend == "" {
		backend = string(BackendChromedp)
	}

	mu.RLock()
	ctor, ok := registry[backend]
	mu.RUnlock()
	if !ok || ctor == nil {
		return nil, fmt.Errorf("extractor backend %q not registered: available backends=%v", backend, ListBackends())
	}

	ex, err := ctor(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to construct extractor backend %q: %w", backend, err)
	}
	if ex == nil {
		return nil, errors.New("extractor constructor returned nil")
	}
	return ex, nil
}

// ListBackends returns the list of registered backend names.
func ListBackends() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(registry))
	for k := range registry {
		out = append(out, k)
	}
	return out
}
