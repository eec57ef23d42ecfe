package ast

import (
	"fmt"
	"sort"
	"sync"
)

// HostFactory creates a Host for a specific language.
// Hosts are not required to be safe for concurrent use, so callers create one
// per goroutine.
type HostFactory func() Host

// HostRegistry maintains a registry of language hosts.
// Hosts are registered by name with their supported file extensions.
// Thread-safe for concurrent access.
type HostRegistry struct {
	mu     sync.RWMutex
	hosts  map[string]HostFactory // name → factory
	extMap map[string]string      // extension → host name
}

// NewHostRegistry creates a new empty host registry.
func NewHostRegistry() *HostRegistry {
	return &HostRegistry{
		hosts:  make(map[string]HostFactory),
		extMap: make(map[string]string),
	}
}

// Register adds a host factory for the given extensions.
// The first registration wins if there's an extension conflict.
// Extensions should include the leading dot (e.g., ".java").
func (r *HostRegistry) Register(name string, extensions []string, factory HostFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.hosts[name] = factory

	for _, ext := range extensions {
		if _, exists := r.extMap[ext]; !exists {
			r.extMap[ext] = name
		}
	}
}

// HostName returns the host name registered for a file extension.
func (r *HostRegistry) HostName(ext string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	name, ok := r.extMap[ext]
	return name, ok
}

// CreateHost instantiates a host by name.
func (r *HostRegistry) CreateHost(name string) (Host, error) {
	r.mu.RLock()
	factory, ok := r.hosts[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrHostNotRegistered, name)
	}

	return factory(), nil
}

// CreateHostForExtension creates a host for the given file extension.
func (r *HostRegistry) CreateHostForExtension(ext string) (Host, error) {
	name, ok := r.HostName(ext)
	if !ok {
		return nil, fmt.Errorf("%w: no host for extension %s", ErrHostNotRegistered, ext)
	}
	return r.CreateHost(name)
}

// ListHosts returns all registered host names, sorted.
func (r *HostRegistry) ListHosts() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.hosts))
	for name := range r.hosts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListExtensions returns all registered file extensions, sorted.
func (r *HostRegistry) ListExtensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	extensions := make([]string, 0, len(r.extMap))
	for ext := range r.extMap {
		extensions = append(extensions, ext)
	}
	sort.Strings(extensions)
	return extensions
}

// HasHost returns true if a host with the given name is registered.
func (r *HostRegistry) HasHost(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.hosts[name]
	return ok
}

// DefaultRegistry is the global host registry.
// Language hosts register themselves via init() functions.
var DefaultRegistry = NewHostRegistry()
