package gateway

import (
	"fmt"
	"sort"
	"strings"
)

// Registry holds every configured adapter. It is built once at startup and
// passed to the services that need it; the active adapter is resolved from
// configuration at call time so a config change takes effect without restart.
type Registry struct {
	adapters     map[string]Adapter
	activeLookup func() string
}

// NewRegistry builds a registry from the given adapters. activeLookup returns
// the currently configured provider name.
func NewRegistry(activeLookup func() string, adapters ...Adapter) *Registry {
	byName := make(map[string]Adapter, len(adapters))
	for _, a := range adapters {
		byName[a.Name()] = a
	}
	return &Registry{
		adapters:     byName,
		activeLookup: activeLookup,
	}
}

// Get resolves an adapter by explicit provider name. This is the path used
// when reconciling a payment or payout created under a provider that is no
// longer the active default.
func (r *Registry) Get(name string) (Adapter, error) {
	adapter, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("payment provider %q is not registered (configured providers: %s)", name, strings.Join(r.Names(), ", "))
	}
	return adapter, nil
}

// Active resolves the adapter currently selected by configuration.
func (r *Registry) Active() (Adapter, error) {
	name := r.activeLookup()
	adapter, err := r.Get(name)
	if err != nil {
		return nil, fmt.Errorf("active payment provider misconfigured: %w", err)
	}
	return adapter, nil
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
