package agent

import (
	"fmt"
	"sort"
)

// Registry maps downstream agent names to their base URLs. It is built once
// at startup from configuration and is read-only afterwards.
type Registry struct {
	baseURLs map[string]string
}

// NewRegistry builds a registry from a name -> base URL map.
func NewRegistry(baseURLs map[string]string) *Registry {
	urls := make(map[string]string, len(baseURLs))
	for name, url := range baseURLs {
		urls[name] = url
	}
	return &Registry{baseURLs: urls}
}

// BaseURL resolves an agent name to its base URL.
func (r *Registry) BaseURL(name string) (string, error) {
	url, ok := r.baseURLs[name]
	if !ok {
		return "", fmt.Errorf("unknown agent %q", name)
	}
	return url, nil
}

// Names returns all registered agent names in a stable order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.baseURLs))
	for name := range r.baseURLs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
