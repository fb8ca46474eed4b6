package llm

import (
	"fmt"
	"net/http"
	"sync"
)

// Provider adapts the generic Client to a specific chat-completion wire
// format (request/response shape, auth headers, URL layout).
type Provider interface {
	Name() string
	BuildURL(baseURL string) string
	SetHeaders(req *http.Request)
	BuildRequestBody(model string, messages []Message, temperature *float64, maxTokens int) ([]byte, error)
	ParseResponse(body []byte, model string) (*Response, error)
}

var (
	providerMu       sync.RWMutex
	providerRegistry = make(map[string]Provider)
)

// RegisterProvider registers a Provider under its name. Intended to be
// called from provider package init() functions.
func RegisterProvider(p Provider) {
	providerMu.Lock()
	defer providerMu.Unlock()
	providerRegistry[p.Name()] = p
}

// GetProvider returns the registered Provider for name, or nil.
func GetProvider(name string) Provider {
	providerMu.RLock()
	defer providerMu.RUnlock()
	return providerRegistry[name]
}

// ListProviders returns the names of all registered providers.
func ListProviders() []string {
	providerMu.RLock()
	defer providerMu.RUnlock()
	names := make([]string, 0, len(providerRegistry))
	for name := range providerRegistry {
		names = append(names, name)
	}
	return names
}

// errUnknownProvider is returned when a configured provider name has no
// registered implementation.
func errUnknownProvider(name string) error {
	return fmt.Errorf("unknown llm provider: %s", name)
}
