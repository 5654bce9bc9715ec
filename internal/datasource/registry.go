package datasource

import (
	"fmt"
	"sync"
	"time"

	"github.com/pluviograph/backend-go/internal/cache"
	"github.com/pluviograph/backend-go/internal/config"
	"github.com/pluviograph/backend-go/internal/models"
)

// Options carry everything a factory needs to construct an adapter.
// Token and APIKey come from an opaque per-provider credential blob;
// either field satisfies a provider's credential requirement.
type Options struct {
	Token   string
	APIKey  string
	BaseURL string
	Timeout time.Duration

	Cache    *cache.ResponseCache
	Geocoder Geocoder
}

func (o Options) credential() string {
	if o.Token != "" {
		return o.Token
	}
	return o.APIKey
}

// Factory constructs a provider adapter from resolved options.
type Factory func(opts Options) DataSource

type registryEntry struct {
	capabilities models.ProviderCapabilities
	factory      Factory
}

// Registry catalogs providers by key. It is the single place where the
// credential precondition is enforced, so adapters never re-check
// token presence per call.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]registryEntry
	order   []string
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]registryEntry)}
}

// Register adds or replaces a provider under its capability id.
func (r *Registry) Register(caps models.ProviderCapabilities, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[caps.ID]; !exists {
		r.order = append(r.order, caps.ID)
	}
	r.entries[caps.ID] = registryEntry{capabilities: caps, factory: factory}
}

// List returns capability descriptors in registration order.
func (r *Registry) List() []models.ProviderCapabilities {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.ProviderCapabilities, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id].capabilities)
	}
	return out
}

// Capabilities looks up one provider's descriptor.
func (r *Registry) Capabilities(id string) (models.ProviderCapabilities, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entry, ok := r.entries[id]
	return entry.capabilities, ok
}

// Create constructs the adapter for id. When the provider requires an
// API key and neither Token nor APIKey is set, it fails fast with
// ErrCredentialsRequired instead of handing back a half-configured
// adapter.
func (r *Registry) Create(id string, opts Options) (DataSource, error) {
	r.mu.RLock()
	entry, ok := r.entries[id]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, id)
	}

	if entry.capabilities.RequiresAPIKey && opts.credential() == "" {
		return nil, fmt.Errorf("%w: %s", ErrCredentialsRequired, id)
	}

	return entry.factory(opts), nil
}

// DefaultRegistry registers the four built-in providers with base URLs
// taken from cfg.
func DefaultRegistry(cfg *config.Config) *Registry {
	r := NewRegistry()

	r.Register(NOAACapabilities(), func(opts Options) DataSource {
		if opts.BaseURL == "" {
			opts.BaseURL = cfg.NOAABaseURL
		}
		return NewNOAA(opts)
	})

	r.Register(USGSCapabilities(), func(opts Options) DataSource {
		if opts.BaseURL == "" {
			opts.BaseURL = cfg.USGSBaseURL
		}
		return NewUSGS(opts)
	})

	r.Register(SynopticCapabilities(), func(opts Options) DataSource {
		if opts.BaseURL == "" {
			opts.BaseURL = cfg.SynopticBaseURL
		}
		return NewSynoptic(opts)
	})

	r.Register(GriddedCapabilities(), func(opts Options) DataSource {
		return NewGridded(opts)
	})

	return r
}
