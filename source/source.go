// Package source resolves a plan artifact's source name to its typed
// upstream configuration, and owns the per-request cache of HTTP clients
// built for those upstreams (spec.md §5: "the per-request source-client
// cache... is owned by one request and not shared").
package source

import (
	"context"
	"net/http"
	"sync"

	cleanhttp "github.com/hashicorp/go-cleanhttp"

	"github.com/reposynth/reposynth/configuration"
)

// ClientCache lazily builds and remembers one *http.Client per source
// name, for the lifetime of a single request. It is not safe to share
// across requests: a fresh ClientCache is constructed per incoming HTTP
// request, matching the teacher's pattern of per-request derived state.
type ClientCache struct {
	mu      sync.Mutex
	clients map[string]*http.Client
}

// NewClientCache returns an empty client cache.
func NewClientCache() *ClientCache {
	return &ClientCache{clients: make(map[string]*http.Client)}
}

// Get returns the *http.Client for sourceName, building one with a clean,
// non-shared transport on first use. Proxy settings are still taken from
// the environment.
func (c *ClientCache) Get(sourceName string) *http.Client {
	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.clients[sourceName]; ok {
		return client
	}

	client := cleanhttp.DefaultClient()
	c.clients[sourceName] = client
	return client
}

// Put installs client as the cached client for sourceName, overriding
// whatever Get would otherwise lazily build. Exported for tests that need
// to point a source at an httptest server (e.g. one backed by a
// self-signed certificate) without reaching into the cache's internals.
func (c *ClientCache) Put(sourceName string, client *http.Client) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.clients[sourceName] = client
}

type clientCacheKey struct{}

// WithClientCache attaches a ClientCache to ctx, for the handler's
// fetch-path code to retrieve with FromContext. One ClientCache is built
// per incoming request and travels with that request's context through
// materialization, so it is never shared across requests.
func WithClientCache(ctx context.Context, clients *ClientCache) context.Context {
	return context.WithValue(ctx, clientCacheKey{}, clients)
}

// FromContext returns the ClientCache attached by WithClientCache. It
// builds a fresh, throwaway cache if none was attached, so call sites
// outside a request (tests, tools) don't need to thread one through.
func FromContext(ctx context.Context) *ClientCache {
	if c, ok := ctx.Value(clientCacheKey{}).(*ClientCache); ok {
		return c
	}
	return NewClientCache()
}

// Lookup resolves a source name against the three disjoint source
// namespaces, returning which one it belongs to along with its typed
// configuration. It assumes the caller already knows the name is
// configured (the plan parser is what turns an unconfigured name into an
// UnknownSource error).
func Lookup(cfg *configuration.Configuration, name string) (any, bool) {
	if g, ok := cfg.Gitlabs[name]; ok {
		return g, true
	}
	if l, ok := cfg.LocalSource[name]; ok {
		return l, true
	}
	if r, ok := cfg.RemoteSource[name]; ok {
		return r, true
	}
	return nil, false
}
