package source

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/reposynth/reposynth/configuration"
)

func TestClientCacheReturnsSameClientForRepeatedLookups(t *testing.T) {
	c := NewClientCache()
	assert.Same(t, c.Get("gl"), c.Get("gl"))
}

func TestClientCacheBuildsDistinctClientsPerSource(t *testing.T) {
	c := NewClientCache()
	assert.NotSame(t, c.Get("gl"), c.Get("mirror"))
}

func TestFromContextReturnsAttachedCache(t *testing.T) {
	c := NewClientCache()
	ctx := WithClientCache(context.Background(), c)
	assert.Same(t, c, FromContext(ctx))
}

func TestFromContextBuildsFreshCacheWhenNoneAttached(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))
}

func TestLookupResolvesAcrossDisjointNamespaces(t *testing.T) {
	cfg := &configuration.Configuration{
		Gitlabs:      map[string]configuration.Gitlab{"gl": {Hostname: "h"}},
		LocalSource:  map[string]configuration.Local{"local": {Root: "/x"}},
		RemoteSource: map[string]configuration.Remote{"mirror": {BaseURL: "https://m"}},
	}

	_, ok := Lookup(cfg, "gl")
	assert.True(t, ok)
	_, ok = Lookup(cfg, "local")
	assert.True(t, ok)
	_, ok = Lookup(cfg, "mirror")
	assert.True(t, ok)
	_, ok = Lookup(cfg, "nope")
	assert.False(t, ok)
}
