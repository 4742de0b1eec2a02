// Package gateway implements the request handler (spec.md §4.4): parse the
// request path to a plan, materialize its artifacts and composite, then
// delegate to a static-file responder rooted at the composite directory.
package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/reposynth/reposynth/artifactcache"
	"github.com/reposynth/reposynth/composite"
	"github.com/reposynth/reposynth/configuration"
	"github.com/reposynth/reposynth/internal/dcontext"
	"github.com/reposynth/reposynth/metrics"
	"github.com/reposynth/reposynth/plan"
	"github.com/reposynth/reposynth/rerror"
	"github.com/reposynth/reposynth/source"
)

// Gateway is the gateway's single HTTP entry point.
type Gateway struct {
	cfg       *configuration.Configuration
	artifacts *artifactcache.Cache
	composite *composite.Builder
}

// New returns a Gateway serving cfg's configured sources through artifacts
// and composites.
func New(cfg *configuration.Configuration, artifacts *artifactcache.Cache, composites *composite.Builder) *Gateway {
	return &Gateway{cfg: cfg, artifacts: artifacts, composite: composites}
}

// ServeHTTP implements http.Handler.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := dcontext.WithFields(r.Context(), logrus.Fields{"path": r.URL.Path})
	log := dcontext.GetLogger(ctx)
	log.Info("received request")

	// A detached context lets materialization shared with other
	// concurrent requesters on the same cache key outlive this client's
	// disconnect: the request that triggers a fetch may not be the
	// request that is still waiting on it.
	materializeCtx := dcontext.WithLogger(dcontext.DetachedContext(ctx), log)

	status := g.serve(materializeCtx, w, r)
	metrics.ObserveRequest(status, start)
	log.WithField("status", status).Info("handled request")
}

func (g *Gateway) serve(ctx context.Context, w http.ResponseWriter, r *http.Request) int {
	p, err := plan.Parse(r.URL.Path, g.cfg)
	if err != nil {
		return writeError(w, err)
	}

	clients := source.NewClientCache()
	ctx = source.WithClientCache(ctx, clients)

	for _, a := range p.Artifacts {
		if err := g.artifacts.Materialize(ctx, a); err != nil {
			return writeError(w, err)
		}
	}

	dir, err := g.composite.Build(ctx, p, r.RequestURI)
	if err != nil {
		return writeError(w, err)
	}

	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	r2 := r.Clone(ctx)
	r2.URL.Path = p.SubURI
	http.FileServer(http.Dir(dir)).ServeHTTP(rec, r2)
	return rec.status
}

// writeError renders err's classified status and message as the response,
// per spec.md §7: error bodies are for operators, not end users.
func writeError(w http.ResponseWriter, err error) int {
	status := http.StatusInternalServerError
	if rerr, ok := err.(*rerror.Error); ok {
		status = rerr.HTTPStatus()
	}
	http.Error(w, err.Error(), status)
	return status
}

// statusRecorder captures the status http.FileServer decided on, so it can
// be reported to the metrics and log lines above.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}
