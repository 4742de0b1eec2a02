// Package metrics registers the gateway's Prometheus instrumentation,
// following the teacher's metrics package: a docker/go-metrics Namespace
// per concern, registered once at startup.
package metrics

import (
	"strconv"
	"time"

	"github.com/docker/go-metrics"

	"github.com/reposynth/reposynth/internal/notifications"
)

// NamespacePrefix is the namespace all of this gateway's metrics share.
const NamespacePrefix = "reposynth"

var (
	// CacheNamespace covers artifact and composite cache behavior.
	CacheNamespace = metrics.NewNamespace(NamespacePrefix, "cache", nil)

	// HTTPNamespace covers the request handler's HTTP-facing behavior.
	HTTPNamespace = metrics.NewNamespace(NamespacePrefix, "http", nil)
)

var (
	cacheEvents = CacheNamespace.NewLabeledCounter("events_total", "materialization cache events", "kind")

	requestDuration = HTTPNamespace.NewLabeledTimer("request_duration_seconds", "request handling latency", "status")
)

func init() {
	metrics.Register(CacheNamespace)
	metrics.Register(HTTPNamespace)
}

// ObserveRequest records one request's outcome status and latency,
// measured from start to now.
func ObserveRequest(status int, start time.Time) {
	requestDuration.WithValues(strconv.Itoa(status)).UpdateSince(start)
}

// Sink adapts notifications.Event into the cache event counters, so the
// cache/composite packages stay free of any metrics import.
type Sink struct{}

// Notify implements notifications.Sink.
func (Sink) Notify(ev notifications.Event) {
	cacheEvents.WithValues(string(ev.Kind)).Inc(1)
}
