// Package artifactcache implements the per-artifact tier of the two-tier
// content-addressed cache (spec.md §4.2): at-most-once materialization of
// one artifact into the local cache, guarded by a file lock and published
// by atomic rename.
package artifactcache

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/reposynth/reposynth/configuration"
	"github.com/reposynth/reposynth/internal/dcontext"
	"github.com/reposynth/reposynth/internal/filelock"
	"github.com/reposynth/reposynth/internal/notifications"
	"github.com/reposynth/reposynth/internal/pathutil"
	"github.com/reposynth/reposynth/internal/subprocess"
	"github.com/reposynth/reposynth/plan"
	"github.com/reposynth/reposynth/rerror"
	"github.com/reposynth/reposynth/source"
)

// Cache materializes artifacts into a local-cache directory tree. The HTTP
// clients it fetches with are not a field here: they come from the
// request-scoped cache attached to each call's context (spec.md §5), so
// one Cache is safe to share across concurrent requests.
type Cache struct {
	cfg *configuration.Configuration
	bus *notifications.Bus

	// extractZip unpacks a downloaded job-artifacts archive. A field
	// rather than a direct subprocess.ExtractZip call so tests can swap
	// in a fake, matching spec.md §9's note that the external archive
	// extractor is meant to sit behind a swappable seam.
	extractZip func(ctx context.Context, archivePath, destDir string) error
}

// New returns a Cache rooted at cfg.LocalCache.
func New(cfg *configuration.Configuration, bus *notifications.Bus) *Cache {
	return &Cache{cfg: cfg, bus: bus, extractZip: subprocess.ExtractZip}
}

// Path returns the final on-disk location an artifact will occupy once
// materialized, without materializing it. Local artifacts are read
// through from their configured root and are never cached; Path returns
// their source location directly.
func (c *Cache) Path(a plan.Artifact) (string, error) {
	switch art := a.(type) {
	case plan.GitlabJob:
		return filepath.Join(c.cfg.LocalCache, art.Source, art.Project, strconv.FormatUint(art.JobID, 10)), nil
	case plan.Remote:
		return filepath.Join(c.cfg.LocalCache, art.Source, art.Subpath), nil
	case plan.Local:
		root, ok := c.cfg.LocalSource[art.Source]
		if !ok {
			return "", rerror.UnknownSource(art.Source)
		}
		return filepath.Join(root.Root, art.Key), nil
	default:
		return "", rerror.Internal(nil, "unrecognized artifact type %T", a)
	}
}

// Materialize ensures the artifact's final directory exists, fetching and
// publishing it if necessary. Local artifacts are a no-op: they are
// read-through from their configured root (spec.md §9 "Local artifacts").
func (c *Cache) Materialize(ctx context.Context, a plan.Artifact) error {
	if _, ok := a.(plan.Local); ok {
		return nil
	}

	final, err := c.Path(a)
	if err != nil {
		return err
	}

	// Fast path: no lock needed once published (spec.md §4.2 step 2).
	if _, err := os.Stat(final); err == nil {
		c.notify(notifications.ArtifactHit, a, final)
		return nil
	}

	parent := filepath.Dir(final)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return rerror.Filesystem(err, "creating %s", parent)
	}

	lock, err := filelock.Acquire(filepath.Join(parent, "lock"))
	if err != nil {
		return rerror.Filesystem(err, "acquiring lock for %s", final)
	}
	defer lock.Release()

	// Re-check under lock (spec.md §4.2 step 5): a concurrent
	// materializer may have published while we waited.
	if _, err := os.Stat(final); err == nil {
		c.notify(notifications.ArtifactHit, a, final)
		return nil
	}

	c.notify(notifications.ArtifactMiss, a, final)

	tmp := final + ".tmp"
	_ = os.RemoveAll(tmp)
	if err := os.MkdirAll(tmp, 0o755); err != nil {
		return rerror.Filesystem(err, "creating %s", tmp)
	}

	if err := c.fetch(ctx, a, tmp); err != nil {
		// tmp is left on disk; the next attempt's RemoveAll cleans it
		// up (spec.md §4.2 "Failure policy").
		return err
	}

	if err := os.Rename(tmp, final); err != nil {
		return rerror.Filesystem(err, "publishing %s", final)
	}

	return nil
}

func (c *Cache) notify(kind notifications.EventKind, a plan.Artifact, key string) {
	if c.bus == nil {
		return
	}
	c.bus.Dispatch(notifications.Event{Kind: kind, Source: a.SourceName(), Key: key})
}

func (c *Cache) fetch(ctx context.Context, a plan.Artifact, tmp string) error {
	log := dcontext.GetLogger(ctx)

	switch art := a.(type) {
	case plan.GitlabJob:
		log.WithField("project", art.Project).WithField("job-id", art.JobID).Info("downloading gitlab job artifacts")
		return c.fetchGitlabJob(ctx, art, tmp)
	case plan.Remote:
		log.WithField("subpath", art.Subpath).Info("mirroring remote artifact tree")
		return c.fetchRemote(ctx, art, tmp)
	default:
		return rerror.Internal(nil, "unrecognized cached artifact type %T", a)
	}
}

func (c *Cache) fetchGitlabJob(ctx context.Context, a plan.GitlabJob, tmp string) error {
	gl, ok := c.cfg.Gitlabs[a.Source]
	if !ok {
		return rerror.UnknownSource(a.Source)
	}

	url := "https://" + gl.Hostname + "/api/v4/projects/" +
		pathEscape(a.Project) + "/jobs/" + strconv.FormatUint(a.JobID, 10) + "/artifacts"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return rerror.Internal(err, "building gitlab request")
	}
	req.Header.Set("PRIVATE-TOKEN", gl.APIKey)

	resp, err := source.FromContext(ctx).Get(a.Source).Do(req)
	if err != nil {
		return rerror.UpstreamFetch(err, "fetching gitlab job artifacts for %s/%d", a.Project, a.JobID)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return rerror.UpstreamFetch(nil, "gitlab returned %s for %s/%d", resp.Status, a.Project, a.JobID)
	}

	zipPath := filepath.Join(tmp, "artifacts_zip")
	if err := writeBody(zipPath, resp.Body); err != nil {
		return err
	}

	if err := c.extractZip(ctx, zipPath, tmp); err != nil {
		return err
	}

	if err := os.Remove(zipPath); err != nil {
		return rerror.Filesystem(err, "removing %s", zipPath)
	}

	return nil
}

func (c *Cache) fetchRemote(ctx context.Context, a plan.Remote, tmp string) error {
	remote, ok := c.cfg.RemoteSource[a.Source]
	if !ok {
		return rerror.UnknownSource(a.Source)
	}

	client := source.FromContext(ctx).Get(a.Source)
	base := remote.BaseURL + "/" + a.Subpath

	listing, err := getString(ctx, client, base+"/list.txt")
	if err != nil {
		return rerror.UpstreamFetch(err, "fetching %s/list.txt", base)
	}

	for _, line := range splitLines(listing) {
		if line == "" {
			continue
		}
		sanitized := pathutil.JoinClean(line)
		if sanitized == "" {
			continue
		}

		dest := filepath.Join(tmp, sanitized)
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return rerror.Filesystem(err, "creating %s", filepath.Dir(dest))
		}

		resp, err := getBody(ctx, client, base+"/"+sanitized)
		if err != nil {
			return rerror.UpstreamFetch(err, "fetching %s/%s", base, sanitized)
		}

		err = writeBody(dest, resp)
		resp.Close()
		if err != nil {
			return err
		}
	}

	return nil
}

func writeBody(path string, r io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return rerror.Filesystem(err, "creating %s", path)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return rerror.Filesystem(err, "writing %s", path)
	}
	return nil
}
