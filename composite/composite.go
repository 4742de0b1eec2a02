// Package composite implements the second tier of the cache (spec.md
// §4.3): assembling a plan's materialized artifacts into one composed RPM
// repository and running createrepo over it, published atomically like the
// artifact tier.
package composite

import (
	"context"
	"os"
	"path/filepath"
	"strconv"

	"github.com/reposynth/reposynth/artifactcache"
	"github.com/reposynth/reposynth/configuration"
	"github.com/reposynth/reposynth/internal/filelock"
	"github.com/reposynth/reposynth/internal/notifications"
	"github.com/reposynth/reposynth/internal/subprocess"
	"github.com/reposynth/reposynth/plan"
	"github.com/reposynth/reposynth/rerror"
)

// Builder assembles composite repositories into a composites-cache
// directory tree, keyed by plan hash.
type Builder struct {
	cfg       *configuration.Configuration
	artifacts *artifactcache.Cache
	bus       *notifications.Bus
}

// New returns a Builder rooted at cfg.CompositesCache, using artifacts to
// materialize each plan's inputs before assembling them.
func New(cfg *configuration.Configuration, artifacts *artifactcache.Cache, bus *notifications.Bus) *Builder {
	return &Builder{cfg: cfg, artifacts: artifacts, bus: bus}
}

// Path returns the directory a plan's composite will live in once built,
// without building it.
func (b *Builder) Path(p *plan.Plan) string {
	return filepath.Join(b.cfg.CompositesCache, p.Hash())
}

// Build materializes every artifact in p, assembles them into a composite
// repository if one is not already published for p's hash, and returns the
// composite's root directory. requestURI is the raw request URI the plan
// was parsed from; it is recorded verbatim in the composite's url.txt for
// post-hoc debugging (spec.md §4.3 step 7) and is otherwise unused — it
// plays no part in the cache key, which is p.Hash().
func (b *Builder) Build(ctx context.Context, p *plan.Plan, requestURI string) (string, error) {
	final := b.Path(p)

	if _, err := os.Stat(final); err == nil {
		b.notify(notifications.CompositeHit, final)
		return final, nil
	}

	if err := os.MkdirAll(b.cfg.CompositesCache, 0o755); err != nil {
		return "", rerror.Filesystem(err, "creating %s", b.cfg.CompositesCache)
	}

	lock, err := filelock.Acquire(final + ".lock")
	if err != nil {
		return "", rerror.Filesystem(err, "acquiring lock for %s", final)
	}
	defer lock.Release()

	if _, err := os.Stat(final); err == nil {
		b.notify(notifications.CompositeHit, final)
		return final, nil
	}

	b.notify(notifications.CompositeMiss, final)

	tmp := final + ".tmp"
	_ = os.RemoveAll(tmp)
	if err := os.MkdirAll(tmp, 0o755); err != nil {
		return "", rerror.Filesystem(err, "creating %s", tmp)
	}

	if err := b.assemble(ctx, p, tmp, requestURI); err != nil {
		return "", err
	}

	if err := subprocess.CreateRepo(ctx, tmp); err != nil {
		return "", rerror.Subprocess(err, "running createrepo on %s", tmp)
	}

	if err := os.Rename(tmp, final); err != nil {
		return "", rerror.Filesystem(err, "publishing %s", final)
	}

	return final, nil
}

// assemble writes requestURI verbatim to tmp/url.txt (spec.md §4.3 step 7),
// then materializes each of p's artifacts and hardlink-copies its resolved
// contents into tmp under an index-numbered subdirectory.
func (b *Builder) assemble(ctx context.Context, p *plan.Plan, tmp string, requestURI string) error {
	urlsPath := filepath.Join(tmp, "url.txt")
	if err := os.WriteFile(urlsPath, []byte(requestURI+"\n"), 0o644); err != nil {
		return rerror.Filesystem(err, "writing %s", urlsPath)
	}

	for i, a := range p.Artifacts {
		if err := b.artifacts.Materialize(ctx, a); err != nil {
			return err
		}

		src, err := b.artifacts.Path(a)
		if err != nil {
			return err
		}

		dst := filepath.Join(tmp, strconv.Itoa(i))
		if err := subprocess.HardlinkCopy(ctx, src, dst); err != nil {
			return rerror.Subprocess(err, "copying %s into composite", src)
		}
	}

	return nil
}

func (b *Builder) notify(kind notifications.EventKind, key string) {
	if b.bus == nil {
		return
	}
	b.bus.Dispatch(notifications.Event{Kind: kind, Key: key})
}
