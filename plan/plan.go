// Package plan models the normalized, ordered description of a composed
// repository request (spec.md §3 "Plan") and the deterministic fingerprint
// used to key the composite cache.
package plan

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Kind names the repository-metadata format a composite is generated for.
// Only RPM exists today; the design admits adding others.
type Kind string

// KindRPM is the only repository kind the gateway currently produces.
const KindRPM Kind = "rpm"

// Artifact is one contribution to a composite. The three variants below are
// the only ones a Plan may contain.
type Artifact interface {
	// SourceName is the configured source this artifact is drawn from.
	SourceName() string

	// canonical renders the artifact's fields, in declared order, into a
	// stable textual form used only for hashing. It must never depend on
	// map iteration order or any locale-sensitive formatting.
	canonical() string
}

// GitlabJob is the job-artifacts zip of a CI job on a named Gitlab upstream.
type GitlabJob struct {
	Source  string
	Project string
	JobID   uint64
}

func (a GitlabJob) SourceName() string { return a.Source }

func (a GitlabJob) canonical() string {
	return fmt.Sprintf("gitlab-job|source=%s|project=%s|job-id=%d", a.Source, a.Project, a.JobID)
}

// Local is a subtree of a configured local directory, addressed by a
// single relative key.
type Local struct {
	Source string
	Key    string
}

func (a Local) SourceName() string { return a.Source }

func (a Local) canonical() string {
	return fmt.Sprintf("local|source=%s|key=%s", a.Source, a.Key)
}

// Remote is a static remote directory tree described by a list.txt
// manifest.
type Remote struct {
	Source  string
	Subpath string
}

func (a Remote) SourceName() string { return a.Source }

func (a Remote) canonical() string {
	return fmt.Sprintf("remote|source=%s|subpath=%s", a.Source, a.Subpath)
}

// Plan is the deterministic, normalized description of one composed
// repository request.
type Plan struct {
	Artifacts []Artifact
	SubURI    string
	Kind      Kind
}

// Hash is the plan's identity for the composite cache: the lowercase hex
// SHA-256 of a canonical serialization of the plan with SubURI excluded, so
// two requests differing only in which file of the composite they read
// share the same composite (spec.md §3 invariant 4). The serialization is
// defined explicitly here (fields in declared order, variant tags
// included) rather than borrowed from any language's default struct
// formatter — spec.md §9 calls this out as a required tightening over the
// reference implementation, which hashed a debug-formatter dump.
func (p *Plan) Hash() string {
	var b strings.Builder
	fmt.Fprintf(&b, "kind=%s\n", p.Kind)
	for i, a := range p.Artifacts {
		fmt.Fprintf(&b, "%d:%s\n", i, a.canonical())
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
