package plan

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/reposynth/reposynth/configuration"
	"github.com/reposynth/reposynth/internal/pathutil"
	"github.com/reposynth/reposynth/rerror"
)

// projectPattern matches a Gitlab project path once its interior ".."
// segments have been stripped.
var projectPattern = regexp.MustCompile(`^[/a-z0-9_-]+$`)

// itemSeparator splits a request path into plan items.
const itemSeparator = "/-/"

// Parse converts a raw request path (everything after the host) into a
// Plan, against the source names declared in cfg. It never panics: every
// input either yields a Plan or a classified *rerror.Error.
func Parse(rawPath string, cfg *configuration.Configuration) (*Plan, error) {
	trimmed := strings.TrimPrefix(rawPath, "/")
	if trimmed == "" {
		return nil, rerror.PlanParse("not enough components")
	}

	p := &Plan{Kind: KindRPM}

	for _, item := range strings.Split(trimmed, itemSeparator) {
		parts := strings.Split(item, "/")
		prefix, rest := parts[0], parts[1:]

		switch {
		case prefix == "rpm":
			p.SubURI = "/" + pathutil.JoinClean(strings.Join(rest, "/"))

		case isConfigured(cfg.Gitlabs, prefix):
			artifact, err := parseGitlabJob(prefix, rest)
			if err != nil {
				return nil, err
			}
			p.Artifacts = append(p.Artifacts, artifact)

		case isConfigured(cfg.LocalSource, prefix):
			artifact, err := parseLocal(prefix, rest)
			if err != nil {
				return nil, err
			}
			p.Artifacts = append(p.Artifacts, artifact)

		case isConfigured(cfg.RemoteSource, prefix):
			p.Artifacts = append(p.Artifacts, parseRemote(prefix, rest))

		default:
			return nil, rerror.UnknownSource(prefix)
		}
	}

	return p, nil
}

func isConfigured[T any](m map[string]T, name string) bool {
	_, ok := m[name]
	return ok
}

func parseGitlabJob(source string, rest []string) (GitlabJob, error) {
	cleaned := pathutil.SplitClean(strings.Join(rest, "/"))
	if len(cleaned) == 0 {
		return GitlabJob{}, rerror.PlanParse("%s: missing job id", source)
	}

	jobIDPart := cleaned[len(cleaned)-1]
	project := strings.Join(cleaned[:len(cleaned)-1], "/")

	if !projectPattern.MatchString(project) {
		return GitlabJob{}, rerror.PlanParse("%s: %q invalid project name", source, project)
	}

	jobID, err := strconv.ParseUint(jobIDPart, 10, 64)
	if err != nil {
		return GitlabJob{}, rerror.PlanParse("%s: %q invalid job id", source, jobIDPart)
	}

	return GitlabJob{Source: source, Project: project, JobID: jobID}, nil
}

func parseLocal(source string, rest []string) (Local, error) {
	if len(rest) == 0 {
		return Local{}, rerror.PlanParse("%s: missing key", source)
	}

	key := rest[len(rest)-1]
	if key == ".." {
		return Local{}, rerror.PlanParse("%s: %q is not a valid key", source, key)
	}

	return Local{Source: source, Key: key}, nil
}

func parseRemote(source string, rest []string) Remote {
	return Remote{Source: source, Subpath: pathutil.JoinClean(strings.Join(rest, "/"))}
}
