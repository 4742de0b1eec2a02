package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reposynth/reposynth/configuration"
	"github.com/reposynth/reposynth/rerror"
)

func testConfig() *configuration.Configuration {
	return &configuration.Configuration{
		Gitlabs: map[string]configuration.Gitlab{
			"gl": {Hostname: "git.example.com", APIKey: "token"},
		},
		LocalSource: map[string]configuration.Local{
			"local": {Root: "/opt/build-output"},
		},
		RemoteSource: map[string]configuration.Remote{
			"mirror": {BaseURL: "https://mirror.example.com"},
		},
	}
}

func TestParseSingleGitlabJobToRPMSubpath(t *testing.T) {
	p, err := Parse("/gl/group/proj/42/-/rpm/repodata/repomd.xml", testConfig())
	require.NoError(t, err)

	require.Len(t, p.Artifacts, 1)
	assert.Equal(t, GitlabJob{Source: "gl", Project: "group/proj", JobID: 42}, p.Artifacts[0])
	assert.Equal(t, "/repodata/repomd.xml", p.SubURI)
}

func TestParseTwoGitlabJobsPreservesOrder(t *testing.T) {
	p, err := Parse("/gl/group/proj/42/-/gl/other/proj/7/-/rpm/Packages/x.rpm", testConfig())
	require.NoError(t, err)

	require.Len(t, p.Artifacts, 2)
	assert.Equal(t, GitlabJob{Source: "gl", Project: "group/proj", JobID: 42}, p.Artifacts[0])
	assert.Equal(t, GitlabJob{Source: "gl", Project: "other/proj", JobID: 7}, p.Artifacts[1])
}

func TestParseUnknownSourceIsRejected(t *testing.T) {
	_, err := Parse("/unknown/x/1", testConfig())
	require.Error(t, err)

	rerr, ok := err.(*rerror.Error)
	require.True(t, ok)
	assert.Equal(t, rerror.KindUnknownSource, rerr.Kind)
}

func TestParseStripsInteriorTraversalFromGitlabProject(t *testing.T) {
	p, err := Parse("/gl/group/../proj/1", testConfig())
	require.NoError(t, err)

	job := p.Artifacts[0].(GitlabJob)
	assert.NotContains(t, job.Project, "..")
}

func TestParseLocalSource(t *testing.T) {
	p, err := Parse("/local/key1/-/rpm/", testConfig())
	require.NoError(t, err)

	require.Len(t, p.Artifacts, 1)
	assert.Equal(t, Local{Source: "local", Key: "key1"}, p.Artifacts[0])
}

func TestParseLocalRejectsLiteralDotDotKey(t *testing.T) {
	_, err := Parse("/local/..", testConfig())
	require.Error(t, err)

	rerr, ok := err.(*rerror.Error)
	require.True(t, ok)
	assert.Equal(t, rerror.KindPlanParse, rerr.Kind)
}

func TestParseEmptyPathIsRejected(t *testing.T) {
	_, err := Parse("/", testConfig())
	require.Error(t, err)
}

func TestParseLastRPMItemWins(t *testing.T) {
	p, err := Parse("/rpm/first/-/rpm/second", testConfig())
	require.NoError(t, err)

	assert.Equal(t, "/second", p.SubURI)
}
