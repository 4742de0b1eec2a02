package artifactcache

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reposynth/reposynth/configuration"
	"github.com/reposynth/reposynth/internal/notifications"
	"github.com/reposynth/reposynth/plan"
	"github.com/reposynth/reposynth/source"
)

func newTestCache(t *testing.T) (*Cache, *configuration.Configuration) {
	cfg := &configuration.Configuration{
		LocalCache: t.TempDir(),
		Gitlabs: map[string]configuration.Gitlab{
			"gl": {Hostname: "git.example.com", APIKey: "token"},
		},
		LocalSource: map[string]configuration.Local{
			"local": {Root: t.TempDir()},
		},
		RemoteSource: map[string]configuration.Remote{
			"mirror": {BaseURL: "https://mirror.example.com"},
		},
	}
	return New(cfg, notifications.NewBus()), cfg
}

func TestPathForGitlabJob(t *testing.T) {
	c, cfg := newTestCache(t)

	path, err := c.Path(plan.GitlabJob{Source: "gl", Project: "group/proj", JobID: 42})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.LocalCache, "gl", "group/proj", "42"), path)
}

func TestPathForLocalReadsThroughConfiguredRoot(t *testing.T) {
	c, cfg := newTestCache(t)

	path, err := c.Path(plan.Local{Source: "local", Key: "key1"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.LocalSource["local"].Root, "key1"), path)
}

func TestMaterializeLocalIsANoOp(t *testing.T) {
	c, _ := newTestCache(t)

	err := c.Materialize(context.Background(), plan.Local{Source: "local", Key: "key1"})
	assert.NoError(t, err)
}

func TestMaterializeSkipsFetchWhenAlreadyPublished(t *testing.T) {
	c, cfg := newTestCache(t)

	a := plan.Remote{Source: "mirror", Subpath: "tree"}
	final := filepath.Join(cfg.LocalCache, "mirror", "tree")
	require.NoError(t, os.MkdirAll(final, 0o755))

	err := c.Materialize(context.Background(), a)
	assert.NoError(t, err)
}

func TestPathUnknownLocalSourceErrors(t *testing.T) {
	c, _ := newTestCache(t)

	_, err := c.Path(plan.Local{Source: "nope", Key: "key1"})
	assert.Error(t, err)
}

func TestFetchRemoteMirrorsListedFiles(t *testing.T) {
	var requested []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requested = append(requested, r.URL.Path)
		switch r.URL.Path {
		case "/tree/list.txt":
			_, _ = w.Write([]byte("repodata/repomd.xml\npkg-1.0.rpm\n\n"))
		case "/tree/repodata/repomd.xml":
			_, _ = w.Write([]byte("<repomd/>"))
		case "/tree/pkg-1.0.rpm":
			_, _ = w.Write([]byte("rpm-bytes"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	cfg := &configuration.Configuration{
		LocalCache: t.TempDir(),
		RemoteSource: map[string]configuration.Remote{
			"mirror": {BaseURL: server.URL},
		},
	}
	c := New(cfg, notifications.NewBus())

	tmp := t.TempDir()
	err := c.fetchRemote(context.Background(), plan.Remote{Source: "mirror", Subpath: "tree"}, tmp)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(tmp, "repodata", "repomd.xml"))
	require.NoError(t, err)
	assert.Equal(t, "<repomd/>", string(data))

	data, err = os.ReadFile(filepath.Join(tmp, "pkg-1.0.rpm"))
	require.NoError(t, err)
	assert.Equal(t, "rpm-bytes", string(data))

	assert.Contains(t, requested, "/tree/list.txt")
}

func TestFetchRemoteSanitizesTraversalInListing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/tree/list.txt" {
			_, _ = w.Write([]byte("../../etc/passwd\n"))
			return
		}
		_, _ = w.Write([]byte("escaped"))
	}))
	defer server.Close()

	cfg := &configuration.Configuration{
		LocalCache: t.TempDir(),
		RemoteSource: map[string]configuration.Remote{
			"mirror": {BaseURL: server.URL},
		},
	}
	c := New(cfg, notifications.NewBus())

	tmp := t.TempDir()
	err := c.fetchRemote(context.Background(), plan.Remote{Source: "mirror", Subpath: "tree"}, tmp)
	require.NoError(t, err)

	// The ".." segments are stripped rather than honored, so the listed
	// entry lands inside tmp instead of escaping it.
	data, err := os.ReadFile(filepath.Join(tmp, "etc", "passwd"))
	require.NoError(t, err)
	assert.Equal(t, "escaped", string(data))
}

func TestFetchGitlabJobRequestsArtifactsAndExtracts(t *testing.T) {
	var gotPath, gotToken string
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		gotToken = r.Header.Get("PRIVATE-TOKEN")
		_, _ = w.Write([]byte("fake-zip-bytes"))
	}))
	defer server.Close()

	cfg := &configuration.Configuration{
		LocalCache: t.TempDir(),
		Gitlabs: map[string]configuration.Gitlab{
			"gl": {Hostname: strings.TrimPrefix(server.URL, "https://"), APIKey: "s3cr3t"},
		},
	}
	c := New(cfg, notifications.NewBus())

	var extractedArchive, extractedDest string
	c.extractZip = func(ctx context.Context, archivePath, destDir string) error {
		extractedArchive = archivePath
		extractedDest = destDir
		return os.WriteFile(filepath.Join(destDir, "extracted.rpm"), []byte("rpm"), 0o644)
	}

	clients := source.NewClientCache()
	clients.Put("gl", server.Client())
	ctx := source.WithClientCache(context.Background(), clients)

	tmp := t.TempDir()
	err := c.fetchGitlabJob(ctx, plan.GitlabJob{Source: "gl", Project: "group/proj", JobID: 42}, tmp)
	require.NoError(t, err)

	assert.Equal(t, "/api/v4/projects/group%2Fproj/jobs/42/artifacts", gotPath)
	assert.Equal(t, "s3cr3t", gotToken)
	assert.Equal(t, tmp, extractedDest)
	assert.Equal(t, filepath.Join(tmp, "artifacts_zip"), extractedArchive)

	_, err = os.Stat(filepath.Join(tmp, "artifacts_zip"))
	assert.True(t, os.IsNotExist(err), "zip should be removed after extraction")

	data, err := os.ReadFile(filepath.Join(tmp, "extracted.rpm"))
	require.NoError(t, err)
	assert.Equal(t, "rpm", string(data))
}
