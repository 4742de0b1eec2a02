package artifactcache

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/reposynth/reposynth/rerror"
)

// pathEscape percent-encodes a Gitlab project path for use as a single URL
// path segment, per the Gitlab API's "PROJECT_ID" convention of passing
// namespace/project with its slashes escaped.
func pathEscape(project string) string {
	return url.PathEscape(project)
}

// getBody issues a GET and returns the response body for the caller to
// read and close. Non-200 responses are surfaced as errors rather than
// handed back for the caller to inspect.
func getBody(ctx context.Context, client *http.Client, rawURL string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, rerror.Internal(err, "building request for %s", rawURL)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, rerror.UpstreamFetch(nil, "%s returned %s", rawURL, resp.Status)
	}

	return resp.Body, nil
}

// getString reads an entire response body as text, for small control
// files like list.txt.
func getString(ctx context.Context, client *http.Client, rawURL string) (string, error) {
	body, err := getBody(ctx, client, rawURL)
	if err != nil {
		return "", err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return "", rerror.UpstreamFetch(err, "reading %s", rawURL)
	}
	return string(data), nil
}

// splitLines splits text on newlines, trimming a trailing carriage return
// and surrounding whitespace from each line.
func splitLines(text string) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		lines = append(lines, strings.TrimSpace(line))
	}
	return lines
}
