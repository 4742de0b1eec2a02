// Package pathutil provides safe joining and sanitization of path segments
// derived from untrusted HTTP request input.
package pathutil

import (
	"strings"
)

// SplitClean splits s on "/" and drops empty segments and "..", which is the
// path-traversal defense applied to every interior segment parsed out of a
// request URI before it is used to build a filesystem or upstream path.
func SplitClean(s string) []string {
	raw := strings.Split(s, "/")
	out := make([]string, 0, len(raw))
	for _, part := range raw {
		if part == "" || part == ".." {
			continue
		}
		out = append(out, part)
	}
	return out
}

// JoinClean re-joins SplitClean(s) with "/". It is used both for the
// sub-URI carried by a plan and for the relative file names listed in a
// remote source's list.txt manifest.
func JoinClean(s string) string {
	return strings.Join(SplitClean(s), "/")
}
