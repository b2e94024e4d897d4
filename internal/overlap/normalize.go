// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package overlap canonicalizes result URLs and scores the similarity of
// two ranked result sets.
package overlap

import "strings"

// NormalizeURL returns the canonical form of a URL for set-membership
// comparison. It strips the scheme, a leading "www." host label, the query
// string, the fragment, and a single trailing path slash, then lower-cases
// the remainder. Normalization is total: any input string, including the
// empty string, yields a result.
func NormalizeURL(raw string) string {
	u := strings.TrimSpace(raw)
	if u == "" {
		return ""
	}

	if i := strings.Index(u, "://"); i >= 0 {
		u = u[i+3:]
	}
	u = strings.TrimPrefix(u, "www.")

	if i := strings.IndexByte(u, '?'); i >= 0 {
		u = u[:i]
	}
	if i := strings.IndexByte(u, '#'); i >= 0 {
		u = u[:i]
	}

	u = strings.TrimSuffix(u, "/")

	return strings.ToLower(u)
}

// NormalizeSet normalizes every URL in rank order, dropping empties and
// duplicates. The first occurrence of each canonical URL keeps its rank.
func NormalizeSet(urls []string) []string {
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, raw := range urls {
		n := NormalizeURL(raw)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
