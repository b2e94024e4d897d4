// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package overlap

import (
	"fmt"
	"math"
)

// Policy selects the overlap formula. The two are not equivalent: a 3-URL
// set fully contained in a 10-URL set scores 100 under PolicyMin but 30
// under PolicyJaccard. A run uses exactly one policy.
type Policy string

const (
	// PolicyJaccard divides the intersection by the union. Stricter;
	// penalizes size mismatch. This is the primary evaluation policy.
	PolicyJaccard Policy = "jaccard"

	// PolicyMin divides the intersection by the smaller set. Use only
	// when the intent is "does a small set fully nest in a larger one".
	PolicyMin Policy = "min"
)

// ParsePolicy maps a config string to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyJaccard, PolicyMin:
		return Policy(s), nil
	case "":
		return PolicyJaccard, nil
	}
	return "", fmt.Errorf("unknown score policy %q (want %q or %q)", s, PolicyJaccard, PolicyMin)
}

// Score computes the overlap percentage between two normalized result
// sets as an integer 0-100, rounded. If either set is empty the score is
// 0; there is no division fault. Score is symmetric in a and b.
func Score(a, b []string, policy Policy) int {
	pct, _ := score(a, b, policy)
	return pct
}

// Intersect returns the members of a also present in b, preserving a's
// order. Inputs are assumed normalized.
func Intersect(a, b []string) []string {
	inB := make(map[string]struct{}, len(b))
	for _, u := range b {
		inB[u] = struct{}{}
	}
	var out []string
	for _, u := range a {
		if _, ok := inB[u]; ok {
			out = append(out, u)
		}
	}
	return out
}

func score(a, b []string, policy Policy) (int, int) {
	if len(a) == 0 || len(b) == 0 {
		return 0, 0
	}

	inter := len(Intersect(a, b))

	var denom int
	switch policy {
	case PolicyMin:
		denom = len(a)
		if len(b) < denom {
			denom = len(b)
		}
	default:
		// Jaccard: |A ∪ B| = |A| + |B| - |A ∩ B|.
		denom = len(a) + len(b) - inter
	}
	if denom == 0 {
		return 0, inter
	}

	return int(math.Round(float64(inter) / float64(denom) * 100)), inter
}
