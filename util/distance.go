package util

import (
	"fmt"
	"sort"

	"github.com/antzucaro/matchr"
	"github.com/grailbio/base/errors"
)

// maxSuggestDistance bounds the edit distance of a name offered as a
// suggestion.  Anything further away is noise.
const maxSuggestDistance = 3

// Closest returns the candidate with the smallest Levenshtein distance to
// name, or "" if none is within a small distance.  Ties go to the
// lexicographically smaller candidate.
func Closest(name string, candidates []string) string {
	sorted := append([]string(nil), candidates...)
	sort.Strings(sorted)
	best, bestDist := "", maxSuggestDistance+1
	for _, c := range sorted {
		if d := matchr.Levenshtein(name, c); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// MissingKey builds an errors.NotExist error for a key that is absent from a
// table, suggesting the closest existing key when there is one.
func MissingKey(table, key string, keys []string) error {
	msg := fmt.Sprintf("%s: key %q not found", table, key)
	if c := Closest(key, keys); c != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", c)
	}
	return errors.E(errors.NotExist, msg)
}
