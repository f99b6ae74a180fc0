// Package model defines the core data types for amsync: subreddit working
// sets, rule memberships and reconciled rule sets.
package model

import (
	"slices"
	"strings"

	"golang.org/x/text/cases"
)

// folder compares subreddit names the way Reddit does, ignoring case.
var folder = cases.Fold()

// WorkingSet is the sorted, de-duplicated list of subreddits an operation
// concerns.
type WorkingSet []string

// NewWorkingSet builds a WorkingSet from raw subreddit names.
// Names are trimmed and stripped of any "/r/" or "r/" prefix. Names that
// differ only by case are treated as one subreddit; the first spelling wins.
func NewWorkingSet(names ...string) WorkingSet {
	seen := make(map[string]bool, len(names))
	ws := make(WorkingSet, 0, len(names))
	for _, name := range names {
		name = CleanSubreddit(name)
		if name == "" {
			continue
		}
		key := folder.String(name)
		if seen[key] {
			continue
		}
		seen[key] = true
		ws = append(ws, name)
	}
	slices.Sort(ws)
	return ws
}

// CleanSubreddit normalizes user input such as "/r/foo/" to "foo".
func CleanSubreddit(name string) string {
	name = strings.TrimSpace(name)
	name = strings.Trim(name, "/")
	if rest, ok := strings.CutPrefix(name, "r/"); ok {
		name = rest
	}
	return strings.Trim(name, "/")
}

// Len returns the number of subreddits in the set.
func (ws WorkingSet) Len() int {
	return len(ws)
}

// Contains reports whether name is in the set, ignoring case.
func (ws WorkingSet) Contains(name string) bool {
	_, ok := ws.Lookup(name)
	return ok
}

// Lookup returns the set's spelling of name, matched ignoring case.
func (ws WorkingSet) Lookup(name string) (string, bool) {
	if _, ok := slices.BinarySearch(ws, name); ok {
		return name, true
	}
	key := folder.String(name)
	for _, sub := range ws {
		if folder.String(sub) == key {
			return sub, true
		}
	}
	return "", false
}

// Filter returns the subset of ws for which keep returns true.
func (ws WorkingSet) Filter(keep func(string) bool) WorkingSet {
	out := make(WorkingSet, 0, len(ws))
	for _, sub := range ws {
		if keep(sub) {
			out = append(out, sub)
		}
	}
	return out
}

// Equal reports whether both sets hold the same subreddits.
func (ws WorkingSet) Equal(other WorkingSet) bool {
	return slices.Equal(ws, other)
}
