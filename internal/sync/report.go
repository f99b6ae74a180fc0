package sync

import (
	"fmt"
	"strings"
)

// Outcome is what happened to one scope (a subreddit or the rules file)
// during an operation.
type Outcome string

const (
	// OutcomeUpdated indicates the change was written.
	OutcomeUpdated Outcome = "updated"

	// OutcomeUnchanged indicates there was nothing to write.
	OutcomeUnchanged Outcome = "up-to-date"

	// OutcomeDeclined indicates the operator declined the change.
	OutcomeDeclined Outcome = "declined"

	// OutcomeSkipped indicates the remote page could not be read.
	OutcomeSkipped Outcome = "skipped"

	// OutcomeFailed indicates the write failed.
	OutcomeFailed Outcome = "failed"

	// OutcomeDryRun indicates a change was shown but not applied.
	OutcomeDryRun Outcome = "dry-run"
)

// outcomeOrder fixes the order of counts in Summary.
var outcomeOrder = []Outcome{
	OutcomeUpdated,
	OutcomeUnchanged,
	OutcomeDryRun,
	OutcomeDeclined,
	OutcomeSkipped,
	OutcomeFailed,
}

// Entry is the outcome for one scope.
type Entry struct {
	Scope   string
	Outcome Outcome
	// Err is set for skipped and failed entries.
	Err error
	// Added and Removed count diff lines for changed scopes.
	Added   int
	Removed int
}

// Report collects the per-scope outcomes of one operation.
type Report struct {
	Operation string
	DryRun    bool
	Entries   []Entry
}

func (r *Report) add(e Entry) {
	r.Entries = append(r.Entries, e)
}

// Count returns how many entries have outcome o.
func (r *Report) Count(o Outcome) int {
	n := 0
	for _, e := range r.Entries {
		if e.Outcome == o {
			n++
		}
	}
	return n
}

// Lookup returns the entry for scope.
func (r *Report) Lookup(scope string) (Entry, bool) {
	for _, e := range r.Entries {
		if e.Scope == scope {
			return e, true
		}
	}
	return Entry{}, false
}

// Problems returns the skipped and failed entries.
func (r *Report) Problems() []Entry {
	var out []Entry
	for _, e := range r.Entries {
		if e.Outcome == OutcomeSkipped || e.Outcome == OutcomeFailed {
			out = append(out, e)
		}
	}
	return out
}

// Success reports whether no scope was skipped or failed.
func (r *Report) Success() bool {
	return len(r.Problems()) == 0
}

// Summary returns a one-line summary such as
// "push: 1 updated, 2 up-to-date, 1 skipped".
func (r *Report) Summary() string {
	var parts []string
	for _, o := range outcomeOrder {
		if n := r.Count(o); n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, o))
		}
	}
	if len(parts) == 0 {
		parts = append(parts, "nothing to do")
	}

	prefix := r.Operation
	if r.DryRun {
		prefix += " (dry run)"
	}
	return prefix + ": " + strings.Join(parts, ", ")
}
