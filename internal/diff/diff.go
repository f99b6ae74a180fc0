// Package diff renders unified diffs between two rule texts.
package diff

import (
	"slices"
	"strings"

	"github.com/aymanbagabas/go-udiff"
)

// Result is the outcome of comparing two texts for one scope, usually a
// subreddit name or the rules file.
type Result struct {
	Scope   string
	Changed bool
	Text    string
}

// Diff compares from and to. When the texts have the same lines Changed is
// false and Text is empty; otherwise Text holds a unified diff with three
// lines of context, labelled fromLabel and toLabel.
func Diff(scope, from, to, fromLabel, toLabel string) Result {
	if slices.Equal(splitLines(from), splitLines(to)) {
		return Result{Scope: scope}
	}
	return Result{
		Scope:   scope,
		Changed: true,
		Text:    udiff.Unified(fromLabel, toLabel, withNewline(from), withNewline(to)),
	}
}

// Stats returns the number of added and removed lines in the diff.
func (r Result) Stats() (added, removed int) {
	inHunk := false
	for _, line := range strings.Split(r.Text, "\n") {
		switch {
		case strings.HasPrefix(line, "@@"):
			inHunk = true
		case !inHunk:
			// file headers
		case strings.HasPrefix(line, "+"):
			added++
		case strings.HasPrefix(line, "-"):
			removed++
		}
	}
	return added, removed
}

// splitLines splits on any line ending and ignores a final terminator, so
// "a\n" and "a" compare equal.
func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.TrimSuffix(s, "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func withNewline(s string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
