// Package rulefile reads and writes the combined local rules file.
//
// The file is a stream of documents separated by divider lines. The first
// document is the manifest naming the working set; every following document
// is one rule block, optionally preceded by a membership annotation:
//
//	working_set: [bar, baz, foo]
//	---
//	subreddits: [foo]
//	type: comment
//	action: remove
//	---
//	type: submission
//	action: filter
//
// A rule without an annotation applies to every subreddit in the working set.
package rulefile

import (
	"bytes"
	"fmt"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"

	"github.com/klauern/amsync/internal/model"
	"github.com/klauern/amsync/internal/reconcile"
)

const (
	manifestKey   = "working_set:"
	annotationKey = "subreddits:"
)

type manifest struct {
	WorkingSet []string `yaml:"working_set,flow"`
}

type annotation struct {
	Subreddits []string `yaml:"subreddits,flow"`
}

// ParseError describes a malformed rules file.
type ParseError struct {
	Line int
	Msg  string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("line %d: %s: %v", e.Line, e.Msg, e.Err)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Marshal renders rs in the combined file format. The output always ends
// with a newline.
func Marshal(rs *model.RuleSet) ([]byte, error) {
	var buf bytes.Buffer

	ws := rs.WorkingSet()
	head, err := yaml.Marshal(manifest{WorkingSet: nonNil(ws)})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal working set: %w", err)
	}
	buf.Write(head)

	for _, r := range rs.Rules() {
		buf.WriteString(reconcile.Divider + "\n")

		subs := r.Members.Subreddits()
		// A universal block that itself starts with an annotation-like
		// line gets the full list so it is not misread on load.
		if r.Members.IsUniversal() && strings.HasPrefix(firstLine(r.Block), annotationKey) {
			subs = ws
		}
		if subs != nil {
			line, err := yaml.Marshal(annotation{Subreddits: subs})
			if err != nil {
				return nil, fmt.Errorf("failed to marshal membership: %w", err)
			}
			buf.Write(line)
		}

		buf.WriteString(r.Block)
		buf.WriteByte('\n')
	}

	return buf.Bytes(), nil
}

// Unmarshal parses the combined file format.
func Unmarshal(data []byte) (*model.RuleSet, error) {
	docs := splitDocuments(reconcile.Normalize(string(data)))
	if len(docs) == 0 || !strings.HasPrefix(strings.TrimSpace(docs[0].text), manifestKey) {
		return nil, &ParseError{Line: 1, Msg: "missing working_set manifest"}
	}
	if line := extraManifestLine(docs[0]); line > 0 {
		return nil, &ParseError{Line: line, Msg: "unexpected content after working_set manifest"}
	}

	var m manifest
	if err := yaml.Unmarshal([]byte(docs[0].text), &m); err != nil {
		return nil, &ParseError{Line: docs[0].line, Msg: "invalid working_set manifest", Err: err}
	}
	ws := model.NewWorkingSet(m.WorkingSet...)
	rs := model.NewRuleSet(ws)

	for _, doc := range docs[1:] {
		block, members, err := parseRule(doc)
		if err != nil {
			return nil, err
		}
		if err := rs.Add(block, members); err != nil {
			return nil, &ParseError{Line: doc.line, Msg: "invalid rule", Err: err}
		}
	}

	return rs, nil
}

func parseRule(doc document) (string, model.Membership, error) {
	first, rest, _ := strings.Cut(doc.text, "\n")
	if !strings.HasPrefix(first, annotationKey) {
		return doc.text, model.Universal(), nil
	}

	var a annotation
	if err := yaml.Unmarshal([]byte(first), &a); err != nil {
		return "", model.Membership{}, &ParseError{Line: doc.line, Msg: "invalid subreddits annotation", Err: err}
	}
	if len(a.Subreddits) == 0 {
		return "", model.Membership{}, &ParseError{Line: doc.line, Msg: "empty subreddits annotation"}
	}
	if strings.TrimSpace(rest) == "" {
		return "", model.Membership{}, &ParseError{Line: doc.line, Msg: "rule has no body"}
	}

	return rest, model.Explicit(a.Subreddits...), nil
}

type document struct {
	line int
	text string
}

// splitDocuments splits text on divider lines, remembering the line each
// document starts on. Trailing whitespace is stripped and blank documents
// are dropped, matching how wiki text is split into blocks.
func splitDocuments(text string) []document {
	var (
		docs    []document
		current []string
		start   = 1
	)
	flush := func(next int) {
		body := strings.TrimRightFunc(strings.Join(current, "\n"), unicode.IsSpace)
		if strings.TrimSpace(body) != "" {
			docs = append(docs, document{line: start, text: body})
		}
		current = current[:0]
		start = next
	}

	for i, line := range strings.Split(text, "\n") {
		if reconcile.IsDivider(line) {
			flush(i + 2)
			continue
		}
		current = append(current, line)
	}
	flush(0)

	return docs
}

// extraManifestLine returns the file line of the first non-blank line after
// the working_set line, or 0 when the manifest holds nothing else.
func extraManifestLine(doc document) int {
	seen := false
	for i, line := range strings.Split(doc.text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if seen {
			return doc.line + i
		}
		seen = true
	}
	return 0
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

func nonNil(ws model.WorkingSet) []string {
	if ws == nil {
		return []string{}
	}
	return ws
}
