// Package mock provides an in-memory remote.Wiki for testing.
package mock

import (
	"context"
	"maps"
	"slices"
)

// Write records one WriteConfig call.
type Write struct {
	Subreddit string
	Text      string
	Reason    string
}

// Wiki is an in-memory implementation of remote.Wiki.
type Wiki struct {
	pages      map[string]string
	readErrs   map[string]error
	writeErrs  map[string]error
	moderated  []string
	listErr    error
	writes     []Write
	fetchCalls int
}

// New creates an empty mock wiki.
func New() *Wiki {
	return &Wiki{
		pages:     make(map[string]string),
		readErrs:  make(map[string]error),
		writeErrs: make(map[string]error),
	}
}

// WithPage sets the config text of sub.
func (w *Wiki) WithPage(sub, text string) *Wiki {
	w.pages[sub] = text
	return w
}

// WithReadError makes fetching sub fail with err.
func (w *Wiki) WithReadError(sub string, err error) *Wiki {
	w.readErrs[sub] = err
	return w
}

// WithWriteError makes writing sub fail with err.
func (w *Wiki) WithWriteError(sub string, err error) *Wiki {
	w.writeErrs[sub] = err
	return w
}

// WithModerated sets the subreddits returned by ListModerated.
func (w *Wiki) WithModerated(subs ...string) *Wiki {
	w.moderated = subs
	return w
}

// WithListError makes ListModerated fail with err.
func (w *Wiki) WithListError(err error) *Wiki {
	w.listErr = err
	return w
}

// FetchConfig implements remote.Wiki. Subreddits without a page read as
// empty, like a missing wiki page on Reddit.
func (w *Wiki) FetchConfig(ctx context.Context, sub string) (string, error) {
	w.fetchCalls++
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := w.readErrs[sub]; err != nil {
		return "", err
	}
	return w.pages[sub], nil
}

// WriteConfig implements remote.Wiki.
func (w *Wiki) WriteConfig(ctx context.Context, sub, text, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := w.writeErrs[sub]; err != nil {
		return err
	}
	w.writes = append(w.writes, Write{Subreddit: sub, Text: text, Reason: reason})
	w.pages[sub] = text
	return nil
}

// ListModerated implements remote.Wiki.
func (w *Wiki) ListModerated(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if w.listErr != nil {
		return nil, w.listErr
	}
	return slices.Clone(w.moderated), nil
}

// Page returns the current text of sub.
func (w *Wiki) Page(sub string) string {
	return w.pages[sub]
}

// Pages returns a copy of every stored page.
func (w *Wiki) Pages() map[string]string {
	return maps.Clone(w.pages)
}

// Writes returns the recorded WriteConfig calls in order.
func (w *Wiki) Writes() []Write {
	return slices.Clone(w.writes)
}

// FetchCalls returns the number of times FetchConfig was called.
func (w *Wiki) FetchCalls() int {
	return w.fetchCalls
}

// Reset clears recorded writes and call counters.
func (w *Wiki) Reset() {
	w.writes = nil
	w.fetchCalls = 0
}
