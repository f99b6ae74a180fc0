// Package remote defines how amsync talks to subreddit wiki pages and fetches
// the AutoModerator configuration of a whole working set.
package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/klauern/amsync/internal/logging"
	"github.com/klauern/amsync/internal/model"
	"github.com/klauern/amsync/internal/progress"
)

// Wiki reads and writes the AutoModerator configuration page of subreddits.
type Wiki interface {
	// FetchConfig returns the raw text of the subreddit's config page.
	FetchConfig(ctx context.Context, sub string) (string, error)
	// WriteConfig replaces the config page, recording reason as the edit
	// message.
	WriteConfig(ctx context.Context, sub, text, reason string) error
	// ListModerated returns the subreddits the account moderates.
	ListModerated(ctx context.Context) ([]string, error)
}

// ReadError reports a subreddit whose config page could not be read.
type ReadError struct {
	Subreddit string
	Err       error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("%s: trouble reading wiki page: %v", e.Subreddit, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// WriteError reports a subreddit whose config page could not be written.
type WriteError struct {
	Subreddit string
	Err       error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s: trouble editing wiki page: %v", e.Subreddit, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Pages holds the result of fetching a working set.
type Pages struct {
	// Text maps each readable subreddit to its config text.
	Text map[string]string
	// Failed lists the subreddits that could not be read, in working set
	// order.
	Failed []*ReadError
}

// Readable reports how many subreddits were fetched successfully.
func (p Pages) Readable() int {
	return len(p.Text)
}

// Fetcher reads config pages one subreddit at a time.
type Fetcher struct {
	wiki     Wiki
	progress io.Writer
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithProgress draws a progress bar on w while fetching a working set.
func WithProgress(w io.Writer) FetcherOption {
	return func(f *Fetcher) {
		f.progress = w
	}
}

// NewFetcher returns a fetcher reading from wiki.
func NewFetcher(wiki Wiki, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{wiki: wiki}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch reads one subreddit's config page. Failures are returned as
// *ReadError.
func (f *Fetcher) Fetch(ctx context.Context, sub string) (string, error) {
	text, err := f.wiki.FetchConfig(ctx, sub)
	if err != nil {
		return "", &ReadError{Subreddit: sub, Err: err}
	}
	logging.Debug("fetched wiki page", logging.Subreddit(sub), slog.Int("bytes", len(text)))
	return text, nil
}

// FetchAll reads every subreddit of ws in order. A subreddit that cannot be
// read is recorded in Pages.Failed and the loop moves on; the only error
// returned is the context's.
func (f *Fetcher) FetchAll(ctx context.Context, ws model.WorkingSet) (Pages, error) {
	pages := Pages{Text: make(map[string]string, ws.Len())}

	var bar *progress.Bar
	if f.progress != nil {
		bar = progress.New(progress.Options{
			Max:         ws.Len(),
			Description: "fetching",
			Writer:      f.progress,
		})
		defer bar.Finish()
	}

	for _, sub := range ws {
		if err := ctx.Err(); err != nil {
			return pages, err
		}
		if bar != nil {
			bar.Step(sub)
		}

		text, err := f.Fetch(ctx, sub)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return pages, ctxErr
			}
			logging.Warn("skipping unreadable subreddit", logging.Subreddit(sub), logging.Err(err))
			var rerr *ReadError
			if errors.As(err, &rerr) {
				pages.Failed = append(pages.Failed, rerr)
			}
			continue
		}
		pages.Text[sub] = text
	}

	logging.Info("fetched wiki pages",
		logging.Count(pages.Readable()),
		logging.Operation("fetch"),
	)
	return pages, nil
}
