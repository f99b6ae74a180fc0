// Package progress shows a progress bar while amsync works through a list of
// subreddits.
package progress

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"

	"github.com/klauern/amsync/internal/logging"
	"github.com/klauern/amsync/internal/ui"
)

// Bar is a progress bar that silently degrades to debug logging when the
// output is not an interactive terminal.
type Bar struct {
	bar  *progressbar.ProgressBar
	desc string
}

// Options configures the progress bar behavior.
type Options struct {
	// Max is the total number of steps.
	Max int
	// Description is the prefix text shown before the progress bar.
	Description string
	// Writer is the output destination. Defaults to os.Stderr.
	Writer io.Writer
}

// New creates a progress bar. The bar is only drawn when colors are enabled,
// the writer is a terminal and debug logging is off.
func New(opts Options) *Bar {
	if opts.Writer == nil {
		opts.Writer = os.Stderr
	}

	b := &Bar{desc: opts.Description}
	if !shouldShowProgress(opts.Writer) {
		logging.Debug(opts.Description+" started", logging.Count(opts.Max))
		return b
	}

	b.bar = progressbar.NewOptions(
		opts.Max,
		progressbar.OptionSetDescription(opts.Description),
		progressbar.OptionSetWriter(opts.Writer),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(20),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionEnableColorCodes(ui.IsColorEnabled()),
	)
	return b
}

// Step advances the bar by one and shows what is being worked on.
func (b *Bar) Step(current string) {
	if b.bar == nil {
		logging.Debug(b.desc, logging.Subreddit(current))
		return
	}
	b.bar.Describe(fmt.Sprintf("%s %s", b.desc, current))
	_ = b.bar.Add(1)
}

// Finish completes and clears the bar.
func (b *Bar) Finish() {
	if b.bar == nil {
		logging.Debug(b.desc + " completed")
		return
	}
	_ = b.bar.Finish()
}

// Enabled reports whether the bar is drawn.
func (b *Bar) Enabled() bool {
	return b.bar != nil
}

func shouldShowProgress(w io.Writer) bool {
	if !ui.IsColorEnabled() {
		return false
	}

	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) { //nolint:gosec // G115: fd fits in int
		return false
	}

	// Progress redraws would interleave with debug logs.
	return !logging.Default().Enabled(context.Background(), logging.LevelDebug)
}
