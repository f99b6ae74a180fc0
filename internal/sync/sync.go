package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/klauern/amsync/internal/diff"
	"github.com/klauern/amsync/internal/logging"
	"github.com/klauern/amsync/internal/model"
	"github.com/klauern/amsync/internal/reconcile"
	"github.com/klauern/amsync/internal/remote"
	"github.com/klauern/amsync/internal/rulefile"
	"github.com/klauern/amsync/internal/ui"
)

var (
	// ErrLocalRead is returned when the rules file is missing or cannot be
	// parsed.
	ErrLocalRead = errors.New("trouble reading local rules")

	// ErrEmptyWorkingSet is returned when there are no subreddits to work on.
	ErrEmptyWorkingSet = errors.New("no subreddits to work on")

	// ErrNothingFetched is returned when no subreddit yielded any rules.
	ErrNothingFetched = errors.New("no rules could be read from any subreddit")
)

// Operator is the person running amsync.
type Operator interface {
	// Confirm asks whether to update label.
	Confirm(ctx context.Context, label string) (bool, error)
	// CommitMessage asks for the wiki edit reason.
	CommitMessage(ctx context.Context) (string, error)
	// ShowDiff displays a rendered unified diff.
	ShowDiff(ctx context.Context, diff string) error
}

// Store holds the local rule set.
type Store interface {
	Path() string
	Load() (*model.RuleSet, error)
	Save(rs *model.RuleSet) error
	// Lock takes an exclusive lock and returns the function releasing it.
	Lock() (func(), error)
}

// Options configures a Syncer.
type Options struct {
	// DryRun shows diffs without asking or writing anything.
	DryRun bool

	// Progress, when set, receives a progress bar while pages are fetched.
	Progress io.Writer
}

// Syncer runs amsync operations against one wiki, store and operator.
type Syncer struct {
	wiki    remote.Wiki
	fetcher *remote.Fetcher
	store   Store
	op      Operator
	out     io.Writer
	opts    Options
}

// New creates a Syncer. Status lines are written to out.
func New(wiki remote.Wiki, store Store, op Operator, out io.Writer, opts Options) *Syncer {
	var fetchOpts []remote.FetcherOption
	if opts.Progress != nil {
		fetchOpts = append(fetchOpts, remote.WithProgress(opts.Progress))
	}
	return &Syncer{
		wiki:    wiki,
		fetcher: remote.NewFetcher(wiki, fetchOpts...),
		store:   store,
		op:      op,
		out:     out,
		opts:    opts,
	}
}

// Init fetches the given subreddits and writes them to a new rules file,
// replacing any existing one.
func (s *Syncer) Init(ctx context.Context, subs []string) (*Report, error) {
	defer logging.Timer("init")()
	return s.snapshot(ctx, "init", model.NewWorkingSet(subs...))
}

// ModInit is Init over every subreddit the account moderates.
func (s *Syncer) ModInit(ctx context.Context) (*Report, error) {
	defer logging.Timer("modinit")()

	subs, err := s.wiki.ListModerated(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list moderated subreddits: %w", err)
	}
	logging.Debug("found moderated subreddits", logging.Count(len(subs)))

	return s.snapshot(ctx, "modinit", model.NewWorkingSet(subs...))
}

func (s *Syncer) snapshot(ctx context.Context, op string, ws model.WorkingSet) (*Report, error) {
	report := &Report{Operation: op}
	if ws.Len() == 0 {
		return report, ErrEmptyWorkingSet
	}

	unlock, err := s.store.Lock()
	if err != nil {
		return report, err
	}
	defer unlock()

	live, err := s.fetch(ctx, report, ws)
	if err != nil {
		return report, err
	}

	if err := s.store.Save(live); err != nil {
		return report, err
	}
	for _, sub := range live.WorkingSet() {
		report.add(Entry{Scope: sub, Outcome: OutcomeUpdated})
	}

	s.printf("%s\n", ui.StatusSuccess(fmt.Sprintf("wrote %d rules for %d subreddits to %s",
		live.Len(), live.WorkingSet().Len(), s.store.Path())))
	return report, nil
}

// Pull refreshes the rules file from the wiki pages of its subreddits. The
// whole file is diffed and the operator asked once.
func (s *Syncer) Pull(ctx context.Context) (*Report, error) {
	defer logging.Timer("pull")()
	report := &Report{Operation: "pull", DryRun: s.opts.DryRun}

	unlock, err := s.store.Lock()
	if err != nil {
		return report, err
	}
	defer unlock()

	local, err := s.load()
	if err != nil {
		return report, err
	}

	live, err := s.fetch(ctx, report, local.WorkingSet())
	if err != nil {
		return report, err
	}

	from, err := rulefile.Marshal(local)
	if err != nil {
		return report, err
	}
	to, err := rulefile.Marshal(live)
	if err != nil {
		return report, err
	}

	label := filepath.Base(s.store.Path())
	d := diff.Diff(label, string(from), string(to), label, "reddit")

	apply, err := s.review(ctx, report, d)
	if err != nil || !apply {
		return report, err
	}

	if err := s.store.Save(live); err != nil {
		return report, err
	}
	s.record(report, d, OutcomeUpdated, nil)
	return report, nil
}

// Push writes each subreddit's rules from the rules file to its wiki page.
// Pages that cannot be read or written are reported and skipped.
func (s *Syncer) Push(ctx context.Context) (*Report, error) {
	defer logging.Timer("push")()
	report := &Report{Operation: "push", DryRun: s.opts.DryRun}

	unlock, err := s.store.Lock()
	if err != nil {
		return report, err
	}
	defer unlock()

	local, err := s.load()
	if err != nil {
		return report, err
	}
	label := filepath.Base(s.store.Path())

	// Pages are compared in reconciled form so that block order and
	// duplicates on a page do not show up as changes.
	pages, err := s.fetcher.FetchAll(ctx, local.WorkingSet())
	if err != nil {
		return report, err
	}
	for _, failed := range pages.Failed {
		s.skip(report, failed.Subreddit, failed)
	}
	live := reconcile.Reconcile(local.WorkingSet(), pages.Text)

	for _, sub := range local.WorkingSet() {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if _, ok := pages.Text[sub]; !ok {
			continue
		}

		target := reconcile.Render(local, sub)
		d := diff.Diff(sub, reconcile.Render(live, sub), target,
			fmt.Sprintf("/r/%s/wiki/config/automoderator", sub), label)

		apply, err := s.review(ctx, report, d)
		if err != nil {
			return report, err
		}
		if !apply {
			continue
		}

		reason, err := s.op.CommitMessage(ctx)
		if err != nil {
			return report, err
		}

		if err := s.wiki.WriteConfig(ctx, sub, target, reason); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return report, ctxErr
			}
			werr := &remote.WriteError{Subreddit: sub, Err: err}
			logging.Warn("failed to write wiki page", logging.Subreddit(sub), logging.Err(err))
			s.printf("%s\n", ui.StatusError(werr.Error()))
			s.record(report, d, OutcomeFailed, werr)
			continue
		}
		s.record(report, d, OutcomeUpdated, nil)
	}

	return report, nil
}

// load reads the rules file, which must name at least one subreddit.
func (s *Syncer) load() (*model.RuleSet, error) {
	local, err := s.store.Load()
	if err != nil {
		logging.Error("failed to load rules file", logging.Path(s.store.Path()), logging.Err(err))
		return nil, fmt.Errorf("%w: %w", ErrLocalRead, err)
	}
	if local.WorkingSet().Len() == 0 {
		return nil, fmt.Errorf("%w: %s lists no subreddits", ErrEmptyWorkingSet, s.store.Path())
	}
	return local, nil
}

// fetch reads every subreddit of ws and reconciles the readable ones.
func (s *Syncer) fetch(ctx context.Context, report *Report, ws model.WorkingSet) (*model.RuleSet, error) {
	pages, err := s.fetcher.FetchAll(ctx, ws)
	if err != nil {
		return nil, err
	}
	for _, failed := range pages.Failed {
		s.skip(report, failed.Subreddit, failed)
	}

	live := reconcile.Reconcile(ws, pages.Text)
	if live.Len() == 0 {
		return nil, ErrNothingFetched
	}
	return live, nil
}

// review shows a changed diff and asks the operator. It reports whether the
// change should be applied; unchanged scopes and dry runs are recorded here.
func (s *Syncer) review(ctx context.Context, report *Report, d diff.Result) (bool, error) {
	if !d.Changed {
		s.printf("%s\n", ui.StatusUnchanged(d.Scope+": up-to-date"))
		s.record(report, d, OutcomeUnchanged, nil)
		return false, nil
	}

	if err := s.op.ShowDiff(ctx, d.Text); err != nil {
		return false, fmt.Errorf("failed to show diff: %w", err)
	}

	if s.opts.DryRun {
		s.record(report, d, OutcomeDryRun, nil)
		return false, nil
	}

	ok, err := s.op.Confirm(ctx, d.Scope)
	if err != nil {
		return false, err
	}
	if !ok {
		s.printf("%s\n", ui.StatusSkipped(d.Scope+": not updated"))
		s.record(report, d, OutcomeDeclined, nil)
		return false, nil
	}
	return true, nil
}

func (s *Syncer) skip(report *Report, sub string, err error) {
	s.printf("%s\n", ui.StatusWarning(err.Error()))
	report.add(Entry{Scope: sub, Outcome: OutcomeSkipped, Err: err})
}

func (s *Syncer) record(report *Report, d diff.Result, o Outcome, err error) {
	added, removed := d.Stats()
	report.add(Entry{Scope: d.Scope, Outcome: o, Err: err, Added: added, Removed: removed})

	if o == OutcomeUpdated {
		s.printf("%s\n", ui.StatusSuccess(fmt.Sprintf("%s: updated (+%d -%d)", d.Scope, added, removed)))
	}
	logging.Info("scope processed",
		logging.Subreddit(d.Scope),
		slog.String("outcome", string(o)),
	)
}

func (s *Syncer) printf(format string, args ...any) {
	if s.out != nil {
		_, _ = fmt.Fprintf(s.out, format, args...)
	}
}
