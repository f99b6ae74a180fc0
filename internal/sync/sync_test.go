package sync

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/klauern/amsync/internal/model"
	"github.com/klauern/amsync/internal/remote"
	"github.com/klauern/amsync/internal/remote/mock"
	"github.com/klauern/amsync/internal/rulefile"
	"github.com/klauern/amsync/internal/ui"
	"github.com/klauern/amsync/internal/util"
)

type fakeOperator struct {
	answers    map[string]bool
	message    string
	confirmErr error
	diffErr    error

	confirmed []string
	diffs     []string
	messages  int
}

func (f *fakeOperator) Confirm(_ context.Context, label string) (bool, error) {
	f.confirmed = append(f.confirmed, label)
	if f.confirmErr != nil {
		return false, f.confirmErr
	}
	return f.answers[label], nil
}

func (f *fakeOperator) CommitMessage(context.Context) (string, error) {
	f.messages++
	return f.message, nil
}

func (f *fakeOperator) ShowDiff(_ context.Context, diff string) error {
	f.diffs = append(f.diffs, diff)
	return f.diffErr
}

type fixture struct {
	wiki  *mock.Wiki
	op    *fakeOperator
	store *rulefile.Store
	out   *bytes.Buffer
	path  string
}

func newFixture(t *testing.T, opts Options) (*fixture, *Syncer) {
	t.Helper()
	ui.DisableColors()
	path := filepath.Join(util.CreateTempDir(t), "rules.yaml")
	f := &fixture{
		wiki:  mock.New(),
		op:    &fakeOperator{answers: map[string]bool{}},
		store: rulefile.New(path),
		out:   &bytes.Buffer{},
		path:  path,
	}
	return f, New(f.wiki, f.store, f.op, f.out, opts)
}

func (f *fixture) writeLocal(t *testing.T, content string) {
	t.Helper()
	util.WriteFile(t, f.path, content)
}

const fooBarFile = "working_set: [bar, foo]\n---\nruleA\n---\nsubreddits: [bar]\nruleC\n---\nsubreddits: [foo]\nruleB\n"

func TestInit_SharedAndSpecific(t *testing.T) {
	f, s := newFixture(t, Options{})
	f.wiki.WithPage("foo", "ruleA\n---\nruleB").WithPage("bar", "ruleA\r\n---\r\nruleC\r\n")

	report, err := s.Init(context.Background(), []string{"foo", "bar"})
	util.AssertNoError(t, err)

	util.AssertEqual(t, util.ReadFile(t, f.path), fooBarFile)
	util.AssertEqual(t, report.Count(OutcomeUpdated), 2)
	if len(f.op.confirmed) != 0 || len(f.op.diffs) != 0 {
		t.Error("init should not prompt the operator")
	}
	if !strings.Contains(f.out.String(), "wrote 3 rules for 2 subreddits") {
		t.Errorf("unexpected output: %q", f.out.String())
	}
}

func TestInit_OverwritesExistingFile(t *testing.T) {
	f, s := newFixture(t, Options{})
	f.writeLocal(t, "working_set: [old]\n---\nstale\n")
	f.wiki.WithPage("foo", "fresh")

	_, err := s.Init(context.Background(), []string{"foo"})
	util.AssertNoError(t, err)
	util.AssertEqual(t, util.ReadFile(t, f.path), "working_set: [foo]\n---\nfresh\n")
}

func TestInit_Errors(t *testing.T) {
	t.Run("no subreddits", func(t *testing.T) {
		_, s := newFixture(t, Options{})
		if _, err := s.Init(context.Background(), []string{" ", ""}); !errors.Is(err, ErrEmptyWorkingSet) {
			t.Fatalf("expected ErrEmptyWorkingSet, got %v", err)
		}
	})

	t.Run("nothing readable", func(t *testing.T) {
		f, s := newFixture(t, Options{})
		f.wiki.WithReadError("foo", errors.New("403 Forbidden")).WithPage("bar", "")

		report, err := s.Init(context.Background(), []string{"foo", "bar"})
		if !errors.Is(err, ErrNothingFetched) {
			t.Fatalf("expected ErrNothingFetched, got %v", err)
		}
		if !strings.Contains(f.out.String(), "foo: trouble reading wiki page: 403 Forbidden") {
			t.Errorf("expected a diagnostic naming foo, got %q", f.out.String())
		}
		util.AssertEqual(t, report.Count(OutcomeSkipped), 1)
		if _, err := f.store.Load(); err == nil {
			t.Error("no rules file should be written")
		}
	})
}

func TestModInit(t *testing.T) {
	f, s := newFixture(t, Options{})
	f.wiki.WithModerated("zeta", "Alpha", "alpha").
		WithPage("zeta", "shared").
		WithPage("Alpha", "shared\n---\nalphaOnly")

	_, err := s.ModInit(context.Background())
	util.AssertNoError(t, err)

	want := "working_set: [Alpha, zeta]\n---\nshared\n---\nsubreddits: [Alpha]\nalphaOnly\n"
	util.AssertEqual(t, util.ReadFile(t, f.path), want)
}

func TestModInit_ListError(t *testing.T) {
	f, s := newFixture(t, Options{})
	boom := errors.New("401 Unauthorized")
	f.wiki.WithListError(boom)

	if _, err := s.ModInit(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected list error, got %v", err)
	}
}

func TestPull_LocalErrors(t *testing.T) {
	tests := map[string]struct {
		content string
		write   bool
		wantErr error
	}{
		"missing file":      {wantErr: ErrLocalRead},
		"malformed file":    {content: "no manifest here\n", write: true, wantErr: ErrLocalRead},
		"empty working set": {content: "working_set: []\n", write: true, wantErr: ErrEmptyWorkingSet},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			f, s := newFixture(t, Options{})
			if tt.write {
				f.writeLocal(t, tt.content)
			}
			if _, err := s.Pull(context.Background()); !errors.Is(err, tt.wantErr) {
				t.Fatalf("Pull() error = %v, want %v", err, tt.wantErr)
			}
			if _, err := s.Push(context.Background()); !errors.Is(err, tt.wantErr) {
				t.Fatalf("Push() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestPull_UpToDate(t *testing.T) {
	f, s := newFixture(t, Options{})
	f.writeLocal(t, fooBarFile)
	f.wiki.WithPage("foo", "ruleA\n---\nruleB").WithPage("bar", "ruleA\n---\nruleC")

	report, err := s.Pull(context.Background())
	util.AssertNoError(t, err)

	util.AssertEqual(t, report.Count(OutcomeUnchanged), 1)
	if len(f.op.confirmed) != 0 || len(f.op.diffs) != 0 {
		t.Error("an up-to-date pull should not prompt")
	}
	if !strings.Contains(f.out.String(), "rules.yaml: up-to-date") {
		t.Errorf("unexpected output: %q", f.out.String())
	}
}

func TestPull_UnreadableSubredditExcluded(t *testing.T) {
	f, s := newFixture(t, Options{})
	f.writeLocal(t, "working_set: [bar, baz, foo]\n---\nruleA\n")
	f.wiki.WithPage("foo", "ruleA\n---\nruleB").
		WithPage("bar", "ruleA").
		WithReadError("baz", errors.New("404 Not Found"))
	f.op.answers["rules.yaml"] = true

	report, err := s.Pull(context.Background())
	util.AssertNoError(t, err)

	if !strings.Contains(f.out.String(), "baz: trouble reading wiki page") {
		t.Errorf("expected a diagnostic naming baz, got %q", f.out.String())
	}
	if diff := cmp.Diff([]string{"rules.yaml"}, f.op.confirmed); diff != "" {
		t.Errorf("confirmations mismatch (-want +got):\n%s", diff)
	}
	if len(f.op.diffs) != 1 || !strings.Contains(f.op.diffs[0], "+++ reddit") {
		t.Errorf("expected one diff against reddit, got %v", f.op.diffs)
	}

	rs, err := f.store.Load()
	util.AssertNoError(t, err)
	if diff := cmp.Diff(model.WorkingSet{"bar", "foo"}, rs.WorkingSet()); diff != "" {
		t.Errorf("working set mismatch (-want +got):\n%s", diff)
	}
	if m, _ := rs.Lookup("ruleA"); !m.IsUniversal() {
		t.Errorf("ruleA should be universal over the readable subreddits, got %s", m)
	}

	entry, ok := report.Lookup("baz")
	if !ok || entry.Outcome != OutcomeSkipped {
		t.Errorf("baz entry = %+v, want skipped", entry)
	}
	entry, _ = report.Lookup("rules.yaml")
	util.AssertEqual(t, entry.Outcome, OutcomeUpdated)
}

func TestPull_DeclinedAndDryRun(t *testing.T) {
	for name, opts := range map[string]Options{"declined": {}, "dry run": {DryRun: true}} {
		t.Run(name, func(t *testing.T) {
			f, s := newFixture(t, opts)
			f.writeLocal(t, fooBarFile)
			f.wiki.WithPage("foo", "ruleA\n---\nruleB2").WithPage("bar", "ruleA\n---\nruleC")

			report, err := s.Pull(context.Background())
			util.AssertNoError(t, err)

			util.AssertEqual(t, util.ReadFile(t, f.path), fooBarFile)
			util.AssertEqual(t, len(f.op.diffs), 1)
			if opts.DryRun {
				util.AssertEqual(t, len(f.op.confirmed), 0)
				util.AssertEqual(t, report.Count(OutcomeDryRun), 1)
			} else {
				util.AssertEqual(t, report.Count(OutcomeDeclined), 1)
			}
		})
	}
}

func TestPush_NoChangeNoPrompt(t *testing.T) {
	f, s := newFixture(t, Options{})
	f.writeLocal(t, fooBarFile)
	f.wiki.WithPage("foo", "ruleA\n---\nruleB").WithPage("bar", "ruleA\r\n---\r\nruleC\r\n\r\n")

	report, err := s.Push(context.Background())
	util.AssertNoError(t, err)

	if len(f.op.confirmed) != 0 || len(f.op.diffs) != 0 || f.op.messages != 0 {
		t.Errorf("no prompt expected, got confirms=%v diffs=%d messages=%d",
			f.op.confirmed, len(f.op.diffs), f.op.messages)
	}
	if len(f.wiki.Writes()) != 0 {
		t.Errorf("no writes expected, got %v", f.wiki.Writes())
	}
	util.AssertEqual(t, report.Count(OutcomeUnchanged), 2)
	util.AssertEqual(t, report.Summary(), "push: 2 up-to-date")
}

func TestPush_AfterInitIsUpToDate(t *testing.T) {
	f, s := newFixture(t, Options{})
	// Shared blocks in a different order on each page, and a repeated one.
	f.wiki.WithPage("foo", "ruleA\n---\nruleB\n---\nruleA").WithPage("bar", "ruleB\n---\nruleA")

	_, err := s.Init(context.Background(), []string{"foo", "bar"})
	util.AssertNoError(t, err)
	f.out.Reset()

	report, err := s.Push(context.Background())
	util.AssertNoError(t, err)

	if len(f.op.diffs) != 0 || len(f.op.confirmed) != 0 {
		t.Errorf("no changes expected, got diffs %v", f.op.diffs)
	}
	util.AssertEqual(t, report.Summary(), "push: 2 up-to-date")
}

func TestPush_UpdatesChangedSubreddits(t *testing.T) {
	f, s := newFixture(t, Options{})
	f.writeLocal(t, fooBarFile)
	f.wiki.WithPage("foo", "ruleA\n---\nold").WithPage("bar", "ruleA\n---\nruleC")
	f.op.answers["foo"] = true
	f.op.message = "sync shared rules"

	report, err := s.Push(context.Background())
	util.AssertNoError(t, err)

	want := []mock.Write{{Subreddit: "foo", Text: "ruleA\n---\nruleB", Reason: "sync shared rules"}}
	if diff := cmp.Diff(want, f.wiki.Writes()); diff != "" {
		t.Errorf("writes mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"foo"}, f.op.confirmed); diff != "" {
		t.Errorf("confirmations mismatch (-want +got):\n%s", diff)
	}
	for _, header := range []string{"--- /r/foo/wiki/config/automoderator", "+++ rules.yaml"} {
		if !strings.Contains(f.op.diffs[0], header) {
			t.Errorf("diff missing %q:\n%s", header, f.op.diffs[0])
		}
	}

	entry, _ := report.Lookup("foo")
	if entry.Outcome != OutcomeUpdated || entry.Added != 1 || entry.Removed != 1 {
		t.Errorf("foo entry = %+v", entry)
	}
	util.AssertEqual(t, report.Summary(), "push: 1 updated, 1 up-to-date")
}

func TestPush_PerSubredditFailuresContinue(t *testing.T) {
	f, s := newFixture(t, Options{})
	f.writeLocal(t, "working_set: [a, b, c, d]\n---\nshared\n")
	f.wiki.
		WithReadError("a", errors.New("403 Forbidden")).
		WithPage("b", "old").WithWriteError("b", errors.New("500 Internal Server Error")).
		WithPage("c", "old").
		WithPage("d", "old")
	f.op.answers = map[string]bool{"b": true, "c": true}

	report, err := s.Push(context.Background())
	util.AssertNoError(t, err)

	out := f.out.String()
	for _, want := range []string{
		"a: trouble reading wiki page: 403 Forbidden",
		"b: trouble editing wiki page: 500 Internal Server Error",
		"c: updated",
		"d: not updated",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	if diff := cmp.Diff([]string{"b", "c", "d"}, f.op.confirmed); diff != "" {
		t.Errorf("confirmations mismatch (-want +got):\n%s", diff)
	}
	util.AssertEqual(t, f.wiki.Page("c"), "shared")
	util.AssertEqual(t, f.wiki.Page("d"), "old")

	var werr *remote.WriteError
	entry, _ := report.Lookup("b")
	if entry.Outcome != OutcomeFailed || !errors.As(entry.Err, &werr) {
		t.Errorf("b entry = %+v, want failed with *remote.WriteError", entry)
	}
	util.AssertEqual(t, report.Summary(), "push: 1 updated, 1 declined, 1 skipped, 1 failed")
	if report.Success() {
		t.Error("report with problems should not be successful")
	}
}

func TestPush_OperatorErrorIsFatal(t *testing.T) {
	f, s := newFixture(t, Options{})
	f.writeLocal(t, "working_set: [a, b]\n---\nshared\n")
	f.wiki.WithPage("a", "old").WithPage("b", "old")
	f.op.confirmErr = errors.New("unexpected EOF")

	_, err := s.Push(context.Background())
	if !errors.Is(err, f.op.confirmErr) {
		t.Fatalf("expected operator error, got %v", err)
	}
	util.AssertEqual(t, len(f.op.confirmed), 1)
	util.AssertEqual(t, len(f.wiki.Writes()), 0)
}

func TestPush_DryRun(t *testing.T) {
	f, s := newFixture(t, Options{DryRun: true})
	f.writeLocal(t, fooBarFile)
	f.wiki.WithPage("foo", "old").WithPage("bar", "old")

	report, err := s.Push(context.Background())
	util.AssertNoError(t, err)

	util.AssertEqual(t, len(f.op.diffs), 2)
	util.AssertEqual(t, len(f.op.confirmed), 0)
	util.AssertEqual(t, len(f.wiki.Writes()), 0)
	util.AssertEqual(t, report.Summary(), "push (dry run): 2 dry-run")
}

func TestPush_Canceled(t *testing.T) {
	f, s := newFixture(t, Options{})
	f.writeLocal(t, fooBarFile)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Push(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	util.AssertEqual(t, f.wiki.FetchCalls(), 0)
}

func TestOperations_Locked(t *testing.T) {
	f, s := newFixture(t, Options{})
	f.writeLocal(t, fooBarFile)

	unlock, err := rulefile.New(f.path).Lock()
	util.AssertNoError(t, err)
	defer unlock()

	if _, err := s.Pull(context.Background()); !errors.Is(err, rulefile.ErrLocked) {
		t.Errorf("Pull() error = %v, want ErrLocked", err)
	}
	if _, err := s.Init(context.Background(), []string{"foo"}); !errors.Is(err, rulefile.ErrLocked) {
		t.Errorf("Init() error = %v, want ErrLocked", err)
	}
}

func TestReport_Summary(t *testing.T) {
	r := &Report{Operation: "pull"}
	util.AssertEqual(t, r.Summary(), "pull: nothing to do")
	util.AssertEqual(t, r.Success(), true)

	r.add(Entry{Scope: "rules.yaml", Outcome: OutcomeUpdated})
	util.AssertEqual(t, r.Summary(), "pull: 1 updated")
}
