// Package e2e runs the amsync CLI end to end against a fake Reddit server in
// an isolated AMSYNC_HOME.
package e2e

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauern/amsync/internal/cli"
	"github.com/klauern/amsync/internal/reddit/reddittest"
)

// Result contains the outcome of running a CLI command.
type Result struct {
	// Stdout contains the captured standard output.
	Stdout string
	// Stderr contains the captured standard error (logs and progress).
	Stderr string
	// Err is the error returned by the CLI command, if any.
	Err error
	// ExitCode is the status the binary would exit with.
	ExitCode int
}

// Success returns true if the command completed without error.
func (r *Result) Success() bool {
	return r.Err == nil
}

// Harness runs CLI commands against a fake Reddit server. Each harness has
// its own AMSYNC_HOME, credentials and rules file.
type Harness struct {
	t       *testing.T
	homeDir string
	reddit  *reddittest.Server
}

// NewHarness starts a fake Reddit server and points amsync at it through
// the environment. The server is closed when the test ends.
func NewHarness(t *testing.T) *Harness {
	t.Helper()

	homeDir := t.TempDir()
	srv := reddittest.New()
	t.Cleanup(srv.Close)

	h := &Harness{
		t:       t,
		homeDir: homeDir,
		reddit:  srv,
	}

	h.SetEnv("AMSYNC_HOME", homeDir)
	h.SetEnv("AMSYNC_RULES_PATH", filepath.Join(homeDir, "rules.yaml"))
	h.SetEnv("AMSYNC_REDDIT_BASE_URL", srv.URL)
	h.SetEnv("AMSYNC_REDDIT_TOKEN_URL", srv.TokenURL())
	h.SetEnv("AMSYNC_REDDIT_REQUESTS_PER_SECOND", "1000")
	h.SetEnv("AMSYNC_REDDIT_BURST", "100")
	h.SetEnv("AMSYNC_REDDIT_MAX_RETRY_TIME", "5s")

	h.SetEnv("AMSYNC_CLIENT_ID", reddittest.ClientID)
	h.SetEnv("AMSYNC_CLIENT_SECRET", reddittest.ClientSecret)
	h.SetEnv("AMSYNC_USERNAME", reddittest.Username)
	h.SetEnv("AMSYNC_PASSWORD", reddittest.Password)

	h.SetEnv("PAGER", "")
	return h
}

// SetEnv sets an environment variable for the rest of the test.
func (h *Harness) SetEnv(key, value string) {
	h.t.Helper()
	h.t.Setenv(key, value)
}

// HomeDir returns the isolated AMSYNC_HOME of this harness.
func (h *Harness) HomeDir() string {
	return h.homeDir
}

// RulesPath returns the rules file amsync uses by default.
func (h *Harness) RulesPath() string {
	return filepath.Join(h.homeDir, "rules.yaml")
}

// Reddit returns the fake Reddit server.
func (h *Harness) Reddit() *reddittest.Server {
	return h.reddit
}

// Run executes amsync with args and an empty stdin.
func (h *Harness) Run(args ...string) *Result {
	h.t.Helper()
	return h.RunWithStdin("", args...)
}

// RunWithStdin executes amsync with args, feeding stdin to its prompts.
func (h *Harness) RunWithStdin(stdin string, args ...string) *Result {
	h.t.Helper()

	if len(args) == 0 || args[0] != "amsync" {
		args = append([]string{"amsync", "--no-color"}, args...)
	}

	stdinR, stdinW, err := os.Pipe()
	if err != nil {
		h.t.Fatalf("failed to create stdin pipe: %v", err)
	}
	go func() {
		defer func() { _ = stdinW.Close() }()
		_, _ = stdinW.WriteString(stdin)
	}()

	oldStdin, oldStdout, oldStderr := os.Stdin, os.Stdout, os.Stderr
	os.Stdin = stdinR
	stdout, stdoutDone := h.capture(&os.Stdout)
	stderr, stderrDone := h.capture(&os.Stderr)

	cmdErr := cli.Run(context.Background(), args)

	// Closing the writers lets the copy goroutines see EOF.
	_ = os.Stdout.Close()
	_ = os.Stderr.Close()
	os.Stdin, os.Stdout, os.Stderr = oldStdin, oldStdout, oldStderr
	_ = stdinR.Close()

	<-stdoutDone
	<-stderrDone

	return &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Err:      cmdErr,
		ExitCode: cli.ExitCode(cmdErr),
	}
}

// capture replaces *f with a pipe and copies everything written to it into
// the returned buffer until the pipe is closed. Reading concurrently keeps
// large outputs from filling the pipe buffer and blocking the command.
func (h *Harness) capture(f **os.File) (*bytes.Buffer, <-chan struct{}) {
	h.t.Helper()

	r, w, err := os.Pipe()
	if err != nil {
		h.t.Fatalf("failed to create pipe: %v", err)
	}
	*f = w

	var buf bytes.Buffer
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = io.Copy(&buf, r)
		_ = r.Close()
	}()
	return &buf, done
}
