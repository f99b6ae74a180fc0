package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/mattn/go-shellwords"

	"github.com/klauern/amsync/internal/logging"
	"github.com/klauern/amsync/internal/ui"
	"github.com/klauern/amsync/internal/ui/tui"
)

// ErrNoInput is returned when stdin closes before the operator answers.
var ErrNoInput = errors.New("no answer on standard input")

// operator picks the terminal UI when stdin and stdout are terminals and the
// line-based prompts otherwise.
func (a *app) operator() *lineOperator {
	return &lineOperator{
		in:    bufio.NewReader(a.in),
		out:   a.out,
		tty:   a.interactive(),
		pager: a.cfg.Output.Pager,
	}
}

// lineOperator asks the operator for decisions. With tty set, questions go
// through huh forms and diffs through a pager; otherwise it reads lines.
type lineOperator struct {
	in    *bufio.Reader
	out   io.Writer
	tty   bool
	pager bool
}

// Confirm asks "Update <label> [y/N]:" and accepts y or yes.
func (o *lineOperator) Confirm(ctx context.Context, label string) (bool, error) {
	if o.tty {
		ok := false
		err := huh.NewForm(huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Update %s?", label)).
				Affirmative("Yes").
				Negative("No").
				Value(&ok),
		)).WithShowHelp(false).RunWithContext(ctx)
		if err != nil {
			return false, fmt.Errorf("run confirm prompt: %w", err)
		}
		return ok, nil
	}

	if _, err := fmt.Fprintf(o.out, "Update %s [y/N]: ", label); err != nil {
		return false, err
	}
	answer, err := o.readLine(ctx)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(answer) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// CommitMessage asks for the wiki edit reason.
func (o *lineOperator) CommitMessage(ctx context.Context) (string, error) {
	if o.tty {
		var reason string
		err := huh.NewForm(huh.NewGroup(
			huh.NewInput().
				Title("Commit message").
				Placeholder("describe this change").
				Value(&reason),
		)).WithShowHelp(false).RunWithContext(ctx)
		if err != nil {
			return "", fmt.Errorf("run commit message prompt: %w", err)
		}
		return strings.TrimSpace(reason), nil
	}

	if _, err := fmt.Fprint(o.out, "Commit message: "); err != nil {
		return "", err
	}
	return o.readLine(ctx)
}

// ShowDiff pages the diff on a terminal and prints it otherwise.
func (o *lineOperator) ShowDiff(ctx context.Context, diff string) error {
	if o.tty && o.pager {
		return page(ctx, diff)
	}
	_, err := fmt.Fprintln(o.out, strings.TrimRight(ui.ColorizeDiff(diff), "\n"))
	return err
}

// readLine returns the next trimmed line. A final line without a newline is
// accepted; a closed stdin with nothing left is ErrNoInput.
func (o *lineOperator) readLine(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	line, err := o.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		if errors.Is(err, io.EOF) {
			return "", ErrNoInput
		}
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// page runs $PAGER with the diff on stdin, or the built-in pager when PAGER
// is unset.
func page(ctx context.Context, diff string) error {
	pager := strings.TrimSpace(os.Getenv("PAGER"))
	if pager == "" {
		return tui.RunPager("amsync diff", diff)
	}

	args, err := shellwords.Parse(pager)
	if err != nil || len(args) == 0 {
		logging.Warn("ignoring unparseable PAGER", logging.Err(err))
		return tui.RunPager("amsync diff", diff)
	}

	// #nosec G204 - PAGER is chosen by the operator
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Stdin = strings.NewReader(ui.ColorizeDiff(diff))
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("pager %s: %w", args[0], err)
	}
	return nil
}
