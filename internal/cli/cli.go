// Package cli provides the command-line interface for amsync.
package cli

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/klauern/amsync/internal/config"
	"github.com/klauern/amsync/internal/logging"
	"github.com/klauern/amsync/internal/reddit"
	"github.com/klauern/amsync/internal/remote"
	"github.com/klauern/amsync/internal/ui"
)

var (
	// Version is the current version of the application.
	Version = "dev"
	// Commit is the git commit hash.
	Commit = "unknown"
	// BuildDate is the date and time of the build.
	BuildDate = "unknown"
)

// app carries what every command needs: streams, the loaded config and the
// constructors tests swap out.
type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	cfg *config.Config

	// newWiki builds the remote wiki client.
	newWiki func(cfg *config.Config) (remote.Wiki, error)
	// interactive reports whether prompts can use the terminal UI.
	interactive func() bool
}

func newApp() *app {
	return &app{
		in:          os.Stdin,
		out:         os.Stdout,
		errOut:      os.Stderr,
		newWiki:     redditWiki,
		interactive: stdioIsTerminal,
	}
}

// Run executes the CLI application with the given context and arguments.
func Run(ctx context.Context, args []string) error {
	return newApp().run(ctx, args)
}

func (a *app) run(ctx context.Context, args []string) error {
	root := &cli.Command{
		Name:      "amsync",
		Usage:     "Synchronize AutoModerator rules across subreddits",
		Version:   Version,
		Reader:    a.in,
		Writer:    a.out,
		ErrWriter: a.errOut,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "rules",
				Aliases: []string{"r"},
				Usage:   "Path to the rules file (overrides rules_path in the config)",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable verbose output (info level logging)",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug output (debug level logging, implies verbose)",
			},
			&cli.BoolFlag{
				Name:  "no-color",
				Usage: "Disable colored output",
			},
			&cli.BoolFlag{
				Name:  "no-pager",
				Usage: "Print diffs instead of opening a pager",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			a.configureLogging(cmd)
			cfg, err := config.Load()
			if err != nil {
				return ctx, err
			}
			if path := cmd.String("rules"); path != "" {
				cfg.RulesPath = path
			}
			if cmd.Bool("no-pager") {
				cfg.Output.Pager = false
			}
			a.cfg = cfg
			a.configureColors(cmd)
			return ctx, nil
		},
		Commands: []*cli.Command{
			a.initCommand(),
			a.modinitCommand(),
			a.pullCommand(),
			a.pushCommand(),
			a.backupCommand(),
			a.configCommand(),
			a.versionCommand(),
		},
	}
	return root.Run(ctx, args)
}

// configureColors applies --no-color and the output.color setting.
func (a *app) configureColors(cmd *cli.Command) {
	switch {
	case cmd.Bool("no-color"), a.cfg.Output.Color == "never":
		ui.DisableColors()
	case a.cfg.Output.Color == "always":
		ui.EnableColors()
	}
}

// configureLogging sets up the logging level based on CLI flags.
func (a *app) configureLogging(cmd *cli.Command) {
	opts := logging.DefaultOptions()
	opts.Output = a.errOut

	if cmd.Bool("debug") {
		opts.Level = slog.LevelDebug
		opts.AddSource = true
	} else if cmd.Bool("verbose") {
		opts.Level = slog.LevelInfo
	}

	logging.SetDefault(logging.New(opts))
	logging.Debug("logging configured", slog.String("level", opts.Level.String()))
}

func redditWiki(cfg *config.Config) (remote.Wiki, error) {
	creds, err := config.LoadCredentials()
	if err != nil {
		return nil, err
	}
	client, err := reddit.New(cfg.ClientConfig(creds))
	if err != nil {
		return nil, err
	}
	return client, nil
}

func stdioIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd())) && term.IsTerminal(int(os.Stdout.Fd()))
}
