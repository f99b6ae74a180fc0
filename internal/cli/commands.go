package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/klauern/amsync/internal/backup"
	"github.com/klauern/amsync/internal/config"
	"github.com/klauern/amsync/internal/rulefile"
	"github.com/klauern/amsync/internal/sync"
	"github.com/klauern/amsync/internal/ui"
	"github.com/klauern/amsync/internal/util"
)

func dryRunFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:    "dry-run",
		Aliases: []string{"n"},
		Usage:   "Show diffs without asking or writing anything",
	}
}

func (a *app) initCommand() *cli.Command {
	return &cli.Command{
		Name:      "init",
		Usage:     "Create the rules file from the wiki pages of the given subreddits",
		UsageText: "amsync init <subreddit>...",
		Description: `Fetch the AutoModerator config of each subreddit and write them to the
   rules file. Rules shared by every subreddit are written once, without a
   subreddits annotation. An existing rules file is replaced (and backed up
   when backups are enabled).

   Examples:
     amsync init askscience askhistorians
     amsync --rules mods.yaml init r/foo r/bar`,
		Action: func(ctx context.Context, cmd *cli.Command) error {
			s, err := a.syncer(sync.Options{})
			if err != nil {
				return err
			}
			return a.finish(s.Init(ctx, cmd.Args().Slice()))
		},
	}
}

func (a *app) modinitCommand() *cli.Command {
	return &cli.Command{
		Name:  "modinit",
		Usage: "Create the rules file from every subreddit the account moderates",
		Action: func(ctx context.Context, _ *cli.Command) error {
			s, err := a.syncer(sync.Options{})
			if err != nil {
				return err
			}
			return a.finish(s.ModInit(ctx))
		},
	}
}

func (a *app) pullCommand() *cli.Command {
	return &cli.Command{
		Name:  "pull",
		Usage: "Update the rules file from the subreddit wiki pages",
		Description: `Fetch every subreddit listed in the rules file, show the difference
   against the local file and ask before replacing it. Subreddits whose page
   cannot be read are left out and reported.`,
		Flags: []cli.Flag{dryRunFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			s, err := a.syncer(sync.Options{DryRun: cmd.Bool("dry-run")})
			if err != nil {
				return err
			}
			return a.finish(s.Pull(ctx))
		},
	}
}

func (a *app) pushCommand() *cli.Command {
	return &cli.Command{
		Name:  "push",
		Usage: "Write the rules file to the subreddit wiki pages",
		Description: `For each subreddit in the rules file, show the difference between its
   wiki page and its rules, ask before writing, and ask for an edit reason.
   Pages that are already up to date are not touched.`,
		Flags: []cli.Flag{dryRunFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			s, err := a.syncer(sync.Options{DryRun: cmd.Bool("dry-run")})
			if err != nil {
				return err
			}
			return a.finish(s.Push(ctx))
		},
	}
}

func (a *app) configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Inspect or create the amsync configuration",
		Commands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print the effective configuration",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Value:   "yaml",
						Usage:   "Output format (yaml, json)",
					},
				},
				Action: func(_ context.Context, cmd *cli.Command) error {
					return a.showConfig(cmd.String("format"))
				},
			},
			{
				Name:  "init",
				Usage: "Write a config file with the default settings",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Overwrite an existing config file",
					},
				},
				Action: func(_ context.Context, cmd *cli.Command) error {
					return a.initConfig(cmd.Bool("force"))
				},
			},
			{
				Name:  "path",
				Usage: "Print the config and credentials file locations",
				Action: func(_ context.Context, _ *cli.Command) error {
					_, err := fmt.Fprintf(a.out, "config: %s\ncredentials: %s\n",
						config.FilePath(), config.CredentialsPath())
					return err
				},
			},
		},
	}
}

func (a *app) initConfig(force bool) error {
	path := config.FilePath()
	if config.Exists() && !force {
		return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
	}
	if err := config.Default().SaveToPath(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	_, err := fmt.Fprintf(a.out, "%s\n", ui.StatusSuccess("Created config file at "+path))
	return err
}

func (a *app) showConfig(format string) error {
	var (
		data []byte
		err  error
	)
	switch format {
	case "yaml":
		data, err = yaml.Marshal(a.cfg)
	case "json":
		data, err = json.MarshalIndent(a.cfg, "", "  ")
		data = append(data, '\n')
	default:
		return fmt.Errorf("unsupported format %q (use yaml or json)", format)
	}
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	_, err = a.out.Write(data)
	return err
}

// syncer wires the configured wiki, rules file and operator together.
func (a *app) syncer(opts sync.Options) (*sync.Syncer, error) {
	wiki, err := a.newWiki(a.cfg)
	if err != nil {
		return nil, err
	}
	opts.Progress = a.errOut
	return sync.New(wiki, a.store(), a.operator(), a.out, opts), nil
}

func (a *app) store() *rulefile.Store {
	var opts []rulefile.Option
	if a.cfg.Backup.Enabled {
		opts = append(opts, rulefile.WithBackup(a.backups().Backup))
	}
	return rulefile.New(a.cfg.ResolvedRulesPath(), opts...)
}

func (a *app) backups() *backup.Manager {
	return backup.NewManager(util.ExpandPath(a.cfg.Backup.Location), a.cfg.Backup.MaxBackups)
}

// finish prints the report summary and passes err through.
func (a *app) finish(report *sync.Report, err error) error {
	if report != nil && (err == nil || len(report.Entries) > 0) {
		_, _ = fmt.Fprintln(a.out, ui.Bold(report.Summary()))
	}
	return err
}
