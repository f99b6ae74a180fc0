package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/klauern/amsync/internal/backup"
	"github.com/klauern/amsync/internal/ui"
	"github.com/klauern/amsync/internal/ui/tui"
)

func (a *app) backupCommand() *cli.Command {
	list := &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List rules file backups, newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Value:   "table",
				Usage:   "Output format (table, json, yaml)",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"l"},
				Usage:   "Show at most this many backups (0 = all)",
			},
			&cli.BoolFlag{
				Name:    "interactive",
				Aliases: []string{"i"},
				Usage:   "Pick a backup to restore, delete or verify",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Bool("interactive") {
				return a.interactiveBackups(ctx)
			}
			return a.listBackups(cmd.String("format"), int(cmd.Int("limit")))
		},
	}

	return &cli.Command{
		Name:  "backup",
		Usage: "Manage backups of the rules file",
		Action: func(_ context.Context, _ *cli.Command) error {
			return a.listBackups("table", 0)
		},
		Commands: []*cli.Command{
			list,
			{
				Name:      "restore",
				Usage:     "Replace the rules file with a backup",
				UsageText: "amsync backup restore <id>",
				Action: func(_ context.Context, cmd *cli.Command) error {
					id, err := backupID(cmd)
					if err != nil {
						return err
					}
					return a.restoreBackup(id)
				},
			},
			{
				Name:      "delete",
				Usage:     "Delete a backup",
				UsageText: "amsync backup delete <id>",
				Action: func(_ context.Context, cmd *cli.Command) error {
					id, err := backupID(cmd)
					if err != nil {
						return err
					}
					return a.deleteBackup(id)
				},
			},
			{
				Name:      "verify",
				Usage:     "Check that a backup is intact",
				UsageText: "amsync backup verify <id>",
				Action: func(_ context.Context, cmd *cli.Command) error {
					id, err := backupID(cmd)
					if err != nil {
						return err
					}
					return a.verifyBackup(id)
				},
			},
			{
				Name:  "clean",
				Usage: "Remove old backups",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "max-backups",
						Usage: "Backups to keep per rules file (defaults to backup.max_backups)",
					},
					&cli.DurationFlag{
						Name:  "max-age",
						Usage: "Remove backups older than this (e.g. 720h)",
					},
					dryRunFlag(),
				},
				Action: func(_ context.Context, cmd *cli.Command) error {
					opts := backup.CleanupOptions{
						MaxBackups:     a.cfg.Backup.MaxBackups,
						MaxAge:         cmd.Duration("max-age"),
						KeepAtLeastOne: true,
						DryRun:         cmd.Bool("dry-run"),
					}
					if cmd.IsSet("max-backups") {
						opts.MaxBackups = int(cmd.Int("max-backups"))
					}
					return a.cleanBackups(opts)
				},
			},
		},
	}
}

func backupID(cmd *cli.Command) (string, error) {
	if cmd.Args().Len() != 1 {
		return "", errors.New("exactly one backup ID is required (see amsync backup list)")
	}
	return cmd.Args().First(), nil
}

func (a *app) listBackups(format string, limit int) error {
	backups, err := a.backups().List()
	if err != nil {
		return err
	}
	if limit > 0 && len(backups) > limit {
		backups = backups[:limit]
	}

	switch format {
	case "table":
		return a.outputBackupsTable(backups, time.Now())
	case "json":
		data, err := json.MarshalIndent(nonNil(backups), "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(a.out, string(data))
		return err
	case "yaml":
		data, err := yaml.Marshal(nonNil(backups))
		if err != nil {
			return err
		}
		_, err = a.out.Write(data)
		return err
	default:
		return fmt.Errorf("unsupported format %q (use table, json or yaml)", format)
	}
}

func nonNil(backups []backup.Metadata) []backup.Metadata {
	if backups == nil {
		return []backup.Metadata{}
	}
	return backups
}

func (a *app) outputBackupsTable(backups []backup.Metadata, now time.Time) error {
	if len(backups) == 0 {
		_, err := fmt.Fprintln(a.out, "No backups found")
		return err
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "SOURCE", "CREATED", "SIZE")
	for _, b := range backups {
		t.Row(
			b.ID,
			b.SourcePath,
			humanize.RelTime(b.CreatedAt, now, "ago", "from now"),
			humanize.Bytes(uint64(max(b.Size, 0))),
		)
	}
	_, err := fmt.Fprintln(a.out, t.String())
	return err
}

func (a *app) restoreBackup(id string) error {
	store := a.store()
	unlock, err := store.Lock()
	if err != nil {
		return err
	}
	defer unlock()

	meta, err := a.backups().Restore(id, store.Path())
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.out, ui.StatusSuccess(fmt.Sprintf("restored %s (%s) to %s",
		meta.ID, humanize.Time(meta.CreatedAt), store.Path())))
	return err
}

func (a *app) deleteBackup(id string) error {
	if err := a.backups().Delete(id); err != nil {
		return err
	}
	_, err := fmt.Fprintln(a.out, ui.StatusSuccess("deleted "+id))
	return err
}

func (a *app) verifyBackup(id string) error {
	if err := a.backups().Verify(id); err != nil {
		return err
	}
	_, err := fmt.Fprintln(a.out, ui.StatusSuccess(id+": ok"))
	return err
}

func (a *app) cleanBackups(opts backup.CleanupOptions) error {
	m := a.backups()
	removed, err := m.Cleanup(opts)
	if err != nil {
		return err
	}

	verb := "removed"
	if opts.DryRun {
		verb = "would remove"
	}
	for _, id := range removed {
		_, _ = fmt.Fprintln(a.out, ui.StatusSkipped(verb+" "+id))
	}

	stats, err := m.Stats()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(a.out, "%s %d backup(s); %d remaining (%s)\n",
		verb, len(removed), stats.TotalBackups, humanize.Bytes(uint64(max(stats.TotalSize, 0))))
	return err
}

// interactiveBackups lets the operator pick a backup and act on it.
func (a *app) interactiveBackups(_ context.Context) error {
	if !a.interactive() {
		return errors.New("--interactive needs a terminal")
	}

	backups, err := a.backups().List()
	if err != nil {
		return err
	}
	if len(backups) == 0 {
		_, err := fmt.Fprintln(a.out, "No backups found")
		return err
	}

	result, err := tui.RunBackupList(backups)
	if err != nil {
		return err
	}
	switch result.Action {
	case tui.ActionRestore:
		return a.restoreBackup(result.Backup.ID)
	case tui.ActionDelete:
		return a.deleteBackup(result.Backup.ID)
	case tui.ActionVerify:
		return a.verifyBackup(result.Backup.ID)
	default:
		return nil
	}
}
