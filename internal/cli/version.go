package cli

import (
	"context"
	"fmt"
	"runtime"

	"github.com/urfave/cli/v3"
)

func (a *app) versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Display version and build information",
		Action: func(_ context.Context, _ *cli.Command) error {
			_, err := fmt.Fprintf(a.out, "amsync version %s\n  commit: %s\n  built: %s\n  go: %s\n",
				Version, Commit, BuildDate, runtime.Version())
			return err
		},
	}
}
