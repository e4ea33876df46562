package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/m-mizutani/vault-sync/pkg/cli/config"
	"github.com/m-mizutani/vault-sync/pkg/domain/model"
	"github.com/m-mizutani/vault-sync/pkg/usecase"
	"github.com/urfave/cli/v3"
)

func cmdDiff() *cli.Command {
	var (
		syncCfg  config.Sync
		showAll  bool
		exitCode bool
	)

	flags := append(syncCfg.Flags(),
		&cli.BoolFlag{
			Name:        "all",
			Usage:       "Also print secrets that are already in sync",
			Destination: &showAll,
		},
		&cli.BoolFlag{
			Name:        "exit-code",
			Usage:       "Exit with status 1 when differences exist",
			Destination: &exitCode,
		},
	)

	return &cli.Command{
		Name:  "diff",
		Usage: "Compare source and destination without changing anything",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			settings, err := syncCfg.Load()
			if err != nil {
				return err
			}
			filter, err := model.NewPathFilter(settings.Exclude)
			if err != nil {
				return err
			}

			src, err := connect(ctx, settings.Src, "src")
			if err != nil {
				return err
			}
			dst, err := connect(ctx, settings.Dst, "dst")
			if err != nil {
				return err
			}

			differ := usecase.NewDiffer(src.client, dst.client, settings.Src.Prefix, settings.Dst.Prefix, filter)
			diffs, err := differ.Diff(ctx)
			if err != nil {
				return err
			}

			if n := printDiff(os.Stdout, diffs, showAll); n > 0 && exitCode {
				return cli.Exit("", 1)
			}
			return nil
		},
	}
}

var (
	missingColor = color.New(color.FgGreen)
	changedColor = color.New(color.FgYellow)
	sameColor    = color.New(color.Faint)
)

// printDiff writes one line per secret and returns how many differ
func printDiff(w io.Writer, diffs []*model.SecretDiff, showAll bool) int {
	var changed int
	for _, d := range diffs {
		switch d.Kind {
		case model.DiffMissing:
			changed++
			missingColor.Fprintf(w, "+ %s -> %s\n", d.SrcPath, d.DstPath)
		case model.DiffChanged:
			changed++
			changedColor.Fprintf(w, "~ %s -> %s\n", d.SrcPath, d.DstPath)
		case model.DiffSame:
			if showAll {
				sameColor.Fprintf(w, "= %s -> %s\n", d.SrcPath, d.DstPath)
			}
		}
	}

	fmt.Fprintf(w, "%d of %d secrets differ\n", changed, len(diffs))
	return changed
}
