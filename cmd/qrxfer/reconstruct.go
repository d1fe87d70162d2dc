package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/pyropy/qrxfer/core/config"
	"github.com/pyropy/qrxfer/core/reconcile"
	"github.com/pyropy/qrxfer/core/reconstruct"
)

func reconstructCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "reconstruct",
		Usage:     "Rebuild a file from chunk records collected across sources",
		ArgsUsage: "[dir|zip ...]",
		Flags: append(sourceFlags(),
			&cli.BoolFlag{
				Name:  "partial",
				Usage: "Write the file even when chunks are missing (output is marked _PARTIAL)",
			},
			&cli.StringFlag{
				Name:  "output-dir",
				Value: cfg.Output.Dir,
				Usage: "Directory the rebuilt file is written to",
			},
		),
		Action: func(ctx *cli.Context) error {
			w := ctx.App.Writer

			results, err := loadSources(ctx)
			if err != nil {
				return err
			}

			for _, r := range results {
				fmt.Fprintf(w, "%s: %d records", sourceLabel(r.SourceID), len(r.Entries))
				if r.Skipped > 0 {
					fmt.Fprintf(w, ", %d skipped", r.Skipped)
				}
				fmt.Fprintln(w)
			}

			if countEntries(results) == 0 {
				return cli.Exit("no valid chunk records found", 1)
			}

			table, report := reconcileResults(results)

			fileName, err := pickFile(table, ctx.String("filter"))
			if err != nil {
				return err
			}

			if len(report.Conflicts) > 0 {
				fmt.Fprintf(w, "%d index conflict(s) across files, first source kept\n", len(report.Conflicts))
			}

			mode := reconstruct.Strict
			if ctx.Bool("partial") {
				mode = reconstruct.Partial
			}

			result, err := reconstruct.Reconstruct(table, fileName, mode)
			var incomplete *reconstruct.IncompleteError
			if errors.As(err, &incomplete) {
				fmt.Fprintf(w, "\nCannot rebuild %s: %d of %d chunks present\n",
					fileName, incomplete.TotalCount-len(incomplete.Missing()), incomplete.TotalCount)
				printMissing(w, incomplete.Missing())
				fmt.Fprintln(w, "Scan the missing chunks or rerun with --partial")
				return cli.Exit(err.Error(), 1)
			}
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}

			outDir := ctx.String("output-dir")
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return err
			}

			outPath := filepath.Join(outDir, reconstruct.OutputName(fileName, result.WasPartial))
			if err := os.WriteFile(outPath, result.Data, 0o644); err != nil {
				return err
			}

			fmt.Fprintf(w, "\nFile: %s\n", fileName)
			fmt.Fprintf(w, "Chunks: %d/%d\n", result.TotalCount-len(result.Missing), result.TotalCount)
			fmt.Fprintf(w, "Size: %d bytes\n", len(result.Data))
			if result.WasPartial {
				printMissing(w, result.Missing)
				fmt.Fprintln(w, "Written with missing chunks, the file is incomplete")
			}
			fmt.Fprintf(w, "Saved: %s\n", outPath)

			return nil
		},
	}
}

// pickFile resolves which file to rebuild. Several files without a filter
// is an operator mistake, not something to guess at.
func pickFile(table *reconcile.Table, filter string) (string, error) {
	if filter != "" {
		if _, ok := table.File(filter); !ok {
			return "", cli.Exit(fmt.Sprintf("no chunks for %s, found: %s", filter, strings.Join(table.Files(), ", ")), 1)
		}
		return filter, nil
	}

	if name, ok := table.SoleFile(); ok {
		return name, nil
	}

	return "", cli.Exit(fmt.Sprintf("multiple files found (%s), choose one with --filter", strings.Join(table.Files(), ", ")), 1)
}
