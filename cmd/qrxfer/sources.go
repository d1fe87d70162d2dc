package main

import (
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/pyropy/qrxfer/core/client"
	"github.com/pyropy/qrxfer/core/ingest"
	"github.com/pyropy/qrxfer/core/reconcile"
	"github.com/pyropy/qrxfer/lib/qr"
)

func sourceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:  "images",
			Usage: "Directory of scanned QR images to decode (repeatable)",
		},
		&cli.StringSliceFlag{
			Name:  "session",
			Usage: "Collector session to read (repeatable)",
		},
		&cli.StringFlag{
			Name:  "filter",
			Usage: "Only keep records of this file name",
		},
	}
}

// loadSources ingests every source named on the command line, in order.
// Unreadable sources are reported and skipped. Without any source the
// zip archives of the working directory are used.
func loadSources(ctx *cli.Context) ([]*ingest.Result, error) {
	paths := ctx.Args().Slice()
	images := ctx.StringSlice("images")
	sessions := ctx.StringSlice("session")

	if len(paths) == 0 && len(images) == 0 && len(sessions) == 0 {
		found, err := filepath.Glob("*.zip")
		if err != nil {
			return nil, err
		}
		if len(found) == 0 {
			return nil, cli.Exit("no sources given and no zip archives in the working directory", 1)
		}
		fmt.Fprintf(ctx.App.Writer, "No sources given, using %d zip archive(s) in the working directory\n\n", len(found))
		paths = found
	}

	var results []*ingest.Result
	for _, path := range paths {
		result, err := ingest.Open(path)
		if err != nil {
			fmt.Fprintf(ctx.App.ErrWriter, "skipping %s: %v\n", path, err)
			continue
		}
		results = append(results, result)
	}

	if len(images) > 0 {
		decoder := qr.NewDecoder()
		for _, dir := range images {
			result, err := ingest.ReadImages(dir, decoder)
			if err != nil {
				fmt.Fprintf(ctx.App.ErrWriter, "skipping %s: %v\n", dir, err)
				continue
			}
			results = append(results, result)
		}
	}

	if len(sessions) > 0 {
		cl, err := client.NewClient(ctx.String("collector"))
		if err != nil {
			return nil, fmt.Errorf("connect collector: %w", err)
		}
		defer cl.Close()

		for _, session := range sessions {
			result, err := ingest.ReadSession(ctx.Context, cl, session)
			if err != nil {
				fmt.Fprintf(ctx.App.ErrWriter, "skipping session %s: %v\n", session, err)
				continue
			}
			results = append(results, result)
		}
	}

	if name := ctx.String("filter"); name != "" {
		for i, r := range results {
			results[i] = r.Filter(name)
		}
	}

	return results, nil
}

func reconcileResults(results []*ingest.Result) (*reconcile.Table, *reconcile.Report) {
	return reconcile.Reconcile(nil, ingest.Streams(results)...)
}

func countEntries(results []*ingest.Result) int {
	n := 0
	for _, r := range results {
		n += len(r.Entries)
	}

	return n
}
