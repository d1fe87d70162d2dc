package main

import (
	"github.com/urfave/cli/v2"
)

func diagnoseCmd() *cli.Command {
	return &cli.Command{
		Name:      "diagnose",
		Usage:     "Report chunk coverage, gaps and conflicts across sources without rebuilding",
		ArgsUsage: "[dir|zip ...]",
		Flags: append(sourceFlags(), &cli.StringFlag{
			Name:  "format",
			Value: formatText,
			Usage: "Output format: text, json or yaml",
		}),
		Action: func(ctx *cli.Context) error {
			format := ctx.String("format")
			if !validFormat(format) {
				return cli.Exit("unknown format "+format, 1)
			}

			results, err := loadSources(ctx)
			if err != nil {
				return err
			}

			_, report := reconcileResults(results)

			if format == formatText {
				printDiagnosis(ctx.App.Writer, results, report, ctx.String("filter"))
			} else if err := writeStructured(ctx.App.Writer, format, newDiagnosis(results, report)); err != nil {
				return err
			}

			if countEntries(results) == 0 {
				return cli.Exit("no valid chunk records found", 1)
			}

			return nil
		},
	}
}
