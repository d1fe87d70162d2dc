package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/pyropy/qrxfer/core/config"
	"github.com/pyropy/qrxfer/lib/logger"
)

var log, _ = logger.New("qrxfer")

func main() {
	cfg, err := config.GetConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	app := newApp(cfg, os.Stdout, os.Stderr)
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)

		var exitErr cli.ExitCoder
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.ExitCode())
		}
		os.Exit(1)
	}
}

func newApp(cfg *config.Config, stdout, stderr io.Writer) *cli.App {
	return &cli.App{
		Name:      "qrxfer",
		Usage:     "move files through QR codes and rebuild them from scanned chunks",
		Writer:    stdout,
		ErrWriter: stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "collector",
				Value:   cfg.Collector.Addr,
				EnvVars: []string{"COLLECTOR_ADDR"},
				Usage:   "Address of the collector rpc endpoint",
			},
		},
		Commands: []*cli.Command{
			splitCmd(cfg),
			diagnoseCmd(),
			reconstructCmd(cfg),
			pushCmd(),
			listenCmd(cfg),
			exportCmd(),
			statsCmd(),
		},
		// main decides the exit code; commands never call os.Exit.
		ExitErrHandler: func(*cli.Context, error) {},
	}
}
