package main

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/pyropy/qrxfer/core/client"
	"github.com/pyropy/qrxfer/core/collector"
	"github.com/pyropy/qrxfer/core/config"
	"github.com/pyropy/qrxfer/core/ingest"
	"github.com/pyropy/qrxfer/core/relay"
	"github.com/pyropy/qrxfer/lib/archive"
)

func pushCmd() *cli.Command {
	return &cli.Command{
		Name:      "push",
		Usage:     "Send local chunk texts to a collector",
		ArgsUsage: "<dir|zip ...>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "session",
				Usage: "Session the texts are stored under (collector default when empty)",
			},
			&cli.IntFlag{
				Name:  "parallel",
				Value: client.DefaultParallelism,
				Usage: "Concurrent rpc calls",
			},
		},
		Action: func(ctx *cli.Context) error {
			if ctx.NArg() == 0 {
				return cli.Exit("push needs at least one source", 1)
			}

			var texts []ingest.Text
			for _, path := range ctx.Args().Slice() {
				_, t, err := ingest.OpenTexts(path)
				if err != nil {
					return err
				}
				texts = append(texts, t...)
			}

			cl, err := client.NewClient(ctx.String("collector"))
			if err != nil {
				return fmt.Errorf("connect collector: %w", err)
			}
			defer cl.Close()

			result, err := cl.PushTexts(ctx.Context, ctx.String("session"), texts, ctx.Int("parallel"))
			if result != nil {
				fmt.Fprintf(ctx.App.Writer, "Sent: %d, duplicates: %d, invalid: %d\n", result.Sent, result.Duplicates, result.Invalid)
			}

			return err
		},
	}
}

func exportCmd() *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Write a collector session to a zip archive",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "session",
				Required: true,
				Usage:    "Session to export",
			},
			&cli.StringFlag{
				Name:  "output",
				Value: archive.DefaultName,
				Usage: "Archive path",
			},
		},
		Action: func(ctx *cli.Context) error {
			cl, err := client.NewClient(ctx.String("collector"))
			if err != nil {
				return fmt.Errorf("connect collector: %w", err)
			}
			defer cl.Close()

			texts, err := cl.SessionTexts(ctx.Context, ctx.String("session"))
			if err != nil {
				return err
			}

			entries := make([]archive.Entry, 0, len(texts))
			for _, t := range texts {
				entries = append(entries, archive.Entry{Name: t.Name, Content: t.Content})
			}

			output := ctx.String("output")
			if err := archive.WriteTextEntries(output, entries); err != nil {
				return err
			}

			fmt.Fprintf(ctx.App.Writer, "Exported %d chunk texts to %s\n", len(entries), output)

			return nil
		},
	}
}

func statsCmd() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "Show what a collector has received",
		Action: func(ctx *cli.Context) error {
			cl, err := client.NewClient(ctx.String("collector"))
			if err != nil {
				return fmt.Errorf("connect collector: %w", err)
			}
			defer cl.Close()

			stats, err := cl.Stats("")
			if err != nil {
				return err
			}

			w := ctx.App.Writer
			fmt.Fprintf(w, "Chunks: %d\n", stats.ChunksCount)
			fmt.Fprintf(w, "Save dir: %s\n", stats.SaveDir)
			fmt.Fprintf(w, "Default session: %s\n", stats.Session)

			sessions := make([]string, 0, len(stats.Sessions))
			for s := range stats.Sessions {
				sessions = append(sessions, s)
			}
			sort.Strings(sessions)
			for _, s := range sessions {
				fmt.Fprintf(w, "   %s: %d\n", s, stats.Sessions[s])
			}

			for _, f := range stats.Files {
				fmt.Fprintf(w, "File: %s\n", f)
			}

			return nil
		},
	}
}

func listenCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "listen",
		Usage: "Persist chunk texts relayed over NATS into a local store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "nats-url",
				Value: cfg.Relay.URL,
				Usage: "NATS server url",
			},
			&cli.StringFlag{
				Name:  "subject",
				Value: cfg.Relay.Subject,
				Usage: "Subject the collector publishes on",
			},
			&cli.StringFlag{
				Name:  "store",
				Value: filepath.Join(cfg.Store.Path, "relay"),
				Usage: "Local leveldb store path",
			},
		},
		Action: func(ctx *cli.Context) error {
			url := ctx.String("nats-url")
			if url == "" {
				return cli.Exit("listen needs --nats-url or NATS_URL", 1)
			}

			store, err := collector.NewLevelStore(ctx.String("store"))
			if err != nil {
				return err
			}
			defer store.Close()

			c := collector.New(collector.Options{Store: store, SaveDir: ctx.String("store")})
			if err := c.Load(ctx.Context); err != nil {
				return err
			}

			relayClient, err := relay.Connect(url, ctx.String("subject"))
			if err != nil {
				return err
			}
			defer relayClient.Close()

			sigCtx, stop := signal.NotifyContext(ctx.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := relayClient.Subscribe(relay.Forward(sigCtx, c)); err != nil {
				return err
			}

			fmt.Fprintf(ctx.App.Writer, "Listening on %s, storing into %s\n", ctx.String("subject"), ctx.String("store"))
			<-sigCtx.Done()

			stats, err := c.Stats(context.Background())
			if err != nil {
				return err
			}
			fmt.Fprintf(ctx.App.Writer, "Stored %d chunk texts\n", stats.ChunksCount)

			return nil
		},
	}
}
