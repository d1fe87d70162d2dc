package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/pyropy/qrxfer/core/codec"
	"github.com/pyropy/qrxfer/core/config"
	"github.com/pyropy/qrxfer/core/splitter"
	"github.com/pyropy/qrxfer/lib/archive"
	"github.com/pyropy/qrxfer/lib/qr"
)

func splitCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:      "split",
		Usage:     "Split a file into chunk records rendered as QR codes",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "chunk-size",
				Value: cfg.Chunks.Size,
				Usage: "Base64 characters per chunk",
			},
			&cli.StringFlag{
				Name:  "out-dir",
				Value: "qr_codes",
				Usage: "Directory the codes are written to",
			},
			&cli.BoolFlag{
				Name:  "text",
				Usage: "Write chunk_NNNN.txt records instead of PNG images",
			},
			&cli.BoolFlag{
				Name:  "zip",
				Usage: "Also bundle every record into " + archive.DefaultName,
			},
			&cli.IntFlag{
				Name:  "size",
				Value: qr.DefaultSize,
				Usage: "Edge length of rendered codes in pixels",
			},
		},
		Action: func(ctx *cli.Context) error {
			if ctx.NArg() != 1 {
				return cli.Exit("split needs exactly one file", 1)
			}

			filePath := ctx.Args().First()
			outDir := ctx.String("out-dir")
			chunkSize := ctx.Int("chunk-size")

			data, err := os.ReadFile(filePath)
			if err != nil {
				return err
			}

			fileName := filepath.Base(filePath)
			records, err := splitter.Split(data, fileName, chunkSize)
			if err != nil {
				return err
			}

			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return err
			}

			w := ctx.App.Writer
			fmt.Fprintf(w, "File: %s\n", fileName)
			fmt.Fprintf(w, "File size: %d bytes\n", len(data))
			fmt.Fprintf(w, "Total chunks: %d\n", len(records))
			fmt.Fprintf(w, "Chunk size: %d characters\n\n", chunkSize)

			var (
				failed  []int
				entries []archive.Entry
			)
			for _, record := range records {
				text, err := codec.Encode(record)
				if err != nil {
					return err
				}
				entries = append(entries, archive.Entry{Name: fmt.Sprintf("chunk_%04d.txt", record.Index), Content: text})

				name := fmt.Sprintf("qr_%04d.png", record.Index)
				if ctx.Bool("text") {
					name = fmt.Sprintf("chunk_%04d.txt", record.Index)
					err = os.WriteFile(filepath.Join(outDir, name), []byte(text), 0o644)
				} else {
					err = qr.WriteFile(filepath.Join(outDir, name), text, ctx.Int("size"))
				}
				if err != nil {
					log.Errorw("split", "chunk", record.Index, "error", err)
					failed = append(failed, record.Index)
					continue
				}

				fmt.Fprintf(w, "  wrote %s (%d/%d)\n", name, record.Index+1, len(records))
			}

			if ctx.Bool("zip") {
				if err := archive.WriteTextEntries(filepath.Join(outDir, archive.DefaultName), entries); err != nil {
					return err
				}
			}

			readme := splitReadme(fileName, len(data), chunkSize, len(records), failed, ctx.Bool("text"))
			if err := os.WriteFile(filepath.Join(outDir, "README.txt"), []byte(readme), 0o644); err != nil {
				return err
			}

			if len(failed) > 0 {
				fmt.Fprintf(w, "\n%d chunks failed: %s\n", len(failed), joinInts(failed))
				return cli.Exit("some chunks could not be rendered", 1)
			}

			fmt.Fprintf(w, "\nAll %d chunks written to %s\n", len(records), outDir)

			return nil
		},
	}
}

func splitReadme(fileName string, size, chunkSize, total int, failed []int, text bool) string {
	kind, first, last := "QR codes", "qr_0000.png", fmt.Sprintf("qr_%04d.png", total-1)
	if text {
		kind, first, last = "chunk records", "chunk_0000.txt", fmt.Sprintf("chunk_%04d.txt", total-1)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "QR Code File Transfer\n")
	fmt.Fprintf(&b, "=====================\n")
	fmt.Fprintf(&b, "File: %s\n", fileName)
	fmt.Fprintf(&b, "Total %s: %d\n", kind, total)
	fmt.Fprintf(&b, "Successfully generated: %d\n", total-len(failed))
	fmt.Fprintf(&b, "Failed: %d\n", len(failed))
	fmt.Fprintf(&b, "Original size: %d bytes\n", size)
	fmt.Fprintf(&b, "Chunk size: %d characters\n\n", chunkSize)

	if len(failed) > 0 {
		fmt.Fprintf(&b, "FAILED CHUNKS: %s\n", joinInts(failed))
		fmt.Fprintf(&b, "Regenerate them before transferring.\n\n")
	}

	fmt.Fprintf(&b, "Instructions:\n")
	fmt.Fprintf(&b, "1. Scan all %s (%s to %s), in any order\n", kind, first, last)
	fmt.Fprintf(&b, "2. Collect the scanned texts in a directory, zip archive or collector session\n")
	fmt.Fprintf(&b, "3. Run: qrxfer reconstruct <sources...>\n\n")
	fmt.Fprintf(&b, "Generated on: %s\n", time.Now().UTC().Format(time.RFC3339))

	return b.String()
}

func joinInts(values []int) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, fmt.Sprint(v))
	}

	return strings.Join(parts, ", ")
}
