package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/pyropy/qrxfer/core/config"
	"github.com/pyropy/qrxfer/lib/archive"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := &config.Config{}
	cfg.Chunks.Size = 800
	cfg.Output.Dir = filepath.Join(t.TempDir(), "out")
	cfg.Store.Path = t.TempDir()
	cfg.Collector.Addr = "127.0.0.1:1"
	cfg.Relay.Subject = "qrxfer.chunks"

	return cfg
}

func run(t *testing.T, cfg *config.Config, args ...string) (string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	app := newApp(cfg, &stdout, &stderr)
	err := app.Run(append([]string{"qrxfer"}, args...))

	return stdout.String() + stderr.String(), err
}

func exitCode(err error) int {
	var exitErr cli.ExitCoder
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func writeInput(t *testing.T, name string, data []byte) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	return path
}

func sample(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i * 7)
	}
	return data
}

func TestSplitTextThenReconstruct(t *testing.T) {
	cfg := testConfig(t)
	data := sample(2000)
	input := writeInput(t, "report.xlsx", data)
	codes := filepath.Join(t.TempDir(), "codes")

	out, err := run(t, cfg, "split", "--text", "--chunk-size", "400", "--out-dir", codes, input)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Total chunks: 7")
	assert.FileExists(t, filepath.Join(codes, "chunk_0000.txt"))
	assert.FileExists(t, filepath.Join(codes, "README.txt"))

	out, err = run(t, cfg, "reconstruct", codes)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Chunks: 7/7")

	rebuilt, err := os.ReadFile(filepath.Join(cfg.Output.Dir, "report.xlsx"))
	require.NoError(t, err)
	assert.Equal(t, data, rebuilt)
}

func TestReconstructAcrossOverlappingArchives(t *testing.T) {
	cfg := testConfig(t)
	data := sample(1500)
	input := writeInput(t, "data.bin", data)
	codes := filepath.Join(t.TempDir(), "codes")

	_, err := run(t, cfg, "split", "--text", "--zip", "--chunk-size", "100", "--out-dir", codes, input)
	require.NoError(t, err)

	entries, err := archive.ListTextEntries(filepath.Join(codes, archive.DefaultName))
	require.NoError(t, err)
	require.Len(t, entries, 20)

	dir := t.TempDir()
	first := filepath.Join(dir, "first.zip")
	second := filepath.Join(dir, "second.zip")
	require.NoError(t, archive.WriteTextEntries(first, entries[:12]))
	require.NoError(t, archive.WriteTextEntries(second, entries[8:]))

	out, err := run(t, cfg, "reconstruct", first, second)
	require.NoError(t, err, out)

	rebuilt, err := os.ReadFile(filepath.Join(cfg.Output.Dir, "data.bin"))
	require.NoError(t, err)
	assert.Equal(t, data, rebuilt)
}

func removeChunks(t *testing.T, dir string, indices ...int) {
	t.Helper()

	for _, i := range indices {
		require.NoError(t, os.Remove(filepath.Join(dir, fmt.Sprintf("chunk_%04d.txt", i))))
	}
}

func TestReconstructStrictIncomplete(t *testing.T) {
	cfg := testConfig(t)
	input := writeInput(t, "doc.txt", sample(1200))
	codes := filepath.Join(t.TempDir(), "codes")

	_, err := run(t, cfg, "split", "--text", "--chunk-size", "100", "--out-dir", codes, input)
	require.NoError(t, err)
	removeChunks(t, codes, 0, 5, 6)

	out, err := run(t, cfg, "reconstruct", codes)
	require.Error(t, err)
	assert.Equal(t, 1, exitCode(err))
	assert.Contains(t, out, "Missing chunks (3): 0, 5, 6")
	assert.NoFileExists(t, filepath.Join(cfg.Output.Dir, "doc.txt"))

	out, err = run(t, cfg, "reconstruct", "--partial", codes)
	require.NoError(t, err, out)
	assert.FileExists(t, filepath.Join(cfg.Output.Dir, "doc_PARTIAL.txt"))
	assert.Contains(t, out, "incomplete")
}

func TestReconstructMultipleFilesNeedsFilter(t *testing.T) {
	cfg := testConfig(t)
	dir := t.TempDir()

	_, err := run(t, cfg, "split", "--text", "--chunk-size", "100", "--out-dir", filepath.Join(dir, "a"), writeInput(t, "a.bin", sample(300)))
	require.NoError(t, err)
	_, err = run(t, cfg, "split", "--text", "--chunk-size", "100", "--out-dir", filepath.Join(dir, "b"), writeInput(t, "b.bin", sample(600)))
	require.NoError(t, err)

	_, err = run(t, cfg, "reconstruct", filepath.Join(dir, "a"), filepath.Join(dir, "b"))
	require.Error(t, err)
	assert.Equal(t, 1, exitCode(err))
	assert.Contains(t, err.Error(), "--filter")

	out, err := run(t, cfg, "reconstruct", "--filter", "b.bin", filepath.Join(dir, "a"), filepath.Join(dir, "b"))
	require.NoError(t, err, out)

	rebuilt, err := os.ReadFile(filepath.Join(cfg.Output.Dir, "b.bin"))
	require.NoError(t, err)
	assert.Equal(t, sample(600), rebuilt)
}

func TestReconstructNoValidRecords(t *testing.T) {
	cfg := testConfig(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chunk_0000.txt"), []byte("garbage"), 0o644))

	_, err := run(t, cfg, "reconstruct", dir)
	require.Error(t, err)
	assert.Equal(t, 1, exitCode(err))
}

func TestDiagnoseText(t *testing.T) {
	cfg := testConfig(t)
	input := writeInput(t, "big.bin", sample(3000))
	codes := filepath.Join(t.TempDir(), "codes")

	_, err := run(t, cfg, "split", "--text", "--chunk-size", "100", "--out-dir", codes, input)
	require.NoError(t, err)
	removeChunks(t, codes, 0, 1, 4, 39)

	out, err := run(t, cfg, "diagnose", codes)
	require.NoError(t, err, out)
	assert.Contains(t, out, "DIAGNOSTIC SUMMARY")
	assert.Contains(t, out, "Expected chunks: 40")
	assert.Contains(t, out, "Chunks found: 36")
	assert.Contains(t, out, "Chunks 0 to 1 (2 chunks)")
	assert.Contains(t, out, "Chunk 4")
	assert.Contains(t, out, "Missing chunks from beginning: 0 to 1")
	assert.Contains(t, out, "Missing chunks at end: 39 to 39")
	assert.Contains(t, out, "Missing: 4 chunks")
}

func TestDiagnoseStructured(t *testing.T) {
	cfg := testConfig(t)
	codes := filepath.Join(t.TempDir(), "codes")

	_, err := run(t, cfg, "split", "--text", "--chunk-size", "100", "--out-dir", codes, writeInput(t, "x.bin", sample(400)))
	require.NoError(t, err)
	removeChunks(t, codes, 2)

	out, err := run(t, cfg, "diagnose", "--format", "json", codes)
	require.NoError(t, err)

	var d Diagnosis
	require.NoError(t, json.Unmarshal([]byte(out), &d))
	require.Len(t, d.Sources, 1)
	assert.Equal(t, []string{"x.bin"}, d.Sources[0].Files)
	require.Len(t, d.Report.Files, 1)
	assert.Equal(t, 1, d.Report.Files[0].Missing)

	out, err = run(t, cfg, "diagnose", "--format", "yaml", codes)
	require.NoError(t, err)

	var y map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(out), &y))
	assert.Contains(t, y, "report")
	assert.True(t, strings.Contains(out, "fileName: x.bin"))

	_, err = run(t, cfg, "diagnose", "--format", "xml", codes)
	assert.Equal(t, 1, exitCode(err))
}

func TestDiagnoseMixedFiles(t *testing.T) {
	cfg := testConfig(t)
	dir := t.TempDir()

	_, err := run(t, cfg, "split", "--text", "--chunk-size", "100", "--out-dir", filepath.Join(dir, "a"), writeInput(t, "a.bin", sample(300)))
	require.NoError(t, err)
	_, err = run(t, cfg, "split", "--text", "--chunk-size", "100", "--out-dir", filepath.Join(dir, "b"), writeInput(t, "b.bin", sample(300)))
	require.NoError(t, err)

	out, err := run(t, cfg, "diagnose", filepath.Join(dir, "a"), filepath.Join(dir, "b"))
	require.NoError(t, err)
	assert.Contains(t, out, "Multiple files detected")
	assert.Contains(t, out, "CONFLICT at chunk 0")
	assert.Contains(t, out, "--filter")
}

func TestDiagnoseNoSources(t *testing.T) {
	cfg := testConfig(t)
	t.Chdir(t.TempDir())

	_, err := run(t, cfg, "diagnose")
	assert.Equal(t, 1, exitCode(err))
}

func TestSplitPNGThenReconstructImages(t *testing.T) {
	cfg := testConfig(t)
	data := sample(500)
	input := writeInput(t, "pic.bin", data)
	codes := filepath.Join(t.TempDir(), "codes")

	out, err := run(t, cfg, "split", "--chunk-size", "400", "--out-dir", codes, input)
	require.NoError(t, err, out)
	assert.FileExists(t, filepath.Join(codes, "qr_0000.png"))
	assert.FileExists(t, filepath.Join(codes, "qr_0001.png"))

	out, err = run(t, cfg, "reconstruct", "--images", codes)
	require.NoError(t, err, out)

	rebuilt, err := os.ReadFile(filepath.Join(cfg.Output.Dir, "pic.bin"))
	require.NoError(t, err)
	assert.Equal(t, data, rebuilt)
}

func TestSplitEmptyFile(t *testing.T) {
	cfg := testConfig(t)
	codes := filepath.Join(t.TempDir(), "codes")

	_, err := run(t, cfg, "split", "--text", "--out-dir", codes, writeInput(t, "empty.txt", nil))
	require.NoError(t, err)

	out, err := run(t, cfg, "reconstruct", codes)
	require.NoError(t, err, out)

	rebuilt, err := os.ReadFile(filepath.Join(cfg.Output.Dir, "empty.txt"))
	require.NoError(t, err)
	assert.Empty(t, rebuilt)
}
