package reconstruct

import (
	"bytes"
	"encoding/base64"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pyropy/qrxfer/core/codec"
	"github.com/pyropy/qrxfer/core/ingest"
	"github.com/pyropy/qrxfer/core/model"
	"github.com/pyropy/qrxfer/core/reconcile"
	"github.com/pyropy/qrxfer/core/splitter"
)

// pipeline runs split -> encode -> ingest -> reconcile, dropping the indices in skip.
func pipeline(t *testing.T, payload []byte, fileName string, chunkSize int, skip ...int) *reconcile.Table {
	t.Helper()

	records, err := splitter.Split(payload, fileName, chunkSize)
	require.NoError(t, err)

	skipped := map[int]bool{}
	for _, i := range skip {
		skipped[i] = true
	}

	texts := make([]ingest.Text, 0, len(records))
	for _, record := range records {
		if skipped[record.Index] {
			continue
		}
		text, err := codec.Encode(record)
		require.NoError(t, err)
		texts = append(texts, ingest.Text{Name: record.FileName, Content: text + "\n"})
	}

	// reverse so ingest order differs from index order
	for i, j := 0, len(texts)-1; i < j; i, j = i+1, j-1 {
		texts[i], texts[j] = texts[j], texts[i]
	}

	result := ingest.Ingest("session", texts)
	require.Zero(t, result.Skipped)

	table, _ := reconcile.Reconcile(nil, result.Stream())
	return table
}

func TestReconstruct_HelloWorld(t *testing.T) {
	table := pipeline(t, []byte("hello world"), "hello.txt", 6)

	result, err := Reconstruct(table, "hello.txt", Strict)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(result.Data))
	assert.False(t, result.WasPartial)
	assert.Empty(t, result.Missing)
	assert.Equal(t, 3, result.TotalCount)
}

func TestReconstruct_RoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for _, size := range []int{0, 1, 2, 3, 4, 5, 100, 1023, 4096} {
		payload := make([]byte, size)
		rng.Read(payload)

		for _, chunkSize := range []int{1, 3, 4, 6, 64, 800, 10000} {
			table := pipeline(t, payload, "blob.bin", chunkSize)

			result, err := Reconstruct(table, "blob.bin", Strict)
			require.NoError(t, err, "size %d chunk %d", size, chunkSize)
			assert.True(t, bytes.Equal(payload, result.Data), "size %d chunk %d", size, chunkSize)
		}
	}
}

func TestReconstruct_StrictIncomplete(t *testing.T) {
	payload := bytes.Repeat([]byte("0123456789"), 40)
	table := pipeline(t, payload, "data.csv", 16, 0, 3, 4)

	_, err := Reconstruct(table, "data.csv", Strict)
	require.ErrorIs(t, err, ErrIncompleteChunkSet)

	var incomplete *IncompleteError
	require.ErrorAs(t, err, &incomplete)
	assert.Equal(t, []model.Gap{{Start: 0, End: 0, Size: 1}, {Start: 3, End: 4, Size: 2}}, incomplete.Gaps)
	assert.Equal(t, []int{0, 3, 4}, incomplete.Missing())
	assert.Contains(t, err.Error(), "data.csv")
}

func TestReconstruct_PartialMatchesConcatenationWithoutMissing(t *testing.T) {
	payload := bytes.Repeat([]byte("partial reconstruction keeps offsets "), 20)
	chunkSize := 16
	missing := []int{2, 5}

	table := pipeline(t, payload, "doc.txt", chunkSize, missing...)

	result, err := Reconstruct(table, "doc.txt", Partial)
	require.NoError(t, err)
	assert.True(t, result.WasPartial)
	assert.Equal(t, missing, result.Missing)

	records, err := splitter.Split(payload, "doc.txt", chunkSize)
	require.NoError(t, err)

	var b strings.Builder
	for _, record := range records {
		if record.Index == 2 || record.Index == 5 {
			continue
		}
		b.WriteString(record.Payload)
	}
	want, err := base64.StdEncoding.DecodeString(b.String())
	require.NoError(t, err)

	assert.Equal(t, want, result.Data)
	assert.Equal(t, len(payload)-2*chunkSize/4*3, len(result.Data))
}

func TestReconstruct_PartialUnalignedChunks(t *testing.T) {
	// 6-char chunks do not end on a base64 quantum; losing one leaves padding
	// mid-stream or a dangling tail, which partial mode still decodes.
	table := pipeline(t, []byte("hello world"), "hello.txt", 6, 1)

	result, err := Reconstruct(table, "hello.txt", Partial)
	require.NoError(t, err)
	assert.True(t, result.WasPartial)
	assert.Equal(t, []int{1}, result.Missing)
	assert.NotEmpty(t, result.Data)
}

func TestReconstruct_PartialOnCompleteSetIsStrict(t *testing.T) {
	table := pipeline(t, []byte("complete"), "c.txt", 4)

	result, err := Reconstruct(table, "c.txt", Partial)
	require.NoError(t, err)
	assert.False(t, result.WasPartial)
	assert.Equal(t, "complete", string(result.Data))
}

func TestReconstruct_CorruptPayload(t *testing.T) {
	table, _ := reconcile.Reconcile(nil, reconcile.Stream{
		SourceID: "s",
		Records: []model.ChunkRecord{
			{FileName: "x", Index: 0, TotalCount: 2, Payload: "aGVs"},
			{FileName: "x", Index: 1, TotalCount: 2, Payload: "b*8="},
		},
	})

	_, err := Reconstruct(table, "x", Strict)
	assert.ErrorIs(t, err, ErrCorruptPayload)
	assert.NotErrorIs(t, err, ErrIncompleteChunkSet)
}

func TestReconstruct_FileNotFound(t *testing.T) {
	_, err := Reconstruct(reconcile.NewTable(), "ghost.bin", Strict)
	assert.ErrorIs(t, err, ErrFileNotFound)
}

func TestOutputName(t *testing.T) {
	assert.Equal(t, "report.xlsx", OutputName("report.xlsx", false))
	assert.Equal(t, "report_PARTIAL.xlsx", OutputName("report.xlsx", true))
	assert.Equal(t, "archive.tar_PARTIAL.gz", OutputName("archive.tar.gz", true))
	assert.Equal(t, "README_PARTIAL", OutputName("README", true))
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "strict", Strict.String())
	assert.Equal(t, "partial", Partial.String())
}
