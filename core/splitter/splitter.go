package splitter

import (
	"encoding/base64"
	"errors"

	"github.com/pyropy/qrxfer/core/model"
)

// DefaultChunkSize keeps each record small enough for a reliably scannable
// code. It is a multiple of four so every chunk ends on a base64 quantum.
const DefaultChunkSize = 800

var (
	ErrInvalidChunkSize = errors.New("chunk size must be positive")
)

// Split encodes payload as base64 and partitions the text into records of at
// most chunkSize characters. An empty payload yields a single empty record.
func Split(payload []byte, fileName string, chunkSize int) ([]model.ChunkRecord, error) {
	if chunkSize <= 0 {
		return nil, ErrInvalidChunkSize
	}

	encoded := base64.StdEncoding.EncodeToString(payload)
	totalCount := NumChunks(len(encoded), chunkSize)
	records := make([]model.ChunkRecord, 0, totalCount)

	for i := 0; i < totalCount; i++ {
		start := i * chunkSize
		end := min(start+chunkSize, len(encoded))

		records = append(records, model.ChunkRecord{
			FileName:   fileName,
			Index:      i,
			TotalCount: totalCount,
			Payload:    encoded[start:end],
		})
	}

	return records, nil
}

// NumChunks returns ceil(encodedLen/chunkSize), never less than one.
func NumChunks(encodedLen, chunkSize int) int {
	n := (encodedLen + (chunkSize - 1)) / chunkSize
	if n == 0 {
		return 1
	}

	return n
}
