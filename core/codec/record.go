package codec

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/pyropy/qrxfer/core/model"
)

// Delimiter separates the four fields of a wire record. It never occurs in
// standard base64 output and is rejected in file names.
const Delimiter = "|~|"

const numFields = 4

var (
	ErrMalformedRecord  = errors.New("malformed record")
	ErrDelimiterInField = errors.New("field contains reserved delimiter")
)

// EncodeRecord renders a single line wire record:
// fileName|~|index|~|totalCount|~|payload
func EncodeRecord(fileName string, index, totalCount int, payload string) (string, error) {
	for _, field := range []string{fileName, payload} {
		if strings.Contains(field, Delimiter) || strings.ContainsAny(field, "\r\n") {
			return "", fmt.Errorf("%w: %q", ErrDelimiterInField, field)
		}
	}

	var b strings.Builder
	b.Grow(len(fileName) + len(payload) + 2*len(Delimiter) + 24)
	b.WriteString(fileName)
	b.WriteString(Delimiter)
	b.WriteString(strconv.Itoa(index))
	b.WriteString(Delimiter)
	b.WriteString(strconv.Itoa(totalCount))
	b.WriteString(Delimiter)
	b.WriteString(payload)

	return b.String(), nil
}

func Encode(record model.ChunkRecord) (string, error) {
	return EncodeRecord(record.FileName, record.Index, record.TotalCount, record.Payload)
}

// DecodeRecord parses a wire record. Surrounding whitespace is ignored so
// trailing newlines from text files or scanners do not matter.
func DecodeRecord(text string) (model.ChunkRecord, error) {
	parts := strings.Split(strings.TrimSpace(text), Delimiter)
	if len(parts) != numFields {
		return model.ChunkRecord{}, fmt.Errorf("%w: expected %d fields, got %d", ErrMalformedRecord, numFields, len(parts))
	}

	fileName := parts[0]
	if fileName == "" {
		return model.ChunkRecord{}, fmt.Errorf("%w: empty file name", ErrMalformedRecord)
	}

	index, err := strconv.Atoi(parts[1])
	if err != nil || index < 0 {
		return model.ChunkRecord{}, fmt.Errorf("%w: invalid index %q", ErrMalformedRecord, parts[1])
	}

	totalCount, err := strconv.Atoi(parts[2])
	if err != nil || totalCount <= 0 {
		return model.ChunkRecord{}, fmt.Errorf("%w: invalid total count %q", ErrMalformedRecord, parts[2])
	}

	if index >= totalCount {
		return model.ChunkRecord{}, fmt.Errorf("%w: index %d outside total count %d", ErrMalformedRecord, index, totalCount)
	}

	return model.ChunkRecord{
		FileName:   fileName,
		Index:      index,
		TotalCount: totalCount,
		Payload:    parts[3],
	}, nil
}
