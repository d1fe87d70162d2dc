package reconstruct

import (
	"encoding/base64"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pyropy/qrxfer/core/model"
	"github.com/pyropy/qrxfer/core/reconcile"
	"github.com/pyropy/qrxfer/lib/logger"
)

var log, _ = logger.New("reconstruct")

type Mode int

const (
	Strict Mode = iota
	Partial
)

func (m Mode) String() string {
	if m == Partial {
		return "partial"
	}

	return "strict"
}

// PartialSuffix marks output rebuilt from an incomplete chunk set.
const PartialSuffix = "_PARTIAL"

var (
	ErrFileNotFound       = errors.New("file not found in chunk table")
	ErrIncompleteChunkSet = errors.New("incomplete chunk set")
	ErrCorruptPayload     = errors.New("corrupt payload")
)

// IncompleteError carries the missing ranges of a strict reconstruction.
type IncompleteError struct {
	FileName   string
	TotalCount int
	Gaps       []model.Gap
}

func (e *IncompleteError) Error() string {
	return fmt.Sprintf("%s: %s: missing %d of %d chunks in %d range(s)",
		ErrIncompleteChunkSet, e.FileName, len(e.Missing()), e.TotalCount, len(e.Gaps))
}

func (e *IncompleteError) Is(target error) bool {
	return target == ErrIncompleteChunkSet
}

func (e *IncompleteError) Missing() []int {
	return reconcile.MissingIndices(e.Gaps)
}

type Result struct {
	FileName   string
	TotalCount int
	Data       []byte
	WasPartial bool
	Missing    []int
	Gaps       []model.Gap
}

// Reconstruct concatenates the winning payloads of fileName in index order
// and decodes them. Strict mode refuses to run with gaps; partial mode puts
// an empty fragment in place of every missing chunk and flags the result.
func Reconstruct(table *reconcile.Table, fileName string, mode Mode) (*Result, error) {
	file, exists := table.File(fileName)
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, fileName)
	}

	gaps := file.Gaps()
	if mode == Strict && len(gaps) > 0 {
		return nil, &IncompleteError{
			FileName:   fileName,
			TotalCount: file.TotalCount,
			Gaps:       gaps,
		}
	}

	var b strings.Builder
	for i := 0; i < file.TotalCount; i++ {
		entry, present := file.Winners[i]
		if !present {
			continue // empty fragment, offsets of later chunks are preserved
		}
		b.WriteString(entry.Record.Payload)
	}

	result := &Result{
		FileName:   fileName,
		TotalCount: file.TotalCount,
		WasPartial: len(gaps) > 0,
		Missing:    reconcile.MissingIndices(gaps),
		Gaps:       gaps,
	}

	var err error
	if result.WasPartial {
		result.Data, err = decodeLenient(b.String())
	} else {
		result.Data, err = base64.StdEncoding.DecodeString(b.String())
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptPayload, fileName, err)
	}

	log.Infow("reconstruct", "file", fileName, "mode", mode.String(), "bytes", len(result.Data), "missing", len(result.Missing))

	return result, nil
}

// decodeLenient decodes a concatenation that may have lost whole fragments:
// padding may now sit mid-stream and the tail may stop inside a quantum.
// Padding is dropped and a dangling single character, which cannot carry a
// full byte, is discarded. Characters outside the alphabet are still errors.
func decodeLenient(s string) ([]byte, error) {
	s = strings.ReplaceAll(s, "=", "")
	if len(s)%4 == 1 {
		s = s[:len(s)-1]
	}

	return base64.RawStdEncoding.DecodeString(s)
}

// OutputName inserts the partial marker before the extension:
// report.xlsx -> report_PARTIAL.xlsx.
func OutputName(fileName string, partial bool) string {
	if !partial {
		return fileName
	}

	ext := filepath.Ext(fileName)
	if ext == "" || ext == fileName {
		return fileName + PartialSuffix
	}

	return strings.TrimSuffix(fileName, ext) + PartialSuffix + ext
}
