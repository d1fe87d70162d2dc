package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pyropy/qrxfer/lib/archive"
)

var (
	ErrUnsupportedSource = errors.New("unsupported source")
	ErrEmptySource       = errors.New("source holds no chunk texts")
)

// ImageDecoder extracts the text carried by a QR code image.
type ImageDecoder interface {
	DecodeFile(path string) (string, error)
}

// SessionReader returns the texts a collector persisted for a session.
type SessionReader interface {
	SessionTexts(ctx context.Context, session string) ([]Text, error)
}

var imageExts = []string{".png", ".jpg", ".jpeg"}

// ReadDir ingests the *.txt files of dir in name order.
func ReadDir(dir string) (*Result, error) {
	texts, err := DirTexts(dir)
	if err != nil {
		return nil, err
	}

	return Ingest(dir, texts), nil
}

// DirTexts loads the *.txt files of dir in name order without parsing them.
// A README.txt written next to the chunks is not a chunk and is left out.
func DirTexts(dir string) ([]Text, error) {
	names, err := listFiles(dir, ".txt")
	if err != nil {
		return nil, err
	}

	texts := make([]Text, 0, len(names))
	for _, name := range names {
		if strings.EqualFold(name, "README.txt") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		texts = append(texts, Text{Name: name, Content: string(data)})
	}

	return texts, nil
}

// ReadArchive ingests the text entries of a zip archive.
func ReadArchive(path string) (*Result, error) {
	texts, err := ArchiveTexts(path)
	if err != nil {
		return nil, err
	}

	return Ingest(path, texts), nil
}

func ArchiveTexts(path string) ([]Text, error) {
	entries, err := archive.ListTextEntries(path)
	if err != nil {
		return nil, err
	}

	texts := make([]Text, 0, len(entries))
	for _, entry := range entries {
		texts = append(texts, Text{Name: entry.Name, Content: entry.Content})
	}

	return texts, nil
}

// ReadImages decodes every image of dir. Images without a readable code
// are recorded as failures of the session.
func ReadImages(dir string, decoder ImageDecoder) (*Result, error) {
	names, err := listFiles(dir, imageExts...)
	if err != nil {
		return nil, err
	}

	var (
		texts    []Text
		failures []Failure
	)
	for _, name := range names {
		content, err := decoder.DecodeFile(filepath.Join(dir, name))
		if err != nil {
			failures = append(failures, Failure{Name: name, Err: err})
			continue
		}
		texts = append(texts, Text{Name: name, Content: content})
	}

	result := Ingest(dir, texts)
	result.Fail(failures...)

	if len(failures) > 0 {
		log.Warnw("ingest", "source", dir, "status", "undecodable images", "count", len(failures))
	}

	return result, nil
}

// ReadSession ingests what a collector stored under session.
func ReadSession(ctx context.Context, reader SessionReader, session string) (*Result, error) {
	texts, err := reader.SessionTexts(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("session %s: %w", session, err)
	}

	return Ingest("session:"+session, texts), nil
}

// Open picks the reader for path: a .zip archive or a directory of text
// files. A bare name falls back to name.zip when only that exists.
func Open(path string) (*Result, error) {
	sourceID, texts, err := OpenTexts(path)
	if err != nil {
		return nil, err
	}

	return Ingest(sourceID, texts), nil
}

// OpenTexts is Open without parsing. It also returns the resolved path,
// which serves as the source ID.
func OpenTexts(path string) (string, []Text, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !strings.HasSuffix(path, ".zip") {
			if _, zerr := os.Stat(path + ".zip"); zerr == nil {
				texts, err := ArchiveTexts(path + ".zip")
				return path + ".zip", texts, err
			}
		}
		return "", nil, err
	}

	if info.IsDir() {
		texts, err := DirTexts(path)
		return path, texts, err
	}

	if strings.EqualFold(filepath.Ext(path), ".zip") {
		texts, err := ArchiveTexts(path)
		return path, texts, err
	}

	return "", nil, fmt.Errorf("%w: %s", ErrUnsupportedSource, path)
}

func listFiles(dir string, exts ...string) ([]string, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range dirEntries {
		if entry.IsDir() {
			continue
		}

		ext := strings.ToLower(filepath.Ext(entry.Name()))
		for _, want := range exts {
			if ext == want {
				names = append(names, entry.Name())
				break
			}
		}
	}

	if len(names) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptySource, dir)
	}

	sort.Strings(names)

	return names, nil
}
