package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/klauspost/compress/zip"
)

// DefaultName is the archive the collection tools hand around.
const DefaultName = "qr_text_data.zip"

var ErrNotArchive = errors.New("not a zip archive")

// Entry is one text file stored in an archive.
type Entry struct {
	Name    string
	Content string
}

// ListTextEntries returns every *.txt entry of the archive at filePath,
// sorted by name. Directories and other files are ignored.
func ListTextEntries(filePath string) ([]Entry, error) {
	r, err := zip.OpenReader(filePath)
	if err != nil {
		if errors.Is(err, zip.ErrFormat) {
			return nil, fmt.Errorf("%w: %s", ErrNotArchive, filePath)
		}
		return nil, err
	}
	defer r.Close()

	return readEntries(&r.Reader)
}

// ReadTextEntries is ListTextEntries over an in-memory archive.
func ReadTextEntries(data []byte) ([]Entry, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		if errors.Is(err, zip.ErrFormat) {
			return nil, ErrNotArchive
		}
		return nil, err
	}

	return readEntries(r)
}

func readEntries(r *zip.Reader) ([]Entry, error) {
	entries := make([]Entry, 0, len(r.File))
	for _, f := range r.File {
		if f.FileInfo().IsDir() || !strings.HasSuffix(strings.ToLower(f.Name), ".txt") {
			continue
		}

		content, err := readFile(f)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", f.Name, err)
		}

		entries = append(entries, Entry{Name: path.Base(f.Name), Content: content})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})

	return entries, nil
}

func readFile(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}

	return string(data), nil
}

// WriteTextEntries writes entries into a new archive at filePath,
// replacing any existing file.
func WriteTextEntries(filePath string, entries []Entry) error {
	f, err := os.Create(filePath)
	if err != nil {
		return err
	}

	if err := Write(f, entries); err != nil {
		f.Close()
		return err
	}

	return f.Close()
}

// Write streams entries as a zip archive to w.
func Write(w io.Writer, entries []Entry) error {
	zw := zip.NewWriter(w)
	for _, entry := range entries {
		fw, err := zw.Create(entry.Name)
		if err != nil {
			return fmt.Errorf("create %s: %w", entry.Name, err)
		}
		if _, err := io.WriteString(fw, entry.Content); err != nil {
			return fmt.Errorf("write %s: %w", entry.Name, err)
		}
	}

	return zw.Close()
}
