package collector

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/pyropy/qrxfer/core/ingest"
)

var ErrSessionNotFound = errors.New("session not found")

// StoredChunk is one text received by the collector, as persisted.
type StoredChunk struct {
	Session    string    `json:"session"`
	Name       string    `json:"name"`
	Content    string    `json:"content"`
	ReceivedAt time.Time `json:"receivedAt"`
}

// Store persists received chunk texts grouped by session. Put never
// replaces a stored text: it reports false when the name is already taken.
type Store interface {
	Put(ctx context.Context, chunk StoredChunk) (bool, error)
	Sessions(ctx context.Context) ([]string, error)
	SessionChunks(ctx context.Context, session string) ([]StoredChunk, error)
	Count(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
	Close() error
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// ChunkName is the stored name of a received chunk:
// report.xlsx, 3 -> report.xlsx_chunk_0003.txt
func ChunkName(fileName string, index int) string {
	safe := unsafeChars.ReplaceAllString(fileName, "_")
	if safe == "" {
		safe = "unnamed"
	}

	return fmt.Sprintf("%s_chunk_%04d.txt", safe, index)
}

// VariantName is ChunkName tagged with a content fingerprint, used for texts
// that must not take the plain name:
// report.xlsx, 3, 9f86d081884c -> report.xlsx_chunk_0003_9f86d081884c.txt
func VariantName(fileName string, index int, tag string) string {
	return strings.TrimSuffix(ChunkName(fileName, index), ".txt") + "_" + tag + ".txt"
}

// SessionTexts adapts a Store to ingest.SessionReader.
type SessionTexts struct {
	Store Store
}

func (s SessionTexts) SessionTexts(ctx context.Context, session string) ([]ingest.Text, error) {
	chunks, err := s.Store.SessionChunks(ctx, session)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, session)
	}

	return toTexts(chunks), nil
}

func toTexts(chunks []StoredChunk) []ingest.Text {
	texts := make([]ingest.Text, 0, len(chunks))
	for _, c := range chunks {
		texts = append(texts, ingest.Text{Name: c.Name, Content: c.Content})
	}

	return texts
}

// sortByReceipt orders chunks the way they arrived. Ties keep the plain
// name ahead of its variants.
func sortByReceipt(chunks []StoredChunk) {
	sort.SliceStable(chunks, func(i, j int) bool {
		if !chunks[i].ReceivedAt.Equal(chunks[j].ReceivedAt) {
			return chunks[i].ReceivedAt.Before(chunks[j].ReceivedAt)
		}
		if chunks[i].Session != chunks[j].Session {
			return chunks[i].Session < chunks[j].Session
		}
		return chunks[i].Name < chunks[j].Name
	})
}

func sortChunks(chunks []StoredChunk) {
	sort.Slice(chunks, func(i, j int) bool {
		if chunks[i].Session != chunks[j].Session {
			return chunks[i].Session < chunks[j].Session
		}
		return chunks[i].Name < chunks[j].Name
	})
}
