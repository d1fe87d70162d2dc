package collector

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pyropy/qrxfer/core/codec"
	"github.com/pyropy/qrxfer/core/model"
	"github.com/pyropy/qrxfer/core/reconcile"
	"github.com/pyropy/qrxfer/lib/cache"
	"github.com/pyropy/qrxfer/lib/checksum"
	"github.com/pyropy/qrxfer/lib/concurrent_map"
	"github.com/pyropy/qrxfer/lib/logger"
)

var log, _ = logger.New("collector")

const DefaultDedupCache = 4096

var ErrEmptyContent = errors.New("empty chunk content")

// Publisher forwards every stored chunk, e.g. to a message bus.
type Publisher interface {
	Publish(ctx context.Context, chunk StoredChunk) error
}

type Options struct {
	Store      Store
	Publisher  Publisher
	DedupCache int
	// SaveDir is reported by Stats so scanners can show where chunks land.
	SaveDir string
}

// SaveRequest is a scanned chunk text as posted by a scanner.
type SaveRequest struct {
	Session    string
	FileName   string
	ChunkIndex int
	Content    string
}

type SaveResult struct {
	Session   string
	Name      string
	Valid     bool
	Duplicate bool
	Record    model.ChunkRecord
}

type Stats struct {
	ChunksCount int            `json:"chunksCount"`
	SaveDir     string         `json:"saveDir"`
	Session     string         `json:"session"`
	Sessions    map[string]int `json:"sessions"`
	Files       []string       `json:"files"`
}

// Collector receives chunk texts from scanners, persists them and keeps a
// running reconciliation of everything received. Saves are serialised by a
// single writer; the table is replaced, never mutated, so readers only hold
// the read lock long enough to grab the current pointer.
type Collector struct {
	mu    sync.RWMutex
	table *reconcile.Table

	store     Store
	publisher Publisher
	recent    *cache.LRU[checksum.Fingerprint, struct{}]
	counts    *concurrent_map.Map[string, int]
	session   string
	saveDir   string
}

func New(opts Options) *Collector {
	size := opts.DedupCache
	if size <= 0 {
		size = DefaultDedupCache
	}

	return &Collector{
		table:     reconcile.NewTable(),
		store:     opts.Store,
		publisher: opts.Publisher,
		recent:    cache.NewLRU[checksum.Fingerprint, struct{}](size),
		counts:    concurrent_map.NewMap[string, int](),
		session:   uuid.NewString(),
		saveDir:   opts.SaveDir,
	}
}

// Session is the session assigned to requests that do not name one.
func (c *Collector) Session() string {
	return c.session
}

// Load replays everything already persisted into the in-memory table, in
// the order it was received, so first-seen records win again.
func (c *Collector) Load(ctx context.Context) error {
	sessions, err := c.store.Sessions(ctx)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}

	var all []StoredChunk
	for _, session := range sessions {
		chunks, err := c.store.SessionChunks(ctx, session)
		if err != nil {
			return fmt.Errorf("load session %s: %w", session, err)
		}
		all = append(all, chunks...)
		c.counts.Set(session, len(chunks))
	}

	sortByReceipt(all)

	streams := make([]reconcile.Stream, 0, len(all))
	for _, chunk := range all {
		c.recent.Put(fingerprint(chunk.Session, chunk.Content), struct{}{})

		record, err := codec.DecodeRecord(chunk.Content)
		if err != nil {
			continue
		}
		streams = append(streams, reconcile.Stream{
			SourceID: sourceID(chunk.Session),
			Records:  []model.ChunkRecord{record},
		})
	}

	c.mu.Lock()
	c.table, _ = reconcile.Reconcile(c.table, streams...)
	c.mu.Unlock()

	log.Infow("load", "sessions", len(sessions), "chunks", len(all), "files", len(c.Snapshot().Files()))

	return nil
}

// SaveChunk persists a scanned text. Texts that do not parse as chunk
// records are still stored but stay out of the reconciliation table.
// A text already received in the same session is acknowledged without
// being written again. A stored text is never replaced: a record that
// disagrees with the one already held for its (file, index) is kept under
// a fingerprint tagged name, so a replay sees both in arrival order.
func (c *Collector) SaveChunk(ctx context.Context, req SaveRequest) (*SaveResult, error) {
	if req.Content == "" {
		return nil, ErrEmptyContent
	}

	session := req.Session
	if session == "" {
		session = c.session
	}
	session = unsafeChars.ReplaceAllString(session, "_")

	result := &SaveResult{Session: session}
	tag := checksum.SumString(req.Content).Short()

	record, err := codec.DecodeRecord(req.Content)
	if err == nil {
		result.Valid = true
		result.Record = record
	} else {
		result.Name = VariantName(req.FileName, req.ChunkIndex, tag)
		log.Warnw("save", "session", session, "name", result.Name, "error", err)
	}

	chunk, err := c.persist(ctx, session, req.Content, tag, result)
	if err != nil {
		return nil, err
	}
	if chunk == nil {
		return result, nil
	}

	log.Infow("save", "session", session, "name", result.Name, "valid", result.Valid)

	if c.publisher != nil {
		if err := c.publisher.Publish(ctx, *chunk); err != nil {
			log.Errorw("publish", "session", session, "name", result.Name, "error", err)
		}
	}

	return result, nil
}

// persist is the single writer: dedup, store and reconcile happen under
// c.mu so a text is only remembered as seen once it is stored. It returns
// nil when the text was a duplicate.
func (c *Collector) persist(ctx context.Context, session, content, tag string, result *SaveResult) (*StoredChunk, error) {
	key := fingerprint(session, content)

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, seen := c.recent.Get(key); seen || (result.Valid && c.holds(session, result.Record)) {
		if result.Valid {
			result.Name = ChunkName(result.Record.FileName, result.Record.Index)
		}
		result.Duplicate = true
		log.Debugw("save", "session", session, "name", result.Name, "status", "duplicate")
		return nil, nil
	}

	names := []string{result.Name}
	if result.Valid {
		names = c.candidateNames(result.Record, tag)
	}

	chunk := StoredChunk{
		Session:    session,
		Content:    content,
		ReceivedAt: time.Now().UTC(),
	}

	stored := false
	for _, name := range names {
		chunk.Name = name

		var err error
		stored, err = c.store.Put(ctx, chunk)
		if err != nil {
			return nil, fmt.Errorf("store chunk: %w", err)
		}
		if stored {
			break
		}
	}

	result.Name = chunk.Name
	c.recent.Put(key, struct{}{})

	if !stored {
		result.Duplicate = true
		log.Debugw("save", "session", session, "name", result.Name, "status", "already stored")
		return nil, nil
	}

	if result.Valid {
		c.table, _ = reconcile.Reconcile(c.table, reconcile.Stream{
			SourceID: sourceID(session),
			Records:  []model.ChunkRecord{result.Record},
		})
	}
	count, _ := c.counts.Get(session)
	c.counts.Set(session, count+1)

	return &chunk, nil
}

// holds reports whether session already delivered an identical record.
// Must be called with c.mu held.
func (c *Collector) holds(session string, record model.ChunkRecord) bool {
	file, exists := c.table.File(record.FileName)
	if !exists {
		return false
	}

	source := sourceID(session)
	if winner, ok := file.Winners[record.Index]; ok && winner.Source == source && winner.Record == record {
		return true
	}
	for _, dup := range file.Duplicates {
		if dup.Source == source && dup.Record == record {
			return true
		}
	}

	return false
}

// candidateNames lists the names a valid record may be stored under, in
// order. The plain name is skipped when the table already holds a different
// record for the same (file, index). Must be called with c.mu held.
func (c *Collector) candidateNames(record model.ChunkRecord, tag string) []string {
	plain := ChunkName(record.FileName, record.Index)
	variant := VariantName(record.FileName, record.Index, tag)

	if file, exists := c.table.File(record.FileName); exists {
		if winner, ok := file.Winners[record.Index]; ok && winner.Record != record {
			return []string{variant}
		}
	}

	return []string{plain, variant}
}

// Snapshot returns the current table. Callers must treat it as read-only.
func (c *Collector) Snapshot() *reconcile.Table {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.table
}

func (c *Collector) Report() *reconcile.Report {
	return reconcile.BuildReport(c.Snapshot())
}

func (c *Collector) Stats(ctx context.Context) (*Stats, error) {
	count, err := c.store.Count(ctx)
	if err != nil {
		return nil, err
	}

	sessions := map[string]int{}
	c.counts.Range(func(session string, n int) bool {
		sessions[session] = n
		return true
	})

	return &Stats{
		ChunksCount: count,
		SaveDir:     c.saveDir,
		Session:     c.session,
		Sessions:    sessions,
		Files:       c.Snapshot().Files(),
	}, nil
}

// Clear drops every stored chunk and resets the table.
func (c *Collector) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Clear(ctx); err != nil {
		return err
	}

	c.table = reconcile.NewTable()
	c.recent.Purge()
	c.counts.Clear()

	log.Infow("clear", "status", "all chunks removed")

	return nil
}

// Export returns the texts of a session for archiving.
func (c *Collector) Export(ctx context.Context, session string) ([]StoredChunk, error) {
	chunks, err := c.store.SessionChunks(ctx, session)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, session)
	}

	return chunks, nil
}

func sourceID(session string) string {
	return "session:" + session
}

func fingerprint(session, content string) checksum.Fingerprint {
	return checksum.SumString(session + "\x00" + content)
}
