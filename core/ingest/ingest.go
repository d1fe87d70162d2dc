package ingest

import (
	"sort"

	"github.com/pyropy/qrxfer/core/codec"
	"github.com/pyropy/qrxfer/core/model"
	"github.com/pyropy/qrxfer/core/reconcile"
	"github.com/pyropy/qrxfer/lib/logger"
	"github.com/pyropy/qrxfer/lib/utils"
)

var log, _ = logger.New("ingest")

// Text is one raw scanned string plus the name of the file or entry it came from.
type Text struct {
	Name    string
	Content string
}

type Failure struct {
	Name string
	Err  error
}

// Result is everything one collection session yielded.
type Result struct {
	SourceID string
	Entries  []model.Entry
	Skipped  int
	Failures []Failure
}

// Ingest parses every text of a session into provenance-tagged records.
// Each text is one record; a text that does not parse is counted as one
// skip, whatever it holds.
func Ingest(sourceID string, texts []Text) *Result {
	result := &Result{SourceID: sourceID}

	for _, text := range texts {
		record, err := codec.DecodeRecord(text.Content)
		if err != nil {
			result.Skipped++
			result.Failures = append(result.Failures, Failure{Name: text.Name, Err: err})
			continue
		}

		result.Entries = append(result.Entries, model.NewEntry(sourceID, record))
	}

	log.Infow("ingest", "source", sourceID, "texts", len(texts), "records", len(result.Entries), "skipped", result.Skipped)

	return result
}

// Fail records texts that never reached the parser, e.g. undecodable images.
func (r *Result) Fail(failures ...Failure) {
	r.Skipped += len(failures)
	r.Failures = append(r.Failures, failures...)
}

func (r *Result) Records() []model.ChunkRecord {
	records := make([]model.ChunkRecord, 0, len(r.Entries))
	for _, entry := range r.Entries {
		records = append(records, entry.Record)
	}

	return records
}

// Stream is the reconciliation input for this session.
func (r *Result) Stream() reconcile.Stream {
	return reconcile.Stream{SourceID: r.SourceID, Records: r.Records()}
}

// Filter keeps only the records of fileName. Skip counts are carried over.
func (r *Result) Filter(fileName string) *Result {
	filtered := &Result{
		SourceID: r.SourceID,
		Skipped:  r.Skipped,
		Failures: r.Failures,
	}

	for _, entry := range r.Entries {
		if entry.Record.FileName == fileName {
			filtered.Entries = append(filtered.Entries, entry)
		}
	}

	return filtered
}

// FileNames lists the distinct files seen in this session, sorted.
func (r *Result) FileNames() []string {
	var names []string
	for _, entry := range r.Entries {
		names = utils.AppendUnique(names, entry.Record.FileName)
	}

	sort.Strings(names)

	return names
}

// Streams converts a set of results into reconciliation input, in order.
func Streams(results []*Result) []reconcile.Stream {
	streams := make([]reconcile.Stream, 0, len(results))
	for _, r := range results {
		streams = append(streams, r.Stream())
	}

	return streams
}
