package reconcile

import (
	"github.com/pyropy/qrxfer/core/model"
	"github.com/pyropy/qrxfer/lib/logger"
)

var log, _ = logger.New("reconcile")

// Stream is the batch of records recovered by one collection session.
type Stream struct {
	SourceID string
	Records  []model.ChunkRecord
}

// Reconcile merges streams, in the order given, on top of a copy of table
// (nil starts from an empty table). The first record seen for a
// (fileName, index) wins; later copies are kept as provenance only.
// Missing or conflicting data is reported, never returned as an error.
func Reconcile(table *Table, streams ...Stream) (*Table, *Report) {
	var next *Table
	if table == nil {
		next = NewTable()
	} else {
		next = table.Clone()
	}

	for _, stream := range streams {
		for _, record := range stream.Records {
			next.add(model.NewEntry(stream.SourceID, record))
		}

		log.Debugw("reconcile", "event", "stream merged", "source", stream.SourceID, "records", len(stream.Records))
	}

	report := BuildReport(next)
	if report.MultipleFiles {
		log.Warnw("reconcile", "status", "multiple files detected", "files", next.Files())
	}

	return next, report
}
