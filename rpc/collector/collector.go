package collector

import (
	"github.com/pyropy/qrxfer/core/reconcile"
)

// Service is the name the collector API is registered under.
const Service = "CollectorAPI"

type Collector interface {
	// SaveChunk stores one scanned text
	SaveChunk(args *SaveChunkArgs, reply *SaveChunkReply) error
	// Stats ...
	Stats(args *StatsArgs, reply *StatsReply) error
	// Report returns the reconciliation report of everything collected
	Report(args *ReportArgs, reply *ReportReply) error
	// Export returns the stored texts of a session
	Export(args *ExportArgs, reply *ExportReply) error
}

type SaveChunkArgs struct {
	Session    string
	FileName   string
	ChunkIndex int
	Content    string
	CheckSum   int
}

type SaveChunkReply struct {
	Session   string
	Name      string
	Valid     bool
	Duplicate bool
}

type StatsArgs struct {
	// Session limits the per-session counts to one session when set.
	Session string
}

type StatsReply struct {
	ChunksCount int
	SaveDir     string
	Session     string
	Sessions    map[string]int
	Files       []string
}

type ReportArgs struct {
	// FileName limits the report to one file when set.
	FileName string
}

type ReportReply struct {
	Report reconcile.Report
}

type ExportArgs struct {
	Session string
}

type Chunk struct {
	Name    string
	Content string
}

type ExportReply struct {
	Session string
	Chunks  []Chunk
}
