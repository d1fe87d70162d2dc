package model

// ChunkRecord is one self-describing unit of the wire protocol. It carries a
// contiguous slice of the base64 encoded file.
type ChunkRecord struct {
	FileName   string // grouping key, not a filesystem path
	Index      int
	TotalCount int
	Payload    string
}

// Entry pairs a record with the collection session that produced it.
type Entry struct {
	Record ChunkRecord
	Source string
}

func NewEntry(source string, record ChunkRecord) Entry {
	return Entry{
		Record: record,
		Source: source,
	}
}
