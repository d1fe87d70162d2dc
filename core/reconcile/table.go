package reconcile

import (
	"sort"

	"github.com/pyropy/qrxfer/core/model"
	"github.com/pyropy/qrxfer/lib/checksum"
	"github.com/pyropy/qrxfer/lib/utils"
)

// FileChunks tracks the winning record per index for one logical file.
type FileChunks struct {
	FileName   string
	TotalCount int // declared by the first record seen for the file
	Winners    map[int]model.Entry
	Duplicates []model.Entry
	Sources    []string
	Received   int
}

func newFileChunks(fileName string, totalCount int) *FileChunks {
	return &FileChunks{
		FileName:   fileName,
		TotalCount: totalCount,
		Winners:    map[int]model.Entry{},
		Duplicates: []model.Entry{},
		Sources:    []string{},
	}
}

// Present returns the indices holding a winner, ascending.
func (f *FileChunks) Present() []int {
	indices := make([]int, 0, len(f.Winners))
	for i := range f.Winners {
		indices = append(indices, i)
	}
	sort.Ints(indices)

	return indices
}

func (f *FileChunks) Has(index int) bool {
	_, exists := f.Winners[index]
	return exists
}

func (f *FileChunks) Gaps() []model.Gap {
	return Gaps(f.Present(), f.TotalCount)
}

func (f *FileChunks) clone() *FileChunks {
	cp := newFileChunks(f.FileName, f.TotalCount)
	for i, e := range f.Winners {
		cp.Winners[i] = e
	}
	cp.Duplicates = append(cp.Duplicates, f.Duplicates...)
	cp.Sources = append(cp.Sources, f.Sources...)
	cp.Received = f.Received

	return cp
}

type conflictKey struct {
	index    int
	fileName string
}

type mismatchKey struct {
	fileName string
	index    int
	declared int
}

type payloadKey struct {
	fileName    string
	index       int
	fingerprint checksum.Fingerprint
}

// Table is the merged view of every record ingested so far. Files are tracked
// independently; the index claims map remembers which file first claimed each
// index so cross-file collisions can be reported.
type Table struct {
	files  map[string]*FileChunks
	order  []string
	claims map[int]model.Entry

	conflicts        []IndexConflict
	mismatches       []TotalCountMismatch
	payloadConflicts []PayloadConflict
	outOfRange       []OutOfRange

	seenConflicts  map[conflictKey]struct{}
	seenMismatches map[mismatchKey]struct{}
	seenPayloads   map[payloadKey]struct{}
}

func NewTable() *Table {
	return &Table{
		files:          map[string]*FileChunks{},
		order:          []string{},
		claims:         map[int]model.Entry{},
		seenConflicts:  map[conflictKey]struct{}{},
		seenMismatches: map[mismatchKey]struct{}{},
		seenPayloads:   map[payloadKey]struct{}{},
	}
}

// Files returns the distinct file names in first-seen order.
func (t *Table) Files() []string {
	return append([]string{}, t.order...)
}

func (t *Table) File(fileName string) (*FileChunks, bool) {
	f, exists := t.files[fileName]
	return f, exists
}

// Winner returns the first-seen record claiming index, across all files.
func (t *Table) Winner(index int) (model.Entry, bool) {
	e, exists := t.claims[index]
	return e, exists
}

// SoleFile returns the only file in the table, if there is exactly one.
func (t *Table) SoleFile() (string, bool) {
	if len(t.order) != 1 {
		return "", false
	}

	return t.order[0], true
}

func (t *Table) Empty() bool {
	return len(t.order) == 0
}

// Clone returns a deep copy; reconciliation never mutates a table it was given.
func (t *Table) Clone() *Table {
	cp := NewTable()
	for name, f := range t.files {
		cp.files[name] = f.clone()
	}
	cp.order = append(cp.order, t.order...)
	for i, e := range t.claims {
		cp.claims[i] = e
	}

	cp.conflicts = append(cp.conflicts, t.conflicts...)
	cp.mismatches = append(cp.mismatches, t.mismatches...)
	cp.payloadConflicts = append(cp.payloadConflicts, t.payloadConflicts...)
	cp.outOfRange = append(cp.outOfRange, t.outOfRange...)

	for k := range t.seenConflicts {
		cp.seenConflicts[k] = struct{}{}
	}
	for k := range t.seenMismatches {
		cp.seenMismatches[k] = struct{}{}
	}
	for k := range t.seenPayloads {
		cp.seenPayloads[k] = struct{}{}
	}

	return cp
}

func (t *Table) add(entry model.Entry) {
	record := entry.Record

	file, exists := t.files[record.FileName]
	if !exists {
		file = newFileChunks(record.FileName, record.TotalCount)
		t.files[record.FileName] = file
		t.order = append(t.order, record.FileName)
	}

	file.Received++
	file.Sources = utils.AppendUnique(file.Sources, entry.Source)

	if record.TotalCount != file.TotalCount {
		fresh := t.recordMismatch(file, entry)

		if record.Index >= file.TotalCount {
			if !fresh {
				return
			}
			t.outOfRange = append(t.outOfRange, OutOfRange{
				FileName:      record.FileName,
				Index:         record.Index,
				Source:        entry.Source,
				Declared:      record.TotalCount,
				Authoritative: file.TotalCount,
			})
			return
		}
	}

	t.claim(entry)

	winner, exists := file.Winners[record.Index]
	if !exists {
		file.Winners[record.Index] = entry
		return
	}

	file.Duplicates = append(file.Duplicates, entry)
	if winner.Record.Payload != record.Payload {
		t.recordPayloadConflict(winner, entry)
	}
}

// claim registers the global owner of an index. A later claim from a different
// file is reported once per (index, file) and never replaces the first one.
func (t *Table) claim(entry model.Entry) {
	record := entry.Record

	owner, claimed := t.claims[record.Index]
	if !claimed {
		t.claims[record.Index] = entry
		return
	}

	if owner.Record.FileName == record.FileName {
		return
	}

	key := conflictKey{index: record.Index, fileName: record.FileName}
	if _, seen := t.seenConflicts[key]; seen {
		return
	}
	t.seenConflicts[key] = struct{}{}

	t.conflicts = append(t.conflicts, IndexConflict{
		Index:      record.Index,
		Winner:     Claim{FileName: owner.Record.FileName, Source: owner.Source},
		Challenger: Claim{FileName: record.FileName, Source: entry.Source},
	})
}

// recordMismatch reports whether the mismatch was seen for the first time.
func (t *Table) recordMismatch(file *FileChunks, entry model.Entry) bool {
	key := mismatchKey{fileName: file.FileName, index: entry.Record.Index, declared: entry.Record.TotalCount}
	if _, seen := t.seenMismatches[key]; seen {
		return false
	}
	t.seenMismatches[key] = struct{}{}

	t.mismatches = append(t.mismatches, TotalCountMismatch{
		FileName:      file.FileName,
		Index:         entry.Record.Index,
		Source:        entry.Source,
		Declared:      entry.Record.TotalCount,
		Authoritative: file.TotalCount,
	})

	return true
}

func (t *Table) recordPayloadConflict(winner, challenger model.Entry) {
	fingerprint := checksum.SumString(challenger.Record.Payload)
	key := payloadKey{fileName: winner.Record.FileName, index: winner.Record.Index, fingerprint: fingerprint}
	if _, seen := t.seenPayloads[key]; seen {
		return
	}
	t.seenPayloads[key] = struct{}{}

	t.payloadConflicts = append(t.payloadConflicts, PayloadConflict{
		FileName:              winner.Record.FileName,
		Index:                 winner.Record.Index,
		WinnerSource:          winner.Source,
		ChallengerSource:      challenger.Source,
		WinnerFingerprint:     checksum.SumString(winner.Record.Payload).Short(),
		ChallengerFingerprint: fingerprint.Short(),
	})
}
