package reconcile

import (
	"sort"

	"github.com/pyropy/qrxfer/core/model"
)

// Claim identifies who asserted ownership of an index.
type Claim struct {
	FileName string `json:"fileName" yaml:"fileName"`
	Source   string `json:"source" yaml:"source"`
}

// IndexConflict: the same index claimed under different file names. The
// winner is whichever source was ingested first.
type IndexConflict struct {
	Index      int   `json:"index" yaml:"index"`
	Winner     Claim `json:"winner" yaml:"winner"`
	Challenger Claim `json:"challenger" yaml:"challenger"`
}

// TotalCountMismatch: a record declares a total different from the first
// record seen for its file. The first-seen total stays authoritative.
type TotalCountMismatch struct {
	FileName      string `json:"fileName" yaml:"fileName"`
	Index         int    `json:"index" yaml:"index"`
	Source        string `json:"source" yaml:"source"`
	Declared      int    `json:"declared" yaml:"declared"`
	Authoritative int    `json:"authoritative" yaml:"authoritative"`
}

// PayloadConflict: two records agree on file and index but carry different
// payloads. The first-seen payload is kept.
type PayloadConflict struct {
	FileName              string `json:"fileName" yaml:"fileName"`
	Index                 int    `json:"index" yaml:"index"`
	WinnerSource          string `json:"winnerSource" yaml:"winnerSource"`
	ChallengerSource      string `json:"challengerSource" yaml:"challengerSource"`
	WinnerFingerprint     string `json:"winnerFingerprint" yaml:"winnerFingerprint"`
	ChallengerFingerprint string `json:"challengerFingerprint" yaml:"challengerFingerprint"`
}

// OutOfRange: a record whose index lies beyond the authoritative total. It is
// never inserted.
type OutOfRange struct {
	FileName      string `json:"fileName" yaml:"fileName"`
	Index         int    `json:"index" yaml:"index"`
	Source        string `json:"source" yaml:"source"`
	Declared      int    `json:"declared" yaml:"declared"`
	Authoritative int    `json:"authoritative" yaml:"authoritative"`
}

type FileReport struct {
	FileName       string      `json:"fileName" yaml:"fileName"`
	TotalCount     int         `json:"totalCount" yaml:"totalCount"`
	Present        int         `json:"present" yaml:"present"`
	Received       int         `json:"received" yaml:"received"`
	Duplicates     int         `json:"duplicates" yaml:"duplicates"`
	Sources        []string    `json:"sources" yaml:"sources"`
	Gaps           []model.Gap `json:"gaps" yaml:"gaps"`
	Missing        int         `json:"missing" yaml:"missing"`
	MissingAtStart bool        `json:"missingAtStart" yaml:"missingAtStart"`
	MissingAtEnd   bool        `json:"missingAtEnd" yaml:"missingAtEnd"`
	Complete       bool        `json:"complete" yaml:"complete"`
	Progress       float64     `json:"progress" yaml:"progress"`
}

// Report is a read-only diagnostic view derived from a Table.
type Report struct {
	Files                []FileReport         `json:"files" yaml:"files"`
	MultipleFiles        bool                 `json:"multipleFiles" yaml:"multipleFiles"`
	Conflicts            []IndexConflict      `json:"conflicts" yaml:"conflicts"`
	TotalCountMismatches []TotalCountMismatch `json:"totalCountMismatches" yaml:"totalCountMismatches"`
	PayloadConflicts     []PayloadConflict    `json:"payloadConflicts" yaml:"payloadConflicts"`
	OutOfRange           []OutOfRange         `json:"outOfRange" yaml:"outOfRange"`
}

func BuildReport(table *Table) *Report {
	report := &Report{
		Files:                []FileReport{},
		MultipleFiles:        len(table.order) > 1,
		Conflicts:            append([]IndexConflict{}, table.conflicts...),
		TotalCountMismatches: append([]TotalCountMismatch{}, table.mismatches...),
		PayloadConflicts:     append([]PayloadConflict{}, table.payloadConflicts...),
		OutOfRange:           append([]OutOfRange{}, table.outOfRange...),
	}

	for _, name := range table.order {
		report.Files = append(report.Files, buildFileReport(table.files[name]))
	}

	sort.Slice(report.Files, func(i, j int) bool {
		return report.Files[i].FileName < report.Files[j].FileName
	})

	return report
}

func buildFileReport(f *FileChunks) FileReport {
	gaps := f.Gaps()

	fr := FileReport{
		FileName:   f.FileName,
		TotalCount: f.TotalCount,
		Present:    len(f.Winners),
		Received:   f.Received,
		Duplicates: len(f.Duplicates),
		Sources:    append([]string{}, f.Sources...),
		Gaps:       gaps,
		Missing:    countMissing(gaps),
		Complete:   len(gaps) == 0,
	}

	if f.TotalCount > 0 {
		fr.Progress = float64(len(f.Winners)) / float64(f.TotalCount) * 100
	}

	if len(gaps) > 0 {
		fr.MissingAtStart = gaps[0].Start == 0
		fr.MissingAtEnd = gaps[len(gaps)-1].End == f.TotalCount-1
	}

	return fr
}

func (r *Report) File(fileName string) (*FileReport, bool) {
	for i := range r.Files {
		if r.Files[i].FileName == fileName {
			return &r.Files[i], true
		}
	}

	return nil, false
}

// HasAnomalies reports whether any conflict or inconsistency was observed.
func (r *Report) HasAnomalies() bool {
	return len(r.Conflicts) > 0 ||
		len(r.TotalCountMismatches) > 0 ||
		len(r.PayloadConflicts) > 0 ||
		len(r.OutOfRange) > 0
}

// ConflictsAt returns the index conflicts recorded for index.
func (r *Report) ConflictsAt(index int) []IndexConflict {
	conflicts := []IndexConflict{}
	for _, c := range r.Conflicts {
		if c.Index == index {
			conflicts = append(conflicts, c)
		}
	}

	return conflicts
}
