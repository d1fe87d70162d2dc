package reconcile

import (
	"sort"

	"github.com/pyropy/qrxfer/core/model"
)

// Gaps returns the maximal runs of indices in [0, totalCount-1] absent from
// present. Leading and trailing runs are reported like interior ones.
func Gaps(present []int, totalCount int) []model.Gap {
	sorted := append([]int{}, present...)
	sort.Ints(sorted)

	gaps := []model.Gap{}
	expected := 0

	for _, index := range sorted {
		if index < expected || index >= totalCount {
			continue
		}

		if index > expected {
			gaps = append(gaps, model.NewGap(expected, index-1))
		}

		expected = index + 1
	}

	if expected < totalCount {
		gaps = append(gaps, model.NewGap(expected, totalCount-1))
	}

	return gaps
}

// MissingIndices expands gaps into individual indices, ascending.
func MissingIndices(gaps []model.Gap) []int {
	missing := []int{}
	for _, gap := range gaps {
		missing = append(missing, gap.Indices()...)
	}

	return missing
}

func countMissing(gaps []model.Gap) int {
	n := 0
	for _, gap := range gaps {
		n += gap.Size
	}

	return n
}
