package opcodepolicy

import (
	"fmt"
	"sort"

	"github.com/certen/trustvm/pkg/types"
)

// SortedArray wraps types.ReputationSortedArray with the lazy-sort and
// access-gate behavior §4.3 requires.
type SortedArray struct {
	data types.ReputationSortedArray
}

// NewSortedArray constructs an array with the given minimum access
// reputation.
func NewSortedArray(minAccessReputation float64) *SortedArray {
	return &SortedArray{data: types.ReputationSortedArray{MinAccessReputation: minAccessReputation}}
}

// Insert appends an entry and marks the array unsorted.
func (a *SortedArray) Insert(value []byte, weight float64) {
	a.data.Data = append(a.data.Data, types.SortedEntry{Value: value, Weight: weight})
	a.data.IsSorted = false
}

// ensureSorted lazily sorts entries descending by weight.
func (a *SortedArray) ensureSorted() {
	if a.data.IsSorted {
		return
	}
	sort.SliceStable(a.data.Data, func(i, j int) bool {
		return a.data.Data[i].Weight > a.data.Data[j].Weight
	})
	a.data.IsSorted = true
}

// Read returns the entry at index, sorting the array first if needed,
// and requires the caller's reputation meet MinAccessReputation.
func (a *SortedArray) Read(reputation float64, index int) ([]byte, error) {
	if reputation < a.data.MinAccessReputation {
		return nil, fmt.Errorf("opcodepolicy: reputation %.1f below array access minimum %.1f", reputation, a.data.MinAccessReputation)
	}
	a.ensureSorted()
	if index < 0 || index >= len(a.data.Data) {
		return nil, fmt.Errorf("opcodepolicy: index %d out of range", index)
	}
	return a.data.Data[index].Value, nil
}

// Len reports the number of entries.
func (a *SortedArray) Len() int {
	return len(a.data.Data)
}
