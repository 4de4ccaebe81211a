/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package columns builds and stores weekly roster candidates: the
// one-shot seed pool and the deduplicated pool that column generation
// (driven by the pricing oracle in pkg/roster/pricing) keeps adding to.
package columns

import (
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/nexroute/roster-kernel/pkg/roster/constraints"
	"github.com/nexroute/roster-kernel/pkg/roster/model"
	"github.com/nexroute/roster-kernel/pkg/roster/signing"
)

// Pool is the deduplicated set of columns a run has discovered so far,
// indexed by signature so an equivalent column (same covered-tour-set) is
// never inserted twice regardless of which block shape produced it.
type Pool struct {
	Columns      []model.Column
	bySignature  map[string]int // signature -> index into Columns
}

// NewPool returns an empty pool.
func NewPool() *Pool {
	return &Pool{bySignature: map[string]int{}}
}

// Add inserts col if no column with the same signature already exists.
// Returns true if col was newly added.
func (p *Pool) Add(col model.Column) bool {
	if _, ok := p.bySignature[col.Signature]; ok {
		return false
	}
	p.bySignature[col.Signature] = len(p.Columns)
	p.Columns = append(p.Columns, col)
	return true
}

// IndexOfSignature returns the index of the column with signature sig, or -1.
func (p *Pool) IndexOfSignature(sig string) int {
	if i, ok := p.bySignature[sig]; ok {
		return i
	}
	return -1
}

// BuildColumn assembles a Column from an ordered sequence of block indices
// (already verified legal to chain, earliest day first), computing hours,
// days-worked, driver type, signature and a nominal unit cost of 1 (one
// driver), the quantity the RMP's first lexicographic objective minimises.
func BuildColumn(tours []model.Tour, blockPool []model.Block, blockIdx []int, pol constraints.Policy, origin model.ColumnOrigin) model.Column {
	var tourIdxSet = map[int]bool{}
	var workMinutes int
	days := map[int]bool{}
	for _, bi := range blockIdx {
		b := blockPool[bi]
		days[b.Day] = true
		workMinutes += b.WorkMinutes
		for _, ti := range b.TourIdx {
			tourIdxSet[ti] = true
		}
	}
	tourIdxSorted := make([]int, 0, len(tourIdxSet))
	for ti := range tourIdxSet {
		tourIdxSorted = append(tourIdxSorted, ti)
	}
	sort.Ints(tourIdxSorted)

	tourIDs := lo.Map(tourIdxSorted, func(ti int, _ int) string { return tours[ti].ID })
	hours := float64(workMinutes) / 60.0

	driverType := model.DriverTypeFTE
	if hours < pol.FTETargetMinHours {
		driverType = model.DriverTypePT
	}

	sortedBlockIdx := append([]int(nil), blockIdx...)
	sort.Ints(sortedBlockIdx)
	blockIDs := lo.Map(sortedBlockIdx, func(bi int, _ int) string { return blockPool[bi].ID })

	return model.Column{
		ID:         strings.Join(blockIDs, "|"),
		BlockIdx:   blockIdx,
		TourIdx:    tourIdxSorted,
		WorkHours:  hours,
		DaysWorked: len(days),
		DriverType: driverType,
		Cost:       1.0,
		Origin:     origin,
		Signature:  signing.ColumnSignature(tourIDs),
	}
}
