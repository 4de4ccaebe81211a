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

// Package master implements the set-partition master problem: the RMP (LP
// relaxation, solved to extract duals for the pricing oracle), a restricted
// MIP over a bounded subset of columns, and a final MIP run if budget
// remains. No MILP library appears anywhere in the retrieved corpus, so the
// LP core is a from-scratch two-phase dense simplex and the MIP stages are
// depth-first branch-and-bound over it; see DESIGN.md for that call.
package master

import (
	"sort"

	"github.com/nexroute/roster-kernel/pkg/roster/model"
)

// Problem is one RMP/MIP instance: the live column set, how many distinct
// tours must be partitioned, and the current D-search driver cap.
type Problem struct {
	Columns   []model.Column // indices here ARE the "column index" used throughout this package
	NumTours  int
	DriverCap int
	// Objective assigns a per-column cost for the current lexicographic
	// phase (driver count, PT-hour share, or block-mix quality). Index
	// aligned with Columns.
	Objective []float64
}

// RMPStatus is the outcome of solving the LP relaxation.
type RMPStatus string

const (
	RMPOptimal     RMPStatus = "OPTIMAL"
	RMPInfeasible  RMPStatus = "INFEASIBLE"
	RMPZeroSupport RMPStatus = "ZERO_SUPPORT"
)

// RMPResult carries the LP relaxation's solution and dual vector.
type RMPResult struct {
	Status          RMPStatus
	Values          []float64 // fractional y_c per column
	Duals           []float64 // dual price per tour index, for the pricing oracle
	ObjectiveValue  float64
	UncoveredTours  []int // populated only when Status == RMPZeroSupport
}

// ZeroSupportCheck is the mandatory pre-check run before any solver time is
// spent: every tour must have at least one covering column in the current
// subset.
func ZeroSupportCheck(p Problem) []int {
	covered := make([]bool, p.NumTours)
	for _, c := range p.Columns {
		for _, ti := range c.TourIdx {
			if ti < p.NumTours {
				covered[ti] = true
			}
		}
	}
	var uncovered []int
	for t, ok := range covered {
		if !ok {
			uncovered = append(uncovered, t)
		}
	}
	return uncovered
}

// SolveRMP builds and solves the LP relaxation via two-phase simplex.
func SolveRMP(p Problem) RMPResult {
	if missing := ZeroSupportCheck(p); len(missing) > 0 {
		return RMPResult{Status: RMPZeroSupport, UncoveredTours: missing}
	}

	nCols := len(p.Columns)
	nTourRows := p.NumTours
	nColRows := nCols   // upper bound y_c <= 1
	nCapRows := 1
	rows := nTourRows + nColRows + nCapRows
	// column layout: [0, nCols) = y ; [nCols, 2*nCols) = upper-bound slacks ;
	// 2*nCols = cap slack ; [2*nCols+1, 2*nCols+1+nTourRows) = artificials.
	yOff := 0
	slackOff := nCols
	capSlackCol := 2 * nCols
	artOff := 2*nCols + 1
	cols := artOff + nTourRows

	t := newTableau(rows, cols)

	// Tour-coverage equality rows.
	for ti := 0; ti < nTourRows; ti++ {
		row := ti
		for ci, c := range p.Columns {
			if containsInt(c.TourIdx, ti) {
				t.a[row][yOff+ci] = 1
			}
		}
		t.a[row][artOff+ti] = 1
		t.a[row][cols] = 1 // RHS
		t.basis[row] = artOff + ti
	}
	// Column upper-bound rows: y_c + s_c = 1.
	for ci := range p.Columns {
		row := nTourRows + ci
		t.a[row][yOff+ci] = 1
		t.a[row][slackOff+ci] = 1
		t.a[row][cols] = 1
		t.basis[row] = slackOff + ci
	}
	// Driver-cap row: sum y_c + s_cap = D.
	capRow := nTourRows + nColRows
	for ci := range p.Columns {
		t.a[capRow][yOff+ci] = 1
	}
	t.a[capRow][capSlackCol] = 1
	t.a[capRow][cols] = float64(p.DriverCap)
	t.basis[capRow] = capSlackCol

	// Phase 1: minimise sum of artificials.
	phase1Obj := make([]float64, cols)
	for j := artOff; j < cols; j++ {
		phase1Obj[j] = 1
	}
	t.runSimplex(phase1Obj, nil)

	sumArtificials := 0.0
	for j := artOff; j < cols; j++ {
		sumArtificials += t.value(j)
	}
	if sumArtificials > 1e-6 {
		return RMPResult{Status: RMPInfeasible}
	}

	// Pivot every artificial still basic (at zero) out of the basis, so that
	// phase 2 cannot raise it off zero and loosen a coverage row.
	for i := 0; i < rows; i++ {
		if t.basis[i] < artOff {
			continue
		}
		for j := 0; j < artOff; j++ {
			if v := t.a[i][j]; v > simplexEps || v < -simplexEps {
				t.pivot(i, j)
				break
			}
		}
	}

	// Phase 2: minimise the real objective; artificials are barred from
	// re-entering the basis (their true cost is +infinity in the original
	// problem — coverage must stay exact).
	disallowed := make([]bool, cols)
	for j := artOff; j < cols; j++ {
		disallowed[j] = true
	}
	phase2Obj := make([]float64, cols)
	for ci, c := range p.Columns {
		phase2Obj[yOff+ci] = p.Objective[ci]
		_ = c
	}
	t.runSimplex(phase2Obj, disallowed)

	values := make([]float64, nCols)
	for ci := range p.Columns {
		values[ci] = t.value(yOff + ci)
	}
	duals := make([]float64, nTourRows)
	for ti := 0; ti < nTourRows; ti++ {
		duals[ti] = -t.reducedCostFinal(phase2Obj, artOff+ti)
	}
	objVal := 0.0
	for ci := range p.Columns {
		objVal += phase2Obj[yOff+ci] * values[ci]
	}

	return RMPResult{Status: RMPOptimal, Values: values, Duals: duals, ObjectiveValue: objVal}
}

func containsInt(xs []int, v int) bool {
	// xs is always small (<=~15 tours per column) and kept sorted by
	// columns.BuildColumn, so a linear scan is simpler and just as fast as
	// a binary search at this size.
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}

// EliteAndFreshSubset implements the restricted-MIP subset selection rule:
// the union of an "elite" slice (sorted by fractional LP value then cost),
// a "freshest" slice (most recently generated columns), and every singleton
// column that is the sole cover for some tour — the last slice is mandatory
// and is never dropped, per spec §4.F.
func EliteAndFreshSubset(p Problem, lpValues []float64, nSubsetCap int) []int {
	type scored struct {
		idx   int
		value float64
		cost  float64
	}
	elite := make([]scored, len(p.Columns))
	for i, c := range p.Columns {
		v := 0.0
		if i < len(lpValues) {
			v = lpValues[i]
		}
		elite[i] = scored{idx: i, value: v, cost: c.Cost}
	}
	sort.Slice(elite, func(i, j int) bool {
		if elite[i].value != elite[j].value {
			return elite[i].value > elite[j].value
		}
		if elite[i].cost != elite[j].cost {
			return elite[i].cost < elite[j].cost
		}
		return p.Columns[elite[i].idx].Signature < p.Columns[elite[j].idx].Signature
	})

	mustKeep := mandatorySingletons(p)

	half := nSubsetCap / 2
	eliteQuarter := half / 2
	freshQuarter := half - eliteQuarter

	chosen := map[int]bool{}
	for idx := range mustKeep {
		chosen[idx] = true
	}
	for _, s := range elite {
		if len(chosen) >= eliteQuarter+len(mustKeep) {
			break
		}
		chosen[s.idx] = true
	}
	// "Freshest": columns with the highest index were generated most
	// recently (CG appends to the pool), so iterate from the end.
	for i := len(p.Columns) - 1; i >= 0 && len(chosen) < nSubsetCap; i-- {
		if len(chosen)-len(mustKeep)-eliteQuarter >= freshQuarter && freshQuarter > 0 {
			break
		}
		chosen[i] = true
	}

	out := make([]int, 0, len(chosen))
	for idx := range chosen {
		out = append(out, idx)
	}
	sort.Ints(out)
	if nSubsetCap > 0 && len(out) > nSubsetCap {
		// Trim only non-mandatory columns; mandatory singletons stay even
		// when they alone exceed the cap.
		room := nSubsetCap - len(mustKeep)
		trimmed := out[:0]
		for _, idx := range out {
			if mustKeep[idx] {
				trimmed = append(trimmed, idx)
			} else if room > 0 {
				trimmed = append(trimmed, idx)
				room--
			}
		}
		out = trimmed
	}
	return out
}

// mandatorySingletons returns the indices of every column that is the only
// cover for at least one tour.
func mandatorySingletons(p Problem) map[int]bool {
	coverCount := make([]int, p.NumTours)
	for _, c := range p.Columns {
		for _, ti := range c.TourIdx {
			if ti < p.NumTours {
				coverCount[ti]++
			}
		}
	}
	must := map[int]bool{}
	for ci, c := range p.Columns {
		if len(c.TourIdx) != 1 {
			continue
		}
		ti := c.TourIdx[0]
		if ti < p.NumTours && coverCount[ti] == 1 {
			must[ci] = true
		}
	}
	return must
}
