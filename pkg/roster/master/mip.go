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

package master

import (
	"sort"
	"time"

	"github.com/nexroute/roster-kernel/pkg/roster/model"
)

// MIPStatus mirrors the spec's §6 status enum restricted to what a single
// master-problem stage can return.
type MIPStatus string

const (
	MIPOptimal    MIPStatus = "OPTIMAL"
	MIPFeasible   MIPStatus = "FEASIBLE"
	MIPInfeasible MIPStatus = "INFEASIBLE"
	MIPTimeout    MIPStatus = "TIMEOUT"
)

// MIPResult is the outcome of a restricted or final MIP call.
type MIPResult struct {
	Status   MIPStatus
	Selected []int // column indices (within the Problem passed to SolveMIP)
}

const integralEps = 1e-6

// SolveMIP runs depth-first branch-and-bound over the LP relaxation,
// restricted to a single search worker and a fixed traversal order, per the
// public-contract determinism guarantee (§5: num_search_workers locked to 1).
// Bland's-rule simplex plus this deterministic branch order make the result
// a pure function of (Problem, deadline reached or not).
func SolveMIP(p Problem, subset []int, deadline time.Time) MIPResult {
	sub := subProblem(p, subset)
	if missing := ZeroSupportCheck(sub); len(missing) > 0 {
		return MIPResult{Status: MIPInfeasible}
	}

	best := MIPResult{Status: MIPInfeasible}
	bestObj := posInf()
	timedOut := false

	var search func(fixedIn, fixedOut map[int]bool, remainingCap int)
	search = func(fixedIn, fixedOut map[int]bool, remainingCap int) {
		if timedOut || time.Now().After(deadline) {
			timedOut = true
			return
		}
		reduced, colMap := reduceForFixed(sub, fixedIn, fixedOut, remainingCap)
		if reduced == nil {
			return // infeasible: some tour lost all its covers
		}
		res := SolveRMP(*reduced)
		if res.Status != RMPOptimal {
			return
		}
		if res.ObjectiveValue >= bestObj-1e-9 && best.Status != MIPInfeasible {
			return // bound prune
		}

		fracIdx, fracVal := mostFractional(res.Values)
		if fracIdx == -1 {
			// Integral: translate back to original column indices.
			sel := make([]int, 0)
			for ci, v := range res.Values {
				if v > 0.5 {
					sel = append(sel, colMap[ci])
				}
			}
			for ci := range fixedIn {
				sel = append(sel, ci)
			}
			sel = dedupeInts(sel)
			if res.ObjectiveValue < bestObj-1e-9 {
				bestObj = res.ObjectiveValue
				best = MIPResult{Status: MIPOptimal, Selected: sel}
			}
			return
		}

		origIdx := colMap[fracIdx]
		// Deterministic branch order: try "select" (fix to 1) before
		// "exclude" (fix to 0), matching the CG/master preference for
		// fewer, fuller columns.
		_ = fracVal
		in1 := cloneSet(fixedIn)
		in1[origIdx] = true
		out1 := fixedOut
		search(in1, out1, remainingCap-1)

		out2 := cloneSet(fixedOut)
		out2[origIdx] = true
		search(fixedIn, out2, remainingCap)
	}

	search(map[int]bool{}, map[int]bool{}, sub.DriverCap)

	if best.Status == MIPInfeasible {
		if timedOut {
			return MIPResult{Status: MIPTimeout}
		}
		return MIPResult{Status: MIPInfeasible}
	}
	if subset != nil {
		mapped := make([]int, len(best.Selected))
		for i, ci := range best.Selected {
			mapped[i] = subset[ci]
		}
		best.Selected = dedupeInts(mapped)
	}
	if timedOut {
		best.Status = MIPFeasible
	}
	return best
}

func posInf() float64 { return 1e300 }

func cloneSet(m map[int]bool) map[int]bool {
	out := make(map[int]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func dedupeInts(xs []int) []int {
	seen := map[int]bool{}
	out := xs[:0]
	for _, x := range xs {
		if !seen[x] {
			seen[x] = true
			out = append(out, x)
		}
	}
	sort.Ints(out)
	return out
}

// mostFractional returns the index (into values) closest to 0.5, or -1 if
// every value is already integral within integralEps. Ties broken by
// lowest index for determinism.
func mostFractional(values []float64) (int, float64) {
	best := -1
	bestDist := 1.0
	for i, v := range values {
		frac := v - float64(int(v+0.5))
		if frac < 0 {
			frac = -frac
		}
		if frac < integralEps {
			continue
		}
		dist := v - 0.5
		if dist < 0 {
			dist = -dist
		}
		if dist < bestDist {
			bestDist = dist
			best = i
		}
	}
	return best, bestDist
}

func subProblem(p Problem, subset []int) Problem {
	if subset == nil {
		return p
	}
	cols := make([]model.Column, 0, len(subset))
	obj := make([]float64, 0, len(subset))
	for _, idx := range subset {
		cols = append(cols, p.Columns[idx])
		obj = append(obj, p.Objective[idx])
	}
	return Problem{Columns: cols, NumTours: p.NumTours, DriverCap: p.DriverCap, Objective: obj}
}

// reduceForFixed builds the LP Problem induced by fixing fixedIn columns to
// 1 and fixedOut columns to 0: tours covered by a forced-in column are
// removed from the coverage rows (the partition constraint is already
// satisfied for them), columns overlapping a forced-in column's tours
// become infeasible (dropped), and the driver cap is reduced by the number
// of forced-in columns already committed. Returns nil if some tour loses
// every remaining cover.
func reduceForFixed(p Problem, fixedIn, fixedOut map[int]bool, remainingCap int) (*Problem, map[int]int) {
	coveredByFixed := make([]bool, p.NumTours)
	for ci := range fixedIn {
		for _, ti := range p.Columns[ci].TourIdx {
			if ti < p.NumTours {
				coveredByFixed[ti] = true
			}
		}
	}
	tourRemap := make([]int, p.NumTours)
	nNewTours := 0
	for ti := 0; ti < p.NumTours; ti++ {
		if coveredByFixed[ti] {
			tourRemap[ti] = -1
			continue
		}
		tourRemap[ti] = nNewTours
		nNewTours++
	}

	var cols []model.Column
	colMap := map[int]int{}
	var obj []float64
	for ci, c := range p.Columns {
		if fixedOut[ci] || fixedIn[ci] {
			continue
		}
		overlapsFixed := false
		for _, ti := range c.TourIdx {
			if ti < p.NumTours && coveredByFixed[ti] {
				overlapsFixed = true
				break
			}
		}
		if overlapsFixed {
			continue
		}
		newTourIdx := make([]int, 0, len(c.TourIdx))
		for _, ti := range c.TourIdx {
			if ti < p.NumTours {
				newTourIdx = append(newTourIdx, tourRemap[ti])
			}
		}
		remapped := c
		remapped.TourIdx = newTourIdx
		colMap[len(cols)] = ci
		cols = append(cols, remapped)
		obj = append(obj, p.Objective[ci])
	}

	sub := &Problem{Columns: cols, NumTours: nNewTours, DriverCap: remainingCap, Objective: obj}
	if missing := ZeroSupportCheck(*sub); len(missing) > 0 {
		return nil, nil
	}
	return sub, colMap
}
