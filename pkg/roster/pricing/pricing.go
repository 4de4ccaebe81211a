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

// Package pricing implements the pricing oracle: a constrained shortest-path
// search over the expanded state graph (day, last-block-end-minute,
// tours-yesterday, weekly-hours-so-far) that returns negative-reduced-cost
// columns given a dual vector from the LP master. It is one variant of a
// family of column producers (seed, pricing, repair); its entry point is
// Produce, whose columns pkg/roster/dsearch adds to the shared columns.Pool.
package pricing

import (
	"sort"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/nexroute/roster-kernel/pkg/roster/columns"
	"github.com/nexroute/roster-kernel/pkg/roster/constraints"
	"github.com/nexroute/roster-kernel/pkg/roster/model"
	"github.com/nexroute/roster-kernel/pkg/roster/signing"
)

// Budget bounds a single oracle call.
type Budget struct {
	Deadline   time.Time
	MaxLabels  int // label-setting node budget per day, dominance backstop
	MaxColumns int // how many improving columns to return per call
	// Cache is optional; when set, CanChainDays legality checks for a
	// given (day, end, tours) x (day, start, tours) pair are memoised in
	// it instead of being recomputed for every label that reaches the
	// same state.
	Cache *gocache.Cache
}

// label is one partial-path state in the expanded graph.
type label struct {
	day           int
	lastEnd       int
	lastDayTours  int
	weeklyMinutes int
	reducedCost   float64
	blockIdx      []int
}

// Result is what one oracle call returns.
type Result struct {
	Columns       []model.Column
	NoImproving   bool // true if the best label found had non-negative reduced cost
	BudgetHit     bool // true if Deadline was reached before the search completed
}

// Produce runs the label-setting search and returns up to Budget.MaxColumns
// negative-reduced-cost columns, subject to full weekly-chain legality
// (rest, weekly hours, span via constraints.Policy). Ties in reduced cost
// are broken by the covered-tour-ids tuple, never by discovery order.
func Produce(tours []model.Tour, blockPool []model.Block, byDay map[int][]int, duals map[int]float64, pol constraints.Policy, budget Budget) Result {
	weeklyCapMinutes := int(pol.WeeklyHardCapHours * 60)

	var labels []label
	for day := 0; day <= 6; day++ {
		expanded := extend(labels, blockPool, byDay[day], day, duals, pol, weeklyCapMinutes, budget.Cache)
		// A label may also simply skip this day and carry forward unchanged.
		labels = dominancePrune(append(labels, expanded...), budget.MaxLabels)
		if time.Now().After(budget.Deadline) {
			return finish(tours, blockPool, labels, pol, true, budget.MaxColumns)
		}
	}
	return finish(tours, blockPool, labels, pol, false, budget.MaxColumns)
}

// extend tries appending each candidate block on `day` to every existing
// label (or starting a fresh one-block label), keeping only legal chains.
func extend(existing []label, blockPool []model.Block, candidates []int, day int, duals map[int]float64, pol constraints.Policy, weeklyCapMinutes int, cache *gocache.Cache) []label {
	var out []label
	for _, bi := range candidates {
		b := blockPool[bi]
		rc := reducedCostOf(b, duals)
		// Start a fresh chain at this block.
		out = append(out, label{
			day: b.Day, lastEnd: b.LastEnd, lastDayTours: len(b.TourIdx),
			weeklyMinutes: b.WorkMinutes, reducedCost: rc, blockIdx: []int{bi},
		})
		for _, l := range existing {
			if l.day >= day {
				continue
			}
			ok, _ := canChainDaysMemo(cache, pol, l.day, l.lastEnd, l.lastDayTours, b.Day, b.FirstStart, len(b.TourIdx))
			if !ok {
				continue
			}
			if l.weeklyMinutes+b.WorkMinutes > weeklyCapMinutes {
				continue
			}
			path := append(append([]int(nil), l.blockIdx...), bi)
			out = append(out, label{
				day: b.Day, lastEnd: b.LastEnd, lastDayTours: len(b.TourIdx),
				weeklyMinutes: l.weeklyMinutes + b.WorkMinutes,
				reducedCost:   l.reducedCost + rc,
				blockIdx:      path,
			})
		}
	}
	return out
}

// chainLegalityKey identifies one (earlier-label-tail, later-block-head)
// pair for the purpose of memoising pol.CanChainDays: the same pair recurs
// across many candidate chains once several labels share a bucket.
type chainLegalityKey struct {
	EarlierDay, EarlierLastEnd, NumToursEarlier int
	LaterDay, LaterFirstStart, NumToursNext     int
}

type chainLegalityResult struct {
	OK     bool
	Reason model.ReasonCode
}

// canChainDaysMemo wraps pol.CanChainDays with a per-run memo keyed on the
// structural hash of the call's arguments, since the same (day, end, tours)
// x (day, start, tours) pair is re-evaluated across many candidate chains as
// labels accumulate. Falls back to the unmemoised call when cache is nil.
func canChainDaysMemo(cache *gocache.Cache, pol constraints.Policy, earlierDay, earlierLastEnd, numToursEarlier, laterDay, laterFirstStart, numToursNext int) (bool, model.ReasonCode) {
	if cache == nil {
		return pol.CanChainDays(earlierDay, earlierLastEnd, numToursEarlier, laterDay, laterFirstStart, numToursNext)
	}
	key := chainLegalityKey{earlierDay, earlierLastEnd, numToursEarlier, laterDay, laterFirstStart, numToursNext}
	cacheKey := strconv.FormatUint(signing.StructuralHash(key), 36)
	if cached, ok := cache.Get(cacheKey); ok {
		res := cached.(chainLegalityResult)
		return res.OK, res.Reason
	}
	ok, reason := pol.CanChainDays(earlierDay, earlierLastEnd, numToursEarlier, laterDay, laterFirstStart, numToursNext)
	cache.SetDefault(cacheKey, chainLegalityResult{OK: ok, Reason: reason})
	return ok, reason
}

func reducedCostOf(b model.Block, duals map[int]float64) float64 {
	cost := 1.0 / float64(max(1, len(b.TourIdx))) // a block's share of its column's unit driver cost
	sum := 0.0
	for _, ti := range b.TourIdx {
		sum += duals[ti]
	}
	return cost - sum
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// dominancePrune keeps, per (day, lastEnd, lastDayTours) bucket, only the
// labels that are not weakly dominated by another label in the same bucket
// on both weeklyMinutes and reducedCost, then caps the total count.
func dominancePrune(labels []label, maxLabels int) []label {
	buckets := map[[3]int][]label{}
	for _, l := range labels {
		key := [3]int{l.day, l.lastEnd, l.lastDayTours}
		buckets[key] = append(buckets[key], l)
	}
	var out []label
	for _, bucket := range buckets {
		sort.Slice(bucket, func(i, j int) bool { return bucket[i].reducedCost < bucket[j].reducedCost })
		kept := make([]label, 0, len(bucket))
		for _, l := range bucket {
			dominated := false
			for _, k := range kept {
				if k.weeklyMinutes <= l.weeklyMinutes && k.reducedCost <= l.reducedCost {
					dominated = true
					break
				}
			}
			if !dominated {
				kept = append(kept, l)
			}
		}
		out = append(out, kept...)
	}
	if maxLabels > 0 && len(out) > maxLabels {
		sort.Slice(out, func(i, j int) bool { return out[i].reducedCost < out[j].reducedCost })
		out = out[:maxLabels]
	}
	return out
}

func finish(tours []model.Tour, blockPool []model.Block, labels []label, pol constraints.Policy, budgetHit bool, maxColumns int) Result {
	if maxColumns <= 0 {
		maxColumns = 64
	}
	sort.Slice(labels, func(i, j int) bool {
		if labels[i].reducedCost != labels[j].reducedCost {
			return labels[i].reducedCost < labels[j].reducedCost
		}
		return tieBreakKey(tours, blockPool, labels[i].blockIdx) < tieBreakKey(tours, blockPool, labels[j].blockIdx)
	})
	res := Result{BudgetHit: budgetHit}
	if len(labels) == 0 || labels[0].reducedCost >= 0 {
		res.NoImproving = true
		return res
	}
	seen := map[string]bool{}
	for _, l := range labels {
		if l.reducedCost >= 0 {
			break
		}
		col := columns.BuildColumn(tours, blockPool, l.blockIdx, pol, model.OriginColumnGeneration)
		if seen[col.Signature] {
			continue
		}
		seen[col.Signature] = true
		res.Columns = append(res.Columns, col)
		if len(res.Columns) >= maxColumns {
			break
		}
	}
	return res
}

func tieBreakKey(tours []model.Tour, blockPool []model.Block, blockIdx []int) string {
	ids := map[string]bool{}
	for _, bi := range blockIdx {
		for _, ti := range blockPool[bi].TourIdx {
			ids[tours[ti].ID] = true
		}
	}
	keys := make([]string, 0, len(ids))
	for k := range ids {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	joined := ""
	for _, k := range keys {
		joined += k + ","
	}
	return joined
}
