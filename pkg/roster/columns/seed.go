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

package columns

import (
	"sort"

	"github.com/nexroute/roster-kernel/pkg/roster/constraints"
	"github.com/nexroute/roster-kernel/pkg/roster/model"
)

// Seed builds the one-shot seed pool: for each day, a daily DAG of blocks;
// for each block a greedy forward walk across legal next-days (highest
// work-minutes then density), producing a mix of 5/4/3/2/1-day columns. A
// singleton column for every tour is added explicitly afterwards as the
// guaranteed fallback, so the seed pool always covers every tour.
func Seed(tours []model.Tour, blockPool []model.Block, pol constraints.Policy) []model.Column {
	byDay := map[int][]int{}
	for bi, b := range blockPool {
		byDay[b.Day] = append(byDay[b.Day], bi)
	}
	for day := range byDay {
		idxs := byDay[day]
		sort.Slice(idxs, func(i, j int) bool {
			bi, bj := blockPool[idxs[i]], blockPool[idxs[j]]
			if bi.Score != bj.Score {
				return bi.Score > bj.Score
			}
			return bi.ID < bj.ID
		})
		byDay[day] = idxs
	}

	var seeds []model.Column
	for day := 0; day <= 6; day++ {
		for _, startIdx := range byDay[day] {
			chain := walkChain(blockPool, byDay, pol, day, startIdx)
			seeds = append(seeds, BuildColumn(tours, blockPool, chain, pol, model.OriginSeed))
		}
	}

	// Guaranteed fallback: explicit singleton column per tour.
	tourToSingleton := map[int]int{}
	for bi, b := range blockPool {
		if len(b.TourIdx) == 1 {
			tourToSingleton[b.TourIdx[0]] = bi
		}
	}
	for ti := range tours {
		if bi, ok := tourToSingleton[ti]; ok {
			seeds = append(seeds, BuildColumn(tours, blockPool, []int{bi}, pol, model.OriginSeed))
		}
	}
	return seeds
}

// walkChain greedily extends a chain starting at blockPool[startIdx] on
// startDay, picking on each subsequent day the highest-scoring block that
// legally chains (constraints.CanChainDays), and stops once no later day
// offers a legal continuation or the weekly hard cap would be exceeded.
func walkChain(blockPool []model.Block, byDay map[int][]int, pol constraints.Policy, startDay, startIdx int) []int {
	chain := []int{startIdx}
	cur := blockPool[startIdx]
	weeklyMinutes := cur.WorkMinutes

	for day := startDay + 1; day <= 6; day++ {
		var best = -1
		for _, cand := range byDay[day] {
			b := blockPool[cand]
			ok, _ := pol.CanChainDays(cur.Day, cur.LastEnd, len(cur.TourIdx), b.Day, b.FirstStart, len(b.TourIdx))
			if !ok {
				continue
			}
			if weeklyMinutes+b.WorkMinutes > int(pol.WeeklyHardCapHours*60) {
				continue
			}
			if best == -1 || b.Score > blockPool[best].Score || (b.Score == blockPool[best].Score && b.ID < blockPool[best].ID) {
				best = cand
			}
		}
		if best == -1 {
			continue // no legal block today; Sunday gaps are fine, keep scanning later days
		}
		chain = append(chain, best)
		cur = blockPool[best]
		weeklyMinutes += cur.WorkMinutes
	}
	return chain
}
