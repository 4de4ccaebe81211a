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

// Package blocks enumerates, scores and prunes the legal daily work blocks
// (1/2/3 tours glued on one day) that the column generator chains into
// weekly rosters. The builder cannot fail: it always terminates with a pool
// that covers every tour, per the coverage guarantee in spec §4.C.
package blocks

import (
	"sort"
	"strings"

	"github.com/samber/lo"

	"github.com/nexroute/roster-kernel/pkg/roster/constraints"
	"github.com/nexroute/roster-kernel/pkg/roster/metrics"
	"github.com/nexroute/roster-kernel/pkg/roster/model"
)

// Options configure the builder. KBase/Threshold implement the dynamic
// per-tour cap K(t); NMax is the global pool cap.
type Options struct {
	Policy    constraints.Policy
	KBase     int
	Threshold int // "fewer than THRESH total blocks" doubles K(t)
	NMax      int
	// Metrics is optional; when set, Build reports how many blocks it
	// enumerated and how many dominance/cap pruning dropped.
	Metrics *metrics.Collectors
}

// DefaultOptions returns sane defaults matching config.Default().
func DefaultOptions(pol constraints.Policy) Options {
	return Options{Policy: pol, KBase: 8, Threshold: 4, NMax: 20000}
}

// Pool is the scored, pruned set of blocks produced for one run, plus the
// index of every block that is the last remaining cover for some tour (the
// "protected" set that pruning may never remove).
type Pool struct {
	Blocks    []model.Block
	Protected map[int]bool // index into Blocks
}

// Build runs the full enumerate -> score -> prune pipeline over tours.
func Build(tours []model.Tour, opts Options) Pool {
	byDay := groupByDay(tours)
	var all []model.Block

	for day, idxs := range byDay {
		sort.Slice(idxs, func(i, j int) bool { return tours[idxs[i]].StartMinute < tours[idxs[j]].StartMinute })
		all = append(all, emitSingles(tours, day, idxs)...)
		pairs := emitPairs(tours, day, idxs, opts.Policy)
		all = append(all, pairs...)
		all = append(all, emitTriples(tours, day, idxs, pairs, opts.Policy)...)
	}

	for i := range all {
		all[i].Score = score(tours, all[i])
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Score != all[j].Score {
			return all[i].Score > all[j].Score
		}
		return all[i].ID < all[j].ID
	})

	if opts.Metrics != nil {
		opts.Metrics.BlocksBuilt.Add(float64(len(all)))
	}
	pool := prune(tours, all, opts)
	if opts.Metrics != nil {
		opts.Metrics.BlocksPruned.Add(float64(len(all) - len(pool.Blocks)))
	}
	return pool
}

func groupByDay(tours []model.Tour) map[int][]int {
	m := map[int][]int{}
	for i, t := range tours {
		m[t.Day] = append(m[t.Day], i)
	}
	return m
}

func blockID(tours []model.Tour, idxs []int) string {
	ids := lo.Map(idxs, func(i int, _ int) string { return tours[i].ID })
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	return strings.Join(sorted, "+")
}

func emitSingles(tours []model.Tour, day int, idxs []int) []model.Block {
	out := make([]model.Block, 0, len(idxs))
	for _, i := range idxs {
		t := tours[i]
		out = append(out, model.Block{
			ID: blockID(tours, []int{i}), Day: day, TourIdx: []int{i},
			FirstStart: t.StartMinute, LastEnd: t.EndMinute,
			WorkMinutes: t.DurationMinutes(), Zone: model.PauseZoneNone,
		})
	}
	return out
}

func emitPairs(tours []model.Tour, day int, idxs []int, pol constraints.Policy) []model.Block {
	var out []model.Block
	for a := 0; a < len(idxs); a++ {
		for b := a + 1; b < len(idxs); b++ {
			i, j := idxs[a], idxs[b]
			ti, tj := tours[i], tours[j]
			// CanExtendBlock skips every check for PauseZoneNone, so the
			// one-tour block is passed with the zone of its gap to tj.
			zone := model.PauseZoneRegular
			if pol.ClassifyGap(tj.StartMinute-ti.EndMinute) == constraints.GapSplit {
				zone = model.PauseZoneSplit
			}
			ok, _ := pol.CanExtendBlock(ti.StartMinute, ti.EndMinute, zone, tj)
			if !ok {
				continue
			}
			out = append(out, model.Block{
				ID: blockID(tours, []int{i, j}), Day: day, TourIdx: []int{i, j},
				FirstStart: ti.StartMinute, LastEnd: tj.EndMinute,
				WorkMinutes: ti.DurationMinutes() + tj.DurationMinutes(), Zone: zone,
			})
		}
	}
	return out
}

func emitTriples(tours []model.Tour, day int, idxs []int, pairs []model.Block, pol constraints.Policy) []model.Block {
	inDay := map[int]bool{}
	for _, i := range idxs {
		inDay[i] = true
	}
	var out []model.Block
	for _, p := range pairs {
		last := p.TourIdx[len(p.TourIdx)-1]
		for _, k := range idxs {
			if k == p.TourIdx[0] || k == last {
				continue
			}
			tk := tours[k]
			if tk.StartMinute < tours[last].EndMinute {
				continue // only extend forward in time
			}
			ok, _ := pol.CanExtendBlock(p.FirstStart, p.LastEnd, p.Zone, tk)
			if !ok {
				continue
			}
			out = append(out, model.Block{
				ID: blockID(tours, []int{p.TourIdx[0], last, k}), Day: day,
				TourIdx:     []int{p.TourIdx[0], last, k},
				FirstStart:  p.FirstStart,
				LastEnd:     tk.EndMinute,
				WorkMinutes: p.WorkMinutes + tk.DurationMinutes(),
				Zone:        p.Zone,
			})
		}
	}
	return out
}

// score rewards long productive work-minutes and penalises large unproductive
// span. It is total-ordered and deterministic by construction (plain float
// arithmetic over integer inputs, ties broken by block-id lexicographically
// by the caller).
func score(tours []model.Tour, b model.Block) float64 {
	span := b.SpanMinutes()
	if span <= 0 {
		span = b.WorkMinutes
	}
	idle := span - b.WorkMinutes
	density := float64(b.WorkMinutes) / float64(span)
	sizeBonus := float64(len(b.TourIdx)-1) * 15.0 // rewards 3er > 2er > 1er, all else equal
	return float64(b.WorkMinutes) + 40*density + sizeBonus - 0.25*float64(idle)
}

// prune applies dominance pruning (same covered-tour-set, keep best score),
// the dynamic per-tour cap K(t), and the global N_MAX cap, all while never
// dropping a tour's only remaining covering block.
func prune(tours []model.Tour, scored []model.Block, opts Options) Pool {
	// Dominance: same covered-tour-set -> keep first occurrence (already
	// sorted best-first).
	seenSet := map[string]bool{}
	deduped := make([]model.Block, 0, len(scored))
	for _, b := range scored {
		key := b.ID // ID is already the sorted-tour-id join, i.e. the set key
		if seenSet[key] {
			continue
		}
		seenSet[key] = true
		deduped = append(deduped, b)
	}

	// Index blocks-per-tour to compute K(t) and the protected set.
	byTour := map[int][]int{} // tour idx -> indices into deduped
	for bi, b := range deduped {
		for _, ti := range b.TourIdx {
			byTour[ti] = append(byTour[ti], bi)
		}
	}

	protected := map[int]bool{}
	for ti, blockIdxs := range byTour {
		if len(blockIdxs) == 0 {
			continue
		}
		// blockIdxs are already in score-descending order because deduped is.
		best := blockIdxs[0]
		for _, bi := range blockIdxs {
			if len(deduped[bi].TourIdx) == 1 {
				best = bi // the single-tour "last resort" block, if present, is always protected
			}
		}
		protected[best] = true
		_ = ti
	}

	kept := make([]bool, len(deduped))
	keepCountByTour := map[int]int{}
	for bi, b := range deduped {
		if protected[bi] {
			kept[bi] = true
			for _, ti := range b.TourIdx {
				keepCountByTour[ti]++
			}
		}
	}
	for bi, b := range deduped {
		if kept[bi] {
			continue
		}
		withinCap := true
		for _, ti := range b.TourIdx {
			k := opts.KBase
			if len(byTour[ti]) < opts.Threshold {
				k = 2 * opts.KBase
			}
			if keepCountByTour[ti] >= k {
				withinCap = false
				break
			}
		}
		if withinCap {
			kept[bi] = true
			for _, ti := range b.TourIdx {
				keepCountByTour[ti]++
			}
		}
	}

	result := make([]model.Block, 0, len(deduped))
	resultProtected := map[int]bool{}
	for bi, b := range deduped {
		if !kept[bi] {
			continue
		}
		if protected[bi] {
			resultProtected[len(result)] = true
		}
		result = append(result, b)
	}

	if opts.NMax > 0 && len(result) > opts.NMax {
		result, resultProtected = capGlobally(result, resultProtected, opts.NMax)
	}
	_ = tours
	return Pool{Blocks: result, Protected: resultProtected}
}

// capGlobally strips the lowest-scored non-protected blocks until the pool
// is at most nMax, never touching a protected (last-resort) block.
func capGlobally(blocks []model.Block, protected map[int]bool, nMax int) ([]model.Block, map[int]bool) {
	if len(blocks) <= nMax {
		return blocks, protected
	}
	type idxScore struct {
		idx   int
		score float64
	}
	candidates := make([]idxScore, 0, len(blocks))
	for i, b := range blocks {
		if protected[i] {
			continue
		}
		candidates = append(candidates, idxScore{idx: i, score: b.Score})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score < candidates[j].score })

	toDrop := len(blocks) - nMax
	drop := map[int]bool{}
	for i := 0; i < toDrop && i < len(candidates); i++ {
		drop[candidates[i].idx] = true
	}

	out := make([]model.Block, 0, len(blocks)-len(drop))
	outProtected := map[int]bool{}
	for i, b := range blocks {
		if drop[i] {
			continue
		}
		if protected[i] {
			outProtected[len(out)] = true
		}
		out = append(out, b)
	}
	return out, outProtected
}
