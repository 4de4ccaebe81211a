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

// Package dsearch is the outer loop: a lexicographic "D-search" that first
// finds the minimum number of drivers D* any legal plan can use, then — with
// D fixed at D* — re-solves the master problem against successively refined
// objectives (part-time hour share, then block-mix quality), so that every
// later objective can only break ties left by the earlier ones. The column
// pool built while searching for D* is carried forward unchanged; only the
// RMP/MIP objective vector changes between phases.
package dsearch

import (
	"errors"
	"sort"
	"time"

	"github.com/avast/retry-go"

	"github.com/nexroute/roster-kernel/pkg/roster/blocks"
	"github.com/nexroute/roster-kernel/pkg/roster/columns"
	"github.com/nexroute/roster-kernel/pkg/roster/config"
	"github.com/nexroute/roster-kernel/pkg/roster/constraints"
	"github.com/nexroute/roster-kernel/pkg/roster/master"
	"github.com/nexroute/roster-kernel/pkg/roster/model"
	"github.com/nexroute/roster-kernel/pkg/roster/pricing"
	"github.com/nexroute/roster-kernel/pkg/roster/runctx"
)

// Outcome is the result of the full D-search: the minimum feasible driver
// count, the status it was found at, and the column set selected for it.
type Outcome struct {
	Status      model.Status
	DriverCount int
	Selected    []model.Column // the winning columns, chosen for the final lexicographic phase
	ColumnPool  []model.Column // every column discovered along the way, for KPI/debugging
	Blocks      []model.Block  // the block arena Selected's BlockIdx values index into
	ReasonCodes []model.ReasonCode
}

// Search runs the full lexicographic outer loop.
func Search(tours []model.Tour, pol constraints.Policy, cfg config.Config, run *runctx.Run) Outcome {
	blockOpts := blocks.DefaultOptions(pol)
	blockOpts.KBase = cfg.KPerTour
	blockOpts.NMax = cfg.NPoolCap
	blockOpts.Metrics = run.Metrics
	blockPool := blocks.Build(tours, blockOpts)
	byDay := map[int][]int{}
	for bi, b := range blockPool.Blocks {
		byDay[b.Day] = append(byDay[b.Day], bi)
	}

	pool := columns.NewPool()
	for _, c := range columns.Seed(tours, blockPool.Blocks, pol) {
		pool.Add(c)
	}

	lb := LowerBound(tours, pol)
	ub := upperBoundFromSeeds(pool.Columns, len(tours))
	if ub < lb {
		ub = lb
	}

	run.Events.Emit("phase_started", "dsearch", "driver-count search", map[string]any{"lower_bound": lb, "upper_bound": ub})
	run.Log.Infow("driver-count search started", "lower_bound", lb, "upper_bound", ub)

	bestD := -1
	var bestCols []model.Column
	var bestStatus model.Status

	// Coarse-to-fine monotone search: feasibility is monotone non-decreasing
	// in D (if D drivers suffice, D+1 do too), so a linear scan from lb
	// upward finds the first feasible D; we keep it simple and deterministic
	// rather than bisecting, since ub-lb is small in practice and every
	// evaluation reuses the already-discovered column pool.
	for d := lb; d <= ub; d++ {
		if run.Cancel.Cancelled() {
			return Outcome{Status: model.StatusPartial, ColumnPool: pool.Columns, ReasonCodes: []model.ReasonCode{model.ReasonBudgetOverrun}}
		}
		run.Budget.PollSuspensionPoint()

		run.Metrics.DSearchIterations.Inc()
		status, selected := solveForCap(tours, blockPool.Blocks, byDay, pool, pol, cfg, run, d, driverCountObjective)
		run.Events.Emit("mip_improved", "dsearch", "driver-count probe", map[string]any{"driver_cap": d, "status": string(status)})
		run.Log.Debugw("driver-count probe", "driver_cap", d, "status", string(status))
		if status == model.StatusOptimal || status == model.StatusFeasible {
			bestD = d
			bestCols = selected
			bestStatus = status
			break
		}
	}

	if bestD == -1 {
		return Outcome{Status: model.StatusInfeasible, ColumnPool: pool.Columns, ReasonCodes: []model.ReasonCode{model.ReasonInfeasibleUnderCap}}
	}

	// Phase 2: fix D = bestD, minimise part-time-hour share.
	if status, selected := solveForCap(tours, blockPool.Blocks, byDay, pool, pol, cfg, run, bestD, ptShareObjective(pol)); status == model.StatusOptimal || status == model.StatusFeasible {
		bestCols = selected
		bestStatus = status
	}

	// Phase 3: fix D = bestD, minimise the block-mix cost (fewer, fuller blocks).
	if status, selected := solveForCap(tours, blockPool.Blocks, byDay, pool, pol, cfg, run, bestD, blockMixObjective); status == model.StatusOptimal || status == model.StatusFeasible {
		bestCols = selected
		bestStatus = status
	}

	// Phase 4: signature tie-break is already resolved deterministically by
	// the simplex's Bland's-rule pivoting and the branch-and-bound's fixed
	// traversal order, so no further pass is needed; sort the final
	// selection by signature purely for a stable, reproducible output order.
	sort.Slice(bestCols, func(i, j int) bool { return bestCols[i].Signature < bestCols[j].Signature })

	return Outcome{
		Status:      bestStatus,
		DriverCount: bestD,
		Selected:    bestCols,
		ColumnPool:  pool.Columns,
		Blocks:      blockPool.Blocks,
	}
}

var errMIPTimeout = errors.New("dsearch: mip solve timed out")

// objectiveFn assigns a per-column cost for one lexicographic phase.
type objectiveFn func(c model.Column) float64

func driverCountObjective(c model.Column) float64 { return 1.0 }

func ptShareObjective(pol constraints.Policy) objectiveFn {
	return func(c model.Column) float64 {
		if c.DriverType == model.DriverTypePT {
			return c.WorkHours
		}
		return 0.0
	}
}

func blockMixObjective(c model.Column) float64 {
	// Fewer, fuller blocks are preferred: a column made of many small blocks
	// costs more than one made of a few large ones, at fixed weekly hours.
	if c.DaysWorked == 0 {
		return 0
	}
	return float64(c.DaysWorked) / (1.0 + c.WorkHours)
}

// solveForCap runs column generation to convergence for one driver cap,
// seeded from and feeding back into the shared pool, then hands the
// resulting column set to the restricted and (if budget remains) final MIP.
func solveForCap(tours []model.Tour, blockPool []model.Block, byDay map[int][]int, pool *columns.Pool, pol constraints.Policy, cfg config.Config, run *runctx.Run, driverCap int, obj objectiveFn) (model.Status, []model.Column) {
	const maxCGRounds = 50
	for round := 0; round < maxCGRounds; round++ {
		if run.Cancel.Cancelled() {
			return model.StatusPartial, nil
		}
		run.Metrics.CGRounds.Inc()
		problem := toProblem(pool.Columns, tours, driverCap, obj)
		if missing := master.ZeroSupportCheck(problem); len(missing) > 0 {
			return model.StatusZeroSupport, nil
		}
		rmp := master.SolveRMP(problem)
		if rmp.Status != master.RMPOptimal {
			return model.StatusInfeasible, nil
		}
		duals := make(map[int]float64, len(rmp.Duals))
		for ti, d := range rmp.Duals {
			duals[ti] = d
		}
		priced := pricing.Produce(tours, blockPool, byDay, duals, pol, pricing.Budget{
			Deadline:   time.Now().Add(50 * time.Millisecond),
			MaxLabels:  2000,
			MaxColumns: 32,
			Cache:      run.Cache,
		})
		added := 0
		for _, c := range priced.Columns {
			if pool.Add(c) {
				added++
				run.Metrics.ColumnsGenerated.Inc()
				run.Events.Emit("column_generated", "dsearch", c.Signature, map[string]any{"driver_cap": driverCap})
			}
		}
		run.Log.Debugw("column-generation round", "driver_cap", driverCap, "round", round, "added", added)
		if added == 0 || priced.NoImproving {
			break
		}
	}

	problem := toProblem(pool.Columns, tours, driverCap, obj)
	if missing := master.ZeroSupportCheck(problem); len(missing) > 0 {
		return model.StatusZeroSupport, nil
	}
	rmp := master.SolveRMP(problem)
	if rmp.Status != master.RMPOptimal {
		return model.StatusInfeasible, nil
	}

	if run.Cancel.Cancelled() {
		return model.StatusPartial, nil
	}
	subset := master.EliteAndFreshSubset(problem, rmp.Values, cfg.NSubsetCap)
	restricted := solveMIPWithRetry(problem, subset, cfg.MIPTimeLimitRestricted, "restricted", run)
	switch restricted.Status {
	case master.MIPOptimal, master.MIPFeasible:
		if run.Cancel.Cancelled() {
			return model.StatusPartial, nil
		}
		final := solveMIPWithRetry(problem, nil, cfg.MIPTimeLimitFinal, "final", run)
		switch final.Status {
		case master.MIPOptimal:
			return model.StatusOptimal, selectColumns(pool.Columns, final.Selected)
		case master.MIPFeasible:
			return model.StatusFeasible, selectColumns(pool.Columns, final.Selected)
		default:
			return model.StatusFeasible, selectColumns(pool.Columns, restricted.Selected)
		}
	case master.MIPTimeout:
		return model.StatusTimeout, nil
	default:
		return model.StatusInfeasible, nil
	}
}

// solveMIPWithRetry calls master.SolveMIP against a deadline derived from
// 75% of timeLimitSeconds, and — if the first attempt returns TIMEOUT —
// retries once with the remaining 25%. The two attempts together never exceed
// timeLimitSeconds, so a retry can never itself cause a budget overrun.
// Every attempt is recorded against run.Metrics.MIPCalls, labelled by stage
// and the resulting status.
func solveMIPWithRetry(problem master.Problem, subset []int, timeLimitSeconds float64, stage string, run *runctx.Run) master.MIPResult {
	var result master.MIPResult
	attempt := 0
	_ = retry.Do(
		func() error {
			attempt++
			slice := timeLimitSeconds * 0.75
			if attempt > 1 {
				slice = timeLimitSeconds * 0.25
			}
			result = master.SolveMIP(problem, subset, time.Now().Add(time.Duration(slice*float64(time.Second))))
			run.Metrics.MIPCalls.WithLabelValues(stage, string(result.Status)).Inc()
			run.Log.Debugw("mip solve attempt", "stage", stage, "attempt", attempt, "status", string(result.Status))
			if result.Status == master.MIPTimeout {
				return errMIPTimeout
			}
			return nil
		},
		retry.Attempts(2),
		retry.Delay(0),
		retry.LastErrorOnly(true),
	)
	return result
}

func toProblem(cols []model.Column, tours []model.Tour, driverCap int, obj objectiveFn) master.Problem {
	objective := make([]float64, len(cols))
	for i, c := range cols {
		objective[i] = obj(c)
	}
	return master.Problem{Columns: cols, NumTours: len(tours), DriverCap: driverCap, Objective: objective}
}

func selectColumns(pool []model.Column, idx []int) []model.Column {
	out := make([]model.Column, 0, len(idx))
	for _, i := range idx {
		if i >= 0 && i < len(pool) {
			out = append(out, pool[i])
		}
	}
	return out
}

// upperBoundFromSeeds derives a safe starting upper bound: the number of
// distinct singleton seed columns (one driver per tour) is always feasible,
// since the seed pool guarantees one per tour.
func upperBoundFromSeeds(cols []model.Column, numTours int) int {
	if numTours == 0 {
		return 0
	}
	singletons := 0
	for _, c := range cols {
		if len(c.TourIdx) == 1 {
			singletons++
		}
	}
	if singletons == 0 {
		return numTours
	}
	return singletons
}
