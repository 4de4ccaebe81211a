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

// Package kernel wires every stage of the solver — constraints, blocks,
// columns, pricing, master, D-search, signing and KPI — into the single
// public entry point a caller needs: Run. It owns no state of its own; it
// only threads a runctx.Run and a validated config.Config through the
// pipeline described in the package-level docs of each stage.
package kernel

import (
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/nexroute/roster-kernel/pkg/roster/config"
	"github.com/nexroute/roster-kernel/pkg/roster/dsearch"
	"github.com/nexroute/roster-kernel/pkg/roster/events"
	"github.com/nexroute/roster-kernel/pkg/roster/kpi"
	"github.com/nexroute/roster-kernel/pkg/roster/metrics"
	"github.com/nexroute/roster-kernel/pkg/roster/model"
	"github.com/nexroute/roster-kernel/pkg/roster/runctx"
	"github.com/nexroute/roster-kernel/pkg/roster/signing"
)

// ErrDuplicateTourID is returned by ValidateTours when two tours share an ID.
type ErrDuplicateTourID struct{ ID string }

func (e ErrDuplicateTourID) Error() string { return "kernel: duplicate tour id " + e.ID }

// ErrOutOfRange is returned by ValidateTours when a tour's fields are invalid.
type ErrOutOfRange struct{ ID, Detail string }

func (e ErrOutOfRange) Error() string { return "kernel: tour " + e.ID + ": " + e.Detail }

// ValidateTours performs the input-boundary checks the pricing/block/column
// stages assume already hold: unique IDs, in-range minutes, non-empty spans.
// Every violation is collected and returned together via multierr rather
// than failing fast on the first one, so a caller sees the full picture of a
// bad forecast in one round trip.
func ValidateTours(tours []model.Tour) error {
	var err error
	seen := map[string]bool{}
	for _, t := range tours {
		if t.ID == "" {
			err = multierr.Append(err, ErrOutOfRange{ID: "<empty>", Detail: "tour id must be non-empty"})
			continue
		}
		if seen[t.ID] {
			err = multierr.Append(err, ErrDuplicateTourID{ID: t.ID})
			continue
		}
		seen[t.ID] = true
		if t.Day < 0 || t.Day > 6 {
			err = multierr.Append(err, ErrOutOfRange{ID: t.ID, Detail: "day must be 0..6"})
		}
		if t.StartMinute < 0 || t.StartMinute >= 1440 {
			err = multierr.Append(err, ErrOutOfRange{ID: t.ID, Detail: "start_minute must be 0..1439"})
		}
		if t.EndMinute <= t.StartMinute {
			err = multierr.Append(err, ErrOutOfRange{ID: t.ID, Detail: "end_minute must exceed start_minute"})
		}
	}
	return err
}

// Options bundles the inputs a single kernel run needs beyond the tour
// forecast itself.
type Options struct {
	Sink events.Sink
	Log  *zap.SugaredLogger
	// Drivers is an optional named driver pool. When supplied, selected
	// columns are matched against it (see assignDrivers); when nil or empty,
	// every driver gets a deterministic virtual id as before.
	Drivers []model.Driver
}

// Config is a re-export of the validated configuration bundle, kept as its
// own name in this package so callers only need to import pkg/roster/kernel
// for the common path.
type Config = config.Config

// Run executes one full solve: validates input, builds the run context,
// drives the D-search outer loop to a selected column set, recomputes KPIs,
// and returns a fully-populated, independently-signed Plan.
func Run(tours []model.Tour, cfg config.Config, opts Options) (plan model.Plan) {
	validation := config.Validate(cfg)
	cfg = validation.Config

	start := time.Now()
	budget := runctx.NewBudget(
		time.Duration(cfg.TimeBudgetSeconds*float64(time.Second)),
		cfg.PhaseSlices.Profiling, cfg.PhaseSlices.Phase1, cfg.PhaseSlices.Phase2, cfg.PhaseSlices.LNS,
		start,
	)
	mc := metrics.NewCollectors()
	run := runctx.New(cfg.Seed, budget, opts.Log, opts.Sink, mc)
	defer func() { mc.RunDurationSeconds.Observe(time.Since(start).Seconds()) }()

	if err := ValidateTours(tours); err != nil {
		return model.Plan{
			Status:      model.StatusInfeasible,
			ReasonCodes: []model.ReasonCode{model.ReasonInputOutOfRange},
		}
	}

	pol := cfg.Policy()

	outcome := dsearch.Search(tours, pol, cfg, run)

	plan = model.Plan{
		Status:      outcome.Status,
		ReasonCodes: append([]model.ReasonCode(nil), validation.ReasonCodes...),
	}
	if outcome.Status == model.StatusInfeasible || outcome.Status == model.StatusZeroSupport {
		plan.ReasonCodes = append(plan.ReasonCodes, model.ReasonInfeasibleUnderCap)
		return plan
	}

	kpis, violations := kpi.Evaluate(tours, outcome.Selected, pol)
	plan.KPIs = kpis

	driverIDs, qualViolations := assignDrivers(tours, outcome.Selected, opts.Drivers)
	violations = append(violations, qualViolations...)
	plan.Violations = violations
	if kpi.HasBlockingViolation(violations) {
		plan.Status = model.StatusInfeasible
		plan.ReasonCodes = append(plan.ReasonCodes, model.ReasonHardViolation)
		return plan
	}

	plan.Assignments = toAssignments(tours, outcome.Selected, driverIDs, outcome.Blocks)
	sort.Slice(plan.Assignments, func(i, j int) bool {
		if plan.Assignments[i].DriverID != plan.Assignments[j].DriverID {
			return plan.Assignments[i].DriverID < plan.Assignments[j].DriverID
		}
		return plan.Assignments[i].Day < plan.Assignments[j].Day
	})

	plan.InputHash = signing.InputHash(tours)
	plan.ConfigHash = signing.ConfigHash(cfg.CanonicalPairs())
	outputHash, err := signing.OutputHash(plan.Assignments)
	if err != nil {
		plan.Status = model.StatusInfeasible
		plan.ReasonCodes = append(plan.ReasonCodes, model.ReasonHardViolation)
		return plan
	}
	plan.OutputHash = outputHash

	if overruns := budget.SevereOverruns(); len(overruns) > 0 {
		mc.BudgetOverruns.Add(float64(len(overruns)))
		plan.ReasonCodes = append(plan.ReasonCodes, model.ReasonBudgetOverrun)
	}
	return plan
}

// driverIDNamespace scopes the deterministic, name-based driver ids minted
// below so they never collide with UUIDs minted by an unrelated system.
var driverIDNamespace = uuid.MustParse("7b6f2e2e-2c0e-4f1a-9f1a-000000000001")

// mintDriverID derives a short, stable, prefixed id from a column's
// signature via a name-based (SHA-1) UUID, the same "short prefixed string,
// not a raw UUID" shape as the original source's generate_plan_id() —
// deterministic across runs because it is a pure function of the column's
// covered-tour-set signature, never of wall-clock time or a random UUID v4.
func mintDriverID(signature string) string {
	id := uuid.NewSHA1(driverIDNamespace, []byte(signature))
	return "D-" + strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:8])
}

// toAssignments expands each selected column, under its resolved driver id
// (ids[i] aligned with selected[i], see assignDrivers), into one Assignment
// per block-day. blocks is the run's block arena that c.BlockIdx indexes
// into, used to resolve the one block actually placed on each day.
func toAssignments(tours []model.Tour, selected []model.Column, ids []string, blocks []model.Block) []model.Assignment {
	var out []model.Assignment
	for i, c := range selected {
		driverID := ids[i]
		byDay := map[int][]string{}
		for _, ti := range c.TourIdx {
			t := tours[ti]
			byDay[t.Day] = append(byDay[t.Day], t.ID)
		}
		dayBlockID := map[int]string{}
		for _, bi := range c.BlockIdx {
			b := blocks[bi]
			dayBlockID[b.Day] = b.ID
		}
		for day, tourIDs := range byDay {
			sort.Strings(tourIDs)
			out = append(out, model.Assignment{
				DriverID:   driverID,
				DriverType: c.DriverType,
				TourIDs:    tourIDs,
				Day:        day,
				BlockID:    dayBlockID[day],
			})
		}
	}
	return out
}
