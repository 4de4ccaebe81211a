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

// Package kpi recomputes the final plan's summary statistics and re-checks
// every selected column against the constraints policy from scratch. A plan
// is never trusted on the word of the solver stages that produced it: KPI
// recomputation is the last, independent gate before a Plan is returned.
package kpi

import (
	"math"
	"sort"

	"github.com/nexroute/roster-kernel/pkg/roster/constraints"
	"github.com/nexroute/roster-kernel/pkg/roster/model"
)

// Evaluate recomputes KPIs and re-validates every selected column,
// independent of whatever producer (seed, CG, MIP) selected it. It sets no
// status itself: callers must treat a plan with BLOCK violations as unusable
// regardless of what upstream status accompanied it (kernel.Run marks such
// a plan INFEASIBLE with HARD_VIOLATION).
func Evaluate(tours []model.Tour, selected []model.Column, pol constraints.Policy) (model.KPIs, []model.Violation) {
	kpis := model.KPIs{
		HoursHistogram: map[int]int{},
		BlockMix:       map[int]int{},
	}
	var violations []model.Violation

	hoursByDriver := make([]float64, 0, len(selected))
	for _, c := range selected {
		kpis.DriversTotal++
		if c.DriverType == model.DriverTypePT {
			kpis.PTCount++
		} else {
			kpis.FTECount++
		}
		bucket := int(c.WorkHours/5) * 5
		kpis.HoursHistogram[bucket]++
		hoursByDriver = append(hoursByDriver, c.WorkHours)

		violations = append(violations, revalidateColumn(tours, c, pol)...)
	}

	kpis.GiniOfHours = gini(hoursByDriver)
	kpis.PeakFleet = peakFleet(tours, selected)

	violations = append(violations, checkCoverage(tours, selected)...)
	violations = append(violations, checkDisjointAssignment(selected)...)

	sort.Slice(violations, func(i, j int) bool {
		if violations[i].Severity != violations[j].Severity {
			return violations[i].Severity > violations[j].Severity // BLOCK first
		}
		if violations[i].ColumnID != violations[j].ColumnID {
			return violations[i].ColumnID < violations[j].ColumnID
		}
		return violations[i].Reason < violations[j].Reason
	})

	return kpis, violations
}

// HasBlockingViolation reports whether any violation carries BLOCK severity.
func HasBlockingViolation(violations []model.Violation) bool {
	for _, v := range violations {
		if v.Severity == model.SeverityBlock {
			return true
		}
	}
	return false
}

// revalidateColumn independently re-derives a column's chain legality from
// its raw tour set, rather than trusting the Cost/WorkHours the producer
// attached — a bug in blocks/columns/pricing must not silently pass KPI.
func revalidateColumn(tours []model.Tour, c model.Column, pol constraints.Policy) []model.Violation {
	var out []model.Violation
	if len(c.TourIdx) == 0 {
		return out
	}
	byDay := map[int][]model.Tour{}
	for _, ti := range c.TourIdx {
		if ti < 0 || ti >= len(tours) {
			out = append(out, model.Violation{Severity: model.SeverityBlock, Reason: model.ReasonOverlap, ColumnID: c.ID, Detail: "tour index out of range"})
			return out
		}
		t := tours[ti]
		byDay[t.Day] = append(byDay[t.Day], t)
	}

	days := make([]int, 0, len(byDay))
	for d := range byDay {
		days = append(days, d)
		sort.Slice(byDay[d], func(i, j int) bool { return byDay[d][i].StartMinute < byDay[d][j].StartMinute })
	}
	sort.Ints(days)

	weeklyMinutes := 0
	var prevDay = -1
	var prevLastEnd, prevTourCount int
	for _, d := range days {
		dayTours := byDay[d]
		if len(dayTours) > pol.MaxDailyTours {
			out = append(out, model.Violation{Severity: model.SeverityBlock, Reason: model.ReasonDailyTours, ColumnID: c.ID, Detail: "too many tours on one day"})
		}
		firstStart := dayTours[0].StartMinute
		zone := model.PauseZoneNone
		lastEnd := dayTours[0].EndMinute
		dayMinutes := dayTours[0].DurationMinutes()
		for i := 1; i < len(dayTours); i++ {
			gap := dayTours[i].StartMinute - lastEnd
			if zone == model.PauseZoneNone {
				// CanExtendBlock skips every check for PauseZoneNone, so the
				// first gap is checked against its own zone.
				zone = model.PauseZoneRegular
				if pol.ClassifyGap(gap) == constraints.GapSplit {
					zone = model.PauseZoneSplit
				}
			}
			ok, reason := pol.CanExtendBlock(firstStart, lastEnd, zone, dayTours[i])
			if !ok {
				out = append(out, model.Violation{Severity: model.SeverityBlock, Reason: reason, ColumnID: c.ID, Detail: "illegal in-block gap"})
			}
			if pol.ClassifyGap(gap) == constraints.GapSplit {
				zone = model.PauseZoneSplit
			} else {
				zone = model.PauseZoneRegular
			}
			lastEnd = dayTours[i].EndMinute
			dayMinutes += dayTours[i].DurationMinutes()
		}
		weeklyMinutes += dayMinutes

		if prevDay != -1 {
			ok, reason := pol.CanChainDays(prevDay, prevLastEnd, prevTourCount, d, firstStart, len(dayTours))
			if !ok {
				out = append(out, model.Violation{Severity: model.SeverityBlock, Reason: reason, ColumnID: c.ID, Detail: "illegal cross-day rest"})
			}
		}
		prevDay, prevLastEnd, prevTourCount = d, lastEnd, len(dayTours)
	}

	if float64(weeklyMinutes)/60.0 > pol.WeeklyHardCapHours+1e-9 {
		out = append(out, model.Violation{Severity: model.SeverityBlock, Reason: model.ReasonWeeklyCap, ColumnID: c.ID, Detail: "weekly hard cap exceeded"})
	}
	if c.DriverType == model.DriverTypePT && float64(weeklyMinutes)/60.0 > pol.PTMaxHours+1e-9 {
		out = append(out, model.Violation{Severity: model.SeverityWarn, Reason: model.ReasonWeeklyCap, ColumnID: c.ID, Detail: "part-time hour ceiling exceeded"})
	}
	return out
}

// checkCoverage confirms every tour is covered by exactly one selected column.
func checkCoverage(tours []model.Tour, selected []model.Column) []model.Violation {
	count := make([]int, len(tours))
	for _, c := range selected {
		for _, ti := range c.TourIdx {
			if ti >= 0 && ti < len(count) {
				count[ti]++
			}
		}
	}
	var out []model.Violation
	for ti, n := range count {
		if n == 0 {
			out = append(out, model.Violation{Severity: model.SeverityBlock, Reason: model.ReasonZeroSupport, Detail: "tour " + tours[ti].ID + " uncovered"})
		} else if n > 1 {
			out = append(out, model.Violation{Severity: model.SeverityBlock, Reason: model.ReasonOverlap, Detail: "tour " + tours[ti].ID + " covered more than once"})
		}
	}
	return out
}

// checkDisjointAssignment confirms no two selected columns share a tour
// index (a weaker restatement of checkCoverage's n>1 case, kept separate so
// a caller inspecting only per-pair violations can localise the offending
// column pair).
func checkDisjointAssignment(selected []model.Column) []model.Violation {
	owner := map[int]string{}
	var out []model.Violation
	for _, c := range selected {
		for _, ti := range c.TourIdx {
			if other, ok := owner[ti]; ok && other != c.ID {
				out = append(out, model.Violation{Severity: model.SeverityBlock, Reason: model.ReasonOverlap, ColumnID: c.ID, Detail: "shares a tour with column " + other})
			}
			owner[ti] = c.ID
		}
	}
	return out
}

// peakFleet returns the maximum number of distinct drivers simultaneously on
// shift across the week.
func peakFleet(tours []model.Tour, selected []model.Column) int {
	type event struct {
		minute int
		delta  int
	}
	var events []event
	for _, c := range selected {
		for _, ti := range c.TourIdx {
			if ti < 0 || ti >= len(tours) {
				continue
			}
			t := tours[ti]
			events = append(events, event{t.MinuteOfWeek(), 1}, event{t.EndMinuteOfWeek(), -1})
		}
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].minute != events[j].minute {
			return events[i].minute < events[j].minute
		}
		return events[i].delta < events[j].delta
	})
	cur, peak := 0, 0
	for _, e := range events {
		cur += e.delta
		if cur > peak {
			peak = cur
		}
	}
	return peak
}

// gini returns the Gini coefficient of a set of non-negative values, 0 for
// perfect equality. Used to report how evenly weekly hours are spread across
// the selected driver set.
func gini(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	sum := 0.0
	weightedSum := 0.0
	for i, v := range sorted {
		sum += v
		weightedSum += float64(i+1) * v
	}
	if sum == 0 {
		return 0
	}
	g := (2*weightedSum)/(float64(n)*sum) - float64(n+1)/float64(n)
	return math.Max(0, g)
}
