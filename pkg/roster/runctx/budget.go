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

package runctx

import (
	"time"

	"golang.org/x/time/rate"
)

// Phase names the four budget slices from §6's phase_slices.
type Phase string

const (
	PhaseProfiling Phase = "profiling"
	PhasePhase1    Phase = "phase1"
	PhasePhase2    Phase = "phase2"
	PhaseLNS       Phase = "lns"
)

// Budget tracks a run's total wall-clock allowance and its per-phase slices.
// It is passed by explicit pointer to every component that needs to consult
// it at a suspension point — never read from a global.
type Budget struct {
	start        time.Time
	total        time.Duration
	slices       map[Phase]time.Duration
	overran      map[Phase]bool
	limiter      *rate.Limiter
	nowFn        func() time.Time
}

// NewBudget builds a Budget from a total duration and four fractions
// (profiling, phase1, phase2, lns) summing to <= 1.0. The suspension-point
// poll rate is capped at 50Hz via golang.org/x/time/rate so a very tight
// budget cannot spin-poll the clock unboundedly between suspension points.
func NewBudget(total time.Duration, profiling, phase1, phase2, lns float64, now time.Time) *Budget {
	return &Budget{
		start: now,
		total: total,
		slices: map[Phase]time.Duration{
			PhaseProfiling: time.Duration(float64(total) * profiling),
			PhasePhase1:    time.Duration(float64(total) * phase1),
			PhasePhase2:    time.Duration(float64(total) * phase2),
			PhaseLNS:       time.Duration(float64(total) * lns),
		},
		overran: map[Phase]bool{},
		limiter: rate.NewLimiter(rate.Limit(50), 1),
		nowFn:   func() time.Time { return now },
	}
}

// Elapsed returns how much wall-clock time has passed between the run's
// start and the given now.
func (b *Budget) Elapsed(now time.Time) time.Duration {
	return now.Sub(b.start)
}

// WithClock replaces the Budget's stored clock function. No Budget method
// reads it: Elapsed and PhaseOverran take their times as arguments.
func (b *Budget) WithClock(nowFn func() time.Time) *Budget {
	b.nowFn = nowFn
	return b
}

// PhaseOverran reports whether the given phase's slice has elapsed, given
// how much wall-clock time that phase itself has consumed so far. Overrun
// beyond 10% of the slice is the threshold at which callers should record
// model.ReasonBudgetOverrun and fall back to best-so-far.
func (b *Budget) PhaseOverran(phase Phase, phaseElapsed time.Duration) bool {
	slice, ok := b.slices[phase]
	if !ok {
		return false
	}
	overran := phaseElapsed > slice
	if overran && phaseElapsed > slice+slice/10 {
		b.overran[phase] = true
	}
	return overran
}

// SevereOverruns returns the phases whose overrun exceeded the 10% grace
// threshold, i.e. those that should be reported as BUDGET_OVERRUN.
func (b *Budget) SevereOverruns() []Phase {
	out := make([]Phase, 0, len(b.overran))
	for p, v := range b.overran {
		if v {
			out = append(out, p)
		}
	}
	return out
}

// Slice returns the allotted duration for a phase.
func (b *Budget) Slice(phase Phase) time.Duration {
	return b.slices[phase]
}

// Total returns the run's total wall-clock budget.
func (b *Budget) Total() time.Duration {
	return b.total
}

// PollSuspensionPoint rate-limits repeated suspension-point checks so a tight
// loop between column-generation rounds cannot busy-poll the clock faster
// than the configured cap.
func (b *Budget) PollSuspensionPoint() {
	time.Sleep(b.limiter.Reserve().Delay())
}
