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

// Package constraints is the single source of truth for the numeric labour
// policy: legal gaps, rest, span, max-daily-tours and weekly-hours. Every
// other component (block builder, column generator, pricing oracle, KPI
// validation) consults this package rather than re-deriving the rules.
package constraints

import (
	"github.com/nexroute/roster-kernel/pkg/roster/calendar"
	"github.com/nexroute/roster-kernel/pkg/roster/model"
)

// Policy holds the tunable numeric constants. Zero-value Policy is invalid;
// use Default() or a value validated by pkg/roster/config.
type Policy struct {
	MinPause              int // minutes
	MaxPauseRegular       int // minutes
	SplitMin              int // minutes
	SplitMax              int // minutes
	MaxSpanRegularMinutes  int
	MaxSpanSplitMinutes    int
	MinRestMinutes         int
	MinRestAfter3TourMinutes int
	MaxNextDayToursAfter3Tour int
	MaxDailyTours          int
	WeeklyHardCapHours     float64
	FTETargetMinHours      float64
	FTETargetMaxHours      float64
	PTMaxHours             float64
}

// Default returns the spec's published default constants.
func Default() Policy {
	return Policy{
		MinPause:                  30,
		MaxPauseRegular:           60,
		SplitMin:                  360,
		SplitMax:                  360,
		MaxSpanRegularMinutes:     14 * 60,
		MaxSpanSplitMinutes:       16 * 60,
		MinRestMinutes:            11 * 60,
		MinRestAfter3TourMinutes:  14 * 60,
		MaxNextDayToursAfter3Tour: 2,
		MaxDailyTours:             3,
		WeeklyHardCapHours:        55,
		FTETargetMinHours:         42,
		FTETargetMaxHours:         53,
		PTMaxHours:                34, // configurable; this is the default ceiling for a part-time column
	}
}

// GapZone classifies a single inter-tour gap.
type GapZone int

const (
	GapIllegal GapZone = iota
	GapRegular
	GapSplit
)

// ClassifyGap returns which pause zone a gap (in minutes) belongs to.
func (p Policy) ClassifyGap(gapMinutes int) GapZone {
	if gapMinutes >= p.MinPause && gapMinutes <= p.MaxPauseRegular {
		return GapRegular
	}
	if gapMinutes >= p.SplitMin && gapMinutes <= p.SplitMax {
		return GapSplit
	}
	return GapIllegal
}

// MaxSpanForZone returns the maximum legal span for a pause zone.
func (p Policy) MaxSpanForZone(zone model.PauseZone) int {
	if zone == model.PauseZoneSplit {
		return p.MaxSpanSplitMinutes
	}
	return p.MaxSpanRegularMinutes
}

// GapBetweenTours returns the gap in minutes between two same-day tours
// assumed already ordered by start time.
func GapBetweenTours(earlier, later model.Tour) int {
	return calendar.GapMinutes(
		calendar.Interval{Start: earlier.StartMinute, End: earlier.EndMinute},
		calendar.Interval{Start: later.StartMinute, End: later.EndMinute},
	)
}

// CanExtendBlock reports whether appending tour to an in-progress block
// (described by its current first-start/last-end/zone) keeps the block legal.
// zone is model.PauseZoneNone for an empty block (first tour).
func (p Policy) CanExtendBlock(firstStart, lastEnd int, zone model.PauseZone, tour model.Tour) (bool, model.ReasonCode) {
	if zone == model.PauseZoneNone {
		return true, ""
	}
	gap := tour.StartMinute - lastEnd
	if gap < 0 {
		return false, model.ReasonOverlap
	}
	gapZone := p.ClassifyGap(gap)
	if gapZone == GapIllegal {
		return false, model.ReasonPauseZone
	}
	// A block's gaps must all fall in the same zone; mixed blocks are illegal.
	wantZone := model.PauseZoneRegular
	if gapZone == GapSplit {
		wantZone = model.PauseZoneSplit
	}
	if zone != model.PauseZoneNone && zone != wantZone {
		return false, model.ReasonPauseZone
	}
	newSpan := tour.EndMinute - firstStart
	if newSpan > p.MaxSpanForZone(wantZone) {
		return false, model.ReasonSpan
	}
	return true, ""
}

// RestBetween computes the rest, in minutes, between the end of the earlier
// block (day, lastEnd) and the start of the later block (day, firstStart),
// expressed in absolute week-minute terms via calendar.RestBetween.
func RestBetween(earlierDay, earlierLastEnd, laterDay, laterFirstStart int) int {
	return calendar.RestBetween(
		calendar.Interval{End: calendar.MinutesOfWeek(earlierDay, earlierLastEnd)},
		calendar.Interval{Start: calendar.MinutesOfWeek(laterDay, laterFirstStart)},
	)
}

// CanChainDays reports whether a block ending on day/lastEnd with
// numToursEarlier tours can be legally followed by a block starting on
// nextDay/nextFirstStart with numToursNext tours.
func (p Policy) CanChainDays(earlierDay, earlierLastEnd, numToursEarlier, laterDay, laterFirstStart, numToursNext int) (bool, model.ReasonCode) {
	rest := RestBetween(earlierDay, earlierLastEnd, laterDay, laterFirstStart)
	if numToursEarlier >= p.MaxDailyTours {
		if rest < p.MinRestAfter3TourMinutes {
			return false, model.ReasonRest14hAfter3Tour
		}
		if numToursNext > p.MaxNextDayToursAfter3Tour {
			return false, model.ReasonRest14hAfter3Tour
		}
		return true, ""
	}
	if rest < p.MinRestMinutes {
		return false, model.ReasonRest11h
	}
	return true, ""
}

// DriverState is the minimal running state of a column needed to evaluate
// whether a new block may be appended to it.
type DriverState struct {
	WeeklyHoursSoFar float64
	LastDay          int
	LastBlockEnd     int // minute-of-day
	LastDayTours     int
	HasAnyBlock      bool
}

// DriverCanTake reports whether appending candidate (on candidateDay, with
// the given timing and tour count) to a driver currently in state st is
// legal, and if not, why.
func (p Policy) DriverCanTake(st DriverState, candidateDay, candidateFirstStart, candidateLastEnd, candidateTours int, candidateWorkHours float64) (bool, model.ReasonCode) {
	if st.HasAnyBlock {
		if candidateDay == st.LastDay {
			return false, model.ReasonOverlap // at most one block per day per driver
		}
		ok, reason := p.CanChainDays(st.LastDay, st.LastBlockEnd, st.LastDayTours, candidateDay, candidateFirstStart, candidateTours)
		if !ok {
			return false, reason
		}
	}
	if st.WeeklyHoursSoFar+candidateWorkHours > p.WeeklyHardCapHours {
		return false, model.ReasonWeeklyCap
	}
	if candidateTours > p.MaxDailyTours {
		return false, model.ReasonDailyTours
	}
	return true, ""
}
