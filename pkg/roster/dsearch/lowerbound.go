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

package dsearch

import (
	"sort"

	"github.com/nexroute/roster-kernel/pkg/roster/constraints"
	"github.com/nexroute/roster-kernel/pkg/roster/model"
)

// LowerBound returns the tightest of three independent lower bounds on the
// driver count any legal plan can use: the total-hours bound (nobody can
// work more than the weekly hard cap), the peak-concurrency bound (nobody
// can be in two places at once), and the minimum path-cover bound (a
// driver's week is a chain of pairwise-chainable tours, so the fewest
// chains needed to cover every tour is a hard floor). No MILP or graph
// library appears anywhere in the retrieved corpus for the matching this
// needs, so the path cover is computed via a from-scratch Kuhn augmenting-
// path bipartite matcher; see DESIGN.md.
func LowerBound(tours []model.Tour, pol constraints.Policy) int {
	hours := hoursBound(tours, pol)
	peak := peakConcurrencyBound(tours)
	cover := pathCoverBound(tours, pol)
	best := hours
	if peak > best {
		best = peak
	}
	if cover > best {
		best = cover
	}
	if best < 1 && len(tours) > 0 {
		best = 1
	}
	return best
}

func hoursBound(tours []model.Tour, pol constraints.Policy) int {
	totalMinutes := 0
	for _, t := range tours {
		totalMinutes += t.DurationMinutes()
	}
	capMinutes := pol.WeeklyHardCapHours * 60
	if capMinutes <= 0 {
		return len(tours)
	}
	return ceilDiv(totalMinutes, int(capMinutes))
}

func ceilDiv(a, b int) int {
	if b <= 0 {
		return a
	}
	if a%b == 0 {
		return a / b
	}
	return a/b + 1
}

// peakConcurrencyBound sweeps the absolute week-minute timeline and returns
// the maximum number of tours simultaneously in progress.
func peakConcurrencyBound(tours []model.Tour) int {
	type event struct {
		minute int
		delta  int
	}
	events := make([]event, 0, 2*len(tours))
	for _, t := range tours {
		events = append(events, event{t.MinuteOfWeek(), 1})
		events = append(events, event{t.EndMinuteOfWeek(), -1})
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].minute != events[j].minute {
			return events[i].minute < events[j].minute
		}
		// Process departures before arrivals at the same instant: two
		// back-to-back tours at the exact boundary minute do not overlap.
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

// pathCoverBound treats tours as DAG nodes with an edge i -> j when the same
// driver could legally do tour i immediately followed by tour j (same-day
// adjacency within the pause-zone rules, or a later day with enough rest),
// and returns the minimum number of chains needed to cover every node:
// N - (maximum bipartite matching between "tour as predecessor" and "tour
// as successor" copies).
func pathCoverBound(tours []model.Tour, pol constraints.Policy) int {
	n := len(tours)
	if n == 0 {
		return 0
	}
	adj := make([][]int, n)
	for i, a := range tours {
		for j, b := range tours {
			if i == j {
				continue
			}
			if canFollow(a, b, pol) {
				adj[i] = append(adj[i], j)
			}
		}
	}
	matchOfRight := make([]int, n)
	for i := range matchOfRight {
		matchOfRight[i] = -1
	}
	matched := 0
	for left := 0; left < n; left++ {
		visited := make([]bool, n)
		if tryKuhn(left, adj, visited, matchOfRight) {
			matched++
		}
	}
	return n - matched
}

// canFollow reports whether tour b could immediately follow tour a in a
// single driver's week: same day with a legal pause-zone gap, or a later
// day with enough rest under the (conservative) single-tour chaining rule.
func canFollow(a, b model.Tour, pol constraints.Policy) bool {
	if a.Day == b.Day {
		if b.StartMinute < a.EndMinute {
			return false
		}
		gap := b.StartMinute - a.EndMinute
		return pol.ClassifyGap(gap) != constraints.GapIllegal
	}
	if b.Day < a.Day {
		return false
	}
	ok, _ := pol.CanChainDays(a.Day, a.EndMinute, 1, b.Day, b.StartMinute, 1)
	return ok
}

// tryKuhn attempts to find an augmenting path from left via adj, updating
// matchOfRight in place on success.
func tryKuhn(left int, adj [][]int, visited []bool, matchOfRight []int) bool {
	for _, right := range adj[left] {
		if visited[right] {
			continue
		}
		visited[right] = true
		if matchOfRight[right] == -1 || tryKuhn(matchOfRight[right], adj, visited, matchOfRight) {
			matchOfRight[right] = left
			return true
		}
	}
	return false
}
