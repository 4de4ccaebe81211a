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

package kernel

import "github.com/nexroute/roster-kernel/pkg/roster/model"

// assignDrivers matches selected columns against an optional named driver
// pool via Kuhn's augmenting-path bipartite matching (the same approach
// pkg/roster/dsearch uses for its path-cover lower bound, applied here to a
// column-to-driver admissibility graph instead of a tour-chaining one): an
// edge exists when a driver's qualifications cover every qualification the
// column's tours require and the driver carries enough weekly-hours
// capacity. Every column gets an id either way — matched columns get the
// driver's own id, unmatched columns keep their deterministic virtual id and
// surface a BLOCK violation, since no admissible real driver could be found
// for the qualification/hours mix they demand.
func assignDrivers(tours []model.Tour, selected []model.Column, drivers []model.Driver) ([]string, []model.Violation) {
	ids := make([]string, len(selected))
	for i, c := range selected {
		ids[i] = mintDriverID(c.Signature)
	}
	if len(drivers) == 0 {
		return ids, nil
	}

	adj := make([][]int, len(selected))
	for ci, c := range selected {
		for di, d := range drivers {
			if driverAdmits(tours, c, d) {
				adj[ci] = append(adj[ci], di)
			}
		}
	}

	matchOfDriver := make([]int, len(drivers))
	for i := range matchOfDriver {
		matchOfDriver[i] = -1
	}
	for ci := range selected {
		visited := make([]bool, len(drivers))
		tryKuhnDriver(ci, adj, visited, matchOfDriver)
	}

	matchedColumn := make([]bool, len(selected))
	for di, ci := range matchOfDriver {
		if ci != -1 {
			ids[ci] = drivers[di].ID
			matchedColumn[ci] = true
		}
	}

	var violations []model.Violation
	for ci, c := range selected {
		if !matchedColumn[ci] {
			violations = append(violations, model.Violation{
				Severity: model.SeverityBlock,
				Reason:   model.ReasonQual,
				ColumnID: c.ID,
				Detail:   "no admissible driver in the supplied pool covers this column's qualification/hours mix",
			})
		}
	}
	return ids, violations
}

// driverAdmits reports whether d may legally be assigned column c: every
// distinct non-empty qualification required by c's tours must be in d's
// qualification set, and d's own weekly-hours ceiling (if set) must not be
// exceeded by c's hours.
func driverAdmits(tours []model.Tour, c model.Column, d model.Driver) bool {
	have := make(map[string]bool, len(d.Qualifications))
	for _, q := range d.Qualifications {
		have[q] = true
	}
	for _, ti := range c.TourIdx {
		if ti < 0 || ti >= len(tours) {
			continue
		}
		if q := tours[ti].Qualification; q != "" && !have[q] {
			return false
		}
	}
	if d.MaxWeeklyHours != nil && c.WorkHours > *d.MaxWeeklyHours {
		return false
	}
	return true
}

// tryKuhnDriver attempts to find an augmenting path from column leftCol
// through adj, updating matchOfDriver in place on success.
func tryKuhnDriver(leftCol int, adj [][]int, visited []bool, matchOfDriver []int) bool {
	for _, driverIdx := range adj[leftCol] {
		if visited[driverIdx] {
			continue
		}
		visited[driverIdx] = true
		if matchOfDriver[driverIdx] == -1 || tryKuhnDriver(matchOfDriver[driverIdx], adj, visited, matchOfDriver) {
			matchOfDriver[driverIdx] = leftCol
			return true
		}
	}
	return false
}
