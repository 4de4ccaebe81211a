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

import (
	"testing"

	"github.com/nexroute/roster-kernel/pkg/roster/model"
)

func hoursPtr(h float64) *float64 { return &h }

func twoTourSetup() ([]model.Tour, []model.Column) {
	tours := []model.Tour{
		{ID: "T1", Day: 0, StartMinute: 480, EndMinute: 960, Qualification: "HAZMAT"},
		{ID: "T2", Day: 1, StartMinute: 480, EndMinute: 960},
	}
	cols := []model.Column{
		{ID: "C1", TourIdx: []int{0}, WorkHours: 8, Signature: "sig-c1"},
		{ID: "C2", TourIdx: []int{1}, WorkHours: 8, Signature: "sig-c2"},
	}
	return tours, cols
}

func TestAssignDriversEmptyPoolKeepsVirtualIDs(t *testing.T) {
	tours, cols := twoTourSetup()
	ids, violations := assignDrivers(tours, cols, nil)

	if len(violations) != 0 {
		t.Fatalf("expected no violations with an empty pool, got %v", violations)
	}
	for i, id := range ids {
		if id != mintDriverID(cols[i].Signature) {
			t.Errorf("ids[%d] = %q, want the virtual id %q", i, id, mintDriverID(cols[i].Signature))
		}
	}
}

func TestAssignDriversMatchesByQualification(t *testing.T) {
	tours, cols := twoTourSetup()
	drivers := []model.Driver{
		{ID: "DRV-A", Qualifications: []string{"HAZMAT"}},
		{ID: "DRV-B"},
	}

	ids, violations := assignDrivers(tours, cols, drivers)

	if len(violations) != 0 {
		t.Fatalf("expected a full match, got violations %v", violations)
	}
	if ids[0] != "DRV-A" {
		t.Errorf("column requiring HAZMAT should match DRV-A, got %q", ids[0])
	}
	if ids[1] != "DRV-B" {
		t.Errorf("unqualified column should match the remaining driver DRV-B, got %q", ids[1])
	}
}

func TestAssignDriversRejectsMissingQualification(t *testing.T) {
	tours, cols := twoTourSetup()
	drivers := []model.Driver{
		{ID: "DRV-A"}, // no HAZMAT
	}

	ids, violations := assignDrivers(tours, cols, drivers)

	if len(violations) != 1 {
		t.Fatalf("expected exactly one BLOCK violation for the unmatched HAZMAT column, got %v", violations)
	}
	v := violations[0]
	if v.Severity != model.SeverityBlock {
		t.Errorf("Severity = %v, want SeverityBlock", v.Severity)
	}
	if v.Reason != model.ReasonQual {
		t.Errorf("Reason = %v, want ReasonQual", v.Reason)
	}
	if v.ColumnID != "C1" {
		t.Errorf("ColumnID = %q, want C1", v.ColumnID)
	}
	if ids[0] != mintDriverID(cols[0].Signature) {
		t.Errorf("unmatched column should keep its virtual id, got %q", ids[0])
	}
	if ids[1] != "DRV-A" {
		t.Errorf("unqualified column should still match DRV-A, got %q", ids[1])
	}
}

func TestAssignDriversRejectsHoursOverCeiling(t *testing.T) {
	tours, cols := twoTourSetup()
	cols[1].TourIdx = []int{1}
	cols[1].WorkHours = 20
	drivers := []model.Driver{
		{ID: "DRV-A", Qualifications: []string{"HAZMAT"}},
		{ID: "DRV-B", MaxWeeklyHours: hoursPtr(10)},
	}

	ids, violations := assignDrivers(tours, cols, drivers)

	if len(violations) != 1 || violations[0].ColumnID != "C2" {
		t.Fatalf("expected exactly one violation for the over-ceiling column C2, got %v", violations)
	}
	if ids[0] != "DRV-A" {
		t.Errorf("HAZMAT column should still match DRV-A, got %q", ids[0])
	}
}

func TestAssignDriversPrefersAugmentingPathWhenDriversScarce(t *testing.T) {
	tours := []model.Tour{
		{ID: "T1", Day: 0, StartMinute: 480, EndMinute: 960, Qualification: "HAZMAT"},
		{ID: "T2", Day: 1, StartMinute: 480, EndMinute: 960, Qualification: "HAZMAT"},
		{ID: "T3", Day: 2, StartMinute: 480, EndMinute: 960},
	}
	cols := []model.Column{
		{ID: "C1", TourIdx: []int{0}, WorkHours: 8, Signature: "sig-c1"},
		{ID: "C2", TourIdx: []int{1}, WorkHours: 8, Signature: "sig-c2"},
		{ID: "C3", TourIdx: []int{2}, WorkHours: 8, Signature: "sig-c3"},
	}
	drivers := []model.Driver{
		{ID: "DRV-HAZMAT", Qualifications: []string{"HAZMAT"}},
		{ID: "DRV-ANY"},
	}

	ids, violations := assignDrivers(tours, cols, drivers)

	if len(violations) != 1 {
		t.Fatalf("only one of three columns can be covered by two drivers, want exactly one violation, got %v", violations)
	}
	usedIDs := map[string]bool{}
	for _, id := range ids {
		if id == "DRV-HAZMAT" || id == "DRV-ANY" {
			usedIDs[id] = true
		}
	}
	if len(usedIDs) != 2 {
		t.Errorf("expected both named drivers to be used across the matching, got %v", ids)
	}
}

func TestDriverAdmitsIgnoresOutOfRangeTourIndex(t *testing.T) {
	tours := []model.Tour{{ID: "T1", Day: 0, StartMinute: 0, EndMinute: 480}}
	c := model.Column{TourIdx: []int{5}, WorkHours: 8}
	d := model.Driver{}

	if !driverAdmits(tours, c, d) {
		t.Error("an out-of-range tour index should be skipped, not rejected")
	}
}
