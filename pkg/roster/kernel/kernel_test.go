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

package kernel_test

import (
	"math/rand"

	"github.com/Pallinder/go-randomdata"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/nexroute/roster-kernel/pkg/roster/config"
	"github.com/nexroute/roster-kernel/pkg/roster/kernel"
	"github.com/nexroute/roster-kernel/pkg/roster/model"
)

// oneWeekOfTours builds a small, legal forecast: one 8h tour per weekday for
// depot D1, plus a Saturday half-day, small enough for the full pipeline to
// solve well inside a test's patience.
func oneWeekOfTours() []model.Tour {
	var tours []model.Tour
	for day := 0; day < 5; day++ {
		tours = append(tours, model.Tour{
			ID:          "WD-" + string(rune('A'+day)),
			Day:         day,
			StartMinute: 8 * 60,
			EndMinute:   16 * 60,
			Depot:       "D1",
		})
	}
	tours = append(tours, model.Tour{
		ID: "SAT-1", Day: 5, StartMinute: 9 * 60, EndMinute: 13 * 60, Depot: "D1",
	})
	return tours
}

func shuffledCopy(tours []model.Tour) []model.Tour {
	out := append([]model.Tour(nil), tours...)
	rand.New(rand.NewSource(1)).Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

var _ = Describe("kernel.Run", func() {
	var cfg config.Config

	BeforeEach(func() {
		cfg = config.Default()
		cfg.TimeBudgetSeconds = 5
	})

	It("covers every tour at least once in a feasible plan", func() {
		tours := oneWeekOfTours()
		plan := kernel.Run(tours, cfg, kernel.Options{})

		Expect(plan.Status).To(BeElementOf(model.StatusOptimal, model.StatusFeasible, model.StatusPartial))

		covered := map[string]bool{}
		for _, a := range plan.Assignments {
			for _, id := range a.TourIDs {
				covered[id] = true
			}
		}
		for _, t := range tours {
			Expect(covered[t.ID]).To(BeTrue(), "tour %s should be covered", t.ID)
		}
	})

	It("never returns a blocking violation for a clean, legal forecast", func() {
		tours := oneWeekOfTours()
		plan := kernel.Run(tours, cfg, kernel.Options{})

		for _, v := range plan.Violations {
			Expect(v.Severity).NotTo(Equal(model.SeverityBlock), "unexpected blocking violation: %+v", v)
		}
	})

	It("gives every assignment the block_id of the block placed on its own day", func() {
		tours := oneWeekOfTours()
		plan := kernel.Run(tours, cfg, kernel.Options{})

		for _, a := range plan.Assignments {
			Expect(a.BlockID).NotTo(BeEmpty(), "assignment %+v should carry the day's block id", a)
			if len(a.TourIDs) > 0 {
				Expect(a.BlockID).To(ContainSubstring(a.TourIDs[0]), "block id %q should be derived from the day's own tours", a.BlockID)
			}
		}
	})

	It("is deterministic across repeated runs with the same seed", func() {
		tours := oneWeekOfTours()
		first := kernel.Run(tours, cfg, kernel.Options{})
		second := kernel.Run(tours, cfg, kernel.Options{})

		Expect(second.OutputHash).To(Equal(first.OutputHash))
		Expect(second.InputHash).To(Equal(first.InputHash))
		Expect(second.ConfigHash).To(Equal(first.ConfigHash))
		Expect(second.Status).To(Equal(first.Status))
	})

	It("produces the same input_hash regardless of the forecast's ordering", func() {
		tours := oneWeekOfTours()
		reordered := shuffledCopy(tours)

		first := kernel.Run(tours, cfg, kernel.Options{})
		second := kernel.Run(reordered, cfg, kernel.Options{})

		Expect(second.InputHash).To(Equal(first.InputHash))
		Expect(second.OutputHash).To(Equal(first.OutputHash))
	})

	It("rejects a forecast with a duplicate tour id as infeasible", func() {
		tours := oneWeekOfTours()
		tours = append(tours, tours[0])

		plan := kernel.Run(tours, cfg, kernel.Options{})

		Expect(plan.Status).To(Equal(model.StatusInfeasible))
		Expect(plan.ReasonCodes).To(ContainElement(model.ReasonInputOutOfRange))
	})

	It("rejects a forecast with an out-of-range tour as infeasible", func() {
		tours := []model.Tour{{ID: "BAD", Day: 9, StartMinute: 0, EndMinute: 60}}

		plan := kernel.Run(tours, cfg, kernel.Options{})

		Expect(plan.Status).To(Equal(model.StatusInfeasible))
		Expect(plan.ReasonCodes).To(ContainElement(model.ReasonInputOutOfRange))
	})

	It("clamps an out-of-range config key and still solves", func() {
		tours := oneWeekOfTours()
		cfg.TimeBudgetSeconds = 10000 // above the 3600 ceiling, should clamp not fail

		plan := kernel.Run(tours, cfg, kernel.Options{})

		Expect(plan.Status).To(BeElementOf(model.StatusOptimal, model.StatusFeasible, model.StatusPartial))
		Expect(plan.ReasonCodes).To(ContainElement(model.ReasonConfigClamped))
	})

	Context("with a named driver pool", func() {
		It("threads real driver ids through the plan when every column is admissible", func() {
			tours := oneWeekOfTours()
			drivers := []model.Driver{
				{ID: "DRV-1"}, {ID: "DRV-2"}, {ID: "DRV-3"},
				{ID: "DRV-4"}, {ID: "DRV-5"}, {ID: "DRV-6"},
			}

			plan := kernel.Run(tours, cfg, kernel.Options{Drivers: drivers})

			Expect(plan.Status).To(BeElementOf(model.StatusOptimal, model.StatusFeasible, model.StatusPartial))
			named := map[string]bool{}
			for _, d := range drivers {
				named[d.ID] = true
			}
			for _, a := range plan.Assignments {
				Expect(named[a.DriverID]).To(BeTrue(), "assignment driver id %q should be one of the supplied pool", a.DriverID)
			}
		})

		It("raises a BLOCK qualification violation when no pool driver can cover a required tour", func() {
			tours := oneWeekOfTours()
			tours[0].Qualification = "HAZMAT"
			drivers := []model.Driver{{ID: "DRV-1"}} // no HAZMAT qualification, and too few drivers to cover every column anyway

			plan := kernel.Run(tours, cfg, kernel.Options{Drivers: drivers})

			Expect(plan.Status).To(Equal(model.StatusInfeasible))
			found := false
			for _, v := range plan.Violations {
				if v.Reason == model.ReasonQual && v.Severity == model.SeverityBlock {
					found = true
				}
			}
			Expect(found).To(BeTrue(), "expected a BLOCK ReasonQual violation, got %+v", plan.Violations)
		})
	})

	Context("against a synthetic, randomly generated depot/qualification forecast", func() {
		It("still covers every tour and never emits a blocking violation", func() {
			var tours []model.Tour
			depots := []string{randomdata.SillyName(), randomdata.SillyName()}
			for day := 0; day < 6; day++ {
				tours = append(tours, model.Tour{
					ID:          randomdata.Alphanumeric(10),
					Day:         day,
					StartMinute: 7 * 60,
					EndMinute:   15 * 60,
					Depot:       depots[day%len(depots)],
				})
			}

			plan := kernel.Run(tours, cfg, kernel.Options{})

			Expect(plan.Status).To(BeElementOf(model.StatusOptimal, model.StatusFeasible, model.StatusPartial))
			for _, v := range plan.Violations {
				Expect(v.Severity).NotTo(Equal(model.SeverityBlock))
			}
		})
	})
})
