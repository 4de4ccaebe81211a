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

package pricing

import (
	"testing"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/nexroute/roster-kernel/pkg/roster/blocks"
	"github.com/nexroute/roster-kernel/pkg/roster/constraints"
	"github.com/nexroute/roster-kernel/pkg/roster/model"
)

func oneTourSetup() ([]model.Tour, []model.Block, map[int][]int) {
	pol := constraints.Default()
	tours := []model.Tour{{ID: "T1", Day: 0, StartMinute: 480, EndMinute: 600}}
	pool := blocks.Build(tours, blocks.DefaultOptions(pol))
	byDay := map[int][]int{}
	for bi, b := range pool.Blocks {
		byDay[b.Day] = append(byDay[b.Day], bi)
	}
	return tours, pool.Blocks, byDay
}

func TestProduceFindsImprovingColumnWhenDualExceedsCost(t *testing.T) {
	pol := constraints.Default()
	tours, blockPool, byDay := oneTourSetup()
	duals := map[int]float64{0: 2.0} // well above the block's unit cost share
	res := Produce(tours, blockPool, byDay, duals, pol, Budget{
		Deadline:   time.Now().Add(time.Second),
		MaxLabels:  1000,
		MaxColumns: 10,
	})
	if res.NoImproving {
		t.Fatal("expected an improving column given a large dual value")
	}
	if len(res.Columns) == 0 {
		t.Fatal("expected at least one returned column")
	}
	found := false
	for _, c := range res.Columns {
		if len(c.TourIdx) == 1 && c.TourIdx[0] == 0 {
			found = true
		}
	}
	if !found {
		t.Error("expected the single-tour column to be among the results")
	}
}

func TestProduceReportsNoImprovingWithZeroDuals(t *testing.T) {
	pol := constraints.Default()
	tours, blockPool, byDay := oneTourSetup()
	duals := map[int]float64{}
	res := Produce(tours, blockPool, byDay, duals, pol, Budget{
		Deadline:   time.Now().Add(time.Second),
		MaxLabels:  1000,
		MaxColumns: 10,
	})
	if !res.NoImproving {
		t.Fatal("with zero duals every label's reduced cost is positive; expected NoImproving")
	}
	if len(res.Columns) != 0 {
		t.Error("NoImproving result should carry no columns")
	}
}

func TestProduceRespectsDeadline(t *testing.T) {
	pol := constraints.Default()
	tours, blockPool, byDay := oneTourSetup()
	duals := map[int]float64{0: 2.0}
	res := Produce(tours, blockPool, byDay, duals, pol, Budget{
		Deadline:   time.Now().Add(-time.Second), // already elapsed
		MaxLabels:  1000,
		MaxColumns: 10,
	})
	if !res.BudgetHit {
		t.Error("expected BudgetHit when the deadline has already passed")
	}
}

func twoDayTourSetup() ([]model.Tour, []model.Block, map[int][]int) {
	pol := constraints.Default()
	tours := []model.Tour{
		{ID: "T1", Day: 0, StartMinute: 480, EndMinute: 600},
		{ID: "T2", Day: 1, StartMinute: 480, EndMinute: 600},
	}
	pool := blocks.Build(tours, blocks.DefaultOptions(pol))
	byDay := map[int][]int{}
	for bi, b := range pool.Blocks {
		byDay[b.Day] = append(byDay[b.Day], bi)
	}
	return tours, pool.Blocks, byDay
}

func TestCanChainDaysMemoMatchesUnmemoisedResult(t *testing.T) {
	pol := constraints.Default()
	ok, reason := pol.CanChainDays(0, 600, 1, 1, 480, 1)
	cache := gocache.New(time.Minute, time.Minute)
	memoOK, memoReason := canChainDaysMemo(cache, pol, 0, 600, 1, 1, 480, 1)
	if memoOK != ok || memoReason != reason {
		t.Fatalf("canChainDaysMemo = (%v, %v), want (%v, %v)", memoOK, memoReason, ok, reason)
	}
	// A second call with the same arguments must be served from cache with
	// the same verdict.
	memoOK2, memoReason2 := canChainDaysMemo(cache, pol, 0, 600, 1, 1, 480, 1)
	if memoOK2 != ok || memoReason2 != reason {
		t.Fatalf("cached canChainDaysMemo = (%v, %v), want (%v, %v)", memoOK2, memoReason2, ok, reason)
	}
	if cache.ItemCount() != 1 {
		t.Errorf("ItemCount() = %d, want 1 (the pair should be memoised once)", cache.ItemCount())
	}
}

func TestProduceWithCacheMatchesProduceWithoutCache(t *testing.T) {
	pol := constraints.Default()
	tours, blockPool, byDay := twoDayTourSetup()
	duals := map[int]float64{0: 2.0, 1: 2.0}

	uncached := Produce(tours, blockPool, byDay, duals, pol, Budget{
		Deadline:   time.Now().Add(time.Second),
		MaxLabels:  1000,
		MaxColumns: 10,
	})
	cached := Produce(tours, blockPool, byDay, duals, pol, Budget{
		Deadline:   time.Now().Add(time.Second),
		MaxLabels:  1000,
		MaxColumns: 10,
		Cache:      gocache.New(time.Minute, time.Minute),
	})

	if cached.NoImproving != uncached.NoImproving {
		t.Fatalf("NoImproving mismatch: cached=%v uncached=%v", cached.NoImproving, uncached.NoImproving)
	}
	if len(cached.Columns) != len(uncached.Columns) {
		t.Fatalf("len(Columns) mismatch: cached=%d uncached=%d", len(cached.Columns), len(uncached.Columns))
	}
	for i := range cached.Columns {
		if cached.Columns[i].Signature != uncached.Columns[i].Signature {
			t.Errorf("column %d signature mismatch: cached=%s uncached=%s", i, cached.Columns[i].Signature, uncached.Columns[i].Signature)
		}
	}
}

func TestDominancePruneCapsLabelCount(t *testing.T) {
	labels := make([]label, 0, 10)
	// A distinct lastEnd puts each label in its own bucket, so dominance
	// removes none of them and only the cap can bring the count down.
	for i := 0; i < 10; i++ {
		labels = append(labels, label{day: 0, lastEnd: i, lastDayTours: 0, reducedCost: float64(i)})
	}
	out := dominancePrune(labels, 3)
	if len(out) > 3 {
		t.Errorf("len(out) = %d, want <= 3", len(out))
	}
}
