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

package config

import "testing"

func TestFromMapUnknownKeyRejected(t *testing.T) {
	_, err := FromMap(map[string]any{"not_a_real_key": 1})
	if err == nil {
		t.Fatal("expected ErrUnknownKey")
	}
	if _, ok := err.(ErrUnknownKey); !ok {
		t.Errorf("err = %T, want ErrUnknownKey", err)
	}
}

func TestFromMapLockedKeyRejected(t *testing.T) {
	_, err := FromMap(map[string]any{"num_search_workers": 4})
	if err == nil {
		t.Fatal("expected ErrLockedKey")
	}
	if _, ok := err.(ErrLockedKey); !ok {
		t.Errorf("err = %T, want ErrLockedKey", err)
	}
}

func TestFromMapLockedKeyAcceptsOne(t *testing.T) {
	cfg, err := FromMap(map[string]any{"num_search_workers": 1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.NumSearchWorkers != 1 {
		t.Errorf("NumSearchWorkers = %d, want 1", cfg.NumSearchWorkers)
	}
}

func TestFromMapOverridesDefaults(t *testing.T) {
	cfg, err := FromMap(map[string]any{"seed": 42, "k_per_tour": 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Seed != 42 {
		t.Errorf("Seed = %d, want 42", cfg.Seed)
	}
	if cfg.KPerTour != 5 {
		t.Errorf("KPerTour = %d, want 5", cfg.KPerTour)
	}
	// Untouched fields keep their default value.
	if cfg.WeeklyHardCap != Default().WeeklyHardCap {
		t.Errorf("WeeklyHardCap = %v, want default", cfg.WeeklyHardCap)
	}
}

func TestValidateClampsOutOfRange(t *testing.T) {
	cfg := Default()
	cfg.TimeBudgetSeconds = -5
	cfg.KPerTour = 0

	res := Validate(cfg)
	if res.Config.TimeBudgetSeconds != 1 {
		t.Errorf("TimeBudgetSeconds clamped = %v, want 1", res.Config.TimeBudgetSeconds)
	}
	if res.Config.KPerTour != 1 {
		t.Errorf("KPerTour clamped = %v, want 1", res.Config.KPerTour)
	}
	if len(res.Clamps) == 0 {
		t.Error("expected at least one reported clamp")
	}
}

func TestValidateLeavesInRangeUntouched(t *testing.T) {
	res := Validate(Default())
	if len(res.Clamps) != 0 {
		t.Errorf("Default() should need no clamping, got %v", res.Clamps)
	}
	if len(res.ReasonCodes) != 0 {
		t.Errorf("Default() should produce no reason codes, got %v", res.ReasonCodes)
	}
}

func TestValidateAlwaysLocksNumSearchWorkers(t *testing.T) {
	cfg := Default()
	cfg.NumSearchWorkers = 99
	res := Validate(cfg)
	if res.Config.NumSearchWorkers != 1 {
		t.Errorf("NumSearchWorkers = %d, want 1 regardless of input", res.Config.NumSearchWorkers)
	}
}

func TestCanonicalPairsSortedAndStable(t *testing.T) {
	pairs := Default().CanonicalPairs()
	for i := 1; i < len(pairs); i++ {
		if pairs[i-1] >= pairs[i] {
			t.Fatalf("CanonicalPairs not strictly sorted at index %d: %q >= %q", i, pairs[i-1], pairs[i])
		}
	}
}

func TestPolicyDisablesSplitZoneWhenConfigured(t *testing.T) {
	cfg := Default()
	cfg.EnableSplitBlocks = false
	pol := cfg.Policy()
	if pol.SplitMin != -1 || pol.SplitMax != -1 {
		t.Errorf("expected unreachable split zone, got SplitMin=%d SplitMax=%d", pol.SplitMin, pol.SplitMax)
	}
}
