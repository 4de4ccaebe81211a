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

// Package config defines the kernel's configuration bundle: an explicit
// struct enumerating every key §6 of the specification recognises. Unknown
// keys are rejected at the boundary; out-of-range values are clamped and
// reported, never silently ignored.
package config

import (
	"fmt"
	"sort"

	"github.com/nexroute/roster-kernel/pkg/roster/constraints"
	"github.com/nexroute/roster-kernel/pkg/roster/model"
)

// PhaseSlices are the four budget fractions: profiling/phase1/phase2/LNS.
type PhaseSlices struct {
	Profiling float64
	Phase1    float64
	Phase2    float64
	LNS       float64
}

// Config is the full recognised configuration bundle.
type Config struct {
	Seed                  int64
	TimeBudgetSeconds     float64
	PhaseSlices           PhaseSlices
	FTETargetMin          float64
	FTETargetMax          float64
	WeeklyHardCap         float64
	PTMax                 float64
	EnableSplitBlocks     bool
	MaxPauseRegular       int
	SplitPause            int
	KPerTour              int
	NPoolCap              int
	NSubsetCap            int
	MIPTimeLimitRestricted float64
	MIPTimeLimitFinal      float64
	NumSearchWorkers       int // locked to 1
}

// Default returns the recommended default configuration.
func Default() Config {
	return Config{
		Seed:              1,
		TimeBudgetSeconds: 60,
		PhaseSlices: PhaseSlices{
			Profiling: 0.02,
			Phase1:    0.50,
			Phase2:    0.15,
			LNS:       0.28,
		},
		FTETargetMin:           42,
		FTETargetMax:           53,
		WeeklyHardCap:          55,
		PTMax:                  34,
		EnableSplitBlocks:      true,
		MaxPauseRegular:        60,
		SplitPause:             360,
		KPerTour:               8,
		NPoolCap:               20000,
		NSubsetCap:             4000,
		MIPTimeLimitRestricted: 10,
		MIPTimeLimitFinal:      20,
		NumSearchWorkers:       1,
	}
}

// Clamp is one reported numeric-range correction.
type Clamp struct {
	Key      string
	Original float64
	Clamped  float64
}

// ValidationResult carries the outcome of Validate: the usable Config
// (after clamping) plus anything that had to be corrected or rejected.
type ValidationResult struct {
	Config      Config
	Clamps      []Clamp
	ReasonCodes []model.ReasonCode
}

// ErrUnknownKey is returned, unwrapped, when FromMap sees a key not in §6.
type ErrUnknownKey struct{ Key string }

func (e ErrUnknownKey) Error() string { return fmt.Sprintf("config: unrecognised key %q", e.Key) }

// ErrLockedKey is returned, unwrapped, when a caller tries to override num_search_workers.
type ErrLockedKey struct{ Key string }

func (e ErrLockedKey) Error() string {
	return fmt.Sprintf("config: key %q is locked to its public-contract value", e.Key)
}

// recognisedKeys is the exact set from §6, used by FromMap to reject
// anything else outright.
var recognisedKeys = map[string]bool{
	"seed": true, "time_budget_seconds": true, "phase_slices": true,
	"fte_target_min": true, "fte_target_max": true, "weekly_hard_cap": true, "pt_max": true,
	"enable_split_blocks": true, "max_pause_regular": true, "split_pause": true,
	"k_per_tour": true, "n_pool_cap": true, "n_subset_cap": true,
	"mip_time_limit_restricted": true, "mip_time_limit_final": true,
	"num_search_workers": true,
}

// FromMap builds a Config from a loosely typed bundle (e.g. decoded JSON),
// starting from Default() and overriding recognised keys. Any key outside
// §6's list returns ErrUnknownKey; an attempt to set num_search_workers to
// anything but 1 returns ErrLockedKey.
func FromMap(raw map[string]any) (Config, error) {
	for k := range raw {
		if !recognisedKeys[k] {
			return Config{}, ErrUnknownKey{Key: k}
		}
	}
	cfg := Default()
	if v, ok := raw["seed"]; ok {
		cfg.Seed = toInt64(v)
	}
	if v, ok := raw["time_budget_seconds"]; ok {
		cfg.TimeBudgetSeconds = toFloat(v)
	}
	if v, ok := raw["phase_slices"]; ok {
		if m, ok := v.(map[string]any); ok {
			cfg.PhaseSlices = PhaseSlices{
				Profiling: toFloat(m["profiling"]),
				Phase1:    toFloat(m["phase1"]),
				Phase2:    toFloat(m["phase2"]),
				LNS:       toFloat(m["lns"]),
			}
		}
	}
	if v, ok := raw["fte_target_min"]; ok {
		cfg.FTETargetMin = toFloat(v)
	}
	if v, ok := raw["fte_target_max"]; ok {
		cfg.FTETargetMax = toFloat(v)
	}
	if v, ok := raw["weekly_hard_cap"]; ok {
		cfg.WeeklyHardCap = toFloat(v)
	}
	if v, ok := raw["pt_max"]; ok {
		cfg.PTMax = toFloat(v)
	}
	if v, ok := raw["enable_split_blocks"]; ok {
		if b, ok := v.(bool); ok {
			cfg.EnableSplitBlocks = b
		}
	}
	if v, ok := raw["max_pause_regular"]; ok {
		cfg.MaxPauseRegular = int(toFloat(v))
	}
	if v, ok := raw["split_pause"]; ok {
		cfg.SplitPause = int(toFloat(v))
	}
	if v, ok := raw["k_per_tour"]; ok {
		cfg.KPerTour = int(toFloat(v))
	}
	if v, ok := raw["n_pool_cap"]; ok {
		cfg.NPoolCap = int(toFloat(v))
	}
	if v, ok := raw["n_subset_cap"]; ok {
		cfg.NSubsetCap = int(toFloat(v))
	}
	if v, ok := raw["mip_time_limit_restricted"]; ok {
		cfg.MIPTimeLimitRestricted = toFloat(v)
	}
	if v, ok := raw["mip_time_limit_final"]; ok {
		cfg.MIPTimeLimitFinal = toFloat(v)
	}
	if v, ok := raw["num_search_workers"]; ok {
		if int(toFloat(v)) != 1 {
			return Config{}, ErrLockedKey{Key: "num_search_workers"}
		}
	}
	return cfg, nil
}

func toFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int:
		return float64(x)
	case int64:
		return float64(x)
	}
	return 0
}

func toInt64(v any) int64 {
	switch x := v.(type) {
	case float64:
		return int64(x)
	case int:
		return int64(x)
	case int64:
		return x
	}
	return 0
}

// Validate clamps out-of-range numeric fields and forces NumSearchWorkers to 1,
// returning every clamp it performed for the caller's reason-code payload.
func Validate(cfg Config) ValidationResult {
	res := ValidationResult{Config: cfg}
	clamp := func(key string, val *float64, lo, hi float64) {
		if *val < lo || *val > hi {
			res.Clamps = append(res.Clamps, Clamp{Key: key, Original: *val, Clamped: clampF(*val, lo, hi)})
			*val = clampF(*val, lo, hi)
		}
	}
	clamp("time_budget_seconds", &res.Config.TimeBudgetSeconds, 1, 3600)
	clamp("fte_target_min", &res.Config.FTETargetMin, 0, 60)
	clamp("fte_target_max", &res.Config.FTETargetMax, 0, 60)
	clamp("weekly_hard_cap", &res.Config.WeeklyHardCap, 1, 80)
	clamp("pt_max", &res.Config.PTMax, 1, res.Config.WeeklyHardCap)
	mpr := float64(res.Config.MaxPauseRegular)
	clamp("max_pause_regular", &mpr, 15, 180)
	res.Config.MaxPauseRegular = int(mpr)
	sp := float64(res.Config.SplitPause)
	clamp("split_pause", &sp, 60, 720)
	res.Config.SplitPause = int(sp)
	kpt := float64(res.Config.KPerTour)
	clamp("k_per_tour", &kpt, 1, 1000)
	res.Config.KPerTour = int(kpt)
	npc := float64(res.Config.NPoolCap)
	clamp("n_pool_cap", &npc, 1, 1_000_000)
	res.Config.NPoolCap = int(npc)
	nsc := float64(res.Config.NSubsetCap)
	clamp("n_subset_cap", &nsc, 1, 1_000_000)
	res.Config.NSubsetCap = int(nsc)
	clamp("mip_time_limit_restricted", &res.Config.MIPTimeLimitRestricted, 0.1, res.Config.TimeBudgetSeconds)
	clamp("mip_time_limit_final", &res.Config.MIPTimeLimitFinal, 0.1, res.Config.TimeBudgetSeconds)
	res.Config.NumSearchWorkers = 1
	if len(res.Clamps) > 0 {
		res.ReasonCodes = append(res.ReasonCodes, model.ReasonConfigClamped)
	}
	return res
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Policy derives a constraints.Policy from the validated Config.
func (c Config) Policy() constraints.Policy {
	p := constraints.Default()
	p.FTETargetMinHours = c.FTETargetMin
	p.FTETargetMaxHours = c.FTETargetMax
	p.WeeklyHardCapHours = c.WeeklyHardCap
	p.PTMaxHours = c.PTMax
	p.MaxPauseRegular = c.MaxPauseRegular
	p.SplitMin = c.SplitPause
	p.SplitMax = c.SplitPause
	if !c.EnableSplitBlocks {
		p.SplitMin, p.SplitMax = -1, -1 // unreachable gap classification disables the split zone
	}
	return p
}

// CanonicalPairs returns the sorted key=value pairs used by the signing
// module to compute config_hash.
func (c Config) CanonicalPairs() []string {
	pairs := map[string]string{
		"seed":                      fmt.Sprintf("%d", c.Seed),
		"time_budget_seconds":       fmt.Sprintf("%g", c.TimeBudgetSeconds),
		"phase_slices.profiling":    fmt.Sprintf("%g", c.PhaseSlices.Profiling),
		"phase_slices.phase1":       fmt.Sprintf("%g", c.PhaseSlices.Phase1),
		"phase_slices.phase2":       fmt.Sprintf("%g", c.PhaseSlices.Phase2),
		"phase_slices.lns":          fmt.Sprintf("%g", c.PhaseSlices.LNS),
		"fte_target_min":            fmt.Sprintf("%g", c.FTETargetMin),
		"fte_target_max":            fmt.Sprintf("%g", c.FTETargetMax),
		"weekly_hard_cap":           fmt.Sprintf("%g", c.WeeklyHardCap),
		"pt_max":                    fmt.Sprintf("%g", c.PTMax),
		"enable_split_blocks":       fmt.Sprintf("%t", c.EnableSplitBlocks),
		"max_pause_regular":         fmt.Sprintf("%d", c.MaxPauseRegular),
		"split_pause":               fmt.Sprintf("%d", c.SplitPause),
		"k_per_tour":                fmt.Sprintf("%d", c.KPerTour),
		"n_pool_cap":                fmt.Sprintf("%d", c.NPoolCap),
		"n_subset_cap":              fmt.Sprintf("%d", c.NSubsetCap),
		"mip_time_limit_restricted": fmt.Sprintf("%g", c.MIPTimeLimitRestricted),
		"mip_time_limit_final":      fmt.Sprintf("%g", c.MIPTimeLimitFinal),
		"num_search_workers":        fmt.Sprintf("%d", c.NumSearchWorkers),
	}
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+pairs[k])
	}
	return lines
}
