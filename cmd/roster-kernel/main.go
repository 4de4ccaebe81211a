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

// Command roster-kernel is a thin CLI over the solver library: read a tour
// forecast as JSON, run one kernel.Run, write the resulting Plan as JSON.
// Forecast parsing beyond this flat JSON array, persistence, and any HTTP
// surface are deliberately left to the caller.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/nexroute/roster-kernel/pkg/roster/config"
	"github.com/nexroute/roster-kernel/pkg/roster/kernel"
	"github.com/nexroute/roster-kernel/pkg/roster/model"
)

func main() {
	var (
		inputPath   = flag.String("input", "", "path to a JSON array of tours (required)")
		outputPath  = flag.String("output", "", "path to write the resulting plan JSON (default: stdout)")
		driversPath = flag.String("drivers", "", "optional path to a JSON array of named drivers")
		seed        = flag.Int64("seed", config.Default().Seed, "deterministic PRNG seed")
		budgetSecs  = flag.Float64("time-budget-seconds", config.Default().TimeBudgetSeconds, "total wall-clock budget")
		verbose     = flag.Bool("verbose", false, "enable debug-level logging")
	)
	flag.Parse()

	zcfg := zap.NewProductionConfig()
	if *verbose {
		zcfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := zcfg.Build()
	if err != nil {
		fmt.Fprintln(os.Stderr, "roster-kernel: failed to build logger:", err)
		os.Exit(1)
	}
	defer logger.Sync() //nolint:errcheck
	sugar := logger.Sugar()

	if *inputPath == "" {
		sugar.Fatalw("missing required flag", "flag", "-input")
	}

	tours, err := loadTours(*inputPath)
	if err != nil {
		sugar.Fatalw("failed to load tours", "error", err)
	}

	var drivers []model.Driver
	if *driversPath != "" {
		drivers, err = loadDrivers(*driversPath)
		if err != nil {
			sugar.Fatalw("failed to load drivers", "error", err)
		}
	}

	cfg := config.Default()
	cfg.Seed = *seed
	cfg.TimeBudgetSeconds = *budgetSecs

	plan := kernel.Run(tours, cfg, kernel.Options{Log: sugar, Drivers: drivers})

	if err := writePlan(*outputPath, plan); err != nil {
		sugar.Fatalw("failed to write plan", "error", err)
	}
	sugar.Infow("run complete", "status", plan.Status, "drivers", plan.KPIs.DriversTotal)

	if plan.Status == model.StatusInfeasible {
		os.Exit(1)
	}
}

func loadTours(path string) ([]model.Tour, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tours []model.Tour
	if err := json.Unmarshal(raw, &tours); err != nil {
		return nil, err
	}
	return tours, nil
}

func loadDrivers(path string) ([]model.Driver, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var drivers []model.Driver
	if err := json.Unmarshal(raw, &drivers); err != nil {
		return nil, err
	}
	return drivers, nil
}

func writePlan(path string, plan model.Plan) error {
	buf, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return err
	}
	if path == "" {
		_, err := os.Stdout.Write(append(buf, '\n'))
		return err
	}
	return os.WriteFile(path, buf, 0o644)
}
