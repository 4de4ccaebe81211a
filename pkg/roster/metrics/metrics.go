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

// Package metrics holds the kernel's internal Prometheus collectors. The
// kernel never serves /metrics itself (that is the out-of-scope "metrics
// exporter" collaborator) and never registers these collectors itself;
// whoever holds a Collectors value can register it into a
// prometheus.Registerer with MustRegister, the same way the teacher's
// pkg/metrics declares collectors for controllers to increment.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collectors groups every counter/histogram the kernel updates during a run.
type Collectors struct {
	BlocksBuilt         prometheus.Counter
	BlocksPruned        prometheus.Counter
	ColumnsGenerated     prometheus.Counter
	CGRounds             prometheus.Counter
	MIPCalls             prometheus.CounterVec
	DSearchIterations    prometheus.Counter
	BudgetOverruns       prometheus.Counter
	RunDurationSeconds   prometheus.Histogram
}

// NewCollectors constructs a fresh Collectors set. Callers register it into
// their own prometheus.Registerer (or discard it) — the kernel holds no
// global registry.
func NewCollectors() *Collectors {
	return &Collectors{
		BlocksBuilt: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "roster_kernel", Name: "blocks_built_total",
			Help: "Number of candidate blocks enumerated by the block builder.",
		}),
		BlocksPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "roster_kernel", Name: "blocks_pruned_total",
			Help: "Number of candidate blocks dropped by dominance or cap pruning.",
		}),
		ColumnsGenerated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "roster_kernel", Name: "columns_generated_total",
			Help: "Number of distinct columns added to the pool across seed and CG.",
		}),
		CGRounds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "roster_kernel", Name: "cg_rounds_total",
			Help: "Number of RMP/pricing round trips executed.",
		}),
		MIPCalls: *prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roster_kernel", Name: "mip_calls_total",
			Help: "Number of MIP solver invocations, by stage and status.",
		}, []string{"stage", "status"}),
		DSearchIterations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "roster_kernel", Name: "dsearch_iterations_total",
			Help: "Number of driver-cap trials the outer D-search has evaluated.",
		}),
		BudgetOverruns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "roster_kernel", Name: "budget_overruns_total",
			Help: "Number of phases that exceeded their allotted budget slice.",
		}),
		RunDurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "roster_kernel", Name: "run_duration_seconds",
			Help:    "Wall-clock duration of a full kernel run.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// MustRegister registers every collector into reg, panicking on a duplicate
// registration — the same fail-fast convention the teacher's controllers use
// at startup for their own metric registration.
func (c *Collectors) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(
		c.BlocksBuilt, c.BlocksPruned, c.ColumnsGenerated, c.CGRounds,
		c.MIPCalls, c.DSearchIterations, c.BudgetOverruns, c.RunDurationSeconds,
	)
}
