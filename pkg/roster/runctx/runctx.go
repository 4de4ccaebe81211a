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

// Package runctx carries every piece of cross-component mutable state a
// kernel run needs — budget, PRNG, logger, cache, metrics, event recorder
// and cancellation token — as one explicit, passed-by-reference value. No
// kernel component ever reaches for package-level state.
package runctx

import (
	"math/rand"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/nexroute/roster-kernel/pkg/roster/events"
	"github.com/nexroute/roster-kernel/pkg/roster/metrics"
)

// CancelToken is polled at well-defined suspension points (between D-search
// iterations, between CG rounds, before each MIP call).
type CancelToken struct {
	ch chan struct{}
}

// NewCancelToken returns a token that is never cancelled until Cancel is called.
func NewCancelToken() *CancelToken {
	return &CancelToken{ch: make(chan struct{})}
}

// Cancel marks the token cancelled. Safe to call more than once.
func (t *CancelToken) Cancel() {
	select {
	case <-t.ch:
	default:
		close(t.ch)
	}
}

// Cancelled reports whether Cancel has been called.
func (t *CancelToken) Cancelled() bool {
	select {
	case <-t.ch:
		return true
	default:
		return false
	}
}

// Run bundles everything one kernel run needs, threaded explicitly through
// every component call instead of living behind package-level globals.
type Run struct {
	Budget   *Budget
	Cancel   *CancelToken
	Log      *zap.SugaredLogger
	Events   *events.Recorder
	Metrics  *metrics.Collectors
	Cache    *gocache.Cache
	rng      *rand.Rand
}

// New builds a Run. seed comes from config.Config.Seed and is the only
// source of randomness the kernel ever consults — no component may call
// math/rand's package-level functions directly.
func New(seed int64, budget *Budget, log *zap.SugaredLogger, sink events.Sink, mc *metrics.Collectors) *Run {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Run{
		Budget:  budget,
		Cancel:  NewCancelToken(),
		Log:     log,
		Events:  events.NewRecorder(sink),
		Metrics: mc,
		Cache:   gocache.New(5*time.Minute, 10*time.Minute),
		rng:     rand.New(rand.NewSource(seed)),
	}
}

// Rand returns the run-scoped, seeded PRNG. All random choices in the
// kernel (tie-break shuffles, MIP search diversification) must go through
// this, never through math/rand's global functions, so a run's output is a
// pure function of (input, config, seed).
func (r *Run) Rand() *rand.Rand {
	return r.rng
}
