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

// Package signing computes the kernel's canonical, reproducible hashes:
// input_hash, config_hash and output_hash. Every hash here is a plain
// SHA-256 over an explicitly sorted, explicitly serialised byte form —
// never over hash-randomised map/set iteration order.
package signing

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"

	"github.com/mitchellh/hashstructure/v2"

	"github.com/nexroute/roster-kernel/pkg/roster/model"
)

// InputHash hashes the sorted canonical line form of the tour list:
// "<day>|<start>|<end>|<depot>|<qual>" joined by "\n".
func InputHash(tours []model.Tour) string {
	lines := make([]string, len(tours))
	for i, t := range tours {
		lines[i] = t.CanonicalLine()
	}
	sort.Strings(lines)
	return sha256Hex(strings.Join(lines, "\n"))
}

// ConfigHash hashes the sorted "key=value" pairs describing a configuration
// bundle. Callers pass config.Config.CanonicalPairs().
func ConfigHash(pairs []string) string {
	sorted := append([]string(nil), pairs...)
	sort.Strings(sorted)
	return sha256Hex(strings.Join(sorted, "\n"))
}

// outputRecord is the canonical per-assignment JSON shape used for output_hash.
type outputRecord struct {
	DriverID string   `json:"driver_id"`
	Day      int      `json:"day"`
	BlockID  string   `json:"block_id"`
	TourIDs  []string `json:"tour_ids"`
}

// OutputHash hashes the assignment list after sorting by
// (driver_id, day_index, tour_id), serialised as canonical JSON with sorted
// keys and no whitespace.
func OutputHash(assignments []model.Assignment) (string, error) {
	recs := make([]outputRecord, len(assignments))
	for i, a := range assignments {
		tourIDs := append([]string(nil), a.TourIDs...)
		sort.Strings(tourIDs)
		recs[i] = outputRecord{DriverID: a.DriverID, Day: a.Day, BlockID: a.BlockID, TourIDs: tourIDs}
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].DriverID != recs[j].DriverID {
			return recs[i].DriverID < recs[j].DriverID
		}
		if recs[i].Day != recs[j].Day {
			return recs[i].Day < recs[j].Day
		}
		ti, tj := "", ""
		if len(recs[i].TourIDs) > 0 {
			ti = recs[i].TourIDs[0]
		}
		if len(recs[j].TourIDs) > 0 {
			tj = recs[j].TourIDs[0]
		}
		return ti < tj
	})
	buf, err := json.Marshal(recs)
	if err != nil {
		return "", err
	}
	return sha256Hex(string(buf)), nil
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// ColumnSignature hashes the sorted covered-tour-id tuple of a column into
// the spec's 128-bit dedup key: SHA-256 over the sorted, "\n"-joined tour
// ids, truncated to its first 16 bytes. Two columns with the same covered
// tours always collide here regardless of block shape or discovery order.
func ColumnSignature(sortedTourIDs []string) string {
	sorted := append([]string(nil), sortedTourIDs...)
	sort.Strings(sorted)
	sum := sha256.Sum256([]byte(strings.Join(sorted, "\n")))
	return hex.EncodeToString(sum[:16])
}

// StructuralHash is a fast, non-cryptographic structural hash used for
// in-memory memoisation only (the pricing oracle's memoised chain-legality
// checks) — never for anything in the Plan's audit trail. It
// mirrors the teacher's NodePool.Hash() pattern: hashstructure over the
// value with slices treated as sets.
func StructuralHash(v any) uint64 {
	h, err := hashstructure.Hash(v, hashstructure.FormatV2, &hashstructure.HashOptions{
		SlicesAsSets: true,
	})
	if err != nil {
		// hashstructure only fails on unhashable inputs (channels, funcs),
		// which the kernel never passes here.
		panic(err)
	}
	return h
}
