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

package master

import "math"

const simplexEps = 1e-9

// tableau is a dense, two-phase revised-simplex-by-tableau solver for the
// set-partition LP relaxation. Every row that starts without a natural
// slack (the exact-coverage equality rows) gets an artificial variable;
// phase 1 drives the sum of artificials to zero, phase 2 then optimises
// the real objective over the feasible basis phase 1 found. Pivoting uses
// Bland's rule throughout so the path taken — and therefore the result —
// is a deterministic function of the input, never of floating-point noise
// or iteration order.
type tableau struct {
	rows, cols int
	a          [][]float64 // rows x (cols+1), last column is RHS
	basis      []int       // basis[i] = column index of the basic variable in row i
}

func newTableau(rows, cols int) *tableau {
	a := make([][]float64, rows)
	for i := range a {
		a[i] = make([]float64, cols+1)
	}
	return &tableau{rows: rows, cols: cols, a: a, basis: make([]int, rows)}
}

// pivot performs a Gauss-Jordan pivot on (row, col).
func (t *tableau) pivot(row, col int) {
	pv := t.a[row][col]
	for j := 0; j <= t.cols; j++ {
		t.a[row][j] /= pv
	}
	for i := 0; i < t.rows; i++ {
		if i == row {
			continue
		}
		factor := t.a[i][col]
		if factor == 0 {
			continue
		}
		for j := 0; j <= t.cols; j++ {
			t.a[i][j] -= factor * t.a[row][j]
		}
	}
	t.basis[row] = col
}

// runSimplex minimises obj (a dense row over all `cols` variables) subject to
// the rows already loaded into t (which must already be at a basic feasible
// solution, i.e. t.basis/t.a represent an identity on the basis columns),
// using Bland's rule to select entering/leaving variables. disallowed marks
// columns that must never re-enter the basis (spent artificials).
func (t *tableau) runSimplex(obj []float64, disallowed []bool) {
	// objRow[j] = c_j - z_j, z_j = sum_i c_Bi * a[i][j]; compute via explicit reduction.
	objRow := make([]float64, t.cols+1)
	copy(objRow, obj)
	for i := 0; i < t.rows; i++ {
		cb := obj[t.basis[i]]
		if cb == 0 {
			continue
		}
		for j := 0; j <= t.cols; j++ {
			objRow[j] -= cb * t.a[i][j]
		}
	}

	for iter := 0; iter < 20000; iter++ {
		enter := -1
		for j := 0; j < t.cols; j++ {
			if disallowed != nil && disallowed[j] {
				continue
			}
			if objRow[j] < -simplexEps {
				enter = j // Bland's rule: smallest index with negative reduced cost
				break
			}
		}
		if enter == -1 {
			return // optimal
		}
		leave := -1
		best := math.Inf(1)
		for i := 0; i < t.rows; i++ {
			if t.a[i][enter] > simplexEps {
				ratio := t.a[i][t.cols] / t.a[i][enter]
				if ratio < best-simplexEps || (ratio < best+simplexEps && (leave == -1 || t.basis[i] < t.basis[leave])) {
					best = ratio
					leave = i
				}
			}
		}
		if leave == -1 {
			return // unbounded; cannot happen with the upper-bound rows present
		}
		t.pivot(leave, enter)
		objRow = recomputeObjRow(t, obj)
	}
}

func recomputeObjRow(t *tableau, obj []float64) []float64 {
	objRow := make([]float64, t.cols+1)
	copy(objRow, obj)
	for i := 0; i < t.rows; i++ {
		cb := obj[t.basis[i]]
		if cb == 0 {
			continue
		}
		for j := 0; j <= t.cols; j++ {
			objRow[j] -= cb * t.a[i][j]
		}
	}
	return objRow
}

// reducedCostFinal returns the final objective row's coefficient for a given
// column, after the last runSimplex call — used to recover dual prices from
// the identity columns attached to each constraint row.
func (t *tableau) reducedCostFinal(obj []float64, col int) float64 {
	row := recomputeObjRow(t, obj)
	return row[col]
}

func (t *tableau) value(col int) float64 {
	for i := 0; i < t.rows; i++ {
		if t.basis[i] == col {
			return t.a[i][t.cols]
		}
	}
	return 0
}
