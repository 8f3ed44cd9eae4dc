/*
Copyright © 2021 the OceanDrift authors.
This file is part of OceanDrift.

OceanDrift is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

OceanDrift is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with OceanDrift.  If not, see <http://www.gnu.org/licenses/>.
*/

package oceandrift

import (
	"fmt"
	"math"

	"github.com/ctessum/sparse"
)

// Default gapfilling parameters.
const (
	DefaultGapfillMaxIter   = 10000
	DefaultGapfillTolerance = 1.e-5 // m/s
)

// FillMissing fills the NaN cells of the 2-d array a in place by
// iterative Laplace relaxation: missing cells are seeded with the mean
// of the valid cells and then repeatedly replaced with the average of
// their neighbors until the largest change in one sweep is below tol.
// Valid cells are never modified. It returns the number of sweeps
// performed; an array without gaps returns zero.
func FillMissing(a *sparse.DenseArray, maxIter int, tol float64) (int, error) {
	return fillMissing(a, nil, maxIter, tol)
}

// FillMissingMasked is like FillMissing except that cells where mask is
// nonzero are considered permanently invalid (e.g. land) and are
// neither filled nor used as a data source.
func FillMissingMasked(a *sparse.DenseArray, mask *sparse.DenseArrayInt, maxIter int, tol float64) (int, error) {
	return fillMissing(a, mask, maxIter, tol)
}

func fillMissing(a *sparse.DenseArray, mask *sparse.DenseArrayInt, maxIter int, tol float64) (int, error) {
	if len(a.Shape) != 2 {
		return 0, fmt.Errorf("oceandrift: gapfill needs a 2-d array instead of %d-d", len(a.Shape))
	}
	ny, nx := a.Shape[0], a.Shape[1]
	masked := func(j, i int) bool {
		return mask != nil && mask.Get(j, i) != 0
	}

	var missing [][2]int
	var sum float64
	var n int
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			if masked(j, i) {
				continue
			}
			if v := a.Get(j, i); math.IsNaN(v) {
				missing = append(missing, [2]int{j, i})
			} else {
				sum += v
				n++
			}
		}
	}
	if len(missing) == 0 {
		return 0, nil
	}
	if n == 0 {
		return 0, fmt.Errorf("oceandrift: cannot gapfill an array with no valid cells")
	}
	mean := sum / float64(n)
	for _, ji := range missing {
		a.Set(mean, ji[0], ji[1])
	}

	for iter := 1; iter <= maxIter; iter++ {
		maxΔ := 0.
		for _, ji := range missing {
			j, i := ji[0], ji[1]
			var nsum float64
			var nn int
			for _, d := range [][2]int{{j - 1, i}, {j + 1, i}, {j, i - 1}, {j, i + 1}} {
				jj, ii := d[0], d[1]
				if jj < 0 || jj >= ny || ii < 0 || ii >= nx || masked(jj, ii) {
					continue
				}
				nsum += a.Get(jj, ii)
				nn++
			}
			if nn == 0 {
				continue // isolated cell surrounded by mask; keep the seed value
			}
			val := nsum / float64(nn)
			if Δ := math.Abs(val - a.Get(j, i)); Δ > maxΔ {
				maxΔ = Δ
			}
			a.Set(val, j, i)
		}
		if maxΔ < tol {
			return iter, nil
		}
	}
	return maxIter, fmt.Errorf("oceandrift: gapfill failed to converge after %d iterations", maxIter)
}

// LandMask flags the cells of the field that have valid data in fewer
// than minCoverage (0-1) of the time steps. Those cells are taken to be
// outside of the data footprint (over land or beyond radar range) and
// should be excluded from gapfilling.
func (f *VectorField) LandMask(minCoverage float64) *sparse.DenseArrayInt {
	mask := sparse.ZerosDenseInt(f.Ny(), f.Nx())
	for j := 0; j < f.Ny(); j++ {
		for i := 0; i < f.Nx(); i++ {
			valid := 0
			for it := range f.Times {
				if !math.IsNaN(f.U[it].Get(j, i)) && !math.IsNaN(f.V[it].Get(j, i)) {
					valid++
				}
			}
			if float64(valid) < minCoverage*float64(len(f.Times)) {
				mask.Set(1, j, i)
			}
		}
	}
	return mask
}

// Gapfill fills the gaps in every time step of the field in place.
// Cells flagged in mask (which may be nil) are left as NaN.
// msgChan, if not nil, receives progress information.
func (f *VectorField) Gapfill(maxIter int, tol float64, mask *sparse.DenseArrayInt, msgChan chan string) error {
	if maxIter <= 0 {
		maxIter = DefaultGapfillMaxIter
	}
	if tol <= 0 {
		tol = DefaultGapfillTolerance
	}
	for it := range f.Times {
		for _, a := range []*sparse.DenseArray{f.U[it], f.V[it]} {
			if _, err := fillMissing(a, mask, maxIter, tol); err != nil {
				return fmt.Errorf("oceandrift: gapfilling time step %d: %v", it, err)
			}
		}
		if msgChan != nil {
			msgChan <- fmt.Sprintf("Gapfilled currents for %v", f.Times[it])
		}
	}
	return nil
}
