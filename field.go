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

// Package oceandrift simulates the trajectories of passive particles
// drifting in measured or modeled ocean surface currents.
package oceandrift

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/ctessum/geom"
	"github.com/ctessum/sparse"
)

// metersPerDegree is the approximate distance spanned by one degree
// of latitude (or of longitude at the equator) [m].
const metersPerDegree = 1852. * 60.

// ErrOutOfDomain is returned when a velocity lookup falls outside of
// the spatial or temporal extent of a field.
var ErrOutOfDomain = errors.New("oceandrift: location is outside of the field domain")

// VectorField holds a two-dimensional time series of ocean surface
// current velocities on a regular latitude-longitude grid.
// Grid gaps (cells without an observation) are stored as NaN.
type VectorField struct {
	// Lons and Lats are the cell-center coordinates [degrees],
	// both in ascending order.
	Lons, Lats []float64

	// Times are the observation times, in ascending order.
	Times []time.Time

	// U and V hold the West-East and South-North velocity components
	// [m/s], one array of shape [len(Lats), len(Lons)] per time step.
	U, V []*sparse.DenseArray
}

// NewVectorField creates a VectorField from the given coordinates and
// velocity components, checking that the shapes are consistent.
func NewVectorField(lons, lats []float64, times []time.Time, u, v []*sparse.DenseArray) (*VectorField, error) {
	if err := checkAscending(lons, "longitude"); err != nil {
		return nil, err
	}
	if err := checkAscending(lats, "latitude"); err != nil {
		return nil, err
	}
	for i := 0; i < len(times)-1; i++ {
		if !times[i].Before(times[i+1]) {
			return nil, fmt.Errorf("oceandrift: field times must be ascending but "+
				"time %d (%v) is not before time %d (%v)", i, times[i], i+1, times[i+1])
		}
	}
	if len(u) != len(times) || len(v) != len(times) {
		return nil, fmt.Errorf("oceandrift: field has %d time steps but %d u and %d v arrays",
			len(times), len(u), len(v))
	}
	for i := range u {
		for _, a := range []*sparse.DenseArray{u[i], v[i]} {
			if len(a.Shape) != 2 || a.Shape[0] != len(lats) || a.Shape[1] != len(lons) {
				return nil, fmt.Errorf("oceandrift: velocity array for time step %d has "+
					"shape %v which doesn't match the %d x %d coordinate grid",
					i, a.Shape, len(lats), len(lons))
			}
		}
	}
	return &VectorField{Lons: lons, Lats: lats, Times: times, U: u, V: v}, nil
}

func checkAscending(x []float64, name string) error {
	if len(x) < 2 {
		return fmt.Errorf("oceandrift: need at least 2 %s coordinates but have %d", name, len(x))
	}
	for i := 0; i < len(x)-1; i++ {
		if x[i] >= x[i+1] {
			return fmt.Errorf("oceandrift: %s coordinates must be strictly ascending "+
				"but x[%d]=%g >= x[%d]=%g", name, i, x[i], i+1, x[i+1])
		}
	}
	return nil
}

// Nx returns the number of grid cells in the West-East direction.
func (f *VectorField) Nx() int { return len(f.Lons) }

// Ny returns the number of grid cells in the South-North direction.
func (f *VectorField) Ny() int { return len(f.Lats) }

// Bounds returns the spatial extent of the field.
func (f *VectorField) Bounds() *geom.Bounds {
	return &geom.Bounds{
		Min: geom.Point{X: f.Lons[0], Y: f.Lats[0]},
		Max: geom.Point{X: f.Lons[len(f.Lons)-1], Y: f.Lats[len(f.Lats)-1]},
	}
}

// TimeBounds returns the first and last observation times of the field.
func (f *VectorField) TimeBounds() (start, end time.Time) {
	return f.Times[0], f.Times[len(f.Times)-1]
}

// Velocity returns the current velocity [m/s] at the given location and
// time, interpolating bilinearly in space and linearly in time.
// Grid gaps contribute zero velocity, so locations without data
// coverage return a velocity of approximately zero rather than an
// error; use the out-of-data kernels to detect them.
// Locations or times outside of the field extent return ErrOutOfDomain.
func (f *VectorField) Velocity(t time.Time, lon, lat float64) (u, v float64, err error) {
	start, end := f.TimeBounds()
	if t.Before(start) || t.After(end) {
		return 0, 0, ErrOutOfDomain
	}
	b := f.Bounds()
	if lon < b.Min.X || lon > b.Max.X || lat < b.Min.Y || lat > b.Max.Y {
		return 0, 0, ErrOutOfDomain
	}
	// it is the last time index at or before t.
	it := sort.Search(len(f.Times), func(i int) bool { return f.Times[i].After(t) }) - 1
	if it == len(f.Times)-1 { // exactly at the last time step
		u = interp2(f.U[it], f.Lons, f.Lats, lon, lat)
		v = interp2(f.V[it], f.Lons, f.Lats, lon, lat)
		return u, v, nil
	}
	frac := float64(t.Sub(f.Times[it])) / float64(f.Times[it+1].Sub(f.Times[it]))
	u0 := interp2(f.U[it], f.Lons, f.Lats, lon, lat)
	u1 := interp2(f.U[it+1], f.Lons, f.Lats, lon, lat)
	v0 := interp2(f.V[it], f.Lons, f.Lats, lon, lat)
	v1 := interp2(f.V[it+1], f.Lons, f.Lats, lon, lat)
	return u0 + (u1-u0)*frac, v0 + (v1-v0)*frac, nil
}

// interp2 bilinearly interpolates array a (shape [len(lats), len(lons)])
// at the point (lon, lat), which must be inside the coordinate hull.
// NaN cells are treated as zero velocity.
func interp2(a *sparse.DenseArray, lons, lats []float64, lon, lat float64) float64 {
	i0, i1, wx := bracket(lons, lon)
	j0, j1, wy := bracket(lats, lat)
	v00 := zeroIfNaN(a.Get(j0, i0))
	v01 := zeroIfNaN(a.Get(j0, i1))
	v10 := zeroIfNaN(a.Get(j1, i0))
	v11 := zeroIfNaN(a.Get(j1, i1))
	return v00*(1-wx)*(1-wy) + v01*wx*(1-wy) + v10*(1-wx)*wy + v11*wx*wy
}

// bracket returns the indices of the coordinates surrounding x and the
// fractional distance of x between them.
func bracket(coords []float64, x float64) (lo, hi int, w float64) {
	hi = sort.SearchFloat64s(coords, x)
	if hi == 0 {
		return 0, 0, 0
	}
	if hi == len(coords) {
		n := len(coords) - 1
		return n, n, 0
	}
	lo = hi - 1
	return lo, hi, (x - coords[lo]) / (coords[hi] - coords[lo])
}

func zeroIfNaN(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}

// Speed returns the current speed [m/s] for time step it.
// Cells missing either velocity component are NaN.
func (f *VectorField) Speed(it int) *sparse.DenseArray {
	u, v := f.U[it], f.V[it]
	s := sparse.ZerosDense(u.Shape...)
	for i, uv := range u.Elements {
		s.Elements[i] = math.Sqrt(uv*uv + v.Elements[i]*v.Elements[i])
	}
	return s
}

// MaxSpeed returns the largest current speed in the field,
// ignoring grid gaps.
func (f *VectorField) MaxSpeed() float64 {
	max := 0.
	for it := range f.Times {
		for _, s := range f.Speed(it).Elements {
			if !math.IsNaN(s) && s > max {
				max = s
			}
		}
	}
	return max
}

// TimeIndex returns the index of the last field time step at or
// before t, or an error if t is outside of the field time extent.
func (f *VectorField) TimeIndex(t time.Time) (int, error) {
	start, end := f.TimeBounds()
	if t.Before(start) || t.After(end) {
		return 0, ErrOutOfDomain
	}
	return sort.Search(len(f.Times), func(i int) bool { return f.Times[i].After(t) }) - 1, nil
}

// CellEdges returns the edge coordinates of cell (j, i) as a closed
// polygon, for use when rendering the field. Edges are placed halfway
// between neighboring cell centers, and extrapolated at the domain rim.
func (f *VectorField) CellEdges(j, i int) geom.Polygon {
	w, e := edges(f.Lons, i)
	s, n := edges(f.Lats, j)
	return geom.Polygon{{
		geom.Point{X: w, Y: s},
		geom.Point{X: e, Y: s},
		geom.Point{X: e, Y: n},
		geom.Point{X: w, Y: n},
		geom.Point{X: w, Y: s},
	}}
}

func edges(coords []float64, i int) (lo, hi float64) {
	switch {
	case i == 0:
		lo = coords[0] - (coords[1]-coords[0])/2
	default:
		lo = (coords[i-1] + coords[i]) / 2
	}
	switch {
	case i == len(coords)-1:
		hi = coords[i] + (coords[i]-coords[i-1])/2
	default:
		hi = (coords[i] + coords[i+1]) / 2
	}
	return lo, hi
}
