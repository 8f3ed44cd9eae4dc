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
	"math"
	"testing"
	"time"

	"github.com/ctessum/sparse"
)

const testTolerance = 1.e-8

// testStart is the first observation time of the test fields.
var testStart = time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)

// uniformField creates a field with constant velocity everywhere:
// a 5 x 5 one-degree grid with hourly observations.
func uniformField(u, v float64, nt int) *VectorField {
	lons := []float64{0, 0.25, 0.5, 0.75, 1}
	lats := []float64{0, 0.25, 0.5, 0.75, 1}
	times := make([]time.Time, nt)
	uu := make([]*sparse.DenseArray, nt)
	vv := make([]*sparse.DenseArray, nt)
	for it := 0; it < nt; it++ {
		times[it] = testStart.Add(time.Duration(it) * time.Hour)
		uu[it] = sparse.ZerosDense(len(lats), len(lons))
		vv[it] = sparse.ZerosDense(len(lats), len(lons))
		for i := range uu[it].Elements {
			uu[it].Elements[i] = u
			vv[it].Elements[i] = v
		}
	}
	f, err := NewVectorField(lons, lats, times, uu, vv)
	if err != nil {
		panic(err)
	}
	return f
}

func TestNewVectorField_errors(t *testing.T) {
	lons := []float64{0, 1}
	lats := []float64{0, 1}
	times := []time.Time{testStart, testStart.Add(time.Hour)}
	a := func() *sparse.DenseArray { return sparse.ZerosDense(2, 2) }

	if _, err := NewVectorField([]float64{1, 0}, lats, times,
		[]*sparse.DenseArray{a(), a()}, []*sparse.DenseArray{a(), a()}); err == nil {
		t.Error("descending longitudes should be rejected")
	}
	if _, err := NewVectorField(lons, lats, times,
		[]*sparse.DenseArray{a()}, []*sparse.DenseArray{a(), a()}); err == nil {
		t.Error("mismatched time step count should be rejected")
	}
	if _, err := NewVectorField(lons, lats, times,
		[]*sparse.DenseArray{a(), sparse.ZerosDense(3, 2)},
		[]*sparse.DenseArray{a(), a()}); err == nil {
		t.Error("wrong velocity array shape should be rejected")
	}
	if _, err := NewVectorField(lons, lats,
		[]time.Time{testStart, testStart},
		[]*sparse.DenseArray{a(), a()}, []*sparse.DenseArray{a(), a()}); err == nil {
		t.Error("non-ascending times should be rejected")
	}
}

func TestVelocity_interpolation(t *testing.T) {
	lons := []float64{0, 1}
	lats := []float64{0, 1}
	times := []time.Time{testStart, testStart.Add(time.Hour)}
	u0 := sparse.ZerosDense(2, 2)
	u0.Elements = []float64{0, 1, 2, 3}
	u1 := sparse.ZerosDense(2, 2)
	u1.Elements = []float64{4, 5, 6, 7}
	v0 := sparse.ZerosDense(2, 2)
	v1 := sparse.ZerosDense(2, 2)
	f, err := NewVectorField(lons, lats, times,
		[]*sparse.DenseArray{u0, u1}, []*sparse.DenseArray{v0, v1})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		t        time.Time
		lon, lat float64
		want     float64
	}{
		{"corner", testStart, 0, 0, 0},
		{"center", testStart, 0.5, 0.5, 1.5},
		{"east edge", testStart, 1, 0.5, 2},
		{"halfway in time", testStart.Add(30 * time.Minute), 0.5, 0.5, 3.5},
		{"last time step", testStart.Add(time.Hour), 0.5, 0.5, 5.5},
	}
	for _, test := range tests {
		u, v, err := f.Velocity(test.t, test.lon, test.lat)
		if err != nil {
			t.Fatalf("%s: %v", test.name, err)
		}
		if math.Abs(u-test.want) > testTolerance {
			t.Errorf("%s: u = %g, want %g", test.name, u, test.want)
		}
		if v != 0 {
			t.Errorf("%s: v = %g, want 0", test.name, v)
		}
	}
}

func TestVelocity_outOfDomain(t *testing.T) {
	f := uniformField(0.1, 0, 2)
	tests := []struct {
		t        time.Time
		lon, lat float64
	}{
		{testStart, -0.1, 0.5},
		{testStart, 0.5, 1.1},
		{testStart.Add(-time.Minute), 0.5, 0.5},
		{testStart.Add(2 * time.Hour), 0.5, 0.5},
	}
	for i, test := range tests {
		if _, _, err := f.Velocity(test.t, test.lon, test.lat); err != ErrOutOfDomain {
			t.Errorf("test %d: err = %v, want ErrOutOfDomain", i, err)
		}
	}
}

func TestVelocity_gapIsZero(t *testing.T) {
	f := uniformField(0.1, 0.2, 2)
	for it := range f.Times {
		f.U[it].Set(math.NaN(), 2, 2)
		f.V[it].Set(math.NaN(), 2, 2)
	}
	u, v, err := f.Velocity(testStart, 0.5, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	// The gap cell contributes zero velocity.
	if u >= 0.1 || v >= 0.2 {
		t.Errorf("u, v = %g, %g; the gap should reduce the interpolated velocity", u, v)
	}
}

func TestTimeIndex(t *testing.T) {
	f := uniformField(0, 0, 3)
	tests := []struct {
		t    time.Time
		want int
	}{
		{testStart, 0},
		{testStart.Add(30 * time.Minute), 0},
		{testStart.Add(time.Hour), 1},
		{testStart.Add(2 * time.Hour), 2},
	}
	for i, test := range tests {
		it, err := f.TimeIndex(test.t)
		if err != nil {
			t.Fatalf("test %d: %v", i, err)
		}
		if it != test.want {
			t.Errorf("test %d: index = %d, want %d", i, it, test.want)
		}
	}
	if _, err := f.TimeIndex(testStart.Add(-time.Hour)); err != ErrOutOfDomain {
		t.Errorf("err = %v, want ErrOutOfDomain", err)
	}
}

func TestMaxSpeed(t *testing.T) {
	f := uniformField(0.3, 0.4, 2)
	f.U[1].Set(math.NaN(), 0, 0) // gaps are ignored
	if max := f.MaxSpeed(); math.Abs(max-0.5) > testTolerance {
		t.Errorf("max speed = %g, want 0.5", max)
	}
}

func TestCellEdges(t *testing.T) {
	f := uniformField(0, 0, 1)
	p := f.CellEdges(0, 0) // southwest corner cell, extrapolated rim
	b := p.Bounds()
	if math.Abs(b.Min.X - -0.125) > testTolerance || math.Abs(b.Max.X-0.125) > testTolerance {
		t.Errorf("corner cell longitude edges = [%g, %g], want [-0.125, 0.125]", b.Min.X, b.Max.X)
	}
	p = f.CellEdges(2, 2) // interior cell
	b = p.Bounds()
	if math.Abs(b.Min.X-0.375) > testTolerance || math.Abs(b.Max.X-0.625) > testTolerance {
		t.Errorf("interior cell longitude edges = [%g, %g], want [0.375, 0.625]", b.Min.X, b.Max.X)
	}
}
