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

func TestAdvection_uniformCurrent(t *testing.T) {
	const u = 0.1 // m/s eastward
	f := uniformField(u, 0, 3)
	const Δt = 600.

	for _, test := range []struct {
		name   string
		kernel ParticleManipulator
	}{
		{"euler", EulerAdvection(f)},
		{"rk4", RK4Advection(f)},
	} {
		p := &Particle{Lon: 0.2, Lat: 0.5, Spawned: testStart, alive: true}
		test.kernel(p, testStart, Δt)

		wantLon := 0.2 + u*Δt/(metersPerDegree*math.Cos(0.5*math.Pi/180))
		if math.Abs(p.Lon-wantLon) > 1.e-9 {
			t.Errorf("%s: lon = %g, want %g", test.name, p.Lon, wantLon)
		}
		if p.Lat != 0.5 {
			t.Errorf("%s: lat = %g, want 0.5", test.name, p.Lat)
		}
	}
}

func TestAdvection_latitudeScaling(t *testing.T) {
	// The same eastward speed must move a particle through more degrees
	// of longitude at higher latitude.
	lons := []float64{0, 1}
	lats := []float64{0, 60}
	times := []time.Time{testStart, testStart.Add(time.Hour)}
	mk := func(val float64) []*sparse.DenseArray {
		out := make([]*sparse.DenseArray, 2)
		for it := range out {
			out[it] = sparse.ZerosDense(2, 2)
			for i := range out[it].Elements {
				out[it].Elements[i] = val
			}
		}
		return out
	}
	f, err := NewVectorField(lons, lats, times, mk(0.1), mk(0))
	if err != nil {
		t.Fatal(err)
	}
	kernel := EulerAdvection(f)
	pEq := &Particle{Lon: 0.5, Lat: 0, alive: true}
	pNorth := &Particle{Lon: 0.5, Lat: 60, alive: true}
	kernel(pEq, testStart, 600)
	kernel(pNorth, testStart, 600)
	ratio := (pNorth.Lon - 0.5) / (pEq.Lon - 0.5)
	if math.Abs(ratio-2) > 1.e-6 { // 1/cos(60°) = 2
		t.Errorf("displacement ratio at 60°N vs equator = %g, want 2", ratio)
	}
}

func TestAge(t *testing.T) {
	p := &Particle{alive: true}
	age := Age()
	age(p, testStart, 300)
	age(p, testStart, 300)
	if p.Lifetime != 600 {
		t.Errorf("lifetime = %g, want 600", p.Lifetime)
	}
}

func TestRandomWalk(t *testing.T) {
	const uerr = 0.1
	const Δt = 3600.
	walk := RandomWalk(uerr, 42)

	p := &Particle{ID: 3, Lon: 0.5, Lat: 0.5, alive: true}
	walk(p, testStart, Δt)
	d := haversine(0.5, 0.5, p.Lat, p.Lon)
	want := uerr * Δt
	if math.Abs(d-want)/want > 0.01 {
		t.Errorf("perturbation distance = %g m, want about %g m", d, want)
	}

	// The same seed must reproduce the same perturbation for the same
	// particle.
	p2 := &Particle{ID: 3, Lon: 0.5, Lat: 0.5, alive: true}
	RandomWalk(uerr, 42)(p2, testStart, Δt)
	if p2.Lon != p.Lon || p2.Lat != p.Lat {
		t.Errorf("same seed gave (%g, %g) and (%g, %g)", p.Lon, p.Lat, p2.Lon, p2.Lat)
	}

	// Different particles must walk independently.
	p3 := &Particle{ID: 4, Lon: 0.5, Lat: 0.5, alive: true}
	walk(p3, testStart, Δt)
	if p3.Lon == p.Lon && p3.Lat == p.Lat {
		t.Error("different particles took the same step")
	}
}

func TestOutOfDataKernels(t *testing.T) {
	f := uniformField(0, 0, 2) // zero velocity everywhere: no data coverage
	flag := FlagOutOfData(f)
	drop := DropOutOfData(f)

	p := &Particle{Lon: 0.5, Lat: 0.5, alive: true}
	flag(p, testStart, 300)
	if !p.OOB {
		t.Error("particle in a zero-velocity region should be flagged out of data")
	}
	drop(p, testStart, 300)
	if p.Alive() {
		t.Error("particle in a zero-velocity region should be dropped")
	}

	f2 := uniformField(0.1, 0, 2)
	p2 := &Particle{Lon: 0.5, Lat: 0.5, alive: true}
	FlagOutOfData(f2)(p2, testStart, 300)
	if p2.OOB {
		t.Error("particle in valid currents should not be flagged")
	}
	DropOutOfData(f2)(p2, testStart, 300)
	if !p2.Alive() {
		t.Error("particle in valid currents should not be dropped")
	}
}

func TestDropOutOfDomain(t *testing.T) {
	f := uniformField(0.1, 0, 2)
	drop := DropOutOfDomain(f)
	p := &Particle{Lon: 1.5, Lat: 0.5, alive: true}
	drop(p, testStart, 300)
	if p.Alive() {
		t.Error("particle outside the field extent should be dropped")
	}
	p2 := &Particle{Lon: 0.5, Lat: 0.5, alive: true}
	drop(p2, testStart, 300)
	if !p2.Alive() {
		t.Error("particle inside the field extent should not be dropped")
	}
}

func TestDropAfter(t *testing.T) {
	drop := DropAfter(1000)
	p := &Particle{Lifetime: 999, alive: true}
	drop(p, testStart, 300)
	if !p.Alive() {
		t.Error("young particle should not be dropped")
	}
	p.Lifetime = 1001
	drop(p, testStart, 300)
	if p.Alive() {
		t.Error("old particle should be dropped")
	}
}
