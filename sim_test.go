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
	"runtime"
	"testing"
	"time"
)

func TestNewSimulation_validation(t *testing.T) {
	f := uniformField(0.1, 0, 4) // 3 hours of data

	if _, err := NewSimulation(f, testStart.Add(time.Hour), testStart,
		300*time.Second, time.Hour); err == nil {
		t.Error("start after end should be rejected")
	}
	if _, err := NewSimulation(f, testStart.Add(-time.Hour), time.Time{},
		300*time.Second, time.Hour); err == nil {
		t.Error("start before the field extent should be rejected")
	}
	if _, err := NewSimulation(f, time.Time{}, time.Time{},
		0, time.Hour); err == nil {
		t.Error("zero time step should be rejected")
	}
	if _, err := NewSimulation(f, time.Time{}, time.Time{},
		700*time.Second, time.Hour); err == nil {
		t.Error("output interval that is not a multiple of dt should be rejected")
	}

	s, err := NewSimulation(f, time.Time{}, time.Time{}, 300*time.Second, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if !s.Start.Equal(testStart) || !s.End.Equal(testStart.Add(3*time.Hour)) {
		t.Errorf("zero start and end should default to the field extent; got [%v, %v]",
			s.Start, s.End)
	}
}

func TestSimulation_release(t *testing.T) {
	f := uniformField(0.1, 0, 4)
	s, err := NewSimulation(f, time.Time{}, time.Time{}, 300*time.Second, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Release(ReleaseSpec{Lon: 0.2, Lat: 0.5, N: 3}); err != nil {
		t.Fatal(err)
	}
	if n := len(s.Particles()); n != 3 {
		t.Errorf("released %d particles, want 3", n)
	}
	if err := s.Release(ReleaseSpec{Lon: 0.2, Lat: 0.5,
		Start: testStart.Add(5 * time.Hour)}); err == nil {
		t.Error("a release after the simulation end should be rejected")
	}
	if err := s.Release(ReleaseSpec{Lon: 0.2, Lat: 0.5, Repeats: 2}); err == nil {
		t.Error("repeats without an interval should be rejected")
	}
	if err := s.Release(ReleaseSpec{Lon: 0.2, Lat: 0.5,
		Interval: time.Hour, Repeats: 2}); err != nil {
		t.Fatal(err)
	}
	if n := len(s.Particles()); n != 6 {
		t.Errorf("have %d particles after the repeated release, want 6", n)
	}
}

func TestSimulation_run(t *testing.T) {
	const u = 0.05 // m/s eastward
	f := uniformField(u, 0, 4)

	s, err := NewSimulation(f, time.Time{}, time.Time{}, 300*time.Second, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	s.AddKernel(RK4Advection(f), Age())
	if err := s.Release(ReleaseSpec{Lon: 0.2, Lat: 0.5}); err != nil {
		t.Fatal(err)
	}
	tr, err := s.Run()
	if err != nil {
		t.Fatal(err)
	}

	if tr.NumParticles() != 1 || tr.NumSnapshots() != 4 {
		t.Fatalf("recorded %d particles x %d snapshots, want 1 x 4",
			tr.NumParticles(), tr.NumSnapshots())
	}
	if !tr.Times[0].Equal(testStart) || !tr.Times[3].Equal(testStart.Add(3*time.Hour)) {
		t.Errorf("snapshot times = [%v, %v], want [%v, %v]",
			tr.Times[0], tr.Times[3], testStart, testStart.Add(3*time.Hour))
	}

	// A uniform current is integrated exactly.
	elapsed := 3 * 3600.
	wantLon := 0.2 + u*elapsed/(metersPerDegree*math.Cos(0.5*math.Pi/180))
	lon, lat, alive := tr.Position(0, 3)
	if !alive {
		t.Fatal("particle should be alive at the final snapshot")
	}
	if math.Abs(lon-wantLon) > 1.e-8 {
		t.Errorf("final lon = %g, want %g", lon, wantLon)
	}
	if math.Abs(lat-0.5) > 1.e-12 {
		t.Errorf("final lat = %g, want 0.5", lat)
	}
	if lt := tr.Lifetimes.Get(0, 3); math.Abs(lt-elapsed) > 1.e-9 {
		t.Errorf("final lifetime = %g, want %g", lt, elapsed)
	}
}

func TestSimulation_delayedRelease(t *testing.T) {
	f := uniformField(0.05, 0, 4)
	s, err := NewSimulation(f, time.Time{}, time.Time{}, 300*time.Second, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	s.AddKernel(RK4Advection(f), Age())
	if err := s.Release(ReleaseSpec{Lon: 0.2, Lat: 0.5,
		Start: testStart.Add(2 * time.Hour)}); err != nil {
		t.Fatal(err)
	}
	tr, err := s.Run()
	if err != nil {
		t.Fatal(err)
	}
	for iobs := 0; iobs < 2; iobs++ {
		if _, _, alive := tr.Position(0, iobs); alive {
			t.Errorf("particle should not be recorded before its release (snapshot %d)", iobs)
		}
	}
	if _, _, alive := tr.Position(0, 2); !alive {
		t.Error("particle should be recorded from its release time on")
	}
	if lt := tr.Lifetimes.Get(0, 3); math.Abs(lt-3600) > 1.e-9 {
		t.Errorf("lifetime one hour after release = %g, want 3600", lt)
	}
}

func TestSimulation_dropsRecordedAsMissing(t *testing.T) {
	f := uniformField(0.05, 0, 4)
	s, err := NewSimulation(f, time.Time{}, time.Time{}, 300*time.Second, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	s.AddKernel(RK4Advection(f), Age(), DropAfter(3600))
	if err := s.Release(ReleaseSpec{Lon: 0.2, Lat: 0.5}); err != nil {
		t.Fatal(err)
	}
	tr, err := s.Run()
	if err != nil {
		t.Fatal(err)
	}
	if _, _, alive := tr.Position(0, 1); !alive {
		t.Error("particle should still be alive at its maximum age")
	}
	if _, _, alive := tr.Position(0, 3); alive {
		t.Error("dropped particle should be recorded as missing")
	}
}

func TestSimulation_randomWalkReproducible(t *testing.T) {
	old := runtime.GOMAXPROCS(8)
	defer runtime.GOMAXPROCS(old)

	run := func() *Trajectories {
		f := uniformField(0.05, 0, 4)
		s, err := NewSimulation(f, time.Time{}, time.Time{}, 300*time.Second, time.Hour)
		if err != nil {
			t.Fatal(err)
		}
		s.AddKernel(RK4Advection(f), RandomWalk(0.5, 42), Age())
		if err := s.Release(ReleaseSpec{Lon: 0.5, Lat: 0.5, N: 256}); err != nil {
			t.Fatal(err)
		}
		tr, err := s.Run()
		if err != nil {
			t.Fatal(err)
		}
		return tr
	}

	tr1 := run()
	tr2 := run()
	diverged := 0
	for i := range tr1.Lons.Elements {
		if tr1.Lons.Elements[i] != tr2.Lons.Elements[i] ||
			tr1.Lats.Elements[i] != tr2.Lats.Elements[i] {
			diverged++
		}
	}
	if diverged > 0 {
		t.Errorf("identically seeded runs diverge at %d of %d recorded positions",
			diverged, len(tr1.Lons.Elements))
	}
}

func TestSimulation_runErrors(t *testing.T) {
	f := uniformField(0.05, 0, 4)
	s, err := NewSimulation(f, time.Time{}, time.Time{}, 300*time.Second, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Run(); err == nil {
		t.Error("running without particles should fail")
	}
	if err := s.Release(ReleaseSpec{Lon: 0.2, Lat: 0.5}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Run(); err == nil {
		t.Error("running without kernels should fail")
	}
}
