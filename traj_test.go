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
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ctessum/sparse"
)

// simulatedTrajectories runs a small simulation with a delayed second
// release, so the result contains both valid and missing positions.
func simulatedTrajectories(t *testing.T) *Trajectories {
	t.Helper()
	f := uniformField(0.05, 0.02, 4)
	s, err := NewSimulation(f, time.Time{}, time.Time{}, 300*time.Second, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	s.AddKernel(RK4Advection(f), Age())
	err = s.Release(
		ReleaseSpec{Lon: 0.2, Lat: 0.5},
		ReleaseSpec{Lon: 0.4, Lat: 0.3, Start: testStart.Add(2 * time.Hour)},
	)
	if err != nil {
		t.Fatal(err)
	}
	tr, err := s.Run()
	if err != nil {
		t.Fatal(err)
	}
	return tr
}

func TestTrajectories_roundTrip(t *testing.T) {
	tr := simulatedTrajectories(t)

	dir, err := ioutil.TempDir("", "oceandrift")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "trajectories.nc")

	w, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := tr.Write(w); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}

	r, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	tr2, err := ReadTrajectories(r)
	if err != nil {
		t.Fatal(err)
	}

	if tr2.NumParticles() != tr.NumParticles() || tr2.NumSnapshots() != tr.NumSnapshots() {
		t.Fatalf("read %d particles x %d snapshots, want %d x %d",
			tr2.NumParticles(), tr2.NumSnapshots(), tr.NumParticles(), tr.NumSnapshots())
	}
	for i, tt := range tr.Times {
		if !tr2.Times[i].Equal(tt) {
			t.Errorf("time %d = %v, want %v", i, tr2.Times[i], tt)
		}
	}
	for i, id := range tr.IDs {
		if tr2.IDs[i] != id {
			t.Errorf("particle ID %d = %d, want %d", i, tr2.IDs[i], id)
		}
	}
	compareElements := func(name string, got, want []float64) {
		for i := range want {
			if math.IsNaN(want[i]) {
				if !math.IsNaN(got[i]) {
					t.Errorf("%s element %d = %g, want NaN", name, i, got[i])
				}
				continue
			}
			if math.Abs(got[i]-want[i]) > 1.e-9 {
				t.Errorf("%s element %d = %g, want %g", name, i, got[i], want[i])
			}
		}
	}
	compareElements("lon", tr2.Lons.Elements, tr.Lons.Elements)
	compareElements("lat", tr2.Lats.Elements, tr.Lats.Elements)
	compareElements("lifetime", tr2.Lifetimes.Elements, tr.Lifetimes.Elements)
	compareElements("spawntime", tr2.Spawntimes.Elements, tr.Spawntimes.Elements)
}

func TestTrajectories_bounds(t *testing.T) {
	tr := simulatedTrajectories(t)
	w, e, s, n, err := tr.Bounds()
	if err != nil {
		t.Fatal(err)
	}
	if w < 0.19 || e > 1 || s < 0.29 || n > 1 {
		t.Errorf("bounds [%g, %g] x [%g, %g] are outside the expected extent", w, e, s, n)
	}
	if w > e || s > n {
		t.Errorf("bounds [%g, %g] x [%g, %g] are inverted", w, e, s, n)
	}

	empty := newTrajectories(2, 2)
	empty.Times = []time.Time{testStart, testStart.Add(time.Hour)}
	if _, _, _, _, err := empty.Bounds(); err == nil {
		t.Error("bounds of trajectories without valid positions should fail")
	}
}

func TestTrajectories_checkDomain(t *testing.T) {
	tr := simulatedTrajectories(t)
	f := uniformField(0.05, 0.02, 4)
	if err := tr.CheckDomain(f); err != nil {
		t.Errorf("trajectories simulated in the field should be inside it: %v", err)
	}

	small, err := NewVectorField([]float64{0.3, 0.35}, f.Lats, f.Times,
		subGrid(f.U, 2), subGrid(f.V, 2))
	if err != nil {
		t.Fatal(err)
	}
	if err := tr.CheckDomain(small); err == nil {
		t.Error("trajectories outside the field longitudes should be detected")
	}
}

// subGrid clips velocity arrays to their first nx columns.
func subGrid(aa []*sparse.DenseArray, nx int) []*sparse.DenseArray {
	out := make([]*sparse.DenseArray, len(aa))
	for it, a := range aa {
		b := sparse.ZerosDense(a.Shape[0], nx)
		for j := 0; j < a.Shape[0]; j++ {
			for i := 0; i < nx; i++ {
				b.Set(a.Get(j, i), j, i)
			}
		}
		out[it] = b
	}
	return out
}

func TestTrajectories_maxLifetime(t *testing.T) {
	tr := simulatedTrajectories(t)
	if max := tr.MaxLifetime(); math.Abs(max-3*3600) > 1.e-9 {
		t.Errorf("max lifetime = %g, want %g", max, 3*3600.)
	}
}
