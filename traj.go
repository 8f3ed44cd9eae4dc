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
	"os"
	"time"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
	"gonum.org/v1/gonum/floats"
)

// Trajectories holds the recorded positions of a set of particles at
// the simulation output times. Positions of particles that are dead or
// not yet released are NaN.
type Trajectories struct {
	// Times are the output snapshot times.
	Times []time.Time

	// IDs are the particle identifiers, one per trajectory.
	IDs []int

	// Lons, Lats, Lifetimes and Spawntimes have shape
	// [number of particles, len(Times)]. Lifetimes are seconds since
	// release; Spawntimes are release times as seconds since the Unix
	// epoch.
	Lons, Lats, Lifetimes, Spawntimes *sparse.DenseArray
}

func newTrajectories(np, nobs int) *Trajectories {
	tr := &Trajectories{
		IDs:        make([]int, np),
		Lons:       sparse.ZerosDense(np, nobs),
		Lats:       sparse.ZerosDense(np, nobs),
		Lifetimes:  sparse.ZerosDense(np, nobs),
		Spawntimes: sparse.ZerosDense(np, nobs),
	}
	nan := math.NaN()
	for _, a := range []*sparse.DenseArray{tr.Lons, tr.Lats, tr.Lifetimes, tr.Spawntimes} {
		for i := range a.Elements {
			a.Elements[i] = nan
		}
	}
	return tr
}

// record stores the state of particle index ip at snapshot iobs.
func (tr *Trajectories) record(ip, iobs int, p *Particle) {
	tr.Lons.Set(p.Lon, ip, iobs)
	tr.Lats.Set(p.Lat, ip, iobs)
	tr.Lifetimes.Set(p.Lifetime, ip, iobs)
	tr.Spawntimes.Set(float64(p.Spawned.UnixNano())/float64(time.Second), ip, iobs)
}

// NumParticles returns the number of recorded particles.
func (tr *Trajectories) NumParticles() int { return tr.Lons.Shape[0] }

// NumSnapshots returns the number of recorded output times.
func (tr *Trajectories) NumSnapshots() int { return len(tr.Times) }

// Position returns the position of particle ip at snapshot iobs,
// and whether the particle was alive at that time.
func (tr *Trajectories) Position(ip, iobs int) (lon, lat float64, alive bool) {
	lon = tr.Lons.Get(ip, iobs)
	lat = tr.Lats.Get(ip, iobs)
	return lon, lat, !math.IsNaN(lon) && !math.IsNaN(lat)
}

// MaxLifetime returns the largest recorded particle lifetime [s].
func (tr *Trajectories) MaxLifetime() float64 {
	max := 0.
	for _, v := range tr.Lifetimes.Elements {
		if !math.IsNaN(v) && v > max {
			max = v
		}
	}
	return max
}

// Bounds returns the extent of all recorded particle positions:
// west, east, south, north. It returns an error when nothing was
// ever alive.
func (tr *Trajectories) Bounds() (w, e, s, n float64, err error) {
	var lons, lats []float64
	for i, lon := range tr.Lons.Elements {
		lat := tr.Lats.Elements[i]
		if math.IsNaN(lon) || math.IsNaN(lat) {
			continue
		}
		lons = append(lons, lon)
		lats = append(lats, lat)
	}
	if len(lons) == 0 {
		return 0, 0, 0, 0, fmt.Errorf("oceandrift: trajectory file contains no valid positions")
	}
	return floats.Min(lons), floats.Max(lons), floats.Min(lats), floats.Max(lats), nil
}

// CheckDomain verifies that all recorded particle positions and
// snapshot times fall within the extent of field f, so that the field
// can be drawn underneath the particles.
func (tr *Trajectories) CheckDomain(f *VectorField) error {
	w, e, s, n, err := tr.Bounds()
	if err != nil {
		return err
	}
	b := f.Bounds()
	if s < b.Min.Y || n > b.Max.Y {
		return fmt.Errorf("oceandrift: trajectory latitudes [%g, %g] are out of the "+
			"field bounds [%g, %g]", s, n, b.Min.Y, b.Max.Y)
	}
	if w < b.Min.X || e > b.Max.X {
		return fmt.Errorf("oceandrift: trajectory longitudes [%g, %g] are out of the "+
			"field bounds [%g, %g]", w, e, b.Min.X, b.Max.X)
	}
	fStart, fEnd := f.TimeBounds()
	if tr.Times[0].Before(fStart) || tr.Times[len(tr.Times)-1].After(fEnd) {
		return fmt.Errorf("oceandrift: trajectory times [%v, %v] are out of the "+
			"field bounds [%v, %v]", tr.Times[0], tr.Times[len(tr.Times)-1], fStart, fEnd)
	}
	return nil
}

// Write writes the trajectories to netCDF file w.
func (tr *Trajectories) Write(w *os.File) error {
	np, nobs := tr.Lons.Shape[0], tr.Lons.Shape[1]
	h := cdf.NewHeader([]string{"trajectory", "obs"}, []int{np, nobs})
	h.AddAttribute("", "comment", "OceanDrift particle trajectory file")

	h.AddVariable("time", []string{"obs"}, []float64{0})
	h.AddAttribute("time", "units", "seconds since 1970-01-01 00:00:00")

	h.AddVariable("trajectory", []string{"trajectory"}, []int32{0})
	h.AddAttribute("trajectory", "cf_role", "trajectory_id")

	vars := map[string]*sparse.DenseArray{
		"lon":       tr.Lons,
		"lat":       tr.Lats,
		"lifetime":  tr.Lifetimes,
		"spawntime": tr.Spawntimes,
	}
	units := map[string]string{
		"lon":       "degrees_east",
		"lat":       "degrees_north",
		"lifetime":  "s",
		"spawntime": "seconds since 1970-01-01 00:00:00",
	}
	for _, name := range []string{"lon", "lat", "lifetime", "spawntime"} {
		h.AddVariable(name, []string{"trajectory", "obs"}, []float64{0})
		h.AddAttribute(name, "units", units[name])
	}
	h.Define()

	ff, err := cdf.Create(w, h) // writes the header to w
	if err != nil {
		return err
	}
	secs := make([]float64, len(tr.Times))
	for i, t := range tr.Times {
		secs[i] = float64(t.UnixNano()) / float64(time.Second)
	}
	if err := writeFloat64s(ff, "time", secs); err != nil {
		return err
	}
	ids := make([]int32, len(tr.IDs))
	for i, id := range tr.IDs {
		ids[i] = int32(id)
	}
	if err := writeInt32s(ff, "trajectory", ids); err != nil {
		return err
	}
	for _, name := range []string{"lon", "lat", "lifetime", "spawntime"} {
		if err := writeFloat64s(ff, name, vars[name].Elements); err != nil {
			return err
		}
	}
	return cdf.UpdateNumRecs(w)
}

// ReadTrajectories loads trajectories written by Write.
func ReadTrajectories(rw cdf.ReaderWriterAt) (*Trajectories, error) {
	ff, err := cdf.Open(rw)
	if err != nil {
		return nil, fmt.Errorf("oceandrift: opening trajectory file: %v", err)
	}
	secs, err := readCoord(ff, "time")
	if err != nil {
		return nil, err
	}
	tr := new(Trajectories)
	tr.Times = make([]time.Time, len(secs))
	for i, s := range secs {
		tr.Times[i] = time.Unix(0, int64(s*float64(time.Second))).UTC()
	}
	ids, err := readCoord(ff, "trajectory")
	if err != nil {
		return nil, err
	}
	tr.IDs = make([]int, len(ids))
	for i, id := range ids {
		tr.IDs[i] = int(id)
	}
	for name, dst := range map[string]**sparse.DenseArray{
		"lon":       &tr.Lons,
		"lat":       &tr.Lats,
		"lifetime":  &tr.Lifetimes,
		"spawntime": &tr.Spawntimes,
	} {
		dims := ff.Header.Lengths(name)
		if len(dims) != 2 {
			return nil, fmt.Errorf("oceandrift: trajectory variable %s has %d dimensions "+
				"instead of 2", name, len(dims))
		}
		if dims[0] != len(tr.IDs) {
			return nil, fmt.Errorf("oceandrift: trajectory variable %s has %d trajectories "+
				"but the file has %d particle IDs", name, dims[0], len(tr.IDs))
		}
		if dims[1] != len(tr.Times) {
			return nil, fmt.Errorf("oceandrift: trajectory variable %s has %d observations "+
				"but the file has %d output times", name, dims[1], len(tr.Times))
		}
		r := ff.Reader(name, nil, nil)
		buf := r.Zero(dims[0] * dims[1])
		if _, err := r.Read(buf); err != nil {
			return nil, fmt.Errorf("oceandrift: reading trajectory variable %s: %v", name, err)
		}
		vals, err := toFloat64s(buf)
		if err != nil {
			return nil, err
		}
		a := sparse.ZerosDense(dims...)
		copy(a.Elements, vals)
		*dst = a
	}
	return tr, nil
}
