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
	"time"
)

// Particle is a passive tracer carried by the currents.
type Particle struct {
	ID int

	// Lon and Lat are the current position [degrees].
	Lon, Lat float64

	// Lifetime is the time [s] since the particle was released.
	Lifetime float64

	// Spawned is the time the particle was (or will be) released.
	Spawned time.Time

	// OOB reports whether the particle most recently sampled a
	// location without current data coverage.
	OOB bool

	alive bool
}

// Alive reports whether the particle is still being advected.
func (p *Particle) Alive() bool { return p.alive }

// Kill permanently removes the particle from the simulation.
// Its position is recorded as missing from then on.
func (p *Particle) Kill() { p.alive = false }

// ReleaseSpec describes the release of one or more particles at a
// single location. If Interval is nonzero, the release is repeated
// Repeats additional times, each Interval later.
type ReleaseSpec struct {
	// Lon and Lat are the release location [degrees].
	Lon, Lat float64

	// N is the number of particles per release (default 1).
	N int

	// Start is the release time. The zero value means the
	// beginning of the simulation.
	Start time.Time

	// Interval and Repeats configure repeated releases.
	Interval time.Duration
	Repeats  int
}

// particles expands the release into particles, assigning IDs starting
// at *nextID. simStart replaces a zero Start time.
func (r ReleaseSpec) particles(simStart time.Time, nextID *int) ([]*Particle, error) {
	n := r.N
	if n <= 0 {
		n = 1
	}
	start := r.Start
	if start.IsZero() {
		start = simStart
	}
	if r.Repeats > 0 && r.Interval <= 0 {
		return nil, fmt.Errorf("oceandrift: release at (%g, %g) repeats %d times "+
			"but has no repeat interval", r.Lon, r.Lat, r.Repeats)
	}
	var out []*Particle
	for rep := 0; rep <= r.Repeats; rep++ {
		spawn := start.Add(time.Duration(rep) * r.Interval)
		for i := 0; i < n; i++ {
			out = append(out, &Particle{
				ID:      *nextID,
				Lon:     r.Lon,
				Lat:     r.Lat,
				Spawned: spawn,
				alive:   true,
			})
			*nextID++
		}
	}
	return out, nil
}
