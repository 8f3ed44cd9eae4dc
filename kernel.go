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
	"math/rand"
	"sync"
	"time"
)

// oobThreshold is the speed [m/s] below which both velocity components
// must fall for a location to be considered outside of the data
// footprint: gaps and land cells interpolate to (approximately) zero.
const oobThreshold = 1.e-14

// DefaultMaxAge is how long particles live when no explicit maximum
// age is configured: 3 days.
const DefaultMaxAge = 259200. // seconds

// A ParticleManipulator updates the state of one particle over the
// time step of length Δt [s] starting at t. Manipulators are applied
// to each particle in order on every simulation step.
type ParticleManipulator func(p *Particle, t time.Time, Δt float64)

// velocityDeg returns the current velocity at the given location
// converted to degrees of longitude and latitude per second.
// Locations outside of the field domain drift with zero velocity;
// DropOutOfDomain removes them.
func velocityDeg(f *VectorField, t time.Time, lon, lat float64) (dλ, dφ float64) {
	u, v, err := f.Velocity(t, lon, lat)
	if err != nil {
		return 0, 0
	}
	return u / (metersPerDegree * math.Cos(lat*math.Pi/180)), v / metersPerDegree
}

// RK4Advection returns a manipulator that advects particles through
// the field with the classical 4th-order Runge-Kutta scheme.
func RK4Advection(f *VectorField) ParticleManipulator {
	return func(p *Particle, t time.Time, Δt float64) {
		dt := time.Duration(Δt * float64(time.Second))
		u1, v1 := velocityDeg(f, t, p.Lon, p.Lat)
		u2, v2 := velocityDeg(f, t.Add(dt/2), p.Lon+u1*Δt/2, p.Lat+v1*Δt/2)
		u3, v3 := velocityDeg(f, t.Add(dt/2), p.Lon+u2*Δt/2, p.Lat+v2*Δt/2)
		u4, v4 := velocityDeg(f, t.Add(dt), p.Lon+u3*Δt, p.Lat+v3*Δt)
		p.Lon += (u1 + 2*u2 + 2*u3 + u4) / 6 * Δt
		p.Lat += (v1 + 2*v2 + 2*v3 + v4) / 6 * Δt
	}
}

// EulerAdvection returns a manipulator that advects particles with the
// forward Euler scheme. It is cheaper but less accurate than
// RK4Advection.
func EulerAdvection(f *VectorField) ParticleManipulator {
	return func(p *Particle, t time.Time, Δt float64) {
		u, v := velocityDeg(f, t, p.Lon, p.Lat)
		p.Lon += u * Δt
		p.Lat += v * Δt
	}
}

// Age returns a manipulator that accumulates particle lifetimes.
func Age() ParticleManipulator {
	return func(p *Particle, t time.Time, Δt float64) {
		p.Lifetime += Δt
	}
}

// RandomWalk returns a manipulator that perturbs the particle velocity
// by uerr [m/s] in a uniformly random direction, representing
// unresolved sub-grid motion and measurement error in the currents.
// Each particle draws from its own generator derived from seed and the
// particle ID, so identically seeded runs are reproducible no matter
// how particles are distributed across workers.
func RandomWalk(uerr float64, seed int64) ParticleManipulator {
	var mx sync.Mutex
	rngs := make(map[int]*rand.Rand)
	return func(p *Particle, t time.Time, Δt float64) {
		mx.Lock()
		rng, ok := rngs[p.ID]
		if !ok {
			rng = rand.New(rand.NewSource(seed + int64(p.ID)))
			rngs[p.ID] = rng
		}
		θ := 2 * math.Pi * rng.Float64()
		mx.Unlock()
		du := uerr * math.Cos(θ)
		dv := uerr * math.Sin(θ)
		p.Lon += du * Δt / (metersPerDegree * math.Cos(p.Lat*math.Pi/180))
		p.Lat += dv * Δt / metersPerDegree
	}
}

// FlagOutOfData returns a manipulator that marks particles that have
// drifted into a location without current data coverage.
func FlagOutOfData(f *VectorField) ParticleManipulator {
	return func(p *Particle, t time.Time, Δt float64) {
		u, v, err := f.Velocity(t, p.Lon, p.Lat)
		p.OOB = err == nil && math.Abs(u) < oobThreshold && math.Abs(v) < oobThreshold
	}
}

// DropOutOfData returns a manipulator that removes particles that have
// drifted into a location without current data coverage.
func DropOutOfData(f *VectorField) ParticleManipulator {
	return func(p *Particle, t time.Time, Δt float64) {
		u, v, err := f.Velocity(t, p.Lon, p.Lat)
		if err == nil && math.Abs(u) < oobThreshold && math.Abs(v) < oobThreshold {
			p.Kill()
		}
	}
}

// DropOutOfDomain returns a manipulator that removes particles that
// have left the spatial extent of the field.
func DropOutOfDomain(f *VectorField) ParticleManipulator {
	b := f.Bounds()
	return func(p *Particle, t time.Time, Δt float64) {
		if p.Lon < b.Min.X || p.Lon > b.Max.X || p.Lat < b.Min.Y || p.Lat > b.Max.Y {
			p.Kill()
		}
	}
}

// DropAfter returns a manipulator that removes particles older than
// maxAge [s].
func DropAfter(maxAge float64) ParticleManipulator {
	return func(p *Particle, t time.Time, Δt float64) {
		if p.Lifetime > maxAge {
			p.Kill()
		}
	}
}
