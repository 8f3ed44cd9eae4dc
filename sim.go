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
	"runtime"
	"sync"
	"time"
)

// Simulation advects a set of particles through a current field.
type Simulation struct {
	// Field is the current field particles are advected through.
	Field *VectorField

	// Start and End bound the simulated period. They must lie within
	// the field time extent.
	Start, End time.Time

	// Dt is the integration time step.
	Dt time.Duration

	// OutputInterval is the time between recorded snapshots.
	// It must be a multiple of Dt.
	OutputInterval time.Duration

	// MsgChan, if not nil, receives progress information during Run.
	MsgChan chan string

	particles []*Particle
	kernels   []ParticleManipulator
	nextID    int
}

// NewSimulation creates a simulation of the period [start, end] with
// integration step dt and snapshot spacing outputInterval. Zero start
// and end times default to the field time extent.
func NewSimulation(f *VectorField, start, end time.Time, dt, outputInterval time.Duration) (*Simulation, error) {
	fStart, fEnd := f.TimeBounds()
	if start.IsZero() {
		start = fStart
	}
	if end.IsZero() {
		end = fEnd
	}
	if !start.Before(end) {
		return nil, fmt.Errorf("oceandrift: simulation start %v is not before end %v", start, end)
	}
	if start.Before(fStart) || end.After(fEnd) {
		return nil, fmt.Errorf("oceandrift: simulation period [%v, %v] is outside of the "+
			"field time extent [%v, %v]", start, end, fStart, fEnd)
	}
	if dt <= 0 {
		return nil, fmt.Errorf("oceandrift: simulation time step must be positive but is %v", dt)
	}
	if outputInterval <= 0 {
		outputInterval = dt
	}
	if outputInterval%dt != 0 {
		return nil, fmt.Errorf("oceandrift: output interval %v is not a multiple of the "+
			"time step %v", outputInterval, dt)
	}
	if end.Sub(start)%dt != 0 {
		return nil, fmt.Errorf("oceandrift: simulation period %v is not a multiple of the "+
			"time step %v", end.Sub(start), dt)
	}
	return &Simulation{
		Field:          f,
		Start:          start,
		End:            end,
		Dt:             dt,
		OutputInterval: outputInterval,
	}, nil
}

// AddKernel appends manipulators to the per-particle operations
// applied on every time step, in order.
func (s *Simulation) AddKernel(k ...ParticleManipulator) {
	s.kernels = append(s.kernels, k...)
}

// Release adds the particles described by the given specs to the
// simulation. Releases scheduled after the simulation end are
// rejected.
func (s *Simulation) Release(specs ...ReleaseSpec) error {
	for _, spec := range specs {
		pp, err := spec.particles(s.Start, &s.nextID)
		if err != nil {
			return err
		}
		for _, p := range pp {
			if p.Spawned.After(s.End) {
				return fmt.Errorf("oceandrift: release at (%g, %g) spawns at %v, "+
					"after the simulation end %v", p.Lon, p.Lat, p.Spawned, s.End)
			}
			if p.Spawned.Before(s.Start) {
				return fmt.Errorf("oceandrift: release at (%g, %g) spawns at %v, "+
					"before the simulation start %v", p.Lon, p.Lat, p.Spawned, s.Start)
			}
		}
		s.particles = append(s.particles, pp...)
	}
	return nil
}

// Particles returns the particles currently registered with the
// simulation.
func (s *Simulation) Particles() []*Particle { return s.particles }

// Run integrates the particles from Start to End and returns their
// recorded trajectories. Kernels are applied to every live, already
// released particle on each step, concurrently across particles.
func (s *Simulation) Run() (*Trajectories, error) {
	if len(s.particles) == 0 {
		return nil, fmt.Errorf("oceandrift: no particles have been released")
	}
	if len(s.kernels) == 0 {
		return nil, fmt.Errorf("oceandrift: no kernels have been added to the simulation")
	}

	nsteps := int(s.End.Sub(s.Start) / s.Dt)
	stride := int(s.OutputInterval / s.Dt)
	nobs := nsteps/stride + 1
	tr := newTrajectories(len(s.particles), nobs)
	tr.Times = make([]time.Time, nobs)
	for ip, p := range s.particles {
		tr.IDs[ip] = p.ID
	}

	nprocs := runtime.GOMAXPROCS(0)
	var wg sync.WaitGroup

	Δt := s.Dt.Seconds()
	iobs := 0
	for step := 0; step <= nsteps; step++ {
		t := s.Start.Add(time.Duration(step) * s.Dt)

		if step%stride == 0 {
			tr.Times[iobs] = t
			for ip, p := range s.particles {
				if p.Alive() && !p.Spawned.After(t) {
					tr.record(ip, iobs, p)
				}
			}
			iobs++
		}
		if step == nsteps {
			break
		}

		// Concurrently run all of the kernels on all of the particles.
		wg.Add(nprocs)
		for pp := 0; pp < nprocs; pp++ {
			go func(pp int) {
				defer wg.Done()
				for ii := pp; ii < len(s.particles); ii += nprocs {
					p := s.particles[ii]
					if !p.Alive() || p.Spawned.After(t) {
						continue
					}
					for _, k := range s.kernels {
						k(p, t, Δt)
					}
				}
			}(pp)
		}
		wg.Wait()

		if s.MsgChan != nil && (step+1)%stride == 0 {
			alive := 0
			for _, p := range s.particles {
				if p.Alive() {
					alive++
				}
			}
			s.MsgChan <- fmt.Sprintf("Advected %d particles (%d alive) through step %d of %d",
				len(s.particles), alive, step+1, nsteps)
		}
	}
	return tr, nil
}
