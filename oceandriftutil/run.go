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

package oceandriftutil

import (
	"fmt"
	"os"

	"github.com/coastalmodel/oceandrift"
	"github.com/coastalmodel/oceandrift/render"
)

// loadField opens the configured current data file, downloading it
// first when necessary, and optionally fills its grid gaps.
func loadField(cfg *Config, gapfill bool, c chan string) (*oceandrift.VectorField, error) {
	if cfg.InputFile == "" {
		return nil, fmt.Errorf("oceandrift: the InputFile configuration variable is not set")
	}
	path, err := maybeDownload(cfg.InputFile, Cfg.GetString("download"), c)
	if err != nil {
		return nil, err
	}
	c <- fmt.Sprintf("Reading currents from %s", path)
	r, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("oceandrift: opening current data: %v", err)
	}
	defer r.Close()
	f, err := oceandrift.ReadVectorField(r, cfg.FieldVars)
	if err != nil {
		return nil, err
	}
	if gapfill {
		mask := f.LandMask(cfg.GapfillMinCoverage)
		if err := f.Gapfill(cfg.GapfillMaxIter, cfg.GapfillTolerance, mask, c); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Run performs a particle trajectory simulation as specified by cfg
// and writes the resulting trajectories to cfg.OutputFile. c receives
// progress messages.
func Run(cfg *Config, c chan string) error {
	f, err := loadField(cfg, cfg.GapfillApply, c)
	if err != nil {
		return err
	}

	sim, err := oceandrift.NewSimulation(f, cfg.Start, cfg.End, cfg.Dt, cfg.OutputInterval)
	if err != nil {
		return err
	}
	sim.MsgChan = c

	if cfg.Euler {
		sim.AddKernel(oceandrift.EulerAdvection(f))
	} else {
		sim.AddKernel(oceandrift.RK4Advection(f))
	}
	if cfg.RandomWalk > 0 {
		sim.AddKernel(oceandrift.RandomWalk(cfg.RandomWalk, cfg.Seed))
	}
	sim.AddKernel(oceandrift.Age())
	if cfg.DropOutOfData {
		sim.AddKernel(oceandrift.DropOutOfData(f))
	} else {
		sim.AddKernel(oceandrift.FlagOutOfData(f))
	}
	sim.AddKernel(oceandrift.DropOutOfDomain(f))
	if cfg.MaxAge > 0 {
		sim.AddKernel(oceandrift.DropAfter(cfg.MaxAge))
	}

	if len(cfg.Releases) == 0 {
		return fmt.Errorf("oceandrift: the Releases configuration variable is empty; " +
			"there are no particles to simulate")
	}
	if err := sim.Release(cfg.Releases...); err != nil {
		return err
	}

	tr, err := sim.Run()
	if err != nil {
		return err
	}

	c <- fmt.Sprintf("Writing trajectories to %s", cfg.OutputFile)
	w, err := os.Create(cfg.OutputFile)
	if err != nil {
		return fmt.Errorf("oceandrift: creating output file: %v", err)
	}
	if err := tr.Write(w); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// GapfillFile fills the grid gaps in the configured current data file
// and writes the filled field to cfg.OutputFile.
func GapfillFile(cfg *Config, c chan string) error {
	f, err := loadField(cfg, true, c)
	if err != nil {
		return err
	}
	c <- fmt.Sprintf("Writing gapfilled currents to %s", cfg.OutputFile)
	w, err := os.Create(cfg.OutputFile)
	if err != nil {
		return fmt.Errorf("oceandrift: creating output file: %v", err)
	}
	if err := f.Write(w); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// RenderTrajectories draws the trajectories in cfg.OutputFile as one
// image per recorded snapshot and assembles them into an animated GIF.
func RenderTrajectories(cfg *Config, c chan string) error {
	r, err := os.Open(cfg.OutputFile)
	if err != nil {
		return fmt.Errorf("oceandrift: opening trajectories: %v", err)
	}
	tr, err := oceandrift.ReadTrajectories(r)
	r.Close()
	if err != nil {
		return err
	}

	var f *oceandrift.VectorField
	if cfg.DrawField {
		if f, err = loadField(cfg, cfg.GapfillApply, c); err != nil {
			return err
		}
	}

	rc := &render.Config{
		Width:    cfg.Width,
		Domain:   cfg.Domain,
		MaxSpeed: cfg.MaxSpeed,
	}
	c <- fmt.Sprintf("Drawing %d snapshots to %s", tr.NumSnapshots(), cfg.FramesDir)
	frames, err := rc.Snapshots(tr, f, cfg.Features, cfg.FramesDir)
	if err != nil {
		return err
	}
	if cfg.GifFile == "" {
		return nil
	}
	c <- fmt.Sprintf("Assembling animation %s", cfg.GifFile)
	return render.AnimateGIF(frames, cfg.GifFile, cfg.GifDelay)
}
