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

// Package oceandriftutil wires the oceandrift model into a
// configuration-file driven command line interface.
package oceandriftutil

import (
	"fmt"

	"github.com/coastalmodel/oceandrift"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Cfg holds configuration information.
var Cfg *viper.Viper

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	// Options are the configuration options available to OceanDrift.
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "InputFile",
			usage: `
              InputFile is the path to the netCDF file holding the surface
              current data. It may be a URL, in which case the file is
              downloaded first.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), gapfillCmd.Flags(), renderCmd.Flags()},
		},
		{
			name: "OutputFile",
			usage: `
              OutputFile is the path where the simulated particle
              trajectories are written (run) or read from (render), or
              where the gapfilled currents are written (gapfill).`,
			defaultVal: "trajectories.nc",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), gapfillCmd.Flags(), renderCmd.Flags()},
		},
		{
			name: "Field.U",
			usage: `
              Field.U is the name of the West-East velocity variable in
              the current data file.`,
			defaultVal: "u",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), gapfillCmd.Flags(), renderCmd.Flags()},
		},
		{
			name: "Field.V",
			usage: `
              Field.V is the name of the South-North velocity variable in
              the current data file.`,
			defaultVal: "v",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), gapfillCmd.Flags(), renderCmd.Flags()},
		},
		{
			name: "Field.Lon",
			usage: `
              Field.Lon is the name of the longitude coordinate variable.`,
			defaultVal: "lon",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), gapfillCmd.Flags(), renderCmd.Flags()},
		},
		{
			name: "Field.Lat",
			usage: `
              Field.Lat is the name of the latitude coordinate variable.`,
			defaultVal: "lat",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), gapfillCmd.Flags(), renderCmd.Flags()},
		},
		{
			name: "Field.Time",
			usage: `
              Field.Time is the name of the time coordinate variable.`,
			defaultVal: "time",
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), gapfillCmd.Flags(), renderCmd.Flags()},
		},
		{
			name: "Simulation.Start",
			usage: `
              Simulation.Start is the simulation start time, formatted as
              in '2006-01-02 15:04:05'. An empty value means the start of
              the current data.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Simulation.End",
			usage: `
              Simulation.End is the simulation end time, formatted as in
              '2006-01-02 15:04:05'. An empty value means the end of the
              current data.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Simulation.Dt",
			usage: `
              Simulation.Dt is the integration time step in seconds.`,
			defaultVal: 300,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Simulation.OutputInterval",
			usage: `
              Simulation.OutputInterval is the time between recorded
              trajectory snapshots in seconds. It must be a multiple of
              Simulation.Dt.`,
			defaultVal: 3600,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Simulation.Euler",
			usage: `
              Simulation.Euler switches the advection scheme from 4th-order
              Runge-Kutta to forward Euler.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Simulation.RandomWalk",
			usage: `
              Simulation.RandomWalk adds a randomly directed velocity
              perturbation of the given amplitude [m/s] to every particle
              on every step, representing unresolved motion. Zero disables
              the perturbation.`,
			defaultVal: 0.,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Simulation.Seed",
			usage: `
              Simulation.Seed seeds the random number generator used by the
              random walk, so runs are reproducible.`,
			defaultVal: 42,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Simulation.MaxAge",
			usage: `
              Simulation.MaxAge removes particles older than the given
              number of seconds. Zero keeps particles forever.`,
			defaultVal: oceandrift.DefaultMaxAge,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Simulation.DropOutOfData",
			usage: `
              Simulation.DropOutOfData removes particles that drift into
              locations without current data coverage.`,
			defaultVal: true,
			flagsets:   []*pflag.FlagSet{runCmd.Flags()},
		},
		{
			name: "Gapfill.Apply",
			usage: `
              Gapfill.Apply fills gaps in the current data before the
              simulation starts.`,
			defaultVal: true,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), gapfillCmd.Flags()},
		},
		{
			name: "Gapfill.MaxIter",
			usage: `
              Gapfill.MaxIter is the maximum number of relaxation sweeps
              per gapfilled grid.`,
			defaultVal: oceandrift.DefaultGapfillMaxIter,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), gapfillCmd.Flags()},
		},
		{
			name: "Gapfill.Tolerance",
			usage: `
              Gapfill.Tolerance is the convergence tolerance [m/s] for the
              gapfilling relaxation.`,
			defaultVal: oceandrift.DefaultGapfillTolerance,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), gapfillCmd.Flags()},
		},
		{
			name: "Gapfill.MinCoverage",
			usage: `
              Gapfill.MinCoverage is the fraction of time steps a cell must
              have data for in order to be gapfilled rather than treated as
              land.`,
			defaultVal: 0.05,
			flagsets:   []*pflag.FlagSet{runCmd.Flags(), gapfillCmd.Flags()},
		},
		{
			name: "Render.FramesDir",
			usage: `
              Render.FramesDir is the directory the snapshot images are
              written to.`,
			defaultVal: "frames",
			flagsets:   []*pflag.FlagSet{renderCmd.Flags()},
		},
		{
			name: "Render.GifFile",
			usage: `
              Render.GifFile is the path of the animated GIF assembled from
              the snapshots. An empty value skips the animation.`,
			defaultVal: "trajectories.gif",
			flagsets:   []*pflag.FlagSet{renderCmd.Flags()},
		},
		{
			name: "Render.GifDelay",
			usage: `
              Render.GifDelay is the delay between animation frames in
              hundredths of a second.`,
			defaultVal: 25,
			flagsets:   []*pflag.FlagSet{renderCmd.Flags()},
		},
		{
			name: "Render.Width",
			usage: `
              Render.Width is the width of the rendered images in pixels.`,
			defaultVal: 800,
			flagsets:   []*pflag.FlagSet{renderCmd.Flags()},
		},
		{
			name: "Render.MaxSpeed",
			usage: `
              Render.MaxSpeed is the top of the current speed color scale
              [m/s]. Zero uses the maximum speed in the field.`,
			defaultVal: 0.6,
			flagsets:   []*pflag.FlagSet{renderCmd.Flags()},
		},
		{
			name: "Render.DrawField",
			usage: `
              Render.DrawField draws the current speed underneath the
              particles, which requires InputFile to be set.`,
			defaultVal: true,
			flagsets:   []*pflag.FlagSet{renderCmd.Flags()},
		},
		{
			name: "download",
			usage: `
              download specifies the directory downloaded files are saved
              to. The default is a temporary directory.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
	}

	Cfg = viper.New()

	// Set the prefix for configuration environment variables.
	Cfg.SetEnvPrefix("OCEANDRIFT")

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 { // We don't want to create the same flag twice.
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch option.defaultVal.(type) {
			case string:
				if option.shorthand == "" {
					set.String(option.name, option.defaultVal.(string), option.usage)
				} else {
					set.StringP(option.name, option.shorthand, option.defaultVal.(string), option.usage)
				}
			case bool:
				if option.shorthand == "" {
					set.Bool(option.name, option.defaultVal.(bool), option.usage)
				} else {
					set.BoolP(option.name, option.shorthand, option.defaultVal.(bool), option.usage)
				}
			case int:
				if option.shorthand == "" {
					set.Int(option.name, option.defaultVal.(int), option.usage)
				} else {
					set.IntP(option.name, option.shorthand, option.defaultVal.(int), option.usage)
				}
			case float64:
				if option.shorthand == "" {
					set.Float64(option.name, option.defaultVal.(float64), option.usage)
				} else {
					set.Float64P(option.name, option.shorthand, option.defaultVal.(float64), option.usage)
				}
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	// Link the commands together.
	Root.AddCommand(versionCmd)
	Root.AddCommand(runCmd)
	Root.AddCommand(gapfillCmd)
	Root.AddCommand(renderCmd)
	Root.AddCommand(fetchCmd)
}

// outChan returns a channel that logs progress messages.
func outChan() chan string {
	outChan := make(chan string)
	go func() {
		for msg := range outChan {
			logrus.Info(msg)
		}
	}()
	return outChan
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("oceandrift: problem reading configuration file: %v", err)
		}
	}
	return nil
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "oceandrift",
	Short: "A Lagrangian ocean surface current trajectory model.",
	Long: `OceanDrift simulates the trajectories of passive particles drifting in
measured or modeled ocean surface currents, and renders the results as
image sequences and animations.

Refer to the subcommand documentation for configuration options and default
settings. Configuration can be changed by using a configuration file (and
providing the path to the file using the --config flag), by using
command-line arguments, or by setting environment variables in the format
'OCEANDRIFT_var' where 'var' is the name of the variable to be set. Many
configuration variables are additionally allowed to contain environment
variables within them.`,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(*cobra.Command, []string) error { return setConfig() },
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  "version prints the version number of this version of OceanDrift.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("OceanDrift v%s\n", oceandrift.Version)
	},
	DisableAutoGenTag: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a particle trajectory simulation.",
	Long: `run loads the current data specified by InputFile, releases the particles
specified by the Releases configuration, advects them through the currents,
and writes the resulting trajectories to OutputFile.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		outChan := outChan()
		defer close(outChan)
		cfg, err := LoadConfig(Cfg)
		if err != nil {
			return err
		}
		return Run(cfg, outChan)
	},
	DisableAutoGenTag: true,
}

var gapfillCmd = &cobra.Command{
	Use:   "gapfill",
	Short: "Fill the gaps in a current data file.",
	Long: `gapfill loads the current data specified by InputFile, fills its grid
gaps by iterative relaxation, and writes the filled field to OutputFile.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		outChan := outChan()
		defer close(outChan)
		cfg, err := LoadConfig(Cfg)
		if err != nil {
			return err
		}
		return GapfillFile(cfg, outChan)
	},
	DisableAutoGenTag: true,
}

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render simulated trajectories as images and an animation.",
	Long: `render reads the trajectories in OutputFile, draws one snapshot image per
recorded output time into Render.FramesDir, and assembles the snapshots into
an animated GIF. If Render.DrawField is set, the current speed from
InputFile is drawn underneath the particles.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		outChan := outChan()
		defer close(outChan)
		cfg, err := LoadConfig(Cfg)
		if err != nil {
			return err
		}
		return RenderTrajectories(cfg, outChan)
	},
	DisableAutoGenTag: true,
}

var fetchCmd = &cobra.Command{
	Use:   "fetch url",
	Short: "Download a current data file.",
	Long: `fetch downloads a current data file (for example from a THREDDS server)
to the directory given by the download flag, retrying with exponential
backoff when the server is flaky. Files that are already present are not
downloaded again.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		outChan := outChan()
		defer close(outChan)
		path, err := fetch(args[0], Cfg.GetString("download"), outChan)
		if err != nil {
			return err
		}
		outChan <- fmt.Sprintf("Saved %s to %s", args[0], path)
		return nil
	},
	DisableAutoGenTag: true,
}
