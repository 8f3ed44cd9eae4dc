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
	"strings"
	"time"

	"github.com/coastalmodel/oceandrift"
	"github.com/ctessum/geom"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// Config holds the fully parsed configuration for the run, gapfill and
// render commands.
type Config struct {
	InputFile  string
	OutputFile string

	FieldVars oceandrift.FieldVars

	Start, End     time.Time
	Dt             time.Duration
	OutputInterval time.Duration

	Euler         bool
	RandomWalk    float64 // m/s; 0 disables
	Seed          int64
	MaxAge        float64 // seconds; 0 disables
	DropOutOfData bool

	GapfillApply       bool
	GapfillMaxIter     int
	GapfillTolerance   float64
	GapfillMinCoverage float64

	Releases []oceandrift.ReleaseSpec
	Features []*oceandrift.Feature

	FramesDir string
	GifFile   string
	GifDelay  int
	Width     int
	MaxSpeed  float64
	DrawField bool
	Domain    *geom.Bounds
}

// LoadConfig parses a viper configuration into a Config, expanding
// environment variables in file paths.
func LoadConfig(cfg *viper.Viper) (*Config, error) {
	c := &Config{
		InputFile:  os.ExpandEnv(cfg.GetString("InputFile")),
		OutputFile: os.ExpandEnv(cfg.GetString("OutputFile")),
		FieldVars: oceandrift.FieldVars{
			U:    cfg.GetString("Field.U"),
			V:    cfg.GetString("Field.V"),
			Lon:  cfg.GetString("Field.Lon"),
			Lat:  cfg.GetString("Field.Lat"),
			Time: cfg.GetString("Field.Time"),
		},
		Euler:              cfg.GetBool("Simulation.Euler"),
		RandomWalk:         cfg.GetFloat64("Simulation.RandomWalk"),
		Seed:               cfg.GetInt64("Simulation.Seed"),
		MaxAge:             cfg.GetFloat64("Simulation.MaxAge"),
		DropOutOfData:      cfg.GetBool("Simulation.DropOutOfData"),
		GapfillApply:       cfg.GetBool("Gapfill.Apply"),
		GapfillMaxIter:     cfg.GetInt("Gapfill.MaxIter"),
		GapfillTolerance:   cfg.GetFloat64("Gapfill.Tolerance"),
		GapfillMinCoverage: cfg.GetFloat64("Gapfill.MinCoverage"),
		FramesDir:          os.ExpandEnv(cfg.GetString("Render.FramesDir")),
		GifFile:            os.ExpandEnv(cfg.GetString("Render.GifFile")),
		GifDelay:           cfg.GetInt("Render.GifDelay"),
		Width:              cfg.GetInt("Render.Width"),
		MaxSpeed:           cfg.GetFloat64("Render.MaxSpeed"),
		DrawField:          cfg.GetBool("Render.DrawField"),
	}
	var err error
	if c.Start, err = parseTime(cfg.GetString("Simulation.Start"), "Simulation.Start"); err != nil {
		return nil, err
	}
	if c.End, err = parseTime(cfg.GetString("Simulation.End"), "Simulation.End"); err != nil {
		return nil, err
	}
	dt := cfg.GetInt("Simulation.Dt")
	if dt <= 0 {
		return nil, fmt.Errorf("oceandrift: the Simulation.Dt configuration variable must be "+
			"a positive number of seconds but is %d", dt)
	}
	c.Dt = time.Duration(dt) * time.Second
	c.OutputInterval = time.Duration(cfg.GetInt("Simulation.OutputInterval")) * time.Second

	if c.Releases, err = releases(cfg.Get("Releases")); err != nil {
		return nil, err
	}
	if c.Features, err = features(cfg.Get("Features")); err != nil {
		return nil, err
	}
	if c.Domain, err = domain(cfg.Get("Render.Domain")); err != nil {
		return nil, err
	}
	return c, nil
}

// timeLayouts are the accepted formats for configured times.
var timeLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseTime(s, key string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("oceandrift: cannot parse the %s configuration "+
		"variable %q as a time; use a format like '2006-01-02 15:04:05'", key, s)
}

// releases parses the Releases configuration section: a list of tables
// with Lon and Lat entries and optional N, Start, Interval and Repeats.
func releases(val interface{}) ([]oceandrift.ReleaseSpec, error) {
	if val == nil {
		return nil, nil
	}
	items, err := cast.ToSliceE(val)
	if err != nil {
		return nil, fmt.Errorf("oceandrift: the Releases configuration variable must be "+
			"a list of tables: %v", err)
	}
	out := make([]oceandrift.ReleaseSpec, len(items))
	for i, item := range items {
		m, err := cast.ToStringMapE(item)
		if err != nil {
			return nil, fmt.Errorf("oceandrift: Releases entry %d: %v", i, err)
		}
		var spec oceandrift.ReleaseSpec
		if spec.Lon, err = requiredFloat(m, "Lon", i); err != nil {
			return nil, err
		}
		if spec.Lat, err = requiredFloat(m, "Lat", i); err != nil {
			return nil, err
		}
		if v, ok := lookup(m, "N"); ok {
			if spec.N, err = cast.ToIntE(v); err != nil {
				return nil, fmt.Errorf("oceandrift: Releases entry %d: N: %v", i, err)
			}
		}
		if v, ok := lookup(m, "Start"); ok {
			s, err := cast.ToStringE(v)
			if err != nil {
				return nil, fmt.Errorf("oceandrift: Releases entry %d: Start: %v", i, err)
			}
			if spec.Start, err = parseTime(s, fmt.Sprintf("Releases[%d].Start", i)); err != nil {
				return nil, err
			}
		}
		if v, ok := lookup(m, "Interval"); ok {
			secs, err := cast.ToFloat64E(v)
			if err != nil {
				return nil, fmt.Errorf("oceandrift: Releases entry %d: Interval: %v", i, err)
			}
			spec.Interval = time.Duration(secs * float64(time.Second))
		}
		if v, ok := lookup(m, "Repeats"); ok {
			if spec.Repeats, err = cast.ToIntE(v); err != nil {
				return nil, fmt.Errorf("oceandrift: Releases entry %d: Repeats: %v", i, err)
			}
		}
		out[i] = spec
	}
	return out, nil
}

// features parses the Features configuration section: a list of tables
// with a Points entry (a list of [lon, lat] pairs) and optional
// Labels, TrackDist and Segments entries.
func features(val interface{}) ([]*oceandrift.Feature, error) {
	if val == nil {
		return nil, nil
	}
	items, err := cast.ToSliceE(val)
	if err != nil {
		return nil, fmt.Errorf("oceandrift: the Features configuration variable must be "+
			"a list of tables: %v", err)
	}
	out := make([]*oceandrift.Feature, len(items))
	for i, item := range items {
		m, err := cast.ToStringMapE(item)
		if err != nil {
			return nil, fmt.Errorf("oceandrift: Features entry %d: %v", i, err)
		}
		rawPoints, ok := lookup(m, "Points")
		if !ok {
			return nil, fmt.Errorf("oceandrift: Features entry %d is missing the Points variable", i)
		}
		pairs, err := cast.ToSliceE(rawPoints)
		if err != nil {
			return nil, fmt.Errorf("oceandrift: Features entry %d: Points: %v", i, err)
		}
		points := make([]geom.Point, len(pairs))
		for j, pair := range pairs {
			xy, err := toFloatSlice(pair)
			if err != nil || len(xy) != 2 {
				return nil, fmt.Errorf("oceandrift: Features entry %d: point %d must be "+
					"a [lon, lat] pair", i, j)
			}
			points[j] = geom.Point{X: xy[0], Y: xy[1]}
		}
		var labels []string
		if v, ok := lookup(m, "Labels"); ok {
			if labels, err = cast.ToStringSliceE(v); err != nil {
				return nil, fmt.Errorf("oceandrift: Features entry %d: Labels: %v", i, err)
			}
		}
		trackDist := 0.
		if v, ok := lookup(m, "TrackDist"); ok {
			if trackDist, err = cast.ToFloat64E(v); err != nil {
				return nil, fmt.Errorf("oceandrift: Features entry %d: TrackDist: %v", i, err)
			}
		}
		segments := false
		if v, ok := lookup(m, "Segments"); ok {
			if segments, err = cast.ToBoolE(v); err != nil {
				return nil, fmt.Errorf("oceandrift: Features entry %d: Segments: %v", i, err)
			}
		}
		var ft *oceandrift.Feature
		if segments {
			ft, err = oceandrift.NewSegmentFeature(points, labels, trackDist)
		} else {
			ft, err = oceandrift.NewFeature(points, labels, trackDist)
		}
		if err != nil {
			return nil, err
		}
		out[i] = ft
	}
	return out, nil
}

// domain parses an optional [W, S, E, N] map extent.
func domain(val interface{}) (*geom.Bounds, error) {
	if val == nil {
		return nil, nil
	}
	vals, err := toFloatSlice(val)
	if err != nil || len(vals) != 4 {
		return nil, fmt.Errorf("oceandrift: the Render.Domain configuration variable must be "+
			"a [W, S, E, N] list of numbers")
	}
	w, s, e, n := vals[0], vals[1], vals[2], vals[3]
	if w >= e || s >= n {
		return nil, fmt.Errorf("oceandrift: Render.Domain [%g, %g, %g, %g] is empty", w, s, e, n)
	}
	return &geom.Bounds{
		Min: geom.Point{X: w, Y: s},
		Max: geom.Point{X: e, Y: n},
	}, nil
}

func toFloatSlice(val interface{}) ([]float64, error) {
	items, err := cast.ToSliceE(val)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(items))
	for i, item := range items {
		if out[i], err = cast.ToFloat64E(item); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// lookup finds key in m case-insensitively, because TOML, YAML and
// JSON configuration files preserve case differently.
func lookup(m map[string]interface{}, key string) (interface{}, bool) {
	if v, ok := m[key]; ok {
		return v, true
	}
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

func requiredFloat(m map[string]interface{}, key string, entry int) (float64, error) {
	v, ok := lookup(m, key)
	if !ok {
		return 0, fmt.Errorf("oceandrift: Releases entry %d is missing the %s variable", entry, key)
	}
	f, err := cast.ToFloat64E(v)
	if err != nil {
		return 0, fmt.Errorf("oceandrift: Releases entry %d: %s: %v", entry, key, err)
	}
	return f, nil
}
