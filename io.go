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
	"strings"
	"time"

	"github.com/ctessum/cdf"
	"github.com/ctessum/sparse"
)

// FieldVars maps the netCDF variable names in a current data file to
// their roles. Empty fields take the defaults used by most HF radar
// and model output archives.
type FieldVars struct {
	U, V     string // velocity components
	Lon, Lat string // coordinate variables
	Time     string // time coordinate variable
}

func (v FieldVars) withDefaults() FieldVars {
	if v.U == "" {
		v.U = "u"
	}
	if v.V == "" {
		v.V = "v"
	}
	if v.Lon == "" {
		v.Lon = "lon"
	}
	if v.Lat == "" {
		v.Lat = "lat"
	}
	if v.Time == "" {
		v.Time = "time"
	}
	return v
}

// ReadVectorField loads a surface current field from the netCDF data
// in rw. The velocity variables must have dimensions [time, lat, lon].
// Cells equal to the variable's _FillValue or missing_value attribute
// are stored as NaN.
func ReadVectorField(rw cdf.ReaderWriterAt, vars FieldVars) (*VectorField, error) {
	vars = vars.withDefaults()
	ff, err := cdf.Open(rw)
	if err != nil {
		return nil, fmt.Errorf("oceandrift: opening current data file: %v", err)
	}
	lons, err := readCoord(ff, vars.Lon)
	if err != nil {
		return nil, err
	}
	lats, err := readCoord(ff, vars.Lat)
	if err != nil {
		return nil, err
	}
	times, err := readTimes(ff, vars.Time)
	if err != nil {
		return nil, err
	}
	u, err := readVelocity(ff, vars.U, len(times), len(lats), len(lons))
	if err != nil {
		return nil, err
	}
	v, err := readVelocity(ff, vars.V, len(times), len(lats), len(lons))
	if err != nil {
		return nil, err
	}
	return NewVectorField(lons, lats, times, u, v)
}

// readCoord reads the one-dimensional coordinate variable name from ff.
func readCoord(ff *cdf.File, name string) ([]float64, error) {
	dims := ff.Header.Lengths(name)
	if len(dims) == 0 {
		return nil, fmt.Errorf("oceandrift: reading netcdf: variable %s is not in the file", name)
	}
	if len(dims) != 1 {
		return nil, fmt.Errorf("oceandrift: reading netcdf: coordinate variable %s has "+
			"%d dimensions instead of 1", name, len(dims))
	}
	r := ff.Reader(name, nil, nil)
	buf := r.Zero(dims[0])
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("oceandrift: reading netcdf variable %s: %v", name, err)
	}
	return toFloat64s(buf)
}

func toFloat64s(buf interface{}) ([]float64, error) {
	switch b := buf.(type) {
	case []float64:
		return b, nil
	case []float32:
		out := make([]float64, len(b))
		for i, v := range b {
			out[i] = float64(v)
		}
		return out, nil
	case []int32:
		out := make([]float64, len(b))
		for i, v := range b {
			out[i] = float64(v)
		}
		return out, nil
	case []int16:
		out := make([]float64, len(b))
		for i, v := range b {
			out[i] = float64(v)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("oceandrift: reading netcdf: unsupported data type %T", buf)
	}
}

// readTimes reads the time coordinate, interpreting its CF-style units
// attribute ("<unit> since <origin>").
func readTimes(ff *cdf.File, name string) ([]time.Time, error) {
	offsets, err := readCoord(ff, name)
	if err != nil {
		return nil, err
	}
	attr := ff.Header.GetAttribute(name, "units")
	if attr == nil {
		return nil, fmt.Errorf("oceandrift: reading netcdf: time variable %s has no units attribute", name)
	}
	units, ok := attr.(string)
	if !ok {
		return nil, fmt.Errorf("oceandrift: reading netcdf: time units attribute has type %T", attr)
	}
	unit, origin, err := parseTimeUnits(units)
	if err != nil {
		return nil, err
	}
	times := make([]time.Time, len(offsets))
	for i, o := range offsets {
		times[i] = origin.Add(time.Duration(o * float64(unit)))
	}
	return times, nil
}

// parseTimeUnits parses a CF-style time units string such as
// "seconds since 1970-01-01 00:00:00" or "hours since 2020-06-01".
func parseTimeUnits(units string) (time.Duration, time.Time, error) {
	fields := strings.SplitN(units, " since ", 2)
	if len(fields) != 2 {
		return 0, time.Time{}, fmt.Errorf("oceandrift: cannot parse time units %q", units)
	}
	var unit time.Duration
	switch strings.TrimSpace(strings.ToLower(fields[0])) {
	case "seconds", "second", "s":
		unit = time.Second
	case "minutes", "minute", "min":
		unit = time.Minute
	case "hours", "hour", "h":
		unit = time.Hour
	case "days", "day", "d":
		unit = 24 * time.Hour
	default:
		return 0, time.Time{}, fmt.Errorf("oceandrift: unsupported time unit %q", fields[0])
	}
	origin := strings.TrimSpace(fields[1])
	for _, layout := range []string{
		"2006-01-02 15:04:05",
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02",
	} {
		if t, err := time.Parse(layout, origin); err == nil {
			return unit, t.UTC(), nil
		}
	}
	return 0, time.Time{}, fmt.Errorf("oceandrift: cannot parse time origin %q", origin)
}

// readVelocity reads the velocity variable name one time step at a
// time, replacing fill values with NaN.
func readVelocity(ff *cdf.File, name string, nt, ny, nx int) ([]*sparse.DenseArray, error) {
	dims := ff.Header.Lengths(name)
	if len(dims) == 0 {
		return nil, fmt.Errorf("oceandrift: reading netcdf: variable %s is not in the file", name)
	}
	if len(dims) != 3 || dims[0] != nt || dims[1] != ny || dims[2] != nx {
		return nil, fmt.Errorf("oceandrift: reading netcdf: variable %s has dimensions %v; "+
			"expected [%d %d %d]", name, dims, nt, ny, nx)
	}
	fill := fillValue(ff, name)
	out := make([]*sparse.DenseArray, nt)
	for it := 0; it < nt; it++ {
		start := []int{it, 0, 0}
		end := []int{it + 1, ny, nx}
		r := ff.Reader(name, start, end)
		buf := r.Zero(ny * nx)
		if _, err := r.Read(buf); err != nil {
			return nil, fmt.Errorf("oceandrift: reading netcdf variable %s at time step %d: %v",
				name, it, err)
		}
		vals, err := toFloat64s(buf)
		if err != nil {
			return nil, err
		}
		a := sparse.ZerosDense(ny, nx)
		for i, v := range vals {
			if isFill(v, fill) {
				a.Elements[i] = math.NaN()
			} else {
				a.Elements[i] = v
			}
		}
		out[it] = a
	}
	return out, nil
}

// fillValue returns the missing-data marker for variable name,
// or NaN if none is declared.
func fillValue(ff *cdf.File, name string) float64 {
	for _, attr := range []string{"_FillValue", "missing_value"} {
		if v := ff.Header.GetAttribute(name, attr); v != nil {
			if vals, err := toFloat64s(v); err == nil && len(vals) > 0 {
				return vals[0]
			}
		}
	}
	return math.NaN()
}

func isFill(v, fill float64) bool {
	if math.IsNaN(v) {
		return true
	}
	if math.IsNaN(fill) {
		return false
	}
	return v == fill
}

// Write writes the field to netCDF file w in the same layout that
// ReadVectorField expects, with gaps stored as NaN.
func (f *VectorField) Write(w *os.File) error {
	h := cdf.NewHeader(
		[]string{"time", "lat", "lon"},
		[]int{len(f.Times), len(f.Lats), len(f.Lons)})
	h.AddAttribute("", "comment", "OceanDrift surface current data file")

	h.AddVariable("lon", []string{"lon"}, []float64{0})
	h.AddAttribute("lon", "units", "degrees_east")
	h.AddVariable("lat", []string{"lat"}, []float64{0})
	h.AddAttribute("lat", "units", "degrees_north")
	h.AddVariable("time", []string{"time"}, []float64{0})
	h.AddAttribute("time", "units", "seconds since 1970-01-01 00:00:00")

	for _, name := range []string{"u", "v"} {
		h.AddVariable(name, []string{"time", "lat", "lon"}, []float32{0})
		h.AddAttribute(name, "units", "m/s")
	}
	h.Define()

	ff, err := cdf.Create(w, h) // writes the header to w
	if err != nil {
		return err
	}
	if err := writeFloat64s(ff, "lon", f.Lons); err != nil {
		return err
	}
	if err := writeFloat64s(ff, "lat", f.Lats); err != nil {
		return err
	}
	secs := make([]float64, len(f.Times))
	for i, t := range f.Times {
		secs[i] = float64(t.UnixNano()) / float64(time.Second)
	}
	if err := writeFloat64s(ff, "time", secs); err != nil {
		return err
	}
	for it := range f.Times {
		if err := writeVelocityStep(ff, "u", it, f.U[it]); err != nil {
			return err
		}
		if err := writeVelocityStep(ff, "v", it, f.V[it]); err != nil {
			return err
		}
	}
	return cdf.UpdateNumRecs(w)
}

func writeFloat64s(ff *cdf.File, name string, data []float64) error {
	end := ff.Header.Lengths(name)
	start := make([]int, len(end))
	w := ff.Writer(name, start, end)
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("oceandrift: writing variable %s to netcdf file: %v", name, err)
	}
	return nil
}

func writeInt32s(ff *cdf.File, name string, data []int32) error {
	end := ff.Header.Lengths(name)
	start := make([]int, len(end))
	w := ff.Writer(name, start, end)
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("oceandrift: writing variable %s to netcdf file: %v", name, err)
	}
	return nil
}

func writeVelocityStep(ff *cdf.File, name string, it int, data *sparse.DenseArray) error {
	ny, nx := data.Shape[0], data.Shape[1]
	data32 := make([]float32, len(data.Elements))
	for i, e := range data.Elements {
		data32[i] = float32(e)
	}
	w := ff.Writer(name, []int{it, 0, 0}, []int{it + 1, ny, nx})
	if _, err := w.Write(data32); err != nil {
		return fmt.Errorf("oceandrift: writing variable %s to netcdf file: %v", name, err)
	}
	return nil
}
