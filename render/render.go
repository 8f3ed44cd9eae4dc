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

// Package render draws particle trajectory simulations as image
// sequences and animations.
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"os"
	"path/filepath"

	"github.com/coastalmodel/oceandrift"
	"github.com/ctessum/geom"
	"github.com/ctessum/geom/carto"
	"gonum.org/v1/plot/vg"
	vgdraw "gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"
)

// domainPad is the margin [degrees] added around the particle extent
// when no field or explicit domain supplies one.
const domainPad = 0.0005

// Config holds rendering options.
type Config struct {
	// Width is the image width in pixels (default 800). The height
	// follows from the domain aspect ratio.
	Width int

	// Domain is the map extent. If nil, the field extent is used,
	// or the padded particle extent when there is no field.
	Domain *geom.Bounds

	// MaxSpeed is the top of the current speed color scale [m/s].
	// Zero means the maximum speed in the field.
	MaxSpeed float64
}

func (c *Config) width() int {
	if c.Width <= 0 {
		return 800
	}
	return c.Width
}

// domain returns the map extent for the given trajectories and
// (possibly nil) field.
func (c *Config) domain(tr *oceandrift.Trajectories, f *oceandrift.VectorField) (*geom.Bounds, error) {
	if c.Domain != nil {
		return c.Domain, nil
	}
	if f != nil {
		return f.Bounds(), nil
	}
	w, e, s, n, err := tr.Bounds()
	if err != nil {
		return nil, err
	}
	return &geom.Bounds{
		Min: geom.Point{X: w - domainPad, Y: s - domainPad},
		Max: geom.Point{X: e + domainPad, Y: n + domainPad},
	}, nil
}

// Snapshots draws one PNG frame per recorded snapshot into dir and
// returns the frame paths in time order. The current field f may be
// nil, in which case only the particles and features are drawn.
func (c *Config) Snapshots(tr *oceandrift.Trajectories, f *oceandrift.VectorField, features []*oceandrift.Feature, dir string) ([]string, error) {
	if f != nil {
		if err := tr.CheckDomain(f); err != nil {
			return nil, err
		}
	}
	b, err := c.domain(tr, f)
	if err != nil {
		return nil, err
	}

	speedMap := carto.NewColorMap(carto.Linear)
	maxSpeed := c.MaxSpeed
	if maxSpeed <= 0 {
		if f != nil {
			maxSpeed = f.MaxSpeed()
		}
		if maxSpeed <= 0 {
			maxSpeed = 1
		}
	}
	speedMap.AddArray([]float64{0, maxSpeed})
	speedMap.Set()

	lifeMap := carto.NewColorMap(carto.Linear)
	lifeMap.AddArray([]float64{0, math.Max(tr.MaxLifetime(), 1)})
	lifeMap.Set()

	labelFont, err := vg.MakeFont("Helvetica", vg.Points(8))
	if err != nil {
		return nil, fmt.Errorf("render: loading label font: %v", err)
	}

	if err := os.MkdirAll(dir, os.ModePerm); err != nil {
		return nil, fmt.Errorf("render: creating frame directory: %v", err)
	}
	paths := make([]string, tr.NumSnapshots())
	for iobs := range paths {
		paths[iobs] = filepath.Join(dir, fmt.Sprintf("snap%04d.png", iobs))
		if err := c.drawFrame(tr, f, features, iobs, b, speedMap, lifeMap, labelFont, paths[iobs]); err != nil {
			return nil, err
		}
	}
	return paths, nil
}

func (c *Config) drawFrame(tr *oceandrift.Trajectories, f *oceandrift.VectorField,
	features []*oceandrift.Feature, iobs int, b *geom.Bounds,
	speedMap, lifeMap *carto.ColorMap, labelFont vg.Font, filename string) error {

	W, E := b.Min.X, b.Max.X
	S, N := b.Min.Y, b.Max.Y
	width := c.width()
	height := int(float64(width) * (N - S) / (E - W))

	img := draw.Image(image.NewRGBA(image.Rect(0, 0, width, height)))
	// white background
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	cv := vgimg.NewWith(vgimg.UseImage(img))
	dc := vgdraw.New(cv)
	m := carto.NewCanvas(N, S, E, W, dc)

	noLine := vgdraw.LineStyle{Width: 0, Color: color.NRGBA{0, 0, 0, 0}}

	if f != nil {
		it, err := f.TimeIndex(tr.Times[iobs])
		if err != nil {
			return err
		}
		speed := f.Speed(it)
		for j := 0; j < f.Ny(); j++ {
			for i := 0; i < f.Nx(); i++ {
				s := speed.Get(j, i)
				if math.IsNaN(s) {
					continue // grid gap; leave the background color
				}
				fill := speedMap.GetColor(s)
				if err := m.DrawVector(f.CellEdges(j, i), fill, noLine, vgdraw.GlyphStyle{}); err != nil {
					return fmt.Errorf("render: drawing current field: %v", err)
				}
			}
		}
	}

	lons := make([]float64, tr.NumParticles())
	lats := make([]float64, tr.NumParticles())
	for ip := 0; ip < tr.NumParticles(); ip++ {
		lon, lat, alive := tr.Position(ip, iobs)
		if !alive {
			lons[ip], lats[ip] = math.NaN(), math.NaN()
			continue
		}
		lons[ip], lats[ip] = lon, lat
		fill := lifeMap.GetColor(tr.Lifetimes.Get(ip, iobs))
		gs := vgdraw.GlyphStyle{Color: fill, Radius: vg.Points(2.5), Shape: vgdraw.CircleGlyph{}}
		if err := m.DrawVector(geom.Point{X: lon, Y: lat}, fill, noLine, gs); err != nil {
			return fmt.Errorf("render: drawing particle %d: %v", ip, err)
		}
	}

	for _, ft := range features {
		if err := drawFeature(m, ft, lons, lats, labelFont); err != nil {
			return err
		}
	}

	w, err := os.Create(filename)
	if err != nil {
		return err
	}
	png := vgimg.PngCanvas{Canvas: cv}
	if _, err := png.WriteTo(w); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// drawFeature draws a feature on the map: segments as a line, points
// as circles that turn red when particles are within the feature's
// tracking radius, with their labels beside them.
func drawFeature(m *carto.Canvas, ft *oceandrift.Feature, lons, lats []float64, labelFont vg.Font) error {
	lineStyle := vgdraw.LineStyle{Width: 0.25 * vg.Millimeter, Color: color.Black}
	if ft.Connected() {
		if err := m.DrawVector(ft.LineString(), color.NRGBA{0, 0, 0, 0},
			lineStyle, vgdraw.GlyphStyle{}); err != nil {
			return fmt.Errorf("render: drawing feature segments: %v", err)
		}
	}
	var counts []int
	if ft.TrackDist > 0 {
		counts = ft.CountNear(lons, lats)
	}
	for i, pt := range ft.Points {
		fill := color.NRGBA{0, 0, 255, 255} // station without nearby particles
		if counts != nil && counts[i] > 0 {
			fill = color.NRGBA{255, 0, 0, 255}
		}
		gs := vgdraw.GlyphStyle{Color: fill, Radius: vg.Points(4), Shape: vgdraw.CircleGlyph{}}
		if err := m.DrawVector(pt, fill, lineStyle, gs); err != nil {
			return fmt.Errorf("render: drawing feature point %d: %v", i, err)
		}
		if ft.Labels != nil {
			sty := vgdraw.TextStyle{Color: color.Black, Font: labelFont, XAlign: 0, YAlign: -0.5}
			at := m.Coordinates(pt)
			at.X += vg.Points(6)
			m.FillText(sty, at, ft.Labels[i])
		}
	}
	return nil
}
