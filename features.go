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

	"github.com/ctessum/geom"
)

// earthRadius [m].
const earthRadius = 6.371e6

// A Feature is a set of fixed reference locations, such as water
// quality monitoring stations or a stretch of coastline, that
// trajectories are compared against.
type Feature struct {
	// Points are the feature locations (X = longitude, Y = latitude).
	Points []geom.Point

	// Labels optionally name each point.
	Labels []string

	// TrackDist is the radius [m] within which a particle counts as
	// "near" a feature point.
	TrackDist float64

	// connected marks consecutive points as joined by line segments
	// (a coastline rather than isolated stations).
	connected bool
}

// NewFeature creates a feature of isolated points. labels may be nil;
// otherwise it must have one entry per point.
func NewFeature(points []geom.Point, labels []string, trackDist float64) (*Feature, error) {
	if labels != nil && len(labels) != len(points) {
		return nil, fmt.Errorf("oceandrift: feature has %d labels for %d points",
			len(labels), len(points))
	}
	return &Feature{Points: points, Labels: labels, TrackDist: trackDist}, nil
}

// NewSegmentFeature creates a feature whose consecutive points are
// connected by line segments.
func NewSegmentFeature(points []geom.Point, labels []string, trackDist float64) (*Feature, error) {
	ft, err := NewFeature(points, labels, trackDist)
	if err != nil {
		return nil, err
	}
	if len(points) < 2 {
		return nil, fmt.Errorf("oceandrift: a segment feature needs at least 2 points but has %d",
			len(points))
	}
	ft.connected = true
	return ft, nil
}

// Connected reports whether consecutive feature points are joined by
// line segments.
func (ft *Feature) Connected() bool { return ft.connected }

// LineString returns the feature points as a line for rendering.
func (ft *Feature) LineString() geom.LineString {
	return geom.LineString(ft.Points)
}

// CountNear returns, for each feature point, the number of particle
// positions within TrackDist of it. Positions that are NaN (dead
// particles) are skipped.
func (ft *Feature) CountNear(lons, lats []float64) []int {
	counts := make([]int, len(ft.Points))
	for ip := range lons {
		if math.IsNaN(lons[ip]) || math.IsNaN(lats[ip]) {
			continue
		}
		for i, pt := range ft.Points {
			if haversine(lats[ip], lons[ip], pt.Y, pt.X) <= ft.TrackDist {
				counts[i]++
			}
		}
	}
	return counts
}

// ClosestDistance returns the distance [m] from (lon, lat) to the
// feature: the distance to the nearest feature point, refined by the
// perpendicular distance to the segments adjacent to that point when
// the feature is connected.
func (ft *Feature) ClosestDistance(lon, lat float64) float64 {
	least := math.Inf(1)
	closest := 0
	for i, pt := range ft.Points {
		if d := haversine(lat, lon, pt.Y, pt.X); d < least {
			least = d
			closest = i
		}
	}
	if !ft.connected {
		return least
	}
	for _, i := range []int{closest - 1, closest} {
		if i < 0 || i >= len(ft.Points)-1 {
			continue
		}
		seg := newSegment(ft.Points[i], ft.Points[i+1])
		xi, yi := seg.intersection(lon, lat)
		if !seg.contains(xi, yi) {
			continue
		}
		if d := haversine(lat, lon, yi, xi); d < least {
			least = d
		}
	}
	return least
}

// haversine returns the great-circle distance [m] between two
// latitude/longitude points.
func haversine(lat1, lon1, lat2, lon2 float64) float64 {
	φ1 := lat1 * math.Pi / 180
	φ2 := lat2 * math.Pi / 180
	Δφ := (lat2 - lat1) * math.Pi / 180
	Δλ := (lon2 - lon1) * math.Pi / 180
	a := math.Sin(Δφ/2)*math.Sin(Δφ/2) +
		math.Cos(φ1)*math.Cos(φ2)*math.Sin(Δλ/2)*math.Sin(Δλ/2)
	return 2 * earthRadius * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
}

// segment is a line segment in longitude/latitude coordinates.
type segment struct {
	x1, y1, x2, y2 float64
	slope          float64 // NaN for a vertical segment
}

func newSegment(p1, p2 geom.Point) segment {
	s := segment{x1: p1.X, y1: p1.Y, x2: p2.X, y2: p2.Y}
	if p1.X == p2.X {
		s.slope = math.NaN()
	} else {
		s.slope = (p1.Y - p2.Y) / (p1.X - p2.X)
	}
	return s
}

// intersection returns the foot of the perpendicular from (x, y) onto
// the (infinite) line through the segment.
func (s segment) intersection(x, y float64) (xi, yi float64) {
	if math.IsNaN(s.slope) { // vertical line
		return s.x1, y
	}
	if s.slope == 0 {
		return x, s.y1
	}
	normSlope := -1 / s.slope
	slopeΔ := normSlope - s.slope
	intΔ := (s.slope*-s.x1 + s.y1) - (normSlope*-x + y)
	xi = intΔ / slopeΔ
	yi = normSlope*(xi-x) + y
	return xi, yi
}

// contains reports whether (x, y), assumed to lie on the segment's
// line, is within the segment's bounding box.
func (s segment) contains(x, y float64) bool {
	xlo, xhi := math.Min(s.x1, s.x2), math.Max(s.x1, s.x2)
	ylo, yhi := math.Min(s.y1, s.y2), math.Max(s.y1, s.y2)
	return xlo <= x && x <= xhi && ylo <= y && y <= yhi
}
