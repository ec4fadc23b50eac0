package world

import (
	"fmt"
	"math"
	"sort"
)

// Map is the stand-alone demo world: a noise heightfield, building
// footprints and road polylines. It implements Terrain, Obstacles and Roads.
type Map struct {
	HalfExtent float64 `json:"half_extent"` // world spans [-HalfExtent, HalfExtent] on X and Z

	Buildings []Footprint `json:"buildings"`
	Fields    []FieldSite `json:"fields"`
	Roads     []*Polyline `json:"-"`

	height func(x, z float64) float64
}

// FieldSite is a farmland parcel placed by generation.
type FieldSite struct {
	ID     uint64  `json:"id"`
	Center Vec3    `json:"center"`
	Area   float64 `json:"area"`
}

// NewMap creates an empty map with the given extent and height function.
// A nil height function means flat ground at 0.
func NewMap(halfExtent float64, height func(x, z float64) float64) *Map {
	if height == nil {
		height = func(float64, float64) float64 { return 0 }
	}
	return &Map{HalfExtent: halfExtent, height: height}
}

// InBounds reports whether (x,z) lies inside the map.
func (m *Map) InBounds(x, z float64) bool {
	return math.Abs(x) <= m.HalfExtent && math.Abs(z) <= m.HalfExtent
}

// Height implements Terrain.
func (m *Map) Height(x, z float64) (float64, error) {
	if !m.InBounds(x, z) {
		return 0, fmt.Errorf("height (%.1f, %.1f): %w", x, z, ErrUnavailable)
	}
	return m.height(x, z), nil
}

// AddBuilding registers a footprint.
func (m *Map) AddBuilding(f Footprint) {
	m.Buildings = append(m.Buildings, f)
}

// ObstaclesNear implements Obstacles. Results are ordered by distance.
func (m *Map) ObstaclesNear(x, z, radius float64) ([]Footprint, error) {
	var out []Footprint
	for _, b := range m.Buildings {
		if math.Hypot(x-b.Center.X, z-b.Center.Z) <= radius+b.Radius {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		di := math.Hypot(x-out[i].Center.X, z-out[i].Center.Z)
		dj := math.Hypot(x-out[j].Center.X, z-out[j].Center.Z)
		return di < dj
	})
	return out, nil
}

// AddRoad registers a road spline.
func (m *Map) AddRoad(p *Polyline) {
	m.Roads = append(m.Roads, p)
}

// NearestSpline implements Roads.
func (m *Map) NearestSpline(p Vec3, maxDist float64) (SplineHit, bool, error) {
	var best SplineHit
	found := false
	for _, r := range m.Roads {
		t, d := r.Nearest(p)
		if d > maxDist {
			continue
		}
		if !found || d < best.Distance {
			best = SplineHit{Spline: r, T: t, Distance: d}
			found = true
		}
	}
	return best, found, nil
}

// String returns a summary of the map.
func (m *Map) String() string {
	return fmt.Sprintf("Map(extent=%.0f, buildings=%d, fields=%d, roads=%d)",
		m.HalfExtent*2, len(m.Buildings), len(m.Fields), len(m.Roads))
}
