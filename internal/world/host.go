// Package world defines the host services the behavior engine consumes
// (terrain, obstacle footprints, road splines, the game clock, randomness,
// notifications) plus a procedural demo world that implements them.
package world

import (
	"errors"
	"fmt"
	"math"
)

// ErrUnavailable is returned by host adapters that cannot answer a query.
var ErrUnavailable = errors.New("host service unavailable")

// Vec3 is a world-space position. Y is up; the ground plane is XZ.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Add returns v+o.
func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

// Sub returns v-o.
func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v.X - o.X, v.Y - o.Y, v.Z - o.Z} }

// Scale returns v*k.
func (v Vec3) Scale(k float64) Vec3 { return Vec3{v.X * k, v.Y * k, v.Z * k} }

// LenXZ is the horizontal length of v.
func (v Vec3) LenXZ() float64 { return math.Hypot(v.X, v.Z) }

// DistXZ is the horizontal distance between two points.
func DistXZ(a, b Vec3) float64 { return math.Hypot(a.X-b.X, a.Z-b.Z) }

// NormXZ returns the horizontal unit direction of v, or the zero vector.
func (v Vec3) NormXZ() Vec3 {
	l := v.LenXZ()
	if l < 1e-9 {
		return Vec3{}
	}
	return Vec3{X: v.X / l, Z: v.Z / l}
}

// Lerp interpolates between a and b.
func Lerp(a, b Vec3, t float64) Vec3 {
	return Vec3{a.X + (b.X-a.X)*t, a.Y + (b.Y-a.Y)*t, a.Z + (b.Z-a.Z)*t}
}

// Bearing returns the heading (radians) from a to b on the XZ plane.
func Bearing(a, b Vec3) float64 { return math.Atan2(b.X-a.X, b.Z-a.Z) }

func (v Vec3) String() string { return fmt.Sprintf("(%.1f, %.1f, %.1f)", v.X, v.Y, v.Z) }

// Season of the game year.
type Season uint8

const (
	Spring Season = iota
	Summer
	Autumn
	Winter
)

func (s Season) String() string {
	switch s {
	case Spring:
		return "spring"
	case Summer:
		return "summer"
	case Autumn:
		return "autumn"
	case Winter:
		return "winter"
	default:
		return "unknown"
	}
}

// Weekdays, numbered from the day counter. Day 0 is a Sunday.
const (
	Sunday   = 0
	Saturday = 6
)

// GameTime is one reading of the host's game clock.
type GameTime struct {
	Hour    int     `json:"hour"`
	Minute  int     `json:"minute"`
	Day     int     `json:"day"`
	Season  Season  `json:"season"`
	Weather float64 `json:"weather"` // 0.0 storm … 1.0 clear
}

// MinuteOfDay returns minutes since midnight.
func (t GameTime) MinuteOfDay() int { return t.Hour*60 + t.Minute }

// Absolute returns minutes since day 0, midnight.
func (t GameTime) Absolute() int { return t.Day*1440 + t.MinuteOfDay() }

// Weekday returns 0..6 with 0 = Sunday.
func (t GameTime) Weekday() int {
	w := t.Day % 7
	if w < 0 {
		w += 7
	}
	return w
}

// Footprint is the circular ground footprint of a building or placeable.
type Footprint struct {
	ID     string  `json:"id"`
	Center Vec3    `json:"center"`
	Radius float64 `json:"radius"`
	Owner  string  `json:"owner,omitempty"`
}

// Contains reports whether (x,z) lies within the footprint grown by margin.
func (f Footprint) Contains(x, z, margin float64) bool {
	return math.Hypot(x-f.Center.X, z-f.Center.Z) < f.Radius+margin
}

// Spline is a road or pedestrian path, parameterised by t in [0,1].
type Spline interface {
	ID() string
	Position(t float64) Vec3
	Direction(t float64) Vec3
	Length() float64
	Closed() bool
}

// SplineHit is the result of a nearest-spline query.
type SplineHit struct {
	Spline   Spline
	T        float64
	Distance float64
}

// Terrain answers ground height queries.
type Terrain interface {
	Height(x, z float64) (float64, error)
}

// Obstacles answers building/placeable footprint queries.
type Obstacles interface {
	ObstaclesNear(x, z, radius float64) ([]Footprint, error)
}

// Roads answers road/spline queries.
type Roads interface {
	NearestSpline(p Vec3, maxDist float64) (SplineHit, bool, error)
}

// Clock is the host's game-time clock.
type Clock interface {
	Now() (GameTime, error)
}

// Random returns uniform values in [0,1).
type Random interface {
	Float64() float64
}

// Notifier delivers fire-and-forget notifications to the player.
type Notifier interface {
	Notify(title, message string)
}

// Host bundles the services consumed from the embedding game. Any member
// may be nil; Services substitutes the documented fallback.
type Host struct {
	Terrain   Terrain
	Obstacles Obstacles
	Roads     Roads
	Clock     Clock
	Random    Random
	Notifier  Notifier
}
