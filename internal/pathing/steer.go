package pathing

import (
	"math"

	"github.com/talgya/npc-favor/internal/world"
)

// Steer bends the desired heading tangentially around any footprint whose
// approach margin (radius + margin) the walker at pos has entered and that
// lies ahead. The returned direction is a horizontal unit vector.
func Steer(pos, desired world.Vec3, obstacles []world.Footprint, exclude string, margin float64) (world.Vec3, bool) {
	dir := desired.NormXZ()
	if dir == (world.Vec3{}) {
		return dir, false
	}
	steered := false
	for _, fp := range obstacles {
		if exclude != "" && fp.ID == exclude {
			continue
		}
		to := fp.Center.Sub(pos)
		d := to.LenXZ()
		reach := fp.Radius + margin
		if d >= reach || d < 1e-6 {
			continue
		}
		toN := to.NormXZ()
		ahead := dir.X*toN.X + dir.Z*toN.Z
		if ahead <= 0 {
			continue
		}
		// The two tangents; keep the one closer to where we want to go.
		left := world.Vec3{X: -toN.Z, Z: toN.X}
		right := world.Vec3{X: toN.Z, Z: -toN.X}
		tan := left
		if dir.X*right.X+dir.Z*right.Z > dir.X*left.X+dir.Z*left.Z {
			tan = right
		}
		// Blend harder the deeper inside the margin we are.
		w := math.Min(1, (reach-d)/margin)
		dir = world.Vec3{X: dir.X*(1-w) + tan.X*w, Z: dir.Z*(1-w) + tan.Z*w}.NormXZ()
		if dir == (world.Vec3{}) {
			dir = tan
		}
		steered = true
	}
	return dir, steered
}

// RerouteAction is what RerouteSlope decided.
type RerouteAction uint8

const (
	RerouteNone RerouteAction = iota
	RerouteLeft
	RerouteRight
	RerouteReverse
	RerouteSkip
)

func (r RerouteAction) String() string {
	switch r {
	case RerouteLeft:
		return "left"
	case RerouteRight:
		return "right"
	case RerouteReverse:
		return "reverse"
	case RerouteSkip:
		return "skip"
	default:
		return "none"
	}
}

// Heights answers terrain queries; *world.Services satisfies it.
type Heights interface {
	Height(x, z float64) float64
}

// RerouteSlope checks the first offset metres of the leg from pos to the
// waypoint. When that is steeper than maxSlope it offers a detour waypoint:
// left or right of the leg, else a step back the way we came, else
// RerouteSkip to drop the waypoint.
func RerouteSlope(h Heights, pos, wp world.Vec3, maxSlope, offset float64) (world.Vec3, RerouteAction) {
	dir := wp.Sub(pos).NormXZ()
	if dir == (world.Vec3{}) {
		return wp, RerouteNone
	}
	probe := pos.Add(dir.Scale(math.Min(world.DistXZ(pos, wp), offset)))
	if legSlope(h, pos, probe) <= maxSlope {
		return wp, RerouteNone
	}
	perp := world.Vec3{X: -dir.Z, Z: dir.X}

	left := pos.Add(dir.Scale(offset)).Add(perp.Scale(offset))
	if legSlope(h, pos, left) <= maxSlope {
		left.Y = h.Height(left.X, left.Z)
		return left, RerouteLeft
	}
	right := pos.Add(dir.Scale(offset)).Sub(perp.Scale(offset))
	if legSlope(h, pos, right) <= maxSlope {
		right.Y = h.Height(right.X, right.Z)
		return right, RerouteRight
	}
	back := pos.Sub(dir.Scale(offset))
	if legSlope(h, pos, back) <= maxSlope {
		back.Y = h.Height(back.X, back.Z)
		return back, RerouteReverse
	}
	return wp, RerouteSkip
}

func legSlope(h Heights, a, b world.Vec3) float64 {
	d := world.DistXZ(a, b)
	if d < 1e-6 {
		return 0
	}
	return math.Abs(h.Height(b.X, b.Z)-h.Height(a.X, a.Z)) / d
}
