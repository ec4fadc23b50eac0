// Package pathing plans waypoint paths for agents: cached lookups,
// road following along a shared spline, and a straight-line fallback with
// obstacle push-out, slope nudging, bearing optimisation and Bezier
// smoothing. It also provides the live steering used while walking.
package pathing

import (
	"log/slog"
	"math"

	"github.com/talgya/npc-favor/internal/tuning"
	"github.com/talgya/npc-favor/internal/world"
)

// Nudge offsets tried, in order, when a straight-line point is too steep.
var slopeOffsets = []float64{5, -5, 10, -10, 15, -15}

// Planner builds and caches paths.
type Planner struct {
	svc     *world.Services
	cfg     tuning.Pathing
	mv      tuning.Movement
	rnd     world.Random
	cache   *Cache
	sinceGC float64
}

// NewPlanner creates a planner over the host services.
func NewPlanner(svc *world.Services, cfg tuning.Pathing, mv tuning.Movement, rnd world.Random) *Planner {
	if rnd == nil {
		rnd = svc
	}
	return &Planner{svc: svc, cfg: cfg, mv: mv, rnd: rnd, cache: NewCache(cfg.CacheSize)}
}

// Cache exposes the path cache.
func (p *Planner) Cache() *Cache { return p.cache }

// Maintain advances the eviction timer; eviction runs on an interval, not
// per request.
func (p *Planner) Maintain(dt float64) {
	p.sinceGC += dt
	if p.sinceGC < p.cfg.EvictEverySeconds {
		return
	}
	p.sinceGC = 0
	if n := p.cache.Evict(); n > 0 {
		slog.Debug("path cache evicted", "removed", n, "size", p.cache.Len())
	}
}

// FindPath returns waypoints from (sx,sz) to (ex,ez). The start point is
// not included; the last waypoint is the destination.
func (p *Planner) FindPath(sx, sz, ex, ez float64) []world.Vec3 {
	key := MakeKey(sx, sz, ex, ez, p.cfg.Quantum)
	if path, ok := p.cache.Get(key); ok {
		return path
	}
	start := world.Vec3{X: sx, Y: p.svc.Height(sx, sz), Z: sz}
	end := world.Vec3{X: ex, Y: p.svc.Height(ex, ez), Z: ez}

	path, ok := p.roadPath(start, end)
	if !ok {
		path = p.straightPath(start, end)
	}
	p.cache.Put(key, path)
	return clonePath(path)
}

// roadPath follows a spline when both endpoints are near the same one.
func (p *Planner) roadPath(start, end world.Vec3) ([]world.Vec3, bool) {
	radius := p.cfg.RoadSearchRadius
	a, okA := p.svc.NearestSpline(start, radius)
	if !okA {
		return nil, false
	}
	b, okB := p.svc.NearestSpline(end, radius)
	if !okB || a.Spline.ID() != b.Spline.ID() {
		return nil, false
	}
	sp := a.Spline
	length := sp.Length()
	step := p.cfg.RoadStep
	if step <= 0 {
		step = 10
	}
	dt := step / length

	// Signed parameter distance from entry to exit, shorter way round on a
	// closed spline.
	span := b.T - a.T
	if sp.Closed() {
		fwd := span
		if fwd < 0 {
			fwd += 1
		}
		back := 1 - fwd
		if fwd <= back {
			span = fwd
		} else {
			span = -back
		}
	}
	dir := 1.0
	if span < 0 {
		dir = -1
	}

	var path []world.Vec3
	path = append(path, p.ground(sp.Position(a.T)))
	n := int(math.Abs(span) / dt)
	for i := 1; i <= n; i++ {
		t := a.T + dir*float64(i)*dt
		if sp.Closed() {
			t -= math.Floor(t)
		}
		path = append(path, p.ground(sp.Position(t)))
	}
	path = append(path, p.ground(sp.Position(b.T)), end)
	return dedupe(path), true
}

// straightPath injects jittered points every SegmentSpacing units, pushes
// them out of obstacles, nudges steep ones sideways, then optimises and
// smooths the result.
func (p *Planner) straightPath(start, end world.Vec3) []world.Vec3 {
	dist := world.DistXZ(start, end)
	spacing := p.cfg.SegmentSpacing
	if spacing <= 0 {
		spacing = 50
	}
	n := int(math.Ceil(dist / spacing))
	if n < 1 {
		n = 1
	}
	dir := end.Sub(start).NormXZ()
	perp := world.Vec3{X: -dir.Z, Z: dir.X}

	pts := make([]waypoint, 0, n+1)
	pts = append(pts, waypoint{pos: start, pinned: true})
	prev := start
	for i := 1; i < n; i++ {
		q := world.Lerp(start, end, float64(i)/float64(n))
		q = q.Add(perp.Scale((p.rnd.Float64()*2 - 1) * p.cfg.Jitter))
		wp := waypoint{pos: q}
		if moved, ok := p.pushOut(q, perp); ok {
			wp.pos, wp.pinned = moved, true
		}
		wp.pos = p.ground(wp.pos)
		if p.slope(prev, wp.pos) > p.cfg.MaxSlope {
			if nudged, ok := p.nudge(prev, wp.pos, perp); ok {
				wp.pos, wp.pinned = nudged, true
			}
		}
		pts = append(pts, wp)
		prev = wp.pos
	}
	pts = append(pts, waypoint{pos: end, pinned: true})

	pts = optimize(pts, p.cfg.BearingThresholdDeg*math.Pi/180)
	out := smooth(pts, p.cfg.SmoothSteps)
	for i := range out {
		if moved, ok := p.pushOut(out[i], perp); ok {
			out[i] = moved
		}
		out[i] = p.ground(out[i])
	}
	out[len(out)-1] = end
	return dedupe(out)
}

type waypoint struct {
	pos    world.Vec3
	pinned bool // start, end, or moved by avoidance; never optimised away
}

func (p *Planner) ground(v world.Vec3) world.Vec3 {
	v.Y = p.svc.Height(v.X, v.Z)
	return v
}

// pushOut moves q radially to the edge of any footprint it falls inside.
// A point at the exact centre leaves along fallback.
func (p *Planner) pushOut(q, fallback world.Vec3) (world.Vec3, bool) {
	margin := p.mv.ObstacleMargin
	moved := false
	for _, fp := range p.svc.ObstaclesNear(q.X, q.Z, margin+50) {
		if !fp.Contains(q.X, q.Z, margin) {
			continue
		}
		out := q.Sub(fp.Center).NormXZ()
		if out == (world.Vec3{}) {
			out = fallback
		}
		if out == (world.Vec3{}) {
			out = world.Vec3{X: 1}
		}
		r := fp.Radius + margin + p.mv.ObstacleClear
		q = world.Vec3{X: fp.Center.X + out.X*r, Y: q.Y, Z: fp.Center.Z + out.Z*r}
		moved = true
	}
	return q, moved
}

func (p *Planner) slope(a, b world.Vec3) float64 {
	d := world.DistXZ(a, b)
	if d < 1e-6 {
		return 0
	}
	return math.Abs(b.Y-a.Y) / d
}

// nudge tries lateral offsets and keeps the first gentle enough one, or
// the gentlest found.
func (p *Planner) nudge(prev, q, perp world.Vec3) (world.Vec3, bool) {
	best, bestSlope := q, p.slope(prev, q)
	for _, off := range slopeOffsets {
		c := p.ground(q.Add(perp.Scale(off)))
		if _, inside := p.svc.InsideObstacle(c.X, c.Z, "", p.mv.ObstacleMargin); inside {
			continue
		}
		s := p.slope(prev, c)
		if s <= p.cfg.MaxSlope {
			return c, true
		}
		if s < bestSlope {
			best, bestSlope = c, s
		}
	}
	return best, best != q
}

// optimize drops unpinned points where the heading changes by less than
// threshold radians.
func optimize(pts []waypoint, threshold float64) []waypoint {
	if len(pts) <= 2 {
		return pts
	}
	out := []waypoint{pts[0]}
	for i := 1; i < len(pts)-1; i++ {
		cur := pts[i]
		if cur.pinned {
			out = append(out, cur)
			continue
		}
		last := out[len(out)-1].pos
		next := pts[i+1].pos
		turn := world.AngleDiff(world.Bearing(last, cur.pos), world.Bearing(cur.pos, next))
		if turn >= threshold {
			out = append(out, cur)
		}
	}
	return append(out, pts[len(pts)-1])
}

// smooth replaces each interior corner with a quadratic Bezier arc from the
// midpoint of the incoming leg to the midpoint of the outgoing leg. The
// returned slice excludes the start point.
func smooth(pts []waypoint, steps int) []world.Vec3 {
	if len(pts) < 3 || steps < 1 {
		out := make([]world.Vec3, 0, len(pts))
		for _, w := range pts[1:] {
			out = append(out, w.pos)
		}
		return out
	}
	var out []world.Vec3
	for i := 1; i < len(pts)-1; i++ {
		a, b, c := pts[i-1].pos, pts[i].pos, pts[i+1].pos
		from := world.Lerp(a, b, 0.5)
		to := world.Lerp(b, c, 0.5)
		if i == 1 {
			out = append(out, from)
		}
		for s := 1; s <= steps; s++ {
			out = append(out, world.QuadBezier(from, b, to, float64(s)/float64(steps)))
		}
	}
	return append(out, pts[len(pts)-1].pos)
}

// dedupe removes consecutive points closer than 1cm.
func dedupe(p []world.Vec3) []world.Vec3 {
	if len(p) == 0 {
		return p
	}
	out := p[:1]
	for _, v := range p[1:] {
		if world.DistXZ(out[len(out)-1], v) > 0.01 {
			out = append(out, v)
		}
	}
	return out
}
