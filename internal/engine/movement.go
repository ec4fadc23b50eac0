package engine

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/talgya/npc-favor/internal/agents"
	"github.com/talgya/npc-favor/internal/pathing"
	"github.com/talgya/npc-favor/internal/world"
)

// maxReroutes caps slope detours per waypoint before it is dropped.
const maxReroutes = 3

const (
	maxEjections  = 4    // radial push-outs before searching for open ground
	escapeStep    = 0.5  // metres between escape search rings
	escapeReach   = 60.0 // farthest escape search ring
	escapeBearing = 16   // directions tried per ring
)

// compass is the eight probe directions tried when a step lands on a cliff.
var compass = func() [8]world.Vec3 {
	var out [8]world.Vec3
	for i := range out {
		ang := float64(i) * math.Pi / 4
		out[i] = world.Vec3{X: math.Sin(ang), Z: math.Cos(ang)}
	}
	return out
}()

// moveAlong steps the agent toward its next waypoint. It reports true once
// the path is exhausted.
func (s *Simulation) moveAlong(a *agents.Agent, dt float64) bool {
	mv := s.cfg.Movement
	for {
		wp, ok := a.NextWaypoint()
		if !ok {
			return true
		}
		if world.DistXZ(a.Position, wp) > mv.ArriveRadius {
			break
		}
		a.PopWaypoint()
		delete(s.reroutes, a.ID)
	}

	wp, _ := a.NextWaypoint()
	if detour, act := pathing.RerouteSlope(s.svc, a.Position, wp, s.cfg.Pathing.MaxSlope, mv.RerouteOffset); act != pathing.RerouteNone {
		n := s.reroutes[a.ID] + 1
		s.reroutes[a.ID] = n
		if act == pathing.RerouteSkip || n > maxReroutes {
			slog.Debug("waypoint dropped", "id", a.ID, "waypoint", wp, "reroutes", n)
			a.PopWaypoint()
			delete(s.reroutes, a.ID)
			return len(a.Path) == 0
		}
		slog.Debug("slope detour", "id", a.ID, "action", act, "via", detour)
		a.Path = append([]world.Vec3{detour}, a.Path...)
		wp = detour
	}

	to := wp.Sub(a.Position)
	dist := to.LenXZ()
	obstacles := s.svc.ObstaclesNear(a.Position.X, a.Position.Z, dist+mv.SteerMargin+mv.ObstacleMargin)
	dir, _ := pathing.Steer(a.Position, to, obstacles, a.HomeObstacle, mv.SteerMargin)
	if dir == (world.Vec3{}) {
		return false
	}
	step := math.Min(a.Speed*dt, dist)
	a.Position.X += dir.X * step
	a.Position.Z += dir.Z * step
	a.Yaw = math.Atan2(dir.X, dir.Z)
	return false
}

// validate runs after every handler: no stepping off cliffs, no standing
// inside a building other than home, feet on the ground.
func (s *Simulation) validate(a *agents.Agent, prev world.Vec3) {
	mv := s.cfg.Movement
	moved := world.DistXZ(prev, a.Position)
	if moved > 1e-9 {
		dir := a.Position.Sub(prev).NormXZ()
		probe := a.Position.Add(dir.Scale(mv.CliffProbe))
		if s.svc.Height(probe.X, probe.Z)-s.svc.Height(prev.X, prev.Z) > mv.CliffThreshold {
			s.avoidCliff(a, prev, dir, moved)
		}
	}

	s.clearObstacles(a)

	a.Position.Y = s.svc.Height(a.Position.X, a.Position.Z) + mv.TerrainOffset
}

// avoidCliff puts the agent back at prev and tries the compass direction
// best aligned with where it was heading that is neither steep nor inside
// an obstacle. With none available the waypoint is abandoned.
func (s *Simulation) avoidCliff(a *agents.Agent, prev, heading world.Vec3, step float64) {
	mv := s.cfg.Movement
	a.Position = prev
	base := s.svc.Height(prev.X, prev.Z)
	best, bestDot := world.Vec3{}, math.Inf(-1)
	for _, d := range compass {
		probe := prev.Add(d.Scale(mv.CliffProbe))
		if s.svc.Height(probe.X, probe.Z)-base > mv.CliffThreshold {
			continue
		}
		cand := prev.Add(d.Scale(step))
		if _, inside := s.svc.InsideObstacle(cand.X, cand.Z, a.HomeObstacle, mv.ObstacleMargin); inside {
			continue
		}
		if dot := d.X*heading.X + d.Z*heading.Z; dot > bestDot {
			best, bestDot = cand, dot
		}
	}
	if math.IsInf(bestDot, -1) {
		slog.Debug("cliff ahead, no way round", "id", a.ID, "at", prev)
		a.PopWaypoint()
		return
	}
	slog.Debug("cliff ahead, sidestep", "id", a.ID, "to", best)
	a.Position.X, a.Position.Z = best.X, best.Z
}

// clearObstacles pushes the agent out of every non-home footprint it
// stands in. Overlapping footprints can bounce a radial push from one into
// the other, so after a few passes it searches outward for open ground.
func (s *Simulation) clearObstacles(a *agents.Agent) {
	mv := s.cfg.Movement
	for i := 0; i < maxEjections; i++ {
		fp, inside := s.svc.InsideObstacle(a.Position.X, a.Position.Z, a.HomeObstacle, mv.ObstacleMargin)
		if !inside {
			return
		}
		s.eject(a, fp)
	}
	if _, inside := s.svc.InsideObstacle(a.Position.X, a.Position.Z, a.HomeObstacle, mv.ObstacleMargin); !inside {
		return
	}
	if spot, ok := s.openGround(a.Position, a.HomeObstacle); ok {
		slog.Debug("escaped overlapping obstacles", "id", a.ID, "to", spot)
		a.Position.X, a.Position.Z = spot.X, spot.Z
		return
	}
	slog.Warn("no open ground near agent", "id", a.ID, "at", a.Position)
}

// openGround returns the nearest point to from that lies clear of every
// footprint but exclude, scanning rings outward from a random bearing.
func (s *Simulation) openGround(from world.Vec3, exclude string) (world.Vec3, bool) {
	mv := s.cfg.Movement
	margin := mv.ObstacleMargin + mv.ObstacleClear
	start := s.svc.Float64() * 2 * math.Pi
	for r := escapeStep; r <= escapeReach; r += escapeStep {
		for i := 0; i < escapeBearing; i++ {
			ang := start + float64(i)*2*math.Pi/escapeBearing
			p := world.Vec3{X: from.X + r*math.Sin(ang), Z: from.Z + r*math.Cos(ang)}
			if _, inside := s.svc.InsideObstacle(p.X, p.Z, exclude, margin); !inside {
				return p, true
			}
		}
	}
	return world.Vec3{}, false
}

// eject pushes the agent radially out of a footprint to just past its
// margin. Exactly at the centre a random bearing is used.
func (s *Simulation) eject(a *agents.Agent, fp world.Footprint) {
	mv := s.cfg.Movement
	out := a.Position.Sub(fp.Center).NormXZ()
	if out == (world.Vec3{}) {
		ang := s.svc.Float64() * 2 * math.Pi
		out = world.Vec3{X: math.Sin(ang), Z: math.Cos(ang)}
	}
	r := fp.Radius + mv.ObstacleMargin + mv.ObstacleClear
	a.Position.X = fp.Center.X + out.X*r
	a.Position.Z = fp.Center.Z + out.Z*r
	slog.Debug("ejected from obstacle", "id", a.ID, "obstacle", fp.ID, "to", a.Position)
}

// watchStuck resets a moving agent that has not left a small radius for
// StuckSeconds.
func (s *Simulation) watchStuck(a *agents.Agent, dt float64) {
	if !a.State.IsMovement() {
		a.StuckTimer = 0
		a.StuckAnchor = a.Position
		return
	}
	mv := s.cfg.Movement
	if world.DistXZ(a.Position, a.StuckAnchor) > mv.StuckEpsilon {
		a.StuckTimer = 0
		a.StuckAnchor = a.Position
		return
	}
	a.StuckTimer += dt
	if a.StuckTimer >= mv.StuckSeconds {
		s.recoverStuck(a)
	}
}

// recoverStuck returns the agent to Idle with nothing held. Calling it on
// an idle agent is harmless.
func (s *Simulation) recoverStuck(a *agents.Agent) {
	wasMoving := a.State.IsMovement()
	a.ClearPath()
	s.setState(a, agents.StateIdle, "stuck_recovery")
	if !wasMoving {
		return
	}
	slog.Info("agent stuck, reset to idle", "id", a.ID, "name", a.Name, "at", a.Position)
	s.emit(Event{Category: "recovery", AgentID: a.ID,
		Description: fmt.Sprintf("%s got stuck and gave up", a.Name)})
}
