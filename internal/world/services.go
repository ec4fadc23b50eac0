package world

import (
	"log/slog"
)

// Services wraps a Host and decides every fallback value in one place.
// Each failing service is logged once; the simulation then carries on with
// the fallback (terrain: last known height or 0, obstacles: none, roads: no
// spline found, clock: last known time, random: 0.5).
type Services struct {
	host Host

	lastHeight float64
	lastTime   GameTime
	warned     map[string]bool
}

// NewServices creates the fallback wrapper around a host.
func NewServices(h Host) *Services {
	return &Services{
		host:     h,
		lastTime: GameTime{Hour: 8, Weather: 1},
		warned:   make(map[string]bool),
	}
}

func (s *Services) warnOnce(service string, err error) {
	if s.warned[service] {
		return
	}
	s.warned[service] = true
	slog.Warn("host service failed, using fallback", "service", service, "error", err)
}

// Height returns the terrain height at (x,z).
func (s *Services) Height(x, z float64) float64 {
	if s.host.Terrain == nil {
		s.warnOnce("terrain", ErrUnavailable)
		return s.lastHeight
	}
	h, err := s.host.Terrain.Height(x, z)
	if err != nil {
		s.warnOnce("terrain", err)
		return s.lastHeight
	}
	s.lastHeight = h
	return h
}

// ObstaclesNear returns footprints within radius of (x,z).
func (s *Services) ObstaclesNear(x, z, radius float64) []Footprint {
	if s.host.Obstacles == nil {
		return nil
	}
	fps, err := s.host.Obstacles.ObstaclesNear(x, z, radius)
	if err != nil {
		s.warnOnce("obstacles", err)
		return nil
	}
	return fps
}

// InsideObstacle reports the first footprint (other than exclude) whose
// radius grown by margin contains (x,z).
func (s *Services) InsideObstacle(x, z float64, exclude string, margin float64) (Footprint, bool) {
	for _, fp := range s.ObstaclesNear(x, z, margin+50) {
		if fp.ID == exclude && exclude != "" {
			continue
		}
		if fp.Contains(x, z, margin) {
			return fp, true
		}
	}
	return Footprint{}, false
}

// NearestSpline returns the closest road spline within maxDist.
func (s *Services) NearestSpline(p Vec3, maxDist float64) (SplineHit, bool) {
	if s.host.Roads == nil {
		return SplineHit{}, false
	}
	hit, ok, err := s.host.Roads.NearestSpline(p, maxDist)
	if err != nil {
		s.warnOnce("roads", err)
		return SplineHit{}, false
	}
	if !ok || hit.Spline == nil || hit.Spline.Length() <= 0 {
		return SplineHit{}, false
	}
	return hit, true
}

// Now returns the current game time.
func (s *Services) Now() GameTime {
	if s.host.Clock == nil {
		s.warnOnce("clock", ErrUnavailable)
		return s.lastTime
	}
	t, err := s.host.Clock.Now()
	if err != nil {
		s.warnOnce("clock", err)
		return s.lastTime
	}
	s.lastTime = t
	return t
}

// Float64 returns a uniform value in [0,1), so Services is itself a Random.
func (s *Services) Float64() float64 {
	if s.host.Random == nil {
		s.warnOnce("random", ErrUnavailable)
		return 0.5
	}
	v := s.host.Random.Float64()
	if v < 0 || v >= 1 {
		return 0.5
	}
	return v
}

// Notify forwards a notification; missing notifiers are ignored.
func (s *Services) Notify(title, message string) {
	if s.host.Notifier == nil {
		slog.Debug("notification", "title", title, "message", message)
		return
	}
	s.host.Notifier.Notify(title, message)
}
