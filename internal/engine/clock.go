// Game clock: time of day, seasons and procedural weather for hosts that
// have no clock of their own.
package engine

import (
	"fmt"
	"log/slog"
	"math"
	"sync"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/npc-favor/internal/tuning"
	"github.com/talgya/npc-favor/internal/world"
)

const minutesPerDay = 1440

// Weather noise: one feature per half day, biased per season.
const weatherScale = 720.0

var seasonBias = [4]float64{
	world.Spring: 0,
	world.Summer: 0.15,
	world.Autumn: -0.05,
	world.Winter: -0.2,
}

var _ world.Clock = (*SimClock)(nil)

// SimClock implements world.Clock. It is safe for concurrent use so an
// external weather feed can override the factor while the engine runs.
type SimClock struct {
	mu       sync.Mutex
	cfg      tuning.Clock
	minutes  float64 // since day 0, midnight
	noise    opensimplex.Noise
	override *float64
	season   world.Season
}

// NewSimClock starts a clock at StartHour on day 0.
func NewSimClock(cfg tuning.Clock, seed int64) *SimClock {
	if cfg.DaysPerSeason <= 0 {
		cfg.DaysPerSeason = 28
	}
	return &SimClock{
		cfg:     cfg,
		minutes: float64(cfg.StartHour * 60),
		noise:   opensimplex.New(seed),
	}
}

// Now returns the current game time. It never fails.
func (c *SimClock) Now() (world.GameTime, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timeLocked(), nil
}

func (c *SimClock) timeLocked() world.GameTime {
	total := int(c.minutes)
	day := total / minutesPerDay
	mod := total % minutesPerDay
	season := c.seasonOf(day)
	return world.GameTime{
		Hour:    mod / 60,
		Minute:  mod % 60,
		Day:     day,
		Season:  season,
		Weather: c.weatherLocked(season),
	}
}

func (c *SimClock) seasonOf(day int) world.Season {
	return world.Season((day / c.cfg.DaysPerSeason) % 4)
}

func (c *SimClock) weatherLocked(season world.Season) float64 {
	if c.override != nil {
		return *c.override
	}
	n := c.noise.Eval2(c.minutes/weatherScale, 0.5)
	return clamp01(0.6 + 0.5*n + seasonBias[season])
}

// Advance moves the clock by dt real seconds and reports whether a new
// day began.
func (c *SimClock) Advance(dt float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	before := int(c.minutes) / minutesPerDay
	c.minutes += dt * c.cfg.GameMinutesPerSecond
	after := int(c.minutes) / minutesPerDay
	if after == before {
		return false
	}
	if s := c.seasonOf(after); s != c.season {
		slog.Info("season changed", "from", c.season, "to", s, "day", after)
		c.season = s
	}
	return true
}

// Minutes returns absolute game minutes.
func (c *SimClock) Minutes() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.minutes
}

// SetMinutes moves the clock, typically to a restored save.
func (c *SimClock) SetMinutes(m float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m < 0 {
		m = 0
	}
	c.minutes = m
	c.season = c.seasonOf(int(m) / minutesPerDay)
}

// SetWeather pins the weather factor, clamped to [0,1].
func (c *SimClock) SetWeather(w float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	w = clamp01(w)
	c.override = &w
}

// ClearWeather returns to procedural weather.
func (c *SimClock) ClearWeather() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.override = nil
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// SimTime formats an absolute game minute for humans.
func SimTime(minute int64, season world.Season) string {
	if minute < 0 {
		minute = 0
	}
	day := minute / minutesPerDay
	mod := minute % minutesPerDay
	return fmt.Sprintf("Day %d %02d:%02d (%s)", day, mod/60, mod%60, season)
}
