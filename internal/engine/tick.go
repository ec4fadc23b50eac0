// Package engine runs the agent simulation: the per-agent state machine,
// social grouping, movement validation, persistence records and the
// fixed-rate loop that drives them.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultRate is the tick frequency in Hz.
const DefaultRate = 10

// Engine drives a Simulation at a fixed rate. Simulation itself is not
// safe for concurrent use; everything outside the loop goes through
// Locked.
type Engine struct {
	Sim   *Simulation
	Clock *SimClock // optional; advanced before every tick
	Rate  int       // ticks per real second
	Speed float64   // multiplier on dt: 1.0 = real-time, 0 = paused

	// Callbacks run after the tick, outside the lock.
	OnTick func(dt float64)
	OnDay  func(day int)

	mu      sync.Mutex
	running atomic.Bool
	stop    chan struct{}
}

// NewEngine creates an engine at the default rate and speed.
func NewEngine(sim *Simulation, clock *SimClock) *Engine {
	return &Engine{
		Sim:   sim,
		Clock: clock,
		Rate:  DefaultRate,
		Speed: 1.0,
		stop:  make(chan struct{}),
	}
}

// Run ticks until ctx is done or Stop is called.
func (e *Engine) Run(ctx context.Context) {
	if !e.running.CompareAndSwap(false, true) {
		return
	}
	defer e.running.Store(false)

	rate := e.Rate
	if rate <= 0 {
		rate = DefaultRate
	}
	interval := time.Second / time.Duration(rate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	slog.Info("simulation engine started", "rate", rate, "speed", e.speed())

	for {
		select {
		case <-ctx.Done():
			slog.Info("simulation engine stopped", "ticks", e.Ticks(), "reason", ctx.Err())
			return
		case <-e.stop:
			slog.Info("simulation engine stopped", "ticks", e.Ticks())
			return
		case <-ticker.C:
			if sp := e.speed(); sp > 0 {
				e.Step(interval.Seconds() * sp)
			}
		}
	}
}

// Stop halts a running loop. Calling it more than once is harmless.
func (e *Engine) Stop() {
	select {
	case <-e.stop:
	default:
		close(e.stop)
	}
}

// Running reports whether Run is active.
func (e *Engine) Running() bool { return e.running.Load() }

// Step advances the clock and the simulation by dt seconds.
func (e *Engine) Step(dt float64) {
	newDay := false
	e.mu.Lock()
	if e.Clock != nil {
		newDay = e.Clock.Advance(dt)
	}
	e.Sim.Tick(dt)
	day := e.Sim.Now().Day
	e.mu.Unlock()

	if e.OnTick != nil {
		e.OnTick(dt)
	}
	if newDay && e.OnDay != nil {
		e.OnDay(day)
	}
}

// Locked runs fn with exclusive access to the simulation.
func (e *Engine) Locked(fn func(*Simulation)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.Sim)
}

// SetSpeed changes the time multiplier; 0 pauses.
func (e *Engine) SetSpeed(v float64) {
	if v < 0 {
		v = 0
	}
	e.mu.Lock()
	e.Speed = v
	e.mu.Unlock()
}

func (e *Engine) speed() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Speed
}

// Ticks returns the number of ticks run so far.
func (e *Engine) Ticks() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Sim.Ticks
}
