// Package agents provides the agent data model, personality tables, the
// needs/mood model, the daily-routine scheduler and the decision engine.
package agents

import (
	"fmt"
	"strings"

	"github.com/talgya/npc-favor/internal/world"
)

// AgentID is a unique identifier for an agent.
type AgentID uint64

// Personality is the closed set of agent temperaments.
type Personality uint8

const (
	Hardworking Personality = iota
	Lazy
	Social
	Grumpy
	Generous
	Loner

	NumPersonalities = 6
)

var personalityNames = [NumPersonalities]string{
	Hardworking: "hardworking",
	Lazy:        "lazy",
	Social:      "social",
	Grumpy:      "grumpy",
	Generous:    "generous",
	Loner:       "loner",
}

func (p Personality) String() string {
	if int(p) < NumPersonalities {
		return personalityNames[p]
	}
	return "unknown"
}

// ParsePersonality maps a name back to a Personality.
func ParsePersonality(s string) (Personality, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range personalityNames {
		if n == s {
			return Personality(i), nil
		}
	}
	return 0, fmt.Errorf("unknown personality %q", s)
}

// State is one of the eight canonical agent states.
type State uint8

const (
	StateIdle State = iota
	StateWalking
	StateWorking
	StateDriving
	StateResting
	StateSocializing
	StateTraveling
	StateGathering

	NumStates = 8
)

var stateNames = [NumStates]string{
	StateIdle:        "idle",
	StateWalking:     "walking",
	StateWorking:     "working",
	StateDriving:     "driving",
	StateResting:     "resting",
	StateSocializing: "socializing",
	StateTraveling:   "traveling",
	StateGathering:   "gathering",
}

func (s State) String() string {
	if int(s) < NumStates {
		return stateNames[s]
	}
	return "unknown"
}

// ParseState maps a name back to a State.
func ParseState(s string) (State, bool) {
	for i, n := range stateNames {
		if n == s {
			return State(i), true
		}
	}
	return StateIdle, false
}

// IsMovement reports whether the state moves the agent along a path.
func (s State) IsMovement() bool {
	return s == StateWalking || s == StateTraveling || s == StateDriving
}

// Intent records why an agent is moving, so arrival knows what comes next.
type Intent uint8

const (
	IntentNone Intent = iota
	IntentWork
	IntentStroll
	IntentSocialize
	IntentHome
	IntentGoto
	IntentGather
)

// Agent is a simulated villager.
type Agent struct {
	ID          AgentID     `json:"id"`
	Name        string      `json:"name"`
	Personality Personality `json:"personality"`

	// Location
	Position     world.Vec3 `json:"position"`
	Yaw          float64    `json:"yaw"`
	Home         world.Vec3 `json:"home"`
	HomeObstacle string     `json:"home_obstacle,omitempty"` // footprint id never ejected from
	FieldID      *uint64    `json:"field_id,omitempty"`

	// Behavior
	State     State        `json:"state"`
	StateTime float64      `json:"state_time"` // seconds spent in State
	Intent    Intent       `json:"intent"`
	Action    string       `json:"action"`
	Path      []world.Vec3 `json:"-"`
	Target    world.Vec3   `json:"target"`

	Needs NeedsState `json:"needs"`
	Mood  Mood       `json:"mood"`

	// Movement speed. BaseSpeed is seeded from personality; Speed is the
	// current value, which modes and mood may override until state exit.
	BaseSpeed float64 `json:"base_speed"`
	Speed     float64 `json:"speed"`

	savedSpeed  float64
	speedSaved  bool
	moodApplied bool

	// Personality modifiers rolled at spawn.
	WorkEthic   float64 `json:"work_ethic"`  // scales work duration
	Sociability float64 `json:"sociability"` // scales social duration

	OwnsVehicle bool `json:"owns_vehicle"`
	Vehicle     bool `json:"vehicle"` // holds a vehicle right now
	Asleep      bool `json:"asleep"`

	// Timers, in seconds.
	IdleTimer        float64 `json:"idle_timer"`
	ActivityDuration float64 `json:"activity_duration"` // target length of a timed state

	// Stuck watchdog.
	StuckTimer  float64    `json:"-"`
	StuckAnchor world.Vec3 `json:"-"`

	Encounters []Encounter `json:"encounters,omitempty"`
}

// OverrideSpeed sets a transient speed, remembering the original the first
// time so RestoreSpeed can undo any stack of overrides.
func (a *Agent) OverrideSpeed(v float64) {
	if !a.speedSaved {
		a.savedSpeed = a.Speed
		a.speedSaved = true
	}
	if v < 0 {
		v = 0
	}
	a.Speed = v
}

// RestoreSpeed reverts to the speed held before the first override.
func (a *Agent) RestoreSpeed() {
	if a.speedSaved {
		a.Speed = a.savedSpeed
		a.speedSaved = false
	}
	a.moodApplied = false
}

// SpeedOverridden reports whether a transient speed is active.
func (a *Agent) SpeedOverridden() bool { return a.speedSaved }

// OriginalSpeed returns the pre-override speed.
func (a *Agent) OriginalSpeed() float64 {
	if a.speedSaved {
		return a.savedSpeed
	}
	return a.Speed
}

// ClearPath drops any remaining waypoints.
func (a *Agent) ClearPath() {
	a.Path = nil
}

// NextWaypoint returns the head of the path.
func (a *Agent) NextWaypoint() (world.Vec3, bool) {
	if len(a.Path) == 0 {
		return world.Vec3{}, false
	}
	return a.Path[0], true
}

// PopWaypoint consumes the head of the path.
func (a *Agent) PopWaypoint() {
	if len(a.Path) > 0 {
		a.Path = a.Path[1:]
	}
}
