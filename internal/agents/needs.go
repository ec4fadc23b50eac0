package agents

import "github.com/talgya/npc-favor/internal/tuning"

// NeedsState holds the four drives, each in [0,100]. Higher is always more
// pressing: Energy is accumulated fatigue, Social is loneliness, Hunger is
// hunger, and WorkSatisfaction is stored inverted as the urge to work.
type NeedsState struct {
	Energy           float64 `json:"energy"`
	Social           float64 `json:"social"`
	Hunger           float64 `json:"hunger"`
	WorkSatisfaction float64 `json:"work_satisfaction"`
}

// Clamp forces every need into [0,100].
func (n *NeedsState) Clamp() {
	n.Energy = clamp100(n.Energy)
	n.Social = clamp100(n.Social)
	n.Hunger = clamp100(n.Hunger)
	n.WorkSatisfaction = clamp100(n.WorkSatisfaction)
}

// Average is the mean pressure across all four drives.
func (n NeedsState) Average() float64 {
	return (n.Energy + n.Social + n.Hunger + n.WorkSatisfaction) / 4
}

func clamp100(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// NeedsContext carries what UpdateNeeds needs beyond the agent itself.
type NeedsContext struct {
	Dt       float64 // seconds
	Mealtime bool    // inside the agent's lunch or dinner window
	Rates    tuning.Needs
}

// UpdateNeeds advances the agent's drives by ctx.Dt seconds. Rates depend on
// the current state and are scaled by personality multipliers.
func UpdateNeeds(a *Agent, ctx NeedsContext) {
	if ctx.Dt <= 0 {
		return
	}
	m := ProfileOf(a.Personality).Needs
	r := ctx.Rates
	dt := ctx.Dt
	n := &a.Needs

	switch {
	case a.Asleep || a.State == StateResting:
		n.Energy -= r.EnergyRest * dt
	case a.State == StateWorking, a.State == StateTraveling, a.State == StateWalking, a.State == StateGathering:
		n.Energy += r.EnergyActive * m.Energy * dt
	default:
		n.Energy += r.EnergyAwake * m.Energy * dt
	}

	if a.State == StateSocializing || a.State == StateGathering {
		n.Social -= r.SocialTogether * dt
	} else if !a.Asleep {
		n.Social += r.SocialAlone * m.Social * dt
	}

	if ctx.Mealtime {
		n.Hunger -= r.HungerMeal * dt
	} else {
		n.Hunger += r.HungerRise * m.Hunger * dt
	}

	if a.State == StateWorking {
		n.WorkSatisfaction -= r.WorkActive * dt
	} else if !a.Asleep {
		n.WorkSatisfaction += r.WorkIdle * m.Work * dt
	}

	n.Clamp()
}

// Mood is derived from the average of the needs.
type Mood uint8

const (
	MoodHappy Mood = iota
	MoodNeutral
	MoodStressed
	MoodTired
)

var moodNames = [...]string{"happy", "neutral", "stressed", "tired"}

func (m Mood) String() string {
	if int(m) < len(moodNames) {
		return moodNames[m]
	}
	return "unknown"
}

// MarshalText encodes the mood by name.
func (m Mood) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// DeriveMood maps the needs average onto the four mood bands.
func DeriveMood(n NeedsState) Mood {
	avg := n.Average()
	switch {
	case avg < 30:
		return MoodHappy
	case avg < 60:
		return MoodNeutral
	case avg < 80:
		return MoodStressed
	default:
		return MoodTired
	}
}

// SpeedFactor is the one-time multiplier applied on entering a mood.
func (m Mood) SpeedFactor() float64 {
	switch m {
	case MoodHappy:
		return 1.10
	case MoodStressed:
		return 0.90
	case MoodTired:
		return 0.85
	default:
		return 1.0
	}
}

// UpdateMood re-derives the agent's mood. On a transition it applies the
// new mood's speed factor against the pre-override speed, at most once per
// state; RestoreSpeed on state exit undoes it. Returns true on a transition.
func UpdateMood(a *Agent) bool {
	m := DeriveMood(a.Needs)
	if m == a.Mood {
		return false
	}
	a.Mood = m
	ApplyMoodSpeed(a)
	return true
}

// ApplyMoodSpeed applies the current mood's speed factor unless one is
// already in force for this state.
func ApplyMoodSpeed(a *Agent) {
	if f := a.Mood.SpeedFactor(); f != 1 && !a.moodApplied {
		a.OverrideSpeed(a.OriginalSpeed() * f)
		a.moodApplied = true
	}
}

// EmergencyNeed names the need that crossed the emergency threshold.
type EmergencyNeed uint8

const (
	EmergencyNone EmergencyNeed = iota
	EmergencyEnergy
	EmergencySocial
	EmergencyHunger
)

// Emergency returns the highest-priority need above threshold. Energy beats
// social, social beats hunger. Grumpy and loner agents never raise a social
// emergency.
func (n NeedsState) Emergency(p Personality, threshold float64) EmergencyNeed {
	switch {
	case n.Energy > threshold:
		return EmergencyEnergy
	case n.Social > threshold && p != Grumpy && p != Loner:
		return EmergencySocial
	case n.Hunger > threshold:
		return EmergencyHunger
	}
	return EmergencyNone
}
