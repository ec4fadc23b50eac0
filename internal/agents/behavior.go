// Decision engine: chooses the next action for an idle agent.
// Priority: weather, emergency needs, the daily schedule, then a weighted
// random draw.
package agents

import "github.com/talgya/npc-favor/internal/world"

// Decision is what an idle agent chose to do next.
type Decision uint8

const (
	DecisionIdle Decision = iota
	DecisionWork
	DecisionWalk
	DecisionSocialize
	DecisionRest
	DecisionGoHome

	NumDecisions = 6
)

var decisionNames = [NumDecisions]string{"idle", "work", "walk", "socialize", "rest", "go_home"}

func (d Decision) String() string {
	if int(d) < NumDecisions {
		return decisionNames[d]
	}
	return "unknown"
}

// Reasons attached to a DecisionResult.
const (
	ReasonWeather   = "weather"
	ReasonRain      = "rain"
	ReasonEmergency = "emergency"
	ReasonSchedule  = "schedule"
	ReasonIdleGap   = "idle_gap"
	ReasonWeighted  = "weighted"
)

// Weather factors: at or below SevereWeather agents shelter; hardworking
// agents hold out until StormFloor.
const (
	SevereWeather    = 0.3
	StormFloor       = 0.05
	lightRain        = 0.7
	rainCancelWalk   = 0.5
	defaultEmergency = 80
)

// DecisionContext is the outside information a decision looks at.
type DecisionContext struct {
	Now                world.GameTime
	Schedule           Activity
	Scheduled          bool // false inside the idle gap
	PlayerRelationship int
	Emergency          float64 // need threshold; 80 when zero
	Rand               world.Random
}

// DecisionResult is the chosen decision and why.
type DecisionResult struct {
	Decision Decision
	Reason   string
	Action   string
}

// transitionWeights biases the fallback draw by the state the agent is
// leaving. Missing pairs weigh 1.
var transitionWeights = map[State]map[Decision]float64{
	StateIdle: {
		DecisionIdle: 0.6,
	},
	StateWalking: {
		DecisionWalk:      0.5,
		DecisionSocialize: 1.3, // met someone on the way
		DecisionRest:      1.2,
	},
	StateWorking: {
		DecisionWork:   0.7,
		DecisionRest:   1.5,
		DecisionGoHome: 1.2,
	},
	StateDriving: {
		DecisionWork: 1.3,
		DecisionWalk: 0.6,
	},
	StateResting: {
		DecisionRest: 0.3,
		DecisionWork: 1.3,
		DecisionWalk: 1.2,
	},
	StateSocializing: {
		DecisionSocialize: 0.4,
		DecisionWalk:      1.2,
		DecisionGoHome:    1.1,
	},
	StateTraveling: {
		DecisionIdle: 1.3,
		DecisionWalk: 0.7,
	},
	StateGathering: {
		DecisionSocialize: 0.5,
		DecisionGoHome:    1.3,
	},
}

// timeWeights are the base weights of the fallback draw per time bucket.
var timeWeights = [...][NumDecisions]float64{
	bucketNight:     {DecisionIdle: 2, DecisionWork: 0.1, DecisionWalk: 0.2, DecisionSocialize: 0.2, DecisionRest: 3, DecisionGoHome: 3},
	bucketMorning:   {DecisionIdle: 1, DecisionWork: 4, DecisionWalk: 1.5, DecisionSocialize: 0.5, DecisionRest: 0.5, DecisionGoHome: 0.3},
	bucketMidday:    {DecisionIdle: 1, DecisionWork: 2, DecisionWalk: 1, DecisionSocialize: 2.5, DecisionRest: 1, DecisionGoHome: 0.5},
	bucketAfternoon: {DecisionIdle: 1, DecisionWork: 3, DecisionWalk: 1.5, DecisionSocialize: 1, DecisionRest: 0.8, DecisionGoHome: 0.5},
	bucketEvening:   {DecisionIdle: 1.5, DecisionWork: 0.3, DecisionWalk: 2, DecisionSocialize: 2.5, DecisionRest: 1.5, DecisionGoHome: 2},
}

const (
	bucketNight = iota
	bucketMorning
	bucketMidday
	bucketAfternoon
	bucketEvening
)

func timeBucket(hour int) int {
	switch {
	case hour >= 5 && hour < 11:
		return bucketMorning
	case hour >= 11 && hour < 14:
		return bucketMidday
	case hour >= 14 && hour < 18:
		return bucketAfternoon
	case hour >= 18 && hour < 22:
		return bucketEvening
	default:
		return bucketNight
	}
}

var moodWeights = [...][NumDecisions]float64{
	MoodHappy:    {1, 1.1, 1.3, 1.3, 0.8, 0.9},
	MoodNeutral:  {1, 1, 1, 1, 1, 1},
	MoodStressed: {1.2, 0.8, 1.1, 0.7, 1.3, 1.2},
	MoodTired:    {1.3, 0.6, 0.6, 0.7, 2, 1.5},
}

// Decide picks the next action for an idle agent.
func Decide(a *Agent, ctx DecisionContext) DecisionResult {
	threshold := ctx.Emergency
	if threshold <= 0 {
		threshold = defaultEmergency
	}
	weather := ctx.Now.Weather

	// Weather.
	if weather <= SevereWeather {
		if a.Personality != Hardworking || weather <= StormFloor {
			return DecisionResult{Decision: DecisionGoHome, Reason: ReasonWeather, Action: "shelter"}
		}
	}
	noWalk := false
	if weather <= lightRain && ctx.Scheduled && ctx.Schedule.Decision == DecisionWalk {
		if draw(ctx.Rand) < rainCancelWalk {
			noWalk = true
		}
	}

	// Emergency needs.
	switch a.Needs.Emergency(a.Personality, threshold) {
	case EmergencyEnergy:
		return DecisionResult{Decision: DecisionRest, Reason: ReasonEmergency, Action: "exhausted"}
	case EmergencySocial:
		return DecisionResult{Decision: DecisionSocialize, Reason: ReasonEmergency, Action: "lonely"}
	case EmergencyHunger:
		return DecisionResult{Decision: DecisionGoHome, Reason: ReasonEmergency, Action: "hungry"}
	}

	// Schedule.
	if !ctx.Scheduled {
		return DecisionResult{Decision: DecisionIdle, Reason: ReasonIdleGap, Action: "stay_idle"}
	}
	if !noWalk && ctx.Schedule.Decision != DecisionIdle {
		return DecisionResult{Decision: ctx.Schedule.Decision, Reason: ReasonSchedule, Action: ctx.Schedule.Action}
	}

	w := FallbackWeights(a, ctx.Now.Hour, ctx.PlayerRelationship, threshold)
	if noWalk {
		w[DecisionWalk] = 0
	}
	d := pickWeighted(w, draw(ctx.Rand))
	reason := ReasonWeighted
	if noWalk {
		reason = ReasonRain
	}
	return DecisionResult{Decision: d, Reason: reason, Action: d.String()}
}

// FallbackWeights computes the weighted-random table for an agent.
func FallbackWeights(a *Agent, hour, playerRel int, threshold float64) [NumDecisions]float64 {
	base := timeWeights[timeBucket(hour)]
	prof := ProfileOf(a.Personality)
	mood := moodWeights[MoodNeutral]
	if int(a.Mood) < len(moodWeights) {
		mood = moodWeights[a.Mood]
	}
	trans := transitionWeights[a.State]

	var w [NumDecisions]float64
	for i := range w {
		d := Decision(i)
		v := base[i] * prof.Bias[i] * mood[i]
		if t, ok := trans[d]; ok {
			v *= t
		}
		w[i] = v
	}

	// Pressing (but not emergency) needs pull toward the matching action.
	w[DecisionRest] *= needPull(a.Needs.Energy, threshold)
	w[DecisionSocialize] *= needPull(a.Needs.Social, threshold)
	w[DecisionGoHome] *= needPull(a.Needs.Hunger, threshold)
	w[DecisionWork] *= needPull(a.Needs.WorkSatisfaction, threshold)

	// Agents who like the player wander more, and so are met more often.
	if playerRel > 50 {
		w[DecisionWalk] *= 1 + float64(playerRel-50)/100
	}
	return w
}

func needPull(v, threshold float64) float64 {
	if v > threshold {
		v = threshold
	}
	if v < 0 {
		v = 0
	}
	return 1 + v/threshold
}

// pickWeighted does a cumulative-weight draw with r in [0,1).
func pickWeighted(w [NumDecisions]float64, r float64) Decision {
	var total float64
	for _, v := range w {
		if v > 0 {
			total += v
		}
	}
	if total <= 0 {
		return DecisionIdle
	}
	target := r * total
	var acc float64
	last := DecisionIdle
	for i, v := range w {
		if v <= 0 {
			continue
		}
		acc += v
		last = Decision(i)
		if target < acc {
			return last
		}
	}
	return last
}

func draw(r world.Random) float64 {
	if r == nil {
		return 0.5
	}
	return r.Float64()
}

// NextIdleTimer rolls how long an agent stays idle before deciding again.
func NextIdleTimer(p Personality, r world.Random) float64 {
	rng := ProfileOf(p).IdleRange
	return rng[0] + draw(r)*(rng[1]-rng[0])
}
