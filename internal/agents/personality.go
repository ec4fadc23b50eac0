package agents

// Profile is the per-personality constant table consulted by every
// component. Adding a personality means adding a row here; the
// completeness test fails until every field is filled in.
type Profile struct {
	SpeedRange    [2]float64 // walking speed, m/s
	IdleRange     [2]float64 // seconds idle before the next decision
	WorkSeconds   float64    // work stint before a break is considered
	BreakChance   float64    // chance a finished stint ends in a break
	SocialSeconds float64
	RestSeconds   float64
	Needs         NeedMultipliers
	Bias          [NumDecisions]float64 // weighted-fallback multipliers
	Schedule      DailySchedule
}

// NeedMultipliers scale the base need rates.
type NeedMultipliers struct {
	Energy float64
	Social float64
	Hunger float64
	Work   float64
}

// DailySchedule holds minutes since midnight for each anchor of the day.
type DailySchedule struct {
	Wake         int
	WorkStart    int
	LunchMinutes int
	WorkEnd      int
	Sleep        int
}

const (
	hhmm = 60
)

var profiles = [NumPersonalities]Profile{
	Hardworking: {
		SpeedRange:    [2]float64{1.4, 1.6},
		IdleRange:     [2]float64{3, 8},
		WorkSeconds:   240,
		BreakChance:   0.2,
		SocialSeconds: 20,
		RestSeconds:   30,
		Needs:         NeedMultipliers{Energy: 1.0, Social: 0.8, Hunger: 1.0, Work: 1.5},
		Bias:          [NumDecisions]float64{DecisionIdle: 0.6, DecisionWork: 1.8, DecisionWalk: 0.8, DecisionSocialize: 0.7, DecisionRest: 0.7, DecisionGoHome: 0.8},
		Schedule:      DailySchedule{Wake: 5 * hhmm, WorkStart: 6 * hhmm, LunchMinutes: 30, WorkEnd: 18 * hhmm, Sleep: 21*hhmm + 30},
	},
	Lazy: {
		SpeedRange:    [2]float64{1.0, 1.2},
		IdleRange:     [2]float64{10, 25},
		WorkSeconds:   90,
		BreakChance:   0.7,
		SocialSeconds: 40,
		RestSeconds:   80,
		Needs:         NeedMultipliers{Energy: 1.4, Social: 1.0, Hunger: 1.1, Work: 0.6},
		Bias:          [NumDecisions]float64{DecisionIdle: 1.5, DecisionWork: 0.5, DecisionWalk: 1.0, DecisionSocialize: 1.1, DecisionRest: 1.8, DecisionGoHome: 1.2},
		Schedule:      DailySchedule{Wake: 8 * hhmm, WorkStart: 9*hhmm + 30, LunchMinutes: 90, WorkEnd: 16 * hhmm, Sleep: 23*hhmm + 30},
	},
	Social: {
		SpeedRange:    [2]float64{1.3, 1.5},
		IdleRange:     [2]float64{5, 12},
		WorkSeconds:   150,
		BreakChance:   0.5,
		SocialSeconds: 60,
		RestSeconds:   40,
		Needs:         NeedMultipliers{Energy: 1.0, Social: 1.5, Hunger: 1.0, Work: 0.9},
		Bias:          [NumDecisions]float64{DecisionIdle: 0.8, DecisionWork: 0.9, DecisionWalk: 1.3, DecisionSocialize: 1.9, DecisionRest: 0.8, DecisionGoHome: 0.9},
		Schedule:      DailySchedule{Wake: 7 * hhmm, WorkStart: 8 * hhmm, LunchMinutes: 60, WorkEnd: 17 * hhmm, Sleep: 23 * hhmm},
	},
	Grumpy: {
		SpeedRange:    [2]float64{1.2, 1.4},
		IdleRange:     [2]float64{8, 15},
		WorkSeconds:   180,
		BreakChance:   0.4,
		SocialSeconds: 15,
		RestSeconds:   45,
		Needs:         NeedMultipliers{Energy: 1.1, Social: 0.7, Hunger: 1.0, Work: 1.0},
		Bias:          [NumDecisions]float64{DecisionIdle: 1.2, DecisionWork: 1.1, DecisionWalk: 0.9, DecisionSocialize: 0.3, DecisionRest: 1.0, DecisionGoHome: 1.3},
		Schedule:      DailySchedule{Wake: 6 * hhmm, WorkStart: 7 * hhmm, LunchMinutes: 45, WorkEnd: 17 * hhmm, Sleep: 21 * hhmm},
	},
	Generous: {
		SpeedRange:    [2]float64{1.3, 1.5},
		IdleRange:     [2]float64{5, 12},
		WorkSeconds:   180,
		BreakChance:   0.4,
		SocialSeconds: 45,
		RestSeconds:   40,
		Needs:         NeedMultipliers{Energy: 1.0, Social: 1.2, Hunger: 1.0, Work: 1.1},
		Bias:          [NumDecisions]float64{DecisionIdle: 0.9, DecisionWork: 1.1, DecisionWalk: 1.1, DecisionSocialize: 1.4, DecisionRest: 0.9, DecisionGoHome: 1.0},
		Schedule:      DailySchedule{Wake: 6*hhmm + 30, WorkStart: 7*hhmm + 30, LunchMinutes: 60, WorkEnd: 17*hhmm + 30, Sleep: 22 * hhmm},
	},
	Loner: {
		SpeedRange:    [2]float64{1.2, 1.5},
		IdleRange:     [2]float64{8, 18},
		WorkSeconds:   200,
		BreakChance:   0.3,
		SocialSeconds: 12,
		RestSeconds:   50,
		Needs:         NeedMultipliers{Energy: 1.0, Social: 0.5, Hunger: 1.0, Work: 1.2},
		Bias:          [NumDecisions]float64{DecisionIdle: 1.3, DecisionWork: 1.2, DecisionWalk: 1.4, DecisionSocialize: 0.2, DecisionRest: 1.0, DecisionGoHome: 1.1},
		Schedule:      DailySchedule{Wake: 6 * hhmm, WorkStart: 7 * hhmm, LunchMinutes: 30, WorkEnd: 17 * hhmm, Sleep: 22*hhmm + 30},
	},
}

var defaultProfile = Profile{
	SpeedRange:    [2]float64{1.2, 1.4},
	IdleRange:     [2]float64{5, 12},
	WorkSeconds:   180,
	BreakChance:   0.4,
	SocialSeconds: 30,
	RestSeconds:   40,
	Needs:         NeedMultipliers{Energy: 1, Social: 1, Hunger: 1, Work: 1},
	Bias:          [NumDecisions]float64{1, 1, 1, 1, 1, 1},
	Schedule:      DailySchedule{Wake: 6 * hhmm, WorkStart: 7 * hhmm, LunchMinutes: 60, WorkEnd: 17 * hhmm, Sleep: 22 * hhmm},
}

// ProfileOf returns the constant table for a personality, falling back to
// the default profile for values outside the enum.
func ProfileOf(p Personality) Profile {
	if int(p) < NumPersonalities {
		return profiles[p]
	}
	return defaultProfile
}

// AllPersonalities lists every personality in enum order.
func AllPersonalities() []Personality {
	out := make([]Personality, NumPersonalities)
	for i := range out {
		out[i] = Personality(i)
	}
	return out
}
