// Daily routine resolver. Maps personality, time of day, weekday and season
// onto a scheduled activity window.
package agents

import (
	"github.com/talgya/npc-favor/internal/world"
)

// Window is a block of the daily routine.
type Window uint8

const (
	WindowSleeping Window = iota
	WindowWake
	WindowCommute
	WindowWork
	WindowLunch
	WindowCommuteHome
	WindowSocial
	WindowDinner
	WindowLeisure

	windowGap // between leisure end and bedtime on ordinary days
)

var windowNames = [...]string{
	"sleeping", "wake", "commute", "work", "lunch", "commute_home", "social", "dinner", "leisure", "gap",
}

func (w Window) String() string {
	if int(w) < len(windowNames) {
		return windowNames[w]
	}
	return "unknown"
}

// Mealtime reports whether hunger is being satisfied in this window.
func (w Window) Mealtime() bool { return w == WindowLunch || w == WindowDinner }

const (
	dayMinutes      = 24 * 60
	leisureEnd      = 21*60 + 30
	dinnerLength    = 60
	dinnerAfterWork = 90
	commuteLead     = 30
	runSpeed        = 4.0 // m/s
	sprintSpeed     = 6.0
)

// ScheduleInput is everything the resolver looks at.
type ScheduleInput struct {
	Personality  Personality
	Hour         int
	Minute       int
	Day          int
	Season       world.Season
	Weather      float64 // 0 storm .. 1 clear
	HomeDistance float64 // metres from the agent to home, for the evening commute
}

// Activity is the resolver's answer.
type Activity struct {
	Window   Window   `json:"window"`
	Label    string   `json:"label"`
	Decision Decision `json:"decision"`
	Action   string   `json:"action"`
}

type segment struct {
	start  int
	window Window
}

// ResolveSchedule returns the activity for the given moment. ok is false
// only inside the weekday gap between leisure and bedtime, which callers
// treat as "stay idle".
func ResolveSchedule(in ScheduleInput) (Activity, bool) {
	t := ((in.Hour*60+in.Minute)%dayMinutes + dayMinutes) % dayMinutes
	plan := DayPlan(in.Personality, in.Day, in.Season, in.HomeDistance)
	w := plan.At(t)
	if w == windowGap {
		return Activity{}, false
	}
	return activityFor(w, in.Weather), true
}

// Plan is one day's routine as an ordered list of window starts.
type Plan struct {
	segs []segment
}

// At returns the window covering minute t of the day.
func (p Plan) At(t int) Window {
	w := WindowSleeping
	for _, s := range p.segs {
		if s.start > t {
			break
		}
		w = s.window
	}
	return w
}

// Gap returns the weekday idle gap, if the plan has a non-empty one.
func (p Plan) Gap() (start, end int, ok bool) {
	for i, s := range p.segs {
		if s.window != windowGap {
			continue
		}
		end = dayMinutes
		if i+1 < len(p.segs) {
			end = p.segs[i+1].start
		}
		if end > s.start {
			return s.start, end, true
		}
	}
	return 0, 0, false
}

// DayPlan builds the routine for a personality on a given day.
func DayPlan(p Personality, day int, season world.Season, homeDist float64) Plan {
	s := adjustedSchedule(p, season)
	b := &planBuilder{}
	switch weekday(day) {
	case world.Sunday:
		wake := s.Wake + 120
		sleep := minInt(s.Sleep+60, dayMinutes)
		b.add(0, WindowSleeping)
		b.add(wake, WindowWake)
		b.add(wake+60, WindowLeisure)
		b.add(12*60, WindowLunch)
		b.add(13*60, WindowSocial)
		b.add(18*60, WindowDinner)
		b.add(19*60, WindowLeisure)
		b.add(sleep, WindowSleeping)
	case world.Saturday:
		wake := s.Wake + 60
		workStart := s.WorkStart + 60
		sleep := minInt(s.Sleep+60, dayMinutes)
		lunchStart := maxInt(12*60, workStart)
		b.add(0, WindowSleeping)
		b.add(wake, WindowWake)
		b.add(workStart-commuteLead, WindowCommute)
		b.add(workStart, WindowWork)
		b.add(lunchStart, WindowLunch)
		b.add(lunchStart+s.LunchMinutes, WindowSocial)
		b.add(18*60+30, WindowDinner)
		b.add(18*60+30+dinnerLength, WindowSocial)
		b.add(sleep, WindowSleeping)
	default:
		sleep := minInt(s.Sleep, dayMinutes)
		lunchStart := clampInt(12*60, s.WorkStart, s.WorkEnd-s.LunchMinutes)
		dinnerStart := s.WorkEnd + dinnerAfterWork
		depart := maxInt(s.WorkEnd, dinnerStart-commuteBuffer(homeDist, eveningSpeed(p, day)))
		b.add(0, WindowSleeping)
		b.add(s.Wake, WindowWake)
		b.add(s.WorkStart-commuteLead, WindowCommute)
		b.add(s.WorkStart, WindowWork)
		b.add(lunchStart, WindowLunch)
		b.add(lunchStart+s.LunchMinutes, WindowWork)
		b.add(s.WorkEnd, WindowSocial)
		b.add(depart, WindowCommuteHome)
		b.add(dinnerStart, WindowDinner)
		b.add(dinnerStart+dinnerLength, WindowLeisure)
		b.add(leisureEnd, windowGap)
		b.add(sleep, WindowSleeping)
	}
	return Plan{segs: b.segs}
}

// planBuilder keeps window starts monotonic: a start earlier than the
// previous one is pushed forward, collapsing that window to nothing.
type planBuilder struct {
	segs []segment
}

func (b *planBuilder) add(start int, w Window) {
	start = clampInt(start, 0, dayMinutes)
	if n := len(b.segs); n > 0 && start < b.segs[n-1].start {
		start = b.segs[n-1].start
	}
	b.segs = append(b.segs, segment{start: start, window: w})
}

// adjustedSchedule applies the seasonal shift to a personality's anchors.
func adjustedSchedule(p Personality, season world.Season) DailySchedule {
	s := ProfileOf(p).Schedule
	switch season {
	case world.Winter:
		s.Wake += 60
		s.WorkStart += 60
		s.WorkEnd -= 60
	case world.Summer:
		s.Wake -= 30
		s.WorkStart -= 30
		s.WorkEnd += 60
	}
	return s
}

// commuteBuffer is travel time home in minutes, padded by 20% and clamped
// to [5, 90].
func commuteBuffer(dist, speed float64) int {
	if speed <= 0 {
		speed = runSpeed
	}
	minutes := dist / speed / 60 * 1.2
	return clampInt(int(minutes+0.5), 5, 90)
}

// eveningSpeed picks run or sprint pace for the commute home, stable for a
// given personality and day.
func eveningSpeed(p Personality, day int) float64 {
	h := uint32(p)*2654435761 ^ uint32(day)*40503
	h ^= h >> 13
	if h%3 == 0 {
		return sprintSpeed
	}
	return runSpeed
}

func activityFor(w Window, weather float64) Activity {
	a := Activity{Window: w, Label: w.String()}
	switch w {
	case WindowSleeping:
		a.Decision, a.Action = DecisionRest, "sleep"
	case WindowWake:
		a.Decision, a.Action = DecisionIdle, "morning_routine"
	case WindowCommute:
		a.Decision, a.Action = DecisionWork, "head_to_work"
	case WindowWork:
		a.Decision, a.Action = DecisionWork, "field_work"
	case WindowLunch:
		a.Decision, a.Action = DecisionSocialize, "lunch_break"
	case WindowCommuteHome:
		a.Decision, a.Action = DecisionGoHome, "commute_home"
	case WindowSocial:
		a.Decision, a.Action = DecisionSocialize, "evening_social"
	case WindowDinner:
		a.Decision, a.Action = DecisionGoHome, "dinner"
	case WindowLeisure:
		a.Decision, a.Action = DecisionWalk, "evening_stroll"
	}
	if weather <= SevereWeather && (w == WindowSocial || w == WindowLeisure) {
		a.Decision, a.Action = DecisionGoHome, "stay_indoors"
	}
	return a
}

func weekday(day int) int {
	return world.GameTime{Day: day}.Weekday()
}

func clampInt(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
