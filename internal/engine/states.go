// Agent state machine: the per-tick update, the handler table, and the
// transitions driven by decisions and completion conditions.
package engine

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/talgya/npc-favor/internal/agents"
	"github.com/talgya/npc-favor/internal/fieldwork"
	"github.com/talgya/npc-favor/internal/social"
	"github.com/talgya/npc-favor/internal/world"
)

const (
	homeReach        = 5.0 // metres from home that count as home
	conversationGap  = 1.5 // distance kept from a conversation partner
	conversationNear = 4.0
	strollMin        = 15.0
	strollMax        = 60.0
	gatherJitter     = 4.0
	mountedFactor    = 1.6 // speed multiplier while working a field mounted
)

type handlerFunc func(s *Simulation, a *agents.Agent, dt float64)

// handlers has one entry per state; a test checks none is missing.
var handlers = [agents.NumStates]handlerFunc{
	agents.StateIdle:        (*Simulation).handleIdle,
	agents.StateWalking:     (*Simulation).handleMoving,
	agents.StateWorking:     (*Simulation).handleWorking,
	agents.StateDriving:     (*Simulation).handleMoving,
	agents.StateResting:     (*Simulation).handleResting,
	agents.StateSocializing: (*Simulation).handleSocializing,
	agents.StateTraveling:   (*Simulation).handleMoving,
	agents.StateGathering:   (*Simulation).handleGathering,
}

// Tick advances the simulation by dt seconds.
func (s *Simulation) Tick(dt float64) {
	if dt <= 0 {
		return
	}
	s.Ticks++
	s.now = s.svc.Now()

	s.weatherTimer += dt
	if s.weatherTimer >= s.cfg.Timers.WeatherCheck {
		s.weatherTimer = 0
		s.checkWeather()
	}
	s.reputationTimer += dt
	if s.reputationTimer >= s.cfg.Timers.ReputationCheck {
		s.reputationTimer = 0
		s.checkReputation()
	}
	s.groupingTimer += dt
	if s.groupingTimer >= s.cfg.Timers.GroupingCheck {
		s.groupingTimer = 0
		s.updateGroupings()
	}
	s.planner.Maintain(dt)

	for _, a := range s.Agents {
		s.tickAgentSafe(a, dt)
	}
}

// tickAgentSafe isolates one agent's failure from the rest of the tick.
func (s *Simulation) tickAgentSafe(a *agents.Agent, dt float64) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("agent update failed", "id", a.ID, "state", a.State, "panic", r)
			a.ClearPath()
			s.setState(a, agents.StateIdle, "recovered")
		}
	}()
	s.tickAgent(a, dt)
}

func (s *Simulation) tickAgent(a *agents.Agent, dt float64) {
	act, scheduled := s.schedule(a)
	if a.Asleep && !(scheduled && act.Window == agents.WindowSleeping) {
		a.Asleep = false
		s.setState(a, agents.StateIdle, "wake")
		slog.Debug("agent woke", "id", a.ID, "time", SimTime(s.minute(), s.now.Season))
	}

	agents.UpdateNeeds(a, agents.NeedsContext{
		Dt:       dt,
		Mealtime: scheduled && act.Window.Mealtime(),
		Rates:    s.cfg.Needs,
	})
	if agents.UpdateMood(a) {
		slog.Debug("mood change", "id", a.ID, "mood", a.Mood, "speed", a.Speed)
		s.markDirty(a.ID)
	}

	a.StateTime += dt
	prev := a.Position
	handlers[a.State](s, a, dt)
	s.validate(a, prev)
	s.watchStuck(a, dt)
}

func (s *Simulation) schedule(a *agents.Agent) (agents.Activity, bool) {
	return agents.ResolveSchedule(agents.ScheduleInput{
		Personality:  a.Personality,
		Hour:         s.now.Hour,
		Minute:       s.now.Minute,
		Day:          s.now.Day,
		Season:       s.now.Season,
		Weather:      s.now.Weather,
		HomeDistance: world.DistXZ(a.Position, a.Home),
	})
}

// setState is the only way an agent changes state. It resets the state
// timer, undoes speed overrides and releases whatever the old state held.
// The current mood's speed factor is then applied afresh.
func (s *Simulation) setState(a *agents.Agent, st agents.State, action string) {
	old := a.State
	a.RestoreSpeed()
	agents.ApplyMoodSpeed(a)
	if old == agents.StateWorking && st != agents.StateWorking {
		if n := s.workers.ReleaseAgent(uint64(a.ID)); n > 0 {
			slog.Debug("field slot released", "id", a.ID)
		}
	}
	if old == agents.StateDriving || old == agents.StateWorking {
		a.Vehicle = false
	}
	if st != agents.StateSocializing && (old == agents.StateSocializing || a.Intent == agents.IntentSocialize) {
		delete(s.partners, a.ID)
	}
	if old == agents.StateResting && st != agents.StateResting {
		a.Asleep = false
	}
	if st == agents.StateIdle {
		a.Intent = agents.IntentNone
		a.IdleTimer = agents.NextIdleTimer(a.Personality, s.svc)
	}
	delete(s.reroutes, a.ID)

	a.State = st
	a.StateTime = 0
	a.Action = action
	a.StuckTimer = 0
	a.StuckAnchor = a.Position
	s.markDirty(a.ID)
	if old != st {
		slog.Debug("state change", "id", a.ID, "from", old, "to", st, "action", action)
	}
}

func (s *Simulation) handleIdle(a *agents.Agent, dt float64) {
	a.IdleTimer -= dt
	if a.IdleTimer > 0 {
		return
	}
	act, ok := s.schedule(a)
	res := agents.Decide(a, agents.DecisionContext{
		Now:                s.now,
		Schedule:           act,
		Scheduled:          ok,
		PlayerRelationship: s.player.Value(uint64(a.ID)),
		Emergency:          s.cfg.Needs.Emergency,
		Rand:               s.svc,
	})
	a.IdleTimer = agents.NextIdleTimer(a.Personality, s.svc)
	slog.Debug("decision", "id", a.ID, "decision", res.Decision, "reason", res.Reason, "action", res.Action)
	s.apply(a, res)
}

// apply starts whatever a decision asks for.
func (s *Simulation) apply(a *agents.Agent, res agents.DecisionResult) {
	switch res.Decision {
	case agents.DecisionIdle:
		a.Action = res.Action
	case agents.DecisionWork:
		s.goToWork(a, res.Action)
	case agents.DecisionWalk:
		s.stroll(a, res.Action)
	case agents.DecisionSocialize:
		s.seekCompany(a, res.Action)
	case agents.DecisionRest:
		s.rest(a, res.Action)
	case agents.DecisionGoHome:
		s.goHome(a, res.Action)
	}
}

// startTrip plans a path to dest and puts the agent in the matching
// movement state: Walking for strolls, Driving for long trips when it owns
// a vehicle, Traveling otherwise.
func (s *Simulation) startTrip(a *agents.Agent, dest world.Vec3, intent agents.Intent, action string) {
	st := agents.StateTraveling
	switch {
	case intent == agents.IntentStroll:
		st = agents.StateWalking
	case a.OwnsVehicle && world.DistXZ(a.Position, dest) >= s.cfg.Movement.DriveMinDistance:
		st = agents.StateDriving
	}
	path := s.planner.FindPath(a.Position.X, a.Position.Z, dest.X, dest.Z)
	s.setState(a, st, action)
	a.Intent = intent
	a.Target = dest
	a.Path = path
	if st == agents.StateDriving {
		a.Vehicle = true
		a.OverrideSpeed(s.cfg.Movement.DriveSpeed)
	}
}

func (s *Simulation) fieldOf(a *agents.Agent) (fieldwork.Field, bool) {
	if a.FieldID == nil {
		return fieldwork.Field{}, false
	}
	f, ok := s.fields[*a.FieldID]
	return f, ok
}

func (s *Simulation) goToWork(a *agents.Agent, action string) {
	f, ok := s.fieldOf(a)
	if !ok {
		a.Action = "no_field"
		return
	}
	if world.DistXZ(a.Position, f.Center) <= math.Sqrt(f.Area)/2 {
		s.beginWork(a, f)
		return
	}
	s.startTrip(a, f.Center, agents.IntentWork, action)
}

// patternPreference maps temperament onto the occasional alternative
// traversal.
func patternPreference(p agents.Personality) (fieldwork.PatternKind, float64) {
	switch p {
	case agents.Grumpy:
		return fieldwork.PatternPerimeter, 0.15
	case agents.Lazy, agents.Social:
		return fieldwork.PatternSpotCheck, 0.2
	default:
		return fieldwork.PatternRows, 0
	}
}

// workPath claims (or re-claims) a slot and lays out the traversal. A full
// field yields an inspection walk round the edge without a slot.
func (s *Simulation) workPath(a *agents.Agent, f fieldwork.Field) ([]world.Vec3, fieldwork.PatternKind, int) {
	mode := fieldwork.OnFoot
	if a.OwnsVehicle {
		mode = fieldwork.Mounted
	}
	slot, ok := s.workers.AssignWorker(f.ID, uint64(a.ID), f.Area)
	var pat fieldwork.Pattern
	if ok {
		req := fieldwork.Request{
			Field:   f,
			Mode:    mode,
			Slot:    slot,
			Sharing: s.workers.Capacity(f.ID) > 1,
			From:    a.Position,
			Rand:    s.svc,
		}
		req.Prefer, req.PreferChance = patternPreference(a.Personality)
		pat = fieldwork.GeneratePattern(req)
	} else {
		pat = fieldwork.Pattern{Kind: fieldwork.PatternPerimeter, Waypoints: fieldwork.Perimeter(f, mode, a.Position)}
	}
	path := make([]world.Vec3, len(pat.Waypoints))
	for i, p := range pat.Waypoints {
		p.Y = s.svc.Height(p.X, p.Z)
		path[i] = p
	}
	return path, pat.Kind, slot
}

func (s *Simulation) beginWork(a *agents.Agent, f fieldwork.Field) {
	path, kind, slot := s.workPath(a, f)
	action := "field_work"
	if slot == 0 {
		action = "inspect_field"
	}
	s.setState(a, agents.StateWorking, action)
	a.Intent = agents.IntentWork
	a.Target = f.Center
	a.Path = path
	a.ActivityDuration = agents.ProfileOf(a.Personality).WorkSeconds * a.WorkEthic
	if a.OwnsVehicle {
		a.Vehicle = true
		a.OverrideSpeed(a.OriginalSpeed() * mountedFactor)
	}
	if slot > 0 {
		s.emit(Event{Category: "field", AgentID: a.ID,
			Description: fmt.Sprintf("%s started working field %d", a.Name, f.ID),
			Meta:        map[string]any{"field": f.ID, "slot": slot, "pattern": kind.String()}})
	}
}

func (s *Simulation) handleWorking(a *agents.Agent, dt float64) {
	if s.moveAlong(a, dt) {
		if f, ok := s.fieldOf(a); ok {
			a.Path, _, _ = s.workPath(a, f)
		}
	}
	if a.StateTime < a.ActivityDuration {
		return
	}
	prof := agents.ProfileOf(a.Personality)
	act, ok := s.schedule(a)
	if !ok || act.Decision != agents.DecisionWork {
		a.ClearPath()
		s.setState(a, agents.StateIdle, "shift_over")
		return
	}
	if s.svc.Float64() < prof.BreakChance {
		a.ClearPath()
		s.setState(a, agents.StateIdle, "take_a_break")
		return
	}
	a.ActivityDuration += prof.WorkSeconds * a.WorkEthic / 2
}

func (s *Simulation) stroll(a *agents.Agent, action string) {
	ang := s.svc.Float64() * 2 * math.Pi
	r := strollMin + s.svc.Float64()*(strollMax-strollMin)
	dest := world.Vec3{X: a.Position.X + math.Sin(ang)*r, Z: a.Position.Z + math.Cos(ang)*r}
	s.startTrip(a, dest, agents.IntentStroll, action)
}

// findPartner picks an idle, unpaired neighbour: the best bond above the
// partner minimum, else the nearest.
func (s *Simulation) findPartner(a *agents.Agent) (*agents.Agent, bool) {
	var ids []agents.AgentID
	var nearest *agents.Agent
	for _, b := range s.Agents {
		if b.ID == a.ID || b.Asleep || b.State != agents.StateIdle {
			continue
		}
		if _, paired := s.partners[b.ID]; paired {
			continue
		}
		d := world.DistXZ(a.Position, b.Position)
		if d > s.cfg.Bonds.PartnerSearchDist {
			continue
		}
		ids = append(ids, b.ID)
		if nearest == nil || d < world.DistXZ(a.Position, nearest.Position) {
			nearest = b
		}
	}
	if id, ok := s.bonds.BestPartner(a.ID, ids); ok {
		return s.AgentIndex[id], true
	}
	return nearest, nearest != nil
}

func (s *Simulation) seekCompany(a *agents.Agent, action string) {
	b, ok := s.findPartner(a)
	if !ok {
		spot := s.plaza
		spot.X += (s.svc.Float64()*2 - 1) * gatherJitter
		spot.Z += (s.svc.Float64()*2 - 1) * gatherJitter
		s.startTrip(a, spot, agents.IntentGather, action)
		return
	}
	meet := b.Position
	if off := a.Position.Sub(b.Position).NormXZ(); off != (world.Vec3{}) {
		meet = b.Position.Add(off.Scale(conversationGap))
	}
	s.setState(b, agents.StateSocializing, "waiting_for_"+a.Name)
	b.ActivityDuration = socialDuration(b)
	s.startTrip(a, meet, agents.IntentSocialize, action)
	s.partners[a.ID] = b.ID
	s.partners[b.ID] = a.ID
}

func socialDuration(a *agents.Agent) float64 {
	return agents.ProfileOf(a.Personality).SocialSeconds * a.Sociability
}

// partnerOf returns the agent's partner while the pairing is mutual.
func (s *Simulation) partnerOf(a *agents.Agent) (*agents.Agent, bool) {
	id, ok := s.partners[a.ID]
	if !ok {
		return nil, false
	}
	b, ok := s.AgentIndex[id]
	if !ok || s.partners[b.ID] != a.ID {
		return nil, false
	}
	return b, true
}

func (s *Simulation) handleSocializing(a *agents.Agent, dt float64) {
	b, ok := s.partnerOf(a)
	if !ok || a.StateTime >= a.ActivityDuration {
		s.setState(a, agents.StateIdle, "conversation_over")
		return
	}
	if world.DistXZ(a.Position, b.Position) <= conversationNear {
		a.Yaw = world.Bearing(a.Position, b.Position)
	}
}

func (s *Simulation) handleGathering(a *agents.Agent, dt float64) {
	if a.StateTime >= a.ActivityDuration {
		s.setState(a, agents.StateIdle, "leave_gathering")
		return
	}
	to := a.Target.Sub(a.Position)
	d := to.LenXZ()
	if d < 0.3 {
		return
	}
	dir := to.NormXZ()
	step := math.Min(a.Speed*0.5*dt, d)
	a.Position.X += dir.X * step
	a.Position.Z += dir.Z * step
	a.Yaw = math.Atan2(dir.X, dir.Z)
}

func (s *Simulation) rest(a *agents.Agent, action string) {
	if action == "sleep" {
		if world.DistXZ(a.Position, a.Home) > homeReach {
			s.startTrip(a, a.Home, agents.IntentHome, "heading_to_bed")
			return
		}
		s.sleep(a)
		return
	}
	s.setState(a, agents.StateResting, action)
	a.ActivityDuration = agents.ProfileOf(a.Personality).RestSeconds
}

func (s *Simulation) sleep(a *agents.Agent) {
	s.setState(a, agents.StateResting, "sleep")
	a.Asleep = true
	slog.Debug("agent asleep", "id", a.ID, "time", SimTime(s.minute(), s.now.Season))
}

func (s *Simulation) handleResting(a *agents.Agent, dt float64) {
	if a.Asleep || a.StateTime < a.ActivityDuration {
		return
	}
	s.setState(a, agents.StateIdle, "rested")
}

func (s *Simulation) goHome(a *agents.Agent, action string) {
	if world.DistXZ(a.Position, a.Home) <= homeReach {
		if a.State != agents.StateIdle {
			a.ClearPath()
			s.setState(a, agents.StateIdle, action)
		}
		a.Action = action
		return
	}
	s.startTrip(a, a.Home, agents.IntentHome, action)
}

func (s *Simulation) handleMoving(a *agents.Agent, dt float64) {
	if s.moveAlong(a, dt) {
		s.arrive(a)
	}
}

// arrive finishes a trip according to why it was made.
func (s *Simulation) arrive(a *agents.Agent) {
	switch a.Intent {
	case agents.IntentWork:
		if f, ok := s.fieldOf(a); ok {
			s.beginWork(a, f)
			return
		}
	case agents.IntentSocialize:
		if b, ok := s.partnerOf(a); ok && world.DistXZ(a.Position, b.Position) <= conversationNear {
			s.setState(a, agents.StateSocializing, "chatting")
			a.ActivityDuration = socialDuration(a)
			a.Yaw = world.Bearing(a.Position, b.Position)
			if b.State == agents.StateSocializing {
				b.Action = "chatting"
			}
			s.shareActivity(a, b, social.InteractSocialize)
			return
		}
	case agents.IntentGather:
		s.setState(a, agents.StateGathering, "gathering")
		a.ActivityDuration = socialDuration(a)
		return
	case agents.IntentHome:
		if act, ok := s.schedule(a); ok && act.Window == agents.WindowSleeping {
			s.sleep(a)
			return
		}
	}
	s.setState(a, agents.StateIdle, "arrived")
}

// checkWeather sends agents who are out in severe weather home.
func (s *Simulation) checkWeather() {
	w := s.now.Weather
	if w > agents.SevereWeather {
		return
	}
	sent := 0
	for _, a := range s.Agents {
		if a.Asleep {
			continue
		}
		outdoors := a.State == agents.StateWorking || a.State == agents.StateGathering ||
			a.State == agents.StateSocializing ||
			(a.State == agents.StateWalking && a.Intent == agents.IntentStroll)
		if !outdoors {
			continue
		}
		if a.Personality == agents.Hardworking && a.State == agents.StateWorking && w > agents.StormFloor {
			continue
		}
		a.ClearPath()
		s.goHome(a, "shelter")
		sent++
	}
	if sent > 0 {
		slog.Info("weather interrupt", "weather", w, "agents", sent)
		s.emit(Event{Category: "weather",
			Description: fmt.Sprintf("%d villagers head indoors from the weather", sent),
			Meta:        map[string]any{"weather": w, "agents": sent}})
	}
}

// checkReputation runs passive relationship decay and bond drift.
func (s *Simulation) checkReputation() {
	now := s.minute()
	changed := 0
	for _, res := range s.player.Decay(now) {
		if res.Applied {
			changed++
		}
	}
	s.bonds.Drift(now)
	if changed > 0 {
		slog.Debug("relationship decay", "changed", changed)
	}
}
