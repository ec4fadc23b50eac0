package engine

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/talgya/npc-favor/internal/agents"
	"github.com/talgya/npc-favor/internal/entropy"
	"github.com/talgya/npc-favor/internal/fieldwork"
	"github.com/talgya/npc-favor/internal/social"
	"github.com/talgya/npc-favor/internal/tuning"
	"github.com/talgya/npc-favor/internal/world"
)

type fixedClock struct{ t world.GameTime }

func (c *fixedClock) Now() (world.GameTime, error) { return c.t, nil }

// Monday 10:00, clear skies.
func morning() *fixedClock {
	return &fixedClock{t: world.GameTime{Hour: 10, Day: 1, Weather: 1}}
}

func newSim(m *world.Map, clock world.Clock, fields ...fieldwork.Field) *Simulation {
	if m == nil {
		m = world.NewMap(500, nil)
	}
	return NewSimulation(Options{
		Host:   world.Host{Terrain: m, Obstacles: m, Roads: m, Clock: clock, Random: entropy.NewSource(11)},
		Tuning: tuning.Default(),
		Seed:   5,
		Fields: fields,
	})
}

func spawn(s *Simulation, x, z float64, p agents.Personality) *agents.Agent {
	id := s.SpawnAgent(world.Vec3{X: x, Z: z}, &p)
	return s.AgentIndex[id]
}

// steadyNeeds keeps the agent well inside the neutral mood band so no mood
// transition touches its speed during a short test.
func steadyNeeds(a *agents.Agent) {
	a.Needs = agents.NeedsState{Energy: 45, Social: 45, Hunger: 45, WorkSatisfaction: 45}
	a.Mood = agents.DeriveMood(a.Needs)
}

func TestEveryStateHasAHandler(t *testing.T) {
	for st, h := range handlers {
		if h == nil {
			t.Fatalf("state %s has no handler", agents.State(st))
		}
	}
}

func TestStuckAgentResetsToIdle(t *testing.T) {
	s := newSim(nil, morning())
	a := spawn(s, 0, 0, agents.Hardworking)
	steadyNeeds(a)
	a.OwnsVehicle = true
	s.startTrip(a, world.Vec3{X: 300}, agents.IntentGoto, "goto")
	if a.State != agents.StateDriving || !a.Vehicle {
		t.Fatalf("expected a driving trip, got %s vehicle=%v", a.State, a.Vehicle)
	}
	a.Speed = 0

	for i := 0; i < 4; i++ {
		s.Tick(1)
	}
	if a.State != agents.StateDriving {
		t.Fatalf("reset too early: %s after 4s", a.State)
	}
	s.Tick(1)
	if a.State != agents.StateIdle || a.Action != "stuck_recovery" {
		t.Fatalf("after 5s: state %s action %q", a.State, a.Action)
	}
	if a.Vehicle || len(a.Path) != 0 {
		t.Fatalf("vehicle %v path %d after recovery", a.Vehicle, len(a.Path))
	}
	if a.Speed == 0 {
		t.Fatalf("speed override not restored")
	}

	s.recoverStuck(a)
	if a.State != agents.StateIdle {
		t.Fatalf("second recovery changed state to %s", a.State)
	}
	n := 0
	for _, e := range s.EventsSince(0) {
		if e.Category == "recovery" {
			n++
		}
	}
	if n != 1 {
		t.Fatalf("recovery events: %d", n)
	}
}

func TestMoodSpeedFollowsStateChanges(t *testing.T) {
	s := newSim(nil, morning())
	a := spawn(s, 0, 0, agents.Social)
	steadyNeeds(a)
	a.RestoreSpeed()
	base := a.Speed
	near := func(got, want float64) bool { return math.Abs(got-want) < 1e-9 }

	a.Needs = agents.NeedsState{Energy: 10, Social: 10, Hunger: 10, WorkSatisfaction: 10}
	agents.UpdateMood(a)
	happy := a.Speed
	if near(happy, base) {
		t.Fatalf("happy mood left speed at %v", happy)
	}
	s.setState(a, agents.StateResting, "nap")
	if !near(a.Speed, happy) {
		t.Fatalf("resting: speed %v want %v", a.Speed, happy)
	}

	a.Needs = agents.NeedsState{Energy: 90, Social: 90, Hunger: 90, WorkSatisfaction: 90}
	agents.UpdateMood(a)
	s.setState(a, agents.StateIdle, "rested")
	if want := base * a.Mood.SpeedFactor(); !near(a.Speed, want) {
		t.Fatalf("tired after leaving rest: speed %v want %v", a.Speed, want)
	}

	steadyNeeds(a)
	s.setState(a, agents.StateResting, "nap")
	if !near(a.Speed, base) {
		t.Fatalf("neutral mood: speed %v want %v", a.Speed, base)
	}
}

func TestObstacleEjection(t *testing.T) {
	m := world.NewMap(500, nil)
	m.AddBuilding(world.Footprint{ID: "shed", Center: world.Vec3{X: 10}, Radius: 3})
	s := newSim(m, morning())
	a := spawn(s, -50, 0, agents.Loner)

	a.Position = world.Vec3{X: 11}
	s.validate(a, a.Position)
	if math.Abs(a.Position.X-14.5) > 1e-9 || a.Position.Z != 0 {
		t.Fatalf("ejected to %v, want x=14.5", a.Position)
	}

	a.Position = world.Vec3{X: 10}
	s.validate(a, a.Position)
	if d := world.DistXZ(a.Position, world.Vec3{X: 10}); math.Abs(d-4.5) > 1e-9 {
		t.Fatalf("dead-centre ejection left agent %.3f from centre", d)
	}

	a.HomeObstacle = "shed"
	a.Position = world.Vec3{X: 11}
	s.validate(a, a.Position)
	if a.Position.X != 11 {
		t.Fatalf("agent ejected from its own home: %v", a.Position)
	}
}

func TestOverlappingObstaclesEjection(t *testing.T) {
	m := world.NewMap(500, nil)
	m.AddBuilding(world.Footprint{ID: "barn", Center: world.Vec3{X: 0}, Radius: 5})
	m.AddBuilding(world.Footprint{ID: "silo", Center: world.Vec3{X: 9}, Radius: 4})
	s := newSim(m, morning())
	a := spawn(s, -50, 0, agents.Grumpy)
	margin := s.cfg.Movement.ObstacleMargin

	for _, x := range []float64{3, 7, 0, 9} {
		a.Position = world.Vec3{X: x}
		s.validate(a, a.Position)
		if fp, inside := s.svc.InsideObstacle(a.Position.X, a.Position.Z, "", margin); inside {
			t.Fatalf("from x=%v: ended at %v inside %s", x, a.Position, fp.ID)
		}
		if d := world.DistXZ(a.Position, world.Vec3{X: x}); d > 15 {
			t.Fatalf("from x=%v: pushed %.1fm away", x, d)
		}
	}
}

func TestTerrainSnap(t *testing.T) {
	m := world.NewMap(500, func(x, z float64) float64 { return 0.1 * x })
	s := newSim(m, morning())
	a := spawn(s, 0, 0, agents.Generous)
	a.Position = world.Vec3{X: 20, Y: 99}
	s.validate(a, a.Position)
	if want := 2 + s.cfg.Movement.TerrainOffset; math.Abs(a.Position.Y-want) > 1e-9 {
		t.Fatalf("y=%v want %v", a.Position.Y, want)
	}
}

func TestCliffStepIsRedirected(t *testing.T) {
	wall := func(x, z float64) float64 {
		if x >= 3 {
			return 10
		}
		return 0
	}
	s := newSim(world.NewMap(500, wall), morning())
	a := spawn(s, -20, 0, agents.Generous)

	// Heading east, a little north: north-east is the best open bearing.
	a.Position = world.Vec3{X: 1, Z: 0.2}
	s.validate(a, world.Vec3{})
	want := math.Sqrt2 / 2 * math.Hypot(1, 0.2)
	if math.Abs(a.Position.X-want) > 1e-6 || math.Abs(a.Position.Z-want) > 1e-6 {
		t.Fatalf("sidestep to %v, want (%.3f, %.3f)", a.Position, want, want)
	}
}

func TestCliffWithNoWayRoundDropsWaypoint(t *testing.T) {
	pit := func(x, z float64) float64 {
		if math.Hypot(x, z) < 1 {
			return 0
		}
		return 10
	}
	s := newSim(world.NewMap(500, pit), morning())
	a := spawn(s, 0, 0, agents.Generous)
	a.Path = []world.Vec3{{X: 50}, {X: 100}}

	a.Position = world.Vec3{X: 0.5}
	s.validate(a, world.Vec3{})
	if a.Position.X != 0 || a.Position.Z != 0 {
		t.Fatalf("not reverted: %v", a.Position)
	}
	if len(a.Path) != 1 || a.Path[0].X != 100 {
		t.Fatalf("waypoint not dropped: %v", a.Path)
	}
}

func TestSpawnAndSnapshot(t *testing.T) {
	f := fieldwork.Field{ID: 7, Center: world.Vec3{X: 40}, Area: 4000}
	s := newSim(nil, morning(), f)
	a := spawn(s, 0, 0, agents.Social)

	if a.FieldID == nil || *a.FieldID != 7 {
		t.Fatalf("field not assigned: %v", a.FieldID)
	}
	snap, err := s.Snapshot(a.ID)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if snap.Name != a.Name || snap.Kind != "social" || snap.State != "idle" {
		t.Fatalf("snapshot: %+v", snap)
	}
	if snap.Relationship != s.cfg.Relationship.Initial {
		t.Fatalf("relationship %d", snap.Relationship)
	}
	if snap.Schedule == "" {
		t.Fatalf("no schedule label")
	}

	s.Player().Remove(uint64(a.ID))
	if snap, err = s.Snapshot(a.ID); err != nil || snap.Relationship != s.cfg.Relationship.Initial {
		t.Fatalf("snapshot without a record: %d %v", snap.Relationship, err)
	}
	if _, ok := s.Player().Lookup(uint64(a.ID)); ok {
		t.Fatalf("snapshot created a relationship record")
	}

	if _, err := s.Snapshot(999); !errors.Is(err, ErrUnknownAgent) {
		t.Fatalf("snapshot unknown: %v", err)
	}
	if err := s.Goto(999, 1, 1); !errors.Is(err, ErrUnknownAgent) {
		t.Fatalf("goto unknown: %v", err)
	}
	if err := s.RecordEncounter(999, "talk", "", nil, 0); !errors.Is(err, ErrUnknownAgent) {
		t.Fatalf("encounter unknown: %v", err)
	}
	if err := s.RemoveAgent(a.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := s.RemoveAgent(a.ID); !errors.Is(err, ErrUnknownAgent) {
		t.Fatalf("double remove: %v", err)
	}
}

func TestRecordEncounterNewestFirst(t *testing.T) {
	s := newSim(nil, morning())
	a := spawn(s, 0, 0, agents.Social)
	for i := 0; i < 12; i++ {
		if err := s.RecordEncounter(a.ID, "talk", strings.Repeat("x", i), nil, 2); err != nil {
			t.Fatalf("encounter: %v", err)
		}
	}
	if len(a.Encounters) != agents.MaxEncounters {
		t.Fatalf("ring holds %d", len(a.Encounters))
	}
	if a.Encounters[0].Detail != strings.Repeat("x", 11) || a.Encounters[0].Sentiment != 1 {
		t.Fatalf("newest: %+v", a.Encounters[0])
	}
}

func TestSerializeRestoreRoundTrip(t *testing.T) {
	f := fieldwork.Field{ID: 1, Center: world.Vec3{X: 30}, Area: 10000}
	s := newSim(nil, morning(), f)
	a := spawn(s, 0, 0, agents.Hardworking)
	b := spawn(s, 5, 0, agents.Social)
	s.beginWork(a, f)
	s.beginWork(b, f)
	if _, err := s.UpdatePlayerRelationship(a.ID, 10, "quest"); err != nil {
		t.Fatalf("update: %v", err)
	}
	s.shareActivity(a, b, social.InteractWork)
	_ = s.RecordEncounter(b.ID, "talk", "weather", nil, 0.5)

	rec := s.SerializeState()

	r := newSim(nil, morning(), f)
	if err := r.RestoreState(rec); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if len(r.Agents) != 2 {
		t.Fatalf("restored %d agents", len(r.Agents))
	}
	ra, rb := r.AgentIndex[a.ID], r.AgentIndex[b.ID]
	if ra == nil || rb == nil {
		t.Fatalf("agents missing after restore")
	}
	if ra.Name != a.Name || ra.Personality != a.Personality || ra.Needs != a.Needs {
		t.Fatalf("agent a: %+v", ra)
	}
	if ra.WorkEthic != a.WorkEthic || rb.Sociability != b.Sociability || ra.OwnsVehicle != a.OwnsVehicle {
		t.Fatalf("modifiers not restored")
	}
	if len(rb.Encounters) != len(b.Encounters) {
		t.Fatalf("encounters: %d want %d", len(rb.Encounters), len(b.Encounters))
	}
	if got, want := r.Player().Value(uint64(a.ID)), s.Player().Value(uint64(a.ID)); got != want {
		t.Fatalf("player relationship %d want %d", got, want)
	}
	if got, want := r.Bonds().Value(a.ID, b.ID), s.Bonds().Value(a.ID, b.ID); got != want {
		t.Fatalf("bond %v want %v", got, want)
	}
	ws := r.Workers().Workers(1)
	if len(ws) != 2 || ws[0] != uint64(a.ID) || ws[1] != uint64(b.ID) {
		t.Fatalf("workers: %v", ws)
	}
	if ra.State != agents.StateWorking || rb.State != agents.StateWorking {
		t.Fatalf("workers not resumed: %s %s", ra.State, rb.State)
	}
	if r.RunID() != s.RunID() {
		t.Fatalf("run id %s want %s", r.RunID(), s.RunID())
	}
	if id := r.SpawnAgent(world.Vec3{}, nil); id != 3 {
		t.Fatalf("next id %d", id)
	}
}

func TestReloadDoesNotRepeatDecay(t *testing.T) {
	clock := morning()
	s := newSim(nil, clock)
	a := spawn(s, 0, 0, agents.Generous)
	b := spawn(s, 6, 0, agents.Generous)
	if _, err := s.UpdatePlayerRelationship(a.ID, 40, "quest"); err != nil {
		t.Fatalf("update: %v", err)
	}
	for i := 0; i < 20; i++ {
		s.Bonds().Interact(a, b, social.InteractSocialize, s.minute())
	}

	clock.t.Day += 6
	s.now = s.svc.Now()
	s.checkReputation()
	rel, bond := s.Player().Value(uint64(a.ID)), s.Bonds().Value(a.ID, b.ID)

	r := newSim(nil, clock)
	if err := r.RestoreState(s.SerializeState()); err != nil {
		t.Fatalf("restore: %v", err)
	}
	r.checkReputation()
	if got := r.Player().Value(uint64(a.ID)); got != rel {
		t.Fatalf("relationship after reload %d want %d", got, rel)
	}
	if got := r.Bonds().Value(a.ID, b.ID); got != bond {
		t.Fatalf("bond after reload %v want %v", got, bond)
	}
}

func TestRestoreRejectsNewerVersion(t *testing.T) {
	s := newSim(nil, morning())
	err := s.RestoreState(StateRecord{"meta.version": "2"})
	if !errors.Is(err, ErrUnsupportedVersion) {
		t.Fatalf("got %v", err)
	}
}

func TestRestoreDefaultsMissingAndBadKeys(t *testing.T) {
	s := newSim(nil, morning())
	rec := StateRecord{
		"agent.3.name":        `"Ada"`,
		"agent.3.personality": `"lazy"`,
		"agent.3.needs":       `not json`,
		"agent.3.position":    `{"x":4,"y":0,"z":2}`,
		"bond.3.9":            `{"value":80}`,
		"field.2.slot.1":      `3`,
		"unknown.key":         `true`,
	}
	if err := s.RestoreState(rec); err != nil {
		t.Fatalf("restore: %v", err)
	}
	a, ok := s.AgentIndex[3]
	if !ok {
		t.Fatalf("agent 3 missing")
	}
	if a.Name != "Ada" || a.Personality != agents.Lazy {
		t.Fatalf("agent: %s %s", a.Name, a.Personality)
	}
	if a.Needs != (agents.NeedsState{}) || a.WorkEthic != 1 || a.Sociability != 1 {
		t.Fatalf("defaults: needs %+v ethic %v sociability %v", a.Needs, a.WorkEthic, a.Sociability)
	}
	if a.Home.X != 4 || a.Home.Z != 2 {
		t.Fatalf("home defaults to position: %v", a.Home)
	}
	if s.Bonds().Len() != 0 {
		t.Fatalf("bond with unknown agent restored")
	}
	if len(s.Workers().Assignments()) != 0 {
		t.Fatalf("assignment for agent without that field restored")
	}
	if id := s.SpawnAgent(world.Vec3{}, nil); id != 4 {
		t.Fatalf("next id %d", id)
	}
}

func TestSevereWeatherReleasesFieldSlot(t *testing.T) {
	f := fieldwork.Field{ID: 1, Center: world.Vec3{}, Area: 10000}
	s := newSim(nil, morning(), f)
	lazy := spawn(s, 0, 0, agents.Lazy)
	keen := spawn(s, 2, 0, agents.Hardworking)
	s.goToWork(lazy, "head_to_work")
	s.goToWork(keen, "head_to_work")
	if lazy.State != agents.StateWorking || keen.State != agents.StateWorking {
		t.Fatalf("not working: %s %s", lazy.State, keen.State)
	}

	s.now.Weather = 0.2
	s.checkWeather()
	if lazy.State == agents.StateWorking || lazy.Action != "shelter" {
		t.Fatalf("lazy worker kept working: %s %q", lazy.State, lazy.Action)
	}
	if keen.State != agents.StateWorking {
		t.Fatalf("hardworking agent left in rain: %s", keen.State)
	}
	if ws := s.Workers().Workers(1); len(ws) != 1 || ws[0] != uint64(keen.ID) {
		t.Fatalf("workers after interrupt: %v", ws)
	}

	s.now.Weather = 0.04
	s.checkWeather()
	if keen.State == agents.StateWorking {
		t.Fatalf("hardworking agent ignored the storm")
	}
	if ws := s.Workers().Workers(1); len(ws) != 0 {
		t.Fatalf("slot still held: %v", ws)
	}
}

func TestSocializePairingAndCleanup(t *testing.T) {
	s := newSim(nil, morning())
	a := spawn(s, 0, 0, agents.Social)
	b := spawn(s, 10, 0, agents.Social)
	steadyNeeds(a)
	steadyNeeds(b)

	s.seekCompany(a, "evening_social")
	if b.State != agents.StateSocializing || a.State != agents.StateTraveling || a.Intent != agents.IntentSocialize {
		t.Fatalf("pairing: a=%s b=%s", a.State, b.State)
	}
	if p, ok := s.Partner(a.ID); !ok || p != b.ID {
		t.Fatalf("partner of a: %v %v", p, ok)
	}

	for i := 0; i < 100 && a.State != agents.StateSocializing; i++ {
		s.Tick(0.5)
	}
	if a.State != agents.StateSocializing {
		t.Fatalf("a never arrived: %s at %v", a.State, a.Position)
	}
	if bd, ok := s.Bonds().Lookup(a.ID, b.ID); !ok || bd.Interactions != 1 {
		t.Fatalf("bond after conversation: %+v %v", bd, ok)
	}

	s.setState(a, agents.StateIdle, "leave")
	if _, ok := s.Partner(a.ID); ok {
		t.Fatalf("a still paired after leaving")
	}
	s.handleSocializing(b, 0)
	if b.State != agents.StateIdle {
		t.Fatalf("b left talking to nobody: %s", b.State)
	}
	if _, ok := s.Partner(b.ID); ok {
		t.Fatalf("b still paired")
	}
}

func TestSeekCompanyWithoutPartnerGathers(t *testing.T) {
	s := newSim(nil, morning())
	a := spawn(s, 0, 0, agents.Social)
	s.seekCompany(a, "evening_social")
	if a.Intent != agents.IntentGather || !a.State.IsMovement() {
		t.Fatalf("lonely agent: %s intent %d", a.State, a.Intent)
	}
	if _, ok := s.Partner(a.ID); ok {
		t.Fatalf("paired with nobody")
	}
}

func TestWorkTripAssignsSlot(t *testing.T) {
	f := fieldwork.Field{ID: 1, Center: world.Vec3{X: 100}, Area: 10000}
	s := newSim(nil, morning(), f)
	a := spawn(s, 0, 0, agents.Hardworking)
	steadyNeeds(a)
	a.OwnsVehicle = false

	s.goToWork(a, "head_to_work")
	if a.State != agents.StateTraveling {
		t.Fatalf("expected to travel, got %s", a.State)
	}
	for i := 0; i < 400 && a.State != agents.StateWorking; i++ {
		s.Tick(1)
	}
	if a.State != agents.StateWorking {
		t.Fatalf("never started work: %s at %v", a.State, a.Position)
	}
	if ws := s.Workers().Workers(1); len(ws) != 1 || ws[0] != uint64(a.ID) {
		t.Fatalf("workers: %v", ws)
	}
	found := false
	for _, e := range s.EventsSince(0) {
		if e.Category == "field" && e.AgentID == a.ID {
			found = true
		}
	}
	if !found {
		t.Fatalf("no field event")
	}
}

func TestDrainDirty(t *testing.T) {
	s := newSim(nil, morning())
	a := spawn(s, 0, 0, agents.Loner)
	b := spawn(s, 1, 0, agents.Loner)
	if got := s.DrainDirty(); len(got) != 2 || got[0] != a.ID || got[1] != b.ID {
		t.Fatalf("dirty: %v", got)
	}
	if got := s.DrainDirty(); len(got) != 0 {
		t.Fatalf("not drained: %v", got)
	}
	s.setState(b, agents.StateResting, "nap")
	if got := s.DrainDirty(); len(got) != 1 || got[0] != b.ID {
		t.Fatalf("dirty after transition: %v", got)
	}
}

func TestClusterAgents(t *testing.T) {
	mk := func(id agents.AgentID, x float64) *agents.Agent {
		return &agents.Agent{ID: id, Position: world.Vec3{X: x}}
	}
	got := clusterAgents([]*agents.Agent{mk(3, 20), mk(1, 0), mk(2, 5), mk(4, 24)}, clusterLink)
	if len(got) != 2 || len(got[0]) != 2 || len(got[1]) != 2 {
		t.Fatalf("clusters: %v", got)
	}
	if got[0][0].ID != 1 || got[1][0].ID != 3 {
		t.Fatalf("cluster order: %d %d", got[0][0].ID, got[1][0].ID)
	}
}

func TestLongRunKeepsBounds(t *testing.T) {
	m := world.Generate(world.SmallTestConfig())
	var fields []fieldwork.Field
	for _, f := range m.Fields {
		fields = append(fields, fieldwork.Field{ID: f.ID, Center: f.Center, Area: f.Area})
	}
	clock := NewSimClock(tuning.Default().Clock, 3)
	s := newSim(m, clock, fields...)
	for i := 0; i < 8; i++ {
		s.SpawnAgent(world.Vec3{X: float64(i*6 - 20), Z: float64(i%3) * 5}, nil)
	}
	e := NewEngine(s, clock)
	for i := 0; i < 2000; i++ {
		e.Step(1)
		for _, a := range s.Agents {
			n := a.Needs
			for _, v := range []float64{n.Energy, n.Social, n.Hunger, n.WorkSatisfaction} {
				if v < 0 || v > 100 {
					t.Fatalf("tick %d: agent %d need out of range: %+v", i, a.ID, n)
				}
			}
			if int(a.State) >= agents.NumStates {
				t.Fatalf("tick %d: bad state %d", i, a.State)
			}
			if v := s.Player().Value(uint64(a.ID)); v < 0 || v > 100 {
				t.Fatalf("relationship %d", v)
			}
		}
	}
	for fid := range s.fields {
		if n := len(s.Workers().Workers(fid)); n > 2 {
			t.Fatalf("field %d has %d workers", fid, n)
		}
	}
}

func TestSimClock(t *testing.T) {
	c := NewSimClock(tuning.Default().Clock, 1)
	now, _ := c.Now()
	if now.Hour != 6 || now.Day != 0 || now.Season != world.Spring {
		t.Fatalf("start: %+v", now)
	}
	if c.Advance(60) {
		t.Fatalf("new day after an hour")
	}
	now, _ = c.Now()
	if now.Hour != 7 || now.Minute != 0 {
		t.Fatalf("after an hour: %+v", now)
	}
	if !c.Advance(17 * 60) {
		t.Fatalf("midnight not reported")
	}
	c.SetMinutes(28 * minutesPerDay)
	if now, _ = c.Now(); now.Season != world.Summer {
		t.Fatalf("season after 28 days: %s", now.Season)
	}
	c.SetWeather(2)
	if now, _ = c.Now(); now.Weather != 1 {
		t.Fatalf("weather override %v", now.Weather)
	}
	c.ClearWeather()
	if now, _ = c.Now(); now.Weather < 0 || now.Weather > 1 {
		t.Fatalf("procedural weather %v", now.Weather)
	}
}

func TestEngineStepReportsNewDay(t *testing.T) {
	clock := NewSimClock(tuning.Default().Clock, 1)
	clock.SetMinutes(minutesPerDay - 1)
	s := newSim(nil, clock)
	e := NewEngine(s, clock)
	day := -1
	e.OnDay = func(d int) { day = d }
	e.Step(1)
	if day != 1 {
		t.Fatalf("OnDay got %d", day)
	}
	if e.Ticks() != 1 {
		t.Fatalf("ticks %d", e.Ticks())
	}
}

func TestSimTime(t *testing.T) {
	if got := SimTime(minutesPerDay+65, world.Summer); got != "Day 1 01:05 (summer)" {
		t.Fatalf("got %q", got)
	}
}
