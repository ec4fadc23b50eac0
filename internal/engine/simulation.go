// Simulation ties together the agent systems and runs them each tick.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/google/uuid"

	"github.com/talgya/npc-favor/internal/agents"
	"github.com/talgya/npc-favor/internal/fieldwork"
	"github.com/talgya/npc-favor/internal/pathing"
	"github.com/talgya/npc-favor/internal/social"
	"github.com/talgya/npc-favor/internal/tuning"
	"github.com/talgya/npc-favor/internal/world"
)

// ErrUnknownAgent is returned for ids that are not in the simulation.
var ErrUnknownAgent = errors.New("unknown agent")

// maxEvents bounds the event ring.
const maxEvents = 1000

// homeSearchRadius is how far from a spawn point a footprint still counts
// as the agent's house.
const homeSearchRadius = 15

// Options configure a new Simulation.
type Options struct {
	Host   world.Host
	Tuning tuning.Tuning
	Seed   int64
	Fields []fieldwork.Field
	Plaza  world.Vec3 // where agents without a partner gather
}

// Simulation holds the complete agent state and wires systems together.
// It is single-threaded: every method must be called from the goroutine
// that drives Tick.
type Simulation struct {
	svc *world.Services
	cfg tuning.Tuning

	Agents     []*agents.Agent
	AgentIndex map[agents.AgentID]*agents.Agent

	spawner *agents.Spawner
	planner *pathing.Planner
	fields  map[uint64]fieldwork.Field
	workers *fieldwork.Coordinator
	player  *social.Registry
	bonds   *social.Bonds
	plaza   world.Vec3

	// Side tables keyed by agent id.
	partners map[agents.AgentID]agents.AgentID
	reroutes map[agents.AgentID]int
	dirty    map[agents.AgentID]struct{}
	shared   map[social.PairKey]int64 // last bond gain per pair, game minute

	events []Event
	seq    uint64

	now   world.GameTime
	Ticks uint64
	runID string

	weatherTimer    float64
	reputationTimer float64
	groupingTimer   float64
}

// Event is a notable occurrence in the simulation.
type Event struct {
	Seq         uint64         `json:"seq"`
	At          int64          `json:"at"` // absolute game minute
	Time        string         `json:"time"`
	Category    string         `json:"category"` // "state", "social", "field", "weather", ...
	AgentID     agents.AgentID `json:"agent_id,omitempty"`
	Description string         `json:"description"`
	Meta        map[string]any `json:"meta,omitempty"`
}

// NewSimulation creates an empty simulation over the host services.
func NewSimulation(opts Options) *Simulation {
	svc := world.NewServices(opts.Host)
	s := &Simulation{
		svc:        svc,
		cfg:        opts.Tuning,
		AgentIndex: make(map[agents.AgentID]*agents.Agent),
		spawner:    agents.NewSpawner(opts.Seed),
		planner:    pathing.NewPlanner(svc, opts.Tuning.Pathing, opts.Tuning.Movement, svc),
		fields:     make(map[uint64]fieldwork.Field, len(opts.Fields)),
		workers:    fieldwork.NewCoordinator(svc),
		player:     social.NewRegistry(opts.Tuning.Relationship),
		bonds:      social.NewBonds(opts.Tuning.Bonds),
		plaza:      opts.Plaza,
		partners:   make(map[agents.AgentID]agents.AgentID),
		reroutes:   make(map[agents.AgentID]int),
		dirty:      make(map[agents.AgentID]struct{}),
		shared:     make(map[social.PairKey]int64),
		runID:      uuid.New().String(),
	}
	for _, f := range opts.Fields {
		s.fields[f.ID] = f
	}
	s.player.OnTierChange(s.tierChanged)
	s.now = svc.Now()
	return s
}

// Services exposes the host fallback wrapper.
func (s *Simulation) Services() *world.Services { return s.svc }

// Tuning returns the active tuning.
func (s *Simulation) Tuning() tuning.Tuning { return s.cfg }

// Now returns the game time read at the start of the last tick.
func (s *Simulation) Now() world.GameTime { return s.now }

// RunID identifies this simulation run in saved records.
func (s *Simulation) RunID() string { return s.runID }

// Planner exposes the path planner.
func (s *Simulation) Planner() *pathing.Planner { return s.planner }

// Workers exposes the field-work coordinator.
func (s *Simulation) Workers() *fieldwork.Coordinator { return s.workers }

// Player exposes the player relationship registry.
func (s *Simulation) Player() *social.Registry { return s.player }

// Bonds exposes the agent↔agent relationship table.
func (s *Simulation) Bonds() *social.Bonds { return s.bonds }

// Partner returns the agent a is paired with, if any.
func (s *Simulation) Partner(a agents.AgentID) (agents.AgentID, bool) {
	p, ok := s.partners[a]
	return p, ok
}

func (s *Simulation) minute() int64 { return int64(s.now.Absolute()) }

// SpawnAgent creates an agent at pos, which also becomes its home. A nil
// personality is rolled.
func (s *Simulation) SpawnAgent(pos world.Vec3, p *agents.Personality) agents.AgentID {
	pos.Y = s.svc.Height(pos.X, pos.Z) + s.cfg.Movement.TerrainOffset
	a := s.spawner.Spawn(pos, pos, p)
	a.HomeObstacle = s.homeFootprint(pos)
	if f, ok := s.pickField(pos); ok {
		id := f
		a.FieldID = &id
	}
	s.addAgent(a)
	s.player.Get(uint64(a.ID), s.minute())

	slog.Info("agent spawned", "id", a.ID, "name", a.Name, "personality", a.Personality,
		"home", a.Home, "vehicle", a.OwnsVehicle)
	s.emit(Event{Category: "spawn", AgentID: a.ID,
		Description: fmt.Sprintf("%s (%s) moved in", a.Name, a.Personality)})
	return a.ID
}

func (s *Simulation) addAgent(a *agents.Agent) {
	s.Agents = append(s.Agents, a)
	s.AgentIndex[a.ID] = a
	s.markDirty(a.ID)
}

// RemoveAgent drops an agent and every side-table entry keyed by it.
func (s *Simulation) RemoveAgent(id agents.AgentID) error {
	a, ok := s.AgentIndex[id]
	if !ok {
		return fmt.Errorf("remove %d: %w", id, ErrUnknownAgent)
	}
	s.workers.ReleaseAgent(uint64(id))
	delete(s.partners, id)
	delete(s.reroutes, id)
	delete(s.AgentIndex, id)
	for i, x := range s.Agents {
		if x == a {
			s.Agents = append(s.Agents[:i], s.Agents[i+1:]...)
			break
		}
	}
	s.markDirty(id)
	return nil
}

func (s *Simulation) homeFootprint(pos world.Vec3) string {
	if fps := s.svc.ObstaclesNear(pos.X, pos.Z, homeSearchRadius); len(fps) > 0 {
		return fps[0].ID
	}
	return ""
}

// pickField gives a new agent the field with the fewest farmers, nearest
// first on ties.
func (s *Simulation) pickField(pos world.Vec3) (uint64, bool) {
	if len(s.fields) == 0 {
		return 0, false
	}
	count := make(map[uint64]int, len(s.fields))
	for _, a := range s.Agents {
		if a.FieldID != nil {
			count[*a.FieldID]++
		}
	}
	ids := make([]uint64, 0, len(s.fields))
	for id := range s.fields {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		ci, cj := count[ids[i]], count[ids[j]]
		if ci != cj {
			return ci < cj
		}
		di := world.DistXZ(pos, s.fields[ids[i]].Center)
		dj := world.DistXZ(pos, s.fields[ids[j]].Center)
		if di != dj {
			return di < dj
		}
		return ids[i] < ids[j]
	})
	return ids[0], true
}

// AgentSnapshot is the read-only view of one agent for UI and telemetry.
type AgentSnapshot struct {
	ID           agents.AgentID     `json:"id"`
	Name         string             `json:"name"`
	Personality  agents.Personality `json:"-"`
	Kind         string             `json:"personality"`
	Position     world.Vec3         `json:"position"`
	Home         world.Vec3         `json:"home"`
	State        string             `json:"state"`
	Action       string             `json:"action"`
	Mood         agents.Mood        `json:"mood"`
	Needs        agents.NeedsState  `json:"needs"`
	Speed        float64            `json:"speed"`
	Asleep       bool               `json:"asleep"`
	Vehicle      bool               `json:"vehicle"`
	FieldID      *uint64            `json:"field_id,omitempty"`
	Partner      *agents.AgentID    `json:"partner,omitempty"`
	Waypoints    int                `json:"waypoints"`
	Schedule     string             `json:"schedule"`
	Relationship int                `json:"relationship"`
	Tier         social.Tier        `json:"tier"`
	Benefits     social.Benefits    `json:"benefits"`
	Grudge       social.Grudge      `json:"grudge"`
	Encounters   []agents.Encounter `json:"encounters,omitempty"`
	Bonds        map[string]float64 `json:"bonds,omitempty"`
}

// Snapshot returns the view of one agent.
func (s *Simulation) Snapshot(id agents.AgentID) (AgentSnapshot, error) {
	a, ok := s.AgentIndex[id]
	if !ok {
		return AgentSnapshot{}, fmt.Errorf("snapshot %d: %w", id, ErrUnknownAgent)
	}
	standing := s.player.Value(uint64(id))
	tier := social.TierFor(standing)
	var grudge social.Grudge
	if rel, ok := s.player.Lookup(uint64(id)); ok {
		grudge = rel.Grudge
	}
	snap := AgentSnapshot{
		ID:           a.ID,
		Name:         a.Name,
		Personality:  a.Personality,
		Kind:         a.Personality.String(),
		Position:     a.Position,
		Home:         a.Home,
		State:        a.State.String(),
		Action:       a.Action,
		Mood:         a.Mood,
		Needs:        a.Needs,
		Speed:        a.Speed,
		Asleep:       a.Asleep,
		Vehicle:      a.Vehicle,
		FieldID:      a.FieldID,
		Waypoints:    len(a.Path),
		Relationship: standing,
		Tier:         tier,
		Benefits:     social.BenefitsOf(tier),
		Grudge:       grudge,
		Encounters:   agents.RecentEncounters(a, 3),
	}
	if p, ok := s.partners[id]; ok {
		snap.Partner = &p
	}
	if act, ok := s.schedule(a); ok {
		snap.Schedule = act.Label
	} else {
		snap.Schedule = "idle_gap"
	}
	for _, o := range s.Agents {
		if o.ID == id {
			continue
		}
		if bd, ok := s.bonds.Lookup(id, o.ID); ok {
			if snap.Bonds == nil {
				snap.Bonds = make(map[string]float64)
			}
			snap.Bonds[o.Name] = math.Round(bd.Value*10) / 10
		}
	}
	return snap, nil
}

// Snapshots returns every agent's view in id order.
func (s *Simulation) Snapshots() []AgentSnapshot {
	out := make([]AgentSnapshot, 0, len(s.Agents))
	for _, a := range s.Agents {
		snap, err := s.Snapshot(a.ID)
		if err != nil {
			continue
		}
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// RecordEncounter logs an encounter on the agent. Encounters with a
// partner agent also count as a shared social interaction.
func (s *Simulation) RecordEncounter(id agents.AgentID, kind, detail string, partner *agents.AgentID, sentiment float64) error {
	a, ok := s.AgentIndex[id]
	if !ok {
		return fmt.Errorf("encounter %d: %w", id, ErrUnknownAgent)
	}
	agents.AddEncounter(a, agents.Encounter{
		Kind: kind, Detail: detail, Partner: partner, Sentiment: sentiment, At: s.minute(),
	})
	if partner != nil {
		if b, ok := s.AgentIndex[*partner]; ok && b.ID != a.ID {
			s.shareActivity(a, b, social.InteractSocialize)
		}
	}
	s.markDirty(id)
	return nil
}

// UpdatePlayerRelationship applies a change to the player's standing with
// an agent.
func (s *Simulation) UpdatePlayerRelationship(id agents.AgentID, delta int, reason string) (social.UpdateResult, error) {
	if _, ok := s.AgentIndex[id]; !ok {
		return social.UpdateResult{}, fmt.Errorf("relationship %d: %w", id, ErrUnknownAgent)
	}
	res := s.player.Update(uint64(id), delta, reason, s.minute())
	s.relationshipChanged(id, res)
	return res, nil
}

// GiveGift hands the agent a gift from the player.
func (s *Simulation) GiveGift(id agents.AgentID, c social.GiftCategory, value float64) (social.UpdateResult, error) {
	a, ok := s.AgentIndex[id]
	if !ok {
		return social.UpdateResult{}, fmt.Errorf("gift %d: %w", id, ErrUnknownAgent)
	}
	res := s.player.GiveGift(uint64(id), a.Personality, c, value, s.minute())
	if res.Applied {
		agents.AddEncounter(a, agents.Encounter{
			Kind: "gift", Detail: c.String(), Sentiment: float64(res.Delta) / 10, At: s.minute(),
		})
	}
	s.relationshipChanged(id, res)
	return res, nil
}

func (s *Simulation) relationshipChanged(id agents.AgentID, res social.UpdateResult) {
	if !res.Applied {
		return
	}
	s.markDirty(id)
	if res.GrudgeForgiven {
		s.emit(Event{Category: "social", AgentID: id,
			Description: fmt.Sprintf("%s forgave the player", s.nameOf(id))})
	}
}

func (s *Simulation) tierChanged(id uint64, old, new social.Tier, value int) {
	aid := agents.AgentID(id)
	name := s.nameOf(aid)
	s.emit(Event{Category: "social", AgentID: aid,
		Description: fmt.Sprintf("%s now regards the player as %s", name, new),
		Meta:        map[string]any{"old": old.String(), "new": new.String(), "value": value}})
	s.svc.Notify("Relationship changed", fmt.Sprintf("%s: %s → %s", name, old, new))
	s.markDirty(aid)
}

// Goto sends an agent to (x, z) by the planner.
func (s *Simulation) Goto(id agents.AgentID, x, z float64) error {
	a, ok := s.AgentIndex[id]
	if !ok {
		return fmt.Errorf("goto %d: %w", id, ErrUnknownAgent)
	}
	a.Asleep = false
	s.startTrip(a, world.Vec3{X: x, Y: s.svc.Height(x, z), Z: z}, agents.IntentGoto, "goto")
	return nil
}

func (s *Simulation) nameOf(id agents.AgentID) string {
	if a, ok := s.AgentIndex[id]; ok {
		return a.Name
	}
	return fmt.Sprintf("agent %d", id)
}

func (s *Simulation) markDirty(id agents.AgentID) { s.dirty[id] = struct{}{} }

// DrainDirty returns, in order, the agents changed since the last call.
func (s *Simulation) DrainDirty() []agents.AgentID {
	out := make([]agents.AgentID, 0, len(s.dirty))
	for id := range s.dirty {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	s.dirty = make(map[agents.AgentID]struct{})
	return out
}

// emit appends an event to the bounded ring.
func (s *Simulation) emit(e Event) {
	s.seq++
	e.Seq = s.seq
	e.At = s.minute()
	e.Time = SimTime(e.At, s.now.Season)
	s.events = append(s.events, e)
	if len(s.events) > maxEvents {
		s.events = s.events[len(s.events)-maxEvents:]
	}
}

// EventsSince returns events with a sequence number above seq.
func (s *Simulation) EventsSince(seq uint64) []Event {
	i := sort.Search(len(s.events), func(i int) bool { return s.events[i].Seq > seq })
	return append([]Event(nil), s.events[i:]...)
}

// LastSeq is the sequence number of the newest event.
func (s *Simulation) LastSeq() uint64 { return s.seq }

// Stats is an aggregate view for status endpoints.
type Stats struct {
	Agents  int            `json:"agents"`
	States  map[string]int `json:"states"`
	Moods   map[string]int `json:"moods"`
	Asleep  int            `json:"asleep"`
	Bonds   int            `json:"bonds"`
	Paths   int            `json:"cached_paths"`
	Events  int            `json:"events"`
	Weather float64        `json:"weather"`
}

// Stats counts agents by state and mood.
func (s *Simulation) Stats() Stats {
	st := Stats{
		Agents:  len(s.Agents),
		States:  make(map[string]int),
		Moods:   make(map[string]int),
		Bonds:   s.bonds.Len(),
		Paths:   s.planner.Cache().Len(),
		Events:  len(s.events),
		Weather: s.now.Weather,
	}
	for _, a := range s.Agents {
		st.States[a.State.String()]++
		st.Moods[a.Mood.String()]++
		if a.Asleep {
			st.Asleep++
		}
	}
	return st
}
