package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/talgya/npc-favor/internal/agents"
	"github.com/talgya/npc-favor/internal/fieldwork"
	"github.com/talgya/npc-favor/internal/social"
)

// StateRecordVersion is written to meta.version.
const StateRecordVersion = 1

// ErrUnsupportedVersion is returned for records newer than this build.
var ErrUnsupportedVersion = errors.New("unsupported state record version")

// StateRecord is the persisted simulation: a flat tree of dotted keys to
// JSON values. Unknown keys are ignored and missing or malformed ones fall
// back to defaults, so old records keep loading.
type StateRecord map[string]string

const (
	keyVersion = "meta.version"
	keyRunID   = "meta.run_id"
	keyMinute  = "meta.minute"
	keyTicks   = "meta.ticks"
	keyNextID  = "meta.next_id"
	keySeq     = "meta.event_seq"
)

func (r StateRecord) put(key string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		slog.Warn("state record value skipped", "key", key, "error", err)
		return
	}
	r[key] = string(b)
}

// value decodes key, returning def when it is missing or malformed.
func value[T any](r StateRecord, key string, def T) T {
	raw, ok := r[key]
	if !ok {
		return def
	}
	var v T
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		slog.Warn("state record value ignored", "key", key, "error", err)
		return def
	}
	return v
}

// Keys lists the record's keys in order.
func (r StateRecord) Keys() []string {
	out := make([]string, 0, len(r))
	for k := range r {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Minute returns the game minute the record was taken at.
func (r StateRecord) Minute() (int64, bool) {
	if _, ok := r[keyMinute]; !ok {
		return 0, false
	}
	return value[int64](r, keyMinute, 0), true
}

// RunID returns the run the record belongs to.
func (r StateRecord) RunID() string { return value(r, keyRunID, "") }

func agentKey(id agents.AgentID, field string) string {
	return fmt.Sprintf("agent.%d.%s", id, field)
}

// SerializeState captures agents, player relationships, field assignments
// and bonds. Transient state (paths, timers, current activity) is not
// saved; restored agents start idle.
func (s *Simulation) SerializeState() StateRecord {
	r := make(StateRecord)
	r.put(keyVersion, StateRecordVersion)
	r.put(keyRunID, s.runID)
	r.put(keyMinute, s.minute())
	r.put(keyTicks, s.Ticks)
	r.put(keyNextID, s.spawner.NextID())
	r.put(keySeq, s.seq)

	for _, a := range s.Agents {
		r.put(agentKey(a.ID, "name"), a.Name)
		r.put(agentKey(a.ID, "personality"), a.Personality.String())
		r.put(agentKey(a.ID, "position"), a.Position)
		r.put(agentKey(a.ID, "yaw"), a.Yaw)
		r.put(agentKey(a.ID, "home"), a.Home)
		r.put(agentKey(a.ID, "home_obstacle"), a.HomeObstacle)
		if a.FieldID != nil {
			r.put(agentKey(a.ID, "field"), *a.FieldID)
		}
		r.put(agentKey(a.ID, "needs"), a.Needs)
		r.put(agentKey(a.ID, "base_speed"), a.BaseSpeed)
		r.put(agentKey(a.ID, "work_ethic"), a.WorkEthic)
		r.put(agentKey(a.ID, "sociability"), a.Sociability)
		r.put(agentKey(a.ID, "owns_vehicle"), a.OwnsVehicle)
		if len(a.Encounters) > 0 {
			r.put(agentKey(a.ID, "encounters"), a.Encounters)
		}
	}
	for _, id := range s.player.IDs() {
		if rel, ok := s.player.Lookup(id); ok {
			r.put(fmt.Sprintf("player.%d", id), rel)
		}
	}
	for id, c := range s.workers.Capacities() {
		r.put(fmt.Sprintf("field.%d.capacity", id), c)
	}
	for _, as := range s.workers.Assignments() {
		r.put(fmt.Sprintf("field.%d.slot.%d", as.FieldID, as.Slot), as.AgentID)
	}
	for _, b := range s.bonds.Records() {
		r.put(fmt.Sprintf("bond.%d.%d", b.Pair.Lo, b.Pair.Hi), b.Bond)
	}
	return r
}

// RestoreState replaces the simulation's agents and relationship tables
// with those in the record. Agents holding a field slot resume work.
func (s *Simulation) RestoreState(r StateRecord) error {
	if v := value(r, keyVersion, StateRecordVersion); v > StateRecordVersion || v < 1 {
		return fmt.Errorf("restore: version %d: %w", v, ErrUnsupportedVersion)
	}

	s.Agents = nil
	s.AgentIndex = make(map[agents.AgentID]*agents.Agent)
	s.partners = make(map[agents.AgentID]agents.AgentID)
	s.reroutes = make(map[agents.AgentID]int)
	s.shared = make(map[social.PairKey]int64)
	for _, id := range s.player.IDs() {
		s.player.Remove(id)
	}
	s.now = s.svc.Now()

	if id := r.RunID(); id != "" {
		if _, err := uuid.Parse(id); err == nil {
			s.runID = id
		}
	}
	s.Ticks = value[uint64](r, keyTicks, 0)
	if seq := value[uint64](r, keySeq, 0); seq > s.seq {
		s.seq = seq
	}

	var maxID agents.AgentID
	for _, id := range recordIDs(r, "agent.") {
		aid := agents.AgentID(id)
		s.addAgent(s.restoreAgent(r, aid))
		if aid > maxID {
			maxID = aid
		}
	}
	next := value(r, keyNextID, agents.AgentID(1))
	if next <= maxID {
		next = maxID + 1
	}
	s.spawner.SetNextID(next)

	for _, id := range recordIDs(r, "player.") {
		if _, ok := s.AgentIndex[agents.AgentID(id)]; !ok {
			continue
		}
		rel := value[*social.Relationship](r, fmt.Sprintf("player.%d", id), nil)
		if rel == nil {
			continue
		}
		s.player.Put(id, rel)
	}
	for _, a := range s.Agents {
		s.player.Get(uint64(a.ID), s.minute())
	}

	s.bonds.Restore(s.restoreBonds(r))
	caps, assigned := s.restoreFields(r)
	s.workers.Restore(caps, assigned)
	for _, as := range s.workers.Assignments() {
		a := s.AgentIndex[agents.AgentID(as.AgentID)]
		if f, ok := s.fields[as.FieldID]; ok {
			s.beginWork(a, f)
		}
	}

	slog.Info("state restored", "agents", len(s.Agents), "bonds", s.bonds.Len(),
		"workers", len(assigned), "run", s.runID)
	return nil
}

func (s *Simulation) restoreAgent(r StateRecord, id agents.AgentID) *agents.Agent {
	name := value(r, agentKey(id, "name"), fmt.Sprintf("Villager %d", id))
	p, err := agents.ParsePersonality(value(r, agentKey(id, "personality"), ""))
	if err != nil {
		slog.Warn("agent personality defaulted", "id", id, "error", err)
	}
	prof := agents.ProfileOf(p)
	defSpeed := (prof.SpeedRange[0] + prof.SpeedRange[1]) / 2

	pos := value(r, agentKey(id, "position"), s.plaza)
	a := &agents.Agent{
		ID:          id,
		Name:        name,
		Personality: p,
		Position:    pos,
		Yaw:         value(r, agentKey(id, "yaw"), 0.0),
		Home:        value(r, agentKey(id, "home"), pos),
		State:       agents.StateIdle,
		Needs:       value(r, agentKey(id, "needs"), agents.NeedsState{}),
		BaseSpeed:   value(r, agentKey(id, "base_speed"), defSpeed),
		WorkEthic:   value(r, agentKey(id, "work_ethic"), 1.0),
		Sociability: value(r, agentKey(id, "sociability"), 1.0),
		OwnsVehicle: value(r, agentKey(id, "owns_vehicle"), false),
		Encounters:  value[[]agents.Encounter](r, agentKey(id, "encounters"), nil),
	}
	if a.BaseSpeed <= 0 {
		a.BaseSpeed = defSpeed
	}
	a.Speed = a.BaseSpeed
	a.Needs.Clamp()
	a.Mood = agents.DeriveMood(a.Needs)
	if len(a.Encounters) > agents.MaxEncounters {
		a.Encounters = a.Encounters[:agents.MaxEncounters]
	}
	for i := range a.Encounters {
		a.Encounters[i].Sentiment = math.Max(-1, math.Min(1, a.Encounters[i].Sentiment))
	}
	a.Position.Y = s.svc.Height(a.Position.X, a.Position.Z) + s.cfg.Movement.TerrainOffset
	a.StuckAnchor = a.Position
	a.IdleTimer = agents.NextIdleTimer(p, s.svc)

	if _, ok := r[agentKey(id, "home_obstacle")]; ok {
		a.HomeObstacle = value(r, agentKey(id, "home_obstacle"), "")
	} else {
		a.HomeObstacle = s.homeFootprint(a.Home)
	}
	if fid := value[*uint64](r, agentKey(id, "field"), nil); fid != nil {
		if _, ok := s.fields[*fid]; ok {
			a.FieldID = fid
		} else {
			slog.Warn("agent field unknown, dropped", "id", id, "field", *fid)
		}
	}
	return a
}

func (s *Simulation) restoreBonds(r StateRecord) []social.BondRecord {
	var out []social.BondRecord
	for _, k := range r.Keys() {
		var lo, hi uint64
		if n, _ := fmt.Sscanf(k, "bond.%d.%d", &lo, &hi); n != 2 {
			continue
		}
		x, y := agents.AgentID(lo), agents.AgentID(hi)
		_, okX := s.AgentIndex[x]
		_, okY := s.AgentIndex[y]
		if !okX || !okY || x == y {
			continue
		}
		bd := value(r, k, social.Bond{Value: s.cfg.Bonds.Neutral})
		out = append(out, social.BondRecord{Pair: social.Pair(x, y), Bond: bd})
	}
	return out
}

func (s *Simulation) restoreFields(r StateRecord) (map[uint64]int, []fieldwork.Assignment) {
	caps := make(map[uint64]int)
	var assigned []fieldwork.Assignment
	for _, k := range r.Keys() {
		if !strings.HasPrefix(k, "field.") {
			continue
		}
		parts := strings.Split(k, ".")
		fid, err := strconv.ParseUint(parts[1], 10, 64)
		if err != nil {
			continue
		}
		switch {
		case len(parts) == 3 && parts[2] == "capacity":
			caps[fid] = value(r, k, 1)
		case len(parts) == 4 && parts[2] == "slot":
			slot, err := strconv.Atoi(parts[3])
			if err != nil {
				continue
			}
			agent := value[uint64](r, k, 0)
			a, ok := s.AgentIndex[agents.AgentID(agent)]
			if !ok || a.FieldID == nil || *a.FieldID != fid {
				continue
			}
			assigned = append(assigned, fieldwork.Assignment{FieldID: fid, Slot: slot, AgentID: agent})
		}
	}
	return caps, assigned
}

// recordIDs returns the distinct numeric ids following prefix, ascending.
func recordIDs(r StateRecord, prefix string) []uint64 {
	seen := make(map[uint64]bool)
	for k := range r {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		rest := strings.TrimPrefix(k, prefix)
		if i := strings.IndexByte(rest, '.'); i >= 0 {
			rest = rest[:i]
		}
		if id, err := strconv.ParseUint(rest, 10, 64); err == nil && id > 0 {
			seen[id] = true
		}
	}
	out := make([]uint64, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
