package social

import (
	"math"
	"sort"

	"github.com/talgya/npc-favor/internal/tuning"
)

const minutesPerDay = 1440

// Reason tags with special handling.
const (
	ReasonDailyInteraction = "daily_interaction"
	ReasonGift             = "gift"
	ReasonDecay            = "decay"
)

// HistoryEntry is one applied change.
type HistoryEntry struct {
	At     int64  `json:"at"` // absolute game minute
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
	Value  int    `json:"value"` // value after the change
}

// Grudge accumulates from negative changes and fades on positive ones.
type Grudge struct {
	Count      int     `json:"count"`
	Severity   float64 `json:"severity"`
	LastSlight int64   `json:"last_slight"`
}

// Relationship is the player's standing with one agent.
type Relationship struct {
	Value           int            `json:"value"`
	History         []HistoryEntry `json:"history"` // oldest first
	MoodModifier    float64        `json:"mood_modifier"`
	MoodExpires     int64          `json:"mood_expires"`
	Grudge          Grudge         `json:"grudge"`
	LastInteraction int64          `json:"last_interaction"`
	CapDay          int64          `json:"cap_day"`
	DailyCounts     map[string]int `json:"daily_counts,omitempty"`

	// Decay cursor: minute decay was last charged to, and the fractional
	// points not yet taken off.
	DecayFrom  int64   `json:"decay_from,omitempty"`
	DecayCarry float64 `json:"decay_carry,omitempty"`
}

// Tier is the relationship's current band.
func (r *Relationship) Tier() Tier { return TierFor(r.Value) }

// Mood returns the modifier in force at now; 1 once expired.
func (r *Relationship) Mood(now int64) float64 {
	if r.MoodModifier == 0 || now >= r.MoodExpires {
		return 1
	}
	return r.MoodModifier
}

// UpdateResult describes the outcome of an Update.
type UpdateResult struct {
	Applied        bool
	Capped         bool
	Requested      int
	Delta          int // actual change in value
	OldValue       int
	NewValue       int
	OldTier        Tier
	NewTier        Tier
	TierChanged    bool
	GrudgeForgiven bool
}

// TierChangeFunc is told about every tier crossing.
type TierChangeFunc func(id uint64, old, new Tier, value int)

// Registry holds the player's relationship with every agent. Records are
// created on first touch.
type Registry struct {
	cfg      tuning.Relationship
	rels     map[uint64]*Relationship
	onChange TierChangeFunc
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg tuning.Relationship) *Registry {
	return &Registry{cfg: cfg, rels: make(map[uint64]*Relationship)}
}

// OnTierChange installs the tier-change notification.
func (g *Registry) OnTierChange(fn TierChangeFunc) { g.onChange = fn }

// Get returns the record for id, creating it at the initial value.
func (g *Registry) Get(id uint64, now int64) *Relationship {
	r, ok := g.rels[id]
	if !ok {
		r = &Relationship{Value: clampValue(g.cfg.Initial), LastInteraction: now, MoodModifier: 1}
		g.rels[id] = r
	}
	return r
}

// Lookup returns the record for id without creating one.
func (g *Registry) Lookup(id uint64) (*Relationship, bool) {
	r, ok := g.rels[id]
	return r, ok
}

// Value returns the current value, or the initial value for strangers.
func (g *Registry) Value(id uint64) int {
	if r, ok := g.rels[id]; ok {
		return r.Value
	}
	return clampValue(g.cfg.Initial)
}

// IDs lists every agent with a record, ascending.
func (g *Registry) IDs() []uint64 {
	ids := make([]uint64, 0, len(g.rels))
	for id := range g.rels {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Put replaces the record for id. Used when restoring state.
func (g *Registry) Put(id uint64, r *Relationship) {
	r.Value = clampValue(r.Value)
	if r.MoodModifier == 0 {
		r.MoodModifier = 1
	}
	g.rels[id] = r
}

// Remove drops the record for id.
func (g *Registry) Remove(id uint64) { delete(g.rels, id) }

// Update applies a signed change with a reason tag. Reason-specific daily
// caps reject the change outright; otherwise the delta is scaled by the
// mood modifier and, for gains, the grudge penalty, then clamped.
func (g *Registry) Update(id uint64, delta int, reason string, now int64) UpdateResult {
	r := g.Get(id, now)
	res := UpdateResult{Requested: delta, OldValue: r.Value, NewValue: r.Value, OldTier: r.Tier(), NewTier: r.Tier()}

	day := now / minutesPerDay
	if r.CapDay != day || r.DailyCounts == nil {
		r.CapDay = day
		r.DailyCounts = make(map[string]int)
	}
	if limit, ok := g.cfg.DailyCaps[reason]; ok && r.DailyCounts[reason] >= limit {
		res.Capped = true
		return res
	}

	scaled := float64(delta)
	mood := r.Mood(now)
	if delta > 0 {
		scaled *= mood * (1 - g.GrudgePenalty(r))
	} else if delta < 0 {
		scaled *= 2 - mood
	}
	step := int(math.Round(scaled))
	if step == 0 && delta != 0 {
		if delta > 0 {
			step = 1
		} else {
			step = -1
		}
	}

	r.Value = clampValue(r.Value + step)
	res.Applied = true
	res.Delta = r.Value - res.OldValue
	res.NewValue = r.Value
	res.NewTier = r.Tier()
	res.TierChanged = res.NewTier != res.OldTier

	if _, ok := g.cfg.DailyCaps[reason]; ok {
		r.DailyCounts[reason]++
	}
	r.LastInteraction = now
	g.appendHistory(r, HistoryEntry{At: now, Delta: res.Delta, Reason: reason, Value: r.Value})

	switch {
	case step < 0:
		r.Grudge.Count++
		r.Grudge.Severity = math.Min(g.cfg.GrudgeSeverityMax, r.Grudge.Severity+float64(-step)*g.cfg.GrudgeSeverityPerPoint)
		r.Grudge.LastSlight = now
	case step > 0 && r.Grudge.Severity > 0:
		r.Grudge.Severity -= float64(step) * g.cfg.GrudgeForgivePerPoint
		if r.Grudge.Severity <= 0 {
			r.Grudge = Grudge{}
			res.GrudgeForgiven = true
		}
	}

	g.refreshMood(r, now)

	if res.TierChanged && g.onChange != nil {
		g.onChange(id, res.OldTier, res.NewTier, r.Value)
	}
	return res
}

// GrudgePenalty is the fraction shaved off positive gains.
func (g *Registry) GrudgePenalty(r *Relationship) float64 {
	return math.Min(g.cfg.GrudgePenaltyMax, r.Grudge.Severity*g.cfg.GrudgePenaltyPerSeverity)
}

func (g *Registry) appendHistory(r *Relationship, e HistoryEntry) {
	r.History = append(r.History, e)
	if limit := g.cfg.HistoryLimit; limit > 0 && len(r.History) > limit {
		r.History = append(r.History[:0:0], r.History[len(r.History)-limit:]...)
	}
}

// refreshMood derives the modifier from the changes inside the mood window.
func (g *Registry) refreshMood(r *Relationship, now int64) {
	window := int64(g.cfg.MoodWindowMinutes)
	var sum int
	for i := len(r.History) - 1; i >= 0; i-- {
		e := r.History[i]
		if now-e.At > window {
			break
		}
		if e.Reason == ReasonDecay {
			continue
		}
		sum += e.Delta
	}
	shift := float64(sum) * g.cfg.MoodPerPoint
	shift = math.Max(-g.cfg.MoodBound, math.Min(g.cfg.MoodBound, shift))
	r.MoodModifier = 1 + shift
	r.MoodExpires = now + window
}

// Decay moves idle relationships toward the neutral floor. A relationship
// starts decaying once the grace period after its last interaction has
// passed, and never drops below the floor.
func (g *Registry) Decay(now int64) []UpdateResult {
	floor := g.cfg.NeutralFloor
	grace := int64(g.cfg.DecayGraceDays) * minutesPerDay
	var changed []UpdateResult
	for _, id := range g.IDs() {
		r := g.rels[id]
		if r.Value <= floor {
			continue
		}
		start := r.LastInteraction + grace
		if now <= start {
			continue
		}
		if r.DecayFrom < start {
			r.DecayFrom = start
			r.DecayCarry = 0
		}
		hours := float64(now-r.DecayFrom) / 60
		r.DecayFrom = now
		r.DecayCarry += hours * g.cfg.DecayPointsPerHour
		whole := int(r.DecayCarry)
		if whole <= 0 {
			continue
		}
		r.DecayCarry -= float64(whole)

		old := r.Value
		oldTier := r.Tier()
		r.Value = old - whole
		if r.Value < floor {
			r.Value = floor
		}
		g.appendHistory(r, HistoryEntry{At: now, Delta: r.Value - old, Reason: ReasonDecay, Value: r.Value})
		res := UpdateResult{Applied: true, Requested: -whole, Delta: r.Value - old, OldValue: old, NewValue: r.Value,
			OldTier: oldTier, NewTier: r.Tier()}
		res.TierChanged = res.OldTier != res.NewTier
		if res.TierChanged && g.onChange != nil {
			g.onChange(id, res.OldTier, res.NewTier, r.Value)
		}
		changed = append(changed, res)
	}
	return changed
}

func clampValue(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
