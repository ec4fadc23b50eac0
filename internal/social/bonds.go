package social

import (
	"sort"

	"github.com/talgya/npc-favor/internal/agents"
	"github.com/talgya/npc-favor/internal/tuning"
)

// PairKey identifies an unordered pair of agents.
type PairKey struct {
	Lo, Hi agents.AgentID
}

// Pair builds the key for two agents in either order.
func Pair(a, b agents.AgentID) PairKey {
	if a > b {
		a, b = b, a
	}
	return PairKey{Lo: a, Hi: b}
}

// Bond is the relationship between two agents. 50 is neutral.
type Bond struct {
	Value           float64 `json:"value"`
	LastInteraction int64   `json:"last_interaction"`
	Interactions    int     `json:"interactions"`
	LastDrift       int64   `json:"last_drift,omitempty"` // minute idle drift was last applied to
}

// InteractionKind is a shared activity that moves a bond.
type InteractionKind uint8

const (
	InteractSocialize InteractionKind = iota
	InteractWork
	InteractGather
)

// compatibility is added to the base drift on every shared interaction.
// Must stay symmetric.
var compatibility = [agents.NumPersonalities][agents.NumPersonalities]float64{
	//               hardworking lazy  social grumpy generous loner
	agents.Hardworking: {0.3, -0.2, 0.1, 0.0, 0.2, 0.1},
	agents.Lazy:        {-0.2, 0.2, 0.2, -0.1, 0.1, 0.0},
	agents.Social:      {0.1, 0.2, 0.4, -0.3, 0.3, -0.2},
	agents.Grumpy:      {0.0, -0.1, -0.3, 0.1, -0.1, 0.2},
	agents.Generous:    {0.2, 0.1, 0.3, -0.1, 0.3, 0.0},
	agents.Loner:       {0.1, 0.0, -0.2, 0.2, 0.0, 0.1},
}

// Compatibility returns the affinity bias between two personalities.
func Compatibility(a, b agents.Personality) float64 {
	if int(a) >= agents.NumPersonalities || int(b) >= agents.NumPersonalities {
		return 0
	}
	return compatibility[a][b]
}

// Bonds is the agent↔agent relationship table.
type Bonds struct {
	cfg   tuning.Bonds
	bonds map[PairKey]*Bond
}

// NewBonds creates an empty table.
func NewBonds(cfg tuning.Bonds) *Bonds {
	return &Bonds{cfg: cfg, bonds: make(map[PairKey]*Bond)}
}

// Value returns the bond between a and b, neutral when they never met.
func (b *Bonds) Value(x, y agents.AgentID) float64 {
	if bd, ok := b.bonds[Pair(x, y)]; ok {
		return bd.Value
	}
	return b.cfg.Neutral
}

// Lookup returns the bond record for a pair.
func (b *Bonds) Lookup(x, y agents.AgentID) (*Bond, bool) {
	bd, ok := b.bonds[Pair(x, y)]
	return bd, ok
}

// Interact records a shared activity between two agents and returns the
// new bond value.
func (b *Bonds) Interact(x, y *agents.Agent, kind InteractionKind, now int64) float64 {
	if x.ID == y.ID {
		return b.cfg.Neutral
	}
	key := Pair(x.ID, y.ID)
	bd, ok := b.bonds[key]
	if !ok {
		bd = &Bond{Value: b.cfg.Neutral}
		b.bonds[key] = bd
	}
	var base float64
	switch kind {
	case InteractSocialize:
		base = b.cfg.SocializeDrift
	case InteractWork:
		base = b.cfg.WorkDrift
	case InteractGather:
		base = b.cfg.GatherDrift
	}
	bd.Value = clampBond(bd.Value + base + Compatibility(x.Personality, y.Personality))
	bd.LastInteraction = now
	bd.LastDrift = now
	bd.Interactions++
	return bd.Value
}

// Drift pulls pairs that have not interacted for IdleDays back toward
// neutral.
func (b *Bonds) Drift(now int64) {
	idle := int64(b.cfg.IdleDays) * minutesPerDay
	for _, bd := range b.bonds {
		start := bd.LastInteraction + idle
		if now <= start {
			continue
		}
		if bd.LastDrift < start {
			bd.LastDrift = start
		}
		step := float64(now-bd.LastDrift) / 60 * b.cfg.IdleDriftPerHour
		bd.LastDrift = now
		switch {
		case bd.Value > b.cfg.Neutral:
			bd.Value = maxf(b.cfg.Neutral, bd.Value-step)
		case bd.Value < b.cfg.Neutral:
			bd.Value = minf(b.cfg.Neutral, bd.Value+step)
		}
	}
}

// BestPartner returns the candidate with the strongest bond to a, if any
// reaches the partner minimum.
func (b *Bonds) BestPartner(a agents.AgentID, candidates []agents.AgentID) (agents.AgentID, bool) {
	best, bestVal := agents.AgentID(0), b.cfg.PartnerMinimum
	found := false
	for _, c := range candidates {
		if c == a {
			continue
		}
		if v := b.Value(a, c); v >= bestVal {
			best, bestVal, found = c, v, true
		}
	}
	return best, found
}

// BondRecord is a bond flattened for persistence.
type BondRecord struct {
	Pair PairKey
	Bond Bond
}

// Records lists every bond in a stable order.
func (b *Bonds) Records() []BondRecord {
	out := make([]BondRecord, 0, len(b.bonds))
	for k, v := range b.bonds {
		out = append(out, BondRecord{Pair: k, Bond: *v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Pair.Lo != out[j].Pair.Lo {
			return out[i].Pair.Lo < out[j].Pair.Lo
		}
		return out[i].Pair.Hi < out[j].Pair.Hi
	})
	return out
}

// Restore replaces the table with the given records.
func (b *Bonds) Restore(recs []BondRecord) {
	b.bonds = make(map[PairKey]*Bond, len(recs))
	for _, r := range recs {
		bd := r.Bond
		bd.Value = clampBond(bd.Value)
		if bd.LastDrift < bd.LastInteraction {
			bd.LastDrift = bd.LastInteraction
		}
		b.bonds[Pair(r.Pair.Lo, r.Pair.Hi)] = &bd
	}
}

// Len is the number of recorded pairs.
func (b *Bonds) Len() int { return len(b.bonds) }

func clampBond(v float64) float64 {
	return maxf(0, minf(100, v))
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
