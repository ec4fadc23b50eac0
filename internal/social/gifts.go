package social

import (
	"fmt"
	"math"
	"strings"

	"github.com/talgya/npc-favor/internal/agents"
)

// GiftCategory classifies what the player handed over.
type GiftCategory uint8

const (
	GiftMoney GiftCategory = iota
	GiftFood
	GiftFlowers
	GiftTool
	GiftCrafted
	GiftOther
)

var giftNames = [...]string{"money", "food", "flowers", "tool", "crafted", "other"}

func (c GiftCategory) String() string {
	if int(c) < len(giftNames) {
		return giftNames[c]
	}
	return "unknown"
}

// ParseGiftCategory maps a name back to a category.
func ParseGiftCategory(s string) (GiftCategory, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range giftNames {
		if n == s {
			return GiftCategory(i), nil
		}
	}
	return 0, fmt.Errorf("unknown gift category %q", s)
}

// Fixed base value per non-money category.
var giftBase = [...]float64{
	GiftFood:    4,
	GiftFlowers: 3,
	GiftTool:    6,
	GiftCrafted: 5,
	GiftOther:   2,
}

const (
	moneyPerPoint = 100
	moneyMaxBase  = 10
)

// How much each personality appreciates gifts.
var giftAppreciation = [agents.NumPersonalities]float64{
	agents.Hardworking: 1.0,
	agents.Lazy:        1.0,
	agents.Social:      1.1,
	agents.Grumpy:      0.7,
	agents.Generous:    1.2,
	agents.Loner:       0.8,
}

// GiftBase is the raw value of a gift before personality and tier.
func GiftBase(c GiftCategory, value float64) float64 {
	if c == GiftMoney {
		if value <= 0 {
			return 0
		}
		return math.Min(moneyMaxBase, math.Floor(value/moneyPerPoint))
	}
	if int(c) < len(giftBase) {
		return giftBase[c]
	}
	return giftBase[GiftOther]
}

// GiftGain is the relationship points a gift is worth to an agent of the
// given personality at the given tier.
func GiftGain(c GiftCategory, value float64, p agents.Personality, t Tier) int {
	mult := 1.0
	if int(p) < agents.NumPersonalities {
		mult = giftAppreciation[p]
	}
	return int(math.Floor(GiftBase(c, value) * mult * BenefitsOf(t).GiftEffectiveness))
}

// GiveGift values a gift and routes it through Update under the gift
// reason, so the daily gift cap applies.
func (g *Registry) GiveGift(id uint64, p agents.Personality, c GiftCategory, value float64, now int64) UpdateResult {
	r := g.Get(id, now)
	gain := GiftGain(c, value, p, r.Tier())
	if gain <= 0 {
		return UpdateResult{OldValue: r.Value, NewValue: r.Value, OldTier: r.Tier(), NewTier: r.Tier()}
	}
	return g.Update(id, gain, ReasonGift, now)
}
