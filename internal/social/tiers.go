// Package social implements the relationship graph: the player↔agent
// relationship with tiers, history, grudges, mood modifier and decay, gift
// handling, and agent↔agent bonds driven by personality compatibility.
package social

// Tier is an ordered relationship band.
type Tier uint8

const (
	Hostile Tier = iota
	Unfriendly
	Neutral
	Acquaintance
	Friend
	CloseFriend
	BestFriend

	NumTiers = 7
)

// tierFloors holds the lowest value of each tier.
var tierFloors = [NumTiers]int{
	Hostile:      0,
	Unfriendly:   10,
	Neutral:      25,
	Acquaintance: 40,
	Friend:       60,
	CloseFriend:  75,
	BestFriend:   90,
}

var tierNames = [NumTiers]string{
	"hostile", "unfriendly", "neutral", "acquaintance", "friend", "close_friend", "best_friend",
}

func (t Tier) String() string {
	if int(t) < NumTiers {
		return tierNames[t]
	}
	return "unknown"
}

// MarshalText encodes the tier by name.
func (t Tier) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// TierFor maps a relationship value onto its tier.
func TierFor(value int) Tier {
	for t := NumTiers - 1; t > 0; t-- {
		if value >= tierFloors[t] {
			return Tier(t)
		}
	}
	return Hostile
}

// Benefits is what a tier unlocks for the player.
type Benefits struct {
	CanRequestFavor    bool    `json:"can_request_favor"`
	FavorFrequency     float64 `json:"favor_frequency"` // favors offered per game day
	GiftEffectiveness  float64 `json:"gift_effectiveness"`
	TradeDiscount      float64 `json:"trade_discount"`
	HelpChance         float64 `json:"help_chance"`
	CanBorrowEquipment bool    `json:"can_borrow_equipment"`
	GivesGifts         bool    `json:"gives_gifts"`
	SharedResources    bool    `json:"shared_resources"`
}

var tierBenefits = [NumTiers]Benefits{
	Hostile:      {GiftEffectiveness: 0.5},
	Unfriendly:   {GiftEffectiveness: 0.75, HelpChance: 0.05},
	Neutral:      {GiftEffectiveness: 1.0, HelpChance: 0.1},
	Acquaintance: {CanRequestFavor: true, FavorFrequency: 0.1, GiftEffectiveness: 1.0, TradeDiscount: 0.02, HelpChance: 0.25},
	Friend: {CanRequestFavor: true, FavorFrequency: 0.25, GiftEffectiveness: 1.1, TradeDiscount: 0.05, HelpChance: 0.5,
		CanBorrowEquipment: true},
	CloseFriend: {CanRequestFavor: true, FavorFrequency: 0.4, GiftEffectiveness: 1.2, TradeDiscount: 0.1, HelpChance: 0.7,
		CanBorrowEquipment: true, GivesGifts: true},
	BestFriend: {CanRequestFavor: true, FavorFrequency: 0.6, GiftEffectiveness: 1.3, TradeDiscount: 0.15, HelpChance: 0.9,
		CanBorrowEquipment: true, GivesGifts: true, SharedResources: true},
}

// BenefitsOf returns the benefits record of a tier.
func BenefitsOf(t Tier) Benefits {
	if int(t) < NumTiers {
		return tierBenefits[t]
	}
	return Benefits{}
}
