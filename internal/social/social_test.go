package social

import (
	"encoding/json"
	"math/rand"
	"testing"

	"github.com/talgya/npc-favor/internal/agents"
	"github.com/talgya/npc-favor/internal/tuning"
)

const day = int64(minutesPerDay)

func newRegistry() *Registry {
	return NewRegistry(tuning.Default().Relationship)
}

func TestTierBands(t *testing.T) {
	cases := map[int]Tier{
		0: Hostile, 9: Hostile, 10: Unfriendly, 24: Unfriendly, 25: Neutral, 39: Neutral,
		40: Acquaintance, 59: Acquaintance, 60: Friend, 74: Friend, 75: CloseFriend, 89: CloseFriend,
		90: BestFriend, 100: BestFriend,
	}
	for v, want := range cases {
		if got := TierFor(v); got != want {
			t.Errorf("TierFor(%d): got %s want %s", v, got, want)
		}
	}
	if !BenefitsOf(BestFriend).SharedResources || BenefitsOf(Friend).SharedResources {
		t.Fatalf("shared resources only at best friend")
	}
	if BenefitsOf(Neutral).CanRequestFavor {
		t.Fatalf("neutral cannot request favors")
	}
	for tier := Hostile; tier < BestFriend; tier++ {
		if BenefitsOf(tier).GiftEffectiveness > BenefitsOf(tier+1).GiftEffectiveness {
			t.Fatalf("gift effectiveness should not fall with tier (%s)", tier)
		}
	}
}

func TestGiftMoneyGenerous(t *testing.T) {
	g := newRegistry()
	if got := GiftGain(GiftMoney, 500, agents.Generous, Acquaintance); got != 6 {
		t.Fatalf("gift gain: got %d want 6", got)
	}
	res := g.GiveGift(1, agents.Generous, GiftMoney, 500, 10)
	if !res.Applied || res.Delta != 6 || res.NewValue != 56 {
		t.Fatalf("first gift: %+v", res)
	}
}

func TestGiftDailyCap(t *testing.T) {
	g := newRegistry()
	for i := 0; i < 3; i++ {
		if res := g.GiveGift(1, agents.Social, GiftFlowers, 0, int64(10+i)); !res.Applied {
			t.Fatalf("gift %d should apply: %+v", i, res)
		}
	}
	res := g.GiveGift(1, agents.Social, GiftFlowers, 0, 20)
	if res.Applied || !res.Capped {
		t.Fatalf("fourth gift same day should be capped: %+v", res)
	}
	if res := g.GiveGift(1, agents.Social, GiftFlowers, 0, day+5); !res.Applied {
		t.Fatalf("next day gift should apply: %+v", res)
	}
}

func TestMoneyBaseCapped(t *testing.T) {
	if got := GiftBase(GiftMoney, 99); got != 0 {
		t.Fatalf("under 100: got %v", got)
	}
	if got := GiftBase(GiftMoney, 1e6); got != 10 {
		t.Fatalf("cap: got %v want 10", got)
	}
}

func TestDailyInteractionCap(t *testing.T) {
	g := newRegistry()
	if res := g.Update(3, 2, ReasonDailyInteraction, 100); !res.Applied {
		t.Fatalf("first: %+v", res)
	}
	if res := g.Update(3, 2, ReasonDailyInteraction, 200); res.Applied {
		t.Fatalf("second same day should be rejected: %+v", res)
	}
	if res := g.Update(3, 2, "quest", 200); !res.Applied {
		t.Fatalf("uncapped reason should apply: %+v", res)
	}
}

func TestValuesStayInBounds(t *testing.T) {
	g := newRegistry()
	rng := rand.New(rand.NewSource(3))
	now := int64(0)
	for i := 0; i < 5000; i++ {
		now += int64(rng.Intn(600))
		id := uint64(rng.Intn(4))
		res := g.Update(id, rng.Intn(201)-100, "event", now)
		if res.NewValue < 0 || res.NewValue > 100 {
			t.Fatalf("step %d: value %d out of bounds", i, res.NewValue)
		}
		r, _ := g.Lookup(id)
		if m := r.Mood(now); m < 0.75 || m > 1.25 {
			t.Fatalf("step %d: mood modifier %v out of bounds", i, m)
		}
		if len(r.History) > 100 {
			t.Fatalf("history grew to %d", len(r.History))
		}
		if i%50 == 0 {
			g.Decay(now)
		}
	}
}

func TestGrudgeGrowsPenalizesAndForgives(t *testing.T) {
	g := newRegistry()
	now := int64(0)
	g.Update(1, -20, "insult", now)
	r, _ := g.Lookup(1)
	if r.Grudge.Count != 1 || r.Grudge.Severity <= 0 {
		t.Fatalf("grudge: %+v", r.Grudge)
	}
	// Well past the mood window so only the grudge penalty applies.
	now += 10 * 60
	pen := g.GrudgePenalty(r)
	if pen <= 0 || pen > 0.5 {
		t.Fatalf("penalty: %v", pen)
	}
	before := r.Value
	res := g.Update(1, 10, "help", now)
	if res.Delta >= 10 || res.Delta <= 0 {
		t.Fatalf("grudge should shave the gain: %+v", res)
	}
	for i := 0; i < 20 && r.Grudge.Severity > 0; i++ {
		now += 10 * 60
		res = g.Update(1, 10, "help", now)
	}
	if r.Grudge.Severity != 0 || r.Grudge.Count != 0 {
		t.Fatalf("grudge should be forgiven: %+v", r.Grudge)
	}
	if r.Value <= before {
		t.Fatalf("value should have recovered")
	}
}

func TestGrudgePenaltyCapped(t *testing.T) {
	g := newRegistry()
	for i := 0; i < 20; i++ {
		g.Update(1, -50, "attack", int64(i*1000))
	}
	r, _ := g.Lookup(1)
	if got := g.GrudgePenalty(r); got != 0.5 {
		t.Fatalf("penalty: got %v want 0.5", got)
	}
}

func TestMoodModifierExpires(t *testing.T) {
	g := newRegistry()
	g.Update(1, 20, "festival", 0)
	r, _ := g.Lookup(1)
	if m := r.Mood(10); m <= 1 {
		t.Fatalf("recent gain should lift mood: %v", m)
	}
	if m := r.Mood(121); m != 1 {
		t.Fatalf("mood should expire after the window: %v", m)
	}
}

func TestTierChangeNotification(t *testing.T) {
	g := newRegistry()
	var got []Tier
	g.OnTierChange(func(id uint64, old, new Tier, value int) {
		got = append(got, old, new)
	})
	res := g.Update(7, 15, "rescue", 0)
	if !res.TierChanged || res.NewTier != Friend {
		t.Fatalf("result: %+v", res)
	}
	if len(got) != 2 || got[0] != Acquaintance || got[1] != Friend {
		t.Fatalf("notification: %v", got)
	}
}

func TestDecayTowardFloor(t *testing.T) {
	g := newRegistry()
	r := g.Get(1, 0)
	r.Value = 95
	if changed := g.Decay(2 * day); len(changed) != 0 {
		t.Fatalf("no decay inside the grace period")
	}
	g.Decay(3 * day)
	if r.Value >= 95 || r.Value < 25 {
		t.Fatalf("one idle day: got %d", r.Value)
	}
	// 24h * 0.25 points/h.
	if r.Value != 89 {
		t.Fatalf("one idle day: got %d want 89", r.Value)
	}
	for d := int64(4); d < 400; d++ {
		g.Decay(d * day)
		if r.Value < 25 {
			t.Fatalf("day %d: decayed below floor (%d)", d, r.Value)
		}
	}
	if r.Value != 25 {
		t.Fatalf("long idle: got %d want 25", r.Value)
	}

	low := g.Get(2, 0)
	low.Value = 10
	g.Decay(400 * day)
	if low.Value != 10 {
		t.Fatalf("below the floor never decays: got %d", low.Value)
	}
}

func TestDecayNotRepeatedAfterReload(t *testing.T) {
	g := newRegistry()
	g.Get(1, 0).Value = 95
	g.Decay(5 * day)
	before := g.Value(1)
	if before != 77 {
		t.Fatalf("three idle days: got %d want 77", before)
	}

	rel, _ := g.Lookup(1)
	raw, err := json.Marshal(rel)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var back Relationship
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	h := newRegistry()
	h.Put(1, &back)
	h.Decay(5 * day)
	if got := h.Value(1); got != before {
		t.Fatalf("decay charged twice after reload: got %d want %d", got, before)
	}

	// The carry survives too: a half hour more on each side agrees.
	g.Decay(5*day + 30)
	h.Decay(5*day + 30)
	if g.Value(1) != h.Value(1) {
		t.Fatalf("reloaded %d, continuous %d", h.Value(1), g.Value(1))
	}
}

func TestCompatibilitySymmetric(t *testing.T) {
	for _, a := range agents.AllPersonalities() {
		for _, b := range agents.AllPersonalities() {
			if Compatibility(a, b) != Compatibility(b, a) {
				t.Fatalf("%s/%s not symmetric", a, b)
			}
		}
	}
}

func TestBondsInteractAndDrift(t *testing.T) {
	b := NewBonds(tuning.Default().Bonds)
	x := &agents.Agent{ID: 1, Personality: agents.Social}
	y := &agents.Agent{ID: 2, Personality: agents.Social}
	for i := 0; i < 10; i++ {
		b.Interact(x, y, InteractSocialize, 0)
	}
	// 10 * (0.5 + 0.4)
	if got := b.Value(2, 1); got < 58.99 || got > 59.01 {
		t.Fatalf("bond: got %v want 59", got)
	}
	b.Drift(2 * day)
	if got := b.Value(1, 2); got < 58.99 {
		t.Fatalf("no drift before idle days: %v", got)
	}
	b.Drift(3*day + 60*10)
	if got := b.Value(1, 2); got < 57.99 || got > 58.01 {
		t.Fatalf("ten hours of drift: got %v want 58", got)
	}
	b.Drift(100 * day)
	if got := b.Value(1, 2); got != 50 {
		t.Fatalf("long drift should stop at neutral: %v", got)
	}

	g := &agents.Agent{ID: 3, Personality: agents.Grumpy}
	for i := 0; i < 300; i++ {
		b.Interact(x, g, InteractSocialize, 0)
	}
	if v := b.Value(1, 3); v < 0 || v > 100 {
		t.Fatalf("bond out of bounds: %v", v)
	}
}

func TestBestPartner(t *testing.T) {
	b := NewBonds(tuning.Default().Bonds)
	x := &agents.Agent{ID: 1, Personality: agents.Social}
	y := &agents.Agent{ID: 2, Personality: agents.Generous}
	if _, ok := b.BestPartner(1, []agents.AgentID{2, 3}); ok {
		t.Fatalf("strangers are not partners")
	}
	for i := 0; i < 10; i++ {
		b.Interact(x, y, InteractSocialize, 0)
	}
	if p, ok := b.BestPartner(1, []agents.AgentID{1, 2, 3}); !ok || p != 2 {
		t.Fatalf("partner: got %d ok=%v", p, ok)
	}
}

func TestBondRecordsRoundTrip(t *testing.T) {
	b := NewBonds(tuning.Default().Bonds)
	b.Interact(&agents.Agent{ID: 5}, &agents.Agent{ID: 2}, InteractWork, 77)
	recs := b.Records()
	if len(recs) != 1 || recs[0].Pair != (PairKey{Lo: 2, Hi: 5}) {
		t.Fatalf("records: %+v", recs)
	}
	c := NewBonds(tuning.Default().Bonds)
	c.Restore(recs)
	if c.Value(5, 2) != b.Value(2, 5) {
		t.Fatalf("restore lost the value")
	}
}

func TestDriftNotRepeatedAfterReload(t *testing.T) {
	b := NewBonds(tuning.Default().Bonds)
	x := &agents.Agent{ID: 1, Personality: agents.Social}
	y := &agents.Agent{ID: 2, Personality: agents.Social}
	for i := 0; i < 10; i++ {
		b.Interact(x, y, InteractSocialize, 0)
	}
	at := 3*day + 60*10
	b.Drift(at)
	before := b.Value(1, 2)

	recs := b.Records()
	raw, err := json.Marshal(recs[0].Bond)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var bd Bond
	if err := json.Unmarshal(raw, &bd); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	c := NewBonds(tuning.Default().Bonds)
	c.Restore([]BondRecord{{Pair: recs[0].Pair, Bond: bd}})
	c.Drift(at)
	if got := c.Value(1, 2); got != before {
		t.Fatalf("drift applied twice after reload: got %v want %v", got, before)
	}
}
