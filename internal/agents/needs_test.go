package agents

import (
	"math/rand"
	"testing"

	"github.com/talgya/npc-favor/internal/tuning"
)

func TestNeedsStayInBounds(t *testing.T) {
	rates := tuning.Default().Needs
	rng := rand.New(rand.NewSource(11))
	for trial := 0; trial < 200; trial++ {
		a := &Agent{Personality: Personality(rng.Intn(NumPersonalities))}
		a.Needs = NeedsState{
			Energy:           rng.Float64()*300 - 100,
			Social:           rng.Float64()*300 - 100,
			Hunger:           rng.Float64()*300 - 100,
			WorkSatisfaction: rng.Float64()*300 - 100,
		}
		for step := 0; step < 200; step++ {
			a.State = State(rng.Intn(NumStates))
			a.Asleep = rng.Intn(5) == 0
			UpdateNeeds(a, NeedsContext{
				Dt:       rng.Float64() * 500,
				Mealtime: rng.Intn(4) == 0,
				Rates:    rates,
			})
			n := a.Needs
			for _, v := range []float64{n.Energy, n.Social, n.Hunger, n.WorkSatisfaction} {
				if v < 0 || v > 100 {
					t.Fatalf("trial %d step %d: need out of bounds %+v", trial, step, n)
				}
			}
		}
	}
}

func TestNeedsDirection(t *testing.T) {
	rates := tuning.Default().Needs
	base := NeedsState{Energy: 50, Social: 50, Hunger: 50, WorkSatisfaction: 50}

	a := &Agent{Personality: Social, State: StateResting, Needs: base}
	UpdateNeeds(a, NeedsContext{Dt: 10, Rates: rates})
	if a.Needs.Energy >= 50 {
		t.Fatalf("resting should restore energy: %v", a.Needs.Energy)
	}
	if a.Needs.WorkSatisfaction <= 50 {
		t.Fatalf("not working should build the urge to work: %v", a.Needs.WorkSatisfaction)
	}

	a = &Agent{Personality: Social, State: StateWorking, Needs: base}
	UpdateNeeds(a, NeedsContext{Dt: 10, Rates: rates})
	if a.Needs.Energy <= 50 || a.Needs.WorkSatisfaction >= 50 {
		t.Fatalf("working: got %+v", a.Needs)
	}

	a = &Agent{Personality: Social, State: StateSocializing, Needs: base}
	UpdateNeeds(a, NeedsContext{Dt: 10, Mealtime: true, Rates: rates})
	if a.Needs.Social >= 50 || a.Needs.Hunger >= 50 {
		t.Fatalf("socializing at lunch: got %+v", a.Needs)
	}
}

func TestPersonalityScalesNeeds(t *testing.T) {
	rates := tuning.Default().Needs
	hw := &Agent{Personality: Hardworking}
	lazy := &Agent{Personality: Lazy}
	UpdateNeeds(hw, NeedsContext{Dt: 100, Rates: rates})
	UpdateNeeds(lazy, NeedsContext{Dt: 100, Rates: rates})
	if hw.Needs.WorkSatisfaction <= lazy.Needs.WorkSatisfaction {
		t.Fatalf("hardworking urge to work should grow faster: %v vs %v", hw.Needs.WorkSatisfaction, lazy.Needs.WorkSatisfaction)
	}
	if lazy.Needs.Energy <= hw.Needs.Energy {
		t.Fatalf("lazy should tire faster: %v vs %v", lazy.Needs.Energy, hw.Needs.Energy)
	}
}

func TestDeriveMood(t *testing.T) {
	cases := []struct {
		avg  float64
		want Mood
	}{
		{0, MoodHappy},
		{29.9, MoodHappy},
		{30, MoodNeutral},
		{59, MoodNeutral},
		{60, MoodStressed},
		{79.9, MoodStressed},
		{80, MoodTired},
		{100, MoodTired},
	}
	for _, tc := range cases {
		n := NeedsState{Energy: tc.avg, Social: tc.avg, Hunger: tc.avg, WorkSatisfaction: tc.avg}
		if got := DeriveMood(n); got != tc.want {
			t.Errorf("avg %v: got %s want %s", tc.avg, got, tc.want)
		}
	}
}

func TestMoodSpeedAppliedOnceAndRestored(t *testing.T) {
	a := &Agent{Speed: 1.5, Mood: MoodNeutral}
	a.Needs = NeedsState{Energy: 10, Social: 10, Hunger: 10, WorkSatisfaction: 10}
	if !UpdateMood(a) {
		t.Fatalf("expected a mood transition")
	}
	if a.Mood != MoodHappy {
		t.Fatalf("mood: got %s", a.Mood)
	}
	if got := a.Speed; got < 1.649 || got > 1.651 {
		t.Fatalf("happy speed: got %v want 1.65", got)
	}

	a.Needs = NeedsState{Energy: 90, Social: 90, Hunger: 90, WorkSatisfaction: 90}
	UpdateMood(a)
	if a.Mood != MoodTired {
		t.Fatalf("mood: got %s", a.Mood)
	}
	if got := a.Speed; got < 1.649 || got > 1.651 {
		t.Fatalf("second transition in the same state must not stack: %v", got)
	}

	a.RestoreSpeed()
	if a.Speed != 1.5 {
		t.Fatalf("restore: got %v want 1.5", a.Speed)
	}
}

func TestEmergencyPriority(t *testing.T) {
	n := NeedsState{Energy: 90, Social: 90, Hunger: 90}
	if got := n.Emergency(Social, 80); got != EmergencyEnergy {
		t.Fatalf("energy first: got %v", got)
	}
	n.Energy = 10
	if got := n.Emergency(Social, 80); got != EmergencySocial {
		t.Fatalf("social second: got %v", got)
	}
	if got := n.Emergency(Loner, 80); got != EmergencyHunger {
		t.Fatalf("loners skip social: got %v", got)
	}
	if got := (NeedsState{Hunger: 80}).Emergency(Lazy, 80); got != EmergencyNone {
		t.Fatalf("threshold is exclusive: got %v", got)
	}
}

func TestEncounterRing(t *testing.T) {
	a := &Agent{}
	for i := 0; i < 12; i++ {
		AddEncounter(a, Encounter{Kind: "chat", At: int64(i), Sentiment: 3})
	}
	if len(a.Encounters) != MaxEncounters {
		t.Fatalf("len: got %d want %d", len(a.Encounters), MaxEncounters)
	}
	if a.Encounters[0].At != 11 || a.Encounters[9].At != 2 {
		t.Fatalf("order: newest %d oldest %d", a.Encounters[0].At, a.Encounters[9].At)
	}
	if a.Encounters[0].Sentiment != 1 {
		t.Fatalf("sentiment should clamp to 1, got %v", a.Encounters[0].Sentiment)
	}
	got := RecentEncounters(a, 3)
	got[0].Kind = "mutated"
	if a.Encounters[0].Kind != "chat" {
		t.Fatalf("RecentEncounters must copy")
	}
}

func TestEncounterSentimentByPartner(t *testing.T) {
	a := &Agent{}
	p1, p2 := AgentID(1), AgentID(2)
	AddEncounter(a, Encounter{Partner: &p1, Sentiment: 0.5})
	AddEncounter(a, Encounter{Partner: &p1, Sentiment: -0.1})
	AddEncounter(a, Encounter{Partner: &p2, Sentiment: -1})
	if got := EncounterSentiment(a, p1); got < 0.199 || got > 0.201 {
		t.Fatalf("p1: got %v want 0.2", got)
	}
	if got := EncounterSentiment(a, 3); got != 0 {
		t.Fatalf("stranger: got %v", got)
	}
}
