// Agent spawning: rolls personality, walking speed, modifiers and starting
// needs for new villagers.
package agents

import (
	"math/rand"

	"github.com/talgya/npc-favor/internal/world"
)

// Share of villagers who own a vehicle.
const vehicleOwnership = 0.3

// Spawner creates agents for the simulation.
type Spawner struct {
	rng    *rand.Rand
	nextID AgentID
}

// NewSpawner creates an agent spawner with the given seed.
func NewSpawner(seed int64) *Spawner {
	return &Spawner{
		rng:    rand.New(rand.NewSource(seed + 300)),
		nextID: 1,
	}
}

// SetNextID sets the next agent ID to be issued (used when restoring state).
func (s *Spawner) SetNextID(id AgentID) {
	s.nextID = id
}

// NextID returns the id the next spawn will receive.
func (s *Spawner) NextID() AgentID { return s.nextID }

// Spawn creates an agent at pos whose home is home. A nil personality is
// rolled uniformly.
func (s *Spawner) Spawn(pos, home world.Vec3, p *Personality) *Agent {
	id := s.nextID
	s.nextID++

	pers := Personality(s.rng.Intn(NumPersonalities))
	if p != nil {
		pers = *p
	}
	prof := ProfileOf(pers)
	speed := prof.SpeedRange[0] + s.rng.Float64()*(prof.SpeedRange[1]-prof.SpeedRange[0])

	a := &Agent{
		ID:          id,
		Name:        s.generateName(),
		Personality: pers,
		Position:    pos,
		Home:        home,
		State:       StateIdle,
		BaseSpeed:   speed,
		Speed:       speed,
		WorkEthic:   0.8 + s.rng.Float64()*0.4,
		Sociability: 0.8 + s.rng.Float64()*0.4,
		OwnsVehicle: s.rng.Float64() < vehicleOwnership,
		// Mostly rested at world start.
		Needs: NeedsState{
			Energy:           10 + s.rng.Float64()*20,
			Social:           10 + s.rng.Float64()*30,
			Hunger:           10 + s.rng.Float64()*20,
			WorkSatisfaction: 20 + s.rng.Float64()*30,
		},
	}
	a.Mood = DeriveMood(a.Needs)
	a.IdleTimer = prof.IdleRange[0] + s.rng.Float64()*(prof.IdleRange[1]-prof.IdleRange[0])
	return a
}

func (s *Spawner) generateName() string {
	given := givenNames[s.rng.Intn(len(givenNames))]
	family := familyNames[s.rng.Intn(len(familyNames))]
	return given + " " + family
}

// Name pools for villagers.
var givenNames = []string{
	"Ada", "Albert", "Anke", "Bernd", "Bettina", "Clara", "Dieter",
	"Elke", "Emil", "Frieda", "Georg", "Hanna", "Heinz", "Ilse",
	"Jakob", "Jana", "Karl", "Lotte", "Lukas", "Marta", "Max",
	"Nora", "Otto", "Paula", "Rosa", "Rudi", "Sophie", "Theo",
	"Ursel", "Walter", "Wilma", "Anton", "Greta", "Fritz", "Liesel",
}

var familyNames = []string{
	"Miller", "Becker", "Hofmann", "Bauer", "Schäfer", "Fischer",
	"Wagner", "Brandt", "Krüger", "Lang", "Meyer", "Richter",
	"Fields", "Barley", "Oakley", "Hayward", "Stubble", "Furrow",
	"Plowright", "Greenacre", "Mallow", "Thresher", "Harrow", "Lindqvist",
	"Weber", "Koch", "Sommer", "Winter", "Brook", "Marsh",
}
