// World generation using layered simplex noise.
// Produces a heightfield with a flattened village core, building footprints
// around it, farmland parcels further out, and a ring road plus a farm road.
package world

import (
	"fmt"
	"math"
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"
)

// GenConfig holds world generation parameters.
type GenConfig struct {
	HalfExtent    float64 // Map spans ±HalfExtent metres
	Seed          int64   // Random seed (0 = random)
	Relief        float64 // Peak terrain height in metres
	VillageRadius float64 // Flattened core around the origin
	Buildings     int     // Footprints placed around the village
	Fields        int     // Farmland parcels
}

// DefaultGenConfig returns a reasonable starting configuration.
func DefaultGenConfig() GenConfig {
	return GenConfig{
		HalfExtent:    1000,
		Seed:          0,
		Relief:        40,
		VillageRadius: 150,
		Buildings:     16,
		Fields:        8,
	}
}

// SmallTestConfig returns a tiny world for rapid iteration.
func SmallTestConfig() GenConfig {
	return GenConfig{
		HalfExtent:    400,
		Seed:          42,
		Relief:        10,
		VillageRadius: 80,
		Buildings:     6,
		Fields:        3,
	}
}

// Generate creates a complete demo world.
func Generate(cfg GenConfig) *Map {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}
	rng := rand.New(rand.NewSource(seed + 100))

	// Two noise layers: broad hills and a sharper ridge layer that produces
	// the occasional cliff the agents must route around.
	hills := opensimplex.NewNormalized(seed)
	ridges := opensimplex.NewNormalized(seed + 1)

	height := func(x, z float64) float64 {
		h := octaveNoise(hills, x, z, 4, 0.002, 0.5) * cfg.Relief
		r := octaveNoise(ridges, x, z, 2, 0.008, 0.4)
		if r > 0.7 {
			h += (r - 0.7) * cfg.Relief * 3
		}
		// Flatten the village core so homes sit on level ground.
		d := math.Hypot(x, z) / cfg.VillageRadius
		return h * smoothstep(0.6, 1.6, d)
	}

	m := NewMap(cfg.HalfExtent, height)

	// Buildings on a jittered ring inside the village core.
	for i := 0; i < cfg.Buildings; i++ {
		ang := float64(i)/float64(cfg.Buildings)*2*math.Pi + (rng.Float64()-0.5)*0.2
		r := cfg.VillageRadius * (0.45 + rng.Float64()*0.2)
		c := Vec3{X: math.Sin(ang) * r, Z: math.Cos(ang) * r}
		c.Y = height(c.X, c.Z)
		m.AddBuilding(Footprint{
			ID:     fmt.Sprintf("building_%d", i+1),
			Center: c,
			Radius: 6 + rng.Float64()*4,
		})
	}

	// Farmland outside the core.
	for i := 0; i < cfg.Fields; i++ {
		ang := float64(i)/float64(cfg.Fields)*2*math.Pi + math.Pi/float64(cfg.Fields)
		r := cfg.VillageRadius*1.8 + rng.Float64()*cfg.VillageRadius
		c := Vec3{X: math.Sin(ang) * r, Z: math.Cos(ang) * r}
		c.Y = height(c.X, c.Z)
		m.Fields = append(m.Fields, FieldSite{
			ID:     uint64(i + 1),
			Center: c,
			Area:   1500 + rng.Float64()*12000,
		})
	}

	// Closed ring road through the village and an open farm road heading east.
	ring := make([]Vec3, 0, 24)
	for i := 0; i < 24; i++ {
		ang := float64(i) / 24 * 2 * math.Pi
		p := Vec3{X: math.Sin(ang) * cfg.VillageRadius * 0.8, Z: math.Cos(ang) * cfg.VillageRadius * 0.8}
		p.Y = height(p.X, p.Z)
		ring = append(ring, p)
	}
	m.AddRoad(NewPolyline("ring_road", ring, true))

	farm := make([]Vec3, 0, 12)
	for i := 0; i < 12; i++ {
		x := cfg.VillageRadius*0.8 + float64(i)*cfg.VillageRadius*0.25
		p := Vec3{X: x, Z: math.Sin(float64(i)*0.6) * 20}
		p.Y = height(p.X, p.Z)
		farm = append(farm, p)
	}
	m.AddRoad(NewPolyline("farm_road", farm, false))

	return m
}

// octaveNoise generates fractal noise by layering multiple frequencies.
func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}

func smoothstep(edge0, edge1, x float64) float64 {
	t := math.Max(0, math.Min(1, (x-edge0)/(edge1-edge0)))
	return t * t * (3 - 2*t)
}
