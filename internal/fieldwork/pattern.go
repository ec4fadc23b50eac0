package fieldwork

import (
	"math"

	"github.com/talgya/npc-favor/internal/world"
)

// Mode is how the worker traverses the field.
type Mode uint8

const (
	OnFoot Mode = iota
	Mounted
)

// Row spacing per mode, metres.
const (
	FootSpacing    = 6.0
	MountedSpacing = 12.0

	headlandOvershoot = 0.5 // control point offset, fraction of spacing
	turnSamples       = 3
)

// Spacing returns the row spacing for a mode.
func (m Mode) Spacing() float64 {
	if m == Mounted {
		return MountedSpacing
	}
	return FootSpacing
}

// PatternKind is the traversal style.
type PatternKind uint8

const (
	PatternRows PatternKind = iota
	PatternPerimeter
	PatternSpotCheck
)

func (k PatternKind) String() string {
	switch k {
	case PatternPerimeter:
		return "perimeter"
	case PatternSpotCheck:
		return "spot_check"
	default:
		return "rows"
	}
}

// Field is a parcel to be worked.
type Field struct {
	ID     uint64
	Center world.Vec3
	Area   float64
}

// Bounds is the square box estimated from a field's area.
type Bounds struct {
	MinX, MaxX, MinZ, MaxZ float64
}

// BoundsOf estimates a square bounding box centred on the field.
func BoundsOf(f Field) Bounds {
	half := math.Sqrt(math.Max(f.Area, 1)) / 2
	return Bounds{
		MinX: f.Center.X - half, MaxX: f.Center.X + half,
		MinZ: f.Center.Z - half, MaxZ: f.Center.Z + half,
	}
}

func (b Bounds) clamp(v world.Vec3) world.Vec3 {
	v.X = math.Max(b.MinX, math.Min(b.MaxX, v.X))
	v.Z = math.Max(b.MinZ, math.Min(b.MaxZ, v.Z))
	return v
}

// Request describes one pattern to generate.
type Request struct {
	Field   Field
	Mode    Mode
	Slot    int  // 1 or 2
	Sharing bool // another worker holds the other slot
	From    world.Vec3

	// Prefer is tried with PreferChance before falling back to rows.
	Prefer       PatternKind
	PreferChance float64
	Rand         world.Random
}

// Pattern is the generated traversal.
type Pattern struct {
	Kind      PatternKind
	Waypoints []world.Vec3
	Rows      []int // row indices worked, for PatternRows
}

// Row is one pass across the field along X.
type Row struct {
	Index      int
	Start, End world.Vec3
}

// Rows lays out the rows a slot works. On foot, sharing workers take
// alternating rows; mounted, they split the field at the centre X.
func Rows(f Field, mode Mode, slot int, sharing bool) []Row {
	b := BoundsOf(f)
	sp := mode.Spacing()
	x0, x1 := b.MinX+sp/2, b.MaxX-sp/2
	if sharing && mode == Mounted {
		if slot == 2 {
			x0 = f.Center.X + sp/2
		} else {
			x1 = f.Center.X - sp/2
		}
	}
	if x1 < x0 {
		x0, x1 = f.Center.X, f.Center.X
	}
	var rows []Row
	for k, z := 0, b.MinZ+sp/2; z <= b.MaxZ-sp/2+1e-9; k, z = k+1, z+sp {
		if sharing && mode == OnFoot && k%2 != (slot-1)%2 {
			continue
		}
		rows = append(rows, Row{
			Index: k,
			Start: world.Vec3{X: x0, Y: f.Center.Y, Z: z},
			End:   world.Vec3{X: x1, Y: f.Center.Y, Z: z},
		})
	}
	if len(rows) == 0 {
		// Field narrower than one row: a single pass through the centre.
		rows = append(rows, Row{Start: world.Vec3{X: x0, Y: f.Center.Y, Z: f.Center.Z},
			End: world.Vec3{X: x1, Y: f.Center.Y, Z: f.Center.Z}})
	}
	return rows
}

// GeneratePattern builds the waypoint pattern for a request.
func GeneratePattern(req Request) Pattern {
	if req.Prefer != PatternRows && req.Rand != nil && req.Rand.Float64() < req.PreferChance {
		switch req.Prefer {
		case PatternPerimeter:
			return Pattern{Kind: PatternPerimeter, Waypoints: Perimeter(req.Field, req.Mode, req.From)}
		case PatternSpotCheck:
			return Pattern{Kind: PatternSpotCheck, Waypoints: SpotCheck(req.Field, req.Mode, req.From, req.Rand)}
		}
	}
	return Boustrophedon(req.Field, req.Mode, req.Slot, req.Sharing)
}

// Boustrophedon walks the slot's rows back and forth, joining row ends with
// smoothed headland turns.
func Boustrophedon(f Field, mode Mode, slot int, sharing bool) Pattern {
	rows := Rows(f, mode, slot, sharing)
	b := BoundsOf(f)
	sp := mode.Spacing()
	p := Pattern{Kind: PatternRows}
	for i, r := range rows {
		a, e := r.Start, r.End
		if i%2 == 1 {
			a, e = e, a
		}
		if i > 0 {
			prev := p.Waypoints[len(p.Waypoints)-1]
			p.Waypoints = append(p.Waypoints, HeadlandTurn(prev, a, b, sp)...)
		}
		p.Waypoints = append(p.Waypoints, a, e)
		p.Rows = append(p.Rows, r.Index)
	}
	return p
}

// HeadlandTurn returns the interior points of the U-turn from the end of
// one row to the start of the next. The control point sits past the row
// ends by a fraction of the spacing, clamped inside the field.
func HeadlandTurn(from, to world.Vec3, b Bounds, spacing float64) []world.Vec3 {
	mid := world.Lerp(from, to, 0.5)
	cx := (b.MinX + b.MaxX) / 2
	out := 1.0
	if mid.X < cx {
		out = -1
	}
	ctrl := b.clamp(world.Vec3{X: mid.X + out*headlandOvershoot*spacing, Y: mid.Y, Z: mid.Z})
	pts := make([]world.Vec3, 0, turnSamples)
	for s := 1; s <= turnSamples; s++ {
		t := float64(s) / float64(turnSamples+1)
		pts = append(pts, b.clamp(world.QuadBezier(from, ctrl, to, t)))
	}
	return pts
}

// Perimeter walks the inset edge of the field once, starting at the corner
// nearest from.
func Perimeter(f Field, mode Mode, from world.Vec3) []world.Vec3 {
	b := BoundsOf(f)
	in := mode.Spacing() / 2
	y := f.Center.Y
	corners := []world.Vec3{
		{X: b.MinX + in, Y: y, Z: b.MinZ + in},
		{X: b.MaxX - in, Y: y, Z: b.MinZ + in},
		{X: b.MaxX - in, Y: y, Z: b.MaxZ - in},
		{X: b.MinX + in, Y: y, Z: b.MaxZ - in},
	}
	start := 0
	for i, c := range corners {
		if world.DistXZ(from, c) < world.DistXZ(from, corners[start]) {
			start = i
		}
	}
	var out []world.Vec3
	for i := 0; i <= len(corners); i++ {
		c := corners[(start+i)%len(corners)]
		if i > 0 {
			out = append(out, world.Lerp(out[len(out)-1], c, 0.5))
		}
		out = append(out, c)
	}
	return out
}

// SpotCheck visits a handful of random spots in the field in
// nearest-neighbour order from from.
func SpotCheck(f Field, mode Mode, from world.Vec3, rnd world.Random) []world.Vec3 {
	b := BoundsOf(f)
	in := mode.Spacing() / 2
	n := 5 + int(draw(rnd)*4)
	spots := make([]world.Vec3, n)
	for i := range spots {
		spots[i] = world.Vec3{
			X: b.MinX + in + draw(rnd)*math.Max(0, b.MaxX-b.MinX-2*in),
			Y: f.Center.Y,
			Z: b.MinZ + in + draw(rnd)*math.Max(0, b.MaxZ-b.MinZ-2*in),
		}
	}
	return NearestNeighbourTour(from, spots)
}

// NearestNeighbourTour orders points greedily from start.
func NearestNeighbourTour(start world.Vec3, pts []world.Vec3) []world.Vec3 {
	left := append([]world.Vec3(nil), pts...)
	out := make([]world.Vec3, 0, len(pts))
	cur := start
	for len(left) > 0 {
		best := 0
		for i := 1; i < len(left); i++ {
			if world.DistXZ(cur, left[i]) < world.DistXZ(cur, left[best]) {
				best = i
			}
		}
		cur = left[best]
		out = append(out, cur)
		left = append(left[:best], left[best+1:]...)
	}
	return out
}

func draw(r world.Random) float64 {
	if r == nil {
		return 0.5
	}
	return r.Float64()
}
