package world

import "math"

// Polyline is a piecewise-linear Spline over a list of control points,
// parameterised by arc length.
type Polyline struct {
	id     string
	points []Vec3
	closed bool
	cum    []float64 // cumulative length at each vertex (len = segments+1)
}

// NewPolyline builds a polyline spline. A closed polyline joins the last
// point back to the first.
func NewPolyline(id string, points []Vec3, closed bool) *Polyline {
	p := &Polyline{id: id, points: append([]Vec3(nil), points...), closed: closed}
	n := p.segments()
	p.cum = make([]float64, n+1)
	for i := 0; i < n; i++ {
		a, b := p.segment(i)
		p.cum[i+1] = p.cum[i] + DistXZ(a, b)
	}
	return p
}

func (p *Polyline) segments() int {
	if len(p.points) < 2 {
		return 0
	}
	if p.closed {
		return len(p.points)
	}
	return len(p.points) - 1
}

func (p *Polyline) segment(i int) (Vec3, Vec3) {
	return p.points[i], p.points[(i+1)%len(p.points)]
}

// ID returns the spline identifier.
func (p *Polyline) ID() string { return p.id }

// Length returns the total arc length.
func (p *Polyline) Length() float64 {
	if len(p.cum) == 0 {
		return 0
	}
	return p.cum[len(p.cum)-1]
}

// Closed reports whether the spline loops.
func (p *Polyline) Closed() bool { return p.closed }

// locate maps t to a segment index and the fraction along it.
func (p *Polyline) locate(t float64) (int, float64) {
	n := p.segments()
	if n == 0 {
		return 0, 0
	}
	if p.closed {
		t -= math.Floor(t)
	} else {
		t = math.Max(0, math.Min(1, t))
	}
	d := t * p.Length()
	for i := 0; i < n; i++ {
		seg := p.cum[i+1] - p.cum[i]
		if d <= p.cum[i+1] || i == n-1 {
			if seg <= 0 {
				return i, 0
			}
			return i, math.Max(0, math.Min(1, (d-p.cum[i])/seg))
		}
	}
	return n - 1, 1
}

// Position returns the point at parameter t.
func (p *Polyline) Position(t float64) Vec3 {
	if len(p.points) == 0 {
		return Vec3{}
	}
	if len(p.points) == 1 {
		return p.points[0]
	}
	i, f := p.locate(t)
	a, b := p.segment(i)
	return Lerp(a, b, f)
}

// Direction returns the horizontal unit tangent at t.
func (p *Polyline) Direction(t float64) Vec3 {
	if len(p.points) < 2 {
		return Vec3{Z: 1}
	}
	i, _ := p.locate(t)
	a, b := p.segment(i)
	return b.Sub(a).NormXZ()
}

// Nearest returns the parameter and horizontal distance of the closest point
// on the polyline to q.
func (p *Polyline) Nearest(q Vec3) (float64, float64) {
	n := p.segments()
	if n == 0 || p.Length() <= 0 {
		if len(p.points) == 1 {
			return 0, DistXZ(q, p.points[0])
		}
		return 0, math.Inf(1)
	}
	bestT, bestD := 0.0, math.Inf(1)
	for i := 0; i < n; i++ {
		a, b := p.segment(i)
		ab := b.Sub(a)
		l2 := ab.X*ab.X + ab.Z*ab.Z
		f := 0.0
		if l2 > 0 {
			f = ((q.X-a.X)*ab.X + (q.Z-a.Z)*ab.Z) / l2
			f = math.Max(0, math.Min(1, f))
		}
		c := Lerp(a, b, f)
		if d := DistXZ(q, c); d < bestD {
			bestD = d
			bestT = (p.cum[i] + f*(p.cum[i+1]-p.cum[i])) / p.Length()
		}
	}
	return bestT, bestD
}

// QuadBezier evaluates the quadratic Bezier curve p0→p2 with control c.
func QuadBezier(p0, c, p2 Vec3, t float64) Vec3 {
	u := 1 - t
	return Vec3{
		X: u*u*p0.X + 2*u*t*c.X + t*t*p2.X,
		Y: u*u*p0.Y + 2*u*t*c.Y + t*t*p2.Y,
		Z: u*u*p0.Z + 2*u*t*c.Z + t*t*p2.Z,
	}
}

// AngleDiff returns the absolute difference between two headings, in
// radians within [0, π].
func AngleDiff(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 2*math.Pi)
	if d > math.Pi {
		d = 2*math.Pi - d
	}
	return d
}
