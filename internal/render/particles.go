package render

import (
	"math"
	"math/rand"

	"github.com/guidoenr/tabviz/internal/analyzer"
	"github.com/guidoenr/tabviz/internal/params"
	"github.com/guidoenr/tabviz/internal/theme"
)

const (
	// ParticleCount is the size of the particle field.
	ParticleCount = 200

	particleColors   = 4
	particleGlow     = 15
	linkBase         = 80
	linkIntensity    = 50
	linkMaxAlpha     = 0.3
	linkWidth        = 1
	speedBoost       = 3
	sizeBoost        = 2
	particleMinSize  = 1
	particleSizeSpan = 3
)

// Particle is one point of the particle field.
type Particle struct {
	X, Y       float64
	VX, VY     float64
	Size       float64
	ColorIndex int
}

// Particles is a drifting particle field that speeds up with the spectrum and
// links nearby particles.
type Particles struct {
	rng   *rand.Rand
	count int
	items []Particle
}

// NewParticles creates an unseeded field of count particles.
func NewParticles(rng *rand.Rand, count int) *Particles {
	return &Particles{rng: rng, count: count}
}

func (p *Particles) Name() params.Mode { return params.ModeParticles }

// Seed replaces the field with freshly sampled particles inside the bounds.
func (p *Particles) Seed(width, height float64) {
	items := make([]Particle, p.count)
	for i := range items {
		items[i] = Particle{
			X:          p.rng.Float64() * width,
			Y:          p.rng.Float64() * height,
			VX:         p.rng.Float64()*2 - 1,
			VY:         p.rng.Float64()*2 - 1,
			Size:       particleMinSize + p.rng.Float64()*particleSizeSpan,
			ColorIndex: p.rng.Intn(particleColors),
		}
	}
	p.items = items
}

// State returns a copy of the current particles.
func (p *Particles) State() []Particle {
	out := make([]Particle, len(p.items))
	copy(out, p.items)
	return out
}

// LinkThreshold is the distance under which two particles are connected.
func LinkThreshold(s analyzer.Snapshot) float64 {
	return linkBase + s.Intensity()*linkIntensity
}

func (p *Particles) Draw(s Surface, f Frame) {
	if p.items == nil {
		p.Seed(f.Width, f.Height)
	}
	n := len(p.items)
	for i := range p.items {
		pt := &p.items[i]
		freq := math.Min(f.Snapshot.Level(f.Snapshot.Index(i, n))*f.Sensitivity, 1)

		speed := 1 + freq*speedBoost
		pt.X += pt.VX * speed
		pt.Y += pt.VY * speed
		wrap(pt, f.Width, f.Height)

		c := theme.ToNRGBA(f.color(pt.ColorIndex), 1)
		s.Disc(Point{X: pt.X, Y: pt.Y}, pt.Size*(1+freq*sizeBoost), Solid(c), Glow{Color: c, Blur: particleGlow})
	}

	threshold := LinkThreshold(f.Snapshot)
	limit := threshold * threshold
	for i := 0; i < n; i++ {
		a := p.items[i]
		for j := i + 1; j < n; j++ {
			b := p.items[j]
			dx, dy := a.X-b.X, a.Y-b.Y
			d2 := dx*dx + dy*dy
			if d2 >= limit {
				continue
			}
			alpha := (1 - math.Sqrt(d2)/threshold) * linkMaxAlpha
			c := theme.ToNRGBA(f.color(a.ColorIndex), alpha)
			s.Line(Point{X: a.X, Y: a.Y}, Point{X: b.X, Y: b.Y}, linkWidth, Solid(c), Glow{})
		}
	}
}

// wrap moves a particle that left the surface to the opposite edge.
func wrap(p *Particle, width, height float64) {
	if p.X < 0 {
		p.X = width
	} else if p.X > width {
		p.X = 0
	}
	if p.Y < 0 {
		p.Y = height
	} else if p.Y > height {
		p.Y = 0
	}
}
