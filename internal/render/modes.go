package render

import (
	"math/rand"

	"github.com/guidoenr/tabviz/internal/analyzer"
	"github.com/guidoenr/tabviz/internal/params"
	colorful "github.com/lucasb-eyer/go-colorful"
)

// Frame carries everything a mode needs to draw one frame.
type Frame struct {
	Snapshot    analyzer.Snapshot
	Sensitivity float64
	Colors      []colorful.Color
	Width       float64
	Height      float64
}

// color returns palette entry i, cycling through the theme.
func (f Frame) color(i int) colorful.Color {
	if len(f.Colors) == 0 {
		return colorful.Color{R: 1, G: 1, B: 1}
	}
	i %= len(f.Colors)
	if i < 0 {
		i += len(f.Colors)
	}
	return f.Colors[i]
}

// Mode draws one visualization style.
type Mode interface {
	Name() params.Mode
	Draw(s Surface, f Frame)
}

// Seeder is implemented by modes that keep state reset on (re)entry.
type Seeder interface {
	Seed(width, height float64)
}

func newModeRegistry(rng *rand.Rand) map[params.Mode]Mode {
	modes := []Mode{
		Bars{},
		Wave{},
		Circular{},
		NewParticles(rng, ParticleCount),
	}
	registry := make(map[params.Mode]Mode, len(modes))
	for _, m := range modes {
		registry[m.Name()] = m
	}
	return registry
}
