package params

import (
	"fmt"
	"math"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/guidoenr/tabviz/internal/theme"
)

// Mode selects one of the render modes.
type Mode string

const (
	ModeBars      Mode = "bars"
	ModeWave      Mode = "wave"
	ModeCircular  Mode = "circular"
	ModeParticles Mode = "particles"
)

var modeNames = []Mode{ModeBars, ModeWave, ModeCircular, ModeParticles}

// ModeNames returns the render mode identifiers in selection order.
func ModeNames() []string {
	out := make([]string, len(modeNames))
	for i, m := range modeNames {
		out[i] = string(m)
	}
	return out
}

// ParseMode resolves a (case-insensitive) mode identifier.
func ParseMode(name string) (Mode, bool) {
	key := Mode(strings.ToLower(strings.TrimSpace(name)))
	for _, m := range modeNames {
		if m == key {
			return m, true
		}
	}
	return "", false
}

// Next returns the mode after m, wrapping around.
func (m Mode) Next() Mode {
	for i, candidate := range modeNames {
		if candidate == m {
			return modeNames[(i+1)%len(modeNames)]
		}
	}
	return modeNames[0]
}

const (
	DefaultSensitivity = 1.5
	DefaultSmoothing   = 0.8

	MinSensitivity = 0.1
	MaxSensitivity = 5.0
)

// Config is the visualization configuration read by the renderers each frame.
type Config struct {
	Mode        Mode    `json:"mode" validate:"required,oneof=bars wave circular particles"`
	Theme       string  `json:"theme" validate:"required,theme"`
	Sensitivity float64 `json:"sensitivity" validate:"gt=0,lte=5"`
	Smoothing   float64 `json:"smoothing" validate:"gte=0,lte=1"`
}

// Defaults returns the start-up configuration.
func Defaults() Config {
	return Config{
		Mode:        ModeBars,
		Theme:       theme.Default,
		Sensitivity: DefaultSensitivity,
		Smoothing:   DefaultSmoothing,
	}
}

var validate = NewValidator()

// NewValidator returns a validator that understands the "theme" tag.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("theme", func(fl validator.FieldLevel) bool {
		return theme.Valid(fl.Field().String())
	})
	return v
}

// Validate checks that every field is within range.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid visualization config: %w", err)
	}
	return nil
}

// ClampSensitivity keeps sensitivity inside the accepted range.
func ClampSensitivity(v float64) float64 {
	if math.IsNaN(v) {
		return DefaultSensitivity
	}
	return clamp(v, MinSensitivity, MaxSensitivity)
}

// ClampSmoothing keeps the smoothing factor inside [0,1].
func ClampSmoothing(v float64) float64 {
	if math.IsNaN(v) {
		return DefaultSmoothing
	}
	return clamp(v, 0, 1)
}

func clamp(v, minVal, maxVal float64) float64 {
	if v < minVal {
		return minVal
	}
	if v > maxVal {
		return maxVal
	}
	return v
}
