package analyzer

import "math"

// Features summarizes a snapshot into broad bands for status displays.
type Features struct {
	Bass    float64 `json:"bass"`
	Mid     float64 `json:"mid"`
	Treble  float64 `json:"treble"`
	Overall float64 `json:"overall"`
}

// Summarize averages the snapshot over bass (20-250 Hz), mid (250-2000 Hz) and
// treble (2-8 kHz) bands. binHz is the width of one bin.
func Summarize(s Snapshot, binHz float64) Features {
	if len(s) == 0 || binHz <= 0 {
		return Features{}
	}
	return Features{
		Bass:    bandLevel(s, binHz, 20, 250),
		Mid:     bandLevel(s, binHz, 250, 2000),
		Treble:  bandLevel(s, binHz, 2000, 8000),
		Overall: s.Intensity(),
	}
}

// GateFeatures applies a noise floor and rescales what is left to [0,1].
func GateFeatures(f Features, floor float64) Features {
	if floor <= 0 {
		return f
	}
	gate := func(v float64) float64 {
		if v <= floor {
			return 0
		}
		return clamp((v-floor)/(1.0-floor), 0, 1)
	}

	f.Bass = gate(f.Bass)
	f.Mid = gate(f.Mid)
	f.Treble = gate(f.Treble)
	f.Overall = gate(f.Overall)
	return f
}

func bandLevel(s Snapshot, resolution, minHz, maxHz float64) float64 {
	lo := int(math.Floor(minHz / resolution))
	hi := int(math.Ceil(maxHz/resolution)) + 1
	if hi > len(s) {
		hi = len(s)
	}
	if lo >= hi {
		return 0
	}
	sum := 0.0
	for _, v := range s[lo:hi] {
		sum += float64(v)
	}
	return sum / float64(hi-lo) / 255
}
