package present

import (
	"math"
	"strconv"
)

const resetANSI = "\x1b[0m"

var (
	precomputedFG [256]string
	precomputedBG [256]string
)

func init() {
	for i := range precomputedFG {
		precomputedFG[i] = "\x1b[38;5;" + strconv.Itoa(i) + "m"
		precomputedBG[i] = "\x1b[48;5;" + strconv.Itoa(i) + "m"
	}
}

func fgCode(index int) string {
	return precomputedFG[clampInt(index, 0, len(precomputedFG)-1)]
}

func bgCode(index int) string {
	return precomputedBG[clampInt(index, 0, len(precomputedBG)-1)]
}

// rgbToANSI quantizes a colour onto the xterm 256 palette: the greyscale
// ramp for near-neutral colours, the 6x6x6 cube otherwise.
func rgbToANSI(r, g, b float64) int {
	r = clamp01(r)
	g = clamp01(g)
	b = clamp01(b)

	if math.Abs(r-g) < 0.02 && math.Abs(g-b) < 0.02 {
		gray := int(clampFloat(math.Round(r*23), 0, 23))
		return 232 + gray
	}

	ri := int(clampFloat(r*5+0.5, 0, 5))
	gi := int(clampFloat(g*5+0.5, 0, 5))
	bi := int(clampFloat(b*5+0.5, 0, 5))

	return 16 + 36*ri + 6*gi + bi
}

func clamp01(v float64) float64 {
	return clampFloat(v, 0, 1)
}

func clampFloat(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
