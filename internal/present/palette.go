package present

import "sort"

var palettes = map[string][]rune{
	"default": []rune(" .,:-;+=*%#@▓█"),
	"box":     []rune(" ░▒▓█"),
	"lines":   []rune(" `.-=+*/|╱╳╬"),
	"spark":   []rune("  ´`^\"~:;*+×•¤°oO@#█"),
}

// Palette returns the glyph ramp used when colour output is off, darkest
// first. Unknown names get the default ramp.
func Palette(name string) []rune {
	if p, ok := palettes[name]; ok {
		return p
	}
	return palettes["default"]
}

// PaletteNames returns all palette identifiers.
func PaletteNames() []string {
	names := make([]string, 0, len(palettes))
	for name := range palettes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// glyph maps a luminance in [0,1] onto the ramp.
func glyph(ramp []rune, lum float64) rune {
	idx := int(clamp01(lum)*float64(len(ramp)-1) + 0.5)
	return ramp[clampInt(idx, 0, len(ramp)-1)]
}
