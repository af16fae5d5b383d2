package theme

import (
	"fmt"
	"sort"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"
)

// Default is the theme used when a requested name is not registered.
const Default = "neon"

var registry = map[string][]string{
	"neon":   {"#ff00ff", "#00ffff", "#ff0080", "#8000ff"},
	"sunset": {"#ff6b6b", "#feca57", "#ff9ff3", "#ff9f43"},
	"ocean":  {"#0abde3", "#48dbfb", "#1dd1a1", "#5f27cd"},
	"forest": {"#10ac84", "#1dd1a1", "#c8d6e5", "#576574"},
	"fire":   {"#ff4757", "#ff6348", "#ffa502", "#eccc68"},
}

var parsed = map[string][]colorful.Color{}

func init() {
	for name, hexes := range registry {
		colors := make([]colorful.Color, len(hexes))
		for i, h := range hexes {
			c, err := colorful.Hex(h)
			if err != nil {
				panic(fmt.Sprintf("theme %s: bad colour %q: %v", name, h, err))
			}
			colors[i] = c
		}
		parsed[name] = colors
	}
}

// Names returns the registered theme identifiers in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Valid reports whether name is a registered theme.
func Valid(name string) bool {
	_, ok := registry[strings.ToLower(name)]
	return ok
}

// ColorsFor returns the ordered palette for name, falling back to the default
// theme for unknown names. The returned slice is a copy.
func ColorsFor(name string) []colorful.Color {
	colors, ok := parsed[strings.ToLower(name)]
	if !ok {
		colors = parsed[Default]
	}
	out := make([]colorful.Color, len(colors))
	copy(out, colors)
	return out
}

// HexFor is ColorsFor in "#rrggbb" form.
func HexFor(name string) []string {
	hexes, ok := registry[strings.ToLower(name)]
	if !ok {
		hexes = registry[Default]
	}
	out := make([]string, len(hexes))
	copy(out, hexes)
	return out
}

// Resolve maps name onto a registered identifier, applying the same fallback as ColorsFor.
func Resolve(name string) string {
	key := strings.ToLower(name)
	if _, ok := registry[key]; ok {
		return key
	}
	return Default
}
