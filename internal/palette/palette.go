// Package palette resolves ordinal color ramps for palette-mode icons.
//
// Ramps are always ordered from light to dark so that a higher density
// selects a darker entry.
package palette

import (
	"errors"
	"fmt"
	"image/color"
	"slices"
	"sort"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

const (
	MinColors = 2
	MaxColors = 64

	// Auto asks for a ramp extracted from the source image.
	Auto = "auto"
)

var ErrInvalidPalette = errors.New("invalid palette")

var builtin = map[string][]string{
	"ink":    {"#f7f7f2", "#c9ccd5", "#8a93a8", "#4b5874", "#1d2740", "#070b16"},
	"ember":  {"#fff5e6", "#ffd08a", "#ff9a3d", "#e8552b", "#a6231c", "#4a0b0e"},
	"ocean":  {"#f0fbff", "#b3e4f2", "#5cbcd9", "#2b86b3", "#164f7a", "#071f3a"},
	"forest": {"#f4f9ec", "#c7e3a5", "#8cc267", "#4e963c", "#24632a", "#0b2e14"},
	"mono":   {"#ffffff", "#000000"},
}

// Names lists the built-in ramps in alphabetical order.
func Names() []string {
	names := make([]string, 0, len(builtin))
	for name := range builtin {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Parse resolves a built-in ramp name or a comma-separated list of hex
// colors. Hex lists are used in the order given.
func Parse(spec string) ([]color.RGBA, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, fmt.Errorf("%w: empty palette", ErrInvalidPalette)
	}

	if stops, ok := builtin[strings.ToLower(spec)]; ok {
		return parseHexList(stops)
	}
	return parseHexList(strings.Split(spec, ","))
}

// IsAuto reports whether spec requests extraction from the source image.
func IsAuto(spec string) bool {
	return strings.EqualFold(strings.TrimSpace(spec), Auto)
}

func parseHexList(items []string) ([]color.RGBA, error) {
	if len(items) < MinColors || len(items) > MaxColors {
		return nil, fmt.Errorf("%w: need between %d and %d colors, got %d", ErrInvalidPalette, MinColors, MaxColors, len(items))
	}
	out := make([]color.RGBA, 0, len(items))
	for _, item := range items {
		c, err := colorful.Hex(normalizeHex(item))
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidPalette, item, err)
		}
		out = append(out, toRGBA(c))
	}
	return out, nil
}

// colorful.Hex only accepts #rgb and #rrggbb with the leading hash.
func normalizeHex(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if !strings.HasPrefix(s, "#") {
		s = "#" + s
	}
	return s
}

// Interpolate expands stops to n colors by blending neighbouring stops in
// Lab space.
func Interpolate(stops []color.RGBA, n int) []color.RGBA {
	if len(stops) == 0 || n <= 0 {
		return nil
	}
	if len(stops) == 1 || n == 1 {
		return slices.Repeat([]color.RGBA{stops[0]}, n)
	}

	cols := make([]colorful.Color, len(stops))
	for i, s := range stops {
		cols[i], _ = colorful.MakeColor(s)
	}

	out := make([]color.RGBA, n)
	segments := float64(len(cols) - 1)
	for i := range n {
		pos := float64(i) / float64(n-1) * segments
		lo := min(int(pos), len(cols)-2)
		switch frac := pos - float64(lo); frac {
		case 0:
			out[i] = stops[lo]
		case 1:
			out[i] = stops[lo+1]
		default:
			out[i] = toRGBA(cols[lo].BlendLab(cols[lo+1], frac))
		}
	}
	return out
}

// SortLightToDark orders colors by descending linear-RGB luma.
func SortLightToDark(colors []color.RGBA) {
	slices.SortStableFunc(colors, func(a, b color.RGBA) int {
		la, lb := luma(a), luma(b)
		switch {
		case la > lb:
			return -1
		case la < lb:
			return 1
		default:
			return 0
		}
	})
}

func luma(c color.RGBA) float64 {
	col, _ := colorful.MakeColor(color.RGBA{R: c.R, G: c.G, B: c.B, A: 255})
	r, g, b := col.LinearRgb()
	return 0.2126*r + 0.7152*g + 0.0722*b
}

func toRGBA(c colorful.Color) color.RGBA {
	r, g, b := c.Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}
