package icon

import (
	"image"
	"image/color"
	"math"
)

// ColorStrategy maps a normalized density in [0, 1] to an opaque color.
// Implementations are Grayscale and Palette.
type ColorStrategy interface {
	Map(v float64, revert bool) color.RGBA
	validate() error
}

// Grayscale maps density to a gray level 255 * (1 - v^Skew). Skew above 1
// lightens low densities, below 1 darkens them.
type Grayscale struct {
	Skew float64
}

func (g Grayscale) Map(v float64, revert bool) color.RGBA {
	v = unit(v, revert)
	level := uint8(math.Round(255 * (1 - math.Pow(v, g.Skew))))
	return color.RGBA{R: level, G: level, B: level, A: 255}
}

// Palette maps density onto an ordered list of colors split into
// equal-width buckets; 0 selects the first entry and 1 the last.
type Palette struct {
	Colors []color.RGBA
}

func (p Palette) Map(v float64, revert bool) color.RGBA {
	v = unit(v, revert)
	n := len(p.Colors)
	idx := clamp(int(math.Floor(v*float64(n))), 0, n-1)
	c := p.Colors[idx]
	c.A = 255
	return c
}

func unit(v float64, revert bool) float64 {
	if math.IsNaN(v) {
		v = 0
	}
	v = clampFloat(v, 0, 1)
	if revert {
		v = 1 - v
	}
	return v
}

// Colorize renders the density field through s.
func Colorize(f Field, s ColorStrategy, revert bool) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, f.W, f.H))
	for y := 0; y < f.H; y++ {
		for x := 0; x < f.W; x++ {
			img.SetRGBA(x, y, s.Map(f.Pix[f.index(x, y)], revert))
		}
	}
	return img
}
