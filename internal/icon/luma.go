package icon

import (
	"image"
	"image/color"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Luma reduces any raster to a single-channel intensity field with
// integer levels in [0, 255] using ITU-R 601 luma weights.
func Luma(img image.Image) Field {
	b := img.Bounds()
	f := NewField(b.Dx(), b.Dy())
	for y := 0; y < f.H; y++ {
		for x := 0; x < f.W; x++ {
			g := color.GrayModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray)
			f.Pix[f.index(x, y)] = float64(g.Y)
		}
	}
	return f
}

// Stretch maps the observed minimum to 0 and the maximum to 255, rounding to
// integer levels. A flat field is returned unchanged.
func Stretch(f Field) Field {
	out := f.Clone()
	if len(out.Pix) == 0 {
		return out
	}
	lo, hi := floats.Min(f.Pix), floats.Max(f.Pix)
	if hi == lo {
		return out
	}
	scale := 255 / (hi - lo)
	for i, v := range f.Pix {
		out.Pix[i] = math.Round((v - lo) * scale)
	}
	return out
}
