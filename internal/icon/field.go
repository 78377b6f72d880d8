// Package icon turns an arbitrary raster into a small glyph that summarises
// its edge structure.
//
// The pipeline is strictly linear: grayscale + contrast stretch, Laplacian
// edges, max-filter spread, percentile binarization, local density, cutoff
// normalization, color mapping and a progressive downscale. Every stage is a
// pure function of its input field and scalar options.
package icon

import (
	"image"
	"image/color"
)

// Field is a row-major W x H grid of scalar samples.
type Field struct {
	W, H int
	Pix  []float64
}

func NewField(w, h int) Field {
	return Field{W: w, H: h, Pix: make([]float64, w*h)}
}

func (f Field) Empty() bool {
	return f.W <= 0 || f.H <= 0
}

func (f Field) index(x, y int) int {
	return y*f.W + x
}

// At samples the field with clamp-to-edge handling for out-of-bounds
// coordinates.
func (f Field) At(x, y int) float64 {
	return f.Pix[f.index(clamp(x, 0, f.W-1), clamp(y, 0, f.H-1))]
}

func (f Field) Set(x, y int, v float64) {
	f.Pix[f.index(x, y)] = v
}

func (f Field) Clone() Field {
	out := Field{W: f.W, H: f.H, Pix: make([]float64, len(f.Pix))}
	copy(out.Pix, f.Pix)
	return out
}

// Gray renders the field as an 8-bit image, scaling [0, maxValue] to
// [0, 255]. Values outside the range saturate.
func (f Field) Gray(maxValue float64) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, f.W, f.H))
	if maxValue <= 0 {
		return img
	}
	for y := 0; y < f.H; y++ {
		for x := 0; x < f.W; x++ {
			v := f.Pix[f.index(x, y)] / maxValue * 255
			img.SetGray(x, y, color.Gray{Y: uint8(clampFloat(v+0.5, 0, 255))})
		}
	}
	return img
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
