package icon

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
)

// Percentile returns the nearest-rank p-th percentile of values: the element
// at index floor(n*p/100) of the ascending sorted copy, clamped to the last
// element. values is not modified. An empty input yields 0.
func Percentile(values []float64, p float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	idx := int(math.Floor(float64(n) * p / 100))
	return sorted[clamp(idx, 0, n-1)]
}

// Binarize marks every sample strictly greater than the p-th percentile of f
// as 1 and all others as 0. A flat field produces an all-zero mask.
func Binarize(f Field, p float64) Field {
	threshold := Percentile(f.Pix, p)
	out := NewField(f.W, f.H)
	for i, v := range f.Pix {
		if v > threshold {
			out.Pix[i] = 1
		}
	}
	return out
}

// Density counts the 1-cells of mask inside the (2k+1) x (2k+1) window around
// every cell, edge-extending the borders, and divides by the window area.
// Counts are accumulated as integers with two separable prefix-sum passes so
// they match the naive neighbourhood sum exactly.
func Density(mask Field, k int) Field {
	side := 2*k + 1
	area := float64(side * side)

	rowSums := make([]int, mask.W*mask.H)
	prefix := make([]int, max(mask.W, mask.H)+2*k+1)
	for y := 0; y < mask.H; y++ {
		prefix[0] = 0
		for j := 0; j < mask.W+2*k; j++ {
			prefix[j+1] = prefix[j] + int(mask.At(j-k, y))
		}
		for x := 0; x < mask.W; x++ {
			rowSums[y*mask.W+x] = prefix[x+side] - prefix[x]
		}
	}

	out := NewField(mask.W, mask.H)
	for x := 0; x < mask.W; x++ {
		prefix[0] = 0
		for j := 0; j < mask.H+2*k; j++ {
			yy := clamp(j-k, 0, mask.H-1)
			prefix[j+1] = prefix[j] + rowSums[yy*mask.W+x]
		}
		for y := 0; y < mask.H; y++ {
			out.Pix[out.index(x, y)] = float64(prefix[y+side]-prefix[y]) / area
		}
	}
	return out
}

// Cutoff zeroes every sample below the p-th percentile, subtracts the cutoff
// from the rest and rescales by the resulting maximum. An all-zero result is
// left as is.
func Cutoff(f Field, p float64) Field {
	out := NewField(f.W, f.H)
	if len(f.Pix) == 0 {
		return out
	}
	cutoff := Percentile(f.Pix, p)
	for i, v := range f.Pix {
		if v >= cutoff {
			out.Pix[i] = v - cutoff
		}
	}
	peak := floats.Max(out.Pix)
	if peak <= 0 {
		return out
	}
	for i, v := range out.Pix {
		out.Pix[i] = v / peak
	}
	return out
}
