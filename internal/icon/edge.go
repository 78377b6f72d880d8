package icon

import (
	"errors"
	"fmt"
)

var ErrInvalidWindow = errors.New("window must be a positive odd integer")

var laplacian = [3][3]float64{
	{0, -1, 0},
	{-1, 4, -1},
	{0, -1, 0},
}

// Laplacian convolves f with a 4-neighbour Laplacian kernel. Borders are
// edge-extended and negative responses clamp to zero.
func Laplacian(f Field) Field {
	out := NewField(f.W, f.H)
	for y := 0; y < f.H; y++ {
		for x := 0; x < f.W; x++ {
			sum := 0.0
			for ky := -1; ky <= 1; ky++ {
				for kx := -1; kx <= 1; kx++ {
					k := laplacian[ky+1][kx+1]
					if k == 0 {
						continue
					}
					sum += k * f.At(x+kx, y+ky)
				}
			}
			if sum < 0 {
				sum = 0
			}
			out.Pix[out.index(x, y)] = sum
		}
	}
	return out
}

// Spread replaces every sample with the maximum inside the window x window
// square centred on it. The rectangle max is separable, so it runs as a
// horizontal pass followed by a vertical one.
func Spread(f Field, window int) (Field, error) {
	if window < 1 || window%2 == 0 {
		return Field{}, fmt.Errorf("%w: %d", ErrInvalidWindow, window)
	}
	r := window / 2

	rows := NewField(f.W, f.H)
	for y := 0; y < f.H; y++ {
		for x := 0; x < f.W; x++ {
			m := f.At(x-r, y)
			for dx := -r + 1; dx <= r; dx++ {
				if v := f.At(x+dx, y); v > m {
					m = v
				}
			}
			rows.Pix[rows.index(x, y)] = m
		}
	}

	out := NewField(f.W, f.H)
	for y := 0; y < f.H; y++ {
		for x := 0; x < f.W; x++ {
			m := rows.At(x, y-r)
			for dy := -r + 1; dy <= r; dy++ {
				if v := rows.At(x, y+dy); v > m {
					m = v
				}
			}
			out.Pix[out.index(x, y)] = m
		}
	}
	return out, nil
}
