package icon

import (
	"image"
	"image/draw"
	"math"

	xdraw "golang.org/x/image/draw"
)

// DefaultCheckpoints are the intermediate sizes a large field is halved
// through before the final resample.
var DefaultCheckpoints = []int{128, 64, 32}

var lanczos3 = &xdraw.Kernel{Support: 3, At: lanczos3At}

func lanczos3At(t float64) float64 {
	if t < 0 {
		t = -t
	}
	if t >= 3 {
		return 0
	}
	if t == 0 {
		return 1
	}
	pt := math.Pi * t
	return 3 * math.Sin(pt) * math.Sin(pt/3) / (pt * pt)
}

// HalvingCheckpoints lists the power-of-two sizes strictly between from and
// to, largest first.
func HalvingCheckpoints(from, to int) []int {
	var out []int
	c := 1
	for c*2 < from {
		c *= 2
	}
	for ; c > to; c /= 2 {
		if c < from {
			out = append(out, c)
		}
	}
	return out
}

// ProgressiveResize steps img down through each checkpoint it exceeds using a
// bilinear filter, then resamples to exactly w x h with Lanczos3. Checkpoints
// below the requested size are skipped so the result is never upscaled from
// an intermediate smaller than the target.
func ProgressiveResize(img image.Image, w, h int, checkpoints []int) *image.RGBA {
	cur := img
	for _, c := range checkpoints {
		if c < w || c < h {
			continue
		}
		b := cur.Bounds()
		if b.Dx() <= c && b.Dy() <= c {
			continue
		}
		step := image.NewRGBA(image.Rect(0, 0, min(b.Dx(), c), min(b.Dy(), c)))
		xdraw.BiLinear.Scale(step, step.Bounds(), cur, b, xdraw.Src, nil)
		cur = step
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	b := cur.Bounds()
	if b.Dx() == w && b.Dy() == h {
		draw.Draw(dst, dst.Bounds(), cur, b.Min, draw.Src)
		return dst
	}
	lanczos3.Scale(dst, dst.Bounds(), cur, b, xdraw.Src, nil)
	return dst
}
