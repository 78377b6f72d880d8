package palette

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"slices"
	"strings"

	"github.com/cenkalti/dominantcolor"
	"github.com/lucasb-eyer/go-colorful"
	"github.com/muesli/clusters"
)

type Method int

const (
	MethodDominantColor Method = iota
	MethodKMeans
)

func (m Method) String() string {
	switch m {
	case MethodKMeans:
		return "kmeans"
	default:
		return "dominantcolor"
	}
}

func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "dominantcolor", "dominant":
		return MethodDominantColor, nil
	case "kmeans":
		return MethodKMeans, nil
	default:
		return 0, fmt.Errorf("%w: unknown extraction method %q", ErrInvalidPalette, s)
	}
}

const (
	maxKMeansSamples = 12000
	kmeansIterations = 32
)

// Extract derives an n-color light-to-dark ramp from img. When extraction
// yields fewer than two distinct colors the built-in mono ramp is expanded
// instead.
func Extract(img image.Image, n int, method Method) []color.RGBA {
	n = max(MinColors, min(MaxColors, n))

	var found []color.RGBA
	switch method {
	case MethodKMeans:
		found = extractKMeans(img, n)
	default:
		found = extractDominant(img, n)
	}
	found = dedupe(found)
	if len(found) < MinColors {
		mono, _ := Parse("mono")
		return Interpolate(mono, n)
	}

	SortLightToDark(found)
	if len(found) == n {
		return found
	}
	return Interpolate(found, n)
}

func extractDominant(img image.Image, n int) []color.RGBA {
	out := make([]color.RGBA, 0, n)
	for _, c := range dominantcolor.FindWeight(img, n) {
		out = append(out, color.RGBA{R: c.RGBA.R, G: c.RGBA.G, B: c.RGBA.B, A: 255})
	}
	return out
}

func extractKMeans(img image.Image, n int) []color.RGBA {
	b := img.Bounds()
	width, height := b.Dx(), b.Dy()
	if width == 0 || height == 0 {
		return nil
	}

	step := 1
	if width*height > maxKMeansSamples {
		step = int(math.Sqrt(float64(width*height)/float64(maxKMeansSamples))) + 1
	}

	dataset := make(clusters.Observations, 0, min(width*height, maxKMeansSamples))
	for y := b.Min.Y; y < b.Max.Y; y += step {
		for x := b.Min.X; x < b.Max.X; x += step {
			r16, g16, b16, a16 := img.At(x, y).RGBA()
			if a16 == 0 {
				continue
			}
			dataset = append(dataset, clusters.Coordinates{
				float64(r16) / 65535.0,
				float64(g16) / 65535.0,
				float64(b16) / 65535.0,
			})
		}
	}
	k := min(n, len(dataset))
	if k == 0 {
		return nil
	}

	cc := partition(dataset, k)

	out := make([]color.RGBA, 0, len(cc))
	for _, c := range cc {
		if len(c.Observations) == 0 || len(c.Center) < 3 {
			continue
		}
		out = append(out, toRGBA(colorful.Color{R: c.Center[0], G: c.Center[1], B: c.Center[2]}))
	}
	return out
}

// partition runs Lloyd's k-means from farthest-point seeds so the same
// samples always produce the same clusters. Fewer than k clusters come back
// when the samples hold fewer than k distinct colors.
func partition(dataset clusters.Observations, k int) clusters.Clusters {
	cc := seedCenters(dataset, k)
	if len(cc) == 0 {
		return nil
	}

	assigned := make([]int, len(dataset))
	for i := range assigned {
		assigned[i] = -1
	}
	for range kmeansIterations {
		cc.Reset()
		changes := 0
		for p, point := range dataset {
			ci := cc.Nearest(point)
			cc[ci].Append(point)
			if assigned[p] != ci {
				assigned[p] = ci
				changes++
			}
		}
		if changes == 0 {
			break
		}
		cc.Recenter()
	}
	return cc
}

// seedCenters starts from the sample farthest from the mean, then keeps
// adding the sample farthest from every center chosen so far.
func seedCenters(dataset clusters.Observations, k int) clusters.Clusters {
	mean, err := dataset.Center()
	if err != nil {
		return nil
	}

	gaps := make([]float64, len(dataset))
	for i, o := range dataset {
		gaps[i] = o.Distance(mean)
	}

	var cc clusters.Clusters
	for len(cc) < k {
		next, gap := -1, 0.0
		for i, g := range gaps {
			if next < 0 || g > gap {
				next, gap = i, g
			}
		}
		if len(cc) > 0 && gap == 0 {
			break
		}
		center := slices.Clone(dataset[next].Coordinates())
		cc = append(cc, clusters.Cluster{Center: center})
		for i, o := range dataset {
			d := o.Distance(center)
			if len(cc) == 1 || d < gaps[i] {
				gaps[i] = d
			}
		}
	}
	return cc
}

func dedupe(colors []color.RGBA) []color.RGBA {
	out := make([]color.RGBA, 0, len(colors))
	for _, c := range colors {
		if !slices.Contains(out, c) {
			out = append(out, c)
		}
	}
	return out
}
