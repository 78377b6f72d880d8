package palette

import (
	"errors"
	"image"
	"image/color"
	"slices"
	"testing"

	"github.com/muesli/clusters"
)

func TestParseBuiltinAndHex(t *testing.T) {
	for _, name := range Names() {
		colors, err := Parse(name)
		if err != nil {
			t.Fatalf("parse builtin %s: %v", name, err)
		}
		if len(colors) < MinColors {
			t.Fatalf("builtin %s has %d colors", name, len(colors))
		}
		if luma(colors[0]) < luma(colors[len(colors)-1]) {
			t.Fatalf("builtin %s should run light to dark", name)
		}
	}

	colors, err := Parse("#fff, 336699 ,#000000")
	if err != nil {
		t.Fatalf("parse hex list: %v", err)
	}
	want := []color.RGBA{
		{R: 255, G: 255, B: 255, A: 255},
		{R: 0x33, G: 0x66, B: 0x99, A: 255},
		{A: 255},
	}
	for i := range want {
		if colors[i] != want[i] {
			t.Fatalf("entry %d: expected %v, got %v", i, want[i], colors[i])
		}
	}
}

func TestParseRejectsBadInput(t *testing.T) {
	for _, spec := range []string{"", "#fff", "#fff,#zzzzzz", "nope"} {
		if _, err := Parse(spec); !errors.Is(err, ErrInvalidPalette) {
			t.Fatalf("spec %q: expected ErrInvalidPalette, got %v", spec, err)
		}
	}
}

func TestInterpolateKeepsEndpoints(t *testing.T) {
	stops := []color.RGBA{{R: 255, G: 255, B: 255, A: 255}, {A: 255}}
	out := Interpolate(stops, 5)
	if len(out) != 5 {
		t.Fatalf("expected 5 colors, got %d", len(out))
	}
	if out[0] != stops[0] || out[4] != stops[1] {
		t.Fatalf("endpoints changed: %v", out)
	}
	for i := 1; i < len(out); i++ {
		if luma(out[i]) > luma(out[i-1]) {
			t.Fatalf("interpolated ramp is not monotonic: %v", out)
		}
	}
}

func TestSortLightToDark(t *testing.T) {
	colors := []color.RGBA{{A: 255}, {R: 200, G: 200, B: 200, A: 255}, {R: 90, G: 90, B: 90, A: 255}}
	SortLightToDark(colors)
	if colors[0].R != 200 || colors[2].R != 0 {
		t.Fatalf("unexpected order %v", colors)
	}
}

func TestExtractProducesMonotonicRamp(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 60, 60))
	for y := 0; y < 60; y++ {
		for x := 0; x < 60; x++ {
			switch {
			case x < 20:
				img.Set(x, y, color.RGBA{R: 240, G: 230, B: 200, A: 255})
			case x < 40:
				img.Set(x, y, color.RGBA{R: 200, G: 40, B: 40, A: 255})
			default:
				img.Set(x, y, color.RGBA{R: 20, G: 20, B: 70, A: 255})
			}
		}
	}

	for _, method := range []Method{MethodDominantColor, MethodKMeans} {
		ramp := Extract(img, 6, method)
		if len(ramp) != 6 {
			t.Fatalf("%s: expected 6 colors, got %d", method, len(ramp))
		}
		if luma(ramp[0]) < luma(ramp[len(ramp)-1]) {
			t.Fatalf("%s: ramp should run light to dark: %v", method, ramp)
		}
	}
}

func TestExtractKMeansIsReproducible(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 80, 80))
	for y := 0; y < 80; y++ {
		for x := 0; x < 80; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 3), G: uint8(y * 3), B: uint8((x * y) % 251), A: 255})
		}
	}

	first := Extract(img, 5, MethodKMeans)
	for i := 0; i < 5; i++ {
		if again := Extract(img, 5, MethodKMeans); !slices.Equal(first, again) {
			t.Fatalf("run %d: palette changed from %v to %v", i, first, again)
		}
	}
}

func TestPartitionSeparatesGroups(t *testing.T) {
	var dataset clusters.Observations
	for _, base := range []clusters.Coordinates{{0, 0, 0}, {1, 1, 1}, {1, 0, 0}} {
		for j := 0; j < 4; j++ {
			jitter := float64(j) * 0.01
			dataset = append(dataset, clusters.Coordinates{
				min(1, max(0, base[0]+jitter)),
				min(1, max(0, base[1]-jitter)),
				base[2],
			})
		}
	}

	cc := partition(dataset, 3)
	if len(cc) != 3 {
		t.Fatalf("expected 3 clusters, got %d", len(cc))
	}
	for i, c := range cc {
		if len(c.Observations) != 4 {
			t.Fatalf("cluster %d: expected 4 observations, got %d", i, len(c.Observations))
		}
	}
}

func TestPartitionStopsAtDistinctColors(t *testing.T) {
	dataset := clusters.Observations{
		clusters.Coordinates{0.2, 0.2, 0.2},
		clusters.Coordinates{0.2, 0.2, 0.2},
		clusters.Coordinates{0.8, 0.1, 0.1},
	}
	if cc := partition(dataset, 3); len(cc) != 2 {
		t.Fatalf("expected 2 clusters for 2 distinct colors, got %d", len(cc))
	}
}

func TestExtractFlatImageFallsBackToMono(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 10, 10))
	ramp := Extract(img, 4, MethodKMeans)
	if len(ramp) != 4 {
		t.Fatalf("expected 4 colors, got %d", len(ramp))
	}
	if ramp[0] != (color.RGBA{R: 255, G: 255, B: 255, A: 255}) {
		t.Fatalf("expected mono ramp to start white, got %v", ramp[0])
	}
}

func TestParseMethod(t *testing.T) {
	if m, err := ParseMethod("KMeans"); err != nil || m != MethodKMeans {
		t.Fatalf("expected kmeans, got %v %v", m, err)
	}
	if m, err := ParseMethod(""); err != nil || m != MethodDominantColor {
		t.Fatalf("expected dominantcolor default, got %v %v", m, err)
	}
	if _, err := ParseMethod("median"); err == nil {
		t.Fatal("expected error for unknown method")
	}
}
