package pipeline

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/dunamismax/iconflow/internal/config"
	"github.com/dunamismax/iconflow/internal/domain"
	"github.com/dunamismax/iconflow/internal/icon"
)

func TestIconDefaults_NilSettingsUseConfig(t *testing.T) {
	d := NewIconDefaults(config.IconConfig{
		Size:               48,
		CutoffPercentile:   40,
		BinarizePercentile: 70,
		SpreadWindow:       7,
		DensityRadius:      3,
		Skew:               1.5,
		Checkpoints:        []int{256, 128},
	})

	opts, err := d.Options(nil, nil)
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if opts.Size != 48 || opts.SpreadWindow != 7 || opts.DensityRadius != 3 {
		t.Fatalf("unexpected geometry: %+v", opts)
	}
	if opts.CutoffPercentile != 40 || opts.BinarizePercentile != 70 {
		t.Fatalf("unexpected percentiles: cutoff=%v binarize=%v", opts.CutoffPercentile, opts.BinarizePercentile)
	}
	g, ok := opts.Color.(icon.Grayscale)
	if !ok || g.Skew != 1.5 {
		t.Fatalf("expected grayscale skew 1.5, got %#v", opts.Color)
	}
	if len(opts.Checkpoints) != 2 || opts.Checkpoints[0] != 256 {
		t.Fatalf("unexpected checkpoints: %v", opts.Checkpoints)
	}
}

func TestIconDefaults_StepOverridesConfig(t *testing.T) {
	zero := 0.0
	d := testIconDefaults()

	opts, err := d.Options(&domain.IconSettings{
		Size:               64,
		CutoffPercentile:   &zero,
		BinarizePercentile: &zero,
		SpreadWindow:       3,
		Revert:             true,
		Skew:               4,
	}, nil)
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if opts.Size != 64 || opts.SpreadWindow != 3 || !opts.Revert {
		t.Fatalf("step values not applied: %+v", opts)
	}
	if opts.CutoffPercentile != 0 || opts.BinarizePercentile != 0 {
		t.Fatalf("explicit zero percentiles lost: %+v", opts)
	}
	if g := opts.Color.(icon.Grayscale); g.Skew != 4 {
		t.Fatalf("expected skew 4, got %v", g.Skew)
	}
}

func TestIconDefaults_Palettes(t *testing.T) {
	d := testIconDefaults()

	opts, err := d.Options(&domain.IconSettings{ColorMode: domain.ColorModePalette}, nil)
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	p, ok := opts.Color.(icon.Palette)
	if !ok || len(p.Colors) != 6 {
		t.Fatalf("expected the configured 6-entry ink ramp, got %#v", opts.Color)
	}

	opts, err = d.Options(&domain.IconSettings{ColorMode: domain.ColorModePalette, Palette: "#ffffff,#000000"}, nil)
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if p := opts.Color.(icon.Palette); len(p.Colors) != 2 || p.Colors[1] != (color.RGBA{A: 255}) {
		t.Fatalf("unexpected hex palette: %v", p.Colors)
	}

	src := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := 0; y < 32; y++ {
		for x := 0; x < 32; x++ {
			c := color.RGBA{R: 230, G: 40, B: 40, A: 255}
			if x >= 16 {
				c = color.RGBA{R: 20, G: 60, B: 200, A: 255}
			}
			src.SetRGBA(x, y, c)
		}
	}
	opts, err = d.Options(&domain.IconSettings{
		ColorMode:     domain.ColorModePalette,
		Palette:       "auto",
		PaletteSize:   4,
		PaletteMethod: "kmeans",
	}, src)
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if p := opts.Color.(icon.Palette); len(p.Colors) != 4 {
		t.Fatalf("expected 4 extracted colors, got %d", len(p.Colors))
	}
}

func TestIconDefaults_RejectsInvalid(t *testing.T) {
	d := testIconDefaults()
	cases := map[string]*domain.IconSettings{
		"color mode": {ColorMode: "sepia"},
		"palette":    {ColorMode: domain.ColorModePalette, Palette: "nope"},
		"method":     {ColorMode: domain.ColorModePalette, Palette: "auto", PaletteMethod: "median"},
		"window":     {SpreadWindow: 4},
	}
	for name, settings := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := d.Options(settings, image.NewRGBA(image.Rect(0, 0, 4, 4)))
			if !errors.Is(err, icon.ErrInvalidConfiguration) {
				t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
			}
		})
	}
}
