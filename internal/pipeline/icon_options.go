package pipeline

import (
	"fmt"
	"image"
	"image/color"
	"slices"
	"strings"

	"github.com/dunamismax/iconflow/internal/config"
	"github.com/dunamismax/iconflow/internal/domain"
	"github.com/dunamismax/iconflow/internal/icon"
	"github.com/dunamismax/iconflow/internal/palette"
)

// IconDefaults fills unset iconify settings from worker configuration.
type IconDefaults struct {
	cfg config.IconConfig
}

func NewIconDefaults(cfg config.IconConfig) IconDefaults {
	return IconDefaults{cfg: cfg}
}

// Options resolves step settings against the defaults. src is only consulted
// for palette=auto.
func (d IconDefaults) Options(settings *domain.IconSettings, src image.Image) (icon.Options, error) {
	var s domain.IconSettings
	if settings != nil {
		s = *settings
	}

	opts := icon.DefaultOptions()
	opts.Size = pick(s.Size, d.cfg.Size, opts.Size)
	opts.SpreadWindow = pick(s.SpreadWindow, d.cfg.SpreadWindow, opts.SpreadWindow)
	if d.cfg.DensityRadius > 0 {
		opts.DensityRadius = d.cfg.DensityRadius
	}
	opts.CutoffPercentile = pickPercentile(s.CutoffPercentile, d.cfg.CutoffPercentile)
	opts.BinarizePercentile = pickPercentile(s.BinarizePercentile, d.cfg.BinarizePercentile)
	opts.Revert = s.Revert
	if len(d.cfg.Checkpoints) > 0 {
		opts.Checkpoints = slices.Clone(d.cfg.Checkpoints)
	}

	switch strings.ToLower(strings.TrimSpace(s.ColorMode)) {
	case "", domain.ColorModeGrayscale:
		opts.Color = icon.Grayscale{Skew: pickFloat(s.Skew, d.cfg.Skew, 2.5)}
	case domain.ColorModePalette:
		colors, err := d.resolvePalette(s, src)
		if err != nil {
			return icon.Options{}, fmt.Errorf("%w: %w", icon.ErrInvalidConfiguration, err)
		}
		opts.Color = icon.Palette{Colors: colors}
	default:
		return icon.Options{}, fmt.Errorf("%w: unsupported color_mode %q", icon.ErrInvalidConfiguration, s.ColorMode)
	}

	if err := opts.Validate(); err != nil {
		return icon.Options{}, err
	}
	return opts, nil
}

func (d IconDefaults) resolvePalette(s domain.IconSettings, src image.Image) ([]color.RGBA, error) {
	spec := strings.TrimSpace(s.Palette)
	if spec == "" {
		spec = d.cfg.Palette
	}
	if spec == "" {
		spec = "ink"
	}
	if !palette.IsAuto(spec) {
		return palette.Parse(spec)
	}
	method, err := palette.ParseMethod(s.PaletteMethod)
	if err != nil {
		return nil, err
	}
	return palette.Extract(src, pick(s.PaletteSize, d.cfg.PaletteSize, 6), method), nil
}

func pick(values ...int) int {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

func pickFloat(values ...float64) float64 {
	for _, v := range values {
		if v > 0 {
			return v
		}
	}
	return 0
}

func pickPercentile(explicit *float64, fallback float64) float64 {
	if explicit != nil {
		return *explicit
	}
	return fallback
}
