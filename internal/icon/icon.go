package icon

import (
	"errors"
	"fmt"
	"image"
	"math"
	"slices"
)

var (
	ErrInvalidConfiguration = errors.New("invalid icon configuration")
	ErrEmptyImage           = errors.New("source image is empty")
)

type Options struct {
	// Size is the width and height of the produced icon.
	Size int
	// CutoffPercentile suppresses density below this percentile.
	CutoffPercentile float64
	// BinarizePercentile is the edge-energy percentile a pixel must exceed
	// to count as an edge.
	BinarizePercentile float64
	// SpreadWindow is the odd side of the max filter that thickens edges.
	SpreadWindow int
	// DensityRadius is k in the (2k+1) x (2k+1) density window.
	DensityRadius int
	Color         ColorStrategy
	Revert        bool
	// Checkpoints are the progressive downscale stops, largest first.
	Checkpoints []int
}

func DefaultOptions() Options {
	return Options{
		Size:               32,
		CutoffPercentile:   50,
		BinarizePercentile: 60,
		SpreadWindow:       11,
		DensityRadius:      2,
		Color:              Grayscale{Skew: 2.5},
		Revert:             false,
		Checkpoints:        slices.Clone(DefaultCheckpoints),
	}
}

func (o Options) Validate() error {
	if o.Size < 1 {
		return fmt.Errorf("%w: size must be >= 1, got %d", ErrInvalidConfiguration, o.Size)
	}
	if err := validPercentile("cutoff_percentile", o.CutoffPercentile); err != nil {
		return err
	}
	if err := validPercentile("binarize_percentile", o.BinarizePercentile); err != nil {
		return err
	}
	if o.SpreadWindow < 1 || o.SpreadWindow%2 == 0 {
		return fmt.Errorf("%w: spread_window: %w: %d", ErrInvalidConfiguration, ErrInvalidWindow, o.SpreadWindow)
	}
	if o.DensityRadius < 0 {
		return fmt.Errorf("%w: density_radius must be >= 0, got %d", ErrInvalidConfiguration, o.DensityRadius)
	}
	if o.Color == nil {
		return fmt.Errorf("%w: color strategy is required", ErrInvalidConfiguration)
	}
	if err := o.Color.validate(); err != nil {
		return err
	}
	for _, c := range o.Checkpoints {
		if c < 1 {
			return fmt.Errorf("%w: checkpoint must be >= 1, got %d", ErrInvalidConfiguration, c)
		}
	}
	return nil
}

func (g Grayscale) validate() error {
	if math.IsNaN(g.Skew) || math.IsInf(g.Skew, 0) || g.Skew <= 0 {
		return fmt.Errorf("%w: skew must be > 0, got %v", ErrInvalidConfiguration, g.Skew)
	}
	return nil
}

func (p Palette) validate() error {
	if len(p.Colors) == 0 {
		return fmt.Errorf("%w: palette must contain at least one color", ErrInvalidConfiguration)
	}
	return nil
}

func validPercentile(name string, p float64) error {
	if math.IsNaN(p) || p < 0 || p > 100 {
		return fmt.Errorf("%w: %s must be within [0,100], got %v", ErrInvalidConfiguration, name, p)
	}
	return nil
}

// Fields holds every intermediate product of one synthesis run.
type Fields struct {
	Intensity Field
	Edges     Field
	Spread    Field
	Mask      Field
	Density   Field
	Cutoff    Field
	Color     *image.RGBA
}

// Stages validates opts and runs every stage up to the color mapping.
func Stages(src image.Image, opts Options) (Fields, error) {
	if err := opts.Validate(); err != nil {
		return Fields{}, err
	}
	if src == nil || src.Bounds().Empty() {
		return Fields{}, ErrEmptyImage
	}

	var out Fields
	out.Intensity = Stretch(Luma(src))
	out.Edges = Laplacian(out.Intensity)
	spread, err := Spread(out.Edges, opts.SpreadWindow)
	if err != nil {
		return Fields{}, err
	}
	out.Spread = spread
	out.Mask = Binarize(out.Spread, opts.BinarizePercentile)
	out.Density = Density(out.Mask, opts.DensityRadius)
	out.Cutoff = Cutoff(out.Density, opts.CutoffPercentile)
	out.Color = Colorize(out.Cutoff, opts.Color, opts.Revert)
	return out, nil
}

// Synthesize produces an opts.Size x opts.Size icon from src. It fails only
// on invalid options or an empty raster, and does so before any stage runs.
func Synthesize(src image.Image, opts Options) (*image.RGBA, error) {
	fields, err := Stages(src, opts)
	if err != nil {
		return nil, err
	}
	return fields.Icon(opts), nil
}

// Icon downscales the color stage to the final opts.Size square. opts must
// be the options f was produced with.
func (f Fields) Icon(opts Options) *image.RGBA {
	checkpoints := slices.Clone(opts.Checkpoints)
	slices.SortFunc(checkpoints, func(a, b int) int { return b - a })
	return ProgressiveResize(f.Color, opts.Size, opts.Size, checkpoints)
}
