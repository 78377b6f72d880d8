package cli

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dunamismax/iconflow/internal/domain"
	"github.com/dunamismax/iconflow/internal/icon"
	"github.com/dunamismax/iconflow/internal/pipeline"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var errTerminalOutput = errors.New("refusing to write binary image data to a terminal")

type renderOptions struct {
	size          int
	cutoff        float64
	binarize      float64
	spread        int
	colorMode     string
	palette       string
	paletteSize   int
	paletteMethod string
	revert        bool
	skew          float64
	output        string
	format        string
	debugDir      string
}

func newRenderCmd(g *globalOptions) *cobra.Command {
	opts := &renderOptions{}
	cmd := &cobra.Command{
		Use:   "render <image>",
		Short: "Synthesize an icon from an image",
		Long: `Synthesize an icon from an image.

Examples:
  # 32px grayscale icon next to the source
  iconify render logo.png

  # 64px icon shaded with the ember ramp, light on dark
  iconify render --size 64 --color-mode palette --palette ember --revert logo.png

  # Palette extracted from the source, written to stdout
  iconify render --color-mode palette --palette auto -o - photo.jpg > icon.png

  # Inspect every intermediate field
  iconify render --debug-dir ./stages logo.png`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, g, opts, args[0])
		},
	}

	f := cmd.Flags()
	f.IntVarP(&opts.size, "size", "s", 0, "icon width and height in pixels")
	f.Float64Var(&opts.cutoff, "cutoff", 0, "density percentile below which pixels are background (0-100)")
	f.Float64Var(&opts.binarize, "binarize", 0, "edge-energy percentile a pixel must exceed to count as an edge (0-100)")
	f.IntVar(&opts.spread, "spread", 0, "odd side of the window used to thicken edges")
	f.StringVarP(&opts.colorMode, "color-mode", "m", domain.ColorModeGrayscale, "shading mode (grayscale, palette)")
	f.StringVarP(&opts.palette, "palette", "p", "", `palette name, hex list, or "auto"`)
	f.IntVar(&opts.paletteSize, "palette-size", 0, "number of colors extracted when --palette=auto")
	f.StringVar(&opts.paletteMethod, "palette-method", "", "extraction method for --palette=auto (dominantcolor, kmeans)")
	f.BoolVarP(&opts.revert, "revert", "r", false, "invert shading so dense regions are light")
	f.Float64Var(&opts.skew, "skew", 0, "grayscale gamma; larger values darken sparse regions less")
	f.StringVarP(&opts.output, "output", "o", "", `output file, "-" for stdout (default: <image>.icon.<format>)`)
	f.StringVarP(&opts.format, "format", "f", "png", "output format (png, jpeg)")
	f.StringVar(&opts.debugDir, "debug-dir", "", "write every intermediate field as a PNG into this directory")
	return cmd
}

// settings maps flags onto the job settings type so the CLI and the worker
// share validation. Percentiles only count when passed explicitly.
func (o *renderOptions) settings(cmd *cobra.Command) *domain.IconSettings {
	s := &domain.IconSettings{
		Size:          o.size,
		SpreadWindow:  o.spread,
		ColorMode:     o.colorMode,
		Palette:       o.palette,
		PaletteSize:   o.paletteSize,
		PaletteMethod: o.paletteMethod,
		Revert:        o.revert,
		Skew:          o.skew,
	}
	if cmd.Flags().Changed("cutoff") {
		s.CutoffPercentile = &o.cutoff
	}
	if cmd.Flags().Changed("binarize") {
		s.BinarizePercentile = &o.binarize
	}
	return s
}

func runRender(cmd *cobra.Command, g *globalOptions, o *renderOptions, input string) error {
	logger := g.logger(cmd)

	format := strings.ToLower(strings.TrimSpace(o.format))
	if format == "jpg" {
		format = "jpeg"
	}
	if format != "png" && format != "jpeg" {
		return fmt.Errorf("unsupported output format: %s", o.format)
	}

	settings := o.settings(cmd)
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("invalid settings: %w", err)
	}

	src, srcFormat, err := loadImage(input)
	if err != nil {
		return err
	}
	b := src.Bounds()
	logger.Debug("image loaded", "path", input, "format", srcFormat, "width", b.Dx(), "height", b.Dy())

	opts, err := pipeline.NewIconDefaults(g.cfg.Icon).Options(settings, src)
	if err != nil {
		return err
	}
	logger.Debug("resolved options",
		"size", opts.Size,
		"cutoff", opts.CutoffPercentile,
		"binarize", opts.BinarizePercentile,
		"spread", opts.SpreadWindow,
		"revert", opts.Revert,
	)

	fields, err := icon.Stages(src, opts)
	if err != nil {
		return err
	}
	if o.debugDir != "" {
		if err := dumpFields(o.debugDir, fields); err != nil {
			return err
		}
		logger.Info("wrote intermediate fields", "dir", o.debugDir)
	}
	out := fields.Icon(opts)

	var buf bytes.Buffer
	if err := encode(&buf, out, format); err != nil {
		return err
	}

	if o.output == "-" {
		return writeStdout(cmd.OutOrStdout(), buf.Bytes())
	}

	dest := o.output
	if dest == "" {
		dest = strings.TrimSuffix(input, filepath.Ext(input)) + ".icon." + format
	}
	if err := os.WriteFile(dest, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write icon: %w", err)
	}
	logger.Info("icon written", "path", dest, "size", opts.Size, "bytes", buf.Len())
	return nil
}

func writeStdout(w io.Writer, data []byte) error {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return errTerminalOutput
	}
	_, err := w.Write(data)
	return err
}

func encode(w io.Writer, img image.Image, format string) error {
	switch format {
	case "jpeg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 90})
	default:
		return png.Encode(w, img)
	}
}

func dumpFields(dir string, fields icon.Fields) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create debug dir: %w", err)
	}

	stages := []struct {
		name  string
		field icon.Field
	}{
		{"1-intensity", fields.Intensity},
		{"2-edges", fields.Edges},
		{"3-spread", fields.Spread},
		{"4-mask", fields.Mask},
		{"5-density", fields.Density},
		{"6-cutoff", fields.Cutoff},
	}
	for _, st := range stages {
		if err := writePNG(filepath.Join(dir, st.name+".png"), st.field.Gray(fieldMax(st.field))); err != nil {
			return err
		}
	}
	return writePNG(filepath.Join(dir, "7-color.png"), fields.Color)
}

func fieldMax(f icon.Field) float64 {
	if len(f.Pix) == 0 {
		return 1
	}
	if m := slices.Max(f.Pix); m > 0 {
		return m
	}
	return 1
}

func writePNG(path string, img image.Image) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	return nil
}
