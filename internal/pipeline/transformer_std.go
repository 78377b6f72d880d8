package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"math"
	"strings"

	"github.com/dunamismax/iconflow/internal/domain"
	"github.com/dunamismax/iconflow/internal/icon"
	_ "golang.org/x/image/webp"
)

type stdlibTransformer struct {
	icons IconDefaults
}

func (t stdlibTransformer) Transform(ctx context.Context, input []byte, step domain.PipelineStep) ([]byte, string, int, int, error) {
	select {
	case <-ctx.Done():
		return nil, "", 0, 0, ctx.Err()
	default:
	}

	src, srcFormat, err := image.Decode(bytes.NewReader(input))
	if err != nil {
		return nil, "", 0, 0, fmt.Errorf("decode source image: %w", err)
	}

	var out image.Image
	switch strings.ToLower(strings.TrimSpace(step.Action)) {
	case domain.ActionIconify:
		out, err = iconify(src, t.icons, step.Icon)
	case domain.ActionResize:
		out, err = resizeToWidth(src, step.Width)
	default:
		return nil, "", 0, 0, fmt.Errorf("%w: %q", ErrInvalidStepAction, step.Action)
	}
	if err != nil {
		return nil, "", 0, 0, err
	}

	format := normalizeOutputFormat(strings.ToLower(strings.TrimSpace(step.Format)))
	if strings.TrimSpace(step.Format) == "" {
		format = defaultFormatForAction(step.Action, srcFormat)
	}

	output, err := encodeImage(out, format, step.Quality)
	if err != nil {
		return nil, "", 0, 0, err
	}

	bounds := out.Bounds()
	return output, format, bounds.Dx(), bounds.Dy(), nil
}

func iconify(src image.Image, defaults IconDefaults, settings *domain.IconSettings) (image.Image, error) {
	opts, err := defaults.Options(settings, src)
	if err != nil {
		return nil, err
	}
	out, err := icon.Synthesize(src, opts)
	if err != nil {
		return nil, fmt.Errorf("synthesize icon: %w", err)
	}
	return out, nil
}

func resizeToWidth(src image.Image, width int) (image.Image, error) {
	if width <= 0 {
		return nil, errors.New("resize action requires width > 0")
	}

	srcBounds := src.Bounds()
	srcW := srcBounds.Dx()
	srcH := srcBounds.Dy()
	if srcW == 0 || srcH == 0 {
		return nil, errors.New("source image has invalid dimensions")
	}

	scale := float64(width) / float64(srcW)
	height := int(math.Round(float64(srcH) * scale))
	if height < 1 {
		height = 1
	}

	return icon.ProgressiveResize(src, width, height, icon.HalvingCheckpoints(max(srcW, srcH), max(width, height))), nil
}

// Icons are flat-shaded, so they default to png regardless of source.
func defaultFormatForAction(action, srcFormat string) string {
	if strings.EqualFold(strings.TrimSpace(action), domain.ActionIconify) {
		return "png"
	}
	return normalizeOutputFormat(strings.ToLower(srcFormat))
}

func encodeImage(img image.Image, format string, quality int) ([]byte, error) {
	var buf bytes.Buffer

	switch format {
	case "jpeg":
		if quality <= 0 || quality > 100 {
			quality = 80
		}
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
	case "png":
		encoder := png.Encoder{CompressionLevel: png.DefaultCompression}
		if err := encoder.Encode(&buf, img); err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
	case "webp":
		return nil, errors.New("webp export requires govips build tag")
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}

	return buf.Bytes(), nil
}
