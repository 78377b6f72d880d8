//go:build govips && cgo

package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/davidbyttow/govips/v2/vips"
	"github.com/dunamismax/iconflow/internal/domain"
)

type govipsTransformer struct {
	icons IconDefaults
}

func (t govipsTransformer) Transform(ctx context.Context, input []byte, step domain.PipelineStep) ([]byte, string, int, int, error) {
	select {
	case <-ctx.Done():
		return nil, "", 0, 0, ctx.Err()
	default:
	}

	img, err := vips.NewImageFromBuffer(input)
	if err != nil {
		return nil, "", 0, 0, fmt.Errorf("decode source image: %w", err)
	}
	defer func() { img.Close() }()

	switch strings.ToLower(strings.TrimSpace(step.Action)) {
	case domain.ActionResize:
		err = applyGovipsResize(img, step.Width)
	case domain.ActionIconify:
		var iconRef *vips.ImageRef
		iconRef, err = t.applyGovipsIconify(img, step.Icon)
		if err == nil {
			img.Close()
			img = iconRef
		}
	default:
		return nil, "", 0, 0, fmt.Errorf("%w: %q", ErrInvalidStepAction, step.Action)
	}
	if err != nil {
		return nil, "", 0, 0, err
	}

	format := formatForStep(step, input)
	data, err := exportGovipsImage(img, format, step.Quality)
	if err != nil {
		return nil, "", 0, 0, err
	}

	return data, format, img.Width(), img.Height(), nil
}

func applyGovipsResize(img *vips.ImageRef, targetWidth int) error {
	if targetWidth <= 0 {
		return fmt.Errorf("resize action requires width > 0")
	}
	if img.Width() <= 0 {
		return fmt.Errorf("source image has invalid width")
	}

	scale := float64(targetWidth) / float64(img.Width())
	if scale <= 0 {
		return fmt.Errorf("invalid resize scale")
	}

	if err := img.Resize(scale, vips.KernelLanczos3); err != nil {
		return fmt.Errorf("resize image: %w", err)
	}
	return nil
}

// applyGovipsIconify hands vips-decoded pixels to the synthesis core and
// loads the result back so export goes through vips (which adds webp).
func (t govipsTransformer) applyGovipsIconify(img *vips.ImageRef, settings *domain.IconSettings) (*vips.ImageRef, error) {
	raw, _, err := img.ExportPng(vips.NewPngExportParams())
	if err != nil {
		return nil, fmt.Errorf("export source for synthesis: %w", err)
	}
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode source for synthesis: %w", err)
	}

	out, err := iconify(src, t.icons, settings)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		return nil, fmt.Errorf("encode icon: %w", err)
	}
	ref, err := vips.NewImageFromBuffer(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("load icon: %w", err)
	}
	return ref, nil
}

func formatForStep(step domain.PipelineStep, input []byte) string {
	if strings.TrimSpace(step.Format) != "" {
		return normalizeOutputFormat(strings.ToLower(strings.TrimSpace(step.Format)))
	}
	if strings.EqualFold(strings.TrimSpace(step.Action), domain.ActionIconify) {
		return "png"
	}

	switch vips.DetermineImageType(input) {
	case vips.ImageTypeJPEG:
		return "jpeg"
	case vips.ImageTypeWEBP:
		return "webp"
	default:
		return "png"
	}
}

func exportGovipsImage(img *vips.ImageRef, format string, quality int) ([]byte, error) {
	switch format {
	case "jpeg":
		params := vips.NewJpegExportParams()
		if quality > 0 && quality <= 100 {
			params.Quality = quality
		}
		data, _, err := img.ExportJpeg(params)
		if err != nil {
			return nil, fmt.Errorf("encode jpeg: %w", err)
		}
		return data, nil
	case "png":
		params := vips.NewPngExportParams()
		if quality > 0 && quality <= 100 {
			params.Quality = quality
		}
		data, _, err := img.ExportPng(params)
		if err != nil {
			return nil, fmt.Errorf("encode png: %w", err)
		}
		return data, nil
	case "webp":
		params := vips.NewWebpExportParams()
		if quality > 0 && quality <= 100 {
			params.Quality = quality
		}
		params.Lossless = quality <= 0
		data, _, err := img.ExportWebp(params)
		if err != nil {
			return nil, fmt.Errorf("encode webp: %w", err)
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported output format: %s", format)
	}
}
