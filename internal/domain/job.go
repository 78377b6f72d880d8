package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dunamismax/iconflow/internal/palette"
)

const (
	JobStatusCreated    = "created"
	JobStatusQueued     = "queued"
	JobStatusProcessing = "processing"
	JobStatusSucceeded  = "succeeded"
	JobStatusFailed     = "failed"

	SourceTypeLocalFile   = "local_file"
	SourceTypeS3Presigned = "s3_presigned"

	ActionIconify = "iconify"
	ActionResize  = "resize"

	ColorModeGrayscale = "grayscale"
	ColorModePalette   = "palette"

	MaxIconSize = 1024
)

type CreateJobRequest struct {
	SourceType string         `json:"source_type"`
	WebhookURL string         `json:"webhook_url,omitempty"`
	ObjectKey  string         `json:"object_key,omitempty"`
	Pipeline   []PipelineStep `json:"pipeline"`
}

type PipelineStep struct {
	ID      string        `json:"id"`
	Action  string        `json:"action"`
	Width   int           `json:"width,omitempty"`
	Format  string        `json:"format,omitempty"`
	Quality int           `json:"quality,omitempty"`
	Icon    *IconSettings `json:"icon,omitempty"`
}

// IconSettings tunes an iconify step. Zero values fall back to the worker's
// configured defaults; percentiles are pointers so that 0 stays expressible.
type IconSettings struct {
	Size               int      `json:"size,omitempty"`
	CutoffPercentile   *float64 `json:"cutoff_percentile,omitempty"`
	BinarizePercentile *float64 `json:"binarize_percentile,omitempty"`
	SpreadWindow       int      `json:"spread_window,omitempty"`
	ColorMode          string   `json:"color_mode,omitempty"`
	Palette            string   `json:"palette,omitempty"`
	PaletteSize        int      `json:"palette_size,omitempty"`
	PaletteMethod      string   `json:"palette_method,omitempty"`
	Revert             bool     `json:"revert,omitempty"`
	Skew               float64  `json:"skew,omitempty"`
}

type Job struct {
	ID         string
	UserID     string
	Status     string
	SourceType string
	WebhookURL string
	Pipeline   []PipelineStep
	ObjectKey  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (r CreateJobRequest) Validate() error {
	sourceType := strings.ToLower(strings.TrimSpace(r.SourceType))
	if sourceType == "" {
		return errors.New("source_type is required")
	}
	if sourceType != SourceTypeLocalFile && sourceType != SourceTypeS3Presigned {
		return fmt.Errorf("unsupported source_type: %s", r.SourceType)
	}
	if sourceType == SourceTypeLocalFile && strings.TrimSpace(r.ObjectKey) == "" {
		return errors.New("object_key is required for source_type=local_file")
	}
	if len(r.Pipeline) == 0 {
		return errors.New("pipeline must contain at least one step")
	}
	seen := make(map[string]struct{}, len(r.Pipeline))
	for i, step := range r.Pipeline {
		if strings.TrimSpace(step.ID) == "" {
			return fmt.Errorf("pipeline[%d].id is required", i)
		}
		if _, dup := seen[step.ID]; dup {
			return fmt.Errorf("pipeline[%d].id %q is duplicated", i, step.ID)
		}
		seen[step.ID] = struct{}{}

		switch strings.ToLower(strings.TrimSpace(step.Action)) {
		case "":
			return fmt.Errorf("pipeline[%d].action is required", i)
		case ActionIconify:
			if step.Icon != nil {
				if err := step.Icon.Validate(); err != nil {
					return fmt.Errorf("pipeline[%d].icon: %w", i, err)
				}
			}
		case ActionResize:
			if step.Width <= 0 {
				return fmt.Errorf("pipeline[%d].width must be > 0 for action=resize", i)
			}
		default:
			return fmt.Errorf("pipeline[%d].action %q is not supported", i, step.Action)
		}
	}
	return nil
}

// Validate rejects explicitly set values outside their domain.
func (s IconSettings) Validate() error {
	if s.Size < 0 || s.Size > MaxIconSize {
		return fmt.Errorf("size must be within [1,%d]", MaxIconSize)
	}
	if err := validPercentile("cutoff_percentile", s.CutoffPercentile); err != nil {
		return err
	}
	if err := validPercentile("binarize_percentile", s.BinarizePercentile); err != nil {
		return err
	}
	if s.SpreadWindow < 0 || (s.SpreadWindow > 0 && s.SpreadWindow%2 == 0) {
		return fmt.Errorf("spread_window must be a positive odd integer, got %d", s.SpreadWindow)
	}
	if math.IsNaN(s.Skew) || math.IsInf(s.Skew, 0) || s.Skew < 0 {
		return fmt.Errorf("skew must be > 0, got %v", s.Skew)
	}

	switch strings.ToLower(strings.TrimSpace(s.ColorMode)) {
	case "", ColorModeGrayscale:
	case ColorModePalette:
		if s.PaletteSize != 0 && (s.PaletteSize < palette.MinColors || s.PaletteSize > palette.MaxColors) {
			return fmt.Errorf("palette_size must be within [%d,%d]", palette.MinColors, palette.MaxColors)
		}
		if _, err := palette.ParseMethod(s.PaletteMethod); err != nil {
			return err
		}
		if strings.TrimSpace(s.Palette) != "" && !palette.IsAuto(s.Palette) {
			if _, err := palette.Parse(s.Palette); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("unsupported color_mode: %s", s.ColorMode)
	}
	return nil
}

func validPercentile(name string, p *float64) error {
	if p == nil {
		return nil
	}
	if math.IsNaN(*p) || *p < 0 || *p > 100 {
		return fmt.Errorf("%s must be within [0,100], got %v", name, *p)
	}
	return nil
}

// OutputFormat reports the encoded format a step will produce when it can be
// known without the source image. Resize steps without an explicit format
// keep the source's format.
func (s PipelineStep) OutputFormat() (string, bool) {
	switch f := strings.ToLower(strings.TrimSpace(s.Format)); f {
	case "jpg", "jpeg":
		return "jpeg", true
	case "png", "webp":
		return f, true
	case "":
		if strings.EqualFold(strings.TrimSpace(s.Action), ActionIconify) {
			return "png", true
		}
		return "", false
	default:
		return "png", true
	}
}
