package domain

import "time"

// UsageLog is one accounting row per succeeded job. IconsSynthesized counts
// only iconify outputs; PixelsProcessed covers every output.
type UsageLog struct {
	UserID           string    `json:"user_id"`
	JobID            string    `json:"job_id"`
	IconsSynthesized int       `json:"icons_synthesized"`
	PixelsProcessed  int64     `json:"pixels_processed"`
	BytesSaved       int64     `json:"bytes_saved"`
	ComputeTimeMS    int64     `json:"compute_time_ms"`
	CreatedAt        time.Time `json:"created_at"`
}
