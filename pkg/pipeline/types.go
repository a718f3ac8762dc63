package pipeline

import (
	"math"
	"time"
)

// BoundingBox locates one detected object inside an image, in pixel
// coordinates with the origin at the top-left corner.
type BoundingBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Valid reports whether the box describes a non-empty region with finite
// coordinates.
func (b BoundingBox) Valid() bool {
	for _, v := range []float64{b.X1, b.Y1, b.X2, b.Y2} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return b.X1 < b.X2 && b.Y1 < b.Y2
}

// Detection is one labeled, scored, localized object returned by the
// detector for a single image.
type Detection struct {
	Label      string      `json:"label"`
	Confidence float64     `json:"confidence"`
	Box        BoundingBox `json:"box"`
}

// Association links an image back to its originating message. Channel is
// empty when no path component matched the known-channel set. MessageID is
// nil unless the candidate identifier was verified against the message
// store, so a non-nil MessageID always implies a non-empty Channel.
type Association struct {
	Channel   string `json:"channel,omitempty"`
	MessageID *int64 `json:"message_id,omitempty"`
}

// DetectionRecord is one persisted object detection. Records are created by
// a successful inference call and never updated afterwards.
type DetectionRecord struct {
	Fingerprint  string      `json:"fingerprint"`
	ImagePath    string      `json:"image_path"`
	MessageID    *int64      `json:"message_id,omitempty"`
	Channel      string      `json:"channel,omitempty"`
	Class        string      `json:"class"`
	Confidence   float64     `json:"confidence"`
	Box          BoundingBox `json:"box"`
	DetectedAt   time.Time   `json:"detected_at"`
	ModelVersion string      `json:"model_version"`
}

// ProcessedImage is one ledger entry marking an image as done. The ledger is
// the dedup authority: an image is processed iff its fingerprint has an
// entry, regardless of how many detections it produced.
type ProcessedImage struct {
	Fingerprint    string    `json:"fingerprint"`
	ImagePath      string    `json:"image_path"`
	ByteSize       int64     `json:"byte_size"`
	ModelVersion   string    `json:"model_version"`
	DetectionCount int       `json:"detection_count"`
	ProcessedAt    time.Time `json:"processed_at"`
}

// RunSummary is the only artifact a run exposes to schedulers or dashboards.
// Every discovered image lands in exactly one of Skipped, Persisted, Failed,
// or Cancelled, so the four always sum to Discovered.
type RunSummary struct {
	RunID      string         `json:"run_id"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Discovered int            `json:"discovered"`
	Skipped    int            `json:"skipped"`
	Persisted  int            `json:"persisted"`
	Failed     int            `json:"failed"`
	Cancelled  int            `json:"cancelled,omitempty"`
	Failures   map[string]int `json:"failures,omitempty"`
	Detections int            `json:"detections"`
	Store      *StoreSummary  `json:"store,omitempty"`
}

// ClassCount is one entry of the top-classes ranking.
type ClassCount struct {
	Class string `json:"class"`
	Count int64  `json:"count"`
}

// ChannelCount is the number of persisted detections for one channel.
type ChannelCount struct {
	Channel string `json:"channel"`
	Count   int64  `json:"count"`
}

// ConfidenceBuckets is a coarse histogram of persisted confidence scores.
type ConfidenceBuckets struct {
	High   int64 `json:"high"`   // >= 0.8
	Medium int64 `json:"medium"` // 0.5 - 0.8
	Low    int64 `json:"low"`    // < 0.5
}

// StoreSummary aggregates everything persisted so far, across all runs.
type StoreSummary struct {
	TotalDetections        int64             `json:"total_detections"`
	DistinctClasses        int64             `json:"distinct_classes"`
	MessagesWithDetections int64             `json:"messages_with_detections"`
	AvgConfidence          float64           `json:"avg_confidence"`
	TopClasses             []ClassCount      `json:"top_classes"`
	ChannelCounts          []ChannelCount    `json:"channel_counts"`
	ConfidenceBuckets      ConfidenceBuckets `json:"confidence_buckets"`
}
