// Package detect wraps the external object-detection capability. The
// detector applies the confidence threshold itself: detections below the
// threshold are never returned, so threshold filtering is not a post-filter
// in the pipeline.
package detect

import (
	"context"

	"github.com/kara-analytics/image-pipeline/pkg/pipeline"
)

// Detector runs inference on one image file. Implementations are stateless
// across calls from the pipeline's perspective and must honor context
// cancellation, since the external model has unbounded worst-case latency on
// corrupt input.
type Detector interface {
	Detect(ctx context.Context, imagePath string) ([]pipeline.Detection, error)
}

// Func adapts a plain function to the Detector interface.
type Func func(ctx context.Context, imagePath string) ([]pipeline.Detection, error)

// Detect implements Detector.
func (f Func) Detect(ctx context.Context, imagePath string) ([]pipeline.Detection, error) {
	return f(ctx, imagePath)
}
