package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"github.com/disintegration/imaging"

	"github.com/kara-analytics/image-pipeline/pkg/pipeline"
)

// detectResponse is the wire shape returned by the detection service.
type detectResponse struct {
	Detections []struct {
		Label      string     `json:"label"`
		Confidence float64    `json:"confidence"`
		Box        [4]float64 `json:"box"` // x1, y1, x2, y2
	} `json:"detections"`
}

// HTTPDetector calls a detection sidecar over HTTP. The image bytes are
// POSTed to /v1/detect with the confidence threshold and model version as
// query parameters.
type HTTPDetector struct {
	baseURL      string
	threshold    float64
	modelVersion string
	maxUploadDim int
	httpClient   *http.Client
}

// NewHTTPDetector creates a detector client with a fixed threshold and model
// version. maxUploadDim bounds the longest side of uploaded images; larger
// images are downscaled before upload. Zero disables downscaling.
func NewHTTPDetector(baseURL string, threshold float64, modelVersion string, maxUploadDim int) *HTTPDetector {
	return &HTTPDetector{
		baseURL:      baseURL,
		threshold:    threshold,
		modelVersion: modelVersion,
		maxUploadDim: maxUploadDim,
		httpClient:   &http.Client{},
	}
}

// ModelVersion returns the tag recorded on every detection produced through
// this adapter.
func (d *HTTPDetector) ModelVersion() string { return d.modelVersion }

// Threshold returns the confidence floor applied during detection.
func (d *HTTPDetector) Threshold() float64 { return d.threshold }

// Detect runs inference on one image. All failures wrap
// pipeline.ErrInference; the pipeline treats them as skippable per-image
// failures, not fatal to the run.
func (d *HTTPDetector) Detect(ctx context.Context, imagePath string) ([]pipeline.Detection, error) {
	payload, err := d.loadImage(imagePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pipeline.ErrInference, err)
	}

	endpoint := fmt.Sprintf("%s/v1/detect?%s", d.baseURL, url.Values{
		"confidence": {strconv.FormatFloat(d.threshold, 'f', -1, 64)},
		"model":      {d.modelVersion},
	}.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", pipeline.ErrInference, err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: call detector: %v", pipeline.ErrInference, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: detector returned status %d: %s", pipeline.ErrInference, resp.StatusCode, bytes.TrimSpace(body))
	}

	var parsed detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", pipeline.ErrInference, err)
	}

	detections := make([]pipeline.Detection, 0, len(parsed.Detections))
	for _, det := range parsed.Detections {
		if det.Confidence < d.threshold {
			// The service owns threshold filtering; anything below it here
			// violates the contract and is dropped.
			continue
		}
		detections = append(detections, pipeline.Detection{
			Label:      det.Label,
			Confidence: det.Confidence,
			Box: pipeline.BoundingBox{
				X1: det.Box[0],
				Y1: det.Box[1],
				X2: det.Box[2],
				Y2: det.Box[3],
			},
		})
	}
	return detections, nil
}

// loadImage reads the file and, when it decodes as an image larger than
// maxUploadDim, re-encodes a downscaled JPEG to keep uploads bounded.
// Undecodable bytes are sent as-is and left to the service to reject.
func (d *HTTPDetector) loadImage(imagePath string) ([]byte, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("read image: %v", err)
	}
	if d.maxUploadDim <= 0 {
		return data, nil
	}

	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return data, nil
	}
	bounds := img.Bounds()
	if bounds.Dx() <= d.maxUploadDim && bounds.Dy() <= d.maxUploadDim {
		return data, nil
	}

	resized := imaging.Fit(img, d.maxUploadDim, d.maxUploadDim, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, imaging.JPEG, imaging.JPEGQuality(85)); err != nil {
		return nil, fmt.Errorf("encode downscaled image: %v", err)
	}
	return buf.Bytes(), nil
}
