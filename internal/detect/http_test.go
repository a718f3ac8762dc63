package detect

import (
	"bytes"
	"context"
	"errors"
	"image"
	_ "image/jpeg"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/kara-analytics/image-pipeline/pkg/pipeline"
)

func writeTempImage(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDetectRequestShape(t *testing.T) {
	var gotPath, gotConfidence, gotModel, gotContentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotConfidence = r.URL.Query().Get("confidence")
		gotModel = r.URL.Query().Get("model")
		gotContentType = r.Header.Get("Content-Type")
		io.WriteString(w, `{"detections": []}`)
	}))
	defer server.Close()

	d := NewHTTPDetector(server.URL, 0.3, "yolov8n", 0)
	path := writeTempImage(t, "a.jpg", []byte("not really a jpeg"))

	detections, err := d.Detect(context.Background(), path)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(detections) != 0 {
		t.Errorf("detections = %v, want none", detections)
	}
	if gotPath != "/v1/detect" {
		t.Errorf("path = %s, want /v1/detect", gotPath)
	}
	if gotConfidence != "0.3" {
		t.Errorf("confidence = %s, want 0.3", gotConfidence)
	}
	if gotModel != "yolov8n" {
		t.Errorf("model = %s, want yolov8n", gotModel)
	}
	if gotContentType != "application/octet-stream" {
		t.Errorf("content type = %s", gotContentType)
	}
}

func TestDetectMapsResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"detections": [
			{"label": "bottle", "confidence": 0.91, "box": [10, 20, 110, 220]},
			{"label": "person", "confidence": 0.45, "box": [0, 0, 50, 50]}
		]}`)
	}))
	defer server.Close()

	d := NewHTTPDetector(server.URL, 0.3, "yolov8n", 0)
	path := writeTempImage(t, "a.jpg", []byte("x"))

	detections, err := d.Detect(context.Background(), path)
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(detections) != 2 {
		t.Fatalf("got %d detections, want 2", len(detections))
	}
	first := detections[0]
	if first.Label != "bottle" || first.Confidence != 0.91 {
		t.Errorf("first detection = %+v", first)
	}
	want := pipeline.BoundingBox{X1: 10, Y1: 20, X2: 110, Y2: 220}
	if first.Box != want {
		t.Errorf("box = %+v, want %+v", first.Box, want)
	}
}

func TestDetectDropsSubThreshold(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"detections": [
			{"label": "bottle", "confidence": 0.95, "box": [0, 0, 10, 10]},
			{"label": "noise", "confidence": 0.1, "box": [0, 0, 10, 10]}
		]}`)
	}))
	defer server.Close()

	d := NewHTTPDetector(server.URL, 0.3, "yolov8n", 0)
	path := writeTempImage(t, "a.jpg", []byte("x"))

	detections, err := d.Detect(context.Background(), path)
	if err != nil {
		t.Fatal(err)
	}
	if len(detections) != 1 || detections[0].Label != "bottle" {
		t.Errorf("detections = %+v, want only the above-threshold one", detections)
	}
}

func TestDetectNon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model exploded", http.StatusInternalServerError)
	}))
	defer server.Close()

	d := NewHTTPDetector(server.URL, 0.3, "yolov8n", 0)
	path := writeTempImage(t, "a.jpg", []byte("x"))

	_, err := d.Detect(context.Background(), path)
	if err == nil {
		t.Fatal("Detect() returned nil error on HTTP 500")
	}
	if !errors.Is(err, pipeline.ErrInference) {
		t.Errorf("error = %v, want wrapping pipeline.ErrInference", err)
	}
}

func TestDetectUnreachableService(t *testing.T) {
	d := NewHTTPDetector("http://127.0.0.1:1", 0.3, "yolov8n", 0)
	path := writeTempImage(t, "a.jpg", []byte("x"))

	_, err := d.Detect(context.Background(), path)
	if err == nil {
		t.Fatal("Detect() returned nil error against an unreachable service")
	}
	if !errors.Is(err, pipeline.ErrInference) {
		t.Errorf("error = %v, want wrapping pipeline.ErrInference", err)
	}
}

func TestDetectMissingFile(t *testing.T) {
	d := NewHTTPDetector("http://127.0.0.1:1", 0.3, "yolov8n", 0)
	_, err := d.Detect(context.Background(), filepath.Join(t.TempDir(), "absent.jpg"))
	if !errors.Is(err, pipeline.ErrInference) {
		t.Errorf("error = %v, want wrapping pipeline.ErrInference", err)
	}
}

func TestDetectDownscalesLargeUploads(t *testing.T) {
	var uploaded []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uploaded, _ = io.ReadAll(r.Body)
		io.WriteString(w, `{"detections": []}`)
	}))
	defer server.Close()

	d := NewHTTPDetector(server.URL, 0.3, "yolov8n", 64)
	path := writeTempImage(t, "big.png", pngBytes(t, 300, 200))

	if _, err := d.Detect(context.Background(), path); err != nil {
		t.Fatal(err)
	}

	img, _, err := image.Decode(bytes.NewReader(uploaded))
	if err != nil {
		t.Fatalf("decode uploaded bytes: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() > 64 || bounds.Dy() > 64 {
		t.Errorf("uploaded image is %dx%d, want both sides <= 64", bounds.Dx(), bounds.Dy())
	}
}

func TestDetectSmallImagePassedThrough(t *testing.T) {
	original := pngBytes(t, 32, 16)
	var uploaded []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uploaded, _ = io.ReadAll(r.Body)
		io.WriteString(w, `{"detections": []}`)
	}))
	defer server.Close()

	d := NewHTTPDetector(server.URL, 0.3, "yolov8n", 64)
	path := writeTempImage(t, "small.png", original)

	if _, err := d.Detect(context.Background(), path); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(uploaded, original) {
		t.Error("small image was re-encoded instead of passed through")
	}
}
