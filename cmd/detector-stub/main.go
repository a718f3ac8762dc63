// Command detector-stub is a local stand-in for the object-detection
// service. It speaks the same /v1/detect protocol as the production sidecar
// and returns one synthetic detection per decodable image, which is enough
// to exercise the pipeline end to end without a model.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/disintegration/imaging"
)

const defaultAddr = ":8090"

type detection struct {
	Label      string     `json:"label"`
	Confidence float64    `json:"confidence"`
	Box        [4]float64 `json:"box"`
}

type detectResponse struct {
	Detections []detection `json:"detections"`
	Model      string      `json:"model"`
}

func main() {
	addr := os.Getenv("DETECTOR_STUB_ADDR")
	if addr == "" {
		addr = defaultAddr
	}
	label := os.Getenv("DETECTOR_STUB_LABEL")
	if label == "" {
		label = "box"
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	mux := http.NewServeMux()
	mux.HandleFunc("/health", handleHealth)
	mux.HandleFunc("/v1/detect", handleDetect(label, logger))

	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		logger.Info("detector stub listening", slog.String("addr", addr), slog.String("label", label))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", slog.String("error", err.Error()))
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

// handleDetect decodes the uploaded image and returns a single detection
// covering its center quarter at confidence 0.92, subject to the requested
// threshold. Undecodable input gets a 422, which the pipeline reports as an
// inference failure.
func handleDetect(label string, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		threshold := 0.0
		if v := r.URL.Query().Get("confidence"); v != "" {
			parsed, err := strconv.ParseFloat(v, 64)
			if err != nil {
				http.Error(w, "invalid confidence", http.StatusBadRequest)
				return
			}
			threshold = parsed
		}
		model := r.URL.Query().Get("model")
		if model == "" {
			model = "stub"
		}

		data, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "read body failed", http.StatusBadRequest)
			return
		}

		img, err := imaging.Decode(bytes.NewReader(data))
		if err != nil {
			logger.Warn("undecodable image", slog.String("error", err.Error()))
			http.Error(w, "undecodable image", http.StatusUnprocessableEntity)
			return
		}

		const confidence = 0.92
		resp := detectResponse{Model: model, Detections: []detection{}}
		if confidence >= threshold {
			bounds := img.Bounds()
			w4 := float64(bounds.Dx()) / 4
			h4 := float64(bounds.Dy()) / 4
			resp.Detections = append(resp.Detections, detection{
				Label:      label,
				Confidence: confidence,
				Box:        [4]float64{w4, h4, 3 * w4, 3 * h4},
			})
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}
