// Package runner wires a complete ingestion pipeline from configuration.
// It is the embeddable surface for schedulers and the CLI alike.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/kara-analytics/image-pipeline/internal/correlate"
	"github.com/kara-analytics/image-pipeline/internal/detect"
	"github.com/kara-analytics/image-pipeline/internal/ingest"
	"github.com/kara-analytics/image-pipeline/internal/metrics"
	"github.com/kara-analytics/image-pipeline/internal/store"
	"github.com/kara-analytics/image-pipeline/pkg/pipeline"
)

const summaryTopClasses = 10

// Config holds everything needed to assemble a pipeline. All values are
// fixed for the lifetime of the Runner; there is no mid-run reconfiguration.
type Config struct {
	CorpusRoot          string
	Channels            []string // known-channel allow-list
	ConfidenceThreshold float64
	ModelVersion        string
	Workers             int
	ManifestPath        string // optional scraper manifest
	DatabaseDriver      string // "postgres" or "sqlite"
	DatabaseDSN         string
	DetectorURL         string
	DetectTimeout       time.Duration // per-image inference timeout, zero disables
	MaxUploadDim        int           // downscale bound for detector uploads, zero disables
}

// Runner holds an initialized pipeline: store, correlator, detector,
// orchestrator, and metrics.
type Runner struct {
	cfg     Config
	store   *store.Store
	orch    *ingest.Orchestrator
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New opens the store and assembles the pipeline described by cfg.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Runner, error) {
	if logger == nil {
		logger = slog.Default()
	}

	st, err := store.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("initialize store: %w", err)
	}

	manifest, err := correlate.LoadManifest(cfg.ManifestPath)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("initialize correlator: %w", err)
	}
	correlator := correlate.New(cfg.CorpusRoot, cfg.Channels, manifest, st, logger)

	detector := detect.NewHTTPDetector(
		cfg.DetectorURL,
		cfg.ConfidenceThreshold,
		cfg.ModelVersion,
		cfg.MaxUploadDim,
	)

	m := metrics.New()
	orch := ingest.New(st, correlator, detector, ingest.Options{
		Workers:       cfg.Workers,
		ModelVersion:  cfg.ModelVersion,
		DetectTimeout: cfg.DetectTimeout,
		TopClasses:    summaryTopClasses,
	}, logger, m)

	return &Runner{
		cfg:     cfg,
		store:   st,
		orch:    orch,
		metrics: m,
		logger:  logger,
	}, nil
}

// Run performs one ingestion pass over the configured corpus root.
func (r *Runner) Run(ctx context.Context) (*pipeline.RunSummary, error) {
	if r.cfg.CorpusRoot == "" {
		return nil, fmt.Errorf("corpus root is not configured")
	}
	return r.orch.Run(ctx, r.cfg.CorpusRoot)
}

// Summarize returns the store's aggregate summary without running ingestion.
func (r *Runner) Summarize(ctx context.Context) (*pipeline.StoreSummary, error) {
	return r.store.Summarize(ctx, summaryTopClasses)
}

// LoadMessages imports the scraper's JSON exports under dir into the message
// store and returns the number of inserted messages.
func (r *Runner) LoadMessages(ctx context.Context, dir string) (int, error) {
	messages, err := store.LoadMessageFiles(dir)
	if err != nil {
		return 0, err
	}
	if err := r.store.InsertMessages(ctx, messages); err != nil {
		return 0, err
	}
	return len(messages), nil
}

// MetricsHandler exposes the pipeline's Prometheus registry.
func (r *Runner) MetricsHandler() http.Handler {
	return r.metrics.Handler()
}

// Close releases the store.
func (r *Runner) Close() error {
	return r.store.Close()
}
