// Package ingest drives one end-to-end pass over an image corpus: discover,
// fingerprint, dedup-check, correlate, detect, persist. One image's failure
// never aborts the run.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kara-analytics/image-pipeline/internal/corpus"
	"github.com/kara-analytics/image-pipeline/internal/detect"
	"github.com/kara-analytics/image-pipeline/internal/fingerprint"
	"github.com/kara-analytics/image-pipeline/internal/metrics"
	"github.com/kara-analytics/image-pipeline/pkg/pipeline"
)

// DetectionStore is the persistence surface the orchestrator needs.
type DetectionStore interface {
	Exists(ctx context.Context, fingerprint string) (bool, error)
	Save(ctx context.Context, entry pipeline.ProcessedImage, records []pipeline.DetectionRecord) (bool, error)
	Summarize(ctx context.Context, topClasses int) (*pipeline.StoreSummary, error)
}

// Correlator resolves an image path to its message association.
type Correlator interface {
	Resolve(ctx context.Context, path string) pipeline.Association
}

// Options tunes one orchestrator instance.
type Options struct {
	Workers       int
	ModelVersion  string
	DetectTimeout time.Duration // zero disables the per-image timeout
	TopClasses    int           // top-classes limit in the run summary
}

const defaultTopClasses = 10

// Orchestrator coordinates the per-image pipeline across a bounded worker
// pool.
type Orchestrator struct {
	store      DetectionStore
	correlator Correlator
	detector   detect.Detector
	opts       Options
	logger     *slog.Logger
	metrics    *metrics.Metrics

	mu       sync.Mutex
	inflight map[string]struct{}
}

// New creates an orchestrator. Workers defaults to 1, TopClasses to 10.
func New(store DetectionStore, correlator Correlator, detector detect.Detector, opts Options, logger *slog.Logger, m *metrics.Metrics) *Orchestrator {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.TopClasses < 1 {
		opts.TopClasses = defaultTopClasses
	}
	return &Orchestrator{
		store:      store,
		correlator: correlator,
		detector:   detector,
		opts:       opts,
		logger:     logger,
		metrics:    m,
		inflight:   make(map[string]struct{}),
	}
}

// Run performs one complete pass over the corpus root. Only a failure to
// enumerate the corpus root is returned as an error; per-image failures are
// aggregated into the summary. Cancelling ctx stops dispatching new images
// while in-flight images run to completion, so a fingerprint is never left
// half-persisted; images the cancel left unprocessed are counted as
// cancelled, keeping the summary counters in balance.
func (o *Orchestrator) Run(ctx context.Context, root string) (*pipeline.RunSummary, error) {
	runID := uuid.New().String()
	started := time.Now().UTC()
	log := o.logger.With(slog.String("run_id", runID))

	paths, err := corpus.Discover(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("discover corpus: %w", err)
	}
	log.Info("corpus discovered", slog.String("root", root), slog.Int("images", len(paths)))

	t := newTally()

	g := new(errgroup.Group)
	g.SetLimit(o.opts.Workers)
	for i, path := range paths {
		if ctx.Err() != nil {
			t.cancelled(len(paths) - i)
			log.Warn("run cancelled, draining in-flight images",
				slog.Int("remaining", len(paths)-i))
			break
		}
		path := path
		g.Go(func() error {
			// The dispatch loop can block above the worker limit, so the
			// cancel is re-checked once a slot frees up.
			if ctx.Err() != nil {
				t.cancelled(1)
				return nil
			}
			o.processImage(ctx, log, path, t)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		// Workers never return errors; per-image failures are tallied.
		return nil, err
	}

	summary := t.summary(runID, started, len(paths))

	storeSummary, err := o.store.Summarize(context.WithoutCancel(ctx), o.opts.TopClasses)
	if err != nil {
		log.Warn("store summary unavailable", slog.String("error", err.Error()))
	} else {
		summary.Store = storeSummary
	}

	log.Info("run complete",
		slog.Int("discovered", summary.Discovered),
		slog.Int("skipped", summary.Skipped),
		slog.Int("persisted", summary.Persisted),
		slog.Int("failed", summary.Failed),
		slog.Int("detections", summary.Detections))
	return summary, nil
}

// processImage runs the per-image state machine:
// Discovered -> Hashed -> {Skipped | Correlated -> Detected -> Persisted | Failed}.
// It deliberately detaches from run cancellation so an image that started
// finishes its check-detect-persist sequence.
func (o *Orchestrator) processImage(runCtx context.Context, log *slog.Logger, path string, t *tally) {
	ctx := context.WithoutCancel(runCtx)
	log = log.With(slog.String("path", path))

	handle, err := fingerprint.Compute(path)
	if err != nil {
		o.fail(log, t, classify(err, pipeline.ErrRead))
		return
	}
	log = log.With(slog.String("fingerprint", handle.Digest))

	// Hold the fingerprint for the whole check+detect+persist sequence so
	// identical bytes under two paths cannot both reach the detector.
	if !o.acquire(handle.Digest) {
		o.skip(log, t, "identical content in flight")
		return
	}
	defer o.release(handle.Digest)

	exists, err := o.store.Exists(ctx, handle.Digest)
	if err != nil {
		o.fail(log, t, classify(err, pipeline.ErrPersist))
		return
	}
	if exists {
		o.skip(log, t, "already processed")
		return
	}

	assoc := o.correlator.Resolve(ctx, path)

	detectCtx := ctx
	if o.opts.DetectTimeout > 0 {
		var cancel context.CancelFunc
		detectCtx, cancel = context.WithTimeout(ctx, o.opts.DetectTimeout)
		defer cancel()
	}
	inferStart := time.Now()
	detections, err := o.detector.Detect(detectCtx, path)
	o.metrics.ObserveInference(time.Since(inferStart).Seconds())
	if err != nil {
		o.fail(log, t, classify(err, pipeline.ErrInference))
		return
	}

	records, err := buildRecords(handle, assoc, detections, o.opts.ModelVersion)
	if err != nil {
		o.fail(log, t, err)
		return
	}

	entry := pipeline.ProcessedImage{
		Fingerprint:    handle.Digest,
		ImagePath:      handle.Path,
		ByteSize:       handle.Size,
		ModelVersion:   o.opts.ModelVersion,
		DetectionCount: len(records),
		ProcessedAt:    time.Now().UTC(),
	}
	inserted, err := o.store.Save(ctx, entry, records)
	if err != nil {
		o.fail(log, t, classify(err, pipeline.ErrPersist))
		return
	}
	if !inserted {
		o.skip(log, t, "fingerprint committed by concurrent writer")
		return
	}

	t.persisted(len(records))
	o.metrics.ObserveImage("persisted")
	o.metrics.AddDetections(len(records))
	log.Info("image persisted",
		slog.Int("detections", len(records)),
		slog.String("channel", assoc.Channel))
}

// buildRecords converts detector output into persistable records, enforcing
// the detector contract (non-empty label, confidence in [0,1], valid box).
func buildRecords(handle *fingerprint.Handle, assoc pipeline.Association, detections []pipeline.Detection, modelVersion string) ([]pipeline.DetectionRecord, error) {
	now := time.Now().UTC()
	records := make([]pipeline.DetectionRecord, 0, len(detections))
	for _, det := range detections {
		if det.Label == "" {
			return nil, fmt.Errorf("%w: detector returned empty class label", pipeline.ErrInference)
		}
		if det.Confidence < 0 || det.Confidence > 1 {
			return nil, fmt.Errorf("%w: detector returned confidence %g outside [0,1]", pipeline.ErrInference, det.Confidence)
		}
		if !det.Box.Valid() {
			return nil, fmt.Errorf("%w: detector returned invalid bounding box %+v", pipeline.ErrInference, det.Box)
		}
		records = append(records, pipeline.DetectionRecord{
			Fingerprint:  handle.Digest,
			ImagePath:    handle.Path,
			MessageID:    assoc.MessageID,
			Channel:      assoc.Channel,
			Class:        det.Label,
			Confidence:   det.Confidence,
			Box:          det.Box,
			DetectedAt:   now,
			ModelVersion: modelVersion,
		})
	}
	return records, nil
}

func (o *Orchestrator) skip(log *slog.Logger, t *tally, why string) {
	t.skipped()
	o.metrics.ObserveImage("skipped")
	log.Info("image skipped", slog.String("reason", why))
}

func (o *Orchestrator) fail(log *slog.Logger, t *tally, err error) {
	reason := pipeline.ReasonFor(err)
	t.failed(reason)
	o.metrics.ObserveImage(reason)
	log.Error("image failed", slog.String("reason", reason), slog.String("error", err.Error()))
}

func (o *Orchestrator) acquire(digest string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inflight[digest]; busy {
		return false
	}
	o.inflight[digest] = struct{}{}
	return true
}

func (o *Orchestrator) release(digest string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inflight, digest)
}

// classify keeps an already-classified error as is and wraps anything else
// with the failure class of the pipeline stage it came from.
func classify(err error, stage error) error {
	if errors.Is(err, pipeline.ErrRead) || errors.Is(err, pipeline.ErrInference) || errors.Is(err, pipeline.ErrPersist) {
		return err
	}
	return fmt.Errorf("%w: %v", stage, err)
}
