package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"media-pipeline/internal/classifier"
	"media-pipeline/internal/logging"
	"media-pipeline/internal/metrics"
	"media-pipeline/internal/notifier"
	"media-pipeline/internal/probe"
	"media-pipeline/internal/store"
	"media-pipeline/internal/workers"
)

var (
	// ErrAlreadyRunning is returned when a run is requested for an asset
	// that already has one queued or executing.
	ErrAlreadyRunning = errors.New("pipeline run already in flight for asset")

	// ErrQueueFull is returned when the job queue cannot accept more work.
	ErrQueueFull = errors.New("pipeline queue full")

	// ErrNotCompleted is returned when reanalysis is requested for an
	// asset that is not in the completed state.
	ErrNotCompleted = errors.New("asset has not completed processing")

	// ErrStopped is returned when work is submitted after Stop.
	ErrStopped = errors.New("pipeline stopped")
)

// Prober extracts technical metadata from a media file.
type Prober interface {
	Probe(ctx context.Context, path string) probe.Result
}

// Thumbnailer produces a still image from a media file. An empty
// atTimestamp selects the extractor's default.
type Thumbnailer interface {
	Extract(ctx context.Context, sourcePath, destPath, atTimestamp string) (string, bool)
}

// AssetStore is the persistence capability the pipeline depends on.
// Updates must be atomic per call.
type AssetStore interface {
	Get(ctx context.Context, id string) (*store.Asset, error)
	Update(ctx context.Context, id string, u store.AssetUpdate) error
}

// Config tunes the pipeline executor.
type Config struct {
	// ThumbnailDir is where extracted thumbnails are written.
	ThumbnailDir string

	// Workers is the worker pool size; 0 selects an I/O-bound default.
	Workers int

	// QueueSize is the job queue depth; 0 selects 64.
	QueueSize int
}

type job struct {
	assetID      string
	sourcePath   string
	classifyOnly bool
}

// Pipeline runs assets through the processing stage sequence on a bounded
// worker pool.
type Pipeline struct {
	store      AssetStore
	notifier   notifier.Notifier
	prober     Prober
	thumbs     Thumbnailer
	classifier classifier.Classifier
	cfg        Config

	queue chan job
	wg    sync.WaitGroup

	mu       sync.Mutex
	inFlight map[string]struct{}
	stopped  bool

	baseCtx context.Context
	cancel  context.CancelFunc
}

// New assembles a pipeline. Call Start to launch the worker pool.
func New(st AssetStore, n notifier.Notifier, p Prober, t Thumbnailer, c classifier.Classifier, cfg Config) *Pipeline {
	if cfg.Workers <= 0 {
		cfg.Workers = workers.ForIO(8)
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Pipeline{
		store:      st,
		notifier:   n,
		prober:     p,
		thumbs:     t,
		classifier: c,
		cfg:        cfg,
		queue:      make(chan job, cfg.QueueSize),
		inFlight:   make(map[string]struct{}),
		baseCtx:    ctx,
		cancel:     cancel,
	}
}

// Start launches the worker pool.
func (p *Pipeline) Start() {
	logging.Info("Pipeline starting with %d workers (queue %d)", p.cfg.Workers, p.cfg.QueueSize)
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(i + 1)
	}
}

// Stop drains the queue, waits for in-flight runs, then releases
// resources. Submissions after Stop return ErrStopped.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
	p.cancel()
	logging.Info("Pipeline stopped")
}

func (p *Pipeline) worker(id int) {
	defer p.wg.Done()
	for j := range p.queue {
		metrics.PipelineQueueDepth.Dec()
		logging.Debug("worker %d: starting run for asset %s", id, j.assetID)
		p.process(j)
		logging.Debug("worker %d: finished run for asset %s", id, j.assetID)
	}
}

// Submit enqueues a full processing run for a freshly uploaded asset.
// The call returns immediately; the run executes on a worker.
func (p *Pipeline) Submit(assetID, sourcePath string) error {
	return p.enqueue(job{assetID: assetID, sourcePath: sourcePath})
}

// Reanalyze resets a completed asset's sensitivity verdict and enqueues a
// classification-only run. Technical metadata and the thumbnail are left
// untouched. Returns ErrNotCompleted for assets in any other state and
// ErrAlreadyRunning while a run is in flight.
func (p *Pipeline) Reanalyze(ctx context.Context, assetID string) error {
	if !p.acquire(assetID) {
		return ErrAlreadyRunning
	}

	a, err := p.store.Get(ctx, assetID)
	if err != nil {
		p.release(assetID)
		return err
	}
	if a.Status != store.StatusCompleted {
		p.release(assetID)
		return fmt.Errorf("%w: status is %s", ErrNotCompleted, a.Status)
	}

	// Reset before queueing so clients immediately observe the pending
	// verdict.
	if err := p.checkpoint(ctx, assetID, store.StatusAnalyzing, 70, "Reanalyzing content", store.AssetUpdate{
		Sensitivity: &store.Sensitivity{Status: store.SensitivityPending},
	}); err != nil {
		p.release(assetID)
		return err
	}

	if err := p.push(job{assetID: assetID, sourcePath: a.SourcePath, classifyOnly: true}); err != nil {
		p.restore(ctx, a)
		p.release(assetID)
		return err
	}
	return nil
}

// restore rolls an asset back to its pre-reanalysis state after the queue
// rejected the job, so it is not left stuck in analyzing with no run in
// flight.
func (p *Pipeline) restore(ctx context.Context, a *store.Asset) {
	sens := a.Sensitivity
	err := p.checkpoint(ctx, a.ID, a.Status, a.Progress, a.ProgressMessage, store.AssetUpdate{
		Sensitivity: &sens,
	})
	if err != nil {
		logging.Error("restoring asset %s after rejected reanalysis: %v", a.ID, err)
	}
}

func (p *Pipeline) enqueue(j job) error {
	if !p.acquire(j.assetID) {
		return ErrAlreadyRunning
	}
	if err := p.push(j); err != nil {
		p.release(j.assetID)
		return err
	}
	return nil
}

// push places a job on the queue. Callers must hold the in-flight slot.
func (p *Pipeline) push(j job) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return ErrStopped
	}
	select {
	case p.queue <- j:
		metrics.PipelineQueueDepth.Inc()
		return nil
	default:
		return ErrQueueFull
	}
}

func (p *Pipeline) acquire(assetID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, busy := p.inFlight[assetID]; busy {
		return false
	}
	p.inFlight[assetID] = struct{}{}
	return true
}

func (p *Pipeline) release(assetID string) {
	p.mu.Lock()
	delete(p.inFlight, assetID)
	p.mu.Unlock()
}

// process executes one job inside the pipeline's error boundary.
func (p *Pipeline) process(j job) {
	defer p.release(j.assetID)

	metrics.PipelineActiveRuns.Inc()
	defer metrics.PipelineActiveRuns.Dec()

	var err error
	if j.classifyOnly {
		err = p.runClassification(p.baseCtx, j.assetID, true)
	} else {
		err = p.run(p.baseCtx, j.assetID, j.sourcePath)
	}

	if err != nil {
		metrics.PipelineRunsTotal.WithLabelValues("failed").Inc()
		p.fail(p.baseCtx, j.assetID, err)
		return
	}
	metrics.PipelineRunsTotal.WithLabelValues("completed").Inc()
}

// run executes the full stage sequence for one asset.
func (p *Pipeline) run(ctx context.Context, assetID, sourcePath string) error {
	// Stage 1: validate the source file.
	if err := p.checkpoint(ctx, assetID, store.StatusProcessing, 10, "Validating upload", store.AssetUpdate{}); err != nil {
		return err
	}

	stageStart := time.Now()
	f, err := os.Open(sourcePath)
	if err != nil {
		return fmt.Errorf("source file not readable: %w", err)
	}
	if err := f.Close(); err != nil {
		logging.Warn("closing source file after validation: %v", err)
	}
	metrics.PipelineStageDuration.WithLabelValues("validate").Observe(time.Since(stageStart).Seconds())

	// Stage 2: probe technical metadata. Failure leaves fields null.
	stageStart = time.Now()
	pr := p.prober.Probe(ctx, sourcePath)
	metrics.PipelineStageDuration.WithLabelValues("probe").Observe(time.Since(stageStart).Seconds())

	if err := p.checkpoint(ctx, assetID, store.StatusProcessing, 30, "Extracting metadata", store.AssetUpdate{
		Duration:  pr.Duration,
		Width:     pr.Width,
		Height:    pr.Height,
		Codec:     pr.Codec,
		FrameRate: pr.FrameRate,
	}); err != nil {
		return err
	}

	// Stage 3: thumbnail. Failure leaves the field null.
	stageStart = time.Now()
	dest := filepath.Join(p.cfg.ThumbnailDir, assetID+".jpg")
	var u store.AssetUpdate
	if path, ok := p.thumbs.Extract(ctx, sourcePath, dest, ""); ok {
		u.ThumbnailPath = &path
	}
	metrics.PipelineStageDuration.WithLabelValues("thumbnail").Observe(time.Since(stageStart).Seconds())

	if err := p.checkpoint(ctx, assetID, store.StatusProcessing, 50, "Generating thumbnail", u); err != nil {
		return err
	}

	return p.runClassification(ctx, assetID, false)
}

// runClassification executes the analysis stages. For a full run it
// follows the thumbnail stage; for reanalysis it is the whole run.
func (p *Pipeline) runClassification(ctx context.Context, assetID string, reanalysis bool) error {
	if !reanalysis {
		// Stage 4: the asset is ready for byte-range path construction,
		// though streaming stays gated until completed.
		if err := p.checkpoint(ctx, assetID, store.StatusAnalyzing, 70, "Preparing content analysis", store.AssetUpdate{}); err != nil {
			return err
		}
	}

	// Stage 5: hand off to the classifier.
	if err := p.checkpoint(ctx, assetID, store.StatusAnalyzing, 90, "Running sensitivity analysis", store.AssetUpdate{}); err != nil {
		return err
	}

	a, err := p.store.Get(ctx, assetID)
	if err != nil {
		return err
	}

	stageStart := time.Now()
	result, err := p.classifier.Classify(ctx, a, func(percent int, message string) {
		// Classifier-internal progress (stage 6). Persistence failures
		// here are logged, not fatal: the final merge will surface a
		// broken store.
		if cerr := p.checkpoint(ctx, assetID, store.StatusAnalyzing, percent, message, store.AssetUpdate{}); cerr != nil {
			logging.Warn("classifier progress checkpoint for %s: %v", assetID, cerr)
		}
	})
	metrics.PipelineStageDuration.WithLabelValues("classify").Observe(time.Since(stageStart).Seconds())

	if err != nil {
		metrics.ClassificationsTotal.WithLabelValues("error").Inc()
		if uerr := p.store.Update(ctx, assetID, store.AssetUpdate{
			Sensitivity: &store.Sensitivity{Status: store.SensitivityError},
		}); uerr != nil {
			logging.Error("recording classification error for %s: %v", assetID, uerr)
		}
		return fmt.Errorf("classification failed: %w", err)
	}
	metrics.ClassificationsTotal.WithLabelValues(string(result.Status)).Inc()

	// Stage 7: merge the verdict and complete the run.
	message := "Processing complete. No sensitive content detected."
	if result.Status == store.SensitivityFlagged {
		message = "Processing complete. Sensitive content flagged for review."
	}

	sens := &store.Sensitivity{
		Status:         result.Status,
		OverallScore:   &result.OverallScore,
		CategoryScores: result.CategoryScores,
		Reasons:        result.Reasons,
	}
	if err := p.checkpoint(ctx, assetID, store.StatusCompleted, 100, message, store.AssetUpdate{
		Sensitivity: sens,
	}); err != nil {
		return err
	}

	p.notifier.Publish(assetID, EventSensitivityComplete, SensitivityPayload{
		AssetID: assetID,
		Status:  result.Status,
		Score:   result.OverallScore,
		Details: result.CategoryScores,
		Reasons: result.Reasons,
	})

	if updated, gerr := p.store.Get(ctx, assetID); gerr == nil {
		p.notifier.Publish(assetID, EventVideoReady, ReadyPayload{AssetID: assetID, Asset: updated})
	} else {
		logging.Warn("loading asset %s for ready event: %v", assetID, gerr)
	}

	return nil
}

// checkpoint persists a stage transition and then publishes the progress
// event. Persist-then-publish ordering is the pipeline's core contract.
func (p *Pipeline) checkpoint(ctx context.Context, assetID string, status store.Status, percent int, message string, extra store.AssetUpdate) error {
	u := extra
	u.Status = &status
	u.Progress = &percent
	u.ProgressMessage = &message

	if err := p.store.Update(ctx, assetID, u); err != nil {
		return fmt.Errorf("persisting checkpoint %d%%: %w", percent, err)
	}

	p.notifier.Publish(assetID, EventProcessingUpdate, ProgressPayload{
		AssetID:  assetID,
		Progress: percent,
		Message:  message,
		Status:   status,
	})
	return nil
}

// fail is the pipeline's top-level error boundary: it marks the asset
// failed and publishes one error event. Fields merged by completed stages
// are deliberately left in place.
func (p *Pipeline) fail(ctx context.Context, assetID string, cause error) {
	logging.Error("pipeline run for asset %s failed: %v", assetID, cause)

	failed := store.StatusFailed
	errMsg := cause.Error()
	progressMsg := "Processing failed: " + errMsg
	if err := p.store.Update(ctx, assetID, store.AssetUpdate{
		Status:          &failed,
		ProgressMessage: &progressMsg,
		ErrorMessage:    &errMsg,
	}); err != nil {
		logging.Error("marking asset %s failed: %v", assetID, err)
	}

	p.notifier.Publish(assetID, EventProcessingError, ErrorPayload{
		AssetID: assetID,
		Error:   errMsg,
	})
}
