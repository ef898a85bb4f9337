// Package worker implements the analysis-phase execution loop: it consumes
// queued jobs, fans out to the analyzers, reduces their settled outcomes and
// writes the terminal job state.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sitewarden/site-auditor/internal/audit"
	"github.com/sitewarden/site-auditor/internal/metrics"
)

// Config controls Worker behavior.
type Config struct {
	// EventTopic is where terminal job events are published. Empty disables
	// publishing.
	EventTopic string
	// ReportPrefix is prepended to report artifact paths.
	ReportPrefix string
	// JobTimeout bounds the whole analysis phase of one job. Zero disables
	// the outer bound; each analyzer still owns its own timeout.
	JobTimeout time.Duration
}

// Worker consumes queue items and executes the analysis pipeline.
type Worker struct {
	queue     audit.Queue
	repo      audit.JobRepository
	blobStore audit.BlobStore
	publisher audit.Publisher
	hasher    audit.Hasher
	clock     audit.Clock
	perf      audit.PerformanceAnalyzer
	meta      audit.MetaTagAnalyzer
	images    audit.ImageAnalyzer
	cfg       Config
	logger    *zap.Logger
}

// New constructs a Worker.
func New(
	queue audit.Queue,
	repo audit.JobRepository,
	blobStore audit.BlobStore,
	publisher audit.Publisher,
	hasher audit.Hasher,
	clock audit.Clock,
	perf audit.PerformanceAnalyzer,
	meta audit.MetaTagAnalyzer,
	images audit.ImageAnalyzer,
	cfg Config,
	logger *zap.Logger,
) *Worker {
	return &Worker{
		queue:     queue,
		repo:      repo,
		blobStore: blobStore,
		publisher: publisher,
		hasher:    hasher,
		clock:     clock,
		perf:      perf,
		meta:      meta,
		images:    images,
		cfg:       cfg,
		logger:    logger,
	}
}

// Run blocks, consuming queue items until the context finishes.
func (w *Worker) Run(ctx context.Context) {
	for {
		item, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.logger.Debug("dequeued job", zap.String("job_id", item.JobID))
		w.processJob(ctx, item)
	}
}

// partial carries one analyzer's contribution; exactly one field is set per
// settled task.
type partial struct {
	perf *audit.PerformanceReport
	seo  *audit.SeoResult
	imgs *audit.ImageResult
}

func (w *Worker) processJob(ctx context.Context, item audit.QueueItem) {
	job, err := w.repo.Get(ctx, item.JobID)
	if err != nil {
		w.logger.Error("load job failed", zap.String("job_id", item.JobID), zap.Error(err))
		return
	}
	if job.Status != audit.StatusPending {
		w.logger.Warn("skipping job not in pending state",
			zap.String("job_id", job.ID), zap.String("status", string(job.Status)))
		return
	}

	started := w.clock.Now()
	job.Status = audit.StatusProcessing
	job.UpdatedAt = started
	if err := w.repo.Update(ctx, job); err != nil {
		w.logger.Error("mark job processing failed", zap.String("job_id", job.ID), zap.Error(err))
		return
	}

	metrics.IncActiveAnalyses()
	defer metrics.DecActiveAnalyses()

	jobCtx := ctx
	if w.cfg.JobTimeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, w.cfg.JobTimeout)
		defer cancel()
	}

	outcomes := audit.SettleAll(jobCtx,
		w.timed(audit.CategoryPerformance, func(taskCtx context.Context) (partial, error) {
			report, err := w.perf.Analyze(taskCtx, job.URL, job.DeviceType)
			if err != nil {
				return partial{}, err
			}
			return partial{perf: &report}, nil
		}),
		w.timed(audit.CategoryMetaTags, func(taskCtx context.Context) (partial, error) {
			seo, err := w.meta.Analyze(taskCtx, job.URL)
			if err != nil {
				return partial{}, err
			}
			return partial{seo: &seo}, nil
		}),
		w.timed(audit.CategoryImages, func(taskCtx context.Context) (partial, error) {
			imgs, err := w.images.Analyze(taskCtx, job.URL)
			if err != nil {
				return partial{}, err
			}
			return partial{imgs: &imgs}, nil
		}),
	)

	w.finishJob(ctx, job, started, outcomes)
}

// timed wraps a settle task with per-analyzer duration and outcome metrics.
func (w *Worker) timed(category audit.Category, task func(context.Context) (partial, error)) func(context.Context) (partial, error) {
	return func(taskCtx context.Context) (partial, error) {
		start := w.clock.Now()
		value, err := task(taskCtx)
		outcome := "success"
		if err != nil {
			outcome = "failure"
		}
		metrics.ObserveAnalyzer(string(category), outcome, w.clock.Now().Sub(start))
		return value, err
	}
}

var settleOrder = []audit.Category{
	audit.CategoryPerformance,
	audit.CategoryMetaTags,
	audit.CategoryImages,
}

// finishJob reduces the settled outcomes into the terminal job state. A job
// completes if at least one analyzer succeeded; it fails only when all three
// failed.
func (w *Worker) finishJob(ctx context.Context, job audit.Job, started time.Time, outcomes []audit.Outcome[partial]) {
	var results audit.Results
	var failures []string
	for i, outcome := range outcomes {
		if !outcome.OK() {
			failures = append(failures, fmt.Sprintf("%s: %v", settleOrder[i], outcome.Err))
			w.logger.Warn("analyzer failed",
				zap.String("job_id", job.ID),
				zap.String("category", string(settleOrder[i])),
				zap.Error(outcome.Err))
			continue
		}
		switch {
		case outcome.Value.perf != nil:
			results.Performance = &outcome.Value.perf.Performance
			job.Accessibility = outcome.Value.perf.Accessibility
		case outcome.Value.seo != nil:
			results.Seo = outcome.Value.seo
		case outcome.Value.imgs != nil:
			results.Images = outcome.Value.imgs
		}
	}

	now := w.clock.Now()
	elapsed := now.Sub(started).Milliseconds()
	job.ProcessingTimeMs = &elapsed
	job.UpdatedAt = now
	job.Performance = results.Performance
	job.Seo = results.Seo
	job.Images = results.Images

	if len(failures) == len(outcomes) {
		job.Status = audit.StatusFailed
		job.ErrorText = strings.Join(failures, "; ")
		job.Accessibility = nil
	} else {
		job.Status = audit.StatusCompleted
		score := audit.OverallScore(results)
		job.OverallScore = &score
		job.Recommendations = audit.Recommend(results)
		if uri, err := w.storeReport(ctx, job); err != nil {
			w.logger.Warn("report artifact upload failed",
				zap.String("job_id", job.ID), zap.Error(err))
		} else {
			job.ReportURI = uri
		}
	}

	if err := w.repo.Update(ctx, job); err != nil {
		w.logger.Error("terminal job update failed",
			zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	metrics.ObserveJob(string(job.Status), now.Sub(started))

	w.publishEvent(ctx, job)

	w.logger.Info("audit job finished",
		zap.String("job_id", job.ID),
		zap.String("status", string(job.Status)),
		zap.Int64("processing_time_ms", elapsed),
	)
}

// reportArtifact is the JSON document written to the blob store for each
// completed audit.
type reportArtifact struct {
	JobID           string                      `json:"job_id"`
	URL             string                      `json:"url"`
	Domain          string                      `json:"domain"`
	DeviceType      audit.DeviceType            `json:"device_type"`
	OverallScore    *int                        `json:"overall_score"`
	Performance     *audit.PerformanceResult    `json:"performance,omitempty"`
	Seo             *audit.SeoResult            `json:"seo,omitempty"`
	Accessibility   *audit.AccessibilityResult  `json:"accessibility,omitempty"`
	Images          *audit.ImageResult          `json:"images,omitempty"`
	Recommendations []audit.Recommendation      `json:"recommendations,omitempty"`
	GeneratedAt     time.Time                   `json:"generated_at"`
}

func (w *Worker) storeReport(ctx context.Context, job audit.Job) (string, error) {
	if w.blobStore == nil {
		return "", nil
	}
	data, err := json.Marshal(reportArtifact{
		JobID:           job.ID,
		URL:             job.URL,
		Domain:          job.Domain,
		DeviceType:      job.DeviceType,
		OverallScore:    job.OverallScore,
		Performance:     job.Performance,
		Seo:             job.Seo,
		Accessibility:   job.Accessibility,
		Images:          job.Images,
		Recommendations: job.Recommendations,
		GeneratedAt:     w.clock.Now(),
	})
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	hash, err := w.hasher.Hash(data)
	if err != nil {
		return "", fmt.Errorf("hash report: %w", err)
	}
	path := w.buildReportPath(job.ID, hash)
	uri, err := w.blobStore.PutObject(ctx, path, "application/json", data)
	if err != nil {
		return "", fmt.Errorf("put report: %w", err)
	}
	return uri, nil
}

func (w *Worker) buildReportPath(jobID, hash string) string {
	prefix := strings.Trim(w.cfg.ReportPrefix, "/")
	if prefix == "" {
		return fmt.Sprintf("%s/%s.json", jobID, hash)
	}
	return fmt.Sprintf("%s/%s/%s.json", prefix, jobID, hash)
}

func (w *Worker) publishEvent(ctx context.Context, job audit.Job) {
	if w.cfg.EventTopic == "" || w.publisher == nil {
		return
	}
	var elapsed int64
	if job.ProcessingTimeMs != nil {
		elapsed = *job.ProcessingTimeMs
	}
	event := audit.Event{
		JobID:            job.ID,
		URL:              job.URL,
		Domain:           job.Domain,
		Status:           job.Status,
		OverallScore:     job.OverallScore,
		ProcessingTimeMs: elapsed,
		ReportURI:        job.ReportURI,
		Timestamp:        w.clock.Now(),
	}
	if _, err := w.publisher.Publish(ctx, w.cfg.EventTopic, event); err != nil {
		w.logger.Warn("event publish failed",
			zap.String("job_id", job.ID), zap.Error(err))
	}
}
