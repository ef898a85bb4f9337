package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sitewarden/site-auditor/internal/audit"
	"github.com/sitewarden/site-auditor/internal/hash/sha256"
	"github.com/sitewarden/site-auditor/internal/metrics"
	pubmemory "github.com/sitewarden/site-auditor/internal/publisher/memory"
	queuememory "github.com/sitewarden/site-auditor/internal/queue/memory"
	storememory "github.com/sitewarden/site-auditor/internal/storage/memory"
)

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

type fakePerf struct {
	report audit.PerformanceReport
	err    error
}

func (f fakePerf) Analyze(context.Context, string, audit.DeviceType) (audit.PerformanceReport, error) {
	return f.report, f.err
}

type fakeMeta struct {
	result audit.SeoResult
	err    error
}

func (f fakeMeta) Analyze(context.Context, string) (audit.SeoResult, error) {
	return f.result, f.err
}

type fakeImages struct {
	result audit.ImageResult
	err    error
}

func (f fakeImages) Analyze(context.Context, string) (audit.ImageResult, error) {
	return f.result, f.err
}

type fixture struct {
	worker    *Worker
	repo      *storememory.JobRepository
	queue     *queuememory.Queue
	blobs     *storememory.BlobStore
	publisher *pubmemory.Publisher
}

func newFixture(t *testing.T, perf audit.PerformanceAnalyzer, meta audit.MetaTagAnalyzer, imgs audit.ImageAnalyzer) *fixture {
	t.Helper()
	metrics.Init()

	repo := storememory.NewJobRepository()
	q := queuememory.NewQueue(8)
	blobs := storememory.NewBlobStore()
	pub := pubmemory.New()

	w := New(q, repo, blobs, pub, sha256.New(), realClock{}, perf, meta, imgs, Config{
		EventTopic:   "audit-events",
		ReportPrefix: "reports",
	}, zap.NewNop())

	return &fixture{worker: w, repo: repo, queue: q, blobs: blobs, publisher: pub}
}

func seedJob(t *testing.T, repo *storememory.JobRepository, id string) audit.Job {
	t.Helper()
	now := time.Now().UTC()
	job := audit.Job{
		ID:         id,
		OwnerID:    "user-1",
		URL:        "https://example.com",
		Domain:     "example.com",
		DeviceType: audit.DeviceDesktop,
		Status:     audit.StatusPending,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, repo.Create(context.Background(), job))
	return job
}

func healthyAnalyzers() (fakePerf, fakeMeta, fakeImages) {
	access := audit.AccessibilityResult{Score: 95}
	return fakePerf{report: audit.PerformanceReport{
			Performance:   audit.PerformanceResult{Score: 90},
			Accessibility: &access,
		}},
		fakeMeta{result: audit.SeoResult{Score: 85}},
		fakeImages{result: audit.ImageResult{TotalImages: 3, Score: 80}}
}

func TestProcessJobAllAnalyzersSucceed(t *testing.T) {
	t.Parallel()

	perf, meta, imgs := healthyAnalyzers()
	f := newFixture(t, perf, meta, imgs)
	seedJob(t, f.repo, "job-1")

	f.worker.processJob(context.Background(), audit.QueueItem{JobID: "job-1", Attempt: 1})

	job, err := f.repo.Get(context.Background(), "job-1")
	require.NoError(t, err)
	require.Equal(t, audit.StatusCompleted, job.Status)
	require.NotNil(t, job.Performance)
	require.NotNil(t, job.Seo)
	require.NotNil(t, job.Images)
	require.NotNil(t, job.Accessibility)
	require.NotNil(t, job.OverallScore)
	// 90*0.4 + 85*0.3 + 80*0.3 = 85.5 -> 86
	require.Equal(t, 86, *job.OverallScore)
	require.NotNil(t, job.ProcessingTimeMs)
	require.Empty(t, job.ErrorText)
	require.Contains(t, job.ReportURI, "memory://reports/job-1/")

	msgs := f.publisher.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, "audit-events", msgs[0].Topic)
	require.Equal(t, audit.StatusCompleted, msgs[0].Event.Status)
	require.Equal(t, job.ReportURI, msgs[0].Event.ReportURI)
}

func TestProcessJobPartialFailureStillCompletes(t *testing.T) {
	t.Parallel()

	_, meta, imgs := healthyAnalyzers()
	f := newFixture(t, fakePerf{err: errors.New("chrome crashed")}, meta, imgs)
	seedJob(t, f.repo, "job-1")

	f.worker.processJob(context.Background(), audit.QueueItem{JobID: "job-1", Attempt: 1})

	job, err := f.repo.Get(context.Background(), "job-1")
	require.NoError(t, err)
	require.Equal(t, audit.StatusCompleted, job.Status)
	require.Nil(t, job.Performance)
	require.Nil(t, job.Accessibility)
	require.NotNil(t, job.Seo)
	require.NotNil(t, job.Images)
	// Renormalized over seo and images: (85*0.3 + 80*0.3) / 0.6 = 82.5 -> 83
	require.NotNil(t, job.OverallScore)
	require.Equal(t, 83, *job.OverallScore)
}

func TestProcessJobAllAnalyzersFail(t *testing.T) {
	t.Parallel()

	f := newFixture(t,
		fakePerf{err: errors.New("perf down")},
		fakeMeta{err: errors.New("fetch refused")},
		fakeImages{err: errors.New("parse failed")},
	)
	seedJob(t, f.repo, "job-1")

	f.worker.processJob(context.Background(), audit.QueueItem{JobID: "job-1", Attempt: 1})

	job, err := f.repo.Get(context.Background(), "job-1")
	require.NoError(t, err)
	require.Equal(t, audit.StatusFailed, job.Status)
	require.Nil(t, job.OverallScore)
	require.Nil(t, job.Recommendations)
	require.Empty(t, job.ReportURI)
	require.Contains(t, job.ErrorText, "performance: perf down")
	require.Contains(t, job.ErrorText, "meta-tags: fetch refused")
	require.Contains(t, job.ErrorText, "images: parse failed")
	require.NotNil(t, job.ProcessingTimeMs)

	msgs := f.publisher.Messages()
	require.Len(t, msgs, 1)
	require.Equal(t, audit.StatusFailed, msgs[0].Event.Status)
}

func TestProcessJobSkipsNonPending(t *testing.T) {
	t.Parallel()

	perf, meta, imgs := healthyAnalyzers()
	f := newFixture(t, perf, meta, imgs)
	job := seedJob(t, f.repo, "job-1")
	job.Status = audit.StatusCompleted
	require.NoError(t, f.repo.Update(context.Background(), job))

	f.worker.processJob(context.Background(), audit.QueueItem{JobID: "job-1", Attempt: 1})

	require.Empty(t, f.publisher.Messages())
}

func TestProcessJobUnknownIDIsIgnored(t *testing.T) {
	t.Parallel()

	perf, meta, imgs := healthyAnalyzers()
	f := newFixture(t, perf, meta, imgs)

	f.worker.processJob(context.Background(), audit.QueueItem{JobID: "ghost", Attempt: 1})
	require.Empty(t, f.publisher.Messages())
}

func TestRunConsumesUntilCanceled(t *testing.T) {
	t.Parallel()

	perf, meta, imgs := healthyAnalyzers()
	f := newFixture(t, perf, meta, imgs)
	seedJob(t, f.repo, "job-1")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.worker.Run(ctx)
		close(done)
	}()

	require.NoError(t, f.queue.Enqueue(ctx, audit.QueueItem{JobID: "job-1", Attempt: 1}))

	require.Eventually(t, func() bool {
		job, err := f.repo.Get(context.Background(), "job-1")
		return err == nil && job.Status.Terminal()
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}

type slowPerf struct{}

func (slowPerf) Analyze(ctx context.Context, _ string, _ audit.DeviceType) (audit.PerformanceReport, error) {
	select {
	case <-ctx.Done():
		return audit.PerformanceReport{}, ctx.Err()
	case <-time.After(10 * time.Second):
		return audit.PerformanceReport{}, nil
	}
}

func TestProcessJobHonorsJobTimeout(t *testing.T) {
	t.Parallel()

	_, meta, imgs := healthyAnalyzers()
	f := newFixture(t, slowPerf{}, meta, imgs)
	f.worker.cfg.JobTimeout = 50 * time.Millisecond
	seedJob(t, f.repo, "job-1")

	start := time.Now()
	f.worker.processJob(context.Background(), audit.QueueItem{JobID: "job-1", Attempt: 1})
	require.Less(t, time.Since(start), 5*time.Second)

	job, err := f.repo.Get(context.Background(), "job-1")
	require.NoError(t, err)
	// The fast analyzers settled, so the job still completes without the
	// performance category.
	require.Equal(t, audit.StatusCompleted, job.Status)
	require.Nil(t, job.Performance)
	require.NotNil(t, job.Seo)
}
