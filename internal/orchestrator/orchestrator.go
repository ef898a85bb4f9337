// Package orchestrator implements the submission-side service: it validates
// requests, enforces quotas, persists pending jobs and hands them to the
// analysis queue.
package orchestrator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sitewarden/site-auditor/internal/audit"
)

// Batch submissions are bounded to keep a single request from consuming a
// whole plan's quota in one call.
const (
	BatchMin = 1
	BatchMax = 10
)

// Orchestrator coordinates the submission side of the audit pipeline.
type Orchestrator struct {
	repo   audit.JobRepository
	gate   audit.QuotaGate
	queue  audit.Queue
	clock  audit.Clock
	ids    audit.IDGenerator
	logger *zap.Logger
}

// New constructs an Orchestrator.
func New(
	repo audit.JobRepository,
	gate audit.QuotaGate,
	queue audit.Queue,
	clock audit.Clock,
	ids audit.IDGenerator,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		repo:   repo,
		gate:   gate,
		queue:  queue,
		clock:  clock,
		ids:    ids,
		logger: logger,
	}
}

// Submit validates the URL, consumes quota, persists a pending job and
// enqueues it for analysis. The returned summary reflects the pending state;
// results arrive asynchronously.
func (o *Orchestrator) Submit(ctx context.Context, requester audit.Requester, rawURL string, opts audit.SubmitOptions) (audit.Summary, error) {
	normalized, domain, err := audit.ValidateURL(rawURL)
	if err != nil {
		return audit.Summary{}, err
	}
	device, err := resolveDevice(opts.DeviceType)
	if err != nil {
		return audit.Summary{}, err
	}

	decision, err := o.gate.Admit(ctx, requester)
	if err != nil {
		return audit.Summary{}, fmt.Errorf("quota check: %w", err)
	}
	if !decision.Allowed {
		return audit.Summary{}, &audit.QuotaError{Reason: decision.Reason}
	}

	id, err := o.ids.NewID()
	if err != nil {
		return audit.Summary{}, fmt.Errorf("generate job id: %w", err)
	}

	now := o.clock.Now()
	job := audit.Job{
		ID:         id,
		OwnerID:    requester.ID,
		URL:        normalized,
		Domain:     domain,
		DeviceType: device,
		Location:   opts.Location,
		IsPublic:   resolveVisibility(requester, opts),
		Status:     audit.StatusPending,
		Tags:       opts.Tags,
		Notes:      opts.Notes,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := o.repo.Create(ctx, job); err != nil {
		return audit.Summary{}, fmt.Errorf("create job: %w", err)
	}

	item := audit.QueueItem{
		JobID:     id,
		Attempt:   1,
		Submitted: now.UnixMilli(),
	}
	if err := o.queue.Enqueue(ctx, item); err != nil {
		o.failUnqueued(ctx, job, err)
		return audit.Summary{}, fmt.Errorf("enqueue job: %w", err)
	}

	o.logger.Info("audit job submitted",
		zap.String("job_id", id),
		zap.String("domain", domain),
		zap.String("device", string(device)),
		zap.Bool("anonymous", requester.Anonymous()),
	)
	return audit.Summarize(job), nil
}

// BatchItem is the per-URL outcome of a batch submission.
type BatchItem struct {
	URL     string
	Summary audit.Summary
	Err     error
}

// SubmitBatch submits up to BatchMax URLs as independent jobs. One URL
// failing validation or quota does not abort its siblings. Batch submission
// requires a premium or enterprise plan.
func (o *Orchestrator) SubmitBatch(ctx context.Context, requester audit.Requester, urls []string, opts audit.SubmitOptions) ([]BatchItem, error) {
	if len(urls) < BatchMin || len(urls) > BatchMax {
		return nil, audit.NewValidationError("urls",
			fmt.Sprintf("batch size must be between %d and %d", BatchMin, BatchMax))
	}
	if !batchAllowed(requester) {
		return nil, fmt.Errorf("batch submission requires a premium plan: %w", audit.ErrForbidden)
	}

	items := make([]BatchItem, len(urls))
	for i, rawURL := range urls {
		summary, err := o.Submit(ctx, requester, rawURL, opts)
		items[i] = BatchItem{URL: rawURL, Summary: summary, Err: err}
	}
	return items, nil
}

// Get returns a job visible to the requester: its owner sees it always,
// everyone sees public jobs.
func (o *Orchestrator) Get(ctx context.Context, requester audit.Requester, id string) (audit.Job, error) {
	job, err := o.repo.Get(ctx, id)
	if err != nil {
		return audit.Job{}, err
	}
	if !job.IsPublic && (requester.Anonymous() || job.OwnerID != requester.ID) {
		return audit.Job{}, audit.ErrForbidden
	}
	return job, nil
}

// List returns the requester's own jobs, newest first.
func (o *Orchestrator) List(ctx context.Context, requester audit.Requester, filter audit.ListFilter) ([]audit.Summary, int, error) {
	if requester.Anonymous() {
		return nil, 0, audit.ErrForbidden
	}
	filter.OwnerID = requester.ID
	filter.PublicOnly = false
	return o.listSummaries(ctx, filter)
}

// ListPublic returns publicly visible jobs, newest first.
func (o *Orchestrator) ListPublic(ctx context.Context, filter audit.ListFilter) ([]audit.Summary, int, error) {
	filter.OwnerID = ""
	filter.PublicOnly = true
	return o.listSummaries(ctx, filter)
}

// Delete removes a job. Only its owner may delete it.
func (o *Orchestrator) Delete(ctx context.Context, requester audit.Requester, id string) error {
	if requester.Anonymous() {
		return audit.ErrForbidden
	}
	job, err := o.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if job.OwnerID != requester.ID {
		return audit.ErrForbidden
	}
	return o.repo.Delete(ctx, id)
}

func (o *Orchestrator) listSummaries(ctx context.Context, filter audit.ListFilter) ([]audit.Summary, int, error) {
	jobs, total, err := o.repo.List(ctx, filter.Normalize())
	if err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}
	summaries := make([]audit.Summary, len(jobs))
	for i, job := range jobs {
		summaries[i] = audit.Summarize(job)
	}
	return summaries, total, nil
}

// failUnqueued marks a job that never reached the queue as failed so it does
// not linger as pending forever.
func (o *Orchestrator) failUnqueued(ctx context.Context, job audit.Job, cause error) {
	now := o.clock.Now()
	elapsed := now.Sub(job.CreatedAt).Milliseconds()
	job.Status = audit.StatusFailed
	job.ErrorText = fmt.Sprintf("enqueue failed: %v", cause)
	job.ProcessingTimeMs = &elapsed
	job.UpdatedAt = now
	if err := o.repo.Update(ctx, job); err != nil {
		o.logger.Error("failed to mark unqueued job as failed",
			zap.String("job_id", job.ID), zap.Error(err))
	}
}

func resolveDevice(device audit.DeviceType) (audit.DeviceType, error) {
	switch device {
	case "":
		return audit.DeviceDesktop, nil
	case audit.DeviceDesktop, audit.DeviceMobile:
		return device, nil
	default:
		return "", audit.NewValidationError("device_type",
			fmt.Sprintf("unsupported device type %q", device))
	}
}

// resolveVisibility defaults owned jobs to private. Anonymous jobs have no
// owner to show them to, so they are always public.
func resolveVisibility(requester audit.Requester, opts audit.SubmitOptions) bool {
	if requester.Anonymous() {
		return true
	}
	if opts.IsPublic != nil {
		return *opts.IsPublic
	}
	return false
}

func batchAllowed(requester audit.Requester) bool {
	if requester.Anonymous() {
		return false
	}
	return requester.Plan == audit.PlanPremium || requester.Plan == audit.PlanEnterprise
}
