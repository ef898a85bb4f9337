// Package memory provides in-memory persistence for development and testing.
package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/sitewarden/site-auditor/internal/audit"
)

// JobRepository implements audit.JobRepository backed by a map. Reads always
// observe the latest write (everything runs under one mutex), which satisfies
// the read-after-write requirement of the orchestrator's same-process polls.
type JobRepository struct {
	mu   sync.RWMutex
	jobs map[string]audit.Job
}

// NewJobRepository constructs an empty repository.
func NewJobRepository() *JobRepository {
	return &JobRepository{
		jobs: make(map[string]audit.Job),
	}
}

// Create stores a new job record.
func (r *JobRepository) Create(_ context.Context, job audit.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[job.ID]; exists {
		return errors.New("job already exists")
	}
	r.jobs[job.ID] = cloneJob(job)
	return nil
}

// Get fetches a job by id.
func (r *JobRepository) Get(_ context.Context, id string) (audit.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return audit.Job{}, audit.ErrNotFound
	}
	return cloneJob(job), nil
}

// Update replaces the stored record for job.ID.
func (r *JobRepository) Update(_ context.Context, job audit.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.ID]; !ok {
		return audit.ErrNotFound
	}
	r.jobs[job.ID] = cloneJob(job)
	return nil
}

// List returns jobs matching the filter, newest first, plus the total match
// count before pagination.
func (r *JobRepository) List(_ context.Context, filter audit.ListFilter) ([]audit.Job, int, error) {
	filter = filter.Normalize()

	r.mu.RLock()
	matched := make([]audit.Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		if matches(job, filter) {
			matched = append(matched, cloneJob(job))
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := (filter.Page - 1) * filter.Limit
	if start >= total {
		return []audit.Job{}, total, nil
	}
	end := start + filter.Limit
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

// Delete removes a job by id.
func (r *JobRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[id]; !ok {
		return audit.ErrNotFound
	}
	delete(r.jobs, id)
	return nil
}

func matches(job audit.Job, filter audit.ListFilter) bool {
	if filter.OwnerID != "" && job.OwnerID != filter.OwnerID {
		return false
	}
	if filter.PublicOnly && !job.IsPublic {
		return false
	}
	if filter.Status != "" && job.Status != filter.Status {
		return false
	}
	if filter.DeviceType != "" && job.DeviceType != filter.DeviceType {
		return false
	}
	if filter.Search != "" {
		needle := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(job.URL), needle) &&
			!strings.Contains(strings.ToLower(job.Domain), needle) {
			return false
		}
	}
	return true
}

func cloneJob(job audit.Job) audit.Job {
	cp := job
	if job.Performance != nil {
		perf := *job.Performance
		cp.Performance = &perf
	}
	if job.Seo != nil {
		seo := *job.Seo
		cp.Seo = &seo
	}
	if job.Accessibility != nil {
		acc := *job.Accessibility
		acc.Issues = append([]string(nil), job.Accessibility.Issues...)
		cp.Accessibility = &acc
	}
	if job.Images != nil {
		img := *job.Images
		img.Issues = append([]audit.ImageIssue(nil), job.Images.Issues...)
		cp.Images = &img
	}
	if job.OverallScore != nil {
		score := *job.OverallScore
		cp.OverallScore = &score
	}
	if job.ProcessingTimeMs != nil {
		ms := *job.ProcessingTimeMs
		cp.ProcessingTimeMs = &ms
	}
	cp.Recommendations = append([]audit.Recommendation(nil), job.Recommendations...)
	cp.Tags = append([]string(nil), job.Tags...)
	return cp
}
