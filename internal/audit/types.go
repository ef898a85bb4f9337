// Package audit defines core types shared across subsystems.
package audit

import (
	"time"
)

// Status represents the lifecycle state of an audit job.
type Status string

// Job status values persisted in the job repository. Transitions are
// strictly forward: pending -> processing -> completed|failed.
const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further status transition is possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// DeviceType selects the emulated device for performance analysis.
type DeviceType string

// Supported device types.
const (
	DeviceDesktop DeviceType = "desktop"
	DeviceMobile  DeviceType = "mobile"
)

// Plan identifies a requester's subscription tier.
type Plan string

// Subscription tiers, ordered by capability.
const (
	PlanFree       Plan = "free"
	PlanBasic      Plan = "basic"
	PlanPremium    Plan = "premium"
	PlanEnterprise Plan = "enterprise"
)

// Requester identifies the caller of a submission or read operation.
// A zero-value Requester is anonymous.
type Requester struct {
	ID   string
	Plan Plan
}

// Anonymous reports whether the requester carries no identity.
func (r Requester) Anonymous() bool {
	return r.ID == ""
}

// SubmitOptions captures per-job knobs supplied by the client.
type SubmitOptions struct {
	DeviceType DeviceType `json:"device_type"`
	Location   string     `json:"location"`
	IsPublic   *bool      `json:"is_public"`
	Tags       []string   `json:"tags"`
	Notes      string     `json:"notes"`
}

// Job is the central audit record persisted for each submitted URL.
type Job struct {
	ID               string               `json:"id"`
	OwnerID          string               `json:"owner_id,omitempty"`
	URL              string               `json:"url"`
	Domain           string               `json:"domain"`
	DeviceType       DeviceType           `json:"device_type"`
	Location         string               `json:"location,omitempty"`
	IsPublic         bool                 `json:"is_public"`
	Status           Status               `json:"status"`
	Performance      *PerformanceResult   `json:"performance,omitempty"`
	Seo              *SeoResult           `json:"seo,omitempty"`
	Accessibility    *AccessibilityResult `json:"accessibility,omitempty"`
	Images           *ImageResult         `json:"images,omitempty"`
	OverallScore     *int                 `json:"overall_score,omitempty"`
	Recommendations  []Recommendation     `json:"recommendations,omitempty"`
	ErrorText        string               `json:"error,omitempty"`
	ProcessingTimeMs *int64               `json:"processing_time_ms,omitempty"`
	ReportURI        string               `json:"report_uri,omitempty"`
	Tags             []string             `json:"tags,omitempty"`
	Notes            string               `json:"notes,omitempty"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

// Summary is the projection returned synchronously on submission and in
// listings.
type Summary struct {
	ID               string     `json:"id"`
	URL              string     `json:"url"`
	Domain           string     `json:"domain"`
	DeviceType       DeviceType `json:"device_type"`
	Status           Status     `json:"status"`
	OverallScore     *int       `json:"overall_score,omitempty"`
	ProcessingTimeMs *int64     `json:"processing_time_ms,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// Summarize projects a Job into its Summary form.
func Summarize(job Job) Summary {
	return Summary{
		ID:               job.ID,
		URL:              job.URL,
		Domain:           job.Domain,
		DeviceType:       job.DeviceType,
		Status:           job.Status,
		OverallScore:     job.OverallScore,
		ProcessingTimeMs: job.ProcessingTimeMs,
		CreatedAt:        job.CreatedAt,
	}
}

// Results groups whatever category results settled for a job. Any field may
// be nil; a nil field means that analysis failed or was skipped, not that it
// scored zero.
type Results struct {
	Performance *PerformanceResult
	Seo         *SeoResult
	Images      *ImageResult
}

// PerformanceResult carries the load-performance score and timing metrics.
type PerformanceResult struct {
	Score                    int     `json:"score"`
	FirstContentfulPaintMs   int64   `json:"first_contentful_paint_ms"`
	LargestContentfulPaintMs int64   `json:"largest_contentful_paint_ms"`
	CumulativeLayoutShift    float64 `json:"cumulative_layout_shift"`
	TimeToInteractiveMs      int64   `json:"time_to_interactive_ms"`
	SpeedIndexMs             int64   `json:"speed_index_ms"`
	TotalBlockingTimeMs      int64   `json:"total_blocking_time_ms"`
}

// AccessibilityResult carries the heuristic accessibility score gathered
// during the rendered-page pass.
type AccessibilityResult struct {
	Score  int      `json:"score"`
	Issues []string `json:"issues,omitempty"`
}

// TagCheck describes one inspected meta tag or text element.
type TagCheck struct {
	Present bool     `json:"present"`
	Content string   `json:"content,omitempty"`
	Length  int      `json:"length,omitempty"`
	Score   int      `json:"score"`
	Issues  []string `json:"issues,omitempty"`
}

// OpenGraphCheck describes the Open Graph tag set.
type OpenGraphCheck struct {
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Image       string   `json:"image,omitempty"`
	URL         string   `json:"url,omitempty"`
	Type        string   `json:"type,omitempty"`
	SiteName    string   `json:"site_name,omitempty"`
	Score       int      `json:"score"`
	Issues      []string `json:"issues,omitempty"`
}

// TwitterCardCheck describes the Twitter Card tag set.
type TwitterCardCheck struct {
	Card        string   `json:"card,omitempty"`
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Image       string   `json:"image,omitempty"`
	Site        string   `json:"site,omitempty"`
	Creator     string   `json:"creator,omitempty"`
	Score       int      `json:"score"`
	Issues      []string `json:"issues,omitempty"`
}

// LinkCheck describes a single link element such as rel=canonical.
type LinkCheck struct {
	Present bool     `json:"present"`
	URL     string   `json:"url,omitempty"`
	Score   int      `json:"score"`
	Issues  []string `json:"issues,omitempty"`
}

// StructuredDataCheck describes detected structured data blocks.
type StructuredDataCheck struct {
	Present bool     `json:"present"`
	Types   []string `json:"types,omitempty"`
	Count   int      `json:"count"`
	Score   int      `json:"score"`
	Issues  []string `json:"issues,omitempty"`
}

// HeadingCheck describes heading usage on the page.
type HeadingCheck struct {
	Count  int      `json:"count"`
	Tags   []string `json:"tags,omitempty"`
	Score  int      `json:"score"`
	Issues []string `json:"issues,omitempty"`
}

// AttrCheck describes a single document-level attribute, e.g. html lang.
type AttrCheck struct {
	Present bool     `json:"present"`
	Value   string   `json:"value,omitempty"`
	Score   int      `json:"score"`
	Issues  []string `json:"issues,omitempty"`
}

// SeoResult is the structured output of the meta-tag analyzer.
type SeoResult struct {
	Title          TagCheck            `json:"title"`
	Description    TagCheck            `json:"description"`
	OpenGraph      OpenGraphCheck      `json:"open_graph"`
	TwitterCard    TwitterCardCheck    `json:"twitter_card"`
	Canonical      LinkCheck           `json:"canonical"`
	Robots         TagCheck            `json:"robots"`
	StructuredData StructuredDataCheck `json:"structured_data"`
	H1             HeadingCheck        `json:"h1"`
	Language       AttrCheck           `json:"language"`
	Charset        AttrCheck           `json:"charset"`
	Viewport       AttrCheck           `json:"viewport"`
	Score          int                 `json:"score"`
}

// IssueSeverity grades an image issue.
type IssueSeverity string

// Image issue severities.
const (
	SeverityLow    IssueSeverity = "low"
	SeverityMedium IssueSeverity = "medium"
	SeverityHigh   IssueSeverity = "high"
)

// ImageIssue flags one problem discovered during the image inventory.
type ImageIssue struct {
	Type     string        `json:"type"`
	Message  string        `json:"message"`
	Severity IssueSeverity `json:"severity"`
}

// ImageResult is the structured output of the image analyzer.
type ImageResult struct {
	TotalImages      int          `json:"total_images"`
	ImagesWithAlt    int          `json:"images_with_alt"`
	ImagesWithoutAlt int          `json:"images_without_alt"`
	WebpImages       int          `json:"webp_images"`
	LazyLoadedImages int          `json:"lazy_loaded_images"`
	LargeImages      int          `json:"large_images"`
	BackgroundImages int          `json:"background_images"`
	Issues           []ImageIssue `json:"issues,omitempty"`
	Score            int          `json:"score"`
}

// Category identifies one analysis facet in recommendations and metrics.
type Category string

// Recommendation categories.
const (
	CategoryPerformance Category = "performance"
	CategoryMetaTags    Category = "meta-tags"
	CategoryImages      Category = "images"
)

// Priority grades a recommendation. Priorities are fixed per rule, not
// derived from how far a score misses its threshold.
type Priority string

// Recommendation priorities.
const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Recommendation is one prioritized, explained action item.
type Recommendation struct {
	Category    Category `json:"category"`
	Priority    Priority `json:"priority"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Impact      string   `json:"impact"`
	Effort      string   `json:"effort"`
}

// ListFilter narrows and paginates job listings.
type ListFilter struct {
	OwnerID    string
	Status     Status
	DeviceType DeviceType
	Search     string
	PublicOnly bool
	Page       int
	Limit      int
}

// Normalize clamps pagination values to sane bounds.
func (f ListFilter) Normalize() ListFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 10
	}
	if f.Limit > 100 {
		f.Limit = 100
	}
	return f
}

// QueueItem wraps a job ready for the analysis phase.
type QueueItem struct {
	JobID     string
	Attempt   int
	Submitted int64
}

// Event is published on terminal job transitions.
type Event struct {
	JobID            string    `json:"job_id"`
	URL              string    `json:"url"`
	Domain           string    `json:"domain"`
	Status           Status    `json:"status"`
	OverallScore     *int      `json:"overall_score,omitempty"`
	ProcessingTimeMs int64     `json:"processing_time_ms"`
	ReportURI        string    `json:"report_uri,omitempty"`
	Timestamp        time.Time `json:"timestamp"`
}
