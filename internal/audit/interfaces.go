package audit

import (
	"context"
	"time"
)

// JobRepository persists audit job records. Implementations must guarantee
// that a read immediately following a write from the same process observes
// the written state.
type JobRepository interface {
	Create(ctx context.Context, job Job) error
	Get(ctx context.Context, id string) (Job, error)
	Update(ctx context.Context, job Job) error
	List(ctx context.Context, filter ListFilter) ([]Job, int, error)
	Delete(ctx context.Context, id string) error
}

// PerformanceReport bundles the outputs of the rendered-page pass. The
// accessibility sub-record rides along with the performance metrics because
// both come from the same headless navigation.
type PerformanceReport struct {
	Performance   PerformanceResult
	Accessibility *AccessibilityResult
}

// PerformanceAnalyzer measures load performance of a URL. The analyzer owns
// its own timeout.
type PerformanceAnalyzer interface {
	Analyze(ctx context.Context, url string, device DeviceType) (PerformanceReport, error)
}

// MetaTagAnalyzer inspects markup and meta tags of a URL.
type MetaTagAnalyzer interface {
	Analyze(ctx context.Context, url string) (SeoResult, error)
}

// ImageAnalyzer inventories the images referenced by a URL.
type ImageAnalyzer interface {
	Analyze(ctx context.Context, url string) (ImageResult, error)
}

// Decision is the outcome of a quota check.
type Decision struct {
	Allowed bool
	Reason  string
}

// QuotaGate admits or denies a submission based on the requester's monthly
// usage. Anonymous requesters are always admitted.
type QuotaGate interface {
	Admit(ctx context.Context, requester Requester) (Decision, error)
}

// Queue provides enqueue/dequeue semantics for the analysis phase.
type Queue interface {
	Enqueue(ctx context.Context, item QueueItem) error
	Dequeue(ctx context.Context) (QueueItem, error)
}

// BlobStore writes raw report artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes terminal job events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, event Event) (string, error)
}

// Hasher computes digests for artifact paths.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
