// Package main hosts the audit service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, metrics, and audit management endpoints. Submissions are
//     validated, admitted against the caller's monthly quota, persisted via the JobRepository, and enqueued for
//     asynchronous analysis.
//   - Dispatcher & queue: jobs flow through a bounded in-memory queue sized by config.Audit.QueueDepth and are
//     fanned out to a supervised worker pool sized by config.Audit.Concurrency. A panicking worker is restarted;
//     context cancellation drains the pool cleanly on shutdown.
//   - Analysis pipeline: each worker runs three analyzers concurrently and settles all of them before finishing
//     the job. Meta tag and image inventory passes use Colly; the performance pass renders the page in a shared
//     headless Chrome via Chromedp and also captures an accessibility snapshot. A job completes when at least one
//     category succeeds and fails only when all three do.
//   - Persistence & fanout: jobs live in Postgres (or memory when no DSN is configured), the full report artifact
//     is written to the configured BlobStore (memory/GCS), and a compact Pub/Sub event is published on terminal
//     transitions when a topic is configured. Quota counters live in Redis, falling back to memory.
//   - Configuration & plumbing: Viper populates config from env/files; zap provides structured logging; Prometheus
//     metrics are exported via the /metrics handler. The service is stateless across requests, suitable for Cloud
//     Run scale-out.
//
// Operational notes:
//   - Concurrency model: bounded queue + fixed worker pool; headless renders have their own semaphore inside the
//     performance analyzer. Shutdown is coordinated via context cancellation propagated from main through the
//     dispatcher to workers.
//   - Observability: zap logs carry job IDs and URLs at key transitions; Prometheus counters/histograms track API
//     activity, analyzer settlements, and job outcomes. Tracing is not yet wired in.
//   - Cloud Run: the HTTP server listens on the configured port, health endpoints (/healthz, /readyz) remain
//     lightweight, and the process reacts to SIGTERM for graceful drain with in-flight work bounded by the
//     per-job timeout.
//
// Quick checklist:
//   - Configure env vars: AUDITOR_SERVER_PORT, AUDITOR_AUDIT_CONCURRENCY, AUDITOR_HEADLESS_ENABLED,
//     AUDITOR_DB_DSN, AUDITOR_REDIS_ADDR, storage (AUDITOR_STORAGE_*), and pubsub when fanout is required.
//   - Run locally: go run ./cmd/auditservice -config config.yaml (or rely solely on env overrides).
package main
