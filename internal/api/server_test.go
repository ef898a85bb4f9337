package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sitewarden/site-auditor/internal/audit"
	"github.com/sitewarden/site-auditor/internal/config"
	"github.com/sitewarden/site-auditor/internal/metrics"
	"github.com/sitewarden/site-auditor/internal/orchestrator"
	queuememory "github.com/sitewarden/site-auditor/internal/queue/memory"
	"github.com/sitewarden/site-auditor/internal/quota"
	storememory "github.com/sitewarden/site-auditor/internal/storage/memory"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

type seqIDs struct {
	n int
}

func (g *seqIDs) NewID() (string, error) {
	g.n++
	return fmt.Sprintf("audit-%d", g.n), nil
}

type testHarness struct {
	repo  *storememory.JobRepository
	queue *queuememory.Queue
	srv   *Server
}

func newHarness(t *testing.T, cfg config.Config) *testHarness {
	t.Helper()
	metrics.Init()
	repo := storememory.NewJobRepository()
	q := queuememory.NewQueue(16)
	clock := &fakeClock{now: time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)}
	gate := quota.NewGate(quota.NewMemoryCounterStore(), clock, zap.NewNop())
	orch := orchestrator.New(repo, gate, q, clock, &seqIDs{}, zap.NewNop())
	return &testHarness{
		repo:  repo,
		queue: q,
		srv:   NewServer(orch, cfg, zap.NewNop()),
	}
}

func (h *testHarness) do(method, target string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func ownerHeaders(plan string) map[string]string {
	return map[string]string{
		"X-Requester-ID":   "user-1",
		"X-Requester-Plan": plan,
	}
}

func TestServer_SubmitAudit_Succeeds(t *testing.T) {
	t.Parallel()

	h := newHarness(t, config.Config{})
	body := []byte(`{"url":"HTTPS://Example.com/page","device_type":"mobile"}`)

	rec := h.do(http.MethodPost, "/v1/audits", body, ownerHeaders("basic"))

	require.Equal(t, http.StatusAccepted, rec.Code)

	var summary audit.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	require.Equal(t, "audit-1", summary.ID)
	require.Equal(t, "https://example.com/page", summary.URL)
	require.Equal(t, audit.StatusPending, summary.Status)
	require.Equal(t, audit.DeviceMobile, summary.DeviceType)

	item, err := h.queue.Dequeue(context.Background())
	require.NoError(t, err)
	require.Equal(t, "audit-1", item.JobID)
}

func TestServer_SubmitAudit_InvalidJSON(t *testing.T) {
	t.Parallel()

	h := newHarness(t, config.Config{})
	rec := h.do(http.MethodPost, "/v1/audits", []byte("{invalid"), ownerHeaders("free"))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "invalid JSON")
}

func TestServer_SubmitAudit_InvalidURL(t *testing.T) {
	t.Parallel()

	h := newHarness(t, config.Config{})
	rec := h.do(http.MethodPost, "/v1/audits", []byte(`{"url":"ftp://example.com"}`), ownerHeaders("free"))

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_SubmitAudit_QuotaExhausted(t *testing.T) {
	t.Parallel()

	h := newHarness(t, config.Config{})
	headers := ownerHeaders("free")
	for i := 0; i < 10; i++ {
		body := []byte(fmt.Sprintf(`{"url":"https://example.com/p%d"}`, i))
		rec := h.do(http.MethodPost, "/v1/audits", body, headers)
		require.Equal(t, http.StatusAccepted, rec.Code)
	}

	rec := h.do(http.MethodPost, "/v1/audits", []byte(`{"url":"https://example.com/over"}`), headers)

	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Contains(t, rec.Body.String(), "monthly audit limit")
}

func TestServer_SubmitAnonymousAudit_IgnoresIdentityHeaders(t *testing.T) {
	t.Parallel()

	h := newHarness(t, config.Config{})
	body := []byte(`{"url":"https://example.com"}`)

	rec := h.do(http.MethodPost, "/v1/audits/anonymous", body, ownerHeaders("free"))

	require.Equal(t, http.StatusAccepted, rec.Code)

	job, err := h.repo.Get(context.Background(), "audit-1")
	require.NoError(t, err)
	require.Empty(t, job.OwnerID)
	require.True(t, job.IsPublic)
}

func TestServer_SubmitBatch_RequiresPremium(t *testing.T) {
	t.Parallel()

	h := newHarness(t, config.Config{})
	body := []byte(`{"urls":["https://example.com/a","https://example.com/b"]}`)

	rec := h.do(http.MethodPost, "/v1/audits/batch", body, ownerHeaders("basic"))
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(http.MethodPost, "/v1/audits/batch", body, ownerHeaders("premium"))
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp struct {
		Audits []batchItemResponse `json:"audits"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Audits, 2)
	require.NotNil(t, resp.Audits[0].Audit)
	require.Empty(t, resp.Audits[0].Error)
}

func TestServer_SubmitBatch_ReportsPerURLFailures(t *testing.T) {
	t.Parallel()

	h := newHarness(t, config.Config{})
	body := []byte(`{"urls":["https://example.com/ok","not a url"]}`)

	rec := h.do(http.MethodPost, "/v1/audits/batch", body, ownerHeaders("enterprise"))

	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp struct {
		Audits []batchItemResponse `json:"audits"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Audits, 2)
	require.NotNil(t, resp.Audits[0].Audit)
	require.Nil(t, resp.Audits[1].Audit)
	require.NotEmpty(t, resp.Audits[1].Error)
}

func TestServer_GetAudit_VisibilityEnforced(t *testing.T) {
	t.Parallel()

	h := newHarness(t, config.Config{})
	rec := h.do(http.MethodPost, "/v1/audits", []byte(`{"url":"https://example.com"}`), ownerHeaders("basic"))
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = h.do(http.MethodGet, "/v1/audits/audit-1", nil, ownerHeaders("basic"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "https://example.com")

	stranger := map[string]string{"X-Requester-ID": "user-2", "X-Requester-Plan": "basic"}
	rec = h.do(http.MethodGet, "/v1/audits/audit-1", nil, stranger)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(http.MethodGet, "/v1/audits/missing", nil, ownerHeaders("basic"))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_ListAudits_RequiresIdentity(t *testing.T) {
	t.Parallel()

	h := newHarness(t, config.Config{})
	rec := h.do(http.MethodGet, "/v1/audits", nil, nil)

	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestServer_ListAudits_PaginatesOwnJobs(t *testing.T) {
	t.Parallel()

	h := newHarness(t, config.Config{})
	headers := ownerHeaders("premium")
	for i := 0; i < 3; i++ {
		body := []byte(fmt.Sprintf(`{"url":"https://example.com/p%d"}`, i))
		rec := h.do(http.MethodPost, "/v1/audits", body, headers)
		require.Equal(t, http.StatusAccepted, rec.Code)
	}

	rec := h.do(http.MethodGet, "/v1/audits?page=1&limit=2", nil, headers)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp listResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 3, resp.Total)
	require.Len(t, resp.Audits, 2)
	require.Equal(t, 1, resp.Page)
	require.Equal(t, 2, resp.Limit)
}

func TestServer_ListPublicAudits_OpenToAnonymous(t *testing.T) {
	t.Parallel()

	h := newHarness(t, config.Config{})
	rec := h.do(http.MethodPost, "/v1/audits/anonymous", []byte(`{"url":"https://example.com"}`), nil)
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = h.do(http.MethodGet, "/v1/audits/public", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp listResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Total)
	require.Len(t, resp.Audits, 1)
}

func TestServer_DeleteAudit_OwnerOnly(t *testing.T) {
	t.Parallel()

	h := newHarness(t, config.Config{})
	rec := h.do(http.MethodPost, "/v1/audits", []byte(`{"url":"https://example.com"}`), ownerHeaders("basic"))
	require.Equal(t, http.StatusAccepted, rec.Code)

	stranger := map[string]string{"X-Requester-ID": "user-2", "X-Requester-Plan": "basic"}
	rec = h.do(http.MethodDelete, "/v1/audits/audit-1", nil, stranger)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(http.MethodDelete, "/v1/audits/audit-1", nil, ownerHeaders("basic"))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "deleted")

	_, err := h.repo.Get(context.Background(), "audit-1")
	require.ErrorIs(t, err, audit.ErrNotFound)
}

func TestServer_APIKeyMiddleware(t *testing.T) {
	t.Parallel()

	cfg := config.Config{}
	cfg.Auth.Enabled = true
	cfg.Auth.APIKey = "secret"
	h := newHarness(t, cfg)

	body := []byte(`{"url":"https://example.com"}`)
	headers := ownerHeaders("basic")

	rec := h.do(http.MethodPost, "/v1/audits", body, headers)
	require.Equal(t, http.StatusForbidden, rec.Code)

	headers["X-API-Key"] = "secret"
	rec = h.do(http.MethodPost, "/v1/audits", body, headers)
	require.Equal(t, http.StatusAccepted, rec.Code)

	// Anonymous submissions and the public listing stay open.
	rec = h.do(http.MethodPost, "/v1/audits/anonymous", body, nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	rec = h.do(http.MethodGet, "/v1/audits/public", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_Healthz(t *testing.T) {
	t.Parallel()

	h := newHarness(t, config.Config{})
	rec := h.do(http.MethodGet, "/healthz", nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "ok")
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
