package daemon

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"courier/internal/api"
	"courier/internal/logging"
	"courier/internal/notifications"
	"courier/internal/retention"
	"courier/internal/telemetry"
	"courier/internal/testsupport"
	"courier/internal/transport"
	"courier/internal/workflow"
)

type nopDeliverer struct{}

func (nopDeliverer) Name() string { return "nop" }

func (nopDeliverer) Deliver(context.Context, transport.Request, transport.ProgressFunc) (transport.Result, error) {
	return transport.Result{RemotePath: "/remote"}, nil
}

func newTestAPI(t *testing.T, token string) (*httptest.Server, *Daemon, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	metrics := telemetry.New()
	sweeper := retention.NewSweeper(cfg.Retention, store, logger, retention.WithMetrics(metrics))
	mgr := workflow.NewManager(cfg, store, nopDeliverer{}, notifications.Nop{}, logger, workflow.WithoutPreflight())
	d, err := New(cfg, store, mgr, logger,
		WithSweeper(sweeper), WithMetrics(metrics), WithHub(notifications.NewHub(logger)))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	srv := &apiServer{logger: logger, daemon: d}
	ts := httptest.NewServer(srv.routes(token))
	t.Cleanup(ts.Close)
	return ts, d, testsupport.BaseDir(cfg)
}

func doJSON(t *testing.T, method, url, token string, body any, out any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp
}

func TestAPIHealthIsPublic(t *testing.T) {
	ts, _, _ := newTestAPI(t, "secret")

	var health api.HealthResponse
	resp := doJSON(t, http.MethodGet, ts.URL+"/api/health", "", nil, &health)
	if resp.StatusCode != http.StatusOK || health.Status != "ok" || health.Running {
		t.Fatalf("unexpected health %d %+v", resp.StatusCode, health)
	}
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("expected request id header")
	}
}

func TestAPIRequiresBearerToken(t *testing.T) {
	ts, _, _ := newTestAPI(t, "secret")

	resp := doJSON(t, http.MethodGet, ts.URL+"/api/status", "", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", resp.StatusCode)
	}
	resp = doJSON(t, http.MethodGet, ts.URL+"/api/status", "wrong", nil, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 with wrong token, got %d", resp.StatusCode)
	}
	var status api.DaemonStatus
	resp = doJSON(t, http.MethodGet, ts.URL+"/api/status", "secret", nil, &status)
	if resp.StatusCode != http.StatusOK || status.DeviceID != "test-device" {
		t.Fatalf("unexpected status %d %+v", resp.StatusCode, status)
	}
}

func TestAPIEnqueueListAndDescribe(t *testing.T) {
	ts, _, base := newTestAPI(t, "")
	path := filepath.Join(base, "incoming", "thumb.jpg")
	testsupport.WriteFile(t, path, 128)

	var created api.EnqueueResponse
	resp := doJSON(t, http.MethodPost, ts.URL+"/api/batches", "", api.EnqueueRequest{
		Reference: "r1",
		Files:     []api.FileSpec{{Path: path, Type: "thumbnail"}},
	}, &created)
	if resp.StatusCode != http.StatusCreated || len(created.JobIDs) != 1 {
		t.Fatalf("unexpected enqueue %d %+v", resp.StatusCode, created)
	}

	var list api.JobListResponse
	doJSON(t, http.MethodGet, ts.URL+"/api/jobs?status=queued&batch=r1", "", nil, &list)
	if len(list.Jobs) != 1 || list.Jobs[0].Priority != 1 || list.Jobs[0].FileType != "thumbnail" {
		t.Fatalf("unexpected list %+v", list)
	}

	var job api.JobResponse
	resp = doJSON(t, http.MethodGet, ts.URL+"/api/jobs/"+strconv.FormatInt(created.JobIDs[0], 10), "", nil, &job)
	if resp.StatusCode != http.StatusOK || job.Job.Status != "queued" {
		t.Fatalf("unexpected job %d %+v", resp.StatusCode, job)
	}

	var batches api.BatchListResponse
	doJSON(t, http.MethodGet, ts.URL+"/api/batches", "", nil, &batches)
	if len(batches.Batches) != 1 || batches.Batches[0].BatchID != "r1" {
		t.Fatalf("unexpected batches %+v", batches)
	}
}

func TestAPIErrorMapping(t *testing.T) {
	ts, _, base := newTestAPI(t, "")

	cases := []struct {
		method string
		path   string
		body   any
		want   int
	}{
		{http.MethodGet, "/api/jobs/99", nil, http.StatusNotFound},
		{http.MethodGet, "/api/jobs/abc", nil, http.StatusBadRequest},
		{http.MethodGet, "/api/jobs?limit=x", nil, http.StatusBadRequest},
		{http.MethodPost, "/api/batches", api.EnqueueRequest{Files: []api.FileSpec{{Path: filepath.Join(base, "missing.jpg")}}}, http.StatusBadRequest},
		{http.MethodPost, "/api/retry", api.RetryRequest{}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		resp := doJSON(t, tc.method, ts.URL+tc.path, "", tc.body, nil)
		if resp.StatusCode != tc.want {
			t.Fatalf("%s %s: got %d, want %d", tc.method, tc.path, resp.StatusCode, tc.want)
		}
	}

	var retry api.RetryResponse
	doJSON(t, http.MethodPost, ts.URL+"/api/jobs/99/retry", "", nil, &retry)
	if len(retry.Failed) != 1 || retry.Failed[0].Reason != "job not found" {
		t.Fatalf("unexpected retry response %+v", retry)
	}
}

func TestAPICleanupAndMetrics(t *testing.T) {
	ts, _, _ := newTestAPI(t, "")

	var cleaned api.CleanupResponse
	resp := doJSON(t, http.MethodPost, ts.URL+"/api/cleanup", "", api.CleanupRequest{OlderThanDays: 1}, &cleaned)
	if resp.StatusCode != http.StatusOK || cleaned.Examined != 0 {
		t.Fatalf("unexpected cleanup %d %+v", resp.StatusCode, cleaned)
	}

	res, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer res.Body.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(res.Body)
	if !strings.Contains(buf.String(), "courier_files_deleted_total") {
		t.Fatalf("expected courier metrics, got:\n%s", buf.String())
	}
}
