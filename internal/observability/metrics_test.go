package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSubmissionMetrics(t *testing.T) {
	m, err := InitMetrics()
	require.NoError(t, err)

	m.ObserveSubmission("succeeded", "")
	m.ObserveSubmission("failed", "metadata_persist")
	m.ObserveSubmission("failed", "metadata_persist")
	m.ObserveStage("video_upload", "ok", 2*time.Second)
	m.ObserveCompensation("video", "ok")
	m.AddUploadedBytes("video", 1024)
	m.AddUploadedBytes("video", -1)
	m.SetJanitorPending(3)

	body := scrape(t, m)
	assert.Contains(t, body, `weddinghub_submissions_total{outcome="failed",stage="metadata_persist"} 2`)
	assert.Contains(t, body, `weddinghub_uploaded_bytes_total{kind="video"} 1024`)
	assert.Contains(t, body, `weddinghub_janitor_pending_deletes 3`)
	assert.Contains(t, body, `weddinghub_submission_stage_duration_seconds_count{result="ok",stage="video_upload"} 1`)
}

func TestNilMetricsRecordNothing(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveSubmission("succeeded", "")
		m.ObserveStage("video_upload", "ok", time.Second)
		m.ObserveCompensation("video", "ok")
		m.AddUploadedBytes("video", 10)
		m.SetJanitorPending(1)
	})
}

func TestMetricsServer(t *testing.T) {
	m, err := InitMetrics()
	require.NoError(t, err)
	m.ObserveSubmission("succeeded", "")

	srv := NewMetricsServer(":0", m, zap.NewNop())
	ts := httptest.NewServer(srv.Handler)
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(body), "weddinghub_submissions_total")
}

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.GetHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}
