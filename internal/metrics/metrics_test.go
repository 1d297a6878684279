package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestMetricsExposedViaHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.BackupSetsTotal.Inc()
	m.QueueDepth("pre_send", 3)
	m.DedupSkipped()
	m.PassObserved(0.5)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/metrics", nil)
	Handler(reg).ServeHTTP(rec, req)

	body := rec.Body.String()
	require.Contains(t, body, "haumaru_backup_sets_total 1")
	require.Contains(t, body, `haumaru_queue_depth{stage="pre_send"} 3`)
	require.True(t, strings.Contains(body, "haumaru_blob_dedup_hits_total"))
	require.True(t, strings.Contains(body, "haumaru_pass_duration_seconds"))
}
