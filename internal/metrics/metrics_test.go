package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitName(t *testing.T) {
	cases := map[string][2]string{
		"gcs.put.example.com/abc/a.jpg": {"gcs", "put"},
		"gcs.fetch.k":                   {"gcs", "fetch"},
		"gcs.fetch":                     {"gcs", "fetch"},
		"plain":                         {"plain", ""},
	}
	for in, want := range cases {
		prefix, op := splitName(in)
		assert.Equal(t, want[0], prefix, in)
		assert.Equal(t, want[1], op, in)
	}
}

func TestTimerKeepsOneSeriesPerOperation(t *testing.T) {
	reg := prometheus.NewRegistry()
	timer, err := NewTimer(reg)
	require.NoError(t, err)

	timer.Timing("gcs.put.example.com/aaa/1.jpg", 10*time.Millisecond)
	timer.Timing("gcs.put.example.com/bbb/2.jpg", 20*time.Millisecond)
	timer.Timing("gcs.fetch.example.com/aaa/1.jpg", 5*time.Millisecond)

	assert.Equal(t, 2, testutil.CollectAndCount(timer.durations))
}

func TestNewTimerRejectsDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewTimer(reg)
	require.NoError(t, err)

	_, err = NewTimer(reg)
	assert.Error(t, err)
}

func TestHandlerServesRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	timer, err := NewTimer(reg)
	require.NoError(t, err)
	timer.Timing("gcs.put.k", time.Millisecond)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `result_storage_operation_duration_seconds_count{op="put",prefix="gcs"} 1`), body)
}
