package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/you-humble/mediafanout/internal/domain"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec, err := NewRecorder("test", reg)
	require.NoError(t, err)

	rec.RecordOutcome("thumb", domain.StatusSuccess, "", 10*time.Millisecond)
	rec.RecordOutcome("thumb", domain.StatusError, domain.KindUpload, time.Millisecond)
	rec.RecordOutcome("thumb", domain.StatusError, domain.KindUpload, time.Millisecond)
	rec.RecordInvocation(2, 20*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(rec.outcomes.WithLabelValues("thumb", "success", "")))
	assert.Equal(t, 2.0, testutil.ToFloat64(rec.outcomes.WithLabelValues("thumb", "error", "upload")))
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.uploads))
	assert.Equal(t, 1, testutil.CollectAndCount(rec.taskDuration))

	rec.RecordInvocation(3, time.Millisecond)
	families, err := reg.Gather()
	require.NoError(t, err)
	var fanOut *dto.Histogram
	for _, mf := range families {
		if mf.GetName() == "test_transforms_per_file" {
			fanOut = mf.GetMetric()[0].GetHistogram()
		}
	}
	require.NotNil(t, fanOut)
	assert.Equal(t, uint64(2), fanOut.GetSampleCount())
	assert.Equal(t, 5.0, fanOut.GetSampleSum())
}

func TestRecorder_ReusesRegistered(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewRecorder("test", reg)
	require.NoError(t, err)
	second, err := NewRecorder("test", reg)
	require.NoError(t, err)

	second.RecordInvocation(1, time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(first.uploads))
}

func TestRecorder_NilSafe(t *testing.T) {
	var rec *Recorder
	assert.NotPanics(t, func() {
		rec.RecordOutcome("x", domain.StatusSuccess, "", 0)
		rec.RecordInvocation(0, 0)
	})
}

func TestHandler(t *testing.T) {
	reg := NewRegistry()
	rec, err := NewRecorder("test", reg)
	require.NoError(t, err)
	rec.RecordInvocation(1, time.Millisecond)

	rr := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "test_files_handled_total 1")
	assert.Contains(t, rr.Body.String(), "go_goroutines")
}
