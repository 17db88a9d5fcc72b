package transport

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/nickborgers/monorepo/page-performance-monitor/internal/metrics"
	"github.com/nickborgers/monorepo/page-performance-monitor/internal/models"
)

var testSite = models.SiteInfo{URL: "https://example.com", Name: "example", Category: "test"}

func testMetric(name models.MetricName, value float64) models.Metric {
	return models.Metric{Name: name, Value: value, Delta: value, ID: "metric-1", IsFinal: true}
}

type captureSink struct {
	endpoints []string
	reports   []*models.MetricReport
}

func (c *captureSink) Send(endpoint string, report *models.MetricReport) error {
	c.endpoints = append(c.endpoints, endpoint)
	c.reports = append(c.reports, report)
	return nil
}

func TestBind_WrapsMetricInReport(t *testing.T) {
	sink := &captureSink{}
	meta := models.VisitMetadata{Hostname: "probe-1", Version: "1.2.3"}
	send := Bind(sink, testSite, "visit-42", meta)

	require.NoError(t, send("/perf", testMetric(models.MetricFCP, 850)))
	require.NoError(t, send("/perf", testMetric(models.MetricTTFB, 120)))

	require.Len(t, sink.reports, 2)
	first := sink.reports[0]
	assert.Equal(t, "/perf", sink.endpoints[0])
	assert.Equal(t, "/perf", first.Endpoint)
	assert.Equal(t, "visit-42", first.VisitID)
	assert.Equal(t, testSite, first.Site)
	assert.Equal(t, meta, first.Metadata)
	assert.Equal(t, models.MetricFCP, first.Metric.Name)
	assert.NotEmpty(t, first.ReportID)
	assert.NotEqual(t, first.ReportID, sink.reports[1].ReportID)
	assert.False(t, first.Timestamp.IsZero())
}

func TestLocal_RecordsIntoCollector(t *testing.T) {
	collector := metrics.NewCollector(10, metrics.NewDispatcher(nil))
	send := Bind(NewLocal(collector), testSite, "visit-1", models.VisitMetadata{})

	require.NoError(t, send("local", testMetric(models.MetricDL, 1500)))

	assert.EqualValues(t, 1, collector.Recorded())
	reports := collector.VisitReports("visit-1")
	require.Len(t, reports, 1)
	assert.Equal(t, 1500.0, reports[0].Metric.Value)
}

func TestHTTP_PostsJSON(t *testing.T) {
	var mu sync.Mutex
	var got []models.MetricReport
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "probe/1.0", r.Header.Get("User-Agent"))

		var report models.MetricReport
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&report))
		mu.Lock()
		got = append(got, report)
		mu.Unlock()
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sink := NewHTTP(HTTPConfig{Timeout: time.Second, UserAgent: "probe/1.0"}, nil)
	send := Bind(sink, testSite, "visit-7", models.VisitMetadata{})

	require.NoError(t, send(srv.URL, testMetric(models.MetricWL, 75)))
	require.NoError(t, sink.Close())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, models.MetricWL, got[0].Metric.Name)
	assert.Equal(t, 75.0, got[0].Metric.Value)
	assert.Equal(t, "visit-7", got[0].VisitID)
	assert.Equal(t, srv.URL, got[0].Endpoint)
}

func TestHTTP_FailuresAreLoggedNotReturned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	core, logs := observer.New(zap.WarnLevel)
	sink := NewHTTP(HTTPConfig{Timeout: time.Second}, zap.New(core))

	err := sink.Send(srv.URL, &models.MetricReport{ReportID: "r-1", Metric: testMetric(models.MetricNT, 80)})
	require.NoError(t, err)
	require.NoError(t, sink.Close())

	entries := logs.FilterMessage("report delivery failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "r-1", entries[0].ContextMap()["report_id"])
}

func TestHTTP_RateLimited(t *testing.T) {
	var mu sync.Mutex
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
	}))
	defer srv.Close()

	sink := NewHTTP(HTTPConfig{Timeout: time.Second, RatePerSecond: 0.001, Burst: 2}, nil)
	report := &models.MetricReport{ReportID: "r", Metric: testMetric(models.MetricFCP, 1)}

	assert.NoError(t, sink.Send(srv.URL, report))
	assert.NoError(t, sink.Send(srv.URL, report))
	assert.ErrorIs(t, sink.Send(srv.URL, report), ErrRateLimited)
	require.NoError(t, sink.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, hits)
}

func TestHTTP_SendAfterClose(t *testing.T) {
	sink := NewHTTP(HTTPConfig{}, nil)
	require.NoError(t, sink.Close())

	err := sink.Send("http://127.0.0.1:1", &models.MetricReport{ReportID: "r"})
	assert.ErrorIs(t, err, ErrClosed)
}
