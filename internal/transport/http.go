package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/nickborgers/monorepo/page-performance-monitor/internal/models"
)

// ErrRateLimited is returned by HTTP.Send when the report is dropped by the
// rate limiter
var ErrRateLimited = errors.New("report dropped by rate limiter")

// ErrClosed is returned by HTTP.Send after Close
var ErrClosed = errors.New("transport closed")

// HTTPConfig configures the HTTP sink
type HTTPConfig struct {
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
	UserAgent     string
}

// HTTP posts each report as JSON to its endpoint. Delivery is best effort:
// the POST runs on its own goroutine, failures are logged and never retried.
type HTTP struct {
	client  *http.Client
	limiter *rate.Limiter
	agent   string
	logger  *zap.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewHTTP creates an HTTP sink
func NewHTTP(cfg HTTPConfig, logger *zap.Logger) *HTTP {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	return &HTTP{
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, cfg.Burst),
		agent:   cfg.UserAgent,
		logger:  logger,
	}
}

// Send queues the POST and returns without waiting for it
func (h *HTTP) Send(endpoint string, report *models.MetricReport) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	if !h.limiter.Allow() {
		return ErrRateLimited
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		if err := h.post(endpoint, body); err != nil {
			h.logger.Warn("report delivery failed",
				zap.String("endpoint", endpoint),
				zap.String("report_id", report.ReportID),
				zap.String("metric", string(report.Metric.Name)),
				zap.Error(err),
			)
		}
	}()

	return nil
}

func (h *HTTP) post(endpoint string, body []byte) error {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if h.agent != "" {
		req.Header.Set("User-Agent", h.agent)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

// Close stops accepting reports and waits for in-flight POSTs
func (h *HTTP) Close() error {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()

	h.wg.Wait()
	return nil
}
