package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// staleAfter marks the monitor unhealthy when no visit finished this long
const staleAfter = 5 * time.Minute

// HealthServer provides a health check endpoint
type HealthServer struct {
	config  *Config
	server  *http.Server
	logger  *zap.Logger
	started time.Time
	now     func() time.Time

	mu            sync.RWMutex
	lastVisitTime time.Time
	visitCount    int64
	successCount  int64
	failureCount  int64
	isHealthy     bool
	reportCount   func() int64
}

// Config contains health check server configuration
type Config struct {
	Enabled       bool
	Port          int
	Path          string
	ListenAddress string
}

// HealthResponse is the JSON response structure
type HealthResponse struct {
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
	LastVisitTime time.Time `json:"last_visit_time,omitempty"`
	VisitCount    int64     `json:"visit_count"`
	SuccessCount  int64     `json:"success_count"`
	FailureCount  int64     `json:"failure_count"`
	ReportCount   int64     `json:"report_count"`
	Uptime        string    `json:"uptime"`
}

// NewHealthServer creates the health server and starts listening. It
// returns nil when the endpoint is disabled.
func NewHealthServer(cfg *Config, logger *zap.Logger) (*HealthServer, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	h := newHealthServer(cfg, logger)

	addr := fmt.Sprintf("%s:%d", cfg.ListenAddress, cfg.Port)
	h.server = &http.Server{
		Addr:              addr,
		Handler:           h.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		h.logger.Info("health check endpoint started", zap.String("addr", addr), zap.String("path", cfg.Path))
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.Error("health check server error", zap.Error(err))
		}
	}()

	return h, nil
}

func newHealthServer(cfg *Config, logger *zap.Logger) *HealthServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Path == "" {
		cfg.Path = "/health"
	}
	return &HealthServer{
		config:    cfg,
		logger:    logger,
		started:   time.Now(),
		now:       time.Now,
		isHealthy: true,
	}
}

// Handler returns the HTTP handler serving the health path
func (h *HealthServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(h.config.Path, h.handleHealth)
	return mux
}

func (h *HealthServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	now := h.now()
	status := "healthy"
	statusCode := http.StatusOK

	if !h.isHealthy || (h.visitCount > 0 && now.Sub(h.lastVisitTime) > staleAfter) {
		status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	}

	response := HealthResponse{
		Status:        status,
		Timestamp:     now,
		LastVisitTime: h.lastVisitTime,
		VisitCount:    h.visitCount,
		SuccessCount:  h.successCount,
		FailureCount:  h.failureCount,
		Uptime:        now.Sub(h.started).Round(time.Second).String(),
	}
	reports := h.reportCount
	h.mu.RUnlock()

	if reports != nil {
		response.ReportCount = reports()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Warn("error encoding health response", zap.Error(err))
	}
}

// RecordVisit records a finished site visit
func (h *HealthServer) RecordVisit(success bool) {
	if h == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastVisitTime = h.now()
	h.visitCount++
	if success {
		h.successCount++
	} else {
		h.failureCount++
	}
}

// SetReportCounter sets where the reported-metrics count is read from
func (h *HealthServer) SetReportCounter(count func() int64) {
	if h == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.reportCount = count
}

// SetHealthy sets the health status
func (h *HealthServer) SetHealthy(healthy bool) {
	if h == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.isHealthy = healthy
}

// GetStats returns current visit statistics
func (h *HealthServer) GetStats() (visitCount, successCount, failureCount int64, lastVisitTime time.Time) {
	if h == nil {
		return 0, 0, 0, time.Time{}
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.visitCount, h.successCount, h.failureCount, h.lastVisitTime
}

// Close shuts down the health check server
func (h *HealthServer) Close() error {
	if h == nil || h.server == nil {
		return nil
	}

	h.logger.Info("shutting down health check server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return h.server.Shutdown(ctx)
}
