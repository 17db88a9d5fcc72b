// Package ingest receives metric reports posted by remote monitor
// instances and records them like locally produced ones.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/nickborgers/monorepo/page-performance-monitor/internal/config"
	"github.com/nickborgers/monorepo/page-performance-monitor/internal/models"
)

const (
	defaultRecent = 50
	maxRecent     = 500
)

// Recorder is where accepted reports go
type Recorder interface {
	Record(report *models.MetricReport)
	GetRecentReports(n int) []*models.MetricReport
}

// Server is the report ingest HTTP server
type Server struct {
	echo     *echo.Echo
	recorder Recorder
	limiter  *limiterStore
	logger   *zap.Logger
	addr     string
}

type requestValidator struct {
	validate *validator.Validate
}

func (v *requestValidator) Validate(i any) error {
	return v.validate.Struct(i)
}

// NewServer creates the ingest server. Call Start to begin serving.
func NewServer(cfg *config.IngestConfig, recorder Recorder, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = &requestValidator{validate: validator.New()}

	s := &Server{
		echo:     e,
		recorder: recorder,
		limiter:  newLimiterStore(cfg.RatePerSecond, cfg.Burst),
		logger:   logger,
		addr:     fmt.Sprintf("%s:%d", cfg.ListenAddress, cfg.Port),
	}

	e.Use(middleware.Recover())
	e.Use(s.rateLimit)

	e.POST("/v1/metrics", s.handleIngest)
	e.GET("/v1/metrics/recent", s.handleRecent)

	return s
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start serves in the background
func (s *Server) Start() {
	go func() {
		s.logger.Info("starting ingest server", zap.String("addr", s.addr))
		if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("ingest server error", zap.Error(err))
		}
	}()
}

// Shutdown stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) rateLimit(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !s.limiter.allow(c.RealIP(), time.Now()) {
			return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
		}
		return next(c)
	}
}

func (s *Server) handleIngest(c echo.Context) error {
	var report models.MetricReport
	if err := c.Bind(&report); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid report body")
	}
	if err := c.Validate(&report); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return echo.NewHTTPError(http.StatusUnprocessableEntity,
				fmt.Sprintf("%s failed %s validation", verrs[0].Namespace(), verrs[0].Tag()))
		}
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	}

	if report.Timestamp.IsZero() {
		report.Timestamp = time.Now().UTC()
	}

	s.recorder.Record(&report)
	s.logger.Debug("report ingested",
		zap.String("report_id", report.ReportID),
		zap.String("site", report.SiteLabel()),
		zap.String("metric", string(report.Metric.Name)),
		zap.String("remote", c.RealIP()),
	)

	return c.JSON(http.StatusAccepted, map[string]string{
		"status":    "accepted",
		"report_id": report.ReportID,
	})
}

func (s *Server) handleRecent(c echo.Context) error {
	n := defaultRecent
	if v := c.QueryParam("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			return echo.NewHTTPError(http.StatusBadRequest, "n must be a non-negative integer")
		}
		n = min(parsed, maxRecent)
	}

	return c.JSON(http.StatusOK, s.recorder.GetRecentReports(n))
}
