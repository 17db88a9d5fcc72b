package testloop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/nickborgers/monorepo/page-performance-monitor/internal/browser"
	"github.com/nickborgers/monorepo/page-performance-monitor/internal/config"
)

// ErrTooManyStartFailures is returned by Run when Chrome keeps failing to
// start. The process should exit so its supervisor restarts it cleanly.
var ErrTooManyStartFailures = errors.New("too many consecutive chrome startup failures")

// VisitRecorder is told about every finished visit
type VisitRecorder interface {
	RecordVisit(success bool)
}

// TestLoop visits the configured sites one at a time, forever
type TestLoop struct {
	config                    *config.Config
	iterator                  *SiteIterator
	browser                   browser.Controller
	recorder                  VisitRecorder
	logger                    *zap.Logger
	stopChan                  chan struct{}
	consecutiveChromeFailures int
}

// NewTestLoop creates a new continuous visit loop. recorder may be nil.
func NewTestLoop(cfg *config.Config, browserCtrl browser.Controller, recorder VisitRecorder, logger *zap.Logger) (*TestLoop, error) {
	if len(cfg.Sites.List) == 0 {
		return nil, errors.New("no sites configured")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &TestLoop{
		config:   cfg,
		iterator: NewSiteIterator(cfg.Sites.List),
		browser:  browserCtrl,
		recorder: recorder,
		logger:   logger,
		stopChan: make(chan struct{}),
	}, nil
}

// Run visits sites serially until ctx is cancelled, Stop is called, or
// Chrome fails to start too many times in a row
func (t *TestLoop) Run(ctx context.Context) error {
	t.logger.Info("starting continuous visit loop",
		zap.Int("sites", t.iterator.Count()),
		zap.Duration("inter_visit_delay", t.config.General.InterVisitDelay),
	)

	for {
		if err := t.runSingleVisit(ctx); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			t.logger.Info("visit loop stopped by context")
			return ctx.Err()

		case <-t.stopChan:
			t.logger.Info("visit loop stopped by Stop() call")
			return nil

		case <-time.After(t.config.General.InterVisitDelay):
		}
	}
}

// runSingleVisit executes one visit. It only returns an error when the
// loop must end.
func (t *TestLoop) runSingleVisit(ctx context.Context) error {
	site, round := t.iterator.Next()

	t.logger.Debug("visiting site",
		zap.String("site", site.GetName()),
		zap.String("url", site.URL),
		zap.Int("round", round),
	)

	result, err := t.browser.Visit(ctx, site)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}

		if errors.Is(err, browser.ErrChromeStartupFailure) {
			t.consecutiveChromeFailures++
			limit := t.config.Advanced.MaxConsecutiveStartFailures
			t.logger.Warn("chrome failed to start",
				zap.Int("consecutive_failures", t.consecutiveChromeFailures),
				zap.Int("max_allowed", limit),
				zap.Error(err),
			)

			if t.consecutiveChromeFailures >= limit {
				t.logger.Error("too many consecutive chrome startup failures, exiting for restart",
					zap.Int("consecutive_failures", t.consecutiveChromeFailures),
				)
				return fmt.Errorf("%w: %d in a row", ErrTooManyStartFailures, t.consecutiveChromeFailures)
			}

			// Not a page problem, so not a failed visit
			return nil
		}

		t.logger.Error("failed to visit site", zap.String("site", site.GetName()), zap.Error(err))
		t.recordVisit(false)
		return nil
	}

	t.consecutiveChromeFailures = 0

	fields := []zap.Field{
		zap.String("site", result.Site.Name),
		zap.String("visit_id", result.VisitID),
		zap.Bool("success", result.Status.Success),
		zap.Int64("duration_ms", result.TotalDurationMs),
		zap.Int("reports", len(result.Metrics)),
	}
	if result.Error != nil {
		fields = append(fields, zap.String("error_type", result.Error.ErrorType), zap.String("error", result.Error.ErrorMessage))
		t.logger.Warn("visit failed", fields...)
	} else {
		t.logger.Info("visit complete", fields...)
	}

	t.recordVisit(result.Status.Success)
	return nil
}

func (t *TestLoop) recordVisit(success bool) {
	if t.recorder != nil {
		t.recorder.RecordVisit(success)
	}
}

// Stop gracefully stops the visit loop
func (t *TestLoop) Stop() error {
	close(t.stopChan)
	return nil
}
