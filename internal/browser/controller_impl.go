package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nickborgers/monorepo/page-performance-monitor/internal/config"
	"github.com/nickborgers/monorepo/page-performance-monitor/internal/models"
	"github.com/nickborgers/monorepo/page-performance-monitor/internal/transport"
	"github.com/nickborgers/monorepo/page-performance-monitor/internal/webperf"
)

// ErrChromeStartupFailure indicates Chrome failed to start (not a page problem)
var ErrChromeStartupFailure = errors.New("chrome failed to start")

// Version is stamped on the metadata of every report
var Version = "dev"

// ControllerImpl is the concrete implementation of the browser controller
type ControllerImpl struct {
	config        *config.BrowserConfig
	allocatorOpts []chromedp.ExecAllocatorOption
	hostname      string
	sink          transport.Sink
	endpoint      string
	logger        *zap.Logger
}

// NewControllerImpl creates a new browser controller with chromedp
func NewControllerImpl(cfg *config.BrowserConfig, sink transport.Sink, endpoint string, logger *zap.Logger) (*ControllerImpl, error) {
	if sink == nil {
		return nil, errors.New("browser controller requires a report sink")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	// A fresh allocator is created per visit so DNS, TCP and TLS are
	// measured cold on every page load
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.DisableGPU,
		chromedp.NoSandbox, // Required for Docker
		chromedp.UserAgent(cfg.UserAgent),
		chromedp.WindowSize(cfg.WindowWidth, cfg.WindowHeight),
		chromedp.Flag("log-level", "3"),
		chromedp.Flag("disable-cache", "true"),
		chromedp.Flag("disable-application-cache", "true"),
		chromedp.Flag("disable-offline-load-stale-cache", "true"),
		chromedp.Flag("disk-cache-size", "0"),
		chromedp.Flag("media-cache-size", "0"),
		chromedp.Flag("disable-http2", "true"),
		chromedp.Flag("disable-quic", "true"),
		chromedp.Flag("disable-features", "NetworkService,TLSSessionResumption"),
	}

	if cfg.Headless {
		opts = append(opts, chromedp.Headless)
	}

	if cfg.DisableImages {
		opts = append(opts, chromedp.Flag("blink-settings", "imagesEnabled=false"))
	}

	return &ControllerImpl{
		config:        cfg,
		allocatorOpts: opts,
		hostname:      hostname,
		sink:          sink,
		endpoint:      endpoint,
		logger:        logger,
	}, nil
}

// Visit loads a site with the page-load metrics attached, stays on it for
// the site's settle time, then leaves so every pending metric is flushed.
func (c *ControllerImpl) Visit(ctx context.Context, site models.SiteDefinition) (*models.VisitResult, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, c.allocatorOpts...)
	defer cancelAlloc()

	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	defer cancelTab()

	// Running no actions starts the browser
	if err := chromedp.Run(tabCtx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrChromeStartupFailure, err)
	}

	visitID := uuid.NewString()
	logger := c.logger.With(zap.String("site", site.GetName()), zap.String("visit_id", visitID))

	result := &models.VisitResult{
		Timestamp: time.Now(),
		VisitID:   visitID,
		Site:      site.Info(),
		Metadata: models.VisitMetadata{
			Hostname:  c.hostname,
			Version:   Version,
			UserAgent: c.config.UserAgent,
		},
	}

	pg := webperf.NewPage(&timingSource{ctx: tabCtx}, webperf.WithPageLogger(logger))
	pm := webperf.New(pg,
		transport.Bind(c.sink, result.Site, visitID, result.Metadata),
		c.endpoint,
		webperf.WithLogger(logger),
	)

	// Runs on the loop goroutine; result.Metrics is read only after the
	// loop has drained
	pm.CollectAll(func(m models.Metric) {
		result.Metrics = append(result.Metrics, m)
		logger.Debug("metric reported",
			zap.String("metric", string(m.Name)),
			zap.Float64("value", m.Value),
			zap.Bool("final", m.IsFinal),
		)
	})

	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		called, ok := ev.(*runtime.EventBindingCalled)
		if !ok || called.Name != feedBinding {
			return
		}
		msg, err := DecodeFeedMessage(called.Payload)
		if err != nil {
			logger.Debug("dropping feed message", zap.Error(err))
			return
		}
		pg.Emit(msg)
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := pg.Loop().Run(tabCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Debug("page loop stopped", zap.Error(err))
		}
	}()

	startTime := time.Now()
	navErr := c.navigate(tabCtx, site)

	if navErr == nil {
		select {
		case <-time.After(site.GetSettle()):
		case <-ctx.Done():
		}
	}

	pg.Leave(float64(time.Since(startTime).Milliseconds()))
	pg.Loop().Close()
	wg.Wait()

	result.TotalDurationMs = time.Since(startTime).Milliseconds()

	if navErr != nil {
		if isChromeStartupFailure(navErr) {
			return nil, fmt.Errorf("%w: %v", ErrChromeStartupFailure, navErr)
		}
		result.Status = models.StatusInfo{Success: false, Message: "Failed to load page"}
		result.Error = &models.ErrorInfo{
			ErrorType:    categorizeError(navErr),
			ErrorMessage: navErr.Error(),
		}
		return result, nil
	}

	result.Status = models.StatusInfo{Success: true, Message: "Page loaded successfully"}
	return result, nil
}

// navigate installs the feed and loads the site within its timeout
func (c *ControllerImpl) navigate(tabCtx context.Context, site models.SiteDefinition) error {
	navCtx, cancel := context.WithTimeout(tabCtx, site.GetTimeout())
	defer cancel()

	return chromedp.Run(navCtx,
		runtime.AddBinding(feedBinding),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(feedScript).Do(ctx)
			return err
		}),
		chromedp.Navigate(site.URL),
		chromedp.ActionFunc(func(ctx context.Context) error {
			if site.WaitForNetworkIdle {
				return chromedp.WaitReady("body", chromedp.ByQuery).Do(ctx)
			}
			return nil
		}),
	)
}

// Close shuts down the browser controller. Every visit owns its browser,
// so there is nothing to release.
func (c *ControllerImpl) Close() error {
	return nil
}

// isChromeStartupFailure detects if Chrome failed to start
func isChromeStartupFailure(err error) bool {
	errStr := strings.ToLower(err.Error())

	return strings.Contains(errStr, "chrome failed to start") ||
		strings.Contains(errStr, "failed to start chrome") ||
		strings.Contains(errStr, "failed to allocate") ||
		strings.Contains(errStr, "cannot start chrome")
}

// categorizeError determines the error type
func categorizeError(err error) string {
	errStr := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errStr, "context deadline exceeded"):
		return "timeout"
	case strings.Contains(errStr, "context canceled"):
		return "timeout"
	case strings.Contains(errStr, "dns"):
		return "dns"
	case strings.Contains(errStr, "name_not_resolved"):
		return "dns"
	case strings.Contains(errStr, "connection refused"), strings.Contains(errStr, "connection_refused"):
		return "connection_refused"
	case strings.Contains(errStr, "tls"), strings.Contains(errStr, "ssl"), strings.Contains(errStr, "cert_"):
		return "tls"
	case strings.Contains(errStr, "timeout"), strings.Contains(errStr, "timed_out"):
		return "timeout"
	case strings.Contains(errStr, "no such host"):
		return "dns"
	default:
		return "unknown"
	}
}
