package browser

import (
	"context"

	"go.uber.org/zap"

	"github.com/nickborgers/monorepo/page-performance-monitor/internal/config"
	"github.com/nickborgers/monorepo/page-performance-monitor/internal/models"
	"github.com/nickborgers/monorepo/page-performance-monitor/internal/transport"
)

// Controller is the interface for browser automation
type Controller interface {
	Visit(ctx context.Context, site models.SiteDefinition) (*models.VisitResult, error)
	Close() error
}

// NewController creates a new browser controller. Reports produced during
// visits go to sink, addressed to endpoint.
func NewController(cfg *config.BrowserConfig, sink transport.Sink, endpoint string, logger *zap.Logger) (Controller, error) {
	return NewControllerImpl(cfg, sink, endpoint, logger)
}
