package outputs

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esutil"
	"go.uber.org/zap"

	"github.com/nickborgers/monorepo/page-performance-monitor/internal/config"
	"github.com/nickborgers/monorepo/page-performance-monitor/internal/models"
)

// ErrOutputClosing is returned by asynchronous outputs that are shutting down
var ErrOutputClosing = errors.New("output is shutting down")

// ElasticsearchOutput pushes metric reports to Elasticsearch
type ElasticsearchOutput struct {
	config      *config.ElasticsearchConfig
	client      *elasticsearch.Client
	bulkIndexer esutil.BulkIndexer
	logger      *zap.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	reports     chan *models.MetricReport
}

// NewElasticsearchOutput connects to Elasticsearch and starts the indexing
// worker. It returns nil when the output is disabled.
func NewElasticsearchOutput(cfg *config.ElasticsearchConfig, logger *zap.Logger) (*ElasticsearchOutput, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	esCfg := elasticsearch.Config{
		Addresses:     []string{cfg.Endpoint},
		RetryOnStatus: []int{502, 503, 504, 429},
		MaxRetries:    cfg.MaxRetries,
	}

	if cfg.APIKey != "" {
		esCfg.APIKey = cfg.APIKey
	} else if cfg.Username != "" && cfg.Password != "" {
		esCfg.Username = cfg.Username
		esCfg.Password = cfg.Password
	}

	if cfg.TLSSkipVerify {
		esCfg.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{
				InsecureSkipVerify: true,
			},
		}
	}

	client, err := elasticsearch.NewClient(esCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	res, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch returned error: %s", res.Status())
	}

	logger.Info("connected to Elasticsearch", zap.String("endpoint", cfg.Endpoint))

	bulkIndexer, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Client:        client,
		NumWorkers:    2,
		FlushBytes:    cfg.BulkSize * 1024,
		FlushInterval: cfg.FlushInterval,
		OnError: func(ctx context.Context, err error) {
			logger.Error("Elasticsearch bulk indexer error", zap.Error(err))
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bulk indexer: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	e := &ElasticsearchOutput{
		config:      cfg,
		client:      client,
		bulkIndexer: bulkIndexer,
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
		reports:     make(chan *models.MetricReport, 500),
	}

	e.wg.Add(1)
	go e.processReports()

	return e, nil
}

func (e *ElasticsearchOutput) processReports() {
	defer e.wg.Done()

	for {
		select {
		case <-e.ctx.Done():
			return
		case report := <-e.reports:
			if err := e.indexReport(report); err != nil {
				e.logger.Warn("failed to index report", zap.String("report_id", report.ReportID), zap.Error(err))
			}
		}
	}
}

// indexReport queues one report on the bulk indexer. The report ID is the
// document ID, so a retried report overwrites rather than duplicates.
func (e *ElasticsearchOutput) indexReport(report *models.MetricReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	return e.bulkIndexer.Add(
		e.ctx,
		esutil.BulkIndexerItem{
			Action:     "index",
			Index:      formatIndexName(e.config.IndexPattern, report.Timestamp),
			DocumentID: report.ReportID,
			Body:       bytes.NewReader(data),
			OnFailure: func(ctx context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
				if err != nil {
					e.logger.Warn("Elasticsearch indexing error", zap.String("document_id", item.DocumentID), zap.Error(err))
					return
				}
				e.logger.Warn("Elasticsearch indexing failed",
					zap.String("document_id", item.DocumentID),
					zap.String("type", res.Error.Type),
					zap.String("reason", res.Error.Reason),
				)
			},
		},
	)
}

// formatIndexName expands the date placeholders of an index pattern:
// %{+yyyy.MM.dd}, %{+yyyy.MM} and %{+yyyy}.
func formatIndexName(pattern string, t time.Time) string {
	t = t.UTC()
	return strings.NewReplacer(
		"%{+yyyy.MM.dd}", t.Format("2006.01.02"),
		"%{+yyyy.MM}", t.Format("2006.01"),
		"%{+yyyy}", t.Format("2006"),
	).Replace(pattern)
}

// Write queues a report for indexing. Reports are dropped when the queue
// is full.
func (e *ElasticsearchOutput) Write(report *models.MetricReport) error {
	if e == nil {
		return nil
	}

	select {
	case e.reports <- report:
		return nil
	case <-e.ctx.Done():
		return ErrOutputClosing
	default:
		e.logger.Warn("Elasticsearch report queue is full, dropping report", zap.String("report_id", report.ReportID))
		return nil
	}
}

// Name returns the output module name
func (e *ElasticsearchOutput) Name() string {
	return "elasticsearch"
}

// Close flushes pending documents and stops the worker
func (e *ElasticsearchOutput) Close() error {
	if e == nil {
		return nil
	}

	e.logger.Info("shutting down Elasticsearch output")

	e.cancel()
	e.wg.Wait()

	if err := e.bulkIndexer.Close(context.Background()); err != nil {
		e.logger.Error("error closing Elasticsearch bulk indexer", zap.Error(err))
		return err
	}

	stats := e.bulkIndexer.Stats()
	e.logger.Info("Elasticsearch indexer stats",
		zap.Uint64("indexed", stats.NumIndexed),
		zap.Uint64("failed", stats.NumFailed),
	)

	return nil
}
