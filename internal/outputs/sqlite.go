package outputs

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/nickborgers/monorepo/page-performance-monitor/internal/config"
	"github.com/nickborgers/monorepo/page-performance-monitor/internal/models"
)

// SQLiteOutput persists every metric report in a local SQLite file
type SQLiteOutput struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteOutput opens (or creates) the database and applies the schema.
// It returns nil when the output is disabled.
func NewSQLiteOutput(cfg *config.SQLiteConfig, logger *zap.Logger) (*SQLiteOutput, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if dir := filepath.Dir(cfg.Path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create sqlite directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Outputs write concurrently; SQLite takes one writer at a time
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	s := &SQLiteOutput{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migration: %w", err)
	}

	logger.Info("SQLite report store ready", zap.String("path", cfg.Path))
	return s, nil
}

func (s *SQLiteOutput) migrate() error {
	const stmt = `
CREATE TABLE IF NOT EXISTS metric_reports (
    report_id    TEXT PRIMARY KEY,
    ts_ms        INTEGER NOT NULL,
    visit_id     TEXT NOT NULL,
    site         TEXT NOT NULL,
    url          TEXT NOT NULL,
    endpoint     TEXT NOT NULL,
    metric       TEXT NOT NULL,
    metric_id    TEXT NOT NULL,
    value        REAL NOT NULL,
    delta        REAL NOT NULL,
    is_final     INTEGER NOT NULL,
    source_entry TEXT
);
CREATE INDEX IF NOT EXISTS idx_metric_reports_site_metric_ts ON metric_reports(site, metric, ts_ms);
`
	if _, err := s.db.Exec(stmt); err != nil {
		return fmt.Errorf("create metric_reports table: %w", err)
	}
	return nil
}

// Write stores one report. Writing the same report ID twice keeps the
// latest copy.
func (s *SQLiteOutput) Write(report *models.MetricReport) error {
	if s == nil {
		return nil
	}

	var source sql.NullString
	if report.Metric.SourceEntry != nil {
		data, err := json.Marshal(report.Metric.SourceEntry)
		if err != nil {
			return fmt.Errorf("encode source entry: %w", err)
		}
		source = sql.NullString{String: string(data), Valid: true}
	}

	final := 0
	if report.Metric.IsFinal {
		final = 1
	}

	_, err := s.db.Exec(`
INSERT OR REPLACE INTO metric_reports
    (report_id, ts_ms, visit_id, site, url, endpoint, metric, metric_id, value, delta, is_final, source_entry)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		report.ReportID,
		report.Timestamp.UnixMilli(),
		report.VisitID,
		report.SiteLabel(),
		report.Site.URL,
		report.Endpoint,
		string(report.Metric.Name),
		report.Metric.ID,
		report.Metric.Value,
		report.Metric.Delta,
		final,
		source,
	)
	if err != nil {
		return fmt.Errorf("insert report %s: %w", report.ReportID, err)
	}
	return nil
}

// Query returns the reports of one metric on one site within [from, to),
// oldest first. An empty name matches every metric.
func (s *SQLiteOutput) Query(ctx context.Context, site string, name models.MetricName, from, to time.Time) ([]*models.MetricReport, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT report_id, ts_ms, visit_id, site, url, endpoint, metric, metric_id, value, delta, is_final, source_entry
FROM metric_reports
WHERE site = ? AND (? = '' OR metric = ?) AND ts_ms >= ? AND ts_ms < ?
ORDER BY ts_ms, rowid`,
		site, string(name), string(name), from.UnixMilli(), to.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("query reports: %w", err)
	}
	defer rows.Close()

	var reports []*models.MetricReport
	for rows.Next() {
		var (
			r      models.MetricReport
			tsMs   int64
			metric string
			final  int
			source sql.NullString
		)
		if err := rows.Scan(&r.ReportID, &tsMs, &r.VisitID, &r.Site.Name, &r.Site.URL, &r.Endpoint,
			&metric, &r.Metric.ID, &r.Metric.Value, &r.Metric.Delta, &final, &source); err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}

		r.Timestamp = time.UnixMilli(tsMs).UTC()
		r.Metric.Name = models.MetricName(metric)
		r.Metric.IsFinal = final == 1
		if source.Valid {
			var entry models.PerformanceEntry
			if err := json.Unmarshal([]byte(source.String), &entry); err != nil {
				return nil, fmt.Errorf("decode source entry of %s: %w", r.ReportID, err)
			}
			r.Metric.SourceEntry = &entry
		}
		reports = append(reports, &r)
	}

	return reports, rows.Err()
}

// Name returns the output module name
func (s *SQLiteOutput) Name() string {
	return "sqlite"
}

// Close shuts down the database connection
func (s *SQLiteOutput) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
