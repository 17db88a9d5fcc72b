package metrics

import (
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/nickborgers/monorepo/page-performance-monitor/internal/models"
)

// Dispatcher distributes metric reports to all output modules
type Dispatcher struct {
	outputs []Output
	logger  *zap.Logger
	mu      sync.RWMutex
}

// Output is an interface for report output modules
type Output interface {
	// Write sends a metric report to the output
	Write(report *models.MetricReport) error

	// Name returns the output module name
	Name() string
}

// NewDispatcher creates a new report dispatcher
func NewDispatcher(logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		outputs: make([]Output, 0),
		logger:  logger,
	}
}

// RegisterOutput adds an output module to the dispatcher
func (d *Dispatcher) RegisterOutput(output Output) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.outputs = append(d.outputs, output)
}

// Outputs returns the names of the registered outputs
func (d *Dispatcher) Outputs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	names := make([]string, len(d.outputs))
	for i, o := range d.outputs {
		names[i] = o.Name()
	}
	return names
}

// Dispatch sends a report to all registered outputs.
// Outputs are called in parallel; a failing output never blocks the others.
func (d *Dispatcher) Dispatch(report *models.MetricReport) {
	d.mu.RLock()
	outputs := make([]Output, len(d.outputs))
	copy(outputs, d.outputs)
	d.mu.RUnlock()

	var wg sync.WaitGroup
	for _, output := range outputs {
		wg.Add(1)
		go func(o Output) {
			defer wg.Done()
			if err := o.Write(report); err != nil {
				d.logger.Warn("output write failed",
					zap.String("output", o.Name()),
					zap.String("report_id", report.ReportID),
					zap.Error(err),
				)
			}
		}(output)
	}

	wg.Wait()
}

// Close closes every output that holds resources
func (d *Dispatcher) Close() {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, o := range d.outputs {
		closer, ok := o.(io.Closer)
		if !ok {
			continue
		}
		if err := closer.Close(); err != nil {
			d.logger.Warn("output close failed", zap.String("output", o.Name()), zap.Error(err))
		}
	}
}
