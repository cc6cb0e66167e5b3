package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/servicedesk/internal/observability"
)

// BreachScanner is the SLA tracker's periodic entry point.
type BreachScanner interface {
	ScanForBreaches(ctx context.Context) error
}

// SLAMonitor owns the single breach-scan timer. If a cycle is still
// running when the next tick fires, the tick is skipped rather than
// queued or overlapped.
type SLAMonitor struct {
	scanner  BreachScanner
	interval time.Duration
	logger   *zap.Logger
	metrics  *observability.Metrics

	mu sync.Mutex
}

// NewSLAMonitor constructs the monitor.
func NewSLAMonitor(scanner BreachScanner, interval time.Duration, logger *zap.Logger, metrics *observability.Metrics) *SLAMonitor {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &SLAMonitor{
		scanner:  scanner,
		interval: interval,
		logger:   logger,
		metrics:  metrics,
	}
}

// Start runs the scan loop until ctx is cancelled.
func (m *SLAMonitor) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		m.logger.Info("sla monitor started", zap.Duration("interval", m.interval))
		for {
			select {
			case <-ctx.Done():
				m.logger.Info("sla monitor stopped")
				return
			case <-ticker.C:
				m.RunOnce(ctx)
			}
		}
	}()
}

// RunOnce executes a single scan cycle, skipping if one is already in
// flight.
func (m *SLAMonitor) RunOnce(ctx context.Context) {
	if !m.mu.TryLock() {
		m.logger.Warn("sla scan still running; skipping cycle")
		m.metrics.RecordScan(true)
		return
	}
	defer m.mu.Unlock()

	start := time.Now()
	if err := m.scanner.ScanForBreaches(ctx); err != nil {
		m.logger.Error("sla scan failed", zap.Error(err))
	}
	m.metrics.RecordScan(false)
	m.logger.Debug("sla scan completed", zap.Duration("took", time.Since(start)))
}
