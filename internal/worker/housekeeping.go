package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/servicedesk/internal/clock"
	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/repository"
	"github.com/spec-kit/servicedesk/internal/service"
)

// Housekeeper auto-closes requests that have sat in RESOLVED beyond
// the retention window.
type Housekeeper struct {
	requests  repository.RequestRepository
	lifecycle *service.RequestService
	clk       clock.Clock
	logger    *zap.Logger

	interval  time.Duration
	retention time.Duration
}

// NewHousekeeper constructs the worker.
func NewHousekeeper(requests repository.RequestRepository, lifecycle *service.RequestService, clk clock.Clock, logger *zap.Logger, interval time.Duration, retentionDays int) *Housekeeper {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	if retentionDays <= 0 {
		retentionDays = 7
	}
	return &Housekeeper{
		requests:  requests,
		lifecycle: lifecycle,
		clk:       clk,
		logger:    logger,
		interval:  interval,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
	}
}

// Start runs the auto-close loop until ctx is cancelled.
func (h *Housekeeper) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(h.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.RunOnce(ctx)
			}
		}
	}()
}

// RunOnce closes every request resolved before the retention cutoff.
func (h *Housekeeper) RunOnce(ctx context.Context) {
	cutoff := h.clk.Now().Add(-h.retention)
	stale, err := h.requests.ListResolvedBefore(ctx, cutoff)
	if err != nil {
		h.logger.Error("auto-close query failed", zap.Error(err))
		return
	}
	closed := 0
	for i := range stale {
		if _, err := h.lifecycle.Transition(ctx, stale[i].ID, domain.StatusClosed, service.SystemActor(), "auto-closed after resolution retention"); err != nil {
			h.logger.Warn("auto-close failed",
				zap.String("request_id", stale[i].ID),
				zap.Error(err))
			continue
		}
		closed++
	}
	if closed > 0 {
		h.logger.Info("auto-closed resolved requests", zap.Int("count", closed))
	}
}
