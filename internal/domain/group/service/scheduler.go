package service

import (
	"context"
	"time"

	"groupbuy_backend/pkg/logger"

	"go.uber.org/zap"
)

// Scheduler runs the deadline sweep on a fixed interval. A single instance
// per process; the guarded status updates keep multiple replicas safe too.
type Scheduler struct {
	service  GroupService
	interval time.Duration
}

func NewScheduler(service GroupService, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{service: service, interval: interval}
}

// Start runs sweeps until ctx is cancelled. Call in a goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	logger.Log.Info("Deadline scheduler started", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Log.Info("Deadline scheduler stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Scheduler) sweep(ctx context.Context) {
	if err := s.service.ResolveExpired(ctx); err != nil {
		logger.Log.Error("Deadline sweep failed", zap.Error(err))
	}
	if err := s.service.NotifyExpiring(ctx); err != nil {
		logger.Log.Error("Expiry notification sweep failed", zap.Error(err))
	}
}
