package app

import (
	"context"
	"sync"
	"time"

	"github.com/Freeeeeet/studytrack/internal/service"
	"go.uber.org/zap"
)

// Scheduler управляет фоновыми задачами
type Scheduler struct {
	reconcile *service.ReconcileService
	interval  time.Duration
	logger    *zap.Logger
	stopChan  chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// NewScheduler создаёт новый планировщик
func NewScheduler(reconcile *service.ReconcileService, interval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		reconcile: reconcile,
		interval:  interval,
		logger:    logger,
		stopChan:  make(chan struct{}),
	}
}

// Start запускает фоновые задачи
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info("Starting background scheduler", zap.Duration("reconcile_interval", s.interval))

	s.wg.Add(1)
	go s.runReconcileTask(ctx)
}

// Stop останавливает фоновые задачи и ждёт их завершения
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.logger.Info("Stopping background scheduler")
		close(s.stopChan)
	})
	s.wg.Wait()
}

// runReconcileTask периодически сверяет institution_id с членствами
func (s *Scheduler) runReconcileTask(ctx context.Context) {
	defer s.wg.Done()

	// Первый запуск сразу при старте
	s.runReconcile(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runReconcile(ctx)
		case <-s.stopChan:
			s.logger.Info("Reconcile task stopped")
			return
		case <-ctx.Done():
			s.logger.Info("Reconcile task cancelled")
			return
		}
	}
}

func (s *Scheduler) runReconcile(ctx context.Context) {
	report, err := s.reconcile.Run(ctx)
	if err != nil {
		s.logger.Error("Failed to reconcile memberships", zap.Error(err))
		return
	}

	if report.Repaired > 0 {
		s.logger.Warn("Membership drift repaired",
			zap.Int("repaired", report.Repaired),
			zap.Int("orphans", len(report.Orphans)),
		)
	}
}
