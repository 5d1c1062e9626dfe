package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/vynious/finOS/internal/ingestor/usecase"

	"go.uber.org/zap"
)

// Runner performs one full sync pass
type Runner interface {
	Run(ctx context.Context) (*usecase.SyncReport, error)
}

// SyncScheduler triggers a sync run on a fixed interval. Runs never overlap:
// a tick that fires while a run is in progress is dropped by the ticker.
type SyncScheduler struct {
	runner   Runner
	interval time.Duration
	logger   *zap.Logger

	stopChan chan struct{}
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	once     sync.Once
}

// NewSyncScheduler creates a new scheduler. An interval of zero disables it.
func NewSyncScheduler(runner Runner, interval time.Duration, logger *zap.Logger) *SyncScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SyncScheduler{
		runner:   runner,
		interval: interval,
		logger:   logger.Named("scheduler"),
		stopChan: make(chan struct{}),
	}
}

// Start begins the scheduler loop
func (s *SyncScheduler) Start() {
	if s.interval <= 0 {
		s.logger.Info("sync scheduler disabled")
		return
	}

	s.logger.Info("starting sync scheduler", zap.Duration("interval", s.interval))

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		// Run immediately on start
		s.runOnce(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.runOnce(ctx)
			case <-s.stopChan:
				s.logger.Info("sync scheduler stopped")
				return
			}
		}
	}()
}

// Stop cancels an in-progress run and waits for the loop to exit
func (s *SyncScheduler) Stop() {
	s.once.Do(func() {
		close(s.stopChan)
		if s.cancel != nil {
			s.cancel()
		}
	})
	s.wg.Wait()
}

func (s *SyncScheduler) runOnce(ctx context.Context) {
	start := time.Now()
	report, err := s.runner.Run(ctx)
	if err != nil {
		s.logger.Error("scheduled sync failed", zap.Error(err))
		return
	}
	s.logger.Info("scheduled sync completed",
		zap.String("run_id", report.RunID),
		zap.Int("users", report.Users),
		zap.Int("failed", len(report.Failures)),
		zap.Int("receipts", report.Receipts),
		zap.Duration("took", time.Since(start)))
}
