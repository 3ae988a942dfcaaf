package jobs

import (
	"context"
	"time"

	"learnhub_backend/internal/config"
	"learnhub_backend/pkg/logger"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

type SessionCloser interface {
	CloseStaleSessions(ctx context.Context, batch int) (int, error)
}

type StreakResetter interface {
	ResetBrokenStreaks(ctx context.Context) (int64, error)
}

const staleBatch = 200

// Scheduler 后台定时任务：关闭过期的计时会话、清零中断的连续学习天数
type Scheduler struct {
	scheduler *gocron.Scheduler
	sessions  SessionCloser
	streaks   StreakResetter
	cfg       config.TimeTrackingConfig
}

func New(sessions SessionCloser, streaks StreakResetter, cfg config.TimeTrackingConfig) *Scheduler {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		sessions:  sessions,
		streaks:   streaks,
		cfg:       cfg,
	}
}

func (s *Scheduler) Start() error {
	interval := s.cfg.SweepInterval
	if interval <= 0 {
		interval = config.DefaultTimeTracking().SweepInterval
	}
	if _, err := s.scheduler.Every(interval).Do(s.SweepStaleSessions); err != nil {
		return err
	}
	if _, err := s.scheduler.Every(1).Day().At("00:05").Do(s.ResetStreaks); err != nil {
		return err
	}

	s.scheduler.StartAsync()
	logger.Log.Info("Scheduler started", zap.Duration("sweepInterval", interval))
	return nil
}

func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) SweepStaleSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	closed, err := s.sessions.CloseStaleSessions(ctx, staleBatch)
	if err != nil {
		logger.Log.Error("stale session sweep failed", zap.Error(err))
		return
	}
	if closed > 0 {
		logger.Log.Info("stale sessions closed", zap.Int("count", closed))
	}
}

func (s *Scheduler) ResetStreaks() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if _, err := s.streaks.ResetBrokenStreaks(ctx); err != nil {
		logger.Log.Error("streak reset failed", zap.Error(err))
	}
}
