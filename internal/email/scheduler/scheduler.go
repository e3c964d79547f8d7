package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	emaildomain "email-assistant/internal/email/domain"
	"email-assistant/internal/email/usecase"

	rcron "github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Syncer runs a mailbox sync. usecase.TriageUsecase implements it.
type Syncer interface {
	Sync(ctx context.Context, req usecase.SyncRequest) *usecase.SyncResult
}

// Scheduler runs Sync on a cron schedule. A tick that fires while the
// previous sync is still running is skipped.
type Scheduler struct {
	cron      *rcron.Cron
	job       rcron.Job
	syncer    Syncer
	hoursBack int
	logger    *zap.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// New parses spec (five fields or a descriptor such as "@every 15m").
func New(spec string, syncer Syncer, hoursBack int, logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		syncer:    syncer,
		hoursBack: hoursBack,
		logger:    logger,
		ctx:       context.Background(),
	}

	cronLogger := zapCronLogger{logger}
	chain := rcron.NewChain(rcron.Recover(cronLogger), rcron.SkipIfStillRunning(cronLogger))
	s.job = chain.Then(rcron.FuncJob(s.run))
	s.cron = rcron.New(rcron.WithLogger(cronLogger))

	if _, err := s.cron.AddJob(spec, s.job); err != nil {
		return nil, fmt.Errorf("invalid sync schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start schedules syncs until ctx is done or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.ctx, s.cancel = runCtx, cancel
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("sync scheduler started", zap.Time("next", s.Next()))

	go func() {
		<-runCtx.Done()
		s.Stop()
	}()
}

// Stop cancels an in-flight sync and waits up to five seconds for it.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()

	select {
	case <-s.cron.Stop().Done():
	case <-time.After(5 * time.Second):
		s.logger.Warn("stop timeout waiting for running sync")
	}
	s.logger.Info("sync scheduler stopped")
}

// Next is the time of the next scheduled run.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	if next := entries[0].Next; !next.IsZero() {
		return next
	}
	return entries[0].Schedule.Next(time.Now())
}

func (s *Scheduler) run() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	started := time.Now()
	result := s.syncer.Sync(ctx, usecase.SyncRequest{HoursBack: s.hoursBack, Source: emaildomain.SourceCron})
	fields := []zap.Field{
		zap.Duration("duration", time.Since(started)),
		zap.Int("fetched", result.Fetched),
		zap.Int("processed", result.Processed),
	}
	if !result.Success {
		s.logger.Warn("scheduled sync failed", append(fields, zap.String("message", result.Message))...)
		return
	}
	s.logger.Info("scheduled sync finished", fields...)
}

// zapCronLogger adapts zap to cron's key/value logger.
type zapCronLogger struct {
	logger *zap.Logger
}

func (l zapCronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l zapCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
