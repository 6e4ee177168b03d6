package scheduler

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// AutoPlay runs one periodic task per game on a shared gocron scheduler.
// Starting a game that already has a task replaces it, so the next run is a
// full interval away from the restart.
type AutoPlay struct {
	mu       sync.Mutex
	cron     gocron.Scheduler
	jobs     map[string]uuid.UUID
	logger   *zap.Logger
	onChange func(active int)
}

// Option configures an AutoPlay scheduler
type Option func(*AutoPlay)

// WithOnChange registers a callback invoked with the number of active tasks
func WithOnChange(fn func(active int)) Option {
	return func(a *AutoPlay) { a.onChange = fn }
}

// New creates and starts the scheduler
func New(clock clockwork.Clock, logger *zap.Logger, opts ...Option) (*AutoPlay, error) {
	cron, err := gocron.NewScheduler(
		gocron.WithClock(clock),
		gocron.WithLogger(gocronLogger{logger.Sugar()}),
	)
	if err != nil {
		return nil, fmt.Errorf("create scheduler: %w", err)
	}
	a := &AutoPlay{
		cron:   cron,
		jobs:   make(map[string]uuid.UUID),
		logger: logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	cron.Start()
	return a, nil
}

// Start schedules task every interval for gameID, replacing any existing task
func (a *AutoPlay) Start(gameID string, interval time.Duration, task func()) error {
	if interval <= 0 {
		return fmt.Errorf("invalid auto-play interval %s", interval)
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.removeLocked(gameID)
	job, err := a.cron.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(task),
		gocron.WithName("auto-play:"+gameID),
		gocron.WithTags(gameID),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		a.notifyLocked()
		return fmt.Errorf("schedule auto-play for %s: %w", gameID, err)
	}
	a.jobs[gameID] = job.ID()
	a.logger.Debug("auto-play scheduled", zap.String("game_id", gameID), zap.Duration("interval", interval))
	a.notifyLocked()
	return nil
}

// Stop cancels the task of gameID. It reports whether a task was running and
// is safe to call repeatedly.
func (a *AutoPlay) Stop(gameID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	removed := a.removeLocked(gameID)
	if removed {
		a.logger.Debug("auto-play stopped", zap.String("game_id", gameID))
		a.notifyLocked()
	}
	return removed
}

// Active reports whether gameID has a scheduled task
func (a *AutoPlay) Active(gameID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	_, ok := a.jobs[gameID]
	return ok
}

// Count returns the number of scheduled tasks
func (a *AutoPlay) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.jobs)
}

// Shutdown stops every task and the underlying scheduler
func (a *AutoPlay) Shutdown() error {
	a.mu.Lock()
	a.jobs = make(map[string]uuid.UUID)
	a.notifyLocked()
	a.mu.Unlock()
	return a.cron.Shutdown()
}

func (a *AutoPlay) removeLocked(gameID string) bool {
	id, ok := a.jobs[gameID]
	if !ok {
		return false
	}
	delete(a.jobs, gameID)
	if err := a.cron.RemoveJob(id); err != nil && !errors.Is(err, gocron.ErrJobNotFound) {
		a.logger.Warn("failed to remove auto-play job", zap.String("game_id", gameID), zap.Error(err))
	}
	return true
}

func (a *AutoPlay) notifyLocked() {
	if a.onChange != nil {
		a.onChange(len(a.jobs))
	}
}

// gocronLogger adapts zap to gocron.Logger
type gocronLogger struct {
	l *zap.SugaredLogger
}

func (g gocronLogger) Debug(msg string, args ...any) { g.l.Debugw(msg, args...) }
func (g gocronLogger) Info(msg string, args ...any)  { g.l.Infow(msg, args...) }
func (g gocronLogger) Warn(msg string, args ...any)  { g.l.Warnw(msg, args...) }
func (g gocronLogger) Error(msg string, args ...any) { g.l.Errorw(msg, args...) }
