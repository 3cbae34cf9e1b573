package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/fastygo/botgateway/domain"
	"github.com/fastygo/botgateway/repository"
)

// StatusChecker abstracts the status monitor.
type StatusChecker interface {
	CheckStatus(ctx context.Context) domain.DownstreamStatus
}

// Starter issues the corrective start command.
type Starter interface {
	Start(ctx context.Context) (domain.Result, error)
}

// TickLease lets a single replica act on a scheduled slot.
type TickLease interface {
	Acquire(ctx context.Context, slot time.Time, owner string) (bool, error)
}

// TickObserver counts ticks by action.
type TickObserver interface {
	ObserveTick(action string)
}

// SchedulerConfig controls when and how long the health check runs.
type SchedulerConfig struct {
	Schedule    string
	TickTimeout time.Duration
	Retention   time.Duration
	RunOnStart  bool
}

// SchedulerDeps are the collaborators of a HealthScheduler. Journal, Lease and
// Observer are optional.
type SchedulerDeps struct {
	Monitor  StatusChecker
	Starter  Starter
	Journal  repository.TickRepository
	Lease    TickLease
	Observer TickObserver
}

// HealthScheduler polls the bot service on a cron schedule and restarts it
// when the reported state is not tolerated by the policy.
type HealthScheduler struct {
	deps   SchedulerDeps
	policy RestartPolicy
	cfg    SchedulerConfig
	logger *zap.Logger
	cron   *cron.Cron
	job    cron.Job
	period time.Duration
	now    func() time.Time
	boot   sync.WaitGroup
}

func NewHealthScheduler(deps SchedulerDeps, policy RestartPolicy, logger *zap.Logger, cfg SchedulerConfig) (*HealthScheduler, error) {
	if deps.Monitor == nil || deps.Starter == nil {
		return nil, fmt.Errorf("health scheduler: monitor and starter are required")
	}
	if cfg.Schedule == "" {
		cfg.Schedule = "0 * * * *"
	}
	if cfg.TickTimeout <= 0 {
		cfg.TickTimeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	schedule, err := cron.ParseStandard(cfg.Schedule)
	if err != nil {
		return nil, fmt.Errorf("health scheduler: invalid schedule %q: %w", cfg.Schedule, err)
	}

	cronLog := cronLogger{logger: logger.Named("cron")}
	hs := &HealthScheduler{
		deps:   deps,
		policy: policy,
		cfg:    cfg,
		logger: logger,
		cron:   cron.New(cron.WithLogger(cronLog)),
		period: schedulePeriod(schedule, time.Now()),
		now:    time.Now,
	}
	// scheduled and boot ticks share one wrapped job, so they never overlap
	hs.job = cron.NewChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)).Then(cron.FuncJob(hs.runTick))
	hs.cron.Schedule(schedule, hs.job)

	return hs, nil
}

// Start launches the cron scheduler.
func (hs *HealthScheduler) Start() {
	if hs == nil || hs.cron == nil {
		return
	}
	hs.cron.Start()
	hs.logger.Info("health scheduler started",
		zap.String("schedule", hs.cfg.Schedule),
		zap.Duration("period", hs.period))
	if hs.cfg.RunOnStart {
		hs.boot.Add(1)
		go func() {
			defer hs.boot.Done()
			hs.job.Run()
		}()
	}
}

// Stop waits for running ticks to finish or for ctx to end.
func (hs *HealthScheduler) Stop(ctx context.Context) {
	if hs == nil || hs.cron == nil {
		return
	}
	stopCtx := hs.cron.Stop()
	done := make(chan struct{})
	go func() {
		<-stopCtx.Done()
		hs.boot.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
	hs.logger.Info("health scheduler stopped")
}

func (hs *HealthScheduler) runTick() {
	ctx, cancel := context.WithTimeout(context.Background(), hs.cfg.TickTimeout)
	defer cancel()

	hs.Tick(ctx)

	if hs.deps.Journal != nil && hs.cfg.Retention > 0 {
		if removed, err := hs.deps.Journal.Prune(ctx, time.Now().Add(-hs.cfg.Retention)); err != nil {
			hs.logger.Warn("tick journal prune failed", zap.Error(err))
		} else if removed > 0 {
			hs.logger.Debug("tick journal pruned", zap.Int("removed", removed))
		}
	}
}

// Tick runs one health check and at most one corrective start. It never
// panics or returns an error; the outcome is carried by the report.
func (hs *HealthScheduler) Tick(ctx context.Context) (report domain.TickReport) {
	report = domain.TickReport{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
		Slot:      hs.slot(hs.now()),
		Action:    domain.TickActionNone,
	}
	log := hs.logger.With(zap.String("tick_id", report.ID), zap.Time("slot", report.Slot))

	defer func() {
		if r := recover(); r != nil {
			report.Action = domain.TickActionRestartFailed
			report.Error = fmt.Sprintf("panic: %v", r)
			log.Error("health tick panicked", zap.Any("panic", r))
		}
		report.Duration = time.Since(report.StartedAt)
		hs.finish(ctx, log, report)
	}()

	if hs.deps.Lease != nil {
		ok, err := hs.deps.Lease.Acquire(ctx, report.Slot, report.ID)
		switch {
		case err != nil:
			log.Warn("tick lease unavailable, checking anyway", zap.Error(err))
		case !ok:
			report.Action = domain.TickActionSkipped
			return report
		}
	}

	status := hs.deps.Monitor.CheckStatus(ctx)
	report.State = status.State
	report.Reported = status.Reported

	if !hs.policy.NeedsRestart(status) {
		return report
	}

	log.Warn("bot is not running, attempting to restart",
		zap.String("state", string(status.State)),
		zap.String("reported", status.Reported),
		zap.String("message", status.Message))

	if _, err := hs.deps.Starter.Start(ctx); err != nil {
		report.Action = domain.TickActionRestartFailed
		report.Error = err.Error()
		return report
	}
	report.Action = domain.TickActionRestart
	return report
}

func (hs *HealthScheduler) finish(ctx context.Context, log *zap.Logger, report domain.TickReport) {
	fields := []zap.Field{
		zap.String("action", string(report.Action)),
		zap.String("state", string(report.State)),
		zap.Duration("took", report.Duration),
	}
	switch report.Action {
	case domain.TickActionRestartFailed:
		log.Error("health check failed", append(fields, zap.String("error", report.Error))...)
	case domain.TickActionSkipped:
		log.Info("health check skipped, slot claimed by another replica", fields...)
	default:
		log.Info("health check completed", fields...)
	}

	if hs.deps.Observer != nil {
		hs.deps.Observer.ObserveTick(string(report.Action))
	}
	if hs.deps.Journal != nil {
		if err := hs.deps.Journal.Append(context.WithoutCancel(ctx), report); err != nil {
			log.Warn("tick journal append failed", zap.Error(err))
		}
	}
}

// slot is the schedule period containing t. Distinct fires of one schedule are
// at least a period apart, so each lands in its own slot, and replicas firing
// for the same scheduled time agree on it.
func (hs *HealthScheduler) slot(t time.Time) time.Time {
	return t.Truncate(hs.period).UTC()
}

// schedulePeriod is the shortest gap between upcoming fires of s, at least a second.
func schedulePeriod(s cron.Schedule, from time.Time) time.Duration {
	var period time.Duration
	prev := s.Next(from)
	for i := 0; i < 32 && !prev.IsZero(); i++ {
		next := s.Next(prev)
		if next.IsZero() {
			break
		}
		if gap := next.Sub(prev); period == 0 || gap < period {
			period = gap
		}
		prev = next
	}
	if period < time.Second {
		period = time.Second
	}
	return period
}

// RestartPolicy decides which reported states are healthy enough to leave alone.
type RestartPolicy struct {
	tolerated map[string]struct{}
}

// NewRestartPolicy tolerates the given reported states. With no states it
// tolerates only "running".
func NewRestartPolicy(states ...string) RestartPolicy {
	p := RestartPolicy{tolerated: make(map[string]struct{})}
	for _, s := range states {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			p.tolerated[s] = struct{}{}
		}
	}
	if len(p.tolerated) == 0 {
		p.tolerated[string(domain.StateRunning)] = struct{}{}
	}
	return p
}

// NeedsRestart reports whether status calls for a corrective start. A failed
// poll counts as the reported state "error".
func (p RestartPolicy) NeedsRestart(status domain.DownstreamStatus) bool {
	if p.tolerated == nil {
		p = NewRestartPolicy()
	}
	reported := strings.ToLower(strings.TrimSpace(status.Reported))
	if reported == "" {
		reported = string(status.State)
	}
	_, ok := p.tolerated[reported]
	return !ok
}

type cronLogger struct {
	logger *zap.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
