/**
 * @description
 * Keep-alive scheduler. Pings the portal with the current session on a fixed
 * interval so an idle service does not lose its session. Probes are best
 * effort: failures are logged and the schedule keeps running.
 */
package app

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/nguyenkhoa0721/lookup-bank/internal/domain"
	"github.com/robfig/cron/v3"
)

// DefaultKeepAliveInterval matches the portal web client's own refresh cadence.
const DefaultKeepAliveInterval = 60 * time.Second

// Prober sends one keep-alive probe.
type Prober interface {
	Ping(ctx context.Context) error
}

// KeepAlive runs a Prober immediately on Start and then every interval.
type KeepAlive struct {
	prober       Prober
	interval     time.Duration
	probeTimeout time.Duration
	cron         *cron.Cron
	logger       *slog.Logger

	mu      sync.Mutex
	started bool
	stopped bool
	ctx     context.Context
	cancel  context.CancelFunc
	initial sync.WaitGroup
}

// NewKeepAlive creates a keep-alive scheduler. Intervals below one second are
// raised to one second, the finest granularity of the underlying scheduler.
func NewKeepAlive(prober Prober, interval time.Duration, logger *slog.Logger) *KeepAlive {
	if interval <= 0 {
		interval = DefaultKeepAliveInterval
	}
	if interval < time.Second {
		interval = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "keep_alive")

	cronLogger := cron.PrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelWarn))
	c := cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))

	ctx, cancel := context.WithCancel(context.Background())
	return &KeepAlive{
		prober:       prober,
		interval:     interval,
		probeTimeout: interval,
		cron:         c,
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Start fires the first probe right away and schedules the rest. Calling
// Start more than once, or after Stop, has no effect.
func (k *KeepAlive) Start() {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.started || k.stopped {
		return
	}
	k.started = true

	k.cron.Schedule(cron.Every(k.interval), cron.FuncJob(k.tick))
	k.cron.Start()

	k.initial.Add(1)
	go func() {
		defer k.initial.Done()
		defer func() {
			if r := recover(); r != nil {
				k.logger.Error("keep-alive probe panicked", "panic", r)
			}
		}()
		k.tick()
	}()
	k.logger.Info("keep-alive started", "interval", k.interval.String())
}

// Stop cancels the schedule. It is safe to call multiple times. The returned
// context is done once any in-flight probe has returned.
func (k *KeepAlive) Stop() context.Context {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.stopped || !k.started {
		k.stopped = true
		k.cancel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	k.stopped = true
	k.cancel()
	cronCtx := k.cron.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-cronCtx.Done()
		k.initial.Wait()
		cancel()
	}()
	k.logger.Info("keep-alive stopped")
	return ctx
}

func (k *KeepAlive) tick() {
	if k.ctx.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(k.ctx, k.probeTimeout)
	defer cancel()

	err := k.prober.Ping(ctx)
	switch {
	case err == nil:
		k.logger.Debug("keep-alive probe succeeded")
	case errors.Is(err, domain.ErrNoSession):
		k.logger.Debug("keep-alive probe skipped, no session yet")
	default:
		k.logger.Warn("keep-alive probe failed", "error", err)
	}
}
