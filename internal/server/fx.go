// Package server runs the long-lived surfaces of freebie-watch: the chat
// update loop, the check scheduler and the status HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/JakeFAU/freebie-watch/internal/api"
	"github.com/JakeFAU/freebie-watch/internal/app"
	"github.com/JakeFAU/freebie-watch/internal/bot"
	"github.com/JakeFAU/freebie-watch/internal/config"
	"github.com/JakeFAU/freebie-watch/internal/dispatcher"
	queueMemory "github.com/JakeFAU/freebie-watch/internal/queue/memory"
	"github.com/JakeFAU/freebie-watch/internal/scheduler"
	"github.com/JakeFAU/freebie-watch/internal/telegram"
)

const (
	scheduledCheckJob = "scheduled-check"
	shutdownTimeout   = 10 * time.Second
)

// UpdateSource delivers inbound chat updates until ctx ends.
type UpdateSource interface {
	Poll(ctx context.Context, handle func(context.Context, telegram.Update)) error
}

// App contains the running surfaces and the services they drive.
type App struct {
	cfg      config.Config
	logger   *zap.Logger
	bot      *bot.Bot
	updates  UpdateSource
	queue    *queueMemory.Queue[telegram.Update]
	dispatch *dispatcher.Dispatcher[telegram.Update]
	sched    *scheduler.Scheduler
	api      *api.Server
	ready    atomic.Bool
}

// Option customizes Build.
type Option func(*App)

// WithUpdates replaces the update source, for tests.
func WithUpdates(u UpdateSource) Option {
	return func(a *App) { a.updates = u }
}

// Build wires the running surfaces around the services in container.
func Build(container *app.App, opts ...Option) (*App, error) {
	cfg := container.Config()
	logger := container.GetLogger()
	a := &App{
		cfg:    cfg,
		logger: logger,
		bot:    container.Bot(),
	}
	if client := container.Telegram(); client != nil {
		a.updates = client
	}
	for _, opt := range opts {
		opt(a)
	}

	a.queue = queueMemory.NewQueue[telegram.Update](cfg.Dispatcher.QueueDepth)
	a.dispatch = dispatcher.NewPool[telegram.Update](a.queue, cfg.Dispatcher.Workers, a.bot.HandleUpdate, logger.Named("dispatcher"))

	if cfg.Schedule.Enabled {
		a.sched = scheduler.New(cfg.Location(), logger.Named("scheduler"))
		if err := a.sched.Add(scheduledCheckJob, cfg.Schedule.Spec, a.bot.RunScheduled); err != nil {
			return nil, fmt.Errorf("schedule checks: %w", err)
		}
	}

	a.api = api.NewServer(a.bot, a.Ready, api.Config{
		RequestTimeout: config.Seconds(cfg.Server.RequestTimeoutSeconds),
	}, logger.Named("api"))

	logger.Info("server built",
		zap.Bool("polling", a.updates != nil),
		zap.Bool("schedule", a.sched != nil),
		zap.Bool("http", cfg.Server.Enabled),
		zap.Int("workers", a.dispatch.Size()))
	return a, nil
}

// Ready reports whether every surface has started.
func (a *App) Ready() bool { return a.ready.Load() }

// Handler exposes the status API.
func (a *App) Handler() http.Handler { return a.api.Handler() }

func (a *App) enqueue(ctx context.Context, u telegram.Update) {
	if err := a.dispatch.Enqueue(ctx, u); err != nil && ctx.Err() == nil {
		a.logger.Warn("update dropped", zap.Int("update_id", u.ID), zap.Error(err))
	}
}

// Run starts every surface and blocks until ctx is canceled, SIGINT or
// SIGTERM arrives, or a surface fails. The HTTP server gets shutdownTimeout
// to drain.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("application started")
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("dispatcher started")
		a.dispatch.Run(gctx)
		return nil
	})

	if a.updates != nil {
		g.Go(func() error {
			a.logger.Info("update polling started")
			if err := a.updates.Poll(gctx, a.enqueue); err != nil {
				return fmt.Errorf("poll updates: %w", err)
			}
			return nil
		})
	} else {
		a.logger.Warn("no update source, chat commands are disabled")
	}

	if a.sched != nil {
		if next, ok := a.sched.Next(scheduledCheckJob); ok {
			a.logger.Info("checks scheduled", zap.String("spec", a.cfg.Schedule.Spec), zap.Time("next", next))
		}
		g.Go(func() error { return a.sched.Run(gctx) })
	}

	if a.cfg.Schedule.CheckOnStart {
		g.Go(func() error {
			a.bot.RunScheduled(gctx)
			return nil
		})
	}

	var srv *http.Server
	if a.cfg.Server.Enabled {
		srv = &http.Server{
			Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
			Handler:           a.api.Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		a.ready.Store(false)
		a.logger.Info("shutdown initiated")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if srv != nil {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.logger.Error("server shutdown error", zap.Error(err))
			}
		}
		a.queue.Close()
		return nil
	})

	a.ready.Store(true)
	err := g.Wait()
	a.logger.Info("shutdown complete")
	return err
}
