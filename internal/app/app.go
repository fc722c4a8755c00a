// Package app wires the process together: config, logging, storage, the
// Telegram adapter, the reminder service and the command router.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/robfig/cron/v3"

	"remindbot/internal/config"
	"remindbot/internal/notifier"
	"remindbot/internal/reminder"
	"remindbot/internal/router"
	"remindbot/internal/storage"
	kit "remindbot/internal/transport"
	telegram "remindbot/internal/transport/telegram"
	logx "remindbot/pkg/logx"
)

type App struct {
	cfgPath string
	cfg     *config.Config

	log  logx.Logger
	logs *logx.Service

	store   storage.Store
	adapter kit.Adapter
	svc     *reminder.Service
	router  *router.Router

	cron *cron.Cron

	updates chan kit.Update
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewApp(cfgPath string) (*App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	})
	log = log.With(logx.String("comp", "app"))

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	ad, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, logSvc.Logger().With(logx.String("comp", "telegram")))
	if err != nil {
		return nil, err
	}

	busyTimeout, err := config.ParseDurationOrDefault("storage.busy_timeout", cfg.Storage.BusyTimeout, 0)
	if err != nil {
		return nil, err
	}
	st, err := storage.Open(storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busyTimeout,
	}, logSvc.Logger().With(logx.String("comp", "storage")))
	if err != nil {
		return nil, err
	}

	remCfg, err := mapReminderConfig(cfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	notif := notifier.New(ad, cfg.Telegram.RatePerSec, logSvc.Logger().With(logx.String("comp", "notifier")))
	svc := reminder.New(remCfg, st, notif, logSvc.Logger().With(logx.String("comp", "reminder")))
	rt := router.New(ad, svc, logSvc.Logger().With(logx.String("comp", "router")))

	return &App{
		cfgPath: cfgPath,
		cfg:     cfg,
		log:     log,
		logs:    logSvc,
		store:   st,
		adapter: ad,
		svc:     svc,
		router:  rt,
		updates: make(chan kit.Update, 256),
		done:    make(chan struct{}),
	}, nil
}

func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if err := a.adapter.Start(runCtx, a.updates); err != nil {
		cancel()
		return err
	}

	go func() {
		defer close(a.done)
		a.router.Run(runCtx, a.updates)
	}()

	// Recovery before anything can mutate the pending set.
	if err := a.svc.Initialize(runCtx); err != nil {
		cancel()
		return fmt.Errorf("initialize reminders: %w", err)
	}

	if err := a.startReconcile(runCtx); err != nil {
		cancel()
		return err
	}

	// Re-apply logging on config file changes. Other sections need a restart;
	// Watch logs and keeps the previous config when the new file fails to parse.
	go func() {
		err := config.Watch(runCtx, a.cfgPath, a.log.With(logx.String("comp", "config")), func(cfg *config.Config) {
			a.logs.Apply(logx.Config{
				Level:   cfg.Logging.Level,
				Console: cfg.Logging.Console,
				File: logx.FileConfig{
					Enabled: cfg.Logging.File.Enabled,
					Path:    cfg.Logging.File.Path,
				},
			})
			a.log.Info("logging config reloaded", logx.String("level", cfg.Logging.Level))
		})
		if err != nil && runCtx.Err() == nil {
			a.log.Warn("config watch stopped", logx.Err(err))
		}
	}()

	a.notifySystemd(runCtx)

	a.log.Info("app started")
	return nil
}

// startReconcile schedules periodic Initialize calls so the in-memory timer
// set can never drift from the store for longer than one interval.
func (a *App) startReconcile(ctx context.Context) error {
	spec := a.cfg.Reminders.ReconcileSchedule
	if spec == "" {
		spec = "@every 6h"
	}
	if spec == "off" {
		a.log.Debug("reconcile disabled")
		return nil
	}

	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if err := a.svc.Initialize(ctx); err != nil {
			a.log.Warn("reconcile failed", logx.Err(err))
		} else {
			a.log.Debug("reconcile complete")
		}
	})
	if err != nil {
		return fmt.Errorf("reminders.reconcile_schedule: invalid %q: %w", spec, err)
	}
	c.Start()
	a.cron = c
	return nil
}

// notifySystemd signals readiness and keeps the watchdog fed when the process
// runs under a systemd unit with Type=notify. Outside systemd both calls are
// no-ops.
func (a *App) notifySystemd(ctx context.Context) {
	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Debug("sd_notify failed", logx.Err(err))
	} else if sent {
		a.log.Debug("sd_notify ready sent")
	}

	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval == 0 {
		return
	}
	go func() {
		t := time.NewTicker(interval / 2)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
			}
		}
	}()
}

func (a *App) Stop(ctx context.Context) error {
	a.log.Info("stopping")

	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	if a.cron != nil {
		stopped := a.cron.Stop()
		select {
		case <-stopped.Done():
		case <-ctx.Done():
		}
	}

	if a.cancel != nil {
		a.cancel()
	}

	if err := a.adapter.Stop(ctx); err != nil {
		a.log.Warn("adapter stop", logx.Err(err))
	}

	// Wait for the router loop to drain before closing storage under it.
	select {
	case <-a.done:
	case <-ctx.Done():
		a.log.Warn("router drain deadline reached")
	}

	if err := a.store.Close(); err != nil {
		a.log.Warn("storage close", logx.Err(err))
	}

	a.log.Info("stopped")
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}

func mapReminderConfig(cfg *config.Config) (reminder.Config, error) {
	minDelay, err := config.ParseDurationOrDefault("reminders.min_delay", cfg.Reminders.MinDelay, 0)
	if err != nil {
		return reminder.Config{}, err
	}
	maxLookahead, err := config.ParseDurationOrDefault("reminders.max_lookahead", cfg.Reminders.MaxLookahead, 0)
	if err != nil {
		return reminder.Config{}, err
	}
	chainStep, err := config.ParseDurationOrDefault("reminders.chain_step", cfg.Reminders.ChainStep, 0)
	if err != nil {
		return reminder.Config{}, err
	}
	return reminder.Config{
		MinDelay:     minDelay,
		MaxLookahead: maxLookahead,
		ChainStep:    chainStep,
	}, nil
}
