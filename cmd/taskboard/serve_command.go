package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/spf13/cobra"

	"taskboard/internal/api"
	"taskboard/internal/bot"
	"taskboard/internal/config"
	"taskboard/internal/service"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard API, the Telegram bot and the scheduled jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if err := cfg.RequireServer(); err != nil {
				return err
			}
			return ctx.withApp(func(a *app) error {
				return serve(cmd.Context(), cfg, ctx.location, a)
			})
		},
	}
}

func serve(ctx context.Context, cfg config.Config, loc *time.Location, a *app) error {
	logger := slog.Default()
	sessions := service.NewSessionStore(cfg.SessionTTL)
	auth := service.NewAuthService(cfg.AdminPassword, cfg.AdminEmployeeID, a.employeeRepo, sessions)

	server := api.NewServer(api.Deps{
		Auth:          auth,
		Tasks:         a.tasks,
		Employees:     a.employees,
		Groups:        a.groups,
		LookAheadDays: cfg.LookAheadDays,
		Location:      loc,
		Logger:        logger,
	})

	scheduler := service.NewSchedulerService(loc, logger)
	sweep := func() {
		jobCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		// errors are logged per task by the recreator
		_, _ = a.recreator.Sweep(jobCtx, time.Now().Add(-cfg.SweepWindow))
	}
	if cfg.SweepInterval > 0 {
		if _, err := scheduler.ScheduleInterval(cfg.SweepInterval, sweep); err != nil {
			return err
		}
	}

	var telegramBot *bot.Bot
	if cfg.TelegramToken != "" {
		b, err := bot.New(cfg.TelegramToken, bot.Deps{
			Employees: a.employees,
			Tasks:     a.tasks,
			Reminders: a.reminders,
			Location:  loc,
			Logger:    logger,
		})
		if err != nil {
			return err
		}
		telegramBot = b
		a.recreator.AddListener(telegramBot)
		if _, err := scheduler.ScheduleDaily(cfg.DigestTime, func() {
			jobCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
			defer cancel()
			if err := telegramBot.SendDailyDigests(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("daily digest", "error", err)
			}
		}); err != nil {
			return err
		}
	} else {
		logger.Info("telegram token not set, bot disabled")
	}

	// repair chains left open by a previous run before taking traffic
	sweep()

	scheduler.Start()
	defer scheduler.Stop()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg     conc.WaitGroup
		runErr error
	)
	wg.Go(func() {
		// a dead listener takes the bot down with it
		defer cancel()
		if err := server.ListenAndServe(runCtx, cfg.Addr()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			runErr = err
		}
	})
	if telegramBot != nil {
		wg.Go(func() {
			if err := telegramBot.Start(runCtx); err != nil {
				logger.Error("bot stopped", "error", err)
			}
		})
	}

	logger.Info("taskboard started", "addr", cfg.Addr(), "timezone", loc.String())
	wg.Wait()
	if telegramBot != nil {
		telegramBot.Wait()
	}
	logger.Info("shutdown complete")
	return runErr
}
