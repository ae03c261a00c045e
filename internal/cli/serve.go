package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"plan-tracker/internal/api"
	"plan-tracker/internal/bot"
	"plan-tracker/internal/logger"
	"plan-tracker/internal/service"
)

// ServeCmd runs the HTTP API, the Telegram bot and the sweep scheduler.
type ServeCmd struct{}

func (c *ServeCmd) Run(app *Context) error {
	cfg := app.Config
	if err := cfg.RequireFrontend(); err != nil {
		return err
	}
	group, ctx := errgroup.WithContext(app.Ctx)

	scheduler := service.NewSchedulerService(cfg.Location)
	id, err := scheduler.ScheduleSweep(ctx, app.Sweep, cfg.SweepAt, cfg.SweepInterval)
	if err != nil {
		return fmt.Errorf("schedule sweep: %w", err)
	}

	if cfg.TelegramToken != "" {
		telegramBot, err := bot.New(cfg.TelegramToken, bot.Services{
			Users:     app.Repos.Users,
			Plans:     app.Plans,
			Scoring:   app.Scoring,
			Templates: app.Templates,
			Digest:    app.Digest,
		})
		if err != nil {
			return err
		}
		app.Sweep.SetNotifier(telegramBot)

		if cfg.ReportInterval > 0 {
			if _, err := scheduler.ScheduleInterval(cfg.ReportInterval, func() {
				jobCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
				defer cancel()
				if err := telegramBot.SendDailyReports(jobCtx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Warn("daily reports", "err", err)
				}
			}); err != nil {
				return fmt.Errorf("schedule reports: %w", err)
			}
		}

		group.Go(func() error {
			return telegramBot.Start(ctx)
		})
	}

	if cfg.JWTSecret != "" {
		server := api.NewServer(cfg.HTTPAddr, []byte(cfg.JWTSecret), api.Services{
			Templates: app.Templates,
			Plans:     app.Plans,
			Scoring:   app.Scoring,
			Digest:    app.Digest,
		})
		group.Go(func() error {
			return server.Run(ctx)
		})
	}

	scheduler.Start()
	defer scheduler.Stop()
	logger.Info("plan tracker started", "next_sweep", scheduler.Next(id))

	group.Go(func() error {
		<-ctx.Done()
		return nil
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}
