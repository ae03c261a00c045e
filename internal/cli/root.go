package cli

import (
	"context"
	"fmt"

	"plan-tracker/internal/config"
	"plan-tracker/internal/logger"
	"plan-tracker/internal/repository"
	"plan-tracker/internal/service"
)

// Context is handed to every command's Run method.
type Context struct {
	Ctx    context.Context
	Config config.Config
	Repos  *repository.Repositories

	Plans     *service.PlanService
	Scoring   *service.ScoringService
	Templates *service.TemplateService
	Digest    *service.DigestService
	Sweep     *service.SweepService
}

// NewContext opens storage and builds the services shared by all commands.
func NewContext(ctx context.Context, cfg config.Config) (*Context, error) {
	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("db: %w", err)
	}
	repos := repository.NewRepositories(db)

	var nutrition service.NutritionClassifier
	if cfg.NutritionURL != "" {
		nutrition = service.NewNutritionClient(cfg.NutritionURL, cfg.NutritionTimeout)
	}

	var locker service.Locker = &service.LocalLocker{}
	if cfg.RedisURL != "" {
		client, err := service.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		locker = service.NewRedisLocker(client, "", 0)
		logger.Info("sweep lock uses redis")
	}

	return &Context{
		Ctx:       ctx,
		Config:    cfg,
		Repos:     repos,
		Plans:     service.NewPlanService(repos, nutrition, nil, cfg.Location),
		Scoring:   service.NewScoringService(repos, nil),
		Templates: service.NewTemplateService(repos, nutrition),
		Digest:    service.NewDigestService(repos, nil, cfg.Location),
		Sweep:     service.NewSweepService(repos, locker, nil, cfg.Location),
	}, nil
}

// Close releases the database handle.
func (c *Context) Close() {
	if sqlDB, err := c.Repos.DB().DB(); err == nil {
		_ = sqlDB.Close()
	}
}
