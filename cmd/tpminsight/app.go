package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/HerbHall/tpminsight/internal/alert"
	"github.com/HerbHall/tpminsight/internal/config"
	"github.com/HerbHall/tpminsight/internal/event"
	"github.com/HerbHall/tpminsight/internal/insight"
	"github.com/HerbHall/tpminsight/internal/llm"
	"github.com/HerbHall/tpminsight/internal/scheduler"
	"github.com/HerbHall/tpminsight/internal/server"
	"github.com/HerbHall/tpminsight/internal/source"
	"github.com/HerbHall/tpminsight/internal/store"
	"github.com/HerbHall/tpminsight/internal/version"
	"github.com/HerbHall/tpminsight/pkg/core"
	"github.com/HerbHall/tpminsight/pkg/roles"
	"go.uber.org/zap"
)

// app is the composition root shared by every subcommand.
type app struct {
	cfg    *config.ViperConfig
	logger *zap.Logger
	db     *store.SQLiteStore
	bus    *event.Bus

	sources   *source.Store
	insights  *insight.InsightStore
	alerts    *alert.AlertStore
	pipeline  *insight.Pipeline
	evaluator *alert.Evaluator
	urgent    *alert.UrgentNotifier
	engine    *insight.Engine

	alertCfg     alert.Config
	insightCfg   insight.Config
	schedulerCfg scheduler.Config
}

// newApp loads configuration, opens the database, applies migrations and
// wires the insight and alert subsystems.
func newApp(ctx context.Context, configPath string) (*app, error) {
	v, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := config.NewLogger(v)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: config.New(v), logger: logger}
	if err := a.loadSections(); err != nil {
		return nil, err
	}

	if f := v.ConfigFileUsed(); f != "" {
		logger.Info("configuration loaded", zap.String("component", "config"), zap.String("source", f))
	} else {
		logger.Debug("no configuration file found, using defaults", zap.String("component", "config"))
	}

	if err := a.openStore(ctx); err != nil {
		return nil, err
	}

	a.bus = event.NewBus(logger.Named("event"))
	a.bus.SubscribeAll(func(_ context.Context, e core.Event) {
		logger.Debug("event", zap.String("topic", e.Topic), zap.String("source", e.Source))
	})

	a.sources = source.NewStore(a.db.DB())
	a.insights = insight.NewInsightStore(a.db.DB())
	a.alerts = alert.NewAlertStore(a.db.DB())

	a.pipeline, err = a.buildPipeline()
	if err != nil {
		a.Close()
		return nil, err
	}
	if err := a.buildAlerting(); err != nil {
		a.Close()
		return nil, err
	}
	a.engine = insight.NewEngine(a.pipeline, a.insights, a.evaluator.Rules(), a.alerts)
	return a, nil
}

func (a *app) loadSections() error {
	a.insightCfg = insight.DefaultConfig()
	if err := a.cfg.Sub("insight").Unmarshal(&a.insightCfg); err != nil {
		return fmt.Errorf("decode insight config: %w", err)
	}
	a.alertCfg = alert.DefaultConfig()
	if err := a.cfg.Sub("alert").Unmarshal(&a.alertCfg); err != nil {
		return fmt.Errorf("decode alert config: %w", err)
	}
	a.schedulerCfg = scheduler.DefaultConfig()
	if err := a.cfg.Sub("scheduler").Unmarshal(&a.schedulerCfg); err != nil {
		return fmt.Errorf("decode scheduler config: %w", err)
	}
	return nil
}

func (a *app) openStore(ctx context.Context) error {
	dbCfg := store.DefaultConfig()
	if err := a.cfg.Sub("database").Unmarshal(&dbCfg); err != nil {
		return fmt.Errorf("decode database config: %w", err)
	}

	db, err := store.Open(ctx, dbCfg)
	if err != nil {
		return err
	}
	a.db = db

	if err := db.CheckVersion(ctx, version.Short()); err != nil {
		db.Close()
		return err
	}
	if err := db.MigrateAll(ctx, schemaModules()...); err != nil {
		db.Close()
		return err
	}
	a.logger.Info("database initialized", zap.String("component", "database"), zap.String("path", db.Path()))
	return nil
}

// schemaModules lists the migration sets the engine owns, in apply order.
func schemaModules() []store.Module {
	return []store.Module{
		{Name: "source", Migrations: source.Migrations()},
		{Name: "insight", Migrations: insight.Migrations()},
		{Name: "alert", Migrations: alert.Migrations()},
	}
}

func (a *app) buildPipeline() (*insight.Pipeline, error) {
	templates, err := insight.NewTemplateRegistry(insight.DefaultTemplates(a.insightCfg.ReorderLevel)...)
	if err != nil {
		return nil, fmt.Errorf("register templates: %w", err)
	}

	var provider roles.RecommendationProvider
	llmCfg := llm.DefaultConfig()
	if err := a.cfg.Sub("llm").Unmarshal(&llmCfg); err != nil {
		return nil, fmt.Errorf("decode llm config: %w", err)
	}
	if llmCfg.Enabled {
		rec, err := llm.New(llmCfg, a.logger.Named("llm"))
		if err != nil {
			return nil, err
		}
		provider = rec
		a.logger.Info("llm recommendations enabled", zap.String("component", "llm"), zap.String("model", rec.Model()))
	}

	return insight.NewPipeline(insight.PipelineDeps{
		Logger:      a.logger.Named("insight"),
		Config:      a.insightCfg,
		Templates:   templates,
		Data:        a.sources,
		Predictions: insight.NewSeasonalPredictor(a.sources, a.insightCfg),
		Recommender: insight.NewRecommender(provider, a.insightCfg.MaxRecommendations, a.logger.Named("recommend")),
		Writer:      a.insights,
		Bus:         a.bus,
	}), nil
}

func (a *app) buildAlerting() error {
	rules, err := alert.NewRuleRegistry(alert.DefaultRules()...)
	if err != nil {
		return fmt.Errorf("register alert rules: %w", err)
	}
	webhook := alert.NewWebhookNotifier(a.alertCfg.Webhook)
	if webhook.Enabled() {
		a.logger.Info("alert webhook enabled", zap.String("component", "alert"))
	}
	router := alert.NewDefaultRouter(a.alerts, webhook, a.bus, a.logger.Named("alert"))

	a.evaluator = alert.NewEvaluator(alert.EvaluatorDeps{
		Logger:     a.logger.Named("alert"),
		Config:     a.alertCfg,
		Rules:      rules,
		History:    a.alerts,
		Dispatcher: router,
		Bus:        a.bus,
	})
	a.urgent = alert.NewUrgentNotifier(a.bus, webhook, a.logger.Named("urgent"))
	return nil
}

func (a *app) newScheduler() *scheduler.Scheduler {
	return scheduler.New(scheduler.Deps{
		Logger:                 a.logger.Named("scheduler"),
		Config:                 a.schedulerCfg,
		Tenants:                a.sources,
		Data:                   a.sources,
		Insights:               a.pipeline,
		Alerts:                 a.evaluator,
		Urgent:                 a.urgent,
		IncludeRecommendations: a.insightCfg.IncludeRecommendations,
	})
}

func (a *app) api() *server.API {
	return &server.API{
		Logger:   a.logger.Named("api"),
		Pipeline: a.pipeline,
		Insights: a.insights,
		Checker:  a.evaluator,
		Alerts:   a.alerts,
		Data:     a.sources,
		Ingest:   a.sources,
		Metrics:  a.engine,
	}
}

// Close waits for in-flight alert actions and event handlers, then closes the
// database.
func (a *app) Close() {
	if a.evaluator != nil {
		a.evaluator.Wait()
	}
	if a.bus != nil {
		a.bus.Wait()
	}
	var err error
	if a.db != nil {
		err = a.db.Close()
	}
	if err != nil && !errors.Is(err, os.ErrClosed) {
		a.logger.Warn("close database", zap.Error(err))
	}
	_ = a.logger.Sync()
}
