package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	goredis "github.com/redis/go-redis/v9"

	"github.com/vtour-agent-core/server/internal/agent/catalog"
	"github.com/vtour-agent-core/server/internal/agent/graph"
	"github.com/vtour-agent-core/server/internal/agent/graph/conversations"
	"github.com/vtour-agent-core/server/internal/agent/graph/formatter"
	"github.com/vtour-agent-core/server/internal/agent/graph/tools"
	"github.com/vtour-agent-core/server/internal/agent/intent"
	"github.com/vtour-agent-core/server/internal/agent/memory"
	"github.com/vtour-agent-core/server/internal/agent/model"
	"github.com/vtour-agent-core/server/internal/agent/router"
	"github.com/vtour-agent-core/server/internal/agent/usage"
	"github.com/vtour-agent-core/server/internal/core"
	logx "github.com/vtour-agent-core/server/pkg/logger"
	pkgredis "github.com/vtour-agent-core/server/pkg/redis"
)

// AppConfig defines all configurable parameters, sourced from environment
// variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL"`

	// Infrastructure
	Redis  pkgredis.Config
	Server model.ServerConfig

	// Agent configs
	Session    model.SessionConfig
	RateLimit  model.RateLimitConfig
	Catalog    model.CatalogConfig
	Router     model.RouterConfig
	Classifier model.ClassifierConfig
	Context    model.ContextConfig
	Tools      model.ToolsConfig
}

func loadConfig(envFile string) (*AppConfig, error) {
	if err := godotenv.Load(envFile); err != nil {
		logx.Debug().Err(err).Str("file", envFile).Msg("no env file, using process environment")
	}
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process environment config: %w", err)
	}
	logx.Init(logx.LoggerOpts{
		Environment: core.ParseEnvironment(cfg.Environment),
		Level:       cfg.LogLevel,
	})
	return &cfg, nil
}

// app owns the engine and the long-lived resources behind it.
type app struct {
	cfg    *AppConfig
	engine *graph.Engine
	memory *memory.Manager
	usage  *usage.Tracker
	redis  *goredis.Client
}

func newApp(ctx context.Context, cfg *AppConfig) (*app, error) {
	a := &app{cfg: cfg}

	store, err := a.sessionStore(ctx)
	if err != nil {
		return nil, err
	}
	source, err := catalogSource(cfg.Catalog)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.memory = memory.NewManager(store, cfg.Session)
	a.usage = usage.NewTracker(cfg.RateLimit)

	rt, err := router.NewFromConfig(ctx, cfg.Router, a.usage, &http.Client{})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("build model router: %w", err)
	}
	var completer intent.Completer
	if len(rt.Providers()) > 0 {
		completer = rt
	}
	classifier, err := intent.New(cfg.Classifier, completer)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("load intent rules: %w", err)
	}

	a.engine, err = graph.NewEngine(ctx, graph.Deps{
		Catalog:    catalog.NewCache(source, cfg.Catalog.CacheTTL),
		Memory:     a.memory,
		Usage:      a.usage,
		Classifier: classifier,
		Router:     rt,
		Tools:      tools.NewExecutor(cfg.Tools, tools.NewLeadSubmitter(cfg.Tools)),
		Builder:    conversations.NewBuilder(cfg.Context),
		Formatter:  formatter.New(),
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("build engine: %w", err)
	}
	logx.Info().
		Strs("providers", rt.Providers()).
		Bool("redis", a.redis != nil).
		Msg("engine ready")
	return a, nil
}

func (a *app) sessionStore(ctx context.Context) (memory.Store, error) {
	if !a.cfg.Redis.Enabled() {
		logx.Info().Msg("REDIS_URL not set, keeping sessions in memory")
		return memory.NewInMemoryStore(), nil
	}
	rdb, err := a.cfg.Redis.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	a.redis = rdb
	return memory.NewRedisStore(rdb, a.cfg.Session.TTL), nil
}

func catalogSource(cfg model.CatalogConfig) (catalog.Source, error) {
	if cfg.File != "" {
		src, err := catalog.LoadFileSource(cfg.File)
		if err != nil {
			return nil, fmt.Errorf("load catalog file: %w", err)
		}
		logx.Info().Str("file", cfg.File).Strs("demos", src.Slugs()).Msg("using file catalog")
		return src, nil
	}
	return catalog.NewStrapiSource(cfg.StrapiURL, cfg.StrapiToken, cfg.RequestTimeout), nil
}

// runSweepers expires idle sessions and rate-limit windows until ctx is done.
func (a *app) runSweepers(ctx context.Context) {
	go a.memory.Run(ctx, a.cfg.Session.SweepInterval)
	go a.usage.Run(ctx, a.cfg.RateLimit.CleanupInterval)
}

func (a *app) Close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
}
