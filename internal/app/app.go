package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/SyrupLabs-code/Syrup/internal/agent"
	"github.com/SyrupLabs-code/Syrup/internal/ai"
	"github.com/SyrupLabs-code/Syrup/internal/config"
	"github.com/SyrupLabs-code/Syrup/internal/monitor"
	"github.com/SyrupLabs-code/Syrup/internal/pipeline"
	"github.com/SyrupLabs-code/Syrup/internal/router"
	"github.com/SyrupLabs-code/Syrup/internal/server"
	"github.com/SyrupLabs-code/Syrup/internal/store"
	"github.com/SyrupLabs-code/Syrup/internal/trade"
	"github.com/SyrupLabs-code/Syrup/internal/venue"
	"github.com/SyrupLabs-code/Syrup/internal/venue/dex"
	"github.com/SyrupLabs-code/Syrup/internal/venue/event"
	"github.com/SyrupLabs-code/Syrup/internal/venue/prediction"
)

// App 聚合核心依赖并驱动系统生命周期。
type App struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *venue.Registry
	monitor  *monitor.Service
	server   *server.Server
}

// New 完成全部装配：监控日志、适配器注册表、交易路由器、
// 代理注册表、决策管线与 HTTP 服务。
func New(cfg *config.Config, logger *zap.Logger, st *store.Store) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var svc *monitor.Service
	if st != nil {
		var err error
		svc, err = monitor.NewService(st, logger.Named("monitor"))
		if err != nil {
			return nil, err
		}
	}

	registry := venue.NewRegistry(defaultFactory, logger.Named("registry"))

	rt := router.New(registry, router.Config{
		MaxAttempts:  cfg.Router.MaxAttempts,
		MinBackoff:   cfg.Router.MinBackoff,
		MaxBackoff:   cfg.Router.MaxBackoff,
		LedgerWindow: cfg.Router.LedgerWindow,
		PollInterval: cfg.Router.PollInterval,
		PollWindow:   cfg.Router.PollWindow,
	}, logger.Named("router"))

	agents := agent.NewRegistry(logger.Named("agent"))
	preloadAgents(cfg.Agents, agents, logger)

	providers, err := buildProviders(cfg, logger)
	if err != nil {
		return nil, err
	}

	pl := pipeline.New(providers, &recordingExecutor{router: rt, monitor: svc}, logger.Named("pipeline"))
	if svc != nil {
		pl.WithRecorder(svc)
	}

	creds := configCredentials{venues: cfg.Venues}
	srv := server.New(cfg.Server, registry, rt, agents, pl, creds, svc, logger.Named("server"))

	return &App{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		monitor:  svc,
		server:   srv,
	}, nil
}

// Run 注册启用的场所后启动 HTTP 服务并阻塞到 ctx 取消。
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("交易系统已初始化",
		zap.String("environment", a.cfg.App.Environment),
	)

	a.registerEnabledVenues(ctx)
	defer a.registry.Close()

	if err := a.server.Run(ctx); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("系统异常退出: %w", err)
	}
	a.logger.Info("系统收到退出信号，已停止")
	return nil
}

// registerEnabledVenues 逐个注册配置中启用的场所。
// 单个场所失败只记录告警，不阻止系统启动。
func (a *App) registerEnabledVenues(ctx context.Context) {
	for _, v := range []trade.Venue{trade.VenueDEX, trade.VenuePrediction, trade.VenueEvent} {
		entry, ok := a.cfg.Venues.Entry(v)
		if !ok || !entry.Enabled {
			continue
		}
		if err := a.registry.Register(ctx, v, entry.Credentials); err != nil {
			a.logger.Warn("启动注册场所失败",
				zap.String("venue", string(v)),
				zap.Error(err),
			)
			if a.monitor != nil {
				a.monitor.RecordError(ctx, "启动注册场所失败", err, map[string]interface{}{"venue": string(v)})
			}
			continue
		}
		if a.monitor != nil {
			a.monitor.RecordVenueRegistration(ctx, v, true)
		}
	}
}

// defaultFactory 按场所标识构造对应适配器。
func defaultFactory(v trade.Venue, creds trade.Credentials, logger *zap.Logger) (venue.Adapter, error) {
	switch v {
	case trade.VenueDEX:
		return dex.New(creds, logger)
	case trade.VenuePrediction:
		return prediction.New(creds, logger)
	case trade.VenueEvent:
		return event.New(creds, logger)
	default:
		return nil, venue.NewError(venue.KindUnknownVenue, v, "没有该场所的适配器实现")
	}
}

// configCredentials 把配置中的场所凭据暴露为凭据存储能力。
type configCredentials struct {
	venues config.VenuesConfig
}

func (c configCredentials) Lookup(v trade.Venue) (trade.Credentials, error) {
	entry, ok := c.venues.Entry(v)
	if !ok || !entry.Enabled {
		return trade.Credentials{}, venue.ErrCredentialsNotFound
	}
	return entry.Credentials, nil
}

// recordingExecutor 在路由执行前后落一条审计事件。
type recordingExecutor struct {
	router  *router.Router
	monitor *monitor.Service
}

func (e *recordingExecutor) Execute(ctx context.Context, req trade.Request, idempotencyKey string) (trade.Result, error) {
	result, err := e.router.Execute(ctx, req, idempotencyKey)
	if e.monitor != nil && result.TradeID != "" {
		e.monitor.RecordTradeExecution(ctx, req, idempotencyKey, result)
	}
	return result, err
}

func preloadAgents(configs []config.AgentConfig, agents *agent.Registry, logger *zap.Logger) {
	for _, ac := range configs {
		policy, err := policyFromConfig(ac)
		if err != nil {
			logger.Warn("预加载代理失败",
				zap.String("agent", ac.Name),
				zap.Error(err),
			)
			continue
		}
		if err := agents.Create(policy); err != nil {
			logger.Warn("预加载代理失败",
				zap.String("agent", ac.Name),
				zap.Error(err),
			)
		}
	}
}

func policyFromConfig(ac config.AgentConfig) (agent.Policy, error) {
	provider, err := agent.ParseProvider(ac.Provider)
	if err != nil {
		return agent.Policy{}, err
	}

	venues := make([]trade.Venue, 0, len(ac.Venues))
	for _, raw := range ac.Venues {
		v, err := trade.ParseVenue(raw)
		if err != nil {
			return agent.Policy{}, err
		}
		venues = append(venues, v)
	}

	return agent.Policy{
		Name:            ac.Name,
		Provider:        provider,
		Model:           ac.Model,
		SystemPrompt:    ac.SystemPrompt,
		MaxPositionSize: ac.MaxPositionSize,
		RiskLimit:       ac.RiskLimit,
		Venues:          venues,
	}, nil
}

// buildProviders 只装配携带密钥的提供方，缺失的提供方在
// 调用时报未配置错误而不是启动失败。
func buildProviders(cfg *config.Config, logger *zap.Logger) (pipeline.Providers, error) {
	providers := pipeline.Providers{}

	if cfg.OpenAI.APIKey != "" {
		p, err := ai.NewOpenAIProvider(cfg.OpenAI, logger.Named("openai"))
		if err != nil {
			return nil, err
		}
		providers[agent.ProviderOpenAI] = p
	}

	if cfg.Anthropic.APIKey != "" {
		p, err := ai.NewAnthropicProvider(cfg.Anthropic, logger.Named("anthropic"))
		if err != nil {
			return nil, err
		}
		providers[agent.ProviderAnthropic] = p
	}

	return providers, nil
}
