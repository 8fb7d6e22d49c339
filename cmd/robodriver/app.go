package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rahul/robodriver/internal/agent"
	"github.com/rahul/robodriver/internal/browser"
	"github.com/rahul/robodriver/internal/governance"
	"github.com/rahul/robodriver/internal/llmclient"
	"github.com/rahul/robodriver/internal/observability"
	"github.com/rahul/robodriver/pkg/config"
)

// app holds everything a command needs to execute goals.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	events   *observability.Logger
	provider *browser.ChromeProvider
	runner   *agent.Runner
	// modelErr is set when no language model could be built.
	modelErr error
}

func newApp(ctx context.Context, cfgFile string) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	logger := observability.NewZapLogger(cfg.Logger)
	events := observability.NewLogger(cfg.Logger)

	policy, err := governance.NewPolicyEngine(cfg.Governance.DeniedActions, cfg.Governance.DeniedURLPatterns)
	if err != nil {
		return nil, err
	}

	providerName, model, modelErr := llmclient.FromConfig(ctx, cfg)
	if modelErr != nil {
		logger.Warn("Language model unavailable", zap.Error(modelErr))
	} else {
		logger.Info("Language model ready", zap.String("provider", providerName))
	}

	chrome := browser.NewChromeProvider(browser.Options{
		Headless:       cfg.Browser.Headless,
		NoSandbox:      cfg.Browser.NoSandbox,
		UserAgent:      cfg.Browser.UserAgent,
		DefaultTimeout: cfg.Browser.DefaultTimeout,
	})

	executor := agent.NewExecutor(agent.ExecutorConfig{
		NavigationTimeout: cfg.Browser.NavigationTimeout,
		ElementTimeout:    cfg.Browser.ElementTimeout,
		MaxWait:           cfg.Agent.MaxWait,
	}, policy, events)

	runner := agent.NewRunner(agent.Config{
		MaxSteps:           cfg.Agent.MaxSteps,
		SnapshotRetries:    cfg.Agent.SnapshotRetries,
		SnapshotRetryDelay: cfg.Agent.SnapshotRetryDelay,
		StepDelay:          cfg.Agent.StepDelay,
		Temperature:        cfg.Agent.Temperature,
	},
		chrome,
		model,
		browser.NewSnapshotter(cfg.Agent.MaxElements, cfg.Agent.SummaryChars),
		executor,
		agent.NewPromptManager(cfg.Agent.PromptsDir),
		logger,
		events,
	)

	return &app{
		cfg:      cfg,
		logger:   logger,
		events:   events,
		provider: chrome,
		runner:   runner,
		modelErr: modelErr,
	}, nil
}

func (a *app) requireModel() error {
	if a.modelErr != nil {
		return fmt.Errorf("language model unavailable: %w (set GEMINI_API_KEY or enable another provider)", a.modelErr)
	}
	return nil
}

func (a *app) Close() {
	_ = a.provider.Close()
	_ = a.events.Sync()
	_ = a.logger.Sync()
}
