package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jeeves-cluster-organization/synapse/commbus"
	"github.com/jeeves-cluster-organization/synapse/coreengine/config"
	"github.com/jeeves-cluster-organization/synapse/coreengine/llm"
	"github.com/jeeves-cluster-organization/synapse/coreengine/logging"
	"github.com/jeeves-cluster-organization/synapse/coreengine/orchestrator"
)

// newProvider is swapped in tests.
var newProvider = llm.NewProvider

// globalOptions are the persistent root flags.
type globalOptions struct {
	configPath string
	pipeline   string
	promptFile string
	logLevel   string
	verbose    bool

	getenv func(string) string
	logger logging.Logger // nil: zap at the configured level
}

// app is the wired orchestrator shared by every subcommand.
type app struct {
	cfg      *config.CoreConfig
	registry *config.Registry
	orch     *orchestrator.Orchestrator
	service  *orchestrator.Service
	bus      *commbus.InMemoryCommBus
	recorder *commbus.RecordingMiddleware
	logger   logging.Logger
}

// loadConfig resolves configuration: defaults, file, environment, flags.
func loadConfig(opts *globalOptions) (*config.CoreConfig, *config.Registry, error) {
	cfg, err := config.LoadCoreConfig(opts.configPath)
	if err != nil {
		return nil, nil, err
	}
	if opts.getenv != nil {
		cfg.ApplyEnv(opts.getenv)
	}
	if opts.pipeline != "" {
		cfg.Pipeline = opts.pipeline
	}
	if opts.promptFile != "" {
		cfg.PromptFile = opts.promptFile
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if opts.verbose {
		cfg.LogLevel = "DEBUG"
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	registry, err := cfg.LoadRegistry()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.ValidateAgainst(registry); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, registry, nil
}

// buildApp wires configuration, provider, bus and orchestrator. Missing
// credentials and prompt files become warnings, not errors.
func buildApp(ctx context.Context, opts *globalOptions) (*app, error) {
	cfg, registry, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	logger := opts.logger
	if logger == nil {
		zl, err := logging.New(cfg.LogLevel)
		if err != nil {
			return nil, err
		}
		logger = zl
	}

	var warnings []string
	var prompts config.PromptSource = registry
	if cfg.PromptFile != "" {
		src, err := config.LoadPromptFile(cfg.PromptFile, registry)
		switch {
		case errors.Is(err, config.ErrPromptFileMissing):
			logger.Warn("prompt_file_missing", "path", cfg.PromptFile)
			warnings = append(warnings, fmt.Sprintf(
				"Arquivo de prompts não encontrado em %s: usando os prompts padrão dos agentes.", cfg.PromptFile))
		case err != nil:
			return nil, err
		default:
			logger.Info("prompt_file_loaded", "path", cfg.PromptFile, "prompts", src.Len())
		}
		prompts = src
	}

	var provider llm.Provider
	p, err := newProvider(ctx, cfg)
	switch {
	case errors.Is(err, config.ErrMissingCredential):
		logger.Warn("llm_credential_missing", "provider", cfg.Provider)
	case err != nil:
		return nil, fmt.Errorf("model provider: %w", err)
	default:
		provider = p
	}

	bus := commbus.NewInMemoryCommBus(5*time.Second, logger)
	bus.AddMiddleware(commbus.NewLoggingMiddleware(logger))
	recorder := commbus.NewRecordingMiddleware(200)
	bus.AddMiddleware(recorder)

	orch := orchestrator.New(orchestrator.Deps{
		Registry: registry,
		Config:   cfg,
		Prompts:  prompts,
		Provider: provider,
		Bus:      bus,
		Logger:   logger,
		Warnings: warnings,
	})
	service := orchestrator.NewService(orch)
	if err := service.RegisterQueries(bus); err != nil {
		return nil, err
	}

	logger.Debug("app_built",
		"pipeline", registry.Name,
		"provider", cfg.Provider,
		"model", cfg.Model,
		"credential", provider != nil,
	)
	return &app{
		cfg:      cfg,
		registry: registry,
		orch:     orch,
		service:  service,
		bus:      bus,
		recorder: recorder,
		logger:   logger,
	}, nil
}
