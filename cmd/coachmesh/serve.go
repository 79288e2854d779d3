package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicopt "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/hupe1980/coachmesh"
	"github.com/hupe1980/coachmesh/agent"
	"github.com/hupe1980/coachmesh/engine"
	"github.com/hupe1980/coachmesh/guardrail"
	"github.com/hupe1980/coachmesh/internal/config"
	"github.com/hupe1980/coachmesh/logging"
	"github.com/hupe1980/coachmesh/memory"
	"github.com/hupe1980/coachmesh/memory/badgerstore"
	anthropicmodel "github.com/hupe1980/coachmesh/model/anthropic"
	openaimodel "github.com/hupe1980/coachmesh/model/openai"
	"github.com/hupe1980/coachmesh/server"
	"github.com/hupe1980/coachmesh/session"
	openaiopt "github.com/openai/openai-go/option"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Long: `Run the coachmesh HTTP server.

Configuration is read from an optional YAML file and COACHMESH_* environment
variables (COACHMESH_SERVER_PORT=9000 sets server.port).

Examples:
  # Defaults on :8000
  coachmesh serve

  # With a config file
  coachmesh serve --config coachmesh.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	return cmd
}

// app bundles everything run starts and stops.
type app struct {
	logger   *logging.ZapAdapter
	mesh     *coachmesh.CoachMesh
	server   *server.Server
	sessions *session.InMemoryStore
	journal  *badgerstore.Journal
}

// Close releases resources held by the app.
func (a *app) Close() error {
	var errs []error
	if a.journal != nil {
		errs = append(errs, a.journal.Close())
	}
	_ = a.logger.Sync()
	return errors.Join(errs...)
}

// run starts the server and blocks until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	if cfg.Session.IdleTimeout > 0 {
		go a.sessions.Run(ctx, cfg.Session.SweepInterval.Duration())
	}

	if err := a.mesh.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize agents: %w", err)
	}

	a.logger.Info("coachmesh starting",
		"version", version,
		"addr", cfg.Server.Addr(),
		"mindfulness_provider", cfg.Mindfulness.Provider,
		"journal", cfg.Memory.JournalPath != "",
		"shutdown_timeout", cfg.Server.ShutdownTimeout.Duration())

	errCh := make(chan error, 1)
	go func() { errCh <- a.server.Start(cfg.Server.Addr()) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("received shutdown signal")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	a.logger.Info("server shutdown complete")
	return nil
}

// newApp wires config into the logger, the stores, the orchestrator and the
// HTTP server.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	logger := logging.NewZapLogger(&logging.Config{
		Level:  level,
		Format: strings.ToLower(cfg.Logging.Format),
		Output: os.Stdout,
		Fields: map[string]string{"service": "coachmesh"},
	})

	a := &app{logger: logger}

	memOpts := func(o *memory.Options) {
		o.MaxSessionEntries = cfg.Memory.MaxSessionEntries
		o.Logger = logger
	}
	if cfg.Memory.JournalPath != "" {
		j, err := badgerstore.Open(cfg.Memory.JournalPath, func(o *badgerstore.Options) {
			o.Retention = cfg.Memory.Retention.Duration()
			o.Logger = logger
		})
		if err != nil {
			return nil, fmt.Errorf("open memory journal: %w", err)
		}
		a.journal = j
		base := memOpts
		memOpts = func(o *memory.Options) {
			base(o)
			o.Journal = j
		}
	}
	mem := memory.New(memOpts)
	if a.journal != nil {
		n, err := mem.Restore(ctx)
		if err != nil {
			_ = a.journal.Close()
			return nil, fmt.Errorf("restore memory: %w", err)
		}
		logger.Info("memory restored", "entries", n)
	}

	a.sessions = session.NewInMemoryStore(func(o *session.Options) {
		o.IdleTimeout = cfg.Session.IdleTimeout.Duration()
		o.Logger = logger
	})

	writer, err := newLessonWriter(cfg.Mindfulness)
	if err != nil {
		a.closeJournal()
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	var metrics *engine.Metrics
	if cfg.Server.Metrics {
		metrics = engine.NewMetrics(reg)
	}

	mesh, err := coachmesh.New(func(o *coachmesh.Options) {
		o.EngineConfig = engine.Config{
			AgentTimeout:             cfg.Orchestrator.AgentTimeout.Duration(),
			MemoryContextLimit:       cfg.Orchestrator.MemoryLimit,
			MaxConcurrentInvocations: cfg.Orchestrator.MaxConcurrency,
		}
		o.SessionStore = a.sessions
		o.MemoryStore = mem
		o.Guardrail = guardrail.New(func(o *guardrail.Options) {
			o.HistoryCeiling = cfg.Guardrail.HistoryCeiling
			o.Logger = logger
		})
		o.Metrics = metrics
		o.Hooks = engine.NewHooks(engine.LoggingHook(logger))
		o.Logger = logger
		o.PoseOptions = append(o.PoseOptions, func(o *agent.PoseOptions) {
			o.WorkoutCompleteReps = cfg.Pose.WorkoutCompleteReps
		})
		if writer != nil {
			o.MindfulnessOptions = append(o.MindfulnessOptions, func(o *agent.MindfulnessOptions) {
				o.Writer = writer
			})
		}
	})
	if err != nil {
		a.closeJournal()
		return nil, err
	}
	a.mesh = mesh

	a.server = server.New(mesh, func(o *server.Options) {
		o.Version = version
		o.RateLimit = cfg.Server.RateLimit
		o.Burst = cfg.Server.Burst
		o.Tools = mesh.Tools()
		if cfg.Server.Metrics {
			o.Gatherer = reg
		}
		o.Logger = logger.Zap()
	})

	return a, nil
}

func (a *app) closeJournal() {
	if a.journal != nil {
		_ = a.journal.Close()
	}
}

// newLessonWriter returns nil for the template provider, keeping the
// agent's built-in writer.
func newLessonWriter(cfg config.MindfulnessConfig) (agent.LessonWriter, error) {
	switch cfg.Provider {
	case config.ProviderTemplate, "":
		return nil, nil
	case config.ProviderOpenAI:
		return openaimodel.NewLessonWriter(func(o *openaimodel.Options) {
			o.APIKey = cfg.APIKey.Value()
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
			if cfg.BaseURL != "" {
				o.RequestOptions = append(o.RequestOptions, openaiopt.WithBaseURL(cfg.BaseURL))
			}
		}), nil
	case config.ProviderAnthropic:
		return anthropicmodel.NewLessonWriter(func(o *anthropicmodel.Options) {
			o.APIKey = cfg.APIKey.Value()
			if cfg.Model != "" {
				o.Model = anthropic.Model(cfg.Model)
			}
			if cfg.BaseURL != "" {
				o.RequestOptions = append(o.RequestOptions, anthropicopt.WithBaseURL(cfg.BaseURL))
			}
		}), nil
	default:
		return nil, fmt.Errorf("unknown mindfulness provider %q", cfg.Provider)
	}
}
