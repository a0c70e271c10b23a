package main

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/aixgo-dev/jenkinsbot/internal/llm"
	"github.com/aixgo-dev/jenkinsbot/internal/llm/inference"
	"github.com/aixgo-dev/jenkinsbot/internal/llm/prompt"
	"github.com/aixgo-dev/jenkinsbot/internal/observability"
	"github.com/aixgo-dev/jenkinsbot/internal/server"
	"github.com/aixgo-dev/jenkinsbot/pkg/chat"
	"github.com/aixgo-dev/jenkinsbot/pkg/config"
	"github.com/aixgo-dev/jenkinsbot/pkg/logging"
	metrics "github.com/aixgo-dev/jenkinsbot/pkg/observability"
	"github.com/aixgo-dev/jenkinsbot/pkg/session"
	"github.com/aixgo-dev/jenkinsbot/pkg/transcript"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if cfg.Server.Debug && root.logLevel == "" {
				cfg.Logging.Level = "debug"
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return serve(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "listen host (overrides config)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides config)")
	return cmd
}

// serve wires the server components and blocks until ctx is done or one of
// them fails.
func serve(ctx context.Context, cfg *config.Config) error {
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	logger = logger.With().Str("service", "jenkinsbot").Logger()
	logger.Info().
		Str("version", Version).
		Str("addr", cfg.Server.Addr()).
		Str("backend", cfg.Inference.Backend).
		Str("model", cfg.Model.Model).
		Msg("starting jenkinsbot")

	if err := observability.Init(cfg.Tracing, logger); err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := observability.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("tracing shutdown failed")
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.NewMetrics(reg)

	bot, err := newBot(ctx, cfg, logger, m)
	if err != nil {
		return err
	}

	health := metrics.NewHealthChecker(Version)
	health.RegisterCheck(metrics.InferenceCheck(bot.Loaded))

	store := session.NewStore(cfg.Session)
	chatOpts := []chat.Option{chat.WithLogger(logger), chat.WithMetrics(m)}

	if cfg.Transcripts.Addr != "" {
		sink, err := transcript.NewRedisStreamSink(cfg.Transcripts)
		if err != nil {
			return fmt.Errorf("connect transcript sink: %w", err)
		}
		defer func() { _ = sink.Close() }()

		chatOpts = append(chatOpts, chat.WithTranscriptSink(sink))
		health.RegisterCheck(metrics.ExternalServiceCheck("redis", sink.Ping))
		logger.Info().Str("addr", cfg.Transcripts.Addr).Msg("publishing transcripts to redis")
	}

	orch := chat.New(store, bot, chatOpts...)
	srv := server.New(cfg.Server, orch,
		server.WithLogger(logger),
		server.WithMetrics(m, reg),
		server.WithHealthChecker(health),
	)

	var sweeper *session.Sweeper
	if schedule := cfg.Session.CleanupSchedule; schedule != "" {
		sweeper, err = session.NewSweeper(store, schedule, logger,
			session.WithSweepHook(func(removed int) {
				m.RecordSessionsRemoved(metrics.TriggerSchedule, removed)
				m.SetActiveSessions(store.Len())
			}),
		)
		if err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	if sweeper != nil {
		g.Go(func() error {
			return sweeper.Run(gctx)
		})
	}

	err = g.Wait()
	logger.Info().Msg("jenkinsbot stopped")
	return err
}

// newBot builds the inference backend and tries to load the model. A backend
// that is not reachable yet is retried on the first chat request.
func newBot(ctx context.Context, cfg *config.Config, logger zerolog.Logger, m *metrics.Metrics) (*llm.Bot, error) {
	service, err := inference.New(ctx, cfg.Inference, logger)
	if err != nil {
		return nil, fmt.Errorf("create inference backend: %w", err)
	}

	opts := []llm.BotOption{llm.WithLogger(logger), llm.WithMetrics(m)}
	if est, err := prompt.NewEstimator(); err != nil {
		logger.Warn().Err(err).Msg("token estimator unavailable, using rough counts")
	} else {
		opts = append(opts, llm.WithEstimator(est))
	}

	bot := llm.NewBot(service, cfg.Model, opts...)
	if err := bot.Load(ctx); err != nil {
		logger.Warn().Err(err).Msg("model not loaded at startup")
	}
	return bot, nil
}
