package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/Darruma/protocol/internal/chain"
	"github.com/Darruma/protocol/internal/chain/evm"
	"github.com/Darruma/protocol/internal/chain/ratelimit"
	"github.com/Darruma/protocol/internal/chain/rpc"
	"github.com/Darruma/protocol/internal/circuitbreaker"
	"github.com/Darruma/protocol/internal/config"
	"github.com/Darruma/protocol/internal/domain/model"
	"github.com/Darruma/protocol/internal/machine"
	"github.com/Darruma/protocol/internal/machine/tasks"
	"github.com/Darruma/protocol/internal/store"
	"github.com/Darruma/protocol/internal/stream"
	"github.com/Darruma/protocol/internal/tracing"
	"github.com/Darruma/protocol/internal/update"
)

func buildChainClients(cfg *config.Config, logger *slog.Logger) (map[model.ChainID]chain.Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	clients := make(map[model.ChainID]chain.Client, len(cfg.Chains))
	for _, cc := range cfg.Chains {
		label := cc.ID().String()
		rpcClient := rpc.NewClient(cc.RPCURL, label, logger,
			rpc.WithRateLimiter(ratelimit.NewLimiter(cc.RPCRate, cc.RPCBurst, label)),
			rpc.WithCircuitBreaker(circuitbreaker.New(circuitbreaker.Config{
				OnStateChange: func(from, to circuitbreaker.State) {
					logger.Warn("rpc circuit state changed",
						"chain", label, "from", from.String(), "to", to.String())
				},
			})),
		)

		client, err := evm.NewClient(evm.Config{
			ChainID:       cc.ID(),
			OracleAddress: cc.OracleAddress,
			Account:       cc.Account,
		}, rpcClient, logger)
		if err != nil {
			return nil, fmt.Errorf("chain %s: %w", label, err)
		}
		clients[cc.ID()] = client
	}
	return clients, nil
}

func resolveTransport(ctx context.Context, cfg *config.Config, logger *slog.Logger) (stream.Transport, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Redis.Addr == "" {
		logger.Info("event stream transport: in-memory")
		return stream.NewInMemory(), nil
	}
	transport, err := stream.NewRedis(ctx, stream.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("initialize redis stream transport: %w", err)
	}
	logger.Info("event stream transport: redis", "addr", cfg.Redis.Addr)
	return transport, nil
}

func registerTasks(exec *machine.Executor, updater *update.Updater, transport stream.Transport, cfg *config.Config) error {
	pollerSpec, _, err := tasks.NewActiveRequestPoller(updater, cfg.Poll.RequestInterval)
	if err != nil {
		return err
	}
	if err := exec.Register(pollerSpec); err != nil {
		return err
	}

	for _, cc := range cfg.Chains {
		spec, _, err := tasks.NewEventPoller(updater, transport, tasks.EventPollerConfig{
			Chain:      cc.ID(),
			StartBlock: cc.StartBlock,
			Interval:   cfg.Poll.EventInterval,
		})
		if err != nil {
			return fmt.Errorf("chain %s event poller: %w", cc.ID(), err)
		}
		if err := exec.Register(spec); err != nil {
			return err
		}
	}
	return nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	switch cfg.Log.Level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	logger.Info("starting oracle-syncer",
		"chains", len(cfg.Chains),
		"request_poll_interval", cfg.Poll.RequestInterval,
		"event_poll_interval", cfg.Poll.EventInterval,
	)

	shutdownTracing, err := tracing.Init(context.Background(), "oracle-syncer", cfg.Tracing.OTLPEndpoint, true)
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown error", "error", err)
		}
	}()

	clients, err := buildChainClients(cfg, logger)
	if err != nil {
		logger.Error("failed to build chain clients", "error", err)
		os.Exit(1)
	}

	st := store.New()
	updater, err := update.New(st, clients, logger)
	if err != nil {
		logger.Error("failed to build updater", "error", err)
		os.Exit(1)
	}

	transport, err := resolveTransport(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("failed to initialize stream transport", "error", err)
		os.Exit(1)
	}
	defer transport.Close()

	exec := machine.NewExecutor(machine.RealClock(), logger)
	if err := registerTasks(exec, updater, transport, cfg); err != nil {
		logger.Error("failed to register tasks", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return runHealthServer(gCtx, cfg.Server.HealthPort, logger)
	})

	g.Go(func() error {
		return exec.Run(gCtx, cfg.Poll.TickResolution)
	})

	g.Go(func() error {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("oracle-syncer exited with error", "error", err)
		os.Exit(1)
	}

	logger.Info("oracle-syncer shut down gracefully")
}

func runHealthServer(ctx context.Context, port int, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			logger.Warn("failed to write health response", "error", err)
		}
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && err != http.ErrServerClosed {
			logger.Warn("health server shutdown error", "error", err)
		}
	}()

	logger.Info("health server started", "port", port)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("health server: %w", err)
	}
	return nil
}
