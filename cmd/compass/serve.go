package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oakline/compass/internal/api"
	"github.com/oakline/compass/internal/config"
	"github.com/oakline/compass/internal/core"
	"github.com/oakline/compass/internal/engine"
	"github.com/oakline/compass/internal/guardrails"
	"github.com/oakline/compass/internal/histdata"
	"github.com/oakline/compass/internal/live"
	alpacaadapter "github.com/oakline/compass/internal/live/alpaca"
	"github.com/oakline/compass/internal/logger"
	"github.com/oakline/compass/internal/marketstatus"
	"github.com/oakline/compass/internal/memory"
	"github.com/oakline/compass/internal/metrics"
	"github.com/oakline/compass/internal/router"
	"github.com/oakline/compass/internal/runner"
	"github.com/oakline/compass/internal/storage/archive"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the COMPASS server",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// services is the wired object graph shared by the commands.
type services struct {
	cfg     *config.Config
	log     *zap.Logger
	hist    *histdata.Service
	router  *router.Router
	runner  *runner.Runner
	metrics *metrics.Registry
}

func loadConfig(log *zap.Logger) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if cfgFile != "" {
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	} else {
		cfg = config.Defaults()
		log.Warn("no config file specified, using defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// buildServices wires the full pipeline: archive warmer -> cache scan ->
// status resolver -> router -> engine/guardrails/runner.
func buildServices(ctx context.Context, log *zap.Logger) (*services, error) {
	cfg, err := loadConfig(log)
	if err != nil {
		return nil, err
	}

	if cfg.Cache.Archive.Enabled {
		store, err := newArchive(cfg.Cache.Archive)
		if err != nil {
			return nil, fmt.Errorf("creating archive storage: %w", err)
		}
		if _, err := archive.Warm(ctx, store, cfg.Cache.Dir, log); err != nil {
			// A cold archive must not block startup; local files may suffice.
			log.Warn("cache warm failed, continuing with local cache", zap.Error(err))
		}
	}

	hist := histdata.New(cfg.Cache.Dir, logger.Named(log, "histdata"))

	strategies := []marketstatus.Strategy{}
	if clock := alpacaadapter.NewClockService(cfg.Alpaca); clock != nil {
		strategies = append(strategies, marketstatus.NewBrokerClockStrategy(clock))
	} else {
		log.Warn("no brokerage credentials, market status uses local calculation only")
	}
	strategies = append(strategies, marketstatus.NewLocalStrategy(cfg.Market))

	resolver := marketstatus.NewResolver(strategies, logger.Named(log, "marketstatus"),
		marketstatus.WithStaleness(cfg.Market.StatusStaleness))

	reg := metrics.NewRegistry()
	reg.SetCachedSymbols(len(hist.Symbols()))

	var factory live.Factory = func() (live.Adapter, error) {
		return alpacaadapter.New(cfg.Alpaca)
	}

	rt := router.New(router.DefaultConfig(), resolver, hist, factory,
		logger.Named(log, "router"),
		router.WithTransitionHook(func(from, to core.DataMode) {
			reg.RecordModeTransition(string(from), string(to))
		}),
	)

	mem := memory.NewFileStore(cfg.Memory.Path, logger.Named(log, "memory"))

	rn := runner.New(
		rt,
		engine.New(logger.Named(log, "engine")),
		guardrails.New(logger.Named(log, "guardrails")),
		mem,
		reg,
		cfg.Guardrails.MinimumReserveRatio,
		logger.Named(log, "runner"),
	)

	return &services{cfg: cfg, log: log, hist: hist, router: rt, runner: rn, metrics: reg}, nil
}

func newArchive(cfg config.ArchiveConfig) (archive.Storage, error) {
	switch cfg.Type {
	case "s3":
		return archive.NewS3(archive.S3Config{
			Bucket:    cfg.S3.Bucket,
			Endpoint:  cfg.S3.Endpoint,
			Region:    cfg.S3.Region,
			AccessKey: cfg.S3.AccessKey,
			SecretKey: cfg.S3.SecretKey,
			Prefix:    cfg.S3.Prefix,
		})
	default:
		return archive.NewLocalFS(cfg.Path)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.Must(debug)
	defer log.Sync()

	svc, err := buildServices(cmd.Context(), log)
	if err != nil {
		return err
	}

	log.Info("starting COMPASS server",
		zap.String("host", svc.cfg.Server.Host),
		zap.Int("port", svc.cfg.Server.Port),
		zap.Int("cached_symbols", len(svc.hist.Symbols())),
	)

	server := api.NewServer(svc.cfg, api.Deps{
		Router:  svc.router,
		Hist:    svc.hist,
		Runner:  svc.runner,
		Metrics: svc.metrics,
		Version: Version,
	}, log)

	go func() {
		if err := server.Start(); err != nil {
			log.Error("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down COMPASS server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return server.Shutdown(ctx)
}
