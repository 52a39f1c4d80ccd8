package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmehdipour/leadsync/internal/app"
	httpSrv "github.com/jmehdipour/leadsync/internal/http"
	"github.com/jmehdipour/leadsync/internal/logger"
	"github.com/jmehdipour/leadsync/internal/metrics"
	"github.com/jmehdipour/leadsync/internal/repository"
	"github.com/jmehdipour/leadsync/internal/scheduler"
	"github.com/jmehdipour/leadsync/internal/supervisor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the reporting API and the scheduled report pull",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := app.Load(cfgPath)
		if err != nil {
			return err
		}
		if err := cfg.ValidateServe(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		log := logger.Named("serve")
		defer func() { _ = logger.Log.Sync() }()

		metrics.MustRegister(prometheus.DefaultRegisterer)

		kv, err := app.OpenStore(cfg)
		if err != nil {
			return err
		}
		defer kv.Close()
		store := repository.NewSnapshotRepository(kv)

		rdb, err := app.OpenRedis(cfg)
		if err != nil {
			return fmt.Errorf("redis connect: %w", err)
		}
		if rdb != nil {
			defer func() { _ = rdb.Close() }()
		}

		svc, cleanup, err := app.ReportService(cfg, store, rdb, logger.Log)
		if err != nil {
			return err
		}
		defer cleanup()

		pull := &scheduler.Scheduler{
			Name:       "pull",
			Interval:   cfg.Pull.Interval,
			RetryDelay: cfg.Pull.RetryDelay,
			Run: func(ctx context.Context) error {
				_, err := svc.FetchAndStore(ctx)
				return err
			},
			OnResult: func(result string) { metrics.PullRunsTotal.WithLabelValues(result).Inc() },
			Logger:   logger.Named("scheduler"),
		}

		server := httpSrv.NewServer(httpSrv.Opts{
			Addr:            cfg.HTTP.Addr,
			APIKey:          cfg.HTTP.APIKey,
			Store:           store,
			Redis:           rdb,
			RateLimit:       cfg.HTTP.RateLimit.RPS,
			RateWindow:      cfg.HTTP.RateLimit.Window,
			Gatherer:        prometheus.DefaultGatherer,
			IntervalMinutes: cfg.IntervalMinutes(),
			AffiliateID:     cfg.Affiliate.AffiliateID,
			Credentials:     len(cfg.Enrich.Credentials),
			LogLevel:        cfg.Log.Level,
			Logger:          logger.Named("http"),
		})

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		log.Info("starting", zap.String("addr", cfg.HTTP.Addr), zap.Duration("pull_interval", cfg.Pull.Interval), zap.String("storage", cfg.Storage.Backend))
		err = supervisor.New("leadsync-serve", cfg.Supervisor, logger.Named("supervisor"), server, pull).Serve(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		log.Info("stopped")
		return nil
	},
}
