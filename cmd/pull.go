package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmehdipour/leadsync/internal/app"
	"github.com/jmehdipour/leadsync/internal/logger"
	"github.com/jmehdipour/leadsync/internal/repository"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Run one report pull and exit",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := app.Load(cfgPath)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Log.Sync() }()

		kv, err := app.OpenStore(cfg)
		if err != nil {
			return err
		}
		defer kv.Close()

		rdb, err := app.OpenRedis(cfg)
		if err != nil {
			return fmt.Errorf("redis connect: %w", err)
		}
		if rdb != nil {
			defer func() { _ = rdb.Close() }()
		}

		svc, cleanup, err := app.ReportService(cfg, repository.NewSnapshotRepository(kv), rdb, logger.Log)
		if err != nil {
			return err
		}
		defer cleanup()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		res, err := svc.FetchAndStore(ctx)
		if err != nil {
			return fmt.Errorf("pull: %w", err)
		}
		logger.Named("pull").Info("done",
			zap.String("run_id", res.RunID),
			zap.Int("records", res.Records),
			zap.Int("changed", res.Changed),
		)
		return nil
	},
}
