package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jmehdipour/leadsync/internal/app"
	"github.com/jmehdipour/leadsync/internal/logger"
	"github.com/jmehdipour/leadsync/internal/repository"
	"github.com/jmehdipour/leadsync/internal/service/report"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var seedCount int

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Replace the snapshot with placeholder records",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := app.Load(cfgPath)
		if err != nil {
			return err
		}
		kv, err := app.OpenStore(cfg)
		if err != nil {
			return err
		}
		defer kv.Close()

		now := time.Now().UTC()
		store := repository.NewSnapshotRepository(kv)
		ctx := context.Background()
		if err := store.SaveRecords(ctx, report.Placeholder(seedCount, now)); err != nil {
			return fmt.Errorf("seed records: %w", err)
		}
		if err := store.SavePullState(ctx, now); err != nil {
			return fmt.Errorf("seed state: %w", err)
		}
		logger.Named("seed").Info("snapshot seeded", zap.Int("records", seedCount), zap.String("storage", cfg.Storage.Backend))
		return nil
	},
}

func init() {
	seedCmd.Flags().IntVar(&seedCount, "count", 10, "number of placeholder records")
}
