package jobs

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jmehdipour/leadsync/internal/affiliate"
	"github.com/jmehdipour/leadsync/internal/app"
	"github.com/jmehdipour/leadsync/internal/board"
	"github.com/jmehdipour/leadsync/internal/config"
	"github.com/jmehdipour/leadsync/internal/crm"
	boardjobs "github.com/jmehdipour/leadsync/internal/jobs"
	"github.com/jmehdipour/leadsync/internal/logger"
	"github.com/jmehdipour/leadsync/internal/metrics"
	"github.com/jmehdipour/leadsync/internal/scheduler"
	"github.com/jmehdipour/leadsync/internal/supervisor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/thejerf/suture/v4"
	"go.uber.org/zap"
)

var once bool

// NewJobsCmd returns the parent "jobs" command with one subcommand per
// board job plus "all".
func NewJobsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Run the CRM board jobs on their schedules",
	}
	cmd.PersistentFlags().BoolVar(&once, "once", false, "run a single pass and exit")

	for _, name := range []string{"intake", "registration", "retention", "sales"} {
		cmd.AddCommand(&cobra.Command{
			Use:   name,
			Short: "Run the " + name + " job",
			RunE: func(cmd *cobra.Command, args []string) error {
				return run(cmd, name)
			},
		})
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "all",
		Short: "Run every board job under one supervisor",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, "intake", "registration", "retention", "sales")
		},
	})
	return cmd
}

type job interface {
	Name() string
	Run(ctx context.Context) error
}

type deps struct {
	boards   *board.Client
	crm      *crm.Client
	partners *affiliate.Partners
	state    *boardjobs.State
}

func targets(refs []config.BoardRef) []boardjobs.Target {
	out := make([]boardjobs.Target, 0, len(refs))
	for _, r := range refs {
		out = append(out, boardjobs.Target{Name: r.Name, BoardID: r.BoardID, TransactionBoardID: r.TransactionBoardID})
	}
	return out
}

func build(cfg config.Config, d deps, name string) (job, config.ScheduleConfig) {
	log := logger.Named("jobs")
	switch name {
	case "intake":
		return &boardjobs.Intake{
			Boards:        d.boards,
			CRM:           d.crm,
			Partners:      d.partners,
			State:         d.state,
			NewLeadsBoard: cfg.Jobs.Intake.NewLeadsBoard,
			NCSelfBoard:   cfg.Jobs.Intake.NCSelfBoard,
			Logger:        log,
		}, cfg.Jobs.Intake.ScheduleConfig
	case "registration":
		return &boardjobs.Registration{
			Boards:  d.boards,
			CRM:     d.crm,
			Targets: targets(cfg.Jobs.Registration.Boards),
			Logger:  log,
		}, cfg.Jobs.Registration.ScheduleConfig
	case "retention":
		return &boardjobs.Retention{
			Boards:         d.boards,
			CRM:            d.crm,
			State:          d.state,
			Targets:        targets(cfg.Jobs.Retention.Boards),
			ExcludedGroups: cfg.Jobs.Retention.ExcludedGroups,
			Logger:         log,
		}, cfg.Jobs.Retention.ScheduleConfig
	default:
		return &boardjobs.Sales{
			Boards:  d.boards,
			CRM:     d.crm,
			Targets: targets(cfg.Jobs.Sales.Boards),
			Logger:  log,
		}, cfg.Jobs.Sales.ScheduleConfig
	}
}

func run(cmd *cobra.Command, names ...string) error {
	cfgPath, _ := cmd.Root().PersistentFlags().GetString("config")
	cfg, err := app.Load(cfgPath)
	if err != nil {
		return err
	}
	if err := cfg.ValidateJobs(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	defer func() { _ = logger.Log.Sync() }()

	metrics.MustRegister(prometheus.DefaultRegisterer)

	kv, err := app.OpenStore(cfg)
	if err != nil {
		return err
	}
	defer kv.Close()

	d := deps{
		boards: board.New(board.Opts{
			URL:      cfg.Board.URL,
			Token:    cfg.Board.Token,
			PageSize: cfg.Board.PageSize,
			Timeout:  cfg.Board.Timeout,
			Breaker:  app.Breaker(cfg),
		}),
		crm: crm.New(crm.Opts{
			BaseURL: cfg.CRM.BaseURL,
			APIKey:  cfg.CRM.APIKey,
			Timeout: cfg.CRM.Timeout,
			Breaker: app.Breaker(cfg),
		}),
		partners: affiliate.NewPartners(affiliate.PartnersOpts{
			BaseURL:      cfg.Partners.BaseURL,
			Username:     cfg.Partners.Username,
			Password:     cfg.Partners.Password,
			UserIDPrefix: cfg.Partners.UserIDPrefix,
			Timeout:      cfg.Partners.Timeout,
			Breaker:      app.Breaker(cfg),
			Logger:       logger.Named("partners"),
		}),
		state: boardjobs.NewState(kv),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var services []suture.Service
	var errs []error
	for _, name := range names {
		j, sched := build(cfg, d, name)
		s := &scheduler.Scheduler{
			Name:       j.Name(),
			Interval:   sched.Interval,
			RetryDelay: sched.RetryDelay,
			Run:        j.Run,
			OnResult: func(result string) {
				metrics.JobRunsTotal.WithLabelValues(j.Name(), result).Inc()
			},
			Logger: logger.Named("scheduler"),
		}
		if once {
			errs = append(errs, s.RunOnce(ctx))
			continue
		}
		services = append(services, s)
	}
	if once {
		return errors.Join(errs...)
	}

	logger.Named("jobs").Info("starting", zap.Strings("jobs", names))
	err = supervisor.New("leadsync-jobs", cfg.Supervisor, logger.Named("supervisor"), services...).Serve(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
