package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"calibtrack/internal/blob"
	"calibtrack/internal/config"
	"calibtrack/internal/core"
	"calibtrack/internal/logging"
)

// app carries state shared by every subcommand of one invocation.
type app struct {
	cfgFile  string
	settings *config.Settings
	cfg      config.Config
	log      zerolog.Logger
	svc      *core.Service
	registry *prometheus.Registry
	now      func() time.Time
}

// execute runs the command line in args and releases the store afterwards.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	a := &app{now: time.Now, log: zerolog.Nop()}
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	err := root.ExecuteContext(ctx)
	return errors.Join(err, a.close())
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "calibtrack",
		Short: "Calibration schedule tracker for belt weighers",
		Long: `calibtrack keeps the service and roller schedules of every belt weigher
in sync, recalculates due dates and persists each site as one unit.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default ./calibtrack.yaml)")

	root.AddCommand(
		a.sitesCommand(),
		a.siteCommand(),
		a.assetCommand(),
		a.reportCommand(),
		a.statusCommand(),
		a.seedCommand(),
		a.locationCommand(),
		a.migrateCommand(),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	settings, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	cfg, err := settings.Config()
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.settings, a.cfg, a.log = settings, cfg, logger
	return nil
}

// service opens the repository and the attachment store and loads every
// site. It is opened once per invocation.
func (a *app) service(ctx context.Context) (*core.Service, error) {
	if a.svc != nil {
		return a.svc, nil
	}
	repo, err := core.OpenRepository(ctx, a.cfg.Repository(), a.log)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	blobs, err := blob.Open(ctx, a.cfg.Attachments())
	if err != nil {
		_ = repo.Close()
		return nil, fmt.Errorf("open attachment store: %w", err)
	}
	store := core.NewStore(
		core.WithClock(a.now),
		core.WithStoreLogger(a.log),
		core.WithJournal(core.NewJournal(a.cfg.Journal.Capacity, a.log)),
	)
	opts := []core.ServiceOption{
		core.WithBlobStore(blobs),
		core.WithServiceLogger(a.log),
		core.WithAutosave(a.cfg.Storage.Autosave),
	}
	if a.cfg.Metrics.Textfile != "" {
		reg := prometheus.NewRegistry()
		metrics, err := core.NewPrometheusMetrics(reg)
		if err != nil {
			_ = repo.Close()
			return nil, fmt.Errorf("register metrics: %w", err)
		}
		a.registry = reg
		opts = append(opts, core.WithMetrics(metrics))
	}
	svc := core.NewService(store, repo, opts...)
	if err := svc.Open(ctx); err != nil {
		_ = svc.Close()
		return nil, err
	}
	a.svc = svc
	return svc, nil
}

// commit saves pending changes when autosave is off.
func (a *app) commit(ctx context.Context) error {
	if a.svc == nil || a.cfg.Storage.Autosave {
		return nil
	}
	return a.svc.SaveAll(ctx)
}

func (a *app) close() error {
	if a.svc == nil {
		return nil
	}
	err := a.svc.Close()
	a.svc = nil
	if a.registry != nil {
		if werr := prometheus.WriteToTextfile(a.cfg.Metrics.Textfile, a.registry); werr != nil {
			err = errors.Join(err, fmt.Errorf("write metrics: %w", werr))
		}
		a.registry = nil
	}
	return err
}

// mutate opens the service, applies fn and commits.
func (a *app) mutate(cmd *cobra.Command, fn func(ctx context.Context, svc *core.Service) error) error {
	ctx := cmd.Context()
	svc, err := a.service(ctx)
	if err != nil {
		return err
	}
	if err := fn(ctx, svc); err != nil {
		return err
	}
	return a.commit(ctx)
}

func saveError(res core.SaveResult) error {
	if res.Success {
		return nil
	}
	return errors.New(res.Error)
}
