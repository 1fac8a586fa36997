package main

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"calibtrack/internal/core"
	"calibtrack/pkg/domain"
)

func (a *app) assetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "asset",
		Short: "Manage the mirrored schedule records of physical assets",
	}
	cmd.AddCommand(
		a.assetAddCommand(),
		a.assetSetCommand(),
		a.assetActiveCommand("archive", "Archive both records of an asset", false),
		a.assetActiveCommand("restore", "Restore both records of an asset", true),
		a.assetDeleteCommand(),
	)
	return cmd
}

func (a *app) assetAddCommand() *cobra.Command {
	var (
		in   core.NewAsset
		view string
	)
	cmd := &cobra.Command{
		Use:   "add <site-id>",
		Short: "Create the service and roller records of a new asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.View = domain.View(view)
			if !in.View.Valid() {
				return fmt.Errorf("unknown view %q (want service or roller)", view)
			}
			return a.mutate(cmd, func(ctx context.Context, svc *core.Service) error {
				service, roller, err := svc.AddAsset(ctx, args[0], in)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintln(out, service.ID)
				fmt.Fprintln(out, roller.ID)
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&in.Name, "name", "", "asset name")
	f.StringVar(&in.Code, "code", "", "asset code")
	f.StringVar(&in.Weigher, "weigher", "", "weigher label")
	f.StringVar(&in.LastCal, "last-cal", "", "last calibration date (YYYY-MM-DD)")
	f.IntVar(&in.Frequency, "frequency", 0, "calibration interval in months for --view (default per view)")
	f.StringVar(&view, "view", string(domain.ViewService), "view the frequency applies to")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("code")
	return cmd
}

func (a *app) assetSetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set <site-id> <record-id> <field> <value>",
		Short: "Edit one field of a record; name, code, weigher and active sync to the mirror",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.mutate(cmd, func(ctx context.Context, svc *core.Service) error {
				rec, err := svc.EditAssetField(ctx, args[0], args[1], domain.Field(args[2]), args[3])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s due %s (%s days)\n", rec.ID, orDash(rec.DueDate), remaining(rec.Remaining))
				return nil
			})
		},
	}
}

func (a *app) assetActiveCommand(use, short string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <site-id> <record-id>",
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.mutate(cmd, func(ctx context.Context, svc *core.Service) error {
				_, err := svc.SetAssetActive(ctx, args[0], args[1], active)
				return err
			})
		},
	}
}

func (a *app) assetDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <site-id> <record-id>",
		Short: "Delete both records of an asset",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.mutate(cmd, func(ctx context.Context, svc *core.Service) error {
				_, err := svc.DeleteAsset(ctx, args[0], args[1])
				return err
			})
		},
	}
}

func (a *app) reportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Manage calibration reports and their attached files",
	}
	cmd.AddCommand(a.reportAttachCommand(), a.reportPruneCommand())
	return cmd
}

func (a *app) reportAttachCommand() *cobra.Command {
	var data domain.ReportData
	cmd := &cobra.Command{
		Use:   "attach <site-id> <record-id> <file>",
		Short: "Store a calibration report file against a record",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[2])
			if err != nil {
				return err
			}
			defer f.Close()
			data.ID = uuid.NewString()
			data.FileName = filepath.Base(args[2])
			if data.Date == "" {
				data.Date = a.now().Format(domain.DateLayout)
			}
			contentType := mime.TypeByExtension(filepath.Ext(args[2]))
			return a.mutate(cmd, func(ctx context.Context, svc *core.Service) error {
				report, err := svc.AttachReport(ctx, args[0], args[1], data, contentType, f)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), report.Attachment)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&data.Date, "date", "", "report date (YYYY-MM-DD, default today)")
	cmd.Flags().StringVar(&data.Technician, "technician", "", "technician name")
	return cmd
}

func (a *app) reportPruneCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "prune",
		Short: "Delete stored files no report refers to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			n, err := svc.PruneAttachments(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d file(s)\n", n)
			return nil
		},
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
