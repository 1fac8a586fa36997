package main

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"calibtrack/internal/core"
	"calibtrack/pkg/domain"
)

func (a *app) sitesCommand() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "sites",
		Short: "List sites",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			tw := table(cmd.OutOrStdout(), "ID", "NAME", "CUSTOMER", "LOCATION", "ACTIVE", "ASSETS", "HEALTH")
			for _, site := range svc.ListSites() {
				if !all && !site.Active {
					continue
				}
				row(tw, site.ID, site.Name, site.Customer, site.Location, yesNo(site.Active),
					strconv.Itoa(domain.UniqueAssets(site)), string(domain.WorstHealth(site)))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "include archived sites")
	return cmd
}

func (a *app) siteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "site",
		Short: "Create, inspect, archive or delete a site",
	}
	cmd.AddCommand(
		a.siteAddCommand(),
		a.siteShowCommand(),
		a.siteStatusCommand("archive", "Archive an active site", false),
		a.siteStatusCommand("restore", "Re-activate an archived site", true),
		a.siteDeleteCommand(),
	)
	return cmd
}

func (a *app) siteAddCommand() *cobra.Command {
	var site domain.Site
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a site",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.mutate(cmd, func(ctx context.Context, svc *core.Service) error {
				created, err := svc.AddSite(ctx, site)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), created.ID)
				return nil
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&site.Name, "name", "", "site name")
	f.StringVar(&site.Customer, "customer", "", "customer name")
	f.StringVar(&site.Location, "location", "", "site location")
	f.StringVar(&site.Type, "type", "", "site type")
	f.StringVar(&site.Contact.Name, "contact", "", "contact name")
	f.StringVar(&site.Contact.Email, "email", "", "contact email")
	f.StringVar(&site.Contact.Phone1, "phone", "", "contact phone")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func (a *app) siteShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <site-id>",
		Short: "Show a site and the schedule of its assets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			site, err := svc.Store().Site(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s (%s)\n", site.Name, site.ID)
			if site.Customer != "" || site.Location != "" {
				fmt.Fprintf(out, "%s, %s\n", site.Customer, site.Location)
			}
			if !site.Active {
				fmt.Fprintln(out, "archived")
			}
			fmt.Fprintln(out)
			tw := table(out, "RECORD", "VIEW", "NAME", "CODE", "WEIGHER", "LAST CAL", "FREQ", "DUE", "REMAINING", "HEALTH", "STATUS", "ACTIVE")
			for _, view := range domain.Views {
				for _, rec := range *site.Records(view) {
					row(tw, rec.ID, string(rec.View), rec.Name, rec.Code, rec.Weigher, rec.LastCal,
						strconv.Itoa(rec.Frequency), rec.DueDate, remaining(rec.Remaining),
						string(domain.HealthOf(rec.Remaining)), string(rec.OpStatus), yesNo(rec.Active))
				}
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			if len(site.Issues) > 0 {
				fmt.Fprintf(out, "\n%d issue(s)\n", len(site.Issues))
			}
			return nil
		},
	}
}

func (a *app) siteStatusCommand(use, short string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <site-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.mutate(cmd, func(ctx context.Context, svc *core.Service) error {
				site, err := svc.Store().Site(args[0])
				if err != nil {
					return err
				}
				if site.Active == active {
					return fmt.Errorf("site %s is already %s", site.ID, activeLabel(active))
				}
				_, err = svc.ToggleSiteStatus(ctx, site.ID)
				return err
			})
		},
	}
}

func (a *app) siteDeleteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <site-id>",
		Short: "Delete a site and everything recorded for it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			return saveError(svc.DeleteSite(cmd.Context(), args[0]))
		},
	}
}

func (a *app) statusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Summarise calibration health of every active site",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			tw := table(cmd.OutOrStdout(), "SITE", "ASSETS", "OVERDUE", "DUE SOON", "HEALTHY", "UNKNOWN", "HEALTHY %")
			var total domain.HealthSummary
			for _, site := range svc.ListSites() {
				if !site.Active {
					continue
				}
				sum := domain.SiteHealth(site)
				total.Critical += sum.Critical
				total.DueSoon += sum.DueSoon
				total.Healthy += sum.Healthy
				total.Unknown += sum.Unknown
				total.Total += sum.Total
				row(tw, site.Name, strconv.Itoa(domain.UniqueAssets(site)), strconv.Itoa(sum.Critical),
					strconv.Itoa(sum.DueSoon), strconv.Itoa(sum.Healthy), strconv.Itoa(sum.Unknown),
					fmt.Sprintf("%.0f", sum.HealthyPc))
			}
			row(tw, "TOTAL", "", strconv.Itoa(total.Critical), strconv.Itoa(total.DueSoon),
				strconv.Itoa(total.Healthy), strconv.Itoa(total.Unknown), "")
			return tw.Flush()
		},
	}
}

func (a *app) seedCommand() *cobra.Command {
	var (
		assets int
		seed   uint64
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create a demo site with sample assets, reports and notes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			opts := core.SampleOptions{Now: a.now(), Assets: assets}
			if seed != 0 {
				opts.Rand = rand.New(rand.NewPCG(seed, seed))
			}
			site := core.GenerateSampleSite(opts)
			if err := saveError(svc.ReplaceSite(cmd.Context(), site)); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), site.ID)
			return nil
		},
	}
	cmd.Flags().IntVar(&assets, "assets", 0, "number of physical assets (default random 10-18)")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed for reproducible data")
	return cmd
}

func table(w io.Writer, headers ...string) *tabwriter.Writer {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	row(tw, headers...)
	return tw
}

func row(tw *tabwriter.Writer, cols ...string) {
	for i, c := range cols {
		if i > 0 {
			_, _ = io.WriteString(tw, "\t")
		}
		_, _ = io.WriteString(tw, c)
	}
	_, _ = io.WriteString(tw, "\n")
}

func remaining(days int) string {
	if days == domain.RemainingUnknown {
		return "-"
	}
	return strconv.Itoa(days)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func activeLabel(active bool) string {
	if active {
		return "active"
	}
	return "archived"
}
