package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"adpulse/internal/csvio"
	"adpulse/internal/engine"
	"adpulse/internal/facebook"
	"adpulse/internal/report"
	"adpulse/internal/system1"
)

func newS1Cmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "s1",
		Short: "System1 search-feed reports",
	}
	cmd.AddCommand(
		s1ReportCmd(e, "keywords", "Revenue by keyword and state", system1.KeywordStateReport, "campaign", "min-clicks"),
		s1ReportCmd(e, "campaigns", "Revenue by campaign", system1.CampaignReport, "campaign", "min-clicks"),
		s1ReportCmd(e, "daily", "Daily revenue with moving averages", system1.DailyTrend, "campaign", "window"),
		s1GapsCmd(e),
	)
	return cmd
}

type s1Report func(ctx context.Context, ds *engine.Dataset, opts system1.Options) (*report.Report, error)

// bindS1Options registers only the named option flags; each report reads
// a different subset of system1.Options.
func bindS1Options(cmd *cobra.Command, o *system1.Options, names ...string) {
	fs := cmd.Flags()
	for _, name := range names {
		switch name {
		case "campaign":
			fs.StringVar(&o.Campaign, name, "", "campaign substring filter")
		case "min-clicks":
			fs.Float64Var(&o.MinClicks, name, 0, "drop rows with fewer clicks")
		case "min-searches":
			fs.Float64Var(&o.MinSearches, name, 0, "drop keywords with fewer searches")
		case "window":
			fs.IntVar(&o.TrendWindow, name, 7, "moving-average window in days")
		default:
			panic("unknown s1 option flag " + name)
		}
	}
}

func s1ReportCmd(e *env, use, short string, fn s1Report, options ...string) *cobra.Command {
	var (
		flags reportFlags
		opts  system1.Options
	)
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Top = flags.limit(e)
			p := params("campaign", opts.Campaign, "min_clicks", ftoa(opts.MinClicks), "top", itoa(opts.Top))
			if cmd.Flags().Lookup("window") != nil {
				p["window"] = itoa(opts.TrendWindow)
			}
			return runReport(cmd, e, &flags, "s1-"+use, p, func(ctx context.Context, db *engine.DB) (*report.Report, []string, error) {
				path, err := flags.resolve(e, flags.file, system1.FilePrefix)
				if err != nil {
					return nil, nil, err
				}
				ds, err := system1.Load(ctx, db, path)
				if err != nil {
					return nil, []string{path}, err
				}
				r, err := fn(ctx, ds, opts)
				return r, []string{path}, err
			})
		},
	}
	flags.bind(cmd)
	bindS1Options(cmd, &opts, options...)
	return cmd
}

func s1GapsCmd(e *env) *cobra.Command {
	var (
		flags  reportFlags
		opts   system1.Options
		pareto string
	)
	cmd := &cobra.Command{
		Use:   "gaps",
		Short: "Earning keywords missing from the Pareto keyword set",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Top = flags.limit(e)
			p := params("pareto", pareto, "min_searches", ftoa(opts.MinSearches), "top", itoa(opts.Top))
			return runReport(cmd, e, &flags, "s1-gaps", p, func(ctx context.Context, db *engine.DB) (*report.Report, []string, error) {
				path, err := flags.resolve(e, flags.file, system1.FilePrefix)
				if err != nil {
					return nil, nil, err
				}
				inputs := []string{path}
				set := map[string]struct{}{}
				if pareto != "" {
					inputs = append(inputs, pareto)
					if set, err = csvio.ReadKeywordSet(pareto); err != nil {
						return nil, inputs, err
					}
				}
				ds, err := system1.Load(ctx, db, path)
				if err != nil {
					return nil, inputs, err
				}
				r, err := system1.GapKeywords(ctx, ds, set, opts)
				return r, inputs, err
			})
		},
	}
	flags.bind(cmd)
	bindS1Options(cmd, &opts, "min-searches")
	cmd.Flags().StringVar(&pareto, "pareto", "", "CSV of Pareto keywords to exclude")
	return cmd
}

func newFBCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fb",
		Short: "Facebook ad reports",
	}
	var (
		flags reportFlags
		opts  facebook.Options
	)
	campaigns := &cobra.Command{
		Use:   "campaigns",
		Short: "Spend, revenue and ROAS verdict per campaign",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.Top = flags.limit(e)
			p := params("campaign", opts.Campaign, "by_adset", fmt.Sprint(opts.ByAdSet), "min_spend", ftoa(opts.MinSpend), "top", itoa(opts.Top))
			return runReport(cmd, e, &flags, "fb-campaigns", p, func(ctx context.Context, db *engine.DB) (*report.Report, []string, error) {
				path, err := flags.resolve(e, flags.file, facebook.FilePrefix)
				if err != nil {
					return nil, nil, err
				}
				ds, err := facebook.Load(ctx, db, path)
				if err != nil {
					return nil, []string{path}, err
				}
				r, err := facebook.CampaignPerformance(ctx, ds, opts)
				return r, []string{path}, err
			})
		},
	}
	flags.bind(campaigns)
	campaigns.Flags().StringVar(&opts.Campaign, "campaign", "", "campaign substring filter")
	campaigns.Flags().BoolVar(&opts.ByAdSet, "by-adset", false, "group by ad set as well")
	campaigns.Flags().Float64Var(&opts.MinSpend, "min-spend", 0, "drop rows with less spend")
	cmd.AddCommand(campaigns)
	return cmd
}

func newMarginCmd(e *env) *cobra.Command {
	var (
		flags  reportFlags
		s1File string
	)
	cmd := &cobra.Command{
		Use:   "margin",
		Short: "Facebook spend against System1 revenue per campaign",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReport(cmd, e, &flags, "margin", nil, func(ctx context.Context, db *engine.DB) (*report.Report, []string, error) {
				fbPath, err := flags.resolve(e, flags.file, facebook.FilePrefix)
				if err != nil {
					return nil, nil, err
				}
				s1Path, err := flags.resolve(e, s1File, system1.FilePrefix)
				if err != nil {
					return nil, []string{fbPath}, err
				}
				inputs := []string{fbPath, s1Path}
				fb, err := facebook.Load(ctx, db, fbPath)
				if err != nil {
					return nil, inputs, err
				}
				s1, err := system1.Load(ctx, db, s1Path)
				if err != nil {
					return nil, inputs, err
				}
				r, err := facebook.MarginReport(ctx, fb, s1)
				if err == nil && flags.limit(e) > 0 && len(r.Rows) > flags.limit(e) {
					r.Rows = r.Rows[:flags.limit(e)]
				}
				return r, inputs, err
			})
		},
	}
	flags.bind(cmd)
	cmd.Flags().Lookup("file").Usage = "Facebook CSV (default: newest facebook*.csv in --dir)"
	cmd.Flags().StringVar(&s1File, "s1-file", "", "System1 CSV (default: newest system1*.csv in --dir)")
	return cmd
}
