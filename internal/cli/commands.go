package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/colthorp/ordo-cli-go/internal/api"
	"github.com/colthorp/ordo-cli-go/internal/cache"
	"github.com/colthorp/ordo-cli-go/internal/config"
	"github.com/colthorp/ordo-cli-go/internal/core"
	"github.com/colthorp/ordo-cli-go/internal/export"
	"github.com/colthorp/ordo-cli-go/internal/ordo"
	"github.com/colthorp/ordo-cli-go/internal/output"
	"github.com/colthorp/ordo-cli-go/internal/server"
)

func addCommands(rootCmd *cobra.Command, opts *globalOptions) {
	rootCmd.AddCommand(
		newMonthCmd(opts),
		newDayCmd(opts),
		newYearCmd(opts),
		newDaysCmd(opts),
		newProbeCmd(opts),
		newPrefetchCmd(opts),
		newCacheCmd(opts),
		newExportCmd(opts),
		newServeCmd(opts),
		newMCPCmd(opts),
		newConfigCmd(opts),
	)
}

// runWithApp wraps a handler with app setup and teardown.
func runWithApp(opts *globalOptions, fn func(cmd *cobra.Command, args []string, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := opts.setup()
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd, args, a)
	}
}

func newMonthCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "month [YYYY-MM|this-month|next-month|last-month]",
		Short: "Show a month calendar with feasts",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runWithApp(opts, handleMonth),
	}
}

func newDayCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "day [date_spec]",
		Short: "Show liturgical details for a day (e.g. 2024-12-25, today, d+3)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runWithApp(opts, handleDay),
	}
}

func newYearCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "year [YYYY]",
		Short: "Load a year and show its coverage (--raw dumps every day)",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runWithApp(opts, handleYear),
	}
}

func newDaysCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "days YEAR DATE...",
		Short: "Print cached days without contacting the API",
		Args:  cobra.MinimumNArgs(2),
		RunE:  runWithApp(opts, handleDays),
	}
}

func newProbeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Check that the API is reachable",
		Args:  cobra.NoArgs,
		RunE:  runWithApp(opts, handleProbe),
	}
}

func newPrefetchCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefetch YEAR...",
		Short: "Warm the cache for one or more years",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runWithApp(opts, handlePrefetch),
	}
	cmd.Flags().IntP("parallel", "p", core.PrefetchMaxWorkers, "Max years to fetch in parallel")
	return cmd
}

func newCacheCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the year cache",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "info",
			Short: "Show cached years and day counts",
			Args:  cobra.NoArgs,
			RunE:  runWithApp(opts, handleCacheInfo),
		},
		&cobra.Command{
			Use:   "clear [YEAR...]",
			Short: "Clear cached years (all years when none are given)",
			RunE:  runWithApp(opts, handleCacheClear),
		},
	)
	return cmd
}

func newExportCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export ordo data to other formats",
	}
	ics := &cobra.Command{
		Use:   "ics YEAR",
		Short: "Export a year (or one month) as an iCalendar file",
		Args:  cobra.ExactArgs(1),
		RunE:  runWithApp(opts, handleExportICS),
	}
	ics.Flags().Int("month", 0, "Limit the export to one month (1-12)")
	ics.Flags().StringP("output", "o", "", "Write to file instead of stdout")
	cmd.AddCommand(ics)
	return cmd
}

func newServeCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the cache over a local JSON API with scheduled refresh",
		Args:  cobra.NoArgs,
		RunE:  runWithApp(opts, handleServe),
	}
	cmd.Flags().String("listen", "", "Listen address (default from config)")
	cmd.Flags().Bool("no-refresh", false, "Disable the scheduled cache refresh")
	return cmd
}

func newMCPCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for AI integration",
		Args:  cobra.NoArgs,
		RunE:  runWithApp(opts, handleMCP),
	}
}

func newConfigCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change configuration",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, path, err := opts.loadConfig()
				if err != nil {
					return err
				}
				if opts.raw {
					output.WriteJSON(cmd.OutOrStdout(), cfg)
					return nil
				}
				text, err := cfg.YAML()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "# %s\n%s", path, text)
				return nil
			},
		},
		&cobra.Command{
			Use:   "set KEY VALUE",
			Short: "Set a configuration value (keys: " + strings.Join(config.Keys(), ", ") + ")",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				path := opts.configPath
				if path == "" {
					path = core.ConfigPath()
				}
				// Load without env/flag overrides so they are not persisted.
				cfg, err := config.Load(path)
				if err != nil {
					return err
				}
				if err := cfg.Set(args[0], args[1]); err != nil {
					return err
				}
				if err := cfg.Save(path); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", args[0], args[1])
				return nil
			},
		},
	)
	return cmd
}

func handleMonth(cmd *cobra.Command, args []string, a *app) error {
	spec := ""
	if len(args) > 0 {
		spec = args[0]
	}
	year, month, err := core.ParseMonthSpec(spec, a.opts.now())
	if err != nil {
		return err
	}

	a.progress(fmt.Sprintf("Loading %s %d…", month, year))
	data, err := cache.MergeResults(a.manager.GetYears(cmd.Context(), ordo.YearsNeeded(year, month), 0))
	if err != nil {
		return err
	}

	inMonth := make(cache.YearMapping)
	for _, key := range core.MonthDateKeys(year, month) {
		if rec, ok := data[key]; ok {
			inMonth[key] = rec
		}
	}
	if len(inMonth) == 0 {
		return fmt.Errorf("%d-%02d: %w", year, int(month), cache.ErrNoData)
	}

	out := cmd.OutOrStdout()
	if a.opts.raw {
		output.StreamDays(out, inMonth)
		return nil
	}

	grid := ordo.MonthGrid(year, month, a.cfg.MondayFirst())
	lookup := func(key string) api.DayRecord { return data[key] }
	output.PrintMonthGrid(out, grid, lookup, a.renderOptions())
	return nil
}

func handleDay(cmd *cobra.Command, args []string, a *app) error {
	spec := ""
	if len(args) > 0 {
		spec = args[0]
	}
	date, err := core.ParseDateSpec(spec, a.opts.now())
	if err != nil {
		return err
	}

	data, err := a.manager.GetYear(cmd.Context(), date.Year())
	if err != nil {
		return err
	}
	rec := data[core.FormatDate(date)]

	out := cmd.OutOrStdout()
	if a.opts.raw {
		if rec == nil {
			return fmt.Errorf("%s: %w", core.FormatDate(date), cache.ErrNoData)
		}
		output.WriteJSON(out, rec)
		return nil
	}
	output.PrintDay(out, date, rec, a.renderOptions())
	return nil
}

func handleYear(cmd *cobra.Command, args []string, a *app) error {
	year := a.opts.now().Year()
	if len(args) > 0 {
		y, err := core.ParseYear(args[0])
		if err != nil {
			return err
		}
		year = y
	}

	a.progress(fmt.Sprintf("Loading %d…", year))
	data, err := a.manager.GetYear(cmd.Context(), year)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return fmt.Errorf("%d: %w", year, cache.ErrNoData)
	}

	if a.opts.raw {
		output.StreamDays(cmd.OutOrStdout(), data)
		return nil
	}
	output.PrintYearSummary(cmd.OutOrStdout(), year, data)
	return nil
}

func handleDays(cmd *cobra.Command, args []string, a *app) error {
	year, err := core.ParseYear(args[0])
	if err != nil {
		return err
	}
	a.manager.LoadFromStore()
	output.StreamDays(cmd.OutOrStdout(), a.manager.CachedSlice(year, args[1:]))
	return nil
}

func handleProbe(cmd *cobra.Command, args []string, a *app) error {
	if err := a.api.Probe(cmd.Context()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "API reachable at %s\n", a.api.BaseURL())
	return nil
}

func handlePrefetch(cmd *cobra.Command, args []string, a *app) error {
	parallel, _ := cmd.Flags().GetInt("parallel")
	years, err := parseYears(args)
	if err != nil {
		return err
	}

	a.progress(fmt.Sprintf("Prefetching %d year(s)…", len(years)))
	results := a.manager.GetYears(cmd.Context(), years, parallel)

	out := cmd.OutOrStdout()
	var firstErr error
	for _, res := range results {
		if res.Err != nil {
			fmt.Fprintf(out, "%d: failed: %v\n", res.Year, res.Err)
			if firstErr == nil {
				firstErr = res.Err
			}
			continue
		}
		fmt.Fprintf(out, "%d: %d days\n", res.Year, len(res.Data))
	}
	return firstErr
}

func handleCacheInfo(cmd *cobra.Command, args []string, a *app) error {
	a.manager.LoadFromStore()
	info := a.manager.Info()
	if a.opts.raw {
		output.WriteJSON(cmd.OutOrStdout(), info)
		return nil
	}
	output.PrintCacheInfo(cmd.OutOrStdout(), info)
	return nil
}

func handleCacheClear(cmd *cobra.Command, args []string, a *app) error {
	years, err := parseYears(args)
	if err != nil {
		return err
	}
	a.manager.Invalidate(years...)
	if len(years) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Cache cleared")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Cleared %d year(s)\n", len(years))
	return nil
}

func handleExportICS(cmd *cobra.Command, args []string, a *app) error {
	year, err := core.ParseYear(args[0])
	if err != nil {
		return err
	}
	month, _ := cmd.Flags().GetInt("month")
	if month < 0 || month > 12 {
		return fmt.Errorf("--month must be between 1 and 12")
	}
	path, _ := cmd.Flags().GetString("output")

	data, err := a.manager.GetYear(cmd.Context(), year)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return fmt.Errorf("%d: %w", year, cache.ErrNoData)
	}

	opts := export.ICSOptions{Month: time.Month(month)}
	if path == "" {
		return export.WriteICS(cmd.OutOrStdout(), year, data, opts)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := export.WriteICS(f, year, data, opts); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	a.progress(fmt.Sprintf("Wrote %s", path))
	return nil
}

func handleServe(cmd *cobra.Command, args []string, a *app) error {
	listen, _ := cmd.Flags().GetString("listen")
	noRefresh, _ := cmd.Flags().GetBool("no-refresh")
	if listen == "" {
		listen = a.cfg.Listen
	}

	loaded := a.manager.LoadFromStore()
	a.progress(fmt.Sprintf("Loaded %d cached year(s); serving on http://%s", loaded, listen))

	var refresher *server.Refresher
	if !noRefresh {
		r, err := server.NewRefresher(a.manager, a.cfg.RefreshCron, core.PrefetchMaxWorkers)
		if err != nil {
			return err
		}
		refresher = r
	}

	return server.New(a.manager, refresher).Start(cmd.Context(), listen)
}

func handleMCP(cmd *cobra.Command, args []string, a *app) error {
	a.manager.LoadFromStore()
	s := newMCPServer(a.manager, cmd.OutOrStdout())
	s.now = a.opts.now
	return s.serve(cmd.Context(), cmd.InOrStdin())
}

func parseYears(args []string) ([]int, error) {
	years := make([]int, 0, len(args))
	for _, arg := range args {
		y, err := core.ParseYear(arg)
		if err != nil {
			return nil, err
		}
		years = append(years, y)
	}
	return years, nil
}
