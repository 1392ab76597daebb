// Package cli implements the command-line interface for the ordo CLI.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/colthorp/ordo-cli-go/internal/api"
	"github.com/colthorp/ordo-cli-go/internal/cache"
	"github.com/colthorp/ordo-cli-go/internal/config"
	"github.com/colthorp/ordo-cli-go/internal/core"
	appLog "github.com/colthorp/ordo-cli-go/internal/log"
	"github.com/colthorp/ordo-cli-go/internal/output"
)

// globalOptions holds the persistent flags.
type globalOptions struct {
	verbose      bool
	quiet        bool
	raw          bool
	configPath   string
	apiURL       string
	cacheBackend string
	cacheDir     string

	// now is the clock for relative date specs (for testing).
	now func() time.Time
}

// app is the per-invocation wiring of config, API and cache.
type app struct {
	cfg     *config.Config
	api     *api.OrdoAPI
	manager *cache.Manager
	opts    *globalOptions
}

// newRootCmd builds the command tree.
func newRootCmd() *cobra.Command {
	opts := &globalOptions{now: time.Now}

	rootCmd := &cobra.Command{
		Use:           "ordo",
		Short:         "ordo – liturgical calendar data from the terminal",
		Long:          `A command-line utility for browsing, caching and exporting liturgical ordo data.`,
		Version:       core.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			switch {
			case opts.verbose:
				appLog.SetLevel(appLog.LevelDebug)
			case opts.quiet:
				appLog.SetLevel(appLog.LevelError)
			default:
				appLog.SetLevel(appLog.LevelWarn)
			}
		},
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Verbose debug output to stderr")
	rootCmd.PersistentFlags().BoolVar(&opts.quiet, "quiet", false, "Suppress progress messages")
	rootCmd.PersistentFlags().BoolVar(&opts.raw, "raw", false, "Emit raw JSON instead of formatted text")
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", fmt.Sprintf("Config file (default: %s)", core.ConfigPath()))
	rootCmd.PersistentFlags().StringVar(&opts.apiURL, "api-url", "", "Override the API base URL")
	rootCmd.PersistentFlags().StringVar(&opts.cacheBackend, "cache-backend", "", "Persisted cache backend (sqlite, file, memory)")
	rootCmd.PersistentFlags().StringVar(&opts.cacheDir, "cache-dir", "", "Directory for the persisted cache")

	addCommands(rootCmd, opts)
	return rootCmd
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies env and flag overrides.
func (o *globalOptions) loadConfig() (*config.Config, string, error) {
	path := o.configPath
	if path == "" {
		path = core.ConfigPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, fmt.Errorf("load config: %w", err)
	}
	cfg.ApplyEnv()
	if o.apiURL != "" {
		cfg.APIBaseURL = o.apiURL
	}
	if o.cacheBackend != "" {
		cfg.Cache.Backend = o.cacheBackend
	}
	if o.cacheDir != "" {
		cfg.Cache.Dir = o.cacheDir
	}
	return cfg, path, nil
}

// setup wires an app from config and flags.
func (o *globalOptions) setup() (*app, error) {
	cfg, _, err := o.loadConfig()
	if err != nil {
		return nil, err
	}

	ordoAPI := api.NewOrdoAPIForURL(cfg.BaseURL())
	ordoAPI.SetMonthTimeout(cfg.MonthTimeoutDuration())

	store, err := cache.OpenStore(cfg.Cache.Backend, cfg.CacheDir())
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}

	manager := cache.NewManager(ordoAPI, store, cache.WithTTL(cfg.CacheTTL()))
	appLog.Debug("cli ready", "api", cfg.BaseURL(), "backend", cfg.Cache.Backend)

	return &app{cfg: cfg, api: ordoAPI, manager: manager, opts: o}, nil
}

func (a *app) Close() {
	if err := a.manager.Close(); err != nil {
		appLog.Warn("close cache", "err", err)
	}
}

func (a *app) renderOptions() output.Options {
	return output.Options{
		Color:              output.ColorEnabled(os.Stdout),
		ShowRanks:          a.cfg.Display.ShowFeastRanks,
		ShowColors:         a.cfg.Display.ShowLiturgicalColors,
		ShowCommemorations: a.cfg.Display.ShowCommemorations,
	}
}

func (a *app) progress(msg string) {
	core.ProgressPrint(msg, a.opts.quiet || a.opts.raw)
}
