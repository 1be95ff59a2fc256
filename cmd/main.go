package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"ats-radar/internal/config"
	"ats-radar/internal/fetcher"
	"ats-radar/internal/logger"

	"github.com/spf13/cobra"
)

var errSourcesFailed = errors.New("one or more sources failed")

type rootOptions struct {
	configPath string
	dryRun     bool
	build      depsBuilder
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(buildDeps).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(build depsBuilder) *cobra.Command {
	opts := &rootOptions{build: build}

	root := &cobra.Command{
		Use:          "ats-radar",
		Short:        "Fetch, normalize and reconcile jobs from Greenhouse, Lever and Ashby",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default $CONFIG_FILE or config.yaml)")
	root.PersistentFlags().BoolVar(&opts.dryRun, "dry-run", false, "print normalized jobs as JSON without persisting or closing jobs")

	for _, source := range []string{fetcher.SourceGreenhouse, fetcher.SourceLever, fetcher.SourceAshby} {
		root.AddCommand(newSourceCmd(opts, source))
	}
	root.AddCommand(newSyncCmd(opts), newServeCmd(opts), newRunsCmd(opts))
	return root
}

func newSourceCmd(opts *rootOptions, source string) *cobra.Command {
	return &cobra.Command{
		Use:   source,
		Short: fmt.Sprintf("Fetch jobs from %s only", source),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.execSync(cmd.Context(), cmd.OutOrStdout(), []string{source})
		},
	}
}

func newSyncCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Fetch all enabled sources sequentially",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.execSync(cmd.Context(), cmd.OutOrStdout(), nil)
		},
	}
}

// loadConfig 读取并校验配置，同时初始化日志。
func (o *rootOptions) loadConfig() (config.AppConfig, error) {
	cfg, err := config.Load(config.Path(o.configPath))
	if err != nil {
		return config.AppConfig{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.AppConfig{}, fmt.Errorf("invalid config: %w", err)
	}
	logger.Init(cfg.Log)
	return cfg, nil
}

func (o *rootOptions) execSync(ctx context.Context, out io.Writer, sources []string) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	if o.dryRun {
		return runDryRun(ctx, cfg, o.build, sources, out)
	}
	summary, err := runSync(ctx, cfg, o.build, sources, out)
	if err != nil {
		return err
	}
	if summary.Failed() {
		return errSourcesFailed
	}
	return nil
}
