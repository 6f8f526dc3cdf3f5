package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"hotel-panel/config"
	"hotel-panel/utils"
)

// setup loads the configuration and builds the logger and pipeline for a
// command. The caller must Close the pipeline.
func setup(ctx context.Context, configFile string) (*Pipeline, error) {
	if configFile != "" {
		if err := os.Setenv("HOTEL_CONFIG_FILE", configFile); err != nil {
			return nil, fmt.Errorf("app: set config file: %w", err)
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := utils.NewLoggerWithConfig(utils.LogConfig{Level: cfg.LogLevel, Format: cfg.LogFormat})
	return New(ctx, cfg, logger)
}

// withPipeline runs fn against a fresh pipeline and closes it afterwards.
func withPipeline(cmd *cobra.Command, fn func(ctx context.Context, p *Pipeline) error) error {
	configFile, _ := cmd.Flags().GetString("config")
	p, err := setup(cmd.Context(), configFile)
	if err != nil {
		return err
	}
	runErr := fn(cmd.Context(), p)
	if err := p.Close(); err != nil && runErr == nil {
		return err
	}
	return runErr
}

func newCommand(use, short string, run func(cmd *cobra.Command, args []string) error) *cobra.Command {
	cmd := &cobra.Command{
		Use:           use,
		Short:         short,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          run,
	}
	cmd.Flags().String("config", "", "YAML config file (overrides HOTEL_CONFIG_FILE)")
	return cmd
}

// NewRootCommand runs the whole pipeline: every source, merge, clean, report.
func NewRootCommand() *cobra.Command {
	var force bool
	cmd := newCommand("hotel-panel", "Build the monthly EU hotel-demand panel", func(cmd *cobra.Command, _ []string) error {
		return withPipeline(cmd, func(ctx context.Context, p *Pipeline) error {
			return p.Run(ctx, force)
		})
	})
	cmd.Flags().BoolVar(&force, "force", false, "Download sources even when cached")
	return cmd
}

// NewFetchCommand downloads a single source into the raw directory.
func NewFetchCommand(source, short string) *cobra.Command {
	var force bool
	cmd := newCommand(source, short, func(cmd *cobra.Command, _ []string) error {
		return withPipeline(cmd, func(ctx context.Context, p *Pipeline) error {
			return p.Fetch(ctx, []string{source}, force)
		})
	})
	cmd.Flags().BoolVar(&force, "force", false, "Download even when the raw file exists")
	return cmd
}

// NewMergeCommand merges the raw tables into the panel.
func NewMergeCommand() *cobra.Command {
	return newCommand("merge", "Merge raw source tables into the panel", func(cmd *cobra.Command, _ []string) error {
		return withPipeline(cmd, func(ctx context.Context, p *Pipeline) error {
			_, err := p.Merge(ctx)
			return err
		})
	})
}

// NewCleanCommand cleans and enriches the merged panel and prints insights.
func NewCleanCommand() *cobra.Command {
	return newCommand("clean", "Clean, fill and add lags to the merged panel", func(cmd *cobra.Command, _ []string) error {
		return withPipeline(cmd, func(ctx context.Context, p *Pipeline) error {
			cleaned, err := p.Clean(ctx, nil)
			if err != nil {
				return err
			}
			p.Report(ctx, cleaned)
			return nil
		})
	})
}

// Execute runs cmd until it finishes or the process is interrupted. Errors
// go to stderr with exit status 1.
func Execute(cmd *cobra.Command) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
