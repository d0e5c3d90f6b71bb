package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"logsim/internal/config"
)

const defaultConfigPath = "config.yml"

type rootOptions struct {
	configPath string
	debug      bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Error().Err(err).Msg("logsim failed")
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	serveOpts := &serveOptions{}

	root := &cobra.Command{
		Use:   "logsim",
		Short: "Generate synthetic log files and browse them over HTTP",
		Long: `logsim writes batches of synthetic log files concurrently, tracks progress
and timings, and serves a JSON API and a small web UI to browse, preview,
download and delete the results.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeCmd(cmd, opts, serveOpts)
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", defaultConfigPath, "path to YAML config file")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging and gin debug mode")
	bindServeFlags(root, serveOpts)

	root.AddCommand(newServeCmd(opts), newGenerateCmd(opts))
	return root
}

func loadConfig(opts *rootOptions) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return cfg, err
	}
	if opts.debug {
		cfg.Debug = true
	}
	return cfg, nil
}
