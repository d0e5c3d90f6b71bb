package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"logsim/internal/api"
	"logsim/internal/batch"
	"logsim/internal/browse"
	"logsim/internal/config"
	fileutil "logsim/internal/file"
	"logsim/internal/logging"
	"logsim/internal/metrics"
	"logsim/internal/progress"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

type serveOptions struct {
	host string
	port int
}

func newServeCmd(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and web UI (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServeCmd(cmd, root, opts)
		},
	}
	bindServeFlags(cmd, opts)
	return cmd
}

func bindServeFlags(cmd *cobra.Command, opts *serveOptions) {
	cmd.Flags().StringVar(&opts.host, "host", "", "listen host (overrides config)")
	cmd.Flags().IntVar(&opts.port, "port", 0, "listen port (overrides config)")
}

func runServeCmd(cmd *cobra.Command, root *rootOptions, opts *serveOptions) error {
	cfg, err := loadConfig(root)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := applyServeOverrides(cmd, &cfg, opts); err != nil {
		return err
	}
	return serve(cmd.Context(), cfg)
}

func applyServeOverrides(cmd *cobra.Command, cfg *config.Config, opts *serveOptions) error {
	if cmd.Flags().Changed("host") {
		cfg.Host = opts.host
	}
	if cmd.Flags().Changed("port") {
		cfg.Port = opts.port
	}
	return cfg.Validate()
}

func serve(ctx context.Context, cfg config.Config) error {
	closer, err := logging.Setup(cfg.Log, cfg.Debug)
	if err != nil {
		return err
	}
	defer closer.Close()

	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := fileutil.EnsureDir(cfg.OutputDir); err != nil {
		return fmt.Errorf("ensure output dir %s: %w", cfg.OutputDir, err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder, err := metrics.NewRecorder(reg)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	store := progress.NewStore()
	launcher := buildLauncher(cfg, store, recorder)
	browser, err := browse.New(cfg.OutputDir, cfg.MaxPreviewChars)
	if err != nil {
		return err
	}

	router := setupRouter(cfg)
	wireAPI(router, api.NewAPI(launcher, store, browser, api.Options{
		RecentFiles:        cfg.RecentFiles,
		StatusPushInterval: cfg.StatusPushInterval,
		Metrics:            reg,
	}))

	srv := newHTTPServer(cfg.Addr(), router, readHeaderTimeout)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	log.Info().Str("addr", cfg.Addr()).Str("output_dir", browser.Root()).Msg("server listening")

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	}

	gracefulShutdown(srv, launcher, shutdownTimeout)
	return nil
}

func setupRouter(cfg config.Config) *gin.Engine {
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(api.ZerologLogger("/metrics", "/health", "/api/status"))
	if len(cfg.CORSOrigins) > 0 {
		r.Use(api.CORS(cfg.CORSOrigins))
	}
	return r
}

func buildLauncher(cfg config.Config, store *progress.Store, observers ...batch.Observer) *batch.Launcher {
	return batch.NewLauncher(store, batch.Options{
		OutputDir:           cfg.OutputDir,
		FilePrefix:          cfg.FilePrefix,
		DefaultNumFiles:     cfg.DefaultNumFiles,
		DefaultLinesPerFile: cfg.DefaultLinesPerFile,
		Observers:           observers,
	})
}

func wireAPI(router *gin.Engine, apiHandler *api.API) {
	apiHandler.RegisterRoutes(router)
	apiHandler.RegisterUIRoutes(router)
}

func newHTTPServer(addr string, handler http.Handler, readHeaderTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}
}

func gracefulShutdown(srv *http.Server, launcher *batch.Launcher, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("http server shutdown warning")
	}

	if !launcher.WaitAll(ctx) {
		log.Warn().Msg("generation batches did not finish before timeout")
	}
	log.Info().Msg("server exited cleanly")
}
