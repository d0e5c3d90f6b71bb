package main

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"logsim/internal/batch"
	"logsim/internal/config"
	fileutil "logsim/internal/file"
	"logsim/internal/logging"
	"logsim/internal/progress"
)

type generateOptions struct {
	numFiles    int
	lines       int
	concurrency int
	outputDir   string
	noProgress  bool
}

func newGenerateCmd(root *rootOptions) *cobra.Command {
	opts := &generateOptions{}
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate one batch of log files in the foreground",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(root)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cmd.Flags().Changed("output-dir") {
				cfg.OutputDir = opts.outputDir
			}
			return runGenerate(cmd, cfg, opts)
		},
	}
	cmd.Flags().IntVarP(&opts.numFiles, "num-files", "n", 0, "number of files (default from config)")
	cmd.Flags().IntVarP(&opts.lines, "lines", "l", 0, "lines per file (default from config)")
	cmd.Flags().IntVarP(&opts.concurrency, "concurrency", "c", 0, "parallel writers (default min(4, CPUs))")
	cmd.Flags().StringVarP(&opts.outputDir, "output-dir", "o", "", "output directory (overrides config)")
	cmd.Flags().BoolVar(&opts.noProgress, "no-progress", false, "hide the progress bar")
	return cmd
}

func runGenerate(cmd *cobra.Command, cfg config.Config, opts *generateOptions) error {
	closer, err := logging.Setup(cfg.Log, cfg.Debug)
	if err != nil {
		return err
	}
	defer closer.Close()

	if err := fileutil.EnsureDir(cfg.OutputDir); err != nil {
		return fmt.Errorf("ensure output dir %s: %w", cfg.OutputDir, err)
	}

	barOut := cmd.ErrOrStderr()
	if opts.noProgress {
		barOut = io.Discard
	}
	bar := newProgressObserver(barOut)
	store := progress.NewStore()
	launcher := buildLauncher(cfg, store, bar)

	req, err := batch.ParseRequest(generateParams(cmd, opts), launcher.Defaults())
	if err != nil {
		return err
	}

	start := time.Now()
	jobID := launcher.RunSync(req)
	printSummary(cmd.OutOrStdout(), summary{
		JobID:     jobID,
		Request:   req,
		Status:    store.Status(cfg.RecentFiles),
		Failed:    bar.Failed(),
		Elapsed:   time.Since(start),
		OutputDir: cfg.OutputDir,
	})
	return nil
}

// generateParams collects only the flags the user set so unset ones fall back
// to launcher defaults.
func generateParams(cmd *cobra.Command, opts *generateOptions) map[string]any {
	params := map[string]any{}
	if cmd.Flags().Changed("num-files") {
		params[batch.ParamNumFiles] = opts.numFiles
	}
	if cmd.Flags().Changed("lines") {
		params[batch.ParamLinesPerFile] = opts.lines
	}
	if cmd.Flags().Changed("concurrency") {
		params[batch.ParamConcurrency] = opts.concurrency
	}
	return params
}

// progressObserver drives a terminal progress bar from batch events. The bar
// is created when the batch starts, before any task can complete.
type progressObserver struct {
	out    io.Writer
	bar    *progressbar.ProgressBar
	failed atomic.Int64
}

func newProgressObserver(w io.Writer) *progressObserver {
	return &progressObserver{out: w}
}

func (p *progressObserver) BatchStarted(total int) {
	p.bar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionSetDescription("generating"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionOnCompletion(func() { _, _ = fmt.Fprintln(p.out) }),
	)
}

func (p *progressObserver) TaskCompleted(res progress.Result) {
	if res.Failed() {
		p.failed.Add(1)
	}
	_ = p.bar.Add(1)
}

func (p *progressObserver) BatchFinished() {
	_ = p.bar.Finish()
}

func (p *progressObserver) Failed() int { return int(p.failed.Load()) }

type summary struct {
	JobID     string
	Request   batch.Request
	Status    progress.Status
	Failed    int
	Elapsed   time.Duration
	OutputDir string
}

func printSummary(w io.Writer, s summary) {
	agg := s.Status.Aggregates
	_, _ = fmt.Fprintf(w, "job:         %s\n", s.JobID)
	_, _ = fmt.Fprintf(w, "files:       %d/%d created, %d failed\n", s.Status.Created, s.Status.TotalRequested, s.Failed)
	_, _ = fmt.Fprintf(w, "lines/file:  %d (concurrency %d)\n", s.Request.LinesPerFile, s.Request.Concurrency)
	_, _ = fmt.Fprintf(w, "durations:   total %dms, avg %dms, min %dms, max %dms\n", agg.TotalMS, agg.AvgMS, agg.MinMS, agg.MaxMS)
	_, _ = fmt.Fprintf(w, "elapsed:     %s\n", s.Elapsed.Round(time.Millisecond))
	_, _ = fmt.Fprintf(w, "output dir:  %s\n", s.OutputDir)
}
