package batch

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"logsim/internal/progress"
)

// Launcher accepts generation requests and runs each batch in the background.
//
// Launches are not serialized: starting a new batch while another is running
// interleaves both into the same progress store. Callers are expected not to
// overlap requests.
type Launcher struct {
	store     *progress.Store
	generator *Generator
	defaults  Request
	workersWG sync.WaitGroup
}

// NewLauncher builds a launcher writing files into opts.OutputDir and
// reporting into store.
func NewLauncher(store *progress.Store, opts Options) *Launcher {
	return NewLauncherWithWriter(store, NewFileWriter(opts.OutputDir, opts.FilePrefix), opts)
}

// NewLauncherWithWriter is NewLauncher with a caller-supplied Writer.
func NewLauncherWithWriter(store *progress.Store, w Writer, opts Options) *Launcher {
	if opts.DefaultNumFiles <= 0 {
		opts.DefaultNumFiles = DefaultNumFiles
	}
	if opts.DefaultLinesPerFile <= 0 {
		opts.DefaultLinesPerFile = DefaultLinesPerFile
	}
	return &Launcher{
		store:     store,
		generator: NewGenerator(store, w, opts.Observers...),
		defaults: Request{
			NumFiles:     opts.DefaultNumFiles,
			LinesPerFile: opts.DefaultLinesPerFile,
			Concurrency:  DefaultConcurrency(),
		},
	}
}

// Defaults returns the parameters used for keys missing from a request.
func (l *Launcher) Defaults() Request { return l.defaults }

// Launch validates params, resets the progress store and starts the batch
// without waiting for it. Invalid parameters leave the store untouched.
func (l *Launcher) Launch(params map[string]any) (Request, error) {
	req, err := ParseRequest(params, l.defaults)
	if err != nil {
		return Request{}, err
	}
	jobID := l.Start(req)
	log.Info().
		Str("job_id", jobID).
		Int("num_files", req.NumFiles).
		Int("lines_per_file", req.LinesPerFile).
		Int("concurrency", req.Concurrency).
		Msg("generation started")
	return req, nil
}

// Start resets the store for req and runs it in the background, returning the
// new job id.
func (l *Launcher) Start(req Request) string {
	jobID := uuid.NewString()
	l.store.Reset(jobID, req.NumFiles)
	l.workersWG.Add(1)
	go func() {
		defer l.workersWG.Done()
		l.generator.Run(req)
	}()
	return jobID
}

// RunSync resets the store for req and runs it on the calling goroutine.
func (l *Launcher) RunSync(req Request) string {
	jobID := uuid.NewString()
	l.store.Reset(jobID, req.NumFiles)
	l.generator.Run(req)
	return jobID
}

// WaitAll blocks until all in-flight batches finish or the context is done.
// Returns true if all batches finished, false if timed out.
func (l *Launcher) WaitAll(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		l.workersWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
