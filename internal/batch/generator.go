package batch

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"logsim/internal/progress"
)

// Generator runs batches of independent file-write tasks on a bounded pool and
// folds every outcome into a progress store.
//
// A running batch cannot be cancelled: every dispatched task runs to completion.
type Generator struct {
	store     *progress.Store
	writer    Writer
	observers []Observer
}

// NewGenerator creates a generator writing through w and reporting into store.
func NewGenerator(store *progress.Store, w Writer, observers ...Observer) *Generator {
	return &Generator{store: store, writer: w, observers: observers}
}

// Run executes req.NumFiles tasks with at most req.Concurrency running at once
// and returns when all of them have completed. The store must already have been
// reset for this batch.
func (g *Generator) Run(req Request) {
	concurrency := max(1, req.Concurrency)
	total := max(0, req.NumFiles)
	for _, o := range g.observers {
		o.BatchStarted(total)
	}

	var pool errgroup.Group
	pool.SetLimit(concurrency)
	for idx := 1; idx <= total; idx++ {
		g.store.MarkStarted()
		idx := idx
		pool.Go(func() error {
			g.complete(g.runTask(idx, req.LinesPerFile))
			return nil
		})
	}
	_ = pool.Wait()

	g.store.MarkFinished()
	for _, o := range g.observers {
		o.BatchFinished()
	}
	log.Info().Int("num_files", total).Int("concurrency", concurrency).Msg("batch finished")
}

func (g *Generator) runTask(idx, lines int) (res progress.Result) {
	res.Index = idx
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	res.Filename, res.Duration, res.Err = g.writer.Write(idx, lines)
	return res
}

func (g *Generator) complete(res progress.Result) {
	rec := g.store.MarkCompleted(res)
	if res.Failed() {
		log.Error().Err(res.Err).Int("task", res.Index).Msg("error creating file")
	} else {
		log.Debug().Int("task", res.Index).Str("filename", rec.Filename).Int64("duration_ms", rec.DurationMS).Msg("file created")
	}
	for _, o := range g.observers {
		o.TaskCompleted(res)
	}
}
