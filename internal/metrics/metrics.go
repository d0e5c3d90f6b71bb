package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"logsim/internal/progress"
)

const namespace = "logsim"

// Recorder exports batch activity as Prometheus metrics. It satisfies
// batch.Observer.
type Recorder struct {
	filesGenerated  *prometheus.CounterVec
	writeDuration   prometheus.Histogram
	batchesStarted  prometheus.Counter
	batchesFinished prometheus.Counter
	tasksPending    prometheus.Gauge
}

// NewRecorder creates the collectors and registers them on reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		filesGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_generated_total",
			Help:      "Completed file-write tasks by result.",
		}, []string{"result"}),
		writeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "file_write_duration_seconds",
			Help:      "Time spent writing one synthetic log file.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		batchesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_started_total",
			Help:      "Generation batches started.",
		}),
		batchesFinished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_finished_total",
			Help:      "Generation batches whose tasks have all completed.",
		}),
		tasksPending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "batch_tasks_pending",
			Help:      "Tasks of running batches that have not completed yet.",
		}),
	}
	for _, c := range []prometheus.Collector{r.filesGenerated, r.writeDuration, r.batchesStarted, r.batchesFinished, r.tasksPending} {
		if err := reg.Register(c); err != nil {
			return nil, err //nolint:wrapcheck
		}
	}
	return r, nil
}

func (r *Recorder) BatchStarted(total int) {
	r.batchesStarted.Inc()
	r.tasksPending.Add(float64(total))
}

func (r *Recorder) TaskCompleted(res progress.Result) {
	r.tasksPending.Dec()
	if res.Failed() {
		r.filesGenerated.WithLabelValues("error").Inc()
		return
	}
	r.filesGenerated.WithLabelValues("ok").Inc()
	r.writeDuration.Observe(res.Duration.Seconds())
}

func (r *Recorder) BatchFinished() {
	r.batchesFinished.Inc()
}
