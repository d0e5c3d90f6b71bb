package batch

import (
	"runtime"

	"logsim/internal/progress"
)

// Request is an accepted generation request.
type Request struct {
	NumFiles     int `json:"num_files"`
	LinesPerFile int `json:"lines_per_file"`
	Concurrency  int `json:"concurrency"`
}

// Options configures a Launcher and the Generator it drives.
type Options struct {
	OutputDir           string
	FilePrefix          string
	DefaultNumFiles     int
	DefaultLinesPerFile int
	Observers           []Observer
}

// Observer receives batch lifecycle notifications. Calls happen outside the
// progress store lock and may arrive from several goroutines at once.
type Observer interface {
	BatchStarted(total int)
	TaskCompleted(res progress.Result)
	BatchFinished()
}

const (
	DefaultFilePrefix     = "clientlog"
	DefaultNumFiles       = 1
	DefaultLinesPerFile   = 3000
	maxDefaultConcurrency = 4
	ParamNumFiles         = "num_files"
	ParamLinesPerFile     = "lines_per_file"
	ParamConcurrency      = "concurrency"
)

// DefaultConcurrency is min(4, available CPUs).
func DefaultConcurrency() int {
	return max(1, min(maxDefaultConcurrency, runtime.NumCPU()))
}
