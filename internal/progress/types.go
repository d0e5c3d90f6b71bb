package progress

import (
	"strconv"
	"time"
)

// DefaultRecent is how many of the latest records a status view carries.
const DefaultRecent = 50

const errorFilenamePrefix = "ERROR_"

// Record describes one completed task.
type Record struct {
	Filename   string `json:"filename"`
	DurationMS int64  `json:"duration_ms"`
}

// Result is the outcome of a single task. A non-nil Err marks a failure.
type Result struct {
	Index    int
	Filename string
	Duration time.Duration
	Err      error
}

// Failed reports whether the task failed.
func (r Result) Failed() bool { return r.Err != nil }

// Record converts the result into the record stored for it.
// Failures are recorded as ERROR_<index> with zero duration.
func (r Result) Record() Record {
	if r.Err != nil {
		return Record{Filename: errorFilenamePrefix + strconv.Itoa(r.Index)}
	}
	ms := r.Duration.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	return Record{Filename: r.Filename, DurationMS: ms}
}

// Aggregates are derived from the full record history on read.
type Aggregates struct {
	FilesCount int   `json:"files_count"`
	TotalMS    int64 `json:"total_ms"`
	AvgMS      int64 `json:"avg_ms"`
	MinMS      int64 `json:"min_ms"`
	MaxMS      int64 `json:"max_ms"`
}

// Snapshot is an immutable copy of the job status at one point in time.
type Snapshot struct {
	JobID          string
	TotalRequested int
	Created        int
	InProgress     int
	Files          []Record
	StartedAt      *time.Time
	EndedAt        *time.Time
}

// Done reports whether the tracked job has finished.
func (s Snapshot) Done() bool { return s.EndedAt != nil }

// Status is a snapshot trimmed to the most recent records, with aggregates
// computed over every record of the job.
type Status struct {
	Snapshot
	Aggregates Aggregates
}
