package progress

import (
	"sync"
	"time"
)

// Store is the lock-guarded aggregate shared by batch workers and status readers.
// A single mutex covers every field so that each operation is atomic with
// respect to all others.
type Store struct {
	mu         sync.Mutex
	jobID      string
	total      int
	created    int
	inProgress int
	files      []Record
	startedAt  *time.Time
	endedAt    *time.Time
	now        func() time.Time
}

// NewStore returns an empty store. Before the first Reset every counter is zero
// and both timestamps are nil.
func NewStore() *Store {
	return &Store{now: time.Now}
}

// Reset clears the store for a new job. Negative totals are recorded as zero.
func (s *Store) Reset(jobID string, total int) {
	if total < 0 {
		total = 0
	}
	started := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobID = jobID
	s.total = total
	s.created = 0
	s.inProgress = 0
	s.files = make([]Record, 0, min(total, 1024))
	s.startedAt = &started
	s.endedAt = nil
}

// MarkStarted counts one more task as dispatched.
func (s *Store) MarkStarted() {
	s.mu.Lock()
	s.inProgress++
	s.mu.Unlock()
}

// MarkCompleted folds a task result into the store and returns the record that
// was appended. The record, created and in_progress change together.
func (s *Store) MarkCompleted(res Result) Record {
	rec := res.Record()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = append(s.files, rec)
	s.created++
	if s.inProgress > 0 {
		s.inProgress--
	}
	return rec
}

// MarkFinished stamps the end of the current job.
func (s *Store) MarkFinished() {
	ended := s.now()

	s.mu.Lock()
	s.endedAt = &ended
	s.mu.Unlock()
}

// Snapshot returns a deep copy of the whole status, every record included.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(0, len(s.files))
}

// Status returns the last recent records with aggregates over all of them.
// A non-positive recent falls back to DefaultRecent.
func (s *Store) Status(recent int) Status {
	if recent <= 0 {
		recent = DefaultRecent
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	from := max(0, len(s.files)-recent)
	return Status{
		Snapshot:   s.snapshotLocked(from, len(s.files)),
		Aggregates: Aggregate(s.files),
	}
}

func (s *Store) snapshotLocked(from, to int) Snapshot {
	files := make([]Record, to-from)
	copy(files, s.files[from:to])
	return Snapshot{
		JobID:          s.jobID,
		TotalRequested: s.total,
		Created:        s.created,
		InProgress:     s.inProgress,
		Files:          files,
		StartedAt:      copyTime(s.startedAt),
		EndedAt:        copyTime(s.endedAt),
	}
}

// Aggregate computes count, sum, truncated average, min and max durations.
// All values are zero for an empty slice.
func Aggregate(records []Record) Aggregates {
	agg := Aggregates{FilesCount: len(records)}
	if len(records) == 0 {
		return agg
	}
	agg.MinMS = records[0].DurationMS
	agg.MaxMS = records[0].DurationMS
	for _, r := range records {
		agg.TotalMS += r.DurationMS
		agg.MinMS = min(agg.MinMS, r.DurationMS)
		agg.MaxMS = max(agg.MaxMS, r.DurationMS)
	}
	agg.AvgMS = agg.TotalMS / int64(agg.FilesCount)
	return agg
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
