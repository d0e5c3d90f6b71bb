package batch

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	filenameTimeLayout = "20060102_150405"
	lineTimeLayout     = "2006-01-02 15:04:05.000"
	logFilePerm        = 0o644
)

// Writer produces one synthetic log file for a task.
type Writer interface {
	Write(index, lines int) (string, time.Duration, error)
}

// FileWriter writes log files into Dir, named <Prefix>_<YYYYMMDD_HHMMSS>_<index>.log.
type FileWriter struct {
	Dir    string
	Prefix string
	now    func() time.Time
}

// NewFileWriter returns a writer for dir. An empty prefix falls back to DefaultFilePrefix.
func NewFileWriter(dir, prefix string) *FileWriter {
	if prefix == "" {
		prefix = DefaultFilePrefix
	}
	return &FileWriter{Dir: dir, Prefix: prefix, now: time.Now}
}

// Filename builds the name for task index at t. The index is zero-padded to at
// least four digits; wider indices keep all their digits.
func Filename(prefix string, t time.Time, index int) string {
	return fmt.Sprintf("%s_%s_%04d.log", prefix, t.Format(filenameTimeLayout), index)
}

// Write creates the file for task index with max(1, lines) lines and returns its
// name and the time spent. A file that was opened but not fully written is
// removed; a path that could not be opened is left as it was.
func (w *FileWriter) Write(index, lines int) (string, time.Duration, error) {
	start := time.Now()
	filename := Filename(w.Prefix, w.now(), index)
	path := filepath.Join(w.Dir, filename)

	if err := w.writeLines(path, max(1, lines)); err != nil {
		return "", 0, fmt.Errorf("write %s: %w", filename, err)
	}
	return filename, time.Since(start), nil
}

func (w *FileWriter) writeLines(path string, lines int) (err error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, logFilePerm) //nolint:gosec // path is built by the application
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close file: %w", closeErr)
		}
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	bw := bufio.NewWriter(f)
	for i := 1; i <= lines; i++ {
		if _, err := fmt.Fprintf(bw, "%d | %s | Simulated action #%d\n", i, w.now().Format(lineTimeLayout), i); err != nil {
			return fmt.Errorf("write line %d: %w", i, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}
