package archive

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// ErrNoFiles is returned when there is nothing to archive.
var ErrNoFiles = errors.New("no files provided")

// Result describes the outcome of adding a single file to the archive.
type Result struct {
	Filename string
	Err      string
}

// Write streams a zip containing each named file from dir into w.
// It always returns one result per name. A file that cannot be read is
// recorded in its Result.Err and left out of the archive; the remaining files
// are still written. Cancelling ctx stops before the next file.
func Write(ctx context.Context, w io.Writer, dir string, names []string) ([]Result, error) {
	if len(names) == 0 {
		return nil, ErrNoFiles
	}

	zipWriter := zip.NewWriter(w)
	results := make([]Result, len(names))
	for i, name := range names {
		results[i] = Result{Filename: name}
		if err := ctx.Err(); err != nil {
			results[i].Err = err.Error()
			continue
		}
		if err := addFile(zipWriter, dir, name); err != nil {
			results[i].Err = err.Error()
			log.Warn().Str("file", name).Err(err).Msg("add file to archive failed")
		}
	}

	if err := zipWriter.Close(); err != nil {
		log.Error().Err(err).Msg("closing zip writer failed")
		return results, fmt.Errorf("close zip writer: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return results, fmt.Errorf("archive interrupted: %w", err)
	}
	return results, nil
}

// addFile copies one regular file into the archive under its base name.
func addFile(zipWriter *zip.Writer, dir, name string) error {
	path := filepath.Join(dir, filepath.Base(name))
	sourceFile, err := os.Open(path) //nolint:gosec // names come from a listing of dir
	if err != nil {
		return fmt.Errorf("open: %w", err)
	}
	defer func() { _ = sourceFile.Close() }()

	info, err := sourceFile.Stat()
	if err != nil {
		return fmt.Errorf("stat: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("not a regular file: %s", name)
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("zip header: %w", err)
	}
	header.Name = filepath.Base(name)
	header.Method = zip.Deflate

	zipEntryWriter, err := zipWriter.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("zip entry create: %w", err)
	}
	if _, err := io.Copy(zipEntryWriter, sourceFile); err != nil {
		return fmt.Errorf("copy into zip: %w", err)
	}
	return nil
}

// Filename derives the attachment name for an archive of dir.
func Filename(dir string) string {
	base := filepath.Base(filepath.Clean(dir))
	if base == "/" || base == "." || base == "" {
		return "logs.zip"
	}
	return base + ".zip"
}
