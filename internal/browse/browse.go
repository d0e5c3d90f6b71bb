package browse

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	fileutil "logsim/internal/file"
)

// DefaultPreviewChars caps how many characters Content returns.
const DefaultPreviewChars = 20000

var (
	ErrMissingFilename = errors.New("missing filename")
	ErrPathTraversal   = errors.New("invalid path")
	ErrNotFound        = errors.New("not found")
	ErrNotDirectory    = errors.New("not a directory")
	ErrOutsideRoot     = errors.New("dir must be under the output directory")
)

// Preview is the leading part of a file's text.
type Preview struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// Browser tracks the view directory and serves file operations inside it.
// The view directory always stays within root.
type Browser struct {
	mu           sync.RWMutex
	root         string
	view         string
	workDir      string
	previewChars int
}

// New creates a browser rooted at root with the view set to root itself.
// Paths in results are rendered relative to the current working directory.
func New(root string, previewChars int) (*Browser, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getwd: %w", err)
	}
	return NewWithWorkDir(root, wd, previewChars)
}

// NewWithWorkDir is New with an explicit working directory used to resolve
// relative view paths and to render results.
func NewWithWorkDir(root, workDir string, previewChars int) (*Browser, error) {
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("abs root: %w", err)
	}
	wdAbs, err := filepath.Abs(workDir)
	if err != nil {
		return nil, fmt.Errorf("abs workdir: %w", err)
	}
	if previewChars <= 0 {
		previewChars = DefaultPreviewChars
	}
	return &Browser{root: rootAbs, view: rootAbs, workDir: wdAbs, previewChars: previewChars}, nil
}

// Root returns the absolute output directory.
func (b *Browser) Root() string { return b.root }

// ViewDir returns the absolute view directory.
func (b *Browser) ViewDir() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.view
}

// ListDirs returns root and its immediate subdirectories, relative to the
// working directory.
func (b *Browser) ListDirs() []string {
	dirs := []string{b.rel(b.root)}
	entries, err := os.ReadDir(b.root)
	if err != nil {
		log.Warn().Err(err).Str("dir", b.root).Msg("list dirs failed")
		return dirs
	}
	for _, e := range entries {
		if isDir(filepath.Join(b.root, e.Name())) {
			dirs = append(dirs, b.rel(filepath.Join(b.root, e.Name())))
		}
	}
	return dirs
}

// SetViewDir points the browser at dir, which must be an existing directory
// inside root. Relative paths are taken from the working directory. On error
// the view directory is left unchanged.
func (b *Browser) SetViewDir(dir string) (string, error) {
	if dir == "" {
		dir = b.root
	}
	candidate := dir
	if !filepath.IsAbs(candidate) {
		candidate = filepath.Join(b.workDir, candidate)
	}
	candidate = filepath.Clean(candidate)
	if !fileutil.IsWithin(b.root, candidate) {
		return "", ErrOutsideRoot
	}
	if !isDir(candidate) {
		return "", ErrNotDirectory
	}

	b.mu.Lock()
	b.view = candidate
	b.mu.Unlock()
	return b.rel(candidate), nil
}

// ListFiles returns the sorted names of regular files in the view directory and
// the view directory relative to the working directory.
func (b *Browser) ListFiles() ([]string, string) {
	view := b.ViewDir()
	return b.files(view), b.rel(view)
}

// Files returns the absolute view directory and the regular files inside it.
func (b *Browser) Files() (string, []string) {
	view := b.ViewDir()
	return view, b.files(view)
}

// Search returns files in the view directory whose names contain q, ignoring
// case. A blank query matches nothing.
func (b *Browser) Search(q string) []string {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return []string{}
	}
	matches := []string{}
	for _, name := range b.files(b.ViewDir()) {
		if strings.Contains(strings.ToLower(name), q) {
			matches = append(matches, name)
		}
	}
	return matches
}

// Resolve returns the absolute path of an existing regular file in the view directory.
func (b *Browser) Resolve(name string) (string, error) {
	if name == "" {
		return "", ErrMissingFilename
	}
	path, err := fileutil.ResolveWithin(b.ViewDir(), name)
	if err != nil {
		if errors.Is(err, fileutil.ErrOutsideBase) {
			return "", ErrPathTraversal
		}
		return "", fmt.Errorf("resolve %s: %w", name, err)
	}
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", ErrNotFound
	}
	return path, nil
}

// Content returns up to the preview limit of characters from name. Invalid
// UTF-8 bytes come back as U+FFFD.
func (b *Browser) Content(name string) (Preview, error) {
	path, err := b.Resolve(name)
	if err != nil {
		return Preview{}, err
	}
	f, err := os.Open(path) //nolint:gosec // path checked by Resolve
	if err != nil {
		return Preview{}, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	content, err := readChars(bufio.NewReader(f), b.previewChars)
	if err != nil {
		return Preview{}, fmt.Errorf("read %s: %w", name, err)
	}
	return Preview{Filename: name, Content: content}, nil
}

// Delete removes name from the view directory.
func (b *Browser) Delete(name string) error {
	path, err := b.Resolve(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return fmt.Errorf("delete %s: %w", name, err)
	}
	log.Info().Str("path", path).Msg("file deleted")
	return nil
}

func (b *Browser) files(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Warn().Err(err).Str("dir", dir).Msg("list files failed")
		return []string{}
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		info, err := os.Stat(filepath.Join(dir, e.Name()))
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func (b *Browser) rel(path string) string {
	r, err := filepath.Rel(b.workDir, path)
	if err != nil {
		return path
	}
	return r
}

func readChars(r *bufio.Reader, limit int) (string, error) {
	var sb strings.Builder
	for n := 0; n < limit; n++ {
		ch, _, err := r.ReadRune()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		sb.WriteRune(ch)
	}
	return sb.String(), nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
