package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"logsim/internal/archive"
	"logsim/internal/batch"
	"logsim/internal/browse"
	"logsim/internal/progress"
)

const (
	defaultPushInterval = time.Second
	statusTimeLayout    = time.RFC3339
)

type generateResponse struct {
	Status       string `json:"status"`
	NumFiles     int    `json:"num_files"`
	LinesPerFile int    `json:"lines_per_file"`
	Concurrency  int    `json:"concurrency"`
}

type statusResponse struct {
	JobID          string              `json:"job_id"`
	TotalRequested int                 `json:"total_requested"`
	Created        int                 `json:"created"`
	InProgress     int                 `json:"in_progress"`
	Files          []progress.Record   `json:"files"`
	StartedAt      *string             `json:"started_at"`
	EndedAt        *string             `json:"ended_at"`
	Aggregates     progress.Aggregates `json:"aggregates"`
}

type setViewDirRequest struct {
	Dir string `json:"dir"`
}

type deleteFileRequest struct {
	Filename string `json:"filename"`
}

// Options tunes the API surface.
type Options struct {
	RecentFiles        int
	StatusPushInterval time.Duration
	// Metrics is served on /metrics when set.
	Metrics prometheus.Gatherer
}

type API struct {
	launcher *batch.Launcher
	store    *progress.Store
	browser  *browse.Browser
	opts     Options
}

func NewAPI(launcher *batch.Launcher, store *progress.Store, browser *browse.Browser, opts Options) *API {
	if opts.RecentFiles <= 0 {
		opts.RecentFiles = progress.DefaultRecent
	}
	if opts.StatusPushInterval <= 0 {
		opts.StatusPushInterval = defaultPushInterval
	}
	return &API{launcher: launcher, store: store, browser: browser, opts: opts}
}

// RegisterRoutes registers API routes on the provided gin engine
func (a *API) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", a.Health)
	router.GET("/download/*filename", a.Download)
	if a.opts.Metrics != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(a.opts.Metrics, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api")
	{
		api.POST("/generate", a.Generate)
		api.GET("/status", a.Status)
		api.GET("/ws/status", a.StreamStatus)
		api.GET("/list_dirs", a.ListDirs)
		api.POST("/set_view_dir", a.SetViewDir)
		api.GET("/list_files", a.ListFiles)
		api.GET("/search", a.Search)
		api.GET("/file_content", a.FileContent)
		api.POST("/delete_file", a.DeleteFile)
		api.GET("/download_all", a.DownloadAll)
	}
}

// Health reports liveness
func (a *API) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Generate launches a background batch. An empty body or one that is not JSON
// at all falls back to defaults. Well-formed JSON that is not an object, or
// holds a number out of range, is rejected like any other invalid parameter.
func (a *API) Generate(c *gin.Context) {
	var params map[string]any
	if err := c.ShouldBindJSON(&params); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			log.Warn().Err(err).Msg("invalid generate request")
			c.JSON(http.StatusBadRequest, gin.H{"error": batch.ErrInvalidParameters.Error()})
			return
		}
		log.Debug().Err(err).Msg("generate body not json, using defaults")
		params = nil
	}
	req, err := a.launcher.Launch(params)
	if err != nil {
		log.Warn().Err(err).Msg("invalid generate request")
		c.JSON(http.StatusBadRequest, gin.H{"error": batch.ErrInvalidParameters.Error()})
		return
	}
	c.JSON(http.StatusOK, generateResponse{
		Status:       "started",
		NumFiles:     req.NumFiles,
		LinesPerFile: req.LinesPerFile,
		Concurrency:  req.Concurrency,
	})
}

// Status returns the current job progress
func (a *API) Status(c *gin.Context) {
	c.JSON(http.StatusOK, a.statusResponse())
}

// ListDirs returns the output directory and its subdirectories
func (a *API) ListDirs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"dirs": a.browser.ListDirs()})
}

// SetViewDir switches the directory targeted by file operations
func (a *API) SetViewDir(c *gin.Context) {
	var req setViewDirRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		req = setViewDirRequest{}
	}
	dir, err := a.browser.SetViewDir(req.Dir)
	if err != nil {
		log.Warn().Str("dir", req.Dir).Err(err).Msg("set view dir rejected")
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	log.Info().Str("dir", dir).Msg("view dir changed")
	c.JSON(http.StatusOK, gin.H{"dir": dir})
}

// ListFiles returns the files of the view directory
func (a *API) ListFiles(c *gin.Context) {
	files, dir := a.browser.ListFiles()
	c.JSON(http.StatusOK, gin.H{"files": files, "dir": dir})
}

// Search filters view directory files by name
func (a *API) Search(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"files": a.browser.Search(c.Query("q"))})
}

// FileContent returns a text preview of one file
func (a *API) FileContent(c *gin.Context) {
	filename := c.Query("filename")
	preview, err := a.browser.Content(filename)
	if err != nil {
		a.fileError(c, filename, err)
		return
	}
	c.JSON(http.StatusOK, preview)
}

// DeleteFile removes one file from the view directory
func (a *API) DeleteFile(c *gin.Context) {
	var req deleteFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		req = deleteFileRequest{}
	}
	if err := a.browser.Delete(req.Filename); err != nil {
		a.fileError(c, req.Filename, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": req.Filename})
}

// Download serves one file as an attachment
func (a *API) Download(c *gin.Context) {
	filename := strings.TrimPrefix(c.Param("filename"), "/")
	path, err := a.browser.Resolve(filename)
	if err != nil {
		a.fileError(c, filename, err)
		return
	}
	log.Info().Str("path", path).Msg("serving file download")
	c.FileAttachment(path, lastSegment(filename))
}

// DownloadAll streams every file of the view directory as one zip
func (a *API) DownloadAll(c *gin.Context) {
	dir, names := a.browser.Files()
	if len(names) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no files"})
		return
	}
	c.Header("Content-Type", "application/zip")
	c.Header("Content-Disposition", `attachment; filename="`+archive.Filename(dir)+`"`)
	c.Status(http.StatusOK)

	results, err := archive.Write(c.Request.Context(), c.Writer, dir, names)
	if err != nil {
		log.Warn().Err(err).Str("dir", dir).Msg("archive download incomplete")
		return
	}
	failed := 0
	for _, r := range results {
		if r.Err != "" {
			failed++
		}
	}
	log.Info().Str("dir", dir).Int("files", len(results)).Int("failed", failed).Msg("archive download served")
}

func (a *API) fileError(c *gin.Context, filename string, err error) {
	status := fileErrorStatus(err)
	evt := log.Warn()
	if status >= http.StatusInternalServerError {
		evt = log.Error()
	}
	evt.Str("filename", filename).Err(err).Msg("file request failed")
	c.JSON(status, gin.H{"error": err.Error()})
}

func fileErrorStatus(err error) int {
	switch {
	case errors.Is(err, browse.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, browse.ErrMissingFilename),
		errors.Is(err, browse.ErrPathTraversal),
		errors.Is(err, browse.ErrOutsideRoot),
		errors.Is(err, browse.ErrNotDirectory):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) statusResponse() statusResponse {
	return newStatusResponse(a.store.Status(a.opts.RecentFiles))
}

func newStatusResponse(st progress.Status) statusResponse {
	return statusResponse{
		JobID:          st.JobID,
		TotalRequested: st.TotalRequested,
		Created:        st.Created,
		InProgress:     st.InProgress,
		Files:          st.Files,
		StartedAt:      formatTime(st.StartedAt),
		EndedAt:        formatTime(st.EndedAt),
		Aggregates:     st.Aggregates,
	}
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(statusTimeLayout)
	return &s
}

func lastSegment(name string) string {
	if i := strings.LastIndexAny(name, `/\`); i >= 0 {
		return name[i+1:]
	}
	return name
}
