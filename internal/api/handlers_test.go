package api

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"logsim/internal/batch"
	"logsim/internal/browse"
	"logsim/internal/metrics"
	"logsim/internal/progress"
)

type testEnv struct {
	router   *gin.Engine
	launcher *batch.Launcher
	store    *progress.Store
	outDir   string
}

func setupRouter(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	workDir := t.TempDir()
	outDir := filepath.Join(workDir, "out")
	require.NoError(t, os.MkdirAll(filepath.Join(outDir, "sub"), 0o750))

	reg := prometheus.NewRegistry()
	recorder, err := metrics.NewRecorder(reg)
	require.NoError(t, err)

	store := progress.NewStore()
	launcher := batch.NewLauncher(store, batch.Options{
		OutputDir:           outDir,
		DefaultLinesPerFile: 5,
		Observers:           []batch.Observer{recorder},
	})
	browser, err := browse.NewWithWorkDir(outDir, workDir, 0)
	require.NoError(t, err)

	testRouter := gin.New()
	apiHandler := NewAPI(launcher, store, browser, Options{
		StatusPushInterval: 20 * time.Millisecond,
		Metrics:            reg,
	})
	apiHandler.RegisterRoutes(testRouter)
	apiHandler.RegisterUIRoutes(testRouter)

	return &testEnv{router: testRouter, launcher: launcher, store: store, outDir: outDir}
}

func (e *testEnv) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) wait(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.True(t, e.launcher.WaitAll(ctx), "batch did not finish in time")
}

func (e *testEnv) writeFile(t *testing.T, rel, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(e.outDir, rel), []byte(content), 0o600))
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), "body: %s", w.Body.String())
	return v
}

func TestGenerateThenStatus(t *testing.T) {
	env := setupRouter(t)

	w := env.do(t, http.MethodPost, "/api/generate", `{"num_files":5,"lines_per_file":10,"concurrency":2}`)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[generateResponse](t, w)
	assert.Equal(t, generateResponse{Status: "started", NumFiles: 5, LinesPerFile: 10, Concurrency: 2}, resp)

	env.wait(t)

	w = env.do(t, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	st := decode[statusResponse](t, w)
	assert.NotEmpty(t, st.JobID)
	assert.Equal(t, 5, st.TotalRequested)
	assert.Equal(t, 5, st.Created)
	assert.Equal(t, 0, st.InProgress)
	assert.Len(t, st.Files, 5)
	require.NotNil(t, st.StartedAt)
	require.NotNil(t, st.EndedAt)
	_, err := time.Parse(time.RFC3339, *st.EndedAt)
	assert.NoError(t, err)
	assert.Equal(t, 5, st.Aggregates.FilesCount)

	entries, err := os.ReadDir(env.outDir)
	require.NoError(t, err)
	logs := 0
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".log") {
			logs++
		}
	}
	assert.Equal(t, 5, logs)
}

func TestStatusBeforeAnyJob(t *testing.T) {
	env := setupRouter(t)

	w := env.do(t, http.MethodGet, "/api/status", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"job_id":"","total_requested":0,"created":0,"in_progress":0,"files":[],
		"started_at":null,"ended_at":null,
		"aggregates":{"files_count":0,"total_ms":0,"avg_ms":0,"min_ms":0,"max_ms":0}}`, w.Body.String())
}

func TestGenerateInvalidParameters(t *testing.T) {
	env := setupRouter(t)

	bodies := map[string]string{
		"word":         `{"num_files":"abc"}`,
		"out of range": `{"num_files":1e400}`,
		"array body":   `[1,2]`,
		"number body":  `5`,
		"string body":  `"five"`,
	}
	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			w := env.do(t, http.MethodPost, "/api/generate", body)
			require.Equal(t, http.StatusBadRequest, w.Code)
			assert.JSONEq(t, `{"error":"invalid parameters"}`, w.Body.String())
		})
	}

	env.wait(t)
	st := env.store.Status(0)
	assert.Equal(t, 0, st.TotalRequested)
	assert.Empty(t, st.JobID)
	assert.Nil(t, st.StartedAt)
}

func TestGenerateEmptyOrNullBodyUsesDefaults(t *testing.T) {
	for _, body := range []string{"", "null", "{}"} {
		env := setupRouter(t)
		w := env.do(t, http.MethodPost, "/api/generate", body)
		require.Equal(t, http.StatusOK, w.Code, "body %q", body)
		assert.Equal(t, 1, decode[generateResponse](t, w).NumFiles)
		env.wait(t)
	}
}

func TestGenerateMalformedBodyUsesDefaults(t *testing.T) {
	env := setupRouter(t)

	w := env.do(t, http.MethodPost, "/api/generate", `not json`)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[generateResponse](t, w)
	assert.Equal(t, 1, resp.NumFiles)
	assert.Equal(t, 5, resp.LinesPerFile)
	assert.Equal(t, batch.DefaultConcurrency(), resp.Concurrency)

	env.wait(t)
	assert.Equal(t, 1, env.store.Status(0).Created)
}

func TestFileContentErrors(t *testing.T) {
	env := setupRouter(t)
	env.writeFile(t, "a.log", "hello")

	cases := []struct {
		name   string
		query  string
		status int
		errMsg string
	}{
		{"traversal", "../../etc/passwd", http.StatusBadRequest, "invalid path"},
		{"missing", "", http.StatusBadRequest, "missing filename"},
		{"not found", "nope.log", http.StatusNotFound, "not found"},
		{"directory", "sub", http.StatusNotFound, "not found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := env.do(t, http.MethodGet, "/api/file_content?filename="+url.QueryEscape(tc.query), "")
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.errMsg, decode[map[string]string](t, w)["error"])
		})
	}
}

func TestFileContentPreview(t *testing.T) {
	env := setupRouter(t)
	env.writeFile(t, "a.log", "line one\nline two\n")

	w := env.do(t, http.MethodGet, "/api/file_content?filename=a.log", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, browse.Preview{Filename: "a.log", Content: "line one\nline two\n"}, decode[browse.Preview](t, w))
}

func TestSearch(t *testing.T) {
	env := setupRouter(t)
	env.writeFile(t, "client_A.log", "")
	env.writeFile(t, "other.txt", "")

	w := env.do(t, http.MethodGet, "/api/search?q=", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"files":[]}`, w.Body.String())

	w = env.do(t, http.MethodGet, "/api/search?q=CLIENT", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"files":["client_A.log"]}`, w.Body.String())
}

func TestDirsAndViewDir(t *testing.T) {
	env := setupRouter(t)
	env.writeFile(t, "top.log", "")
	env.writeFile(t, filepath.Join("sub", "inner.log"), "")

	w := env.do(t, http.MethodGet, "/api/list_dirs", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"dirs":["out","out/sub"]}`, w.Body.String())

	w = env.do(t, http.MethodGet, "/api/list_files", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"files":["top.log"],"dir":"out"}`, w.Body.String())

	w = env.do(t, http.MethodPost, "/api/set_view_dir", `{"dir":"out/sub"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"dir":"out/sub"}`, w.Body.String())

	w = env.do(t, http.MethodGet, "/api/list_files", "")
	assert.JSONEq(t, `{"files":["inner.log"],"dir":"out/sub"}`, w.Body.String())

	w = env.do(t, http.MethodPost, "/api/set_view_dir", `{"dir":"/etc"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = env.do(t, http.MethodPost, "/api/set_view_dir", `{"dir":"out/missing"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "not a directory", decode[map[string]string](t, w)["error"])

	w = env.do(t, http.MethodGet, "/api/list_files", "")
	assert.JSONEq(t, `{"files":["inner.log"],"dir":"out/sub"}`, w.Body.String())
}

func TestDeleteFile(t *testing.T) {
	env := setupRouter(t)
	env.writeFile(t, "gone.log", "x")

	w := env.do(t, http.MethodPost, "/api/delete_file", `{"filename":"gone.log"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"deleted":"gone.log"}`, w.Body.String())
	assert.NoFileExists(t, filepath.Join(env.outDir, "gone.log"))

	w = env.do(t, http.MethodPost, "/api/delete_file", `{"filename":"gone.log"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPost, "/api/delete_file", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/delete_file", `{"filename":"../outside.log"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDownload(t *testing.T) {
	env := setupRouter(t)
	env.writeFile(t, "d.log", "payload")

	w := env.do(t, http.MethodGet, "/download/d.log", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "payload", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "d.log")

	w = env.do(t, http.MethodGet, "/download/missing.log", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodGet, "/download/../../etc/passwd", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDownloadAll(t *testing.T) {
	env := setupRouter(t)

	w := env.do(t, http.MethodGet, "/api/download_all", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	env.writeFile(t, "one.log", "1")
	env.writeFile(t, "two.log", "22")

	w = env.do(t, http.MethodGet, "/api/download_all", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/zip", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "out.zip")

	zr, err := zip.NewReader(bytes.NewReader(w.Body.Bytes()), int64(w.Body.Len()))
	require.NoError(t, err)
	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.ElementsMatch(t, []string{"one.log", "two.log"}, names)
}

func TestHealthAndMetrics(t *testing.T) {
	env := setupRouter(t)

	w := env.do(t, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	env.do(t, http.MethodPost, "/api/generate", `{"num_files":2,"lines_per_file":1,"concurrency":1}`)
	env.wait(t)

	w = env.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `logsim_files_generated_total{result="ok"} 2`)
	assert.Contains(t, w.Body.String(), "logsim_batches_finished_total 1")
}

func TestStatusStream(t *testing.T) {
	env := setupRouter(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/api/ws/status", nil)
	require.NoError(t, err)
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var first statusResponse
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, 0, first.TotalRequested)

	env.do(t, http.MethodPost, "/api/generate", `{"num_files":3,"lines_per_file":1,"concurrency":3}`)
	env.wait(t)

	deadline := time.Now().Add(5 * time.Second)
	for {
		_ = conn.SetReadDeadline(deadline)
		var st statusResponse
		require.NoError(t, conn.ReadJSON(&st))
		if st.EndedAt != nil {
			assert.Equal(t, 3, st.Created)
			assert.Equal(t, 3, st.TotalRequested)
			return
		}
	}
}

func TestUIPages(t *testing.T) {
	env := setupRouter(t)
	env.writeFile(t, "page.log", "<b>escaped</b>")

	w := env.do(t, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Log Simulator")
	assert.Contains(t, w.Body.String(), "page.log")

	w = env.do(t, http.MethodGet, "/ui/files/page.log", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "&lt;b&gt;escaped&lt;/b&gt;")

	w = env.do(t, http.MethodGet, "/ui/files/nope.log", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUIShowsFinishedJob(t *testing.T) {
	env := setupRouter(t)

	w := env.do(t, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `<span class="status">idle</span>`)

	env.do(t, http.MethodPost, "/api/generate", `{"num_files":2,"lines_per_file":1}`)
	env.wait(t)

	w = env.do(t, http.MethodGet, "/", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `<span class="status">finished</span>`)
	assert.NotContains(t, w.Body.String(), `http-equiv="refresh"`)
}

func TestUIGenerateForm(t *testing.T) {
	env := setupRouter(t)

	post := func(form url.Values) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/ui/generate", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		w := httptest.NewRecorder()
		env.router.ServeHTTP(w, req)
		return w
	}

	w := post(url.Values{"num_files": {"2"}, "lines_per_file": {"3"}, "concurrency": {"1"}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/", w.Header().Get("Location"))
	env.wait(t)
	assert.Equal(t, 2, env.store.Status(0).Created)

	w = post(url.Values{"num_files": {"many"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid parameters")
}

func TestFileErrorStatus(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, fileErrorStatus(browse.ErrNotFound))
	assert.Equal(t, http.StatusBadRequest, fileErrorStatus(browse.ErrPathTraversal))
	assert.Equal(t, http.StatusBadRequest, fileErrorStatus(browse.ErrOutsideRoot))
	assert.Equal(t, http.StatusInternalServerError, fileErrorStatus(os.ErrPermission))
}
