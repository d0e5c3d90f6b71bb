package api

import (
	"html/template"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"logsim/internal/batch"
)

var uiTemplates = template.Must(template.New("layout").Parse(`{{define "layout"}}
<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8"/>
  <meta name="viewport" content="width=device-width, initial-scale=1"/>
  {{if .Running}}<meta http-equiv="refresh" content="2"/>{{end}}
  <title>Log Simulator{{if .Title}} · {{.Title}}{{end}}</title>
  <style>
    body{font-family:system-ui,-apple-system,Segoe UI,Roboto,Ubuntu,Cantarell,Noto Sans,sans-serif;max-width:960px;margin:32px auto;padding:0 16px;color:#0b0b0b;background:#fafafa}
    header{margin-bottom:24px}
    h1{font-size:22px;margin:0 0 8px}
    a{color:#0b63e5;text-decoration:none}
    a:hover{text-decoration:underline}
    .card{background:#fff;border:1px solid #e9e9e9;border-radius:10px;padding:16px;margin:12px 0}
    .row{display:flex;gap:12px;flex-wrap:wrap;align-items:center}
    .btn{display:inline-block;background:#0b63e5;color:#fff;border:none;padding:8px 12px;border-radius:8px;cursor:pointer}
    .btn.secondary{background:#444}
    .btn.danger{background:#b3261e}
    input[type=text],input[type=number],select{padding:8px 10px;border:1px solid #dcdcdc;border-radius:8px}
    .muted{color:#666}
    .mono{font-family:ui-monospace,SFMono-Regular,Menlo,Monaco,Consolas,monospace}
    .grid{display:grid;grid-template-columns:repeat(3,1fr);gap:12px}
    table{border-collapse:collapse;width:100%}
    td,th{text-align:left;padding:4px 8px;border-bottom:1px solid #efefef}
    pre{white-space:pre-wrap;background:#f4f4f4;padding:12px;border-radius:8px;max-height:70vh;overflow:auto}
    .status{display:inline-block;padding:4px 8px;border-radius:6px;background:#efefef;font-size:12px}
    footer{margin-top:24px;color:#666;font-size:12px}
  </style>
</head>
<body>
  <header>
    <h1><a href="/">Log Simulator</a></h1>
    <div class="muted">Generate synthetic log files and browse the results</div>
  </header>
  {{if .Error}}
  <div class="card" style="border-color:#f2b8b5;background:#fff6f6">
    <strong style="color:#b3261e">Error:</strong> <span class="muted">{{.Error}}</span>
  </div>
  {{end}}
  {{if .Preview}}{{template "preview" .}}{{else}}{{template "home" .}}{{end}}
  <footer>
    <div>JSON API: <span class="mono">/api/status</span>, live updates: <span class="mono">/api/ws/status</span>, metrics: <span class="mono">/metrics</span></div>
  </footer>
</body>
</html>
{{end}}

{{define "home"}}
  <div class="card">
    <h2>Status</h2>
    {{with .Status}}
    <div class="row">
      <span class="status">{{if $.Running}}running{{else if .EndedAt}}finished{{else}}idle{{end}}</span>
      {{if .JobID}}<span class="mono muted">{{.JobID}}</span>{{end}}
    </div>
    <div class="grid" style="margin-top:12px">
      <div>Requested: <strong>{{.TotalRequested}}</strong></div>
      <div>Created: <strong>{{.Created}}</strong></div>
      <div>In progress: <strong>{{.InProgress}}</strong></div>
      <div>Total ms: {{.Aggregates.TotalMS}}</div>
      <div>Avg ms: {{.Aggregates.AvgMS}}</div>
      <div>Min/Max ms: {{.Aggregates.MinMS}} / {{.Aggregates.MaxMS}}</div>
    </div>
    {{if .Files}}
    <table style="margin-top:12px">
      <tr><th>Recent file</th><th>ms</th></tr>
      {{range .Files}}<tr><td class="mono">{{.Filename}}</td><td>{{.DurationMS}}</td></tr>{{end}}
    </table>
    {{end}}
    {{end}}
  </div>

  <div class="card">
    <h2>Generate</h2>
    <form method="post" action="/ui/generate">
      <div class="grid">
        <label>Files<br/><input type="number" name="num_files" value="{{.Defaults.NumFiles}}" min="0"/></label>
        <label>Lines per file<br/><input type="number" name="lines_per_file" value="{{.Defaults.LinesPerFile}}" min="1"/></label>
        <label>Concurrency<br/><input type="number" name="concurrency" value="{{.Defaults.Concurrency}}" min="1"/></label>
      </div>
      <div style="margin-top:12px"><button class="btn" type="submit">Start</button></div>
    </form>
  </div>

  <div class="card">
    <h2>Files</h2>
    <form method="post" action="/ui/view_dir" class="row">
      <select name="dir">
        {{range .Dirs}}<option value="{{.}}"{{if eq . $.Dir}} selected{{end}}>{{.}}</option>{{end}}
      </select>
      <button class="btn secondary" type="submit">Open</button>
    </form>
    <form method="get" action="/" class="row" style="margin-top:12px">
      <input type="text" name="q" value="{{.Query}}" placeholder="Search by name"/>
      <button class="btn secondary" type="submit">Search</button>
      <a class="btn" href="/api/download_all">Download all (zip)</a>
    </form>
    <div class="muted" style="margin-top:8px">Directory: <span class="mono">{{.Dir}}</span></div>
    {{if .Files}}
    <table style="margin-top:12px">
      {{range .Files}}
      <tr>
        <td class="mono"><a href="/ui/files/{{.}}">{{.}}</a></td>
        <td><a href="/download/{{.}}">download</a></td>
        <td>
          <form method="post" action="/ui/delete">
            <input type="hidden" name="filename" value="{{.}}"/>
            <button class="btn danger" type="submit">Delete</button>
          </form>
        </td>
      </tr>
      {{end}}
    </table>
    {{else}}
    <div class="muted" style="margin-top:12px">No files</div>
    {{end}}
  </div>
{{end}}

{{define "preview"}}
  <div class="card">
    <h2 class="mono">{{.Preview.Filename}}</h2>
    <div class="row">
      <a class="btn" href="/download/{{.Preview.Filename}}">Download</a>
      <a class="btn secondary" href="/">Back</a>
    </div>
    <pre class="mono">{{.Preview.Content}}</pre>
  </div>
{{end}}
`))

// RegisterUIRoutes registers minimal HTML UI without JS
func (a *API) RegisterUIRoutes(router *gin.Engine) {
	router.SetHTMLTemplate(uiTemplates)
	router.GET("/", a.UIHome)
	router.POST("/ui/generate", a.UIGenerate)
	router.POST("/ui/view_dir", a.UIViewDir)
	router.POST("/ui/delete", a.UIDelete)
	router.GET("/ui/files/*filename", a.UIFile)
}

// UIHome renders status, the generate form and the file list
func (a *API) UIHome(c *gin.Context) {
	a.renderHome(c, http.StatusOK, "")
}

// UIGenerate launches a batch from the form and redirects home
func (a *API) UIGenerate(c *gin.Context) {
	params := map[string]any{}
	for _, name := range []string{batch.ParamNumFiles, batch.ParamLinesPerFile, batch.ParamConcurrency} {
		if v := strings.TrimSpace(c.PostForm(name)); v != "" {
			params[name] = v
		}
	}
	if _, err := a.launcher.Launch(params); err != nil {
		log.Warn().Err(err).Msg("invalid generate form")
		a.renderHome(c, http.StatusBadRequest, batch.ErrInvalidParameters.Error())
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// UIViewDir switches the view directory and redirects home
func (a *API) UIViewDir(c *gin.Context) {
	if _, err := a.browser.SetViewDir(c.PostForm("dir")); err != nil {
		a.renderHome(c, http.StatusBadRequest, err.Error())
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// UIDelete removes a file and redirects home
func (a *API) UIDelete(c *gin.Context) {
	if err := a.browser.Delete(c.PostForm("filename")); err != nil {
		a.renderHome(c, fileErrorStatus(err), err.Error())
		return
	}
	c.Redirect(http.StatusSeeOther, "/")
}

// UIFile renders a file preview page
func (a *API) UIFile(c *gin.Context) {
	filename := strings.TrimPrefix(c.Param("filename"), "/")
	preview, err := a.browser.Content(filename)
	if err != nil {
		a.renderHome(c, fileErrorStatus(err), err.Error())
		return
	}
	c.HTML(http.StatusOK, "layout", gin.H{"Title": preview.Filename, "Preview": preview})
}

func (a *API) renderHome(c *gin.Context, status int, errMsg string) {
	st := a.store.Status(a.opts.RecentFiles)
	query := strings.TrimSpace(c.Query("q"))
	files, dir := a.browser.ListFiles()
	if query != "" {
		files = a.browser.Search(query)
	}
	c.HTML(status, "layout", gin.H{
		"Error":    errMsg,
		"Status":   newStatusResponse(st),
		"Running":  st.StartedAt != nil && !st.Done(),
		"Defaults": a.launcher.Defaults(),
		"Dirs":     a.browser.ListDirs(),
		"Dir":      dir,
		"Query":    query,
		"Files":    files,
	})
}
