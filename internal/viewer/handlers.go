package viewer

import (
	"bytes"
	"errors"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/starfederation/datastar-go/datastar"

	"github.com/mophones/creditviz/internal/analysis"
	"github.com/mophones/creditviz/internal/chart"
	"github.com/mophones/creditviz/internal/state"
)

const recentRuns = 10

type handlers struct {
	chartsDir string
	store     state.Store
	notifier  *Notifier
	logger    *slog.Logger
}

// chartItem is one chart on the page.
type chartItem struct {
	Analysis string    `json:"analysis"`
	Title    string    `json:"title"`
	File     string    `json:"file"`
	URL      string    `json:"url"`
	Size     int64     `json:"size"`
	ModTime  time.Time `json:"mod_time"`
}

type pageData struct {
	Charts     []chartItem
	Runs       []*state.Run
	ChartsDir  string
	Generation uint64
}

var pageTemplate = template.Must(template.New("page").Funcs(template.FuncMap{
	"since": func(t time.Time) string { return time.Since(t).Round(time.Second).String() },
}).Parse(`<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>creditviz</title>
<script type="module" src="https://cdn.jsdelivr.net/gh/starfederation/datastar@1.0.0-RC.6/bundles/datastar.js"></script>
<style>
body { font-family: system-ui, sans-serif; margin: 2rem; color: #222; }
figure { margin: 0 0 2.5rem; }
figure img { max-width: 100%; border: 1px solid #ddd; }
figcaption { font-weight: 600; margin-bottom: .5rem; }
.empty { color: #777; }
table { border-collapse: collapse; font-size: .9rem; }
td, th { padding: .25rem .75rem; text-align: left; border-bottom: 1px solid #eee; }
</style>
</head>
<body data-init="@get('/updates')">
<h1>Credit analytics charts</h1>
<p class="empty">Charts from {{.ChartsDir}}</p>
{{template "gallery" .}}
{{if .Runs}}
<h2>Recent runs</h2>
<table>
<tr><th>Run</th><th>Status</th><th>Started</th><th>Missing datasets</th></tr>
{{range .Runs}}<tr><td>{{.ID}}</td><td>{{.Status}}</td><td>{{since .StartedAt}} ago</td><td>{{len .Missing}}</td></tr>
{{end}}</table>
{{end}}
</body>
</html>
{{define "gallery"}}<div id="gallery">
{{range .Charts}}<figure id="chart-{{.Analysis}}">
<figcaption>{{.Title}}</figcaption>
<img src="{{.URL}}?v={{$.Generation}}" alt="{{.Title}}">
</figure>
{{else}}<p class="empty">No charts yet. Run <code>creditviz analyze</code>.</p>
{{end}}</div>{{end}}`))

// listCharts returns the charts present in dir in analysis order.
func listCharts(dir string) ([]chartItem, error) {
	titles := make(map[string]string)
	for _, a := range analysis.All() {
		titles[a.Name()] = a.Title()
	}

	var items []chartItem
	for _, layout := range chart.Layouts {
		info, err := os.Stat(filepath.Join(dir, layout.File))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		items = append(items, chartItem{
			Analysis: layout.Analysis,
			Title:    titles[layout.Analysis],
			File:     layout.File,
			URL:      "/charts/" + layout.File,
			Size:     info.Size(),
			ModTime:  info.ModTime(),
		})
	}
	return items, nil
}

func (h *handlers) pageData(r *http.Request) (pageData, error) {
	charts, err := listCharts(h.chartsDir)
	if err != nil {
		return pageData{}, err
	}
	data := pageData{Charts: charts, ChartsDir: h.chartsDir, Generation: h.notifier.Generation()}

	if h.store != nil {
		runs, err := h.store.ListRuns(r.Context(), recentRuns)
		if err != nil {
			return pageData{}, err
		}
		data.Runs = runs
	}
	return data, nil
}

// index renders the full page.
func (h *handlers) index(w http.ResponseWriter, r *http.Request) {
	data, err := h.pageData(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// chartFile serves one PNG. Only known chart names are served.
func (h *handlers) chartFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !slices.Contains(chart.Files(), name) {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	http.ServeFile(w, r, filepath.Join(h.chartsDir, name))
}

// updates is the long-lived SSE endpoint. The page is rendered in full by
// index, so nothing is sent until a chart changes.
func (h *handlers) updates(w http.ResponseWriter, r *http.Request) {
	sse := datastar.NewSSE(w, r)

	updates := h.notifier.Subscribe()
	defer h.notifier.Unsubscribe(updates)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case gen, ok := <-updates:
			if !ok {
				return
			}
			if err := h.sendGallery(r, sse, gen); err != nil {
				h.logger.Debug("failed to push gallery", "error", err)
				_ = sse.ConsoleError(err)
			}
		}
	}
}

func (h *handlers) sendGallery(r *http.Request, sse *datastar.ServerSentEventGenerator, gen uint64) error {
	data, err := h.pageData(r)
	if err != nil {
		return err
	}
	data.Generation = gen

	var buf bytes.Buffer
	if err := pageTemplate.ExecuteTemplate(&buf, "gallery", data); err != nil {
		return err
	}
	return sse.PatchElements(buf.String())
}

// chartList returns the available charts as JSON.
func (h *handlers) chartList(w http.ResponseWriter, r *http.Request) {
	charts, err := listCharts(h.chartsDir)
	if err != nil {
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]string{"error": err.Error()})
		return
	}
	if charts == nil {
		charts = []chartItem{}
	}
	render.JSON(w, r, charts)
}

// runList returns recent runs as JSON.
func (h *handlers) runList(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		render.JSON(w, r, []*state.Run{})
		return
	}

	limit := recentRuns
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}

	runs, err := h.store.ListRuns(r.Context(), limit)
	if err != nil {
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]string{"error": err.Error()})
		return
	}
	if runs == nil {
		runs = []*state.Run{}
	}
	render.JSON(w, r, runs)
}
