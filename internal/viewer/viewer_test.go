package viewer

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mophones/creditviz/internal/chart"
	"github.com/mophones/creditviz/internal/state"
	"github.com/mophones/creditviz/internal/testutil"
)

// tinyPNG is a valid 1x1 PNG.
var tinyPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

func writeChart(t *testing.T, dir, name string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), tinyPNG, 0o600))
}

func newTestServer(t *testing.T, dir string, store state.Store) *httptest.Server {
	t.Helper()
	s := NewServer(Config{ChartsDir: dir, Store: store, Logger: testutil.NewTestLogger(t)})
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url) //nolint:noctx
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestIndex(t *testing.T) {
	tests := []struct {
		name     string
		charts   []string
		wantBody []string
		notBody  []string
	}{
		{
			name:     "no charts",
			wantBody: []string{"<!doctype html>", "data-init", "/updates", `id="gallery"`, "No charts yet"},
		},
		{
			name:   "lists charts in analysis order",
			charts: []string{chart.FileRollRates, chart.FileNPS},
			wantBody: []string{
				"NPS by Account Status",
				"Roll Rates Between Account Statuses",
				"/charts/" + chart.FileNPS,
				"/charts/" + chart.FileRollRates,
			},
			notBody: []string{"No charts yet", chart.FilePortfolio},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			for _, c := range tt.charts {
				writeChart(t, dir, c)
			}
			ts := newTestServer(t, dir, nil)

			resp, body := get(t, ts.URL+"/")
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
			for _, want := range tt.wantBody {
				assert.Contains(t, body, want)
			}
			for _, not := range tt.notBody {
				assert.NotContains(t, body, not)
			}
			if len(tt.charts) == 2 {
				assert.Less(t, strings.Index(body, chart.FileNPS), strings.Index(body, chart.FileRollRates))
			}
		})
	}
}

func TestChartFile(t *testing.T) {
	dir := t.TempDir()
	writeChart(t, dir, chart.FileNPS)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "secret.png"), tinyPNG, 0o600))
	ts := newTestServer(t, dir, nil)

	tests := []struct {
		path   string
		status int
	}{
		{"/charts/" + chart.FileNPS, http.StatusOK},
		{"/charts/" + chart.FileSegments, http.StatusNotFound},
		{"/charts/secret.png", http.StatusNotFound},
		{"/charts/..%2Fstate.db", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, body := get(t, ts.URL+tt.path)
			assert.Equal(t, tt.status, resp.StatusCode)
			if tt.status == http.StatusOK {
				assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
				assert.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
				assert.Equal(t, string(tinyPNG), body)
			}
		})
	}
}

func TestChartListAPI(t *testing.T) {
	dir := t.TempDir()
	ts := newTestServer(t, dir, nil)

	_, body := get(t, ts.URL+"/api/charts")
	assert.JSONEq(t, "[]", body)

	writeChart(t, dir, chart.FileSegments)
	resp, body := get(t, ts.URL+"/api/charts")
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")

	var items []chartItem
	require.NoError(t, json.Unmarshal([]byte(body), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "segments", items[0].Analysis)
	assert.Equal(t, "/charts/"+chart.FileSegments, items[0].URL)
	assert.Equal(t, int64(len(tinyPNG)), items[0].Size)
}

func TestRunListAPI(t *testing.T) {
	store := state.NewSQLiteStore(nil)
	require.NoError(t, store.Open(state.MemoryPath))
	t.Cleanup(func() { _ = store.Close() })
	require.NoError(t, store.Migrate())

	ctx := context.Background()
	run, err := store.CreateRun(ctx, "outputs")
	require.NoError(t, err)
	require.NoError(t, store.CompleteRun(ctx, run.ID, state.RunStatusCompleted, []string{"roll_rates"}, nil, ""))

	ts := newTestServer(t, t.TempDir(), store)

	_, body := get(t, ts.URL+"/api/runs?limit=5")
	var runs []state.Run
	require.NoError(t, json.Unmarshal([]byte(body), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)
	assert.Equal(t, state.RunStatusCompleted, runs[0].Status)

	_, page := get(t, ts.URL+"/")
	assert.Contains(t, page, "Recent runs")
	assert.Contains(t, page, run.ID)
}

func TestRunListAPI_NoStore(t *testing.T) {
	ts := newTestServer(t, t.TempDir(), nil)
	_, body := get(t, ts.URL+"/api/runs")
	assert.JSONEq(t, "[]", body)
}

func TestUpdates_PushesGallery(t *testing.T) {
	dir := t.TempDir()
	s := NewServer(Config{ChartsDir: dir, Logger: testutil.NewTestLogger(t)})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/updates", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/event-stream")

	require.Eventually(t, func() bool { return s.Notifier().Listeners() == 1 }, 2*time.Second, 10*time.Millisecond)

	writeChart(t, dir, chart.FileNPS)
	s.Notifier().Broadcast()

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	var got strings.Builder
	deadline := time.After(2 * time.Second)
	for !strings.Contains(got.String(), chart.FileNPS+"?v=1") {
		select {
		case line, ok := <-lines:
			if !ok {
				t.Fatalf("stream closed early, got %q", got.String())
			}
			got.WriteString(line + "\n")
		case <-deadline:
			t.Fatalf("no gallery update, got %q", got.String())
		}
	}
	assert.Contains(t, got.String(), "datastar-patch-elements")
	assert.Contains(t, got.String(), `id="gallery"`)

}

func TestNotifier(t *testing.T) {
	n := NewNotifier()

	ch1 := n.Subscribe()
	ch2 := n.Subscribe()
	assert.Equal(t, 2, n.Listeners())

	assert.Equal(t, uint64(1), n.Broadcast())
	assert.Equal(t, uint64(2), n.Broadcast(), "an unread generation is replaced, not queued")

	assert.Equal(t, uint64(2), <-ch1)
	assert.Equal(t, uint64(2), <-ch2)
	select {
	case g := <-ch1:
		t.Fatalf("unexpected extra generation %d", g)
	default:
	}

	n.Unsubscribe(ch1)
	n.Unsubscribe(ch1) // second call is a no-op
	assert.Equal(t, 1, n.Listeners())
	_, open := <-ch1
	assert.False(t, open)

	n.Unsubscribe(ch2)
	assert.Equal(t, uint64(2), n.Generation())
}

func TestWatcher_BroadcastsOnChartChange(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	dir := filepath.Join(t.TempDir(), "charts")
	n := NewNotifier()
	w, err := newWatcher(dir, n, testutil.NewTestLogger(t))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.run(ctx) }()

	ch := n.Subscribe()
	defer n.Unsubscribe(ch)

	// non-chart files are ignored
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))
	writeChart(t, dir, chart.FileRollRates)
	writeChart(t, dir, chart.FileNPS)

	select {
	case gen := <-ch:
		assert.Equal(t, uint64(1), gen, "a burst of writes is debounced into one broadcast")
	case <-time.After(2 * time.Second):
		t.Fatal("no broadcast after chart change")
	}

	cancel()
	require.NoError(t, <-done)
}

func TestServe_LifecycleAndShutdown(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	dir := t.TempDir()
	writeChart(t, dir, chart.FileNPS)

	urls := make(chan string, 1)
	opened := make(chan string, 1)
	s := NewServer(Config{
		ChartsDir: dir,
		Port:      0,
		Watch:     true,
		AutoOpen:  true,
		Logger:    testutil.NewTestLogger(t),
		Ready:     func(url string) { urls <- url },
	})
	s.open = func(url string) { opened <- url }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	var url string
	select {
	case url = <-urls:
	case err := <-done:
		t.Fatalf("serve returned early: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("viewer did not start")
	}
	assert.Equal(t, url, <-opened)

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get(url + "/api/charts") //nolint:noctx
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(shutdownTimeout + time.Second):
		t.Fatal("viewer did not shut down")
	}
}

func TestServe_PortInUse(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()

	_, port, _ := strings.Cut(strings.TrimPrefix(ts.URL, "http://127.0.0.1"), ":")
	portNum, err := strconv.Atoi(port)
	require.NoError(t, err)
	s := NewServer(Config{ChartsDir: t.TempDir(), Port: portNum})
	err = s.Serve(context.Background())
	assert.ErrorContains(t, err, "failed to listen")
}

