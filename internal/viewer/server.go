// Package viewer serves the rendered charts on a local web page and pushes a
// refresh to connected pages whenever a chart file changes.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/mophones/creditviz/internal/state"
)

// DefaultPort is used when no port is configured.
const DefaultPort = 8766

const shutdownTimeout = 5 * time.Second

// Server is the chart viewer.
type Server struct {
	chartsDir string
	host      string
	port      int
	watch     bool
	autoOpen  bool
	store     state.Store
	logger    *slog.Logger
	notifier  *Notifier

	// ready receives the listening URL once the server accepts connections
	ready func(url string)
	// open launches a browser; replaced in tests
	open func(url string)
}

// Config holds configuration for the viewer.
type Config struct {
	ChartsDir string
	// Host defaults to 127.0.0.1
	Host string
	// Port zero picks a free port
	Port     int
	Watch    bool
	AutoOpen bool
	// Store is optional; when set the page lists recent runs
	Store  state.Store
	Logger *slog.Logger
	// Ready is called with the viewer URL once it is listening
	Ready func(url string)
}

// NewServer creates a new viewer instance.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	host := cfg.Host
	if host == "" {
		host = "127.0.0.1"
	}
	return &Server{
		chartsDir: cfg.ChartsDir,
		host:      host,
		port:      cfg.Port,
		watch:     cfg.Watch,
		autoOpen:  cfg.AutoOpen,
		store:     cfg.Store,
		logger:    logger,
		notifier:  NewNotifier(),
		ready:     cfg.Ready,
		open:      openBrowser,
	}
}

// Notifier returns the server's notifier for SSE updates.
func (s *Server) Notifier() *Notifier {
	return s.notifier
}

// Handler returns the viewer's HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.Recoverer,
		requestLogger(s.logger),
	)

	h := &handlers{chartsDir: s.chartsDir, store: s.store, notifier: s.notifier, logger: s.logger}
	r.Get("/", h.index)
	r.Get("/charts/{name}", h.chartFile)
	r.Get("/updates", h.updates)
	r.Route("/api", func(r chi.Router) {
		r.Get("/charts", h.chartList)
		r.Get("/runs", h.runList)
	})
	return r
}

// Serve starts the viewer and blocks until the context is cancelled, then
// shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", net.JoinHostPort(s.host, fmt.Sprint(s.port)))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	url := "http://" + ln.Addr().String()
	s.logger.Info("starting viewer", "url", url, "charts_dir", s.chartsDir)

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.watch {
		w, err := newWatcher(s.chartsDir, s.notifier, s.logger)
		if err != nil {
			_ = ln.Close()
			return err
		}
		eg.Go(func() error {
			return w.run(egctx)
		})
	}

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		s.logger.Debug("shutting down viewer")
		return srv.Shutdown(shutdownCtx)
	})

	if s.ready != nil {
		s.ready(url)
	}
	if s.autoOpen {
		s.open(url)
	}

	return eg.Wait()
}

// requestLogger logs each request at debug level.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration", time.Since(start))
		})
	}
}

// openBrowser opens the default browser to the specified URL.
func openBrowser(url string) {
	if os.Getenv("CREDITVIZ_NO_BROWSER") != "" {
		return
	}

	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url) //nolint:noctx
	case "linux":
		cmd = exec.Command("xdg-open", url) //nolint:noctx
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url) //nolint:noctx
	default:
		return
	}

	if err := cmd.Start(); err == nil {
		go func() { _ = cmd.Wait() }()
	}
}
