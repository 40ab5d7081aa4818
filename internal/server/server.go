package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/jpalmerr/pulsewatch/internal/stats"
	"github.com/jpalmerr/pulsewatch/internal/store"
)

const (
	// sseWriteTimeout is the maximum time allowed for a single SSE write operation.
	// This prevents goroutine leaks when clients are slow or disconnected.
	// Must be <= shutdown timeout to ensure clean shutdown.
	sseWriteTimeout = 5 * time.Second

	// shutdownTimeout bounds graceful shutdown of in-flight requests.
	shutdownTimeout = 5 * time.Second
)

// AvailabilitySource is the read side of the availability aggregator.
type AvailabilitySource interface {
	Snapshot() map[string]stats.DomainStats
	Subscribe() <-chan stats.CycleSummary
	Unsubscribe(ch <-chan stats.CycleSummary)
}

// EndpointLister supplies the latest result of every active endpoint.
type EndpointLister interface {
	All() []store.EndpointStatus
}

// Server handles HTTP requests for metrics and the availability API.
//
// The server is designed for graceful shutdown via context cancellation.
type Server struct {
	source     AvailabilitySource
	endpoints  EndpointLister
	metrics    http.Handler
	port       int
	httpServer *http.Server
	listener   net.Listener
	logger     *slog.Logger
}

// NewServer creates a new HTTP [Server].
//
// Parameters:
//   - source: aggregator backing /api/availability and /api/sse
//   - metrics: handler mounted at /metrics (omitted when nil)
//   - port: TCP port to listen on; 0 picks a free port
//   - logger: logger for server events
//
// The server is not started until [Server.Start] is called.
func NewServer(source AvailabilitySource, metrics http.Handler, port int, logger *slog.Logger) *Server {
	return &Server{
		source:  source,
		metrics: metrics,
		port:    port,
		logger:  logger,
	}
}

// WithEndpoints mounts GET /api/endpoints backed by lister.
// It must be called before [Server.Start].
func (s *Server) WithEndpoints(lister EndpointLister) *Server {
	s.endpoints = lister
	return s
}

// Handler returns the router serving all routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.AllowAll().Handler)

	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	r.Get("/healthz", s.handleHealth)
	r.Get("/api/availability", s.handleAvailability)
	if s.endpoints != nil {
		r.Get("/api/endpoints", s.handleEndpoints)
	}
	r.Get("/api/sse", s.handleSSE)

	return r
}

// Start begins serving HTTP requests in a background goroutine.
//
// Start is non-blocking and returns immediately after confirming the server
// is listening. The server will continue running until the context is
// cancelled, at which point it initiates a graceful shutdown with a 5-second
// timeout.
//
// Returns an error if the server fails to bind to the configured port.
func (s *Server) Start(ctx context.Context) error {
	// create listener first to verify port availability synchronously
	addr := fmt.Sprintf(":%d", s.port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind to port %d: %w", s.port, err)
	}
	s.listener = ln

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// BaseContext derives all request contexts from the server context.
		// When ctx is cancelled, all request contexts are also cancelled,
		// enabling graceful shutdown of long-running handlers like SSE.
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server error", "error", err)
		}
	}()

	// shutdown on context cancellation
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("http server shutdown error", "error", err)
		}
	}()

	s.logger.Info("http server listening", "addr", ln.Addr().String())
	return nil
}

// Addr returns the bound listener address, or nil before [Server.Start].
func (s *Server) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleAvailability returns per-domain availability as JSON, sorted by domain.
func (s *Server) handleAvailability(w http.ResponseWriter, _ *http.Request) {
	reports := stats.Report(s.source.Snapshot())

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")

	if err := json.NewEncoder(w).Encode(reports); err != nil {
		s.logger.Error("failed to encode availability response", "error", err)
	}
}

// handleEndpoints returns the latest result of every endpoint, sorted by name.
func (s *Server) handleEndpoints(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")

	if err := json.NewEncoder(w).Encode(s.endpoints.All()); err != nil {
		s.logger.Error("failed to encode endpoints response", "error", err)
	}
}

// handleSSE streams cycle summaries via Server-Sent Events.
//
// The handler uses write deadlines to prevent goroutine leaks when clients are
// slow or disconnected. Without deadlines, a blocked Fprintf call would prevent
// the handler from detecting context cancellation or channel closure.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	// check if flushing is supported
	if _, ok := w.(http.Flusher); !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	rc := http.NewResponseController(w)

	// track if write deadlines are supported (may not be for some ResponseWriter impls)
	deadlinesSupported := true

	writeAndFlush := func(data []byte) error {
		if deadlinesSupported {
			if err := rc.SetWriteDeadline(time.Now().Add(sseWriteTimeout)); err != nil {
				s.logger.Debug("sse write deadlines not supported", "error", err)
				deadlinesSupported = false
			}
		}

		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			return err
		}

		return rc.Flush()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	ch := s.source.Subscribe()
	defer s.source.Unsubscribe(ch)

	// send the current availability so new clients render immediately
	initial, err := json.Marshal(stats.CycleSummary{Domains: stats.Report(s.source.Snapshot())})
	if err == nil {
		if err := writeAndFlush(initial); err != nil {
			return
		}
	}

	for {
		select {
		case summary, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(summary)
			if err != nil {
				continue
			}
			if err := writeAndFlush(data); err != nil {
				return
			}

		case <-r.Context().Done():
			// request context is derived from server context via BaseContext,
			// so this fires on both client disconnect AND server shutdown
			return
		}
	}
}
