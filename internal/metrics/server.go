package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// http server that exposes prometheus metrics while the session runs
type Server struct {
	server *http.Server
	ln      net.Listener
	done    chan struct{}
	started bool
}

// binds the metrics port and builds the handlers. port 0 picks a free port
func NewServer(port int, gatherer prometheus.Gatherer) (*Server, error) {
	// create new http mux (router) for metrics server. avoids conflicts with any other http servers that might be running
	mux := http.NewServeMux()

	// register /metrics endpoint
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	// add health check endpoint for metrics server
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// add a root endpoint with helpful information
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<!DOCTYPE html>
<html>
<head>
	<title>lineclient metrics</title>
</head>
<body>
	<h1>lineclient metrics</h1>
	<ul>
		<li><a href="/metrics">Metrics Endpoint</a> - Prometheus metrics in text format</li>
		<li><a href="/health">Health Check</a> - Process health status</li>
	</ul>
</body>
</html>
`)
	})

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("failed to bind metrics port %d: %w", port, err)
	}

	return &Server{
		// create http server with reasonable timeouts
		server: &http.Server{
			Handler:      mux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		ln:   ln,
		done: make(chan struct{}),
	}, nil
}

// returns the bound address, useful when port 0 was requested
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// serves in the background until Shutdown
func (s *Server) Start() {
	s.started = true
	slog.Info("Metrics server ready",
		"metrics_url", fmt.Sprintf("http://%s/metrics", s.Addr()),
		"health_url", fmt.Sprintf("http://%s/health", s.Addr()),
	)

	go func() {
		defer close(s.done)

		err := s.server.Serve(s.ln)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server failed",
				"error", err,
				"addr", s.Addr(),
			)
		}
	}()
}

// stops the server and waits for the serve goroutine to exit
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.started {
		return s.ln.Close()
	}

	err := s.server.Shutdown(ctx)
	<-s.done
	return err
}
