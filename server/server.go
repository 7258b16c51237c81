// File: server/server.go
package server

import (
	"net/http"
	"sync"

	"github.com/lguibr/clinic/clinic"
	"github.com/lguibr/clinic/monitoring"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/net/websocket"
)

// Observer is told when feed subscribers come and go and reports the
// live progress served by /report.
type Observer interface {
	IncSubscribers()
	DecSubscribers()
	Snapshot() monitoring.Snapshot
}

// Server streams clinic events to websocket subscribers and serves the
// final report of the run.
type Server struct {
	mu       sync.RWMutex
	conns    map[*websocket.Conn]*subscriber
	report   *clinic.Report
	logger   *zap.Logger
	observer Observer
}

func NewServer(logger *zap.Logger, observer Observer) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		conns:    make(map[*websocket.Conn]*subscriber),
		logger:   logger.Named("server"),
		observer: observer,
	}
}

// Record implements clinic.Sink by broadcasting the event to every subscriber.
// A subscriber whose buffer is full misses the event.
func (s *Server) Record(ev clinic.Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for ws, sub := range s.conns {
		if !sub.offer(ev) {
			s.logger.Debug("subscriber buffer full, dropping event",
				zap.String("remote", ws.RemoteAddr().String()),
				zap.Uint64("seq", ev.Seq))
		}
	}
}

// SetReport publishes the report of a finished run.
func (s *Server) SetReport(report *clinic.Report) {
	s.mu.Lock()
	s.report = report
	s.mu.Unlock()
}

// Report returns the published report, or nil while the run is in progress.
func (s *Server) Report() *clinic.Report {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.report
}

// Subscribers returns the number of open feed connections.
func (s *Server) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conns)
}

// Routes mounts the feed, the report and, when gatherer is set, the
// Prometheus metrics endpoint.
func (s *Server) Routes(gatherer prometheus.Gatherer) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/subscribe", websocket.Handler(s.HandleSubscribe()))
	mux.HandleFunc("/report", s.HandleReport())
	if gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}
