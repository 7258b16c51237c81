// File: server/handlers.go
package server

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"runtime/debug"

	"github.com/lguibr/clinic/clinic"
	"github.com/lguibr/clinic/monitoring"
	"go.uber.org/zap"
	"golang.org/x/net/websocket"
)

// HandleSubscribe registers the connection as a feed subscriber and keeps it
// open until the client goes away.
func (s *Server) HandleSubscribe() func(ws *websocket.Conn) {
	return func(ws *websocket.Conn) {
		remote := ws.Request().RemoteAddr
		logger := s.logger.With(zap.String("remote", remote))
		logger.Info("subscriber connected")

		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic in subscribe handler", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			}
			s.CloseConnection(ws)
			logger.Info("subscriber disconnected")
		}()

		sub := s.openConnection(ws)
		go func() {
			if err := sub.writeLoop(); err != nil {
				logger.Debug("write loop stopped", zap.Error(err))
			}
		}()

		s.readLoop(ws, logger)
	}
}

// readLoop drains client frames until the connection closes. The feed is
// one-way, so anything the client sends is discarded.
func (s *Server) readLoop(ws *websocket.Conn, logger *zap.Logger) {
	for {
		var discard string
		err := websocket.Message.Receive(ws, &discard)
		if err == nil {
			continue
		}
		var netErr net.Error
		switch {
		case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
		case errors.As(err, &netErr) && netErr.Timeout():
			logger.Warn("read timeout, assuming disconnect")
		default:
			logger.Debug("read error", zap.Error(err))
		}
		return
	}
}

// reportResponse is the /report payload. Report is absent while the run is in
// progress; Progress is absent without an observer.
type reportResponse struct {
	Report   *clinic.Report       `json:"report,omitempty"`
	Progress *monitoring.Snapshot `json:"progress,omitempty"`
	Error    string               `json:"error,omitempty"`
}

// HandleReport serves the live progress and, once the run finished, its report as JSON.
func (s *Server) HandleReport() func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic in report handler", zap.Any("panic", rec), zap.ByteString("stack", debug.Stack()))
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()

		if r.Method != http.MethodGet {
			http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
			return
		}

		resp := reportResponse{Report: s.Report()}
		if s.observer != nil {
			snapshot := s.observer.Snapshot()
			resp.Progress = &snapshot
		}
		status := http.StatusOK
		if resp.Report == nil {
			status = http.StatusServiceUnavailable
			resp.Error = "run in progress"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			s.logger.Warn("writing report", zap.Error(err))
		}
	}
}
