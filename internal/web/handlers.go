package web

import (
	"context"
	"net/http"
	"time"

	"github.com/JonMunkholm/csvingest/internal/core"
	"github.com/JonMunkholm/csvingest/internal/logging"
)

const healthPingTimeout = 2 * time.Second

type healthResponse struct {
	Status   string                    `json:"status"`
	Database string                    `json:"database"`
	Queue    *core.QueueStatus         `json:"queue,omitempty"`
	Uploads  *core.UploadLimiterStatus `json:"uploads,omitempty"`
}

// handleHealth reports store reachability plus queue and admission load.
// It answers 503 when the store is down or the queue no longer accepts jobs.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Database: "ok"}
	status := http.StatusOK

	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
		err := s.db.Ping(ctx)
		cancel()
		if err != nil {
			logging.FromContext(r.Context()).Warn("health: database ping failed", "error", err)
			resp.Database = "unreachable"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
	}

	if s.queue != nil {
		qs := s.queue.Status()
		resp.Queue = &qs
		if qs.Closed {
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
	}

	if s.limiter != nil {
		ls := s.limiter.Status()
		resp.Uploads = &ls
	}

	writeJSON(w, status, resp)
}
