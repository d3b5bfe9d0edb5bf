// Package http exposes the operator surface: alert queries and lifecycle
// actions, GPS and polling status, metrics, and a live alert stream.
package http

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"dispatch-monitor/sentinel/internal/alerting"
	"dispatch-monitor/sentinel/internal/domain"
	"dispatch-monitor/sentinel/internal/metrics"
	"dispatch-monitor/sentinel/internal/notify"
	"dispatch-monitor/sentinel/internal/poller"
)

type Server struct {
	alerts *alerting.Store
	poll   *poller.Poller
	bus    *notify.Bus
	log    *zap.SugaredLogger
}

func NewServer(alerts *alerting.Store, poll *poller.Poller, bus *notify.Bus, log *zap.SugaredLogger) *Server {
	return &Server{alerts: alerts, poll: poll, bus: bus, log: log}
}

// Routes registers all endpoints. Mutating alert actions sit behind the auth
// middleware; read endpoints are open.
func (s *Server) Routes(mux *http.ServeMux, authmw *AuthMiddleware, hub *Hub) {
	mux.HandleFunc("GET /api/alerts", s.handleListAlerts)
	mux.Handle("POST /api/alerts/{id}/acknowledge", authmw.Wrap(http.HandlerFunc(s.handleAcknowledge)))
	mux.Handle("POST /api/alerts/{id}/dismiss", authmw.Wrap(http.HandlerFunc(s.handleDismiss)))
	mux.HandleFunc("GET /api/gps/status", s.handleGpsStatus)
	mux.HandleFunc("GET /api/polling/status", s.handlePollingStatus)
	mux.HandleFunc("GET /metrics", metrics.HandleMetrics)
	mux.HandleFunc("GET /ws/alerts", hub.HandleWS)
}

func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	var severity domain.Severity
	if raw := r.URL.Query().Get("severity"); raw != "" {
		severity = domain.Severity(strings.ToUpper(raw))
		if severity.Rank() == 0 {
			writeError(w, http.StatusBadRequest, "unknown severity: "+raw)
			return
		}
	}

	alerts, stats := s.alerts.List(severity)
	if alerts == nil {
		alerts = []domain.Alert{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": alerts,
		"stats":  stats,
	})
}

type actionRequest struct {
	By string `json:"by"`
}

func (s *Server) handleAcknowledge(w http.ResponseWriter, r *http.Request) {
	s.handleAction(w, r, notify.AlertAcknowledged, s.alerts.Acknowledge)
}

func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	s.handleAction(w, r, notify.AlertDismissed, s.alerts.Dismiss)
}

func (s *Server) handleAction(
	w http.ResponseWriter,
	r *http.Request,
	event notify.EventType,
	action func(alertID, by string) error,
) {
	alertID := r.PathValue("id")

	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.By == "" {
		writeError(w, http.StatusBadRequest, `body must be {"by": "<operator>"}`)
		return
	}

	if err := action(alertID, req.By); err != nil {
		switch {
		case errors.Is(err, alerting.ErrNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, alerting.ErrInvalidStateTransition):
			writeError(w, http.StatusConflict, err.Error())
		default:
			s.log.Errorw("alert action failed", "alert_id", alertID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	if a, ok := s.alerts.Get(alertID); ok {
		s.bus.Publish(notify.Event{Type: event, Alert: a, At: time.Now()})
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleGpsStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.poll.GpsStatus())
}

func (s *Server) handlePollingStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.poll.Status())
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
