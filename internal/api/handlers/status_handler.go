package handlers

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"signalboard/internal/notify"
)

// ListenerStatus отдает состояние LISTEN/NOTIFY соединения для /health
type ListenerStatus interface {
	State() notify.ListenerState
}

// SessionCounter отдает количество подключенных websocket-сессий
type SessionCounter interface {
	ClientCount() int
}

// StatusHandler обрабатывает health check.
//
// GET /health
//
// Response 200 OK:
//
//	{"status": "ok", "database": "ok", "listener": "subscribed", "ws_sessions": 3}
//
// Response 503 Service Unavailable: БД не отвечает на ping.
// Отвалившийся listener не роняет health в 503: API остается рабочим,
// деградирует только real-time доставка (listener переподключится сам).
type StatusHandler struct {
	db       *sql.DB
	listener ListenerStatus
	sessions SessionCounter
}

// NewStatusHandler создает новый StatusHandler.
// listener и sessions могут быть nil для процессов без LISTEN/NOTIFY
// и websocket-сервера.
func NewStatusHandler(db *sql.DB, listener ListenerStatus, sessions SessionCounter) *StatusHandler {
	return &StatusHandler{
		db:       db,
		listener: listener,
		sessions: sessions,
	}
}

// HealthStatus - тело ответа /health
type HealthStatus struct {
	Status     string `json:"status"`
	Database   string `json:"database"`
	Listener   string `json:"listener,omitempty"`
	WSSessions int    `json:"ws_sessions"`
}

// Health проверяет доступность БД и состояние слушателя
func (h *StatusHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{Status: "ok", Database: "ok"}

	if h.listener != nil {
		status.Listener = string(h.listener.State())
	}
	if h.sessions != nil {
		status.WSSessions = h.sessions.ClientCount()
	}

	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.db.PingContext(ctx); err != nil {
			status.Status = "degraded"
			status.Database = err.Error()
			respondJSON(w, http.StatusServiceUnavailable, status)
			return
		}
	}

	respondJSON(w, http.StatusOK, status)
}
