package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"signalboard/internal/notify"
)

func TestStatusHandler_Health(t *testing.T) {
	t.Run("reports ok with subscribed listener", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		if err != nil {
			t.Fatalf("failed to create sqlmock: %v", err)
		}
		defer db.Close()
		mock.ExpectPing()

		handler := NewStatusHandler(db, &MockListenerStatus{state: notify.StateSubscribed}, &MockSessionCounter{clients: 3})

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		w := httptest.NewRecorder()
		handler.Health(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
		}

		var response HealthStatus
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if response.Status != "ok" {
			t.Errorf("status = %q, want ok", response.Status)
		}
		if response.Listener != string(notify.StateSubscribed) {
			t.Errorf("listener = %q, want subscribed", response.Listener)
		}
		if response.WSSessions != 3 {
			t.Errorf("ws_sessions = %d, want 3", response.WSSessions)
		}
	})

	t.Run("reports 503 when database is down", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		if err != nil {
			t.Fatalf("failed to create sqlmock: %v", err)
		}
		defer db.Close()
		mock.ExpectPing().WillReturnError(ErrMockDatabase)

		handler := NewStatusHandler(db, &MockListenerStatus{state: notify.StateDisconnected}, nil)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		w := httptest.NewRecorder()
		handler.Health(w, req)

		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("expected status %d, got %d", http.StatusServiceUnavailable, w.Code)
		}

		var response HealthStatus
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if response.Status != "degraded" {
			t.Errorf("status = %q, want degraded", response.Status)
		}
	})

	t.Run("works without listener and hub", func(t *testing.T) {
		handler := NewStatusHandler(nil, nil, nil)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		w := httptest.NewRecorder()
		handler.Health(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
		}
	})
}
