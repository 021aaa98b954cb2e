package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"

	"signalboard/internal/models"
)

// newChannelRouter собирает роутер с реальными path-параметрами mux
func newChannelRouter(h *ChannelHandler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/v1/channels", h.GetChannels).Methods("GET")
	r.HandleFunc("/api/v1/channels", h.CreateChannel).Methods("POST")
	r.HandleFunc("/api/v1/channels/key/{channelKey}", h.GetChannelByKey).Methods("GET")
	r.HandleFunc("/api/v1/channels/{id}", h.GetChannel).Methods("GET")
	r.HandleFunc("/api/v1/channels/{id}", h.UpdateChannel).Methods("PUT")
	r.HandleFunc("/api/v1/channels/{id}", h.DeleteChannel).Methods("DELETE")
	r.HandleFunc("/api/v1/channels/{id}/toggle", h.ToggleChannel).Methods("PATCH")
	return r
}

func TestChannelHandler_GetChannels(t *testing.T) {
	t.Run("returns channels", func(t *testing.T) {
		mockSvc := NewMockChannelService()
		mockSvc.Seed(models.DefaultChannelConfig("gold_vip"))
		mockSvc.Seed(models.DefaultChannelConfig("forex_club"))
		router := newChannelRouter(NewChannelHandler(mockSvc))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/channels", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
		}

		var response []*models.ChannelConfig
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if len(response) != 2 {
			t.Errorf("expected 2 channels, got %d", len(response))
		}
	})

	t.Run("returns 500 on service error", func(t *testing.T) {
		mockSvc := NewMockChannelService()
		mockSvc.SetError(ErrMockDatabase)
		router := newChannelRouter(NewChannelHandler(mockSvc))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/channels", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusInternalServerError {
			t.Errorf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}
	})
}

func TestChannelHandler_CreateChannel(t *testing.T) {
	t.Run("creates channel", func(t *testing.T) {
		mockSvc := NewMockChannelService()
		router := newChannelRouter(NewChannelHandler(mockSvc))

		body := `{"channel_key": "gold_vip", "risk_per_trade": 0.02}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/channels", strings.NewReader(body))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusCreated {
			t.Errorf("expected status %d, got %d", http.StatusCreated, w.Code)
		}

		var response models.ChannelConfig
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if response.ID == "" {
			t.Error("created channel must have an id")
		}
		if response.ChannelKey != "gold_vip" {
			t.Errorf("channel_key = %q, want gold_vip", response.ChannelKey)
		}
	})

	t.Run("returns 400 on invalid json", func(t *testing.T) {
		router := newChannelRouter(NewChannelHandler(NewMockChannelService()))

		req := httptest.NewRequest(http.MethodPost, "/api/v1/channels", strings.NewReader("{not json"))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}
	})

	t.Run("returns 400 on validation error", func(t *testing.T) {
		router := newChannelRouter(NewChannelHandler(NewMockChannelService()))

		req := httptest.NewRequest(http.MethodPost, "/api/v1/channels", strings.NewReader(`{}`))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}

		var response ErrorResponse
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if response.Error == "" {
			t.Error("error message must not be empty")
		}
	})

	t.Run("returns 409 on duplicate", func(t *testing.T) {
		mockSvc := NewMockChannelService()
		mockSvc.Seed(models.DefaultChannelConfig("gold_vip"))
		router := newChannelRouter(NewChannelHandler(mockSvc))

		body := `{"channel_key": "gold_vip"}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/channels", strings.NewReader(body))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusConflict {
			t.Errorf("expected status %d, got %d", http.StatusConflict, w.Code)
		}
	})
}

func TestChannelHandler_GetChannel(t *testing.T) {
	t.Run("returns channel by id", func(t *testing.T) {
		mockSvc := NewMockChannelService()
		seeded := mockSvc.Seed(models.DefaultChannelConfig("gold_vip"))
		router := newChannelRouter(NewChannelHandler(mockSvc))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/channels/"+seeded.ID, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
		}

		var response models.ChannelConfig
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if response.ChannelKey != "gold_vip" {
			t.Errorf("channel_key = %q, want gold_vip", response.ChannelKey)
		}
	})

	t.Run("returns 404 for unknown id", func(t *testing.T) {
		router := newChannelRouter(NewChannelHandler(NewMockChannelService()))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/channels/no-such-id", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
		}
	})
}

func TestChannelHandler_GetChannelByKey(t *testing.T) {
	mockSvc := NewMockChannelService()
	mockSvc.Seed(models.DefaultChannelConfig("gold_vip"))
	router := newChannelRouter(NewChannelHandler(mockSvc))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/channels/key/gold_vip", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var response models.ChannelConfig
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.ChannelKey != "gold_vip" {
		t.Errorf("channel_key = %q, want gold_vip", response.ChannelKey)
	}
}

func TestChannelHandler_UpdateChannel(t *testing.T) {
	t.Run("updates channel", func(t *testing.T) {
		mockSvc := NewMockChannelService()
		seeded := mockSvc.Seed(models.DefaultChannelConfig("gold_vip"))
		router := newChannelRouter(NewChannelHandler(mockSvc))

		body := `{"channel_key": "gold_vip", "risk_per_trade": 0.05}`
		req := httptest.NewRequest(http.MethodPut, "/api/v1/channels/"+seeded.ID, strings.NewReader(body))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
		}

		var response models.ChannelConfig
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if response.RiskPerTrade != 0.05 {
			t.Errorf("risk_per_trade = %v, want 0.05", response.RiskPerTrade)
		}
	})

	t.Run("returns 404 for unknown id", func(t *testing.T) {
		router := newChannelRouter(NewChannelHandler(NewMockChannelService()))

		req := httptest.NewRequest(http.MethodPut, "/api/v1/channels/no-such-id", strings.NewReader(`{"channel_key":"x"}`))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
		}
	})
}

func TestChannelHandler_DeleteChannel(t *testing.T) {
	mockSvc := NewMockChannelService()
	seeded := mockSvc.Seed(models.DefaultChannelConfig("gold_vip"))
	router := newChannelRouter(NewChannelHandler(mockSvc))

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/channels/"+seeded.ID, nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	// Повторное удаление - 404
	req = httptest.NewRequest(http.MethodDelete, "/api/v1/channels/"+seeded.ID, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("expected status %d on second delete, got %d", http.StatusNotFound, w.Code)
	}
}

func TestChannelHandler_ToggleChannel(t *testing.T) {
	mockSvc := NewMockChannelService()
	seeded := mockSvc.Seed(models.DefaultChannelConfig("gold_vip"))
	seeded.IsActive = true
	router := newChannelRouter(NewChannelHandler(mockSvc))

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/channels/"+seeded.ID+"/toggle",
		strings.NewReader(`{"is_active": false}`))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	var response models.ChannelConfig
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if response.IsActive {
		t.Error("channel must be inactive after toggle")
	}
}
