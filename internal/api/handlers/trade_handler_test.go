package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"signalboard/internal/models"
	"signalboard/internal/service"
)

func newTradeRouter(h *TradeHandler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/v1/trades", h.GetTrades).Methods("GET")
	r.HandleFunc("/api/v1/trades", h.CreateTrade).Methods("POST")
	r.HandleFunc("/api/v1/trades/{tradeID}/events", h.ApplyEvent).Methods("POST")
	r.HandleFunc("/api/v1/trades/{ref}", h.GetTrade).Methods("GET")
	return r
}

func seedTrade(svc *MockTradeService, tradeID string) *models.TradeRecord {
	ticket := int64(100500)
	return svc.Seed(&models.TradeRecord{
		TradeID:     tradeID,
		ChannelName: "Gold VIP",
		MsgID:       42,
		Symbol:      "XAUUSD",
		Side:        models.SideBuy,
		OrderHint:   models.HintNow,
		SLPrice:     2650.0,
		Status:      models.StatusParsed,
		Ticket:      &ticket,
		SignalTime:  time.Now(),
	})
}

func TestTradeHandler_CreateTrade(t *testing.T) {
	t.Run("registers signal", func(t *testing.T) {
		mockSvc := NewMockTradeService()
		router := newTradeRouter(NewTradeHandler(mockSvc))

		body := `{
			"channel_name": "Gold VIP",
			"msg_id": 4212,
			"symbol": "XAUUSD",
			"side": "buy",
			"order_hint": "now",
			"sl_price": 2650.0,
			"tp_prices": [2655.0, 2660.0, 2670.0]
		}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/trades", strings.NewReader(body))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusCreated {
			t.Fatalf("expected status %d, got %d: %s", http.StatusCreated, w.Code, w.Body.String())
		}

		var response models.TradeRecord
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if response.TradeID == "" {
			t.Error("trade_id must be assigned")
		}
		if response.Status != models.StatusParsed {
			t.Errorf("status = %q, want parsed", response.Status)
		}
	})

	t.Run("returns 400 on validation error", func(t *testing.T) {
		router := newTradeRouter(NewTradeHandler(NewMockTradeService()))

		// Нет symbol
		req := httptest.NewRequest(http.MethodPost, "/api/v1/trades",
			strings.NewReader(`{"channel_name": "Gold VIP", "side": "buy"}`))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}
	})

	t.Run("returns 400 on invalid json", func(t *testing.T) {
		router := newTradeRouter(NewTradeHandler(NewMockTradeService()))

		req := httptest.NewRequest(http.MethodPost, "/api/v1/trades", strings.NewReader("{broken"))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}
	})
}

func TestTradeHandler_ApplyEvent(t *testing.T) {
	t.Run("applies lifecycle event", func(t *testing.T) {
		mockSvc := NewMockTradeService()
		seedTrade(mockSvc, "goldvip_42_1700000000000")
		router := newTradeRouter(NewTradeHandler(mockSvc))

		body := `{"type": "order_placed", "order_type": "market", "ticket": 100500, "lot_size": 0.2}`
		req := httptest.NewRequest(http.MethodPost,
			"/api/v1/trades/goldvip_42_1700000000000/events", strings.NewReader(body))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d: %s", http.StatusOK, w.Code, w.Body.String())
		}

		var response models.TradeRecord
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if response.Status != models.StatusActive {
			t.Errorf("status = %q, want active", response.Status)
		}

		if mockSvc.lastEvent == nil || mockSvc.lastEvent.Type != service.EventOrderPlaced {
			t.Error("event was not passed to the service")
		}
	})

	t.Run("returns 404 for unknown trade", func(t *testing.T) {
		router := newTradeRouter(NewTradeHandler(NewMockTradeService()))

		req := httptest.NewRequest(http.MethodPost,
			"/api/v1/trades/no-such-trade/events", strings.NewReader(`{"type": "closed"}`))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
		}
	})

	t.Run("returns 400 for unknown event type", func(t *testing.T) {
		mockSvc := NewMockTradeService()
		seedTrade(mockSvc, "goldvip_42_1700000000000")
		router := newTradeRouter(NewTradeHandler(mockSvc))

		req := httptest.NewRequest(http.MethodPost,
			"/api/v1/trades/goldvip_42_1700000000000/events",
			strings.NewReader(`{"type": "teleported"}`))
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}
	})
}

func TestTradeHandler_GetTrades(t *testing.T) {
	t.Run("returns trades", func(t *testing.T) {
		mockSvc := NewMockTradeService()
		seedTrade(mockSvc, "goldvip_42_1700000000000")
		router := newTradeRouter(NewTradeHandler(mockSvc))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/trades?date=2026-08-25&limit=50", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
		}

		var response []*models.TradeRecord
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if len(response) != 1 {
			t.Errorf("expected 1 trade, got %d", len(response))
		}
	})

	t.Run("returns 400 on bad date", func(t *testing.T) {
		router := newTradeRouter(NewTradeHandler(NewMockTradeService()))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/trades?date=25.08.2026", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusBadRequest {
			t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
		}
	})
}

func TestTradeHandler_GetTrade(t *testing.T) {
	t.Run("finds by trade id", func(t *testing.T) {
		mockSvc := NewMockTradeService()
		seedTrade(mockSvc, "goldvip_42_1700000000000")
		router := newTradeRouter(NewTradeHandler(mockSvc))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/trades/goldvip_42_1700000000000", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
		}
	})

	t.Run("finds by ticket", func(t *testing.T) {
		mockSvc := NewMockTradeService()
		seedTrade(mockSvc, "goldvip_42_1700000000000")
		router := newTradeRouter(NewTradeHandler(mockSvc))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/trades/100500", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
		}

		var response models.TradeRecord
		if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if response.TradeID != "goldvip_42_1700000000000" {
			t.Errorf("trade_id = %q, want goldvip_42_1700000000000", response.TradeID)
		}
	})

	t.Run("returns 404 for unknown ref", func(t *testing.T) {
		router := newTradeRouter(NewTradeHandler(NewMockTradeService()))

		req := httptest.NewRequest(http.MethodGet, "/api/v1/trades/unknown_ref", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, w.Code)
		}
	})
}
