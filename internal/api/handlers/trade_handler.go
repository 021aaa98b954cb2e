package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"signalboard/internal/models"
	"signalboard/internal/service"
)

// TradeHandler обрабатывает HTTP запросы журнала сделок.
//
// Endpoints:
// - POST /api/v1/trades - зарегистрировать распарсенный сигнал
// - POST /api/v1/trades/{tradeID}/events - применить событие жизненного цикла
// - GET  /api/v1/trades - список сделок (?date=YYYY-MM-DD&channel_id=&status=&limit=)
// - GET  /api/v1/trades/{ref} - сделка по trade_id или тикету
//
// Пишущие endpoints вызывает бот; читающие - дашборд.
// Все переходы идемпотентны: повторная доставка события от бота
// не ломает состояние сделки.
type TradeHandler struct {
	tradeService service.TradeServiceInterface
}

// NewTradeHandler создает новый TradeHandler с внедрением зависимостей
func NewTradeHandler(tradeService service.TradeServiceInterface) *TradeHandler {
	return &TradeHandler{
		tradeService: tradeService,
	}
}

// CreateTrade регистрирует распарсенный сигнал.
//
// POST /api/v1/trades
//
// Request body (минимум):
//
//	{
//	  "channel_id": "c0a8...",
//	  "channel_name": "Gold VIP",
//	  "msg_id": 4212,
//	  "symbol": "XAUUSD",
//	  "side": "buy",
//	  "order_hint": "now",
//	  "sl_price": 2650.0,
//	  "tp_prices": [2655.0, 2660.0, 2670.0]
//	}
//
// Response 201 Created: запись сделки с присвоенным trade_id
// Response 409 Conflict: сигнал с таким trade_id уже зарегистрирован
func (h *TradeHandler) CreateTrade(w http.ResponseWriter, r *http.Request) {
	var req models.TradeRecord
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	created, err := h.tradeService.RecordSignal(&req)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, created)
}

// ApplyEvent применяет событие жизненного цикла к сделке.
//
// POST /api/v1/trades/{tradeID}/events
//
// Request body:
//
//	{"type": "order_placed", "order_type": "market", "ticket": 100500,
//	 "lot_size": 0.2, "risk_amount": 250.0, "risk_percent": 2.5}
//	{"type": "filled", "actual_entry_price": 2651.3}
//	{"type": "breakeven_moved"}
//	{"type": "canceled", "notes": "expired"}
//	{"type": "blocked", "reasons": [{"category": "circuit_breaker", "reason_code": "daily_loss_limit"}]}
//	{"type": "closed", "close_price": 2660.0, "profit_loss": 250.0, ...}
//
// Response 200 OK: сделка после перехода (или без изменений, если
// переход уже был применен ранее)
// Response 404 Not Found: неизвестный trade_id
func (h *TradeHandler) ApplyEvent(w http.ResponseWriter, r *http.Request) {
	tradeID := mux.Vars(r)["tradeID"]

	var ev service.TradeEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	trade, err := h.tradeService.ApplyEvent(tradeID, &ev)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, trade)
}

// GetTrades возвращает сделки за день с опциональными фильтрами.
//
// GET /api/v1/trades?date=2026-08-25&channel_id=...&status=active&limit=50
//
// Пустая date означает сегодня (UTC).
func (h *TradeHandler) GetTrades(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit := 0
	if limitStr := q.Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil {
			limit = parsed
		}
	}

	trades, err := h.tradeService.ListTrades(q.Get("date"), q.Get("channel_id"), q.Get("status"), limit)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, trades)
}

// GetTrade возвращает сделку по trade_id или тикету брокера.
//
// GET /api/v1/trades/{ref}
func (h *TradeHandler) GetTrade(w http.ResponseWriter, r *http.Request) {
	ref := mux.Vars(r)["ref"]

	trade, err := h.tradeService.GetTrade(ref)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, trade)
}
