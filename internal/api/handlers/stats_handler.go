package handlers

import (
	"net/http"
	"strconv"

	"signalboard/internal/service"
)

// StatsHandler обрабатывает HTTP запросы статистики торговли.
//
// Endpoints:
// - GET /api/v1/statistics/daily?date=YYYY-MM-DD&channel_id= - агрегаты за день
// - GET /api/v1/statistics/summary?period_days=7&channel_id= - агрегаты за период
type StatsHandler struct {
	statsService service.StatsServiceInterface
}

// NewStatsHandler создает новый StatsHandler с внедрением зависимостей
func NewStatsHandler(statsService service.StatsServiceInterface) *StatsHandler {
	return &StatsHandler{
		statsService: statsService,
	}
}

// GetDailyStats возвращает агрегированную статистику за день.
//
// GET /api/v1/statistics/daily?date=2026-08-25&channel_id=...
//
// Пустая date означает сегодня (UTC), пустой channel_id - все каналы.
//
// Response 200 OK:
//
//	{
//	  "date": "2026-08-25",
//	  "total_signals": 20,
//	  "executed_trades": 14,
//	  "declined_trades": 6,
//	  "winning_trades": 7,
//	  "losing_trades": 2,
//	  "breakeven_trades": 1,
//	  "win_rate": 70.0,
//	  "total_profit_loss": 540.25,
//	  "total_pips": 132.5
//	}
func (h *StatsHandler) GetDailyStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	stats, err := h.statsService.GetDailyStats(q.Get("date"), q.Get("channel_id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, stats)
}

// GetSummaryStats возвращает агрегированную статистику за период.
//
// GET /api/v1/statistics/summary?period_days=7&channel_id=...
//
// period_days вне диапазона [1, 365] заменяется значением по умолчанию (7).
func (h *StatsHandler) GetSummaryStats(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	periodDays := 0
	if periodStr := q.Get("period_days"); periodStr != "" {
		if parsed, err := strconv.Atoi(periodStr); err == nil {
			periodDays = parsed
		}
	}

	stats, err := h.statsService.GetSummaryStats(periodDays, q.Get("channel_id"))
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, stats)
}
