package models

// DailyStats — агрегированная статистика сигналов за один день
type DailyStats struct {
	Date            string  `json:"date"`
	TotalSignals    int     `json:"total_signals"`
	ExecutedTrades  int     `json:"executed_trades"`
	DeclinedTrades  int     `json:"declined_trades"`
	WinningTrades   int     `json:"winning_trades"`
	LosingTrades    int     `json:"losing_trades"`
	BreakevenTrades int     `json:"breakeven_trades"`
	TotalProfitLoss float64 `json:"total_profit_loss"`
	TotalPips       float64 `json:"total_pips"`
	WinRate         float64 `json:"win_rate"`
}

// SummaryStats — сводная статистика за период в днях
type SummaryStats struct {
	PeriodDays        int     `json:"period_days"`
	TotalSignals      int     `json:"total_signals"`
	ExecutedTrades    int     `json:"executed_trades"`
	WinningTrades     int     `json:"winning_trades"`
	LosingTrades      int     `json:"losing_trades"`
	BreakevenTrades   int     `json:"breakeven_trades"`
	BlockedTrades     int     `json:"blocked_trades"`
	WinRate           float64 `json:"win_rate"`
	TotalProfitLoss   float64 `json:"total_profit_loss"`
	TotalPips         float64 `json:"total_pips"`
	AvgProfitPerTrade float64 `json:"avg_profit_per_trade"`
}
