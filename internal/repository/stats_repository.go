package repository

import (
	"database/sql"
	"time"

	"go.uber.org/zap"

	"signalboard/internal/models"
	"signalboard/pkg/utils"
)

// StatsRepository — агрегаты по журналу сделок для дашборда.
// Агрегация выполняется в БД одним запросом с FILTER-выражениями.
type StatsRepository struct {
	db  *sql.DB
	log *zap.Logger
}

// NewStatsRepository создает новый экземпляр репозитория
func NewStatsRepository(db *sql.DB, log *zap.Logger) *StatsRepository {
	return &StatsRepository{db: db, log: log}
}

// GetDailyStats возвращает статистику сигналов за один день [dayStart, dayEnd)
func (r *StatsRepository) GetDailyStats(dayStart, dayEnd time.Time, channelID string) (*models.DailyStats, error) {
	query := `
		SELECT
			COUNT(*) AS total_signals,
			COUNT(*) FILTER (WHERE status IN ('active', 'closed'))              AS executed_trades,
			COUNT(*) FILTER (WHERE status IN ('blocked', 'declined'))           AS declined_trades,
			COUNT(*) FILTER (WHERE trade_outcome = 'profit')                    AS winning_trades,
			COUNT(*) FILTER (WHERE trade_outcome = 'loss')                      AS losing_trades,
			COUNT(*) FILTER (WHERE trade_outcome = 'breakeven')                 AS breakeven_trades,
			COALESCE(SUM(profit_loss) FILTER (WHERE status = 'closed'), 0)      AS total_profit_loss,
			COALESCE(SUM(profit_loss_pips) FILTER (WHERE status = 'closed'), 0) AS total_pips
		FROM trades
		WHERE signal_time >= $1 AND signal_time < $2`
	args := []interface{}{dayStart, dayEnd}
	if channelID != "" {
		query += ` AND channel_id = $3`
		args = append(args, channelID)
	}

	s := &models.DailyStats{Date: dayStart.Format("2006-01-02")}
	err := r.db.QueryRow(query, args...).Scan(
		&s.TotalSignals, &s.ExecutedTrades, &s.DeclinedTrades,
		&s.WinningTrades, &s.LosingTrades, &s.BreakevenTrades,
		&s.TotalProfitLoss, &s.TotalPips,
	)
	if err != nil {
		return nil, err
	}

	if decided := s.WinningTrades + s.LosingTrades; decided > 0 {
		s.WinRate = utils.Round2(float64(s.WinningTrades) / float64(decided) * 100)
	}
	return s, nil
}

// GetSummaryStats возвращает сводку за последние periodDays дней
func (r *StatsRepository) GetSummaryStats(periodDays int, channelID string) (*models.SummaryStats, error) {
	since := time.Now().AddDate(0, 0, -periodDays)

	query := `
		SELECT
			COUNT(*) AS total_signals,
			COUNT(*) FILTER (WHERE status IN ('active', 'closed'))              AS executed_trades,
			COUNT(*) FILTER (WHERE trade_outcome = 'profit')                    AS winning_trades,
			COUNT(*) FILTER (WHERE trade_outcome = 'loss')                      AS losing_trades,
			COUNT(*) FILTER (WHERE trade_outcome = 'breakeven')                 AS breakeven_trades,
			COUNT(*) FILTER (WHERE trade_outcome = 'blocked')                   AS blocked_trades,
			COALESCE(SUM(profit_loss) FILTER (WHERE status = 'closed'), 0)      AS total_profit_loss,
			COALESCE(SUM(profit_loss_pips) FILTER (WHERE status = 'closed'), 0) AS total_pips,
			COUNT(*) FILTER (WHERE status = 'closed')                           AS closed_trades
		FROM trades
		WHERE signal_time >= $1`
	args := []interface{}{since}
	if channelID != "" {
		query += ` AND channel_id = $2`
		args = append(args, channelID)
	}

	s := &models.SummaryStats{PeriodDays: periodDays}
	var closedTrades int
	err := r.db.QueryRow(query, args...).Scan(
		&s.TotalSignals, &s.ExecutedTrades,
		&s.WinningTrades, &s.LosingTrades, &s.BreakevenTrades, &s.BlockedTrades,
		&s.TotalProfitLoss, &s.TotalPips, &closedTrades,
	)
	if err != nil {
		return nil, err
	}

	if decided := s.WinningTrades + s.LosingTrades; decided > 0 {
		s.WinRate = utils.Round2(float64(s.WinningTrades) / float64(decided) * 100)
	}
	if closedTrades > 0 {
		s.AvgProfitPerTrade = utils.Round2(s.TotalProfitLoss / float64(closedTrades))
	}
	return s, nil
}
