package service

import (
	"time"

	"signalboard/internal/models"
	"signalboard/pkg/utils"
)

// Границы периода сводной статистики
const (
	DefaultSummaryDays = 7
	MaxSummaryDays     = 365
)

// StatsService предоставляет агрегированную статистику для дашборда
type StatsService struct {
	statsRepo StatsRepositoryInterface
}

// NewStatsService создает новый экземпляр StatsService.
func NewStatsService(statsRepo StatsRepositoryInterface) *StatsService {
	return &StatsService{statsRepo: statsRepo}
}

// GetDailyStats возвращает статистику за день (пустая дата — сегодня)
func (s *StatsService) GetDailyStats(date string, channelID string) (*models.DailyStats, error) {
	day := time.Now()
	if date != "" {
		var err error
		day, err = utils.ParseDate(date)
		if err != nil {
			return nil, ErrInvalidDate
		}
	}
	start, end := utils.DayBounds(day)
	return s.statsRepo.GetDailyStats(start, end, channelID)
}

// GetSummaryStats возвращает сводку за последние periodDays дней.
// Период вне границ приводится к значению по умолчанию.
func (s *StatsService) GetSummaryStats(periodDays int, channelID string) (*models.SummaryStats, error) {
	if periodDays <= 0 || periodDays > MaxSummaryDays {
		periodDays = DefaultSummaryDays
	}
	return s.statsRepo.GetSummaryStats(periodDays, channelID)
}
