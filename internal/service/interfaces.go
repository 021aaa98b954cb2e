package service

import (
	"time"

	"signalboard/internal/models"
	"signalboard/internal/repository"
)

// ChannelRepositoryInterface определяет интерфейс хранилища конфигураций каналов
type ChannelRepositoryInterface interface {
	GetByID(id string) (*models.ChannelConfig, error)
	GetByKey(channelKey string) (*models.ChannelConfig, error)
	GetAll(activeOnly bool) ([]*models.ChannelConfig, error)
	Create(cfg *models.ChannelConfig) (string, error)
	Update(id string, cfg *models.ChannelConfig) error
	Delete(id string) error
	SetActive(id string, active bool) error
	SetTelegramID(id string, telegramID int64) error
}

// TradeRepositoryInterface определяет интерфейс журнала сделок
type TradeRepositoryInterface interface {
	RecordParsed(t *models.TradeRecord) (string, error)
	RecordOrderPlaced(tradeID string, orderType models.OrderType, ticket int64, lotSize, riskAmount, riskPercent float64) error
	RecordFilled(tradeID string, actualEntryPrice float64) error
	RecordBreakevenMoved(tradeID string) error
	RecordCanceled(tradeID, notes string) error
	RecordBlocked(tradeID string, reasons []models.DeclineReason) error
	RecordDeclined(tradeID string, reasons []models.DeclineReason) error
	RecordClosed(tradeID string, p repository.CloseParams) error
	FindByTradeID(tradeID string) (*models.TradeRecord, error)
	FindByTicket(ticket int64) (*models.TradeRecord, error)
	FindByMessageID(channelID string, msgID int64) (*models.TradeRecord, error)
	QueryByRange(start, end time.Time, f repository.TradeFilter) ([]*models.TradeRecord, error)
	GetDeclineReasons(tradeRowID int64) ([]models.DeclineReason, error)
}

// StatsRepositoryInterface определяет интерфейс агрегатов статистики
type StatsRepositoryInterface interface {
	GetDailyStats(dayStart, dayEnd time.Time, channelID string) (*models.DailyStats, error)
	GetSummaryStats(periodDays int, channelID string) (*models.SummaryStats, error)
}

// Проверяем, что реальные репозитории реализуют интерфейсы
var _ ChannelRepositoryInterface = (*repository.ChannelRepository)(nil)
var _ TradeRepositoryInterface = (*repository.TradeRepository)(nil)
var _ StatsRepositoryInterface = (*repository.StatsRepository)(nil)

// ChangeBroadcaster рассылает изменения подключенным websocket-сессиям.
// Прямой путь для операций, выполненных через API этого же процесса;
// изменения из других процессов доходят через LISTEN/NOTIFY.
type ChangeBroadcaster interface {
	BroadcastChannelUpdate(operation string, data interface{})
	BroadcastTradeUpdate(operation string, data interface{})
}

// ============ Интерфейсы сервисов для Dependency Injection ============

// ChannelServiceInterface определяет интерфейс сервиса конфигураций каналов
type ChannelServiceInterface interface {
	GetChannel(id string) (*models.ChannelConfig, error)
	GetChannelByKey(channelKey string) (*models.ChannelConfig, error)
	ListChannels(activeOnly bool) ([]*models.ChannelConfig, error)
	CreateChannel(cfg *models.ChannelConfig) (*models.ChannelConfig, error)
	UpdateChannel(id string, cfg *models.ChannelConfig) (*models.ChannelConfig, error)
	DeleteChannel(id string) error
	SetChannelActive(id string, active bool) (*models.ChannelConfig, error)
}

// TradeServiceInterface определяет интерфейс сервиса журнала сделок
type TradeServiceInterface interface {
	RecordSignal(t *models.TradeRecord) (*models.TradeRecord, error)
	ApplyEvent(tradeID string, ev *TradeEvent) (*models.TradeRecord, error)
	GetTrade(ref string) (*models.TradeRecord, error)
	ListTrades(date string, channelID string, status string, limit int) ([]*models.TradeRecord, error)
}

// StatsServiceInterface определяет интерфейс сервиса статистики
type StatsServiceInterface interface {
	GetDailyStats(date string, channelID string) (*models.DailyStats, error)
	GetSummaryStats(periodDays int, channelID string) (*models.SummaryStats, error)
}

// Проверяем, что реальные сервисы реализуют интерфейсы
var _ ChannelServiceInterface = (*ChannelService)(nil)
var _ TradeServiceInterface = (*TradeService)(nil)
var _ StatsServiceInterface = (*StatsService)(nil)
