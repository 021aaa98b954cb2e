package service

import (
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	"signalboard/internal/models"
	"signalboard/internal/repository"
	"signalboard/pkg/utils"
)

// Ошибки сервиса журнала сделок
var (
	ErrInvalidSide      = errors.New("side must be buy or sell")
	ErrInvalidOrderHint = errors.New("order_hint must be now, limit or auto")
	ErrSymbolEmpty      = errors.New("symbol cannot be empty")
	ErrInvalidSLPrice   = errors.New("sl_price must be > 0")
	ErrUnknownEventType = errors.New("unknown trade event type")
	ErrInvalidDate      = errors.New("date must be YYYY-MM-DD")
)

// Типы событий жизненного цикла, принимаемых от бота
const (
	EventOrderPlaced    = "order_placed"
	EventFilled         = "filled"
	EventBreakevenMoved = "breakeven_moved"
	EventCanceled       = "canceled"
	EventBlocked        = "blocked"
	EventDeclined       = "declined"
	EventClosed         = "closed"
)

// TradeEvent — событие жизненного цикла от бота.
// Набор значимых полей зависит от типа события.
type TradeEvent struct {
	Type string `json:"type"`

	// order_placed
	OrderType   models.OrderType `json:"order_type,omitempty"`
	Ticket      int64            `json:"ticket,omitempty"`
	LotSize     float64          `json:"lot_size,omitempty"`
	RiskAmount  float64          `json:"risk_amount,omitempty"`
	RiskPercent float64          `json:"risk_percent,omitempty"`

	// filled
	ActualEntryPrice float64 `json:"actual_entry_price,omitempty"`

	// closed
	ClosePrice float64          `json:"close_price,omitempty"`
	ProfitLoss float64          `json:"profit_loss,omitempty"`
	EntryPrice float64          `json:"entry_price,omitempty"`
	Side       models.TradeSide `json:"side,omitempty"`
	PipSize    float64          `json:"pip_size,omitempty"`
	Commission float64          `json:"commission,omitempty"`
	Swap       float64          `json:"swap,omitempty"`

	// canceled / closed
	Notes string `json:"notes,omitempty"`

	// blocked / declined
	Reasons []models.DeclineReason `json:"reasons,omitempty"`
}

// TradeService предоставляет бизнес-логику журнала сделок.
//
// Отвечает за:
// - Валидацию входящих сигналов и событий жизненного цикла
// - Диспетчеризацию событий в защищенные переходы репозитория
// - Прямую рассылку изменений websocket-сессиям этого процесса
type TradeService struct {
	tradeRepo   TradeRepositoryInterface
	broadcaster ChangeBroadcaster
	log         *zap.Logger
}

// NewTradeService создает новый экземпляр TradeService.
// broadcaster может быть nil: процесс без websocket-слоя рассылку пропускает.
func NewTradeService(tradeRepo TradeRepositoryInterface, broadcaster ChangeBroadcaster, log *zap.Logger) *TradeService {
	return &TradeService{
		tradeRepo:   tradeRepo,
		broadcaster: broadcaster,
		log:         log,
	}
}

// RecordSignal фиксирует распознанный сигнал и возвращает созданную запись.
// Повторный сигнал того же сообщения возвращает repository.ErrTradeExists.
func (s *TradeService) RecordSignal(t *models.TradeRecord) (*models.TradeRecord, error) {
	if t.Side != models.SideBuy && t.Side != models.SideSell {
		return nil, ErrInvalidSide
	}
	if t.OrderHint != models.HintNow && t.OrderHint != models.HintLimit && t.OrderHint != models.HintAuto {
		return nil, ErrInvalidOrderHint
	}
	if t.Symbol == "" {
		return nil, ErrSymbolEmpty
	}
	if t.SLPrice <= 0 {
		return nil, ErrInvalidSLPrice
	}

	tradeID, err := s.tradeRepo.RecordParsed(t)
	if err != nil {
		return nil, err
	}

	created, err := s.tradeRepo.FindByTradeID(tradeID)
	if err != nil {
		return nil, err
	}

	s.log.Info("signal recorded",
		zap.String("trade_id", tradeID),
		zap.String("channel", created.ChannelName),
		zap.String("symbol", created.Symbol),
		zap.String("side", string(created.Side)))
	s.broadcastTrade(models.ChangeEvent{
		Operation: models.OpInsert,
		ID:        tradeID,
		Status:    string(created.Status),
	})
	return created, nil
}

// ApplyEvent применяет событие жизненного цикла к сделке и возвращает
// обновленную запись. Повторное событие — идемпотентный no-op.
func (s *TradeService) ApplyEvent(tradeID string, ev *TradeEvent) (*models.TradeRecord, error) {
	var err error
	switch ev.Type {
	case EventOrderPlaced:
		if ev.OrderType != models.OrderMarket && ev.OrderType != models.OrderLimit {
			return nil, ErrUnknownEventType
		}
		err = s.tradeRepo.RecordOrderPlaced(tradeID, ev.OrderType, ev.Ticket, ev.LotSize, ev.RiskAmount, ev.RiskPercent)
	case EventFilled:
		err = s.tradeRepo.RecordFilled(tradeID, ev.ActualEntryPrice)
	case EventBreakevenMoved:
		err = s.tradeRepo.RecordBreakevenMoved(tradeID)
	case EventCanceled:
		err = s.tradeRepo.RecordCanceled(tradeID, ev.Notes)
	case EventBlocked:
		err = s.tradeRepo.RecordBlocked(tradeID, ev.Reasons)
	case EventDeclined:
		err = s.tradeRepo.RecordDeclined(tradeID, ev.Reasons)
	case EventClosed:
		err = s.tradeRepo.RecordClosed(tradeID, repository.CloseParams{
			ClosePrice: ev.ClosePrice,
			ProfitLoss: ev.ProfitLoss,
			EntryPrice: ev.EntryPrice,
			Side:       ev.Side,
			PipSize:    ev.PipSize,
			Commission: ev.Commission,
			Swap:       ev.Swap,
			Notes:      ev.Notes,
		})
	default:
		return nil, ErrUnknownEventType
	}
	if err != nil {
		return nil, err
	}

	updated, err := s.tradeRepo.FindByTradeID(tradeID)
	if err != nil {
		return nil, err
	}

	s.log.Info("trade event applied",
		zap.String("trade_id", tradeID),
		zap.String("event", ev.Type),
		zap.String("status", string(updated.Status)))
	s.broadcastTrade(models.ChangeEvent{
		Operation: models.OpUpdate,
		ID:        tradeID,
		Status:    string(updated.Status),
	})
	return updated, nil
}

// GetTrade возвращает сделку по ссылке: числовая ссылка трактуется как
// тикет брокера, остальное — как строковый идентификатор сделки
func (s *TradeService) GetTrade(ref string) (*models.TradeRecord, error) {
	if ticket, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return s.tradeRepo.FindByTicket(ticket)
	}
	return s.tradeRepo.FindByTradeID(ref)
}

// ListTrades возвращает сделки за день (пустая дата — сегодня), новые первыми
func (s *TradeService) ListTrades(date string, channelID string, status string, limit int) ([]*models.TradeRecord, error) {
	day := time.Now()
	if date != "" {
		var err error
		day, err = utils.ParseDate(date)
		if err != nil {
			return nil, ErrInvalidDate
		}
	}
	start, end := utils.DayBounds(day)

	if limit <= 0 || limit > 500 {
		limit = 200
	}

	trades, err := s.tradeRepo.QueryByRange(start, end, repository.TradeFilter{
		ChannelID: channelID,
		Status:    models.TradeStatus(status),
		Limit:     limit,
	})
	if err != nil {
		return nil, err
	}

	if trades == nil {
		trades = []*models.TradeRecord{}
	}
	return trades, nil
}

// broadcastTrade шлет websocket-сессиям то же id-only событие, что
// репозиторий публикует в NOTIFY: оба пути доставки неотличимы для
// подписчика, полное состояние он перечитывает сам
func (s *TradeService) broadcastTrade(ev models.ChangeEvent) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.BroadcastTradeUpdate(ev.Operation, ev)
}
