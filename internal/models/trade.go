package models

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
)

// TradeStatus — статус жизненного цикла сделки
type TradeStatus string

const (
	StatusParsed   TradeStatus = "parsed"   // сигнал распознан
	StatusPending  TradeStatus = "pending"  // выставлен лимитный ордер
	StatusActive   TradeStatus = "active"   // позиция открыта
	StatusClosed   TradeStatus = "closed"   // позиция закрыта
	StatusCanceled TradeStatus = "canceled" // отложенный ордер отменен
	StatusBlocked  TradeStatus = "blocked"  // заблокирована фильтрами риска/тренда
	StatusDeclined TradeStatus = "declined" // отклонена вышестоящей логикой
)

// TradeOutcome — итог завершенной сделки
type TradeOutcome string

const (
	OutcomeProfit    TradeOutcome = "profit"
	OutcomeLoss      TradeOutcome = "loss"
	OutcomeBreakeven TradeOutcome = "breakeven"
	OutcomeCanceled  TradeOutcome = "canceled"
	OutcomeBlocked   TradeOutcome = "blocked"
)

// TradeSide — направление сделки
type TradeSide string

const (
	SideBuy  TradeSide = "buy"
	SideSell TradeSide = "sell"
)

// OrderHint — подсказка способа входа из сигнала
type OrderHint string

const (
	HintNow   OrderHint = "now"   // немедленный вход по рынку
	HintLimit OrderHint = "limit" // лимитный ордер
	HintAuto  OrderHint = "auto"  // на усмотрение исполнителя
)

// OrderType — фактический тип выставленного ордера
type OrderType string

const (
	OrderMarket OrderType = "market"
	OrderLimit  OrderType = "limit"
)

// DeclineCategory — категория причины отклонения/блокировки сделки
type DeclineCategory string

const (
	DeclineTrendFilter        DeclineCategory = "trend_filter"
	DeclineRiskExceeded       DeclineCategory = "risk_exceeded"
	DeclineCircuitBreaker     DeclineCategory = "circuit_breaker"
	DeclineInvalidSignal      DeclineCategory = "invalid_signal"
	DeclineInvalidSL          DeclineCategory = "invalid_sl"
	DeclineInvalidEntry       DeclineCategory = "invalid_entry"
	DeclineInstrumentNotFound DeclineCategory = "instrument_not_found"
	DeclineTerminalError      DeclineCategory = "terminal_error"
	DeclineMarketClosed       DeclineCategory = "market_closed"
	DeclineSpreadTooWide      DeclineCategory = "spread_too_wide"
	DeclineDuplicateSignal    DeclineCategory = "duplicate_signal"
	DeclineManualSkip         DeclineCategory = "manual_skip"
	DeclineOther              DeclineCategory = "other"
)

// ValidTransitions определяет допустимые переходы между статусами.
// Терминальные статусы (closed/canceled/blocked/declined) переходов не имеют.
var ValidTransitions = map[TradeStatus][]TradeStatus{
	StatusParsed:  {StatusPending, StatusActive, StatusBlocked, StatusDeclined},
	StatusPending: {StatusActive, StatusCanceled, StatusDeclined},
	StatusActive:  {StatusClosed, StatusDeclined},
}

// CanTransition проверяет допустимость перехода статуса
func CanTransition(from, to TradeStatus) bool {
	for _, s := range ValidTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal возвращает true для статусов, из которых нет переходов
func IsTerminal(s TradeStatus) bool {
	switch s {
	case StatusClosed, StatusCanceled, StatusBlocked, StatusDeclined:
		return true
	}
	return false
}

// TradeRecord — одна запись журнала сделок (один торговый сигнал)
type TradeRecord struct {
	ID        int64   `json:"id" db:"id"`
	TradeID   string  `json:"trade_id" db:"trade_id"`
	ChannelID *string `json:"channel_id,omitempty" db:"channel_id"` // nullable: канал мог не распознаться
	ChannelName string `json:"channel_name" db:"channel_name"`
	MsgID     int64   `json:"msg_id" db:"msg_id"`
	Symbol    string  `json:"symbol" db:"symbol"`

	Side      TradeSide `json:"side" db:"side"`
	OrderHint OrderHint `json:"order_hint" db:"order_hint"`
	OrderType OrderType `json:"order_type,omitempty" db:"order_type"`

	EntryPrice       *float64  `json:"entry_price,omitempty" db:"entry_price"`
	ActualEntryPrice *float64  `json:"actual_entry_price,omitempty" db:"actual_entry_price"`
	SLPrice          float64   `json:"sl_price" db:"sl_price"`
	FinalTPPrice     *float64  `json:"final_tp_price,omitempty" db:"final_tp_price"`
	TPPrices         []float64 `json:"tp_prices,omitempty" db:"tp_prices"`
	RiskFreePrice    *float64  `json:"risk_free_price,omitempty" db:"risk_free_price"`
	CancelPrice      *float64  `json:"cancel_price,omitempty" db:"cancel_price"`
	ClosePrice       *float64  `json:"close_price,omitempty" db:"close_price"`

	Ticket      *int64   `json:"ticket,omitempty" db:"ticket"`
	LotSize     *float64 `json:"lot_size,omitempty" db:"lot_size"`
	RiskAmount  *float64 `json:"risk_amount,omitempty" db:"risk_amount"`
	RiskPercent *float64 `json:"risk_percent,omitempty" db:"risk_percent"`

	Status  TradeStatus  `json:"status" db:"status"`
	Outcome TradeOutcome `json:"trade_outcome,omitempty" db:"trade_outcome"`

	ProfitLoss     *float64 `json:"profit_loss,omitempty" db:"profit_loss"`
	ProfitLossPips *float64 `json:"profit_loss_pips,omitempty" db:"profit_loss_pips"`
	Commission     float64  `json:"commission" db:"commission"`
	Swap           float64  `json:"swap" db:"swap"`

	SignalTime    time.Time  `json:"signal_time" db:"signal_time"`
	ExecutionTime *time.Time `json:"execution_time,omitempty" db:"execution_time"`
	BEMovedAt     *time.Time `json:"be_moved_at,omitempty" db:"be_moved_at"`
	CanceledAt    *time.Time `json:"canceled_at,omitempty" db:"canceled_at"`
	CloseTime     *time.Time `json:"close_time,omitempty" db:"close_time"`

	// Производные длительности в секундах (double вместо interval:
	// проще агрегировать и сериализовать)
	TimeToBESec *float64 `json:"time_to_be_sec,omitempty" db:"time_to_be_sec"`
	DurationSec *float64 `json:"duration_sec,omitempty" db:"duration_sec"`

	Notes         string    `json:"notes,omitempty" db:"notes"`
	RawSignalText string    `json:"raw_signal_text,omitempty" db:"raw_signal_text"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// DeclineReason — причина блокировки/отклонения сделки
type DeclineReason struct {
	ID           int64           `json:"id" db:"id"`
	TradeRowID   int64           `json:"trade_row_id" db:"trade_row_id"`
	Category     DeclineCategory `json:"category" db:"category"`
	ReasonCode   string          `json:"reason_code" db:"reason_code"`
	ReasonDetail string          `json:"reason_detail" db:"reason_detail"`
	Details      map[string]interface{} `json:"details,omitempty" db:"details"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
}

// Допуск против ложной классификации нулевого P/L из-за плавающей точки
const breakevenTolerance = 0.01

// ClassifyOutcome относит P/L закрытой сделки к profit/loss/breakeven
func ClassifyOutcome(profitLoss float64) TradeOutcome {
	switch {
	case profitLoss > breakevenTolerance:
		return OutcomeProfit
	case profitLoss < -breakevenTolerance:
		return OutcomeLoss
	default:
		return OutcomeBreakeven
	}
}

// PipDistance возвращает дистанцию entry→close в пипсах.
// Знак отрицательный, если цена ушла против направления сделки.
func PipDistance(entry, close float64, side TradeSide, pipSize float64) float64 {
	if pipSize <= 0 {
		return 0
	}
	pips := math.Abs(close-entry) / pipSize
	if side == SideBuy {
		if close < entry {
			return -pips
		}
	} else {
		if close > entry {
			return -pips
		}
	}
	return pips
}

var tradeIDStrip = regexp.MustCompile(`[^\w]`)

// GenerateTradeID строит идентификатор сделки из имени канала, id сообщения
// и метки времени в миллисекундах. Детерминирован по входу, сортируем по
// времени; уникальность обеспечивается UNIQUE-ограничением в БД
// (известная слабость при очень высокой частоте сигналов).
func GenerateTradeID(channelName string, msgID int64, now time.Time) string {
	short := strings.ToLower(tradeIDStrip.ReplaceAllString(channelName, ""))
	if len(short) > 10 {
		short = short[:10]
	}
	return fmt.Sprintf("%s_%d_%d", short, msgID, now.UnixMilli())
}

// normalizeSymbol приводит символ к сравниваемому виду: XAU/USD -> XAUUSD
func normalizeSymbol(s string) string {
	return strings.ToUpper(strings.ReplaceAll(s, "/", ""))
}
