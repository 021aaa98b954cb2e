package models

import "time"

// PolicyKind — закрытое множество видов суб-политик канала.
// Невалидный kind отклоняется на этапе валидации, а не молча игнорируется.
type PolicyKind string

// Виды политики финального тейк-профита
const (
	TPKindRatio   PolicyKind = "rr"       // фиксированное соотношение риск/прибыль
	TPKindIndexed PolicyKind = "tp_index" // N-й тейк-профит из сигнала
)

// Виды политики перевода в безубыток
const (
	RiskFreeKindPercent PolicyKind = "%path"    // процент пути до финального TP
	RiskFreeKindPips    PolicyKind = "pips"     // фиксированная дистанция в пипсах
	RiskFreeKindIndexed PolicyKind = "tp_index" // достижение N-го TP
)

// Виды политики отмены отложенного ордера
const (
	CancelKindFinalTP PolicyKind = "final_tp" // цена дошла до финального TP без входа
	CancelKindIndexed PolicyKind = "tp_index" // цена дошла до N-го TP
	CancelKindPercent PolicyKind = "%path"    // процент пути до TP
)

// ValidTPKind проверяет вид политики тейк-профита
func ValidTPKind(k PolicyKind) bool {
	return k == TPKindRatio || k == TPKindIndexed
}

// ValidRiskFreeKind проверяет вид политики безубытка
func ValidRiskFreeKind(k PolicyKind) bool {
	return k == RiskFreeKindPercent || k == RiskFreeKindPips || k == RiskFreeKindIndexed
}

// ValidCancelKind проверяет вид политики отмены
func ValidCancelKind(k PolicyKind) bool {
	return k == CancelKindFinalTP || k == CancelKindIndexed || k == CancelKindPercent
}

// Instrument — соответствие логического символа сигнала брокерскому символу
type Instrument struct {
	ID               int     `json:"id,omitempty" db:"id"`
	LogicalSymbol    string  `json:"logical_symbol" db:"logical_symbol"`   // XAUUSD
	BrokerSymbol     string  `json:"broker_symbol" db:"broker_symbol"`     // GOLD.a
	PipTolerancePips float64 `json:"pip_tolerance_pips" db:"pip_tolerance_pips"`
}

// TakeProfitPolicy определяет, какой тейк-профит считается финальным.
// У канала всегда ровно одна такая политика.
type TakeProfitPolicy struct {
	Kind    PolicyKind `json:"kind" db:"kind"`
	TPIndex int        `json:"tp_index" db:"tp_index"`
	RRRatio float64    `json:"rr_ratio" db:"rr_ratio"`
}

// RiskFreePolicy определяет условие перевода стоп-лосса в безубыток
type RiskFreePolicy struct {
	Enabled bool       `json:"enabled" db:"is_enabled"`
	Kind    PolicyKind `json:"kind" db:"kind"`
	TPIndex int        `json:"tp_index" db:"tp_index"`
	Pips    float64    `json:"pips" db:"pips"`
	Percent float64    `json:"percent" db:"percent"`
}

// CancelPolicy определяет условие отмены отложенного ордера
type CancelPolicy struct {
	Enabled bool       `json:"enabled" db:"is_enabled"`
	Kind    PolicyKind `json:"kind" db:"kind"`
	TPIndex int        `json:"tp_index" db:"tp_index"`
	Percent float64    `json:"percent" db:"percent"`
	// Применимость политики по подсказке входа из сигнала
	EnableForNow   bool `json:"enable_for_now" db:"enable_for_now"`
	EnableForLimit bool `json:"enable_for_limit" db:"enable_for_limit"`
	EnableForAuto  bool `json:"enable_for_auto" db:"enable_for_auto"`
}

// CommandConfig — настройки текстовых команд управления сделкой из канала
type CommandConfig struct {
	EnableClose        bool     `json:"enable_close" db:"enable_close"`
	EnableCancelLimit  bool     `json:"enable_cancel_limit" db:"enable_cancel_limit"`
	EnableRiskFree     bool     `json:"enable_riskfree" db:"enable_riskfree"`
	ClosePhrases       []string `json:"close_phrases" db:"close_phrases"`
	CancelLimitPhrases []string `json:"cancel_limit_phrases" db:"cancel_limit_phrases"`
	RiskFreePhrases    []string `json:"riskfree_phrases" db:"riskfree_phrases"`
}

// CircuitBreaker останавливает новые сделки при превышении дневных лимитов
type CircuitBreaker struct {
	Enabled         bool    `json:"enabled" db:"is_enabled"`
	MaxDailyTrades  int     `json:"max_daily_trades" db:"max_daily_trades"`
	MaxDailyLossPct float64 `json:"max_daily_loss_pct" db:"max_daily_loss_pct"`
}

// TrendFilter блокирует сигналы против текущего тренда
type TrendFilter struct {
	Enabled          bool `json:"enabled" db:"is_enabled"`
	SwingStrength    int  `json:"swing_strength" db:"swing_strength"`
	MinSwingsRequired int `json:"min_swings_required" db:"min_swings_required"`
	EMAPeriod        int  `json:"ema_period" db:"ema_period"`
	CandlesToFetch   int  `json:"candles_to_fetch" db:"candles_to_fetch"`
	RequireAllThree  bool `json:"require_all_three" db:"require_all_three"`
	LogDetails       bool `json:"log_details" db:"log_details"`
}

// ChannelConfig — полная конфигурация торгового канала.
// Одна запись на канал-источник сигналов; суб-политики хранятся
// в отдельных таблицах и всегда пишутся одной транзакцией.
type ChannelConfig struct {
	ID         string `json:"id" db:"id"` // uuid
	ChannelKey string `json:"channel_key" db:"channel_key"`
	TelegramID *int64 `json:"telegram_id,omitempty" db:"telegram_id"`
	IsActive   bool   `json:"is_active" db:"is_active"`

	// Риск-параметры
	RiskPerTrade            float64 `json:"risk_per_trade" db:"risk_per_trade"`
	RiskTolerance           float64 `json:"risk_tolerance" db:"risk_tolerance"`
	MagicNumber             int     `json:"magic_number" db:"magic_number"`
	MaxSlippagePoints       int     `json:"max_slippage_points" db:"max_slippage_points"`
	TradeMonitorIntervalSec float64 `json:"trade_monitor_interval_sec" db:"trade_monitor_interval_sec"`

	// Суб-политики
	TakeProfit     TakeProfitPolicy `json:"final_tp_policy"`
	RiskFree       RiskFreePolicy   `json:"riskfree_policy"`
	Cancel         CancelPolicy     `json:"cancel_policy"`
	Commands       CommandConfig    `json:"commands"`
	CircuitBreaker CircuitBreaker   `json:"circuit_breaker"`
	TrendFilter    TrendFilter      `json:"trend_filter"`

	Instruments []Instrument `json:"instruments"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// DefaultChannelConfig возвращает конфигурацию с безопасными значениями
// по умолчанию для нового канала
func DefaultChannelConfig(channelKey string) *ChannelConfig {
	return &ChannelConfig{
		ChannelKey:              channelKey,
		IsActive:                true,
		RiskPerTrade:            0.02,
		RiskTolerance:           0.10,
		MagicNumber:             123456,
		MaxSlippagePoints:       20,
		TradeMonitorIntervalSec: 0.5,
		TakeProfit: TakeProfitPolicy{
			Kind:    TPKindRatio,
			TPIndex: 1,
			RRRatio: 1.0,
		},
		RiskFree: RiskFreePolicy{
			Enabled: false,
			Kind:    RiskFreeKindPercent,
			TPIndex: 1,
			Pips:    10.0,
			Percent: 50.0,
		},
		Cancel: CancelPolicy{
			Enabled:        true,
			Kind:           CancelKindFinalTP,
			TPIndex:        1,
			Percent:        50.0,
			EnableForNow:   true,
			EnableForLimit: true,
			EnableForAuto:  true,
		},
		Commands: CommandConfig{
			EnableClose:       true,
			EnableCancelLimit: true,
			EnableRiskFree:    false,
			ClosePhrases:      []string{`\bclose (?:this|order)\b`, `\bremove for now\b`},
			CancelLimitPhrases: []string{
				`\bcancel (?:this|order)\b`, `\bcancel for now\b`,
			},
			RiskFreePhrases: []string{},
		},
		CircuitBreaker: CircuitBreaker{
			Enabled:         true,
			MaxDailyTrades:  100,
			MaxDailyLossPct: 10.0,
		},
		TrendFilter: TrendFilter{
			Enabled:           false,
			SwingStrength:     2,
			MinSwingsRequired: 2,
			EMAPeriod:         50,
			CandlesToFetch:    100,
			RequireAllThree:   false,
			LogDetails:        true,
		},
	}
}

// LogicalToBroker возвращает брокерский символ для логического символа сигнала
func (c *ChannelConfig) LogicalToBroker(logical string) (string, bool) {
	target := normalizeSymbol(logical)
	for _, ins := range c.Instruments {
		if normalizeSymbol(ins.LogicalSymbol) == target {
			return ins.BrokerSymbol, true
		}
	}
	return "", false
}

// GetInstrument возвращает инструмент по брокерскому символу
func (c *ChannelConfig) GetInstrument(brokerSymbol string) (Instrument, bool) {
	target := normalizeSymbol(brokerSymbol)
	for _, ins := range c.Instruments {
		if normalizeSymbol(ins.BrokerSymbol) == target {
			return ins, true
		}
	}
	return Instrument{}, false
}
