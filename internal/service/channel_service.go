package service

import (
	"errors"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"signalboard/internal/models"
)

// Ошибки валидации конфигурации канала
var (
	ErrChannelKeyEmpty      = errors.New("channel_key cannot be empty")
	ErrChannelKeyInvalid    = errors.New("channel_key must match [a-z0-9_-]")
	ErrInvalidRiskPerTrade  = errors.New("risk_per_trade must be in (0, 1]")
	ErrInvalidRiskTolerance = errors.New("risk_tolerance must be in (0, 1]")
	ErrInvalidPolicyKind    = errors.New("unknown policy kind")
	ErrInvalidTPIndex       = errors.New("tp_index must be >= 1")
	ErrInvalidInstrument    = errors.New("instrument symbols cannot be empty")
)

var channelKeyPattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

// ChannelService предоставляет бизнес-логику для управления каналами.
//
// Отвечает за:
// - Валидацию конфигурации перед записью (закрытые множества kind-ов,
//   диапазоны риск-параметров, непустые символы инструментов)
// - CRUD и мягкое включение/выключение каналов
// - Прямую рассылку изменений websocket-сессиям этого процесса
type ChannelService struct {
	channelRepo ChannelRepositoryInterface
	broadcaster ChangeBroadcaster
	log         *zap.Logger
}

// NewChannelService создает новый экземпляр ChannelService.
// broadcaster может быть nil: процесс без websocket-слоя рассылку пропускает.
func NewChannelService(channelRepo ChannelRepositoryInterface, broadcaster ChangeBroadcaster, log *zap.Logger) *ChannelService {
	return &ChannelService{
		channelRepo: channelRepo,
		broadcaster: broadcaster,
		log:         log,
	}
}

// GetChannel возвращает полную конфигурацию канала по uuid
func (s *ChannelService) GetChannel(id string) (*models.ChannelConfig, error) {
	return s.channelRepo.GetByID(id)
}

// GetChannelByKey возвращает полную конфигурацию канала по ключу
func (s *ChannelService) GetChannelByKey(channelKey string) (*models.ChannelConfig, error) {
	return s.channelRepo.GetByKey(channelKey)
}

// ListChannels возвращает все каналы (при activeOnly — только включенные)
func (s *ChannelService) ListChannels(activeOnly bool) ([]*models.ChannelConfig, error) {
	channels, err := s.channelRepo.GetAll(activeOnly)
	if err != nil {
		return nil, err
	}

	// Гарантируем возврат пустого массива вместо nil
	if channels == nil {
		channels = []*models.ChannelConfig{}
	}
	return channels, nil
}

// CreateChannel создает канал.
//
// Незаполненные суб-политики добиваются значениями по умолчанию,
// после чего конфигурация валидируется целиком. Возвращает конфигурацию,
// перечитанную из БД (с присвоенным uuid и таймстампами).
func (s *ChannelService) CreateChannel(cfg *models.ChannelConfig) (*models.ChannelConfig, error) {
	normalizeChannelConfig(cfg)
	applyPolicyDefaults(cfg)
	if err := validateChannelConfig(cfg); err != nil {
		return nil, err
	}

	id, err := s.channelRepo.Create(cfg)
	if err != nil {
		return nil, err
	}

	created, err := s.channelRepo.GetByID(id)
	if err != nil {
		return nil, err
	}

	s.log.Info("channel created",
		zap.String("channel_id", id),
		zap.String("channel_key", created.ChannelKey))
	s.broadcastChannel(models.ChangeEvent{
		Operation:  models.OpInsert,
		ID:         id,
		ChannelKey: created.ChannelKey,
	})
	return created, nil
}

// UpdateChannel перезаписывает конфигурацию канала.
// Конкурентные обновления разрешаются по last-writer-wins.
func (s *ChannelService) UpdateChannel(id string, cfg *models.ChannelConfig) (*models.ChannelConfig, error) {
	normalizeChannelConfig(cfg)
	applyPolicyDefaults(cfg)
	if err := validateChannelConfig(cfg); err != nil {
		return nil, err
	}

	if err := s.channelRepo.Update(id, cfg); err != nil {
		return nil, err
	}

	updated, err := s.channelRepo.GetByID(id)
	if err != nil {
		return nil, err
	}

	s.log.Info("channel updated",
		zap.String("channel_id", id),
		zap.String("channel_key", updated.ChannelKey))
	s.broadcastChannel(models.ChangeEvent{
		Operation:  models.OpUpdate,
		ID:         id,
		ChannelKey: updated.ChannelKey,
	})
	return updated, nil
}

// DeleteChannel удаляет канал вместе с историей его сделок
func (s *ChannelService) DeleteChannel(id string) error {
	// Ключ читается до удаления: событие DELETE несет channel_key,
	// чтобы подписчики сняли канал из кэша без обращения к БД
	cfg, err := s.channelRepo.GetByID(id)
	if err != nil {
		return err
	}

	if err := s.channelRepo.Delete(id); err != nil {
		return err
	}

	s.log.Info("channel deleted",
		zap.String("channel_id", id),
		zap.String("channel_key", cfg.ChannelKey))
	s.broadcastChannel(models.ChangeEvent{
		Operation:  models.OpDelete,
		ID:         id,
		ChannelKey: cfg.ChannelKey,
	})
	return nil
}

// SetChannelActive включает/выключает канал без изменения конфигурации
func (s *ChannelService) SetChannelActive(id string, active bool) (*models.ChannelConfig, error) {
	if err := s.channelRepo.SetActive(id, active); err != nil {
		return nil, err
	}

	updated, err := s.channelRepo.GetByID(id)
	if err != nil {
		return nil, err
	}

	s.log.Info("channel toggled",
		zap.String("channel_id", id), zap.Bool("is_active", active))
	s.broadcastChannel(models.ChangeEvent{
		Operation:  models.OpUpdate,
		ID:         id,
		ChannelKey: updated.ChannelKey,
	})
	return updated, nil
}

// broadcastChannel шлет websocket-сессиям то же id-only событие, что
// репозиторий публикует в NOTIFY: оба пути доставки неотличимы для
// подписчика, полное состояние он перечитывает сам
func (s *ChannelService) broadcastChannel(ev models.ChangeEvent) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.BroadcastChannelUpdate(ev.Operation, ev)
}

// normalizeChannelConfig приводит ключ к каноническому виду
func normalizeChannelConfig(cfg *models.ChannelConfig) {
	cfg.ChannelKey = strings.ToLower(strings.TrimSpace(cfg.ChannelKey))
}

// applyPolicyDefaults добивает незаполненные kind-ы значениями по умолчанию,
// чтобы частичный запрос от дашборда не падал на валидации
func applyPolicyDefaults(cfg *models.ChannelConfig) {
	def := models.DefaultChannelConfig(cfg.ChannelKey)

	if cfg.TakeProfit.Kind == "" {
		cfg.TakeProfit = def.TakeProfit
	}
	if cfg.RiskFree.Kind == "" {
		cfg.RiskFree = def.RiskFree
	}
	if cfg.Cancel.Kind == "" {
		cfg.Cancel = def.Cancel
	}
	if cfg.RiskPerTrade == 0 {
		cfg.RiskPerTrade = def.RiskPerTrade
	}
	if cfg.RiskTolerance == 0 {
		cfg.RiskTolerance = def.RiskTolerance
	}
	if cfg.MagicNumber == 0 {
		cfg.MagicNumber = def.MagicNumber
	}
	if cfg.MaxSlippagePoints == 0 {
		cfg.MaxSlippagePoints = def.MaxSlippagePoints
	}
	if cfg.TradeMonitorIntervalSec == 0 {
		cfg.TradeMonitorIntervalSec = def.TradeMonitorIntervalSec
	}
	if cfg.CircuitBreaker.MaxDailyTrades == 0 {
		cfg.CircuitBreaker = def.CircuitBreaker
	}
	if cfg.TrendFilter.SwingStrength == 0 {
		cfg.TrendFilter = def.TrendFilter
	}
}

func validateChannelConfig(cfg *models.ChannelConfig) error {
	if cfg.ChannelKey == "" {
		return ErrChannelKeyEmpty
	}
	if !channelKeyPattern.MatchString(cfg.ChannelKey) {
		return ErrChannelKeyInvalid
	}
	if cfg.RiskPerTrade <= 0 || cfg.RiskPerTrade > 1 {
		return ErrInvalidRiskPerTrade
	}
	if cfg.RiskTolerance <= 0 || cfg.RiskTolerance > 1 {
		return ErrInvalidRiskTolerance
	}

	if !models.ValidTPKind(cfg.TakeProfit.Kind) {
		return ErrInvalidPolicyKind
	}
	if !models.ValidRiskFreeKind(cfg.RiskFree.Kind) {
		return ErrInvalidPolicyKind
	}
	if !models.ValidCancelKind(cfg.Cancel.Kind) {
		return ErrInvalidPolicyKind
	}
	if cfg.TakeProfit.TPIndex < 1 || cfg.RiskFree.TPIndex < 1 || cfg.Cancel.TPIndex < 1 {
		return ErrInvalidTPIndex
	}

	for _, ins := range cfg.Instruments {
		if strings.TrimSpace(ins.LogicalSymbol) == "" || strings.TrimSpace(ins.BrokerSymbol) == "" {
			return ErrInvalidInstrument
		}
	}
	return nil
}
