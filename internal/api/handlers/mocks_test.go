package handlers

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"signalboard/internal/models"
	"signalboard/internal/notify"
	"signalboard/internal/repository"
	"signalboard/internal/service"
)

// ErrMockDatabase имитирует внутреннюю ошибку хранилища
var ErrMockDatabase = errors.New("mock database error")

// ============ Mock Channel Service ============

// MockChannelService мок для ChannelServiceInterface
type MockChannelService struct {
	channels map[string]*models.ChannelConfig // id -> config
	err      error
	nextID   int
	mu       sync.RWMutex
}

// NewMockChannelService создает новый мок сервиса каналов
func NewMockChannelService() *MockChannelService {
	return &MockChannelService{
		channels: make(map[string]*models.ChannelConfig),
		nextID:   1,
	}
}

// SetError заставляет все операции возвращать err
func (m *MockChannelService) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Seed добавляет канал напрямую, минуя валидацию
func (m *MockChannelService) Seed(cfg *models.ChannelConfig) *models.ChannelConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cfg.ID == "" {
		cfg.ID = fmt.Sprintf("chan-%d", m.nextID)
		m.nextID++
	}
	m.channels[cfg.ID] = cfg
	return cfg
}

func (m *MockChannelService) GetChannel(id string) (*models.ChannelConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	cfg, ok := m.channels[id]
	if !ok {
		return nil, repository.ErrChannelNotFound
	}
	return cfg, nil
}

func (m *MockChannelService) GetChannelByKey(channelKey string) (*models.ChannelConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, cfg := range m.channels {
		if cfg.ChannelKey == channelKey {
			return cfg, nil
		}
	}
	return nil, repository.ErrChannelNotFound
}

func (m *MockChannelService) ListChannels(activeOnly bool) ([]*models.ChannelConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]*models.ChannelConfig, 0, len(m.channels))
	for _, cfg := range m.channels {
		if activeOnly && !cfg.IsActive {
			continue
		}
		out = append(out, cfg)
	}
	return out, nil
}

func (m *MockChannelService) CreateChannel(cfg *models.ChannelConfig) (*models.ChannelConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if cfg.ChannelKey == "" {
		return nil, service.ErrChannelKeyEmpty
	}
	for _, existing := range m.channels {
		if existing.ChannelKey == cfg.ChannelKey {
			return nil, repository.ErrChannelExists
		}
	}
	cfg.ID = fmt.Sprintf("chan-%d", m.nextID)
	m.nextID++
	m.channels[cfg.ID] = cfg
	return cfg, nil
}

func (m *MockChannelService) UpdateChannel(id string, cfg *models.ChannelConfig) (*models.ChannelConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if _, ok := m.channels[id]; !ok {
		return nil, repository.ErrChannelNotFound
	}
	cfg.ID = id
	m.channels[id] = cfg
	return cfg, nil
}

func (m *MockChannelService) DeleteChannel(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.channels[id]; !ok {
		return repository.ErrChannelNotFound
	}
	delete(m.channels, id)
	return nil
}

func (m *MockChannelService) SetChannelActive(id string, active bool) (*models.ChannelConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	cfg, ok := m.channels[id]
	if !ok {
		return nil, repository.ErrChannelNotFound
	}
	cfg.IsActive = active
	return cfg, nil
}

// ============ Mock Trade Service ============

// MockTradeService мок для TradeServiceInterface
type MockTradeService struct {
	trades map[string]*models.TradeRecord // trade_id -> record
	err    error
	mu     sync.RWMutex

	lastEvent *service.TradeEvent
}

// NewMockTradeService создает новый мок сервиса сделок
func NewMockTradeService() *MockTradeService {
	return &MockTradeService{
		trades: make(map[string]*models.TradeRecord),
	}
}

// SetError заставляет все операции возвращать err
func (m *MockTradeService) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Seed добавляет сделку напрямую
func (m *MockTradeService) Seed(t *models.TradeRecord) *models.TradeRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades[t.TradeID] = t
	return t
}

func (m *MockTradeService) RecordSignal(t *models.TradeRecord) (*models.TradeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if t.Symbol == "" {
		return nil, service.ErrSymbolEmpty
	}
	t.TradeID = models.GenerateTradeID(t.ChannelName, t.MsgID, time.Now())
	if _, exists := m.trades[t.TradeID]; exists {
		return nil, repository.ErrTradeExists
	}
	t.Status = models.StatusParsed
	m.trades[t.TradeID] = t
	return t, nil
}

func (m *MockTradeService) ApplyEvent(tradeID string, ev *service.TradeEvent) (*models.TradeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.lastEvent = ev
	trade, ok := m.trades[tradeID]
	if !ok {
		return nil, repository.ErrTradeNotFound
	}
	switch ev.Type {
	case service.EventOrderPlaced:
		trade.Status = models.StatusActive
	case service.EventClosed:
		trade.Status = models.StatusClosed
	case service.EventCanceled:
		trade.Status = models.StatusCanceled
	default:
		return nil, service.ErrUnknownEventType
	}
	return trade, nil
}

func (m *MockTradeService) GetTrade(ref string) (*models.TradeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	if ticket, err := strconv.ParseInt(ref, 10, 64); err == nil {
		for _, trade := range m.trades {
			if trade.Ticket != nil && *trade.Ticket == ticket {
				return trade, nil
			}
		}
		return nil, repository.ErrTradeNotFound
	}
	trade, ok := m.trades[ref]
	if !ok {
		return nil, repository.ErrTradeNotFound
	}
	return trade, nil
}

func (m *MockTradeService) ListTrades(date, channelID, status string, limit int) ([]*models.TradeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	if date != "" {
		if _, err := time.Parse("2006-01-02", date); err != nil {
			return nil, service.ErrInvalidDate
		}
	}
	out := make([]*models.TradeRecord, 0, len(m.trades))
	for _, trade := range m.trades {
		if status != "" && string(trade.Status) != status {
			continue
		}
		out = append(out, trade)
	}
	return out, nil
}

// ============ Mock Stats Service ============

// MockStatsService мок для StatsServiceInterface
type MockStatsService struct {
	daily   *models.DailyStats
	summary *models.SummaryStats
	err     error
	mu      sync.RWMutex

	lastDate       string
	lastPeriodDays int
	lastChannelID  string
}

// NewMockStatsService создает новый мок сервиса статистики
func NewMockStatsService() *MockStatsService {
	return &MockStatsService{
		daily:   &models.DailyStats{},
		summary: &models.SummaryStats{},
	}
}

// SetError заставляет все операции возвращать err
func (m *MockStatsService) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *MockStatsService) GetDailyStats(date, channelID string) (*models.DailyStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.lastDate = date
	m.lastChannelID = channelID
	return m.daily, nil
}

func (m *MockStatsService) GetSummaryStats(periodDays int, channelID string) (*models.SummaryStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	m.lastPeriodDays = periodDays
	m.lastChannelID = channelID
	return m.summary, nil
}

// ============ Mock Listener Status ============

// MockListenerStatus мок для ListenerStatus
type MockListenerStatus struct {
	state notify.ListenerState
}

func (m *MockListenerStatus) State() notify.ListenerState {
	return m.state
}

// MockSessionCounter мок для SessionCounter
type MockSessionCounter struct {
	clients int
}

func (m *MockSessionCounter) ClientCount() int {
	return m.clients
}
