package service

import (
	"fmt"
	"time"

	"signalboard/internal/models"
	"signalboard/internal/repository"
)

// ============ Mock ChannelRepository ============

type MockChannelRepository struct {
	channels  map[string]*models.ChannelConfig
	createErr error
	getErr    error
	updateErr error
	deleteErr error
	nextID    int
}

func NewMockChannelRepository() *MockChannelRepository {
	return &MockChannelRepository{
		channels: make(map[string]*models.ChannelConfig),
		nextID:   1,
	}
}

func (m *MockChannelRepository) GetByID(id string) (*models.ChannelConfig, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if cfg, ok := m.channels[id]; ok {
		return cfg, nil
	}
	return nil, repository.ErrChannelNotFound
}

func (m *MockChannelRepository) GetByKey(channelKey string) (*models.ChannelConfig, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	for _, cfg := range m.channels {
		if cfg.ChannelKey == channelKey {
			return cfg, nil
		}
	}
	return nil, repository.ErrChannelNotFound
}

func (m *MockChannelRepository) GetAll(activeOnly bool) ([]*models.ChannelConfig, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	var result []*models.ChannelConfig
	for _, cfg := range m.channels {
		if activeOnly && !cfg.IsActive {
			continue
		}
		result = append(result, cfg)
	}
	return result, nil
}

func (m *MockChannelRepository) Create(cfg *models.ChannelConfig) (string, error) {
	if m.createErr != nil {
		return "", m.createErr
	}
	for _, existing := range m.channels {
		if existing.ChannelKey == cfg.ChannelKey {
			return "", repository.ErrChannelExists
		}
	}
	id := fmt.Sprintf("chan-%d", m.nextID)
	m.nextID++

	stored := *cfg
	stored.ID = id
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	m.channels[id] = &stored
	return id, nil
}

func (m *MockChannelRepository) Update(id string, cfg *models.ChannelConfig) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.channels[id]; !ok {
		return repository.ErrChannelNotFound
	}
	stored := *cfg
	stored.ID = id
	stored.UpdatedAt = time.Now()
	m.channels[id] = &stored
	return nil
}

func (m *MockChannelRepository) Delete(id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.channels[id]; !ok {
		return repository.ErrChannelNotFound
	}
	delete(m.channels, id)
	return nil
}

func (m *MockChannelRepository) SetActive(id string, active bool) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	cfg, ok := m.channels[id]
	if !ok {
		return repository.ErrChannelNotFound
	}
	cfg.IsActive = active
	return nil
}

func (m *MockChannelRepository) SetTelegramID(id string, telegramID int64) error {
	cfg, ok := m.channels[id]
	if !ok {
		return repository.ErrChannelNotFound
	}
	cfg.TelegramID = &telegramID
	return nil
}

// ============ Mock TradeRepository ============

type MockTradeRepository struct {
	trades     map[string]*models.TradeRecord
	reasons    map[string][]models.DeclineReason
	recordErr  error
	findErr    error
	nextRowID  int64
	lastParams repository.CloseParams
}

func NewMockTradeRepository() *MockTradeRepository {
	return &MockTradeRepository{
		trades:    make(map[string]*models.TradeRecord),
		reasons:   make(map[string][]models.DeclineReason),
		nextRowID: 1,
	}
}

func (m *MockTradeRepository) RecordParsed(t *models.TradeRecord) (string, error) {
	if m.recordErr != nil {
		return "", m.recordErr
	}
	if t.TradeID == "" {
		t.TradeID = models.GenerateTradeID(t.ChannelName, t.MsgID, time.Now())
	}
	if _, exists := m.trades[t.TradeID]; exists {
		return "", repository.ErrTradeExists
	}
	stored := *t
	stored.ID = m.nextRowID
	m.nextRowID++
	stored.Status = models.StatusParsed
	if stored.SignalTime.IsZero() {
		stored.SignalTime = time.Now()
	}
	stored.CreatedAt = time.Now()
	m.trades[stored.TradeID] = &stored
	return stored.TradeID, nil
}

func (m *MockTradeRepository) get(tradeID string) (*models.TradeRecord, error) {
	t, ok := m.trades[tradeID]
	if !ok {
		return nil, repository.ErrTradeNotFound
	}
	return t, nil
}

func (m *MockTradeRepository) RecordOrderPlaced(tradeID string, orderType models.OrderType, ticket int64, lotSize, riskAmount, riskPercent float64) error {
	if m.recordErr != nil {
		return m.recordErr
	}
	t, err := m.get(tradeID)
	if err != nil {
		return err
	}
	if t.Status != models.StatusParsed {
		return nil
	}
	if orderType == models.OrderLimit {
		t.Status = models.StatusPending
	} else {
		t.Status = models.StatusActive
	}
	t.OrderType = orderType
	t.Ticket = &ticket
	t.LotSize = &lotSize
	t.RiskAmount = &riskAmount
	t.RiskPercent = &riskPercent
	return nil
}

func (m *MockTradeRepository) RecordFilled(tradeID string, actualEntryPrice float64) error {
	t, err := m.get(tradeID)
	if err != nil {
		return err
	}
	if t.Status != models.StatusPending {
		return nil
	}
	t.Status = models.StatusActive
	t.ActualEntryPrice = &actualEntryPrice
	return nil
}

func (m *MockTradeRepository) RecordBreakevenMoved(tradeID string) error {
	t, err := m.get(tradeID)
	if err != nil {
		return err
	}
	if t.Status != models.StatusActive || t.BEMovedAt != nil {
		return nil
	}
	now := time.Now()
	t.BEMovedAt = &now
	return nil
}

func (m *MockTradeRepository) RecordCanceled(tradeID, notes string) error {
	t, err := m.get(tradeID)
	if err != nil {
		return err
	}
	if t.Status != models.StatusPending {
		return nil
	}
	t.Status = models.StatusCanceled
	t.Outcome = models.OutcomeCanceled
	t.Notes = notes
	return nil
}

func (m *MockTradeRepository) RecordBlocked(tradeID string, reasons []models.DeclineReason) error {
	t, err := m.get(tradeID)
	if err != nil {
		return err
	}
	if t.Status != models.StatusParsed {
		return nil
	}
	t.Status = models.StatusBlocked
	t.Outcome = models.OutcomeBlocked
	m.reasons[tradeID] = reasons
	return nil
}

func (m *MockTradeRepository) RecordDeclined(tradeID string, reasons []models.DeclineReason) error {
	t, err := m.get(tradeID)
	if err != nil {
		return err
	}
	if models.IsTerminal(t.Status) {
		return nil
	}
	t.Status = models.StatusDeclined
	t.Outcome = models.OutcomeBlocked
	m.reasons[tradeID] = reasons
	return nil
}

func (m *MockTradeRepository) RecordClosed(tradeID string, p repository.CloseParams) error {
	t, err := m.get(tradeID)
	if err != nil {
		return err
	}
	if t.Status != models.StatusActive {
		return nil
	}
	m.lastParams = p
	t.Status = models.StatusClosed
	t.Outcome = models.ClassifyOutcome(p.ProfitLoss)
	t.ClosePrice = &p.ClosePrice
	t.ProfitLoss = &p.ProfitLoss
	return nil
}

func (m *MockTradeRepository) FindByTradeID(tradeID string) (*models.TradeRecord, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.get(tradeID)
}

func (m *MockTradeRepository) FindByTicket(ticket int64) (*models.TradeRecord, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	for _, t := range m.trades {
		if t.Ticket != nil && *t.Ticket == ticket {
			return t, nil
		}
	}
	return nil, repository.ErrTradeNotFound
}

func (m *MockTradeRepository) FindByMessageID(channelID string, msgID int64) (*models.TradeRecord, error) {
	for _, t := range m.trades {
		if t.ChannelID != nil && *t.ChannelID == channelID && t.MsgID == msgID {
			return t, nil
		}
	}
	return nil, repository.ErrTradeNotFound
}

func (m *MockTradeRepository) QueryByRange(start, end time.Time, f repository.TradeFilter) ([]*models.TradeRecord, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	var result []*models.TradeRecord
	for _, t := range m.trades {
		if t.SignalTime.Before(start) || !t.SignalTime.Before(end) {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		result = append(result, t)
	}
	return result, nil
}

func (m *MockTradeRepository) GetDeclineReasons(tradeRowID int64) ([]models.DeclineReason, error) {
	for tradeID, t := range m.trades {
		if t.ID == tradeRowID {
			return m.reasons[tradeID], nil
		}
	}
	return nil, nil
}

// ============ Mock StatsRepository ============

type MockStatsRepository struct {
	daily    *models.DailyStats
	summary  *models.SummaryStats
	statsErr error

	lastDayStart   time.Time
	lastDayEnd     time.Time
	lastPeriodDays int
	lastChannelID  string
}

func (m *MockStatsRepository) GetDailyStats(dayStart, dayEnd time.Time, channelID string) (*models.DailyStats, error) {
	if m.statsErr != nil {
		return nil, m.statsErr
	}
	m.lastDayStart = dayStart
	m.lastDayEnd = dayEnd
	m.lastChannelID = channelID
	if m.daily != nil {
		return m.daily, nil
	}
	return &models.DailyStats{Date: dayStart.Format("2006-01-02")}, nil
}

func (m *MockStatsRepository) GetSummaryStats(periodDays int, channelID string) (*models.SummaryStats, error) {
	if m.statsErr != nil {
		return nil, m.statsErr
	}
	m.lastPeriodDays = periodDays
	m.lastChannelID = channelID
	if m.summary != nil {
		return m.summary, nil
	}
	return &models.SummaryStats{PeriodDays: periodDays}, nil
}

// ============ Mock ChangeBroadcaster ============

type broadcastCall struct {
	kind      string // "channel" | "trade"
	operation string
	data      interface{}
}

type MockBroadcaster struct {
	calls []broadcastCall
}

func (m *MockBroadcaster) BroadcastChannelUpdate(operation string, data interface{}) {
	m.calls = append(m.calls, broadcastCall{kind: "channel", operation: operation, data: data})
}

func (m *MockBroadcaster) BroadcastTradeUpdate(operation string, data interface{}) {
	m.calls = append(m.calls, broadcastCall{kind: "trade", operation: operation, data: data})
}

func (m *MockBroadcaster) lastCall() *broadcastCall {
	if len(m.calls) == 0 {
		return nil
	}
	return &m.calls[len(m.calls)-1]
}
