package mirror

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"signalboard/internal/models"
	"signalboard/internal/notify"
	"signalboard/internal/repository"
	"signalboard/pkg/retry"
)

// Таймаут на одну перечитку конфигурации (включая retry)
const refreshTimeout = 30 * time.Second

// ChannelSource - источник конфигураций каналов (репозиторий)
type ChannelSource interface {
	GetAll(activeOnly bool) ([]*models.ChannelConfig, error)
	GetByID(id string) (*models.ChannelConfig, error)
}

// Mirror - in-memory копия конфигураций каналов на стороне бота.
//
// Бот читает политику канала на каждый входящий сигнал, поэтому ходить
// в БД за ней нельзя. Mirror держит все конфигурации в памяти и
// обновляет их по событиям change listener-а: payload события несет
// только id и channel_key, актуальное состояние всегда перечитывается
// из БД (уведомления могут теряться при переподключении, поэтому
// они трактуются как подсказки, а не как источник данных).
type Mirror struct {
	source ChannelSource
	log    *zap.Logger

	mu    sync.RWMutex
	byKey map[string]*models.ChannelConfig
	keyOf map[string]string // id -> channel_key

	refresh retry.Config
}

// NewMirror создает пустой mirror. Начальное состояние загружается LoadAll().
func NewMirror(source ChannelSource, log *zap.Logger) *Mirror {
	cfg := retry.NetworkConfig()
	cfg.RetryIf = func(err error) bool {
		// Повторяем только проблемы доступности; "канал не найден" -
		// валидный ответ (канал удалили между событием и перечиткой)
		return repository.IsUnavailable(err)
	}

	return &Mirror{
		source:  source,
		log:     log,
		byKey:   make(map[string]*models.ChannelConfig),
		keyOf:   make(map[string]string),
		refresh: cfg,
	}
}

// LoadAll загружает все каналы (включая выключенные: выключенный канал
// должен отбрасывать сигналы осознанно, а не как неизвестный)
func (m *Mirror) LoadAll(ctx context.Context) error {
	channels, err := retry.DoWithResult(ctx, func() ([]*models.ChannelConfig, error) {
		return m.source.GetAll(false)
	}, m.refresh)
	if err != nil {
		return err
	}

	byKey := make(map[string]*models.ChannelConfig, len(channels))
	keyOf := make(map[string]string, len(channels))
	for _, ch := range channels {
		byKey[ch.ChannelKey] = ch
		keyOf[ch.ID] = ch.ChannelKey
	}

	m.mu.Lock()
	m.byKey = byKey
	m.keyOf = keyOf
	m.mu.Unlock()

	ChannelsMirrored.Set(float64(len(byKey)))
	m.log.Info("channel mirror loaded", zap.Int("channels", len(byKey)))
	return nil
}

// Get возвращает конфигурацию по channel_key
func (m *Mirror) Get(channelKey string) (*models.ChannelConfig, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg, ok := m.byKey[channelKey]
	return cfg, ok
}

// All возвращает снимок всех конфигураций
func (m *Mirror) All() []*models.ChannelConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*models.ChannelConfig, 0, len(m.byKey))
	for _, cfg := range m.byKey {
		out = append(out, cfg)
	}
	return out
}

// Len возвращает количество каналов в mirror
func (m *Mirror) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.byKey)
}

// Bind подписывает mirror на события каналов и конфигураций
func (m *Mirror) Bind(listener *notify.Listener) {
	listener.Subscribe(models.TopicChannelChanges, m.HandleChange)
	listener.Subscribe(models.TopicConfigChanges, m.HandleChange)
}

// HandleChange применяет событие изменения к in-memory копии
func (m *Mirror) HandleChange(ev models.ChangeEvent) {
	switch ev.Operation {
	case models.OpDelete:
		m.remove(ev)
	case models.OpInsert, models.OpUpdate, models.OpConfigUpdate:
		m.refetch(ev)
	default:
		m.log.Warn("unknown change operation",
			zap.String("topic", string(ev.Topic)),
			zap.String("operation", ev.Operation))
	}
}

func (m *Mirror) remove(ev models.ChangeEvent) {
	m.mu.Lock()
	key := ev.ChannelKey
	if key == "" {
		key = m.keyOf[ev.ID]
	}
	delete(m.byKey, key)
	delete(m.keyOf, ev.ID)
	total := len(m.byKey)
	m.mu.Unlock()

	ChannelsMirrored.Set(float64(total))
	m.log.Info("channel removed from mirror",
		zap.String("channel_key", key), zap.Int("channels", total))
}

// refetch перечитывает канал из БД и кладет в mirror.
// Временная недоступность БД ретраится с backoff-ом.
func (m *Mirror) refetch(ev models.ChangeEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	cfg, err := retry.DoWithResult(ctx, func() (*models.ChannelConfig, error) {
		return m.source.GetByID(ev.ID)
	}, m.refresh)
	if errors.Is(err, repository.ErrChannelNotFound) {
		// Канал успели удалить: DELETE либо уже пришел, либо на подходе
		m.remove(ev)
		return
	}
	if err != nil {
		RefreshFailures.Inc()
		m.log.Error("channel refresh failed",
			zap.String("id", ev.ID),
			zap.String("operation", ev.Operation),
			zap.Error(err))
		return
	}

	m.mu.Lock()
	// channel_key мог измениться: убираем запись под старым ключом
	if oldKey, ok := m.keyOf[cfg.ID]; ok && oldKey != cfg.ChannelKey {
		delete(m.byKey, oldKey)
	}
	m.byKey[cfg.ChannelKey] = cfg
	m.keyOf[cfg.ID] = cfg.ChannelKey
	total := len(m.byKey)
	m.mu.Unlock()

	ChannelsMirrored.Set(float64(total))
	m.log.Info("channel mirror refreshed",
		zap.String("channel_key", cfg.ChannelKey),
		zap.String("operation", ev.Operation))
}
