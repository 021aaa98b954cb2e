package notify

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"signalboard/internal/models"
)

// Состояния слушателя
type ListenerState string

const (
	StateDisconnected ListenerState = "disconnected"
	StateConnecting   ListenerState = "connecting"
	StateSubscribed   ListenerState = "subscribed"
)

// Значения по умолчанию для цикла ожидания
const (
	DefaultPollTimeout    = 5 * time.Second
	DefaultReconnectDelay = 5 * time.Second
)

// Callback вызывается синхронно на каждое событие топика, в порядке регистрации
type Callback func(models.ChangeEvent)

// Listener — долгоживущий подписчик LISTEN/NOTIFY.
//
// Держит выделенное соединение с БД (не из общего пула: блокирующий LISTEN
// не должен занимать соединения API-обработчиков), подписывается на
// фиксированный набор топиков и раздает события зарегистрированным
// callback-ам. При потере соединения переподключается сам с фиксированной
// задержкой; работает до явного Stop().
type Listener struct {
	dsn            string
	pollTimeout    time.Duration
	reconnectDelay time.Duration
	log            *zap.Logger

	mu        sync.RWMutex
	callbacks map[models.ChangeTopic][]Callback
	state     ListenerState

	pql  *pq.Listener
	quit chan struct{}
	done chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewListener создает слушатель. Соединение устанавливается в Start().
func NewListener(dsn string, pollTimeout, reconnectDelay time.Duration, log *zap.Logger) *Listener {
	if pollTimeout <= 0 {
		pollTimeout = DefaultPollTimeout
	}
	if reconnectDelay <= 0 {
		reconnectDelay = DefaultReconnectDelay
	}
	return &Listener{
		dsn:            dsn,
		pollTimeout:    pollTimeout,
		reconnectDelay: reconnectDelay,
		log:            log,
		callbacks:      make(map[models.ChangeTopic][]Callback),
		state:          StateDisconnected,
		quit:           make(chan struct{}),
		done:           make(chan struct{}),
	}
}

// Subscribe регистрирует callback для топика. Безопасно в любой момент,
// в том числе после Start().
func (l *Listener) Subscribe(topic models.ChangeTopic, cb Callback) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.callbacks[topic] = append(l.callbacks[topic], cb)
}

// State возвращает текущее состояние соединения (для /health)
func (l *Listener) State() ListenerState {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

func (l *Listener) setState(s ListenerState) {
	l.mu.Lock()
	l.state = s
	l.mu.Unlock()
}

// Start открывает выделенное соединение, подписывается на все топики
// и запускает цикл ожидания в отдельной горутине. Повторные вызовы — no-op.
func (l *Listener) Start() {
	l.startOnce.Do(func() {
		l.setState(StateConnecting)
		l.pql = pq.NewListener(l.dsn, l.reconnectDelay, l.reconnectDelay, l.handleConnEvent)
		go l.run()
	})
}

// handleConnEvent получает события соединения от pq и обновляет состояние
func (l *Listener) handleConnEvent(ev pq.ListenerEventType, err error) {
	switch ev {
	case pq.ListenerEventConnected:
		l.setState(StateSubscribed)
		l.log.Info("change listener connected")
	case pq.ListenerEventReconnected:
		l.setState(StateSubscribed)
		ListenerReconnects.Inc()
		l.log.Info("change listener reconnected")
	case pq.ListenerEventDisconnected:
		l.setState(StateDisconnected)
		l.log.Warn("change listener disconnected", zap.Error(err))
	case pq.ListenerEventConnectionAttemptFailed:
		l.setState(StateConnecting)
		l.log.Warn("change listener connection attempt failed", zap.Error(err))
	}
}

// run — главный цикл: подписка на топики и ожидание уведомлений
func (l *Listener) run() {
	defer close(l.done)

	// Listen блокируется до установления соединения, поэтому подписка
	// выполняется уже внутри горутины
	if !l.subscribeAll(func(topic string) error { return l.pql.Listen(topic) }) {
		return
	}
	l.log.Info("change listener subscribed",
		zap.Strings("topics", topicNames()),
		zap.Duration("poll_timeout", l.pollTimeout))

	ticker := time.NewTicker(l.pollTimeout)
	defer ticker.Stop()

	for {
		select {
		case <-l.quit:
			return

		case n, ok := <-l.pql.Notify:
			if !ok {
				// Close() закрыл канал уведомлений
				return
			}
			if n == nil {
				// pq присылает nil после переподключения: уведомления могли
				// быть потеряны, подписчики должны перечитать состояние
				l.log.Warn("listener reconnected, events may have been missed")
				continue
			}
			l.dispatch(n.Channel, n.Extra)

		case <-ticker.C:
			// Кооперативный heartbeat: таймаут ожидания — не ошибка.
			// Ping в отдельной горутине, чтобы не блокировать цикл
			go func() {
				if err := l.pql.Ping(); err != nil {
					l.log.Warn("listener ping failed", zap.Error(err))
				}
			}()
		}
	}
}

// subscribeAll подписывается на все топики, повторяя неудавшийся Listen
// с фиксированной задержкой: временная ошибка подписки не должна
// навсегда оставлять слушатель глухим. Возвращает false, если во время
// ожидания пришел Stop().
func (l *Listener) subscribeAll(listen func(topic string) error) bool {
	for _, topic := range models.AllTopics() {
		for {
			err := listen(string(topic))
			if err == nil || err == pq.ErrChannelAlreadyOpen {
				break
			}
			l.log.Error("listen failed, retrying",
				zap.String("topic", string(topic)),
				zap.Duration("retry_in", l.reconnectDelay),
				zap.Error(err))
			select {
			case <-l.quit:
				return false
			case <-time.After(l.reconnectDelay):
			}
		}
	}
	return true
}

// dispatch разбирает полезную нагрузку и вызывает callback-и топика
// синхронно, в порядке регистрации. Паника в callback-е изолируется
// и не мешает остальным callback-ам и последующим событиям.
func (l *Listener) dispatch(channel, payload string) {
	topic := models.ChangeTopic(channel)
	NotificationsReceived.WithLabelValues(channel).Inc()

	var ev models.ChangeEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		l.log.Warn("malformed notification payload",
			zap.String("topic", channel), zap.String("payload", payload), zap.Error(err))
		return
	}
	ev.Topic = topic

	l.mu.RLock()
	cbs := make([]Callback, len(l.callbacks[topic]))
	copy(cbs, l.callbacks[topic])
	l.mu.RUnlock()

	start := time.Now()
	for _, cb := range cbs {
		l.invoke(topic, cb, ev)
	}
	DispatchDuration.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
}

func (l *Listener) invoke(topic models.ChangeTopic, cb Callback, ev models.ChangeEvent) {
	defer func() {
		if r := recover(); r != nil {
			CallbackErrors.WithLabelValues(string(topic)).Inc()
			l.log.Error("listener callback panic",
				zap.String("topic", string(topic)),
				zap.String("operation", ev.Operation),
				zap.Any("panic", r))
		}
	}()
	cb(ev)
}

// Stop останавливает цикл и закрывает выделенное соединение.
// Безопасен из любой горутины; возвращается в пределах таймаута ожидания.
func (l *Listener) Stop() error {
	var err error
	l.stopOnce.Do(func() {
		close(l.quit)
		if l.pql != nil {
			// Close закрывает канал Notify и разблокирует текущий wait
			err = l.pql.Close()
			select {
			case <-l.done:
			case <-time.After(l.pollTimeout + 2*time.Second):
				err = fmt.Errorf("listener loop did not stop in time")
			}
		}
		l.setState(StateDisconnected)
		l.log.Info("change listener stopped")
	})
	return err
}

func topicNames() []string {
	topics := models.AllTopics()
	names := make([]string, len(topics))
	for i, t := range topics {
		names[i] = string(t)
	}
	return names
}
