package websocket

import (
	"bytes"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

// json-iterator быстрее encoding/json на горячем пути рассылки
var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Пул буферов сериализации: убирает аллокации на каждый Broadcast
var jsonBufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 512))
	},
}

// Hub управляет всеми активными WebSocket соединениями.
//
// Центральный fan-out: одно изменение (канал, конфигурация, сделка)
// рассылается всем подключенным сессиям дашборда. Источники сообщений:
// - сервисы этого процесса (прямой путь после мутации через API)
// - слушатель LISTEN/NOTIFY (изменения из других процессов)
// Сессии, не успевающие читать, отключаются, а не тормозят остальных.
type Hub struct {
	// Зарегистрированные сессии
	clients map[*Client]bool

	// Broadcast канал сериализованных сообщений
	broadcast chan []byte

	// Регистрация новой сессии
	register chan *Client

	// Отмена регистрации сессии
	unregister chan *Client

	// Остановка главного цикла
	quit chan struct{}
	done chan struct{}

	log *zap.Logger

	// Mutex для потокобезопасного доступа к clients
	mu sync.RWMutex

	stopOnce sync.Once
}

// NewHub создает новый Hub
func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		quit:       make(chan struct{}),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run запускает главный цикл Hub.
//
// Должен запускаться в отдельной горутине: go hub.Run()
// Обрабатывает регистрацию, отмену регистрации и broadcast.
//
// Рассылка идет по копии списка сессий без блокировки, медленные
// сессии помечаются и удаляются под write-lock после рассылки.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.quit:
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			ClientsConnected.Set(float64(total))
			h.log.Info("websocket session connected", zap.Int("total", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			ClientsConnected.Set(float64(total))
			h.log.Info("websocket session disconnected", zap.Int("total", total))

		case message := <-h.broadcast:
			// Копируем список сессий под коротким RLock
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			// Отправляем без блокировки (не тормозим register/unregister)
			var toRemove []*Client
			for _, client := range clients {
				select {
				case client.send <- message:
				default:
					// Буфер сессии переполнен
					toRemove = append(toRemove, client)
				}
			}

			if len(toRemove) > 0 {
				h.mu.Lock()
				for _, client := range toRemove {
					if _, ok := h.clients[client]; ok {
						delete(h.clients, client)
						close(client.send)
					}
				}
				total := len(h.clients)
				h.mu.Unlock()
				ClientsConnected.Set(float64(total))
				SlowClientsDropped.Add(float64(len(toRemove)))
				h.log.Warn("dropped slow websocket sessions",
					zap.Int("dropped", len(toRemove)), zap.Int("total", total))
			}
		}
	}
}

// Stop останавливает главный цикл и закрывает все сессии.
// Повторные вызовы — no-op.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.quit)
		<-h.done
	})
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
	}
	h.mu.Unlock()
	ClientsConnected.Set(0)
	h.log.Info("websocket hub stopped")
}

// Broadcast сериализует сообщение и рассылает его всем сессиям
func (h *Hub) Broadcast(message interface{}) {
	buf := jsonBufferPool.Get().(*bytes.Buffer)
	buf.Reset()

	if err := json.NewEncoder(buf).Encode(message); err != nil {
		h.log.Error("broadcast message marshal failed", zap.Error(err))
		jsonBufferPool.Put(buf)
		return
	}

	// Убираем trailing newline от Encode
	data := buf.Bytes()
	if len(data) > 0 && data[len(data)-1] == '\n' {
		data = data[:len(data)-1]
	}

	// Копируем данные: буфер вернется в пул раньше, чем сообщение дойдет
	msgCopy := make([]byte, len(data))
	copy(msgCopy, data)
	jsonBufferPool.Put(buf)

	select {
	case h.broadcast <- msgCopy:
	case <-h.quit:
		// Hub остановлен, сообщение уже некому доставлять
	}
}

// BroadcastChannelUpdate рассылает изменение канала/конфигурации.
// Реализует service.ChangeBroadcaster.
func (h *Hub) BroadcastChannelUpdate(operation string, data interface{}) {
	BroadcastsTotal.WithLabelValues(string(MessageTypeChannelUpdate)).Inc()
	h.Broadcast(NewChannelUpdateMessage(operation, data))
}

// BroadcastTradeUpdate рассылает изменение сделки.
// Реализует service.ChangeBroadcaster.
func (h *Hub) BroadcastTradeUpdate(operation string, data interface{}) {
	BroadcastsTotal.WithLabelValues(string(MessageTypeTradeUpdate)).Inc()
	h.Broadcast(NewTradeUpdateMessage(operation, data))
}

// ClientCount возвращает количество подключенных сессий
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
