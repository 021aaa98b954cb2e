package websocket

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// Время ожидания записи сообщения
	writeWait = 10 * time.Second

	// Время ожидания между pong сообщениями
	pongWait = 60 * time.Second

	// Интервал отправки протокольных ping (должен быть меньше pongWait)
	pingPeriod = 30 * time.Second

	// Максимальный размер входящего сообщения: от дашборда приходят
	// только короткие ping-и
	maxMessageSize = 512

	// Размер буфера отправки сессии. Всплеск событий (массовое закрытие
	// сделок) не должен сразу ронять сессию
	clientSendBufferSize = 256
)

// OriginChecker проверяет Origin с O(1) lookup через map.
// Потокобезопасен для чтения после инициализации.
type OriginChecker struct {
	allowedOrigins map[string]struct{}
	allowAll       bool
}

var originChecker = initOriginChecker()

func initOriginChecker() *OriginChecker {
	checker := &OriginChecker{
		allowedOrigins: make(map[string]struct{}),
	}

	// Пример: CORS_ALLOWED_ORIGINS=http://localhost:3000,https://dash.example.com
	envOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")

	if envOrigins == "" || envOrigins == "*" {
		// Development mode или явно разрешены все
		checker.allowAll = true
	} else {
		for _, origin := range strings.Split(envOrigins, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				checker.allowedOrigins[origin] = struct{}{}
			}
		}
	}
	return checker
}

// Check проверяет origin за O(1)
func (oc *OriginChecker) Check(origin string) bool {
	if origin == "" {
		return true // Non-browser clients (curl, мониторинг)
	}
	if oc.allowAll {
		return true
	}
	_, ok := oc.allowedOrigins[origin]
	return ok
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return originChecker.Check(r.Header.Get("Origin"))
	},
	EnableCompression: true,
}

// clientPing - прикладной heartbeat от дашборда
type clientPing struct {
	Type string `json:"type"`
}

// pongPayload сериализуется один раз: ответ всегда одинаков
var pongPayload = []byte(`{"type":"pong"}`)

// Client представляет одну WebSocket сессию дашборда.
//
// Каждая сессия обслуживается двумя горутинами:
// 1. readPump - читает входящие сообщения (ping-и) и следит за живостью
// 2. writePump - пишет сообщения из буферизованного канала send
type Client struct {
	// WebSocket соединение
	conn *websocket.Conn

	// Hub которому принадлежит сессия
	hub *Hub

	// Буферизованный канал исходящих сообщений
	send chan []byte

	// Сигнал "ответить pong". Принадлежит сессии и никогда не
	// закрывается hub-ом, в отличие от send
	pong chan struct{}
}

// queuePong просит writePump ответить прикладным pong.
//
// Писать в send из readPump нельзя: hub закрывает send при снятии
// медленной сессии, а readPump в этот момент еще может получить ping
// с живого соединения. Запись в закрытый канал уронила бы процесс.
func (c *Client) queuePong() {
	select {
	case c.pong <- struct{}{}:
	default:
		// Pong уже в очереди, повторный сигнал не нужен
	}
}

// readPump читает сообщения сессии.
//
// Единственное осмысленное входящее сообщение - прикладной ping,
// на который writePump отвечает pong по сигналу queuePong.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("websocket read error", zap.Error(err))
			}
			break
		}

		var ping clientPing
		if err := json.Unmarshal(message, &ping); err != nil {
			continue
		}
		if ping.Type == string(MessageTypePing) {
			c.queuePong()
		}
	}
}

// writePump отправляет сообщения сессии.
//
// Читает из канала send; накопившиеся сообщения дописываются
// в тот же websocket-фрейм через newline.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub закрыл канал
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Non-blocking дренаж буфера без гонки между len() и чтением
		drainLoop:
			for {
				select {
				case msg, ok := <-c.send:
					if !ok {
						break drainLoop
					}
					w.Write([]byte{'\n'})
					w.Write(msg)
				default:
					break drainLoop
				}
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-c.pong:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, pongPayload); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// ServeWS обрабатывает WebSocket запросы дашборда.
//
// Апгрейдит HTTP соединение, регистрирует сессию в Hub и первым
// сообщением шлет подтверждение подключения.
//
// Использование в routes:
// router.HandleFunc("/ws/stream", func(w, r) { websocket.ServeWS(hub, w, r) })
func ServeWS(hub *Hub, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		conn: conn,
		hub:  hub,
		send: make(chan []byte, clientSendBufferSize),
		pong: make(chan struct{}, 1),
	}

	// Подтверждение уходит первым: кладем его в буфер до регистрации,
	// чтобы оно не перемешалось с broadcast-ами
	if ack, err := json.Marshal(NewConnectedMessage()); err == nil {
		client.send <- ack
	}

	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}
