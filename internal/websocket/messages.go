package websocket

import "time"

// MessageType определяет тип WebSocket сообщения
type MessageType string

// Типы WebSocket сообщений
const (
	// MessageTypeChannelUpdate - изменение канала или его конфигурации.
	// Data несет актуальную конфигурацию; по DELETE - только id
	MessageTypeChannelUpdate MessageType = "channel_update"

	// MessageTypeTradeUpdate - переход жизненного цикла сделки
	MessageTypeTradeUpdate MessageType = "trade_update"

	// MessageTypeConnected - подтверждение подключения, первое сообщение сессии
	MessageTypeConnected MessageType = "connected"

	// MessageTypePing / MessageTypePong - прикладной heartbeat от дашборда.
	// Дублирует протокольный ping writePump-а: браузерный websocket
	// не дает странице доступа к протокольным фреймам
	MessageTypePing MessageType = "ping"
	MessageTypePong MessageType = "pong"
)

// UpdateMessage - сообщение об изменении данных.
// Operation совпадает с операцией ChangeEvent (INSERT/UPDATE/DELETE/CONFIG_UPDATE),
// Data несет состояние после изменения.
type UpdateMessage struct {
	Type      MessageType `json:"type"`
	Operation string      `json:"operation"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// ConnectedMessage - подтверждение подключения
type ConnectedMessage struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

// PongMessage - ответ на прикладной ping
type PongMessage struct {
	Type MessageType `json:"type"`
}

// NewChannelUpdateMessage создает сообщение об изменении канала
func NewChannelUpdateMessage(operation string, data interface{}) *UpdateMessage {
	return &UpdateMessage{
		Type:      MessageTypeChannelUpdate,
		Operation: operation,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

// NewTradeUpdateMessage создает сообщение об изменении сделки
func NewTradeUpdateMessage(operation string, data interface{}) *UpdateMessage {
	return &UpdateMessage{
		Type:      MessageTypeTradeUpdate,
		Operation: operation,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

// NewConnectedMessage создает подтверждение подключения
func NewConnectedMessage() *ConnectedMessage {
	return &ConnectedMessage{
		Type:      MessageTypeConnected,
		Timestamp: time.Now().UTC(),
	}
}
