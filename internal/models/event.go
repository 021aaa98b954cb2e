package models

// ChangeTopic — имя NOTIFY-канала, по которому рассылаются изменения
type ChangeTopic string

const (
	// TopicChannelChanges — создание/удаление/включение каналов
	TopicChannelChanges ChangeTopic = "channel_changes"
	// TopicConfigChanges — изменение конфигурации существующего канала
	TopicConfigChanges ChangeTopic = "config_changes"
	// TopicTradeChanges — переходы жизненного цикла сделок
	TopicTradeChanges ChangeTopic = "trade_changes"
)

// AllTopics возвращает полный набор топиков, на которые подписывается слушатель
func AllTopics() []ChangeTopic {
	return []ChangeTopic{TopicChannelChanges, TopicConfigChanges, TopicTradeChanges}
}

// Операции изменения
const (
	OpInsert       = "INSERT"
	OpUpdate       = "UPDATE"
	OpDelete       = "DELETE"
	OpConfigUpdate = "CONFIG_UPDATE"
)

// ChangeEvent — транзитное сообщение об изменении в хранилище.
// Несет только операцию и идентификаторы: потребитель обязан перечитать
// актуальное состояние из БД, а не доверять полезной нагрузке события
// (защита от гонок при конкурентных обновлениях).
type ChangeEvent struct {
	Topic      ChangeTopic `json:"-"`
	Operation  string      `json:"operation"`
	ID         string      `json:"id"`
	ChannelKey string      `json:"channel_key,omitempty"`
	Status     string      `json:"status,omitempty"`
}
