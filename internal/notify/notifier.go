package notify

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"signalboard/internal/models"
)

// Execer — минимальный интерфейс для отправки pg_notify.
// Ему удовлетворяют и *sql.DB, и *sql.Tx: репозитории публикуют событие
// внутри мутирующей транзакции, чтобы доставка произошла ровно в момент
// коммита (нет коммита — нет события).
type Execer interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
}

var (
	_ Execer = (*sql.DB)(nil)
	_ Execer = (*sql.Tx)(nil)
)

// Publish отправляет событие изменения в NOTIFY-канал топика.
// Полезная нагрузка несет только операцию и идентификаторы: подписчики
// перечитывают актуальное состояние из БД сами.
func Publish(ex Execer, ev models.ChangeEvent) error {
	if ev.Topic == "" {
		return fmt.Errorf("notify: event topic is empty")
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("notify: marshal event: %w", err)
	}

	if _, err := ex.Exec("SELECT pg_notify($1, $2)", string(ev.Topic), string(payload)); err != nil {
		return fmt.Errorf("notify: pg_notify %s: %w", ev.Topic, err)
	}

	EventsPublished.WithLabelValues(string(ev.Topic)).Inc()
	return nil
}
