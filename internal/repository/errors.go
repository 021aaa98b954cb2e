package repository

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"

	"github.com/lib/pq"
)

// Ошибки репозиториев
var (
	ErrChannelNotFound = errors.New("channel not found")
	ErrChannelExists   = errors.New("channel already exists")
	ErrTradeNotFound   = errors.New("trade not found")
	ErrTradeExists     = errors.New("trade already exists")

	// ErrStoreUnavailable отличает недоступность хранилища от "не найдено":
	// API деградирует до пустых чтений и явных отказов записи, не падая
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Классы SQLSTATE, означающие проблемы соединения/ресурсов, а не данных
const (
	pqClassConnectionException   = "08"
	pqClassInsufficientResources = "53"
	pqClassOperatorIntervention  = "57"
)

// IsUnavailable возвращает true, если ошибка вызвана недоступностью БД
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case pqClassConnectionException, pqClassInsufficientResources, pqClassOperatorIntervention:
			return true
		}
	}
	return false
}

// isUniqueViolation возвращает true для нарушения UNIQUE-ограничения
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
