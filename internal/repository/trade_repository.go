package repository

import (
	"database/sql"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"signalboard/internal/models"
	"signalboard/internal/notify"
)

// TradeRepository — журнал сделок (trade ledger).
//
// Переходы жизненного цикла реализованы защищенными UPDATE-ами:
// WHERE включает ожидаемый текущий статус, поэтому повторная доставка
// того же события от бота превращается в no-op, а не в порчу записи.
// Каждый успешный переход публикует trade_changes внутри транзакции.
type TradeRepository struct {
	db  *sql.DB
	log *zap.Logger
}

// NewTradeRepository создает новый экземпляр репозитория
func NewTradeRepository(db *sql.DB, log *zap.Logger) *TradeRepository {
	return &TradeRepository{db: db, log: log}
}

const tradeColumns = `id, trade_id, channel_id, channel_name, msg_id, symbol,
		side, order_hint, order_type, entry_price, actual_entry_price, sl_price,
		final_tp_price, tp_prices, risk_free_price, cancel_price, close_price,
		ticket, lot_size, risk_amount, risk_percent, status, trade_outcome,
		profit_loss, profit_loss_pips, commission, swap,
		signal_time, execution_time, be_moved_at, canceled_at, close_time,
		time_to_be_sec, duration_sec, notes, raw_signal_text, created_at`

// RecordParsed фиксирует распознанный сигнал со статусом parsed.
// Идентификатор сделки генерируется здесь; повторная вставка того же
// trade_id гасится ON CONFLICT и возвращает ErrTradeExists.
func (r *TradeRepository) RecordParsed(t *models.TradeRecord) (string, error) {
	if t.TradeID == "" {
		t.TradeID = models.GenerateTradeID(t.ChannelName, t.MsgID, time.Now())
	}
	if t.Status == "" {
		t.Status = models.StatusParsed
	}
	if t.SignalTime.IsZero() {
		t.SignalTime = time.Now()
	}

	tx, err := r.db.Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		INSERT INTO trades (
			trade_id, channel_id, channel_name, msg_id, symbol, side, order_hint,
			entry_price, sl_price, final_tp_price, tp_prices, risk_free_price,
			cancel_price, status, signal_time, raw_signal_text
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (trade_id) DO NOTHING`,
		t.TradeID, t.ChannelID, t.ChannelName, t.MsgID, t.Symbol, string(t.Side), string(t.OrderHint),
		t.EntryPrice, t.SLPrice, t.FinalTPPrice, pq.Array(t.TPPrices), t.RiskFreePrice,
		t.CancelPrice, string(t.Status), t.SignalTime, t.RawSignalText,
	)
	if err != nil {
		return "", err
	}
	if n, err := res.RowsAffected(); err != nil {
		return "", err
	} else if n == 0 {
		return "", ErrTradeExists
	}

	r.publish(tx, t.TradeID, models.OpInsert, t.Status)

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return t.TradeID, nil
}

// RecordOrderPlaced фиксирует выставление ордера: parsed -> pending для
// лимитного ордера, parsed -> active для рыночного исполнения
func (r *TradeRepository) RecordOrderPlaced(tradeID string, orderType models.OrderType, ticket int64, lotSize, riskAmount, riskPercent float64) error {
	status := models.StatusActive
	if orderType == models.OrderLimit {
		status = models.StatusPending
	}

	return r.transition(tradeID, status, `
		UPDATE trades SET
			status = $1,
			order_type = $2,
			ticket = $3,
			lot_size = $4,
			risk_amount = $5,
			risk_percent = $6,
			execution_time = CASE WHEN $1 = 'active' THEN now() ELSE execution_time END
		WHERE trade_id = $7 AND status = 'parsed'`,
		string(status), string(orderType), ticket, lotSize, riskAmount, riskPercent, tradeID)
}

// RecordFilled фиксирует исполнение лимитного ордера: pending -> active
func (r *TradeRepository) RecordFilled(tradeID string, actualEntryPrice float64) error {
	return r.transition(tradeID, models.StatusActive, `
		UPDATE trades SET
			status = 'active',
			actual_entry_price = $1,
			execution_time = now()
		WHERE trade_id = $2 AND status = 'pending'`,
		actualEntryPrice, tradeID)
}

// RecordBreakevenMoved фиксирует перевод стоп-лосса в безубыток.
// Статус не меняется (active остается active), но событие публикуется:
// дашборд показывает момент перевода. Повторный перевод — no-op.
func (r *TradeRepository) RecordBreakevenMoved(tradeID string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE trades SET
			be_moved_at = now(),
			time_to_be_sec = EXTRACT(EPOCH FROM (now() - execution_time))
		WHERE trade_id = $1 AND status = 'active' AND be_moved_at IS NULL`,
		tradeID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if err := r.checkExists(tx, tradeID); err != nil {
			return err
		}
		// Уже переведен или не active: идемпотентный повтор
		return tx.Commit()
	}

	r.publish(tx, tradeID, models.OpUpdate, models.StatusActive)
	return tx.Commit()
}

// RecordCanceled фиксирует отмену отложенного ордера: pending -> canceled
func (r *TradeRepository) RecordCanceled(tradeID, notes string) error {
	return r.transition(tradeID, models.StatusCanceled, `
		UPDATE trades SET
			status = 'canceled',
			trade_outcome = 'canceled',
			profit_loss = 0,
			canceled_at = now(),
			close_time = now(),
			notes = $1
		WHERE trade_id = $2 AND status = 'pending'`,
		notes, tradeID)
}

// RecordBlocked фиксирует блокировку сигнала фильтрами: parsed -> blocked.
// Причины сохраняются в trade_decline_reasons в той же транзакции.
func (r *TradeRepository) RecordBlocked(tradeID string, reasons []models.DeclineReason) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var rowID int64
	err = tx.QueryRow(`
		UPDATE trades SET
			status = 'blocked',
			trade_outcome = 'blocked',
			close_time = now()
		WHERE trade_id = $1 AND status = 'parsed'
		RETURNING id`, tradeID).Scan(&rowID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if err := r.checkExists(tx, tradeID); err != nil {
				return err
			}
			return tx.Commit()
		}
		return err
	}

	if err := r.insertDeclineReasons(tx, rowID, reasons); err != nil {
		return err
	}

	r.publish(tx, tradeID, models.OpUpdate, models.StatusBlocked)
	return tx.Commit()
}

// RecordDeclined фиксирует отклонение сделки вышестоящей логикой из любого
// нетерминального статуса. Итог записывается как blocked: для агрегатов
// статистики отклоненная сделка эквивалентна заблокированной.
func (r *TradeRepository) RecordDeclined(tradeID string, reasons []models.DeclineReason) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var rowID int64
	err = tx.QueryRow(`
		UPDATE trades SET
			status = 'declined',
			trade_outcome = 'blocked',
			close_time = now()
		WHERE trade_id = $1 AND status IN ('parsed', 'pending', 'active')
		RETURNING id`, tradeID).Scan(&rowID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if err := r.checkExists(tx, tradeID); err != nil {
				return err
			}
			return tx.Commit()
		}
		return err
	}

	if err := r.insertDeclineReasons(tx, rowID, reasons); err != nil {
		return err
	}

	r.publish(tx, tradeID, models.OpUpdate, models.StatusDeclined)
	return tx.Commit()
}

// CloseParams — параметры закрытия позиции
type CloseParams struct {
	ClosePrice float64
	ProfitLoss float64
	EntryPrice float64
	Side       models.TradeSide
	PipSize    float64
	Commission float64
	Swap       float64
	Notes      string
}

// RecordClosed фиксирует закрытие позиции: active -> closed.
// Итог и дистанция в пипсах вычисляются здесь, а не принимаются от бота.
func (r *TradeRepository) RecordClosed(tradeID string, p CloseParams) error {
	outcome := models.ClassifyOutcome(p.ProfitLoss)
	pips := models.PipDistance(p.EntryPrice, p.ClosePrice, p.Side, p.PipSize)

	return r.transition(tradeID, models.StatusClosed, `
		UPDATE trades SET
			status = 'closed',
			trade_outcome = $1,
			close_price = $2,
			profit_loss = $3,
			profit_loss_pips = $4,
			commission = $5,
			swap = $6,
			close_time = now(),
			duration_sec = EXTRACT(EPOCH FROM (now() - COALESCE(execution_time, signal_time))),
			notes = CASE WHEN $7 <> '' THEN $7 ELSE notes END
		WHERE trade_id = $8 AND status = 'active'`,
		string(outcome), p.ClosePrice, p.ProfitLoss, pips, p.Commission, p.Swap, p.Notes, tradeID)
}

// transition выполняет защищенный UPDATE перехода и публикует событие.
// rows == 0 при существующей записи означает идемпотентный повтор (no-op).
func (r *TradeRepository) transition(tradeID string, to models.TradeStatus, query string, args ...interface{}) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		if err := r.checkExists(tx, tradeID); err != nil {
			return err
		}
		r.log.Debug("trade transition skipped",
			zap.String("trade_id", tradeID), zap.String("to", string(to)))
		return tx.Commit()
	}

	r.publish(tx, tradeID, models.OpUpdate, to)
	return tx.Commit()
}

// checkExists различает "переход не применился" и "сделки нет"
func (r *TradeRepository) checkExists(tx *sql.Tx, tradeID string) error {
	var exists bool
	if err := tx.QueryRow(`SELECT EXISTS (SELECT 1 FROM trades WHERE trade_id = $1)`, tradeID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrTradeNotFound
	}
	return nil
}

func (r *TradeRepository) insertDeclineReasons(tx *sql.Tx, rowID int64, reasons []models.DeclineReason) error {
	for _, reason := range reasons {
		var details interface{}
		if reason.Details != nil {
			b, err := json.Marshal(reason.Details)
			if err != nil {
				return err
			}
			details = b
		}
		_, err := tx.Exec(`
			INSERT INTO trade_decline_reasons (trade_row_id, category, reason_code, reason_detail, details)
			VALUES ($1, $2, $3, $4, $5)`,
			rowID, string(reason.Category), reason.ReasonCode, reason.ReasonDetail, details)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *TradeRepository) publish(tx *sql.Tx, tradeID, op string, status models.TradeStatus) {
	err := notify.Publish(tx, models.ChangeEvent{
		Topic:     models.TopicTradeChanges,
		Operation: op,
		ID:        tradeID,
		Status:    string(status),
	})
	if err != nil {
		r.log.Warn("trade event publish failed",
			zap.String("trade_id", tradeID), zap.Error(err))
	}
}

// ============ Чтения ============

// FindByTradeID возвращает сделку по строковому идентификатору
func (r *TradeRepository) FindByTradeID(tradeID string) (*models.TradeRecord, error) {
	return r.findOne(`SELECT `+tradeColumns+` FROM trades WHERE trade_id = $1`, tradeID)
}

// FindByTicket возвращает сделку по тикету брокера
func (r *TradeRepository) FindByTicket(ticket int64) (*models.TradeRecord, error) {
	return r.findOne(`SELECT `+tradeColumns+` FROM trades WHERE ticket = $1`, ticket)
}

// FindByMessageID возвращает последнюю сделку канала по id сообщения.
// Используется для резолва текстовых команд ("close this" отвечает на сигнал).
func (r *TradeRepository) FindByMessageID(channelID string, msgID int64) (*models.TradeRecord, error) {
	return r.findOne(`
		SELECT `+tradeColumns+` FROM trades
		WHERE channel_id = $1 AND msg_id = $2
		ORDER BY created_at DESC
		LIMIT 1`, channelID, msgID)
}

func (r *TradeRepository) findOne(query string, args ...interface{}) (*models.TradeRecord, error) {
	t, err := scanTrade(r.db.QueryRow(query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTradeNotFound
		}
		return nil, err
	}
	return t, nil
}

// TradeFilter — фильтры выборки журнала
type TradeFilter struct {
	ChannelID string
	Status    models.TradeStatus
	Limit     int
}

// QueryByRange возвращает сделки за период [start, end), новые первыми
func (r *TradeRepository) QueryByRange(start, end time.Time, f TradeFilter) ([]*models.TradeRecord, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE signal_time >= $1 AND signal_time < $2`
	args := []interface{}{start, end}

	if f.ChannelID != "" {
		args = append(args, f.ChannelID)
		query += ` AND channel_id = $3`
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		query += ` AND status = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY signal_time DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var trades []*models.TradeRecord
	for rows.Next() {
		t, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// GetDeclineReasons возвращает причины блокировки сделки
func (r *TradeRepository) GetDeclineReasons(tradeRowID int64) ([]models.DeclineReason, error) {
	rows, err := r.db.Query(`
		SELECT id, trade_row_id, category, reason_code, reason_detail, details, created_at
		FROM trade_decline_reasons
		WHERE trade_row_id = $1
		ORDER BY id`, tradeRowID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reasons []models.DeclineReason
	for rows.Next() {
		var reason models.DeclineReason
		var category string
		var details []byte
		if err := rows.Scan(&reason.ID, &reason.TradeRowID, &category,
			&reason.ReasonCode, &reason.ReasonDetail, &details, &reason.CreatedAt); err != nil {
			return nil, err
		}
		reason.Category = models.DeclineCategory(category)
		if len(details) > 0 {
			if err := json.Unmarshal(details, &reason.Details); err != nil {
				return nil, err
			}
		}
		reasons = append(reasons, reason)
	}
	return reasons, rows.Err()
}

func scanTrade(row rowScanner) (*models.TradeRecord, error) {
	t := &models.TradeRecord{}
	var side, orderHint string
	var orderType, outcome sql.NullString

	err := row.Scan(
		&t.ID, &t.TradeID, &t.ChannelID, &t.ChannelName, &t.MsgID, &t.Symbol,
		&side, &orderHint, &orderType, &t.EntryPrice, &t.ActualEntryPrice, &t.SLPrice,
		&t.FinalTPPrice, pq.Array(&t.TPPrices), &t.RiskFreePrice, &t.CancelPrice, &t.ClosePrice,
		&t.Ticket, &t.LotSize, &t.RiskAmount, &t.RiskPercent, &t.Status, &outcome,
		&t.ProfitLoss, &t.ProfitLossPips, &t.Commission, &t.Swap,
		&t.SignalTime, &t.ExecutionTime, &t.BEMovedAt, &t.CanceledAt, &t.CloseTime,
		&t.TimeToBESec, &t.DurationSec, &t.Notes, &t.RawSignalText, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Side = models.TradeSide(side)
	t.OrderHint = models.OrderHint(orderHint)
	if orderType.Valid {
		t.OrderType = models.OrderType(orderType.String)
	}
	if outcome.Valid {
		t.Outcome = models.TradeOutcome(outcome.String)
	}
	return t, nil
}
