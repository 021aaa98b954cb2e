package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"signalboard/internal/models"
	"signalboard/internal/notify"
)

// ChannelRepository — хранилище конфигураций каналов (config store).
//
// Каждая мутация покрывает строку канала и все строки суб-политик одной
// транзакцией: частичный сбой откатывает обновление целиком. Успешная
// мутация дополнительно публикует ChangeEvent через pg_notify внутри той же
// транзакции, поэтому событие доставляется ровно в момент коммита.
// Чтения событий не публикуют.
type ChannelRepository struct {
	db  *sql.DB
	log *zap.Logger
}

// NewChannelRepository создает новый экземпляр репозитория
func NewChannelRepository(db *sql.DB, log *zap.Logger) *ChannelRepository {
	return &ChannelRepository{db: db, log: log}
}

const channelColumns = `id, channel_key, telegram_id, is_active,
		risk_per_trade, risk_tolerance, magic_number, max_slippage_points,
		trade_monitor_interval_sec, created_at, updated_at`

// GetByID возвращает полную конфигурацию канала по uuid
func (r *ChannelRepository) GetByID(id string) (*models.ChannelConfig, error) {
	return r.getOne(`SELECT `+channelColumns+` FROM channels WHERE id = $1`, id)
}

// GetByKey возвращает полную конфигурацию канала по человекочитаемому ключу.
// Используется со стороны бота для резолва канала сигнала.
func (r *ChannelRepository) GetByKey(channelKey string) (*models.ChannelConfig, error) {
	return r.getOne(`SELECT `+channelColumns+` FROM channels WHERE channel_key = $1`, channelKey)
}

func (r *ChannelRepository) getOne(query string, arg interface{}) (*models.ChannelConfig, error) {
	cfg, err := scanChannel(r.db.QueryRow(query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrChannelNotFound
		}
		return nil, err
	}
	if err := r.loadSubPolicies(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// GetAll возвращает все каналы (при activeOnly — только включенные)
// с полным набором суб-политик
func (r *ChannelRepository) GetAll(activeOnly bool) ([]*models.ChannelConfig, error) {
	query := `SELECT ` + channelColumns + ` FROM channels`
	if activeOnly {
		query += ` WHERE is_active = true`
	}
	query += ` ORDER BY channel_key`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var channels []*models.ChannelConfig
	for rows.Next() {
		cfg, err := scanChannel(rows)
		if err != nil {
			return nil, err
		}
		channels = append(channels, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, cfg := range channels {
		if err := r.loadSubPolicies(cfg); err != nil {
			return nil, err
		}
	}
	return channels, nil
}

// Create создает канал со всеми суб-политиками и публикует
// channel_changes/INSERT. Возвращает uuid нового канала.
func (r *ChannelRepository) Create(cfg *models.ChannelConfig) (string, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var id string
	err = tx.QueryRow(`
		INSERT INTO channels (
			channel_key, telegram_id, is_active, risk_per_trade, risk_tolerance,
			magic_number, max_slippage_points, trade_monitor_interval_sec
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		cfg.ChannelKey, cfg.TelegramID, cfg.IsActive, cfg.RiskPerTrade, cfg.RiskTolerance,
		cfg.MagicNumber, cfg.MaxSlippagePoints, cfg.TradeMonitorIntervalSec,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return "", ErrChannelExists
		}
		return "", err
	}

	if err := r.insertSubPolicies(tx, id, cfg); err != nil {
		return "", err
	}
	if err := r.insertInstruments(tx, id, cfg.Instruments); err != nil {
		return "", err
	}

	r.publish(tx, models.ChangeEvent{
		Topic:      models.TopicChannelChanges,
		Operation:  models.OpInsert,
		ID:         id,
		ChannelKey: cfg.ChannelKey,
	})

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return id, nil
}

// Update перезаписывает конфигурацию канала и все суб-политики одной
// транзакцией и публикует config_changes/UPDATE. Конкурентные обновления
// разрешаются по принципу last-writer-wins (принятое ограничение).
func (r *ChannelRepository) Update(id string, cfg *models.ChannelConfig) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE channels SET
			channel_key = $1,
			telegram_id = $2,
			risk_per_trade = $3,
			risk_tolerance = $4,
			magic_number = $5,
			max_slippage_points = $6,
			trade_monitor_interval_sec = $7,
			updated_at = now()
		WHERE id = $8`,
		cfg.ChannelKey, cfg.TelegramID, cfg.RiskPerTrade, cfg.RiskTolerance,
		cfg.MagicNumber, cfg.MaxSlippagePoints, cfg.TradeMonitorIntervalSec, id,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrChannelExists
		}
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrChannelNotFound
	}

	if err := r.updateSubPolicies(tx, id, cfg); err != nil {
		return err
	}

	// Инструменты заменяются целиком
	if _, err := tx.Exec(`DELETE FROM instruments WHERE channel_id = $1`, id); err != nil {
		return err
	}
	if err := r.insertInstruments(tx, id, cfg.Instruments); err != nil {
		return err
	}

	r.publish(tx, models.ChangeEvent{
		Topic:      models.TopicConfigChanges,
		Operation:  models.OpUpdate,
		ID:         id,
		ChannelKey: cfg.ChannelKey,
	})

	return tx.Commit()
}

// Delete удаляет канал; суб-политики и сделки уходят каскадом.
// Публикует channel_changes/DELETE с ключом удаленного канала.
func (r *ChannelRepository) Delete(id string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var channelKey string
	err = tx.QueryRow(`DELETE FROM channels WHERE id = $1 RETURNING channel_key`, id).Scan(&channelKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrChannelNotFound
		}
		return err
	}

	r.publish(tx, models.ChangeEvent{
		Topic:      models.TopicChannelChanges,
		Operation:  models.OpDelete,
		ID:         id,
		ChannelKey: channelKey,
	})

	return tx.Commit()
}

// SetActive мягко включает/выключает канал (без удаления конфигурации)
func (r *ChannelRepository) SetActive(id string, active bool) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var channelKey string
	err = tx.QueryRow(`
		UPDATE channels SET is_active = $1, updated_at = now()
		WHERE id = $2
		RETURNING channel_key`, active, id).Scan(&channelKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrChannelNotFound
		}
		return err
	}

	r.publish(tx, models.ChangeEvent{
		Topic:      models.TopicChannelChanges,
		Operation:  models.OpUpdate,
		ID:         id,
		ChannelKey: channelKey,
	})

	return tx.Commit()
}

// SetTelegramID сохраняет резолвнутый ботом telegram id канала
func (r *ChannelRepository) SetTelegramID(id string, telegramID int64) error {
	res, err := r.db.Exec(`
		UPDATE channels SET telegram_id = $1, updated_at = now() WHERE id = $2`,
		telegramID, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrChannelNotFound
	}
	return nil
}

// publish отправляет событие внутри транзакции. События best-effort:
// ошибка публикации логируется, но коммит не отменяется.
func (r *ChannelRepository) publish(tx *sql.Tx, ev models.ChangeEvent) {
	if err := notify.Publish(tx, ev); err != nil {
		r.log.Warn("change event publish failed",
			zap.String("topic", string(ev.Topic)),
			zap.String("operation", ev.Operation),
			zap.Error(err))
	}
}

// ============ Суб-политики ============

func (r *ChannelRepository) insertSubPolicies(tx *sql.Tx, id string, cfg *models.ChannelConfig) error {
	statements := []struct {
		query string
		args  []interface{}
	}{
		{
			`INSERT INTO final_tp_policies (channel_id, kind, tp_index, rr_ratio)
			 VALUES ($1, $2, $3, $4)`,
			[]interface{}{id, string(cfg.TakeProfit.Kind), cfg.TakeProfit.TPIndex, cfg.TakeProfit.RRRatio},
		},
		{
			`INSERT INTO riskfree_policies (channel_id, is_enabled, kind, tp_index, pips, percent)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			[]interface{}{id, cfg.RiskFree.Enabled, string(cfg.RiskFree.Kind), cfg.RiskFree.TPIndex, cfg.RiskFree.Pips, cfg.RiskFree.Percent},
		},
		{
			`INSERT INTO cancel_policies (channel_id, is_enabled, kind, tp_index, percent,
				enable_for_now, enable_for_limit, enable_for_auto)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			[]interface{}{id, cfg.Cancel.Enabled, string(cfg.Cancel.Kind), cfg.Cancel.TPIndex, cfg.Cancel.Percent,
				cfg.Cancel.EnableForNow, cfg.Cancel.EnableForLimit, cfg.Cancel.EnableForAuto},
		},
		{
			`INSERT INTO command_configs (channel_id, enable_close, enable_cancel_limit, enable_riskfree,
				close_phrases, cancel_limit_phrases, riskfree_phrases)
			 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			[]interface{}{id, cfg.Commands.EnableClose, cfg.Commands.EnableCancelLimit, cfg.Commands.EnableRiskFree,
				pq.Array(cfg.Commands.ClosePhrases), pq.Array(cfg.Commands.CancelLimitPhrases), pq.Array(cfg.Commands.RiskFreePhrases)},
		},
		{
			`INSERT INTO circuit_breaker_configs (channel_id, is_enabled, max_daily_trades, max_daily_loss_pct)
			 VALUES ($1, $2, $3, $4)`,
			[]interface{}{id, cfg.CircuitBreaker.Enabled, cfg.CircuitBreaker.MaxDailyTrades, cfg.CircuitBreaker.MaxDailyLossPct},
		},
		{
			`INSERT INTO trend_filter_configs (channel_id, is_enabled, swing_strength, min_swings_required,
				ema_period, candles_to_fetch, require_all_three, log_details)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			[]interface{}{id, cfg.TrendFilter.Enabled, cfg.TrendFilter.SwingStrength, cfg.TrendFilter.MinSwingsRequired,
				cfg.TrendFilter.EMAPeriod, cfg.TrendFilter.CandlesToFetch, cfg.TrendFilter.RequireAllThree, cfg.TrendFilter.LogDetails},
		},
	}

	for _, st := range statements {
		if _, err := tx.Exec(st.query, st.args...); err != nil {
			return fmt.Errorf("insert sub-policy: %w", err)
		}
	}
	return nil
}

func (r *ChannelRepository) updateSubPolicies(tx *sql.Tx, id string, cfg *models.ChannelConfig) error {
	statements := []struct {
		query string
		args  []interface{}
	}{
		{
			`UPDATE final_tp_policies SET kind = $1, tp_index = $2, rr_ratio = $3
			 WHERE channel_id = $4`,
			[]interface{}{string(cfg.TakeProfit.Kind), cfg.TakeProfit.TPIndex, cfg.TakeProfit.RRRatio, id},
		},
		{
			`UPDATE riskfree_policies SET is_enabled = $1, kind = $2, tp_index = $3, pips = $4, percent = $5
			 WHERE channel_id = $6`,
			[]interface{}{cfg.RiskFree.Enabled, string(cfg.RiskFree.Kind), cfg.RiskFree.TPIndex, cfg.RiskFree.Pips, cfg.RiskFree.Percent, id},
		},
		{
			`UPDATE cancel_policies SET is_enabled = $1, kind = $2, tp_index = $3, percent = $4,
				enable_for_now = $5, enable_for_limit = $6, enable_for_auto = $7
			 WHERE channel_id = $8`,
			[]interface{}{cfg.Cancel.Enabled, string(cfg.Cancel.Kind), cfg.Cancel.TPIndex, cfg.Cancel.Percent,
				cfg.Cancel.EnableForNow, cfg.Cancel.EnableForLimit, cfg.Cancel.EnableForAuto, id},
		},
		{
			`UPDATE command_configs SET enable_close = $1, enable_cancel_limit = $2, enable_riskfree = $3,
				close_phrases = $4, cancel_limit_phrases = $5, riskfree_phrases = $6
			 WHERE channel_id = $7`,
			[]interface{}{cfg.Commands.EnableClose, cfg.Commands.EnableCancelLimit, cfg.Commands.EnableRiskFree,
				pq.Array(cfg.Commands.ClosePhrases), pq.Array(cfg.Commands.CancelLimitPhrases), pq.Array(cfg.Commands.RiskFreePhrases), id},
		},
		{
			`UPDATE circuit_breaker_configs SET is_enabled = $1, max_daily_trades = $2, max_daily_loss_pct = $3
			 WHERE channel_id = $4`,
			[]interface{}{cfg.CircuitBreaker.Enabled, cfg.CircuitBreaker.MaxDailyTrades, cfg.CircuitBreaker.MaxDailyLossPct, id},
		},
		{
			`UPDATE trend_filter_configs SET is_enabled = $1, swing_strength = $2, min_swings_required = $3,
				ema_period = $4, candles_to_fetch = $5, require_all_three = $6, log_details = $7
			 WHERE channel_id = $8`,
			[]interface{}{cfg.TrendFilter.Enabled, cfg.TrendFilter.SwingStrength, cfg.TrendFilter.MinSwingsRequired,
				cfg.TrendFilter.EMAPeriod, cfg.TrendFilter.CandlesToFetch, cfg.TrendFilter.RequireAllThree, cfg.TrendFilter.LogDetails, id},
		},
	}

	for _, st := range statements {
		if _, err := tx.Exec(st.query, st.args...); err != nil {
			return fmt.Errorf("update sub-policy: %w", err)
		}
	}
	return nil
}

func (r *ChannelRepository) insertInstruments(tx *sql.Tx, id string, instruments []models.Instrument) error {
	for _, ins := range instruments {
		_, err := tx.Exec(`
			INSERT INTO instruments (channel_id, logical_symbol, broker_symbol, pip_tolerance_pips)
			VALUES ($1, $2, $3, $4)`,
			id, ins.LogicalSymbol, ins.BrokerSymbol, ins.PipTolerancePips)
		if err != nil {
			return fmt.Errorf("insert instrument %s: %w", ins.LogicalSymbol, err)
		}
	}
	return nil
}

// loadSubPolicies дочитывает все суб-политики и инструменты канала
func (r *ChannelRepository) loadSubPolicies(cfg *models.ChannelConfig) error {
	var tpKind string
	err := r.db.QueryRow(`
		SELECT kind, tp_index, rr_ratio FROM final_tp_policies WHERE channel_id = $1`,
		cfg.ID).Scan(&tpKind, &cfg.TakeProfit.TPIndex, &cfg.TakeProfit.RRRatio)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	cfg.TakeProfit.Kind = models.PolicyKind(tpKind)

	var rfKind string
	err = r.db.QueryRow(`
		SELECT is_enabled, kind, tp_index, pips, percent FROM riskfree_policies WHERE channel_id = $1`,
		cfg.ID).Scan(&cfg.RiskFree.Enabled, &rfKind, &cfg.RiskFree.TPIndex, &cfg.RiskFree.Pips, &cfg.RiskFree.Percent)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	cfg.RiskFree.Kind = models.PolicyKind(rfKind)

	var cKind string
	err = r.db.QueryRow(`
		SELECT is_enabled, kind, tp_index, percent, enable_for_now, enable_for_limit, enable_for_auto
		FROM cancel_policies WHERE channel_id = $1`,
		cfg.ID).Scan(&cfg.Cancel.Enabled, &cKind, &cfg.Cancel.TPIndex, &cfg.Cancel.Percent,
		&cfg.Cancel.EnableForNow, &cfg.Cancel.EnableForLimit, &cfg.Cancel.EnableForAuto)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	cfg.Cancel.Kind = models.PolicyKind(cKind)

	err = r.db.QueryRow(`
		SELECT enable_close, enable_cancel_limit, enable_riskfree,
			close_phrases, cancel_limit_phrases, riskfree_phrases
		FROM command_configs WHERE channel_id = $1`,
		cfg.ID).Scan(&cfg.Commands.EnableClose, &cfg.Commands.EnableCancelLimit, &cfg.Commands.EnableRiskFree,
		pq.Array(&cfg.Commands.ClosePhrases), pq.Array(&cfg.Commands.CancelLimitPhrases), pq.Array(&cfg.Commands.RiskFreePhrases))
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	err = r.db.QueryRow(`
		SELECT is_enabled, max_daily_trades, max_daily_loss_pct
		FROM circuit_breaker_configs WHERE channel_id = $1`,
		cfg.ID).Scan(&cfg.CircuitBreaker.Enabled, &cfg.CircuitBreaker.MaxDailyTrades, &cfg.CircuitBreaker.MaxDailyLossPct)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	err = r.db.QueryRow(`
		SELECT is_enabled, swing_strength, min_swings_required, ema_period,
			candles_to_fetch, require_all_three, log_details
		FROM trend_filter_configs WHERE channel_id = $1`,
		cfg.ID).Scan(&cfg.TrendFilter.Enabled, &cfg.TrendFilter.SwingStrength, &cfg.TrendFilter.MinSwingsRequired,
		&cfg.TrendFilter.EMAPeriod, &cfg.TrendFilter.CandlesToFetch, &cfg.TrendFilter.RequireAllThree, &cfg.TrendFilter.LogDetails)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	rows, err := r.db.Query(`
		SELECT id, logical_symbol, broker_symbol, pip_tolerance_pips
		FROM instruments WHERE channel_id = $1 ORDER BY logical_symbol`, cfg.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	cfg.Instruments = cfg.Instruments[:0]
	for rows.Next() {
		var ins models.Instrument
		if err := rows.Scan(&ins.ID, &ins.LogicalSymbol, &ins.BrokerSymbol, &ins.PipTolerancePips); err != nil {
			return err
		}
		cfg.Instruments = append(cfg.Instruments, ins)
	}
	return rows.Err()
}

// rowScanner покрывает и *sql.Row, и *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanChannel(row rowScanner) (*models.ChannelConfig, error) {
	cfg := &models.ChannelConfig{}
	err := row.Scan(
		&cfg.ID, &cfg.ChannelKey, &cfg.TelegramID, &cfg.IsActive,
		&cfg.RiskPerTrade, &cfg.RiskTolerance, &cfg.MagicNumber, &cfg.MaxSlippagePoints,
		&cfg.TradeMonitorIntervalSec, &cfg.CreatedAt, &cfg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
