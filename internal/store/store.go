// 包 store: 调用台账与统计的 PostgreSQL 访问层
package store

import (
	"context"
	"database/sql"
	"errors"

	"suso-stats/internal/logger"

	"github.com/jmoiron/sqlx"
)

// Store: 持有连接池；nil Store 的所有方法为空操作，便于未配置数据库时直接跳过
type Store struct {
	db *sqlx.DB
}

func AttachDB(db *sqlx.DB) *Store { return &Store{db: db} }

func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}

// CallRecord: 单行调用的台账记录
type CallRecord struct {
	BatchID    string   `db:"batch_id"`
	Index      int      `db:"call_index"`
	Function   string   `db:"function"`
	OK         bool     `db:"ok"`
	Gini       *float64 `db:"gini"`
	TotalArea  *float64 `db:"total_area"`
	Error      *string  `db:"error_message"`
	DurationMs int64    `db:"duration_ms"`
}

// 文档注释：写入单行调用记录并递增计数
// 背景：台账用于离线核对仓库侧调用与错误分布；写入失败只记日志，不影响调用结果。
func (s *Store) RecordCall(ctx context.Context, rec CallRecord) error {
	if s == nil {
		return nil
	}
	_, err := s.db.NamedExecContext(ctx, `INSERT INTO _suso_calls(batch_id, call_index, function, ok, gini, total_area, error_message, duration_ms)
        VALUES(:batch_id, :call_index, :function, :ok, :gini, :total_area, :error_message, :duration_ms)`, rec)
	if err != nil {
		logger.L().Error("ledger_insert_error", "batch", rec.BatchID, "index", rec.Index, "err", err)
		return err
	}
	errs := 0
	if !rec.OK {
		errs = 1
	}
	// 计数失败不回滚明细，两张计数表各自独立累加
	if _, err := s.db.ExecContext(ctx, "UPDATE _suso_stats_total SET total_calls=total_calls+1, total_errors=total_errors+$1 WHERE id=1", errs); err != nil {
		logger.L().Error("ledger_counter_error", "counter", "total", "batch", rec.BatchID, "index", rec.Index, "err", err)
	}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO _suso_stats_daily(day, calls, errors) VALUES(current_date, 1, $1)
        ON CONFLICT (day) DO UPDATE SET calls=_suso_stats_daily.calls+1, errors=_suso_stats_daily.errors+EXCLUDED.errors`, errs); err != nil {
		logger.L().Error("ledger_counter_error", "counter", "daily", "batch", rec.BatchID, "index", rec.Index, "err", err)
	}
	logger.L().Debug("ledger_insert", "batch", rec.BatchID, "index", rec.Index, "ok", rec.OK)
	return nil
}

// Totals: 累计调用、当日调用与累计错误
type Totals struct {
	Total  int64 `db:"total_calls" json:"total"`
	Errors int64 `db:"total_errors" json:"errors"`
	Today  int64 `db:"-" json:"today"`
}

func (s *Store) GetTotals(ctx context.Context) (*Totals, error) {
	var t Totals
	if s == nil {
		return &t, nil
	}
	if err := s.db.GetContext(ctx, &t, "SELECT total_calls, total_errors FROM _suso_stats_total WHERE id=1"); err != nil {
		return nil, err
	}
	// 当日尚无调用时没有对应行，按 0 处理
	if err := s.db.GetContext(ctx, &t.Today, "SELECT calls FROM _suso_stats_daily WHERE day=current_date"); err != nil && !errors.Is(err, sql.ErrNoRows) {
		logger.L().Error("ledger_counter_error", "counter", "daily", "err", err)
	}
	logger.L().Debug("stats_totals", "total", t.Total, "today", t.Today, "errors", t.Errors)
	return &t, nil
}
