package migrate

import (
	"suso-stats/internal/logger"

	"github.com/jmoiron/sqlx"
)

// 背景：首次运行自动创建调用台账与统计表
// 约束：使用 IF NOT EXISTS 避免与既有结构冲突；仅创建最小必需结构
func EnsureSchema(db *sqlx.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS _suso_calls (
            id BIGSERIAL PRIMARY KEY,
            batch_id TEXT NOT NULL,
            call_index INT NOT NULL,
            function TEXT NOT NULL,
            ok BOOLEAN NOT NULL,
            gini DOUBLE PRECISION,
            total_area DOUBLE PRECISION,
            error_message TEXT,
            duration_ms BIGINT NOT NULL DEFAULT 0,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,
		`CREATE INDEX IF NOT EXISTS idx_suso_calls_batch ON _suso_calls(batch_id, call_index)`,
		`CREATE TABLE IF NOT EXISTS _suso_stats_total (
            id INT PRIMARY KEY,
            total_calls BIGINT NOT NULL DEFAULT 0,
            total_errors BIGINT NOT NULL DEFAULT 0
        )`,
		`CREATE TABLE IF NOT EXISTS _suso_stats_daily (
            day DATE PRIMARY KEY,
            calls BIGINT NOT NULL DEFAULT 0,
            errors BIGINT NOT NULL DEFAULT 0
        )`,
		`INSERT INTO _suso_stats_total(id, total_calls, total_errors)
         VALUES(1, 0, 0)
         ON CONFLICT (id) DO NOTHING`,
	}
	for i, s := range stmts {
		logger.L().Debug("schema_exec", "idx", i)
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	logger.L().Debug("schema_done")
	return nil
}
