package utils

import (
	"net"
	"net/url"
	"os"
	"strconv"

	"suso-stats/internal/logger"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil && n >= 0 {
		return n
	}
	return def
}

// PostgresDSN：由 PG_* 环境变量拼装连接串，用户名与口令按 URL 规则转义
// 约束：未配置 PG_HOST 时返回空串，表示不启用调用台账
func PostgresDSN() string {
	host := os.Getenv("PG_HOST")
	if host == "" {
		return ""
	}
	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(host, envOr("PG_PORT", "5432")),
		Path:     "/" + envOr("PG_DB", "suso"),
		RawQuery: url.Values{"sslmode": {envOr("PG_SSLMODE", "disable")}}.Encode(),
	}
	user := envOr("PG_USER", "postgres")
	if pass := os.Getenv("PG_PASSWORD"); pass != "" {
		u.User = url.UserPassword(user, pass)
	} else {
		u.User = url.User(user)
	}
	return u.String()
}

// OpenPostgresFromEnv：未配置 PG_HOST 时返回 (nil, nil)
// 背景：函数实例并发度低，连接池默认保持很小（4 打开 / 2 空闲）。
func OpenPostgresFromEnv() (*sqlx.DB, error) {
	dsn := PostgresDSN()
	if dsn == "" {
		return nil, nil
	}
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	maxOpen, maxIdle := envInt("PG_MAX_OPEN_CONNS", 4), envInt("PG_MAX_IDLE_CONNS", 2)
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	logger.L().Debug("pg_pool", "max_open", maxOpen, "max_idle", maxIdle)
	return db, nil
}
