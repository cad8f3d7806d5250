// 程序入口：仅负责读取配置、初始化依赖并启动服务；API 注册在 internal/api 以便扩展
package main

import (
	"context"
	"net/http"
	"os"

	"suso-stats/internal/api"
	"suso-stats/internal/config"
	"suso-stats/internal/earthengine"
	"suso-stats/internal/layers"
	"suso-stats/internal/logger"
	"suso-stats/internal/metrics"
	"suso-stats/internal/middleware"
	"suso-stats/internal/migrate"
	"suso-stats/internal/stats"
	"suso-stats/internal/store"
	"suso-stats/internal/utils"
)

func main() {
	config.LoadDotEnv()
	// 日志初始化
	l := logger.Setup()
	l.Debug("log_init_ok")
	cfg, err := config.FromEnv()
	if err != nil {
		l.Error("config_error", "err", err)
		os.Exit(1)
	}
	l.Debug("config_api_base", "base", cfg.APIBase)

	th, err := cfg.Thresholds()
	if err != nil {
		l.Error("thresholds_error", "file", cfg.ThresholdsFile, "err", err)
		os.Exit(1)
	}

	// 会话在冷启动时建立，后续请求复用
	client, err := earthengine.Init(context.Background(), cfg.EarthEngine())
	if err != nil {
		l.Error("ee_init_error", "err", err)
		os.Exit(1)
	}
	catalog := layers.NewCatalog(th)
	l.Info("catalog_ready", "file", cfg.ThresholdsFile, "thresholds", catalog.Thresholds(), "area_bands", layers.AreaBands)
	deriver := stats.NewDeriver(stats.NewRemoteSource(client, catalog), cfg.Retry)

	var st *store.Store
	db, err := utils.OpenPostgresFromEnv()
	if err != nil {
		l.Error("db_open_error", "err", err)
		os.Exit(1)
	}
	if db != nil {
		defer db.Close()
		l.Info("db_open_ok")
		if err := db.Ping(); err != nil {
			l.Error("db_ping_error", "err", err)
		} else {
			l.Info("db_ping_ok")
		}
		if err := migrate.EnsureSchema(db); err != nil {
			l.Error("schema_error", "err", err)
			os.Exit(1)
		}
		st = store.AttachDB(db)
	} else {
		l.Info("ledger_disabled")
	}

	rc := utils.OpenRedisFromEnv()
	if rc == nil {
		l.Info("redis_disabled")
	} else {
		if err := rc.Ping(context.Background()).Err(); err != nil {
			l.Error("redis_ping_error", "err", err)
		} else {
			l.Info("redis_ping_ok")
		}
	}

	apiMux := api.BuildRoutes(deriver, st, client.Project())
	mux := http.NewServeMux()
	if cfg.APIBase != "" {
		mux.Handle(cfg.APIBase+"/", http.StripPrefix(cfg.APIBase, apiMux))
	}
	mux.Handle(cfg.APIBase+"/metrics", metrics.Handler())
	// 根路径直接作为远程连接端点
	mux.Handle("/", apiMux)

	handler := logger.AccessMiddleware(l)(mux)
	handler = middleware.Wrap(handler, rc)
	s := &http.Server{Addr: cfg.Addr, Handler: handler}
	l.Info("listening", "addr", cfg.Addr, "project", client.Project())
	if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		l.Error("server_error", "err", err)
		os.Exit(1)
	}
}
