// 包 api：集中注册 HTTP API 路由以解耦主入口，便于后续扩展与替换
package api

import (
	"context"
	"net/http"

	"suso-stats/internal/stats"
	"suso-stats/internal/store"

	"github.com/paulmach/orb"
)

// Deriver：两个远程函数背后的计算
type Deriver interface {
	Derive(ctx context.Context, g orb.Geometry) (stats.Metrics, error)
	Probabilities(ctx context.Context, g orb.Geometry) (map[string]*float64, error)
}

type handlers struct {
	deriver Deriver
	ledger  *store.Store
	project string
}

// 构建并返回 API 路由：独立 ServeMux 便于在主入口挂载到 /api 前缀
// 约束：根路径同样挂载面积统计函数，便于作为单函数部署时直接作为远程连接端点。
func BuildRoutes(d Deriver, st *store.Store, project string) *http.ServeMux {
	h := &handlers{deriver: d, ledger: st, project: project}
	suso := h.batch(function{name: "suso_stats", run: func(ctx context.Context, g orb.Geometry) (any, error) {
		return d.Derive(ctx, g)
	}})
	probs := h.batch(function{name: "suso_probabilities", run: func(ctx context.Context, g orb.Geometry) (any, error) {
		return d.Probabilities(ctx, g)
	}})

	apiMux := http.NewServeMux()
	apiMux.Handle("/", suso)
	apiMux.Handle("/suso", suso)
	apiMux.Handle("/probabilities", probs)

	apiMux.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		t, err := h.ledger.GetTotals(r.Context())
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, t)
	})

	apiMux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "project": h.project})
	})

	return apiMux
}
