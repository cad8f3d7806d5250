package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"suso-stats/internal/earthengine"
	"suso-stats/internal/layers"
	"suso-stats/internal/stats"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

// 端到端：批处理 -> 推导器 -> Earth Engine 客户端 -> 本地替身服务
func TestBatchAgainstRemoteEngine(t *testing.T) {
	var requests atomic.Int32
	engine := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := requests.Add(1)
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("content-type", "application/json")
		switch {
		case n == 2:
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = io.WriteString(w, `{"error":{"code":503,"message":"backend unavailable","status":"UNAVAILABLE"}}`)
		case bytes.Contains(body, []byte("GeometryConstructors.Point")):
			_, _ = io.WriteString(w, `{"result":{"forest":0,"unclassified":0,"confusion":null,"total_area":0}}`)
		default:
			_, _ = io.WriteString(w, `{"result":{"forest":600,"cocoa":200,"palm":100,"unclassified":100,"confusion":50,"total_area":1000}}`)
		}
	}))
	t.Cleanup(engine.Close)

	client, err := earthengine.New(context.Background(), earthengine.Config{
		Project:  "test-project",
		Endpoint: engine.URL,
		Options:  []option.ClientOption{option.WithoutAuthentication()},
	})
	require.NoError(t, err)
	policy := stats.RetryPolicy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxElapsed: 5 * time.Second}
	d := stats.NewDeriver(stats.NewRemoteSource(client, layers.NewCatalog(nil)), policy)

	point := `{"type":"Point","coordinates":[1,2]}`
	rec, out := do(t, BuildRoutes(d, nil, "test-project"), http.MethodPost, "/", calls(polygon(0), polygon(1), point))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, out.Replies, 3)
	for _, i := range []int{0, 1} {
		m := reply(t, out.Replies[i])
		assert.Equal(t, 600.0, m["forest"], "reply %d", i)
		assert.Equal(t, 50.0, m["confusion"], "reply %d", i)
		assert.Equal(t, 1000.0, m["total_area"], "reply %d", i)
		assert.InDelta(t, 0.1, m["gini"], 1e-12, "reply %d", i)
		assert.NotContains(t, m, "errorMessage")
	}
	assert.Equal(t, map[string]any{"errorMessage": stats.ErrZeroArea.Error()}, reply(t, out.Replies[2]))
	// 第二行首次请求 503 后重试一次，点几何不重试
	assert.EqualValues(t, 4, requests.Load())
}
