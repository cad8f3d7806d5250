package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"suso-stats/internal/logger"
	"suso-stats/internal/metrics"
	"suso-stats/internal/stats"
	"suso-stats/internal/store"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
)

// maxBodyBytes：单批请求体上限；仓库侧默认批大小下远小于此值
const maxBodyBytes = 32 << 20

// function：一个远程函数（名称用于指标与台账，run 为逐行计算）
type function struct {
	name string
	run  func(ctx context.Context, g orb.Geometry) (any, error)
}

// 文档注释：远程函数批量处理器
// 背景：仓库侧一次请求携带多行；按输入顺序逐行串行计算，单行失败只影响该行的 reply。
// 约束：只有请求体本身不可用（空、非 JSON、缺少 calls）时整批返回 400；其余错误一律落到对应行。
func (h *handlers) batch(fn function) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			writeBatchError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			metrics.BatchesTotal.WithLabelValues(fn.name, "rejected").Inc()
			logger.L().Warn("batch_rejected", "function", fn.name, "err", err)
			writeBatchError(w, http.StatusBadRequest, fmt.Sprintf("read request body: %v", err))
			return
		}
		req, calls, err := decodeBatch(body)
		if err != nil {
			metrics.BatchesTotal.WithLabelValues(fn.name, "rejected").Inc()
			logger.L().Warn("batch_rejected", "function", fn.name, "err", err)
			writeBatchError(w, http.StatusBadRequest, err.Error())
			return
		}
		batchID := req.RequestID
		if batchID == "" {
			batchID = uuid.NewString()
		}
		ctx := r.Context()
		logger.L().Info("batch_start",
			"function", fn.name,
			"batch", batchID,
			"calls", len(calls),
			"caller", req.Caller,
			"request_id", logger.RequestID(ctx),
		)
		t0 := time.Now()
		replies := make([]string, len(calls))
		failed := 0
		for i, c := range calls {
			reply, ok := h.call(ctx, fn, batchID, i, c)
			if !ok {
				failed++
			}
			replies[i] = reply
		}
		outcome := "ok"
		if failed > 0 {
			outcome = "partial"
		}
		metrics.BatchesTotal.WithLabelValues(fn.name, outcome).Inc()
		logger.L().Info("batch_done",
			"function", fn.name,
			"batch", batchID,
			"calls", len(calls),
			"failed", failed,
			"duration_ms", time.Since(t0).Milliseconds(),
		)
		writeJSON(w, http.StatusOK, batchResponse{Replies: replies, Status: http.StatusOK, Mimetype: mimeJSON})
	}
}

// call：单行计算；返回 reply 文本与是否成功
func (h *handlers) call(ctx context.Context, fn function, batchID string, index int, c json.RawMessage) (string, bool) {
	t0 := time.Now()
	g, raw, err := geometryArg(c)
	logger.L().Info("call_input", "function", fn.name, "batch", batchID, "index", index, "geometry", string(raw))
	var reply []byte
	var res any
	if err == nil {
		res, err = fn.run(ctx, g)
	}
	if err == nil {
		reply, err = json.Marshal(res)
	}
	ms := time.Since(t0).Milliseconds()
	metrics.CallDurationMs.WithLabelValues(fn.name).Observe(float64(ms))
	rec := store.CallRecord{BatchID: batchID, Index: index, Function: fn.name, OK: err == nil, DurationMs: ms}
	if err != nil {
		msg := err.Error()
		rec.Error = &msg
		metrics.CallsTotal.WithLabelValues(fn.name, "error").Inc()
		logger.L().Error("call_error", "function", fn.name, "batch", batchID, "index", index, "duration_ms", ms, "err", err)
		reply, _ = json.Marshal(callError{ErrorMessage: msg})
	} else {
		if m, ok := res.(stats.Metrics); ok {
			rec.Gini = m.Gini
			rec.TotalArea = m.TotalArea
		}
		metrics.CallsTotal.WithLabelValues(fn.name, "ok").Inc()
		logger.L().Info("call_result", "function", fn.name, "batch", batchID, "index", index, "duration_ms", ms, "result", string(reply))
	}
	_ = h.ledger.RecordCall(ctx, rec)
	return string(reply), err == nil
}

// decodeBatch：解析请求体并取出 calls
func decodeBatch(body []byte) (batchRequest, []json.RawMessage, error) {
	var req batchRequest
	if len(bytes.TrimSpace(body)) == 0 {
		return req, nil, errors.New("empty request body")
	}
	if err := json.Unmarshal(body, &req); err != nil {
		return req, nil, fmt.Errorf("invalid request body: %w", err)
	}
	raw := bytes.TrimSpace(req.Calls)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return req, nil, errors.New("request has no calls")
	}
	var calls []json.RawMessage
	if err := json.Unmarshal(raw, &calls); err != nil {
		return req, nil, errors.New("calls must be an array")
	}
	return req, calls, nil
}

// 文档注释：取出单行的几何参数并解析
// 背景：仓库侧通常传 ST_ASGEOJSON 的文本；直接传 JSON 对象时按几何本身处理。
// 约束：返回的 raw 为用于日志的原始几何文本，解析失败时同样返回。
func geometryArg(c json.RawMessage) (orb.Geometry, []byte, error) {
	var args []json.RawMessage
	if err := json.Unmarshal(c, &args); err != nil {
		return nil, c, fmt.Errorf("call must be an argument list: %w", err)
	}
	if len(args) == 0 {
		return nil, c, errors.New("call has no arguments")
	}
	arg := bytes.TrimSpace(args[0])
	var raw []byte
	switch {
	case len(arg) > 0 && arg[0] == '"':
		var s string
		if err := json.Unmarshal(arg, &s); err != nil {
			return nil, arg, fmt.Errorf("geometry argument: %w", err)
		}
		raw = []byte(s)
	case len(arg) > 0 && arg[0] == '{':
		raw = arg
	default:
		return nil, arg, errors.New("geometry argument must be a GeoJSON string")
	}
	g, err := stats.ParseGeometry(raw)
	return g, raw, err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", mimeJSON)
	w.Header().Set("cache-control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeBatchError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, batchError{Error: msg, Status: status, Mimetype: mimeJSON})
}
