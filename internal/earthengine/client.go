package earthengine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"suso-stats/internal/logger"
	"suso-stats/internal/metrics"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	htransport "google.golang.org/api/transport/http"
)

// HighVolumeEndpoint：高并发场景推荐的 Earth Engine 接入点
const HighVolumeEndpoint = "https://earthengine-highvolume.googleapis.com/"

// OAuth 作用域
const (
	Scope              = "https://www.googleapis.com/auth/earthengine"
	CloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"
)

// Config：会话参数
// 约束：Project 必填；Endpoint 为空时使用高并发接入点；Options 用于测试注入凭证等传输参数
type Config struct {
	Project  string
	Endpoint string
	Timeout  time.Duration
	Options  []option.ClientOption
}

// 文档注释：Earth Engine REST 客户端
// 背景：封装 projects.value.compute；凭证走 Application Default Credentials，与函数运行身份一致。
// 约束：线程安全，可跨请求复用；单次调用超时由 Timeout 控制，0 表示仅受调用方上下文约束。
type Client struct {
	hc       *http.Client
	endpoint string
	project  string
	timeout  time.Duration
}

// New：建立会话（解析凭证并构建带鉴权的 HTTP 客户端）
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Project == "" {
		return nil, errors.New("earthengine: missing cloud project")
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = HighVolumeEndpoint
	}
	if !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}
	opts := append([]option.ClientOption{option.WithScopes(Scope, CloudPlatformScope)}, cfg.Options...)
	hc, _, err := htransport.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("earthengine: init transport: %w", err)
	}
	logger.L().Info("ee_session_ready", "project", cfg.Project, "endpoint", endpoint)
	return &Client{hc: hc, endpoint: endpoint, project: cfg.Project, timeout: cfg.Timeout}, nil
}

// Project：会话绑定的云项目
func (c *Client) Project() string { return c.project }

// 文档注释：计算表达式并返回客户端值
// 背景：等价于交互式客户端的 getInfo；结果为 JSON 解码后的通用值（字典为 map[string]any，数字为 float64）。
// 异常：非 2xx 响应转换为 *googleapi.Error；调用方用 IsTransient 判定是否重试。
func (c *Client) Compute(ctx context.Context, root *ValueNode) (any, error) {
	expr, err := Encode(root)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(computeRequest{Expression: expr})
	if err != nil {
		return nil, fmt.Errorf("earthengine: encode request: %w", err)
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	u := c.endpoint + "v1/projects/" + c.project + "/value:compute"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("content-type", "application/json")

	t0 := time.Now()
	metrics.RemoteRequestsTotal.Inc()
	logger.L().Debug("ee_compute_req", "values", len(expr.Values), "bytes", len(body))
	res, err := c.do(req)
	ms := time.Since(t0).Milliseconds()
	metrics.RemoteDurationMs.Observe(float64(ms))
	if err != nil {
		class := "permanent"
		if IsTransient(err) {
			class = "transient"
		}
		metrics.RemoteFailTotal.WithLabelValues(class).Inc()
		logger.L().Error("ee_compute_error", "class", class, "duration_ms", ms, "err", err)
		return nil, fmt.Errorf("earthengine: compute: %w", err)
	}
	logger.L().Debug("ee_compute_ok", "duration_ms", ms)
	return res.Result, nil
}

func (c *Client) do(req *http.Request) (*computeResponse, error) {
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := googleapi.CheckResponse(resp); err != nil {
		return nil, err
	}
	var out computeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

var (
	sessionOnce sync.Once
	session     *Client
	sessionErr  error
)

// 文档注释：进程级会话
// 背景：冷启动时建立一次，同一实例后续调用复用；失败结果同样被缓存，避免每次请求重复探测凭证。
// 约束：仅首次调用的 cfg 生效。
func Init(ctx context.Context, cfg Config) (*Client, error) {
	sessionOnce.Do(func() {
		session, sessionErr = New(ctx, cfg)
	})
	return session, sessionErr
}
