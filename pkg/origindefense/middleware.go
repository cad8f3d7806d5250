package origindefense

import (
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
)

// 文档注释：源站防御（IP/CIDR 白名单）
// 背景：函数端点通常只由数据仓库的远程连接出口调用；部署在公网时仅放行仓库出口网段与调试 IP，其他请求统一返回 403。
// 约束：
// 1) 不依赖项目内部代码，提供独立包以便在其他项目直接复用；
// 2) 支持 IPv4/IPv6 CIDR；
// 3) 真实来源 IP 以 RemoteAddr 为准；如需识别上游真实 IP，请通过 ORIGIN_REAL_IP_HEADER 指定。
type Middleware struct {
	l            *slog.Logger
	enabled      bool
	allowIPs     map[string]struct{}
	allowCIDRs   []*net.IPNet
	realIPHeader string
}

// Options：显式构建参数，字段含义同环境变量
type Options struct {
	Enabled      bool
	AllowIPs     []string
	AllowCIDRs   []string
	AllowLocal   bool
	RealIPHeader string
}

// New：按参数构建中间件；无法解析的 IP/CIDR 记录告警后忽略
func New(l *slog.Logger, o Options) *Middleware {
	m := &Middleware{l: l, enabled: o.Enabled, allowIPs: map[string]struct{}{}, realIPHeader: strings.TrimSpace(o.RealIPHeader)}
	for _, p := range o.AllowIPs {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if ip := net.ParseIP(p); ip != nil {
			m.allowIPs[ip.String()] = struct{}{}
		} else {
			l.Warn("origin_defense_bad_ip", "value", p)
		}
	}
	for _, c := range o.AllowCIDRs {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if _, n, err := net.ParseCIDR(c); err == nil {
			m.allowCIDRs = append(m.allowCIDRs, n)
		} else {
			l.Warn("origin_defense_bad_cidr", "value", c, "err", err)
		}
	}
	if o.AllowLocal {
		m.allowIPs["127.0.0.1"] = struct{}{}
		m.allowIPs["::1"] = struct{}{}
	}
	return m
}

// NewFromEnv：按环境变量构建中间件
// 环境变量：
// ORIGIN_DEFENSE_ENABLE=true              是否启用防御
// ORIGIN_ALLOW_IPS=1.2.3.4,5.6.7.8       允许的单 IP 列表（逗号分隔）
// ORIGIN_ALLOW_CIDRS=10.0.0.0/8,...      允许的 CIDR 列表（逗号分隔，支持 v4/v6）
// ORIGIN_ALLOW_LOCAL=true                 允许 127.0.0.1/::1（本地开发）
// ORIGIN_REAL_IP_HEADER=X-Forwarded-For   指定上游真实 IP 头（首个有效 IP 生效）
func NewFromEnv(l *slog.Logger) *Middleware {
	return New(l, Options{
		Enabled:      os.Getenv("ORIGIN_DEFENSE_ENABLE") == "true",
		AllowIPs:     strings.Split(os.Getenv("ORIGIN_ALLOW_IPS"), ","),
		AllowCIDRs:   strings.Split(os.Getenv("ORIGIN_ALLOW_CIDRS"), ","),
		AllowLocal:   os.Getenv("ORIGIN_ALLOW_LOCAL") == "true",
		RealIPHeader: os.Getenv("ORIGIN_REAL_IP_HEADER"),
	})
}

// Wrap：生成 http.Handler 中间件；未启用时原样返回
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	if !m.enabled {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIP(r, m.realIPHeader)
		if ip == nil {
			m.l.Debug("origin_defense_block", "reason", "no_ip")
			write403(w)
			return
		}
		if m.Allowed(ip) {
			next.ServeHTTP(w, r)
			return
		}
		m.l.Debug("origin_defense_block", "ip", ip.String())
		write403(w)
	})
}

// Allowed：判断 IP 是否在允许集合
func (m *Middleware) Allowed(ip net.IP) bool {
	if _, ok := m.allowIPs[ip.String()]; ok {
		return true
	}
	for _, n := range m.allowCIDRs {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

// ClientIP：解析请求来源 IP；header 非空时优先取该头的首个有效 IP
func ClientIP(r *http.Request, header string) net.IP {
	if header != "" {
		if raw := r.Header.Get(header); raw != "" {
			first := strings.TrimSpace(strings.Split(raw, ",")[0])
			if ip := net.ParseIP(first); ip != nil {
				return ip
			}
		}
	}
	host := r.RemoteAddr
	// RemoteAddr 可能包含端口
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return net.ParseIP(host)
}

// write403：与函数协议一致的 JSON 错误体，便于仓库侧直接展示原因
func write403(w http.ResponseWriter) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error":    "origin not allowed",
		"status":   http.StatusForbidden,
		"mimetype": "application/json",
	})
}
