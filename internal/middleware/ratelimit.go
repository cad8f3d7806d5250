package middleware

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"sync"
	"time"

	"suso-stats/internal/logger"
	"suso-stats/internal/metrics"
	"suso-stats/pkg/origindefense"

	"github.com/redis/go-redis/v9"
)

// Limiter：每秒准入判定
type Limiter interface {
	Allow(ctx context.Context) bool
}

// 文档注释：令牌桶限流（每秒，进程内）
// 背景：仓库侧并发调用时对远端配额形成保护；不做排队，仅丢弃并返回 429。
type TokenBucket struct {
	capacity int
	tokens   int
	lastSec  int64
	now      func() time.Time
	mu       sync.Mutex
}

func NewTokenBucket(qps int) *TokenBucket {
	return &TokenBucket{capacity: qps, tokens: qps, lastSec: time.Now().Unix(), now: time.Now}
}

func (tb *TokenBucket) Allow(context.Context) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	nowSec := tb.now().Unix()
	if tb.lastSec != nowSec {
		tb.lastSec = nowSec
		tb.tokens = tb.capacity
	}
	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

// 文档注释：Redis 固定窗口限流（跨实例共享）
// 背景：函数平台会按负载横向扩出多个实例，进程内令牌桶无法约束总速率；按秒键 INCR 计数，首个请求设置过期。
// 约束：Redis 不可用时放行，避免限流组件成为单点。
type RedisWindow struct {
	rc     *redis.Client
	prefix string
	limit  int64
	now    func() time.Time
}

func NewRedisWindow(rc *redis.Client, prefix string, qps int) *RedisWindow {
	return &RedisWindow{rc: rc, prefix: prefix, limit: int64(qps), now: time.Now}
}

func (w *RedisWindow) Allow(ctx context.Context) bool {
	key := w.prefix + strconv.FormatInt(w.now().Unix(), 10)
	n, err := w.rc.Incr(ctx, key).Result()
	if err != nil {
		logger.L().Error("ratelimit_redis_error", "err", err)
		return true
	}
	if n == 1 {
		_ = w.rc.Expire(ctx, key, 2*time.Second).Err()
	}
	return n <= w.limit
}

// Limit：限流中间件
func Limit(l Limiter, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(r.Context()) {
			metrics.RateLimitedTotal.Inc()
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// 文档注释：入口中间件链
// 背景：源站白名单在外层；按 RATE_LIMIT_ENABLED 开启限流，配置了 Redis 时使用共享窗口。
func Wrap(next http.Handler, rc *redis.Client) http.Handler {
	od := origindefense.NewFromEnv(logger.L())
	h := od.Wrap(next)
	if os.Getenv("RATE_LIMIT_ENABLED") != "true" {
		return h
	}
	qps := 50
	if s := os.Getenv("RATE_LIMIT_QPS"); s != "" {
		if n, e := strconv.Atoi(s); e == nil && n > 0 {
			qps = n
		}
	}
	var lim Limiter = NewTokenBucket(qps)
	if rc != nil {
		lim = NewRedisWindow(rc, "suso:rl:", qps)
		logger.L().Info("ratelimit_shared", "qps", qps)
	} else {
		logger.L().Info("ratelimit_local", "qps", qps)
	}
	return Limit(lim, h)
}
