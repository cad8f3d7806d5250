package stats

import (
	"context"
	"fmt"
	"time"

	"suso-stats/internal/earthengine"
	"suso-stats/internal/layers"
	"suso-stats/internal/logger"
	"suso-stats/internal/metrics"

	"github.com/cenkalti/backoff/v4"
	"github.com/paulmach/orb"
)

// Source：远端栅格源的两个区域查询
// AreaStats 返回各面积波段之和并附带 total_area；ProbabilityMeans 返回各概率波段均值。
type Source interface {
	AreaStats(ctx context.Context, g orb.Geometry) (map[string]any, error)
	ProbabilityMeans(ctx context.Context, g orb.Geometry) (map[string]any, error)
}

// RetryPolicy：指数退避参数，零值字段使用库默认值
type RetryPolicy struct {
	MaxAttempts     int
	MaxElapsed      time.Duration
	InitialInterval time.Duration
}

// DefaultRetryPolicy：最多 5 次尝试，总耗时上限 120 秒
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, MaxElapsed: 120 * time.Second}
}

func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	eb := backoff.NewExponentialBackOff()
	if p.InitialInterval > 0 {
		eb.InitialInterval = p.InitialInterval
	}
	if p.MaxElapsed > 0 {
		eb.MaxElapsedTime = p.MaxElapsed
	}
	var b backoff.BackOff = eb
	if p.MaxAttempts > 0 {
		b = backoff.WithMaxRetries(b, uint64(p.MaxAttempts-1))
	}
	return backoff.WithContext(b, ctx)
}

// Deriver：统计推导器，无请求间状态
type Deriver struct {
	src    Source
	policy RetryPolicy
}

func NewDeriver(src Source, policy RetryPolicy) *Deriver {
	return &Deriver{src: src, policy: policy}
}

// retry：仅暂时性错误重试，其余错误立即返回
func (d *Deriver) retry(ctx context.Context, op string, fn func() error) error {
	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		err := fn()
		if err == nil || earthengine.IsTransient(err) {
			return err
		}
		return backoff.Permanent(err)
	}, d.policy.backOff(ctx), func(err error, wait time.Duration) {
		metrics.RetriesTotal.Inc()
		logger.L().Warn("derive_retry", "op", op, "attempt", attempt, "wait_ms", wait.Milliseconds(), "err", err)
	})
}

// 文档注释：推导单个区域的面积统计
// 背景：远端一次往返取回各类面积之和与测地总面积，本地计算异质性指数；整个过程按重试策略包裹。
// 异常：非法几何等服务端 4xx 错误、总面积为 0 不重试，直接返回。
func (d *Deriver) Derive(ctx context.Context, g orb.Geometry) (Metrics, error) {
	var out Metrics
	err := d.retry(ctx, "area_stats", func() error {
		raw, err := d.src.AreaStats(ctx, g)
		if err != nil {
			return err
		}
		m, err := metricsFrom(raw)
		if err != nil {
			return err
		}
		out = m
		return nil
	})
	return out, err
}

// 文档注释：区域内各概率波段均值
// 约束：区域内全部被掩膜的波段返回 null；结果始终包含全部九个波段键。
func (d *Deriver) Probabilities(ctx context.Context, g orb.Geometry) (map[string]*float64, error) {
	var out map[string]*float64
	err := d.retry(ctx, "probability_means", func() error {
		raw, err := d.src.ProbabilityMeans(ctx, g)
		if err != nil {
			return err
		}
		res := make(map[string]*float64, len(layers.ProbabilityBands))
		for _, b := range layers.ProbabilityBands {
			v, ok, err := number(raw[b])
			if err != nil {
				return fmt.Errorf("%s: %w", b, err)
			}
			if ok {
				res[b] = &v
			} else {
				res[b] = nil
			}
		}
		out = res
		return nil
	})
	return out, err
}
