package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var durationBuckets = []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000}

var (
	BatchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "suso_batches_total",
		Help: "Remote function batches by function and outcome",
	}, []string{"function", "outcome"})
	CallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "suso_calls_total",
		Help: "Per-row calls by function and outcome",
	}, []string{"function", "outcome"})
	CallDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "suso_call_duration_ms",
		Help:    "Per-row call duration in milliseconds, retries included",
		Buckets: durationBuckets,
	}, []string{"function"})
	RemoteRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "suso_ee_requests_total",
		Help: "Total Earth Engine value:compute requests",
	})
	RemoteFailTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "suso_ee_fail_total",
		Help: "Earth Engine request failures by class",
	}, []string{"class"})
	RemoteDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "suso_ee_duration_ms",
		Help:    "Earth Engine request duration in milliseconds",
		Buckets: durationBuckets,
	})
	RetriesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "suso_retries_total",
		Help: "Total retried derivations after transient failures",
	})
	RateLimitedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "suso_rate_limited_total",
		Help: "Requests rejected by the rate limiter",
	})
)

func init() {
	prometheus.MustRegister(BatchesTotal)
	prometheus.MustRegister(CallsTotal)
	prometheus.MustRegister(CallDurationMs)
	prometheus.MustRegister(RemoteRequestsTotal)
	prometheus.MustRegister(RemoteFailTotal)
	prometheus.MustRegister(RemoteDurationMs)
	prometheus.MustRegister(RetriesTotal)
	prometheus.MustRegister(RateLimitedTotal)
}

// 文档注释：返回 Prometheus 指标监听器
// 背景：统一暴露注册指标到 /metrics 路径，供抓取；在主入口挂载。
func Handler() http.Handler { return promhttp.Handler() }
