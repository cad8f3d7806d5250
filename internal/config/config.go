// 包 config：汇总服务与命令行共用的运行参数；环境变量优先，.env 文件仅作本地开发补充
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"suso-stats/internal/earthengine"
	"suso-stats/internal/layers"
	"suso-stats/internal/stats"

	"github.com/joho/godotenv"
)

// Config：进程级配置快照
type Config struct {
	Project        string
	EEEndpoint     string
	Addr           string
	APIBase        string
	ThresholdsFile string
	RemoteTimeout  time.Duration
	Retry          stats.RetryPolicy
}

// LoadDotEnv：加载 .env 与 data/env/.env；已存在的环境变量不被覆盖
func LoadDotEnv() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(filepath.Join("data", "env", ".env"))
}

// 文档注释：从环境变量读取配置
// 背景：函数平台只注入 PORT 与 GOOGLE_CLOUD_PROJECT；其余参数缺省即可运行。
// 异常：数值型变量格式错误时返回错误，而不是静默回退默认值。
func FromEnv() (Config, error) {
	c := Config{
		Project:        firstNonEmpty(os.Getenv("PROJECT"), os.Getenv("GOOGLE_CLOUD_PROJECT")),
		EEEndpoint:     firstNonEmpty(os.Getenv("EE_API_URL"), earthengine.HighVolumeEndpoint),
		Addr:           os.Getenv("ADDR"),
		APIBase:        strings.TrimRight(firstNonEmpty(os.Getenv("API_BASE"), "/api"), "/"),
		ThresholdsFile: os.Getenv("THRESHOLDS_FILE"),
		Retry:          stats.DefaultRetryPolicy(),
	}
	if c.Addr == "" {
		if p := os.Getenv("PORT"); p != "" {
			c.Addr = ":" + p
		} else {
			c.Addr = ":8080"
		}
	}
	n, err := intEnv("RETRY_MAX_ATTEMPTS", c.Retry.MaxAttempts)
	if err != nil {
		return c, err
	}
	c.Retry.MaxAttempts = n
	if n, err = intEnv("RETRY_MAX_ELAPSED_S", int(c.Retry.MaxElapsed/time.Second)); err != nil {
		return c, err
	}
	c.Retry.MaxElapsed = time.Duration(n) * time.Second
	if n, err = intEnv("REMOTE_TIMEOUT_S", 0); err != nil {
		return c, err
	}
	c.RemoteTimeout = time.Duration(n) * time.Second
	return c, nil
}

// Thresholds：默认阈值，或 THRESHOLDS_FILE 覆盖后的阈值
func (c Config) Thresholds() (layers.Thresholds, error) {
	if c.ThresholdsFile == "" {
		return layers.DefaultThresholds(), nil
	}
	return layers.LoadThresholds(c.ThresholdsFile)
}

// EarthEngine：会话参数
func (c Config) EarthEngine() earthengine.Config {
	return earthengine.Config{Project: c.Project, Endpoint: c.EEEndpoint, Timeout: c.RemoteTimeout}
}

func intEnv(key string, def int) (int, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def, fmt.Errorf("config: %s must be a non-negative integer, got %q", key, s)
	}
	return n, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
