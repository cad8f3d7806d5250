package layers

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Classes：参与阈值化与异质性指数计算的五个主类，顺序即波段顺序
var Classes = []string{"forest", "cocoa", "coffee", "palm", "rubber"}

// Thresholds：各主类的概率阈值，像元概率严格大于阈值视为该类
type Thresholds map[string]float64

// 文档注释：默认阈值
// 背景：仅用于演示的经验值；生产部署应通过 THRESHOLDS_FILE 按需调整。
func DefaultThresholds() Thresholds {
	return Thresholds{
		"forest": 0.50,
		"cocoa":  0.45,
		"coffee": 0.96,
		"palm":   0.89,
		"rubber": 0.50,
	}
}

// Values：按 Classes 顺序返回阈值
func (t Thresholds) Values() []float64 {
	out := make([]float64, len(Classes))
	for i, c := range Classes {
		out[i] = t[c]
	}
	return out
}

// Validate：检查类名合法、取值落在 [0,1] 且五类齐全
func (t Thresholds) Validate() error {
	known := map[string]bool{}
	for _, c := range Classes {
		known[c] = true
	}
	for k, v := range t {
		if !known[k] {
			return fmt.Errorf("unknown class %q", k)
		}
		if v < 0 || v > 1 {
			return fmt.Errorf("threshold for %s out of range: %v", k, v)
		}
	}
	for _, c := range Classes {
		if _, ok := t[c]; !ok {
			return fmt.Errorf("missing threshold for %s", c)
		}
	}
	return nil
}

type thresholdsFile struct {
	Thresholds map[string]float64 `yaml:"thresholds"`
}

// 文档注释：从 YAML 文件加载阈值
// 背景：文件中未出现的类沿用默认值；path 为空时直接返回默认阈值。
// 示例：
//
//	thresholds:
//	  cocoa: 0.5
//	  palm: 0.9
func LoadThresholds(path string) (Thresholds, error) {
	t := DefaultThresholds()
	if path == "" {
		return t, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read thresholds: %w", err)
	}
	var f thresholdsFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse thresholds: %w", err)
	}
	for k, v := range f.Thresholds {
		t[k] = v
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}
