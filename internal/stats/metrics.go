// 包 stats：按区域推导地类面积统计与异质性指数
package stats

import (
	"errors"
	"fmt"
	"math"

	"suso-stats/internal/layers"
)

// ErrZeroArea：区域测地面积为 0（点、退化多边形），份额无定义
var ErrZeroArea = errors.New("feature area is zero, heterogeneity index undefined")

// 文档注释：单个区域的统计结果
// 背景：服务端返回的是可扩展字典，这里只消费固定的键；各类面积单位为平方米。
// 约束：confusion 在区域内无混淆像元时为 null（该波段被掩膜）；gini/total_area 由推导过程填充。
type Metrics struct {
	Forest       float64  `json:"forest"`
	Cocoa        float64  `json:"cocoa"`
	Coffee       float64  `json:"coffee"`
	Palm         float64  `json:"palm"`
	Rubber       float64  `json:"rubber"`
	Unclassified float64  `json:"unclassified"`
	Confusion    *float64 `json:"confusion"`
	Gini         *float64 `json:"gini,omitempty"`
	TotalArea    *float64 `json:"total_area,omitempty"`
}

func (m *Metrics) setClass(name string, v float64) {
	switch name {
	case "forest":
		m.Forest = v
	case "cocoa":
		m.Cocoa = v
	case "coffee":
		m.Coffee = v
	case "palm":
		m.Palm = v
	case "rubber":
		m.Rubber = v
	case "unclassified":
		m.Unclassified = v
	}
}

// 文档注释：异质性指数
// 背景：沿用既有口径 1 - Σ(面积_c / 总面积)，并非经典基尼不纯度 1 - Σ share²；不截断，
// 分辨率与边缘效应导致类面积之和超过总面积时结果可为负。
// 异常：总面积非正或非有限值时返回 ErrZeroArea。
func Gini(areas map[string]float64, total float64) (float64, error) {
	if !(total > 0) || math.IsInf(total, 0) {
		return 0, ErrZeroArea
	}
	sum := 0.0
	for _, c := range layers.Classes {
		sum += areas[c] / total
	}
	return 1 - sum, nil
}

func number(v any) (float64, bool, error) {
	switch x := v.(type) {
	case nil:
		return 0, false, nil
	case float64:
		return x, true, nil
	case float32:
		return float64(x), true, nil
	case int:
		return float64(x), true, nil
	case int64:
		return float64(x), true, nil
	}
	return 0, false, fmt.Errorf("unexpected value type %T", v)
}

// 文档注释：从服务端字典构建统计结果并计算指数
// 约束：total_area 必须存在；按 AreaBands 取值，主类与 unclassified 缺失或为 null 视为 0，confusion 保留 null。
func metricsFrom(raw map[string]any) (Metrics, error) {
	var m Metrics
	total, ok, err := number(raw["total_area"])
	if err != nil {
		return m, fmt.Errorf("total_area: %w", err)
	}
	if !ok {
		return m, errors.New("remote result missing total_area")
	}
	areas := make(map[string]float64, len(layers.Classes))
	for _, b := range layers.AreaBands {
		v, ok, err := number(raw[b])
		if err != nil {
			return m, fmt.Errorf("%s: %w", b, err)
		}
		if b == "confusion" {
			if ok {
				m.Confusion = &v
			}
			continue
		}
		areas[b] = v
		m.setClass(b, v)
	}
	g, err := Gini(areas, total)
	if err != nil {
		return m, err
	}
	m.Gini = &g
	m.TotalArea = &total
	return m, nil
}
