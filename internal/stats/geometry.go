package stats

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

var (
	ErrEmptyGeometry       = errors.New("geometry has no coordinates")
	ErrUnsupportedGeometry = errors.New("unsupported GeoJSON type")
)

// 文档注释：解析调用方传入的 GeoJSON
// 背景：仓库侧每行一个区域，通常是 Polygon/MultiPolygon 几何；Feature 取其 geometry，便于直接传入 ST_ASGEOJSON 之外的要素文本。
// 约束：FeatureCollection 不支持（一行对应一个区域）；多边形每个环至少 3 个顶点。
func ParseGeometry(raw []byte) (orb.Geometry, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("invalid GeoJSON: %w", err)
	}
	var g orb.Geometry
	switch strings.ToLower(head.Type) {
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrUnsupportedGeometry)
	case "featurecollection":
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedGeometry, head.Type)
	case "feature":
		f, err := geojson.UnmarshalFeature(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid GeoJSON feature: %w", err)
		}
		g = f.Geometry
	default:
		gg, err := geojson.UnmarshalGeometry(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid GeoJSON geometry: %w", err)
		}
		g = gg.Geometry()
	}
	if g == nil {
		return nil, ErrEmptyGeometry
	}
	if err := validate(g); err != nil {
		return nil, err
	}
	return g, nil
}

func validate(g orb.Geometry) error {
	switch v := g.(type) {
	case orb.Point:
		return nil
	case orb.MultiPoint:
		if len(v) == 0 {
			return ErrEmptyGeometry
		}
	case orb.LineString:
		if len(v) < 2 {
			return ErrEmptyGeometry
		}
	case orb.MultiLineString:
		if len(v) == 0 {
			return ErrEmptyGeometry
		}
	case orb.Polygon:
		return validatePolygon(v)
	case orb.MultiPolygon:
		if len(v) == 0 {
			return ErrEmptyGeometry
		}
		for _, p := range v {
			if err := validatePolygon(p); err != nil {
				return err
			}
		}
	case orb.Collection:
		if len(v) == 0 {
			return ErrEmptyGeometry
		}
		for _, p := range v {
			if err := validate(p); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedGeometry, g.GeoJSONType())
	}
	return nil
}

func validatePolygon(p orb.Polygon) error {
	if len(p) == 0 {
		return ErrEmptyGeometry
	}
	for i, r := range p {
		if len(r) < 3 {
			return fmt.Errorf("polygon ring %d has %d positions, need at least 3", i, len(r))
		}
	}
	return nil
}
