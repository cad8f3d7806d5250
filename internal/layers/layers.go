// 包 layers：可持续采购图层（2025a 模型）在 Earth Engine 上的表达式定义
package layers

import (
	"fmt"

	"suso-stats/internal/earthengine"

	"github.com/paulmach/orb"
)

const (
	// Scale：区域归约的像元尺度（米）
	Scale = 10
	// MaxError：区域面积计算的线性误差容限（米）
	MaxError = 10
)

// 模型资产，见 forest-data-partnership 的公开模型说明
const (
	cocoaCollection         = "projects/forestdatapartnership/assets/cocoa/model_2025a"
	coffeeCollection        = "projects/forestdatapartnership/assets/coffee/model_2025a"
	palmCollection          = "projects/forestdatapartnership/assets/palm/model_2025a"
	rubberCollection        = "projects/forestdatapartnership/assets/rubber/model_2025a"
	naturalForestCollection = "projects/computing-engine-190414/assets/biosphere_models/public/forest_typology/natural_forest_2020_v1_0"
)

var commodityCollections = map[string]string{
	"cocoa":  cocoaCollection,
	"coffee": coffeeCollection,
	"palm":   palmCollection,
	"rubber": rubberCollection,
}

// ProbabilityBands：概率图层波段名，顺序与 ProbabilityImage 一致
var ProbabilityBands = []string{
	"natural_forest_2020",
	"cocoa_probability_2020", "cocoa_probability_2023",
	"coffee_probability_2020", "coffee_probability_2023",
	"palm_probability_2020", "palm_probability_2023",
	"rubber_probability_2020", "rubber_probability_2023",
}

// AreaBands：面积图层波段名（五个主类 + 未分类 + 混淆）
var AreaBands = append(append([]string{}, Classes...), "unclassified", "confusion")

// Catalog：按阈值实例化的图层定义，无状态，可并发使用
type Catalog struct {
	thresholds Thresholds
}

func NewCatalog(t Thresholds) *Catalog {
	if t == nil {
		t = DefaultThresholds()
	}
	return &Catalog{thresholds: t}
}

func (c *Catalog) Thresholds() Thresholds { return c.thresholds }

func constantImage(v any) *earthengine.ValueNode {
	return earthengine.Invoke("Image.constant", earthengine.Args{"value": earthengine.Constant(v)})
}

func rename(img *earthengine.ValueNode, name string) *earthengine.ValueNode {
	return earthengine.Invoke("Image.rename", earthengine.Args{"input": img, "names": earthengine.Strings(name)})
}

func selfMask(img *earthengine.ValueNode) *earthengine.ValueNode {
	return earthengine.Invoke("Image.selfMask", earthengine.Args{"image": img})
}

func binary(op string, a, b *earthengine.ValueNode) *earthengine.ValueNode {
	return earthengine.Invoke(op, earthengine.Args{"image1": a, "image2": b})
}

// cat：依次 addBands 拼接多幅影像
func cat(imgs ...*earthengine.ValueNode) *earthengine.ValueNode {
	out := imgs[0]
	for _, img := range imgs[1:] {
		out = earthengine.Invoke("Image.addBands", earthengine.Args{"dstImg": out, "srcImg": img})
	}
	return out
}

// yearMosaic：按年份过滤集合后镶嵌（逐像元取首个未掩膜值）
func yearMosaic(collection string, year int) *earthengine.ValueNode {
	filtered := earthengine.Invoke("Collection.filter", earthengine.Args{
		"collection": earthengine.Invoke("ImageCollection.load", earthengine.Args{"id": earthengine.Constant(collection)}),
		"filter": earthengine.Invoke("Filter.calendarRange", earthengine.Args{
			"start": earthengine.Constant(year),
			"end":   earthengine.Constant(year),
			"field": earthengine.Constant("year"),
		}),
	})
	return earthengine.Invoke("ImageCollection.mosaic", earthengine.Args{"collection": filtered})
}

// naturalForest2020：天然林概率，原始值 0..255 归一化并掩去 0 值
func naturalForest2020() *earthengine.ValueNode {
	mosaic := earthengine.Invoke("ImageCollection.mosaic", earthengine.Args{
		"collection": earthengine.Invoke("ImageCollection.load", earthengine.Args{"id": earthengine.Constant(naturalForestCollection)}),
	})
	return selfMask(binary("Image.divide", mosaic, constantImage(255)))
}

func commodity(name string, year int) *earthengine.ValueNode {
	return yearMosaic(commodityCollections[name], year)
}

// 文档注释：阈值化后的主类掩膜
// 背景：2020 年五类概率拼接后以 0 填充掩膜区，再逐波段与阈值比较；各类之间可以重叠。
func (c *Catalog) thresholded() *earthengine.ValueNode {
	bands := []*earthengine.ValueNode{rename(naturalForest2020(), "forest")}
	for _, name := range Classes[1:] {
		bands = append(bands, rename(commodity(name, 2020), name))
	}
	ensemble := earthengine.Invoke("Image.unmask", earthengine.Args{"input": cat(bands...), "value": earthengine.Constant(0)})
	selected := earthengine.Invoke("Image.select", earthengine.Args{"input": ensemble, "bandSelectors": earthengine.Strings(Classes...)})
	return binary("Image.gt", selected, constantImage(c.thresholds.Values()))
}

// 文档注释：面积图层
// 背景：各波段像元值为该像元面积（平方米）或 0；unclassified 表示无任一类超过阈值，confusion 表示两类及以上超过阈值（其余像元掩膜）。
func (c *Catalog) AreasImage() *earthengine.ValueNode {
	th := c.thresholded()
	count := earthengine.Invoke("Image.reduce", earthengine.Args{
		"image":   th,
		"reducer": earthengine.Invoke("Reducer.sum", nil),
	})
	unclassified := rename(binary("Image.eq", count, constantImage(0)), "unclassified")
	confusion := rename(selfMask(binary("Image.gt", count, constantImage(1))), "confusion")
	return binary("Image.multiply", cat(th, unclassified, confusion), earthengine.Invoke("Image.pixelArea", nil))
}

// ProbabilityImage：天然林与四种作物 2020/2023 概率的九波段影像
func (c *Catalog) ProbabilityImage() *earthengine.ValueNode {
	bands := []*earthengine.ValueNode{rename(naturalForest2020(), "natural_forest_2020")}
	for _, name := range Classes[1:] {
		for _, year := range []int{2020, 2023} {
			bands = append(bands, rename(commodity(name, year), fmt.Sprintf("%s_probability_%d", name, year)))
		}
	}
	return cat(bands...)
}

func reduceRegion(img, reducer, region *earthengine.ValueNode) *earthengine.ValueNode {
	return earthengine.Invoke("Image.reduceRegion", earthengine.Args{
		"image":    img,
		"reducer":  reducer,
		"geometry": region,
		"scale":    earthengine.Constant(Scale),
	})
}

// 文档注释：区域面积统计表达式
// 背景：各波段面积求和后追加 total_area（按边界的测地面积，误差容限 MaxError 米），一次往返取回。
func (c *Catalog) AreaStats(region *earthengine.ValueNode) *earthengine.ValueNode {
	sums := reduceRegion(c.AreasImage(), earthengine.Invoke("Reducer.sum", nil), region)
	area := earthengine.Invoke("Geometry.area", earthengine.Args{
		"geometry": region,
		"maxError": earthengine.Invoke("ErrorMargin", earthengine.Args{"value": earthengine.Constant(MaxError)}),
	})
	return earthengine.Invoke("Dictionary.set", earthengine.Args{
		"dictionary": sums,
		"key":        earthengine.Constant("total_area"),
		"value":      area,
	})
}

// ProbabilityMeans：区域内各概率波段均值表达式
func (c *Catalog) ProbabilityMeans(region *earthengine.ValueNode) *earthengine.ValueNode {
	return reduceRegion(c.ProbabilityImage(), earthengine.Invoke("Reducer.mean", nil), region)
}

// 文档注释：将 orb 几何转换为服务端几何构造调用
// 约束：坐标按 WGS84 经纬度解释；多边形按奇偶规则处理洞；Bound 与 Ring 转为多边形。
func Region(g orb.Geometry) (*earthengine.ValueNode, error) {
	ctor := func(kind string, coords any, polygon bool) *earthengine.ValueNode {
		args := earthengine.Args{"coordinates": earthengine.Constant(coords)}
		if polygon {
			args["evenOdd"] = earthengine.Constant(true)
		}
		return earthengine.Invoke("GeometryConstructors."+kind, args)
	}
	switch v := g.(type) {
	case orb.Point:
		return ctor("Point", v, false), nil
	case orb.MultiPoint:
		return ctor("MultiPoint", v, false), nil
	case orb.LineString:
		return ctor("LineString", v, false), nil
	case orb.MultiLineString:
		return ctor("MultiLineString", v, false), nil
	case orb.Ring:
		return ctor("Polygon", orb.Polygon{v}, true), nil
	case orb.Polygon:
		return ctor("Polygon", v, true), nil
	case orb.MultiPolygon:
		return ctor("MultiPolygon", v, true), nil
	case orb.Bound:
		return ctor("Polygon", v.ToPolygon(), true), nil
	case orb.Collection:
		parts := make([]*earthengine.ValueNode, 0, len(v))
		for _, p := range v {
			n, err := Region(p)
			if err != nil {
				return nil, err
			}
			parts = append(parts, n)
		}
		return earthengine.Invoke("GeometryConstructors.MultiGeometry", earthengine.Args{"geometries": earthengine.Array(parts...)}), nil
	}
	return nil, fmt.Errorf("unsupported geometry type %T", g)
}
