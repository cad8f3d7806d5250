package layers

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"suso-stats/internal/earthengine"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "thresholds.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestDefaultThresholds(t *testing.T) {
	th := DefaultThresholds()
	require.NoError(t, th.Validate())
	assert.Equal(t, []float64{0.50, 0.45, 0.96, 0.89, 0.50}, th.Values())
}

func TestNewCatalogThresholds(t *testing.T) {
	assert.Equal(t, DefaultThresholds(), NewCatalog(nil).Thresholds())
	th := DefaultThresholds()
	th["palm"] = 0.7
	assert.Equal(t, 0.7, NewCatalog(th).Thresholds()["palm"])
	assert.Equal(t, []string{"forest", "cocoa", "coffee", "palm", "rubber", "unclassified", "confusion"}, AreaBands)
}

func TestLoadThresholdsOverridesSome(t *testing.T) {
	th, err := LoadThresholds(writeFile(t, "thresholds:\n  cocoa: 0.6\n  palm: 0.7\n"))
	require.NoError(t, err)
	assert.Equal(t, 0.6, th["cocoa"])
	assert.Equal(t, 0.7, th["palm"])
	assert.Equal(t, 0.96, th["coffee"])
}

func TestLoadThresholdsEmptyPath(t *testing.T) {
	th, err := LoadThresholds("")
	require.NoError(t, err)
	assert.Equal(t, DefaultThresholds(), th)
}

func TestLoadThresholdsRejects(t *testing.T) {
	tests := map[string]string{
		"unknown class": "thresholds:\n  maize: 0.5\n",
		"out of range":  "thresholds:\n  rubber: 1.5\n",
		"negative":      "thresholds:\n  forest: -0.1\n",
		"bad yaml":      "thresholds: [",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadThresholds(writeFile(t, body))
			assert.Error(t, err)
		})
	}
	_, err := LoadThresholds(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestRegionConstructors(t *testing.T) {
	sq := orb.Polygon{{{0, 0}, {0, 1}, {1, 1}, {0, 0}}}
	tests := []struct {
		g    orb.Geometry
		want string
	}{
		{orb.Point{1, 2}, "GeometryConstructors.Point"},
		{orb.MultiPoint{{1, 2}}, "GeometryConstructors.MultiPoint"},
		{orb.LineString{{0, 0}, {1, 1}}, "GeometryConstructors.LineString"},
		{orb.MultiLineString{{{0, 0}, {1, 1}}}, "GeometryConstructors.MultiLineString"},
		{sq, "GeometryConstructors.Polygon"},
		{sq[0], "GeometryConstructors.Polygon"},
		{orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}}, "GeometryConstructors.Polygon"},
		{orb.MultiPolygon{sq}, "GeometryConstructors.MultiPolygon"},
		{orb.Collection{orb.Point{1, 2}, sq}, "GeometryConstructors.MultiGeometry"},
	}
	for _, tt := range tests {
		t.Run(tt.g.GeoJSONType(), func(t *testing.T) {
			n, err := Region(tt.g)
			require.NoError(t, err)
			require.NotNil(t, n.FunctionInvocationValue)
			assert.Equal(t, tt.want, n.FunctionInvocationValue.FunctionName)
		})
	}
}

func TestRegionPolygonCoordinates(t *testing.T) {
	n, err := Region(orb.Polygon{{{-1.5, 6.1}, {-1.4, 6.1}, {-1.4, 6.2}, {-1.5, 6.1}}})
	require.NoError(t, err)
	args := n.FunctionInvocationValue.Arguments
	b, err := json.Marshal(args["coordinates"].ConstantValue)
	require.NoError(t, err)
	assert.JSONEq(t, `[[[-1.5,6.1],[-1.4,6.1],[-1.4,6.2],[-1.5,6.1]]]`, string(b))
	assert.Equal(t, true, args["evenOdd"].ConstantValue)
}

func encoded(t *testing.T, n *earthengine.ValueNode) string {
	t.Helper()
	expr, err := earthengine.Encode(n)
	require.NoError(t, err)
	b, err := json.Marshal(expr)
	require.NoError(t, err)
	return string(b)
}

func TestAreaStatsExpression(t *testing.T) {
	region, err := Region(orb.Polygon{{{0, 0}, {0, 1}, {1, 1}, {0, 0}}})
	require.NoError(t, err)
	n := NewCatalog(nil).AreaStats(region)
	require.NotNil(t, n.FunctionInvocationValue)
	assert.Equal(t, "Dictionary.set", n.FunctionInvocationValue.FunctionName)
	assert.Equal(t, "total_area", n.FunctionInvocationValue.Arguments["key"].ConstantValue)

	body := encoded(t, n)
	for _, want := range []string{
		"Image.reduceRegion", "Reducer.sum", "Image.pixelArea", "Geometry.area", "ErrorMargin",
		"Image.unmask", "Image.gt", "Image.selfMask", cocoaCollection, naturalForestCollection,
	} {
		assert.True(t, strings.Contains(body, want), "missing %s", want)
	}
	// 阈值化影像被 unclassified/confusion 与主类波段共同引用，应被提升
	assert.Contains(t, body, "valueReference")
}

func TestAreaStatsUsesThresholds(t *testing.T) {
	region, err := Region(orb.Point{0, 0})
	require.NoError(t, err)
	th := DefaultThresholds()
	th["coffee"] = 0.123
	body := encoded(t, NewCatalog(th).AreaStats(region))
	assert.Contains(t, body, "0.123")
}

func TestProbabilityMeansExpression(t *testing.T) {
	region, err := Region(orb.Point{0, 0})
	require.NoError(t, err)
	n := NewCatalog(nil).ProbabilityMeans(region)
	assert.Equal(t, "Image.reduceRegion", n.FunctionInvocationValue.FunctionName)
	body := encoded(t, n)
	for _, b := range ProbabilityBands {
		assert.Contains(t, body, b)
	}
	assert.Contains(t, body, "Reducer.mean")
}
