package stats

import (
	"context"
	"fmt"

	"suso-stats/internal/earthengine"
	"suso-stats/internal/layers"

	"github.com/paulmach/orb"
)

// computer：Earth Engine 客户端的最小依赖面
type computer interface {
	Compute(ctx context.Context, root *earthengine.ValueNode) (any, error)
}

// RemoteSource：以 Earth Engine 为后端的 Source 实现
type RemoteSource struct {
	client  computer
	catalog *layers.Catalog
}

func NewRemoteSource(client *earthengine.Client, catalog *layers.Catalog) *RemoteSource {
	return &RemoteSource{client: client, catalog: catalog}
}

func (s *RemoteSource) AreaStats(ctx context.Context, g orb.Geometry) (map[string]any, error) {
	region, err := layers.Region(g)
	if err != nil {
		return nil, err
	}
	return s.dict(ctx, s.catalog.AreaStats(region))
}

func (s *RemoteSource) ProbabilityMeans(ctx context.Context, g orb.Geometry) (map[string]any, error) {
	region, err := layers.Region(g)
	if err != nil {
		return nil, err
	}
	return s.dict(ctx, s.catalog.ProbabilityMeans(region))
}

func (s *RemoteSource) dict(ctx context.Context, expr *earthengine.ValueNode) (map[string]any, error) {
	res, err := s.client.Compute(ctx, expr)
	if err != nil {
		return nil, err
	}
	m, ok := res.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("unexpected remote result type %T", res)
	}
	return m, nil
}
