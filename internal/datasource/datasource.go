package datasource

import (
	"context"
	"fmt"
	"regexp"

	"github.com/mapgrid/tileservice/internal/cache"
	"github.com/mapgrid/tileservice/internal/featurelayer"
	"github.com/mapgrid/tileservice/internal/layerinfo"
	"github.com/mapgrid/tileservice/internal/tileid"
)

// DataSource is what a Service dispatches fill jobs to. Every
// implementation provides Info, Fill and Locate; Get below is a
// package-level helper that works with any DataSource.
type DataSource interface {
	Info(ctx context.Context) (layerinfo.DataSourceInfo, error)
	Fill(ctx context.Context, tile *featurelayer.TileFeatureLayer) error
	Locate(ctx context.Context, req LocateRequest) ([]LocateResponse, error)
}

// Get is the default get() forwarding logic every DataSource shares:
// check the cache, and on miss build an empty tile, run fill, and
// write the result back (spec.md §4.7 get()). info is the DataSource's
// own already-fetched Info(), passed in so a caller dispatching many
// tiles doesn't re-request it per tile.
func Get(ctx context.Context, ds DataSource, key cache.MapTileKey, c cache.Cache, info layerinfo.DataSourceInfo) (*featurelayer.TileFeatureLayer, error) {
	resolveLayer := func(mapID, layerID string) (*layerinfo.LayerInfo, error) {
		l, ok := info.Layer(layerID)
		if !ok {
			return nil, fmt.Errorf("datasource: map %q has no layer %q", mapID, layerID)
		}
		return l, nil
	}

	if layer, ok, err := cache.LoadTileLayer(c, key, resolveLayer); err != nil {
		return nil, err
	} else if ok {
		return layer, nil
	}

	layerInfo, ok := info.Layer(key.LayerID)
	if !ok {
		return nil, fmt.Errorf("datasource: map %q has no layer %q", info.MapID, key.LayerID)
	}

	layer := featurelayer.New(info.MapID, key.LayerID, layerInfo, key.TileID, info.NodeID)
	if err := ds.Fill(ctx, layer); err != nil {
		return nil, fmt.Errorf("datasource: fill tile %s: %w", key, err)
	}
	if err := cache.StoreTileLayer(c, layer); err != nil {
		return nil, fmt.Errorf("datasource: cache fill result: %w", err)
	}
	return layer, nil
}

// TileKeyFor builds the cache key a tile request for (mapID, layerID,
// tile) resolves to.
func TileKeyFor(mapID, layerID string, tile tileid.ID) cache.MapTileKey {
	return cache.MapTileKey{Layer: layerinfo.LayerFeatures, MapID: mapID, LayerID: layerID, TileID: tile}
}

// IsAuthorized reports whether the given request headers satisfy every
// configured rule: each rule's Patterns are OR'd together (any one
// match on that header is enough), but distinct rules are AND'd (every
// rule must have some matching header value). No rules means every
// request is authorized.
func IsAuthorized(rules []AuthHeaderRule, headers map[string][]string) (bool, error) {
	for _, rule := range rules {
		values := headers[rule.Name]
		matched := false
		for _, pattern := range rule.Patterns {
			re, err := regexp.Compile(pattern)
			if err != nil {
				return false, fmt.Errorf("datasource: invalid auth pattern %q for header %q: %w", pattern, rule.Name, err)
			}
			for _, v := range values {
				if re.MatchString(v) {
					matched = true
					break
				}
			}
			if matched {
				break
			}
		}
		if !matched {
			return false, nil
		}
	}
	return true, nil
}

// AuthHeaderRule mirrors config.AuthHeaderRule's shape without this
// package depending on config, so datasource stays usable from tests
// and callers that build rules programmatically.
type AuthHeaderRule struct {
	Name     string
	Patterns []string
}
