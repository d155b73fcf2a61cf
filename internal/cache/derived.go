package cache

import (
	"bytes"
	"fmt"

	"github.com/mapgrid/tileservice/internal/featurelayer"
	"github.com/mapgrid/tileservice/internal/layerinfo"
	"github.com/mapgrid/tileservice/internal/stringpool"
)

// LoadTileLayer is the derived helper spec.md's Cache interface
// describes (getTileFeatureLayer): it resolves the cached tile blob
// together with its node's string pool and reconstructs a usable
// TileFeatureLayer, or reports a miss.
func LoadTileLayer(c Cache, key MapTileKey, resolveLayerInfo func(mapID, layerID string) (*layerinfo.LayerInfo, error)) (*featurelayer.TileFeatureLayer, bool, error) {
	blob, ok, err := c.GetTileLayerBlob(key)
	if err != nil || !ok {
		return nil, ok, err
	}

	nodeID, mapID, layerID, tile, err := featurelayer.PeekIdentity(blob)
	if err != nil {
		return nil, false, fmt.Errorf("cache: peek tile identity: %w", err)
	}

	strings := stringpool.New(nodeID)
	if poolBlob, ok, err := c.GetStringPoolBlob(nodeID); err == nil && ok {
		r := bytes.NewReader(poolBlob)
		if _, err := stringpool.ReadNodeID(r); err != nil {
			return nil, false, fmt.Errorf("cache: read cached string pool node id: %w", err)
		}
		if err := strings.Read(r); err != nil {
			return nil, false, fmt.Errorf("cache: merge cached string pool: %w", err)
		}
	}

	var info *layerinfo.LayerInfo
	if resolveLayerInfo != nil {
		if info, err = resolveLayerInfo(mapID, layerID); err != nil {
			return nil, false, err
		}
	}

	layer := featurelayer.NewWithStrings(mapID, layerID, info, tile, nodeID, strings)
	if err := layer.UnmarshalBinary(blob); err != nil {
		return nil, false, fmt.Errorf("cache: decode cached tile layer: %w", err)
	}
	return layer, true, nil
}

// StoreTileLayer is the derived putTileFeatureLayer helper: it
// persists both the tile blob and, non-differentially, the full
// string pool for the layer's node id (a cache never wants a partial
// dictionary on disk, since any tile read back from it may be the
// only surviving reference to that node's strings).
func StoreTileLayer(c Cache, layer *featurelayer.TileFeatureLayer) error {
	blob, err := layer.MarshalBinary()
	if err != nil {
		return fmt.Errorf("cache: encode tile layer: %w", err)
	}
	key := MapTileKey{
		Layer:   layerinfo.LayerFeatures,
		MapID:   layer.MapID,
		LayerID: layer.LayerID,
		TileID:  layer.TileID,
	}
	if err := c.PutTileLayerBlob(key, blob); err != nil {
		return err
	}

	var poolBuf bytes.Buffer
	if err := layer.Strings.Write(&poolBuf, 0); err != nil {
		return fmt.Errorf("cache: encode string pool: %w", err)
	}
	return c.PutStringPoolBlob(layer.Strings.NodeID(), poolBuf.Bytes())
}
