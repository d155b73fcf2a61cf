package datasource

import (
	"github.com/mapgrid/tileservice/internal/cache"
)

// KeyValuePair is one (key, value) slot of a feature id, mirroring
// featurelayer's idKeyValue shape at the pre-pool JSON boundary a
// locate() request/response crosses.
type KeyValuePair struct {
	Key    string `json:"key"`
	IsInt  bool   `json:"isInt"`
	Int    int64  `json:"int,omitempty"`
	String string `json:"string,omitempty"`
}

// LocateRequest asks a DataSource where a feature (possibly identified
// by a secondary id) can be found.
type LocateRequest struct {
	MapID     string         `json:"mapId"`
	TypeID    string         `json:"typeId"`
	FeatureID []KeyValuePair `json:"featureId"`
}

// LocateResponse answers a LocateRequest. TypeID/FeatureID may differ
// from the request when locate() resolves a secondary id to its
// owning primary feature.
type LocateResponse struct {
	MapID     string         `json:"mapId"`
	TypeID    string         `json:"typeId"`
	FeatureID []KeyValuePair `json:"featureId"`
	TileKey   string         `json:"tileKey"`
}

// ParseTileKey decodes the response's canonical tile key string.
func (r LocateResponse) ParseTileKey() (cache.MapTileKey, error) {
	return cache.ParseMapTileKey(r.TileKey)
}
