package invalidation

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Event is the change-feed message shape a cache invalidation producer
// publishes. Exactly one of TileHex, BBox, or Geometry selects what
// gets evicted: a single tile, or every cached tile of (MapID,
// LayerID) whose bounds intersect a region.
type Event struct {
	Version   int             `json:"version"`
	Op        string          `json:"op"`
	MapID     string          `json:"mapId"`
	LayerID   string          `json:"layerId"`
	TS        time.Time       `json:"ts"`
	TileHex   string          `json:"tileId,omitempty"`
	BBox      *BBox           `json:"bbox,omitempty"`
	Geometry  json.RawMessage `json:"geometry,omitempty"`
	Source    string          `json:"source,omitempty"`
}

// BBox is a WGS84 axis-aligned invalidation region.
type BBox struct {
	X1   float64 `json:"x1"`
	Y1   float64 `json:"y1"`
	X2   float64 `json:"x2"`
	Y2   float64 `json:"y2"`
	SRID string  `json:"srid"`
}

func (e Event) Validate() error {
	if e.Version != 1 {
		return fmt.Errorf("version must be 1")
	}
	switch e.Op {
	case "insert", "update", "delete":
	default:
		return fmt.Errorf("op must be insert|update|delete")
	}
	if strings.TrimSpace(e.MapID) == "" {
		return fmt.Errorf("mapId is required")
	}
	if strings.TrimSpace(e.LayerID) == "" {
		return fmt.Errorf("layerId is required")
	}
	if e.TS.IsZero() {
		return fmt.Errorf("ts is required")
	}

	targets := 0
	if e.TileHex != "" {
		targets++
	}
	if e.BBox != nil {
		targets++
	}
	if len(e.Geometry) > 0 {
		targets++
	}
	if targets != 1 {
		return fmt.Errorf("exactly one of tileId, bbox, or geometry is required")
	}

	if e.BBox != nil {
		bb := *e.BBox
		if bb.SRID != "EPSG:4326" {
			return fmt.Errorf("bbox.srid must be EPSG:4326")
		}
		if !(bb.X1 >= -180 && bb.X1 <= 180 && bb.X2 >= -180 && bb.X2 <= 180) {
			return fmt.Errorf("bbox longitude out of range")
		}
		if !(bb.Y1 >= -90 && bb.Y1 <= 90 && bb.Y2 >= -90 && bb.Y2 <= 90) {
			return fmt.Errorf("bbox latitude out of range")
		}
		if !(bb.X2 > bb.X1 && bb.Y2 > bb.Y1) {
			return fmt.Errorf("bbox must satisfy x2>x1 and y2>y1")
		}
	}
	if len(e.Geometry) > 0 {
		var hdr struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(e.Geometry, &hdr); err != nil {
			return fmt.Errorf("geometry parse: %w", err)
		}
		if hdr.Type != "Polygon" && hdr.Type != "MultiPolygon" {
			return fmt.Errorf("geometry.type must be Polygon or MultiPolygon")
		}
	}
	return nil
}

// geometryBBox extracts the bounding box of a GeoJSON Polygon or
// MultiPolygon's coordinate ring(s), for use as a coarse intersection
// test against cached tile bounds. It does not do exact polygon
// clipping — matching spec.md's cache invalidation as advisory, not
// exact.
func geometryBBox(raw json.RawMessage) (BBox, error) {
	var g struct {
		Type        string          `json:"type"`
		Coordinates json.RawMessage `json:"coordinates"`
	}
	if err := json.Unmarshal(raw, &g); err != nil {
		return BBox{}, err
	}

	minLon, minLat := 180.0, 90.0
	maxLon, maxLat := -180.0, -90.0
	visit := func(lon, lat float64) {
		if lon < minLon {
			minLon = lon
		}
		if lon > maxLon {
			maxLon = lon
		}
		if lat < minLat {
			minLat = lat
		}
		if lat > maxLat {
			maxLat = lat
		}
	}

	switch g.Type {
	case "Polygon":
		var rings [][][2]float64
		if err := json.Unmarshal(g.Coordinates, &rings); err != nil {
			return BBox{}, err
		}
		for _, ring := range rings {
			for _, pt := range ring {
				visit(pt[0], pt[1])
			}
		}
	case "MultiPolygon":
		var polys [][][][2]float64
		if err := json.Unmarshal(g.Coordinates, &polys); err != nil {
			return BBox{}, err
		}
		for _, rings := range polys {
			for _, ring := range rings {
				for _, pt := range ring {
					visit(pt[0], pt[1])
				}
			}
		}
	default:
		return BBox{}, fmt.Errorf("unsupported geometry type %q", g.Type)
	}
	return BBox{X1: minLon, Y1: minLat, X2: maxLon, Y2: maxLat, SRID: "EPSG:4326"}, nil
}
