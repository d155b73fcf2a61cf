// Package layerinfo describes the static shape of a map layer: which
// feature types it carries, what their id compositions look like, and
// what the layer's zoom/coverage footprint is. It is the Go-native
// counterpart of the JSON-encoded LayerInfo/DataSourceInfo structures
// a data source publishes from its info() operation (spec.md §4.7).
package layerinfo

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/mapgrid/tileservice/internal/tileid"
)

// Version is a semver-lite triple used to gate deserialization
// compatibility between this build and a stored/streamed tile layer.
type Version struct {
	Major uint16 `json:"major"`
	Minor uint16 `json:"minor"`
	Patch uint16 `json:"patch"`
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// IsCompatible holds when both major and minor match; patch is
// allowed to differ since it carries no wire-format changes.
func (v Version) IsCompatible(other Version) bool {
	return v.Major == other.Major && v.Minor == other.Minor
}

func (v Version) Less(other Version) bool {
	if v.Major != other.Major {
		return v.Major < other.Major
	}
	if v.Minor != other.Minor {
		return v.Minor < other.Minor
	}
	return v.Patch < other.Patch
}

// IdPartDataType constrains the values a feature id part may hold.
type IdPartDataType uint8

const (
	IdPartI32 IdPartDataType = iota
	IdPartU32
	IdPartI64
	IdPartU64
	IdPartUUID128
	IdPartSTR
)

func (t IdPartDataType) String() string {
	switch t {
	case IdPartI32:
		return "I32"
	case IdPartU32:
		return "U32"
	case IdPartI64:
		return "I64"
	case IdPartU64:
		return "U64"
	case IdPartUUID128:
		return "UUID128"
	case IdPartSTR:
		return "STR"
	default:
		return "UNKNOWN"
	}
}

func (t IdPartDataType) MarshalJSON() ([]byte, error) { return json.Marshal(t.String()) }

func (t *IdPartDataType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch s {
	case "I32":
		*t = IdPartI32
	case "U32":
		*t = IdPartU32
	case "I64":
		*t = IdPartI64
	case "U64":
		*t = IdPartU64
	case "UUID128":
		*t = IdPartUUID128
	case "STR":
		*t = IdPartSTR
	default:
		return fmt.Errorf("layerinfo: unknown IdPartDataType %q", s)
	}
	return nil
}

// LayerType distinguishes feature layers from other tile payload kinds.
type LayerType uint8

const (
	LayerFeatures LayerType = iota
	LayerHeightmap
	LayerOrthoImage
	LayerGLTF
)

func (t LayerType) String() string {
	switch t {
	case LayerFeatures:
		return "Features"
	case LayerHeightmap:
		return "Heightmap"
	case LayerOrthoImage:
		return "OrthoImage"
	case LayerGLTF:
		return "GLTF"
	default:
		return "Unknown"
	}
}

// IdPart is one named, typed slot of a feature id composition.
type IdPart struct {
	Label        string         `json:"partId"`
	Description  string         `json:"description,omitempty"`
	DataType     IdPartDataType `json:"datatype"`
	IsSynthetic  bool           `json:"isSynthetic,omitempty"`
	IsOptional   bool           `json:"isOptional,omitempty"`
}

// IdPartValue is a validated value for one IdPart: either an int64 or
// a string, matching the part's declared DataType.
type IdPartValue struct {
	Key    string
	IsInt  bool
	Int    int64
	String string
}

// Validate checks val against the part's datatype constraints. String
// values are not converted: an integer type requires val.IsInt.
// UUID128 values must decode to exactly 16 bytes (a canonical UUID).
func (p IdPart) Validate(val IdPartValue) (IdPartValue, error) {
	switch p.DataType {
	case IdPartI32, IdPartI64:
		if val.IsInt {
			return val, nil
		}
		return IdPartValue{}, fmt.Errorf("layerinfo: id part %q expects an integer", p.Label)
	case IdPartU32, IdPartU64:
		if val.IsInt {
			if val.Int < 0 {
				return IdPartValue{}, fmt.Errorf("layerinfo: id part %q must be non-negative", p.Label)
			}
			return val, nil
		}
		return IdPartValue{}, fmt.Errorf("layerinfo: id part %q expects an unsigned integer", p.Label)
	case IdPartUUID128:
		if val.IsInt {
			return IdPartValue{}, fmt.Errorf("layerinfo: id part %q expects a UUID string", p.Label)
		}
		u, err := uuid.Parse(val.String)
		if err != nil {
			return IdPartValue{}, fmt.Errorf("layerinfo: id part %q is not a valid UUID: %w", p.Label, err)
		}
		b, _ := u.MarshalBinary()
		if len(b) != 16 {
			return IdPartValue{}, fmt.Errorf("layerinfo: id part %q UUID must encode to 16 bytes", p.Label)
		}
		return val, nil
	case IdPartSTR:
		if val.IsInt {
			return IdPartValue{}, fmt.Errorf("layerinfo: id part %q expects a string", p.Label)
		}
		return val, nil
	default:
		return IdPartValue{}, fmt.Errorf("layerinfo: id part %q has unknown data type", p.Label)
	}
}

// FeatureTypeInfo names a feature type and its allowed id compositions.
// The first composition is primary: it decides which id parts are
// optional when a feature id is hashed. A new feature's id may match
// any of the compositions.
type FeatureTypeInfo struct {
	Name                 string     `json:"name"`
	UniqueIdCompositions [][]IdPart `json:"uniqueIdCompositions"`
}

// MatchComposition reports whether parts (in order, starting at
// matchStart) satisfies composition. requireEnd demands the
// composition be fully consumed by parts; otherwise parts may be a
// prefix.
func MatchComposition(composition []IdPart, matchStart int, parts []string, requireEnd bool) bool {
	available := len(composition) - matchStart
	if available < 0 {
		return false
	}
	if requireEnd && len(parts) != available {
		return false
	}
	if !requireEnd && len(parts) > available {
		return false
	}
	for i, key := range parts {
		if composition[matchStart+i].Label != key {
			return false
		}
	}
	return true
}

// Coverage is a filled/unfilled bitmap over a rectangle of tile ids at
// a single zoom level.
type Coverage struct {
	Min    tileid.ID `json:"min"`
	Max    tileid.ID `json:"max"`
	Filled []bool    `json:"filled,omitempty"`
}

// IsFilled reports whether t lies within the rectangle and, if Filled
// carries bits, whether that position is set. An empty Filled means
// the whole rectangle is considered filled.
func (c Coverage) IsFilled(t tileid.ID) bool {
	if t.Z() != c.Min.Z() || t.Z() != c.Max.Z() {
		return false
	}
	if t.X() < c.Min.X() || t.X() > c.Max.X() || t.Y() < c.Min.Y() || t.Y() > c.Max.Y() {
		return false
	}
	if len(c.Filled) == 0 {
		return true
	}
	width := int(c.Max.X()-c.Min.X()) + 1
	row := int(t.Y() - c.Min.Y())
	col := int(t.X() - c.Min.X())
	idx := row*width + col
	if idx < 0 || idx >= len(c.Filled) {
		return false
	}
	return c.Filled[idx]
}

// LayerInfo is the static description of one layer within a map.
type LayerInfo struct {
	LayerID      string            `json:"layerId"`
	Type         LayerType         `json:"type"`
	FeatureTypes []FeatureTypeInfo `json:"featureTypes,omitempty"`
	ZoomLevels   []int             `json:"zoomLevels,omitempty"`
	Coverage     []Coverage        `json:"coverage,omitempty"`
	CanRead      bool              `json:"canRead"`
	CanWrite     bool              `json:"canWrite"`
	Version      Version           `json:"version"`
}

// FeatureType looks up a registered feature type by name.
func (l *LayerInfo) FeatureType(name string) (FeatureTypeInfo, bool) {
	for _, ft := range l.FeatureTypes {
		if ft.Name == name {
			return ft, true
		}
	}
	return FeatureTypeInfo{}, false
}

// ValidFeatureID reports whether some unique id composition of typeId
// matches the given ordered id-part keys.
func (l *LayerInfo) ValidFeatureID(typeID string, partKeys []string) bool {
	ft, ok := l.FeatureType(typeID)
	if !ok {
		return false
	}
	for _, comp := range ft.UniqueIdCompositions {
		if MatchComposition(comp, 0, partKeys, true) {
			return true
		}
	}
	return false
}

// CoveredAt reports whether tile t is covered (filled) by any of the
// layer's declared Coverage rectangles.
func (l *LayerInfo) CoveredAt(t tileid.ID) bool {
	for _, c := range l.Coverage {
		if c.IsFilled(t) {
			return true
		}
	}
	return false
}

// DataSourceInfo is the info() response of a data source: its node
// id, the map it serves, and the layers it publishes.
type DataSourceInfo struct {
	NodeID              string               `json:"nodeId"`
	MapID               string               `json:"mapId"`
	Layers              map[string]*LayerInfo `json:"layers"`
	MaxParallelJobs     int                  `json:"maxParallelJobs"`
	IsAddOn             bool                 `json:"addOn,omitempty"`
	ExtraJSONAttachment json.RawMessage      `json:"extraJsonAttachment,omitempty"`
	ProtocolVersion     Version              `json:"protocolVersion"`
}

// Layer returns the named layer, or false if it is not published.
func (d *DataSourceInfo) Layer(layerID string) (*LayerInfo, bool) {
	l, ok := d.Layers[layerID]
	return l, ok
}
