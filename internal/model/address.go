// Package model implements the columnar, arena-backed node storage that
// backs one tile of one layer (spec.md §3 "Columnar model pool", §4.2).
// Every node — object, array, scalar, geometry, feature, attribute,
// relation, validity, source-data reference — lives in a typed,
// append-only column and is addressed by a stable (columnId, row)
// pair packed into a 32-bit Address. Columns never delete or reorder
// rows, so an Address obtained at any point in a tile's lifetime
// remains valid for as long as the tile exists.
package model

import "fmt"

// ColumnID tags which column an Address refers to.
type ColumnID uint8

const (
	ColumnNull ColumnID = iota
	ColumnObject
	ColumnArray
	ColumnValue
	ColumnFeature
	ColumnFeatureID
	ColumnFeaturePropertyView
	ColumnAttribute
	ColumnAttributeLayer
	ColumnAttributeLayerList
	ColumnRelation
	ColumnPoint
	ColumnPointBuffer
	ColumnGeometry
	ColumnGeometryCollection
	ColumnMesh
	ColumnPolygon
	ColumnLinearRing
	ColumnSourceDataReference
	ColumnSourceDataReferenceItem
	ColumnValidity
	ColumnValidityPoint
	ColumnValidityCollection
)

// Address identifies a single node: its column and row index within
// that column. The zero value is the canonical "null" address.
type Address uint32

// NullAddress is returned wherever a node reference is intentionally
// absent (e.g. a feature with no geometry yet).
const NullAddress Address = 0

func newAddress(col ColumnID, row uint32) Address {
	if row >= 1<<24 {
		panic(fmt.Sprintf("model: row index %d exceeds 24-bit column capacity", row))
	}
	return Address(uint32(col)<<24 | row)
}

// Column returns the column this address belongs to.
func (a Address) Column() ColumnID { return ColumnID(uint32(a) >> 24) }

// Row returns the row index within the column.
func (a Address) Row() uint32 { return uint32(a) & 0x00FFFFFF }

// IsNull reports whether this is the null address.
func (a Address) IsNull() bool { return a == NullAddress }

func (a Address) String() string {
	if a.IsNull() {
		return "null"
	}
	return fmt.Sprintf("%d:%d", a.Column(), a.Row())
}
