package model

import "github.com/mapgrid/tileservice/internal/stringpool"

// ValidityShape tags which of the four validity shapes a Validity row
// describes (spec.md §3 Validity).
type ValidityShape uint8

const (
	ValidityNone ValidityShape = iota
	ValiditySimpleGeometry
	ValidityOffsetPoint
	ValidityOffsetRange
)

// OffsetType selects how an offset point/range is measured along a
// referenced geometry.
type OffsetType uint8

const (
	OffsetGeoPosition OffsetType = iota
	OffsetBufferIndex
	OffsetRelativeLength
	OffsetMetricLength
)

// ValidityData is the row shape of the Validity column.
type ValidityData struct {
	Shape ValidityShape

	// Geometry this validity refers to, by address (when GeometryName
	// is empty) or by name lookup on the owning feature (otherwise).
	GeometryAddr Address
	GeometryName stringpool.ID
	HasName      bool

	OffsetType OffsetType
	Start      float64 // position, for OffsetPoint and the start of OffsetRange
	End        float64 // end of OffsetRange, meaningless otherwise

	Direction Direction
}

// NewValidity allocates a new validity row.
func (p *Pool) NewValidity(v ValidityData) Address {
	row := uint32(len(p.validities))
	p.validities = append(p.validities, v)
	return newAddress(ColumnValidity, row)
}

// Validity returns the validity row at addr.
func (p *Pool) Validity(addr Address) ValidityData {
	return p.validities[addr.Row()]
}

// NewValidityCollection allocates an empty ordered MultiValidity list.
func (p *Pool) NewValidityCollection(capacityHint int) Address {
	row := uint32(len(p.validityCollect))
	p.validityCollect = append(p.validityCollect, make([]Address, 0, capacityHint))
	return newAddress(ColumnValidityCollection, row)
}

// ValidityCollectionAdd appends a validity address to a collection.
func (p *Pool) ValidityCollectionAdd(collAddr, validityAddr Address) {
	row := collAddr.Row()
	p.validityCollect[row] = append(p.validityCollect[row], validityAddr)
}

// ValidityCollection returns the ordered validity addresses.
func (p *Pool) ValidityCollection(addr Address) []Address {
	return p.validityCollect[addr.Row()]
}
