package model

import (
	"fmt"
	"math"

	"github.com/mapgrid/tileservice/internal/stringpool"
)

// GeomType tags the variant a Geometry node holds (spec.md §3 Geometry).
type GeomType uint8

const (
	GeomPoints GeomType = iota
	GeomLine
	GeomPolygon
	GeomMesh
)

func (t GeomType) String() string {
	switch t {
	case GeomPoints:
		return "Points"
	case GeomLine:
		return "Line"
	case GeomPolygon:
		return "Polygon"
	case GeomMesh:
		return "Mesh"
	default:
		return "Unknown"
	}
}

// Point is a 3D WGS84-ish point: longitude, latitude, elevation.
type Point struct {
	X, Y, Z float64
}

func (p Point) Sub(o Point) Point {
	return Point{p.X - o.X, p.Y - o.Y, p.Z - o.Z}
}

func (p Point) Add(o Point) Point {
	return Point{p.X + o.X, p.Y + o.Y, p.Z + o.Z}
}

type delta struct {
	DX, DY, DZ float32
}

// PointBufferData is the vertex arena for one non-view geometry: a
// double-precision anchor (the first appended point) plus f32 deltas
// for every subsequent point, as spec.md §4.3 describes.
type PointBufferData struct {
	Anchor Point
	Deltas []delta
}

// GeometryData is the row shape of the Geometry column. A geometry is
// either a base geometry owning a point buffer, or a view into another
// geometry's vertex range with its own type tag.
type GeometryData struct {
	IsView bool
	Type   GeomType

	// Base geometry fields.
	BufferAddr Address // PointBuffer column, null until first Append

	// View fields.
	ViewOffset uint32
	ViewSize   uint32
	ViewBase   Address // Geometry column

	Name           stringpool.ID
	SourceDataAddr Address
}

// NewGeometry allocates a base geometry of the given type. capacityHint
// is advisory only (Go slices grow on their own).
func (p *Pool) NewGeometry(t GeomType, capacityHint int) Address {
	row := uint32(len(p.geometries))
	p.geometries = append(p.geometries, GeometryData{Type: t})
	_ = capacityHint
	return newAddress(ColumnGeometry, row)
}

// NewGeometryView allocates a geometry that is a view into a range of
// another geometry's vertex buffer. Appending to a view is rejected.
func (p *Pool) NewGeometryView(t GeomType, offset, size uint32, base Address) Address {
	row := uint32(len(p.geometries))
	p.geometries = append(p.geometries, GeometryData{
		IsView:     true,
		Type:       t,
		ViewOffset: offset,
		ViewSize:   size,
		ViewBase:   base,
	})
	return newAddress(ColumnGeometry, row)
}

// Geometry returns the geometry row at addr.
func (p *Pool) Geometry(addr Address) GeometryData {
	return p.geometries[addr.Row()]
}

// SetGeometryName attaches a name to a geometry.
func (p *Pool) SetGeometryName(addr Address, name stringpool.ID) {
	p.geometries[addr.Row()].Name = name
}

// SetGeometrySourceData attaches a source-data reference collection.
func (p *Pool) SetGeometrySourceData(addr, srcAddr Address) {
	p.geometries[addr.Row()].SourceDataAddr = srcAddr
}

var errAppendToView = fmt.Errorf("model: cannot append points to a geometry view")

// AppendPoint appends a point to a base (non-view) geometry. The first
// call sets the anchor; subsequent calls store f32 deltas.
func (p *Pool) AppendPoint(addr Address, pt Point) error {
	g := &p.geometries[addr.Row()]
	if g.IsView {
		return errAppendToView
	}
	if g.BufferAddr.IsNull() {
		row := uint32(len(p.pointBuffers))
		p.pointBuffers = append(p.pointBuffers, PointBufferData{Anchor: pt})
		g.BufferAddr = newAddress(ColumnPointBuffer, row)
		return nil
	}
	buf := &p.pointBuffers[g.BufferAddr.Row()]
	d := pt.Sub(buf.Anchor)
	buf.Deltas = append(buf.Deltas, delta{
		DX: float32(d.X), DY: float32(d.Y), DZ: float32(d.Z),
	})
	return nil
}

// resolveBuffer follows a possibly-nested view chain to the underlying
// (buffer address, cumulative offset) pair.
func (p *Pool) resolveBuffer(addr Address) (Address, uint32) {
	g := p.geometries[addr.Row()]
	if !g.IsView {
		return g.BufferAddr, 0
	}
	baseBuf, baseOffset := p.resolveBuffer(g.ViewBase)
	return baseBuf, baseOffset + g.ViewOffset
}

// NumPoints returns the number of points stored/visible in a geometry.
func (p *Pool) NumPoints(addr Address) int {
	g := p.geometries[addr.Row()]
	if g.IsView {
		return int(g.ViewSize)
	}
	if g.BufferAddr.IsNull() {
		return 0
	}
	buf := p.pointBuffers[g.BufferAddr.Row()]
	return len(buf.Deltas) + 1
}

// PointAt reconstructs the i-th point of a geometry as offset+delta(i),
// exact for i=0 and accurate to f32 rounding otherwise.
func (p *Pool) PointAt(addr Address, i int) Point {
	bufAddr, offset := p.resolveBuffer(addr)
	buf := p.pointBuffers[bufAddr.Row()]
	idx := int(offset) + i
	if idx == 0 {
		return buf.Anchor
	}
	d := buf.Deltas[idx-1]
	return Point{
		X: buf.Anchor.X + float64(d.DX),
		Y: buf.Anchor.Y + float64(d.DY),
		Z: buf.Anchor.Z + float64(d.DZ),
	}
}

// NewGeometryCollection allocates an empty ordered list of geometry
// addresses and returns its address.
func (p *Pool) NewGeometryCollection(capacityHint int) Address {
	row := uint32(len(p.geomCollect))
	p.geomCollect = append(p.geomCollect, make([]Address, 0, capacityHint))
	return newAddress(ColumnGeometryCollection, row)
}

// GeometryCollectionAdd appends a geometry address to a collection.
func (p *Pool) GeometryCollectionAdd(collAddr, geomAddr Address) {
	row := collAddr.Row()
	p.geomCollect[row] = append(p.geomCollect[row], geomAddr)
}

// GeometryCollection returns the ordered geometry addresses in a collection.
func (p *Pool) GeometryCollection(addr Address) []Address {
	return p.geomCollect[addr.Row()]
}

// GreatCircleLength sums the haversine distance (in meters) between
// consecutive points of a line geometry.
func (p *Pool) GreatCircleLength(addr Address) float64 {
	n := p.NumPoints(addr)
	if n < 2 {
		return 0
	}
	total := 0.0
	prev := p.PointAt(addr, 0)
	for i := 1; i < n; i++ {
		cur := p.PointAt(addr, i)
		total += haversineMeters(prev, cur)
		prev = cur
	}
	return total
}

const earthRadiusMeters = 6371000.0

func haversineMeters(a, b Point) float64 {
	lat1 := a.Y * math.Pi / 180
	lat2 := b.Y * math.Pi / 180
	dLat := (b.Y - a.Y) * math.Pi / 180
	dLon := (b.X - a.X) * math.Pi / 180
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusMeters * c
}
