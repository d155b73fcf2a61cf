package tileid

import "testing"

func TestNewXYZ(t *testing.T) {
	id := New(3, 5, 8)
	if id.X() != 3 || id.Y() != 5 || id.Z() != 8 {
		t.Fatalf("got (%d,%d,%d), want (3,5,8)", id.X(), id.Y(), id.Z())
	}
}

func TestFromWgs84RoundTrip(t *testing.T) {
	for z := uint16(0); z < 10; z++ {
		cols := numCols(z)
		rows := numRows(z)
		for x := int64(0); x < cols; x += 3 {
			for y := int64(0); y < rows; y += 3 {
				tile := New(uint16(x), uint16(y), z)
				c := tile.Center()
				got := FromWgs84(c.Lon, c.Lat, z)
				if got != tile {
					t.Fatalf("z=%d x=%d y=%d: roundtrip got %s, want %s (center=%v)", z, x, y, got, tile, c)
				}
			}
		}
	}
}

func TestFromWgs84LongitudeWrap(t *testing.T) {
	a := FromWgs84(-180, 0, 4)
	b := FromWgs84(180, 0, 4)
	if a.Z() != b.Z() {
		t.Fatalf("zoom mismatch")
	}
	// -180 and 180 both fall on the antimeridian seam; both must be valid
	// tiles within the grid bounds.
	if a.X() >= 1<<(4+1) || b.X() >= 1<<(4+1) {
		t.Fatalf("x out of range: %v %v", a, b)
	}
}

func TestFromWgs84PoleReflection(t *testing.T) {
	// Latitudes beyond +/-90 must reflect back into the grid rather than
	// producing an out-of-range row.
	id := FromWgs84(0, 95, 4)
	if id.Y() >= uint16(numRows(4)) {
		t.Fatalf("y out of range: %d", id.Y())
	}
}

func TestHexCanonicalForm(t *testing.T) {
	id := New(1, 2, 3)
	if len(id.Hex()) != 16 {
		t.Fatalf("expected 16 hex chars, got %q", id.Hex())
	}
}
