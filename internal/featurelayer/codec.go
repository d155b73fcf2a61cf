package featurelayer

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"time"

	"github.com/mapgrid/tileservice/internal/layerinfo"
	"github.com/mapgrid/tileservice/internal/model"
	"github.com/mapgrid/tileservice/internal/tileid"
)

func init() {
	// Info carries arbitrary json-like metadata (spec.md §3 TileLayer.info);
	// gob needs the concrete types that can appear behind the any values
	// registered up front.
	gob.Register(string(""))
	gob.Register(int64(0))
	gob.Register(float64(0))
	gob.Register(false)
	gob.Register([]any{})
	gob.Register(map[string]any{})
}

// headerWire is the gob-serializable shape of Header plus the root
// feature list and hash index, kept separate from model.Pool's own
// codec so the pool's column layout stays agnostic of tile metadata.
type headerWire struct {
	MapID      string
	LayerID    string
	MapVersion layerinfo.Version
	TileID     tileid.ID
	NodeID     string
	Timestamp  time.Time
	TTLNanos   int64
	HasTTL     bool
	Info       map[string]any
	Error      string
	HasError   bool

	Roots     []model.Address
	HashIndex []hashEntry
}

// MarshalBinary serializes the header, feature roots and hash index,
// followed by the model pool's columns; it does not include the string
// data, which travels as a separate wire message per spec.md's
// StringPool/TileFeatureLayer split.
func (t *TileFeatureLayer) MarshalBinary() ([]byte, error) {
	w := headerWire{
		MapID:      t.MapID,
		LayerID:    t.LayerID,
		MapVersion: t.MapVersion,
		TileID:     t.TileID,
		NodeID:     t.NodeID,
		Timestamp:  t.Timestamp,
		Info:       t.Info,
		Roots:      t.roots,
		HashIndex:  t.hashIndex,
	}
	if t.TTL != nil {
		w.HasTTL = true
		w.TTLNanos = t.TTL.Nanoseconds()
	}
	if t.Error != nil {
		w.HasError = true
		w.Error = *t.Error
	}

	var headerBuf bytes.Buffer
	if err := gob.NewEncoder(&headerBuf).Encode(w); err != nil {
		return nil, fmt.Errorf("featurelayer: encode header: %w", err)
	}
	poolBytes, err := t.Pool.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("featurelayer: encode pool: %w", err)
	}

	var out bytes.Buffer
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(headerBuf.Len()))
	out.Write(lenBuf[:])
	out.Write(headerBuf.Bytes())
	out.Write(poolBytes)
	return out.Bytes(), nil
}

// PeekIdentity decodes just enough of a marshaled payload to learn
// which node/map/layer/tile it belongs to, so a stream reader can
// construct an empty TileFeatureLayer (bound to the right LayerInfo
// and string pool) before handing the payload to UnmarshalBinary.
func PeekIdentity(data []byte) (nodeID, mapID, layerID string, tile tileid.ID, err error) {
	if len(data) < 4 {
		return "", "", "", 0, fmt.Errorf("featurelayer: truncated payload")
	}
	headerLen := binary.LittleEndian.Uint32(data[:4])
	rest := data[4:]
	if uint32(len(rest)) < headerLen {
		return "", "", "", 0, fmt.Errorf("featurelayer: truncated header")
	}
	var w headerWire
	if err := gob.NewDecoder(bytes.NewReader(rest[:headerLen])).Decode(&w); err != nil {
		return "", "", "", 0, fmt.Errorf("featurelayer: decode header: %w", err)
	}
	return w.NodeID, w.MapID, w.LayerID, w.TileID, nil
}

// UnmarshalBinary restores the header, feature roots and pool columns into t. t's
// Pool and Strings must already be set (the Strings pool should have
// been populated from the preceding StringPool wire message).
func (t *TileFeatureLayer) UnmarshalBinary(data []byte) error {
	if len(data) < 4 {
		return fmt.Errorf("featurelayer: truncated payload")
	}
	headerLen := binary.LittleEndian.Uint32(data[:4])
	rest := data[4:]
	if uint32(len(rest)) < headerLen {
		return fmt.Errorf("featurelayer: truncated header")
	}
	headerBytes := rest[:headerLen]
	poolBytes := rest[headerLen:]

	var w headerWire
	if err := gob.NewDecoder(bytes.NewReader(headerBytes)).Decode(&w); err != nil {
		return fmt.Errorf("featurelayer: decode header: %w", err)
	}

	if t.Pool == nil {
		return fmt.Errorf("featurelayer: pool not initialized before decode")
	}
	if err := t.Pool.UnmarshalBinary(poolBytes); err != nil {
		return err
	}

	t.MapID = w.MapID
	t.LayerID = w.LayerID
	t.MapVersion = w.MapVersion
	t.TileID = w.TileID
	t.NodeID = w.NodeID
	t.Timestamp = w.Timestamp
	t.Info = w.Info
	if w.HasTTL {
		d := time.Duration(w.TTLNanos)
		t.TTL = &d
	}
	if w.HasError {
		e := w.Error
		t.Error = &e
	}
	t.roots = w.Roots
	t.hashIndex = w.HashIndex
	t.hashIndexSorted = false
	return nil
}
