// Package wire implements the binary stream protocol used to ship
// StringPool and TileFeatureLayer blobs between a data source, a
// cache, and a client: a flat sequence of
// version(6B) | type(1B) | length(4B LE) | payload
// messages (spec.md §4.5/§6). The protocol version is a 3x uint16
// little-endian Major/Minor/Patch triple; compatibility requires an
// exact Major/Minor match, matching layerinfo.Version.IsCompatible.
package wire

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/mapgrid/tileservice/internal/featurelayer"
	"github.com/mapgrid/tileservice/internal/layerinfo"
	"github.com/mapgrid/tileservice/internal/stringpool"
)

// CurrentProtocolVersion is the wire version this build writes and
// requires for reading.
var CurrentProtocolVersion = layerinfo.Version{Major: 0, Minor: 1, Patch: 1}

type MessageType uint8

const (
	MessageNone                MessageType = 0
	MessageStringPool          MessageType = 1
	MessageTileFeatureLayer    MessageType = 2
	MessageTileSourceDataLayer MessageType = 3
	MessageEndOfStream         MessageType = 128
)

func (t MessageType) String() string {
	switch t {
	case MessageStringPool:
		return "StringPool"
	case MessageTileFeatureLayer:
		return "TileFeatureLayer"
	case MessageTileSourceDataLayer:
		return "TileSourceDataLayer"
	case MessageEndOfStream:
		return "EndOfStream"
	default:
		return "None"
	}
}

// StringPoolOffsetMap tracks the highest string id already sent (or
// received) per data source node, so a Writer/Reader pair can ship
// incremental StringPool deltas instead of the full dictionary.
type StringPoolOffsetMap map[string]stringpool.ID

func writeHeader(w io.Writer, msgType MessageType, payloadLen int) error {
	var hdr [11]byte
	binary.LittleEndian.PutUint16(hdr[0:2], CurrentProtocolVersion.Major)
	binary.LittleEndian.PutUint16(hdr[2:4], CurrentProtocolVersion.Minor)
	binary.LittleEndian.PutUint16(hdr[4:6], CurrentProtocolVersion.Patch)
	hdr[6] = byte(msgType)
	binary.LittleEndian.PutUint32(hdr[7:11], uint32(payloadLen))
	_, err := w.Write(hdr[:])
	return err
}

// Writer serializes TileFeatureLayers (and their companion string
// pool deltas) into the wire format.
type Writer struct {
	out                      io.Writer
	offsets                  StringPoolOffsetMap
	differentialStringUpdates bool
}

// NewWriter constructs a Writer. offsets is mutated as string pool
// deltas are sent; sharing one map between two Writers is a bug
// (each would think the other's sent range had already gone out).
// Set differentialStringUpdates=false when writing into a cache,
// where a partial dictionary on its own would be meaningless.
func NewWriter(out io.Writer, offsets StringPoolOffsetMap, differentialStringUpdates bool) *Writer {
	if offsets == nil {
		offsets = StringPoolOffsetMap{}
	}
	return &Writer{out: out, offsets: offsets, differentialStringUpdates: differentialStringUpdates}
}

// Write serializes the layer's pending string pool delta (if any)
// followed by the tile feature layer payload itself.
func (w *Writer) Write(layer *featurelayer.TileFeatureLayer) error {
	nodeID := layer.Strings.NodeID()
	from := stringpool.FirstDynamicID
	if w.differentialStringUpdates {
		if last, ok := w.offsets[nodeID]; ok {
			from = last + 1
		}
	}
	if layer.Strings.Highest() >= from {
		spBuf := new(sizeWriter)
		if err := layer.Strings.Write(spBuf, from); err != nil {
			return fmt.Errorf("wire: write string pool: %w", err)
		}
		if err := w.sendMessage(spBuf.Bytes(), MessageStringPool); err != nil {
			return err
		}
		w.offsets[nodeID] = layer.Strings.Highest()
	}

	payload, err := layer.MarshalBinary()
	if err != nil {
		return fmt.Errorf("wire: marshal tile feature layer: %w", err)
	}
	return w.sendMessage(payload, MessageTileFeatureLayer)
}

// SendEndOfStream writes the terminal EndOfStream marker.
func (w *Writer) SendEndOfStream() error {
	return w.sendMessage(nil, MessageEndOfStream)
}

func (w *Writer) sendMessage(payload []byte, msgType MessageType) error {
	if err := writeHeader(w.out, msgType, len(payload)); err != nil {
		return err
	}
	if len(payload) == 0 {
		return nil
	}
	_, err := w.out.Write(payload)
	return err
}

// sizeWriter is a tiny growable byte sink, used so stringpool.Pool.Write
// (which takes an io.Writer) can target an in-memory buffer here
// without pulling in bytes.Buffer's broader API.
type sizeWriter struct{ buf []byte }

func (s *sizeWriter) Write(p []byte) (int, error) {
	s.buf = append(s.buf, p...)
	return len(p), nil
}
func (s *sizeWriter) Bytes() []byte { return s.buf }

// LayerInfoResolver resolves the LayerInfo needed to construct an
// empty TileFeatureLayer before decoding into it.
type LayerInfoResolver func(mapID, layerID string) (*layerinfo.LayerInfo, error)

// Reader turns a byte stream back into TileFeatureLayers, resolving
// each node id's StringPool from a per-node cache it maintains
// internally.
type Reader struct {
	in           *bufio.Reader
	pools        map[string]*stringpool.Pool
	resolveLayer LayerInfoResolver
}

func NewReader(in io.Reader, resolveLayer LayerInfoResolver) *Reader {
	return &Reader{in: bufio.NewReader(in), pools: map[string]*stringpool.Pool{}, resolveLayer: resolveLayer}
}

// readHeader reads and validates one message header, returning its
// type and payload length.
func (r *Reader) readHeader() (MessageType, uint32, error) {
	var hdr [11]byte
	if _, err := io.ReadFull(r.in, hdr[:]); err != nil {
		return 0, 0, err
	}
	v := layerinfo.Version{
		Major: binary.LittleEndian.Uint16(hdr[0:2]),
		Minor: binary.LittleEndian.Uint16(hdr[2:4]),
		Patch: binary.LittleEndian.Uint16(hdr[4:6]),
	}
	if !v.IsCompatible(CurrentProtocolVersion) {
		return 0, 0, fmt.Errorf("wire: incompatible protocol version %s (need %s)", v, CurrentProtocolVersion)
	}
	msgType := MessageType(hdr[6])
	size := binary.LittleEndian.Uint32(hdr[7:11])
	return msgType, size, nil
}

// Next reads and decodes the next message. It returns (nil, io.EOF)
// once an EndOfStream marker or the underlying stream has ended.
func (r *Reader) Next() (*featurelayer.TileFeatureLayer, error) {
	for {
		msgType, size, err := r.readHeader()
		if err != nil {
			return nil, err
		}
		payload := make([]byte, size)
		if size > 0 {
			if _, err := io.ReadFull(r.in, payload); err != nil {
				return nil, fmt.Errorf("wire: read payload: %w", err)
			}
		}

		switch msgType {
		case MessageEndOfStream:
			return nil, io.EOF
		case MessageStringPool:
			body := newByteReader(payload)
			nodeID, err := stringpool.ReadNodeID(body)
			if err != nil {
				return nil, fmt.Errorf("wire: read string pool node id: %w", err)
			}
			pool, ok := r.pools[nodeID]
			if !ok {
				pool = stringpool.New(nodeID)
				r.pools[nodeID] = pool
			}
			if err := pool.Read(body); err != nil {
				return nil, fmt.Errorf("wire: merge string pool: %w", err)
			}
			continue
		case MessageTileFeatureLayer:
			// Peek the node id embedded in the gob-encoded header to
			// select the right string pool, then decode the payload
			// into a layer bound to that pool.
			return r.decodeTileFeatureLayer(payload)
		case MessageTileSourceDataLayer:
			// Source-data layers are not modeled in this build; skip.
			continue
		default:
			return nil, fmt.Errorf("wire: unknown message type %d", msgType)
		}
	}
}

func (r *Reader) decodeTileFeatureLayer(payload []byte) (*featurelayer.TileFeatureLayer, error) {
	nodeID, mapID, layerID, tile, err := featurelayer.PeekIdentity(payload)
	if err != nil {
		return nil, err
	}

	pool, ok := r.pools[nodeID]
	if !ok {
		pool = stringpool.New(nodeID)
		r.pools[nodeID] = pool
	}

	var info *layerinfo.LayerInfo
	if r.resolveLayer != nil {
		info, err = r.resolveLayer(mapID, layerID)
		if err != nil {
			return nil, fmt.Errorf("wire: resolve layer info: %w", err)
		}
	}

	layer := featurelayer.NewWithStrings(mapID, layerID, info, tile, nodeID, pool)
	if err := layer.UnmarshalBinary(payload); err != nil {
		return nil, err
	}
	return layer, nil
}

func newByteReader(b []byte) *byteReader { return &byteReader{b: b} }

type byteReader struct {
	b   []byte
	pos int
}

func (r *byteReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.b) {
		return 0, io.EOF
	}
	n := copy(p, r.b[r.pos:])
	r.pos += n
	return n, nil
}
