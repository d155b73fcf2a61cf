package invalidation

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"github.com/mapgrid/tileservice/internal/cache"
	"github.com/mapgrid/tileservice/internal/layerinfo"
	"github.com/mapgrid/tileservice/internal/tileid"
)

func mustCache(t *testing.T) cache.Cache {
	t.Helper()
	c, err := cache.NewMemory(64)
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	return c
}

func seedTile(t *testing.T, c cache.Cache, mapID, layerID string, tile tileid.ID) cache.MapTileKey {
	t.Helper()
	key := cache.MapTileKey{Layer: layerinfo.LayerFeatures, MapID: mapID, LayerID: layerID, TileID: tile}
	if err := c.PutTileLayerBlob(key, []byte("blob")); err != nil {
		t.Fatalf("PutTileLayerBlob: %v", err)
	}
	return key
}

func msgFor(t *testing.T, ev Event) *sarama.ConsumerMessage {
	t.Helper()
	body, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return &sarama.ConsumerMessage{Topic: "t", Partition: 0, Offset: 1, Value: body}
}

func TestProcessOne_TileTarget_EvictsOnlyThatTile(t *testing.T) {
	c := mustCache(t)
	keep := seedTile(t, c, "demo", "places", tileid.New(1, 1, 4))
	evict := seedTile(t, c, "demo", "places", tileid.New(2, 2, 4))

	cons := New(Config{}, c, zerolog.Nop())
	ev := Event{
		Version: 1, Op: "update", MapID: "demo", LayerID: "places", TS: time.Now().UTC(),
		TileHex: evict.TileID.Hex(),
	}
	if err := cons.ProcessOne(context.Background(), msgFor(t, ev)); err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}

	if _, ok, _ := c.GetTileLayerBlob(evict); ok {
		t.Fatalf("expected evicted tile to be gone")
	}
	if _, ok, _ := c.GetTileLayerBlob(keep); !ok {
		t.Fatalf("expected untouched tile to remain cached")
	}
}

func TestProcessOne_BBoxTarget_EvictsIntersectingTiles(t *testing.T) {
	c := mustCache(t)
	inside := seedTile(t, c, "demo", "places", tileid.FromWgs84(10, 50, 6))
	outside := seedTile(t, c, "demo", "places", tileid.FromWgs84(170, -80, 6))

	cons := New(Config{}, c, zerolog.Nop())
	ev := Event{
		Version: 1, Op: "update", MapID: "demo", LayerID: "places", TS: time.Now().UTC(),
		BBox: &BBox{X1: 5, Y1: 45, X2: 15, Y2: 55, SRID: "EPSG:4326"},
	}
	if err := cons.ProcessOne(context.Background(), msgFor(t, ev)); err != nil {
		t.Fatalf("ProcessOne: %v", err)
	}

	if _, ok, _ := c.GetTileLayerBlob(inside); ok {
		t.Fatalf("expected intersecting tile to be evicted")
	}
	if _, ok, _ := c.GetTileLayerBlob(outside); !ok {
		t.Fatalf("expected non-intersecting tile to remain cached")
	}
}

func TestProcessOne_DuplicateEvent_IsANoop(t *testing.T) {
	c := mustCache(t)
	key := seedTile(t, c, "demo", "places", tileid.New(3, 3, 4))

	cons := New(Config{}, c, zerolog.Nop())
	ev := Event{
		Version: 1, Op: "update", MapID: "demo", LayerID: "places", TS: time.Now().UTC(),
		TileHex: key.TileID.Hex(),
	}
	msg := msgFor(t, ev)
	if err := cons.ProcessOne(context.Background(), msg); err != nil {
		t.Fatalf("first ProcessOne: %v", err)
	}
	if err := c.PutTileLayerBlob(key, []byte("refilled")); err != nil {
		t.Fatalf("re-seed: %v", err)
	}
	if err := cons.ProcessOne(context.Background(), msg); err != nil {
		t.Fatalf("replayed ProcessOne: %v", err)
	}
	if _, ok, _ := c.GetTileLayerBlob(key); !ok {
		t.Fatalf("expected replayed (same-timestamp) event to be a no-op")
	}
}

func TestProcessOne_RejectsInvalidEvent(t *testing.T) {
	c := mustCache(t)
	cons := New(Config{}, c, zerolog.Nop())
	ev := Event{Version: 2, Op: "update", MapID: "demo", LayerID: "places", TS: time.Now().UTC()}
	if err := cons.ProcessOne(context.Background(), msgFor(t, ev)); err == nil {
		t.Fatalf("expected validation error for unsupported version")
	}
}
