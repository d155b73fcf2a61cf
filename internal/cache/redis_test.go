package cache

import (
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/mapgrid/tileservice/internal/layerinfo"
	"github.com/mapgrid/tileservice/internal/tileid"
)

func newMiniRedis(t *testing.T) *Redis {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	r, err := NewRedis(mr.Addr(), time.Minute)
	if err != nil {
		t.Fatalf("NewRedis: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestRedisBacked_MissFallsThroughAndBackfillsL1(t *testing.T) {
	l1, err := NewMemory(16)
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	l2 := newMiniRedis(t)
	c := NewRedisBacked(l1, l2)

	key := MapTileKey{Layer: layerinfo.LayerFeatures, MapID: "demo", LayerID: "places", TileID: tileid.New(1, 1, 4)}

	if _, ok, err := c.GetTileLayerBlob(key); err != nil || ok {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}
	if err := c.PutTileLayerBlob(key, []byte("blob")); err != nil {
		t.Fatalf("PutTileLayerBlob: %v", err)
	}

	// A fresh L1 with the same L2 should still see the value via Redis.
	l1b, _ := NewMemory(16)
	cb := NewRedisBacked(l1b, l2)
	v, ok, err := cb.GetTileLayerBlob(key)
	if err != nil || !ok {
		t.Fatalf("expected redis-backed hit, got ok=%v err=%v", ok, err)
	}
	if string(v) != "blob" {
		t.Fatalf("got %q, want %q", v, "blob")
	}
	if v2, ok2, _ := l1b.GetTileLayerBlob(key); !ok2 || string(v2) != "blob" {
		t.Fatalf("expected L2 hit to backfill L1")
	}
}

func TestRedisBacked_Evict_RemovesFromBothTiers(t *testing.T) {
	l1, _ := NewMemory(16)
	l2 := newMiniRedis(t)
	c := NewRedisBacked(l1, l2)

	key := MapTileKey{Layer: layerinfo.LayerFeatures, MapID: "demo", LayerID: "places", TileID: tileid.New(2, 2, 4)}
	if err := c.PutTileLayerBlob(key, []byte("blob")); err != nil {
		t.Fatalf("PutTileLayerBlob: %v", err)
	}
	if err := c.Evict(key); err != nil {
		t.Fatalf("Evict: %v", err)
	}
	if _, ok, _ := l1.GetTileLayerBlob(key); ok {
		t.Fatalf("expected L1 entry gone after evict")
	}
	if _, ok, _ := c.GetTileLayerBlob(key); ok {
		t.Fatalf("expected no hit after evict")
	}
}
