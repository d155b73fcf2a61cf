// Package invalidation implements the optional, best-effort Kafka
// consumer that evicts cached tiles in response to an upstream
// change-feed. It is advisory: cache TTL already bounds staleness
// (spec.md's Non-goals rule out strong cross-process cache
// consistency), so a missed or duplicate event only affects how
// quickly a stale tile falls out of the cache, never correctness.
package invalidation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"github.com/mapgrid/tileservice/internal/cache"
	"github.com/mapgrid/tileservice/internal/layerinfo"
	"github.com/mapgrid/tileservice/internal/observability"
	"github.com/mapgrid/tileservice/internal/tileid"
)

func (e Event) dedupeKey() string {
	switch {
	case e.TileHex != "":
		return fmt.Sprintf("%s:%s:%s", e.MapID, e.LayerID, e.TileHex)
	default:
		return fmt.Sprintf("%s:%s:*", e.MapID, e.LayerID)
	}
}

// Config configures the Kafka consumer group.
type Config struct {
	Brokers          []string
	Topic            string
	GroupID          string
	SessionTimeout   time.Duration
	Heartbeat        time.Duration
	RebalanceTimeout time.Duration
	InitialOldest    bool
}

// Consumer evicts cache entries as invalidation events arrive.
type Consumer struct {
	cfg   Config
	cache cache.Cache
	log   zerolog.Logger
	ver   *versionDedupe

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg Config, c cache.Cache, log zerolog.Logger) *Consumer {
	return &Consumer{cfg: cfg, cache: c, log: log, ver: newVersionDedupe(8192)}
}

// Start launches the consumer group loop in the background. Call Stop
// to shut it down.
func (c *Consumer) Start(ctx context.Context) error {
	if c.cache == nil {
		return fmt.Errorf("invalidation: cache is required")
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	scfg := sarama.NewConfig()
	scfg.Version = sarama.V2_5_0_0
	scfg.Consumer.Group.Session.Timeout = orDefault(c.cfg.SessionTimeout, 10*time.Second)
	scfg.Consumer.Group.Heartbeat.Interval = orDefault(c.cfg.Heartbeat, 3*time.Second)
	scfg.Consumer.Group.Rebalance.Timeout = orDefault(c.cfg.RebalanceTimeout, 60*time.Second)
	if c.cfg.InitialOldest {
		scfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		scfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	scfg.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, scfg)
	if err != nil {
		return fmt.Errorf("invalidation: new consumer group: %w", err)
	}

	handler := &groupHandler{process: c.ProcessOne}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			if err := group.Close(); err != nil {
				c.log.Error().Err(err).Msg("invalidation: consumer group close")
			}
		}()
		for {
			if err := group.Consume(ctx, []string{c.cfg.Topic}, handler); err != nil {
				c.log.Error().Err(err).Msg("invalidation: consume error")
				select {
				case <-time.After(2 * time.Second):
				case <-ctx.Done():
					return
				}
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for err := range group.Errors() {
			c.log.Error().Err(err).Msg("invalidation: consumer group error")
		}
	}()

	c.log.Info().Strs("brokers", c.cfg.Brokers).Str("topic", c.cfg.Topic).Str("group", c.cfg.GroupID).
		Msg("invalidation consumer started")
	return nil
}

// Stop cancels the consumer loop and waits for it to drain.
func (c *Consumer) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}

// ProcessOne decodes and applies a single invalidation event. It is
// exported so tests (and a future non-Kafka transport) can drive it
// directly without a running broker.
func (c *Consumer) ProcessOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	start := time.Now()

	var ev Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		observability.InvalidationEviction("decode-error")
		return fmt.Errorf("invalidation: decode event: %w", err)
	}
	if err := ev.Validate(); err != nil {
		observability.InvalidationEviction("invalid-event")
		return fmt.Errorf("invalidation: invalid event: %w", err)
	}

	if !c.ver.shouldApply(ev.dedupeKey(), uint64(ev.TS.UnixNano())) {
		observability.InvalidationEviction("skip-stale")
		return nil
	}

	evicted, err := c.apply(ev)
	if err != nil {
		observability.InvalidationEviction("apply-error")
		return err
	}

	c.log.Debug().Str("op", ev.Op).Str("mapId", ev.MapID).Str("layerId", ev.LayerID).
		Int("evicted", evicted).Dur("took", time.Since(start)).Msg("invalidation applied")
	return nil
}

// apply evicts the tiles ev selects and returns how many were evicted.
func (c *Consumer) apply(ev Event) (int, error) {
	if ev.TileHex != "" {
		tile, err := tileid.FromHex(ev.TileHex)
		if err != nil {
			return 0, fmt.Errorf("invalidation: parse tileId: %w", err)
		}
		key := cache.MapTileKey{Layer: layerinfo.LayerFeatures, MapID: ev.MapID, LayerID: ev.LayerID, TileID: tile}
		if err := c.cache.Evict(key); err != nil {
			return 0, fmt.Errorf("invalidation: evict %s: %w", key, err)
		}
		observability.InvalidationEviction("tile")
		return 1, nil
	}

	region := ev.BBox
	if region == nil {
		bb, err := geometryBBox(ev.Geometry)
		if err != nil {
			return 0, fmt.Errorf("invalidation: derive bbox from geometry: %w", err)
		}
		region = &bb
	}

	var toEvict []cache.MapTileKey
	err := c.cache.ForEachTileLayerBlob(func(key cache.MapTileKey, _ []byte) bool {
		if key.MapID == ev.MapID && key.LayerID == ev.LayerID && tileIntersectsBBox(key.TileID, *region) {
			toEvict = append(toEvict, key)
		}
		return true
	})
	if err != nil {
		return 0, fmt.Errorf("invalidation: enumerate cache: %w", err)
	}
	for _, key := range toEvict {
		if err := c.cache.Evict(key); err != nil {
			return len(toEvict), fmt.Errorf("invalidation: evict %s: %w", key, err)
		}
	}
	observability.InvalidationEviction("region")
	return len(toEvict), nil
}

func tileIntersectsBBox(t tileid.ID, b BBox) bool {
	sw, ne := t.SW(), t.NE()
	return sw.Lon <= b.X2 && ne.Lon >= b.X1 && sw.Lat <= b.Y2 && ne.Lat >= b.Y1
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

type groupHandler struct {
	process func(context.Context, *sarama.ConsumerMessage) error
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	ctx := sess.Context()
	for msg := range claim.Messages() {
		if err := h.process(ctx, msg); err != nil {
			return err
		}
		sess.MarkMessage(msg, "")
	}
	return nil
}
