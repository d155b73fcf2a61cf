// Command tileservice-demo wires a Service to the data sources named
// in a descriptor file, submits one sample request per published
// layer, and logs the results as they arrive. It exists to exercise
// the scheduler and cache end to end without standing up an HTTP
// front end — wiring that front end is explicitly out of scope.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/mapgrid/tileservice/internal/cache"
	"github.com/mapgrid/tileservice/internal/config"
	"github.com/mapgrid/tileservice/internal/datasource"
	"github.com/mapgrid/tileservice/internal/featurelayer"
	"github.com/mapgrid/tileservice/internal/invalidation"
	"github.com/mapgrid/tileservice/internal/logging"
	"github.com/mapgrid/tileservice/internal/service"
	"github.com/mapgrid/tileservice/internal/tileid"
)

func main() {
	cfg := config.FromEnv()
	log := logging.Build(logging.Config{Level: cfg.LogLevel, Console: cfg.LogConsole, Component: "tileservice-demo"}, os.Stderr)

	tileCache, err := newCache(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("build cache")
	}

	svc, err := service.New(tileCache, log)
	if err != nil {
		log.Fatal().Err(err).Msg("build service")
	}
	defer svc.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.DataSourcesFile != "" {
		descriptors, err := config.LoadDataSources(cfg.DataSourcesFile)
		if err != nil {
			log.Fatal().Err(err).Str("file", cfg.DataSourcesFile).Msg("load data sources")
		}
		for _, d := range descriptors {
			ds := newRemoteDataSource(d, cfg)
			if err := svc.Add(ctx, ds); err != nil {
				log.Error().Err(err).Str("id", d.ID).Msg("register data source")
				continue
			}
			log.Info().Str("id", d.ID).Str("baseUrl", d.BaseURL).Msg("registered data source")
		}
	} else {
		log.Warn().Msg("no DATASOURCES_FILE configured, running with zero data sources")
	}

	var invalidator *invalidation.Consumer
	if cfg.KafkaEnabled {
		invalidator = invalidation.New(invalidation.Config{
			Brokers: []string{cfg.KafkaBrokers},
			Topic:   cfg.KafkaTopic,
			GroupID: "tileservice-demo",
		}, svc.Cache(), log)
		if err := invalidator.Start(ctx); err != nil {
			log.Error().Err(err).Msg("start invalidation consumer")
			invalidator = nil
		}
	}

	for _, info := range svc.DataSourceInfos() {
		for layerID := range info.Layers {
			submitSample(svc, log, info.MapID, layerID)
		}
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)
	<-shutdown
	log.Info().Msg("shutting down")
	if invalidator != nil {
		invalidator.Stop()
	}
}

// submitSample requests a single root-level tile for mapID/layerID
// and logs each delivered tile until the request reaches a terminal
// status.
func submitSample(svc *service.Service, log zerolog.Logger, mapID, layerID string) {
	req := service.NewRequest(mapID, layerID, []tileid.ID{tileid.New(0, 0, 0)}, func(layer *featurelayer.TileFeatureLayer) {
		log.Info().Str("map", mapID).Str("layer", layerID).Str("tile", layer.TileID.Hex()).
			Int("features", layer.NumFeatures()).Msg("tile delivered")
	})
	svc.Submit(req)
	go func() {
		req.Wait()
		if status := req.Status(); status != service.StatusDone {
			log.Warn().Str("map", mapID).Str("layer", layerID).Str("status", status.String()).Msg("request did not complete")
		}
	}()
}

func newCache(cfg config.Config) (cache.Cache, error) {
	var base cache.Cache
	var err error
	switch cfg.CacheKind {
	case "sqlite":
		base, err = cache.OpenSQLite(cfg.CacheSQLitePath, cfg.CacheMaxTileBytes)
	case "null":
		base = cache.NewNull()
	default:
		base, err = cache.NewMemory(cfg.CacheMemoryEntries)
	}
	if err != nil {
		return nil, err
	}
	if cfg.RedisEnabled {
		redisTier, err := cache.NewRedis(cfg.RedisAddr, 0)
		if err != nil {
			return nil, err
		}
		return cache.NewRedisBacked(base, redisTier), nil
	}
	return base, nil
}

func newRemoteDataSource(d config.DataSourceDescriptor, cfg config.Config) *datasource.RemoteDataSource {
	maxParallelJobs := d.MaxParallelJobs
	if maxParallelJobs <= 0 {
		maxParallelJobs = cfg.MaxParallelJobs
	}
	return datasource.NewRemoteDataSource(d.ID, d.BaseURL, d.Headers, maxParallelJobs, 30*time.Second)
}
