// Package service implements the scheduler (spec.md §4.8): a worker
// pool bound one-to-one to each registered DataSource's declared
// maxParallelJobs, a fair request queue, and an in-progress set that
// deduplicates concurrent fetches of the same tile.
package service

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/mapgrid/tileservice/internal/cache"
	"github.com/mapgrid/tileservice/internal/datasource"
	"github.com/mapgrid/tileservice/internal/layerinfo"
	"github.com/mapgrid/tileservice/internal/observability"
)

type worker struct {
	ds            datasource.DataSource
	info          layerinfo.DataSourceInfo
	shouldStop    atomic.Bool
	done          chan struct{}
}

// Service dispatches Requests across registered DataSources. The zero
// value is not usable; construct with New.
type Service struct {
	cache cache.Cache
	log   zerolog.Logger

	mu             sync.Mutex
	cond           *sync.Cond
	requests       *list.List // of *Request
	jobsInProgress map[cache.MapTileKey]struct{}

	dsInfo    map[datasource.DataSource]layerinfo.DataSourceInfo
	dsWorkers map[datasource.DataSource][]*worker
}

// New builds a Service backed by c. A nil cache is rejected, matching
// the original's "Cache must not be null" invariant — an empty
// request scheduler still needs somewhere to record fill results.
func New(c cache.Cache, log zerolog.Logger) (*Service, error) {
	if c == nil {
		return nil, fmt.Errorf("service: cache must not be nil")
	}
	s := &Service{
		cache:          c,
		log:            log,
		requests:       list.New(),
		jobsInProgress: make(map[cache.MapTileKey]struct{}),
		dsInfo:         make(map[datasource.DataSource]layerinfo.DataSourceInfo),
		dsWorkers:      make(map[datasource.DataSource][]*worker),
	}
	s.cond = sync.NewCond(&s.mu)
	return s, nil
}

// Add registers ds, fetches its Info(), and starts one worker
// goroutine per declared MaxParallelJobs slot.
func (s *Service) Add(ctx context.Context, ds datasource.DataSource) error {
	info, err := ds.Info(ctx)
	if err != nil {
		return fmt.Errorf("service: fetch data source info: %w", err)
	}

	s.mu.Lock()
	s.dsInfo[ds] = info
	n := info.MaxParallelJobs
	if n <= 0 {
		n = 1
	}
	workers := make([]*worker, 0, n)
	for i := 0; i < n; i++ {
		w := &worker{ds: ds, info: info, done: make(chan struct{})}
		workers = append(workers, w)
		go s.runWorker(w)
	}
	s.dsWorkers[ds] = workers
	s.mu.Unlock()
	return nil
}

// Remove signals every worker bound to ds to stop, waits for them to
// drain, and forgets the data source.
func (s *Service) Remove(ds datasource.DataSource) {
	s.mu.Lock()
	workers := s.dsWorkers[ds]
	for _, w := range workers {
		w.shouldStop.Store(true)
	}
	delete(s.dsInfo, ds)
	delete(s.dsWorkers, ds)
	s.cond.Broadcast()
	s.mu.Unlock()

	for _, w := range workers {
		<-w.done
	}
}

// Close stops every worker across every registered data source and
// waits for them to drain, for a clean process shutdown.
func (s *Service) Close() {
	s.mu.Lock()
	var all []*worker
	for _, workers := range s.dsWorkers {
		for _, w := range workers {
			w.shouldStop.Store(true)
			all = append(all, w)
		}
	}
	s.cond.Broadcast()
	s.mu.Unlock()

	for _, w := range all {
		<-w.done
	}
}

// Submit enqueues r for dispatch. If no registered data source can
// serve (r.MapID, r.LayerID), r is immediately completed with
// StatusNoDataSource and never enters the queue.
func (s *Service) Submit(r *Request) {
	s.mu.Lock()
	if !s.canProcessLocked(r.MapID, r.LayerID) {
		s.mu.Unlock()
		r.setStatus(StatusNoDataSource)
		return
	}
	s.requests.PushBack(r)
	s.mu.Unlock()
	s.cond.Broadcast()
}

// Abort removes r from the queue; tiles already dispatched to a
// worker still complete and are cached, but are no longer delivered
// to r.
func (s *Service) Abort(r *Request) {
	s.mu.Lock()
	for e := s.requests.Front(); e != nil; e = e.Next() {
		if e.Value.(*Request) == r {
			s.requests.Remove(e)
			break
		}
	}
	s.mu.Unlock()
	r.setStatus(StatusAborted)
}

// CanProcess reports whether some registered data source serves
// (mapID, layerID).
func (s *Service) CanProcess(mapID, layerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canProcessLocked(mapID, layerID)
}

func (s *Service) canProcessLocked(mapID, layerID string) bool {
	for _, info := range s.dsInfo {
		if info.MapID != mapID {
			continue
		}
		if _, ok := info.Layer(layerID); ok {
			return true
		}
	}
	return false
}

// DataSourceInfos returns a snapshot of every registered data source's
// published info, e.g. for a /sources endpoint maintained outside
// this package.
func (s *Service) DataSourceInfos() []layerinfo.DataSourceInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]layerinfo.DataSourceInfo, 0, len(s.dsInfo))
	for _, info := range s.dsInfo {
		out = append(out, info)
	}
	return out
}

// Cache returns the cache backing this service, for callers (e.g. an
// invalidation consumer) that need to evict entries out of band.
func (s *Service) Cache() cache.Cache { return s.cache }

type job struct {
	key cache.MapTileKey
	req *Request
}

// nextJob is Controller::nextJob ported directly: serve every free
// cache hit for info's map before returning a real dispatch job, so a
// worker never blocks behind tiles it could answer for free. Callers
// must hold s.mu; it is released while a cached tile is handed to its
// request's callbacks and re-acquired before nextJob continues.
func (s *Service) nextJob(info layerinfo.DataSourceInfo) (job, bool) {
	for {
		cachedTilesServed := false
		for e := s.requests.Front(); e != nil; e = e.Next() {
			req := e.Value.(*Request)
			if req.MapID != info.MapID {
				continue
			}
			layerInfo, ok := info.Layer(req.LayerID)
			if !ok {
				continue
			}
			if req.nextTileIndex >= len(req.Tiles) {
				continue
			}

			tileID := req.Tiles[req.nextTileIndex]
			req.nextTileIndex++
			key := cache.MapTileKey{Layer: layerInfo.Type, MapID: req.MapID, LayerID: req.LayerID, TileID: tileID}

			resolveLayer := func(mapID, layerID string) (*layerinfo.LayerInfo, error) {
				l, ok := info.Layer(layerID)
				if !ok {
					return nil, fmt.Errorf("service: map %q has no layer %q", mapID, layerID)
				}
				return l, nil
			}
			if layer, ok, err := cache.LoadTileLayer(s.cache, key, resolveLayer); err == nil && ok {
				s.log.Debug().Str("tile", key.String()).Msg("serving cached tile")
				s.mu.Unlock()
				req.notifyResult(layer)
				s.mu.Lock()
				cachedTilesServed = true
				continue
			}

			if _, inProgress := s.jobsInProgress[key]; inProgress {
				s.log.Debug().Str("tile", key.String()).Msg("delaying tile with job in progress")
				req.nextTileIndex--
				continue
			}

			s.jobsInProgress[key] = struct{}{}
			s.requests.MoveToBack(e)
			return job{key: key, req: req}, true
		}
		if !cachedTilesServed {
			break
		}
	}

	for e := s.requests.Front(); e != nil; {
		next := e.Next()
		if req := e.Value.(*Request); req.nextTileIndex == len(req.Tiles) {
			s.requests.Remove(e)
		}
		e = next
	}
	return job{}, false
}

func (s *Service) runWorker(w *worker) {
	defer close(w.done)
	for {
		s.mu.Lock()
		var j job
		for {
			if w.shouldStop.Load() {
				s.mu.Unlock()
				return
			}
			var ok bool
			j, ok = s.nextJob(w.info)
			if ok {
				break
			}
			s.cond.Wait()
		}
		s.mu.Unlock()

		observability.SetJobsInFlight(w.info.NodeID, 1)
		start := time.Now()
		result, err := datasource.Get(context.Background(), w.ds, j.key, s.cache, w.info)
		observability.ObserveFill(w.info.NodeID, outcomeLabel(err), time.Since(start).Seconds())
		observability.SetJobsInFlight(w.info.NodeID, 0)

		s.mu.Lock()
		delete(s.jobsInProgress, j.key)
		if err != nil {
			s.log.Error().Err(err).Str("tile", j.key.String()).Msg("could not load tile")
			s.cond.Broadcast()
			s.mu.Unlock()
			continue
		}
		s.mu.Unlock()

		if err := cache.StoreTileLayer(s.cache, result); err != nil {
			s.log.Error().Err(err).Str("tile", j.key.String()).Msg("could not cache tile")
		}

		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()

		j.req.notifyResult(result)
	}
}

func outcomeLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
