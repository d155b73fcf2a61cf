package service

import (
	"sync"

	"github.com/mapgrid/tileservice/internal/featurelayer"
	"github.com/mapgrid/tileservice/internal/tileid"
)

// Status is a Request's lifecycle state (spec.md §4.8): Open until
// every tile has a result, then exactly one terminal state.
type Status int

const (
	StatusOpen Status = iota
	StatusSuccess
	StatusNoDataSource
	StatusUnauthorized
	StatusAborted
	StatusDone
)

func (s Status) String() string {
	switch s {
	case StatusOpen:
		return "Open"
	case StatusSuccess:
		return "Success"
	case StatusNoDataSource:
		return "NoDataSource"
	case StatusUnauthorized:
		return "Unauthorized"
	case StatusAborted:
		return "Aborted"
	case StatusDone:
		return "Done"
	default:
		return "Unknown"
	}
}

// Request is the public ticket object a caller holds for one
// (mapId, layerId, tiles...) batch. OnResult is invoked once per
// delivered tile. The scheduler hands out this request's tiles in the
// order they were supplied, but several of them can be filled by
// different workers at the same time, so OnResult calls can arrive in
// a different order than Tiles lists them.
type Request struct {
	MapID   string
	LayerID string
	Tiles   []tileid.ID
	OnResult func(*featurelayer.TileFeatureLayer)
	OnDone   func()

	nextTileIndex int
	resultCount   int

	statusMu sync.Mutex
	status   Status
	statusCh chan struct{} // closed exactly once, when status leaves Open
}

// NewRequest builds a Request for the given tiles. onResult is called
// synchronously (without the scheduler's lock held) for each delivered
// tile; it must not block for long or it will stall that worker.
func NewRequest(mapID, layerID string, tiles []tileid.ID, onResult func(*featurelayer.TileFeatureLayer)) *Request {
	return &Request{
		MapID:    mapID,
		LayerID:  layerID,
		Tiles:    tiles,
		OnResult: onResult,
		statusCh: make(chan struct{}),
	}
}

// Status returns the request's current lifecycle state.
func (r *Request) Status() Status {
	r.statusMu.Lock()
	defer r.statusMu.Unlock()
	return r.status
}

// Wait blocks until the request leaves StatusOpen.
func (r *Request) Wait() {
	<-r.statusCh
}

func (r *Request) setStatus(s Status) {
	r.statusMu.Lock()
	if r.status != StatusOpen {
		r.statusMu.Unlock()
		return
	}
	r.status = s
	r.statusMu.Unlock()

	if r.OnDone != nil {
		r.OnDone()
	}
	close(r.statusCh)
}

// notifyResult delivers one completed tile and, once every tile has
// been accounted for, marks the request Done. Nothing is delivered to
// an aborted request.
func (r *Request) notifyResult(layer *featurelayer.TileFeatureLayer) {
	if r.Status() == StatusAborted {
		return
	}
	if r.OnResult != nil {
		r.OnResult(layer)
	}
	r.statusMu.Lock()
	r.resultCount++
	done := r.resultCount == len(r.Tiles)
	r.statusMu.Unlock()
	if done {
		r.setStatus(StatusDone)
	}
}
