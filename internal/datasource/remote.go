package datasource

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mapgrid/tileservice/internal/featurelayer"
	"github.com/mapgrid/tileservice/internal/httpclient"
	"github.com/mapgrid/tileservice/internal/layerinfo"
	"github.com/mapgrid/tileservice/internal/wire"
)

// RemoteDataSource wraps an HTTP client around the contract spec.md
// §4.7/§6 describes: GET /info, GET /tile, POST /locate against a
// single upstream base URL. It never runs a server of its own — the
// service side of that contract is explicitly out of scope.
type RemoteDataSource struct {
	ID              string
	BaseURL         string
	Headers         map[string]string
	MaxParallelJobs int

	client *http.Client
}

// NewRemoteDataSource builds a RemoteDataSource bound to baseURL. A
// zero timeout uses httpclient.NewOutbound's default.
func NewRemoteDataSource(id, baseURL string, headers map[string]string, maxParallelJobs int, timeout time.Duration) *RemoteDataSource {
	if maxParallelJobs <= 0 {
		maxParallelJobs = 1
	}
	return &RemoteDataSource{
		ID:              id,
		BaseURL:         baseURL,
		Headers:         headers,
		MaxParallelJobs: maxParallelJobs,
		client:          httpclient.NewOutbound(timeout),
	}
}

func (r *RemoteDataSource) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	u := r.BaseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("datasource: build request for %s: %w", u, err)
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

// Info fetches GET /info.
func (r *RemoteDataSource) Info(ctx context.Context) (layerinfo.DataSourceInfo, error) {
	req, err := r.newRequest(ctx, http.MethodGet, "/info", nil, nil)
	if err != nil {
		return layerinfo.DataSourceInfo{}, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return layerinfo.DataSourceInfo{}, fmt.Errorf("datasource %s: info request: %w", r.ID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return layerinfo.DataSourceInfo{}, fmt.Errorf("datasource %s: info returned status %d", r.ID, resp.StatusCode)
	}
	var info layerinfo.DataSourceInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return layerinfo.DataSourceInfo{}, fmt.Errorf("datasource %s: decode info: %w", r.ID, err)
	}
	return info, nil
}

// Fill fetches GET /tile for tile's (layerId, tileId) and adopts the
// first TileFeatureLayer message the remote stream yields into tile.
func (r *RemoteDataSource) Fill(ctx context.Context, tile *featurelayer.TileFeatureLayer) error {
	query := url.Values{
		"layer":         {tile.LayerID},
		"tileId":        {strconv.FormatUint(uint64(tile.TileID), 10)},
		"fieldsOffset":  {strconv.Itoa(int(tile.Strings.Highest()))},
		"responseType":  {"binary"},
	}
	req, err := r.newRequest(ctx, http.MethodGet, "/tile", query, nil)
	if err != nil {
		return err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("datasource %s: tile request: %w", r.ID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("datasource %s: tile request returned status %d", r.ID, resp.StatusCode)
	}

	layerInfo := tile.Layer
	reader := wire.NewReader(resp.Body, func(string, string) (*layerinfo.LayerInfo, error) {
		return layerInfo, nil
	})
	decoded, err := reader.Next()
	if err != nil {
		return fmt.Errorf("datasource %s: decode tile stream: %w", r.ID, err)
	}
	tile.ReplaceContents(decoded)
	return nil
}

// Locate issues POST /locate.
func (r *RemoteDataSource) Locate(ctx context.Context, locateReq LocateRequest) ([]LocateResponse, error) {
	body, err := json.Marshal(locateReq)
	if err != nil {
		return nil, fmt.Errorf("datasource %s: encode locate request: %w", r.ID, err)
	}
	req, err := r.newRequest(ctx, http.MethodPost, "/locate", nil, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("datasource %s: locate request: %w", r.ID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("datasource %s: locate returned status %d", r.ID, resp.StatusCode)
	}
	var out []LocateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("datasource %s: decode locate response: %w", r.ID, err)
	}
	return out, nil
}
