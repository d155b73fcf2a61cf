package cache

import (
	"database/sql"
	"fmt"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/mapgrid/tileservice/internal/observability"
)

// SQLite is a durable, single-file cache backed by modernc.org/sqlite
// (pure Go, no cgo). It keeps tile-layer and string-pool blobs in two
// tables under WAL journaling, per spec.md §4.6, and evicts the oldest
// rows (by insertion sequence) once a configured byte budget is
// exceeded.
type SQLite struct {
	db       *sql.DB
	mu       sync.Mutex
	maxBytes int64
	counters statsCounters
}

// OpenSQLite opens (or creates) the cache database at path and applies
// WAL/synchronous pragmas tuned for a single-writer fill workload.
func OpenSQLite(path string, maxBytes int64) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cache: open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("cache: apply pragma %q: %w", p, err)
		}
	}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS tiles (
			key TEXT PRIMARY KEY,
			blob BLOB NOT NULL,
			seq INTEGER NOT NULL,
			size INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS string_pools (
			node_id TEXT PRIMARY KEY,
			blob BLOB NOT NULL,
			seq INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS tiles_seq_idx ON tiles(seq)`,
	}
	for _, s := range schema {
		if _, err := db.Exec(s); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("cache: apply schema: %w", err)
		}
	}

	if maxBytes <= 0 {
		maxBytes = 64 << 20
	}
	c := &SQLite{db: db, maxBytes: maxBytes}
	if err := c.evictToBudget(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return c, nil
}

func (c *SQLite) Close() error { return c.db.Close() }

func (c *SQLite) GetTileLayerBlob(key MapTileKey) ([]byte, bool, error) {
	var blob []byte
	err := c.db.QueryRow(`SELECT blob FROM tiles WHERE key = ?`, key.String()).Scan(&blob)
	if err == sql.ErrNoRows {
		c.counters.misses.Add(1)
		observability.CacheMiss("sqlite")
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: get tile layer blob: %w", err)
	}
	c.counters.hits.Add(1)
	observability.CacheHit("sqlite")
	return blob, true, nil
}

func (c *SQLite) PutTileLayerBlob(key MapTileKey, blob []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var seq int64
	if err := c.db.QueryRow(`SELECT COALESCE(MAX(seq), 0) + 1 FROM tiles`).Scan(&seq); err != nil {
		return fmt.Errorf("cache: next sequence: %w", err)
	}
	_, err := c.db.Exec(
		`INSERT INTO tiles(key, blob, seq, size) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET blob=excluded.blob, seq=excluded.seq, size=excluded.size`,
		key.String(), blob, seq, len(blob),
	)
	if err != nil {
		return fmt.Errorf("cache: put tile layer blob: %w", err)
	}
	observability.CachePut("sqlite", "tile")
	return c.evictToBudget()
}

func (c *SQLite) GetStringPoolBlob(nodeID string) ([]byte, bool, error) {
	var blob []byte
	err := c.db.QueryRow(`SELECT blob FROM string_pools WHERE node_id = ?`, nodeID).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: get string pool blob: %w", err)
	}
	c.counters.loadedPools.Add(1)
	return blob, true, nil
}

func (c *SQLite) PutStringPoolBlob(nodeID string, blob []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var seq int64
	if err := c.db.QueryRow(`SELECT COALESCE(MAX(seq), 0) + 1 FROM string_pools`).Scan(&seq); err != nil {
		return fmt.Errorf("cache: next sequence: %w", err)
	}
	_, err := c.db.Exec(
		`INSERT INTO string_pools(node_id, blob, seq) VALUES (?, ?, ?)
		 ON CONFLICT(node_id) DO UPDATE SET blob=excluded.blob, seq=excluded.seq`,
		nodeID, blob, seq,
	)
	if err != nil {
		return fmt.Errorf("cache: put string pool blob: %w", err)
	}
	observability.CachePut("sqlite", "string-pool")
	return nil
}

func (c *SQLite) ForEachTileLayerBlob(fn func(key MapTileKey, blob []byte) bool) error {
	rows, err := c.db.Query(`SELECT key, blob FROM tiles ORDER BY seq`)
	if err != nil {
		return fmt.Errorf("cache: enumerate tiles: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var k string
		var blob []byte
		if err := rows.Scan(&k, &blob); err != nil {
			return err
		}
		key, err := ParseMapTileKey(k)
		if err != nil {
			continue
		}
		if !fn(key, blob) {
			break
		}
	}
	return rows.Err()
}

func (c *SQLite) Evict(key MapTileKey) error {
	_, err := c.db.Exec(`DELETE FROM tiles WHERE key = ?`, key.String())
	return err
}

func (c *SQLite) Stats() Stats { return c.counters.snapshot() }

// evictToBudget deletes the oldest rows (by seq) until the total
// stored tile size fits within maxBytes.
func (c *SQLite) evictToBudget() error {
	var total int64
	if err := c.db.QueryRow(`SELECT COALESCE(SUM(size), 0) FROM tiles`).Scan(&total); err != nil {
		return fmt.Errorf("cache: sum tile sizes: %w", err)
	}
	for total > c.maxBytes {
		var seq, size int64
		err := c.db.QueryRow(`SELECT seq, size FROM tiles ORDER BY seq LIMIT 1`).Scan(&seq, &size)
		if err == sql.ErrNoRows {
			break
		}
		if err != nil {
			return fmt.Errorf("cache: find oldest tile: %w", err)
		}
		if _, err := c.db.Exec(`DELETE FROM tiles WHERE seq = ?`, seq); err != nil {
			return fmt.Errorf("cache: evict oldest tile: %w", err)
		}
		total -= size
	}
	return nil
}
