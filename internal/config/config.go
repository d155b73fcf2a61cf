// Package config reads process configuration from the environment,
// in the getenv/getint/getduration style used across this codebase
// family, and loads data-source descriptor files (YAML) describing
// the remote data sources a Service should register at startup.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is process-wide configuration for the tile service binary.
type Config struct {
	LogLevel           string
	LogConsole         bool
	CacheKind          string // "memory", "sqlite", "null"
	CacheMemoryEntries int
	CacheSQLitePath    string
	CacheMaxTileBytes  int64
	RedisAddr          string
	RedisEnabled       bool
	KafkaBrokers       string
	KafkaTopic         string
	KafkaEnabled       bool
	MaxParallelJobs    int
	DataSourcesFile    string
}

func FromEnv() Config {
	return Config{
		LogLevel:           getenv("LOG_LEVEL", "info"),
		LogConsole:         getbool("LOG_CONSOLE", false),
		CacheKind:          getenv("CACHE_KIND", "memory"),
		CacheMemoryEntries: getint("CACHE_MEMORY_ENTRIES", 1024),
		CacheSQLitePath:    getenv("CACHE_SQLITE_PATH", "tileservice-cache.db"),
		CacheMaxTileBytes:  int64(getint("CACHE_MAX_TILE_BYTES", 64<<20)),
		RedisAddr:          getenv("REDIS_ADDR", "localhost:6379"),
		RedisEnabled:       getbool("REDIS_ENABLED", false),
		KafkaBrokers:       getenv("KAFKA_BROKERS", "localhost:9092"),
		KafkaTopic:         getenv("KAFKA_INVALIDATION_TOPIC", "tileservice.invalidation"),
		KafkaEnabled:       getbool("KAFKA_ENABLED", false),
		MaxParallelJobs:    getint("MAX_PARALLEL_JOBS", 8),
		DataSourcesFile:    getenv("DATASOURCES_FILE", ""),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

var _ = getduration

// DataSourceDescriptor is one entry of a data-source descriptor file:
// a constructor record for a RemoteDataSource. Type is parsed but
// nothing dispatches on it; cmd/tileservice-demo builds a
// RemoteDataSource from every descriptor.
type DataSourceDescriptor struct {
	Type            string            `yaml:"type"`
	ID              string            `yaml:"id"`
	BaseURL         string            `yaml:"baseUrl"`
	MaxParallelJobs int               `yaml:"maxParallelJobs"`
	Headers         map[string]string `yaml:"headers"`
	AuthHeaderRules []AuthHeaderRule  `yaml:"authorization"`
}

// AuthHeaderRule requires header Name to match one of Patterns
// (OR within a rule; rules themselves AND across a request, per
// the isAuthorized gate).
type AuthHeaderRule struct {
	Name     string   `yaml:"header"`
	Patterns []string `yaml:"oneOf"`
}

// LoadDataSources reads a YAML descriptor file (a top-level list of
// descriptors). The parsed structs carry the real header values;
// SafeHeaders produces a log-safe copy in which values of headers
// whose names contain "auth", "token", "key", "secret" or "cookie"
// are masked.
func LoadDataSources(path string) ([]DataSourceDescriptor, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read datasources file: %w", err)
	}
	var out []DataSourceDescriptor
	if err := yaml.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("config: parse datasources file: %w", err)
	}
	return out, nil
}

// MaskSecret renders a value unreadable for logs while remaining
// stable across runs, so repeated log lines for the same secret are
// recognizably the same value without revealing it.
func MaskSecret(v string) string {
	if v == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(v))
	return "MASKED:" + hex.EncodeToString(sum[:])
}

func isSecretHeader(name string) bool {
	for _, s := range []string{"auth", "token", "key", "secret", "cookie"} {
		if containsFold(name, s) {
			return true
		}
	}
	return false
}

func containsFold(s, substr string) bool {
	ls, lsub := toLower(s), toLower(substr)
	for i := 0; i+len(lsub) <= len(ls); i++ {
		if ls[i:i+len(lsub)] == lsub {
			return true
		}
	}
	return false
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// SafeHeaders returns a copy of headers with secret-looking values
// masked, suitable for inclusion in logs or diagnostics.
func SafeHeaders(headers map[string]string) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		if isSecretHeader(k) {
			out[k] = MaskSecret(v)
		} else {
			out[k] = v
		}
	}
	return out
}
