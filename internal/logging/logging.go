// Package logging wires up structured logging for the tile service. It
// keeps the zerolog setup shape used elsewhere in this codebase family
// (a Config -> Build(io.Writer) zerolog.Logger constructor, plus
// context-value helpers) and adapts the context fields to this
// service's domain (tile key, map id, data source id) in place of the
// proxy's request/hit-class fields.
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	Level     string
	Console   bool
	Component string
}

type ctxKey string

const (
	ctxTileKey     ctxKey = "tile_key"
	ctxMapID       ctxKey = "map_id"
	ctxDataSource  ctxKey = "datasource_id"
	ctxComponent   ctxKey = "component"
	ctxRequestUUID ctxKey = "request_id"
)

func WithTileKey(ctx context.Context, key string) context.Context {
	if key == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxTileKey, key)
}

func WithMapID(ctx context.Context, mapID string) context.Context {
	if mapID == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxMapID, mapID)
}

func WithDataSource(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxDataSource, id)
}

func WithComponent(ctx context.Context, component string) context.Context {
	if component == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxComponent, component)
}

func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxRequestUUID, id)
}

// Build constructs the base logger. out defaults to stderr, matching
// the other services in this family that keep stdout free for data.
func Build(cfg Config, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stderr
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.TimestampFieldName = "timestamp"
	zerolog.LevelFieldName = "level"
	zerolog.MessageFieldName = "msg"

	if cfg.Console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	base := zerolog.New(out)

	switch strings.ToLower(strings.TrimSpace(cfg.Level)) {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	ctxLogger := base.With().Timestamp()
	if cfg.Component != "" {
		ctxLogger = ctxLogger.Str("component", cfg.Component)
	}
	return ctxLogger.Logger()
}

// FromContext returns a child logger decorated with whatever domain
// fields are present on ctx.
func FromContext(ctx context.Context, parent *zerolog.Logger) *zerolog.Logger {
	var base zerolog.Logger
	if parent == nil {
		base = zerolog.New(io.Discard)
	} else {
		base = *parent
	}
	w := base.With()
	for key, name := range map[ctxKey]string{
		ctxRequestUUID: "request_id",
		ctxTileKey:     "tile_key",
		ctxMapID:       "map_id",
		ctxDataSource:  "datasource_id",
		ctxComponent:   "component",
	} {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			w = w.Str(name, v)
		}
	}
	l := w.Logger()
	return &l
}
