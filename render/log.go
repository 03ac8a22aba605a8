package render

import (
	"context"
	"github.com/paulmach/orb"
	"log/slog"
)

// Log writes drawing commands to a structured logger.
// Cursor movement is logged at Debug; everything else at Info.
type Log struct {
	logger *slog.Logger
}

func NewLog(logger *slog.Logger) *Log {
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger.With("d", "render")}
}

func (l *Log) AddMarker(m Marker) error {
	level := slog.LevelInfo
	if m.Layer == LayerCursor || m.Layer == LayerMarkers {
		level = slog.LevelDebug
	}
	l.logger.Log(context.Background(), level, "Marker", "layer", m.Layer,
		"lat", m.Position.Lat(), "lng", m.Position.Lon(),
		"flag", m.Flag, "timestamp", m.Timestamp, "heading", m.Heading)
	return nil
}

func (l *Log) DrawPath(layer Layer, ls orb.LineString) error {
	level := slog.LevelInfo
	if layer == LayerTraveled {
		level = slog.LevelDebug
	}
	l.logger.Log(context.Background(), level, "Path", "layer", layer, "points", len(ls))
	return nil
}

func (l *Log) PanTo(p orb.Point) error {
	l.logger.Debug("Pan", "lat", p.Lat(), "lng", p.Lon())
	return nil
}

func (l *Log) Clear(layer Layer) error {
	if layer == AllLayers {
		layer = "all"
	}
	l.logger.Debug("Clear", "layer", layer)
	return nil
}
